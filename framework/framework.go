// Copyright 2016 The Gofem Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package framework implements the §3/§4.3 Framework store: typed
// tables for compartments, characteristics, parameters, interactions,
// transitions and cascades, with default-filling and full invariant
// validation at load time.
//
// Grounded on gofem/inp/sim.go's Simulation/Region/Stage JSON
// struct-tag style and ReadSim's "fill defaults, then validate"
// pipeline; validation failures use errs.FrameworkError instead of
// gofem's chk.Panic, since a malformed Framework must be reported to
// the caller rather than crash the process (§7).
package framework

import (
	"strings"

	"github.com/optimamodel/atomica/errs"
)

// ParameterFormat enumerates the parameter units of §3.
type ParameterFormat string

const (
	FormatProbability ParameterFormat = "probability"
	FormatNumber      ParameterFormat = "number"
	FormatDuration    ParameterFormat = "duration"
	FormatProportion  ParameterFormat = "proportion"
	FormatFraction    ParameterFormat = "fraction"
	FormatUnitless    ParameterFormat = "unitless"
)

// Compartment is one row of the compartments table (§3).
type Compartment struct {
	Code          string  `json:"code"`
	Name          string  `json:"name"`
	IsSource      bool    `json:"is_source"`
	IsSink        bool    `json:"is_sink"`
	IsJunction    bool    `json:"is_junction"`
	DurationGroup string  `json:"duration_group"` // name of a parameter, optional
	SetupWeight   float64 `json:"setup_weight"`
	DatabookPage  string  `json:"databook_page"`
	DatabookOrder int     `json:"databook_order"`
}

// Characteristic is one row of the characteristics table (§3).
type Characteristic struct {
	Code         string   `json:"code"`
	Name         string   `json:"name"`
	Components   []string `json:"components"` // compartment or characteristic code names
	Denominator  string   `json:"denominator"`
	Function     string   `json:"function"`
	SetupWeight  float64  `json:"setup_weight"`
	DatabookPage string   `json:"databook_page"`
	Min          *float64 `json:"min"`
	Max          *float64 `json:"max"`
}

// Parameter is one row of the parameters table (§3).
type Parameter struct {
	Code           string          `json:"code"`
	Name           string          `json:"name"`
	Format         ParameterFormat `json:"format"`
	Timescale      float64         `json:"timescale"` // years
	Min            *float64        `json:"min"`
	Max            *float64        `json:"max"`
	Function       string          `json:"function"`
	IsDerivative   bool            `json:"is_derivative"`
	IsTimed        bool            `json:"is_timed"`
	PopulationType string          `json:"population_type"`
	SkipFunctionLo *float64        `json:"skip_function_lo"`
	SkipFunctionHi *float64        `json:"skip_function_hi"`
}

// Interaction is one row of the interactions table (§3): a named
// weight matrix between two declared population types.
type Interaction struct {
	Code        string `json:"code"`
	Name        string `json:"name"`
	FromPopType string `json:"from_population_type"`
	ToPopType   string `json:"to_population_type"`
}

// TransitionPair is one (from, to) edge driven by a parameter.
type TransitionPair struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// CascadeStage is one row of a cascade (§3): an ordered reporting stage.
type CascadeStage struct {
	Name   string `json:"name"`
	Code   string `json:"code"` // compartment or characteristic code
	IsLoss bool   `json:"is_loss"`
}

// Cascade is a named, ordered sequence of reporting stages.
type Cascade struct {
	Name   string         `json:"name"`
	Stages []CascadeStage `json:"stages"`
}

// Framework holds the full set of typed tables; it is immutable once
// Validate succeeds (§3 "Lifecycle").
type Framework struct {
	Compartments    []*Compartment             `json:"compartments"`
	Characteristics []*Characteristic          `json:"characteristics"`
	Parameters      []*Parameter               `json:"parameters"`
	Interactions    []*Interaction             `json:"interactions"`
	Transitions     map[string][]TransitionPair `json:"transitions"` // parameter code -> pairs
	Cascades        []*Cascade                 `json:"cascades"`

	compByCode     map[string]*Compartment
	charByCode     map[string]*Characteristic
	parByCode      map[string]*Parameter
	interactionMap map[string]*Interaction
}

var reservedNames = map[string]bool{
	"t": true, "dt": true,
	"exp": true, "floor": true, "ceil": true, "min": true, "max": true,
	"SRC_POP_AVG": true, "TGT_POP_AVG": true, "SRC_POP_SUM": true, "TGT_POP_SUM": true,
}

// Compartment looks up a compartment by code name (nil if absent).
func (f *Framework) Compartment(code string) *Compartment { return f.compByCode[code] }

// Characteristic looks up a characteristic by code name (nil if absent).
func (f *Framework) Characteristic(code string) *Characteristic { return f.charByCode[code] }

// Parameter looks up a parameter by code name (nil if absent).
func (f *Framework) Parameter(code string) *Parameter { return f.parByCode[code] }

// Interaction looks up an interaction by code name (nil if absent).
func (f *Framework) Interaction(code string) *Interaction { return f.interactionMap[code] }

// Validate fills defaults (mirroring gofem's ReadSim default-fill
// pass) and checks every invariant of §3. It must be called exactly
// once, before Model.Build, and the Framework is treated read-only
// afterwards (§5).
func (f *Framework) Validate() error {
	f.fillDefaults()

	names := map[string]string{} // code -> table it came from, for uniqueness checking
	if err := f.checkNameTable(names, "compartment", f.compartmentCodes()); err != nil {
		return err
	}
	if err := f.checkNameTable(names, "characteristic", f.characteristicCodes()); err != nil {
		return err
	}
	if err := f.checkNameTable(names, "parameter", f.parameterCodes()); err != nil {
		return err
	}
	if err := f.checkNameTable(names, "interaction", f.interactionCodes()); err != nil {
		return err
	}

	f.compByCode = make(map[string]*Compartment, len(f.Compartments))
	for _, c := range f.Compartments {
		f.compByCode[c.Code] = c
	}
	f.charByCode = make(map[string]*Characteristic, len(f.Characteristics))
	for _, c := range f.Characteristics {
		f.charByCode[c.Code] = c
	}
	f.parByCode = make(map[string]*Parameter, len(f.Parameters))
	for _, p := range f.Parameters {
		f.parByCode[p.Code] = p
	}
	f.interactionMap = make(map[string]*Interaction, len(f.Interactions))
	for _, in := range f.Interactions {
		f.interactionMap[in.Code] = in
	}

	if err := f.validateCompartments(); err != nil {
		return err
	}
	if err := f.validateCharacteristics(); err != nil {
		return err
	}
	if err := f.validateParameters(); err != nil {
		return err
	}
	if err := f.validateTransitions(); err != nil {
		return err
	}
	return nil
}

func (f *Framework) fillDefaults() {
	for _, c := range f.Compartments {
		if c.DatabookPage != "" && c.SetupWeight == 0 && !c.IsSource && !c.IsSink {
			c.SetupWeight = 1
		}
	}
	for _, p := range f.Parameters {
		if p.Timescale == 0 {
			p.Timescale = 1
		}
	}
}

func (f *Framework) compartmentCodes() []string {
	out := make([]string, len(f.Compartments))
	for i, c := range f.Compartments {
		out[i] = c.Code
	}
	return out
}
func (f *Framework) characteristicCodes() []string {
	out := make([]string, len(f.Characteristics))
	for i, c := range f.Characteristics {
		out[i] = c.Code
	}
	return out
}
func (f *Framework) parameterCodes() []string {
	out := make([]string, len(f.Parameters))
	for i, p := range f.Parameters {
		out[i] = p.Code
	}
	return out
}
func (f *Framework) interactionCodes() []string {
	out := make([]string, len(f.Interactions))
	for i, in := range f.Interactions {
		out[i] = in.Code
	}
	return out
}

func validCodeName(name string) bool {
	return name != "" && !strings.ContainsAny(name, ":,")
}

// checkNameTable validates one table's codes are non-empty, free of
// reserved separators, not reserved keywords, and globally unique
// across every table validated so far (§3).
func (f *Framework) checkNameTable(seen map[string]string, table string, codes []string) error {
	for _, code := range codes {
		if !validCodeName(code) {
			return errs.New(errs.FrameworkError, "%s code %q is empty or contains a reserved separator (':' or ',')", table, code).WithVariable(code)
		}
		if reservedNames[code] {
			return errs.New(errs.FrameworkError, "%s code %q collides with a reserved keyword", table, code).WithVariable(code)
		}
		if other, ok := seen[code]; ok {
			return errs.New(errs.FrameworkError, "code %q is used in both %s and %s tables; all codes must be globally unique", code, other, table).WithVariable(code)
		}
		seen[code] = table
	}
	return nil
}

func (f *Framework) validateCompartments() error {
	for _, c := range f.Compartments {
		n := 0
		if c.IsSource {
			n++
		}
		if c.IsSink {
			n++
		}
		if c.IsJunction {
			n++
		}
		if n > 1 {
			return errs.New(errs.FrameworkError, "compartment %q has more than one of is_source/is_sink/is_junction set", c.Code).WithVariable(c.Code)
		}
		if (c.IsSource || c.IsSink) && (c.SetupWeight != 0 || c.DatabookPage != "") {
			return errs.New(errs.FrameworkError, "source/sink compartment %q must have setup weight 0 and no databook page", c.Code).WithVariable(c.Code)
		}
		if c.SetupWeight < 0 {
			return errs.New(errs.FrameworkError, "compartment %q has negative setup weight", c.Code).WithVariable(c.Code)
		}
		if c.DurationGroup != "" {
			p := f.parByCode[c.DurationGroup]
			if p == nil {
				return errs.New(errs.FrameworkError, "compartment %q references unknown duration-group parameter %q", c.Code, c.DurationGroup).WithVariable(c.Code)
			}
		}
	}
	return nil
}

func (f *Framework) validateCharacteristics() error {
	for _, c := range f.Characteristics {
		if len(c.Components) == 0 && c.Function == "" {
			return errs.New(errs.FrameworkError, "characteristic %q has neither components nor a function", c.Code).WithVariable(c.Code)
		}
		for _, comp := range c.Components {
			if f.compByCode[comp] == nil && f.charByCode[comp] == nil {
				return errs.New(errs.FrameworkError, "characteristic %q references unknown component %q", c.Code, comp).WithVariable(c.Code)
			}
		}
		if c.Denominator != "" {
			if f.compByCode[c.Denominator] == nil && f.charByCode[c.Denominator] == nil {
				return errs.New(errs.FrameworkError, "characteristic %q references unknown denominator %q", c.Code, c.Denominator).WithVariable(c.Code)
			}
		}
		if c.SetupWeight < 0 {
			return errs.New(errs.FrameworkError, "characteristic %q has negative setup weight", c.Code).WithVariable(c.Code)
		}
	}
	return f.checkCharacteristicCycles()
}

// checkCharacteristicCycles rejects characteristics that (transitively)
// include themselves, which would make §4.6's recursive component sum
// non-terminating.
func (f *Framework) checkCharacteristicCycles() error {
	const (
		white = 0
		gray  = 1
		black = 2
	)
	state := map[string]int{}
	var visit func(code string) error
	visit = func(code string) error {
		switch state[code] {
		case black:
			return nil
		case gray:
			return errs.New(errs.FrameworkError, "characteristic %q has a cyclic component reference", code).WithVariable(code)
		}
		state[code] = gray
		if c := f.charByCode[code]; c != nil {
			for _, comp := range c.Components {
				if err := visit(comp); err != nil {
					return err
				}
			}
		}
		state[code] = black
		return nil
	}
	for _, c := range f.Characteristics {
		if err := visit(c.Code); err != nil {
			return err
		}
	}
	return nil
}

func (f *Framework) validateParameters() error {
	for _, p := range f.Parameters {
		switch p.Format {
		case FormatProbability, FormatNumber, FormatDuration, FormatProportion, FormatFraction, FormatUnitless:
		default:
			return errs.New(errs.FrameworkError, "parameter %q has unknown format %q", p.Code, p.Format).WithVariable(p.Code)
		}
		if p.Timescale <= 0 {
			return errs.New(errs.FrameworkError, "parameter %q has non-positive timescale", p.Code).WithVariable(p.Code)
		}
		if p.Min != nil && p.Max != nil && *p.Min > *p.Max {
			return errs.New(errs.FrameworkError, "parameter %q has min > max", p.Code).WithVariable(p.Code)
		}
		if (p.SkipFunctionLo == nil) != (p.SkipFunctionHi == nil) {
			return errs.New(errs.FrameworkError, "parameter %q must set both or neither of skip-function bounds", p.Code).WithVariable(p.Code)
		}
	}
	return nil
}

// validateTransitions checks the per-parameter edge list invariants of §3:
// a proportion-unit parameter's outflow compartments must all be
// junctions; a number-unit parameter whose source is a "source"
// compartment must drive exactly one link; a parameter may appear at
// most once per source compartment.
func (f *Framework) validateTransitions() error {
	for parCode, pairs := range f.Transitions {
		p := f.parByCode[parCode]
		if p == nil {
			return errs.New(errs.FrameworkError, "transition matrix references unknown parameter %q", parCode).WithVariable(parCode)
		}
		seenFrom := map[string]bool{}
		numberFromSource := 0
		for _, pair := range pairs {
			from := f.compByCode[pair.From]
			to := f.compByCode[pair.To]
			if from == nil {
				return errs.New(errs.FrameworkError, "parameter %q transitions from unknown compartment %q", parCode, pair.From).WithVariable(parCode)
			}
			if to == nil {
				return errs.New(errs.FrameworkError, "parameter %q transitions to unknown compartment %q", parCode, pair.To).WithVariable(parCode)
			}
			if seenFrom[pair.From] {
				return errs.New(errs.FrameworkError, "parameter %q appears more than once from source compartment %q", parCode, pair.From).WithVariable(parCode)
			}
			seenFrom[pair.From] = true

			if p.Format == FormatProportion && !to.IsJunction {
				return errs.New(errs.FrameworkError, "proportion parameter %q transitions to non-junction compartment %q", parCode, pair.To).WithVariable(parCode)
			}
			if p.Format == FormatNumber && from.IsSource {
				numberFromSource++
			}
		}
		if numberFromSource > 1 {
			return errs.New(errs.FrameworkError, "number parameter %q has more than one link out of a source compartment", parCode).WithVariable(parCode)
		}
	}
	return nil
}
