// Copyright 2016 The Gofem Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package result implements the §2 #9 Result object: typed,
// read-only access to a finished Model's integrated trajectories, with
// alloc/capacity/coverage views and a cascade accessor (SUPPLEMENTED
// FEATURES), plus a gob-based binary round-trip (§6). The program
// views are not cached: each call builds a new slice from the
// per-tick program records copied out of the Model.
//
// Grounded on gofem/fem/output.go's accessor style: collect the
// already-computed arrays once, then expose small typed views over
// them rather than re-deriving anything at query time.
package result

import (
	"encoding/gob"
	"io"

	"github.com/optimamodel/atomica/engine"
	"github.com/optimamodel/atomica/errs"
	"github.com/optimamodel/atomica/framework"
	"github.com/optimamodel/atomica/program"
)

// PopulationResult holds one population's full trajectories, copied
// out of the Model's internal ele.Compartment/Characteristic/Parameter
// storage so the Result outlives and does not alias the Model (§5:
// "Result objects are owned by the caller; the engine does not retain
// references after process() returns").
type PopulationResult struct {
	Name            string
	Compartments    map[string][]float64
	Characteristics map[string][]float64
	Parameters      map[string][]float64
}

// CascadeStage is one resolved cascade stage value (SUPPLEMENTED
// FEATURES: a cascade is a named, ordered reporting sequence over
// already-computed compartment/characteristic trajectories).
type CascadeStage struct {
	Name   string
	Code   string
	Value  float64
	IsLoss bool
}

// Result is the finished, self-contained output of one Model.Process
// run (§2 #9).
type Result struct {
	PopOrder     []string
	Populations  map[string]*PopulationResult
	TVec         []float64
	ProgramTicks map[string][]program.Tick

	// fw is not serialized (§6: binary persistence covers trajectory
	// data, not the Framework used to build it); CascadeValues needs it
	// reattached via AttachFramework after a Load.
	fw *framework.Framework
}

// New extracts a Result from a Model whose Process has already run
// (partial results, after a cancelled Process, are valid: every
// trajectory is populated up to Model.LastTick).
func New(m *engine.Model) *Result {
	r := &Result{
		PopOrder:     append([]string(nil), m.PopOrder...),
		Populations:  make(map[string]*PopulationResult, len(m.Populations)),
		TVec:         append([]float64(nil), m.TVec...),
		ProgramTicks: make(map[string][]program.Tick, len(m.ProgramTicks)),
		fw:           m.Framework,
	}
	for _, name := range m.PopOrder {
		p := m.Populations[name]
		pr := &PopulationResult{
			Name:            name,
			Compartments:    make(map[string][]float64, len(p.Compartments)),
			Characteristics: make(map[string][]float64, len(p.Characteristics)),
			Parameters:      make(map[string][]float64, len(p.Parameters)),
		}
		for code, c := range p.Compartments {
			pr.Compartments[code] = append([]float64(nil), c.Vals()...)
		}
		for code, c := range p.Characteristics {
			pr.Characteristics[code] = append([]float64(nil), c.Vals()...)
		}
		for code, par := range p.Parameters {
			pr.Parameters[code] = append([]float64(nil), par.Vals()...)
		}
		r.Populations[name] = pr
	}
	for code, ticks := range m.ProgramTicks {
		r.ProgramTicks[code] = append([]program.Tick(nil), ticks...)
	}
	return r
}

// AttachFramework reattaches the Framework used to build the Model
// this Result came from, required by CascadeValues after a Load (the
// Framework itself is not part of the serialized Result).
func (r *Result) AttachFramework(fw *framework.Framework) { r.fw = fw }

func (r *Result) population(pop string) (*PopulationResult, error) {
	p, ok := r.Populations[pop]
	if !ok {
		return nil, errs.New(errs.NotFound, "population %q not present in result", pop).WithPopulation(pop)
	}
	return p, nil
}

// Compartment returns a compartment's full trajectory.
func (r *Result) Compartment(pop, code string) ([]float64, error) {
	p, err := r.population(pop)
	if err != nil {
		return nil, err
	}
	v, ok := p.Compartments[code]
	if !ok {
		return nil, errs.New(errs.NotFound, "compartment %q not present in population %q", code, pop).WithVariable(code).WithPopulation(pop)
	}
	return v, nil
}

// Characteristic returns a characteristic's full trajectory.
func (r *Result) Characteristic(pop, code string) ([]float64, error) {
	p, err := r.population(pop)
	if err != nil {
		return nil, err
	}
	v, ok := p.Characteristics[code]
	if !ok {
		return nil, errs.New(errs.NotFound, "characteristic %q not present in population %q", code, pop).WithVariable(code).WithPopulation(pop)
	}
	return v, nil
}

// Parameter returns a parameter's full trajectory.
func (r *Result) Parameter(pop, code string) ([]float64, error) {
	p, err := r.population(pop)
	if err != nil {
		return nil, err
	}
	v, ok := p.Parameters[code]
	if !ok {
		return nil, errs.New(errs.NotFound, "parameter %q not present in population %q", code, pop).WithVariable(code).WithPopulation(pop)
	}
	return v, nil
}

func (r *Result) programTrace(code string) ([]program.Tick, error) {
	ticks, ok := r.ProgramTicks[code]
	if !ok {
		return nil, errs.New(errs.NotFound, "program %q has no recorded ticks in this result", code).WithVariable(code)
	}
	return ticks, nil
}

// Alloc returns one program's per-tick resolved spending (§4.11).
func (r *Result) Alloc(programCode string) ([]float64, error) {
	return r.programView(programCode, func(t program.Tick) float64 { return t.Alloc })
}

// Capacity returns one program's per-tick resolved capacity (§4.11).
func (r *Result) Capacity(programCode string) ([]float64, error) {
	return r.programView(programCode, func(t program.Tick) float64 { return t.Capacity })
}

// Coverage returns one program's per-tick coverage clipped to [0, 1]
// for display (Open Question decision #3: a capacity-derived coverage
// is clipped only in this reporting view, not for the outcome
// computation; a coverage override is already clipped in Evaluate).
func (r *Result) Coverage(programCode string) ([]float64, error) {
	return r.programView(programCode, func(t program.Tick) float64 { return t.CoverageClipped })
}

// CoverageRaw returns one program's per-tick coverage fraction as used
// to interpolate outcomes (unclipped unless it came from a coverage
// override).
func (r *Result) CoverageRaw(programCode string) ([]float64, error) {
	return r.programView(programCode, func(t program.Tick) float64 { return t.CoverageRaw })
}

func (r *Result) programView(programCode string, pick func(program.Tick) float64) ([]float64, error) {
	ticks, err := r.programTrace(programCode)
	if err != nil {
		return nil, err
	}
	out := make([]float64, len(ticks))
	for i, t := range ticks {
		out[i] = pick(t)
	}
	return out, nil
}

// CascadeValues resolves a named cascade's stages at the final tick
// (SUPPLEMENTED FEATURES): pure read-side sugar over already-computed
// characteristic/compartment trajectories, reading through the
// Framework's Cascade table for the stage list and through
// Compartment/Characteristic for each stage's value.
func (r *Result) CascadeValues(cascadeName, pop string) ([]CascadeStage, error) {
	if r.fw == nil {
		return nil, errs.New(errs.NotFound, "no framework attached to this result; call AttachFramework after Load").WithVariable(cascadeName)
	}
	var cascade *framework.Cascade
	for _, c := range r.fw.Cascades {
		if c.Name == cascadeName {
			cascade = c
			break
		}
	}
	if cascade == nil {
		return nil, errs.New(errs.NotFound, "unknown cascade %q", cascadeName).WithVariable(cascadeName)
	}
	ti := len(r.TVec) - 1
	out := make([]CascadeStage, len(cascade.Stages))
	for i, stage := range cascade.Stages {
		v, err := r.stageValue(pop, stage.Code, ti)
		if err != nil {
			return nil, err
		}
		out[i] = CascadeStage{Name: stage.Name, Code: stage.Code, Value: v, IsLoss: stage.IsLoss}
	}
	return out, nil
}

func (r *Result) stageValue(pop, code string, ti int) (float64, error) {
	if v, err := r.Compartment(pop, code); err == nil {
		return v[ti], nil
	}
	v, err := r.Characteristic(pop, code)
	if err != nil {
		return 0, errs.New(errs.NotFound, "cascade stage %q is neither a known compartment nor characteristic in population %q", code, pop).WithVariable(code).WithPopulation(pop)
	}
	return v[ti], nil
}

// Save writes the Result as a gob stream (§6's binary persistence
// requirement). The Framework is not part of the stream; a caller
// needing CascadeValues after Load must call AttachFramework.
func (r *Result) Save(w io.Writer) error {
	if err := gob.NewEncoder(w).Encode(r); err != nil {
		return errs.Wrap(errs.NotFound, err, "encoding result")
	}
	return nil
}

// Load reads a Result previously written by Save.
func Load(rd io.Reader) (*Result, error) {
	var r Result
	if err := gob.NewDecoder(rd).Decode(&r); err != nil {
		return nil, errs.Wrap(errs.NotFound, err, "decoding result")
	}
	return &r, nil
}
