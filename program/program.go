// Copyright 2016 The Gofem Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package program implements the §4.11 ProgramSet and Instructions:
// converting program spending/coverage into parameter overrides
// consumed by the engine's update_pars phase.
//
// Grounded on gofem/inp/sim.go's Stage/FaceBc "named condition with a
// function and an active window" pattern: a Program is a named
// condition (spending -> capacity -> coverage -> outcome) active
// within an instruction window, exactly as a boundary condition is a
// named function active within a stage.
package program

import (
	"sort"

	"github.com/optimamodel/atomica/errs"
	"github.com/optimamodel/atomica/series"
)

// Outcome is one parameter this program impacts, with a linear
// saturation function from coverage to an absolute parameter value.
// Evaluate passes a capacity-derived coverage unclipped (possibly >1);
// a coverage override is clipped to 1 before it is used.
type Outcome struct {
	Parameter  string
	Population string
	Baseline   float64 // outcome value at zero coverage
	Full       float64 // outcome value at full (1.0) coverage
}

func (o Outcome) at(coverage float64) float64 {
	return o.Baseline + coverage*(o.Full-o.Baseline)
}

// Program is one program row (§4.11).
type Program struct {
	Code               string
	Name               string
	UnitCost           float64
	TargetPopulations  []string
	TargetCompartments []string
	Outcomes           []Outcome
}

// ProgramSet holds every program plus its default spending series.
type ProgramSet struct {
	Programs []*Program
	byCode   map[string]*Program

	Alloc    map[string]*series.TimeSeries // program code -> spending
	Capacity map[string]*series.TimeSeries // program code -> explicit capacity override (optional)
}

// New returns an empty ProgramSet.
func New() *ProgramSet {
	return &ProgramSet{byCode: map[string]*Program{}, Alloc: map[string]*series.TimeSeries{}, Capacity: map[string]*series.TimeSeries{}}
}

// AddProgram registers a program.
func (ps *ProgramSet) AddProgram(p *Program) {
	ps.Programs = append(ps.Programs, p)
	ps.byCode[p.Code] = p
}

// Program looks up a program by code.
func (ps *ProgramSet) Program(code string) *Program { return ps.byCode[code] }

// Clone deep-copies the ProgramSet (§5: "The ProgramSet is deep-copied
// into the Model; the engine may mutate that copy").
func (ps *ProgramSet) Clone() *ProgramSet {
	out := New()
	for _, p := range ps.Programs {
		cp := *p
		cp.TargetPopulations = append([]string(nil), p.TargetPopulations...)
		cp.TargetCompartments = append([]string(nil), p.TargetCompartments...)
		cp.Outcomes = append([]Outcome(nil), p.Outcomes...)
		out.AddProgram(&cp)
	}
	for code, ts := range ps.Alloc {
		cp := *ts
		out.Alloc[code] = &cp
	}
	for code, ts := range ps.Capacity {
		cp := *ts
		out.Capacity[code] = &cp
	}
	return out
}

// Instructions provides per-program overrides active over a window (§4.11).
type Instructions struct {
	StartYear float64
	StopYear  *float64

	AllocOverride    map[string]*series.TimeSeries
	CapacityOverride map[string]*series.TimeSeries
	CoverageOverride map[string]*series.TimeSeries
}

// Active reports whether t falls within the instruction window.
func (instr *Instructions) Active(t float64) bool {
	if t < instr.StartYear {
		return false
	}
	if instr.StopYear != nil && t > *instr.StopYear {
		return false
	}
	return true
}

// OutcomeKey identifies one (parameter, population) override produced
// by program evaluation.
type OutcomeKey struct {
	Parameter  string
	Population string
}

// Tick is one program's resolved spending/capacity/coverage at a tick,
// exposed for result.Result's alloc/capacity/coverage accessors.
type Tick struct {
	Alloc           float64
	Capacity        float64
	CoverageRaw     float64 // used for outcome interpolation; unclipped unless it came from a coverage override (§9 Open Question)
	CoverageClipped float64 // min(1, CoverageRaw), for display/reporting
}

// TargetPopSize resolves the combined population size a program's
// capacity is compared against; supplied by the engine, which knows
// each population's compartment trajectories.
type TargetPopSize func(p *Program, ti int) float64

// Evaluate computes every active program's outcome overrides at tick
// ti/t (§4.11's update_pars-time computation), returning the parameter
// overrides and the per-program Tick bookkeeping (keyed by program code).
func (ps *ProgramSet) Evaluate(instr *Instructions, ti int, t float64, popSize TargetPopSize) (map[OutcomeKey]float64, map[string]Tick, error) {
	outcomes := map[OutcomeKey]float64{}
	ticks := map[string]Tick{}
	if instr == nil || !instr.Active(t) {
		return outcomes, ticks, nil
	}

	codes := make([]string, len(ps.Programs))
	for i, p := range ps.Programs {
		codes[i] = p.Code
	}
	sort.Strings(codes)

	for _, code := range codes {
		p := ps.byCode[code]

		var capacity float64
		var alloc float64
		if capTs := instr.CapacityOverride[code]; capTs != nil {
			capacity = capTs.ValueAt(t, 1)
		} else if capTs := ps.Capacity[code]; capTs != nil {
			capacity = capTs.ValueAt(t, 1)
		} else {
			allocTs := instr.AllocOverride[code]
			if allocTs == nil {
				allocTs = ps.Alloc[code]
			}
			if allocTs == nil {
				return nil, nil, errs.New(errs.ProgramError, "program %q has no alloc or capacity series", code).WithVariable(code)
			}
			if p.UnitCost <= 0 {
				return nil, nil, errs.New(errs.ProgramError, "program %q has non-positive unit cost", code).WithVariable(code)
			}
			alloc = allocTs.ValueAt(t, 1)
			capacity = alloc / p.UnitCost
		}

		var coverageRaw float64
		if covTs := instr.CoverageOverride[code]; covTs != nil {
			v := covTs.ValueAt(t, 1)
			if v > 1 {
				v = 1
			}
			coverageRaw = v
		} else {
			target := popSize(p, ti)
			if target > 0 {
				coverageRaw = capacity / target
			}
		}
		coverageClipped := coverageRaw
		if coverageClipped > 1 {
			coverageClipped = 1
		}

		ticks[code] = Tick{Alloc: alloc, Capacity: capacity, CoverageRaw: coverageRaw, CoverageClipped: coverageClipped}

		for _, o := range p.Outcomes {
			outcomes[OutcomeKey{Parameter: o.Parameter, Population: o.Population}] = o.at(coverageRaw)
		}
	}
	return outcomes, ticks, nil
}
