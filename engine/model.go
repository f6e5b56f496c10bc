// Copyright 2016 The Gofem Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package engine

import (
	"sort"

	"github.com/cpmech/gosl/io"

	"github.com/optimamodel/atomica/ele"
	"github.com/optimamodel/atomica/errs"
	"github.com/optimamodel/atomica/framework"
	"github.com/optimamodel/atomica/parset"
	"github.com/optimamodel/atomica/pop"
	"github.com/optimamodel/atomica/program"
	"github.com/optimamodel/atomica/settings"
)

// transferGroup is every cross-population link driven by one transfer
// key, one link per compartment code shared between FromPop and ToPop
// (§4.4's Transfers: the same transfer parameter moves every matching
// compartment's population between two populations, e.g. ageing).
type transferGroup struct {
	key  parset.TransferKey
	vals []float64
	link []*ele.Link
}

// Model is the built, runnable simulation (§4.9/§4.10): one Population
// per declared population name, wired together by transfers and
// interactions, stepped tick by tick by Process.
//
// Grounded on gofem/fem/fem.go's FEM type, which likewise bundles the
// built Domain(s), solver settings and stage data behind a Build/Run
// pair of entry points.
type Model struct {
	Settings  settings.Settings
	Framework *framework.Framework
	ParSet    *parset.ParameterSet

	PopOrder    []string
	Populations map[string]*pop.Population

	TVec []float64
	Dt   float64

	Programs     *program.ProgramSet // nil if none supplied
	Instructions *program.Instructions

	transfers       []transferGroup
	interactionVals map[parset.InteractionKey][]float64

	// ProgramTicks records every program's resolved Alloc/Capacity/
	// Coverage at each tick it was active, keyed by program code, for
	// the result package's alloc/coverage accessors (§4.11, §5).
	ProgramTicks map[string][]program.Tick

	// LastTick records the last tick index completed by Process,
	// allowing a cancelled run to report a partial Result (§5).
	LastTick int
}

// Build wires the Framework, ParameterSet and optional ProgramSet into
// a runnable Model: instantiates one Population per name, interpolates
// ParameterSet data onto the tick grid, wires transfers, and solves for
// consistent initial compartment sizes (§4.9).
func Build(
	fw *framework.Framework,
	parSet *parset.ParameterSet,
	progSet *program.ProgramSet,
	instr *program.Instructions,
	popNames []string,
	tStart, tEnd, dt float64,
	set settings.Settings,
) (*Model, error) {
	tvec, err := BuildTimeVector(tStart, tEnd, dt)
	if err != nil {
		return nil, err
	}

	m := &Model{
		Settings:        set,
		Framework:       fw,
		ParSet:          parSet,
		PopOrder:        append([]string(nil), popNames...),
		Populations:     map[string]*pop.Population{},
		TVec:            tvec,
		Dt:              dt,
		interactionVals: map[parset.InteractionKey][]float64{},
		ProgramTicks:    map[string][]program.Tick{},
	}
	if progSet != nil {
		m.Programs = progSet.Clone()
		m.Instructions = instr
	}

	for _, name := range popNames {
		p, err := pop.Build(fw, name)
		if err != nil {
			return nil, err
		}
		m.Populations[name] = p
		if err := m.preallocatePopulation(p); err != nil {
			return nil, err
		}
		if err := m.interpolateParameters(p); err != nil {
			return nil, err
		}
		for _, code := range p.CharOrder {
			p.Characteristics[code].Preallocate(tvec)
		}
	}

	if err := m.buildTransfers(); err != nil {
		return nil, err
	}
	for _, in := range fw.Interactions {
		for _, fromPop := range popNames {
			for _, toPop := range popNames {
				k := parset.InteractionKey{Interaction: in.Code, FromPop: fromPop, ToPop: toPop}
				if ts, ok := parSet.Interaction(k); ok {
					m.interactionVals[k] = ts.Interpolate(tvec, parSet.MetaYFactor)
				}
			}
		}
	}

	if err := m.solveInitialConditions(); err != nil {
		return nil, err
	}
	if set.Verbose {
		io.Pf("> atomica: built model with %d population(s), %d ticks\n", len(popNames), len(tvec))
	}
	return m, nil
}

func (m *Model) preallocatePopulation(p *pop.Population) error {
	for code, c := range p.Compartments {
		fc := m.Framework.Compartment(code)
		durationYears, timescale := 1.0, 1.0
		if fc.DurationGroup != "" {
			if fp := m.Framework.Parameter(fc.DurationGroup); fp != nil {
				timescale = fp.Timescale
			}
			if ts, ok := m.ParSet.Series(fc.DurationGroup, p.Name); ok {
				durationYears = ts.Interpolate(m.TVec[:1], m.ParSet.MetaYFactor)[0]
			}
		}
		if err := c.Preallocate(m.TVec, m.Dt, durationYears, timescale); err != nil {
			return errs.Wrap(errs.FrameworkError, err, "preallocating compartment %q in population %q", code, p.Name)
		}
	}
	return nil
}

func (m *Model) interpolateParameters(p *pop.Population) error {
	for code, par := range p.Parameters {
		par.Preallocate(m.TVec, m.Dt)
		if ts, ok := m.ParSet.Series(code, p.Name); ok {
			par.SetDataVals(ts.Interpolate(m.TVec, m.ParSet.MetaYFactor))
		}
	}
	return nil
}

// buildTransfers wires one Link per (transfer key, shared compartment
// code) pair, reusing ele.Link/Connect across population boundaries
// exactly as an intra-population transition (Link has no notion of
// population ownership).
func (m *Model) buildTransfers() error {
	keys := m.ParSet.Transfers()
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Parameter != keys[j].Parameter {
			return keys[i].Parameter < keys[j].Parameter
		}
		if keys[i].FromPop != keys[j].FromPop {
			return keys[i].FromPop < keys[j].FromPop
		}
		return keys[i].ToPop < keys[j].ToPop
	})
	for _, k := range keys {
		from := m.Populations[k.FromPop]
		to := m.Populations[k.ToPop]
		if from == nil || to == nil {
			continue // transfer references a population not active in this Model run
		}
		ts, _ := m.ParSet.Transfer(k)
		vals := ts.Interpolate(m.TVec, m.ParSet.MetaYFactor)

		var grp transferGroup
		grp.key = k
		grp.vals = vals
		for code, fc := range from.Compartments {
			tc, ok := to.Compartments[code]
			if !ok {
				continue
			}
			grp.link = append(grp.link, fc.Connect(tc, k.Parameter))
		}
		m.transfers = append(m.transfers, grp)
	}
	return nil
}
