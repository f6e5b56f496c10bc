// Copyright 2016 The Gofem Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package engine

import (
	"github.com/optimamodel/atomica/ele"
	"github.com/optimamodel/atomica/errs"
	"github.com/optimamodel/atomica/expr"
	"github.com/optimamodel/atomica/framework"
	"github.com/optimamodel/atomica/pop"
	"github.com/optimamodel/atomica/program"
)

// updateComps is phase 1 of the main loop (§4.10): every compartment
// rolls forward to ti using the inflow/outflow accumulated during
// tick ti-1's link/junction phases, then the accumulators are cleared
// so the rest of this tick's processing can fill them for ti+1.
func (m *Model) updateComps(ti int) error {
	for _, name := range m.PopOrder {
		p := m.Populations[name]
		for _, code := range p.CompOrder {
			if err := p.Compartments[code].Update(ti); err != nil {
				return err
			}
		}
	}
	// Forward every Timed compartment's flush output to its duration-
	// group exit destination (§4.5) now that both compartments have
	// advanced to ti. This runs as a second pass, after every Update(ti)
	// call, since the flush amount is resolved synchronously inside the
	// source's updateTimed rather than through ResolveOutflows/
	// ApplyFlows, and the destination's own carried-forward value must
	// already be in place at ti before the flush is added to it.
	for _, name := range m.PopOrder {
		p := m.Populations[name]
		for _, code := range p.CompOrder {
			c := p.Compartments[code]
			if c.Kind == ele.Timed && c.Flush != nil && c.Flush.To != nil {
				c.Flush.To.ReceiveFlush(c.Flush.FlushFlow(), ti)
			}
		}
	}
	for _, name := range m.PopOrder {
		p := m.Populations[name]
		for _, code := range p.CompOrder {
			p.Compartments[code].ResetPending()
		}
	}
	return nil
}

// updatePars is phase 2 (§4.10, §4.7, §4.8, §4.11): recompute every
// characteristic, resolve program-driven outcomes, then update every
// parameter in framework declaration order, overwriting with a
// program's outcome value where one applies.
//
// Every characteristic is recomputed unconditionally rather than only
// those marked Dynamic: recomputation is a cheap sum over already
// up-to-date components, so gating it on Dynamic would only save a
// negligible amount of work at the cost of tracking a second
// invalidation path.
func (m *Model) updatePars(ti int) error {
	for _, name := range m.PopOrder {
		p := m.Populations[name]
		for _, code := range p.CharOrder {
			p.Characteristics[code].Update(ti)
		}
	}

	outcomes, err := m.evaluatePrograms(ti)
	if err != nil {
		return err
	}

	for _, fp := range m.Framework.Parameters {
		for _, name := range m.PopOrder {
			p := m.Populations[name]
			par, ok := p.Parameters[fp.Code]
			if !ok {
				continue
			}
			if par.Mode != ele.ParamData {
				vars := m.varsFor(name, ti)
				aggVals, err := m.aggValsFor(par.Expr, name, ti)
				if err != nil {
					return err
				}
				if err := par.Update(ti, vars, aggVals); err != nil {
					return err
				}
			}
			if outcomes != nil {
				if v, ok := outcomes[program.OutcomeKey{Parameter: fp.Code, Population: name}]; ok {
					if fp.Format == framework.FormatNumber {
						// A program outcome for a number-unit parameter is
						// people reached this step, not the annualised rate
						// update_links expects; undo the val*dt/timescale
						// conversion applied downstream (§4.10, §4.11).
						v = v * m.sourcePopSize(fp.Code, name, ti) / m.Dt
					}
					par.SetValue(ti, v)
				}
			}
		}
	}
	return nil
}

// evaluatePrograms resolves the active ProgramSet's outcome overrides
// for tick ti, recording each program's Alloc/Capacity/Coverage in
// m.ProgramTicks for the result package's accessors (§4.11, §5).
func (m *Model) evaluatePrograms(ti int) (map[program.OutcomeKey]float64, error) {
	if m.Programs == nil {
		return nil, nil
	}
	t := m.TVec[ti]
	popSize := func(p *program.Program, ti int) float64 {
		var total float64
		for _, popName := range p.TargetPopulations {
			pp := m.Populations[popName]
			if pp == nil {
				continue
			}
			if len(p.TargetCompartments) == 0 {
				for _, code := range pp.CompOrder {
					total += pp.Compartments[code].At(ti)
				}
				continue
			}
			for _, code := range p.TargetCompartments {
				if c, ok := pp.Compartments[code]; ok {
					total += c.At(ti)
				}
			}
		}
		return total
	}
	outcomes, ticks, err := m.Programs.Evaluate(m.Instructions, ti, t, popSize)
	if err != nil {
		return nil, err
	}
	for code, tick := range ticks {
		if m.ProgramTicks[code] == nil {
			m.ProgramTicks[code] = make([]program.Tick, len(m.TVec))
		}
		m.ProgramTicks[code][ti] = tick
	}
	return outcomes, nil
}

// sourcePopSize returns the population size of the compartment parCode
// transitions out of in popName, for the number-unit program-outcome
// conversion in updatePars (§4.10, §4.11). Uses the first transition
// pair, matching the "exactly one link" rule validateTransitions
// enforces for a number-unit parameter out of a source compartment;
// a non-source number parameter with several pairs uses its first.
func (m *Model) sourcePopSize(parCode, popName string, ti int) float64 {
	pairs := m.Framework.Transitions[parCode]
	if len(pairs) == 0 {
		return 0
	}
	p := m.Populations[popName]
	if p == nil {
		return 0
	}
	from, ok := p.Compartments[pairs[0].From]
	if !ok {
		return 0
	}
	return from.At(ti)
}

// lookupValue resolves a bare identifier against one population's
// compartments/characteristics/parameters (§4.1, §4.8's AGG helper
// arguments).
func (m *Model) lookupValue(popName, varName string, ti int) (float64, error) {
	p := m.Populations[popName]
	if p == nil {
		return 0, errs.New(errs.NotFound, "population %q not active in model", popName).WithPopulation(popName)
	}
	if c, ok := p.Compartments[varName]; ok {
		return c.At(ti), nil
	}
	if c, ok := p.Characteristics[varName]; ok {
		return c.At(ti), nil
	}
	if par, ok := p.Parameters[varName]; ok {
		return par.At(ti), nil
	}
	return 0, errs.New(errs.NotFound, "unknown variable %q in population %q", varName, popName).WithVariable(varName).WithPopulation(popName)
}

// varsFor builds the identifier->value map for evaluating every
// function/derivative parameter in popName at ti (§4.1's dependency
// resolution: any compartment, characteristic or parameter code, plus
// the reserved "t"/"dt").
func (m *Model) varsFor(popName string, ti int) map[string]float64 {
	p := m.Populations[popName]
	vars := make(map[string]float64, len(p.Compartments)+len(p.Characteristics)+len(p.Parameters)+2)
	vars["t"] = m.TVec[ti]
	vars["dt"] = m.Dt
	for code, c := range p.Compartments {
		vars[code] = c.At(ti)
	}
	for code, c := range p.Characteristics {
		vars[code] = c.At(ti)
	}
	for code, par := range p.Parameters {
		vars[code] = par.At(ti)
	}
	return vars
}

func (m *Model) aggValsFor(e *expr.Expression, popName string, ti int) ([]float64, error) {
	if e == nil || len(e.Aggregations) == 0 {
		return nil, nil
	}
	out := make([]float64, len(e.Aggregations))
	for i, agg := range e.Aggregations {
		v, err := m.evalAggregation(agg, popName, ti)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// computeLinkFractions is the scalar half of update_links (§4.10):
// convert every non-transfer link's driving parameter value into a
// frac/numberAmt, per the parameter's format. Proportion-format links
// (junction-bound by construction, see framework.validateTransitions)
// are left as a raw weight, normalised during junction balancing
// rather than through the frac mechanism.
func (m *Model) computeLinkFractions(ti int) {
	for _, name := range m.PopOrder {
		p := m.Populations[name]
		for _, code := range p.CompOrder {
			c := p.Compartments[code]
			for _, l := range c.OutLinks {
				m.setLinkFraction(p, c, l, ti)
			}
		}
	}
	for _, grp := range m.transfers {
		v := grp.vals[ti]
		for _, l := range grp.link {
			l.SetFrac(v)
		}
	}
}

func (m *Model) setLinkFraction(p *pop.Population, c *ele.Compartment, l *ele.Link, ti int) {
	fp := m.Framework.Parameter(l.Parameter)
	if fp == nil {
		return // driven by a transfer key instead, handled in computeLinkFractions
	}
	val := p.Parameters[l.Parameter].At(ti)
	if val < 0 {
		val = 0
	}
	switch fp.Format {
	case framework.FormatDuration:
		l.SetFrac(min(1, m.Dt/(val*fp.Timescale)))
	case framework.FormatProbability:
		l.SetFrac(min(1, val*m.Dt/fp.Timescale))
	case framework.FormatNumber:
		converted := val * m.Dt / fp.Timescale
		if c.Kind == ele.Source {
			l.SetNumberAmt(converted)
		} else {
			sp := c.At(ti)
			frac := 0.0
			if sp > 0 {
				frac = converted / sp
			}
			l.SetFrac(frac)
		}
	case framework.FormatProportion:
		l.SetFrac(val)
	default: // fraction, unitless: used on auxiliary links only, treated as a direct frac
		l.SetFrac(min(1, val))
	}
}

// updateLinksAndJunctions is phases 3+4 of the main loop (§4.10): set
// every link's frac/numberAmt, resolve and apply flows for every
// ordinary compartment, then balance junctions in their dependency
// order, and finally apply every compartment's flows in one pass (a
// junction's outlink flow is only known once it has been balanced, so
// ApplyFlows cannot run per-compartment until all links are resolved).
func (m *Model) updateLinksAndJunctions(ti int) {
	m.computeLinkFractions(ti)

	for _, name := range m.PopOrder {
		p := m.Populations[name]
		for _, code := range p.CompOrder {
			c := p.Compartments[code]
			if c.Kind != ele.Junction {
				c.ResolveOutflows(ti)
			}
		}
	}

	for _, name := range m.PopOrder {
		p := m.Populations[name]
		for _, code := range p.JunctionOrder {
			balanceJunction(p.Compartments[code], p.Parameters, ti)
		}
	}

	for _, name := range m.PopOrder {
		p := m.Populations[name]
		for _, code := range p.CompOrder {
			p.Compartments[code].ApplyFlows()
		}
	}
}

// junctionWeights returns each outlink's normalised-share weight
// (its proportion-format parameter value, clipped at zero) and their
// sum, shared by balanceJunction and the initial-flush pass.
func junctionWeights(j *ele.Compartment, pars map[string]*ele.Parameter, ti int) ([]float64, float64) {
	weights := make([]float64, len(j.OutLinks))
	var wsum float64
	for i, l := range j.OutLinks {
		w := 0.0
		if par, ok := pars[l.Parameter]; ok {
			w = par.At(ti)
			if w < 0 {
				w = 0
			}
		}
		weights[i] = w
		wsum += w
	}
	return weights, wsum
}

// balanceJunction redistributes a junction's total inflow (the sum of
// its already-resolved InLinks) across its outlinks in proportion to
// their declared weights, falling back to an equal split when no
// weight is available (§4.10). A junction with exactly one outlink
// always receives a share of 1 from this same formula, so no separate
// single-outlink fast path is needed.
//
// l.Flow() collapses a Timed InLink to its row sum before this runs,
// so a junction fed by a Timed link's per-row flows is balanced as one
// scalar total; the same simplification applies on the §4.5 Timed path
// (see Link.SetFlowDirect's per-row spread, which is likewise uniform
// rather than provenance-preserving).
func balanceJunction(j *ele.Compartment, pars map[string]*ele.Parameter, ti int) {
	var total float64
	for _, l := range j.InLinks {
		total += l.Flow()
	}
	weights, wsum := junctionWeights(j, pars, ti)
	n := len(j.OutLinks)
	for i, l := range j.OutLinks {
		share := 0.0
		switch {
		case wsum > 0:
			share = weights[i] / wsum
		case n > 0:
			share = 1.0 / float64(n)
		}
		l.SetFlowDirect(share * total)
	}
}

// initialFlushJunctions implements the §4.10 initial-tick pre-sequence
// step "flush initial junction contents": any databook-seeded initial
// size solved for a junction (§4.9) is not a steady state a junction
// may hold, so it is redistributed to the junction's outlinks'
// destinations before the main loop starts, and the junction's own
// initial size is cleared back to zero.
func (m *Model) initialFlushJunctions() {
	for _, name := range m.PopOrder {
		p := m.Populations[name]
		for _, code := range p.JunctionOrder {
			j := p.Compartments[code]
			total := j.At(0)
			if total == 0 {
				continue
			}
			weights, wsum := junctionWeights(j, p.Parameters, 0)
			n := len(j.OutLinks)
			for i, l := range j.OutLinks {
				share := 0.0
				switch {
				case wsum > 0:
					share = weights[i] / wsum
				case n > 0:
					share = 1.0 / float64(n)
				}
				l.To.AddInit(share * total)
			}
			j.ZeroInit()
		}
	}
}
