// Copyright 2016 The Gofem Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package engine

import (
	"sort"

	"github.com/optimamodel/atomica/errs"
	"github.com/optimamodel/atomica/pop"
)

// solveInitialConditions runs the §4.9 least-squares solve for every
// population independently and writes vals[0] on every compartment.
func (m *Model) solveInitialConditions() error {
	for _, name := range m.PopOrder {
		if err := m.solvePopulationInit(m.Populations[name]); err != nil {
			return err
		}
	}
	return nil
}

func (m *Model) solvePopulationInit(p *pop.Population) error {
	comps := append([]string(nil), p.CompOrder...)
	idx := make(map[string]int, len(comps))
	for i, c := range comps {
		idx[c] = i
	}

	var targets []initTarget
	tInit := m.TVec[0]

	for _, code := range p.CompOrder {
		fc := m.Framework.Compartment(code)
		if fc.DatabookPage == "" || fc.SetupWeight <= 0 {
			continue
		}
		v, err := m.resolveInitValue(p, code)
		if err != nil {
			return err
		}
		row := make([]float64, len(comps))
		row[idx[code]] = 1
		targets = append(targets, initTarget{label: code, row: row, value: v})
	}

	for _, fch := range m.Framework.Characteristics {
		if fch.DatabookPage == "" || fch.SetupWeight <= 0 {
			continue
		}
		leaves := map[string]bool{}
		m.flattenToCompartments(fch.Code, leaves)
		row := make([]float64, len(comps))
		for leaf := range leaves {
			row[idx[leaf]] = 1
		}
		raw, err := m.parTargetValue(fch.Code, p.Name, tInit)
		if err != nil {
			return err
		}
		b := raw
		if fch.Denominator != "" {
			denomVal, err := m.resolveInitValue(p, fch.Denominator)
			if err != nil {
				return err
			}
			b = raw * denomVal
		}
		targets = append(targets, initTarget{label: fch.Code, row: row, value: b})
	}

	sort.Slice(targets, func(i, j int) bool { return targets[i].label < targets[j].label })

	xs, err := solveInitialSizes(comps, targets, m.Settings.InitResidualTol)
	if err != nil {
		return err
	}
	for i, code := range comps {
		p.Compartments[code].SetInit(xs[i])
	}
	return nil
}

// resolveInitValue returns the known (databook-sourced) initial value
// of a compartment or characteristic code, recursing through nested
// characteristics exactly as ele.Characteristic.Update does at runtime,
// but reading ParameterSet data instead of simulated trajectories
// (§4.9: "the interpolated value at t_init").
func (m *Model) resolveInitValue(p *pop.Population, code string) (float64, error) {
	if _, ok := p.Compartments[code]; ok {
		return m.parTargetValue(code, p.Name, m.TVec[0])
	}
	fch := m.Framework.Characteristic(code)
	if fch == nil {
		return 0, errs.New(errs.BadInitialization, "cannot resolve initial value for unknown code %q", code).WithVariable(code)
	}
	var num float64
	for _, comp := range fch.Components {
		v, err := m.resolveInitValue(p, comp)
		if err != nil {
			return 0, err
		}
		num += v
	}
	if fch.Denominator == "" {
		return num, nil
	}
	den, err := m.resolveInitValue(p, fch.Denominator)
	if err != nil {
		return 0, err
	}
	switch {
	case den == 0 && num == 0:
		return 0, nil
	case den == 0:
		return 0, errs.New(errs.BadInitialization, "characteristic %q has zero denominator at t_init with nonzero numerator", code).WithVariable(code)
	default:
		return num / den, nil
	}
}

// parTargetValue reads the raw databook series for (code, pop) at t,
// without denominator scaling.
func (m *Model) parTargetValue(code, popName string, t float64) (float64, error) {
	ts, ok := m.ParSet.Series(code, popName)
	if !ok {
		return 0, errs.New(errs.BadInitialization, "no databook series for %q in population %q", code, popName).WithVariable(code).WithPopulation(popName)
	}
	return ts.ValueAt(t, m.ParSet.MetaYFactor), nil
}

// flattenToCompartments expands a characteristic's Components into the
// set of leaf compartment codes, recursing through nested
// characteristics. The §4.9 inclusion matrix A is strictly 0/1, so
// nested denominators are not applied here (only the outermost
// characteristic's denominator scales the target value, see
// solvePopulationInit).
func (m *Model) flattenToCompartments(code string, out map[string]bool) {
	if fch := m.Framework.Characteristic(code); fch != nil {
		for _, comp := range fch.Components {
			m.flattenToCompartments(comp, out)
		}
		return
	}
	out[code] = true
}
