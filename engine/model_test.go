// Copyright 2016 The Gofem Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/optimamodel/atomica/framework"
	"github.com/optimamodel/atomica/parset"
	"github.com/optimamodel/atomica/series"
	"github.com/optimamodel/atomica/settings"
)

// sirFixture builds a minimal closed-population SIR framework plus the
// ParameterSet data needed to solve its initial conditions, exercising
// Build+Process end to end across the full phase sequence of §4.10.
func sirFixture() (*framework.Framework, *parset.ParameterSet) {
	fw := &framework.Framework{
		Compartments: []*framework.Compartment{
			{Code: "sus", Name: "Susceptible", DatabookPage: "main"},
			{Code: "inf", Name: "Infectious", DatabookPage: "main"},
			{Code: "rec", Name: "Recovered", DatabookPage: "main"},
		},
		Characteristics: []*framework.Characteristic{
			{Code: "alive", Name: "Alive", Components: []string{"sus", "inf", "rec"}},
		},
		Parameters: []*framework.Parameter{
			{Code: "foi", Name: "Force of infection", Format: framework.FormatProbability},
			{Code: "recovrate", Name: "Recovery rate", Format: framework.FormatProbability},
		},
		Transitions: map[string][]framework.TransitionPair{
			"foi":       {{From: "sus", To: "inf"}},
			"recovrate": {{From: "inf", To: "rec"}},
		},
	}

	ps := parset.New()
	set := func(code, pop string, v float64) {
		ts := series.New(code)
		ts.SetAssumption(v)
		ps.SetSeries(code, pop, ts)
	}
	set("sus", "adults", 990)
	set("inf", "adults", 10)
	set("rec", "adults", 0)
	set("foi", "adults", 0.3)
	set("recovrate", "adults", 0.1)
	return fw, ps
}

func TestBuildAndProcessSIRConservesPopulation(t *testing.T) {
	fw, ps := sirFixture()
	require.NoError(t, fw.Validate())

	m, err := Build(fw, ps, nil, nil, []string{"adults"}, 0, 10, 1, settings.Default())
	require.NoError(t, err)
	require.NoError(t, m.Process(context.Background()))

	p := m.Populations["adults"]
	sus := p.Compartments["sus"].Vals()
	inf := p.Compartments["inf"].Vals()
	rec := p.Compartments["rec"].Vals()

	assert.InDelta(t, 990, sus[0], 1e-6)
	assert.InDelta(t, 10, inf[0], 1e-6)
	assert.InDelta(t, 0, rec[0], 1e-6)

	for ti := range sus {
		total := sus[ti] + inf[ti] + rec[ti]
		assert.InDelta(t, 1000, total, 1e-6, "population not conserved at tick %d", ti)
	}

	assert.Greater(t, rec[len(rec)-1], 0.0)
	assert.Less(t, sus[len(sus)-1], sus[0])
	assert.Equal(t, len(m.TVec)-1, m.LastTick)
}

func TestProcessStopsEarlyOnCancellation(t *testing.T) {
	fw, ps := sirFixture()
	require.NoError(t, fw.Validate())
	m, err := Build(fw, ps, nil, nil, []string{"adults"}, 0, 10, 1, settings.Default())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = m.Process(ctx)
	require.Error(t, err)
	assert.Equal(t, 0, m.LastTick)
}
