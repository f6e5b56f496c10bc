// Copyright 2016 The Gofem Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package program

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/optimamodel/atomica/series"
)

func TestEvaluateAllocDrivenCoverage(t *testing.T) {
	ps := New()
	alloc := series.New("spend")
	alloc.SetAssumption(1000)
	ps.Alloc["condoms"] = alloc
	ps.AddProgram(&Program{
		Code:              "condoms",
		UnitCost:          10,
		TargetPopulations: []string{"adults"},
		Outcomes: []Outcome{
			{Parameter: "condomuse", Population: "adults", Baseline: 0.1, Full: 0.9},
		},
	})

	instr := &Instructions{StartYear: 2020}
	outcomes, ticks, err := ps.Evaluate(instr, 0, 2021, func(p *Program, ti int) float64 { return 200 })
	require.NoError(t, err)

	// capacity = 1000/10 = 100; coverage = 100/200 = 0.5
	assert.InDelta(t, 0.5, ticks["condoms"].CoverageRaw, 1e-9)
	assert.InDelta(t, 0.1+0.5*(0.9-0.1), outcomes[OutcomeKey{"condomuse", "adults"}], 1e-9)
}

func TestEvaluateOutsideWindowReturnsEmpty(t *testing.T) {
	ps := New()
	ps.AddProgram(&Program{Code: "x", UnitCost: 1})
	stop := 2019.0
	instr := &Instructions{StartYear: 2015, StopYear: &stop}
	outcomes, ticks, err := ps.Evaluate(instr, 0, 2020, func(p *Program, ti int) float64 { return 1 })
	require.NoError(t, err)
	assert.Empty(t, outcomes)
	assert.Empty(t, ticks)
}

func TestEvaluateCoverageOverrideClipsButRawUnclippedCapsAtOne(t *testing.T) {
	ps := New()
	ps.AddProgram(&Program{
		Code:              "screen",
		UnitCost:          1,
		TargetPopulations: []string{"adults"},
		Outcomes:          []Outcome{{Parameter: "screenrate", Population: "adults", Baseline: 0, Full: 1}},
	})
	cov := series.New("cov")
	cov.SetAssumption(1.5) // over-saturated input, must clip to 1 per spec
	instr := &Instructions{StartYear: 2000, CoverageOverride: map[string]*series.TimeSeries{"screen": cov}}

	outcomes, ticks, err := ps.Evaluate(instr, 0, 2001, func(p *Program, ti int) float64 { return 1 })
	require.NoError(t, err)
	assert.Equal(t, 1.0, ticks["screen"].CoverageRaw)
	assert.Equal(t, 1.0, outcomes[OutcomeKey{"screenrate", "adults"}])
}
