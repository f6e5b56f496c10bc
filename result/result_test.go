// Copyright 2016 The Gofem Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package result

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/optimamodel/atomica/engine"
	"github.com/optimamodel/atomica/framework"
	"github.com/optimamodel/atomica/parset"
	"github.com/optimamodel/atomica/series"
	"github.com/optimamodel/atomica/settings"
)

// sirFixture mirrors engine's own SIR fixture; kept separate since
// engine's fixture is unexported and result must not import engine's
// _test.go files.
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
		Cascades: []*framework.Cascade{
			{
				Name: "care",
				Stages: []framework.CascadeStage{
					{Name: "Alive", Code: "alive"},
					{Name: "Infectious", Code: "inf", IsLoss: true},
				},
			},
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

func buildResult(t *testing.T) *Result {
	t.Helper()
	fw, ps := sirFixture()
	require.NoError(t, fw.Validate())
	m, err := engine.Build(fw, ps, nil, nil, []string{"adults"}, 0, 10, 1, settings.Default())
	require.NoError(t, err)
	require.NoError(t, m.Process(context.Background()))
	return New(m)
}

func TestResultTrajectoryAccessors(t *testing.T) {
	r := buildResult(t)

	sus, err := r.Compartment("adults", "sus")
	require.NoError(t, err)
	assert.InDelta(t, 990, sus[0], 1e-6)

	alive, err := r.Characteristic("adults", "alive")
	require.NoError(t, err)
	assert.InDelta(t, 1000, alive[0], 1e-6)

	foi, err := r.Parameter("adults", "foi")
	require.NoError(t, err)
	assert.InDelta(t, 0.3, foi[0], 1e-6)

	_, err = r.Compartment("adults", "nope")
	assert.Error(t, err)

	_, err = r.Compartment("nopop", "sus")
	assert.Error(t, err)
}

func TestResultCascadeValues(t *testing.T) {
	r := buildResult(t)

	stages, err := r.CascadeValues("care", "adults")
	require.NoError(t, err)
	require.Len(t, stages, 2)
	assert.Equal(t, "Alive", stages[0].Name)
	assert.False(t, stages[0].IsLoss)
	assert.InDelta(t, 1000, stages[0].Value, 1e-6)
	assert.True(t, stages[1].IsLoss)

	_, err = r.CascadeValues("unknown", "adults")
	assert.Error(t, err)
}

func TestResultSaveLoadRoundTrip(t *testing.T) {
	r := buildResult(t)

	var buf bytes.Buffer
	require.NoError(t, r.Save(&buf))

	loaded, err := Load(&buf)
	require.NoError(t, err)

	sus, err := loaded.Compartment("adults", "sus")
	require.NoError(t, err)
	assert.InDelta(t, 990, sus[0], 1e-6)

	_, err = loaded.CascadeValues("care", "adults")
	assert.Error(t, err, "cascade lookup requires AttachFramework after Load")

	fw, _ := sirFixture()
	loaded.AttachFramework(fw)
	stages, err := loaded.CascadeValues("care", "adults")
	require.NoError(t, err)
	assert.Len(t, stages, 2)
}
