// Copyright 2016 The Gofem Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package pop

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/optimamodel/atomica/ele"
	"github.com/optimamodel/atomica/framework"
)

func sirFramework() *framework.Framework {
	return &framework.Framework{
		Compartments: []*framework.Compartment{
			{Code: "sus", Name: "Susceptible", DatabookPage: "main"},
			{Code: "inf", Name: "Infectious", DatabookPage: "main"},
			{Code: "rec", Name: "Recovered", DatabookPage: "main"},
		},
		Characteristics: []*framework.Characteristic{
			{Code: "alive", Name: "Alive", Components: []string{"sus", "inf", "rec"}},
			{Code: "prevalence", Name: "Prevalence", Components: []string{"inf"}, Denominator: "alive"},
		},
		Parameters: []*framework.Parameter{
			{Code: "foi", Name: "Force of infection", Format: framework.FormatProbability, Function: "0.3"},
			{Code: "recovrate", Name: "Recovery rate", Format: framework.FormatProbability},
		},
		Transitions: map[string][]framework.TransitionPair{
			"foi":       {{From: "sus", To: "inf"}},
			"recovrate": {{From: "inf", To: "rec"}},
		},
	}
}

func TestBuildPopulationWiresCompartmentsLinksAndCharacteristics(t *testing.T) {
	fw := sirFramework()
	require.NoError(t, fw.Validate())

	p, err := Build(fw, "adults")
	require.NoError(t, err)

	require.Len(t, p.Compartments, 3)
	assert.Equal(t, ele.Plain, p.Compartments["sus"].Kind)
	require.Len(t, p.Compartments["sus"].OutLinks, 1)
	assert.Equal(t, "foi", p.Compartments["sus"].OutLinks[0].Parameter)

	require.Contains(t, p.Characteristics, "alive")
	require.Len(t, p.Characteristics["alive"].Components, 3)
	assert.Same(t, p.Characteristics["alive"], p.Characteristics["prevalence"].Denominator)

	require.Contains(t, p.Parameters, "foi")
	assert.Equal(t, ele.ParamFunction, p.Parameters["foi"].Mode)
	assert.Equal(t, ele.ParamData, p.Parameters["recovrate"].Mode)
}

func TestBuildPopulationWiresTimedCompartmentFlushLink(t *testing.T) {
	fw := &framework.Framework{
		Compartments: []*framework.Compartment{
			{Code: "chronic", Name: "Chronic", DurationGroup: "chronicdur", DatabookPage: "main"},
			{Code: "recovered", Name: "Recovered", DatabookPage: "main"},
		},
		Parameters: []*framework.Parameter{
			{Code: "chronicdur", Name: "Chronic duration", Format: framework.FormatDuration, Timescale: 1, IsTimed: true},
		},
		Transitions: map[string][]framework.TransitionPair{
			"chronicdur": {{From: "chronic", To: "recovered"}},
		},
	}
	require.NoError(t, fw.Validate())

	p, err := Build(fw, "adults")
	require.NoError(t, err)

	chronic := p.Compartments["chronic"]
	require.Equal(t, ele.Timed, chronic.Kind)
	require.Empty(t, chronic.OutLinks, "the duration-group exit pair becomes the flush link, not an ordinary outlink")
	require.NotNil(t, chronic.Flush)
	assert.Same(t, p.Compartments["recovered"], chronic.Flush.To)
}

func TestJunctionOrderRejectsCycle(t *testing.T) {
	fw := &framework.Framework{
		Compartments: []*framework.Compartment{
			{Code: "j1", IsJunction: true},
			{Code: "j2", IsJunction: true},
		},
		Parameters: []*framework.Parameter{
			{Code: "p1", Format: framework.FormatProportion},
			{Code: "p2", Format: framework.FormatProportion},
		},
		Transitions: map[string][]framework.TransitionPair{
			"p1": {{From: "j1", To: "j2"}},
			"p2": {{From: "j2", To: "j1"}},
		},
	}
	// bypass framework.Validate's own cycle rules (junction graphs are
	// not characteristics) and exercise pop.Build's own detection.
	_, err := Build(fw, "adults")
	require.Error(t, err)
}

func TestJunctionOrderTopologicallySortsChain(t *testing.T) {
	fw := &framework.Framework{
		Compartments: []*framework.Compartment{
			{Code: "j1", IsJunction: true},
			{Code: "j2", IsJunction: true},
			{Code: "dst"},
		},
		Parameters: []*framework.Parameter{
			{Code: "p1", Format: framework.FormatProportion},
			{Code: "p2", Format: framework.FormatProportion},
		},
		Transitions: map[string][]framework.TransitionPair{
			"p1": {{From: "j1", To: "j2"}},
			"p2": {{From: "j2", To: "dst"}},
		},
	}
	p, err := Build(fw, "adults")
	require.NoError(t, err)
	require.Equal(t, []string{"j1", "j2"}, p.JunctionOrder)
}
