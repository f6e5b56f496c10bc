// Copyright 2016 The Gofem Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package framework

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/optimamodel/atomica/errs"
)

func sirFramework() *Framework {
	return &Framework{
		Compartments: []*Compartment{
			{Code: "sus", Name: "Susceptible", DatabookPage: "main"},
			{Code: "inf", Name: "Infectious", DatabookPage: "main"},
			{Code: "rec", Name: "Recovered", DatabookPage: "main"},
		},
		Characteristics: []*Characteristic{
			{Code: "alive", Name: "Alive", Components: []string{"sus", "inf", "rec"}},
		},
		Parameters: []*Parameter{
			{Code: "foi", Name: "Force of infection", Format: FormatProbability},
			{Code: "recovrate", Name: "Recovery rate", Format: FormatProbability},
		},
		Transitions: map[string][]TransitionPair{
			"foi":       {{From: "sus", To: "inf"}},
			"recovrate": {{From: "inf", To: "rec"}},
		},
	}
}

func TestValidateSIRFrameworkOK(t *testing.T) {
	f := sirFramework()
	require.NoError(t, f.Validate())
	assert.Equal(t, float64(1), f.Parameter("foi").Timescale)
	assert.Equal(t, float64(1), f.Compartment("sus").SetupWeight)
}

func TestDuplicateCodeAcrossTables(t *testing.T) {
	f := sirFramework()
	f.Parameters = append(f.Parameters, &Parameter{Code: "sus", Format: FormatNumber})
	err := f.Validate()
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.FrameworkError))
}

func TestReservedSeparatorRejected(t *testing.T) {
	f := sirFramework()
	f.Compartments[0].Code = "sus:bad"
	err := f.Validate()
	require.Error(t, err)
}

func TestSourceSinkMutualExclusion(t *testing.T) {
	f := sirFramework()
	f.Compartments[0].IsSource = true
	f.Compartments[0].IsSink = true
	err := f.Validate()
	require.Error(t, err)
}

func TestSourceMustHaveZeroSetupWeight(t *testing.T) {
	f := sirFramework()
	f.Compartments[0].IsSource = true
	err := f.Validate()
	require.Error(t, err) // DatabookPage still set (setup weight is not defaulted for a source)
}

func TestProportionMustTargetJunction(t *testing.T) {
	f := sirFramework()
	f.Parameters[0].Format = FormatProportion
	err := f.Validate()
	require.Error(t, err)
}

func TestParameterOnceSourcePerCompartment(t *testing.T) {
	f := sirFramework()
	f.Transitions["foi"] = append(f.Transitions["foi"], TransitionPair{From: "sus", To: "rec"})
	err := f.Validate()
	require.Error(t, err)
}

func TestCharacteristicCycleDetected(t *testing.T) {
	f := sirFramework()
	f.Characteristics = []*Characteristic{
		{Code: "a", Components: []string{"b"}},
		{Code: "b", Components: []string{"a"}},
	}
	err := f.Validate()
	require.Error(t, err)
}
