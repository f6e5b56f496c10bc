// Copyright 2016 The Gofem Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSolveInitialSizesExactSystem(t *testing.T) {
	comps := []string{"sus", "inf", "rec"}
	targets := []initTarget{
		{label: "sus", row: []float64{1, 0, 0}, value: 990},
		{label: "inf", row: []float64{0, 1, 0}, value: 10},
		{label: "rec", row: []float64{0, 0, 1}, value: 0},
	}
	xs, err := solveInitialSizes(comps, targets, 1e-6)
	require.NoError(t, err)
	assert.InDelta(t, 990, xs[0], 1e-6)
	assert.InDelta(t, 10, xs[1], 1e-6)
	assert.InDelta(t, 0, xs[2], 1e-6)
}

func TestSolveInitialSizesWithCharacteristicSum(t *testing.T) {
	comps := []string{"sus", "inf"}
	targets := []initTarget{
		{label: "inf", row: []float64{0, 1}, value: 10},
		{label: "alive", row: []float64{1, 1}, value: 1000},
	}
	xs, err := solveInitialSizes(comps, targets, 1e-6)
	require.NoError(t, err)
	assert.InDelta(t, 990, xs[0], 1e-6)
	assert.InDelta(t, 10, xs[1], 1e-6)
}

func TestSolveInitialSizesReportsInconsistentSystem(t *testing.T) {
	comps := []string{"a"}
	targets := []initTarget{
		{label: "a", row: []float64{1}, value: 5},
		{label: "alive", row: []float64{1}, value: 9},
	}
	_, err := solveInitialSizes(comps, targets, 1e-6)
	require.Error(t, err)
}

func TestSolveInitialSizesNoTargetsReturnsZeros(t *testing.T) {
	xs, err := solveInitialSizes([]string{"a", "b"}, nil, 1e-6)
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 0}, xs)
}
