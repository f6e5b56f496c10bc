// Copyright 2016 The Gofem Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package series

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConstantExtrapolation(t *testing.T) {
	ts := New("adults")
	ts.AddPoint(2010, 100)
	ts.AddPoint(2020, 200)
	out := ts.Interpolate([]float64{2000, 2010, 2015, 2020, 2030}, 1)
	assert.Equal(t, []float64{100, 100, 150, 200, 200}, out)
}

func TestAssumptionOnly(t *testing.T) {
	ts := New("adults")
	ts.SetAssumption(42)
	out := ts.Interpolate([]float64{1990, 2050}, 1)
	assert.Equal(t, []float64{42, 42}, out)
}

func TestYFactorAndMetaYFactor(t *testing.T) {
	ts := New("adults")
	ts.YFactor = 2
	ts.AddPoint(2000, 10)
	out := ts.Interpolate([]float64{2000}, 3)
	assert.Equal(t, []float64{60}, out)
}

func TestOutOfOrderInsertion(t *testing.T) {
	ts := New("adults")
	ts.AddPoint(2020, 200)
	ts.AddPoint(2000, 0)
	ts.AddPoint(2010, 100)
	assert.Equal(t, []float64{2000, 2010, 2020}, ts.T)
	assert.Equal(t, []float64{0, 100, 200}, ts.Y)
}
