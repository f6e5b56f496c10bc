// Copyright 2016 The Gofem Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ele

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/optimamodel/atomica/expr"
)

func linspace(t0, t1, dt float64) []float64 {
	var out []float64
	for t := t0; t <= t1+1e-9; t += dt {
		out = append(out, t)
	}
	return out
}

func TestPlainCompartmentFlow(t *testing.T) {
	tvec := linspace(0, 2, 1)
	src := NewCompartment("sus", "adults", Plain)
	dst := NewCompartment("inf", "adults", Plain)
	require.NoError(t, src.Preallocate(tvec, 1, 0, 0))
	require.NoError(t, dst.Preallocate(tvec, 1, 0, 0))
	src.SetInit(100)
	dst.SetInit(0)

	l := src.Connect(dst, "foi")
	l.SetFrac(0.1)

	for ti := 1; ti < len(tvec); ti++ {
		src.resetPending()
		dst.resetPending()
		src.ResolveOutflows(ti - 1)
		src.ApplyFlows()
		dst.ApplyFlows()
		require.NoError(t, src.Update(ti))
		require.NoError(t, dst.Update(ti))
	}
	assert.InDelta(t, 90, src.At(1), 1e-9)
	assert.InDelta(t, 10, dst.At(1), 1e-9)
	assert.InDelta(t, 81, src.At(2), 1e-9)
	assert.InDelta(t, 19, dst.At(2), 1e-9)
}

func TestOutflowRescaleWhenOverCommitted(t *testing.T) {
	tvec := linspace(0, 1, 1)
	src := NewCompartment("a", "adults", Plain)
	d1 := NewCompartment("b", "adults", Plain)
	d2 := NewCompartment("c", "adults", Plain)
	for _, c := range []*Compartment{src, d1, d2} {
		require.NoError(t, c.Preallocate(tvec, 1, 0, 0))
	}
	src.SetInit(100)
	l1 := src.Connect(d1, "p1")
	l1.SetFrac(0.7)
	l2 := src.Connect(d2, "p2")
	l2.SetFrac(0.6)

	src.resetPending()
	d1.resetPending()
	d2.resetPending()
	src.ResolveOutflows(0)
	src.ApplyFlows()
	d1.ApplyFlows()
	d2.ApplyFlows()
	require.NoError(t, src.Update(1))
	require.NoError(t, d1.Update(1))
	require.NoError(t, d2.Update(1))

	// total fraction 1.3 > 1: both links are rescaled by 1/1.3.
	assert.InDelta(t, 0, src.At(1), 1e-9)
	assert.InDelta(t, 100*0.7/1.3, d1.At(1), 1e-9)
	assert.InDelta(t, 100*0.6/1.3, d2.At(1), 1e-9)
}

func TestSourceCompartmentNumberFlow(t *testing.T) {
	tvec := linspace(0, 1, 1)
	src := NewCompartment("births", "adults", Source)
	dst := NewCompartment("sus", "adults", Plain)
	require.NoError(t, src.Preallocate(tvec, 1, 0, 0))
	require.NoError(t, dst.Preallocate(tvec, 1, 0, 0))
	dst.SetInit(50)

	l := src.Connect(dst, "birthrate")
	l.SetNumberAmt(5)

	src.resetPending()
	dst.resetPending()
	src.ResolveOutflows(0)
	src.ApplyFlows()
	dst.ApplyFlows()
	require.NoError(t, src.Update(1))
	require.NoError(t, dst.Update(1))

	assert.Equal(t, 0.0, src.At(1))
	assert.InDelta(t, 55, dst.At(1), 1e-9)
}

func TestTimedCompartmentRowShiftAndFlush(t *testing.T) {
	tvec := linspace(0, 3, 1)
	c := NewCompartment("chronic", "adults", Timed)
	c.DurationGroupParam = "chronicdur"
	require.NoError(t, c.Preallocate(tvec, 1, 3, 1)) // duration 3y, timescale 1 -> 3 rows
	require.Equal(t, 3, c.Rows)
	c.SetInit(30) // 10 per row
	grad := NewCompartment("recovered", "adults", Plain)
	require.NoError(t, grad.Preallocate(tvec, 1, 0, 0))
	NewFlushLink(c, grad)

	for ti := 1; ti < len(tvec); ti++ {
		c.resetPending()
		c.ResolveOutflows(ti - 1)
		c.ApplyFlows()
		require.NoError(t, c.Update(ti))
		grad.resetPending()
		require.NoError(t, grad.Update(ti))
		grad.ReceiveFlush(c.Flush.FlushFlow(), ti)
	}
	// each tick: row0 flushed (10 out), rows shift up, new row0 = old row1,
	// new row1 = old row2, new row2 = 0 (no inflow configured).
	assert.InDelta(t, 20, c.At(1), 1e-9)
	assert.InDelta(t, 10, c.At(2), 1e-9)
	assert.InDelta(t, 0, c.At(3), 1e-9)
	// every flushed row 0 lands in the duration group's exit compartment.
	assert.InDelta(t, 30, grad.At(3), 1e-9)
}

func TestTimedCompartmentOtherInflowLandsInNewestRow(t *testing.T) {
	tvec := linspace(0, 1, 1)
	c := NewCompartment("chronic", "adults", Timed)
	c.DurationGroupParam = "chronicdur"
	require.NoError(t, c.Preallocate(tvec, 1, 2, 1)) // 2 rows
	c.SetInit(0)
	grad := NewCompartment("recovered", "adults", Plain)
	require.NoError(t, grad.Preallocate(tvec, 1, 0, 0))
	NewFlushLink(c, grad)

	src := NewCompartment("sus", "adults", Plain)
	require.NoError(t, src.Preallocate(tvec, 1, 0, 0))
	src.SetInit(40)
	l := src.Connect(c, "incidence")
	l.SetFrac(0.25)

	src.resetPending()
	c.resetPending()
	src.ResolveOutflows(0)
	src.ApplyFlows()
	c.ApplyFlows()
	require.NoError(t, src.Update(1))
	require.NoError(t, c.Update(1))

	assert.InDelta(t, 10, c.At(1), 1e-9)
	assert.InDelta(t, 10, c.RowVal(1, 1), 1e-9) // newest row holds the inflow
	assert.InDelta(t, 0, c.RowVal(0, 1), 1e-9)
}

func TestCharacteristicSumAndNestedDynamic(t *testing.T) {
	tvec := linspace(0, 0, 1)
	a := NewCompartment("a", "adults", Plain)
	b := NewCompartment("b", "adults", Plain)
	require.NoError(t, a.Preallocate(tvec, 1, 0, 0))
	require.NoError(t, b.Preallocate(tvec, 1, 0, 0))
	a.SetInit(10)
	b.SetInit(20)

	alive := NewCharacteristic("alive", "adults")
	alive.Components = []ValueAt{a, b}
	alive.Preallocate(tvec)
	alive.Update(0)
	assert.Equal(t, 30.0, alive.At(0))

	prevalence := NewCharacteristic("prevalence", "adults")
	prevalence.Components = []ValueAt{b}
	prevalence.Denominator = alive
	prevalence.Preallocate(tvec)
	prevalence.Update(0)
	assert.InDelta(t, 20.0/30.0, prevalence.At(0), 1e-9)

	prevalence.MarkDynamic()
	assert.True(t, prevalence.Dynamic)
	assert.True(t, alive.Dynamic)
}

func TestCharacteristicZeroOverZeroAndPositiveOverZero(t *testing.T) {
	tvec := linspace(0, 0, 1)
	num := NewCompartment("num", "adults", Plain)
	den := NewCompartment("den", "adults", Plain)
	require.NoError(t, num.Preallocate(tvec, 1, 0, 0))
	require.NoError(t, den.Preallocate(tvec, 1, 0, 0))
	num.SetInit(0)
	den.SetInit(0)

	c := NewCharacteristic("ratio", "adults")
	c.Components = []ValueAt{num}
	c.Denominator = den
	c.Preallocate(tvec)
	c.Update(0)
	assert.Equal(t, 0.0, c.At(0))

	num.vals[0] = 5
	c.Update(0)
	assert.True(t, math.IsInf(c.At(0), 1))
}

func TestParameterDataMode(t *testing.T) {
	tvec := linspace(0, 1, 1)
	p := NewParameter("recovrate", "adults", ParamData)
	p.Preallocate(tvec, 1)
	p.SetDataVals([]float64{0.1, 0.2})
	p.SetClip(0, 0.15)
	require.NoError(t, p.Update(0, nil, nil))
	require.NoError(t, p.Update(1, nil, nil))
	assert.Equal(t, 0.1, p.At(0))
	assert.Equal(t, 0.15, p.At(1)) // clipped down from 0.2
}

func TestParameterFunctionMode(t *testing.T) {
	src, err := expr.Parse("2 * x + 1")
	require.NoError(t, err)
	tvec := linspace(0, 0, 1)
	p := NewParameter("derived", "adults", ParamFunction)
	p.Preallocate(tvec, 1)
	p.Expr = src
	require.NoError(t, p.Update(0, map[string]float64{"x": 3}, nil))
	assert.Equal(t, 7.0, p.At(0))
}

func TestParameterDerivativeModeIntegrates(t *testing.T) {
	src, err := expr.Parse("growth")
	require.NoError(t, err)
	tvec := linspace(0, 2, 1)
	p := NewParameter("cumulative", "adults", ParamDerivative)
	p.Preallocate(tvec, 1)
	p.Expr = src
	p.vals[0] = 10
	require.NoError(t, p.Update(1, map[string]float64{"growth": 5}, nil))
	require.NoError(t, p.Update(2, map[string]float64{"growth": 5}, nil))
	assert.Equal(t, 15.0, p.At(1))
	assert.Equal(t, 20.0, p.At(2))
}

func TestParameterSkipWindowUsesDataFallback(t *testing.T) {
	src, err := expr.Parse("100")
	require.NoError(t, err)
	tvec := linspace(0, 2, 1)
	p := NewParameter("switched", "adults", ParamFunction)
	p.Preallocate(tvec, 1)
	p.Expr = src
	p.SetDataVals([]float64{1, 2, 3})
	p.SetSkipWindow(1, 1)
	require.NoError(t, p.Update(0, nil, nil))
	require.NoError(t, p.Update(1, nil, nil))
	require.NoError(t, p.Update(2, nil, nil))
	assert.Equal(t, 100.0, p.At(0))
	assert.Equal(t, 2.0, p.At(1)) // inside skip window: databook value kept
	assert.Equal(t, 100.0, p.At(2))
}
