// Copyright 2016 The Gofem Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package series implements the §4.2 TimeSeries: a per-key set of
// time-stamped values (or a constant assumption), interpolated onto
// the simulation time grid with piecewise-linear interior behaviour
// and constant extrapolation outside the observed range.
//
// Grounded on gofem/inp/func.go's FuncsData, which looks up a named
// function and evaluates it through the single-method fun.Func
// contract (F(t, x) float64); TimeSeries implements the same
// evaluate-onto-a-grid contract but is data-driven rather than a
// closed registry of analytic function types.
package series

import "sort"

// TimeSeries maps time points to values for one (population, code
// name) key, optionally backed by a single constant assumption
// instead of explicit points (§4.2).
type TimeSeries struct {
	Key           string
	HasAssumption bool
	Assumption    float64
	T             []float64
	Y             []float64
	Format        string
	YFactor       float64 // per-key calibration scale; 0 is treated as 1 (unset)
}

// New returns an empty TimeSeries for the given key with YFactor=1.
func New(key string) *TimeSeries {
	return &TimeSeries{Key: key, YFactor: 1}
}

// AddPoint appends a (t, y) observation; points are kept sorted by t.
func (ts *TimeSeries) AddPoint(t, y float64) {
	idx := sort.SearchFloat64s(ts.T, t)
	ts.T = append(ts.T, 0)
	ts.Y = append(ts.Y, 0)
	copy(ts.T[idx+1:], ts.T[idx:len(ts.T)-1])
	copy(ts.Y[idx+1:], ts.Y[idx:len(ts.Y)-1])
	ts.T[idx] = t
	ts.Y[idx] = y
}

// SetAssumption sets a constant-value assumption used when no
// explicit points are available, or as the sole value when points are
// empty.
func (ts *TimeSeries) SetAssumption(v float64) {
	ts.HasAssumption = true
	ts.Assumption = v
}

// yfactor returns the effective per-key scale (defaulting to 1 when unset).
func (ts *TimeSeries) yfactor() float64 {
	if ts.YFactor == 0 {
		return 1
	}
	return ts.YFactor
}

// valueAt returns the un-scaled interpolated value at a single time,
// using piecewise-linear interpolation inside [T[0], T[len-1]] and
// constant extrapolation (first/last observed value) outside it
// (§4.2, tested by §8's "Interpolation is constant-extrapolating").
func (ts *TimeSeries) valueAt(t float64) float64 {
	if len(ts.T) == 0 {
		if ts.HasAssumption {
			return ts.Assumption
		}
		return 0
	}
	if len(ts.T) == 1 {
		return ts.Y[0]
	}
	if t <= ts.T[0] {
		return ts.Y[0]
	}
	last := len(ts.T) - 1
	if t >= ts.T[last] {
		return ts.Y[last]
	}
	i := sort.SearchFloat64s(ts.T, t)
	if i < len(ts.T) && ts.T[i] == t {
		return ts.Y[i]
	}
	// i is the first index with T[i] > t; interpolate between i-1 and i.
	t0, t1 := ts.T[i-1], ts.T[i]
	y0, y1 := ts.Y[i-1], ts.Y[i]
	frac := (t - t0) / (t1 - t0)
	return y0 + frac*(y1-y0)
}

// ValueAt evaluates the series at a single time t, scaled the same way
// as Interpolate; used where only one tick's value is needed (e.g. a
// program's spending/capacity lookup) rather than the full grid.
func (ts *TimeSeries) ValueAt(t, metaYFactor float64) float64 {
	return ts.valueAt(t) * ts.yfactor() * metaYFactor
}

// Interpolate evaluates the series onto tvec, scaled by this series'
// own y-factor and the parset-wide metaYFactor (§4.2: "A parset-wide
// meta-y-factor multiplies all interpolated outputs").
func (ts *TimeSeries) Interpolate(tvec []float64, metaYFactor float64) []float64 {
	scale := ts.yfactor() * metaYFactor
	out := make([]float64, len(tvec))
	for i, t := range tvec {
		out[i] = ts.valueAt(t) * scale
	}
	return out
}
