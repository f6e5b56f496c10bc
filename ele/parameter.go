// Copyright 2016 The Gofem Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ele

import (
	"github.com/cpmech/gosl/utl"

	"github.com/optimamodel/atomica/errs"
	"github.com/optimamodel/atomica/expr"
)

// ParamMode is the tagged-union discriminant for Parameter's three
// evaluation modes (§4.7): a parameter is driven either directly by
// interpolated databook data, by a dynamic function re-evaluated every
// tick, or by a dynamic function whose result is a rate integrated
// forward by explicit Euler step (a "derivative" parameter, §4.8).
type ParamMode int

const (
	ParamData ParamMode = iota
	ParamFunction
	ParamDerivative
)

func (m ParamMode) String() string {
	switch m {
	case ParamData:
		return "data"
	case ParamFunction:
		return "function"
	case ParamDerivative:
		return "derivative"
	default:
		return "?"
	}
}

// Parameter is one parameter's per-population trajectory (§4.7, §4.8).
type Parameter struct {
	Code, Population string
	Mode             ParamMode

	// Expr drives ParamFunction and ParamDerivative; nil for ParamData.
	Expr *expr.Expression

	// clip bounds, both optional (§4.7 "limits").
	hasLo, hasHi bool
	lo, hi       float64

	// SkipFrom/SkipTo: while tvec[ti] is in [from, to], the function is
	// not evaluated and the databook value is used verbatim instead
	// (§4.7 "skip function" window). Both zero-valued (hasSkip=false)
	// means no skip window.
	hasSkip          bool
	skipFrom, skipTo float64

	vals []float64
	tvec []float64
	dt   float64
}

// NewParameter constructs a Parameter of the given evaluation mode.
func NewParameter(code, population string, mode ParamMode) *Parameter {
	return &Parameter{Code: code, Population: population, Mode: mode}
}

// Preallocate allocates the trajectory array and records the grid.
func (p *Parameter) Preallocate(tvec []float64, dt float64) {
	p.tvec = tvec
	p.dt = dt
	p.vals = make([]float64, len(tvec))
}

// SetClip installs a [lo, hi] output clamp (§4.7 "limits").
func (p *Parameter) SetClip(lo, hi float64) {
	p.hasLo, p.lo = true, lo
	p.hasHi, p.hi = true, hi
}

// SetSkipWindow installs a time window during which function evaluation
// is skipped in favour of the databook-interpolated value (§4.7).
func (p *Parameter) SetSkipWindow(from, to float64) {
	p.hasSkip, p.skipFrom, p.skipTo = true, from, to
}

// SetDataVals installs precomputed (databook-interpolated) values; used
// directly by ParamData, and as the fallback source within a skip
// window for ParamFunction/ParamDerivative.
func (p *Parameter) SetDataVals(vals []float64) {
	copy(p.vals, vals)
}

// Vals returns the full trajectory array.
func (p *Parameter) Vals() []float64 { return p.vals }

// At returns the parameter's value at tick ti.
func (p *Parameter) At(ti int) float64 { return p.vals[ti] }

func (p *Parameter) clip(v float64) float64 {
	if p.hasLo {
		v = utl.Max(v, p.lo)
	}
	if p.hasHi {
		v = utl.Min(v, p.hi)
	}
	return v
}

// SetValue overwrites the trajectory at ti directly, clipped to the
// configured limits; used for program-driven overrides (§4.11), which
// replace a tick's resolved value regardless of evaluation mode.
func (p *Parameter) SetValue(ti int, v float64) {
	p.vals[ti] = p.clip(v)
}

func (p *Parameter) inSkipWindow(t float64) bool {
	return p.hasSkip && t >= p.skipFrom && t <= p.skipTo
}

// Update advances the parameter to tick ti. vars/aggVals are the
// dependency values and population-aggregation results the engine
// resolved for this tick, passed straight through to expr.Evaluate.
// ParamData requires no evaluation: its trajectory is already fully
// populated by SetDataVals, so Update only (re)applies the clip.
func (p *Parameter) Update(ti int, vars map[string]float64, aggVals []float64) error {
	switch p.Mode {
	case ParamData:
		p.vals[ti] = p.clip(p.vals[ti])
		return nil

	case ParamFunction:
		if p.inSkipWindow(p.tvec[ti]) {
			p.vals[ti] = p.clip(p.vals[ti])
			return nil
		}
		v, err := p.Expr.Evaluate(vars, aggVals)
		if err != nil {
			return errs.Wrap(errs.NumericError, err, "evaluating parameter %q", p.Code).WithVariable(p.Code).WithTime(p.tvec[ti])
		}
		p.vals[ti] = p.clip(v)
		return nil

	case ParamDerivative:
		if ti == 0 {
			// Euler integration has no ti-1 to step from; tick 0 keeps
			// the databook-supplied starting value (§4.8).
			p.vals[0] = p.clip(p.vals[0])
			return nil
		}
		if p.inSkipWindow(p.tvec[ti]) {
			p.vals[ti] = p.clip(p.vals[ti])
			return nil
		}
		rate, err := p.Expr.Evaluate(vars, aggVals)
		if err != nil {
			return errs.Wrap(errs.NumericError, err, "evaluating derivative parameter %q", p.Code).WithVariable(p.Code).WithTime(p.tvec[ti])
		}
		p.vals[ti] = p.clip(p.vals[ti-1] + p.dt*rate)
		return nil
	}
	return nil
}
