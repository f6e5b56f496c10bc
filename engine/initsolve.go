// Copyright 2016 The Gofem Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package engine

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/optimamodel/atomica/errs"
)

// initTarget is one row of the §4.9 least-squares system: the
// databook-interpolated value of a compartment or (denominator-scaled)
// characteristic at t_init, expressed as a linear combination of
// compartment sizes.
type initTarget struct {
	label string    // compartment or characteristic code, for diagnostics
	row   []float64 // 0/1 inclusion coefficients over the compartment index
	value float64    // target b_i
}

// solveInitialSizes solves min ||A x - b||^2 for the initial sizes of
// every plain/source/sink/timed compartment in one population (§4.9),
// returning x clamped to >= 0 element-wise, indexed the same as comps.
func solveInitialSizes(comps []string, targets []initTarget, tol float64) ([]float64, error) {
	n := len(comps)
	m := len(targets)
	if m == 0 {
		return make([]float64, n), nil
	}

	aData := make([]float64, m*n)
	bData := make([]float64, m)
	for i, tgt := range targets {
		copy(aData[i*n:(i+1)*n], tgt.row)
		bData[i] = tgt.value
	}
	A := mat.NewDense(m, n, aData)
	b := mat.NewVecDense(m, bData)

	var x mat.VecDense
	if err := x.SolveVec(A, b); err != nil {
		return nil, errs.Wrap(errs.BadInitialization, err, "least-squares initialization solve failed")
	}

	xs := make([]float64, n)
	for i := 0; i < n; i++ {
		xs[i] = x.AtVec(i)
	}

	// residual and diagnostic trace.
	var resid mat.VecDense
	resid.MulVec(A, &x)
	resid.SubVec(&resid, b)
	resNorm := mat.Norm(&resid, 2)

	var failing []string
	for i, tgt := range targets {
		if math.Abs(resid.AtVec(i)) > tol {
			failing = append(failing, fmt.Sprintf("%s (|Ax-b|=%.3g)", tgt.label, math.Abs(resid.AtVec(i))))
		}
	}
	var negative []string
	for i, v := range xs {
		if v < -tol {
			negative = append(negative, fmt.Sprintf("%s (%.3g)", comps[i], v))
		}
	}

	if resNorm > tol || len(failing) > 0 || len(negative) > 0 {
		sort.Strings(failing)
		sort.Strings(negative)
		return nil, errs.New(errs.BadInitialization,
			"initialization solve did not converge: residual=%.3g, failing characteristics=%v, negative compartments=%v",
			resNorm, failing, negative)
	}

	for i := range xs {
		if xs[i] < 0 {
			xs[i] = 0
		}
	}
	return xs, nil
}
