// Copyright 2016 The Gofem Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package engine implements the §4.9 initialization solver and the
// §4.10 Model.process() integration loop: the staged time-stepping
// driver that ties Framework, ParameterSet, pop.Population and
// program.ProgramSet together.
//
// Grounded on gofem/fem/fem.go's FEM.Run/SetStage/ZeroStage staged
// time-loop shape: a Build phase that wires the object graph and
// solves for consistent initial values, followed by a Process phase
// that steps tick by tick through a fixed phase order.
package engine

import (
	"math"

	"github.com/optimamodel/atomica/errs"
)

// BuildTimeVector constructs the simulation tick grid (§6):
// tvec = arange(t_start, t_end+dt/2, dt).
func BuildTimeVector(tStart, tEnd, dt float64) ([]float64, error) {
	if dt <= 0 || math.IsNaN(dt) || math.IsInf(dt, 0) {
		return nil, errs.New(errs.FrameworkError, "dt must be positive and finite, got %v", dt)
	}
	if tEnd < tStart {
		return nil, errs.New(errs.FrameworkError, "t_end (%v) must be >= t_start (%v)", tEnd, tStart)
	}
	n := int(math.Floor((tEnd-tStart)/dt+0.5)) + 1
	tvec := make([]float64, n)
	for i := range tvec {
		tvec[i] = tStart + float64(i)*dt
	}
	return tvec, nil
}
