// Copyright 2016 The Gofem Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package settings carries the tolerances and flags threaded explicitly
// through Build and Process, replacing gofem's global mutable solver
// constants (inp.SolverData's package-level defaults) per the §9
// REDESIGN FLAG: "Global mutable state ... pass a Settings struct
// through the build and integration functions."
package settings

// Settings holds the numerical tolerances and run-time flags passed to
// the initialization solver and the integration loop.
type Settings struct {
	// InitResidualTol bounds ||Ax-b||, each row's |Ax-b|, and how
	// negative a solved compartment size may be in the §4.9
	// least-squares solve before BadInitialization is raised.
	InitResidualTol float64

	// InitNegativeTol is a separate tolerance for negative solved
	// compartment sizes; the solver does not read it (the negative-size
	// check uses InitResidualTol).
	InitNegativeTol float64

	// JunctionBalanceTol is the tolerance for |junction value| and
	// |inflow-outflow| after update_junctions (§8: within 1e-9); no
	// engine phase reads it.
	JunctionBalanceTol float64

	// DtMin is a lower bound for the simulation step size; Build does
	// not check dt against it.
	DtMin float64

	// Verbose enables gofem-style colourised progress messages (io.Pf family).
	Verbose bool
}

// Default returns the tolerances used unless a caller overrides them,
// mirroring inp.SolverData.SetDefault's role for gofem's solver.
func Default() Settings {
	return Settings{
		InitResidualTol:    1e-6,
		InitNegativeTol:    1e-6,
		JunctionBalanceTol: 1e-9,
		DtMin:              1e-8,
		Verbose:            false,
	}
}
