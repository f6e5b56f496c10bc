// Copyright 2016 The Gofem Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package engine

import (
	"context"

	"github.com/cpmech/gosl/io"
)

// Process runs the full §4.10 integration loop: the initial-tick
// pre-sequence, then update_comps/update_pars/update_links/
// update_junctions for every remaining tick. Build must have already
// solved the initial conditions (§4.9) before Process is called.
//
// ctx is checked between ticks; on cancellation Process returns early
// with the context's error, leaving every compartment/parameter/
// characteristic trajectory populated up to m.LastTick so a caller can
// still build a partial Result (§5).
//
// Grounded on gofem/fem/fem.go's Run, which likewise drives a fixed
// time-stepping loop (ts.Run -> one Newton solve per step) checking a
// stop condition between steps; here the loop body is the four
// compartmental update phases instead of a nonlinear solve.
func (m *Model) Process(ctx context.Context) error {
	if err := m.updatePars(0); err != nil {
		return err
	}
	m.initialFlushJunctions()
	if err := m.updatePars(0); err != nil {
		return err
	}
	m.updateLinksAndJunctions(0)
	m.LastTick = 0

	for ti := 1; ti < len(m.TVec); ti++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if err := m.updateComps(ti); err != nil {
			return err
		}
		if err := m.updatePars(ti); err != nil {
			return err
		}
		m.updateLinksAndJunctions(ti)
		m.LastTick = ti

		if m.Settings.Verbose && ti%max(1, len(m.TVec)/10) == 0 {
			io.Pf("> atomica: tick %d/%d (t=%g)\n", ti, len(m.TVec)-1, m.TVec[ti])
		}
	}
	return nil
}
