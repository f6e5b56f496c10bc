// Copyright 2016 The Gofem Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package ele implements the §4.5-§4.8 integration variables:
// Compartment, Link, Characteristic and Parameter, each a tagged
// union over its variants (plain/source/sink/junction/timed for
// Compartment; plain/timed for Link) exposing one small operation
// set (preallocate/resolveOutflows/update/connect), dispatched with a
// single switch per call site.
//
// Grounded on gofem/ele/element.go's Element interface, which gives
// every finite element the same small operation set
// (SetEqs/InterpStarVars/AddToRhs/AddToKb) regardless of physical
// type; §9's REDESIGN FLAG calls for replacing dynamic dispatch
// across compartment subtypes with exactly this shape.
package ele

import (
	"math"

	"github.com/optimamodel/atomica/errs"
)

// CompartmentKind is the tagged-union discriminant for Compartment.
type CompartmentKind int

const (
	Plain CompartmentKind = iota
	Source
	Sink
	Junction
	Timed
)

func (k CompartmentKind) String() string {
	switch k {
	case Plain:
		return "plain"
	case Source:
		return "source"
	case Sink:
		return "sink"
	case Junction:
		return "junction"
	case Timed:
		return "timed"
	default:
		return "?"
	}
}

// Compartment is one compartmental state (§3 GLOSSARY) within a
// population's graph.
type Compartment struct {
	Code       string
	Population string
	Kind       CompartmentKind

	// DurationGroupParam names the duration-tracking parameter this
	// compartment belongs to, for Timed compartments and for
	// Junctions that are themselves part of a duration group (§4.5).
	DurationGroupParam string
	Rows               int // Timed only: ceil(duration*timescale/dt)

	vals []float64 // trajectory over tvec; for Timed this is the per-column row-sum

	// Timed-only column-major storage: timed[row + col*Rows].
	timed []float64

	// per-tick scalar accumulators, overwritten each tick by the links
	// and junction-balancing phases, consumed by update().
	pendingInflow  float64
	pendingOutflow float64

	// Timed-only per-tick row accumulators.
	rowInflow   []float64 // same-duration-group contributions, added to matching rows
	otherInflow float64   // contributions from outside the duration group, added to the newest row

	OutLinks []*Link
	InLinks  []*Link
	Flush    *Link // Timed only: the implicit flush link removing the oldest row each tick

	dt   float64
	tvec []float64
}

// NewCompartment constructs a Compartment of the given kind.
func NewCompartment(code, population string, kind CompartmentKind) *Compartment {
	return &Compartment{Code: code, Population: population, Kind: kind}
}

// Vals returns the full trajectory array (immutable view; §9's "Lazy
// vals property" note: here it is always a direct array since
// Preallocate eagerly allocates it).
func (c *Compartment) Vals() []float64 { return c.vals }

// At returns the compartment size at tick ti.
func (c *Compartment) At(ti int) float64 { return c.vals[ti] }

// Preallocate allocates the compartment's storage (§4.5). For a Timed
// compartment, rows = ceil(duration*timescale/dt), stored in a
// rows x len(tvec) column-major matrix for cache-efficient column
// sums (vals[ti] = sum over rows of timed[:,ti]).
func (c *Compartment) Preallocate(tvec []float64, dt float64, durationYears, timescale float64) error {
	c.tvec = tvec
	c.dt = dt
	n := len(tvec)
	c.vals = make([]float64, n)
	if c.Kind == Timed {
		rows := int(math.Ceil(durationYears * timescale / dt))
		if rows < 1 {
			rows = 1
		}
		c.Rows = rows
		c.timed = make([]float64, rows*n)
		c.rowInflow = make([]float64, rows)
		// Links may be wired before Preallocate runs (pop.Build does so),
		// so every TimedLink touching this compartment is sized here.
		for _, links := range [][]*Link{c.OutLinks, c.InLinks} {
			for _, l := range links {
				if l.Kind == LinkTimed && len(l.rowFlow) != rows {
					l.rowFrac = make([]float64, rows)
					l.rowFlow = make([]float64, rows)
				}
			}
		}
	}
	return nil
}

// timedIndex returns the flat index of (row, col) in column-major order.
func (c *Compartment) timedIndex(row, col int) int { return row + col*c.Rows }

// colSum sums column col across all rows (§8: "vals[ti] = sum(_vals[:,ti])
// exactly, given float summation order" — row-ascending order).
func (c *Compartment) colSum(col int) float64 {
	var s float64
	for r := 0; r < c.Rows; r++ {
		s += c.timed[c.timedIndex(r, col)]
	}
	return s
}

// RowVal returns the value of one duration sub-compartment at tick ti.
func (c *Compartment) RowVal(row, ti int) float64 { return c.timed[c.timedIndex(row, ti)] }

// setRowVal sets one duration sub-compartment value at tick ti.
func (c *Compartment) setRowVal(row, ti int, v float64) { c.timed[c.timedIndex(row, ti)] = v }

// SetInit writes the compartment's initial size (ti=0), distributing
// it evenly across rows for Timed compartments (§4.9).
func (c *Compartment) SetInit(v float64) {
	if c.Kind == Timed {
		per := v / float64(c.Rows)
		for r := 0; r < c.Rows; r++ {
			c.setRowVal(r, 0, per)
		}
		c.vals[0] = c.colSum(0)
		return
	}
	c.vals[0] = v
}

// Connect creates a Link from c to dest driven by parameter par. A
// Timed c creates a TimedLink iff dest is in the same duration group:
// a Timed compartment sharing c's duration-group parameter, or a
// Junction whose own duration group equals that parameter (§4.5). A
// Junction c that belongs to a duration group always creates a
// TimedLink.
func (c *Compartment) Connect(dest *Compartment, par string) *Link {
	kind := LinkPlain
	if c.Kind == Timed {
		sameGroup := (dest.Kind == Timed && dest.DurationGroupParam == c.DurationGroupParam) ||
			(dest.Kind == Junction && dest.DurationGroupParam == c.DurationGroupParam)
		if sameGroup && c.DurationGroupParam != "" {
			kind = LinkTimed
		}
	}
	if c.Kind == Junction && c.DurationGroupParam != "" {
		kind = LinkTimed
	}
	l := &Link{Parameter: par, From: c, To: dest, Kind: kind}
	if kind == LinkTimed {
		rows := c.Rows
		if rows == 0 {
			rows = dest.Rows
		}
		l.rowFrac = make([]float64, rows)
		l.rowFlow = make([]float64, rows)
	}
	c.OutLinks = append(c.OutLinks, l)
	dest.InLinks = append(dest.InLinks, l)
	return l
}

// ResolveOutflows converts each outlink's cached fractional share
// into an actual number to move this step (§4.5). If the total
// fraction exceeds 1, all outlinks are rescaled proportionally so the
// source does not go negative. Source compartments use the link's
// directly-set number amount. Sinks and junctions are no-ops here
// (junctions are resolved by the balancing pass).
func (c *Compartment) ResolveOutflows(ti int) {
	switch c.Kind {
	case Source:
		for _, l := range c.OutLinks {
			l.flow = l.numberAmt
		}
		return
	case Sink, Junction:
		return
	}

	total := 0.0
	for _, l := range c.OutLinks {
		total += l.fracTotal()
	}
	scale := 1.0
	if total > 1 {
		scale = 1 / total
	}

	if c.Kind == Timed {
		colTotal := c.colSum(ti)
		for r := 0; r < c.Rows; r++ {
			rowVal := c.RowVal(r, ti)
			for _, l := range c.OutLinks {
				if l.Kind == LinkTimed {
					l.rowFlow[r] = l.rowFrac[r] * scale * rowVal
				}
			}
		}
		for _, l := range c.OutLinks {
			if l.Kind == LinkPlain {
				l.flow = l.frac * scale * colTotal
			}
		}
		return
	}

	source := c.vals[ti]
	for _, l := range c.OutLinks {
		l.flow = l.frac * scale * source
	}
}

// ApplyFlows records the resolved flows of every outlink/inlink onto
// the pending accumulators consumed by Update. Must run after every
// compartment in the population has had ResolveOutflows called for
// this tick (outflows are symmetric with inflows link by link).
func (c *Compartment) ApplyFlows() {
	for _, l := range c.OutLinks {
		if l.Kind == LinkTimed {
			for r := range l.rowFlow {
				c.pendingOutflow += l.rowFlow[r]
			}
		} else {
			c.pendingOutflow += l.flow
		}
	}
	for _, l := range c.InLinks {
		dest := l.To
		if l.Kind == LinkTimed && dest.Kind == Timed {
			for r := range l.rowFlow {
				dest.rowInflow[r] += l.rowFlow[r]
			}
			continue
		}
		if l.Kind == LinkTimed {
			// timed link into a non-timed destination (e.g. flush into a sink):
			// all rows collapse into a scalar inflow.
			var sum float64
			for r := range l.rowFlow {
				sum += l.rowFlow[r]
			}
			dest.pendingInflow += sum
			continue
		}
		if dest.Kind == Timed {
			// a plain (non-duration-preserving) link into a timed
			// compartment lands in the newest row (§4.5).
			dest.otherInflow += l.flow
			continue
		}
		dest.pendingInflow += l.flow
	}
}

// resetPending clears the per-tick accumulators before a new round of
// ResolveOutflows/ApplyFlows; called by the engine at the end of
// update_comps each tick, once Update has consumed them.
func (c *Compartment) resetPending() {
	c.pendingInflow = 0
	c.pendingOutflow = 0
	c.otherInflow = 0
	for r := range c.rowInflow {
		c.rowInflow[r] = 0
	}
}

// ResetPending exposes resetPending to callers outside this package
// (the engine, once a tick's stored flows have been consumed by Update).
func (c *Compartment) ResetPending() { c.resetPending() }

// AddInit adds v to the initial (ti=0) size, distributing evenly
// across rows for a Timed compartment, reusing §4.9's initial-
// distribution convention for the junction "initial flush" pass of
// §4.10.
func (c *Compartment) AddInit(v float64) {
	if c.Kind == Timed {
		per := v / float64(c.Rows)
		for r := 0; r < c.Rows; r++ {
			c.setRowVal(r, 0, c.RowVal(r, 0)+per)
		}
		c.vals[0] = c.colSum(0)
		return
	}
	c.vals[0] += v
}

// ZeroInit clears the initial size back to zero, used once a
// junction's databook-seeded initial content has been fully
// redistributed to its outlinks during the initial flush (§4.10).
func (c *Compartment) ZeroInit() {
	c.vals[0] = 0
	for r := 0; r < c.Rows; r++ {
		c.setRowVal(r, 0, 0)
	}
}

// ReceiveFlush adds v, a Timed compartment's flush-link output, to
// this compartment at tick ti (§4.5). Called once both compartments
// have already advanced to ti: a flush amount is not part of the
// exit compartment's own pendingInflow, since it is computed inside
// the source's updateTimed rather than resolved by ResolveOutflows.
// Lands in the newest row for a Timed destination (it comes from
// outside its duration group, same convention as otherInflow).
func (c *Compartment) ReceiveFlush(v float64, ti int) {
	if v == 0 {
		return
	}
	if c.Kind == Timed {
		c.setRowVal(c.Rows-1, ti, c.RowVal(c.Rows-1, ti)+v)
		c.vals[ti] = c.colSum(ti)
		return
	}
	c.vals[ti] += v
}

// Update rolls the compartment forward to tick ti using the inflow
// and outflow accumulated during tick ti-1's links/junction phases
// (§4.5, §4.10). Plain compartments clamp at zero. Timed compartments
// additionally: subtract per-row TimedLink outflows (already folded
// into pendingOutflow via rowInflow bookkeeping... handled in
// updateTimed), subtract the flush link from row 0, shift all rows up
// by one, zero the newest row, add same-duration-group inflows to
// matching rows, and add all other inflows to the newest row.
func (c *Compartment) Update(ti int) error {
	switch c.Kind {
	case Sink:
		c.vals[ti] = c.vals[ti-1] + c.pendingInflow
	case Junction:
		c.vals[ti] = 0
	case Source:
		c.vals[ti] = 0
	case Timed:
		c.updateTimed(ti)
	default: // Plain
		v := c.vals[ti-1] + c.pendingInflow - c.pendingOutflow
		if v < 0 {
			v = 0
		}
		c.vals[ti] = v
	}
	if math.IsNaN(c.vals[ti]) || math.IsInf(c.vals[ti], 0) {
		return errs.New(errs.NumericError, "non-finite value in compartment %q", c.Code).WithVariable(c.Code).WithTime(c.tvec[ti])
	}
	return nil
}

// updateTimed implements the row-shift keyring update (§4.5).
func (c *Compartment) updateTimed(ti int) {
	prev := ti - 1
	// start from the previous column, subtracting timed outflows per row.
	rowVals := make([]float64, c.Rows)
	for r := 0; r < c.Rows; r++ {
		rowVals[r] = c.RowVal(r, prev)
	}
	for _, l := range c.OutLinks {
		if l.Kind == LinkTimed {
			for r := 0; r < c.Rows; r++ {
				rowVals[r] -= l.rowFlow[r]
			}
		}
	}
	// the flush link empties whatever remains of row 0 (oldest bucket)
	// after other timed outflows have been subtracted from it.
	if c.Flush != nil {
		c.Flush.flow = rowVals[0]
		rowVals[0] = 0
	}
	// shift rows up by one (advance the keyring): row r <- row r+1.
	shifted := make([]float64, c.Rows)
	for r := 0; r < c.Rows-1; r++ {
		shifted[r] = rowVals[r+1]
		if shifted[r] < 0 {
			shifted[r] = 0
		}
	}
	// newest row starts at zero, then receives contributions.
	shifted[c.Rows-1] = 0
	for r := 0; r < c.Rows; r++ {
		shifted[r] += c.rowInflow[r]
	}
	shifted[c.Rows-1] += c.otherInflow
	for r := 0; r < c.Rows; r++ {
		if shifted[r] < 0 {
			shifted[r] = 0
		}
		c.setRowVal(r, ti, shifted[r])
	}
	c.vals[ti] = c.colSum(ti)
}
