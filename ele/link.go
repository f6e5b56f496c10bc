// Copyright 2016 The Gofem Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ele

// LinkKind is the tagged-union discriminant for Link.
type LinkKind int

const (
	LinkPlain LinkKind = iota
	LinkTimed
)

// Link is a directed transition between two compartments, driven by
// one parameter (§3 GLOSSARY). A Plain link carries a scalar flow
// rate per step; a Timed link carries a matrix matching its source
// timed compartment, preserving per-row (per-age/per-duration) flows
// (§4.5).
type Link struct {
	Parameter string
	From, To  *Compartment
	Kind      LinkKind

	// Plain (and used as the "other" fraction for Timed-source, non-timed outlinks):
	frac      float64
	flow      float64
	numberAmt float64 // for a link out of a Source compartment, in "number" units

	// Timed: per-row fraction/flow, shared by every row of the source.
	rowFrac []float64
	rowFlow []float64
}

// NewFlushLink builds the implicit flush link that removes the oldest
// row of a Timed compartment each tick and carries it to dest, the
// compartment this duration group's members exit into once they have
// aged past its maximum duration (§4.5 GLOSSARY). Its flow is resolved
// synchronously inside updateTimed rather than through the ordinary
// ResolveOutflows/ApplyFlows pipeline, so unlike Connect it does not
// register itself on c.OutLinks or dest.InLinks — the engine reads
// FlushFlow() after updateTimed runs and forwards it to dest directly.
func NewFlushLink(c *Compartment, dest *Compartment) *Link {
	l := &Link{Parameter: c.DurationGroupParam, From: c, To: dest, Kind: LinkTimed}
	c.Flush = l
	return l
}

// FlushFlow returns the amount most recently moved out of row 0 by
// this flush link (set by updateTimed each tick).
func (l *Link) FlushFlow() float64 { return l.flow }

// SetFrac sets the per-step fraction this link moves (§4.10
// update_links); uniform across every row for a Timed link.
func (l *Link) SetFrac(frac float64) {
	l.frac = frac
	for r := range l.rowFrac {
		l.rowFrac[r] = frac
	}
}

// SetNumberAmt sets the directly-computed flow for a link leaving a
// Source compartment, in "number" units (§4.5, §4.10).
func (l *Link) SetNumberAmt(amt float64) { l.numberAmt = amt }

// Flow returns the number of people this link moved during the last
// ResolveOutflows call (Plain links and the scalar view of Timed links).
func (l *Link) Flow() float64 {
	if l.Kind == LinkTimed {
		var s float64
		for _, v := range l.rowFlow {
			s += v
		}
		return s
	}
	return l.flow
}

// SetFlowDirect assigns this link's resolved flow directly, bypassing
// the frac/ResolveOutflows machinery: a junction's total inflow is only
// known after summing its InLinks, so its outlinks' flows are set
// straight from the balancing pass (§4.10 update_junctions) instead of
// going through SetFrac+ResolveOutflows. Spread evenly across rows for
// a Timed outlink, since a junction does not track per-row provenance
// of the people passing through it.
func (l *Link) SetFlowDirect(v float64) {
	l.flow = v
	if l.Kind == LinkTimed {
		per := v / float64(len(l.rowFlow))
		for r := range l.rowFlow {
			l.rowFlow[r] = per
		}
	}
}

// fracTotal returns the fraction used when summing a source
// compartment's total outgoing fraction (uniform across rows for a
// Timed link, by construction — see SetFrac).
func (l *Link) fracTotal() float64 { return l.frac }
