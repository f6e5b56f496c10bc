// Copyright 2016 The Gofem Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ele

import "math"

// ValueAt is satisfied by both Compartment and Characteristic,
// letting a Characteristic's components be a mix of either (§3: a
// characteristic's components are "compartment or characteristic
// code names", resolved transitively).
type ValueAt interface {
	At(ti int) float64
}

// Characteristic is a derived quantity: the sum of its components,
// optionally divided by a denominator (§3 GLOSSARY, §4.6).
type Characteristic struct {
	Code, Population string
	Components       []ValueAt
	Denominator      ValueAt // nil if none

	vals    []float64
	Dynamic bool // whether another object depends on it during the loop (§3)
}

// NewCharacteristic constructs a Characteristic.
func NewCharacteristic(code, population string) *Characteristic {
	return &Characteristic{Code: code, Population: population}
}

// Preallocate allocates the trajectory array.
func (c *Characteristic) Preallocate(tvec []float64) {
	c.vals = make([]float64, len(tvec))
}

// Vals returns the full trajectory (direct array view; see ele.ValueAt
// doc and §9's "lazy vals property" note — cached eagerly here since
// Preallocate always runs before Update).
func (c *Characteristic) Vals() []float64 { return c.vals }

// At returns the characteristic's value at tick ti.
func (c *Characteristic) At(ti int) float64 { return c.vals[ti] }

// Update sums the included components (recursively, since a nested
// Characteristic's At() already reflects its own sum) and divides by
// the denominator if present, with the §4.6/§8 policy: 0/0 -> 0,
// x/0 -> +Inf for x > 0.
func (c *Characteristic) Update(ti int) {
	var num float64
	for _, comp := range c.Components {
		num += comp.At(ti)
	}
	if c.Denominator == nil {
		c.vals[ti] = num
		return
	}
	den := c.Denominator.At(ti)
	switch {
	case den == 0 && num == 0:
		c.vals[ti] = 0
	case den == 0:
		c.vals[ti] = math.Inf(1)
	default:
		c.vals[ti] = num / den
	}
}

// MarkDynamic marks this characteristic (and, transitively, every
// nested Characteristic it includes) dynamic, per §4.6: "Characteristics
// mark all their components dynamic when they themselves are marked
// dynamic."
func (c *Characteristic) MarkDynamic() {
	if c.Dynamic {
		return
	}
	c.Dynamic = true
	for _, comp := range c.Components {
		if nested, ok := comp.(*Characteristic); ok {
			nested.MarkDynamic()
		}
	}
	if nested, ok := c.Denominator.(*Characteristic); ok {
		nested.MarkDynamic()
	}
}
