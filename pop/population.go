// Copyright 2016 The Gofem Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package pop builds one Population: the per-population object graph
// of Compartments, Links, Characteristics and Parameters instantiated
// from a Framework (§2 #6).
//
// Grounded on gofem/fem/domain.go's NewDomains/Domain.SetStage, which
// builds a per-region Domain (Nodes/Elems plus the Vid2node/Cid2elem
// lookup maps) from Framework-equivalent input data; Population plays
// the same role with its Compartments/Characteristics/Parameters maps
// in place of Vid2node/Cid2elem.
package pop

import (
	"math"
	"sort"

	"github.com/katalvlaran/lvlath/core"
	"github.com/katalvlaran/lvlath/dfs"

	"github.com/optimamodel/atomica/ele"
	"github.com/optimamodel/atomica/errs"
	"github.com/optimamodel/atomica/expr"
	"github.com/optimamodel/atomica/framework"
)

// Population is one population type's instantiated object graph.
type Population struct {
	Name string

	Compartments map[string]*ele.Compartment
	CompOrder    []string // framework declaration order

	Characteristics map[string]*ele.Characteristic
	CharOrder       []string

	Parameters map[string]*ele.Parameter
	ParOrder   []string

	// JunctionOrder is the balancing order junctions must be resolved
	// in during a tick, so that a junction fed by another junction is
	// processed only after its own inflow has been finalised (§4.10,
	// resolving the §9 Open Question on junction cycles).
	JunctionOrder []string

	graph *core.Graph // vertices = compartment codes, edges = links (full graph)
}

// Build instantiates a Population of the given type from fw, which
// must already have had Validate called successfully.
func Build(fw *framework.Framework, popType string) (*Population, error) {
	p := &Population{
		Name:            popType,
		Compartments:    map[string]*ele.Compartment{},
		Characteristics: map[string]*ele.Characteristic{},
		Parameters:      map[string]*ele.Parameter{},
		graph:           core.NewGraph(core.WithDirected(true)),
	}

	if err := p.buildCompartments(fw); err != nil {
		return nil, err
	}
	if err := p.buildLinks(fw); err != nil {
		return nil, err
	}
	if err := p.buildJunctionOrder(); err != nil {
		return nil, err
	}
	if err := p.buildCharacteristics(fw); err != nil {
		return nil, err
	}
	if err := p.buildParameters(fw); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *Population) buildCompartments(fw *framework.Framework) error {
	for _, c := range fw.Compartments {
		kind := ele.Plain
		switch {
		case c.IsSource:
			kind = ele.Source
		case c.IsSink:
			kind = ele.Sink
		case c.IsJunction:
			kind = ele.Junction
		case c.DurationGroup != "":
			kind = ele.Timed
		}
		comp := ele.NewCompartment(c.Code, p.Name, kind)
		comp.DurationGroupParam = c.DurationGroup
		p.Compartments[c.Code] = comp
		p.CompOrder = append(p.CompOrder, c.Code)
		if err := p.graph.AddVertex(c.Code); err != nil {
			return errs.Wrap(errs.FrameworkError, err, "adding compartment vertex %q", c.Code).WithVariable(c.Code)
		}
	}
	return nil
}

func (p *Population) buildLinks(fw *framework.Framework) error {
	// iterate parameters in sorted order for deterministic link creation
	// (map iteration over fw.Transitions would otherwise vary).
	parCodes := make([]string, 0, len(fw.Transitions))
	for parCode := range fw.Transitions {
		parCodes = append(parCodes, parCode)
	}
	sort.Strings(parCodes)

	for _, parCode := range parCodes {
		for _, pair := range fw.Transitions[parCode] {
			from := p.Compartments[pair.From]
			to := p.Compartments[pair.To]
			// A Timed compartment's own duration-group parameter, when it
			// also names a transition out of that compartment, declares
			// the group's exit target: where a cohort goes once it has
			// aged past the compartment's maximum duration. That
			// transition is the implicit flush link (§4.5), not an
			// ordinary probability/rate-driven one.
			if from.Kind == ele.Timed && from.DurationGroupParam == parCode {
				if from.Flush != nil {
					return errs.New(errs.FrameworkError, "timed compartment %q declares more than one duration-group exit transition for parameter %q", pair.From, parCode).WithVariable(parCode)
				}
				ele.NewFlushLink(from, to)
			} else {
				from.Connect(to, parCode)
			}
			if _, err := p.graph.AddEdge(pair.From, pair.To, 0); err != nil {
				return errs.Wrap(errs.FrameworkError, err, "adding link %s -> %s", pair.From, pair.To).WithVariable(parCode)
			}
		}
	}
	return nil
}

// buildJunctionOrder computes the intra-tick balancing order for
// junction compartments: a junction fed by another junction must
// balance after its feeder. Restricted to the junction-only subgraph,
// since ordinary compartments may participate in cycles across ticks
// (e.g. "recovered" flowing back to "susceptible") that a full-graph
// topological sort would reject.
func (p *Population) buildJunctionOrder() error {
	sub := core.NewGraph(core.WithDirected(true))
	isJunction := map[string]bool{}
	for code, c := range p.Compartments {
		if c.Kind == ele.Junction {
			isJunction[code] = true
			if err := sub.AddVertex(code); err != nil {
				return errs.Wrap(errs.FrameworkError, err, "adding junction vertex %q", code).WithVariable(code)
			}
		}
	}
	for code, c := range p.Compartments {
		if !isJunction[code] {
			continue
		}
		for _, l := range c.OutLinks {
			if isJunction[l.To.Code] {
				if _, err := sub.AddEdge(code, l.To.Code, 0); err != nil {
					return errs.Wrap(errs.FrameworkError, err, "adding junction edge %s -> %s", code, l.To.Code).WithVariable(code)
				}
			}
		}
	}
	order, err := dfs.TopologicalSort(sub)
	if err != nil {
		return errs.Wrap(errs.FrameworkError, err, "junction compartments form a cycle in population %q", p.Name)
	}
	p.JunctionOrder = order
	return nil
}

func (p *Population) buildCharacteristics(fw *framework.Framework) error {
	for _, c := range fw.Characteristics {
		ch := ele.NewCharacteristic(c.Code, p.Name)
		p.Characteristics[c.Code] = ch
		p.CharOrder = append(p.CharOrder, c.Code)
	}
	// wire components/denominator in a second pass: every referenced
	// code (compartment or characteristic) now exists.
	for _, c := range fw.Characteristics {
		ch := p.Characteristics[c.Code]
		for _, compCode := range c.Components {
			v, err := p.resolveValueAt(compCode)
			if err != nil {
				return errs.Wrap(errs.FrameworkError, err, "characteristic %q component %q", c.Code, compCode).WithVariable(c.Code)
			}
			ch.Components = append(ch.Components, v)
		}
		if c.Denominator != "" {
			v, err := p.resolveValueAt(c.Denominator)
			if err != nil {
				return errs.Wrap(errs.FrameworkError, err, "characteristic %q denominator %q", c.Code, c.Denominator).WithVariable(c.Code)
			}
			ch.Denominator = v
		}
	}
	return nil
}

func (p *Population) resolveValueAt(code string) (ele.ValueAt, error) {
	if c, ok := p.Compartments[code]; ok {
		return c, nil
	}
	if c, ok := p.Characteristics[code]; ok {
		return c, nil
	}
	return nil, errs.New(errs.NotFound, "unknown compartment/characteristic code %q", code).WithVariable(code)
}

func (p *Population) buildParameters(fw *framework.Framework) error {
	for _, fp := range fw.Parameters {
		mode := ele.ParamData
		switch {
		case fp.Function != "" && fp.IsDerivative:
			mode = ele.ParamDerivative
		case fp.Function != "":
			mode = ele.ParamFunction
		}
		par := ele.NewParameter(fp.Code, p.Name, mode)
		if fp.Function != "" {
			e, err := expr.Parse(fp.Function)
			if err != nil {
				return errs.Wrap(errs.ParameterSetError, err, "parameter %q function", fp.Code).WithVariable(fp.Code)
			}
			par.Expr = e
		}
		if fp.Min != nil || fp.Max != nil {
			lo, hi := math.Inf(-1), math.Inf(1)
			if fp.Min != nil {
				lo = *fp.Min
			}
			if fp.Max != nil {
				hi = *fp.Max
			}
			par.SetClip(lo, hi)
		}
		if fp.SkipFunctionLo != nil && fp.SkipFunctionHi != nil {
			par.SetSkipWindow(*fp.SkipFunctionLo, *fp.SkipFunctionHi)
		}
		p.Parameters[fp.Code] = par
		p.ParOrder = append(p.ParOrder, fp.Code)
	}
	return nil
}

// Links returns every link in the population, compartment-declaration
// order then outlink order, for callers needing a flat iteration.
func (p *Population) Links() []*ele.Link {
	var out []*ele.Link
	for _, code := range p.CompOrder {
		out = append(out, p.Compartments[code].OutLinks...)
	}
	return out
}
