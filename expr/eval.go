// Copyright 2016 The Gofem Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package expr

import (
	"math"

	"github.com/optimamodel/atomica/errs"
)

// Evaluate runs the compiled postfix stream against a dependency map.
// vars must contain every identifier returned by Deps(), plus "t" and
// "dt" if the expression references them. aggVals holds one
// precomputed value per entry of e.Aggregations (computed by the
// engine for the current tick via §4.8's weighted-sum/average rule);
// pass nil when e.Aggregations is empty.
//
// Evaluation fails with an errs.UnboundIdentifier error (§4.1) when a
// dependency is missing from vars.
func (e *Expression) Evaluate(vars map[string]float64, aggVals []float64) (float64, error) {
	var stack [64]float64
	sp := 0
	push := func(v float64) { stack[sp] = v; sp++ }
	pop := func() float64 { sp--; return stack[sp] }

	for _, tk := range e.postfix {
		switch tk.kind {
		case pNum:
			push(tk.num)
		case pIdent:
			v, ok := vars[tk.ident]
			if !ok {
				return 0, errs.New(errs.UnboundIdentifier, "unbound identifier %q in expression %q", tk.ident, e.Source).WithVariable(tk.ident)
			}
			push(v)
		case pAgg:
			if tk.agg >= len(aggVals) {
				return 0, errs.New(errs.UnboundIdentifier, "missing aggregation value for %v in expression %q", e.Aggregations[tk.agg].Kind, e.Source)
			}
			push(aggVals[tk.agg])
		case pOp:
			switch tk.op {
			case 'u':
				a := pop()
				push(-a)
			case '+':
				b, a := pop(), pop()
				push(a + b)
			case '-':
				b, a := pop(), pop()
				push(a - b)
			case '*':
				b, a := pop(), pop()
				push(a * b)
			case '/':
				b, a := pop(), pop()
				push(a / b)
			case '^':
				b, a := pop(), pop()
				push(math.Pow(a, b))
			}
		case pFunc:
			switch tk.fn {
			case "exp":
				push(math.Exp(pop()))
			case "floor":
				push(math.Floor(pop()))
			case "ceil":
				push(math.Ceil(pop()))
			case "min":
				args := popN(&sp, stack[:], tk.arity)
				m := args[0]
				for _, v := range args[1:] {
					if v < m {
						m = v
					}
				}
				push(m)
			case "max":
				args := popN(&sp, stack[:], tk.arity)
				m := args[0]
				for _, v := range args[1:] {
					if v > m {
						m = v
					}
				}
				push(m)
			}
		}
	}
	if sp != 1 {
		return 0, errs.New(errs.NumericError, "expression %q did not reduce to a single value", e.Source)
	}
	return stack[0], nil
}

// popN pops the last n values off stack (given sp by reference) in
// original left-to-right argument order.
func popN(sp *int, stack []float64, n int) []float64 {
	out := make([]float64, n)
	*sp -= n
	copy(out, stack[*sp:*sp+n])
	return out
}
