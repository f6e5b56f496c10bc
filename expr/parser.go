// Copyright 2016 The Gofem Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package expr

import (
	"fmt"
	"strings"
)

// AggKind enumerates the four population-aggregation builtins of §4.8.
type AggKind int

const (
	SrcPopAvg AggKind = iota
	TgtPopAvg
	SrcPopSum
	TgtPopSum
)

func (k AggKind) String() string {
	switch k {
	case SrcPopAvg:
		return "SRC_POP_AVG"
	case TgtPopAvg:
		return "TGT_POP_AVG"
	case SrcPopSum:
		return "SRC_POP_SUM"
	case TgtPopSum:
		return "TGT_POP_SUM"
	default:
		return "?"
	}
}

// Aggregation describes one population-aggregation call (§4.8):
// AGG(par_name, interaction_name[, weight_var_name]).
type Aggregation struct {
	Kind            AggKind
	ParName         string
	InteractionName string
	WeightVarName   string // empty if not given
}

type postKind int

const (
	pNum postKind = iota
	pIdent
	pAgg
	pOp
	pFunc
)

// postTok is one entry of the compiled postfix token stream.
type postTok struct {
	kind  postKind
	num   float64
	ident string // pIdent
	agg   int    // pAgg: index into Expression.Aggregations
	op    byte   // pOp
	fn    string // pFunc
	arity int    // pFunc: number of arguments consumed from the stack
}

// Expression is a compiled parameter function: a flat postfix token
// array plus its discovered dependency list, evaluated in a tight loop
// over a fixed-size float64 stack that allocates only for the argument
// list of min/max (§9: "compile each
// expression once into a flat postfix token array ... evaluation is a
// tight loop over f64 without allocations").
type Expression struct {
	Source       string
	postfix      []postTok
	deps         []string
	Aggregations []Aggregation
}

// reserved identifiers bound by the engine at evaluation time, never
// treated as dependencies (§4.1).
func isReserved(name string) bool {
	return name == "t" || name == "dt"
}

// Deps returns the set of identifiers (parameter/characteristic/
// compartment names) this expression reads, excluding "t" and "dt".
func (e *Expression) Deps() []string {
	return e.deps
}

// IsPureAggregation reports whether the whole expression is exactly one
// population-aggregation call (the common case: a parameter's function
// field is literally "SRC_POP_AVG(foo, bar)").
func (e *Expression) IsPureAggregation() bool {
	return len(e.postfix) == 1 && e.postfix[0].kind == pAgg
}

type parser struct {
	toks []lexTok
	pos  int
	out  []postTok
	deps map[string]bool
	aggs []Aggregation
}

// Parse compiles src into an Expression.
func Parse(src string) (*Expression, error) {
	toks, err := lex(src)
	if err != nil {
		return nil, err
	}
	p := &parser{toks: toks, deps: map[string]bool{}}
	if err := p.parseExpr(); err != nil {
		return nil, fmt.Errorf("expr: cannot parse %q: %w", src, err)
	}
	if p.pos != len(p.toks) {
		return nil, fmt.Errorf("expr: cannot parse %q: unexpected trailing tokens", src)
	}
	deps := make([]string, 0, len(p.deps))
	for d := range p.deps {
		deps = append(deps, d)
	}
	return &Expression{Source: src, postfix: p.out, deps: deps, Aggregations: p.aggs}, nil
}

func (p *parser) peek() (lexTok, bool) {
	if p.pos >= len(p.toks) {
		return lexTok{}, false
	}
	return p.toks[p.pos], true
}

func (p *parser) emit(t postTok) { p.out = append(p.out, t) }

// parseExpr := term (('+'|'-') term)*
func (p *parser) parseExpr() error {
	if err := p.parseTerm(); err != nil {
		return err
	}
	for {
		tk, ok := p.peek()
		if !ok || tk.kind != tokOp || (tk.text != "+" && tk.text != "-") {
			return nil
		}
		p.pos++
		if err := p.parseTerm(); err != nil {
			return err
		}
		p.emit(postTok{kind: pOp, op: tk.text[0]})
	}
}

// parseTerm := factor (('*'|'/') factor)*
func (p *parser) parseTerm() error {
	if err := p.parseUnary(); err != nil {
		return err
	}
	for {
		tk, ok := p.peek()
		if !ok || tk.kind != tokOp || (tk.text != "*" && tk.text != "/") {
			return nil
		}
		p.pos++
		if err := p.parseUnary(); err != nil {
			return err
		}
		p.emit(postTok{kind: pOp, op: tk.text[0]})
	}
}

// parseUnary := ('-'|'+')? parsePower
func (p *parser) parseUnary() error {
	tk, ok := p.peek()
	if ok && tk.kind == tokOp && (tk.text == "-" || tk.text == "+") {
		p.pos++
		if err := p.parseUnary(); err != nil {
			return err
		}
		if tk.text == "-" {
			p.emit(postTok{kind: pOp, op: 'u'}) // unary minus
		}
		return nil
	}
	return p.parsePower()
}

// parsePower := primary ('^' unary)?   (right-associative)
func (p *parser) parsePower() error {
	if err := p.parsePrimary(); err != nil {
		return err
	}
	tk, ok := p.peek()
	if ok && tk.kind == tokOp && tk.text == "^" {
		p.pos++
		if err := p.parseUnary(); err != nil {
			return err
		}
		p.emit(postTok{kind: pOp, op: '^'})
	}
	return nil
}

// parsePrimary := NUMBER | IDENT | FUNC '(' args ')' | AGG '(' aggargs ')' | '(' expr ')'
func (p *parser) parsePrimary() error {
	tk, ok := p.peek()
	if !ok {
		return fmt.Errorf("unexpected end of expression")
	}
	switch tk.kind {
	case tokNum:
		p.pos++
		p.emit(postTok{kind: pNum, num: tk.num})
		return nil
	case tokLParen:
		p.pos++
		if err := p.parseExpr(); err != nil {
			return err
		}
		if err := p.expect(tokRParen, ")"); err != nil {
			return err
		}
		return nil
	case tokIdent:
		p.pos++
		if !isReserved(tk.text) {
			p.deps[tk.text] = true
		}
		p.emit(postTok{kind: pIdent, ident: tk.text})
		return nil
	case tokFunc:
		p.pos++
		if err := p.expect(tokLParen, "("); err != nil {
			return err
		}
		name := strings.ToLower(tk.text)
		argc := 0
		if rp, ok := p.peek(); !ok || rp.kind != tokRParen {
			for {
				if err := p.parseExpr(); err != nil {
					return err
				}
				argc++
				nt, ok := p.peek()
				if ok && nt.kind == tokComma {
					p.pos++
					continue
				}
				break
			}
		}
		if err := p.expect(tokRParen, ")"); err != nil {
			return err
		}
		want := builtins[name]
		if want > 0 && argc != want {
			return fmt.Errorf("function %s expects %d argument(s), got %d", name, want, argc)
		}
		if want == 0 && argc < 2 {
			return fmt.Errorf("function %s expects at least 2 arguments, got %d", name, argc)
		}
		p.emit(postTok{kind: pFunc, fn: name, arity: argc})
		return nil
	case tokAgg:
		p.pos++
		return p.parseAggCall(tk.text)
	default:
		return fmt.Errorf("unexpected token in expression")
	}
}

// parseAggCall parses AGG(par_name, interaction_name[, weight_var_name]).
// The arguments are bare names, not sub-expressions (§4.8).
func (p *parser) parseAggCall(name string) error {
	if err := p.expect(tokLParen, "("); err != nil {
		return err
	}
	names := make([]string, 0, 3)
	for {
		idt, ok := p.peek()
		if !ok || idt.kind != tokIdent {
			return fmt.Errorf("%s: expected identifier argument", name)
		}
		p.pos++
		names = append(names, idt.text)
		nt, ok := p.peek()
		if ok && nt.kind == tokComma {
			p.pos++
			continue
		}
		break
	}
	if err := p.expect(tokRParen, ")"); err != nil {
		return err
	}
	if len(names) < 2 || len(names) > 3 {
		return fmt.Errorf("%s: expects 2 or 3 arguments, got %d", name, len(names))
	}
	agg := Aggregation{Kind: aggNames[name], ParName: names[0], InteractionName: names[1]}
	if len(names) == 3 {
		agg.WeightVarName = names[2]
	}
	p.deps[agg.ParName] = true
	if agg.WeightVarName != "" {
		p.deps[agg.WeightVarName] = true
	}
	idx := len(p.aggs)
	p.aggs = append(p.aggs, agg)
	p.emit(postTok{kind: pAgg, agg: idx})
	return nil
}

func (p *parser) expect(kind tokKind, what string) error {
	tk, ok := p.peek()
	if !ok || tk.kind != kind {
		return fmt.Errorf("expected %q", what)
	}
	p.pos++
	return nil
}
