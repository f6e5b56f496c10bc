// Copyright 2016 The Gofem Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package expr implements the restricted parameter-function grammar
// of §4.1: BODMAS over + - * / ^, unary minus, parenthesisation,
// numeric literals, identifiers, a fixed builtin set, and the four
// population-aggregation tokens.
//
// Grounded on gofem/inp/func.go's named-function lookup
// (FuncsData.Get / fun.New), generalized from a closed registry of
// function *types* into a true expression grammar, since the
// original Python source (parser_function.py) evaluates arbitrary
// arithmetic expressions rather than dispatching to a fixed table.
package expr

import (
	"fmt"
	"strings"
	"unicode"
)

type tokKind int

const (
	tokNum tokKind = iota
	tokIdent
	tokFunc
	tokAgg
	tokOp
	tokLParen
	tokRParen
	tokComma
)

type lexTok struct {
	kind tokKind
	text string
	num  float64
}

var builtins = map[string]int{ // name -> fixed arity, 0 means variadic (>=2)
	"exp":   1,
	"floor": 1,
	"ceil":  1,
	"min":   0,
	"max":   0,
}

var aggNames = map[string]AggKind{
	"SRC_POP_AVG": SrcPopAvg,
	"TGT_POP_AVG": TgtPopAvg,
	"SRC_POP_SUM": SrcPopSum,
	"TGT_POP_SUM": TgtPopSum,
}

func isIdentStart(r rune) bool {
	return unicode.IsLetter(r) || r == '_' || r == ':'
}

func isIdentPart(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' || r == ':'
}

// lex tokenizes a raw expression string.
func lex(src string) ([]lexTok, error) {
	var toks []lexTok
	runes := []rune(src)
	i, n := 0, len(runes)
	for i < n {
		r := runes[i]
		switch {
		case unicode.IsSpace(r):
			i++
		case r == '+' || r == '-' || r == '*' || r == '/' || r == '^':
			toks = append(toks, lexTok{kind: tokOp, text: string(r)})
			i++
		case r == '(':
			toks = append(toks, lexTok{kind: tokLParen})
			i++
		case r == ')':
			toks = append(toks, lexTok{kind: tokRParen})
			i++
		case r == ',':
			toks = append(toks, lexTok{kind: tokComma})
			i++
		case unicode.IsDigit(r) || r == '.':
			j := i
			for j < n && (unicode.IsDigit(runes[j]) || runes[j] == '.' ||
				runes[j] == 'e' || runes[j] == 'E' ||
				((runes[j] == '+' || runes[j] == '-') && j > i && (runes[j-1] == 'e' || runes[j-1] == 'E'))) {
				j++
			}
			text := string(runes[i:j])
			var v float64
			if _, err := fmt.Sscanf(text, "%g", &v); err != nil {
				return nil, fmt.Errorf("expr: invalid numeric literal %q", text)
			}
			toks = append(toks, lexTok{kind: tokNum, num: v, text: text})
			i = j
		case isIdentStart(r):
			j := i + 1
			for j < n && isIdentPart(runes[j]) {
				j++
			}
			name := string(runes[i:j])
			if _, ok := aggNames[name]; ok {
				toks = append(toks, lexTok{kind: tokAgg, text: name})
			} else if _, ok := builtins[strings.ToLower(name)]; ok && strings.ToLower(name) == name {
				toks = append(toks, lexTok{kind: tokFunc, text: name})
			} else {
				toks = append(toks, lexTok{kind: tokIdent, text: name})
			}
			i = j
		default:
			return nil, fmt.Errorf("expr: unexpected character %q", string(r))
		}
	}
	return toks, nil
}
