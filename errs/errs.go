// Copyright 2016 The Gofem Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package errs defines the typed error kinds surfaced by the engine.
//
// The teacher (gofem) raises ad-hoc chk.Panic/chk.Err calls throughout
// its build and solve paths. Calibration, optimisation, and ensemble
// callers of this engine need to pattern-match on the *kind* of
// failure (e.g. retry on BadInitialization, abort on FrameworkError),
// so the engine entry points return an *Error with an explicit Kind
// instead of a panic. The one exception is cancellation: a cancelled
// Model.Process returns the context's own error.
package errs

import (
	"fmt"
	"strings"
)

// Kind enumerates the error categories surfaced across the build,
// package §6.
type Kind int

const (
	// FrameworkError reports a malformed or inconsistent Framework.
	FrameworkError Kind = iota
	// ParameterSetError reports a malformed or incomplete ParameterSet.
	ParameterSetError
	// BadInitialization reports a failed initial-size solve (§4.9).
	BadInitialization
	// ProgramError reports a malformed ProgramSet or Instructions.
	ProgramError
	// UnboundIdentifier reports a missing dependency during expression evaluation.
	UnboundIdentifier
	// NumericError reports a non-finite value produced during integration.
	NumericError
	// NotFound reports a failed variable/population lookup.
	NotFound
)

// String names the kind, used in Error() and by tests.
func (k Kind) String() string {
	switch k {
	case FrameworkError:
		return "FrameworkError"
	case ParameterSetError:
		return "ParameterSetError"
	case BadInitialization:
		return "BadInitialization"
	case ProgramError:
		return "ProgramError"
	case UnboundIdentifier:
		return "UnboundIdentifier"
	case NumericError:
		return "NumericError"
	case NotFound:
		return "NotFound"
	default:
		return "UnknownError"
	}
}

// Error is the single error type the engine returns from its exported
// entry points. Offending-variable/population/time context is carried
// explicitly (§6: "All errors include the offending variable/population/
// time where available").
type Error struct {
	Kind       Kind
	Variable   string
	Population string
	HasTime    bool
	Time       float64
	Messages   []string // accumulated diagnostics, used by BadInitialization's trace (§4.9)
	Err        error    // wrapped underlying cause, if any
}

// New builds an *Error of the given kind with a formatted message.
func New(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Messages: []string{fmt.Sprintf(format, args...)}}
}

// Wrap builds an *Error of the given kind around an existing error.
func Wrap(kind Kind, err error, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Messages: []string{fmt.Sprintf(format, args...)}, Err: err}
}

// WithVariable attaches the offending variable code name.
func (e *Error) WithVariable(name string) *Error {
	e.Variable = name
	return e
}

// WithPopulation attaches the offending population name.
func (e *Error) WithPopulation(pop string) *Error {
	e.Population = pop
	return e
}

// WithTime attaches the offending simulation time.
func (e *Error) WithTime(t float64) *Error {
	e.Time = t
	e.HasTime = true
	return e
}

// AddMessage appends a diagnostic line to Messages. The §4.9
// BadInitialization trace built by the initialization solver does not
// use it: that trace is a single message listing every failing
// characteristic.
func (e *Error) AddMessage(msg string) {
	e.Messages = append(e.Messages, msg)
}

// Error implements the error interface.
func (e *Error) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s", e.Kind)
	if e.Variable != "" {
		fmt.Fprintf(&b, " variable=%q", e.Variable)
	}
	if e.Population != "" {
		fmt.Fprintf(&b, " population=%q", e.Population)
	}
	if e.HasTime {
		fmt.Fprintf(&b, " t=%g", e.Time)
	}
	if len(e.Messages) > 0 {
		b.WriteString(": ")
		b.WriteString(strings.Join(e.Messages, "; "))
	}
	if e.Err != nil {
		fmt.Fprintf(&b, " (%v)", e.Err)
	}
	return b.String()
}

// Unwrap exposes the wrapped cause to errors.Is/errors.As.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether err is an *Error of the given kind.
func Is(err error, kind Kind) bool {
	if e, ok := err.(*Error); ok {
		return e.Kind == kind
	}
	return false
}
