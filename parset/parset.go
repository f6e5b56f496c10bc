// Copyright 2016 The Gofem Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package parset implements the §4.4 ParameterSet: one TimeSeries per
// (code name, population), plus Transfers and Interactions keyed by
// (parameter, from-population, to-population).
//
// Grounded on gofem/inp/mat.go's keyed-lookup-by-name container
// (MatDb.Get), generalized to the nested population x parameter keys
// this domain needs; the (parameter, from_pop, to_pop) triple for
// transfers follows original_source/atomica's own naming convention
// rather than spec.md's looser "tuple" description (SPEC_FULL.md).
package parset

import "github.com/optimamodel/atomica/series"

// TransferKey identifies one transfer time series (§4.4): the named
// parameter driving people between two populations.
type TransferKey struct {
	Parameter string `json:"parameter"`
	FromPop   string `json:"from_pop"`
	ToPop     string `json:"to_pop"`
}

// InteractionKey identifies one interaction-weight time series: the
// named interaction between a source and target population.
type InteractionKey struct {
	Interaction string `json:"interaction"`
	FromPop     string `json:"from_pop"`
	ToPop       string `json:"to_pop"`
}

// ParameterSet holds interpolable per-population data for every
// parameter/characteristic/compartment code name, plus transfers and
// interactions (§4.4).
type ParameterSet struct {
	MetaYFactor float64

	byCodePop    map[string]map[string]*series.TimeSeries
	transfers    map[TransferKey]*series.TimeSeries
	interactions map[InteractionKey]*series.TimeSeries
}

// New returns an empty ParameterSet with MetaYFactor=1.
func New() *ParameterSet {
	return &ParameterSet{
		MetaYFactor:  1,
		byCodePop:    map[string]map[string]*series.TimeSeries{},
		transfers:    map[TransferKey]*series.TimeSeries{},
		interactions: map[InteractionKey]*series.TimeSeries{},
	}
}

// SetSeries installs the TimeSeries for a (code, population) key.
func (ps *ParameterSet) SetSeries(code, pop string, ts *series.TimeSeries) {
	m, ok := ps.byCodePop[code]
	if !ok {
		m = map[string]*series.TimeSeries{}
		ps.byCodePop[code] = m
	}
	m[pop] = ts
}

// Series returns the TimeSeries for a (code, population) key, if any.
func (ps *ParameterSet) Series(code, pop string) (*series.TimeSeries, bool) {
	m, ok := ps.byCodePop[code]
	if !ok {
		return nil, false
	}
	ts, ok := m[pop]
	return ts, ok
}

// Populations lists every population with data for a given code.
func (ps *ParameterSet) Populations(code string) []string {
	m := ps.byCodePop[code]
	out := make([]string, 0, len(m))
	for pop := range m {
		out = append(out, pop)
	}
	return out
}

// SetTransfer installs the TimeSeries for a transfer key.
func (ps *ParameterSet) SetTransfer(k TransferKey, ts *series.TimeSeries) {
	ps.transfers[k] = ts
}

// Transfer returns the TimeSeries for a transfer key, if any.
func (ps *ParameterSet) Transfer(k TransferKey) (*series.TimeSeries, bool) {
	ts, ok := ps.transfers[k]
	return ts, ok
}

// Transfers returns every registered transfer key.
func (ps *ParameterSet) Transfers() []TransferKey {
	out := make([]TransferKey, 0, len(ps.transfers))
	for k := range ps.transfers {
		out = append(out, k)
	}
	return out
}

// SetInteraction installs the TimeSeries for an interaction key.
func (ps *ParameterSet) SetInteraction(k InteractionKey, ts *series.TimeSeries) {
	ps.interactions[k] = ts
}

// Interaction returns the TimeSeries for an interaction key, if any.
func (ps *ParameterSet) Interaction(k InteractionKey) (*series.TimeSeries, bool) {
	ts, ok := ps.interactions[k]
	return ts, ok
}

// Interactions returns every registered interaction key.
func (ps *ParameterSet) Interactions() []InteractionKey {
	out := make([]InteractionKey, 0, len(ps.interactions))
	for k := range ps.interactions {
		out = append(out, k)
	}
	return out
}

// Interpolate evaluates every series registered for pop onto tvec,
// keyed by code name (§4.4: "Exposes interpolate(tvec, pop_name)").
func (ps *ParameterSet) Interpolate(tvec []float64, pop string) map[string][]float64 {
	out := map[string][]float64{}
	for code, m := range ps.byCodePop {
		if ts, ok := m[pop]; ok {
			out[code] = ts.Interpolate(tvec, ps.MetaYFactor)
		}
	}
	return out
}

// InterpolateTransfers evaluates every transfer onto tvec. Transfers
// and interactions are interpolated onto the simulation grid during
// Model.build() (§4.4).
func (ps *ParameterSet) InterpolateTransfers(tvec []float64) map[TransferKey][]float64 {
	out := make(map[TransferKey][]float64, len(ps.transfers))
	for k, ts := range ps.transfers {
		out[k] = ts.Interpolate(tvec, ps.MetaYFactor)
	}
	return out
}

// InterpolateInteractions evaluates every interaction weight onto tvec.
func (ps *ParameterSet) InterpolateInteractions(tvec []float64) map[InteractionKey][]float64 {
	out := make(map[InteractionKey][]float64, len(ps.interactions))
	for k, ts := range ps.interactions {
		out[k] = ts.Interpolate(tvec, ps.MetaYFactor)
	}
	return out
}

// seriesEntry is one (code, population) databook row in the JSON
// bundle format (cmd/epimodel's input); ParameterSet's own storage is
// keyed by unexported nested maps, so the bundle flattens it to a list
// for marshalling.
type seriesEntry struct {
	Code       string             `json:"code"`
	Population string             `json:"population"`
	Data       *series.TimeSeries `json:"data"`
}

type transferEntry struct {
	Key  TransferKey        `json:"key"`
	Data *series.TimeSeries `json:"data"`
}

type interactionEntry struct {
	Key  InteractionKey     `json:"key"`
	Data *series.TimeSeries `json:"data"`
}

// Bundle is the JSON-serializable form of a ParameterSet, read by
// cmd/epimodel from a databook file.
type Bundle struct {
	MetaYFactor  float64             `json:"meta_y_factor"`
	Series       []seriesEntry       `json:"series"`
	Transfers    []transferEntry     `json:"transfers"`
	Interactions []interactionEntry  `json:"interactions"`
}

// ToBundle flattens the ParameterSet into its JSON form.
func (ps *ParameterSet) ToBundle() Bundle {
	b := Bundle{MetaYFactor: ps.MetaYFactor}
	for code, m := range ps.byCodePop {
		for pop, ts := range m {
			b.Series = append(b.Series, seriesEntry{Code: code, Population: pop, Data: ts})
		}
	}
	for k, ts := range ps.transfers {
		b.Transfers = append(b.Transfers, transferEntry{Key: k, Data: ts})
	}
	for k, ts := range ps.interactions {
		b.Interactions = append(b.Interactions, interactionEntry{Key: k, Data: ts})
	}
	return b
}

// FromBundle rebuilds a ParameterSet from its JSON form.
func FromBundle(b Bundle) *ParameterSet {
	ps := New()
	if b.MetaYFactor != 0 {
		ps.MetaYFactor = b.MetaYFactor
	}
	for _, e := range b.Series {
		ps.SetSeries(e.Code, e.Population, e.Data)
	}
	for _, e := range b.Transfers {
		ps.SetTransfer(e.Key, e.Data)
	}
	for _, e := range b.Interactions {
		ps.SetInteraction(e.Key, e.Data)
	}
	return ps
}
