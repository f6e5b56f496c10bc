// Copyright 2016 The Gofem Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command epimodel is a thin CLI runner: it reads a JSON simulation
// bundle (framework, databook, programs, run window), builds and
// processes a Model, and writes the resulting Result as a gob stream.
//
// Grounded on gofem/main.go's flag-parsing + panic-recovery +
// colourised-banner shape; mpi is dropped (§9: this package has no
// parallel-run counterpart, see SPEC_FULL.md's dropped-dependency table).
package main

import (
	"context"
	"encoding/json"
	"flag"
	"os"

	"github.com/cpmech/gosl/chk"
	"github.com/cpmech/gosl/io"

	"github.com/optimamodel/atomica/engine"
	"github.com/optimamodel/atomica/framework"
	"github.com/optimamodel/atomica/parset"
	"github.com/optimamodel/atomica/program"
	"github.com/optimamodel/atomica/result"
	"github.com/optimamodel/atomica/settings"
)

// bundle is the on-disk JSON shape of one simulation run: the three
// input stores plus the run window and population list that would
// otherwise be scattered across gofem's separate .sim/.mat/.fem files.
type bundle struct {
	Framework    *framework.Framework  `json:"framework"`
	Parameters   parset.Bundle         `json:"parameters"`
	Programs     *program.ProgramSet   `json:"programs"`
	Instructions *program.Instructions `json:"instructions"`
	Populations  []string              `json:"populations"`
	TStart       float64               `json:"t_start"`
	TEnd         float64               `json:"t_end"`
	Dt           float64               `json:"dt"`
	Settings     *settings.Settings    `json:"settings"`
}

func main() {
	verbose := true

	defer func() {
		if err := recover(); err != nil {
			chk.Verbose = true
			for i := 8; i > 3; i-- {
				chk.CallerInfo(i)
			}
			io.PfRed("ERROR: %v\n", err)
			os.Exit(1)
		}
	}()

	if verbose {
		io.PfWhite("\nepimodel -- compartmental dynamic simulation engine\n\n")
	}

	flag.Parse()
	if len(flag.Args()) < 1 {
		chk.Panic("please provide a simulation bundle filename. Ex.: cylinder.sim.json")
	}
	inFile := flag.Arg(0)
	outFile := inFile + ".result"
	if len(flag.Args()) > 1 {
		outFile = flag.Arg(1)
	}

	b := readBundle(inFile)

	if err := b.Framework.Validate(); err != nil {
		chk.Panic("invalid framework: %v", err)
	}

	set := settings.Default()
	if b.Settings != nil {
		set = *b.Settings
	}

	parSet := parset.FromBundle(b.Parameters)

	m, err := engine.Build(b.Framework, parSet, b.Programs, b.Instructions, b.Populations, b.TStart, b.TEnd, b.Dt, set)
	if err != nil {
		chk.Panic("build failed: %v", err)
	}

	io.Pf("> epimodel: processing %d ticks across %d populations\n", len(m.TVec), len(m.PopOrder))
	if err := m.Process(context.Background()); err != nil {
		chk.Panic("process failed: %v", err)
	}

	res := result.New(m)
	writeResult(res, outFile)

	io.PfGreen("> epimodel: wrote result to %s\n", outFile)
}

func readBundle(path string) *bundle {
	f, err := os.Open(path)
	if err != nil {
		chk.Panic("cannot open bundle %q: %v", path, err)
	}
	defer f.Close()

	var b bundle
	if err := json.NewDecoder(f).Decode(&b); err != nil {
		chk.Panic("cannot parse bundle %q: %v", path, err)
	}
	return &b
}

func writeResult(res *result.Result, path string) {
	f, err := os.Create(path)
	if err != nil {
		chk.Panic("cannot create result file %q: %v", path, err)
	}
	defer f.Close()

	if err := res.Save(f); err != nil {
		chk.Panic("cannot write result: %v", err)
	}
}
