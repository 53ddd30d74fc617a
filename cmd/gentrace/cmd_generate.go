// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/latticeforge/gentrace/services/ppl/choicetrie"
	"github.com/latticeforge/gentrace/services/ppl/examples"
	"github.com/latticeforge/gentrace/services/ppl/gfi"
	"github.com/spf13/cobra"
)

var (
	generateObsX float64
	generateObsY float64
)

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate a pointed2d trace constrained to a fixed observation",
	RunE:  runGenerateCommand,
}

func init() {
	generateCmd.Flags().Float64Var(&generateObsX, "obs-x", 1.0, "observed x coordinate to constrain")
	generateCmd.Flags().Float64Var(&generateObsY, "obs-y", 1.0, "observed y coordinate to constrain")
}

func runGenerateCommand(cmd *cobra.Command, args []string) error {
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	model := examples.Pointed2D()
	modelArgs := examples.Pointed2DArgs{
		Bounds: examples.Bounds{XMin: -5, XMax: 5, YMin: -5, YMax: 5},
		ObsCov: [][]float64{{0.1, 0}, {0, 0.1}},
	}

	constraints := choicetrie.FromPairs(
		choicetrie.Pair{Address: "obs", Value: gfi.VectorValue([]float64{generateObsX, generateObsY})},
	)

	trace, weight := model.Generate(rng, modelArgs, constraints)
	fmt.Printf("generate: weight=%.4f logjp=%.4f\n", weight, trace.Logjp)
	dumpTrie(trace.Data)
	return nil
}
