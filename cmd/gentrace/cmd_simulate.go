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

	"github.com/google/uuid"
	"github.com/latticeforge/gentrace/services/ppl/examples"
	"github.com/latticeforge/gentrace/services/ppl/unfold"
	"github.com/spf13/cobra"
)

var simulateModel string

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Run a forward simulation of a bundled example model and print its trace",
	RunE:  runSimulateCommand,
}

func init() {
	simulateCmd.Flags().StringVar(&simulateModel, "model", "pointed2d", "model to simulate: pointed2d|spiral")
}

func runSimulateCommand(cmd *cobra.Command, args []string) error {
	runID := uuid.New()
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))

	switch simulateModel {
	case "pointed2d":
		model := examples.Pointed2D()
		argsIn := examples.Pointed2DArgs{
			Bounds:  examples.Bounds{XMin: -5, XMax: 5, YMin: -5, YMax: 5},
			ObsCov:  [][]float64{{0.1, 0}, {0, 0.1}},
		}
		trace := model.Simulate(rng, argsIn)
		fmt.Printf("run %s: pointed2d simulate, logjp=%.4f\n", runID, trace.Logjp)
		dumpTrie(trace.Data)
	case "spiral":
		kernel := examples.SpiralKernel(
			[][]float64{{0.05, 0}, {0, 0.05}},
			[][]float64{{0.1, 0}, {0, 0.1}},
		)
		// A single kernel step, not the full trajectory: `smc` drives the
		// whole Unfold-wrapped trajectory over time.
		trace := kernel.Simulate(rng, unfold.KernelArgs[examples.SpiralState]{
			Step:  0,
			State: examples.SpiralState{X: 0, Y: 0},
		})
		fmt.Printf("run %s: spiral kernel single step, logjp=%.4f, next=(%.4f, %.4f)\n",
			runID, trace.Logjp, trace.Retv.X, trace.Retv.Y)
		dumpTrie(trace.Data)
	default:
		return fmt.Errorf("unknown model %q", simulateModel)
	}
	return nil
}
