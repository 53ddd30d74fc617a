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
	"github.com/latticeforge/gentrace/services/ppl/choicetrie"
	"github.com/latticeforge/gentrace/services/ppl/examples"
	"github.com/latticeforge/gentrace/services/ppl/gfi"
	"github.com/latticeforge/gentrace/services/ppl/infer"
	"github.com/latticeforge/gentrace/services/ppl/store"
	"github.com/latticeforge/gentrace/services/ppl/telemetry"
	"github.com/spf13/cobra"
)

var (
	mhSteps         int
	mhCheckpointDir string
)

var mhCmd = &cobra.Command{
	Use:   "mh",
	Short: "Run a trace-rewrite Metropolis-Hastings chain over the pointed2d model",
	RunE:  runMHCommand,
}

func init() {
	mhCmd.Flags().IntVar(&mhSteps, "steps", 0, "number of MH iterations (defaults to config.Inference.DefaultMHSteps)")
	mhCmd.Flags().StringVar(&mhCheckpointDir, "checkpoint-dir", "", "periodically checkpoint chain state to this BadgerDB directory (disabled when empty)")
}

// mhCheckpointEvery is how many accepted-or-rejected iterations elapse
// between checkpoint writes, balancing resume granularity against
// BadgerDB write volume on a long chain.
const mhCheckpointEvery = 100

func runMHCommand(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	shutdown, err := telemetry.Setup(ctx, otlpEndpoint)
	if err != nil {
		return fmt.Errorf("telemetry setup: %w", err)
	}
	defer shutdown(ctx)

	steps := mhSteps
	if steps <= 0 {
		steps = cfg.Inference.DefaultMHSteps
	}

	cs, closeCS, err := openCheckpointStore(mhCheckpointDir)
	if err != nil {
		return fmt.Errorf("mh: %w", err)
	}
	defer closeCS()
	runID := uuid.New().String()

	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	model := examples.Pointed2D()
	proposal := examples.DriftProposal()
	modelArgs := examples.Pointed2DArgs{
		Bounds: examples.Bounds{XMin: -5, XMax: 5, YMin: -5, YMax: 5},
		ObsCov: [][]float64{{0.1, 0}, {0, 0.1}},
	}
	driftArgs := examples.DriftProposalArgs{DriftCov: [][]float64{{0.25, 0}, {0, 0.25}}}

	constraints := choicetrie.FromPairs(
		choicetrie.Pair{Address: "obs", Value: gfi.VectorValue([]float64{1.5, -0.5})},
	)
	trace, _ := model.Generate(rng, modelArgs, constraints)

	accepted := 0
	for i := 0; i < steps; i++ {
		start := time.Now()
		var ok bool
		trace, ok = infer.MetropolisHastings(rng, model, trace, proposal, driftArgs)
		telemetry.RecordMHOutcome("pointed2d_drift", time.Since(start), ok)
		if ok {
			accepted++
		}
		if cs != nil && i%mhCheckpointEvery == 0 {
			var point []float64
			if latent, ok := choicetrie.Read[gfi.Value](trace.Data, "latent"); ok {
				point = latent.MustVector()
			}
			rec := store.CheckpointRecord{
				RunID:      runID,
				Iteration:  i,
				LogWeight:  trace.Logjp,
				ChoiceData: gobEncodeFloats(point),
			}
			if err := cs.Save(ctx, rec); err != nil {
				return fmt.Errorf("mh: checkpoint: %w", err)
			}
		}
	}

	fmt.Printf("mh: %d/%d accepted (%.1f%%), final logjp=%.4f\n",
		accepted, steps, 100*float64(accepted)/float64(steps), trace.Logjp)
	dumpTrie(trace.Data)
	return nil
}
