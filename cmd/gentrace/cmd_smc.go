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
	"github.com/latticeforge/gentrace/services/ppl/unfold"
	"github.com/spf13/cobra"
)

var (
	smcTimesteps     int
	smcCheckpointDir string
)

// smcCheckpointEvery is how many filtering steps elapse between
// checkpoint writes, mirroring mhCheckpointEvery's tradeoff between
// resume granularity and BadgerDB write volume.
const smcCheckpointEvery = 5

var smcCmd = &cobra.Command{
	Use:   "smc",
	Short: "Run a particle filter over the spiral trajectory model",
	RunE:  runSMCCommand,
}

func init() {
	smcCmd.Flags().IntVar(&smcTimesteps, "timesteps", 20, "number of trajectory steps to filter over")
	smcCmd.Flags().StringVar(&smcCheckpointDir, "checkpoint-dir", "", "periodically checkpoint particle system state to this BadgerDB directory (disabled when empty)")
}

func runSMCCommand(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	shutdown, err := telemetry.Setup(ctx, otlpEndpoint)
	if err != nil {
		return fmt.Errorf("telemetry setup: %w", err)
	}
	defer shutdown(ctx)

	cs, closeCS, err := openCheckpointStore(smcCheckpointDir)
	if err != nil {
		return fmt.Errorf("smc: %w", err)
	}
	defer closeCS()
	runID := uuid.New().String()

	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	driftCov := [][]float64{{0.05, 0}, {0, 0.05}}
	obsCov := [][]float64{{0.1, 0}, {0, 0.1}}
	kernel := examples.SpiralKernel(driftCov, obsCov)
	ground := examples.SpiralTrajectory(0, 0, 3, smcTimesteps, 0)

	ps := infer.NewParticleSystem(unfold.New[examples.SpiralState](kernel))
	nParticles := cfg.Inference.DefaultParticles

	obsConstraint := func(s examples.SpiralState) *choicetrie.Node {
		return choicetrie.FromPairs(
			choicetrie.Pair{Address: "obs", Value: gfi.VectorValue([]float64{s.X, s.Y})},
		)
	}

	ps.InitStep(rng, examples.SpiralState{X: 0, Y: 0}, nParticles, obsConstraint(ground[0]))

	for t := 1; t < len(ground); t++ {
		ps.Step(rng, obsConstraint(ground[t]))
		ess := ps.EffectiveSampleSize()
		telemetry.ParticleSystemESS.Observe(ess)
		fmt.Printf("step %d: ess=%.2f/%d\n", t, ess, nParticles)
		if ess < float64(nParticles)*cfg.Inference.ResampleESSThreshold {
			logTotal := ps.Resample(rng)
			fmt.Printf("  resampled (log total weight=%.4f)\n", logTotal)
		}
		if cs != nil && t%smcCheckpointEvery == 0 {
			rec := store.CheckpointRecord{
				RunID:      runID,
				Iteration:  t,
				LogWeight:  ps.LogMarginalLikelihoodEstimate(),
				ChoiceData: gobEncodeFloats([]float64{ground[t].X, ground[t].Y}),
			}
			if err := cs.Save(ctx, rec); err != nil {
				return fmt.Errorf("smc: checkpoint: %w", err)
			}
		}
	}

	fmt.Printf("smc: log marginal likelihood estimate = %.4f\n", ps.LogMarginalLikelihoodEstimate())
	return nil
}
