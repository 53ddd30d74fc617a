// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package examples

import (
	"math"

	"github.com/latticeforge/gentrace/services/ppl/dist"
	"github.com/latticeforge/gentrace/services/ppl/gfi"
	"github.com/latticeforge/gentrace/services/ppl/unfold"
)

// SpiralState is one point along a spiral trajectory: a 2D position.
type SpiralState struct {
	X, Y float64
}

// SpiralTrajectory deterministically generates the same difficult
// filtering target a particle filter's demo data is built from: a
// circular path of the given radius and center, perturbed by a faster
// secondary oscillation, producing a path that loops back over itself
// and so stresses resampling. timesteps must be positive.
func SpiralTrajectory(centerX, centerY, radius float64, timesteps int, initAngle float64) []SpiralState {
	out := make([]SpiralState, timesteps)
	for i := 0; i < timesteps; i++ {
		t := 2 * math.Pi * (float64(i) + initAngle) / float64(timesteps)
		u := 20 * math.Pi * (float64(i) + initAngle) / float64(timesteps)
		out[i] = SpiralState{
			X: centerX + radius*math.Cos(t) + radius/8*math.Sin(u),
			Y: centerY + radius*math.Sin(t) + radius/8*math.Cos(u),
		}
	}
	return out
}

// SpiralKernel is the per-step kernel generative function a particle
// filter tracking a spiral-shaped trajectory is built from: at each
// step the latent position takes a Gaussian drift step (driftCov) from
// the previous one, then an observation of the new position is
// recorded under obsCov. It is meant to be wrapped by unfold.New and
// driven through infer.ParticleSystem.
func SpiralKernel(driftCov, obsCov [][]float64) *gfi.Model[unfold.KernelArgs[SpiralState], SpiralState] {
	return gfi.New(func(h *gfi.Handler, args unfold.KernelArgs[SpiralState]) SpiralState {
		prev := args.State
		driftParams := dist.MVNormalParams{
			Mean: []float64{prev.X, prev.Y},
			Cov:  driftCov,
		}
		pos := h.SampleVector(dist.MVNormal, driftParams, "position")
		next := SpiralState{X: pos[0], Y: pos[1]}

		obsParams := dist.MVNormalParams{Mean: []float64{next.X, next.Y}, Cov: obsCov}
		h.SampleVector(dist.MVNormal, obsParams, "obs")
		return next
	})
}
