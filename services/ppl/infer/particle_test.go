// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package infer

import (
	"math"
	"math/rand"
	"testing"

	"github.com/latticeforge/gentrace/services/ppl/dist"
	"github.com/latticeforge/gentrace/services/ppl/gfi"
	"github.com/latticeforge/gentrace/services/ppl/unfold"
)

func randomWalkKernel() *gfi.Model[unfold.KernelArgs[float64], float64] {
	return gfi.New(func(h *gfi.Handler, args unfold.KernelArgs[float64]) float64 {
		step := h.SampleFloat(dist.Normal, dist.NormalParams{Mean: 0, StdDev: 1}, "step")
		return args.State + step
	})
}

func TestParticleSystemLifecycle(t *testing.T) {
	model := unfold.New[float64](randomWalkKernel())
	ps := NewParticleSystem(model)
	rng := rand.New(rand.NewSource(17))

	const n = 20
	ps.InitStep(rng, 0, n, nil)
	if len(ps.Particles()) != n {
		t.Fatalf("expected %d particles, got %d", n, len(ps.Particles()))
	}

	ps.Step(rng, nil)
	ps.Step(rng, nil)

	ess := ps.EffectiveSampleSize()
	if ess <= 0 || ess > n {
		t.Fatalf("ESS %v out of expected range (0, %d]", ess, n)
	}

	logTotal := ps.Resample(rng)
	if math.IsNaN(logTotal) || math.IsInf(logTotal, 0) {
		t.Fatalf("unexpected resample log-total %v", logTotal)
	}
	if len(ps.Particles()) != n {
		t.Fatalf("expected %d particles after resample, got %d", n, len(ps.Particles()))
	}
	for _, p := range ps.Particles() {
		if p.LogWeight != 0 {
			t.Fatalf("expected zeroed log-weight after resample, got %v", p.LogWeight)
		}
	}

	logML := ps.LogMarginalLikelihoodEstimate()
	if math.IsNaN(logML) {
		t.Fatal("log marginal likelihood estimate is NaN")
	}
}
