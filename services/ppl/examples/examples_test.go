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
	"math/rand"
	"testing"

	"github.com/latticeforge/gentrace/services/ppl/choicetrie"
	"github.com/latticeforge/gentrace/services/ppl/gfi"
	"github.com/latticeforge/gentrace/services/ppl/infer"
	"github.com/latticeforge/gentrace/services/ppl/unfold"
)

func TestPointed2DSimulateStaysInBounds(t *testing.T) {
	model := Pointed2D()
	rng := rand.New(rand.NewSource(1))
	args := Pointed2DArgs{
		Bounds: Bounds{XMin: -5, XMax: 5, YMin: -5, YMax: 5},
		ObsCov: [][]float64{{1, -0.6}, {-0.6, 2}},
	}
	tr := model.Simulate(rng, args)
	if len(*tr.Retv) != 2 {
		t.Fatalf("expected a 2D observation, got %v", *tr.Retv)
	}
	latent, ok := choicetrie.Read[gfi.Value](tr.Data, "latent")
	if !ok {
		t.Fatal("expected a latent point at \"latent\"")
	}
	p := latent.MustVector()
	b := args.Bounds
	if p[0] < b.XMin || p[0] >= b.XMax || p[1] < b.YMin || p[1] >= b.YMax {
		t.Fatalf("latent %v outside bounds %+v", p, b)
	}
}

func TestPointed2DWithDriftProposalMH(t *testing.T) {
	model := Pointed2D()
	proposal := DriftProposal()
	rng := rand.New(rand.NewSource(2))
	args := Pointed2DArgs{
		Bounds: Bounds{XMin: -5, XMax: 5, YMin: -5, YMax: 5},
		ObsCov: [][]float64{{1, -0.6}, {-0.6, 2}},
	}
	trace := model.Simulate(rng, args)
	driftArgs := DriftProposalArgs{DriftCov: [][]float64{{0.25, 0}, {0, 0.25}}}

	for i := 0; i < 20; i++ {
		newTrace, _ := infer.MetropolisHastings[Pointed2DArgs, []float64, DriftProposalArgs](
			rng, model, trace, proposal, driftArgs)
		trace = newTrace
	}
	if trace.Retv == nil {
		t.Fatal("expected a well-formed trace after MH iterations")
	}
}

func TestSpiralTrajectoryIsDeterministic(t *testing.T) {
	a := SpiralTrajectory(0, 0, 1, 10, 0)
	b := SpiralTrajectory(0, 0, 1, 10, 0)
	if len(a) != 10 || len(b) != 10 {
		t.Fatal("expected 10 points")
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("expected deterministic trajectory, differed at %d: %v vs %v", i, a[i], b[i])
		}
	}
}

func TestSpiralKernelWithParticleSystem(t *testing.T) {
	driftCov := [][]float64{{0.1, 0}, {0, 0.1}}
	obsCov := [][]float64{{0.5, 0}, {0, 0.5}}
	kernel := SpiralKernel(driftCov, obsCov)
	model := unfold.New[SpiralState](kernel)

	ps := infer.NewParticleSystem(model)
	rng := rand.New(rand.NewSource(3))
	ps.InitStep(rng, SpiralState{X: 0, Y: 0}, 10, nil)
	ps.Step(rng, nil)
	ps.Step(rng, nil)

	ess := ps.EffectiveSampleSize()
	if ess <= 0 {
		t.Fatalf("expected positive ESS, got %v", ess)
	}
}
