// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package unfold

import (
	"math/rand"
	"testing"

	"github.com/latticeforge/gentrace/services/ppl/choicetrie"
	"github.com/latticeforge/gentrace/services/ppl/dist"
	"github.com/latticeforge/gentrace/services/ppl/gfi"
)

// randomWalkKernel is a kernel generative function: each step moves
// the scalar state by a Normal(0, 1) increment.
func randomWalkKernel() *gfi.Model[KernelArgs[float64], float64] {
	return gfi.New(func(h *gfi.Handler, args KernelArgs[float64]) float64 {
		step := h.SampleFloat(dist.Normal, dist.NormalParams{Mean: 0, StdDev: 1}, "step")
		return args.State + step
	})
}

func TestUnfoldSimulateProducesFinalTStates(t *testing.T) {
	u := New[float64](randomWalkKernel())
	rng := rand.New(rand.NewSource(1))
	tr := u.Simulate(rng, Args[float64]{FinalT: 5, InitState: 0})
	if len(*tr.Retv) != 5 {
		t.Fatalf("expected 5 states, got %d", len(*tr.Retv))
	}
	if _, ok := tr.Data.Search(stepAddress(1)); !ok {
		t.Fatal("expected step/1 subtree")
	}
	if _, ok := tr.Data.Search(stepAddress(5)); !ok {
		t.Fatal("expected step/5 subtree")
	}
}

func TestUnfoldGenerateWithConstraints(t *testing.T) {
	u := New[float64](randomWalkKernel())
	rng := rand.New(rand.NewSource(2))

	constraints := choicetrie.FromPairs(
		choicetrie.Pair{Address: stepAddress(1) + "/step", Value: gfi.FloatValue(10)},
	)
	tr, weight := u.Generate(rng, Args[float64]{FinalT: 2, InitState: 0}, constraints)
	if (*tr.Retv)[0] != 10 {
		t.Fatalf("expected first state 10, got %v", (*tr.Retv)[0])
	}
	if weight == 0 {
		t.Fatal("expected nonzero weight from constrained step")
	}
}

func TestUnfoldUpdateExtend(t *testing.T) {
	u := New[float64](randomWalkKernel())
	rng := rand.New(rand.NewSource(3))
	tr := u.Simulate(rng, Args[float64]{FinalT: 2, InitState: 0})

	constraints := choicetrie.FromPairs(
		choicetrie.Pair{Address: stepAddress(3) + "/step", Value: gfi.FloatValue(1)},
	)
	newTrace, discard, _ := u.Update(rng, tr, Args[float64]{FinalT: 3, InitState: 0}, gfi.DiffExtend, constraints)
	if len(*newTrace.Retv) != 3 {
		t.Fatalf("expected 3 states after extend, got %d", len(*newTrace.Retv))
	}
	if !discard.IsEmpty() {
		t.Fatal("expected empty discard for pure extend")
	}
}

func TestUnfoldUpdateRejectsNonExtend(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic for non-extend diff")
		}
	}()
	u := New[float64](randomWalkKernel())
	rng := rand.New(rand.NewSource(4))
	tr := u.Simulate(rng, Args[float64]{FinalT: 2, InitState: 0})
	u.Update(rng, tr, Args[float64]{FinalT: 3, InitState: 0}, gfi.DiffNoChange, choicetrie.New())
}

func TestUnfoldRegenerateUnsupported(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic")
		}
	}()
	u := New[float64](randomWalkKernel())
	rng := rand.New(rand.NewSource(5))
	tr := u.Simulate(rng, Args[float64]{FinalT: 2, InitState: 0})
	u.Regenerate(rng, tr, Args[float64]{FinalT: 2, InitState: 0}, gfi.DiffNoChange, nil)
}
