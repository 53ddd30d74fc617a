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

	"github.com/latticeforge/gentrace/services/ppl/choicetrie"
	"github.com/latticeforge/gentrace/services/ppl/dist"
	"github.com/latticeforge/gentrace/services/ppl/gfi"
)

type coinArgs struct{}

func coinModel() *gfi.Model[coinArgs, bool] {
	return gfi.New(func(h *gfi.Handler, args coinArgs) bool {
		return h.SampleBool(dist.Bernoulli, dist.BernoulliParams{P: 0.5}, "heads")
	})
}

func TestImportanceSamplingNormalizesWeights(t *testing.T) {
	model := coinModel()
	rng := rand.New(rand.NewSource(42))
	constraints := choicetrie.FromPairs(choicetrie.Pair{Address: "heads", Value: gfi.BoolValue(true)})

	res := ImportanceSampling[coinArgs, bool](rng, model, coinArgs{}, constraints, 10)
	if len(res.Traces) != 10 {
		t.Fatalf("expected 10 traces, got %d", len(res.Traces))
	}
	sum := 0.0
	for _, lw := range res.LogNormWeights {
		sum += math.Exp(lw)
	}
	if math.Abs(sum-1.0) > 1e-9 {
		t.Fatalf("log-normalized weights should sum to 1 in probability space, got %v", sum)
	}
	for _, tr := range res.Traces {
		if !*tr.Retv {
			t.Fatal("expected every constrained trace to return true")
		}
	}
}

func TestImportanceResamplingIndicesInRange(t *testing.T) {
	model := coinModel()
	rng := rand.New(rand.NewSource(7))
	res := ImportanceResampling[coinArgs, bool](rng, model, coinArgs{}, nil, 8, 4)
	if len(res.ResampledIndices) != 4 {
		t.Fatalf("expected 4 indices, got %d", len(res.ResampledIndices))
	}
	for _, idx := range res.ResampledIndices {
		if idx < 0 || idx >= 8 {
			t.Fatalf("index %d out of range", idx)
		}
	}
}
