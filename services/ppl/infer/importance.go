// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package infer implements the two inference kernels built on the GFI
// contract: importance sampling/resampling and the trace-rewrite and
// regenerate Metropolis-Hastings variants, plus the particle system
// built over unfold.UnfoldGF.
package infer

import (
	"math"
	"math/rand"

	"github.com/latticeforge/gentrace/services/ppl/choicetrie"
	"github.com/latticeforge/gentrace/services/ppl/gfi"
	"github.com/latticeforge/gentrace/services/ppl/statutil"
)

// cloneConstraints returns an empty trie for a nil constraints set, or
// a fresh clone otherwise: Generate consumes (Remove's from) whatever
// trie it is handed, so a set of constraints shared across repeated
// calls must be cloned per call.
func cloneConstraints(constraints *choicetrie.Node) *choicetrie.Node {
	if constraints == nil {
		return choicetrie.New()
	}
	return constraints.Clone()
}

// ImportanceSamplingResult holds the output of ImportanceSampling: the
// N generated traces, their log-normalized weights (summing to 1 in
// probability space), and the log marginal likelihood estimate.
type ImportanceSamplingResult[A any, R any] struct {
	Traces         []*gfi.Trace[A, R]
	LogNormWeights []float64
	LogML          float64
}

// ImportanceSampling calls model.Generate n times under the same
// constraints, and log-normalizes the resulting importance weights.
func ImportanceSampling[A any, R any](rng *rand.Rand, model gfi.GenerativeFunction[A, R], args A, constraints *choicetrie.Node, n int) ImportanceSamplingResult[A, R] {
	if n <= 0 {
		panic("infer: importance_sampling: n must be positive")
	}
	traces := make([]*gfi.Trace[A, R], n)
	logWeights := make([]float64, n)
	for i := 0; i < n; i++ {
		tr, w := model.Generate(rng, args, cloneConstraints(constraints))
		traces[i] = tr
		logWeights[i] = w
	}
	logTotal := statutil.LogSumExp(logWeights)
	logNorm := make([]float64, n)
	for i := range logNorm {
		logNorm[i] = logWeights[i] - logTotal
	}
	return ImportanceSamplingResult[A, R]{
		Traces:         traces,
		LogNormWeights: logNorm,
		LogML:          logTotal - math.Log(float64(n)),
	}
}

// ImportanceResamplingResult extends ImportanceSamplingResult with the
// K resampled particle indices.
type ImportanceResamplingResult[A any, R any] struct {
	ImportanceSamplingResult[A, R]
	ResampledIndices []int
}

// ImportanceResampling runs ImportanceSampling and additionally draws k
// indices into the result's Traces with probability proportional to
// their normalized weights.
func ImportanceResampling[A any, R any](rng *rand.Rand, model gfi.GenerativeFunction[A, R], args A, constraints *choicetrie.Node, n int, k int) ImportanceResamplingResult[A, R] {
	is := ImportanceSampling(rng, model, args, constraints, n)
	indices := make([]int, k)
	for i := 0; i < k; i++ {
		indices[i] = statutil.CategoricalFromLogWeights(rng, is.LogNormWeights)
	}
	return ImportanceResamplingResult[A, R]{ImportanceSamplingResult: is, ResampledIndices: indices}
}
