// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package statutil

import (
	"math"
	"math/rand"
	"testing"
)

func TestLogSumExpBasic(t *testing.T) {
	got := LogSumExp([]float64{0, 0})
	want := math.Log(2)
	if math.Abs(got-want) > 1e-9 {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestLogSumExpAllNegInf(t *testing.T) {
	got := LogSumExp([]float64{math.Inf(-1), math.Inf(-1)})
	if !math.IsInf(got, -1) {
		t.Fatalf("got %v, want -Inf", got)
	}
}

func TestLogSumExpEmpty(t *testing.T) {
	got := LogSumExp(nil)
	if !math.IsInf(got, -1) {
		t.Fatalf("got %v, want -Inf", got)
	}
}

func TestLogSumExpSingleDominant(t *testing.T) {
	got := LogSumExp([]float64{1000, -1000})
	if math.Abs(got-1000) > 1e-9 {
		t.Fatalf("got %v, want ~1000", got)
	}
}

func TestCategoricalFromLogWeightsDeterministicWhenOneDominant(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	lw := []float64{math.Inf(-1), 0, math.Inf(-1)}
	for i := 0; i < 20; i++ {
		if got := CategoricalFromLogWeights(rng, lw); got != 1 {
			t.Fatalf("got index %d, want 1", got)
		}
	}
}

func TestCategoricalFromLogWeightsPanicsOnAllNegInf(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic")
		}
	}()
	rng := rand.New(rand.NewSource(1))
	CategoricalFromLogWeights(rng, []float64{math.Inf(-1), math.Inf(-1)})
}

func TestNormalizeLogWeights(t *testing.T) {
	norm, logTotal := NormalizeLogWeights([]float64{0, 0})
	if math.Abs(norm[0]-0.5) > 1e-9 || math.Abs(norm[1]-0.5) > 1e-9 {
		t.Fatalf("got %v", norm)
	}
	if math.Abs(logTotal-math.Log(2)) > 1e-9 {
		t.Fatalf("got logTotal %v", logTotal)
	}
}

func TestEffectiveSampleSize(t *testing.T) {
	uniform := []float64{0.25, 0.25, 0.25, 0.25}
	if got := EffectiveSampleSize(uniform); math.Abs(got-4) > 1e-9 {
		t.Fatalf("got %v, want 4", got)
	}
	degenerate := []float64{1, 0, 0, 0}
	if got := EffectiveSampleSize(degenerate); math.Abs(got-1) > 1e-9 {
		t.Fatalf("got %v, want 1", got)
	}
}
