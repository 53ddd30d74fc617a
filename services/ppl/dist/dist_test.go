// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package dist

import (
	"math"
	"math/rand"
	"testing"

	"github.com/latticeforge/gentrace/services/ppl/gfi"
)

func TestNormalSampleAndLogPdf(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	p := NormalParams{Mean: 2, StdDev: 0.5}
	x := Normal.Sample(rng, p)
	lp := Normal.LogPdf(x, p)
	if math.IsNaN(lp) || math.IsInf(lp, 0) {
		t.Fatalf("unexpected log-pdf %v for sampled value %v", lp, x)
	}
	atMean := Normal.LogPdf(gfi.FloatValue(2), p)
	elsewhere := Normal.LogPdf(gfi.FloatValue(10), p)
	if atMean <= elsewhere {
		t.Fatalf("density at mean (%v) should exceed density far away (%v)", atMean, elsewhere)
	}
}

func TestUniformSupport(t *testing.T) {
	p := UniformParams{Low: 0, High: 1}
	if !math.IsInf(Uniform.LogPdf(gfi.FloatValue(1.5), p), -1) {
		t.Fatal("expected -Inf outside support")
	}
	if math.IsInf(Uniform.LogPdf(gfi.FloatValue(0.5), p), 0) {
		t.Fatal("expected finite density inside support")
	}
}

func TestBernoulli(t *testing.T) {
	p := BernoulliParams{P: 0.25}
	if got := Bernoulli.LogPdf(gfi.BoolValue(true), p); math.Abs(got-math.Log(0.25)) > 1e-9 {
		t.Fatalf("got %v", got)
	}
	if got := Bernoulli.LogPdf(gfi.BoolValue(false), p); math.Abs(got-math.Log(0.75)) > 1e-9 {
		t.Fatalf("got %v", got)
	}
}

func TestCategorical(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	p := CategoricalParams{Probs: []float64{0, 1, 0}}
	for i := 0; i < 10; i++ {
		x := Categorical.Sample(rng, p)
		if x.MustInt() != 1 {
			t.Fatalf("expected index 1, got %v", x.MustInt())
		}
	}
	if math.IsInf(Categorical.LogPdf(gfi.IntValue(1), p), -1) {
		t.Fatal("expected finite density at certain index")
	}
	if !math.IsInf(Categorical.LogPdf(gfi.IntValue(0), p), -1) {
		t.Fatal("expected -Inf at zero-probability index")
	}
}

func TestPoissonMean(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	p := PoissonParams{Lambda: 3.0}
	sum := int64(0)
	const n = 20000
	for i := 0; i < n; i++ {
		sum += Poisson.Sample(rng, p).MustInt()
	}
	mean := float64(sum) / n
	if math.Abs(mean-3.0) > 0.15 {
		t.Fatalf("sample mean %v too far from lambda 3.0", mean)
	}
}

func TestGammaAndBetaSupport(t *testing.T) {
	rng := rand.New(rand.NewSource(5))
	gp := GammaParams{Alpha: 2, Beta: 1}
	x := Gamma.Sample(rng, gp)
	if x.MustFloat() <= 0 {
		t.Fatal("gamma sample must be positive")
	}
	if math.IsInf(Gamma.LogPdf(x, gp), -1) {
		t.Fatal("expected finite density for positive sample")
	}

	bp := BetaParams{Alpha: 2, Beta: 2}
	y := Beta.Sample(rng, bp)
	v := y.MustFloat()
	if v <= 0 || v >= 1 {
		t.Fatalf("beta sample %v out of (0,1)", v)
	}
}

func TestMVNormalRoundTrip(t *testing.T) {
	rng := rand.New(rand.NewSource(9))
	p := MVNormalParams{
		Mean: []float64{1, -1},
		Cov: [][]float64{
			{2, 0.3},
			{0.3, 1},
		},
	}
	x := MVNormal.Sample(rng, p)
	v := x.MustVector()
	if len(v) != 2 {
		t.Fatalf("expected dimension 2, got %d", len(v))
	}
	atMean := MVNormal.LogPdf(gfi.VectorValue([]float64{1, -1}), p)
	far := MVNormal.LogPdf(gfi.VectorValue([]float64{100, 100}), p)
	if atMean <= far {
		t.Fatalf("density at mean (%v) should exceed density far away (%v)", atMean, far)
	}
}

func TestMVNormalNonPositiveDefinitePanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic for non-positive-definite covariance")
		}
	}()
	p := MVNormalParams{
		Mean: []float64{0, 0},
		Cov: [][]float64{
			{1, 2},
			{2, 1},
		},
	}
	rng := rand.New(rand.NewSource(1))
	MVNormal.Sample(rng, p)
}
