// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package dist provides a small set of concrete primitive
// distributions implementing gfi.Distribution. No statistics library
// appears anywhere in this module's dependency surface, so these are
// hand-implemented directly against math/rand; see DESIGN.md.
package dist

import (
	"math"
	"math/rand"

	"github.com/latticeforge/gentrace/services/ppl/gfi"
)

// NormalParams parameterizes the Normal distribution by mean and
// standard deviation (not variance).
type NormalParams struct {
	Mean   float64
	StdDev float64
}

type normalDist struct{}

// Normal is the univariate Gaussian distribution, parameterized by
// NormalParams.
var Normal gfi.Distribution = normalDist{}

func (normalDist) Sample(rng *rand.Rand, params any) gfi.Value {
	p := params.(NormalParams)
	return gfi.FloatValue(p.Mean + p.StdDev*rng.NormFloat64())
}

func (normalDist) LogPdf(x gfi.Value, params any) float64 {
	p := params.(NormalParams)
	z := (x.MustFloat() - p.Mean) / p.StdDev
	return -0.5*z*z - math.Log(p.StdDev) - 0.5*math.Log(2*math.Pi)
}

// UniformParams parameterizes the continuous Uniform distribution over
// [Low, High).
type UniformParams struct {
	Low  float64
	High float64
}

type uniformDist struct{}

// Uniform is the continuous uniform distribution, parameterized by
// UniformParams.
var Uniform gfi.Distribution = uniformDist{}

func (uniformDist) Sample(rng *rand.Rand, params any) gfi.Value {
	p := params.(UniformParams)
	return gfi.FloatValue(p.Low + (p.High-p.Low)*rng.Float64())
}

func (uniformDist) LogPdf(x gfi.Value, params any) float64 {
	p := params.(UniformParams)
	v := x.MustFloat()
	if v < p.Low || v >= p.High {
		return math.Inf(-1)
	}
	return -math.Log(p.High - p.Low)
}

// BernoulliParams parameterizes the Bernoulli distribution by the
// probability of true.
type BernoulliParams struct {
	P float64
}

type bernoulliDist struct{}

// Bernoulli is the Bernoulli distribution, parameterized by
// BernoulliParams.
var Bernoulli gfi.Distribution = bernoulliDist{}

func (bernoulliDist) Sample(rng *rand.Rand, params any) gfi.Value {
	p := params.(BernoulliParams)
	return gfi.BoolValue(rng.Float64() < p.P)
}

func (bernoulliDist) LogPdf(x gfi.Value, params any) float64 {
	p := params.(BernoulliParams)
	if x.MustBool() {
		return math.Log(p.P)
	}
	return math.Log(1 - p.P)
}

// CategoricalParams parameterizes the Categorical distribution by a
// vector of probabilities over indices 0..len(Probs)-1. The caller is
// responsible for ensuring Probs sums to 1.
type CategoricalParams struct {
	Probs []float64
}

type categoricalDist struct{}

// Categorical is the categorical distribution over {0, ..., n-1},
// parameterized by CategoricalParams. Sampled and assessed values are
// represented as Int.
var Categorical gfi.Distribution = categoricalDist{}

func (categoricalDist) Sample(rng *rand.Rand, params any) gfi.Value {
	p := params.(CategoricalParams)
	u := rng.Float64()
	cum := 0.0
	for i, pr := range p.Probs {
		cum += pr
		if u <= cum {
			return gfi.IntValue(int64(i))
		}
	}
	return gfi.IntValue(int64(len(p.Probs) - 1))
}

func (categoricalDist) LogPdf(x gfi.Value, params any) float64 {
	p := params.(CategoricalParams)
	i := x.MustInt()
	if i < 0 || int(i) >= len(p.Probs) {
		return math.Inf(-1)
	}
	pr := p.Probs[i]
	if pr <= 0 {
		return math.Inf(-1)
	}
	return math.Log(pr)
}

// PoissonParams parameterizes the Poisson distribution by its rate.
type PoissonParams struct {
	Lambda float64
}

type poissonDist struct{}

// Poisson is the Poisson distribution, parameterized by PoissonParams,
// sampled via Knuth's multiplication algorithm.
var Poisson gfi.Distribution = poissonDist{}

func (poissonDist) Sample(rng *rand.Rand, params any) gfi.Value {
	p := params.(PoissonParams)
	l := math.Exp(-p.Lambda)
	k := int64(0)
	prod := 1.0
	for {
		prod *= rng.Float64()
		if prod <= l {
			return gfi.IntValue(k)
		}
		k++
	}
}

func (poissonDist) LogPdf(x gfi.Value, params any) float64 {
	p := params.(PoissonParams)
	k := x.MustInt()
	if k < 0 {
		return math.Inf(-1)
	}
	return float64(k)*math.Log(p.Lambda) - p.Lambda - logFactorial(k)
}

func logFactorial(k int64) float64 {
	sum := 0.0
	for i := int64(2); i <= k; i++ {
		sum += math.Log(float64(i))
	}
	return sum
}

// GammaParams parameterizes the Gamma distribution by shape (Alpha)
// and rate (Beta).
type GammaParams struct {
	Alpha float64
	Beta  float64
}

type gammaDist struct{}

// Gamma is the Gamma distribution, parameterized by GammaParams and
// sampled via the Marsaglia-Tsang method.
var Gamma gfi.Distribution = gammaDist{}

func (gammaDist) Sample(rng *rand.Rand, params any) gfi.Value {
	p := params.(GammaParams)
	return gfi.FloatValue(sampleGamma(rng, p.Alpha) / p.Beta)
}

// sampleGamma draws from Gamma(shape, rate=1) via Marsaglia-Tsang,
// boosting sub-unit shapes by one and correcting with a uniform power.
func sampleGamma(rng *rand.Rand, shape float64) float64 {
	if shape < 1 {
		u := rng.Float64()
		return sampleGamma(rng, shape+1) * math.Pow(u, 1/shape)
	}
	d := shape - 1.0/3.0
	c := 1.0 / math.Sqrt(9*d)
	for {
		var x, v float64
		for {
			x = rng.NormFloat64()
			v = 1 + c*x
			if v > 0 {
				break
			}
		}
		v = v * v * v
		u := rng.Float64()
		if u < 1-0.0331*x*x*x*x {
			return d * v
		}
		if math.Log(u) < 0.5*x*x+d*(1-v+math.Log(v)) {
			return d * v
		}
	}
}

func (gammaDist) LogPdf(x gfi.Value, params any) float64 {
	p := params.(GammaParams)
	v := x.MustFloat()
	if v <= 0 {
		return math.Inf(-1)
	}
	return p.Alpha*math.Log(p.Beta) - lgamma(p.Alpha) + (p.Alpha-1)*math.Log(v) - p.Beta*v
}

func lgamma(x float64) float64 {
	v, _ := math.Lgamma(x)
	return v
}

// UniformVectorParams parameterizes a uniform distribution over the
// axis-aligned box [Low[i], High[i]) in each dimension independently.
type UniformVectorParams struct {
	Low  []float64
	High []float64
}

type uniformVectorDist struct{}

// UniformVector is an n-dimensional box-uniform distribution,
// parameterized by UniformVectorParams, grounded on the 2D point prior
// a branching spatial model draws its latent location from.
var UniformVector gfi.Distribution = uniformVectorDist{}

func (uniformVectorDist) Sample(rng *rand.Rand, params any) gfi.Value {
	p := params.(UniformVectorParams)
	v := make([]float64, len(p.Low))
	for i := range v {
		v[i] = p.Low[i] + (p.High[i]-p.Low[i])*rng.Float64()
	}
	return gfi.VectorValue(v)
}

func (uniformVectorDist) LogPdf(x gfi.Value, params any) float64 {
	p := params.(UniformVectorParams)
	v := x.MustVector()
	if len(v) != len(p.Low) {
		return math.Inf(-1)
	}
	logDensity := 0.0
	for i, vi := range v {
		if vi < p.Low[i] || vi >= p.High[i] {
			return math.Inf(-1)
		}
		logDensity -= math.Log(p.High[i] - p.Low[i])
	}
	return logDensity
}

// BetaParams parameterizes the Beta distribution by its two shape
// parameters.
type BetaParams struct {
	Alpha float64
	Beta  float64
}

type betaDist struct{}

// Beta is the Beta distribution, parameterized by BetaParams and
// sampled via the standard Gamma-ratio construction.
var Beta gfi.Distribution = betaDist{}

func (betaDist) Sample(rng *rand.Rand, params any) gfi.Value {
	p := params.(BetaParams)
	x := sampleGamma(rng, p.Alpha)
	y := sampleGamma(rng, p.Beta)
	return gfi.FloatValue(x / (x + y))
}

func (betaDist) LogPdf(x gfi.Value, params any) float64 {
	p := params.(BetaParams)
	v := x.MustFloat()
	if v <= 0 || v >= 1 {
		return math.Inf(-1)
	}
	logBeta := lgamma(p.Alpha) + lgamma(p.Beta) - lgamma(p.Alpha+p.Beta)
	return (p.Alpha-1)*math.Log(v) + (p.Beta-1)*math.Log(1-v) - logBeta
}
