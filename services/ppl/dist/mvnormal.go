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
	"fmt"
	"math"
	"math/rand"

	"github.com/latticeforge/gentrace/services/ppl/gfi"
)

// MVNormalParams parameterizes the multivariate Normal distribution by
// a mean vector and a (dense, row-major) covariance matrix of the same
// dimension. Cov must be symmetric positive-definite.
type MVNormalParams struct {
	Mean []float64
	Cov  [][]float64
}

type mvNormalDist struct{}

// MVNormal is the multivariate Gaussian distribution, parameterized by
// MVNormalParams. No linear-algebra library appears anywhere in this
// module's dependency surface, so its Cholesky decomposition and
// triangular solves are hand-rolled; see DESIGN.md.
var MVNormal gfi.Distribution = mvNormalDist{}

func (mvNormalDist) Sample(rng *rand.Rand, params any) gfi.Value {
	p := params.(MVNormalParams)
	n := len(p.Mean)
	l := cholesky(p.Cov)
	z := make([]float64, n)
	for i := range z {
		z[i] = rng.NormFloat64()
	}
	x := make([]float64, n)
	for i := 0; i < n; i++ {
		sum := p.Mean[i]
		for j := 0; j <= i; j++ {
			sum += l[i][j] * z[j]
		}
		x[i] = sum
	}
	return gfi.VectorValue(x)
}

func (mvNormalDist) LogPdf(x gfi.Value, params any) float64 {
	p := params.(MVNormalParams)
	v := x.MustVector()
	n := len(p.Mean)
	if len(v) != n {
		return math.Inf(-1)
	}
	l := cholesky(p.Cov)

	diff := make([]float64, n)
	for i := range diff {
		diff[i] = v[i] - p.Mean[i]
	}
	y := forwardSolve(l, diff)

	quad := 0.0
	for _, yi := range y {
		quad += yi * yi
	}

	logDet := 0.0
	for i := 0; i < n; i++ {
		logDet += 2 * math.Log(l[i][i])
	}

	return -0.5*quad - 0.5*logDet - 0.5*float64(n)*math.Log(2*math.Pi)
}

// cholesky returns the lower-triangular L such that L*L^T = cov,
// panicking if cov is not symmetric positive-definite.
func cholesky(cov [][]float64) [][]float64 {
	n := len(cov)
	l := make([][]float64, n)
	for i := range l {
		l[i] = make([]float64, n)
	}
	for i := 0; i < n; i++ {
		for j := 0; j <= i; j++ {
			sum := cov[i][j]
			for k := 0; k < j; k++ {
				sum -= l[i][k] * l[j][k]
			}
			if i == j {
				if sum <= 0 {
					panic(fmt.Sprintf("dist: mvnormal: covariance is not positive-definite at %d", i))
				}
				l[i][j] = math.Sqrt(sum)
			} else {
				l[i][j] = sum / l[j][j]
			}
		}
	}
	return l
}

// forwardSolve solves L*y = b for y, where l is lower-triangular.
func forwardSolve(l [][]float64, b []float64) []float64 {
	n := len(b)
	y := make([]float64, n)
	for i := 0; i < n; i++ {
		sum := b[i]
		for j := 0; j < i; j++ {
			sum -= l[i][j] * y[j]
		}
		y[i] = sum / l[i][i]
	}
	return y
}
