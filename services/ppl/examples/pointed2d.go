// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package examples holds small, concrete generative functions used to
// exercise the rest of this module: a two-dimensional point-location
// model for the Metropolis-Hastings kernels, and a spiral trajectory
// model for the Unfold/particle-system combinators.
package examples

import (
	"github.com/latticeforge/gentrace/services/ppl/choicetrie"
	"github.com/latticeforge/gentrace/services/ppl/dist"
	"github.com/latticeforge/gentrace/services/ppl/gfi"
	"github.com/latticeforge/gentrace/services/ppl/infer"
)

// Bounds is the axis-aligned box a Pointed2D latent location is drawn
// uniformly from.
type Bounds struct {
	XMin, XMax, YMin, YMax float64
}

// Pointed2DArgs is the argument type the Pointed2D model runs under: the
// bounds its latent point is drawn from, and the covariance of the
// Gaussian observation noise around it.
type Pointed2DArgs struct {
	Bounds Bounds
	ObsCov [][]float64
}

// Pointed2D samples a 2D point uniformly within args.Bounds at address
// "latent", then observes a noisy 2D measurement of it at address
// "obs" under args.ObsCov. It is the model half of the
// latent-point-location scenario the trace-rewrite and regenerate MH
// kernels are exercised against.
func Pointed2D() *gfi.Model[Pointed2DArgs, []float64] {
	return gfi.New(func(h *gfi.Handler, args Pointed2DArgs) []float64 {
		latentParams := dist.UniformVectorParams{
			Low:  []float64{args.Bounds.XMin, args.Bounds.YMin},
			High: []float64{args.Bounds.XMax, args.Bounds.YMax},
		}
		latent := h.SampleVector(dist.UniformVector, latentParams, "latent")

		obsParams := dist.MVNormalParams{Mean: latent, Cov: args.ObsCov}
		obs := h.SampleVector(dist.MVNormal, obsParams, "obs")
		return obs
	})
}

// DriftProposalArgs is the per-call argument the drift proposal needs
// beyond the weak trace it reads the current latent location from: the
// covariance of the Gaussian drift step.
type DriftProposalArgs struct {
	DriftCov [][]float64
}

// DriftProposal is an MH proposal for Pointed2D: it reads the current
// trace's latent point through the weak reference and proposes a new
// one offset by Gaussian drift noise, constraining "latent" to the new
// value. It never touches "obs".
func DriftProposal() *gfi.Model[infer.ProposalArgs[Pointed2DArgs, []float64, DriftProposalArgs], any] {
	return gfi.New(func(h *gfi.Handler, args infer.ProposalArgs[Pointed2DArgs, []float64, DriftProposalArgs]) any {
		current := args.Weak.Get()
		old, _ := choicetrie.Read[gfi.Value](current.Data, "latent")
		oldVec := old.MustVector()

		driftParams := dist.MVNormalParams{Mean: oldVec, Cov: args.Extra.DriftCov}
		h.SampleVector(dist.MVNormal, driftParams, "latent")
		return nil
	})
}
