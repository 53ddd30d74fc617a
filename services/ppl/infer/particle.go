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
	"fmt"
	"math"
	"math/rand"

	"github.com/latticeforge/gentrace/services/ppl/choicetrie"
	"github.com/latticeforge/gentrace/services/ppl/gfi"
	"github.com/latticeforge/gentrace/services/ppl/statutil"
	"github.com/latticeforge/gentrace/services/ppl/unfold"
)

// wrapStepConstraints addresses sub (a kernel-level constraint trie,
// e.g. {"obs": ...}) under "step/<t>", the address unfold.UnfoldGF
// installs each step's sub-trie at. A nil or empty sub yields an empty
// trie rather than an empty wrapper, so Generate/Update see no
// constraint at all for an unconstrained step.
func wrapStepConstraints(t int64, sub *choicetrie.Node) *choicetrie.Node {
	cloned := cloneConstraints(sub)
	if cloned.IsEmpty() {
		return choicetrie.New()
	}
	wrapped := choicetrie.New()
	wrapped.Insert(fmt.Sprintf("step/%d", t), cloned)
	return wrapped
}

// Particle is one trajectory in a ParticleSystem: its current
// Unfold trace and its running (unnormalized) log-weight.
type Particle[S any] struct {
	Trace     *gfi.Trace[unfold.Args[S], []S]
	LogWeight float64
}

// ParticleSystem is a sequential Monte Carlo particle filter built
// over an unfold.UnfoldGF kernel. It owns N particle trajectories, a
// per-particle log-weight, and a running log marginal likelihood
// estimate accumulated across resampling events. Resampling is
// multinomial; systematic/stratified variants are not implemented.
type ParticleSystem[S any] struct {
	model     *unfold.UnfoldGF[S]
	particles []*Particle[S]
	logML     float64
}

// NewParticleSystem creates an empty particle system over model. Call
// InitStep to populate its particles before Step/Resample.
func NewParticleSystem[S any](model *unfold.UnfoldGF[S]) *ParticleSystem[S] {
	return &ParticleSystem[S]{model: model}
}

// Particles returns the system's current particles.
func (ps *ParticleSystem[S]) Particles() []*Particle[S] { return ps.particles }

// InitStep populates n particles at step 1, each generated from
// initState under constraintsStep0 — a kernel-level constraint trie
// (e.g. {"obs": ...}), cloned and addressed under "step/1" per
// particle, since Generate consumes the trie it is handed and
// UnfoldGF expects each step's constraints keyed by its step address.
func (ps *ParticleSystem[S]) InitStep(rng *rand.Rand, initState S, n int, constraintsStep0 *choicetrie.Node) {
	if n <= 0 {
		panic("infer: particle_system: init_step: n must be positive")
	}
	ps.particles = make([]*Particle[S], n)
	args := unfold.Args[S]{FinalT: 1, InitState: initState}
	for i := 0; i < n; i++ {
		tr, w := ps.model.Generate(rng, args, wrapStepConstraints(1, constraintsStep0))
		ps.particles[i] = &Particle[S]{Trace: tr, LogWeight: w}
	}
}

// Step extends every particle by exactly one time step under
// perStepConstraints — a kernel-level constraint trie, cloned and
// addressed under that particle's new step before being handed to
// UnfoldGF.Update — adding the returned weight delta onto each
// particle's running log-weight.
func (ps *ParticleSystem[S]) Step(rng *rand.Rand, perStepConstraints *choicetrie.Node) {
	for _, p := range ps.particles {
		t := int64(len(*p.Trace.Retv))
		args := unfold.Args[S]{FinalT: t + 1, InitState: p.Trace.Args.InitState}
		newTrace, _, w := ps.model.Update(rng, p.Trace, args, gfi.DiffExtend, wrapStepConstraints(t+1, perStepConstraints))
		p.Trace = newTrace
		p.LogWeight += w
	}
}

func (ps *ParticleSystem[S]) logWeights() []float64 {
	lw := make([]float64, len(ps.particles))
	for i, p := range ps.particles {
		lw[i] = p.LogWeight
	}
	return lw
}

// EffectiveSampleSize returns exp(-logsumexp(2*log_norm_w)), the
// standard ESS diagnostic over the system's current normalized
// weights.
func (ps *ParticleSystem[S]) EffectiveSampleSize() float64 {
	logWeights := ps.logWeights()
	logTotal := statutil.LogSumExp(logWeights)
	doubled := make([]float64, len(logWeights))
	for i, lw := range logWeights {
		doubled[i] = 2 * (lw - logTotal)
	}
	return math.Exp(-statutil.LogSumExp(doubled))
}

// Resample normalizes the particles' weights, folds log_total/N into
// the running log-ml estimate, draws N parent indices from the
// categorical over normalized weights, rebuilds the particle set by
// cloning the chosen parents, and zeroes every log-weight. It returns
// the log-total-weight of the step for diagnostics.
func (ps *ParticleSystem[S]) Resample(rng *rand.Rand) float64 {
	n := len(ps.particles)
	logWeights := ps.logWeights()
	logTotal := statutil.LogSumExp(logWeights)
	ps.logML += logTotal - math.Log(float64(n))

	rebuilt := make([]*Particle[S], n)
	for i := 0; i < n; i++ {
		parent := statutil.CategoricalFromLogWeights(rng, logWeights)
		rebuilt[i] = &Particle[S]{Trace: ps.particles[parent].Trace.Clone(), LogWeight: 0}
	}
	ps.particles = rebuilt
	return logTotal
}

// LogMarginalLikelihoodEstimate returns the system's current estimate
// of the log marginal likelihood: the running total accumulated by
// Resample calls, plus the as-yet-unresampled current step's
// contribution.
func (ps *ParticleSystem[S]) LogMarginalLikelihoodEstimate() float64 {
	n := len(ps.particles)
	return ps.logML + statutil.LogSumExp(ps.logWeights()) - math.Log(float64(n))
}
