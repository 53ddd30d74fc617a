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
	"log/slog"
	"math"
	"math/rand"

	"github.com/latticeforge/gentrace/services/ppl/addrmask"
	"github.com/latticeforge/gentrace/services/ppl/gfi"
)

// ProposalArgs is the argument type a trace-rewrite MH proposal
// generative function receives: a non-owning handle to the trace being
// rewritten, plus whatever extra arguments the proposal itself needs.
type ProposalArgs[A any, R any, P any] struct {
	Weak  *gfi.WeakTrace[A, R]
	Extra P
}

// MetropolisHastings runs one trace-rewrite MH step: propose forward
// choices from a model-specific proposal generative function, fold
// them into the model via Update, assess the reverse move, and accept
// or revert according to the Metropolis-Hastings ratio.
//
// proposal's own return type is irrelevant; only the choice trie its
// Simulate/Generate produce is used, so it is typed any.
func MetropolisHastings[A any, R any, P any](
	rng *rand.Rand,
	model gfi.GenerativeFunction[A, R],
	trace *gfi.Trace[A, R],
	proposal gfi.GenerativeFunction[ProposalArgs[A, R, P], any],
	proposalArgs P,
) (*gfi.Trace[A, R], bool) {
	oldLogjp := trace.Logjp
	bwdChoices := trace.Data.Clone()

	weak := gfi.NewWeakTrace(trace)
	fwdChoices, fwdWeight := gfi.Propose(rng, proposal, ProposalArgs[A, R, P]{Weak: weak, Extra: proposalArgs})
	weak.Invalidate()

	newTrace, discard, modelWeight := model.Update(rng, trace, trace.Args, gfi.DiffNoChange, fwdChoices)

	weak2 := gfi.NewWeakTrace(newTrace)
	bwdWeight := gfi.Assess(rng, proposal, ProposalArgs[A, R, P]{Weak: weak2, Extra: proposalArgs}, discard)
	weak2.Invalidate()

	alpha := modelWeight - fwdWeight + bwdWeight
	u := rng.Float64()
	if math.Log(u) < alpha {
		return newTrace, true
	}

	reverted, _, _ := model.Update(rng, newTrace, newTrace.Args, gfi.DiffNoChange, bwdChoices)
	if math.IsInf(reverted.Logjp, 0) || math.IsNaN(reverted.Logjp) {
		reverted.Logjp = oldLogjp
	} else if math.Abs(reverted.Logjp-oldLogjp) > 1e-8 {
		slog.Warn("mh: reverted logjp diverged from pre-call logjp",
			"reverted_logjp", reverted.Logjp, "old_logjp", oldLogjp)
	}
	return reverted, false
}

// RegenerateMH runs one regenerate-MH step: regenerate every address
// mask selects, accepting with probability min(1, exp(weight)). On
// rejection the pre-call trace is returned unchanged (regenerate's
// weight already accounts for the prior ratio, so no explicit revert
// call is needed).
func RegenerateMH[A any, R any](
	rng *rand.Rand,
	model gfi.GenerativeFunction[A, R],
	trace *gfi.Trace[A, R],
	mask *addrmask.Mask,
) (*gfi.Trace[A, R], bool) {
	pre := trace.Clone()
	newTrace, weight := model.Regenerate(rng, trace, trace.Args, gfi.DiffNoChange, mask)
	u := rng.Float64()
	if math.Log(u) < weight {
		return newTrace, true
	}
	return pre, false
}
