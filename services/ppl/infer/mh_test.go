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

	"github.com/latticeforge/gentrace/services/ppl/addrmask"
	"github.com/latticeforge/gentrace/services/ppl/dist"
	"github.com/latticeforge/gentrace/services/ppl/gfi"
)

func coinFlipProposal() *gfi.Model[ProposalArgs[coinArgs, bool, struct{}], any] {
	return gfi.New(func(h *gfi.Handler, args ProposalArgs[coinArgs, bool, struct{}]) any {
		h.SampleBool(dist.Bernoulli, dist.BernoulliParams{P: 0.5}, "heads")
		return nil
	})
}

func TestMetropolisHastingsPreservesLogjpInvariantOnReject(t *testing.T) {
	model := coinModel()
	proposal := coinFlipProposal()
	rng := rand.New(rand.NewSource(123))

	trace := model.Simulate(rng, coinArgs{})
	oldLogjp := trace.Logjp
	newTrace, accepted := MetropolisHastings[coinArgs, bool, struct{}](rng, model, trace, proposal, struct{}{})
	if newTrace == nil {
		t.Fatal("expected a non-nil trace regardless of acceptance")
	}
	if !accepted && math.Abs(newTrace.Logjp-oldLogjp) > 1e-8 {
		t.Fatalf("rejected move changed logjp: %v -> %v", oldLogjp, newTrace.Logjp)
	}
	if math.IsNaN(newTrace.Logjp) {
		t.Fatal("logjp must never be NaN")
	}
	if math.Abs(newTrace.Logjp-newTrace.Data.Weight()) > 1e-9 {
		t.Fatalf("logjp %v differs from data weight %v", newTrace.Logjp, newTrace.Data.Weight())
	}
}

func TestMetropolisHastingsManyStepsStayWellFormed(t *testing.T) {
	model := coinModel()
	proposal := coinFlipProposal()
	rng := rand.New(rand.NewSource(9))
	trace := model.Simulate(rng, coinArgs{})
	for i := 0; i < 50; i++ {
		trace, _ = MetropolisHastings[coinArgs, bool, struct{}](rng, model, trace, proposal, struct{}{})
		if trace.Retv == nil {
			t.Fatal("expected a return value on every step")
		}
	}
}

func TestRegenerateMHAcceptOrKeepPreCallTrace(t *testing.T) {
	model := coinModel()
	rng := rand.New(rand.NewSource(55))
	trace := model.Simulate(rng, coinArgs{})
	mask := addrmask.New()
	mask.Visit("heads")

	before := *trace.Retv
	newTrace, accepted := RegenerateMH[coinArgs, bool](rng, model, trace, mask)
	if newTrace == nil {
		t.Fatal("expected non-nil trace")
	}
	if !accepted && *newTrace.Retv != before {
		t.Fatalf("rejected move must return the pre-call trace: heads %v -> %v", before, *newTrace.Retv)
	}
	if math.Abs(newTrace.Logjp-newTrace.Data.Weight()) > 1e-9 {
		t.Fatalf("logjp %v differs from data weight %v", newTrace.Logjp, newTrace.Data.Weight())
	}
}
