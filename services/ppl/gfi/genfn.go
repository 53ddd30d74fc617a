// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package gfi

import (
	"fmt"
	"math/rand"

	"github.com/latticeforge/gentrace/services/ppl/addrmask"
	"github.com/latticeforge/gentrace/services/ppl/choicetrie"
)

// GenerativeFunction is the generative function interface (GFI): the
// four core operations every probabilistic model exposes, plus the
// three derived operations (Call, Propose, Assess) built from them.
type GenerativeFunction[A any, R any] interface {
	// Simulate runs the model forward, sampling every random choice.
	Simulate(rng *rand.Rand, args A) *Trace[A, R]

	// Generate runs the model forward, using constraints wherever
	// provided and sampling everywhere else. It returns the resulting
	// trace and the log-weight the constrained choices contribute.
	Generate(rng *rand.Rand, args A, constraints *choicetrie.Node) (*Trace[A, R], float64)

	// Update re-runs the model under new arguments, reusing trace's
	// choices wherever diff and the absence of a constraint allow. It
	// returns the new trace, the discarded choices, and the log-weight
	// delta.
	Update(rng *rand.Rand, trace *Trace[A, R], args A, diff Diff, constraints *choicetrie.Node) (*Trace[A, R], *choicetrie.Node, float64)

	// Regenerate re-runs the model under new arguments, resampling
	// every address mask selects and reusing every other cached choice.
	// It returns the new trace and the log-weight delta.
	Regenerate(rng *rand.Rand, trace *Trace[A, R], args A, diff Diff, mask *addrmask.Mask) (*Trace[A, R], float64)
}

// Call runs the model and returns only its return value, discarding
// the trace.
func Call[A any, R any](rng *rand.Rand, gf GenerativeFunction[A, R], args A) R {
	return *gf.Simulate(rng, args).Retv
}

// Propose runs the model and returns the choices it made along with
// their total log-probability — useful as an MH/importance proposal.
func Propose[A any, R any](rng *rand.Rand, gf GenerativeFunction[A, R], args A) (*choicetrie.Node, float64) {
	tr := gf.Simulate(rng, args)
	return tr.Data, tr.Logjp
}

// Assess returns the log-probability of constraints under the model
// run with args. Unconstrained choices are still sampled, but their
// log-weight contribution is excluded.
func Assess[A any, R any](rng *rand.Rand, gf GenerativeFunction[A, R], args A, constraints *choicetrie.Node) float64 {
	_, w := gf.Generate(rng, args, constraints)
	return w
}

// Body is the user-written procedure a Model wraps: it receives the
// handler for the call in progress and the arguments, and returns the
// model's return value, calling h.SampleAt/gfi.TraceAt as needed.
type Body[A any, R any] func(h *Handler, args A) R

// Model adapts a Body into a full GenerativeFunction by constructing
// the right Handler for each of the four GFI operations. It is the
// generic wrapper most models in this repository are built from;
// combinators with bespoke update/regenerate semantics (unfold.UnfoldGF)
// implement GenerativeFunction directly instead.
type Model[A any, R any] struct {
	body Body[A, R]
}

// New wraps body as a Model.
func New[A any, R any](body Body[A, R]) *Model[A, R] {
	return &Model[A, R]{body: body}
}

func (m *Model[A, R]) Simulate(rng *rand.Rand, args A) *Trace[A, R] {
	h := &Handler{mode: ModeSimulate, rng: rng, data: choicetrie.New()}
	retv := m.body(h, args)
	return &Trace[A, R]{Args: args, Data: h.data, Retv: &retv, Logjp: h.data.Weight()}
}

func (m *Model[A, R]) Generate(rng *rand.Rand, args A, constraints *choicetrie.Node) (*Trace[A, R], float64) {
	if constraints == nil {
		constraints = choicetrie.New()
	}
	h := &Handler{mode: ModeGenerate, rng: rng, data: choicetrie.New(), constraints: constraints}
	retv := m.body(h, args)
	if !h.constraints.IsEmpty() {
		panic(fmt.Sprintf("gfi: generate: residual constraints not consumed"))
	}
	return &Trace[A, R]{Args: args, Data: h.data, Retv: &retv, Logjp: h.data.Weight()}, h.weight
}

func (m *Model[A, R]) Update(rng *rand.Rand, trace *Trace[A, R], args A, diff Diff, constraints *choicetrie.Node) (*Trace[A, R], *choicetrie.Node, float64) {
	if constraints == nil {
		constraints = choicetrie.New()
	}
	h := &Handler{
		mode:        ModeUpdate,
		rng:         rng,
		data:        trace.Data,
		constraints: constraints,
		discard:     choicetrie.New(),
		visitor:     addrmask.New(),
		diff:        diff,
	}
	retv := m.body(h, args)
	if !h.constraints.IsEmpty() {
		panic(fmt.Sprintf("gfi: update: residual constraints not consumed"))
	}

	unvisited := h.data.Schema().Complement(h.visitor)
	retained, collected := h.data.Collect(unvisited)
	h.discard.Merge(collected)
	h.weight -= collected.Weight()

	newTrace := &Trace[A, R]{Args: args, Data: retained, Retv: &retv, Logjp: retained.Weight()}
	return newTrace, h.discard, h.weight
}

func (m *Model[A, R]) Regenerate(rng *rand.Rand, trace *Trace[A, R], args A, diff Diff, mask *addrmask.Mask) (*Trace[A, R], float64) {
	if mask == nil {
		mask = addrmask.New()
	}
	h := &Handler{
		mode:    ModeRegenerate,
		rng:     rng,
		data:    trace.Data,
		mask:    mask,
		visitor: addrmask.New(),
		diff:    diff,
	}
	retv := m.body(h, args)

	unvisited := h.data.Schema().Complement(h.visitor)
	retained, _ := h.data.Collect(unvisited)

	newTrace := &Trace[A, R]{Args: args, Data: retained, Retv: &retv, Logjp: retained.Weight()}
	return newTrace, h.weight
}
