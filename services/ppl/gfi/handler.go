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

// Mode is the execution mode a Handler is running under. Each mode
// interprets sample_at/trace_at differently; see spec's component
// design for the per-mode decision table this file implements.
type Mode int

const (
	ModeSimulate Mode = iota
	ModeGenerate
	ModeUpdate
	ModeRegenerate
)

// Diff describes how a generative function's new arguments relate to
// the arguments of the trace being updated or regenerated.
type Diff int

const (
	// DiffNoChange means the arguments are unchanged; reuse cached
	// choices verbatim.
	DiffNoChange Diff = iota
	// DiffUnknown means the arguments may have changed in a way that
	// invalidates cached log-densities, but the trace's structure
	// (which addresses exist) is unaffected.
	DiffUnknown
	// DiffExtend means the arguments grew in a way only a combinator
	// (Unfold) understands how to extend incrementally; a handler
	// encountering it at an ordinary sample_at panics.
	DiffExtend
)

// Handler is the single execution engine behind all four GFI methods.
// It owns the choice trie being read from and/or written to for the
// duration of one generative-function body call; which fields are
// live depends on Mode:
//
//   - Simulate: data only.
//   - Generate: data, constraints, weight.
//   - Update: data (the incoming trace's, mutated in place into the
//     new trace's), constraints, discard, visitor, diff, weight (a
//     delta).
//   - Regenerate: data (mutated in place), mask, visitor, diff, weight
//     (a delta).
type Handler struct {
	mode        Mode
	rng         *rand.Rand
	data        *choicetrie.Node
	weight      float64
	constraints *choicetrie.Node
	discard     *choicetrie.Node
	visitor     *addrmask.Mask
	diff        Diff
	mask        *addrmask.Mask
}

// Rng returns the random source the handler was constructed with, for
// use by combinators (unfold) that need to drive nested calls outside
// sample_at/trace_at.
func (h *Handler) Rng() *rand.Rand { return h.rng }

// maskLeafAt reports whether address falls entirely under a regenerate
// mask leaf: either the handler's whole assigned mask already is a
// leaf (an ancestor trace_at call was itself masked as "regenerate
// everything beneath me"), or address resolves to a leaf within it.
func (h *Handler) maskLeafAt(address string) bool {
	if h.mask.IsLeaf() {
		return true
	}
	cm, ok := h.mask.Search(address)
	return ok && cm.IsLeaf()
}

// maskFor returns the submask to hand to a nested trace_at call at
// address: Leaf() if this whole call should regenerate everything
// beneath it, whatever Search finds otherwise, or an empty mask if
// address is unmentioned.
func (h *Handler) maskFor(address string) *addrmask.Mask {
	if h.mask.IsLeaf() {
		return addrmask.Leaf()
	}
	if m, ok := h.mask.Search(address); ok {
		return m
	}
	return addrmask.New()
}

// SampleAt records (or reads) one primitive random choice at address,
// dispatching on the handler's mode.
func (h *Handler) SampleAt(d Distribution, params any, address string) Value {
	switch h.mode {
	case ModeSimulate:
		x := d.Sample(h.rng, params)
		h.data.Witness(address, x, d.LogPdf(x, params))
		return x

	case ModeGenerate:
		if sub, ok := h.constraints.Remove(address); ok {
			x := leafValue(sub, address)
			lp := d.LogPdf(x, params)
			h.weight += lp
			h.data.Witness(address, x, lp)
			return x
		}
		x := d.Sample(h.rng, params)
		h.data.Witness(address, x, d.LogPdf(x, params))
		return x

	case ModeUpdate:
		h.visitor.Visit(address)
		if sub, ok := h.constraints.Remove(address); ok {
			x := leafValue(sub, address)
			lp := d.LogPdf(x, params)
			if old, ok2 := h.data.Remove(address); ok2 {
				h.weight -= old.Weight()
				h.discard.Insert(address, old)
			}
			h.weight += lp
			h.data.Witness(address, x, lp)
			h.diff = DiffUnknown
			return x
		}
		if old, ok2 := h.data.Search(address); ok2 {
			rawOld, _ := old.Value()
			oldX := rawOld.(Value)
			switch h.diff {
			case DiffNoChange:
				return oldX
			case DiffUnknown:
				newLp := d.LogPdf(oldX, params)
				h.weight += newLp - old.Weight()
				h.data.Reweight(address, newLp)
				return oldX
			default:
				panic(fmt.Sprintf("gfi: sample_at(%q): Extend diff is not supported", address))
			}
		}
		if h.diff == DiffExtend {
			panic(fmt.Sprintf("gfi: sample_at(%q): Extend diff is not supported", address))
		}
		x := d.Sample(h.rng, params)
		h.data.Witness(address, x, d.LogPdf(x, params))
		h.diff = DiffUnknown
		return x

	case ModeRegenerate:
		h.visitor.Visit(address)
		if h.maskLeafAt(address) {
			h.data.Remove(address)
			x := d.Sample(h.rng, params)
			h.data.Witness(address, x, d.LogPdf(x, params))
			h.diff = DiffUnknown
			return x
		}
		if old, ok2 := h.data.Search(address); ok2 {
			rawOld, _ := old.Value()
			oldX := rawOld.(Value)
			switch h.diff {
			case DiffNoChange:
				return oldX
			case DiffUnknown:
				newLp := d.LogPdf(oldX, params)
				h.weight += newLp - old.Weight()
				h.data.Reweight(address, newLp)
				return oldX
			default:
				panic(fmt.Sprintf("gfi: sample_at(%q): Extend diff is not supported", address))
			}
		}
		if h.diff == DiffExtend {
			panic(fmt.Sprintf("gfi: sample_at(%q): Extend diff is not supported", address))
		}
		x := d.Sample(h.rng, params)
		h.data.Witness(address, x, d.LogPdf(x, params))
		h.diff = DiffUnknown
		return x
	}
	panic("gfi: unreachable handler mode")
}

// leafValue extracts a gfi.Value from a constraint subtrie found at
// address, panicking on structural mismatch (the constraint names a
// subtree, not a single sampled value).
func leafValue(sub *choicetrie.Node, address string) Value {
	if !sub.IsLeaf() {
		panic(fmt.Sprintf("gfi: sample_at(%q): structural mismatch: constraint is not a leaf", address))
	}
	raw, _ := sub.Value()
	x, ok := raw.(Value)
	if !ok {
		panic(fmt.Sprintf("gfi: sample_at(%q): constraint value is not a gfi.Value", address))
	}
	return x
}

// SampleFloat is a typed convenience over SampleAt for float-valued
// distributions.
func (h *Handler) SampleFloat(d Distribution, params any, address string) float64 {
	return h.SampleAt(d, params, address).MustFloat()
}

// SampleBool is a typed convenience over SampleAt for bool-valued
// distributions.
func (h *Handler) SampleBool(d Distribution, params any, address string) bool {
	return h.SampleAt(d, params, address).MustBool()
}

// SampleInt is a typed convenience over SampleAt for int-valued
// distributions.
func (h *Handler) SampleInt(d Distribution, params any, address string) int64 {
	return h.SampleAt(d, params, address).MustInt()
}

// SampleVector is a typed convenience over SampleAt for vector-valued
// distributions.
func (h *Handler) SampleVector(d Distribution, params any, address string) []float64 {
	return h.SampleAt(d, params, address).MustVector()
}

// TraceAt calls a nested generative function at address, installing
// its trace as a subtree and stamping its return value onto that
// subtree so later reads (via choicetrie.Read) see it. It is a free
// generic function, not a Handler method, because the nested call's
// argument and return types (A, R) are independent of the caller's.
func TraceAt[A any, R any](h *Handler, gf GenerativeFunction[A, R], args A, address string) R {
	switch h.mode {
	case ModeSimulate:
		child := gf.Simulate(h.rng, args)
		child.Data.ReplaceInner(*child.Retv)
		h.data.Insert(address, child.Data)
		return *child.Retv

	case ModeGenerate:
		if sub, ok := h.constraints.Remove(address); ok {
			if sub.IsLeaf() {
				panic(fmt.Sprintf("gfi: trace_at(%q): structural mismatch: constraint is a leaf", address))
			}
			child, w := gf.Generate(h.rng, args, sub)
			h.weight += w
			child.Data.ReplaceInner(*child.Retv)
			h.data.Insert(address, child.Data)
			return *child.Retv
		}
		child := gf.Simulate(h.rng, args)
		child.Data.ReplaceInner(*child.Retv)
		h.data.Insert(address, child.Data)
		return *child.Retv

	case ModeUpdate:
		h.visitor.Visit(address)
		oldSub, hasOld := h.data.Search(address)
		constraintSub, hasConstraint := h.constraints.Remove(address)
		if hasConstraint && constraintSub.IsLeaf() {
			panic(fmt.Sprintf("gfi: trace_at(%q): structural mismatch: constraint is a leaf", address))
		}
		if hasOld {
			childTrace := traceFromSubtree[A, R](oldSub, args)
			childDiff := h.diff
			if hasConstraint {
				childDiff = DiffUnknown
			}
			newChild, childDiscard, w := gf.Update(h.rng, childTrace, args, childDiff, constraintSub)
			h.data.Remove(address)
			newChild.Data.ReplaceInner(*newChild.Retv)
			h.data.Insert(address, newChild.Data)
			if !childDiscard.IsEmpty() {
				h.discard.Insert(address, childDiscard)
			}
			h.weight += w
			if hasConstraint {
				h.diff = DiffUnknown
			}
			return *newChild.Retv
		}
		var child *Trace[A, R]
		if hasConstraint {
			var w float64
			child, w = gf.Generate(h.rng, args, constraintSub)
			h.weight += w
		} else {
			child = gf.Simulate(h.rng, args)
		}
		child.Data.ReplaceInner(*child.Retv)
		h.data.Insert(address, child.Data)
		h.diff = DiffUnknown
		return *child.Retv

	case ModeRegenerate:
		h.visitor.Visit(address)
		oldSub, hasOld := h.data.Search(address)
		subMask := h.maskFor(address)
		if hasOld {
			childTrace := traceFromSubtree[A, R](oldSub, args)
			newChild, w := gf.Regenerate(h.rng, childTrace, args, h.diff, subMask)
			h.data.Remove(address)
			newChild.Data.ReplaceInner(*newChild.Retv)
			h.data.Insert(address, newChild.Data)
			h.weight += w
			return *newChild.Retv
		}
		child := gf.Simulate(h.rng, args)
		child.Data.ReplaceInner(*child.Retv)
		h.data.Insert(address, child.Data)
		return *child.Retv
	}
	panic("gfi: unreachable handler mode")
}

// traceFromSubtree reconstructs a *Trace[A,R] view over an
// already-installed child subtree, so it can be passed back into the
// child generative function's own Update/Regenerate.
func traceFromSubtree[A any, R any](sub *choicetrie.Node, args A) *Trace[A, R] {
	raw, _ := sub.Value()
	retv, ok := raw.(R)
	if !ok {
		panic("gfi: trace_at: installed subtree's stamped value has an unexpected type")
	}
	return &Trace[A, R]{Args: args, Data: sub, Retv: &retv, Logjp: sub.Weight()}
}
