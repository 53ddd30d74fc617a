// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package unfold lifts a per-step kernel generative function into a
// generative function over a whole time-indexed trajectory, the
// foundation the infer package's particle system builds on.
package unfold

import (
	"fmt"
	"math/rand"
	"strconv"

	"github.com/latticeforge/gentrace/services/ppl/addrmask"
	"github.com/latticeforge/gentrace/services/ppl/choicetrie"
	"github.com/latticeforge/gentrace/services/ppl/gfi"
)

// KernelArgs is the argument type a per-step kernel generative function
// receives: the 1-indexed step number and the state carried in from the
// previous step.
type KernelArgs[S any] struct {
	Step  int64
	State S
}

// Args is the argument type UnfoldGF's own GFI methods receive: run the
// kernel forward through FinalT steps (FinalT >= 1), starting from
// InitState.
type Args[S any] struct {
	FinalT    int64
	InitState S
}

// UnfoldGF lifts Kernel, a per-step generative function of
// KernelArgs[S] producing a new state S, into a generative function of
// Args[S] producing the full sequence of per-step states. Each step's
// sub-trace is installed under the address "step/<t>" (1-indexed),
// mirroring the per-step addressing a particle system's constraints
// and discards are keyed by.
//
// UnfoldGF implements gfi.GenerativeFunction directly instead of
// wrapping gfi.Model, because its Update is restricted to strictly
// appending steps (diff Extend) and cannot be expressed by re-running
// a single body from scratch without re-validating already-settled
// earlier steps.
type UnfoldGF[S any] struct {
	Kernel gfi.GenerativeFunction[KernelArgs[S], S]
}

// New wraps kernel as an UnfoldGF.
func New[S any](kernel gfi.GenerativeFunction[KernelArgs[S], S]) *UnfoldGF[S] {
	return &UnfoldGF[S]{Kernel: kernel}
}

func stepAddress(t int64) string {
	return "step/" + strconv.FormatInt(t, 10)
}

func (u *UnfoldGF[S]) Simulate(rng *rand.Rand, args Args[S]) *gfi.Trace[Args[S], []S] {
	if args.FinalT < 1 {
		panic("unfold: simulate: final_t must be >= 1")
	}
	data := choicetrie.New()
	states := make([]S, 0, args.FinalT)
	state := args.InitState
	for t := int64(1); t <= args.FinalT; t++ {
		child := u.Kernel.Simulate(rng, KernelArgs[S]{Step: t, State: state})
		child.Data.ReplaceInner(*child.Retv)
		data.Insert(stepAddress(t), child.Data)
		state = *child.Retv
		states = append(states, state)
	}
	return &gfi.Trace[Args[S], []S]{Args: args, Data: data, Retv: &states, Logjp: data.Weight()}
}

// Generate runs the kernel forward FinalT steps, consuming
// constraints[t] (1-indexed, addressed the same way Simulate installs
// sub-traces) wherever present.
func (u *UnfoldGF[S]) Generate(rng *rand.Rand, args Args[S], constraints *choicetrie.Node) (*gfi.Trace[Args[S], []S], float64) {
	if args.FinalT < 1 {
		panic("unfold: generate: final_t must be >= 1")
	}
	if constraints == nil {
		constraints = choicetrie.New()
	}
	data := choicetrie.New()
	states := make([]S, 0, args.FinalT)
	state := args.InitState
	weight := 0.0
	for t := int64(1); t <= args.FinalT; t++ {
		addr := stepAddress(t)
		var child *gfi.Trace[KernelArgs[S], S]
		if sub, ok := constraints.Remove(addr); ok {
			var w float64
			child, w = u.Kernel.Generate(rng, KernelArgs[S]{Step: t, State: state}, sub)
			weight += w
		} else {
			child = u.Kernel.Simulate(rng, KernelArgs[S]{Step: t, State: state})
		}
		child.Data.ReplaceInner(*child.Retv)
		data.Insert(addr, child.Data)
		state = *child.Retv
		states = append(states, state)
	}
	if !constraints.IsEmpty() {
		panic("unfold: generate: residual constraints beyond final_t")
	}
	return &gfi.Trace[Args[S], []S]{Args: args, Data: data, Retv: &states, Logjp: data.Weight()}, weight
}

// Update implements only the Extend diff: args.FinalT must strictly
// exceed trace's, and constraints may name only the new steps. A new
// step with no constraints is simulated; a constraint left over for
// any other step panics. Earlier steps are left untouched. Any other
// diff panics.
func (u *UnfoldGF[S]) Update(rng *rand.Rand, trace *gfi.Trace[Args[S], []S], args Args[S], diff gfi.Diff, constraints *choicetrie.Node) (*gfi.Trace[Args[S], []S], *choicetrie.Node, float64) {
	if diff != gfi.DiffExtend {
		panic(fmt.Sprintf("unfold: update: only Extend is supported, got diff=%d", diff))
	}
	oldT := int64(len(*trace.Retv))
	if args.FinalT <= oldT {
		panic("unfold: update: extend requires final_t' > final_t")
	}
	if constraints == nil {
		constraints = choicetrie.New()
	}

	states := append([]S(nil), *trace.Retv...)
	state := states[len(states)-1]
	weight := 0.0
	for t := oldT + 1; t <= args.FinalT; t++ {
		addr := stepAddress(t)
		var child *gfi.Trace[KernelArgs[S], S]
		if sub, ok := constraints.Remove(addr); ok {
			var w float64
			child, w = u.Kernel.Generate(rng, KernelArgs[S]{Step: t, State: state}, sub)
			weight += w
		} else {
			child = u.Kernel.Simulate(rng, KernelArgs[S]{Step: t, State: state})
		}
		child.Data.ReplaceInner(*child.Retv)
		trace.Data.Insert(addr, child.Data)
		state = *child.Retv
		states = append(states, state)
	}
	if !constraints.IsEmpty() {
		panic("unfold: update: residual constraints beyond final_t'")
	}

	newTrace := &gfi.Trace[Args[S], []S]{Args: args, Data: trace.Data, Retv: &states, Logjp: trace.Data.Weight()}
	return newTrace, choicetrie.New(), weight
}

// Regenerate is not supported: Unfold defines only Extend semantics
// for time-indexed growth, with no notion of resampling a subset of
// already-committed steps.
func (u *UnfoldGF[S]) Regenerate(rng *rand.Rand, trace *gfi.Trace[Args[S], []S], args Args[S], diff gfi.Diff, mask *addrmask.Mask) (*gfi.Trace[Args[S], []S], float64) {
	panic("unfold: regenerate is not supported")
}
