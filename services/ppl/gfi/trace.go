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

import "github.com/latticeforge/gentrace/services/ppl/choicetrie"

// Trace is the record a generative-function call produces: the
// arguments it ran with, the choice trie it populated, its return
// value, and the total log-joint-probability of everything in the
// trie.
type Trace[A any, R any] struct {
	Args  A
	Data  *choicetrie.Node
	Retv  *R
	Logjp float64
}

// Clone deep-copies t. Mutating the clone's Data never affects t's.
func (t *Trace[A, R]) Clone() *Trace[A, R] {
	if t == nil {
		return nil
	}
	retv := *t.Retv
	return &Trace[A, R]{
		Args:  t.Args,
		Data:  t.Data.Clone(),
		Retv:  &retv,
		Logjp: t.Logjp,
	}
}

// WeakTrace is a non-owning, short-lived handle to a Trace, used to
// let an MH proposal read the current trace without taking ownership
// of it. It is valid only for the duration of the call that issued it;
// the driver explicitly invalidates it as soon as that call returns.
// This models spec.md §5's "weak reference" as a borrow/handle rather
// than a reference-counted pointer, since Go's garbage collector makes
// a true weak pointer both unnecessary and unavailable.
type WeakTrace[A any, R any] struct {
	trace   *Trace[A, R]
	invalid bool
}

// NewWeakTrace wraps trace in a fresh, valid handle.
func NewWeakTrace[A any, R any](trace *Trace[A, R]) *WeakTrace[A, R] {
	return &WeakTrace[A, R]{trace: trace}
}

// Get returns the underlying trace, panicking if the handle has
// already been invalidated.
func (w *WeakTrace[A, R]) Get() *Trace[A, R] {
	if w == nil || w.invalid {
		panic(ErrDanglingWeakTrace)
	}
	return w.trace
}

// Invalidate marks the handle dangling. Further calls to Get panic.
func (w *WeakTrace[A, R]) Invalidate() {
	w.invalid = true
}
