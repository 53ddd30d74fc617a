// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package choicetrie implements the hierarchical weighted trie that
// backs every trace: a map from "/"-separated addresses to dynamically
// typed values, each carrying a log-weight that aggregates up the
// spine of the tree.
//
// A node is in exactly one of three states: empty (no value, no
// children), a leaf (a value, no children — an ordinary sampled
// choice), or an internal-with-value node (a value and children — the
// shape a nested generative-function call takes once its trace is
// spliced in and stamped with its return value). Address resolution
// always treats a has-value node as one opaque addressable unit,
// whatever is beneath it.
package choicetrie

import (
	"fmt"

	"github.com/latticeforge/gentrace/services/ppl/addr"
	"github.com/latticeforge/gentrace/services/ppl/addrmask"
)

// Node is one node of a weighted trie.
type Node struct {
	children  map[string]*Node
	value     any
	hasValue  bool
	ownWeight float64 // the log-weight value itself contributes (0 unless witnessed)
	weight    float64 // aggregate: ownWeight (if hasValue) + sum of children's weight
}

// New returns an empty trie node.
func New() *Node {
	return &Node{children: map[string]*Node{}}
}

// IsLeaf reports whether n is an ordinary sampled choice: a value with
// no further structure beneath it.
func (n *Node) IsLeaf() bool {
	return n != nil && n.hasValue && len(n.children) == 0
}

// IsEmpty reports whether n carries neither a value nor any children.
func (n *Node) IsEmpty() bool {
	return n == nil || (!n.hasValue && len(n.children) == 0)
}

// HasValue reports whether n carries an inner value, whether or not it
// also has children.
func (n *Node) HasValue() bool {
	return n != nil && n.hasValue
}

// Value returns n's inner value, if any.
func (n *Node) Value() (any, bool) {
	if n == nil || !n.hasValue {
		return nil, false
	}
	return n.value, true
}

// Weight returns n's aggregate log-weight: its own value's weight (if
// any) plus the weight of every descendant.
func (n *Node) Weight() float64 {
	if n == nil {
		return 0
	}
	return n.weight
}

// Children exposes n's immediate children, keyed by first address
// segment. Callers must not mutate the returned map.
func (n *Node) Children() map[string]*Node {
	if n == nil {
		return nil
	}
	return n.children
}

func (n *Node) recomputeWeight() {
	w := 0.0
	if n.hasValue {
		w += n.ownWeight
	}
	for _, c := range n.children {
		w += c.weight
	}
	n.weight = w
}

// Observe witnesses a value at address with zero weight: the value is
// treated as fixed, contributing nothing to the trace's log-weight.
func (n *Node) Observe(address string, v any) {
	n.Witness(address, v, 0)
}

// Witness records v at address with the given own-weight, propagating
// the weight up the spine. It panics if address is already occupied by
// a value or by a non-empty subtree (address collision).
func (n *Node) Witness(address string, v any, weight float64) {
	sp := addr.SplitAddr(address)
	if n.children == nil {
		n.children = map[string]*Node{}
	}
	if sp.Terminal {
		if existing, ok := n.children[sp.Head]; ok && !existing.IsEmpty() {
			panic(fmt.Sprintf("choicetrie: address collision at %q", sp.Head))
		}
		n.children[sp.Head] = &Node{hasValue: true, value: v, ownWeight: weight, weight: weight}
		n.weight += weight
		return
	}
	child, ok := n.children[sp.Head]
	if !ok {
		child = New()
		n.children[sp.Head] = child
	} else if child.hasValue {
		panic(fmt.Sprintf("choicetrie: address collision at %q: already a leaf", sp.Head))
	}
	child.Witness(sp.Rest, v, weight)
	n.weight += weight
}

// Reweight adjusts the own-weight of the leaf at address, propagating
// the delta up the spine. It panics if address does not name an
// existing value.
func (n *Node) Reweight(address string, newWeight float64) {
	sp := addr.SplitAddr(address)
	child, ok := n.children[sp.Head]
	if !ok {
		panic(fmt.Sprintf("choicetrie: reweight: no value at %q", sp.Head))
	}
	if sp.Terminal {
		if !child.hasValue {
			panic(fmt.Sprintf("choicetrie: reweight: no value at %q", sp.Head))
		}
		delta := newWeight - child.ownWeight
		child.ownWeight = newWeight
		child.weight += delta
		n.weight += delta
		return
	}
	before := child.weight
	child.Reweight(sp.Rest, newWeight)
	n.weight += child.weight - before
}

// Insert splices sub in whole at address, propagating its weight up
// the spine. It panics on address collision.
func (n *Node) Insert(address string, sub *Node) {
	sp := addr.SplitAddr(address)
	if n.children == nil {
		n.children = map[string]*Node{}
	}
	if sp.Terminal {
		if existing, ok := n.children[sp.Head]; ok && !existing.IsEmpty() {
			panic(fmt.Sprintf("choicetrie: address collision at %q", sp.Head))
		}
		n.children[sp.Head] = sub
		n.weight += sub.Weight()
		return
	}
	child, ok := n.children[sp.Head]
	if !ok {
		child = New()
		n.children[sp.Head] = child
	} else if child.hasValue {
		panic(fmt.Sprintf("choicetrie: address collision at %q: already a leaf", sp.Head))
	}
	child.Insert(sp.Rest, sub)
	n.weight += sub.Weight()
}

// Remove excises and returns the whole node (leaf or subtree) at
// address, propagating the weight delta up the spine and pruning any
// ancestor left empty.
func (n *Node) Remove(address string) (*Node, bool) {
	sp := addr.SplitAddr(address)
	child, ok := n.children[sp.Head]
	if !ok {
		return nil, false
	}
	if sp.Terminal {
		delete(n.children, sp.Head)
		n.weight -= child.Weight()
		return child, true
	}
	removed, ok := child.Remove(sp.Rest)
	if !ok {
		return nil, false
	}
	n.weight -= removed.Weight()
	if child.IsEmpty() {
		delete(n.children, sp.Head)
	}
	return removed, true
}

// Search descends to the node (leaf or subtree) at address without
// removing it.
func (n *Node) Search(address string) (*Node, bool) {
	sp := addr.SplitAddr(address)
	child, ok := n.children[sp.Head]
	if !ok {
		return nil, false
	}
	if sp.Terminal {
		return child, true
	}
	return child.Search(sp.Rest)
}

// Read searches for address and type-asserts its value as V. The
// second result is false if address is absent, carries no value, or
// carries a value of a different type.
func Read[V any](n *Node, address string) (V, bool) {
	var zero V
	node, ok := n.Search(address)
	if !ok || !node.hasValue {
		return zero, false
	}
	v, ok := node.value.(V)
	if !ok {
		return zero, false
	}
	return v, true
}

// ReplaceInner stamps v as n's own inner value, without disturbing its
// children or their contribution to n's weight. This is how trace_at
// installs a child generative function's return value onto the
// subtree it spliced in: the value itself carries no weight of its
// own (weight stays exactly the sum of the children's weight).
func (n *Node) ReplaceInner(v any) {
	n.hasValue = true
	n.value = v
	n.ownWeight = 0
}

// Merge folds other into n in place and returns n. A key present on
// both sides collides (panic) if either side carries a value there;
// otherwise matching internal nodes are merged recursively.
func (n *Node) Merge(other *Node) *Node {
	if other.IsEmpty() {
		return n
	}
	if n.children == nil {
		n.children = map[string]*Node{}
	}
	for key, oc := range other.children {
		nc, exists := n.children[key]
		if !exists {
			n.children[key] = oc
			n.weight += oc.Weight()
			continue
		}
		if nc.hasValue || oc.hasValue {
			panic(fmt.Sprintf("choicetrie: merge collision at %q", key))
		}
		before := nc.Weight()
		merged := nc.Merge(oc)
		n.children[key] = merged
		n.weight += merged.Weight() - before
	}
	return n
}

// Schema returns the address mask describing n's shape: every
// has-value child (leaf or internal-with-value) is a mask leaf; every
// purely structural child recurses.
func (n *Node) Schema() *addrmask.Mask {
	m := addrmask.New()
	for key, child := range n.children {
		if child.hasValue {
			m.SetChild(key, addrmask.Leaf())
		} else {
			sub := child.Schema()
			if !sub.IsEmpty() {
				m.SetChild(key, sub)
			}
		}
	}
	return m
}

// Collect partitions n's children against mask: every child named by a
// mask leaf moves whole into the returned collected node; everything
// else stays in retained. mask's children are expected to line up with
// n's own child keys (as produced by Schema/Complement).
func (n *Node) Collect(mask *addrmask.Mask) (retained *Node, collected *Node) {
	retained = &Node{children: map[string]*Node{}}
	collected = &Node{children: map[string]*Node{}}
	for k, c := range n.children {
		retained.children[k] = c
	}
	for key, childMask := range mask.Children() {
		child, ok := retained.children[key]
		if !ok {
			continue
		}
		if childMask.IsLeaf() {
			delete(retained.children, key)
			collected.children[key] = child
			continue
		}
		r, c := child.Collect(childMask)
		if r.IsEmpty() {
			delete(retained.children, key)
		} else {
			retained.children[key] = r
		}
		if !c.IsEmpty() {
			collected.children[key] = c
		}
	}
	retained.recomputeWeight()
	collected.recomputeWeight()
	return retained, collected
}

// Clone deep-copies n: mutating the clone never affects n, and vice
// versa. Leaf values are copied via CloneValue when they implement it;
// otherwise they are shared by reference (ordinary Go values such as
// bool/float64/int64 are copied naturally on assignment regardless).
func (n *Node) Clone() *Node {
	if n == nil {
		return nil
	}
	out := &Node{
		hasValue:  n.hasValue,
		ownWeight: n.ownWeight,
		weight:    n.weight,
		children:  make(map[string]*Node, len(n.children)),
	}
	if n.hasValue {
		if cv, ok := n.value.(interface{ CloneValue() any }); ok {
			out.value = cv.CloneValue()
		} else {
			out.value = n.value
		}
	}
	for k, c := range n.children {
		out.children[k] = c.Clone()
	}
	return out
}

// FromPairs builds a trie from literal address/value pairs, each
// witnessed with zero weight. It is a test and demo convenience, not a
// new trie operation: equivalent to calling Observe for each pair in
// order.
func FromPairs(pairs ...Pair) *Node {
	n := New()
	for _, p := range pairs {
		n.Observe(p.Address, p.Value)
	}
	return n
}

// Pair is one address/value entry for FromPairs.
type Pair struct {
	Address string
	Value   any
}
