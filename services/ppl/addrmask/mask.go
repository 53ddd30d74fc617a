// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package addrmask implements an address mask: a set of addresses
// represented as a tree that mirrors the shape of a choice trie. A
// mask node is either a leaf (selecting the whole subtree beneath it)
// or an internal node carrying a further mask per child key.
package addrmask

import "github.com/latticeforge/gentrace/services/ppl/addr"

// Mask is a node in an address mask.
type Mask struct {
	leaf     bool
	children map[string]*Mask
}

// New returns an empty, non-leaf mask.
func New() *Mask {
	return &Mask{children: map[string]*Mask{}}
}

// Leaf returns a mask node that selects everything beneath it.
func Leaf() *Mask {
	return &Mask{leaf: true}
}

// IsLeaf reports whether m selects its entire subtree.
func (m *Mask) IsLeaf() bool {
	return m == nil || m.leaf
}

// IsEmpty reports whether m selects nothing.
func (m *Mask) IsEmpty() bool {
	return m == nil || (!m.leaf && len(m.children) == 0)
}

// Children returns m's child masks, keyed by the first address segment.
// Callers must not mutate the returned map.
func (m *Mask) Children() map[string]*Mask {
	if m == nil {
		return nil
	}
	return m.children
}

// SetChild installs child directly as m's mask for key, overwriting
// any existing mask there. Used by choicetrie.Schema, which already
// computes child masks recursively and only needs to attach them.
func (m *Mask) SetChild(key string, child *Mask) {
	if m.children == nil {
		m.children = map[string]*Mask{}
	}
	m.children[key] = child
}

// Visit marks address as selected, creating intermediate mask nodes as
// needed. Visiting beneath an existing leaf is a no-op: the leaf
// already covers everything below it.
func (m *Mask) Visit(address string) {
	if m.leaf {
		return
	}
	sp := addr.SplitAddr(address)
	if m.children == nil {
		m.children = map[string]*Mask{}
	}
	if sp.Terminal {
		if existing, ok := m.children[sp.Head]; ok {
			existing.leaf = true
			existing.children = nil
		} else {
			m.children[sp.Head] = Leaf()
		}
		return
	}
	child, ok := m.children[sp.Head]
	if !ok {
		child = New()
		m.children[sp.Head] = child
	} else if child.leaf {
		return
	}
	child.Visit(sp.Rest)
}

// Search descends to the mask node governing address. If a leaf is
// found before the address is fully consumed, that leaf (which covers
// address and everything beneath it) is returned.
func (m *Mask) Search(address string) (*Mask, bool) {
	if m == nil {
		return nil, false
	}
	sp := addr.SplitAddr(address)
	if sp.Terminal {
		child, ok := m.children[sp.Head]
		return child, ok
	}
	child, ok := m.children[sp.Head]
	if !ok {
		return nil, false
	}
	if child.leaf {
		return child, true
	}
	return child.Search(sp.Rest)
}

// Complement returns the addresses selected by m but not by other: for
// each child of m absent from other, the whole child is included; for
// each child present and non-leaf in other, the children recurse; a
// child covered by a leaf in other is fully excluded.
func (m *Mask) Complement(other *Mask) *Mask {
	result := New()
	if m == nil {
		return result
	}
	for key, child := range m.children {
		oc, ok := other.Children()[key]
		if !ok {
			result.children[key] = child
			continue
		}
		if oc.leaf {
			continue
		}
		if child.leaf {
			result.children[key] = child
			continue
		}
		sub := child.Complement(oc)
		if !sub.IsEmpty() {
			result.children[key] = sub
		}
	}
	return result
}

// AllVisited reports whether every address selected by other is also
// selected by m (directly, or via an ancestor leaf in m).
func (m *Mask) AllVisited(other *Mask) bool {
	if other.IsEmpty() {
		return true
	}
	for key, oc := range other.Children() {
		mc, ok := m.Children()[key]
		if !ok {
			return false
		}
		if mc.leaf {
			continue
		}
		if oc.leaf {
			return false
		}
		if !mc.AllVisited(oc) {
			return false
		}
	}
	return true
}
