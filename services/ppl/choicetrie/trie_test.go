// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package choicetrie

import (
	"testing"

	"github.com/latticeforge/gentrace/services/ppl/addrmask"
)

func TestWitnessAndSearch(t *testing.T) {
	n := New()
	n.Witness("x", 1.0, -0.5)
	n.Witness("group/y", true, -1.0)

	v, ok := Read[float64](n, "x")
	if !ok || v != 1.0 {
		t.Fatalf("Read(x) = %v, %v", v, ok)
	}
	b, ok := Read[bool](n, "group/y")
	if !ok || !b {
		t.Fatalf("Read(group/y) = %v, %v", b, ok)
	}
	if n.Weight() != -1.5 {
		t.Fatalf("Weight() = %v, want -1.5", n.Weight())
	}
}

func TestWitnessCollisionPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatalf("expected a panic on address collision")
		}
	}()
	n := New()
	n.Witness("x", 1.0, 0)
	n.Witness("x", 2.0, 0)
}

func TestWitnessStructuralCollisionPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatalf("expected a panic: x/y exists, can't witness a leaf at x")
		}
	}()
	n := New()
	n.Witness("x/y", 1.0, 0)
	n.Witness("x", 2.0, 0)
}

func TestRemoveAndPrune(t *testing.T) {
	n := New()
	n.Witness("a/b", 1.0, -2.0)
	removed, ok := n.Remove("a/b")
	if !ok || removed.Weight() != -2.0 {
		t.Fatalf("Remove(a/b) = %v, %v", removed, ok)
	}
	if !n.IsEmpty() {
		t.Fatalf("expected the now-empty ancestor 'a' to be pruned away")
	}
	if n.Weight() != 0 {
		t.Fatalf("Weight() after removal = %v, want 0", n.Weight())
	}
}

func TestReweight(t *testing.T) {
	n := New()
	n.Witness("x", 1.0, -1.0)
	n.Reweight("x", -3.0)
	if n.Weight() != -3.0 {
		t.Fatalf("Weight() = %v, want -3.0", n.Weight())
	}
}

func TestInsertAndReplaceInner(t *testing.T) {
	n := New()
	sub := New()
	sub.Witness("a", 1.0, -1.0)
	sub.ReplaceInner(42)
	n.Insert("child", sub)

	if n.Weight() != -1.0 {
		t.Fatalf("Weight() = %v, want -1.0 (inner value carries no weight)", n.Weight())
	}
	retv, ok := Read[int](n, "child")
	if !ok || retv != 42 {
		t.Fatalf("Read(child) = %v, %v", retv, ok)
	}
	inner, _ := n.Search("child")
	if inner.IsLeaf() {
		t.Fatalf("child has both a value and children, so it is not a leaf")
	}
}

func TestMergeCollision(t *testing.T) {
	a := New()
	a.Witness("x", 1.0, 0)
	b := New()
	b.Witness("x", 2.0, 0)

	defer func() {
		if recover() == nil {
			t.Fatalf("expected a panic on merge collision")
		}
	}()
	a.Merge(b)
}

func TestMergeDisjoint(t *testing.T) {
	a := New()
	a.Witness("x", 1.0, -1.0)
	b := New()
	b.Witness("y", 2.0, -2.0)
	a.Merge(b)

	if a.Weight() != -3.0 {
		t.Fatalf("Weight() = %v, want -3.0", a.Weight())
	}
	if v, ok := Read[float64](a, "y"); !ok || v != 2.0 {
		t.Fatalf("Read(y) = %v, %v", v, ok)
	}
}

func TestSchemaAndCollect(t *testing.T) {
	n := New()
	n.Witness("keep", 1.0, -1.0)
	n.Witness("drop/a", 2.0, -2.0)
	n.Witness("drop/b", 3.0, -3.0)

	schema := n.Schema()
	mask := addrmask.New()
	mask.Visit("drop")

	retained, collected := n.Collect(mask)
	if _, ok := retained.Search("drop"); ok {
		t.Fatalf("drop should have been fully collected")
	}
	if v, ok := Read[float64](retained, "keep"); !ok || v != 1.0 {
		t.Fatalf("retained should still have keep")
	}
	if v, ok := Read[float64](collected, "drop/a"); !ok || v != 2.0 {
		t.Fatalf("collected should have drop/a, got %v %v", v, ok)
	}
	if collected.Weight() != -5.0 {
		t.Fatalf("collected.Weight() = %v, want -5.0", collected.Weight())
	}
	if retained.Weight() != -1.0 {
		t.Fatalf("retained.Weight() = %v, want -1.0", retained.Weight())
	}
	if !schema.AllVisited(schema) {
		t.Fatalf("a schema trivially covers itself")
	}
}

func TestClone(t *testing.T) {
	n := New()
	n.Witness("x", 1.0, -1.0)
	clone := n.Clone()
	clone.Witness("y", 2.0, -2.0)

	if _, ok := n.Search("y"); ok {
		t.Fatalf("mutating the clone must not affect the original")
	}
	if n.Weight() != -1.0 {
		t.Fatalf("original weight changed: %v", n.Weight())
	}
	if clone.Weight() != -3.0 {
		t.Fatalf("clone weight = %v, want -3.0", clone.Weight())
	}
}

func TestFromPairs(t *testing.T) {
	n := FromPairs(Pair{Address: "a", Value: 1}, Pair{Address: "b/c", Value: "x"})
	if v, ok := Read[int](n, "a"); !ok || v != 1 {
		t.Fatalf("Read(a) = %v, %v", v, ok)
	}
	if v, ok := Read[string](n, "b/c"); !ok || v != "x" {
		t.Fatalf("Read(b/c) = %v, %v", v, ok)
	}
}
