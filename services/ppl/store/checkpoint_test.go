// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package store

import (
	"context"
	"testing"

	badger "github.com/dgraph-io/badger/v4"
)

func openTestDB(t *testing.T) *badger.DB {
	t.Helper()
	opts := badger.DefaultOptions("").WithInMemory(true).WithLoggingLevel(badger.ERROR)
	db, err := badger.Open(opts)
	if err != nil {
		t.Fatalf("failed to open in-memory badger db: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestCheckpointSaveAndLoadRoundTrip(t *testing.T) {
	db := openTestDB(t)
	s := NewBadgerCheckpointStore(db, 0, nil)
	ctx := context.Background()

	rec := CheckpointRecord{RunID: "run-1", Iteration: 3, LogWeight: -1.5, ChoiceData: []byte("abc")}
	if err := s.Save(ctx, rec); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	got, err := s.Load(ctx, "run-1", 3)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if got == nil {
		t.Fatal("expected a checkpoint, got nil")
	}
	if got.LogWeight != rec.LogWeight || string(got.ChoiceData) != string(rec.ChoiceData) {
		t.Fatalf("round-tripped record mismatch: got %+v", got)
	}
}

func TestCheckpointLoadMissReturnsNilNil(t *testing.T) {
	db := openTestDB(t)
	s := NewBadgerCheckpointStore(db, 0, nil)
	got, err := s.Load(context.Background(), "no-such-run", 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != nil {
		t.Fatalf("expected nil on miss, got %+v", got)
	}
}
