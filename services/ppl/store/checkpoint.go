// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package store persists inference run state across process restarts:
// a BadgerDB-backed CheckpointStore for MH/SMC run checkpoints, and a
// GCS-backed archive for long-term trace storage.
//
// Checkpoints are gob-encoded CheckpointRecord values, keyed by run ID
// and iteration, with a TTL enforced by BadgerDB's own GC so stale
// checkpoints from abandoned runs disappear without explicit cleanup.
package store

import (
	"bytes"
	"context"
	"encoding/gob"
	"errors"
	"fmt"
	"log/slog"
	"time"

	badger "github.com/dgraph-io/badger/v4"
)

// checkpointDefaultTTL is how long a checkpoint survives before
// BadgerDB's GC reclaims it, long enough to resume a run interrupted
// over a weekend.
const checkpointDefaultTTL = 7 * 24 * time.Hour

// checkpointKeyPrefix versions the key layout so a future format
// change cannot collide with records written by an older build.
const checkpointKeyPrefix = "checkpoint/v1/"

var errCheckpointMiss = errors.New("checkpoint: miss")

// CheckpointRecord is one saved snapshot of an MH chain's or
// particle-system run's progress: the iteration reached, a log-weight,
// and caller-encoded choice data. It holds no full particle set, so a
// particle-system run cannot be restored from it alone.
type CheckpointRecord struct {
	RunID      string
	Iteration  int
	LogWeight  float64
	ChoiceData []byte // caller-serialized choice values (gob-encoded by the caller)
}

// CheckpointStore persists CheckpointRecords across process restarts.
// Implementations must be safe for concurrent use.
type CheckpointStore interface {
	Save(ctx context.Context, rec CheckpointRecord) error
	Load(ctx context.Context, runID string, iteration int) (*CheckpointRecord, error)
}

// BadgerCheckpointStore implements CheckpointStore backed by an
// embedded BadgerDB instance. The DB is opened and closed by the
// caller; this store does not own its lifecycle.
type BadgerCheckpointStore struct {
	db     *badger.DB
	ttl    time.Duration
	logger *slog.Logger
}

// NewBadgerCheckpointStore wraps an already-open BadgerDB as a
// CheckpointStore. Pass ttl=0 to use the default (7 days).
func NewBadgerCheckpointStore(db *badger.DB, ttl time.Duration, logger *slog.Logger) *BadgerCheckpointStore {
	if db == nil {
		panic("store: new_badger_checkpoint_store: db must not be nil")
	}
	if ttl <= 0 {
		ttl = checkpointDefaultTTL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &BadgerCheckpointStore{db: db, ttl: ttl, logger: logger}
}

func checkpointKey(runID string, iteration int) []byte {
	return []byte(fmt.Sprintf("%s%s/%d", checkpointKeyPrefix, runID, iteration))
}

// Save gob-encodes rec and writes it with the store's TTL.
func (s *BadgerCheckpointStore) Save(ctx context.Context, rec CheckpointRecord) error {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(rec); err != nil {
		return fmt.Errorf("store: save: encode: %w", err)
	}
	key := checkpointKey(rec.RunID, rec.Iteration)
	err := s.db.Update(func(txn *badger.Txn) error {
		entry := badger.NewEntry(key, buf.Bytes()).WithTTL(s.ttl)
		return txn.SetEntry(entry)
	})
	if err != nil {
		return fmt.Errorf("store: save: %w", err)
	}
	s.logger.Debug("checkpoint saved", slog.String("run_id", rec.RunID), slog.Int("iteration", rec.Iteration))
	return nil
}

// Load retrieves a previously saved checkpoint, returning (nil, nil)
// on a cache miss (key absent or TTL expired).
func (s *BadgerCheckpointStore) Load(ctx context.Context, runID string, iteration int) (*CheckpointRecord, error) {
	key := checkpointKey(runID, iteration)
	var raw []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if errors.Is(err, badger.ErrKeyNotFound) {
			return errCheckpointMiss
		}
		if err != nil {
			return fmt.Errorf("get: %w", err)
		}
		raw, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, errCheckpointMiss) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: load: %w", err)
	}
	var rec CheckpointRecord
	if err := gob.NewDecoder(bytes.NewReader(raw)).Decode(&rec); err != nil {
		return nil, fmt.Errorf("store: load: decode: %w", err)
	}
	return &rec, nil
}
