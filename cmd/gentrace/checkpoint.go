// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"log/slog"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/latticeforge/gentrace/services/ppl/store"
)

// openCheckpointStore opens a BadgerDB-backed store.CheckpointStore
// rooted at dir. An empty dir disables checkpointing: the returned
// store is nil and the returned close func is a no-op, so callers can
// always defer it unconditionally.
func openCheckpointStore(dir string) (store.CheckpointStore, func() error, error) {
	if dir == "" {
		return nil, func() error { return nil }, nil
	}
	opts := badger.DefaultOptions(dir).WithLoggingLevel(badger.WARNING)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, nil, fmt.Errorf("open checkpoint store at %q: %w", dir, err)
	}
	return store.NewBadgerCheckpointStore(db, 0, slog.Default()), db.Close, nil
}

// gobEncodeFloats encodes vs for CheckpointRecord.ChoiceData, logging
// and returning nil on encode failure rather than aborting the run a
// checkpoint is riding alongside.
func gobEncodeFloats(vs []float64) []byte {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(vs); err != nil {
		slog.Warn("checkpoint: failed to encode choice data", slog.String("error", err.Error()))
		return nil
	}
	return buf.Bytes()
}
