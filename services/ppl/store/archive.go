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
	"fmt"
	"io"

	"cloud.google.com/go/storage"
	"github.com/awnumar/memguard"
	"google.golang.org/api/option"
)

// GCSArchive uploads finished run artifacts (final traces, particle
// system summaries) to a Google Cloud Storage bucket for long-term
// retention, beyond the BadgerDB checkpoint store's working-set scope.
type GCSArchive struct {
	client *storage.Client
	bucket string
}

// NewGCSArchive opens a GCS client using credentialsJSON, which is
// locked in a memguard.LockedBuffer for the duration of client
// construction and destroyed immediately afterward so the raw service
// account key is never left resident in swappable memory.
func NewGCSArchive(ctx context.Context, bucket string, credentialsJSON []byte) (*GCSArchive, error) {
	if bucket == "" {
		return nil, fmt.Errorf("store: new_gcs_archive: bucket must not be empty")
	}
	locked := memguard.NewBufferFromBytes(credentialsJSON)
	defer locked.Destroy()

	client, err := storage.NewClient(ctx, option.WithCredentialsJSON(locked.Bytes()))
	if err != nil {
		return nil, fmt.Errorf("store: new_gcs_archive: %w", err)
	}
	return &GCSArchive{client: client, bucket: bucket}, nil
}

// Upload writes data to object under the archive's bucket.
func (a *GCSArchive) Upload(ctx context.Context, object string, data []byte) error {
	w := a.client.Bucket(a.bucket).Object(object).NewWriter(ctx)
	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return fmt.Errorf("store: upload: write: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("store: upload: close: %w", err)
	}
	return nil
}

// Download reads the full contents of object from the archive's
// bucket.
func (a *GCSArchive) Download(ctx context.Context, object string) ([]byte, error) {
	r, err := a.client.Bucket(a.bucket).Object(object).NewReader(ctx)
	if err != nil {
		return nil, fmt.Errorf("store: download: open: %w", err)
	}
	defer r.Close()
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("store: download: read: %w", err)
	}
	return data, nil
}

// Close releases the underlying GCS client.
func (a *GCSArchive) Close() error {
	return a.client.Close()
}
