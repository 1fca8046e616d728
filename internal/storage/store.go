// SPDX-License-Identifier: MIT

// Package storage persists uploaded event-log files keyed by opaque ids.
package storage

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when no blob exists for the given id.
var ErrNotFound = errors.New("storage: blob not found")

// FileMeta describes a stored upload.
type FileMeta struct {
	ID         string    `json:"id"`
	Filename   string    `json:"filename"`
	Size       int64     `json:"size"`
	UploadedAt time.Time `json:"uploadedAt"`
}

// BlobStore stores raw upload bytes under caller-supplied ids. The id carries
// no ownership semantics: any session presenting an existing id may read it.
type BlobStore interface {
	Put(ctx context.Context, id string, filename string, data []byte) (FileMeta, error)
	Get(ctx context.Context, id string) ([]byte, error)
	Stat(ctx context.Context, id string) (FileMeta, error)
	// Ping reports whether the store is usable, for readiness probes.
	Ping(ctx context.Context) error
	Close() error
}
