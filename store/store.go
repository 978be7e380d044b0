// Package store defines the durable artifact store used by synthcache.
//
// Entries are content-addressed by fingerprint and immutable: a fingerprint
// always maps to the same bytes, so writing an existing fingerprint is a no-op,
// never an update. Implementations MUST make writes atomic from a reader's
// point of view (a reader sees nothing or the complete artifact) and MUST
// NOT evict. Growth of the store is left to the operator.
package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by Read when no complete artifact exists.
var ErrNotFound = errors.New("store: not found")

// ErrInvalidFingerprint is returned for keys that are not fingerprint-shaped.
var ErrInvalidFingerprint = errors.New("store: invalid fingerprint")

// Entry is a persisted audio artifact.
type Entry struct {
	Fingerprint string    `json:"fingerprint" cbor:"1,keyasint" msgpack:"fingerprint"`
	Audio       []byte    `json:"audio" cbor:"2,keyasint" msgpack:"audio"`
	Format      string    `json:"format" cbor:"3,keyasint" msgpack:"format"`
	CreatedAt   time.Time `json:"created_at" cbor:"4,keyasint" msgpack:"created_at"`
}

// Store maps fingerprints to artifacts.
// Must be safe for concurrent use.
type Store interface {
	// Exists reports whether a complete artifact for fp is durably present.
	// A store failure is returned as an error, never as false.
	Exists(ctx context.Context, fp string) (bool, error)

	// Read returns the artifact for fp, or ErrNotFound.
	Read(ctx context.Context, fp string) (*Entry, error)

	// Write persists e atomically. If e.Fingerprint already exists the call
	// succeeds without rewriting.
	Write(ctx context.Context, e *Entry) error

	// Close releases resources.
	Close(ctx context.Context) error
}
