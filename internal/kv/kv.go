package kv

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Get when a key has never been written
var ErrNotFound = errors.New("key not found")

// Store is the opaque key-value substrate records are persisted in.
// There are no transactions, no migrations and no indexes: a value is
// whatever bytes were last written under its key.
type Store interface {
	// Get returns the value stored under key, or ErrNotFound
	Get(ctx context.Context, key string) ([]byte, error)

	// Set replaces the value stored under key
	Set(ctx context.Context, key string, value []byte) error

	// Close releases the underlying resources
	Close() error
}
