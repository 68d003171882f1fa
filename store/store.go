// Package store provides persistence backends for the relayer's per-lane
// cursors. A restarted relayer resumes from the stored cursors and then
// reconciles them against on-chain lane state.
package store

import (
	"context"
)

// KV is a minimal key-value store keyed by lane identifier.
type KV interface {
	// Get returns the stored value for the key. The second return value
	// reports whether the key was present.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Put stores the value for the key, overwriting any previous value.
	Put(ctx context.Context, key string, value []byte) error

	// Close releases resources held by the store.
	Close() error
}
