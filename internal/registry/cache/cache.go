// Package cache defines the advisory read-through cache layered in front of
// the keyed store. Entries may be stale or evicted at any time and are never
// authoritative; the only contract writers rely on is that Delete for a key
// is attempted before a mutation of that key reports success.
package cache

import "context"

// ReadCache is the consumed cache port. Get returns sentinel.ErrNotFound on
// a miss. All operations are best-effort; callers treat errors on Set as
// ignorable and errors on Delete as retryable-at-worst-stale.
type ReadCache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	SetMulti(ctx context.Context, entries map[string][]byte) error
	Delete(ctx context.Context, key string) error
}
