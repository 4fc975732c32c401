// Package store defines the narrow keyed-store port the registry is built
// on. The backing store offers per-key atomicity, an atomic
// get-or-insert-if-absent, and cross-key transactions bounded to a small
// entity group. Anything stronger (unique names, unique IDs, monotone
// versions) is composed on top by the registry itself.
package store

import "context"

// MaxEntityGroup bounds how many keys one transaction may touch. The
// registry never needs more than a record plus its reservation.
const MaxEntityGroup = 4

// Tx is the view of the store inside a transaction. Reads observe prior
// writes in the same transaction.
type Tx interface {
	Get(key string) ([]byte, error)
	Put(key string, value []byte) error
	Delete(key string) error
}

// KeyedStore is the consumed storage port.
//
// Get returns sentinel.ErrNotFound for absent keys. GetOrInsert atomically
// inserts value if the key is absent and reports the committed value plus
// whether this call inserted it; a concurrent loser observes the winner's
// value. Delete of an absent key succeeds (idempotent). RunTransaction
// executes fn atomically over at most MaxEntityGroup keys; conflict
// retry is the store's responsibility and exhaustion surfaces as
// sentinel.ErrAborted. ListPrefix is an eventually-consistent scan used
// only for certificate manifests and corruption checks, never for
// enforcing invariants.
type KeyedStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	GetOrInsert(ctx context.Context, key string, value []byte) (committed []byte, inserted bool, err error)
	Put(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	RunTransaction(ctx context.Context, keys []string, fn func(tx Tx) error) error
	ListPrefix(ctx context.Context, prefix string) (map[string][]byte, error)
}
