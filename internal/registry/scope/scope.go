// Package scope tracks the certificate version of a whole distribution
// scope (one filesystem volume's worth of gateways). Clients pin the scope
// version they know; the issuer compares it against the current record to
// decide between serving and redirecting.
package scope

import (
	"context"

	"syndic/internal/registry/store"
)

// Manager reads and advances one scope's version. The version is a shared
// store counter behind a single key and advances only inside a transaction,
// so it can only ever go up regardless of how many processes share the
// store.
type Manager struct {
	store store.KeyedStore
	name  string
	key   string
}

func NewManager(s store.KeyedStore, name string) *Manager {
	return &Manager{store: s, name: name, key: store.ScopeKey(name)}
}

// Name returns the scope's name.
func (m *Manager) Name() string { return m.name }

// Current returns the scope's cert version, creating the counter at version
// 1 on first use.
func (m *Manager) Current(ctx context.Context) (int64, error) {
	return store.CurrentValue(ctx, m.store, m.key)
}

// Bump advances the scope version by one and returns the new value.
func (m *Manager) Bump(ctx context.Context) (int64, error) {
	return store.NextValue(ctx, m.store, m.key)
}
