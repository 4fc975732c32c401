// Package memory provides an in-process KeyedStore for tests and single-node
// development runs. One mutex serializes everything, which trivially gives
// per-key atomicity and transactional entity groups.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"

	"syndic/internal/registry/store"
	"syndic/pkg/platform/sentinel"
)

// Store is an in-memory KeyedStore.
type Store struct {
	mu   sync.Mutex
	data map[string][]byte
}

var _ store.KeyedStore = (*Store)(nil)

func New() *Store {
	return &Store{data: make(map[string][]byte)}
}

func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	raw, ok := s.data[key]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return clone(raw), nil
}

func (s *Store) GetOrInsert(ctx context.Context, key string, value []byte) ([]byte, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.data[key]; ok {
		return clone(existing), false, nil
	}
	s.data[key] = clone(value)
	return clone(value), true, nil
}

func (s *Store) Put(ctx context.Context, key string, value []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = clone(value)
	return nil
}

func (s *Store) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, key)
	return nil
}

// RunTransaction executes fn while holding the store lock. Writes are staged
// and applied only if fn succeeds, so a failed transaction leaves no trace.
func (s *Store) RunTransaction(ctx context.Context, keys []string, fn func(tx store.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(keys) > store.MaxEntityGroup {
		return sentinel.ErrTooManyKeys
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &memTx{store: s, allowed: keySet(keys), staged: make(map[string]*[]byte)}
	if err := fn(tx); err != nil {
		return err
	}
	for key, val := range tx.staged {
		if val == nil {
			delete(s.data, key)
		} else {
			s.data[key] = *val
		}
	}
	return nil
}

func (s *Store) ListPrefix(ctx context.Context, prefix string) (map[string][]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string][]byte)
	for key, val := range s.data {
		if strings.HasPrefix(key, prefix) {
			out[key] = clone(val)
		}
	}
	return out, nil
}

// Keys returns every key in sorted order; test helper.
func (s *Store) Keys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.data))
	for key := range s.data {
		out = append(out, key)
	}
	sort.Strings(out)
	return out
}

type memTx struct {
	store   *Store
	allowed map[string]struct{}
	staged  map[string]*[]byte // nil value marks a staged delete
}

func (t *memTx) Get(key string) ([]byte, error) {
	if err := t.check(key); err != nil {
		return nil, err
	}
	if staged, ok := t.staged[key]; ok {
		if staged == nil {
			return nil, sentinel.ErrNotFound
		}
		return clone(*staged), nil
	}
	raw, ok := t.store.data[key]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return clone(raw), nil
}

func (t *memTx) Put(key string, value []byte) error {
	if err := t.check(key); err != nil {
		return err
	}
	v := clone(value)
	t.staged[key] = &v
	return nil
}

func (t *memTx) Delete(key string) error {
	if err := t.check(key); err != nil {
		return err
	}
	t.staged[key] = nil
	return nil
}

func (t *memTx) check(key string) error {
	if _, ok := t.allowed[key]; !ok {
		return sentinel.ErrTooManyKeys
	}
	return nil
}

func keySet(keys []string) map[string]struct{} {
	set := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		set[k] = struct{}{}
	}
	return set
}

func clone(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
