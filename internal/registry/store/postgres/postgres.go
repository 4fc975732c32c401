// Package postgres backs the KeyedStore port with a Postgres key/value
// table. Per-key atomicity comes from single statements, get-or-insert from
// ON CONFLICT DO NOTHING, and entity-group transactions from row locks taken
// in sorted key order.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"syndic/internal/registry/store"
	"syndic/pkg/platform/sentinel"
)

const schema = `
CREATE TABLE IF NOT EXISTS syndic_kv (
	key   TEXT PRIMARY KEY,
	value BYTEA NOT NULL
)`

// txRetries bounds conflict retries before surfacing ErrAborted.
const txRetries = 3

// Store is a Postgres-backed KeyedStore.
type Store struct {
	pool *pgxpool.Pool
}

var _ store.KeyedStore = (*Store)(nil)

// New connects, ensures the schema, and returns the store.
func New(ctx context.Context, url string) (*Store, error) {
	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	s := &Store{pool: pool}
	if err := s.ensureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

// NewWithPool wraps an existing pool; used by integration tests.
func NewWithPool(ctx context.Context, pool *pgxpool.Pool) (*Store, error) {
	s := &Store{pool: pool}
	if err := s.ensureSchema(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) ensureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

// Close releases the connection pool.
func (s *Store) Close() {
	s.pool.Close()
}

func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := s.pool.QueryRow(ctx, `SELECT value FROM syndic_kv WHERE key = $1`, key).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, wrapUnavailable(err)
	}
	return value, nil
}

func (s *Store) GetOrInsert(ctx context.Context, key string, value []byte) ([]byte, bool, error) {
	tag, err := s.pool.Exec(ctx,
		`INSERT INTO syndic_kv (key, value) VALUES ($1, $2) ON CONFLICT (key) DO NOTHING`,
		key, value)
	if err != nil {
		return nil, false, wrapUnavailable(err)
	}
	if tag.RowsAffected() == 1 {
		return value, true, nil
	}
	// Lost the insert race (or the key predates us): the committed value wins.
	committed, err := s.Get(ctx, key)
	if err != nil {
		return nil, false, err
	}
	return committed, false, nil
}

func (s *Store) Put(ctx context.Context, key string, value []byte) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO syndic_kv (key, value) VALUES ($1, $2)
		 ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value`,
		key, value)
	return wrapUnavailable(err)
}

func (s *Store) Delete(ctx context.Context, key string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM syndic_kv WHERE key = $1`, key)
	return wrapUnavailable(err)
}

// RunTransaction locks the entity group's existing rows FOR UPDATE in sorted
// key order (avoiding lock-order deadlocks between groups) and runs fn.
// Serialization failures retry up to txRetries times, then surface as
// sentinel.ErrAborted.
func (s *Store) RunTransaction(ctx context.Context, keys []string, fn func(tx store.Tx) error) error {
	if len(keys) > store.MaxEntityGroup {
		return sentinel.ErrTooManyKeys
	}
	sorted := append([]string(nil), keys...)
	sort.Strings(sorted)

	var lastErr error
	for attempt := 0; attempt <= txRetries; attempt++ {
		err := s.runOnce(ctx, sorted, fn)
		if err == nil {
			return nil
		}
		if !isSerializationFailure(err) {
			return err
		}
		lastErr = err
	}
	return fmt.Errorf("%w: %v", sentinel.ErrAborted, lastErr)
}

func (s *Store) runOnce(ctx context.Context, sortedKeys []string, fn func(tx store.Tx) error) error {
	pgtx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable})
	if err != nil {
		return wrapUnavailable(err)
	}
	defer pgtx.Rollback(ctx) //nolint:errcheck // rollback after commit is a no-op

	rows, err := pgtx.Query(ctx,
		`SELECT key FROM syndic_kv WHERE key = ANY($1) ORDER BY key FOR UPDATE`, sortedKeys)
	if err != nil {
		return wrapUnavailable(err)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return wrapUnavailable(err)
	}

	view := &pgTx{ctx: ctx, tx: pgtx, allowed: keySet(sortedKeys)}
	if err := fn(view); err != nil {
		return err
	}
	return pgtx.Commit(ctx)
}

func (s *Store) ListPrefix(ctx context.Context, prefix string) (map[string][]byte, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT key, value FROM syndic_kv WHERE starts_with(key, $1)`, prefix)
	if err != nil {
		return nil, wrapUnavailable(err)
	}
	defer rows.Close()

	out := make(map[string][]byte)
	for rows.Next() {
		var key string
		var value []byte
		if err := rows.Scan(&key, &value); err != nil {
			return nil, wrapUnavailable(err)
		}
		out[key] = value
	}
	if err := rows.Err(); err != nil {
		return nil, wrapUnavailable(err)
	}
	return out, nil
}

type pgTx struct {
	ctx     context.Context
	tx      pgx.Tx
	allowed map[string]struct{}
}

func (t *pgTx) Get(key string) ([]byte, error) {
	if err := t.check(key); err != nil {
		return nil, err
	}
	var value []byte
	err := t.tx.QueryRow(t.ctx, `SELECT value FROM syndic_kv WHERE key = $1`, key).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, wrapUnavailable(err)
	}
	return value, nil
}

func (t *pgTx) Put(key string, value []byte) error {
	if err := t.check(key); err != nil {
		return err
	}
	_, err := t.tx.Exec(t.ctx,
		`INSERT INTO syndic_kv (key, value) VALUES ($1, $2)
		 ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value`,
		key, value)
	return wrapUnavailable(err)
}

func (t *pgTx) Delete(key string) error {
	if err := t.check(key); err != nil {
		return err
	}
	_, err := t.tx.Exec(t.ctx, `DELETE FROM syndic_kv WHERE key = $1`, key)
	return wrapUnavailable(err)
}

func (t *pgTx) check(key string) error {
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

func isSerializationFailure(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		// serialization_failure, deadlock_detected
		return pgErr.Code == "40001" || pgErr.Code == "40P01"
	}
	return false
}

func wrapUnavailable(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %v", sentinel.ErrUnavailable, err)
}
