//go:build integration

package postgres_test

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/suite"

	"syndic/internal/registry/store"
	"syndic/internal/registry/store/postgres"
	"syndic/pkg/platform/sentinel"
	"syndic/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	ctx   context.Context
	store *postgres.Store
}

func (s *PostgresStoreSuite) SetupSuite() {
	s.ctx = context.Background()
	pg := containers.NewPostgresContainer(s.T())
	st, err := postgres.New(s.ctx, pg.URL)
	s.Require().NoError(err)
	s.store = st
}

func (s *PostgresStoreSuite) TearDownSuite() {
	if s.store != nil {
		s.store.Close()
	}
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) TestGetMissingReturnsNotFound() {
	_, err := s.store.Get(s.ctx, "pgtest:missing")
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *PostgresStoreSuite) TestPutGetDeleteRoundTrip() {
	key := "pgtest:roundtrip"
	s.Require().NoError(s.store.Put(s.ctx, key, []byte("v1")))

	got, err := s.store.Get(s.ctx, key)
	s.Require().NoError(err)
	s.Equal([]byte("v1"), got)

	s.Require().NoError(s.store.Put(s.ctx, key, []byte("v2")))
	got, err = s.store.Get(s.ctx, key)
	s.Require().NoError(err)
	s.Equal([]byte("v2"), got)

	s.Require().NoError(s.store.Delete(s.ctx, key))
	_, err = s.store.Get(s.ctx, key)
	s.ErrorIs(err, sentinel.ErrNotFound)

	// Idempotent.
	s.NoError(s.store.Delete(s.ctx, key))
}

func (s *PostgresStoreSuite) TestGetOrInsertOriginalWins() {
	key := "pgtest:goi"
	committed, inserted, err := s.store.GetOrInsert(s.ctx, key, []byte("first"))
	s.Require().NoError(err)
	s.True(inserted)
	s.Equal([]byte("first"), committed)

	committed, inserted, err = s.store.GetOrInsert(s.ctx, key, []byte("second"))
	s.Require().NoError(err)
	s.False(inserted)
	s.Equal([]byte("first"), committed)
}

func (s *PostgresStoreSuite) TestGetOrInsertRaceHasOneWinner() {
	key := "pgtest:goi-race"
	const writers = 16

	var wg sync.WaitGroup
	winners := make(chan int, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			_, inserted, err := s.store.GetOrInsert(s.ctx, key, []byte(fmt.Sprintf("writer-%d", n)))
			s.NoError(err)
			if inserted {
				winners <- n
			}
		}(i)
	}
	wg.Wait()
	close(winners)

	var count int
	for range winners {
		count++
	}
	s.Equal(1, count)
}

func (s *PostgresStoreSuite) TestTransactionStagesAndCommits() {
	a, b := "pgtest:tx-a", "pgtest:tx-b"
	s.Require().NoError(s.store.Put(s.ctx, a, []byte("1")))

	err := s.store.RunTransaction(s.ctx, []string{a, b}, func(tx store.Tx) error {
		got, err := tx.Get(a)
		if err != nil {
			return err
		}
		if err := tx.Put(b, got); err != nil {
			return err
		}
		return tx.Delete(a)
	})
	s.Require().NoError(err)

	_, err = s.store.Get(s.ctx, a)
	s.ErrorIs(err, sentinel.ErrNotFound)
	got, err := s.store.Get(s.ctx, b)
	s.Require().NoError(err)
	s.Equal([]byte("1"), got)
}

func (s *PostgresStoreSuite) TestTransactionFailureLeavesNoTrace() {
	key := "pgtest:tx-fail"
	boom := fmt.Errorf("boom")
	err := s.store.RunTransaction(s.ctx, []string{key}, func(tx store.Tx) error {
		if err := tx.Put(key, []byte("ghost")); err != nil {
			return err
		}
		return boom
	})
	s.ErrorIs(err, boom)

	_, err = s.store.Get(s.ctx, key)
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *PostgresStoreSuite) TestTransactionRejectsOutOfGroupKey() {
	err := s.store.RunTransaction(s.ctx, []string{"pgtest:in-group"}, func(tx store.Tx) error {
		return tx.Put("pgtest:out-of-group", []byte("x"))
	})
	s.ErrorIs(err, sentinel.ErrTooManyKeys)
}

func (s *PostgresStoreSuite) TestCounterConcurrentNoRepeats() {
	key := "pgtest:counter"
	const workers = 8

	var mu sync.Mutex
	seen := make(map[int64]bool)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, err := store.NextValue(s.ctx, s.store, key)
			s.NoError(err)
			mu.Lock()
			s.False(seen[v], "value %d handed out twice", v)
			seen[v] = true
			mu.Unlock()
		}()
	}
	wg.Wait()
	s.Len(seen, workers)
}

func (s *PostgresStoreSuite) TestListPrefix() {
	s.Require().NoError(s.store.Put(s.ctx, "pglist:a", []byte("1")))
	s.Require().NoError(s.store.Put(s.ctx, "pglist:b", []byte("2")))
	s.Require().NoError(s.store.Put(s.ctx, "pgother:c", []byte("3")))

	out, err := s.store.ListPrefix(s.ctx, "pglist:")
	s.Require().NoError(err)
	s.Len(out, 2)
	s.Equal([]byte("1"), out["pglist:a"])
	s.Equal([]byte("2"), out["pglist:b"])
}
