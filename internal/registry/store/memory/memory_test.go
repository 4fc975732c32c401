package memory

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/suite"

	"syndic/internal/registry/store"
	"syndic/pkg/platform/sentinel"
)

type MemoryStoreSuite struct {
	suite.Suite
	store *Store
	ctx   context.Context
}

func (s *MemoryStoreSuite) SetupTest() {
	s.store = New()
	s.ctx = context.Background()
}

func TestMemoryStoreSuite(t *testing.T) {
	suite.Run(t, new(MemoryStoreSuite))
}

func (s *MemoryStoreSuite) TestGetPutDelete() {
	s.Run("missing key returns ErrNotFound", func() {
		_, err := s.store.Get(s.ctx, "nope")
		s.Require().ErrorIs(err, sentinel.ErrNotFound)
	})

	s.Run("put then get round-trips", func() {
		s.Require().NoError(s.store.Put(s.ctx, "k", []byte("v")))
		got, err := s.store.Get(s.ctx, "k")
		s.Require().NoError(err)
		s.Equal([]byte("v"), got)
	})

	s.Run("delete is idempotent", func() {
		s.Require().NoError(s.store.Put(s.ctx, "gone", []byte("x")))
		s.Require().NoError(s.store.Delete(s.ctx, "gone"))
		s.Require().NoError(s.store.Delete(s.ctx, "gone"))
		_, err := s.store.Get(s.ctx, "gone")
		s.Require().ErrorIs(err, sentinel.ErrNotFound)
	})
}

func (s *MemoryStoreSuite) TestGetOrInsert() {
	s.Run("inserts when absent", func() {
		committed, inserted, err := s.store.GetOrInsert(s.ctx, "a", []byte("first"))
		s.Require().NoError(err)
		s.True(inserted)
		s.Equal([]byte("first"), committed)
	})

	s.Run("keeps the original mapping on second insert", func() {
		_, _, err := s.store.GetOrInsert(s.ctx, "b", []byte("winner"))
		s.Require().NoError(err)

		committed, inserted, err := s.store.GetOrInsert(s.ctx, "b", []byte("loser"))
		s.Require().NoError(err)
		s.False(inserted)
		s.Equal([]byte("winner"), committed)
	})

	s.Run("exactly one concurrent inserter wins", func() {
		const goroutines = 32
		var wg sync.WaitGroup
		wins := make(chan int, goroutines)
		for i := 0; i < goroutines; i++ {
			wg.Add(1)
			go func(n int) {
				defer wg.Done()
				_, inserted, err := s.store.GetOrInsert(s.ctx, "race", []byte{byte(n)})
				s.NoError(err)
				if inserted {
					wins <- n
				}
			}(i)
		}
		wg.Wait()
		close(wins)

		var winners []int
		for w := range wins {
			winners = append(winners, w)
		}
		s.Require().Len(winners, 1)

		committed, err := s.store.Get(s.ctx, "race")
		s.Require().NoError(err)
		s.Equal([]byte{byte(winners[0])}, committed)
	})
}

func (s *MemoryStoreSuite) TestTransactions() {
	s.Run("failed transaction leaves no trace", func() {
		s.Require().NoError(s.store.Put(s.ctx, "t1", []byte("before")))

		err := s.store.RunTransaction(s.ctx, []string{"t1"}, func(tx store.Tx) error {
			s.Require().NoError(tx.Put("t1", []byte("after")))
			return sentinel.ErrAborted
		})
		s.Require().ErrorIs(err, sentinel.ErrAborted)

		got, err := s.store.Get(s.ctx, "t1")
		s.Require().NoError(err)
		s.Equal([]byte("before"), got)
	})

	s.Run("reads observe staged writes", func() {
		err := s.store.RunTransaction(s.ctx, []string{"t2"}, func(tx store.Tx) error {
			s.Require().NoError(tx.Put("t2", []byte("staged")))
			got, err := tx.Get("t2")
			s.Require().NoError(err)
			s.Equal([]byte("staged"), got)
			return nil
		})
		s.Require().NoError(err)
	})

	s.Run("rejects oversized entity groups", func() {
		keys := []string{"a", "b", "c", "d", "e"}
		err := s.store.RunTransaction(s.ctx, keys, func(tx store.Tx) error { return nil })
		s.Require().ErrorIs(err, sentinel.ErrTooManyKeys)
	})

	s.Run("rejects keys outside the declared group", func() {
		err := s.store.RunTransaction(s.ctx, []string{"in"}, func(tx store.Tx) error {
			return tx.Put("out", []byte("x"))
		})
		s.Require().ErrorIs(err, sentinel.ErrTooManyKeys)
	})
}

func (s *MemoryStoreSuite) TestCounter() {
	s.Run("monotone from one", func() {
		for want := int64(1); want <= 5; want++ {
			got, err := store.NextValue(s.ctx, s.store, "ctr")
			s.Require().NoError(err)
			s.Equal(want, got)
		}
	})

	s.Run("concurrent increments never repeat", func() {
		const goroutines = 16
		var wg sync.WaitGroup
		values := make(chan int64, goroutines)
		for i := 0; i < goroutines; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				v, err := store.NextValue(s.ctx, s.store, "ctr2")
				s.NoError(err)
				values <- v
			}()
		}
		wg.Wait()
		close(values)

		seen := make(map[int64]bool)
		for v := range values {
			s.False(seen[v], "duplicate counter value %d", v)
			seen[v] = true
		}
		s.Len(seen, goroutines)
	})
}

func (s *MemoryStoreSuite) TestListPrefix() {
	s.Require().NoError(s.store.Put(s.ctx, "gateway:1", []byte("a")))
	s.Require().NoError(s.store.Put(s.ctx, "gateway:2", []byte("b")))
	s.Require().NoError(s.store.Put(s.ctx, "gatewayname:x", []byte("c")))

	got, err := s.store.ListPrefix(s.ctx, "gateway:")
	s.Require().NoError(err)
	s.Len(got, 2)
	s.Contains(got, "gateway:1")
	s.Contains(got, "gateway:2")
}
