//go:build integration

package cache_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"syndic/internal/registry/cache"
	"syndic/pkg/platform/sentinel"
	"syndic/pkg/testutil/containers"
)

type RedisCacheSuite struct {
	suite.Suite
	ctx   context.Context
	redis *containers.RedisContainer
	cache *cache.RedisCache
}

func (s *RedisCacheSuite) SetupSuite() {
	s.ctx = context.Background()
	s.redis = containers.NewRedisContainer(s.T())
	s.cache = cache.NewRedis(s.redis.Client, time.Minute)
}

func (s *RedisCacheSuite) SetupTest() {
	s.Require().NoError(s.redis.FlushAll(s.ctx))
}

func TestRedisCacheSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(RedisCacheSuite))
}

func (s *RedisCacheSuite) TestMissReturnsNotFound() {
	_, err := s.cache.Get(s.ctx, "gateway:404")
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *RedisCacheSuite) TestSetGetDelete() {
	s.Require().NoError(s.cache.Set(s.ctx, "gateway:1", []byte("record")))

	got, err := s.cache.Get(s.ctx, "gateway:1")
	s.Require().NoError(err)
	s.Equal([]byte("record"), got)

	s.Require().NoError(s.cache.Delete(s.ctx, "gateway:1"))
	_, err = s.cache.Get(s.ctx, "gateway:1")
	s.ErrorIs(err, sentinel.ErrNotFound)

	// Deleting an absent key succeeds.
	s.NoError(s.cache.Delete(s.ctx, "gateway:1"))
}

func (s *RedisCacheSuite) TestSetMulti() {
	entries := map[string][]byte{
		"gateway:1":   []byte("a"),
		"gateway:2":   []byte("b"),
		"name2id:one": []byte("1"),
	}
	s.Require().NoError(s.cache.SetMulti(s.ctx, entries))

	for key, want := range entries {
		got, err := s.cache.Get(s.ctx, key)
		s.Require().NoError(err)
		s.Equal(want, got)
	}
}

func (s *RedisCacheSuite) TestEntriesExpire() {
	short := cache.NewRedis(s.redis.Client, 50*time.Millisecond)
	s.Require().NoError(short.Set(s.ctx, "gateway:ttl", []byte("soon gone")))

	s.Eventually(func() bool {
		_, err := short.Get(s.ctx, "gateway:ttl")
		return err != nil
	}, 2*time.Second, 25*time.Millisecond)
}
