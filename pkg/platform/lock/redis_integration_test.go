//go:build integration

package lock_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"doccontrol/pkg/platform/lock"
	"doccontrol/pkg/platform/sentinel"
	"doccontrol/pkg/testutil/containers"
)

type RedisLockSuite struct {
	suite.Suite
	redis  *containers.RedisContainer
	locker *lock.Redis
}

func TestRedisLockSuite(t *testing.T) {
	suite.Run(t, new(RedisLockSuite))
}

func (s *RedisLockSuite) SetupSuite() {
	s.redis = containers.GetManager().GetRedis(s.T())
	s.locker = lock.NewRedis(s.redis.Client, lock.WithTTL(2*time.Second), lock.WithRetryPeriod(5*time.Millisecond))
}

func (s *RedisLockSuite) SetupTest() {
	s.Require().NoError(s.redis.FlushAll(context.Background()))
}

func (s *RedisLockSuite) TestSecondHolderWaitsForRelease() {
	ctx := context.Background()
	unlock, err := s.locker.Lock(ctx, "document:1")
	s.Require().NoError(err)

	acquired := make(chan struct{})
	go func() {
		second, err := s.locker.Lock(ctx, "document:1")
		if assert.NoError(s.T(), err) {
			second()
		}
		close(acquired)
	}()

	select {
	case <-acquired:
		s.T().Fatal("second holder acquired a held lock")
	case <-time.After(50 * time.Millisecond):
	}
	unlock()
	select {
	case <-acquired:
	case <-time.After(time.Second):
		s.T().Fatal("second holder never acquired the lock")
	}
}

func (s *RedisLockSuite) TestContextCancellation() {
	unlock, err := s.locker.Lock(context.Background(), "document:2")
	s.Require().NoError(err)
	defer unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	_, err = s.locker.Lock(ctx, "document:2")
	s.ErrorIs(err, sentinel.ErrLockNotAcquired)
}

func (s *RedisLockSuite) TestDifferentKeysDoNotBlock() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	var wg sync.WaitGroup
	for _, key := range []string{"contract:a", "contract:b", "contract:c"} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock, err := s.locker.Lock(ctx, key)
			if assert.NoError(s.T(), err) {
				time.Sleep(20 * time.Millisecond)
				unlock()
			}
		}()
	}
	wg.Wait()
	require.NoError(s.T(), ctx.Err())
}

func (s *RedisLockSuite) TestExpiredLockIsNotReleasedByOldHolder() {
	ctx := context.Background()
	short := lock.NewRedis(s.redis.Client, lock.WithTTL(50*time.Millisecond), lock.WithRetryPeriod(5*time.Millisecond))
	stale, err := short.Lock(ctx, "document:3")
	s.Require().NoError(err)

	time.Sleep(100 * time.Millisecond)
	fresh, err := s.locker.Lock(ctx, "document:3")
	s.Require().NoError(err)
	defer fresh()

	stale()
	waitCtx, cancel := context.WithTimeout(ctx, 30*time.Millisecond)
	defer cancel()
	_, err = s.locker.Lock(waitCtx, "document:3")
	s.ErrorIs(err, sentinel.ErrLockNotAcquired)
}
