// Package lock serializes work per key (a document id, a contract id) so that
// operations on the same aggregate observe each other's committed writes,
// while operations on different keys proceed independently.
package lock

import (
	"context"
	"fmt"

	"doccontrol/pkg/platform/sentinel"
)

// Unlock releases a held lock. It is safe to call more than once.
type Unlock func()

// Locker acquires a mutually exclusive lock for key, waiting until ctx is done.
type Locker interface {
	Lock(ctx context.Context, key string) (Unlock, error)
}

const numShards = 128

// Sharded is an in-process Locker. Keys hash onto a fixed set of shards, so two
// keys may share a shard; that only costs contention, never correctness.
type Sharded struct {
	shards [numShards]chan struct{}
}

// NewSharded constructs an in-process Locker.
func NewSharded() *Sharded {
	s := &Sharded{}
	for i := range s.shards {
		s.shards[i] = make(chan struct{}, 1)
	}
	return s
}

func (s *Sharded) Lock(ctx context.Context, key string) (Unlock, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", sentinel.ErrLockNotAcquired, key, err)
	}
	sem := s.shards[hashKey(key)%numShards]
	select {
	case sem <- struct{}{}:
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %s: %w", sentinel.ErrLockNotAcquired, key, ctx.Err())
	}
	released := false
	return func() {
		if released {
			return
		}
		released = true
		<-sem
	}, nil
}

// hashKey uses FNV-1a for an even spread of uuid-shaped keys.
func hashKey(s string) uint32 {
	const (
		fnvOffset = 2166136261
		fnvPrime  = 16777619
	)
	h := uint32(fnvOffset)
	for i := 0; i < len(s); i++ {
		h ^= uint32(s[i])
		h *= fnvPrime
	}
	return h
}
