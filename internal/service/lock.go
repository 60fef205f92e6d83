package service

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Locker serializes all work on a single transaction id. Operations on
// different ids proceed independently.
type Locker interface {
	// Acquire blocks until the key lock is held or ctx expires. The returned
	// release function must be called exactly once.
	Acquire(ctx context.Context, key string) (release func(), err error)
}

// KeyedMutex is the in-process locker for single-instance deployments.
type KeyedMutex struct {
	mu      sync.Mutex
	entries map[string]*lockEntry
}

type lockEntry struct {
	mu   sync.Mutex
	refs int
}

func NewKeyedMutex() *KeyedMutex {
	return &KeyedMutex{entries: make(map[string]*lockEntry)}
}

func (k *KeyedMutex) Acquire(_ context.Context, key string) (func(), error) {
	k.mu.Lock()
	entry, ok := k.entries[key]
	if !ok {
		entry = &lockEntry{}
		k.entries[key] = entry
	}
	entry.refs++
	k.mu.Unlock()

	entry.mu.Lock()

	return func() {
		entry.mu.Unlock()
		k.mu.Lock()
		entry.refs--
		if entry.refs == 0 {
			delete(k.entries, key)
		}
		k.mu.Unlock()
	}, nil
}

const (
	redisLockTTL   = 30 * time.Second
	redisLockRetry = 100 * time.Millisecond
)

// RedisLocker holds the per-transaction lock in Redis so multiple bot
// replicas cannot confirm the same transaction concurrently. The TTL bounds
// how long a crashed holder can block the key.
type RedisLocker struct {
	client *redis.Client
}

func NewRedisLocker(client *redis.Client) *RedisLocker {
	return &RedisLocker{client: client}
}

func (r *RedisLocker) Acquire(ctx context.Context, key string) (func(), error) {
	lockKey := "purchase_lock:" + key

	for {
		ok, err := r.client.SetNX(ctx, lockKey, "1", redisLockTTL).Result()
		if err != nil {
			return nil, err
		}
		if ok {
			return func() {
				r.client.Del(context.Background(), lockKey)
			}, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(redisLockRetry):
		}
	}
}
