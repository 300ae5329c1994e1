// Copyright IBM Corp. 2020, 2025
// SPDX-License-Identifier: MPL-2.0

package session

import (
	"context"
	"fmt"
	"time"

	"github.com/eko/gocache/lib/v4/store"
	gocache_store "github.com/eko/gocache/store/go_cache/v4"
	redis_store "github.com/eko/gocache/store/redis/v4"
	gocache "github.com/patrickmn/go-cache"
	"github.com/redis/go-redis/v9"
)

const (
	// DefaultTTL is the default session lifetime.
	DefaultTTL = 24 * time.Hour

	// DefaultCleanupInterval is how often expired sessions are purged from
	// the in-memory backend.
	DefaultCleanupInterval = 10 * time.Minute

	redisPingTimeout = 2 * time.Second
)

// NewBackend returns the session backend: redis when redisURL isn't empty,
// in-memory otherwise.
//
// Supported options: WithTTL, WithCleanupInterval
func NewBackend(ctx context.Context, redisURL string, opt ...Option) (store.StoreInterface, error) {
	if redisURL != "" {
		return NewRedisBackend(ctx, redisURL)
	}
	return NewMemoryBackend(opt...), nil
}

// NewMemoryBackend returns an in-memory session backend.  Sessions are lost
// on restart and aren't shared between processes.
//
// Supported options: WithTTL, WithCleanupInterval
func NewMemoryBackend(opt ...Option) store.StoreInterface {
	opts := getOpts(opt...)
	return gocache_store.NewGoCache(gocache.New(opts.withTTL, opts.withCleanupInterval))
}

// NewRedisBackend returns a redis session backend for the redis URL (for
// example: redis://localhost:6379/0).  The server must answer a ping.
func NewRedisBackend(ctx context.Context, redisURL string) (store.StoreInterface, error) {
	const op = "session.NewRedisBackend"
	options, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("%s: parsing redis url: %w", op, err)
	}
	client := redis.NewClient(options)

	ctx, cancel := context.WithTimeout(ctx, redisPingTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("%s: unable to reach redis: %w", op, err)
	}
	return redis_store.NewRedis(client), nil
}
