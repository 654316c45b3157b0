package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/spigell/ml-job-radar/internal/jobs"
)

const (
	redisIdentityPrefix = "ml-job-radar:identity:"
	redisSourceCounts   = "ml-job-radar:sources"
)

type redisClient interface {
	SetNX(ctx context.Context, key string, value any, expiration time.Duration) *redis.BoolCmd
	HIncrBy(ctx context.Context, key, field string, incr int64) *redis.IntCmd
	Close() error
}

// RedisSink mirrors persisted identities and per-source counters to Redis.
type RedisSink struct {
	client redisClient
}

// NewRedisSink parses redisURL and verifies connectivity.
func NewRedisSink(ctx context.Context, redisURL string) (*RedisSink, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("redis.ParseURL: %w", err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return &RedisSink{client: client}, nil
}

func (r *RedisSink) Name() string { return "redis" }

// Write records the identity once; counters only move for new identities.
func (r *RedisSink) Write(ctx context.Context, p jobs.Posting) error {
	created, err := r.client.SetNX(ctx, redisIdentityPrefix+string(p.Key()), p.AddedAt, 0).Result()
	if err != nil {
		return fmt.Errorf("redis setnx: %w", err)
	}
	if !created {
		return nil
	}
	if err := r.client.HIncrBy(ctx, redisSourceCounts, sourceOf(p), 1).Err(); err != nil {
		return fmt.Errorf("redis hincrby: %w", err)
	}
	return nil
}

func (r *RedisSink) Close() error {
	return r.client.Close()
}
