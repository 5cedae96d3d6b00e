// Copyright 2025 The Routed Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis is a repository backed by a Redis server, for sharing
// rate-limit state across processes. Values are stored as strings:
// string and []byte pass through, everything else is JSON-encoded.
// Get returns string values; callers decode.
//
// Unlike a response cache, errors are NOT swallowed as misses. The
// rate-limit service needs to see backend failures to apply its
// failover mode.
type Redis struct {
	client    redis.UniversalClient
	prefix    string
	opTimeout time.Duration
}

// RedisOption configures a Redis repository.
type RedisOption func(*Redis)

// WithOpTimeout bounds each Redis round trip. Default 250ms.
func WithOpTimeout(d time.Duration) RedisOption {
	return func(r *Redis) {
		if d > 0 {
			r.opTimeout = d
		}
	}
}

// NewRedis creates a Redis repository. All keys get the given prefix,
// e.g. "myapp:ratelimit:".
func NewRedis(client redis.UniversalClient, prefix string, opts ...RedisOption) *Redis {
	r := &Redis{
		client:    client,
		prefix:    prefix,
		opTimeout: 250 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// opCtx applies the per-operation timeout unless the caller already set
// a deadline.
func (r *Redis) opCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); ok {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, r.opTimeout)
}

// Get implements Repository.
func (r *Redis) Get(ctx context.Context, key string) (any, bool, error) {
	ctx, cancel := r.opCtx(ctx)
	defer cancel()

	val, err := r.client.Get(ctx, r.prefix+key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("cache: redis get %q: %w", key, err)
	}
	return val, true, nil
}

// Put implements Repository.
func (r *Redis) Put(ctx context.Context, key string, value any, ttl time.Duration) error {
	payload, err := encodeValue(value)
	if err != nil {
		return err
	}

	ctx, cancel := r.opCtx(ctx)
	defer cancel()

	if ttl < 0 {
		ttl = 0 // redis: 0 means no expiry
	}
	if err := r.client.Set(ctx, r.prefix+key, payload, ttl).Err(); err != nil {
		return fmt.Errorf("cache: redis set %q: %w", key, err)
	}
	return nil
}

// Increment implements Repository via INCRBY, which is atomic on the
// server.
func (r *Redis) Increment(ctx context.Context, key string, by int64) (int64, error) {
	ctx, cancel := r.opCtx(ctx)
	defer cancel()

	n, err := r.client.IncrBy(ctx, r.prefix+key, by).Result()
	if err != nil {
		return 0, fmt.Errorf("cache: redis incrby %q: %w", key, err)
	}
	return n, nil
}

// Forget implements Repository.
func (r *Redis) Forget(ctx context.Context, key string) error {
	ctx, cancel := r.opCtx(ctx)
	defer cancel()

	if err := r.client.Del(ctx, r.prefix+key).Err(); err != nil {
		return fmt.Errorf("cache: redis del %q: %w", key, err)
	}
	return nil
}

// encodeValue converts a value to the string form Redis stores.
func encodeValue(value any) (string, error) {
	switch v := value.(type) {
	case string:
		return v, nil
	case []byte:
		return string(v), nil
	default:
		raw, err := json.Marshal(v)
		if err != nil {
			return "", fmt.Errorf("cache: encoding %T: %w", value, err)
		}
		return string(raw), nil
	}
}

var _ Repository = (*Redis)(nil)
