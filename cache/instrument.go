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
	"time"

	"github.com/kingwill101/routed/events"
)

// Instrumented wraps a repository and publishes an event per operation:
// CacheHit or CacheMiss on Get, CacheWrite on Put, CacheForget on
// Forget. Increment is intentionally silent; rate-limit evaluations
// already produce their own events.
//
// Example:
//
//	repo := cache.Instrument(cache.NewMemory(1000, time.Hour), hub, "memory")
type Instrumented struct {
	next  Repository
	hub   *events.Hub
	store string
}

// Instrument wraps repo. The store label identifies the backend in
// emitted events, typically "memory" or "redis".
func Instrument(repo Repository, hub *events.Hub, store string) *Instrumented {
	return &Instrumented{next: repo, hub: hub, store: store}
}

// Get implements Repository.
func (i *Instrumented) Get(ctx context.Context, key string) (any, bool, error) {
	value, ok, err := i.next.Get(ctx, key)
	if err == nil {
		if ok {
			i.hub.Emit(events.CacheHit{Base: events.NewBase(), Store: i.store, Key: key})
		} else {
			i.hub.Emit(events.CacheMiss{Base: events.NewBase(), Store: i.store, Key: key})
		}
	}
	return value, ok, err
}

// Put implements Repository.
func (i *Instrumented) Put(ctx context.Context, key string, value any, ttl time.Duration) error {
	err := i.next.Put(ctx, key, value, ttl)
	if err == nil {
		i.hub.Emit(events.CacheWrite{Base: events.NewBase(), Store: i.store, Key: key, TTL: ttl})
	}
	return err
}

// Increment implements Repository.
func (i *Instrumented) Increment(ctx context.Context, key string, by int64) (int64, error) {
	return i.next.Increment(ctx, key, by)
}

// Forget implements Repository.
func (i *Instrumented) Forget(ctx context.Context, key string) error {
	err := i.next.Forget(ctx, key)
	if err == nil {
		i.hub.Emit(events.CacheForget{Base: events.NewBase(), Store: i.store, Key: key})
	}
	return err
}

var _ Repository = (*Instrumented)(nil)
