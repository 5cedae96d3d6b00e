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
	"fmt"
	"hash/fnv"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

const memoryShards = 64

// memoryEntry carries a value plus its own expiry, since the underlying
// LRU applies one TTL to every entry.
type memoryEntry struct {
	value     any
	expiresAt time.Time // zero: no per-entry expiry
}

// Memory is an in-process LRU repository. Size-bounded, with a default
// TTL applied by the LRU and optional shorter per-entry TTLs honored on
// read. Increment serializes on a per-key mutex shard.
type Memory struct {
	lru    *expirable.LRU[string, memoryEntry]
	shards [memoryShards]sync.Mutex
}

// NewMemory creates an in-memory repository holding at most maxSize
// entries, each living at most defaultTTL. maxSize <= 0 falls back to
// 10000 entries; defaultTTL <= 0 disables the store-wide TTL.
func NewMemory(maxSize int, defaultTTL time.Duration) *Memory {
	if maxSize <= 0 {
		maxSize = 10_000
	}
	return &Memory{
		lru: expirable.NewLRU[string, memoryEntry](maxSize, nil, defaultTTL),
	}
}

// shard returns the mutex guarding read-modify-write cycles for key.
func (m *Memory) shard(key string) *sync.Mutex {
	h := fnv.New32a()
	h.Write([]byte(key))
	return &m.shards[h.Sum32()%memoryShards]
}

// Get implements Repository.
func (m *Memory) Get(_ context.Context, key string) (any, bool, error) {
	entry, ok := m.lru.Get(key)
	if !ok {
		return nil, false, nil
	}
	if !entry.expiresAt.IsZero() && time.Now().After(entry.expiresAt) {
		m.lru.Remove(key)
		return nil, false, nil
	}
	return entry.value, true, nil
}

// Put implements Repository.
func (m *Memory) Put(_ context.Context, key string, value any, ttl time.Duration) error {
	entry := memoryEntry{value: value}
	if ttl > 0 {
		entry.expiresAt = time.Now().Add(ttl)
	}
	m.lru.Add(key, entry)
	return nil
}

// Increment implements Repository. The counter is created at zero when
// absent; a non-integer value under key is an error.
func (m *Memory) Increment(ctx context.Context, key string, by int64) (int64, error) {
	mu := m.shard(key)
	mu.Lock()
	defer mu.Unlock()

	var current int64
	if v, ok, _ := m.Get(ctx, key); ok {
		n, ok := v.(int64)
		if !ok {
			return 0, fmt.Errorf("cache: key %q holds %T, not a counter", key, v)
		}
		current = n
	}
	current += by
	m.lru.Add(key, memoryEntry{value: current})
	return current, nil
}

// Forget implements Repository.
func (m *Memory) Forget(_ context.Context, key string) error {
	m.lru.Remove(key)
	return nil
}

// Len returns the number of live entries, counting per-entry expired
// ones the LRU has not evicted yet.
func (m *Memory) Len() int {
	return m.lru.Len()
}

// Purge drops every entry.
func (m *Memory) Purge() {
	m.lru.Purge()
}

var _ Repository = (*Memory)(nil)
