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

package sessions

import (
	"context"
	"maps"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"
)

// memoryEntry carries one session's values plus its own expiry; the
// underlying LRU applies a single backstop TTL to every entry.
type memoryEntry struct {
	values    map[string]any
	expiresAt time.Time
}

// MemoryStore keeps sessions in process. The cookie carries only the
// session ID. State is lost on restart and not shared between
// replicas.
type MemoryStore struct {
	lru *expirable.LRU[string, memoryEntry]
	now func() time.Time
}

// NewMemoryStore creates an in-process store holding at most maxSize
// sessions, each living at most maxLifetime after its last save.
// maxSize <= 0 falls back to 100000 sessions; maxLifetime bounds every
// session regardless of the manager's lifetime.
func NewMemoryStore(maxSize int, maxLifetime time.Duration) *MemoryStore {
	if maxSize <= 0 {
		maxSize = 100_000
	}
	return &MemoryStore{
		lru: expirable.NewLRU[string, memoryEntry](maxSize, nil, maxLifetime),
		now: time.Now,
	}
}

// Load implements Store. The cookie value is the session ID.
func (s *MemoryStore) Load(_ context.Context, cookieValue string) (string, map[string]any, error) {
	if _, err := uuid.Parse(cookieValue); err != nil {
		return "", nil, nil
	}
	entry, ok := s.lru.Get(cookieValue)
	if !ok {
		return "", nil, nil
	}
	if s.now().After(entry.expiresAt) {
		s.lru.Remove(cookieValue)
		return "", nil, nil
	}
	return cookieValue, maps.Clone(entry.values), nil
}

// Save implements Store. Each save renews the session's expiry.
func (s *MemoryStore) Save(_ context.Context, id string, values map[string]any, ttl time.Duration) (string, error) {
	s.lru.Add(id, memoryEntry{
		values:    maps.Clone(values),
		expiresAt: s.now().Add(ttl),
	})
	return id, nil
}

// Destroy implements Store.
func (s *MemoryStore) Destroy(_ context.Context, id string) error {
	s.lru.Remove(id)
	return nil
}

// Len returns the number of stored sessions, counting expired ones the
// LRU has not evicted yet.
func (s *MemoryStore) Len() int {
	return s.lru.Len()
}

var _ Store = (*MemoryStore)(nil)
