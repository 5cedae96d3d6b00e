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

package ratelimit

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kingwill101/routed/cache"
	"github.com/kingwill101/routed/events"
	"github.com/kingwill101/routed/router"
)

// TestMiddlewareTokenBucketScenario runs the canonical two-request
// sequence through the full engine: first 200 with an allowed event,
// second 429 with a blocked event and retry headers.
func TestMiddlewareTokenBucketScenario(t *testing.T) {
	t.Parallel()

	hub := events.NewHub()
	var allowed []events.RateLimitAllowed
	var blocked []events.RateLimitBlocked
	events.On(hub, func(ev events.RateLimitAllowed) { allowed = append(allowed, ev) })
	events.On(hub, func(ev events.RateLimitBlocked) { blocked = append(blocked, ev) })

	clock := newFakeClock(base)
	svc, err := New(cache.NewMemory(64, 0), []Policy{{
		Name:     "per-user",
		Methods:  "GET",
		Path:     "/resource",
		Identity: HeaderIdentity{Name: "X-User-Id"},
		Strategy: TokenBucket{Capacity: 1, RefillInterval: time.Minute},
	}}, WithHub(hub), WithClock(clock.Now))
	require.NoError(t, err)

	e := router.MustNew(router.WithHub(hub))
	e.Use(Middleware(svc))
	e.GET("/resource", func(c *router.Context) error {
		return c.String(http.StatusOK, "ok")
	})

	get := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/resource", nil)
		req.Header.Set("X-User-Id", "user-123")
		w := httptest.NewRecorder()
		e.ServeHTTP(w, req)
		return w
	}

	w := get()
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "0", w.Header().Get(HeaderRemaining))
	require.Len(t, allowed, 1)
	assert.InDelta(t, 0, allowed[0].Remaining, 1e-9)

	w = get()
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "0", w.Header().Get(HeaderRemaining))
	assert.Equal(t, "60", w.Header().Get(HeaderRetryAfter), "a full interval away, rounded up")
	require.Len(t, blocked, 1)
	assert.Positive(t, blocked[0].RetryAfter)

	// Another user is unaffected.
	req := httptest.NewRequest(http.MethodGet, "/resource", nil)
	req.Header.Set("X-User-Id", "user-456")
	w = httptest.NewRecorder()
	e.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)

	// After a full refill interval the first user has budget again.
	clock.Advance(time.Minute)
	w = get()
	assert.Equal(t, http.StatusOK, w.Code)
}

// TestMiddlewareFloorsFractionalRemaining pins the rounding direction
// of the remaining header: a partial refill leaves a fractional token
// balance, and the header reports the floor, never an optimistic round.
func TestMiddlewareFloorsFractionalRemaining(t *testing.T) {
	t.Parallel()

	clock := newFakeClock(base)
	svc, err := New(cache.NewMemory(64, 0), []Policy{{
		Name:     "per-user",
		Path:     "/resource",
		Identity: HeaderIdentity{Name: "X-User-Id"},
		Strategy: TokenBucket{Capacity: 2, RefillInterval: time.Minute},
	}}, WithClock(clock.Now))
	require.NoError(t, err)

	e := router.MustNew()
	e.Use(Middleware(svc))
	e.GET("/resource", func(c *router.Context) error {
		return c.String(http.StatusOK, "ok")
	})

	get := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/resource", nil)
		req.Header.Set("X-User-Id", "user-123")
		w := httptest.NewRecorder()
		e.ServeHTTP(w, req)
		return w
	}

	w := get()
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "1", w.Header().Get(HeaderRemaining))

	// 15s refills half a token: 1 - 1 + 0.5 = 0.5 after the consume.
	clock.Advance(15 * time.Second)
	w = get()
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "0", w.Header().Get(HeaderRemaining))
}

// TestMiddlewareUnmeteredRequestsCarryNoHeaders leaves untouched
// requests unlabeled.
func TestMiddlewareUnmeteredRequestsCarryNoHeaders(t *testing.T) {
	t.Parallel()

	svc, err := New(cache.NewMemory(64, 0), []Policy{{
		Name:     "admin",
		Path:     "/admin/**",
		Strategy: TokenBucket{Capacity: 1, RefillInterval: time.Minute},
	}})
	require.NoError(t, err)

	e := router.MustNew()
	e.Use(Middleware(svc))
	e.GET("/public", func(c *router.Context) error {
		return c.String(http.StatusOK, "ok")
	})

	req := httptest.NewRequest(http.MethodGet, "/public", nil)
	w := httptest.NewRecorder()
	e.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Header().Get(HeaderRemaining))
	assert.Empty(t, w.Header().Get(HeaderRetryAfter))
}

// TestMiddlewareReportsTightestBudget surfaces the lowest remaining
// count when several policies meter one request.
func TestMiddlewareReportsTightestBudget(t *testing.T) {
	t.Parallel()

	clock := newFakeClock(base)
	svc, err := New(cache.NewMemory(64, 0), []Policy{
		{Name: "loose", Strategy: TokenBucket{Capacity: 10, RefillInterval: time.Minute}},
		{Name: "tight", Strategy: TokenBucket{Capacity: 3, RefillInterval: time.Minute}},
	}, WithClock(clock.Now))
	require.NoError(t, err)

	e := router.MustNew()
	e.Use(Middleware(svc))
	e.GET("/x", func(c *router.Context) error {
		return c.String(http.StatusOK, "ok")
	})

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.RemoteAddr = "203.0.113.7:4711"
	w := httptest.NewRecorder()
	e.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "2", w.Header().Get(HeaderRemaining))
}

// TestMiddlewareFailoverBlock answers 429 with the failover retry hint
// while the backend is down.
func TestMiddlewareFailoverBlock(t *testing.T) {
	t.Parallel()

	svc, err := New(failingRepo{err: errors.New("backend down")}, []Policy{{
		Name:     "api",
		Strategy: TokenBucket{Capacity: 100, RefillInterval: time.Minute},
		Failover: FailoverBlock,
	}})
	require.NoError(t, err)

	e := router.MustNew()
	e.Use(Middleware(svc))
	e.GET("/x", func(c *router.Context) error {
		return c.String(http.StatusOK, "ok")
	})

	for range 3 {
		req := httptest.NewRequest(http.MethodGet, "/x", nil)
		w := httptest.NewRecorder()
		e.ServeHTTP(w, req)
		assert.Equal(t, http.StatusTooManyRequests, w.Code)
		assert.Equal(t, "1", w.Header().Get(HeaderRetryAfter))
	}
}

// TestRetryAfterSeconds rounds hints up to whole seconds.
func TestRetryAfterSeconds(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 1, retryAfterSeconds(0))
	assert.Equal(t, 1, retryAfterSeconds(200*time.Millisecond))
	assert.Equal(t, 1, retryAfterSeconds(time.Second))
	assert.Equal(t, 2, retryAfterSeconds(1200*time.Millisecond))
	assert.Equal(t, 60, retryAfterSeconds(time.Minute))
}
