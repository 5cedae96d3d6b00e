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

// Package ratelimit provides a multi-policy rate-limit service backed by
// a cache repository.
//
// A Service holds an ordered list of policies. Each policy names the
// requests it governs (method plus path glob), how a request is
// identified (client IP or a header value), which algorithm meters it,
// and what happens when the backing store fails.
//
// # Basic Usage
//
//	repo := cache.NewMemory(10_000, 0)
//	svc, err := ratelimit.New(repo, []ratelimit.Policy{{
//	    Name:     "api",
//	    Methods:  "*",
//	    Path:     "/api/**",
//	    Identity: ratelimit.IPIdentity{},
//	    Strategy: ratelimit.TokenBucket{Capacity: 100, RefillInterval: time.Minute},
//	}})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	engine.Use(ratelimit.Middleware(svc))
//
// # Strategies
//
//   - TokenBucket: a bucket of Capacity tokens refilling continuously
//     over RefillInterval; BurstMultiplier raises the ceiling above
//     Capacity.
//   - SlidingWindow: at most Limit hits within any trailing Window.
//   - Quota: at most Limit hits per fixed Period, reset at period
//     boundaries.
//
// Every consume costs one unit. Policies are evaluated in declaration
// order; the first blocked outcome short-circuits the evaluation.
//
// # Failover
//
// When the repository errors, the policy's FailoverMode decides the
// outcome: FailoverAllow admits the request, FailoverBlock denies it
// with a one-second retry hint, and FailoverLocal falls back to an
// in-process token bucket keyed by the same bucket key.
//
// # Path Globs
//
// Policy paths are doublestar globs: `*` matches within one path
// segment, `**` spans segments. `/api/*` governs `/api/users` but not
// `/api/users/42`; `/api/**` governs both.
//
// # Headers & Events
//
// The middleware sets X-RateLimit-Remaining on metered responses and
// Retry-After (whole seconds, rounded up) on 429s. Every policy
// evaluation emits exactly one events.RateLimitAllowed or
// events.RateLimitBlocked on the service's hub.
package ratelimit
