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

package events

import "time"

// Signal names carried by the hub. Each event type maps to exactly one name.
const (
	SignalBeforeRouting   = "request.before_routing"
	SignalRequestStarted  = "request.started"
	SignalRouteMatched    = "request.route_matched"
	SignalAfterRouting    = "request.after_routing"
	SignalRequestFinished = "request.finished"
	SignalRouteNotFound   = "request.route_not_found"
	SignalRoutingError    = "request.error"

	SignalRateLimitAllowed = "ratelimit.allowed"
	SignalRateLimitBlocked = "ratelimit.blocked"

	SignalCacheHit    = "cache.hit"
	SignalCacheMiss   = "cache.miss"
	SignalCacheWrite  = "cache.write"
	SignalCacheForget = "cache.forget"

	SignalUnhandledError = "events.unhandled_error"
)

// Event is the contract every hub payload satisfies. Name identifies the
// signal the payload travels on; Time records when the event was created.
type Event interface {
	Name() string
	Time() time.Time
}

// Base carries the creation timestamp shared by all event types.
// Embed it and populate it with [NewBase].
type Base struct {
	At time.Time
}

// NewBase returns a Base stamped with the current time.
func NewBase() Base {
	return Base{At: time.Now()}
}

// Time returns when the event was created.
func (b Base) Time() time.Time {
	return b.At
}

// BeforeRouting is emitted after request normalization and client IP
// resolution, before route lookup begins.
type BeforeRouting struct {
	Base
	Method   string
	Path     string
	ClientIP string
}

// Name implements [Event].
func (BeforeRouting) Name() string { return SignalBeforeRouting }

// RequestStarted is emitted when a request enters the active set.
type RequestStarted struct {
	Base
	Method    string
	Path      string
	RequestID string
}

// Name implements [Event].
func (RequestStarted) Name() string { return SignalRequestStarted }

// RouteMatched is emitted when route lookup selects a route. Params holds
// the extracted path parameters as raw strings in declaration order.
type RouteMatched struct {
	Base
	Method  string
	Path    string
	Pattern string
	Route   string
	Params  map[string]string
}

// Name implements [Event].
func (RouteMatched) Name() string { return SignalRouteMatched }

// AfterRouting is emitted once the handler chain has produced a response
// and before it is written to the wire. Pattern is empty when no route
// matched.
type AfterRouting struct {
	Base
	Method   string
	Path     string
	Pattern  string
	Status   int
	Duration time.Duration
}

// Name implements [Event].
func (AfterRouting) Name() string { return SignalAfterRouting }

// RequestFinished is emitted exactly once per request, after the response
// has been written and the request left the active set. It fires even when
// the request panicked, was malformed, or was rejected before routing.
type RequestFinished struct {
	Base
	Method   string
	Path     string
	Pattern  string
	Status   int
	Bytes    int64
	Duration time.Duration
}

// Name implements [Event].
func (RequestFinished) Name() string { return SignalRequestFinished }

// RouteNotFound is emitted when a request ends with no matching route.
// Method-not-allowed responses and trailing-slash redirects do not emit it.
type RouteNotFound struct {
	Base
	Method string
	Path   string
}

// Name implements [Event].
func (RouteNotFound) Name() string { return SignalRouteNotFound }

// RoutingError is emitted when the handler chain returns an error or
// panics. Stack is non-nil only for panics.
type RoutingError struct {
	Base
	Method string
	Path   string
	Err    error
	Stack  []byte
}

// Name implements [Event].
func (RoutingError) Name() string { return SignalRoutingError }

// RateLimitAllowed is emitted for every rate-limit evaluation whose
// outcome is "allowed". Remaining is the unit count left after the
// consumed unit; Failover is set when the outcome came from a failover
// path instead of the primary store.
type RateLimitAllowed struct {
	Base
	Policy    string
	Strategy  string
	Identity  string
	Remaining float64
	Failover  string
}

// Name implements [Event].
func (RateLimitAllowed) Name() string { return SignalRateLimitAllowed }

// RateLimitBlocked is emitted for every rate-limit evaluation whose
// outcome is "blocked". RetryAfter estimates when the next unit becomes
// available.
type RateLimitBlocked struct {
	Base
	Policy     string
	Strategy   string
	Identity   string
	RetryAfter time.Duration
	Failover   string
}

// Name implements [Event].
func (RateLimitBlocked) Name() string { return SignalRateLimitBlocked }

// CacheHit is emitted by instrumented cache repositories on a successful
// read.
type CacheHit struct {
	Base
	Store string
	Key   string
}

// Name implements [Event].
func (CacheHit) Name() string { return SignalCacheHit }

// CacheMiss is emitted by instrumented cache repositories when a key is
// absent.
type CacheMiss struct {
	Base
	Store string
	Key   string
}

// Name implements [Event].
func (CacheMiss) Name() string { return SignalCacheMiss }

// CacheWrite is emitted by instrumented cache repositories after a write.
type CacheWrite struct {
	Base
	Store string
	Key   string
	TTL   time.Duration
}

// Name implements [Event].
func (CacheWrite) Name() string { return SignalCacheWrite }

// CacheForget is emitted by instrumented cache repositories after a
// deletion.
type CacheForget struct {
	Base
	Store string
	Key   string
}

// Name implements [Event].
func (CacheForget) Name() string { return SignalCacheForget }

// UnhandledSignalError is re-published by the hub when a handler panics.
// Signal names the signal whose handler failed; Sender and Key identify
// the failing subscription when they were set.
type UnhandledSignalError struct {
	Base
	Signal string
	Err    error
	Stack  []byte
	Sender any
	Key    string
}

// Name implements [Event].
func (UnhandledSignalError) Name() string { return SignalUnhandledError }
