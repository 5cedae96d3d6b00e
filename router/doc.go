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

// Package router implements the request-processing engine: a
// parameterized route matcher, a compositional middleware pipeline, and
// a per-request lifecycle that publishes events on an events.Hub.
//
// # Quick start
//
//	e := router.MustNew()
//	e.GET("/users/{id:int}", func(c *router.Context) error {
//	    id, _ := c.ParamInt64("id")
//	    return c.JSON(http.StatusOK, map[string]int64{"id": id})
//	})
//	log.Fatal(e.Serve(":8080"))
//
// # Route patterns
//
// Paths are /-separated sequences of literal segments and placeholders:
//
//	{name}       required segment, matches [^/]+
//	{name:type}  typed segment; type is one of int, double, slug,
//	             uuid, email, ip, string
//	{name?}      optional segment, only allowed in last position
//	{*name}      wildcard tail, matches the rest of the path including /
//
// Typed captures are coerced after matching: int becomes int64, double
// becomes float64, everything else stays a string. A segment that fails
// its type check simply does not match, so /users/abc against
// /users/{id:int} is a 404, never a 400.
//
// # Middleware
//
// A middleware receives the context and the next handler:
//
//	func(c *router.Context, next router.HandlerFunc) error
//
// The chain for a route is engine middleware, then mount middleware,
// then router middleware, then each enclosing group's (outermost
// first), then the route's own, in registration order at every level.
// Not calling next short-circuits the rest of the chain. Named
// middleware is resolved through a Registry when the engine builds its
// route table, and entries can be removed per route or group with
// WithoutMiddleware.
//
// # Lifecycle
//
// Every request walks the same state machine and publishes an event at
// each step: BeforeRouting, RequestStarted, RouteMatched (or
// RouteNotFound), AfterRouting, and exactly one RequestFinished, even
// when the handler panics. Subscribe through the engine's hub:
//
//	events.On(e.Hub(), func(ev events.RequestFinished) {
//	    log.Printf("%s %s -> %d", ev.Method, ev.Path, ev.Status)
//	})
package router
