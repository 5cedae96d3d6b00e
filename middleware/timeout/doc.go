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

// Package timeout bounds request processing with a deadline on the
// request context.
//
//	r := router.MustNew()
//	r.Use(timeout.New(5 * time.Second))
//
// Handlers and their downstream calls observe the deadline through
// c.Context(). When the chain propagates the expired deadline, the
// buffered response is discarded and the client receives 504 Gateway
// Timeout. A handler that completes despite the deadline, or that maps
// the cancellation to its own error, keeps its result.
//
// Endpoints with legitimately unbounded lifetimes can be exempted:
//
//	r.Use(timeout.New(5*time.Second, timeout.WithSkip(func(c *router.Context) bool {
//	    return c.Path() == "/events"
//	})))
package timeout
