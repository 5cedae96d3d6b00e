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

// Package recovery converts panics in downstream middleware and
// handlers into HTTP responses.
//
// The engine already catches panics at its outermost layer and answers
// 500. Install this middleware when a route or group needs its own
// panic response, such as a JSON error body or a redacted message for
// a public edge, or when the recovery point must sit inside other middleware
// so that, for example, the access log records the substituted status.
//
//	e.Use(recovery.New(
//	    recovery.WithHandler(func(c *router.Context, v any) {
//	        _ = c.JSON(http.StatusInternalServerError, map[string]string{
//	            "error":      "internal error",
//	            "request_id": c.RequestID(),
//	        })
//	    }),
//	))
//
// Recovered panics are logged and published as RoutingError events
// either way, so observers see them exactly as they see panics the
// engine catches itself.
package recovery
