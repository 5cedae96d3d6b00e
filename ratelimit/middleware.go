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
	"math"
	"strconv"
	"time"

	"github.com/kingwill101/routed/router"
)

// Rate-limit response headers.
const (
	HeaderRemaining  = "X-RateLimit-Remaining"
	HeaderRetryAfter = "Retry-After"
)

// Middleware adapts svc to the router chain. Metered responses carry
// X-RateLimit-Remaining; denials answer 429 with a Retry-After hint in
// whole seconds.
func Middleware(svc *Service) router.MiddlewareFunc {
	return func(c *router.Context, next router.HandlerFunc) error {
		res := svc.Evaluate(c.Context(), Request{
			Method:   c.Method(),
			Path:     c.Path(),
			ClientIP: c.ClientIP(),
			Header:   c.Request.Header,
		})
		if out, ok := res.Blocked(); ok {
			c.Header(HeaderRemaining, "0")
			c.Header(HeaderRetryAfter, strconv.Itoa(retryAfterSeconds(out.RetryAfter)))
			return router.NewError(router.KindRateLimited, "rate limit exceeded")
		}
		if remaining, ok := res.Remaining(); ok {
			// Fractional token budgets round down: the header promises
			// whole requests, never more than the bucket can honor.
			c.Header(HeaderRemaining, strconv.Itoa(int(math.Floor(remaining))))
		}
		return next(c)
	}
}

// retryAfterSeconds rounds a retry hint up to whole seconds, at least 1.
func retryAfterSeconds(d time.Duration) int {
	secs := int(math.Ceil(d.Seconds()))
	if secs < 1 {
		secs = 1
	}
	return secs
}
