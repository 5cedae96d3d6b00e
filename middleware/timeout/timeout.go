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

package timeout

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/kingwill101/routed/router"
)

// DefaultDuration bounds requests when New receives a non-positive
// duration.
const DefaultDuration = 30 * time.Second

// Option configures the middleware.
type Option func(*config)

type config struct {
	// skip exempts individual requests from the deadline.
	skip func(*router.Context) bool
}

// WithSkip exempts requests for which fn returns true, such as
// streaming endpoints that hold the connection open.
func WithSkip(fn func(*router.Context) bool) Option {
	return func(cfg *config) {
		cfg.skip = fn
	}
}

// New returns middleware that replaces the request context with one
// carrying a deadline d from the start of the chain. A chain error
// that propagates the expired deadline is converted into a 504 and any
// buffered handler output is discarded.
func New(d time.Duration, opts ...Option) router.MiddlewareFunc {
	if d <= 0 {
		d = DefaultDuration
	}
	cfg := &config{}
	for _, opt := range opts {
		opt(cfg)
	}

	return func(c *router.Context, next router.HandlerFunc) error {
		if cfg.skip != nil && cfg.skip(c) {
			return next(c)
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), d)
		defer cancel()
		c.Request = c.Request.WithContext(ctx)

		err := next(c)
		if err != nil && ctx.Err() != nil && errors.Is(err, context.DeadlineExceeded) {
			c.Response.Truncate()
			return &router.Error{
				Kind:    router.KindTimeout,
				Status:  http.StatusGatewayTimeout,
				Message: "request timed out",
				Err:     err,
			}
		}
		return err
	}
}
