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

package requestid

import (
	crand "crypto/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"

	"github.com/kingwill101/routed/router"
)

// Option configures the middleware.
type Option func(*config)

type config struct {
	header        string
	generator     func() string
	allowClientID bool
}

func defaultConfig() *config {
	return &config{
		header:        router.HeaderXRequestID,
		generator:     func() string { return uuid.Must(uuid.NewV7()).String() },
		allowClientID: true,
	}
}

// WithHeader moves the correlation ID to a different header. The
// engine's default X-Request-Id echo is removed so responses carry the
// ID exactly once.
func WithHeader(name string) Option {
	return func(cfg *config) {
		cfg.header = name
	}
}

// WithGenerator replaces the ID generator. The function must be safe
// for concurrent use.
func WithGenerator(fn func() string) Option {
	return func(cfg *config) {
		cfg.generator = fn
	}
}

// WithULID switches generation to monotonic ULIDs. Unlike UUIDs they
// sort lexically by creation time, which keeps log search ranges tight.
func WithULID() Option {
	var mu sync.Mutex
	entropy := ulid.Monotonic(crand.Reader, 0)
	return func(cfg *config) {
		cfg.generator = func() string {
			mu.Lock()
			defer mu.Unlock()
			return ulid.MustNew(ulid.Timestamp(time.Now()), entropy).String()
		}
	}
}

// WithAllowClientID controls whether an inbound header value is
// honored. Pass false on public edges where clients must not choose
// their own IDs.
func WithAllowClientID(allow bool) Option {
	return func(cfg *config) {
		cfg.allowClientID = allow
	}
}

// New returns middleware that assigns each request a correlation ID,
// exposes it through Context.RequestID, and echoes it in the response.
//
// The engine already does this with v4 UUIDs on X-Request-Id; this
// middleware is for deployments that need more than the default:
// time-ordered IDs, a gateway-specific header, or refusing IDs minted
// by clients.
//
//	e.Use(requestid.New(
//	    requestid.WithULID(),
//	    requestid.WithAllowClientID(false),
//	))
func New(opts ...Option) router.MiddlewareFunc {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}

	return func(c *router.Context, next router.HandlerFunc) error {
		var id string
		if cfg.allowClientID {
			id = c.Request.Header.Get(cfg.header)
		}
		if id == "" {
			id = cfg.generator()
		}

		c.SetRequestID(id)
		if cfg.header != router.HeaderXRequestID {
			c.Response.Header().Del(router.HeaderXRequestID)
		}
		c.Response.Header().Set(cfg.header, id)
		return next(c)
	}
}
