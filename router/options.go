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

package router

import (
	"log/slog"
	"time"

	"github.com/kingwill101/routed/events"
)

// Option configures an Engine at construction time.
type Option func(*Engine)

// ErrorHandler converts a handler or middleware error into a response.
// The default handler maps *Error kinds to their statuses and writes a
// plain-text body.
type ErrorHandler func(c *Context, err error)

// WithRedirectTrailingSlash controls whether a request whose path ends
// with a trailing slash is redirected to the slash-less route when one
// exists: 301 for GET, 307 for every other method.
//
// Default: true. When disabled such requests fall through to 404.
//
// Example:
//
//	e := router.MustNew(router.WithRedirectTrailingSlash(false))
func WithRedirectTrailingSlash(enabled bool) Option {
	return func(e *Engine) {
		e.redirectTrailingSlash = enabled
	}
}

// WithMethodNotAllowed controls 405 handling. When enabled and the path
// matches under at least one other method, the engine responds 405 with
// an Allow header listing the matching methods, sorted.
//
// Default: true. When disabled such requests fall through to 404.
func WithMethodNotAllowed(enabled bool) Option {
	return func(e *Engine) {
		e.methodNotAllowed = enabled
	}
}

// WithDefaultOptions enables automatic OPTIONS responses: when no
// explicit OPTIONS route matches but other methods do, the engine
// answers 204 with an Allow header. Explicit OPTIONS routes always take
// precedence.
//
// Default: false.
func WithDefaultOptions(enabled bool) Option {
	return func(e *Engine) {
		e.defaultOptions = enabled
	}
}

// WithMaxRequestSize caps the request body in bytes. Requests declaring
// a larger Content-Length are rejected with 413 before the chain runs;
// chunked bodies fail with 413 once the cap is crossed while reading.
//
// Default: 0 (unlimited).
//
// Example:
//
//	e := router.MustNew(router.WithMaxRequestSize(8 << 20)) // 8 MiB
func WithMaxRequestSize(n int64) Option {
	return func(e *Engine) {
		e.maxRequestSize = n
	}
}

// WithHub sets the event hub lifecycle events are published to. Supply
// a shared hub to observe several engines together.
//
// Default: a fresh hub, reachable via Engine.Hub.
func WithHub(h *events.Hub) Option {
	return func(e *Engine) {
		if h != nil {
			e.hub = h
		}
	}
}

// WithRegistry sets the named-middleware registry used to resolve
// UseNamed references at build time.
//
// Default: a fresh empty registry, reachable via Engine.Registry.
func WithRegistry(reg *Registry) Option {
	return func(e *Engine) {
		if reg != nil {
			e.registry = reg
		}
	}
}

// WithLogger sets the structured logger for engine diagnostics: build
// problems, recovered panics, shutdown progress.
//
// Default: a no-op logger.
//
// Example:
//
//	e := router.MustNew(router.WithLogger(slog.Default()))
func WithLogger(log *slog.Logger) Option {
	return func(e *Engine) {
		if log != nil {
			e.log = log
		}
	}
}

// WithServerTimeouts configures the timeouts of servers started by
// Serve and ServeTLS. All four must be positive.
//
// Defaults:
//
//	ReadHeaderTimeout: 5s
//	ReadTimeout:       15s
//	WriteTimeout:      30s
//	IdleTimeout:       60s
func WithServerTimeouts(readHeader, read, write, idle time.Duration) Option {
	return func(e *Engine) {
		e.serverTimeouts = &serverTimeouts{
			readHeader: readHeader,
			read:       read,
			write:      write,
			idle:       idle,
		}
	}
}

// WithH2C enables HTTP/2 cleartext upgrades on Serve. Only use behind a
// trusted load balancer or in development; public listeners should
// terminate TLS instead.
func WithH2C(enable bool) Option {
	return func(e *Engine) {
		e.enableH2C = enable
	}
}

// WithShutdownTimeout bounds how long Shutdown waits for in-flight
// requests before cancelling their contexts. It applies when the
// context given to Shutdown has no earlier deadline.
//
// Default: 30s.
func WithShutdownTimeout(d time.Duration) Option {
	return func(e *Engine) {
		e.shutdownTimeout = d
	}
}

// WithErrorHandler replaces the terminal error handler that turns
// handler and middleware errors into responses.
//
// Example:
//
//	e := router.MustNew(router.WithErrorHandler(func(c *router.Context, err error) {
//	    var re *router.Error
//	    if errors.As(err, &re) && re.Kind == router.KindRateLimited {
//	        _ = c.JSON(re.Status, map[string]string{"error": "slow down"})
//	        return
//	    }
//	    _ = c.String(http.StatusInternalServerError, "internal error")
//	}))
func WithErrorHandler(fn ErrorHandler) Option {
	return func(e *Engine) {
		if fn != nil {
			e.errorHandler = fn
		}
	}
}

// serverTimeouts holds HTTP server timeout configuration.
type serverTimeouts struct {
	readHeader time.Duration
	read       time.Duration
	write      time.Duration
	idle       time.Duration
}

// defaultServerTimeouts returns the production timeout defaults.
func defaultServerTimeouts() *serverTimeouts {
	return &serverTimeouts{
		readHeader: 5 * time.Second,
		read:       15 * time.Second,
		write:      30 * time.Second,
		idle:       60 * time.Second,
	}
}

func (t *serverTimeouts) validate() error {
	if t.readHeader <= 0 || t.read <= 0 || t.write <= 0 || t.idle <= 0 {
		return ErrServerTimeoutInvalid
	}
	return nil
}
