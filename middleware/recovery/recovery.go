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

package recovery

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"runtime"

	"github.com/kingwill101/routed/events"
	"github.com/kingwill101/routed/router"
)

// DefaultStackSize caps the captured stack trace.
const DefaultStackSize = 4 << 10

var noopLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

// Option configures the middleware.
type Option func(*config)

type config struct {
	logger     *slog.Logger
	handler    func(c *router.Context, v any)
	stackTrace bool
	stackSize  int
}

func defaultConfig() *config {
	return &config{
		stackTrace: true,
		stackSize:  DefaultStackSize,
	}
}

// WithLogger routes panic logs to a specific logger instead of the
// request's own.
func WithLogger(logger *slog.Logger) Option {
	return func(cfg *config) {
		cfg.logger = logger
	}
}

// WithoutLogging disables panic logging. Useful in tests that panic on
// purpose.
func WithoutLogging() Option {
	return func(cfg *config) {
		cfg.logger = noopLogger
	}
}

// WithHandler writes the response for a recovered panic. The default
// answers a plain-text 500. Any partial output the handler buffered
// before panicking is discarded first.
func WithHandler(handler func(c *router.Context, v any)) Option {
	return func(cfg *config) {
		cfg.handler = handler
	}
}

// WithStackTrace toggles stack capture. Disabled, the log line and the
// RoutingError event carry only the panic value.
func WithStackTrace(enabled bool) Option {
	return func(cfg *config) {
		cfg.stackTrace = enabled
	}
}

// WithStackSize bounds the captured stack in bytes.
func WithStackSize(size int) Option {
	return func(cfg *config) {
		if size > 0 {
			cfg.stackSize = size
		}
	}
}

// New returns middleware that recovers panics from everything below it
// in the chain. http.ErrAbortHandler is re-raised untouched; net/http
// uses it to tear the connection down without a response.
func New(opts ...Option) router.MiddlewareFunc {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}

	return func(c *router.Context, next router.HandlerFunc) (err error) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if rec == http.ErrAbortHandler { //nolint:errorlint // sentinel comparison, as in net/http
				panic(rec)
			}

			var stack []byte
			if cfg.stackTrace {
				stack = make([]byte, cfg.stackSize)
				stack = stack[:runtime.Stack(stack, false)]
			}

			log := cfg.logger
			if log == nil {
				log = c.Logger()
			}
			attrs := []any{"error", rec}
			if stack != nil {
				attrs = append(attrs, "stack", string(stack))
			}
			log.Error("handler panicked", attrs...)

			c.Hub().Emit(events.RoutingError{
				Base:   events.NewBase(),
				Method: c.Method(),
				Path:   c.Path(),
				Err:    fmt.Errorf("panic: %v", rec),
				Stack:  stack,
			})

			c.Response.Truncate()
			if cfg.handler != nil {
				cfg.handler(c, rec)
				err = nil
				return
			}
			err = c.String(http.StatusInternalServerError, "Internal Server Error")
		}()

		return next(c)
	}
}
