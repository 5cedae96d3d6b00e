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

package accesslog

import (
	"errors"
	"hash/fnv"
	"log/slog"
	"math"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/kingwill101/routed/router"
)

// Option configures the middleware.
type Option func(*config)

type config struct {
	logger          *slog.Logger
	excludePaths    map[string]bool
	excludePrefixes []string
	slowThreshold   time.Duration
	errorsOnly      bool
	sampleRate      float64
	requestIDFunc   func(*router.Context) string
}

func defaultConfig() *config {
	return &config{
		excludePaths: make(map[string]bool),
		sampleRate:   1.0,
		requestIDFunc: func(c *router.Context) string {
			return c.RequestID()
		},
	}
}

// WithLogger sets the destination logger. Without it the engine's
// logger is used.
func WithLogger(logger *slog.Logger) Option {
	return func(cfg *config) {
		cfg.logger = logger
	}
}

// WithExcludePaths silences exact paths, typically health checks.
func WithExcludePaths(paths ...string) Option {
	return func(cfg *config) {
		for _, path := range paths {
			cfg.excludePaths[path] = true
		}
	}
}

// WithExcludePrefixes silences path subtrees such as /debug.
func WithExcludePrefixes(prefixes ...string) Option {
	return func(cfg *config) {
		cfg.excludePrefixes = append(cfg.excludePrefixes, prefixes...)
	}
}

// WithSlowThreshold marks requests at or above d as slow: they log at
// warn level with slow=true and bypass errors-only mode and sampling.
func WithSlowThreshold(d time.Duration) Option {
	return func(cfg *config) {
		cfg.slowThreshold = d
	}
}

// WithErrorsOnly drops successful requests from the log. Slow requests
// still get through.
func WithErrorsOnly() Option {
	return func(cfg *config) {
		cfg.errorsOnly = true
	}
}

// WithSampleRate keeps the given fraction of successful request lines,
// 0 through 1. The decision hashes the request ID, so retries and
// related log lines of one request land together. Errors and slow
// requests are never sampled away.
func WithSampleRate(rate float64) Option {
	return func(cfg *config) {
		cfg.sampleRate = rate
	}
}

// WithRequestIDFunc changes where the sampling and request_id field
// take their ID from, for example a gateway header. The default is the
// engine-assigned correlation ID.
func WithRequestIDFunc(fn func(*router.Context) string) Option {
	return func(cfg *config) {
		cfg.requestIDFunc = fn
	}
}

// New returns middleware that writes one structured line per request:
// method, path, matched route, status, duration, response size, client
// address, and the correlation ID. Status picks the level — 5xx logs
// at error, 4xx and slow requests at warn, the rest at info.
//
// When the request context carries an OpenTelemetry span, its trace
// and span IDs are included so log lines join up with traces.
//
//	e.Use(accesslog.New(
//	    accesslog.WithExcludePaths("/healthz", "/metrics"),
//	    accesslog.WithSlowThreshold(time.Second),
//	))
func New(opts ...Option) router.MiddlewareFunc {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}

	return func(c *router.Context, next router.HandlerFunc) error {
		path := c.Path()
		if cfg.excluded(path) {
			return next(c)
		}

		start := time.Now()
		err := next(c)
		elapsed := time.Since(start)

		status := resolveStatus(c, err)
		slow := cfg.slowThreshold > 0 && elapsed >= cfg.slowThreshold

		level := slog.LevelInfo
		switch {
		case status >= http.StatusInternalServerError:
			level = slog.LevelError
		case status >= http.StatusBadRequest || slow:
			level = slog.LevelWarn
		}

		id := cfg.requestIDFunc(c)
		if level == slog.LevelInfo {
			if cfg.errorsOnly || !sampleByHash(id, cfg.sampleRate) {
				return err
			}
		}

		logger := cfg.logger
		if logger == nil {
			logger = c.Engine().Logger()
		}

		// In buffered mode the body has not reached the wire yet;
		// Size counts only direct-mode writes.
		bytes := c.Response.Size() + int64(len(c.Response.BodyBytes()))

		args := make([]any, 0, 32)
		args = append(args,
			"method", c.Method(),
			"path", path,
			"route", c.Pattern(),
			"status", int64(status),
			"duration_ms", elapsed.Milliseconds(),
			"bytes_sent", bytes,
			"client_ip", c.ClientIP(),
			"user_agent", c.Request.UserAgent(),
			"host", c.Request.Host,
			"proto", c.Request.Proto,
			"request_id", id,
		)
		if slow {
			args = append(args, "slow", true)
		}
		if err != nil {
			args = append(args, "error", err.Error())
		}
		if sc := trace.SpanContextFromContext(c.Request.Context()); sc.IsValid() {
			args = append(args,
				"trace_id", sc.TraceID().String(),
				"span_id", sc.SpanID().String(),
			)
		}

		logger.Log(c.Request.Context(), level, "http request", args...)
		return err
	}
}

func (cfg *config) excluded(path string) bool {
	if cfg.excludePaths[path] {
		return true
	}
	for _, prefix := range cfg.excludePrefixes {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}

// resolveStatus reports the status the client will see. When the chain
// returned an error the terminal handler has not written yet, so the
// status is derived the way that handler will derive it.
func resolveStatus(c *router.Context, err error) int {
	if err != nil && !c.Response.Written() {
		var re *router.Error
		if errors.As(err, &re) {
			return re.HTTPStatus()
		}
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return http.StatusRequestEntityTooLarge
		}
		return http.StatusInternalServerError
	}
	if s := c.Response.StatusCode(); s != 0 {
		return s
	}
	return http.StatusOK
}

// sampleByHash makes a deterministic keep decision for an ID, so
// repeated lines for the same request family land together. Requests
// without an ID always log.
func sampleByHash(id string, rate float64) bool {
	if id == "" || rate >= 1 {
		return true
	}
	if rate <= 0 {
		return false
	}
	h := fnv.New32a()
	_, _ = h.Write([]byte(id))
	return float64(h.Sum32())/float64(math.MaxUint32) < rate
}
