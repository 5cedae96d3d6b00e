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

package routed

import (
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/kingwill101/routed/config"
	"github.com/kingwill101/routed/router"
)

// Option configures the application.
type Option func(*settings)

// WithServiceName sets the service name shown in the startup banner.
func WithServiceName(name string) Option {
	return func(s *settings) {
		s.serviceName = name
	}
}

// WithServiceVersion sets the service version shown in the startup
// banner.
func WithServiceVersion(version string) Option {
	return func(s *settings) {
		s.version = version
	}
}

// WithEnvironment sets the runtime environment. Must be
// [EnvironmentDevelopment] or [EnvironmentProduction].
func WithEnvironment(env string) Option {
	return func(s *settings) {
		s.environment = env
	}
}

// WithLogger sets the application logger. It is also handed to the
// engine unless [WithEngineOptions] overrides it.
func WithLogger(log *slog.Logger) Option {
	return func(s *settings) {
		s.logger = log
	}
}

// WithConfig supplies a loaded configuration. The routing, security,
// rate_limit, and session sections are resolved into engine options and
// middleware.
func WithConfig(c *config.Config) Option {
	return func(s *settings) {
		s.conf = c
	}
}

// WithEngineOptions appends raw engine options. They are applied after
// the options derived from configuration, so they win on conflict.
func WithEngineOptions(opts ...router.Option) Option {
	return func(s *settings) {
		s.engineOpts = append(s.engineOpts, opts...)
	}
}

// WithMetrics enables the Prometheus bridge and mounts the exposition
// endpoint at [DefaultMetricsPath]. A nil registry allocates a private
// one; pass your own to share it with other collectors.
func WithMetrics(reg *prometheus.Registry) Option {
	return func(s *settings) {
		s.metrics.enabled = true
		s.metrics.registry = reg
	}
}

// WithMetricsPath overrides the exposition endpoint path. Implies
// nothing on its own; combine with [WithMetrics].
func WithMetricsPath(path string) Option {
	return func(s *settings) {
		s.metrics.path = path
	}
}

// WithRedisClient injects a Redis client for the rate limit store
// instead of letting the app dial one from the rate_limit.store
// address. The caller keeps ownership and closes it.
func WithRedisClient(client redis.UniversalClient) Option {
	return func(s *settings) {
		s.redis = client
	}
}

// WithServerConfig customizes the HTTP server timeouts and limits used
// by [App.Start].
//
// Example:
//
//	app, err := routed.New(
//	    routed.WithServerConfig(
//	        routed.WithReadTimeout(5*time.Second),
//	        routed.WithShutdownTimeout(10*time.Second),
//	    ),
//	)
func WithServerConfig(opts ...ServerOption) Option {
	return func(s *settings) {
		for _, opt := range opts {
			opt(&s.server)
		}
	}
}

// ServerOption configures the HTTP server built by [App.Start].
type ServerOption func(*serverSettings)

// WithReadTimeout sets the maximum duration for reading the entire
// request, including the body.
func WithReadTimeout(d time.Duration) ServerOption {
	return func(s *serverSettings) {
		s.readTimeout = d
	}
}

// WithWriteTimeout sets the maximum duration before timing out writes
// of the response.
func WithWriteTimeout(d time.Duration) ServerOption {
	return func(s *serverSettings) {
		s.writeTimeout = d
	}
}

// WithIdleTimeout sets the maximum time to wait for the next request
// on a keep-alive connection.
func WithIdleTimeout(d time.Duration) ServerOption {
	return func(s *serverSettings) {
		s.idleTimeout = d
	}
}

// WithReadHeaderTimeout sets the maximum duration for reading request
// headers.
func WithReadHeaderTimeout(d time.Duration) ServerOption {
	return func(s *serverSettings) {
		s.readHeaderTimeout = d
	}
}

// WithMaxHeaderBytes caps the size of request headers.
func WithMaxHeaderBytes(n int) ServerOption {
	return func(s *serverSettings) {
		s.maxHeaderBytes = n
	}
}

// WithShutdownTimeout bounds graceful shutdown: in-flight requests and
// OnShutdown hooks get this long before the server is forced closed.
func WithShutdownTimeout(d time.Duration) ServerOption {
	return func(s *serverSettings) {
		s.shutdownTimeout = d
	}
}
