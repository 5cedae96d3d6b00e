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
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/kingwill101/routed/cache"
	"github.com/kingwill101/routed/config"
	"github.com/kingwill101/routed/events"
	"github.com/kingwill101/routed/metrics"
	"github.com/kingwill101/routed/ratelimit"
	"github.com/kingwill101/routed/router"
	"github.com/kingwill101/routed/sessions"
)

const (
	// DefaultServiceName is used when no service name is configured.
	DefaultServiceName = "routed-app"

	// DefaultVersion is used when no version is configured.
	DefaultVersion = "1.0.0"

	// DefaultEnvironment is used when no environment is configured.
	DefaultEnvironment = "development"

	// EnvironmentDevelopment enables the full startup banner with the
	// route table and colored output.
	EnvironmentDevelopment = "development"

	// EnvironmentProduction renders a plain banner without the route
	// table.
	EnvironmentProduction = "production"
)

const (
	// DefaultReadTimeout bounds reading the full request including body.
	DefaultReadTimeout = 10 * time.Second

	// DefaultWriteTimeout bounds writing the response.
	DefaultWriteTimeout = 10 * time.Second

	// DefaultIdleTimeout bounds how long keep-alive connections stay
	// open waiting for the next request.
	DefaultIdleTimeout = 60 * time.Second

	// DefaultReadHeaderTimeout bounds reading the request headers.
	DefaultReadHeaderTimeout = 2 * time.Second

	// DefaultMaxHeaderBytes caps the size of request headers.
	DefaultMaxHeaderBytes = 1 << 20 // 1 MB

	// DefaultShutdownTimeout bounds graceful shutdown.
	DefaultShutdownTimeout = 30 * time.Second

	// DefaultMetricsPath serves the Prometheus exposition endpoint.
	DefaultMetricsPath = "/metrics"
)

// serverSettings holds the HTTP server timeouts and limits applied to
// the server built by Start.
type serverSettings struct {
	readTimeout       time.Duration
	writeTimeout      time.Duration
	idleTimeout       time.Duration
	readHeaderTimeout time.Duration
	maxHeaderBytes    int
	shutdownTimeout   time.Duration
}

func defaultServerSettings() serverSettings {
	return serverSettings{
		readTimeout:       DefaultReadTimeout,
		writeTimeout:      DefaultWriteTimeout,
		idleTimeout:       DefaultIdleTimeout,
		readHeaderTimeout: DefaultReadHeaderTimeout,
		maxHeaderBytes:    DefaultMaxHeaderBytes,
		shutdownTimeout:   DefaultShutdownTimeout,
	}
}

// validate rejects timeout combinations that would produce a server
// that cannot serve requests.
func (s *serverSettings) validate() error {
	if s.readTimeout <= 0 {
		return fmt.Errorf("read timeout must be positive, got %v", s.readTimeout)
	}
	if s.writeTimeout <= 0 {
		return fmt.Errorf("write timeout must be positive, got %v", s.writeTimeout)
	}
	if s.idleTimeout <= 0 {
		return fmt.Errorf("idle timeout must be positive, got %v", s.idleTimeout)
	}
	if s.readHeaderTimeout <= 0 {
		return fmt.Errorf("read header timeout must be positive, got %v", s.readHeaderTimeout)
	}
	if s.readTimeout > s.writeTimeout {
		return fmt.Errorf("read timeout (%v) should not exceed write timeout (%v)", s.readTimeout, s.writeTimeout)
	}
	if s.shutdownTimeout < time.Second {
		return fmt.Errorf("shutdown timeout must be at least 1s, got %v", s.shutdownTimeout)
	}
	if s.maxHeaderBytes < 1024 {
		return fmt.Errorf("max header bytes must be at least 1024, got %d", s.maxHeaderBytes)
	}
	return nil
}

// metricsSettings controls the optional Prometheus bridge.
type metricsSettings struct {
	enabled  bool
	registry *prometheus.Registry
	path     string
}

// settings is the application configuration assembled from options.
type settings struct {
	serviceName string
	version     string
	environment string
	logger      *slog.Logger
	conf        *config.Config
	engineOpts  []router.Option
	server      serverSettings
	metrics     metricsSettings
	redis       redis.UniversalClient
}

func defaultSettings() settings {
	return settings{
		serviceName: DefaultServiceName,
		version:     DefaultVersion,
		environment: DefaultEnvironment,
		server:      defaultServerSettings(),
		metrics:     metricsSettings{path: DefaultMetricsPath},
	}
}

func (s *settings) validate() error {
	if s.serviceName == "" {
		return fmt.Errorf("service name cannot be empty")
	}
	if s.version == "" {
		return fmt.Errorf("service version cannot be empty")
	}
	switch s.environment {
	case EnvironmentDevelopment, EnvironmentProduction:
	default:
		return fmt.Errorf("environment must be %q or %q, got %q",
			EnvironmentDevelopment, EnvironmentProduction, s.environment)
	}
	if s.metrics.enabled && !strings.HasPrefix(s.metrics.path, "/") {
		return fmt.Errorf("metrics path must start with /, got %q", s.metrics.path)
	}
	if err := s.server.validate(); err != nil {
		return fmt.Errorf("invalid server config: %w", err)
	}
	return nil
}

// features records which optional subsystems were wired, for the
// startup banner.
type features struct {
	metricsPath string
	rateLimit   string
	sessions    string
}

// App bundles an engine with configuration-driven middleware, lifecycle
// hooks, and a managed HTTP server. Construct one with [New], register
// routes through [App.Router], then call [App.Start].
type App struct {
	engine   *router.Engine
	hub      *events.Hub
	log      *slog.Logger
	settings settings
	hooks    Hooks
	features features

	sessions *sessions.Manager
	repo     cache.Repository
	limiter  *ratelimit.Service
	metrics  *metrics.Metrics

	redis     redis.UniversalClient
	ownsRedis bool

	boundAddr atomic.Value // string, set once the listener is bound
}

// New builds an application from the given options. When a [config.Config]
// is supplied via [WithConfig], the routing, security, rate_limit, and
// session sections drive engine options and middleware; everything else
// falls back to defaults. Engine options passed through
// [WithEngineOptions] are applied last and win over configuration.
func New(opts ...Option) (*App, error) {
	s := defaultSettings()
	for _, opt := range opts {
		opt(&s)
	}
	if err := s.validate(); err != nil {
		return nil, err
	}

	log := s.logger
	if log == nil {
		log = slog.Default()
	}

	a := &App{
		hub:      events.NewHub(),
		log:      log,
		settings: s,
	}
	if err := a.wire(); err != nil {
		return nil, err
	}
	return a, nil
}

// MustNew is like [New] but panics on error. Intended for main
// functions where a bad configuration should stop the process.
func MustNew(opts ...Option) *App {
	a, err := New(opts...)
	if err != nil {
		panic(fmt.Sprintf("routed: %v", err))
	}
	return a
}

// Router returns the underlying engine for route registration.
func (a *App) Router() *router.Engine { return a.engine }

// Hub returns the event hub shared by the engine and the wired
// subsystems.
func (a *App) Hub() *events.Hub { return a.hub }

// Logger returns the application logger.
func (a *App) Logger() *slog.Logger { return a.log }

// Sessions returns the session manager, or nil when no session section
// was configured.
func (a *App) Sessions() *sessions.Manager { return a.sessions }

// Cache returns the repository backing the rate limiter, or nil when
// rate limiting is not configured.
func (a *App) Cache() cache.Repository { return a.repo }

// RateLimiter returns the rate limit service, or nil when rate
// limiting is not configured.
func (a *App) RateLimiter() *ratelimit.Service { return a.limiter }

// Metrics returns the Prometheus bridge, or nil when metrics are not
// enabled.
func (a *App) Metrics() *metrics.Metrics { return a.metrics }

// ServiceName returns the configured service name.
func (a *App) ServiceName() string { return a.settings.serviceName }

// Version returns the configured service version.
func (a *App) Version() string { return a.settings.version }

// Environment returns the configured environment.
func (a *App) Environment() string { return a.settings.environment }

// Addr returns the address the server is listening on, or the empty
// string before Start has bound its listener. Useful with ":0".
func (a *App) Addr() string {
	if v := a.boundAddr.Load(); v != nil {
		return v.(string)
	}
	return ""
}

// closeServices releases resources owned by the app: the metrics
// bridge subscriptions and any Redis client the app itself created.
func (a *App) closeServices() {
	if a.metrics != nil {
		a.metrics.Close()
	}
	if a.ownsRedis && a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.log.Warn("closing redis client", "error", err)
		}
	}
}
