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
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kingwill101/routed/events"
)

// noopLogger is a singleton no-op logger used when none is configured.
var noopLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

// Engine accepts requests, matches them to routes, runs the composed
// middleware chain, and publishes lifecycle events. It implements
// http.Handler, so it plugs into any net/http server; Serve and
// ServeTLS start a production-configured server around it.
//
// Routes may be registered until the first request (or an explicit
// Build call) freezes the table; registration after that panics.
//
// Example:
//
//	e := router.MustNew(router.WithMethodNotAllowed(true))
//	e.GET("/users/{id:int}", getUser)
//	e.Use(requestLogging)
//
//	if err := e.Serve(":8080"); err != nil {
//	    log.Fatal(err)
//	}
type Engine struct {
	root   *Router
	mounts []*Mount

	middleware []middlewareEntry
	exclusions []exclusion

	registry *Registry
	hub      *events.Hub
	log      *slog.Logger

	redirectTrailingSlash bool
	methodNotAllowed      bool
	defaultOptions        bool
	maxRequestSize        int64
	realip                *realIPConfig
	serverTimeouts        *serverTimeouts
	enableH2C             bool
	shutdownTimeout       time.Duration
	errorHandler          ErrorHandler

	matcher       *matcher
	named         map[string]*Route
	all           []*Route
	notFoundChain HandlerFunc

	frozen    atomic.Bool
	buildOnce sync.Once
	buildErr  error

	srv      *http.Server
	serverMu sync.Mutex

	active      sync.Map // *Context -> context.CancelFunc
	activeCount atomic.Int64

	pool sync.Pool
}

// New creates an engine. Configuration is validated immediately; route
// and pattern problems surface later, from Build.
//
// Example:
//
//	e, err := router.New(
//	    router.WithLogger(slog.Default()),
//	    router.WithMaxRequestSize(8<<20),
//	)
//	if err != nil {
//	    log.Fatalf("engine configuration: %v", err)
//	}
func New(opts ...Option) (*Engine, error) {
	e := &Engine{
		root:                  NewRouter(),
		redirectTrailingSlash: true,
		methodNotAllowed:      true,
		shutdownTimeout:       30 * time.Second,
		log:                   noopLogger,
		named:                 make(map[string]*Route),
	}
	e.root.engine = e
	e.pool.New = func() any { return &Context{} }

	for _, opt := range opts {
		opt(e)
	}

	if e.hub == nil {
		e.hub = events.NewHub(events.WithLogger(e.log))
	}
	if e.registry == nil {
		e.registry = NewRegistry()
	}
	if e.serverTimeouts == nil {
		e.serverTimeouts = defaultServerTimeouts()
	}
	if e.errorHandler == nil {
		e.errorHandler = defaultErrorHandler
	}

	if err := e.validate(); err != nil {
		return nil, fmt.Errorf("router configuration validation failed: %w", err)
	}
	return e, nil
}

// MustNew is New that panics on configuration errors, for use at
// startup.
func MustNew(opts ...Option) *Engine {
	e, err := New(opts...)
	if err != nil {
		panic(fmt.Sprintf("router.MustNew: %v", err))
	}
	return e
}

// validate checks construction-time configuration.
func (e *Engine) validate() error {
	if e.maxRequestSize < 0 {
		return configErrorf("max request size must be >= 0, got %d", e.maxRequestSize)
	}
	if e.shutdownTimeout <= 0 {
		return configErrorf("shutdown timeout must be positive, got %s", e.shutdownTimeout)
	}
	if err := e.serverTimeouts.validate(); err != nil {
		return err
	}
	return nil
}

// Hub returns the engine's event hub.
func (e *Engine) Hub() *events.Hub { return e.hub }

// Registry returns the engine's named-middleware registry.
func (e *Engine) Registry() *Registry { return e.registry }

// Logger returns the engine's logger.
func (e *Engine) Logger() *slog.Logger { return e.log }

// Use appends engine-level middleware, the outermost layer of every
// chain. Engine middleware also runs for requests that match no route,
// so logging and metrics middleware see 404s and redirects.
func (e *Engine) Use(fns ...MiddlewareFunc) *Engine {
	e.root.checkMutable()
	for _, fn := range fns {
		if fn == nil {
			continue
		}
		e.middleware = append(e.middleware, middlewareEntry{fn: fn})
	}
	return e
}

// UseNamed appends engine-level middleware by registry name.
func (e *Engine) UseNamed(names ...string) *Engine {
	e.root.checkMutable()
	for _, name := range names {
		e.middleware = append(e.middleware, middlewareEntry{name: name})
	}
	return e
}

// WithoutMiddleware excludes named middleware from every chain.
func (e *Engine) WithoutMiddleware(names ...string) *Engine {
	e.root.checkMutable()
	for _, name := range names {
		e.exclusions = append(e.exclusions, exclusion{name: name})
	}
	return e
}

// WithoutMiddlewareFunc excludes inline middleware by function identity
// from every chain.
func (e *Engine) WithoutMiddlewareFunc(fns ...MiddlewareFunc) *Engine {
	e.root.checkMutable()
	for _, fn := range fns {
		e.exclusions = append(e.exclusions, exclusion{fn: fn})
	}
	return e
}

// GET registers a GET route on the root router.
func (e *Engine) GET(pattern string, handler HandlerFunc) *Route {
	return e.root.GET(pattern, handler)
}

// POST registers a POST route on the root router.
func (e *Engine) POST(pattern string, handler HandlerFunc) *Route {
	return e.root.POST(pattern, handler)
}

// PUT registers a PUT route on the root router.
func (e *Engine) PUT(pattern string, handler HandlerFunc) *Route {
	return e.root.PUT(pattern, handler)
}

// PATCH registers a PATCH route on the root router.
func (e *Engine) PATCH(pattern string, handler HandlerFunc) *Route {
	return e.root.PATCH(pattern, handler)
}

// DELETE registers a DELETE route on the root router.
func (e *Engine) DELETE(pattern string, handler HandlerFunc) *Route {
	return e.root.DELETE(pattern, handler)
}

// HEAD registers a HEAD route on the root router.
func (e *Engine) HEAD(pattern string, handler HandlerFunc) *Route {
	return e.root.HEAD(pattern, handler)
}

// OPTIONS registers an explicit OPTIONS route on the root router.
func (e *Engine) OPTIONS(pattern string, handler HandlerFunc) *Route {
	return e.root.OPTIONS(pattern, handler)
}

// Any registers the handler for every standard method.
func (e *Engine) Any(pattern string, handler HandlerFunc) []*Route {
	return e.root.Any(pattern, handler)
}

// Handle registers a route for an arbitrary method.
func (e *Engine) Handle(method, pattern string, handler HandlerFunc) *Route {
	return e.root.Handle(method, pattern, handler)
}

// Group creates a route group on the root router.
func (e *Engine) Group(prefix string, middleware ...MiddlewareFunc) *Group {
	return e.root.Group(prefix, middleware...)
}

// Mount attaches a standalone router under a path prefix. The router's
// patterns are compiled with the prefix prepended at build time.
//
// Example:
//
//	users := router.NewRouter()
//	users.GET("/{id:int}", getUser)
//	e.Mount("/users", users).Use(audit)
func (e *Engine) Mount(prefix string, r *Router, middleware ...MiddlewareFunc) *Mount {
	e.root.checkMutable()
	if r == nil {
		panic("router: cannot mount a nil router")
	}
	if r.engine != nil {
		panic(fmt.Sprintf("router: router already attached to an engine (mount prefix %q)", prefix))
	}
	r.engine = e
	m := &Mount{engine: e, prefix: prefix, router: r}
	m.Use(middleware...)
	e.mounts = append(e.mounts, m)
	return m
}

// Router returns the engine's root router.
func (e *Engine) Router() *Router { return e.root }

// Routes returns every route known to the engine in registration order.
// It builds the engine if that has not happened yet.
func (e *Engine) Routes() []*Route {
	if err := e.Build(); err != nil {
		return nil
	}
	out := make([]*Route, len(e.all))
	copy(out, e.all)
	return out
}

// RouteByName returns the named route, building the engine first so
// group and mount prefixes are resolved.
func (e *Engine) RouteByName(name string) *Route {
	if err := e.Build(); err != nil {
		return nil
	}
	return e.named[name]
}

// URL builds a path for the named route.
//
// Example:
//
//	url, err := e.URL("users.show", map[string]string{"id": "42"})
func (e *Engine) URL(name string, values map[string]string, query ...url.Values) (string, error) {
	if err := e.Build(); err != nil {
		return "", err
	}
	rt, ok := e.named[name]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrRouteNotFound, name)
	}
	return rt.URL(values, query...)
}

// Build freezes the route table: groups and mounts flatten into routes,
// named middleware resolves against the registry, patterns compile, and
// uniqueness of (method, pattern) pairs and route names is verified.
// Build runs once; later calls return the first result. ServeHTTP
// builds automatically on the first request.
func (e *Engine) Build() error {
	e.buildOnce.Do(func() {
		e.frozen.Store(true)
		e.buildErr = e.build()
		if e.buildErr != nil {
			e.log.Error("engine build failed", "error", e.buildErr)
		}
	})
	return e.buildErr
}

// build compiles every route and precomputes its middleware chain.
func (e *Engine) build() error {
	e.matcher = newMatcher(e.redirectTrailingSlash, e.methodNotAllowed, e.defaultOptions)

	type source struct {
		mount  *Mount
		router *Router
	}
	sources := make([]source, 0, 1+len(e.mounts))
	sources = append(sources, source{router: e.root})
	for _, m := range e.mounts {
		sources = append(sources, source{mount: m, router: m.router})
	}

	seen := make(map[string]bool)
	for _, src := range sources {
		for _, rt := range src.router.routes {
			fullPattern := rt.pattern
			if src.mount != nil {
				fullPattern = joinPattern(src.mount.prefix, rt.pattern)
			}

			key := rt.method + " " + fullPattern
			if seen[key] {
				return configErrorf("%w: %s", ErrDuplicateRoute, key)
			}
			seen[key] = true

			compiled, err := compilePattern(fullPattern, rt.constraints)
			if err != nil {
				return configErrorf("route %s: %w", key, err)
			}
			rt.compiled = compiled
			rt.fullPattern = fullPattern

			if name := rt.fullName(); name != "" {
				if _, dup := e.named[name]; dup {
					return configErrorf("%w: %q", ErrDuplicateRouteName, name)
				}
				e.named[name] = rt
			}

			chain, err := buildChain(
				e.routeEntries(src.mount, src.router, rt),
				e.routeExclusions(src.mount, src.router, rt),
				e.registry,
				rt.handler,
			)
			if err != nil {
				return fmt.Errorf("route %s: %w", key, err)
			}
			rt.chain = chain

			e.matcher.add(rt)
			e.all = append(e.all, rt)
		}
	}

	notFound, err := buildChain(e.middleware, e.exclusions, e.registry, notFoundTerminal)
	if err != nil {
		return err
	}
	e.notFoundChain = notFound
	return nil
}

// routeEntries collects middleware attachments for one route, outermost
// level first: engine, mount, router, groups outer to inner, route.
func (e *Engine) routeEntries(m *Mount, r *Router, rt *Route) []middlewareEntry {
	var entries []middlewareEntry
	entries = append(entries, e.middleware...)
	if m != nil {
		entries = append(entries, m.middleware...)
	}
	entries = append(entries, r.middleware...)
	if rt.group != nil {
		for _, g := range rt.group.chain() {
			entries = append(entries, g.middleware...)
		}
	}
	entries = append(entries, rt.middleware...)
	return entries
}

// routeExclusions collects exclusions in the same top-down order.
func (e *Engine) routeExclusions(m *Mount, r *Router, rt *Route) []exclusion {
	var ex []exclusion
	ex = append(ex, e.exclusions...)
	if m != nil {
		ex = append(ex, m.exclusions...)
	}
	ex = append(ex, r.exclusions...)
	if rt.group != nil {
		for _, g := range rt.group.chain() {
			ex = append(ex, g.exclusions...)
		}
	}
	ex = append(ex, rt.exclusions...)
	return ex
}
