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

package cors

import (
	"net/http"
	"slices"
	"strconv"
	"strings"

	"github.com/kingwill101/routed/router"
)

// Option configures the policy.
type Option func(*config)

type config struct {
	allowedOrigins   []string
	allowAllOrigins  bool
	allowedMethods   []string
	allowedHeaders   []string
	exposedHeaders   []string
	allowCredentials bool
	maxAge           int
	allowOriginFunc  func(origin string) bool
}

func defaultConfig() *config {
	return &config{
		allowedMethods: []string{
			http.MethodGet, http.MethodPost, http.MethodPut,
			http.MethodPatch, http.MethodDelete, http.MethodHead, http.MethodOptions,
		},
		allowedHeaders: []string{"Origin", "Content-Type", "Accept", "Authorization"},
		maxAge:         3600,
	}
}

// WithAllowedOrigins lists origins that may make cross-origin requests,
// for example "https://app.example.com". Exact string match.
func WithAllowedOrigins(origins ...string) Option {
	return func(cfg *config) {
		cfg.allowedOrigins = origins
		cfg.allowAllOrigins = false
	}
}

// WithAllowAllOrigins answers every origin with a wildcard. Only for
// public APIs; it cannot be combined with credentials, so when both are
// set the middleware reflects the caller's origin instead of "*".
func WithAllowAllOrigins(allow bool) Option {
	return func(cfg *config) {
		cfg.allowAllOrigins = allow
	}
}

// WithAllowedMethods replaces the advertised method list.
func WithAllowedMethods(methods ...string) Option {
	return func(cfg *config) {
		cfg.allowedMethods = methods
	}
}

// WithAllowedHeaders replaces the request headers accepted in
// preflights.
func WithAllowedHeaders(headers ...string) Option {
	return func(cfg *config) {
		cfg.allowedHeaders = headers
	}
}

// WithExposedHeaders lists response headers cross-origin scripts may
// read beyond the CORS-safelisted set.
func WithExposedHeaders(headers ...string) Option {
	return func(cfg *config) {
		cfg.exposedHeaders = headers
	}
}

// WithAllowCredentials permits cookies and Authorization headers on
// cross-origin requests.
func WithAllowCredentials(allow bool) Option {
	return func(cfg *config) {
		cfg.allowCredentials = allow
	}
}

// WithMaxAge sets how long browsers may cache a preflight result, in
// seconds. Zero drops the header.
func WithMaxAge(seconds int) Option {
	return func(cfg *config) {
		cfg.maxAge = seconds
	}
}

// WithAllowOriginFunc decides origins dynamically, for wildcard
// subdomains or tenant lookups. It overrides the static origin list.
func WithAllowOriginFunc(fn func(origin string) bool) Option {
	return func(cfg *config) {
		cfg.allowOriginFunc = fn
	}
}

// policy is the compiled form used at request time.
type policy struct {
	cfg     *config
	methods string
	headers string
	exposed string
	maxAge  string
}

// New returns middleware implementing the CORS protocol for the
// configured origins. Preflight OPTIONS requests are answered directly
// with 204 and never reach the handler; actual requests pass through
// with the response headers browsers require.
//
// Requests from origins outside the policy are forwarded untouched:
// without Access-Control headers the browser refuses the response on
// its own, and non-browser clients are unaffected either way.
//
//	e.Use(cors.New(
//	    cors.WithAllowedOrigins("https://app.example.com"),
//	    cors.WithAllowCredentials(true),
//	))
func New(opts ...Option) router.MiddlewareFunc {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	p := &policy{
		cfg:     cfg,
		methods: strings.Join(cfg.allowedMethods, ", "),
		headers: strings.Join(cfg.allowedHeaders, ", "),
		exposed: strings.Join(cfg.exposedHeaders, ", "),
		maxAge:  strconv.Itoa(cfg.maxAge),
	}

	return func(c *router.Context, next router.HandlerFunc) error {
		origin := c.Request.Header.Get("Origin")
		if origin == "" || !p.originAllowed(origin) {
			return next(c)
		}

		h := c.Response.Header()
		if cfg.allowAllOrigins && !cfg.allowCredentials {
			h.Set("Access-Control-Allow-Origin", "*")
		} else {
			h.Set("Access-Control-Allow-Origin", origin)
			h.Add("Vary", "Origin")
		}
		if cfg.allowCredentials {
			h.Set("Access-Control-Allow-Credentials", "true")
		}

		if isPreflight(c.Request) {
			h.Set("Access-Control-Allow-Methods", p.methods)
			if p.headers != "" {
				h.Set("Access-Control-Allow-Headers", p.headers)
			}
			if cfg.maxAge > 0 {
				h.Set("Access-Control-Max-Age", p.maxAge)
			}
			h.Add("Vary", "Access-Control-Request-Method")
			h.Add("Vary", "Access-Control-Request-Headers")
			c.Response.Status(http.StatusNoContent)
			return nil
		}

		if p.exposed != "" {
			h.Set("Access-Control-Expose-Headers", p.exposed)
		}
		return next(c)
	}
}

// isPreflight distinguishes CORS preflights from plain OPTIONS
// requests, which still belong to the application.
func isPreflight(req *http.Request) bool {
	return req.Method == http.MethodOptions &&
		req.Header.Get("Access-Control-Request-Method") != ""
}

func (p *policy) originAllowed(origin string) bool {
	if p.cfg.allowAllOrigins {
		return true
	}
	if p.cfg.allowOriginFunc != nil {
		return p.cfg.allowOriginFunc(origin)
	}
	return slices.Contains(p.cfg.allowedOrigins, origin)
}
