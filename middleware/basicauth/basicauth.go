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

package basicauth

import (
	"crypto/sha256"
	"crypto/subtle"
	"fmt"
	"net/http"

	"github.com/kingwill101/routed/router"
)

// DefaultRealm is advertised in WWW-Authenticate when no option
// overrides it.
const DefaultRealm = "Restricted"

const attributeKey = "routed.basicauth.user"

// Option configures the middleware.
type Option func(*config)

type config struct {
	users     map[string]string
	validator func(username, password string) bool
	realm     string
	skipPaths map[string]bool
}

func defaultConfig() *config {
	return &config{
		realm:     DefaultRealm,
		skipPaths: make(map[string]bool),
	}
}

// WithUsers sets the allowed username/password pairs.
func WithUsers(users map[string]string) Option {
	return func(cfg *config) {
		cfg.users = users
	}
}

// WithRealm sets the realm shown in the browser's credential prompt.
func WithRealm(realm string) Option {
	return func(cfg *config) {
		if realm != "" {
			cfg.realm = realm
		}
	}
}

// WithValidator replaces the static user map with a custom check, for
// example against a database or LDAP. It takes precedence over
// WithUsers and must be safe for concurrent use.
func WithValidator(validator func(username, password string) bool) Option {
	return func(cfg *config) {
		cfg.validator = validator
	}
}

// WithSkipPaths lists request paths that bypass authentication, such
// as health checks inside an otherwise protected group. Exact match.
func WithSkipPaths(paths ...string) Option {
	return func(cfg *config) {
		for _, path := range paths {
			cfg.skipPaths[path] = true
		}
	}
}

// New returns middleware enforcing HTTP Basic Authentication. Requests
// without valid credentials receive 401 with a WWW-Authenticate
// challenge and never reach the handler.
func New(opts ...Option) router.MiddlewareFunc {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	challenge := fmt.Sprintf("Basic realm=%q, charset=\"UTF-8\"", cfg.realm)

	return func(c *router.Context, next router.HandlerFunc) error {
		if cfg.skipPaths[c.Path()] {
			return next(c)
		}

		username, password, ok := c.Request.BasicAuth()
		if !ok || !cfg.valid(username, password) {
			c.Response.Header().Set("WWW-Authenticate", challenge)
			return c.String(http.StatusUnauthorized, "Unauthorized")
		}

		c.Set(attributeKey, username)
		return next(c)
	}
}

// Username returns the authenticated user for the request, or "" when
// the middleware did not run or rejected the credentials.
func Username(c *router.Context) string {
	if v, ok := c.Get(attributeKey); ok {
		if name, ok := v.(string); ok {
			return name
		}
	}
	return ""
}

func (cfg *config) valid(username, password string) bool {
	if cfg.validator != nil {
		return cfg.validator(username, password)
	}
	want, ok := cfg.users[username]
	if !ok {
		// Burn a comparison anyway so unknown users cost the same as
		// wrong passwords.
		subtle.ConstantTimeCompare(digest(password), digest(""))
		return false
	}
	return subtle.ConstantTimeCompare(digest(password), digest(want)) == 1
}

// digest fixes the input length so ConstantTimeCompare's timing does
// not reveal password length.
func digest(s string) []byte {
	sum := sha256.Sum256([]byte(s))
	return sum[:]
}
