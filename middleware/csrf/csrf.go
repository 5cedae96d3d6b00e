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

package csrf

import (
	"crypto/hmac"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net/http"

	"github.com/kingwill101/routed/router"
)

// Defaults used when no option overrides them.
const (
	DefaultCookieName = "csrf_token"
	DefaultHeaderName = "X-CSRF-Token"
	DefaultFieldName  = "_csrf"
)

const attributeKey = "routed.csrf"

// tokenBytes is the entropy per token; hex encoding doubles it on the
// wire.
const tokenBytes = 32

// Option configures the middleware.
type Option func(*config)

type config struct {
	cookieName string
	headerName string
	fieldName  string
	secure     bool
}

func defaultConfig() *config {
	return &config{
		cookieName: DefaultCookieName,
		headerName: DefaultHeaderName,
		fieldName:  DefaultFieldName,
	}
}

// WithCookieName overrides the cookie carrying the token. Empty names
// are ignored.
func WithCookieName(name string) Option {
	return func(cfg *config) {
		if name != "" {
			cfg.cookieName = name
		}
	}
}

// WithHeaderName overrides the request header checked on unsafe
// methods.
func WithHeaderName(name string) Option {
	return func(cfg *config) {
		if name != "" {
			cfg.headerName = name
		}
	}
}

// WithFieldName overrides the form field checked when the header is
// absent.
func WithFieldName(name string) Option {
	return func(cfg *config) {
		if name != "" {
			cfg.fieldName = name
		}
	}
}

// WithSecureCookie marks the token cookie Secure so browsers only send
// it over HTTPS.
func WithSecureCookie(secure bool) Option {
	return func(cfg *config) {
		cfg.secure = secure
	}
}

// New returns middleware implementing the double-submit check. Safe
// methods ensure the token cookie exists; unsafe methods must echo the
// cookie's value in the configured header or form field.
func New(opts ...Option) router.MiddlewareFunc {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}

	return func(c *router.Context, next router.HandlerFunc) error {
		token, err := c.Cookie(cfg.cookieName)
		if err != nil || token == "" {
			if !safeMethod(c.Method()) {
				return router.NewError(router.KindForbidden, "csrf token missing")
			}
			token, err = generateToken()
			if err != nil {
				return router.WrapError(err)
			}
			c.SetCookie(cfg.cookieName, token, 0, "/", "", cfg.secure, false)
		}
		c.Set(attributeKey, token)

		if !safeMethod(c.Method()) {
			echo := c.GetHeader(cfg.headerName)
			if echo == "" {
				echo = c.FormValue(cfg.fieldName)
			}
			if !tokensMatch(token, echo) {
				return router.NewError(router.KindForbidden, "csrf token mismatch")
			}
		}
		return next(c)
	}
}

// Token returns the request's token for embedding in forms or meta
// tags. Empty when the middleware is not installed.
func Token(c *router.Context) string {
	if v, ok := c.Get(attributeKey); ok {
		if token, ok := v.(string); ok {
			return token
		}
	}
	return ""
}

func safeMethod(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions, http.MethodTrace:
		return true
	}
	return false
}

// tokensMatch compares in constant time so the check leaks nothing
// about the expected value.
func tokensMatch(token, echo string) bool {
	if echo == "" {
		return false
	}
	return hmac.Equal([]byte(token), []byte(echo))
}

func generateToken() (string, error) {
	buf := make([]byte, tokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("csrf: generate token: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
