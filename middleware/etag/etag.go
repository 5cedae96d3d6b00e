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

package etag

import (
	"crypto/sha1"
	"encoding/hex"
	"net/http"
	"strings"

	"github.com/kingwill101/routed/router"
)

// Option configures tag generation.
type Option func(*config)

type config struct {
	// weak emits W/-prefixed validators.
	weak bool
}

// WithWeak emits weak validators (W/"...") instead of strong ones.
func WithWeak() Option {
	return func(cfg *config) {
		cfg.weak = true
	}
}

// New returns middleware that attaches the ETag body filter to every
// response passing through it.
func New(opts ...Option) router.MiddlewareFunc {
	filter := Filter(opts...)
	return func(c *router.Context, next router.HandlerFunc) error {
		c.Response.AddBodyFilter(filter)
		return next(c)
	}
}

// Filter returns the body filter itself, for attachment to individual
// responses. Tags are computed over non-empty buffered bodies of GET
// responses with status 200; everything else passes through untouched.
func Filter(opts ...Option) router.BodyFilter {
	cfg := &config{}
	for _, opt := range opts {
		opt(cfg)
	}

	return func(c *router.Context, body []byte) []byte {
		if c.Method() != http.MethodGet || c.Response.StatusCode() != http.StatusOK || len(body) == 0 {
			return body
		}

		tag := c.Response.Header().Get("ETag")
		if tag == "" {
			sum := sha1.Sum(body)
			tag = `"` + hex.EncodeToString(sum[:]) + `"`
			if cfg.weak {
				tag = "W/" + tag
			}
			c.Response.Header().Set("ETag", tag)
		}

		if matches(c.GetHeader("If-None-Match"), tag) {
			c.Response.Status(http.StatusNotModified)
			return nil
		}
		return body
	}
}

// matches applies the weak comparison of RFC 9110: W/ prefixes are
// ignored on both sides and * matches any representation.
func matches(header, tag string) bool {
	if header == "" {
		return false
	}
	opaque := strings.TrimPrefix(tag, "W/")
	for _, candidate := range strings.Split(header, ",") {
		candidate = strings.TrimSpace(candidate)
		if candidate == "*" || strings.TrimPrefix(candidate, "W/") == opaque {
			return true
		}
	}
	return false
}
