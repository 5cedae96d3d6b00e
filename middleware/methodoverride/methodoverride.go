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

// Package methodoverride lets clients that can only send GET and POST,
// HTML forms above all, express PUT, PATCH, and DELETE requests.
//
// A POST carrying X-HTTP-Method-Override (or the _method form field)
// is rewritten to the named method before the engine routes it. The
// middleware wraps the engine as a plain http.Handler because the
// override must land before route matching:
//
//	e := router.MustNew()
//	e.PUT("/users/{id}", updateUser)
//	http.ListenAndServe(":8080", methodoverride.New()(e))
//
// Only POST requests are rewritten, and only to the allowed method
// set; an override naming anything else is ignored. Pair form-field
// overrides with CSRF protection: the rewritten request is as unsafe
// as the method it claims.
package methodoverride

import (
	"mime"
	"net/http"
	"slices"
	"strings"
)

// Default lookup locations and the methods a POST may turn into.
const (
	DefaultHeader    = "X-HTTP-Method-Override"
	DefaultAltHeader = "X-HTTP-Method"
	DefaultFormField = "_method"
)

// Option configures the middleware.
type Option func(*config)

type config struct {
	headers   []string
	formField string
	allowed   []string
}

func defaultConfig() *config {
	return &config{
		headers:   []string{DefaultHeader, DefaultAltHeader},
		formField: DefaultFormField,
		allowed:   []string{http.MethodPut, http.MethodPatch, http.MethodDelete},
	}
}

// WithHeaders replaces the override headers, checked in order.
func WithHeaders(headers ...string) Option {
	return func(cfg *config) {
		cfg.headers = headers
	}
}

// WithFormField replaces the form field consulted when no header is
// set. An empty name disables form lookup entirely.
func WithFormField(name string) Option {
	return func(cfg *config) {
		cfg.formField = name
	}
}

// WithAllowedMethods replaces the set of methods a POST may become.
func WithAllowedMethods(methods ...string) Option {
	return func(cfg *config) {
		cfg.allowed = make([]string, len(methods))
		for i, m := range methods {
			cfg.allowed[i] = strings.ToUpper(m)
		}
	}
}

// New returns an http.Handler wrapper applying the override. The
// original method is preserved in the X-Original-Method header so
// handlers and logs can tell a rewritten request from a native one.
func New(opts ...Option) func(http.Handler) http.Handler {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			if req.Method == http.MethodPost {
				if m := cfg.override(req); m != "" {
					req.Header.Set("X-Original-Method", req.Method)
					req.Method = m
				}
			}
			next.ServeHTTP(w, req)
		})
	}
}

func (cfg *config) override(req *http.Request) string {
	for _, header := range cfg.headers {
		if m := strings.ToUpper(strings.TrimSpace(req.Header.Get(header))); m != "" {
			if slices.Contains(cfg.allowed, m) {
				return m
			}
			return ""
		}
	}
	if cfg.formField == "" || !isFormEncoded(req) {
		return ""
	}
	// ParseForm consumes the urlencoded body into req.PostForm, where
	// Context.FormValue and binding find it later.
	if err := req.ParseForm(); err != nil {
		return ""
	}
	m := strings.ToUpper(strings.TrimSpace(req.PostForm.Get(cfg.formField)))
	if slices.Contains(cfg.allowed, m) {
		return m
	}
	return ""
}

func isFormEncoded(req *http.Request) bool {
	ct, _, err := mime.ParseMediaType(req.Header.Get("Content-Type"))
	return err == nil && ct == "application/x-www-form-urlencoded"
}
