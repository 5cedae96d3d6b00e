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

// Mount attaches a standalone Router under a path prefix. Mount-level
// middleware wraps every route in the mounted router, between the
// engine's middleware and the router's own.
//
// Example:
//
//	admin := router.NewRouter()
//	admin.GET("/stats", stats)
//
//	e.Mount("/admin", admin).Use(requireAdmin)
type Mount struct {
	engine     *Engine
	prefix     string
	router     *Router
	middleware []middlewareEntry
	exclusions []exclusion
}

// Prefix returns the path prefix the router is mounted under.
func (m *Mount) Prefix() string { return m.prefix }

// Router returns the mounted router.
func (m *Mount) Router() *Router { return m.router }

// Use appends mount-level middleware.
func (m *Mount) Use(fns ...MiddlewareFunc) *Mount {
	m.router.checkMutable()
	for _, fn := range fns {
		if fn == nil {
			continue
		}
		m.middleware = append(m.middleware, middlewareEntry{fn: fn})
	}
	return m
}

// UseNamed appends registry-resolved mount-level middleware by name.
func (m *Mount) UseNamed(names ...string) *Mount {
	m.router.checkMutable()
	for _, name := range names {
		m.middleware = append(m.middleware, middlewareEntry{name: name})
	}
	return m
}

// WithoutMiddleware excludes named middleware from every route in the
// mounted router.
func (m *Mount) WithoutMiddleware(names ...string) *Mount {
	m.router.checkMutable()
	for _, name := range names {
		m.exclusions = append(m.exclusions, exclusion{name: name})
	}
	return m
}

// WithoutMiddlewareFunc excludes inline middleware by function identity
// from every route in the mounted router.
func (m *Mount) WithoutMiddlewareFunc(fns ...MiddlewareFunc) *Mount {
	m.router.checkMutable()
	for _, fn := range fns {
		m.exclusions = append(m.exclusions, exclusion{fn: fn})
	}
	return m
}
