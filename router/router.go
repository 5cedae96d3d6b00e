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
	"strings"
)

// anyMethods are the methods Any registers a handler for.
var anyMethods = []string{"GET", "HEAD", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}

// Router is a standalone collection of routes with router-level
// middleware. Every Engine owns a root Router; additional routers can
// be built independently and attached under a prefix with Engine.Mount,
// which lets a package export its routes without knowing the engine
// they will serve on.
//
// Example:
//
//	users := router.NewRouter()
//	users.Use(authMiddleware)
//	users.GET("/{id:int}", getUser)
//
//	e := router.MustNew()
//	e.Mount("/users", users)
type Router struct {
	engine     *Engine // set when attached to an engine
	routes     []*Route
	middleware []middlewareEntry
	exclusions []exclusion
}

// NewRouter returns an empty Router.
func NewRouter() *Router {
	return &Router{}
}

// Use appends router-level middleware, wrapping every route registered
// on this router and its groups.
func (r *Router) Use(fns ...MiddlewareFunc) *Router {
	r.checkMutable()
	for _, fn := range fns {
		if fn == nil {
			continue
		}
		r.middleware = append(r.middleware, middlewareEntry{fn: fn})
	}
	return r
}

// UseNamed appends registry-resolved middleware by name. Resolution
// happens at build time against the engine's registry.
func (r *Router) UseNamed(names ...string) *Router {
	r.checkMutable()
	for _, name := range names {
		r.middleware = append(r.middleware, middlewareEntry{name: name})
	}
	return r
}

// WithoutMiddleware excludes named middleware from every route on this
// router.
func (r *Router) WithoutMiddleware(names ...string) *Router {
	r.checkMutable()
	for _, name := range names {
		r.exclusions = append(r.exclusions, exclusion{name: name})
	}
	return r
}

// WithoutMiddlewareFunc excludes inline middleware by function identity
// from every route on this router.
func (r *Router) WithoutMiddlewareFunc(fns ...MiddlewareFunc) *Router {
	r.checkMutable()
	for _, fn := range fns {
		r.exclusions = append(r.exclusions, exclusion{fn: fn})
	}
	return r
}

// Group creates a route group with the given path prefix and optional
// middleware.
func (r *Router) Group(prefix string, middleware ...MiddlewareFunc) *Group {
	r.checkMutable()
	g := &Group{router: r, prefix: prefix}
	g.Use(middleware...)
	return g
}

// GET registers a GET route.
func (r *Router) GET(pattern string, handler HandlerFunc) *Route {
	return r.Handle("GET", pattern, handler)
}

// POST registers a POST route.
func (r *Router) POST(pattern string, handler HandlerFunc) *Route {
	return r.Handle("POST", pattern, handler)
}

// PUT registers a PUT route.
func (r *Router) PUT(pattern string, handler HandlerFunc) *Route {
	return r.Handle("PUT", pattern, handler)
}

// PATCH registers a PATCH route.
func (r *Router) PATCH(pattern string, handler HandlerFunc) *Route {
	return r.Handle("PATCH", pattern, handler)
}

// DELETE registers a DELETE route.
func (r *Router) DELETE(pattern string, handler HandlerFunc) *Route {
	return r.Handle("DELETE", pattern, handler)
}

// HEAD registers a HEAD route.
func (r *Router) HEAD(pattern string, handler HandlerFunc) *Route {
	return r.Handle("HEAD", pattern, handler)
}

// OPTIONS registers an explicit OPTIONS route, which takes precedence
// over the engine's automatic OPTIONS handling.
func (r *Router) OPTIONS(pattern string, handler HandlerFunc) *Route {
	return r.Handle("OPTIONS", pattern, handler)
}

// Any registers the handler for every standard HTTP method.
func (r *Router) Any(pattern string, handler HandlerFunc) []*Route {
	routes := make([]*Route, 0, len(anyMethods))
	for _, m := range anyMethods {
		routes = append(routes, r.Handle(m, pattern, handler))
	}
	return routes
}

// Handle registers a route for an arbitrary upper-case method.
func (r *Router) Handle(method, pattern string, handler HandlerFunc) *Route {
	return r.addRoute(method, pattern, handler)
}

// Routes returns the routes registered on this router, in declaration
// order.
func (r *Router) Routes() []*Route {
	out := make([]*Route, len(r.routes))
	copy(out, r.routes)
	return out
}

// addRoute collects a route declaration. Pattern and constraint errors
// are deferred to Build so that fluent Where calls can complete first;
// nil handlers and malformed methods panic immediately because no later
// call can repair them.
func (r *Router) addRoute(method, pattern string, handler HandlerFunc) *Route {
	r.checkMutable()
	if handler == nil {
		panic(fmt.Sprintf("router: nil handler for %s %s", method, pattern))
	}
	method = strings.ToUpper(strings.TrimSpace(method))
	if method == "" {
		panic(fmt.Sprintf("router: empty method for pattern %s", pattern))
	}

	route := &Route{
		router:  r,
		method:  method,
		pattern: pattern,
		handler: handler,
	}
	r.routes = append(r.routes, route)
	return route
}

// checkMutable panics when the owning engine has already been built.
// Registration must finish before the first request.
func (r *Router) checkMutable() {
	if r.engine != nil && r.engine.frozen.Load() {
		panic("router: cannot modify routes after the engine has started serving")
	}
}
