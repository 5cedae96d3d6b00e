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

// Group organizes related routes under a shared path prefix, name
// prefix, and middleware. Groups nest; at build time they collapse into
// flat routes whose chains run the enclosing groups' middleware from
// outermost to innermost.
//
// Example:
//
//	api := r.Group("/api/v1").SetNamePrefix("api.")
//	api.Use(authMiddleware)
//
//	users := api.Group("/users")
//	users.GET("/{id:int}", getUser).SetName("users.show")
//	// Matches /api/v1/users/42, named "api.users.show".
type Group struct {
	router     *Router
	parent     *Group
	prefix     string // accumulated path prefix
	namePrefix string // accumulated name prefix
	middleware []middlewareEntry
	exclusions []exclusion
}

// Group creates a nested group. The child inherits this group's path
// and name prefixes; middleware attached to the parent, even after the
// child is created, still wraps the child's routes.
func (g *Group) Group(prefix string, middleware ...MiddlewareFunc) *Group {
	g.router.checkMutable()
	child := &Group{
		router:     g.router,
		parent:     g,
		prefix:     joinPattern(g.prefix, prefix),
		namePrefix: g.namePrefix,
	}
	child.Use(middleware...)
	return child
}

// Use appends group-level middleware. It runs after the router's
// middleware and before any nested group's, for every route in this
// group and its descendants.
func (g *Group) Use(fns ...MiddlewareFunc) *Group {
	g.router.checkMutable()
	for _, fn := range fns {
		if fn == nil {
			continue
		}
		g.middleware = append(g.middleware, middlewareEntry{fn: fn})
	}
	return g
}

// UseNamed appends registry-resolved middleware by name.
func (g *Group) UseNamed(names ...string) *Group {
	g.router.checkMutable()
	for _, name := range names {
		g.middleware = append(g.middleware, middlewareEntry{name: name})
	}
	return g
}

// WithoutMiddleware excludes named middleware from every route in this
// group and its descendants.
func (g *Group) WithoutMiddleware(names ...string) *Group {
	g.router.checkMutable()
	for _, name := range names {
		g.exclusions = append(g.exclusions, exclusion{name: name})
	}
	return g
}

// WithoutMiddlewareFunc excludes inline middleware by function identity
// from every route in this group and its descendants.
func (g *Group) WithoutMiddlewareFunc(fns ...MiddlewareFunc) *Group {
	g.router.checkMutable()
	for _, fn := range fns {
		g.exclusions = append(g.exclusions, exclusion{fn: fn})
	}
	return g
}

// SetNamePrefix appends to the group's route-name prefix. Prefixes
// accumulate through nested groups.
//
// Example:
//
//	api := r.Group("/api").SetNamePrefix("api.")
//	v1 := api.Group("/v1").SetNamePrefix("v1.")
//	v1.GET("/users", list).SetName("users.list") // named "api.v1.users.list"
func (g *Group) SetNamePrefix(prefix string) *Group {
	g.router.checkMutable()
	g.namePrefix += prefix
	return g
}

// Prefix returns the group's accumulated path prefix.
func (g *Group) Prefix() string { return g.prefix }

// GET registers a GET route under the group prefix.
func (g *Group) GET(pattern string, handler HandlerFunc) *Route {
	return g.Handle("GET", pattern, handler)
}

// POST registers a POST route under the group prefix.
func (g *Group) POST(pattern string, handler HandlerFunc) *Route {
	return g.Handle("POST", pattern, handler)
}

// PUT registers a PUT route under the group prefix.
func (g *Group) PUT(pattern string, handler HandlerFunc) *Route {
	return g.Handle("PUT", pattern, handler)
}

// PATCH registers a PATCH route under the group prefix.
func (g *Group) PATCH(pattern string, handler HandlerFunc) *Route {
	return g.Handle("PATCH", pattern, handler)
}

// DELETE registers a DELETE route under the group prefix.
func (g *Group) DELETE(pattern string, handler HandlerFunc) *Route {
	return g.Handle("DELETE", pattern, handler)
}

// HEAD registers a HEAD route under the group prefix.
func (g *Group) HEAD(pattern string, handler HandlerFunc) *Route {
	return g.Handle("HEAD", pattern, handler)
}

// OPTIONS registers an OPTIONS route under the group prefix.
func (g *Group) OPTIONS(pattern string, handler HandlerFunc) *Route {
	return g.Handle("OPTIONS", pattern, handler)
}

// Any registers the handler for every standard HTTP method.
func (g *Group) Any(pattern string, handler HandlerFunc) []*Route {
	routes := make([]*Route, 0, len(anyMethods))
	for _, m := range anyMethods {
		routes = append(routes, g.Handle(m, pattern, handler))
	}
	return routes
}

// Handle registers a route for an arbitrary method under the group
// prefix.
func (g *Group) Handle(method, pattern string, handler HandlerFunc) *Route {
	route := g.router.addRoute(method, joinPattern(g.prefix, pattern), handler)
	route.group = g
	return route
}

// chain returns the groups enclosing a route, outermost first.
func (g *Group) chain() []*Group {
	var groups []*Group
	for cur := g; cur != nil; cur = cur.parent {
		groups = append(groups, cur)
	}
	for i, j := 0, len(groups)-1; i < j; i, j = i+1, j-1 {
		groups[i], groups[j] = groups[j], groups[i]
	}
	return groups
}

// joinPattern concatenates a prefix and a pattern, treating a bare "/"
// pattern as the prefix itself.
func joinPattern(prefix, pattern string) string {
	if prefix == "" {
		return pattern
	}
	if pattern == "" || pattern == "/" {
		return prefix
	}
	return prefix + pattern
}
