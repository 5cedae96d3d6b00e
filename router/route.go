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
	"net/url"
	"regexp"
	"strings"
)

// Route is one registered route: a method, a pattern, a handler, and
// the route-level middleware configuration. Routes are collected when
// declared and compiled during Build, so the fluent methods may be
// called in any order up to the first request.
//
// Example:
//
//	r.GET("/users/{id:int}", getUser).
//	    SetName("users.show").
//	    Use(audit).
//	    WithoutMiddleware("compress")
type Route struct {
	router      *Router
	group       *Group // innermost enclosing group, nil at router level
	method      string
	pattern     string
	handler     HandlerFunc
	name        string
	constraints map[string]string
	middleware  []middlewareEntry
	exclusions  []exclusion

	// Populated by Build.
	compiled    *compiledPattern
	chain       HandlerFunc
	fullPattern string
}

// Method returns the HTTP method this route serves.
func (r *Route) Method() string { return r.method }

// Pattern returns the registered path pattern.
func (r *Route) Pattern() string { return r.pattern }

// FullPattern returns the pattern with the mount prefix applied. Before
// the engine is built it equals Pattern.
func (r *Route) FullPattern() string {
	if r.fullPattern != "" {
		return r.fullPattern
	}
	return r.pattern
}

// Name returns the route name, or the empty string for unnamed routes.
func (r *Route) Name() string { return r.name }

// SetName assigns a name for reverse routing. Names are prefixed by
// the enclosing group's name prefix, if any, and must be unique across
// the engine; duplicates surface as a build error.
//
// Example:
//
//	r.GET("/users/{id:int}", getUser).SetName("users.show")
//	url, _ := engine.Route("users.show", map[string]string{"id": "42"})
func (r *Route) SetName(name string) *Route {
	r.router.checkMutable()
	r.name = name
	return r
}

// Where narrows an untyped parameter with a regular expression. The
// expression is compiled at build time and matched against the whole
// segment. Constraints on typed parameters or names that do not appear
// in the pattern are build errors.
//
// Example:
//
//	r.GET("/files/{name}", getFile).Where("name", `[a-z0-9._-]+`)
func (r *Route) Where(param, pattern string) *Route {
	r.router.checkMutable()
	if r.constraints == nil {
		r.constraints = make(map[string]string)
	}
	r.constraints[param] = pattern
	return r
}

// WhereIn narrows an untyped parameter to a fixed set of values.
//
// Example:
//
//	r.GET("/status/{state}", byState).WhereIn("state", "active", "archived")
func (r *Route) WhereIn(param string, values ...string) *Route {
	quoted := make([]string, len(values))
	for i, v := range values {
		quoted[i] = regexp.QuoteMeta(v)
	}
	return r.Where(param, "(?:"+strings.Join(quoted, "|")+")")
}

// WhereInt narrows an untyped parameter to decimal integers. Unlike a
// {name:int} placeholder the captured value stays a string.
func (r *Route) WhereInt(param string) *Route {
	return r.Where(param, patternInt)
}

// WhereFloat narrows an untyped parameter to decimal numbers.
func (r *Route) WhereFloat(param string) *Route {
	return r.Where(param, patternDouble)
}

// WhereUUID narrows an untyped parameter to canonical UUID form.
func (r *Route) WhereUUID(param string) *Route {
	return r.Where(param, patternUUID)
}

// Use appends route-level middleware, which runs innermost: after the
// engine, mount, router, and group layers, immediately around the
// handler.
func (r *Route) Use(fns ...MiddlewareFunc) *Route {
	r.router.checkMutable()
	for _, fn := range fns {
		r.middleware = append(r.middleware, middlewareEntry{fn: fn})
	}
	return r
}

// UseNamed appends registry-resolved middleware by name. Unknown names
// surface as build errors.
func (r *Route) UseNamed(names ...string) *Route {
	r.router.checkMutable()
	for _, name := range names {
		r.middleware = append(r.middleware, middlewareEntry{name: name})
	}
	return r
}

// WithoutMiddleware excludes named middleware from this route's chain,
// wherever the name was attached. Each exclusion removes the first
// matching occurrence.
func (r *Route) WithoutMiddleware(names ...string) *Route {
	r.router.checkMutable()
	for _, name := range names {
		r.exclusions = append(r.exclusions, exclusion{name: name})
	}
	return r
}

// WithoutMiddlewareFunc excludes middleware attached as a function
// value, matched by function identity.
func (r *Route) WithoutMiddlewareFunc(fns ...MiddlewareFunc) *Route {
	r.router.checkMutable()
	for _, fn := range fns {
		r.exclusions = append(r.exclusions, exclusion{fn: fn})
	}
	return r
}

// URL builds a concrete path for this route from parameter values. An
// optional url.Values appends a query string. Routes must be compiled
// (the engine built) before URLs can be generated.
//
// Example:
//
//	path, err := route.URL(map[string]string{"id": "42"})
func (r *Route) URL(values map[string]string, query ...url.Values) (string, error) {
	if r.compiled == nil {
		cp, err := compilePattern(r.pattern, r.constraints)
		if err != nil {
			return "", err
		}
		r.compiled = cp
	}
	path, err := r.compiled.url(values)
	if err != nil {
		return "", fmt.Errorf("route %s %s: %w", r.method, r.pattern, err)
	}
	if len(query) > 0 && len(query[0]) > 0 {
		path += "?" + query[0].Encode()
	}
	return path, nil
}

// fullName returns the route name with the enclosing group prefixes
// applied, or the empty string for unnamed routes.
func (r *Route) fullName() string {
	if r.name == "" {
		return ""
	}
	if r.group != nil {
		return r.group.namePrefix + r.name
	}
	return r.name
}
