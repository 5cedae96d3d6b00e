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
	"net/http"
	"slices"
	"strings"
)

// matchKind classifies the outcome of a lookup.
type matchKind uint8

const (
	matchNone matchKind = iota
	matchRoute
	matchMethodNotAllowed
	matchRedirect
	matchAutoOptions
)

// matchResult is the matcher's disposition for one (method, path).
type matchResult struct {
	kind   matchKind
	route  *Route
	params Params
	allow  string // Allow header for 405 and auto-OPTIONS
	target string // redirect location (path only)
	status int    // redirect status
}

// matcher holds the frozen per-method route tables. Within a method,
// routes are tried in insertion order; the first compiled pattern to
// match wins, so registration order is the tie-breaker between
// overlapping patterns.
type matcher struct {
	byMethod map[string][]*Route

	redirectTrailingSlash bool
	methodNotAllowed      bool
	defaultOptions        bool
}

func newMatcher(redirectTrailingSlash, methodNotAllowed, defaultOptions bool) *matcher {
	return &matcher{
		byMethod:              make(map[string][]*Route),
		redirectTrailingSlash: redirectTrailingSlash,
		methodNotAllowed:      methodNotAllowed,
		defaultOptions:        defaultOptions,
	}
}

// add appends a compiled route to its method table.
func (m *matcher) add(rt *Route) {
	m.byMethod[rt.method] = append(m.byMethod[rt.method], rt)
}

// match resolves a normalized path to a disposition.
func (m *matcher) match(method, path string) matchResult {
	for _, rt := range m.byMethod[method] {
		if params, ok := rt.compiled.match(path); ok {
			return matchResult{kind: matchRoute, route: rt, params: params}
		}
	}

	allowed := m.allowedMethods(method, path)

	if method == http.MethodOptions && m.defaultOptions && len(allowed) > 0 {
		withOptions := append(allowed, http.MethodOptions)
		slices.Sort(withOptions)
		return matchResult{
			kind:  matchAutoOptions,
			allow: strings.Join(slices.Compact(withOptions), ", "),
		}
	}

	if m.methodNotAllowed && len(allowed) > 0 {
		return matchResult{
			kind:  matchMethodNotAllowed,
			allow: strings.Join(allowed, ", "),
		}
	}

	if m.redirectTrailingSlash && len(path) > 1 && strings.HasSuffix(path, "/") {
		trimmed := path[:len(path)-1]
		for _, rt := range m.byMethod[method] {
			if _, ok := rt.compiled.match(trimmed); ok {
				status := http.StatusTemporaryRedirect
				if method == http.MethodGet {
					status = http.StatusMovedPermanently
				}
				return matchResult{kind: matchRedirect, target: trimmed, status: status}
			}
		}
	}

	return matchResult{kind: matchNone}
}

// allowedMethods returns the sorted methods other than the requested
// one whose tables match the path.
func (m *matcher) allowedMethods(method, path string) []string {
	var allowed []string
	for candidate, routes := range m.byMethod {
		if candidate == method {
			continue
		}
		for _, rt := range routes {
			if _, ok := rt.compiled.match(path); ok {
				allowed = append(allowed, candidate)
				break
			}
		}
	}
	slices.Sort(allowed)
	return allowed
}

// pathEscapesRoot reports whether ".." segments climb above the root.
// Such paths are rejected with 404 rather than rewritten.
func pathEscapesRoot(path string) bool {
	if !strings.Contains(path, "..") {
		return false
	}
	depth := 0
	for seg := range strings.SplitSeq(strings.TrimPrefix(path, "/"), "/") {
		switch seg {
		case "..":
			depth--
			if depth < 0 {
				return true
			}
		case ".", "":
		default:
			depth++
		}
	}
	return false
}
