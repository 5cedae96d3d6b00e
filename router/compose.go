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
	"net/http"
	"reflect"
)

// HandlerFunc is the terminal request handler. A returned error aborts
// the response and is routed to the engine's error handler.
type HandlerFunc func(c *Context) error

// WrapHandler adapts a net/http handler to the engine's handler type,
// for mounting foreign handlers such as promhttp or pprof.
//
// Example:
//
//	r.GET("/metrics", router.WrapHandler(promhttp.Handler()))
func WrapHandler(h http.Handler) HandlerFunc {
	return func(c *Context) error {
		h.ServeHTTP(c.Response, c.Request)
		return nil
	}
}

// MiddlewareFunc wraps a handler. Calling next runs the rest of the
// chain; skipping it short-circuits the request with whatever the
// middleware wrote. Returning an error aborts like a handler error.
//
// Example:
//
//	func timing(c *router.Context, next router.HandlerFunc) error {
//	    start := time.Now()
//	    err := next(c)
//	    c.Logger().Info("handled", "elapsed", time.Since(start))
//	    return err
//	}
type MiddlewareFunc func(c *Context, next HandlerFunc) error

// middlewareEntry is one attached chain element: either an inline
// function or a reference into the named registry. Exactly one of the
// fields is set.
type middlewareEntry struct {
	name string
	fn   MiddlewareFunc
}

// exclusion removes one chain element during composition. Name
// exclusions match named entries; fn exclusions match inline entries
// by function identity.
type exclusion struct {
	name string
	fn   MiddlewareFunc
}

// fnKey returns a comparable identity for a middleware function value.
func fnKey(fn MiddlewareFunc) uintptr {
	return reflect.ValueOf(fn).Pointer()
}

// resolvedEntry is a middlewareEntry after registry resolution.
type resolvedEntry struct {
	name string
	fn   MiddlewareFunc
}

// resolveEntries looks up named entries in the registry. Unknown names
// are configuration errors that fail the build.
func resolveEntries(entries []middlewareEntry, reg *Registry) ([]resolvedEntry, error) {
	out := make([]resolvedEntry, 0, len(entries))
	for _, e := range entries {
		if e.fn != nil {
			out = append(out, resolvedEntry{fn: e.fn})
			continue
		}
		fn, ok := reg.Lookup(e.name)
		if !ok {
			return nil, configErrorf("%w: %q", ErrUnknownMiddleware, e.name)
		}
		out = append(out, resolvedEntry{name: e.name, fn: fn})
	}
	return out, nil
}

// applyExclusions removes chain elements in one top-down pass. Each
// exclusion removes the first remaining entry it matches; exclusions
// that match nothing are ignored.
func applyExclusions(entries []resolvedEntry, exclusions []exclusion) []resolvedEntry {
	if len(exclusions) == 0 {
		return entries
	}
	out := append([]resolvedEntry(nil), entries...)
	for _, ex := range exclusions {
		for i := range out {
			if ex.matches(out[i]) {
				out = append(out[:i], out[i+1:]...)
				break
			}
		}
	}
	return out
}

func (ex exclusion) matches(e resolvedEntry) bool {
	if ex.name != "" {
		return e.name == ex.name
	}
	return e.name == "" && fnKey(e.fn) == fnKey(ex.fn)
}

// dedupeEntries drops repeated attachments of the same middleware,
// keeping the outermost occurrence. Named entries compare by name,
// inline entries by function identity.
func dedupeEntries(entries []resolvedEntry) []resolvedEntry {
	seenName := make(map[string]bool, len(entries))
	seenFn := make(map[uintptr]bool, len(entries))
	out := entries[:0:0]
	for _, e := range entries {
		if e.name != "" {
			if seenName[e.name] {
				continue
			}
			seenName[e.name] = true
		} else {
			key := fnKey(e.fn)
			if seenFn[key] {
				continue
			}
			seenFn[key] = true
		}
		out = append(out, e)
	}
	return out
}

// compose wraps the handler in the entries, outermost first, producing
// a single HandlerFunc.
func compose(entries []resolvedEntry, handler HandlerFunc) HandlerFunc {
	h := handler
	for i := len(entries) - 1; i >= 0; i-- {
		h = wrapEntry(entries[i].fn, h)
	}
	return h
}

func wrapEntry(mw MiddlewareFunc, next HandlerFunc) HandlerFunc {
	return func(c *Context) error {
		return mw(c, next)
	}
}

// buildChain resolves, excludes, dedupes, and composes a full chain for
// one route or the not-found pipeline.
func buildChain(entries []middlewareEntry, exclusions []exclusion, reg *Registry, handler HandlerFunc) (HandlerFunc, error) {
	if handler == nil {
		return nil, fmt.Errorf("%w", ErrNilHandler)
	}
	resolved, err := resolveEntries(entries, reg)
	if err != nil {
		return nil, err
	}
	resolved = applyExclusions(resolved, exclusions)
	resolved = dedupeEntries(resolved)
	return compose(resolved, handler), nil
}
