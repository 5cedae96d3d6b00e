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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// tag returns middleware that records its label around the rest of the
// chain, for asserting execution order.
func tag(log *[]string, label string) MiddlewareFunc {
	return func(c *Context, next HandlerFunc) error {
		*log = append(*log, label+":in")
		err := next(c)
		*log = append(*log, label+":out")
		return err
	}
}

// TestMiddlewareOrderAcrossLevels pins the engine, router, group, and
// route layering, outermost first.
func TestMiddlewareOrderAcrossLevels(t *testing.T) {
	t.Parallel()

	var log []string

	e := MustNew()
	e.Use(tag(&log, "engine"))
	e.Router().Use(tag(&log, "router"))

	outer := e.Group("/api", tag(&log, "outer"))
	inner := outer.Group("/v1", tag(&log, "inner"))
	inner.GET("/thing", func(c *Context) error {
		log = append(log, "handler")
		return nil
	}).Use(tag(&log, "route"))

	perform(e, http.MethodGet, "/api/v1/thing")

	assert.Equal(t, []string{
		"engine:in", "router:in", "outer:in", "inner:in", "route:in",
		"handler",
		"route:out", "inner:out", "outer:out", "router:out", "engine:out",
	}, log)
}

// TestMiddlewareMountLayer places mount middleware between engine and
// router layers.
func TestMiddlewareMountLayer(t *testing.T) {
	t.Parallel()

	var log []string

	sub := NewRouter()
	sub.Use(tag(&log, "router"))
	sub.GET("/x", func(c *Context) error {
		log = append(log, "handler")
		return nil
	})

	e := MustNew()
	e.Use(tag(&log, "engine"))
	e.Mount("/sub", sub, tag(&log, "mount"))

	perform(e, http.MethodGet, "/sub/x")

	assert.Equal(t, []string{
		"engine:in", "mount:in", "router:in",
		"handler",
		"router:out", "mount:out", "engine:out",
	}, log)
}

// TestMiddlewareShortCircuit verifies that not calling next stops the
// chain and the response stands.
func TestMiddlewareShortCircuit(t *testing.T) {
	t.Parallel()

	handlerRan := false

	e := MustNew()
	e.Use(func(c *Context, next HandlerFunc) error {
		return c.String(http.StatusTeapot, "blocked")
	})
	e.GET("/x", func(c *Context) error {
		handlerRan = true
		return nil
	})

	w := perform(e, http.MethodGet, "/x")
	assert.Equal(t, http.StatusTeapot, w.Code)
	assert.Equal(t, "blocked", w.Body.String())
	assert.False(t, handlerRan, "handler must not run after a short-circuit")
}

// TestNamedMiddlewareResolution resolves UseNamed through the registry
// at build time.
func TestNamedMiddlewareResolution(t *testing.T) {
	t.Parallel()

	var log []string

	reg := NewRegistry()
	reg.MustRegister("audit", tag(&log, "audit"))

	e := MustNew(WithRegistry(reg))
	e.UseNamed("audit")
	e.GET("/x", func(c *Context) error {
		log = append(log, "handler")
		return nil
	})

	perform(e, http.MethodGet, "/x")
	assert.Equal(t, []string{"audit:in", "handler", "audit:out"}, log)
}

// TestUnknownNamedMiddlewareFailsBuild surfaces unresolvable names as
// configuration errors.
func TestUnknownNamedMiddlewareFailsBuild(t *testing.T) {
	t.Parallel()

	e := MustNew()
	e.UseNamed("missing")
	e.GET("/x", okHandler)

	err := e.Build()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnknownMiddleware)
	assert.Equal(t, `configuration: router: unknown middleware: "missing"`, err.Error())
}

// TestExclusionRemovesNamed verifies that a route can opt out of
// middleware attached at an outer level.
func TestExclusionRemovesNamed(t *testing.T) {
	t.Parallel()

	var log []string

	reg := NewRegistry()
	reg.MustRegister("compress", tag(&log, "compress"))

	e := MustNew(WithRegistry(reg))
	e.UseNamed("compress")
	e.GET("/with", func(c *Context) error { log = append(log, "with"); return nil })
	e.GET("/without", func(c *Context) error { log = append(log, "without"); return nil }).
		WithoutMiddleware("compress")

	perform(e, http.MethodGet, "/with")
	assert.Equal(t, []string{"compress:in", "with", "compress:out"}, log)

	log = nil
	perform(e, http.MethodGet, "/without")
	assert.Equal(t, []string{"without"}, log, "excluded middleware must not run")
}

// TestExclusionRemovesFirstMatchOnly removes one occurrence per
// exclusion, scanning top-down.
func TestExclusionRemovesFirstMatchOnly(t *testing.T) {
	t.Parallel()

	var log []string

	reg := NewRegistry()
	reg.MustRegister("trace", tag(&log, "trace"))

	e := MustNew(WithRegistry(reg))
	e.UseNamed("trace")

	g := e.Group("/g")
	g.UseNamed("trace")
	g.GET("/x", func(c *Context) error { log = append(log, "handler"); return nil }).
		WithoutMiddleware("trace")

	perform(e, http.MethodGet, "/g/x")

	// The engine-level attachment is removed; the group-level one stays.
	assert.Equal(t, []string{"trace:in", "handler", "trace:out"}, log)
}

// TestExclusionByFunctionIdentity removes inline middleware by function
// pointer.
func TestExclusionByFunctionIdentity(t *testing.T) {
	t.Parallel()

	var log []string
	mw := tag(&log, "inline")

	e := MustNew()
	e.Use(mw)
	e.GET("/with", func(c *Context) error { log = append(log, "with"); return nil })
	e.GET("/without", func(c *Context) error { log = append(log, "without"); return nil }).
		WithoutMiddlewareFunc(mw)

	perform(e, http.MethodGet, "/with")
	assert.Equal(t, []string{"inline:in", "with", "inline:out"}, log)

	log = nil
	perform(e, http.MethodGet, "/without")
	assert.Equal(t, []string{"without"}, log)
}

// TestDuplicateNamedMiddlewareRunsOnce dedupes repeated attachments of
// the same name, keeping the outermost position.
func TestDuplicateNamedMiddlewareRunsOnce(t *testing.T) {
	t.Parallel()

	var log []string

	reg := NewRegistry()
	reg.MustRegister("auth", tag(&log, "auth"))

	e := MustNew(WithRegistry(reg))
	e.UseNamed("auth")

	g := e.Group("/g")
	g.UseNamed("auth")
	g.GET("/x", func(c *Context) error { log = append(log, "handler"); return nil })

	perform(e, http.MethodGet, "/g/x")
	assert.Equal(t, []string{"auth:in", "handler", "auth:out"}, log, "same name attached twice runs once")
}

// TestMiddlewareSeesNotFound verifies engine middleware wraps not-found
// dispositions.
func TestMiddlewareSeesNotFound(t *testing.T) {
	t.Parallel()

	var sawStatus int

	e := MustNew()
	e.Use(func(c *Context, next HandlerFunc) error {
		err := next(c)
		sawStatus = c.Response.StatusCode()
		return err
	})
	e.GET("/known", okHandler)

	w := perform(e, http.MethodGet, "/unknown")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, http.StatusNotFound, sawStatus, "engine middleware should observe the 404")
}

// TestRouteMiddlewareDoesNotLeak keeps route-level middleware off other
// routes.
func TestRouteMiddlewareDoesNotLeak(t *testing.T) {
	t.Parallel()

	var log []string

	e := MustNew()
	e.GET("/a", func(c *Context) error { log = append(log, "a"); return nil }).
		Use(tag(&log, "only-a"))
	e.GET("/b", func(c *Context) error { log = append(log, "b"); return nil })

	perform(e, http.MethodGet, "/b")
	assert.Equal(t, []string{"b"}, log)
}

// TestWrapHandler mounts a net/http handler behind the buffered
// response.
func TestWrapHandler(t *testing.T) {
	t.Parallel()

	e := MustNew()
	e.GET("/foreign", WrapHandler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Foreign", "yes")
		w.WriteHeader(http.StatusAccepted)
		_, _ = w.Write([]byte("from net/http"))
	})))

	w := perform(e, http.MethodGet, "/foreign")
	assert.Equal(t, http.StatusAccepted, w.Code)
	assert.Equal(t, "yes", w.Header().Get("X-Foreign"))
	assert.Equal(t, "from net/http", w.Body.String())
	require.Equal(t, "13", w.Header().Get("Content-Length"), "buffered finalize sets the length")
}
