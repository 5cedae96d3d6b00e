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
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// perform runs one request through the engine and returns the recorder.
func perform(e *Engine, method, target string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	w := httptest.NewRecorder()
	e.ServeHTTP(w, req)
	return w
}

func okHandler(c *Context) error {
	return c.String(http.StatusOK, "ok")
}

// TestEngineVerbs registers one route per verb and dispatches to each.
func TestEngineVerbs(t *testing.T) {
	t.Parallel()

	e := MustNew()
	e.GET("/r", func(c *Context) error { return c.String(http.StatusOK, "get") })
	e.POST("/r", func(c *Context) error { return c.String(http.StatusOK, "post") })
	e.PUT("/r", func(c *Context) error { return c.String(http.StatusOK, "put") })
	e.PATCH("/r", func(c *Context) error { return c.String(http.StatusOK, "patch") })
	e.DELETE("/r", func(c *Context) error { return c.String(http.StatusOK, "delete") })
	e.HEAD("/r", func(c *Context) error { c.Response.Status(http.StatusOK); return nil })

	for _, method := range []string{"GET", "POST", "PUT", "PATCH", "DELETE"} {
		w := perform(e, method, "/r")
		assert.Equal(t, http.StatusOK, w.Code, "method %s", method)
		assert.Equal(t, strings.ToLower(method), w.Body.String(), "method %s body", method)
	}

	w := perform(e, http.MethodHead, "/r")
	assert.Equal(t, http.StatusOK, w.Code)
}

// TestEngineParamExtraction verifies typed parameters through a request.
func TestEngineParamExtraction(t *testing.T) {
	t.Parallel()

	e := MustNew()
	e.GET("/users/{id:int}/posts/{slug:slug}", func(c *Context) error {
		id, ok := c.ParamInt64("id")
		require.True(t, ok)
		return c.JSON(http.StatusOK, H{"id": id, "slug": c.Param("slug")})
	})

	w := perform(e, http.MethodGet, "/users/42/posts/hello-world")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"id":42,"slug":"hello-world"}`, w.Body.String())
}

// TestEngineTypedMismatchIs404 verifies a failed type check falls through
// to not-found instead of producing a 4xx about the parameter.
func TestEngineTypedMismatchIs404(t *testing.T) {
	t.Parallel()

	e := MustNew()
	e.GET("/users/{id:int}", okHandler)

	w := perform(e, http.MethodGet, "/users/abc")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

// TestEngineFirstMatchWins pins registration order as the tie-breaker
// between overlapping patterns.
func TestEngineFirstMatchWins(t *testing.T) {
	t.Parallel()

	e := MustNew()
	e.GET("/users/{id:int}", func(c *Context) error { return c.String(http.StatusOK, "int") })
	e.GET("/users/{name}", func(c *Context) error { return c.String(http.StatusOK, "name") })

	w := perform(e, http.MethodGet, "/users/42")
	assert.Equal(t, "int", w.Body.String(), "first registered route should win")

	w = perform(e, http.MethodGet, "/users/alice")
	assert.Equal(t, "name", w.Body.String(), "later route matches what earlier rejected")
}

// TestEngineMethodNotAllowed verifies the 405 disposition and its
// sorted Allow header.
func TestEngineMethodNotAllowed(t *testing.T) {
	t.Parallel()

	e := MustNew()
	e.POST("/submit", okHandler)
	e.GET("/submit", okHandler)
	e.DELETE("/submit", okHandler)

	w := perform(e, http.MethodPut, "/submit")
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
	assert.Equal(t, "DELETE, GET, POST", w.Header().Get("Allow"), "Allow must be sorted")
}

// TestEngineMethodNotAllowedDisabled falls through to 404.
func TestEngineMethodNotAllowedDisabled(t *testing.T) {
	t.Parallel()

	e := MustNew(WithMethodNotAllowed(false))
	e.POST("/submit", okHandler)

	w := perform(e, http.MethodPut, "/submit")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Empty(t, w.Header().Get("Allow"))
}

// TestEngineTrailingSlashRedirect covers the 301/307 split and query
// preservation.
func TestEngineTrailingSlashRedirect(t *testing.T) {
	t.Parallel()

	e := MustNew()
	e.GET("/users", okHandler)
	e.POST("/users", okHandler)

	w := perform(e, http.MethodGet, "/users/?page=2")
	assert.Equal(t, http.StatusMovedPermanently, w.Code)
	assert.Equal(t, "/users?page=2", w.Header().Get("Location"))

	w = perform(e, http.MethodPost, "/users/")
	assert.Equal(t, http.StatusTemporaryRedirect, w.Code, "non-GET redirects preserve the method")
	assert.Equal(t, "/users", w.Header().Get("Location"))
}

// TestEngineTrailingSlashDisabled keeps slash paths as 404s.
func TestEngineTrailingSlashDisabled(t *testing.T) {
	t.Parallel()

	e := MustNew(WithRedirectTrailingSlash(false))
	e.GET("/users", okHandler)

	w := perform(e, http.MethodGet, "/users/")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

// TestEngineAutoOptions verifies the opt-in automatic OPTIONS response.
func TestEngineAutoOptions(t *testing.T) {
	t.Parallel()

	e := MustNew(WithDefaultOptions(true))
	e.GET("/data", okHandler)
	e.POST("/data", okHandler)

	w := perform(e, http.MethodOptions, "/data")
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "GET, OPTIONS, POST", w.Header().Get("Allow"))
	assert.Empty(t, w.Body.String())
}

// TestEngineExplicitOptionsWins prefers a registered OPTIONS route over
// the automatic answer.
func TestEngineExplicitOptionsWins(t *testing.T) {
	t.Parallel()

	e := MustNew(WithDefaultOptions(true))
	e.GET("/data", okHandler)
	e.OPTIONS("/data", func(c *Context) error { return c.String(http.StatusOK, "custom") })

	w := perform(e, http.MethodOptions, "/data")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "custom", w.Body.String())
}

// TestEngineAnyRegistersAllMethods smoke-tests Any across two verbs.
func TestEngineAnyRegistersAllMethods(t *testing.T) {
	t.Parallel()

	e := MustNew()
	routes := e.Any("/everything", okHandler)
	assert.Len(t, routes, len(anyMethods))

	for _, method := range []string{http.MethodGet, http.MethodDelete} {
		w := perform(e, method, "/everything")
		assert.Equal(t, http.StatusOK, w.Code, "method %s", method)
	}
}

// TestEngineDuplicateRouteFails surfaces duplicates at build time.
func TestEngineDuplicateRouteFails(t *testing.T) {
	t.Parallel()

	e := MustNew()
	e.GET("/dup", okHandler)
	e.GET("/dup", okHandler)

	err := e.Build()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDuplicateRoute)
	assert.Equal(t, "configuration: router: duplicate route: GET /dup", err.Error())

	var re *Error
	require.ErrorAs(t, err, &re)
	assert.Equal(t, KindConfiguration, re.Kind)
}

// TestEngineDuplicateNameFails rejects two routes sharing a name.
func TestEngineDuplicateNameFails(t *testing.T) {
	t.Parallel()

	e := MustNew()
	e.GET("/a", okHandler).SetName("thing")
	e.GET("/b", okHandler).SetName("thing")

	err := e.Build()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDuplicateRouteName)
}

// TestEngineFrozenPanics pins the post-freeze registration behavior.
func TestEngineFrozenPanics(t *testing.T) {
	t.Parallel()

	e := MustNew()
	e.GET("/a", okHandler)
	require.NoError(t, e.Build())

	assert.True(t, e.Frozen())
	assert.Panics(t, func() { e.GET("/b", okHandler) })
	assert.Panics(t, func() { e.Use(func(c *Context, next HandlerFunc) error { return next(c) }) })
	assert.Panics(t, func() { e.Group("/g") })
}

// TestEngineServeBuildsOnFirstRequest verifies the implicit freeze.
func TestEngineServeBuildsOnFirstRequest(t *testing.T) {
	t.Parallel()

	e := MustNew()
	e.GET("/a", okHandler)

	assert.False(t, e.Frozen())
	perform(e, http.MethodGet, "/a")
	assert.True(t, e.Frozen())
}

// TestEngineBuildErrorFailsRequests keeps a misconfigured engine from
// serving anything.
func TestEngineBuildErrorFailsRequests(t *testing.T) {
	t.Parallel()

	e := MustNew()
	e.GET("/dup", okHandler)
	e.GET("/dup", okHandler)

	w := perform(e, http.MethodGet, "/dup")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

// TestEngineURL builds paths for named routes, including group and
// mount prefixes.
func TestEngineURL(t *testing.T) {
	t.Parallel()

	e := MustNew()
	e.GET("/users/{id:int}", okHandler).SetName("users.show")

	api := e.Group("/api").SetNamePrefix("api.")
	api.GET("/items/{id:uuid}", okHandler).SetName("items.show")

	admin := NewRouter()
	admin.GET("/audit/{page:int}", okHandler).SetName("admin.audit")
	e.Mount("/admin", admin)

	got, err := e.URL("users.show", map[string]string{"id": "42"})
	require.NoError(t, err)
	assert.Equal(t, "/users/42", got)

	got, err = e.URL("api.items.show", map[string]string{"id": "550e8400-e29b-41d4-a716-446655440000"})
	require.NoError(t, err)
	assert.Equal(t, "/api/items/550e8400-e29b-41d4-a716-446655440000", got)

	got, err = e.URL("admin.audit", map[string]string{"page": "3"}, url.Values{"q": {"x"}})
	require.NoError(t, err)
	assert.Equal(t, "/admin/audit/3?q=x", got)

	_, err = e.URL("nope", nil)
	assert.ErrorIs(t, err, ErrRouteNotFound)
}

// TestEngineRouteByName resolves routes after build.
func TestEngineRouteByName(t *testing.T) {
	t.Parallel()

	e := MustNew()
	e.GET("/users/{id:int}", okHandler).SetName("users.show")

	rt := e.RouteByName("users.show")
	require.NotNil(t, rt)
	assert.Equal(t, http.MethodGet, rt.Method())
	assert.Equal(t, "/users/{id:int}", rt.Pattern())

	assert.Nil(t, e.RouteByName("missing"))
}

// TestEngineMount verifies prefixed dispatch and duplicate detection
// across mounts.
func TestEngineMount(t *testing.T) {
	t.Parallel()

	users := NewRouter()
	users.GET("/{id:int}", func(c *Context) error {
		return c.Stringf(http.StatusOK, "user %s", c.Param("id"))
	})

	e := MustNew()
	e.Mount("/users", users)

	w := perform(e, http.MethodGet, "/users/7")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "user 7", w.Body.String())

	// The mounted route's full pattern carries the prefix.
	all := e.Routes()
	require.Len(t, all, 1)
	assert.Equal(t, "/{id:int}", all[0].Pattern())
	assert.Equal(t, "/users/{id:int}", all[0].FullPattern())
}

// TestEngineMountConflict rejects a mounted route that collides with a
// root route.
func TestEngineMountConflict(t *testing.T) {
	t.Parallel()

	sub := NewRouter()
	sub.GET("/{id:int}", okHandler)

	e := MustNew()
	e.GET("/users/{id:int}", okHandler)
	e.Mount("/users", sub)

	err := e.Build()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDuplicateRoute)
}

// TestEngineMountNilPanics rejects nil and double-attached routers.
func TestEngineMountNilPanics(t *testing.T) {
	t.Parallel()

	e := MustNew()
	assert.Panics(t, func() { e.Mount("/x", nil) })

	sub := NewRouter()
	e.Mount("/a", sub)
	e2 := MustNew()
	assert.Panics(t, func() { e2.Mount("/b", sub) }, "router cannot attach twice")
}

// TestEnginePathTraversalIs404 rejects paths that climb above root.
func TestEnginePathTraversalIs404(t *testing.T) {
	t.Parallel()

	e := MustNew()
	e.GET("/files/{*path}", okHandler)

	req := httptest.NewRequest(http.MethodGet, "http://example.com/", nil)
	req.URL.Path = "/files/../../etc/passwd"
	w := httptest.NewRecorder()
	e.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
