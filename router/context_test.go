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
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"
)

// TestContextParamAccessors exercises the typed parameter getters.
func TestContextParamAccessors(t *testing.T) {
	t.Parallel()

	e := MustNew()
	e.GET("/items/{id:int}/at/{score:double}/by/{who}", func(c *Context) error {
		id, ok := c.ParamInt64("id")
		assert.True(t, ok)
		assert.Equal(t, int64(42), id)

		score, ok := c.ParamFloat64("score")
		assert.True(t, ok)
		assert.InDelta(t, 9.5, score, 0.0001)

		assert.Equal(t, "ana", c.Param("who"))
		assert.Equal(t, "", c.Param("missing"))

		_, ok = c.ParamInt64("who")
		assert.False(t, ok, "string param has no int64 coercion")
		return nil
	})

	w := perform(e, http.MethodGet, "/items/42/at/9.5/by/ana")
	assert.Equal(t, http.StatusOK, w.Code)
}

// TestContextQueryHelpers covers Query, QueryDefault, and QueryValues.
func TestContextQueryHelpers(t *testing.T) {
	t.Parallel()

	e := MustNew()
	e.GET("/search", func(c *Context) error {
		assert.Equal(t, "go", c.Query("q"))
		assert.Equal(t, "", c.Query("absent"))
		assert.Equal(t, "10", c.QueryDefault("limit", "10"))
		assert.Equal(t, "", c.QueryDefault("empty", "fallback"), "present-but-empty key keeps its value")
		assert.Equal(t, []string{"a", "b"}, c.QueryValues()["tag"])
		return nil
	})

	perform(e, http.MethodGet, "/search?q=go&empty=&tag=a&tag=b")
}

// TestContextBodyCaching reads the body twice and then parses the form
// from the restored reader.
func TestContextBodyCaching(t *testing.T) {
	t.Parallel()

	e := MustNew()
	e.POST("/submit", func(c *Context) error {
		first, err := c.Body()
		require.NoError(t, err)
		second, err := c.Body()
		require.NoError(t, err)
		assert.Equal(t, first, second)
		assert.True(t, c.BodyConsumed())

		assert.Equal(t, "dark", c.FormValue("theme"), "form parsing works after Body")
		return nil
	})

	req := httptest.NewRequest(http.MethodPost, "/submit", strings.NewReader("theme=dark"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	e.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

// TestContextBodyEmpty returns nil bytes for a bodyless request.
func TestContextBodyEmpty(t *testing.T) {
	t.Parallel()

	e := MustNew()
	e.GET("/x", func(c *Context) error {
		body, err := c.Body()
		require.NoError(t, err)
		assert.Empty(t, body)
		return nil
	})

	perform(e, http.MethodGet, "/x")
}

// TestContextAttributeBag covers Set, Get, and MustGet.
func TestContextAttributeBag(t *testing.T) {
	t.Parallel()

	e := MustNew()
	e.GET("/x", func(c *Context) error {
		c.Set("user", "ana")
		v, ok := c.Get("user")
		assert.True(t, ok)
		assert.Equal(t, "ana", v)

		_, ok = c.Get("missing")
		assert.False(t, ok)

		assert.Equal(t, "ana", c.MustGet("user"))
		assert.Panics(t, func() { c.MustGet("missing") })
		return nil
	})

	perform(e, http.MethodGet, "/x")
}

// TestContextAttributeBagAcrossMiddleware shares values from middleware
// to the handler.
func TestContextAttributeBagAcrossMiddleware(t *testing.T) {
	t.Parallel()

	e := MustNew()
	e.Use(func(c *Context, next HandlerFunc) error {
		c.Set("trace", "abc123")
		return next(c)
	})
	e.GET("/x", func(c *Context) error {
		return c.String(http.StatusOK, c.MustGet("trace").(string))
	})

	w := perform(e, http.MethodGet, "/x")
	assert.Equal(t, "abc123", w.Body.String())
}

// TestContextCookies reads a request cookie and records response
// cookies with last-write-wins semantics.
func TestContextCookies(t *testing.T) {
	t.Parallel()

	e := MustNew()
	e.GET("/x", func(c *Context) error {
		got, err := c.Cookie("session")
		require.NoError(t, err)
		assert.Equal(t, "a value", got, "cookie values are unescaped")

		_, err = c.Cookie("missing")
		assert.ErrorIs(t, err, http.ErrNoCookie)

		c.SetCookie("theme", "light", 3600, "", "", false, true)
		c.SetCookie("theme", "dark", 3600, "", "", false, true)
		return nil
	})

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.AddCookie(&http.Cookie{Name: "session", Value: url.QueryEscape("a value")})
	w := httptest.NewRecorder()
	e.ServeHTTP(w, req)

	cookies := w.Result().Cookies()
	require.Len(t, cookies, 1, "rewriting a cookie must not duplicate it")
	assert.Equal(t, "theme", cookies[0].Name)
	assert.Equal(t, "dark", cookies[0].Value)
	assert.Equal(t, "/", cookies[0].Path, "empty path defaults to /")
	assert.True(t, cookies[0].HttpOnly)
}

// TestContextRedirect validates status codes and sets Location.
func TestContextRedirect(t *testing.T) {
	t.Parallel()

	e := MustNew()
	e.GET("/old", func(c *Context) error {
		return c.Redirect(http.StatusFound, "/new")
	})
	e.GET("/bad", func(c *Context) error {
		err := c.Redirect(http.StatusOK, "/new")
		assert.Error(t, err, "non-3xx status is rejected")
		return c.NoContent()
	})

	w := perform(e, http.MethodGet, "/old")
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/new", w.Header().Get("Location"))

	w = perform(e, http.MethodGet, "/bad")
	assert.Equal(t, http.StatusNoContent, w.Code)
}

// TestContextHeaderHelpers sets and deletes response headers.
func TestContextHeaderHelpers(t *testing.T) {
	t.Parallel()

	e := MustNew()
	e.GET("/x", func(c *Context) error {
		assert.Equal(t, "api-client/1.0", c.GetHeader("User-Agent"))

		c.Header("X-Custom", "yes")
		c.Header("X-Removed", "soon")
		c.Header("X-Removed", "")
		return nil
	})

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("User-Agent", "api-client/1.0")
	w := httptest.NewRecorder()
	e.ServeHTTP(w, req)

	assert.Equal(t, "yes", w.Header().Get("X-Custom"))
	_, present := w.Header()["X-Removed"]
	assert.False(t, present, "empty value deletes the header")
}

// TestContextRouteIntrospection exposes the matched route and pattern.
func TestContextRouteIntrospection(t *testing.T) {
	t.Parallel()

	e := MustNew()
	e.GET("/users/{id:int}", func(c *Context) error {
		require.NotNil(t, c.Route())
		assert.Equal(t, "users.show", c.Route().Name())
		assert.Equal(t, "/users/{id:int}", c.Pattern())
		assert.Equal(t, http.MethodGet, c.Method())
		assert.Equal(t, "/users/7", c.Path())
		return nil
	}).SetName("users.show")

	perform(e, http.MethodGet, "/users/7")
}

// TestContextLogger carries the request ID on every record.
func TestContextLogger(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	e := MustNew(WithLogger(slog.New(slog.NewTextHandler(&buf, nil))))
	e.GET("/x", func(c *Context) error {
		c.Logger().Info("handling")
		return nil
	})

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set(HeaderXRequestID, "req-42")
	w := httptest.NewRecorder()
	e.ServeHTTP(w, req)

	out := buf.String()
	assert.Contains(t, out, "request_id=req-42")
	assert.Contains(t, out, "method=GET")
	assert.Contains(t, out, "path=/x")
	assert.NotContains(t, out, "trace_id", "no span on the request, no trace fields")
}

// TestContextLoggerTraceCorrelation includes the span's IDs when the
// request context carries one.
func TestContextLoggerTraceCorrelation(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	e := MustNew(WithLogger(slog.New(slog.NewTextHandler(&buf, nil))))
	e.GET("/x", func(c *Context) error {
		c.Logger().Info("handling")
		return nil
	})

	sc := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID: trace.TraceID{0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07, 0x08, 0x09, 0x0a, 0x0b, 0x0c, 0x0d, 0x0e, 0x0f, 0x10},
		SpanID:  trace.SpanID{0x0a, 0x0b, 0x0c, 0x0d, 0x0e, 0x0f, 0x10, 0x11},
	})
	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req = req.WithContext(trace.ContextWithSpanContext(req.Context(), sc))
	w := httptest.NewRecorder()
	e.ServeHTTP(w, req)

	out := buf.String()
	assert.Contains(t, out, "trace_id="+sc.TraceID().String())
	assert.Contains(t, out, "span_id="+sc.SpanID().String())
}
