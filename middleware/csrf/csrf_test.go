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

package csrf

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kingwill101/routed/router"
)

func newEngine(t *testing.T, opts ...Option) *router.Engine {
	t.Helper()
	e := router.MustNew()
	e.Use(New(opts...))
	e.GET("/form", func(c *router.Context) error {
		return c.String(http.StatusOK, Token(c))
	})
	e.POST("/submit", func(c *router.Context) error {
		return c.String(http.StatusOK, "accepted")
	})
	return e
}

func issuedCookie(t *testing.T, w *httptest.ResponseRecorder, name string) *http.Cookie {
	t.Helper()
	for _, cookie := range w.Result().Cookies() {
		if cookie.Name == name {
			return cookie
		}
	}
	t.Fatalf("cookie %q not set", name)
	return nil
}

// TestSafeMethodIssuesToken sets the cookie and exposes the same value
// through Token.
func TestSafeMethodIssuesToken(t *testing.T) {
	t.Parallel()

	e := newEngine(t)
	w := perform(e, http.MethodGet, "/form", nil, "")

	require.Equal(t, http.StatusOK, w.Code)
	cookie := issuedCookie(t, w, DefaultCookieName)
	assert.Len(t, cookie.Value, 2*tokenBytes)
	assert.Equal(t, "/", cookie.Path)
	assert.False(t, cookie.HttpOnly, "scripts must be able to read the token")
	assert.False(t, cookie.Secure)
	assert.Equal(t, cookie.Value, w.Body.String(), "Token matches the cookie")
}

// TestExistingTokenReused keeps the client's token instead of minting a
// new one per request.
func TestExistingTokenReused(t *testing.T) {
	t.Parallel()

	e := newEngine(t)
	w := perform(e, http.MethodGet, "/form", map[string]string{DefaultCookieName: "token-already-here"}, "")

	assert.Equal(t, "token-already-here", w.Body.String())
	assert.Empty(t, w.Result().Cookies(), "no reissue for an existing token")
}

// TestUnsafeWithoutCookieRejected answers 403 when no token was ever
// issued.
func TestUnsafeWithoutCookieRejected(t *testing.T) {
	t.Parallel()

	e := newEngine(t)
	w := perform(e, http.MethodPost, "/submit", nil, "")

	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "csrf token missing", w.Body.String())
}

// TestHeaderEchoAccepted passes when the header repeats the cookie.
func TestHeaderEchoAccepted(t *testing.T) {
	t.Parallel()

	e := newEngine(t)
	req := httptest.NewRequest(http.MethodPost, "/submit", nil)
	req.AddCookie(&http.Cookie{Name: DefaultCookieName, Value: "sesame"})
	req.Header.Set(DefaultHeaderName, "sesame")
	w := httptest.NewRecorder()
	e.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "accepted", w.Body.String())
}

// TestHeaderMismatchRejected answers 403 on a wrong echo.
func TestHeaderMismatchRejected(t *testing.T) {
	t.Parallel()

	e := newEngine(t)
	req := httptest.NewRequest(http.MethodPost, "/submit", nil)
	req.AddCookie(&http.Cookie{Name: DefaultCookieName, Value: "sesame"})
	req.Header.Set(DefaultHeaderName, "guessed")
	w := httptest.NewRecorder()
	e.ServeHTTP(w, req)

	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "csrf token mismatch", w.Body.String())
}

// TestFormFieldEchoAccepted reads the token from the form when the
// header is absent.
func TestFormFieldEchoAccepted(t *testing.T) {
	t.Parallel()

	e := newEngine(t)
	body := strings.NewReader("_csrf=sesame&name=amy")
	req := httptest.NewRequest(http.MethodPost, "/submit", body)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.AddCookie(&http.Cookie{Name: DefaultCookieName, Value: "sesame"})
	w := httptest.NewRecorder()
	e.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "accepted", w.Body.String())
}

// TestCustomNames wires non-default cookie, header, and field names.
func TestCustomNames(t *testing.T) {
	t.Parallel()

	e := router.MustNew()
	e.Use(New(
		WithCookieName("xsrf"),
		WithHeaderName("X-XSRF-Token"),
		WithFieldName("token"),
	))
	e.GET("/form", func(c *router.Context) error {
		return c.String(http.StatusOK, Token(c))
	})
	e.POST("/submit", func(c *router.Context) error {
		return c.String(http.StatusOK, "accepted")
	})

	issued := perform(e, http.MethodGet, "/form", nil, "")
	cookie := issuedCookie(t, issued, "xsrf")

	req := httptest.NewRequest(http.MethodPost, "/submit", nil)
	req.AddCookie(&http.Cookie{Name: "xsrf", Value: cookie.Value})
	req.Header.Set("X-XSRF-Token", cookie.Value)
	w := httptest.NewRecorder()
	e.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)

	field := strings.NewReader("token=" + cookie.Value)
	req = httptest.NewRequest(http.MethodPost, "/submit", field)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.AddCookie(&http.Cookie{Name: "xsrf", Value: cookie.Value})
	w = httptest.NewRecorder()
	e.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

// TestSecureCookieOption marks issued cookies Secure.
func TestSecureCookieOption(t *testing.T) {
	t.Parallel()

	e := newEngine(t, WithSecureCookie(true))
	w := perform(e, http.MethodGet, "/form", nil, "")

	assert.True(t, issuedCookie(t, w, DefaultCookieName).Secure)
}

// TestTokenWithoutMiddleware returns empty for bare engines.
func TestTokenWithoutMiddleware(t *testing.T) {
	t.Parallel()

	e := router.MustNew()
	e.GET("/bare", func(c *router.Context) error {
		return c.String(http.StatusOK, "token="+Token(c))
	})

	w := perform(e, http.MethodGet, "/bare", nil, "")
	assert.Equal(t, "token=", w.Body.String())
}

func perform(e *router.Engine, method, target string, cookies map[string]string, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	for name, value := range cookies {
		req.AddCookie(&http.Cookie{Name: name, Value: value})
	}
	w := httptest.NewRecorder()
	e.ServeHTTP(w, req)
	return w
}
