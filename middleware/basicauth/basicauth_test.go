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

package basicauth

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kingwill101/routed/router"
)

func newEngine(t *testing.T, opts ...Option) *router.Engine {
	t.Helper()
	e := router.MustNew()
	e.Use(New(opts...))
	e.GET("/secret", func(c *router.Context) error {
		return c.String(http.StatusOK, "hello "+Username(c))
	})
	e.GET("/health", func(c *router.Context) error {
		return c.String(http.StatusOK, "ok")
	})
	return e
}

func perform(e *router.Engine, username, password, target string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, target, nil)
	if username != "" {
		req.SetBasicAuth(username, password)
	}
	w := httptest.NewRecorder()
	e.ServeHTTP(w, req)
	return w
}

// TestMissingCredentialsChallenged answers 401 with the realm.
func TestMissingCredentialsChallenged(t *testing.T) {
	t.Parallel()

	e := newEngine(t, WithUsers(map[string]string{"admin": "secret"}))
	w := perform(e, "", "", "/secret")

	require.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, `Basic realm="Restricted", charset="UTF-8"`, w.Header().Get("WWW-Authenticate"))
	assert.Equal(t, "Unauthorized", w.Body.String())
}

// TestValidCredentialsPass reaches the handler and exposes the user.
func TestValidCredentialsPass(t *testing.T) {
	t.Parallel()

	e := newEngine(t, WithUsers(map[string]string{"admin": "secret"}))
	w := perform(e, "admin", "secret", "/secret")

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "hello admin", w.Body.String())
}

// TestWrongPasswordRejected keeps the handler unreached.
func TestWrongPasswordRejected(t *testing.T) {
	t.Parallel()

	e := newEngine(t, WithUsers(map[string]string{"admin": "secret"}))

	assert.Equal(t, http.StatusUnauthorized, perform(e, "admin", "guessed", "/secret").Code)
	assert.Equal(t, http.StatusUnauthorized, perform(e, "nobody", "secret", "/secret").Code)
}

// TestCustomRealm shows up in the challenge.
func TestCustomRealm(t *testing.T) {
	t.Parallel()

	e := newEngine(t,
		WithUsers(map[string]string{"admin": "secret"}),
		WithRealm("Admin Area"),
	)
	w := perform(e, "", "", "/secret")

	assert.Equal(t, `Basic realm="Admin Area", charset="UTF-8"`, w.Header().Get("WWW-Authenticate"))
}

// TestValidatorTakesPrecedence over the static map.
func TestValidatorTakesPrecedence(t *testing.T) {
	t.Parallel()

	e := newEngine(t,
		WithUsers(map[string]string{"admin": "secret"}),
		WithValidator(func(username, password string) bool {
			return username == "svc" && password == "token"
		}),
	)

	assert.Equal(t, http.StatusUnauthorized, perform(e, "admin", "secret", "/secret").Code)
	assert.Equal(t, http.StatusOK, perform(e, "svc", "token", "/secret").Code)
}

// TestSkipPathsBypass lets listed paths through unauthenticated.
func TestSkipPathsBypass(t *testing.T) {
	t.Parallel()

	e := newEngine(t,
		WithUsers(map[string]string{"admin": "secret"}),
		WithSkipPaths("/health"),
	)

	assert.Equal(t, http.StatusOK, perform(e, "", "", "/health").Code)
	assert.Equal(t, http.StatusUnauthorized, perform(e, "", "", "/secret").Code)
}

// TestUsernameWithoutMiddleware returns empty on bare engines.
func TestUsernameWithoutMiddleware(t *testing.T) {
	t.Parallel()

	e := router.MustNew()
	e.GET("/bare", func(c *router.Context) error {
		return c.String(http.StatusOK, "user="+Username(c))
	})

	w := httptest.NewRecorder()
	e.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/bare", nil))
	assert.Equal(t, "user=", w.Body.String())
}
