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

package requestid

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kingwill101/routed/router"
)

func newEngine(t *testing.T, opts ...Option) *router.Engine {
	t.Helper()
	e := router.MustNew()
	e.Use(New(opts...))
	e.GET("/", func(c *router.Context) error {
		return c.String(http.StatusOK, c.RequestID())
	})
	return e
}

func perform(e *router.Engine, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	e.ServeHTTP(w, req)
	return w
}

// TestGeneratesV7UUID assigns a parseable v7 UUID and echoes it.
func TestGeneratesV7UUID(t *testing.T) {
	t.Parallel()

	e := newEngine(t)
	w := perform(e, httptest.NewRequest(http.MethodGet, "/", nil))

	id := w.Header().Get(router.HeaderXRequestID)
	require.NotEmpty(t, id)
	parsed, err := uuid.Parse(id)
	require.NoError(t, err)
	assert.Equal(t, uuid.Version(7), parsed.Version())
	assert.Equal(t, id, w.Body.String(), "Context.RequestID matches the header")
}

// TestClientIDHonored keeps an inbound ID by default.
func TestClientIDHonored(t *testing.T) {
	t.Parallel()

	e := newEngine(t)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(router.HeaderXRequestID, "client-chosen")
	w := perform(e, req)

	assert.Equal(t, "client-chosen", w.Header().Get(router.HeaderXRequestID))
	assert.Equal(t, "client-chosen", w.Body.String())
}

// TestClientIDRejected regenerates when client IDs are disallowed.
func TestClientIDRejected(t *testing.T) {
	t.Parallel()

	e := newEngine(t, WithAllowClientID(false))
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(router.HeaderXRequestID, "client-chosen")
	w := perform(e, req)

	assert.NotEqual(t, "client-chosen", w.Header().Get(router.HeaderXRequestID))
	assert.NotEmpty(t, w.Body.String())
}

// TestCustomHeader moves the ID and removes the default echo.
func TestCustomHeader(t *testing.T) {
	t.Parallel()

	e := newEngine(t, WithHeader("X-Correlation-Id"))
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Correlation-Id", "from-gateway")
	w := perform(e, req)

	assert.Equal(t, "from-gateway", w.Header().Get("X-Correlation-Id"))
	assert.Empty(t, w.Header().Get(router.HeaderXRequestID),
		"default header must not carry a second ID")
	assert.Equal(t, "from-gateway", w.Body.String())
}

// TestULIDGenerator produces parseable, time-ordered ULIDs.
func TestULIDGenerator(t *testing.T) {
	t.Parallel()

	e := newEngine(t, WithULID())

	first := perform(e, httptest.NewRequest(http.MethodGet, "/", nil))
	second := perform(e, httptest.NewRequest(http.MethodGet, "/", nil))

	a, err := ulid.ParseStrict(first.Body.String())
	require.NoError(t, err)
	b, err := ulid.ParseStrict(second.Body.String())
	require.NoError(t, err)
	assert.Equal(t, -1, a.Compare(b), "monotonic ULIDs sort by issue order")
}

// TestCustomGenerator uses the supplied function.
func TestCustomGenerator(t *testing.T) {
	t.Parallel()

	n := 0
	e := newEngine(t, WithGenerator(func() string {
		n++
		return "fixed-id"
	}))
	w := perform(e, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, "fixed-id", w.Body.String())
	assert.Equal(t, 1, n)
}
