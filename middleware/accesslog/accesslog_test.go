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

package accesslog

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kingwill101/routed/router"
)

// logLine is the subset of fields the tests assert on.
type logLine struct {
	Level     string `json:"level"`
	Msg       string `json:"msg"`
	Method    string `json:"method"`
	Path      string `json:"path"`
	Route     string `json:"route"`
	Status    int    `json:"status"`
	Slow      bool   `json:"slow"`
	Error     string `json:"error"`
	RequestID string `json:"request_id"`
}

func newHarness(t *testing.T, opts ...Option) (*router.Engine, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	e := router.MustNew()
	e.Use(New(append([]Option{WithLogger(logger)}, opts...)...))
	e.GET("/users/{id}", func(c *router.Context) error {
		return c.String(http.StatusOK, "user "+c.Param("id"))
	})
	e.GET("/broken", func(c *router.Context) error {
		return router.NewError(router.KindForbidden, "nope")
	})
	e.GET("/healthz", func(c *router.Context) error {
		return c.NoContent()
	})
	e.GET("/slow", func(c *router.Context) error {
		time.Sleep(20 * time.Millisecond)
		return c.String(http.StatusOK, "eventually")
	})
	return e, &buf
}

func perform(e *router.Engine, target string) {
	w := httptest.NewRecorder()
	e.ServeHTTP(w, httptest.NewRequest(http.MethodGet, target, nil))
}

func lines(t *testing.T, buf *bytes.Buffer) []logLine {
	t.Helper()
	var out []logLine
	for _, raw := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if raw == "" {
			continue
		}
		var line logLine
		require.NoError(t, json.Unmarshal([]byte(raw), &line))
		out = append(out, line)
	}
	return out
}

// TestLogsOneLinePerRequest with method, route pattern, and status.
func TestLogsOneLinePerRequest(t *testing.T) {
	t.Parallel()

	e, buf := newHarness(t)
	perform(e, "/users/7")

	got := lines(t, buf)
	require.Len(t, got, 1)
	assert.Equal(t, "http request", got[0].Msg)
	assert.Equal(t, "INFO", got[0].Level)
	assert.Equal(t, http.MethodGet, got[0].Method)
	assert.Equal(t, "/users/7", got[0].Path)
	assert.Equal(t, "/users/{id}", got[0].Route)
	assert.Equal(t, http.StatusOK, got[0].Status)
	assert.NotEmpty(t, got[0].RequestID)
}

// TestErrorLogsTerminalStatus reports the status the error handler
// will write, not the unwritten buffer's.
func TestErrorLogsTerminalStatus(t *testing.T) {
	t.Parallel()

	e, buf := newHarness(t)
	perform(e, "/broken")

	got := lines(t, buf)
	require.Len(t, got, 1)
	assert.Equal(t, "WARN", got[0].Level)
	assert.Equal(t, http.StatusForbidden, got[0].Status)
	assert.Contains(t, got[0].Error, "nope")
}

// TestExcludePathsSilences drops health checks entirely.
func TestExcludePathsSilences(t *testing.T) {
	t.Parallel()

	e, buf := newHarness(t, WithExcludePaths("/healthz"))
	perform(e, "/healthz")
	perform(e, "/users/7")

	got := lines(t, buf)
	require.Len(t, got, 1)
	assert.Equal(t, "/users/7", got[0].Path)
}

// TestErrorsOnlySkipsSuccesses but keeps failures.
func TestErrorsOnlySkipsSuccesses(t *testing.T) {
	t.Parallel()

	e, buf := newHarness(t, WithErrorsOnly())
	perform(e, "/users/7")
	perform(e, "/broken")

	got := lines(t, buf)
	require.Len(t, got, 1)
	assert.Equal(t, "/broken", got[0].Path)
}

// TestSlowRequestsBypassErrorsOnly and carry slow=true at warn.
func TestSlowRequestsBypassErrorsOnly(t *testing.T) {
	t.Parallel()

	e, buf := newHarness(t, WithErrorsOnly(), WithSlowThreshold(time.Millisecond))
	perform(e, "/slow")

	got := lines(t, buf)
	require.Len(t, got, 1)
	assert.Equal(t, "WARN", got[0].Level)
	assert.True(t, got[0].Slow)
}

// TestZeroSampleRateDropsSuccesses while errors still log.
func TestZeroSampleRateDropsSuccesses(t *testing.T) {
	t.Parallel()

	e, buf := newHarness(t, WithSampleRate(0))
	perform(e, "/users/7")
	perform(e, "/broken")

	got := lines(t, buf)
	require.Len(t, got, 1)
	assert.Equal(t, "/broken", got[0].Path)
}
