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
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kingwill101/routed/events"
)

// eventLog records emitted event names in order.
type eventLog struct {
	mu    sync.Mutex
	names []string
}

func (l *eventLog) record(ev events.Event) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.names = append(l.names, ev.Name())
}

func (l *eventLog) list() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.names...)
}

func (l *eventLog) count(name string) int {
	n := 0
	for _, got := range l.list() {
		if got == name {
			n++
		}
	}
	return n
}

// TestLifecycleEventOrder pins the per-request event sequence for a
// matched route.
func TestLifecycleEventOrder(t *testing.T) {
	t.Parallel()

	e := MustNew()
	log := &eventLog{}
	e.Hub().OnAny(log.record)
	e.GET("/users/{id:int}", okHandler)

	perform(e, http.MethodGet, "/users/42")

	assert.Equal(t, []string{
		events.SignalBeforeRouting,
		events.SignalRequestStarted,
		events.SignalRouteMatched,
		events.SignalAfterRouting,
		events.SignalRequestFinished,
	}, log.list())
}

// TestLifecycleNotFound verifies the 404 path emits RouteNotFound and
// still finishes exactly once.
func TestLifecycleNotFound(t *testing.T) {
	t.Parallel()

	e := MustNew()
	log := &eventLog{}
	e.Hub().OnAny(log.record)
	e.GET("/known", okHandler)

	w := perform(e, http.MethodGet, "/unknown")

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, []string{
		events.SignalBeforeRouting,
		events.SignalRequestStarted,
		events.SignalRouteNotFound,
		events.SignalAfterRouting,
		events.SignalRequestFinished,
	}, log.list())
}

// TestLifecycleNoRouteNotFoundFor405 keeps RouteNotFound out of 405 and
// redirect dispositions.
func TestLifecycleNoRouteNotFoundFor405(t *testing.T) {
	t.Parallel()

	e := MustNew()
	log := &eventLog{}
	e.Hub().OnAny(log.record)
	e.GET("/thing", okHandler)

	perform(e, http.MethodPost, "/thing")
	assert.Zero(t, log.count(events.SignalRouteNotFound), "405 must not emit RouteNotFound")

	perform(e, http.MethodGet, "/thing/")
	assert.Zero(t, log.count(events.SignalRouteNotFound), "redirect must not emit RouteNotFound")
	assert.Equal(t, 2, log.count(events.SignalRequestFinished))
}

// TestLifecyclePanicFinishesOnce covers panic recovery: 500 response,
// RoutingError with a stack, one RequestFinished, no AfterRouting.
func TestLifecyclePanicFinishesOnce(t *testing.T) {
	t.Parallel()

	e := MustNew()
	log := &eventLog{}
	e.Hub().OnAny(log.record)

	var routingErr events.RoutingError
	events.On(e.Hub(), func(ev events.RoutingError) { routingErr = ev })

	e.GET("/boom", func(c *Context) error {
		panic("kaboom")
	})

	w := perform(e, http.MethodGet, "/boom")

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, 1, log.count(events.SignalRequestFinished), "exactly one RequestFinished")
	assert.Equal(t, 1, log.count(events.SignalRoutingError))
	assert.Zero(t, log.count(events.SignalAfterRouting), "panic path skips AfterRouting")
	require.Error(t, routingErr.Err)
	assert.Contains(t, routingErr.Err.Error(), "kaboom")
	assert.NotEmpty(t, routingErr.Stack, "panic should capture a stack")
	assert.Zero(t, e.ActiveRequests(), "active set must drain")
}

// TestLifecycleHandlerError routes returned errors through RoutingError
// and the error handler.
func TestLifecycleHandlerError(t *testing.T) {
	t.Parallel()

	e := MustNew()
	log := &eventLog{}
	e.Hub().OnAny(log.record)

	e.GET("/fail", func(c *Context) error {
		return NewError(KindForbidden, "not yours")
	})

	w := perform(e, http.MethodGet, "/fail")

	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "not yours", w.Body.String())
	assert.Equal(t, 1, log.count(events.SignalRoutingError))
	assert.Equal(t, 1, log.count(events.SignalRequestFinished))
}

// TestLifecycleCustomErrorHandler replaces the terminal error renderer.
func TestLifecycleCustomErrorHandler(t *testing.T) {
	t.Parallel()

	e := MustNew(WithErrorHandler(func(c *Context, err error) {
		var re *Error
		if errors.As(err, &re) {
			_ = c.JSON(re.Status, H{"kind": re.Kind.String()})
			return
		}
		_ = c.String(http.StatusInternalServerError, "oops")
	}))
	e.GET("/limited", func(c *Context) error {
		return NewError(KindRateLimited, "slow down")
	})

	w := perform(e, http.MethodGet, "/limited")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.JSONEq(t, `{"kind":"rate_limited"}`, w.Body.String())
}

// TestRequestIDMintedAndEchoed covers both request ID paths.
func TestRequestIDMintedAndEchoed(t *testing.T) {
	t.Parallel()

	e := MustNew()
	var seen string
	e.GET("/x", func(c *Context) error {
		seen = c.RequestID()
		return nil
	})

	// Minted when absent.
	w := perform(e, http.MethodGet, "/x")
	minted := w.Header().Get(HeaderXRequestID)
	assert.NotEmpty(t, minted)
	assert.Equal(t, minted, seen)

	// Echoed when supplied.
	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set(HeaderXRequestID, "req-123")
	w2 := httptest.NewRecorder()
	e.ServeHTTP(w2, req)
	assert.Equal(t, "req-123", w2.Header().Get(HeaderXRequestID))
	assert.Equal(t, "req-123", seen)
}

// TestMaxRequestSizeContentLength rejects oversized declared bodies
// before the chain runs, still finishing the lifecycle.
func TestMaxRequestSizeContentLength(t *testing.T) {
	t.Parallel()

	e := MustNew(WithMaxRequestSize(5))
	log := &eventLog{}
	e.Hub().OnAny(log.record)

	handlerRan := false
	e.POST("/ingest", func(c *Context) error {
		handlerRan = true
		return nil
	})

	req := httptest.NewRequest(http.MethodPost, "/ingest", strings.NewReader("0123456789"))
	w := httptest.NewRecorder()
	e.ServeHTTP(w, req)

	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	assert.False(t, handlerRan, "handler must not run for a declared-oversize body")
	assert.Equal(t, 1, log.count(events.SignalRequestFinished))
}

// TestMaxRequestSizeChunked enforces the cap on bodies without a
// declared length when the handler reads them.
func TestMaxRequestSizeChunked(t *testing.T) {
	t.Parallel()

	e := MustNew(WithMaxRequestSize(5))
	e.POST("/ingest", func(c *Context) error {
		_, err := c.Body()
		if err != nil {
			return err
		}
		return c.String(http.StatusOK, "ok")
	})

	req := httptest.NewRequest(http.MethodPost, "/ingest", io.NopCloser(strings.NewReader("0123456789")))
	req.ContentLength = -1 // chunked transfer
	w := httptest.NewRecorder()
	e.ServeHTTP(w, req)

	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
}

// TestBodyUnderLimitPasses verifies the limiter does not clip compliant
// bodies.
func TestBodyUnderLimitPasses(t *testing.T) {
	t.Parallel()

	e := MustNew(WithMaxRequestSize(64))
	e.POST("/echo", func(c *Context) error {
		body, err := c.Body()
		if err != nil {
			return err
		}
		return c.Data(http.StatusOK, "text/plain", body)
	})

	req := httptest.NewRequest(http.MethodPost, "/echo", strings.NewReader("hello"))
	w := httptest.NewRecorder()
	e.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "hello", w.Body.String())
}

// TestClientIPTrustWalk resolves the client address through trusted
// proxy ranges.
func TestClientIPTrustWalk(t *testing.T) {
	t.Parallel()

	e := MustNew(WithTrustedProxies(
		WithProxies("10.0.0.0/8"),
	))
	var got string
	e.GET("/ip", func(c *Context) error {
		got = c.ClientIP()
		return nil
	})

	req := httptest.NewRequest(http.MethodGet, "/ip", nil)
	req.RemoteAddr = "10.1.2.3:40000"
	req.Header.Set(HeaderXFF, "203.0.113.7, 10.9.9.9")
	w := httptest.NewRecorder()
	e.ServeHTTP(w, req)

	assert.Equal(t, "203.0.113.7", got, "left-most untrusted address wins")
}

// TestClientIPUntrustedPeerIgnoresHeaders keeps header spoofing out
// when the peer is not a trusted proxy.
func TestClientIPUntrustedPeerIgnoresHeaders(t *testing.T) {
	t.Parallel()

	e := MustNew(WithTrustedProxies(WithProxies("10.0.0.0/8")))
	var got string
	e.GET("/ip", func(c *Context) error {
		got = c.ClientIP()
		return nil
	})

	req := httptest.NewRequest(http.MethodGet, "/ip", nil)
	req.RemoteAddr = "198.51.100.4:40000"
	req.Header.Set(HeaderXFF, "203.0.113.7")
	w := httptest.NewRecorder()
	e.ServeHTTP(w, req)

	assert.Equal(t, "198.51.100.4", got)
}

// TestClientIPPlatformHeader prefers the platform header over
// everything else.
func TestClientIPPlatformHeader(t *testing.T) {
	t.Parallel()

	e := MustNew(WithTrustedProxies(
		WithPlatformHeader(HeaderCFConnecting),
		WithProxies("10.0.0.0/8"),
	))
	var got string
	e.GET("/ip", func(c *Context) error {
		got = c.ClientIP()
		return nil
	})

	req := httptest.NewRequest(http.MethodGet, "/ip", nil)
	req.RemoteAddr = "10.1.2.3:40000"
	req.Header.Set(HeaderCFConnecting, "198.51.100.99")
	req.Header.Set(HeaderXFF, "203.0.113.7")
	w := httptest.NewRecorder()
	e.ServeHTTP(w, req)

	assert.Equal(t, "198.51.100.99", got)
}

// TestActiveRequestsTracksInFlight observes the gauge from inside a
// handler and after completion.
func TestActiveRequestsTracksInFlight(t *testing.T) {
	t.Parallel()

	e := MustNew()
	var during int64
	e.GET("/x", func(c *Context) error {
		during = c.Engine().ActiveRequests()
		return nil
	})

	perform(e, http.MethodGet, "/x")
	assert.Equal(t, int64(1), during)
	assert.Zero(t, e.ActiveRequests())
}

// TestShutdownCancelsInFlight drains, then cancels contexts of requests
// that outlive the deadline.
func TestShutdownCancelsInFlight(t *testing.T) {
	t.Parallel()

	e := MustNew(WithShutdownTimeout(30 * time.Millisecond))

	started := make(chan struct{})
	cancelled := make(chan struct{})
	e.GET("/slow", func(c *Context) error {
		close(started)
		select {
		case <-c.Context().Done():
			close(cancelled)
		case <-time.After(2 * time.Second):
		}
		return nil
	})

	go perform(e, http.MethodGet, "/slow")
	<-started

	err := e.Shutdown(context.Background())
	require.Error(t, err, "drain deadline should lapse with the handler still running")

	select {
	case <-cancelled:
	case <-time.After(time.Second):
		t.Fatal("in-flight request context was not cancelled by shutdown")
	}
}

// TestShutdownCleanWhenIdle returns promptly with nothing in flight.
func TestShutdownCleanWhenIdle(t *testing.T) {
	t.Parallel()

	e := MustNew()
	e.GET("/x", okHandler)
	perform(e, http.MethodGet, "/x")

	assert.NoError(t, e.Shutdown(context.Background()))
}

// TestResponseContentLength verifies finalize sets Content-Length for
// buffered bodies.
func TestResponseContentLength(t *testing.T) {
	t.Parallel()

	e := MustNew()
	e.GET("/x", func(c *Context) error { return c.String(http.StatusOK, "hello") })

	w := perform(e, http.MethodGet, "/x")
	assert.Equal(t, "5", w.Header().Get("Content-Length"))
}

// TestEventHandlerPanicIsContained keeps a panicking subscriber from
// failing the request.
func TestEventHandlerPanicIsContained(t *testing.T) {
	t.Parallel()

	e := MustNew()
	events.On(e.Hub(), func(ev events.RequestStarted) {
		panic("subscriber bug")
	})

	var unhandled int
	events.On(e.Hub(), func(ev events.UnhandledSignalError) { unhandled++ })

	e.GET("/x", okHandler)
	w := perform(e, http.MethodGet, "/x")

	assert.Equal(t, http.StatusOK, w.Code, "request must succeed despite subscriber panic")
	assert.Equal(t, 1, unhandled)
}
