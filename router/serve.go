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
	"fmt"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/google/uuid"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/kingwill101/routed/events"
)

// HeaderXRequestID carries the request correlation ID. Inbound values
// are trusted and echoed back; requests without one get a fresh UUID.
const HeaderXRequestID = "X-Request-Id"

// ServeHTTP dispatches one request through the engine. The first call
// freezes the route table.
//
// Every request, including ones that panic or match nothing, emits
// RequestFinished exactly once after its response is written.
func (e *Engine) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	if err := e.Build(); err != nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	start := time.Now()

	c := e.pool.Get().(*Context)
	c.reset(e, w, req)

	ctx, cancel := context.WithCancel(req.Context())
	c.Request = req.WithContext(ctx)

	c.requestID = req.Header.Get(HeaderXRequestID)
	if c.requestID == "" {
		c.requestID = uuid.NewString()
	}
	c.Response.Header().Set(HeaderXRequestID, c.requestID)

	c.clientIP = e.realip.resolveClientIP(c.Request)

	e.hub.Emit(events.BeforeRouting{
		Base:     events.NewBase(),
		Method:   req.Method,
		Path:     req.URL.Path,
		ClientIP: c.clientIP,
	})

	e.active.Store(c, cancel)
	e.activeCount.Add(1)
	e.hub.Emit(events.RequestStarted{
		Base:      events.NewBase(),
		Method:    req.Method,
		Path:      req.URL.Path,
		RequestID: c.requestID,
	})

	defer func() {
		c.Response.finalize(c)
		e.active.Delete(c)
		e.activeCount.Add(-1)
		cancel()
		e.hub.Emit(events.RequestFinished{
			Base:     events.NewBase(),
			Method:   req.Method,
			Path:     req.URL.Path,
			Pattern:  c.pattern,
			Status:   c.Response.statusOrDefault(),
			Bytes:    c.Response.Size(),
			Duration: time.Since(start),
		})
		e.pool.Put(c)
	}()

	e.dispatch(c, start)
}

// dispatch matches the request and runs the composed chain. Panics stop
// here: they are logged, published as RoutingError, and answered with
// 500 unless the handler already wrote.
func (e *Engine) dispatch(c *Context, start time.Time) {
	defer func() {
		rec := recover()
		if rec == nil {
			return
		}
		if rec == http.ErrAbortHandler { //nolint:errorlint // sentinel comparison, as in net/http
			panic(rec)
		}
		err := fmt.Errorf("panic: %v", rec)
		stack := debug.Stack()
		e.log.Error("handler panicked",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"request_id", c.requestID,
			"error", rec,
		)
		e.hub.Emit(events.RoutingError{
			Base:   events.NewBase(),
			Method: c.Request.Method,
			Path:   c.Request.URL.Path,
			Err:    err,
			Stack:  stack,
		})
		e.writeError(c, &Error{Kind: KindInternal, Status: http.StatusInternalServerError, Err: err})
	}()

	req := c.Request
	method, path := req.Method, req.URL.Path

	if e.maxRequestSize > 0 && req.Body != nil && req.Body != http.NoBody {
		if req.ContentLength > e.maxRequestSize {
			e.handleError(c, NewError(KindBodyTooLarge,
				fmt.Sprintf("request body of %d bytes exceeds the %d byte limit", req.ContentLength, e.maxRequestSize)))
			return
		}
		req.Body = http.MaxBytesReader(c.Response, req.Body, e.maxRequestSize)
	}

	if pathEscapesRoot(path) {
		c.disposition = matchResult{kind: matchNone}
	} else {
		c.disposition = e.matcher.match(method, path)
	}

	if c.disposition.kind == matchRoute {
		rt := c.disposition.route
		c.route = rt
		c.params = c.disposition.params
		c.pattern = rt.FullPattern()
		e.hub.Emit(events.RouteMatched{
			Base:    events.NewBase(),
			Method:  method,
			Path:    path,
			Pattern: c.pattern,
			Route:   rt.fullName(),
			Params:  c.params.Map(),
		})
		if err := rt.chain(c); err != nil {
			e.handleError(c, err)
			return
		}
	} else {
		if err := e.notFoundChain(c); err != nil {
			e.handleError(c, err)
			return
		}
	}

	e.hub.Emit(events.AfterRouting{
		Base:     events.NewBase(),
		Method:   method,
		Path:     path,
		Pattern:  c.pattern,
		Status:   c.Response.statusOrDefault(),
		Duration: time.Since(start),
	})
}

// notFoundTerminal ends the chain for requests that matched no route.
// It turns the matcher's disposition into a response, so engine-level
// middleware observes 404s, 405s, redirects, and automatic OPTIONS.
func notFoundTerminal(c *Context) error {
	e := c.engine
	switch d := c.disposition; d.kind {
	case matchRedirect:
		target := d.target
		if q := c.Request.URL.RawQuery; q != "" {
			target += "?" + q
		}
		c.Response.Header().Set("Location", target)
		c.Response.Status(d.status)
	case matchMethodNotAllowed:
		c.Response.Header().Set("Allow", d.allow)
		e.writeError(c, NewError(KindMethodNotAllowed, http.StatusText(http.StatusMethodNotAllowed)))
	case matchAutoOptions:
		c.Response.Header().Set("Allow", d.allow)
		c.Response.Status(http.StatusNoContent)
	default:
		e.hub.Emit(events.RouteNotFound{
			Base:   events.NewBase(),
			Method: c.Request.Method,
			Path:   c.Request.URL.Path,
		})
		e.writeError(c, NewError(KindNotFound, http.StatusText(http.StatusNotFound)))
	}
	return nil
}

// handleError publishes a chain error and renders it.
func (e *Engine) handleError(c *Context, err error) {
	if err == nil {
		return
	}
	e.hub.Emit(events.RoutingError{
		Base:   events.NewBase(),
		Method: c.Request.Method,
		Path:   c.Request.URL.Path,
		Err:    err,
	})
	e.writeError(c, err)
}

// writeError invokes the configured error handler with a recovery
// guard: a panicking error handler degrades to a bare 500 instead of
// taking the request down.
func (e *Engine) writeError(c *Context, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			e.log.Error("error handler panicked", "error", rec, "request_id", c.requestID)
			if !c.Response.Written() {
				c.Response.Status(http.StatusInternalServerError)
			}
		}
	}()
	e.errorHandler(c, err)
}

// defaultErrorHandler maps *Error kinds to their statuses and writes a
// plain-text body. Responses that already have a status or body are
// left untouched.
func defaultErrorHandler(c *Context, err error) {
	if c.Response.Written() {
		return
	}
	var re *Error
	if errors.As(err, &re) {
		status := re.HTTPStatus()
		msg := re.Message
		if msg == "" {
			msg = http.StatusText(status)
		}
		_ = c.String(status, msg)
		return
	}
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		_ = c.String(http.StatusRequestEntityTooLarge, http.StatusText(http.StatusRequestEntityTooLarge))
		return
	}
	_ = c.String(http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError))
}

// Frozen reports whether the route table has been frozen by Build or by
// the first request.
func (e *Engine) Frozen() bool {
	return e.frozen.Load()
}

// ActiveRequests returns the number of requests currently in flight.
func (e *Engine) ActiveRequests() int64 {
	return e.activeCount.Load()
}

// Serve builds the engine and runs an HTTP server on addr with
// production timeouts. When h2c is enabled the handler speaks HTTP/2
// cleartext in addition to HTTP/1.1.
//
// Serve blocks until the server stops; after Shutdown it returns
// http.ErrServerClosed like net/http.
//
// Example:
//
//	e := router.MustNew(router.WithLogger(slog.Default()))
//	e.GET("/healthz", health)
//	if err := e.Serve(":8080"); !errors.Is(err, http.ErrServerClosed) {
//	    log.Fatal(err)
//	}
func (e *Engine) Serve(addr string) error {
	if err := e.Build(); err != nil {
		return err
	}
	var handler http.Handler = e
	if e.enableH2C {
		handler = h2c.NewHandler(e, &http2.Server{})
	}
	srv := e.newServer(addr, handler)

	e.serverMu.Lock()
	e.srv = srv
	e.serverMu.Unlock()

	e.log.Info("http server listening", "addr", addr, "h2c", e.enableH2C)
	return srv.ListenAndServe()
}

// ServeTLS is Serve over TLS. h2c does not apply; the standard library
// negotiates HTTP/2 via ALPN on TLS listeners.
func (e *Engine) ServeTLS(addr, certFile, keyFile string) error {
	if err := e.Build(); err != nil {
		return err
	}
	srv := e.newServer(addr, e)

	e.serverMu.Lock()
	e.srv = srv
	e.serverMu.Unlock()

	e.log.Info("https server listening", "addr", addr)
	return srv.ListenAndServeTLS(certFile, keyFile)
}

// newServer builds the http.Server used by Serve and ServeTLS.
func (e *Engine) newServer(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: e.serverTimeouts.readHeader,
		ReadTimeout:       e.serverTimeouts.read,
		WriteTimeout:      e.serverTimeouts.write,
		IdleTimeout:       e.serverTimeouts.idle,
	}
}

// Shutdown stops the server gracefully: stop accepting connections,
// drain in-flight requests until ctx's deadline, then cancel the
// contexts of whatever is still running. When ctx carries no deadline
// the engine's shutdown timeout applies.
//
// Shutdown is safe to call when the engine was never served; it then
// only drains and cancels.
func (e *Engine) Shutdown(ctx context.Context) error {
	e.serverMu.Lock()
	srv := e.srv
	e.srv = nil
	e.serverMu.Unlock()

	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.shutdownTimeout)
		defer cancel()
	}

	var err error
	if srv != nil {
		e.log.Info("shutting down http server", "timeout", e.shutdownTimeout)
		err = srv.Shutdown(ctx)
	} else {
		err = e.drain(ctx)
	}

	e.active.Range(func(_, v any) bool {
		v.(context.CancelFunc)()
		return true
	})
	if n := e.activeCount.Load(); n > 0 {
		e.log.Warn("shutdown cancelled in-flight requests", "count", n)
	}
	return err
}

// drain waits for the active-request count to reach zero or ctx to end.
func (e *Engine) drain(ctx context.Context) error {
	if e.activeCount.Load() == 0 {
		return nil
	}
	tick := time.NewTicker(5 * time.Millisecond)
	defer tick.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-tick.C:
			if e.activeCount.Load() == 0 {
				return nil
			}
		}
	}
}
