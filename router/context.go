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
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"

	"go.opentelemetry.io/otel/trace"

	"github.com/kingwill101/routed/events"
)

// Context carries one request through the middleware chain: the
// transport request, the buffered response, extracted route parameters,
// and a per-request attribute bag.
//
// Context is not safe for concurrent use and must not be retained after
// the handler returns; contexts are pooled and reused across requests.
// Copy out whatever an async task needs before starting it.
//
// Example:
//
//	func getUser(c *router.Context) error {
//	    id, _ := c.ParamInt64("id")
//	    user, err := store.Find(c.Context(), id)
//	    if err != nil {
//	        return err
//	    }
//	    return c.JSON(http.StatusOK, user)
//	}
type Context struct {
	Request  *http.Request
	Response *Response

	engine      *Engine
	route       *Route
	params      Params
	pattern     string
	disposition matchResult

	requestID string
	clientIP  string

	body         []byte
	bodyConsumed bool
	bodyErr      error

	keys map[string]any

	logger *slog.Logger
}

// reset prepares a pooled context for a new request.
func (c *Context) reset(engine *Engine, w http.ResponseWriter, req *http.Request) {
	c.Request = req
	if c.Response == nil {
		c.Response = newResponse(w)
	} else {
		c.Response.reset(w)
	}
	c.engine = engine
	c.route = nil
	c.params = nil
	c.pattern = ""
	c.disposition = matchResult{}
	c.requestID = ""
	c.clientIP = ""
	c.body = nil
	c.bodyConsumed = false
	c.bodyErr = nil
	c.keys = nil
	c.logger = nil
}

// Engine returns the engine serving this request.
func (c *Context) Engine() *Engine { return c.engine }

// Hub returns the engine's event hub.
func (c *Context) Hub() *events.Hub { return c.engine.hub }

// Context returns the request-scoped context. It is cancelled when the
// client disconnects or the engine shuts down past its drain deadline.
func (c *Context) Context() context.Context {
	return c.Request.Context()
}

// Method returns the request method.
func (c *Context) Method() string { return c.Request.Method }

// Path returns the normalized request path that was matched against.
func (c *Context) Path() string { return c.Request.URL.Path }

// Route returns the matched route, or nil for not-found dispositions.
func (c *Context) Route() *Route { return c.route }

// Pattern returns the matched route's pattern, or "" when no route
// matched.
func (c *Context) Pattern() string { return c.pattern }

// Params returns the ordered route parameters.
func (c *Context) Params() Params { return c.params }

// Param returns the raw value of a route parameter, or "" when absent.
func (c *Context) Param(name string) string {
	return c.params.String(name)
}

// ParamInt64 returns the coerced value of an int-typed parameter.
func (c *Context) ParamInt64(name string) (int64, bool) {
	return c.params.Int64(name)
}

// ParamFloat64 returns the coerced value of a double-typed parameter.
func (c *Context) ParamFloat64(name string) (float64, bool) {
	return c.params.Float64(name)
}

// RequestID returns the request's correlation ID: the X-Request-Id
// header when the client sent one, otherwise a generated UUID.
func (c *Context) RequestID() string { return c.requestID }

// SetRequestID overrides the correlation ID for the rest of the
// request. Middleware that rejects client-supplied IDs or uses its own
// generator calls this so later log lines stay coherent.
func (c *Context) SetRequestID(id string) { c.requestID = id }

// ClientIP returns the resolved client address. Resolution follows the
// engine's trusted proxy configuration and happens once, before
// routing.
func (c *Context) ClientIP() string { return c.clientIP }

// SetClientIP overrides the resolved client address for the rest of
// the request, including rate-limit identity resolution.
func (c *Context) SetClientIP(ip string) { c.clientIP = ip }

// Query returns the first query value for key, or "".
func (c *Context) Query(key string) string {
	return c.Request.URL.Query().Get(key)
}

// QueryDefault returns the first query value for key, or defaultValue
// when the key is absent.
func (c *Context) QueryDefault(key, defaultValue string) string {
	values := c.Request.URL.Query()
	if _, ok := values[key]; !ok {
		return defaultValue
	}
	return values.Get(key)
}

// QueryValues returns all query parameters.
func (c *Context) QueryValues() url.Values {
	return c.Request.URL.Query()
}

// GetHeader returns a request header value.
func (c *Context) GetHeader(key string) string {
	return c.Request.Header.Get(key)
}

// Header sets a response header. An empty value deletes the header.
func (c *Context) Header(key, value string) {
	if value == "" {
		c.Response.Header().Del(key)
		return
	}
	c.Response.Header().Set(key, value)
}

// Status sets the buffered response status.
func (c *Context) Status(code int) {
	c.Response.Status(code)
}

// Cookie returns the named request cookie's value.
func (c *Context) Cookie(name string) (string, error) {
	cookie, err := c.Request.Cookie(name)
	if err != nil {
		return "", err
	}
	value, _ := url.QueryUnescape(cookie.Value)
	return value, nil
}

// SetCookie records a response cookie. Writing the same cookie name
// again replaces the earlier value; the last write wins.
//
// Example:
//
//	c.SetCookie("theme", "dark", 3600, "/", "", false, true)
func (c *Context) SetCookie(name, value string, maxAge int, path, domain string, secure, httpOnly bool) {
	if path == "" {
		path = "/"
	}
	c.Response.SetCookie(&http.Cookie{
		Name:     name,
		Value:    url.QueryEscape(value),
		MaxAge:   maxAge,
		Path:     path,
		Domain:   domain,
		Secure:   secure,
		HttpOnly: httpOnly,
	})
}

// Set stores a value in the per-request attribute bag.
func (c *Context) Set(key string, value any) {
	if c.keys == nil {
		c.keys = make(map[string]any)
	}
	c.keys[key] = value
}

// Get returns a value from the attribute bag.
func (c *Context) Get(key string) (any, bool) {
	v, ok := c.keys[key]
	return v, ok
}

// MustGet returns a value from the attribute bag, panicking when the
// key is absent.
func (c *Context) MustGet(key string) any {
	if v, ok := c.keys[key]; ok {
		return v
	}
	panic(fmt.Sprintf("router: key %q does not exist", key))
}

// Body reads and caches the request body. Repeated calls return the
// same bytes; the underlying reader is restored so form parsing still
// works afterwards. When the engine enforces a body size cap, crossing
// it surfaces as a 413 error.
func (c *Context) Body() ([]byte, error) {
	if c.bodyConsumed {
		return c.body, c.bodyErr
	}
	c.bodyConsumed = true

	if c.Request.Body == nil {
		return nil, nil
	}
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			c.bodyErr = NewError(KindBodyTooLarge, "request body too large")
		} else {
			c.bodyErr = fmt.Errorf("%w: %w", ErrBodyConsumed, err)
		}
		return nil, c.bodyErr
	}
	c.body = body
	c.Request.Body = io.NopCloser(bytes.NewReader(body))
	return c.body, nil
}

// BodyConsumed reports whether the body has been read.
func (c *Context) BodyConsumed() bool { return c.bodyConsumed }

// FormValue returns the named form field, parsing the form on first
// use.
func (c *Context) FormValue(key string) string {
	return c.Request.FormValue(key)
}

// Redirect responds with a redirect to location.
//
// Example:
//
//	return c.Redirect(http.StatusFound, "/login")
func (c *Context) Redirect(status int, location string) error {
	if status < 300 || status > 308 {
		return fmt.Errorf("router: invalid redirect status %d", status)
	}
	c.Header("Location", location)
	c.Status(status)
	return nil
}

// Logger returns a request-scoped logger carrying the request ID,
// method, and path. When the request context carries an OpenTelemetry
// span, trace_id and span_id are included so log lines join up with
// traces.
func (c *Context) Logger() *slog.Logger {
	if c.logger == nil {
		attrs := []any{
			"request_id", c.requestID,
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
		}
		if sc := trace.SpanContextFromContext(c.Request.Context()); sc.IsValid() {
			attrs = append(attrs,
				"trace_id", sc.TraceID().String(),
				"span_id", sc.SpanID().String(),
			)
		}
		c.logger = c.engine.log.With(attrs...)
	}
	return c.logger
}
