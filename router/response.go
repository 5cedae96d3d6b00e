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
	"bufio"
	"bytes"
	"net"
	"net/http"
	"strconv"
)

// BodyFilter transforms the buffered response body before it is
// written to the wire. Filters run in registration order during
// finalize and may also adjust status and headers; returning nil
// produces an empty body. Filters never run in direct (streaming)
// mode.
type BodyFilter func(c *Context, body []byte) []byte

// Response buffers status, headers, and body until the handler chain
// returns, so middleware can rewrite any of them after the handler ran.
// Streaming APIs (File, Flush, Hijack, WebSocket upgrades) switch the
// response to direct mode, where writes pass straight through and body
// filters no longer apply.
//
// Response implements http.ResponseWriter, so standard-library helpers
// can write through it.
type Response struct {
	w       http.ResponseWriter
	status  int
	header  http.Header
	buf     bytes.Buffer
	cookies []*http.Cookie
	filters []BodyFilter

	direct      bool
	wroteHeader bool // direct mode: header flushed to the wire
	hijacked    bool
	finished    bool
	size        int64
}

// newResponse wraps an http.ResponseWriter.
func newResponse(w http.ResponseWriter) *Response {
	r := &Response{}
	r.reset(w)
	return r
}

// reset prepares the response for reuse on a new request.
func (r *Response) reset(w http.ResponseWriter) {
	r.w = w
	r.status = 0
	r.header = make(http.Header)
	r.buf.Reset()
	r.cookies = r.cookies[:0]
	r.filters = r.filters[:0]
	r.direct = false
	r.wroteHeader = false
	r.hijacked = false
	r.finished = false
	r.size = 0
}

// Header returns the response header map. Mutations are effective until
// the response is finalized (buffered mode) or the header is flushed
// (direct mode).
func (r *Response) Header() http.Header {
	return r.header
}

// Status sets the buffered status code. In direct mode it only takes
// effect if the header has not been flushed yet.
func (r *Response) Status(code int) {
	if r.wroteHeader {
		return
	}
	r.status = code
}

// StatusCode returns the status that has been set, or 0 when none was.
func (r *Response) StatusCode() int {
	return r.status
}

// WriteHeader implements http.ResponseWriter. In buffered mode it only
// records the status; in direct mode it flushes headers to the wire.
func (r *Response) WriteHeader(code int) {
	if !r.direct {
		r.Status(code)
		return
	}
	r.flushHeader(code)
}

// Write appends to the buffered body, or writes through in direct mode.
func (r *Response) Write(p []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	if !r.direct {
		return r.buf.Write(p)
	}
	if !r.wroteHeader {
		r.flushHeader(r.status)
	}
	n, err := r.w.Write(p)
	r.size += int64(n)
	return n, err
}

// WriteString writes a string body.
func (r *Response) WriteString(s string) (int, error) {
	return r.Write([]byte(s))
}

// Written reports whether a status was set or any body bytes written.
func (r *Response) Written() bool {
	return r.status != 0 || r.buf.Len() > 0 || r.size > 0 || r.wroteHeader
}

// BodyBytes returns the currently buffered body. Empty in direct mode.
func (r *Response) BodyBytes() []byte {
	return r.buf.Bytes()
}

// Size returns the number of body bytes sent to the wire so far.
func (r *Response) Size() int64 {
	return r.size
}

// Truncate discards the buffered status and body so the response can be
// rewritten, for example by middleware replacing a stale handler result.
// Headers and cookies are kept. It is a no-op in direct mode or after
// the header has been flushed.
func (r *Response) Truncate() {
	if r.direct || r.wroteHeader {
		return
	}
	r.status = 0
	r.buf.Reset()
}

// Hijacked reports whether the underlying connection was taken over.
func (r *Response) Hijacked() bool {
	return r.hijacked
}

// AddBodyFilter registers a transform over the buffered body, applied
// in registration order when the response finalizes.
//
// Example:
//
//	c.Response.AddBodyFilter(func(c *router.Context, body []byte) []byte {
//	    return bytes.ReplaceAll(body, []byte("secret"), []byte("[redacted]"))
//	})
func (r *Response) AddBodyFilter(f BodyFilter) {
	if f != nil {
		r.filters = append(r.filters, f)
	}
}

// SetCookie records a cookie. Setting a cookie with a name that was
// already set replaces the earlier one; the last write wins.
func (r *Response) SetCookie(cookie *http.Cookie) {
	for i, existing := range r.cookies {
		if existing.Name == cookie.Name {
			r.cookies[i] = cookie
			return
		}
	}
	r.cookies = append(r.cookies, cookie)
}

// Flush switches to direct mode and forwards the flush, for handlers
// that stream (server-sent events, long polling). Buffered body bytes
// are flushed first.
func (r *Response) Flush() {
	if !r.direct {
		pending := append([]byte(nil), r.buf.Bytes()...)
		r.markDirect()
		if len(pending) > 0 {
			_, _ = r.Write(pending)
		}
	}
	if !r.wroteHeader {
		r.flushHeader(r.statusOrDefault())
	}
	if f, ok := r.w.(http.Flusher); ok {
		f.Flush()
	}
}

// Hijack implements http.Hijacker for WebSocket upgrades and raw TCP
// takeover. After a hijack the engine stops writing to the response.
func (r *Response) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hj, ok := r.w.(http.Hijacker)
	if !ok {
		return nil, nil, ErrNotHijackable
	}
	conn, rw, err := hj.Hijack()
	if err == nil {
		r.hijacked = true
		r.direct = true
		r.wroteHeader = true
	}
	return conn, rw, err
}

// markDirect switches to pass-through mode. Any buffered body is
// dropped; headers accumulated so far still apply.
func (r *Response) markDirect() {
	r.direct = true
	r.buf.Reset()
}

// directWriter switches to direct mode and returns the response itself
// as the writer streaming helpers should target.
func (r *Response) directWriter() http.ResponseWriter {
	r.markDirect()
	return r
}

func (r *Response) statusOrDefault() int {
	if r.status == 0 {
		return http.StatusOK
	}
	return r.status
}

// flushHeader sends cookies, headers, and the status line to the wire.
func (r *Response) flushHeader(code int) {
	if r.wroteHeader {
		return
	}
	r.status = code
	r.appendCookies()
	dst := r.w.Header()
	for k, vv := range r.header {
		dst[k] = vv
	}
	r.w.WriteHeader(code)
	r.wroteHeader = true
}

// appendCookies serializes recorded cookies into Set-Cookie headers.
func (r *Response) appendCookies() {
	for _, cookie := range r.cookies {
		if v := cookie.String(); v != "" {
			r.header.Add("Set-Cookie", v)
		}
	}
	r.cookies = r.cookies[:0]
}

// finalize runs body filters and writes the buffered response. It is
// idempotent and a no-op after a hijack or in flushed direct mode.
func (r *Response) finalize(c *Context) {
	if r.finished || r.hijacked {
		return
	}
	r.finished = true

	if r.direct {
		if !r.wroteHeader {
			r.flushHeader(r.statusOrDefault())
		}
		return
	}

	body := r.buf.Bytes()
	for _, f := range r.filters {
		body = f(c, body)
	}

	code := r.statusOrDefault()
	if r.header.Get("Content-Length") == "" && bodyAllowedForStatus(code) {
		r.header.Set("Content-Length", strconv.Itoa(len(body)))
	}
	r.flushHeader(code)

	if len(body) > 0 && bodyAllowedForStatus(code) {
		n, _ := r.w.Write(body)
		r.size += int64(n)
	}
}

// bodyAllowedForStatus mirrors net/http: 1xx, 204, and 304 responses
// carry no body.
func bodyAllowedForStatus(code int) bool {
	switch {
	case code >= 100 && code <= 199:
		return false
	case code == http.StatusNoContent:
		return false
	case code == http.StatusNotModified:
		return false
	}
	return true
}

var (
	_ http.ResponseWriter = (*Response)(nil)
	_ http.Flusher        = (*Response)(nil)
	_ http.Hijacker       = (*Response)(nil)
)
