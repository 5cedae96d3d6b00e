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
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/goccy/go-yaml"
	"github.com/vmihailenco/msgpack/v5"
)

// H is shorthand for ad-hoc response maps.
//
// Example:
//
//	return c.JSON(http.StatusOK, router.H{"status": "ok"})
type H map[string]any

// render records the status (unless one is already set) and writes body
// into the response buffer.
func (c *Context) render(code int, body []byte) error {
	if !c.Response.Written() {
		c.Response.Status(code)
	}
	_, err := c.Response.Write(body)
	return err
}

// JSON sends obj encoded as JSON. The value is encoded before any
// response state changes, so an encoding failure leaves the response
// untouched for the error handler.
//
// Example:
//
//	return c.JSON(http.StatusOK, user)
func (c *Context) JSON(code int, obj any) error {
	var buf bytes.Buffer
	buf.Grow(256)
	if err := json.NewEncoder(&buf).Encode(obj); err != nil {
		return fmt.Errorf("json encoding failed for type %T: %w", obj, err)
	}
	c.Response.Header().Set("Content-Type", "application/json; charset=utf-8")
	return c.render(code, buf.Bytes())
}

// IndentedJSON sends obj as indented JSON, for endpoints meant to be
// read by humans. Use JSON for compact output.
func (c *Context) IndentedJSON(code int, obj any) error {
	body, err := json.MarshalIndent(obj, "", "  ")
	if err != nil {
		return fmt.Errorf("json encoding failed for type %T: %w", obj, err)
	}
	c.Response.Header().Set("Content-Type", "application/json; charset=utf-8")
	return c.render(code, body)
}

// String sends a plain-text body. An already-set Content-Type is kept.
func (c *Context) String(code int, value string) error {
	if c.Response.Header().Get("Content-Type") == "" {
		c.Response.Header().Set("Content-Type", "text/plain; charset=utf-8")
	}
	return c.render(code, []byte(value))
}

// Stringf sends a formatted plain-text body.
//
// Example:
//
//	return c.Stringf(http.StatusOK, "hello %s", name)
func (c *Context) Stringf(code int, format string, values ...any) error {
	return c.String(code, fmt.Sprintf(format, values...))
}

// HTML sends an HTML body.
func (c *Context) HTML(code int, html string) error {
	c.Response.Header().Set("Content-Type", "text/html; charset=utf-8")
	return c.render(code, []byte(html))
}

// YAML sends obj encoded as YAML.
func (c *Context) YAML(code int, obj any) error {
	body, err := yaml.Marshal(obj)
	if err != nil {
		return fmt.Errorf("yaml encoding failed for type %T: %w", obj, err)
	}
	c.Response.Header().Set("Content-Type", "application/x-yaml; charset=utf-8")
	return c.render(code, body)
}

// Msgpack sends obj encoded as MessagePack.
func (c *Context) Msgpack(code int, obj any) error {
	body, err := msgpack.Marshal(obj)
	if err != nil {
		return fmt.Errorf("msgpack encoding failed for type %T: %w", obj, err)
	}
	c.Response.Header().Set("Content-Type", "application/msgpack")
	return c.render(code, body)
}

// Data sends raw bytes under a caller-chosen content type, defaulting
// to application/octet-stream.
func (c *Context) Data(code int, contentType string, data []byte) error {
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	c.Response.Header().Set("Content-Type", contentType)
	return c.render(code, data)
}

// DataFromReader streams from r to the client in direct mode, skipping
// the response buffer and body filters. contentLength < 0 omits the
// Content-Length header.
func (c *Context) DataFromReader(code int, contentLength int64, contentType string, r io.Reader) error {
	if contentType != "" {
		c.Response.Header().Set("Content-Type", contentType)
	}
	if contentLength >= 0 {
		c.Response.Header().Set("Content-Length", fmt.Sprintf("%d", contentLength))
	}
	c.Response.Status(code)
	c.Response.markDirect()
	_, err := io.Copy(c.Response, r)
	if err != nil {
		return fmt.Errorf("streaming response body: %w", err)
	}
	return nil
}

// NoContent sends 204 with no body. It returns nil so handlers can end
// with "return c.NoContent()".
func (c *Context) NoContent() error {
	c.Response.Status(http.StatusNoContent)
	return nil
}
