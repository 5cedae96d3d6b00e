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
	"fmt"
	"net/http"
	"strings"

	"github.com/gorilla/websocket"
)

// UpgradeOption adjusts the WebSocket handshake.
type UpgradeOption func(*websocket.Upgrader)

// WithReadBufferSize sets the connection read buffer in bytes.
func WithReadBufferSize(n int) UpgradeOption {
	return func(u *websocket.Upgrader) { u.ReadBufferSize = n }
}

// WithWriteBufferSize sets the connection write buffer in bytes.
func WithWriteBufferSize(n int) UpgradeOption {
	return func(u *websocket.Upgrader) { u.WriteBufferSize = n }
}

// WithSubprotocols sets the server's preferred subprotocols in order.
func WithSubprotocols(protocols ...string) UpgradeOption {
	return func(u *websocket.Upgrader) { u.Subprotocols = protocols }
}

// WithCheckOrigin replaces the handshake origin check. The default
// accepts same-origin requests only, per gorilla/websocket.
func WithCheckOrigin(fn func(r *http.Request) bool) UpgradeOption {
	return func(u *websocket.Upgrader) { u.CheckOrigin = fn }
}

// IsWebSocket reports whether the request asks for a WebSocket upgrade.
func (c *Context) IsWebSocket() bool {
	return strings.EqualFold(c.Request.Header.Get("Upgrade"), "websocket") &&
		strings.Contains(strings.ToLower(c.Request.Header.Get("Connection")), "upgrade")
}

// Upgrade switches the connection to the WebSocket protocol and returns
// the connection. The response leaves the engine's buffered pipeline:
// body filters no longer apply and the handler owns the socket until it
// returns. Lifecycle events still fire; RequestFinished is emitted when
// the handler returns, whether or not the socket stays open.
//
// Example:
//
//	e.GET("/ws", func(c *router.Context) error {
//	    conn, err := c.Upgrade()
//	    if err != nil {
//	        return err
//	    }
//	    defer conn.Close()
//	    for {
//	        mt, msg, err := conn.ReadMessage()
//	        if err != nil {
//	            return nil
//	        }
//	        if err := conn.WriteMessage(mt, msg); err != nil {
//	            return nil
//	        }
//	    }
//	})
func (c *Context) Upgrade(opts ...UpgradeOption) (*websocket.Conn, error) {
	if !c.IsWebSocket() {
		return nil, NewError(KindValidationFailed, "not a websocket handshake")
	}

	up := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
	}
	for _, opt := range opts {
		opt(&up)
	}

	// The upgrader hijacks through the Response, which flips it to
	// direct mode so finalize leaves the socket alone.
	conn, err := up.Upgrade(c.Response, c.Request, nil)
	if err != nil {
		return nil, fmt.Errorf("websocket upgrade: %w", err)
	}
	return conn, nil
}
