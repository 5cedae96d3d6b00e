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

// Package sessions keeps per-visitor state across requests behind a
// single cookie, with in-memory, signed-cookie, and file stores.
//
// The manager runs as middleware: it loads the session named by the
// inbound cookie before the chain and persists it afterwards. Handlers
// reach the session through Current:
//
//	manager := sessions.NewManager(sessions.NewMemoryStore(0, 2*time.Hour))
//	engine.Use(manager.Middleware())
//
//	engine.GET("/login", func(c *router.Context) error {
//	    sess := sessions.Current(c)
//	    sess.Set("user_id", 42)
//	    return c.NoContent()
//	})
//
// A session that is never written is never persisted, so crawlers and
// anonymous traffic do not allocate store entries or receive cookies.
//
// # Stores
//
// NewMemoryStore keeps sessions in process; state is lost on restart
// and not shared between replicas. NewFileStore writes one JSON file
// per session under a directory. NewCookieStore keeps the whole
// payload in the cookie itself, HMAC-signed (or AES-GCM encrypted)
// with rotatable keys, so no server-side storage is needed.
//
// File and cookie stores serialize values as JSON: numbers come back
// as float64 and nested values as map[string]any or []any. Store
// JSON-shaped values to stay portable across stores.
package sessions
