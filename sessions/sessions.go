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

package sessions

import (
	"github.com/kingwill101/routed/router"
)

// attributeKey is where the middleware parks the session in the
// request's attribute bag.
const attributeKey = "routed.session"

// Session is one visitor's state for the duration of a request. It is
// not safe for concurrent use; each request gets its own instance.
type Session struct {
	// ID identifies the session across requests.
	ID string

	// Values is the session payload. Mutate it through Set and Delete
	// so the manager knows the session needs persisting.
	Values map[string]any

	fresh     bool
	dirty     bool
	destroyed bool
}

// Get returns the value under key.
func (s *Session) Get(key string) (any, bool) {
	v, ok := s.Values[key]
	return v, ok
}

// GetString returns the string under key, or "" when absent or not a
// string.
func (s *Session) GetString(key string) string {
	v, _ := s.Values[key].(string)
	return v
}

// Set stores value under key and marks the session for persisting.
func (s *Session) Set(key string, value any) {
	s.Values[key] = value
	s.dirty = true
}

// Delete removes key and marks the session for persisting.
func (s *Session) Delete(key string) {
	if _, ok := s.Values[key]; !ok {
		return
	}
	delete(s.Values, key)
	s.dirty = true
}

// Pull returns the value under key and removes it, for one-shot flash
// values.
func (s *Session) Pull(key string) (any, bool) {
	v, ok := s.Values[key]
	if ok {
		delete(s.Values, key)
		s.dirty = true
	}
	return v, ok
}

// Fresh reports whether the session was created during this request
// rather than loaded from the store.
func (s *Session) Fresh() bool { return s.fresh }

// Destroy drops the session: server-side state is removed and the
// cookie expired once the request finishes.
func (s *Session) Destroy() {
	s.destroyed = true
}

// Destroyed reports whether Destroy was called.
func (s *Session) Destroyed() bool { return s.destroyed }

// Current returns the request's session, or nil when the session
// middleware is not installed.
func Current(c *router.Context) *Session {
	v, ok := c.Get(attributeKey)
	if !ok {
		return nil
	}
	sess, _ := v.(*Session)
	return sess
}
