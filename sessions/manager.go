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
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/kingwill101/routed/router"
)

// Default manager settings.
const (
	DefaultCookieName = "routed_session"
	DefaultLifetime   = 2 * time.Hour
)

// Store persists session state between requests.
type Store interface {
	// Load resolves an inbound cookie value into a session. Nil values
	// with a nil error mean no usable session: missing, expired, or
	// tampered. Errors are reserved for backend failures.
	Load(ctx context.Context, cookieValue string) (id string, values map[string]any, err error)

	// Save persists values under id for ttl and returns the cookie
	// value that will recover the session on the next request.
	Save(ctx context.Context, id string, values map[string]any, ttl time.Duration) (string, error)

	// Destroy drops any stored state for id.
	Destroy(ctx context.Context, id string) error
}

// Manager loads and saves sessions around the handler chain.
type Manager struct {
	store      Store
	cookieName string
	lifetime   time.Duration
	secure     bool
}

// Option configures a Manager.
type Option func(*Manager)

// WithCookieName sets the session cookie's name.
func WithCookieName(name string) Option {
	return func(m *Manager) {
		if name != "" {
			m.cookieName = name
		}
	}
}

// WithLifetime bounds how long an idle session stays valid. Each save
// renews the clock.
func WithLifetime(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.lifetime = d
		}
	}
}

// WithSecureCookies marks the session cookie Secure so browsers only
// send it over TLS.
func WithSecureCookies(secure bool) Option {
	return func(m *Manager) { m.secure = secure }
}

// NewManager wraps a store with cookie handling. Defaults: cookie
// "routed_session", lifetime two hours.
func NewManager(store Store, opts ...Option) *Manager {
	m := &Manager{
		store:      store,
		cookieName: DefaultCookieName,
		lifetime:   DefaultLifetime,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Middleware loads the session before the chain and persists it after.
// Fresh sessions that were never written are not persisted and set no
// cookie. Destroyed sessions expire the cookie and drop store state.
func (m *Manager) Middleware() router.MiddlewareFunc {
	return func(c *router.Context, next router.HandlerFunc) error {
		sess := m.load(c)
		c.Set(attributeKey, sess)

		err := next(c)

		if saveErr := m.save(c, sess); saveErr != nil {
			if err == nil {
				return router.WrapError(fmt.Errorf("session save: %w", saveErr))
			}
			c.Logger().Error("session save failed", "session_id", sess.ID, "error", saveErr)
		}
		return err
	}
}

// load resolves the inbound cookie into a session, starting a fresh one
// when the cookie is absent, expired, or unreadable.
func (m *Manager) load(c *router.Context) *Session {
	if value, err := c.Cookie(m.cookieName); err == nil && value != "" {
		id, values, loadErr := m.store.Load(c.Context(), value)
		switch {
		case loadErr != nil:
			c.Logger().Warn("session load failed, starting fresh", "error", loadErr)
		case values != nil:
			return &Session{ID: id, Values: values}
		}
	}
	return &Session{ID: uuid.NewString(), Values: map[string]any{}, fresh: true}
}

// save persists the session and sets the outbound cookie. Untouched
// fresh sessions are skipped entirely.
func (m *Manager) save(c *router.Context, sess *Session) error {
	ctx := c.Context()
	switch {
	case sess.destroyed:
		if err := m.store.Destroy(ctx, sess.ID); err != nil {
			return err
		}
		c.SetCookie(m.cookieName, "", -1, "/", "", m.secure, true)
		return nil
	case sess.fresh && !sess.dirty:
		return nil
	}

	value, err := m.store.Save(ctx, sess.ID, sess.Values, m.lifetime)
	if err != nil {
		return err
	}
	c.SetCookie(m.cookieName, value, int(m.lifetime.Seconds()), "/", "", m.secure, true)
	return nil
}
