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
	"sync"
)

// Registry maps names to middleware so that chains can reference
// middleware declaratively via UseNamed and exclude it by name via
// WithoutMiddleware. An engine always carries a registry; supply a
// shared one with WithRegistry to reuse registrations across engines.
//
// Example:
//
//	reg := router.NewRegistry()
//	reg.MustRegister("auth", authMiddleware)
//
//	e := router.MustNew(router.WithRegistry(reg))
//	e.GET("/admin", adminHandler).UseNamed("auth")
type Registry struct {
	mu      sync.RWMutex
	entries map[string]MiddlewareFunc
}

// NewRegistry returns an empty middleware registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]MiddlewareFunc)}
}

// Register adds a named middleware. Registering an empty name, a nil
// function, or a name that is already taken returns an error.
func (r *Registry) Register(name string, fn MiddlewareFunc) error {
	if name == "" {
		return fmt.Errorf("middleware name must not be empty")
	}
	if fn == nil {
		return fmt.Errorf("middleware %q: %w", name, ErrNilHandler)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.entries[name]; exists {
		return fmt.Errorf("middleware %q already registered", name)
	}
	r.entries[name] = fn
	return nil
}

// MustRegister is Register that panics on error. Intended for
// registration at startup.
func (r *Registry) MustRegister(name string, fn MiddlewareFunc) {
	if err := r.Register(name, fn); err != nil {
		panic(err)
	}
}

// Lookup returns the middleware registered under name.
func (r *Registry) Lookup(name string) (MiddlewareFunc, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	fn, ok := r.entries[name]
	return fn, ok
}

// Names returns the registered names in no particular order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.entries))
	for name := range r.entries {
		names = append(names, name)
	}
	return names
}
