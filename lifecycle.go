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

package routed

import (
	"context"
	"fmt"
	"sync"
)

// Hooks collects the application lifecycle callbacks. Registration
// closes when Start begins; after that the slices are read-only.
type Hooks struct {
	onStart    []func(context.Context) error // sequential, stops on first error
	onReady    []func()                      // async, panics recovered
	onShutdown []func(context.Context)       // LIFO order
	onStop     []func()                      // best effort
	frozen     bool
	mu         sync.Mutex
}

// freeze closes hook registration.
func (h *Hooks) freeze() {
	h.mu.Lock()
	h.frozen = true
	h.mu.Unlock()
}

// OnStart registers a hook that runs before the server starts
// listening. Hooks run sequentially and the first error aborts startup.
// Use it for initialization that must succeed, such as pinging a
// database or warming a cache.
//
// Example:
//
//	app.OnStart(func(ctx context.Context) error {
//	    return db.PingContext(ctx)
//	})
func (a *App) OnStart(fn func(context.Context) error) {
	a.hooks.mu.Lock()
	defer a.hooks.mu.Unlock()
	if a.hooks.frozen {
		panic("routed: cannot register hooks after Start")
	}
	a.hooks.onStart = append(a.hooks.onStart, fn)
}

// OnReady registers a hook that runs once the server is accepting
// connections. Hooks run asynchronously; panics are logged and do not
// stop the server. Use it for warmup tasks or service discovery
// registration.
func (a *App) OnReady(fn func()) {
	a.hooks.mu.Lock()
	defer a.hooks.mu.Unlock()
	if a.hooks.frozen {
		panic("routed: cannot register hooks after Start")
	}
	a.hooks.onReady = append(a.hooks.onReady, fn)
}

// OnShutdown registers a hook that runs during graceful shutdown, in
// reverse registration order, with a context bounded by the shutdown
// timeout. Use it for cleanup that must finish within the timeout,
// such as deregistering from a load balancer.
func (a *App) OnShutdown(fn func(context.Context)) {
	a.hooks.mu.Lock()
	defer a.hooks.mu.Unlock()
	if a.hooks.frozen {
		panic("routed: cannot register hooks after Start")
	}
	a.hooks.onShutdown = append(a.hooks.onShutdown, fn)
}

// OnStop registers a hook that runs after the server has stopped.
// Hooks run best-effort: panics are recovered and logged. Use it for
// final cleanup that needs no deadline.
func (a *App) OnStop(fn func()) {
	a.hooks.mu.Lock()
	defer a.hooks.mu.Unlock()
	if a.hooks.frozen {
		panic("routed: cannot register hooks after Start")
	}
	a.hooks.onStop = append(a.hooks.onStop, fn)
}

// executeStartHooks runs the OnStart hooks sequentially, stopping on
// the first error.
func (a *App) executeStartHooks(ctx context.Context) error {
	a.hooks.mu.Lock()
	hooks := make([]func(context.Context) error, len(a.hooks.onStart))
	copy(hooks, a.hooks.onStart)
	a.hooks.mu.Unlock()

	for i, hook := range hooks {
		if err := hook(ctx); err != nil {
			return fmt.Errorf("OnStart hook %d failed: %w", i, err)
		}
	}
	return nil
}

// executeReadyHooks fires the OnReady hooks, one goroutine each, with
// panic recovery so a misbehaving hook cannot take the server down.
func (a *App) executeReadyHooks() {
	a.hooks.mu.Lock()
	hooks := make([]func(), len(a.hooks.onReady))
	copy(hooks, a.hooks.onReady)
	a.hooks.mu.Unlock()

	for _, hook := range hooks {
		go func() {
			defer func() {
				if r := recover(); r != nil {
					a.log.Error("OnReady hook panic", "error", r)
				}
			}()
			hook()
		}()
	}
}

// executeShutdownHooks runs the OnShutdown hooks in reverse order.
func (a *App) executeShutdownHooks(ctx context.Context) {
	a.hooks.mu.Lock()
	hooks := make([]func(context.Context), len(a.hooks.onShutdown))
	copy(hooks, a.hooks.onShutdown)
	a.hooks.mu.Unlock()

	for i := len(hooks) - 1; i >= 0; i-- {
		hooks[i](ctx)
	}
}

// executeStopHooks runs the OnStop hooks best-effort, recovering any
// panic.
func (a *App) executeStopHooks() {
	a.hooks.mu.Lock()
	hooks := make([]func(), len(a.hooks.onStop))
	copy(hooks, a.hooks.onStop)
	a.hooks.mu.Unlock()

	for _, hook := range hooks {
		func() {
			defer func() {
				if r := recover(); r != nil {
					a.log.Warn("OnStop hook panic", "error", r)
				}
			}()
			hook()
		}()
	}
}
