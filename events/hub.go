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

package events

import (
	"fmt"
	"io"
	"log/slog"
	"runtime/debug"
	"slices"
	"sync"
)

// noopLogger discards hub diagnostics when no logger is configured.
var noopLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

// Hub routes events to subscribed handlers. One signal exists per event
// name; handlers for a signal run sequentially in registration order on
// the emitting goroutine.
//
// A Hub is safe for concurrent use. Emission holds no locks while handlers
// run, so handlers may subscribe, cancel, or emit without deadlocking.
type Hub struct {
	mu    sync.RWMutex
	subs  map[string][]*Subscription
	sinks []*Subscription
	log   *slog.Logger
}

// HubOption configures a Hub.
type HubOption func(*Hub)

// WithLogger sets the logger used for hub diagnostics, such as panics
// from UnhandledSignalError handlers that cannot be re-published.
func WithLogger(logger *slog.Logger) HubOption {
	return func(h *Hub) {
		if logger != nil {
			h.log = logger
		}
	}
}

// NewHub creates an empty hub.
func NewHub(opts ...HubOption) *Hub {
	h := &Hub{
		subs: make(map[string][]*Subscription),
		log:  noopLogger,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Subscription identifies one registered handler. Cancel removes exactly
// this registration; other handlers for the same signal are unaffected.
type Subscription struct {
	hub    *Hub
	signal string
	key    string
	sender any
	sink   bool
	fn     func(Event)
}

// Key returns the slot key the subscription was registered under, or the
// empty string.
func (s *Subscription) Key() string { return s.key }

// Cancel removes the subscription from its hub. Canceling twice is a
// no-op. Cancel may be called from inside a handler; the current emission
// completes with the handler set it started with.
func (s *Subscription) Cancel() {
	if s == nil || s.hub == nil {
		return
	}
	h := s.hub
	h.mu.Lock()
	defer h.mu.Unlock()
	if s.sink {
		if i := slices.Index(h.sinks, s); i >= 0 {
			h.sinks = slices.Delete(slices.Clone(h.sinks), i, i+1)
		}
		return
	}
	list := h.subs[s.signal]
	if i := slices.Index(list, s); i >= 0 {
		h.subs[s.signal] = slices.Delete(slices.Clone(list), i, i+1)
	}
}

// SubscribeOption configures a subscription.
type SubscribeOption func(*Subscription)

// WithSender restricts delivery to events published via [Hub.EmitFrom]
// with a sender identical to s. Identity uses Go equality, so senders
// should be pointers or other comparable values.
func WithSender(s any) SubscribeOption {
	return func(sub *Subscription) {
		sub.sender = s
	}
}

// WithKey names a per-signal slot for the subscription. Registering a
// second handler with the same key on the same signal replaces the first
// one in place, keeping its position in the delivery order.
func WithKey(key string) SubscribeOption {
	return func(sub *Subscription) {
		sub.key = key
	}
}

// On subscribes fn to the signal carried by event type T.
//
// Example:
//
//	events.On(hub, func(ev events.RouteMatched) {
//	    fmt.Println("matched", ev.Pattern)
//	}, events.WithKey("audit"))
func On[T Event](h *Hub, fn func(T), opts ...SubscribeOption) *Subscription {
	var zero T
	return h.subscribe(zero.Name(), false, func(ev Event) {
		if v, ok := ev.(T); ok {
			fn(v)
		}
	}, opts...)
}

// OnAny subscribes fn to every signal the hub carries. Sinks run after
// the signal's own handlers, in registration order. Sink panics follow
// the same recovery rules as regular handlers.
func (h *Hub) OnAny(fn func(Event), opts ...SubscribeOption) *Subscription {
	return h.subscribe("", true, fn, opts...)
}

func (h *Hub) subscribe(signal string, sink bool, fn func(Event), opts ...SubscribeOption) *Subscription {
	s := &Subscription{hub: h, signal: signal, sink: sink, fn: fn}
	for _, opt := range opts {
		opt(s)
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if sink {
		if s.key != "" {
			for i, old := range h.sinks {
				if old.key == s.key {
					sinks := slices.Clone(h.sinks)
					sinks[i] = s
					h.sinks = sinks
					return s
				}
			}
		}
		h.sinks = append(slices.Clip(h.sinks), s)
		return s
	}
	if s.key != "" {
		for i, old := range h.subs[signal] {
			if old.key == s.key {
				list := slices.Clone(h.subs[signal])
				list[i] = s
				h.subs[signal] = list
				return s
			}
		}
	}
	h.subs[signal] = append(slices.Clip(h.subs[signal]), s)
	return s
}

// Emit publishes ev with no sender.
func (h *Hub) Emit(ev Event) {
	h.EmitFrom(nil, ev)
}

// EmitFrom publishes ev on behalf of sender. Subscriptions registered
// with [WithSender] receive the event only when their sender is identical
// to the one given here.
//
// Delivery is synchronous. A panicking handler is recovered, its panic
// re-published as [UnhandledSignalError], and remaining handlers still
// run.
func (h *Hub) EmitFrom(sender any, ev Event) {
	if h == nil {
		return
	}

	h.mu.RLock()
	subs := h.subs[ev.Name()]
	sinks := h.sinks
	h.mu.RUnlock()

	for _, s := range subs {
		if s.sender != nil && s.sender != sender {
			continue
		}
		h.dispatch(s, sender, ev)
	}
	for _, s := range sinks {
		if s.sender != nil && s.sender != sender {
			continue
		}
		h.dispatch(s, sender, ev)
	}
}

// dispatch invokes one handler with panic recovery. Panics from
// UnhandledSignalError handlers are logged instead of re-published,
// cutting the recursion off after one level.
func (h *Hub) dispatch(s *Subscription, sender any, ev Event) {
	defer func() {
		r := recover()
		if r == nil {
			return
		}
		err, ok := r.(error)
		if !ok {
			err = fmt.Errorf("signal handler panic: %v", r)
		}
		if ev.Name() == SignalUnhandledError {
			h.log.Error("unhandled-signal-error handler panicked",
				slog.String("signal", ev.Name()),
				slog.Any("error", err),
			)
			return
		}
		h.EmitFrom(sender, UnhandledSignalError{
			Base:   NewBase(),
			Signal: ev.Name(),
			Err:    err,
			Stack:  debug.Stack(),
			Sender: sender,
			Key:    s.key,
		})
	}()
	s.fn(ev)
}

// Len reports the number of handlers registered for the named signal,
// not counting OnAny sinks.
func (h *Hub) Len(signal string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[signal])
}
