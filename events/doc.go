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

// Package events provides the lifecycle signal hub used by the engine.
//
// A Hub carries one signal per event name. Handlers subscribe to a single
// event type with the generic [On] function, or to every event with
// [Hub.OnAny]. Emission is synchronous: handlers run on the emitting
// goroutine, in registration order, and a panicking handler never reaches
// the emitter. Panics are recovered and re-published as
// [UnhandledSignalError] so observers can report them.
//
// # Quick Start
//
//	hub := events.NewHub()
//
//	events.On(hub, func(ev events.RequestFinished) {
//	    log.Printf("%s %s -> %d in %s", ev.Method, ev.Path, ev.Status, ev.Duration)
//	})
//
//	hub.Emit(events.RequestFinished{
//	    Base:   events.NewBase(),
//	    Method: "GET",
//	    Path:   "/users/42",
//	    Status: 200,
//	})
//
// # Scoped Subscriptions
//
// [WithSender] restricts delivery to events published through
// [Hub.EmitFrom] with an identical sender value. [WithKey] names a
// per-signal slot: subscribing again with the same key replaces the
// previous handler instead of adding a second one.
//
// # Delivery Guarantees
//
//   - Handlers for one signal run sequentially in registration order.
//   - A handler panic is recovered; sibling handlers still run.
//   - Recovered panics are re-published as [UnhandledSignalError].
//   - Panics inside UnhandledSignalError handlers are logged and dropped,
//     never re-published, so error handling cannot recurse.
package events
