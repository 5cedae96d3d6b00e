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

// Package requestid customizes request correlation IDs.
//
// Every request already gets an ID from the engine: the inbound
// X-Request-Id header when present, a fresh v4 UUID otherwise. Use this
// middleware when that default is not enough — to generate time-ordered
// v7 UUIDs or ULIDs, to move the ID to another header, or to ignore
// client-supplied values on untrusted edges.
//
//	e := router.MustNew()
//	e.Use(requestid.New(requestid.WithULID()))
//
// Handlers read the resolved ID through Context.RequestID.
package requestid
