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

// Package cache provides the key-value repository the rate-limit
// service stores its counters in, with in-memory and Redis backends.
//
// The in-memory store suits single-process deployments:
//
//	repo := cache.NewMemory(10_000, 10*time.Minute)
//
// Redis shares state across processes:
//
//	client := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
//	repo := cache.NewRedis(client, "myapp:")
//
// Wrap any repository with Instrumented to publish hit, miss, write,
// and forget events on an events.Hub.
package cache
