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

// Package metrics turns hub events into Prometheus series.
//
// The observer subscribes to request, rate-limit, and cache signals and
// maintains five instruments: requests_total (by method and status),
// request_duration_seconds, active_requests, ratelimit_decisions_total
// (by policy and outcome), and cache_ops_total (by operation). Nothing
// in the engine knows about it; everything arrives over the hub.
//
//	reg := prometheus.NewRegistry()
//	hub := events.NewHub()
//	m, err := metrics.New(reg, hub)
//	defer m.Close()
//
//	r := router.MustNew(router.WithHub(hub))
//	r.GET("/metrics", router.WrapHandler(metrics.Handler(reg)))
package metrics
