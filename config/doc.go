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

// Package config loads and merges configuration from files, raw
// content, environment variables, and Consul, and resolves typed
// option sections for the router, rate limiter, and session manager.
//
// Sources merge in registration order with later sources overriding
// earlier ones, deep-merging nested maps. Keys are case-insensitive
// and addressed with dotted paths.
//
// # Basic Usage
//
//	cfg := config.MustNew(
//	    config.WithFile("config.yaml"),
//	    config.WithEnv("ROUTED_"),
//	)
//	cfg.MustLoad(context.Background())
//
//	port := cfg.IntOr("server.port", 8080)
//	debug := cfg.Bool("debug")
//
// # Environment Variables
//
// After the prefix is stripped, a double underscore separates nesting
// levels while single underscores stay part of the key:
//
//	ROUTED_SERVER__PORT=8080                    →  server.port
//	ROUTED_RATE_LIMIT__ENABLED=true             →  rate_limit.enabled
//	ROUTED_SECURITY__MAX_REQUEST_SIZE=1048576   →  security.max_request_size
//
// # Durations
//
// Duration values accept either a bare number of seconds or a Go
// duration string, so "lifetime: 3600" and "lifetime: 1h" are the
// same. This applies to Duration, DurationOr, the generic getters,
// and every section struct field.
//
// # Sections
//
// Option sections decode into typed structs with FromMap or, bound to
// a loaded Config, with Resolve:
//
//	routing, err := config.Resolve[config.RoutingOptions](cfg, "routing")
//	if err != nil {
//	    return err
//	}
//
// Decoding is strict: unknown keys are rejected so typos surface at
// boot instead of silently falling back to defaults. ToMap is the
// inverse, producing the canonical map form of a section; resolving a
// canonical map and encoding it again is stable.
//
// # Validation
//
// WithSchema validates every loaded configuration against a JSON
// Schema; WithValidator registers ad-hoc checks. A failing validation
// rejects the load and keeps the previously visible values.
package config
