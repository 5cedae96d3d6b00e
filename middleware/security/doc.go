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

// Package security sets protective response headers: X-Frame-Options,
// X-Content-Type-Options, X-XSS-Protection, Strict-Transport-Security,
// Content-Security-Policy, Referrer-Policy, and Permissions-Policy.
//
// The defaults are strict. Use DevelopmentPreset for local work where
// inline scripts and plain HTTP must keep working, and individual
// With* options to tune single headers:
//
//	e.Use(security.New(security.DevelopmentPreset()))
//
// HSTS is only emitted on TLS connections; sending it over plain HTTP
// is meaningless and browsers ignore it.
package security
