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

// Package cors implements cross-origin resource sharing for browsers.
//
// Attach it engine-wide so preflights are answered even for paths that
// only exist under other methods:
//
//	e := router.MustNew()
//	e.Use(cors.New(cors.WithAllowedOrigins("https://app.example.com")))
//
// Preflight OPTIONS requests short-circuit with 204; actual requests
// run normally and pick up the Access-Control response headers. Origins
// outside the policy get no CORS headers at all, which is what makes
// the browser reject the exchange.
package cors
