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

// Package accesslog emits one structured slog line per request.
//
// Because responses are buffered until the chain completes, the
// middleware reads the final status and size directly off the response
// instead of wrapping the writer. Errors propagating up the chain are
// logged with the status they will produce.
//
//	e := router.MustNew(router.WithLogger(logger))
//	e.Use(accesslog.New(accesslog.WithExcludePaths("/healthz")))
//
// High-volume services can thin the log with WithSampleRate or
// WithErrorsOnly; failures and slow requests always get through.
package accesslog
