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

// Package etag adds entity tags to buffered GET responses and answers
// revalidation requests with 304 Not Modified.
//
// The tag is a sha1 digest of the final response body, computed as a
// body filter after the handler chain has run:
//
//	r := router.MustNew()
//	r.Use(etag.New())
//
// Clients replaying the tag through If-None-Match receive an empty 304
// instead of the full body. Weak validators suit responses that are
// semantically stable but not byte-stable:
//
//	r.Use(etag.New(etag.WithWeak()))
//
// Handlers that set an ETag themselves keep it; the middleware then
// only performs the If-None-Match comparison. Streamed (flushed)
// responses are never tagged because their bodies bypass the buffer.
package etag
