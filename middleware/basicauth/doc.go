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

// Package basicauth provides HTTP Basic Authentication (RFC 7617)
// middleware for the routed engine.
//
// Credentials are checked against a static user map or a custom
// validator; passwords are compared in constant time. The
// authenticated username is stored on the request context and
// readable through Username.
//
//	e.Use(basicauth.New(
//	    basicauth.WithUsers(map[string]string{"admin": "secret"}),
//	    basicauth.WithRealm("Admin Area"),
//	))
//
// Basic Authentication sends credentials with every request; serve it
// over TLS only.
package basicauth
