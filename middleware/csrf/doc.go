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

// Package csrf protects unsafe methods with the double-submit cookie
// pattern.
//
// Safe methods (GET, HEAD, OPTIONS, TRACE) receive a random token in a
// cookie. Unsafe methods must echo that token back in the X-CSRF-Token
// header or the _csrf form field; a missing or mismatched echo answers
// 403 Forbidden. Cross-site attackers can make the browser send the
// cookie but cannot read it, so they cannot produce the echo.
//
//	r := router.MustNew()
//	r.Use(csrf.New())
//
// Server-rendered forms embed the token through Token:
//
//	r.GET("/form", func(c *router.Context) error {
//	    return c.HTML(http.StatusOK, formPage(csrf.Token(c)))
//	})
//
// The cookie is deliberately readable by scripts (HttpOnly off) so
// single-page apps can copy it into the request header.
package csrf
