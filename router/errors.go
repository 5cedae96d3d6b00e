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

package router

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrFrozen indicates a registration attempt after the engine built
	// its route table.
	ErrFrozen = errors.New("router: route table is frozen")

	// ErrDuplicateRoute indicates that the same (method, pattern) pair
	// was registered twice.
	ErrDuplicateRoute = errors.New("router: duplicate route")

	// ErrDuplicateRouteName indicates that two routes share a non-empty name.
	ErrDuplicateRouteName = errors.New("router: duplicate route name")

	// ErrUnknownMiddleware indicates that a named middleware reference
	// could not be resolved against the registry at build time.
	ErrUnknownMiddleware = errors.New("router: unknown middleware")

	// ErrNilHandler indicates a route registered without a handler.
	ErrNilHandler = errors.New("router: handler must not be nil")

	// ErrMissingRouteParameter indicates that a required parameter was
	// not supplied when building a URL from a named route.
	ErrMissingRouteParameter = errors.New("router: missing required parameter")

	// ErrRouteNotFound indicates that no route carries the requested name.
	ErrRouteNotFound = errors.New("router: route not found")

	// ErrBodyConsumed indicates that the raw body stream was already
	// drained outside of Body().
	ErrBodyConsumed = errors.New("router: request body already consumed")

	// ErrNotHijackable indicates that the underlying ResponseWriter does
	// not support connection hijacking.
	ErrNotHijackable = errors.New("router: response writer does not support hijacking")

	// ErrServerTimeoutInvalid indicates that a server timeout value is
	// zero or negative.
	ErrServerTimeoutInvalid = errors.New("router: server timeout must be positive")
)

// Kind classifies request-path failures. The engine's terminal handler
// maps each kind to an HTTP status; KindConfiguration never reaches the
// request path, it is returned from New or Build.
type Kind int

const (
	// KindInternal is an uncaught error inside the handler chain.
	KindInternal Kind = iota

	// KindNotFound is a request that matched no route.
	KindNotFound

	// KindMethodNotAllowed is a path that matches under other methods.
	KindMethodNotAllowed

	// KindValidationFailed is a request body or parameter rejected by
	// handler-level validation.
	KindValidationFailed

	// KindRateLimited is a request denied by a rate-limit policy.
	KindRateLimited

	// KindBodyTooLarge is a request body exceeding the configured cap.
	KindBodyTooLarge

	// KindForbidden is a request denied by the IP filter or CSRF check.
	KindForbidden

	// KindTimeout is a request that outlived its deadline.
	KindTimeout

	// KindConfiguration is an invalid engine or policy configuration,
	// reported at boot.
	KindConfiguration
)

// String returns the kind's snake_case name.
func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindMethodNotAllowed:
		return "method_not_allowed"
	case KindValidationFailed:
		return "validation_failed"
	case KindRateLimited:
		return "rate_limited"
	case KindBodyTooLarge:
		return "body_too_large"
	case KindForbidden:
		return "forbidden"
	case KindTimeout:
		return "timeout"
	case KindConfiguration:
		return "configuration"
	default:
		return "internal"
	}
}

// Error is the typed error carried through the handler chain. Returning
// one from a handler or middleware makes the engine respond with Status
// and Message instead of a generic 500.
//
// Example:
//
//	func handler(c *router.Context) error {
//	    if !authorized(c) {
//	        return router.NewError(router.KindForbidden, "ip not allowed")
//	    }
//	    return c.NoContent()
//	}
type Error struct {
	Kind    Kind
	Status  int
	Message string
	Err     error
}

// NewError creates an Error of the given kind with the kind's default
// HTTP status.
func NewError(kind Kind, message string) *Error {
	return &Error{Kind: kind, Status: statusForKind(kind), Message: message}
}

// WrapError creates an internal Error around err.
func WrapError(err error) *Error {
	return &Error{Kind: KindInternal, Status: http.StatusInternalServerError, Err: err}
}

// Error implements the error interface.
func (e *Error) Error() string {
	switch {
	case e.Message != "" && e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	case e.Message != "":
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	default:
		return e.Kind.String()
	}
}

// Unwrap returns the wrapped error, if any.
func (e *Error) Unwrap() error {
	return e.Err
}

// HTTPStatus returns the explicit Status, or the kind's default when
// none was set. This is the status the engine's terminal handler will
// write; middleware that logs or measures responses uses it to report
// errors it passes upward.
func (e *Error) HTTPStatus() int {
	if e.Status != 0 {
		return e.Status
	}
	return statusForKind(e.Kind)
}

// statusForKind maps an error kind to its default HTTP status.
func statusForKind(kind Kind) int {
	switch kind {
	case KindNotFound:
		return http.StatusNotFound
	case KindMethodNotAllowed:
		return http.StatusMethodNotAllowed
	case KindValidationFailed:
		return http.StatusBadRequest
	case KindRateLimited:
		return http.StatusTooManyRequests
	case KindBodyTooLarge:
		return http.StatusRequestEntityTooLarge
	case KindForbidden:
		return http.StatusForbidden
	case KindTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// configErrorf builds a KindConfiguration error. Configuration errors
// are fatal: New and Build return them and the engine never serves.
// The chain is built with fmt.Errorf so %w keeps sentinels reachable
// through errors.Is.
func configErrorf(format string, args ...any) *Error {
	return &Error{
		Kind: KindConfiguration,
		Err:  fmt.Errorf(format, args...),
	}
}
