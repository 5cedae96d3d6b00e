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

package ratelimit

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// Request carries the request facts a policy can match or key on. The
// middleware fills it from the router context; tests can construct it
// directly.
type Request struct {
	Method   string
	Path     string
	ClientIP string
	Header   http.Header
}

// Identity resolves the bucket identity for a request. An empty key
// means the request carries no usable identity and the policy is
// skipped.
type Identity interface {
	// Key returns the identity string, or "" when unresolvable.
	Key(req Request) string

	// String returns the identity's configuration form.
	String() string
}

// IPIdentity keys buckets by the resolved client IP.
type IPIdentity struct{}

// Key implements [Identity].
func (IPIdentity) Key(req Request) string { return req.ClientIP }

// String implements [Identity].
func (IPIdentity) String() string { return "ip" }

// HeaderIdentity keys buckets by a request header value. Requests
// without the header skip the policy.
type HeaderIdentity struct {
	Name string
}

// Key implements [Identity].
func (h HeaderIdentity) Key(req Request) string {
	if req.Header == nil {
		return ""
	}
	return req.Header.Get(h.Name)
}

// String implements [Identity].
func (h HeaderIdentity) String() string { return "header:" + h.Name }

// ParseIdentity translates a configuration string into an Identity:
// "ip" (or empty) keys by client IP, "header:<Name>" keys by a header.
func ParseIdentity(s string) (Identity, error) {
	switch {
	case s == "" || s == "ip":
		return IPIdentity{}, nil
	case strings.HasPrefix(s, "header:"):
		name := strings.TrimPrefix(s, "header:")
		if name == "" {
			return nil, fmt.Errorf("ratelimit: header identity needs a name")
		}
		return HeaderIdentity{Name: name}, nil
	default:
		return nil, fmt.Errorf("ratelimit: unknown identity %q", s)
	}
}

// FailoverMode selects the outcome when the backing repository errors.
type FailoverMode string

const (
	// FailoverAllow admits requests while the backend is down.
	FailoverAllow FailoverMode = "allow"

	// FailoverBlock denies requests while the backend is down, with a
	// one-second retry hint.
	FailoverBlock FailoverMode = "block"

	// FailoverLocal meters requests with an in-process token bucket
	// keyed by the same bucket key, independent per node.
	FailoverLocal FailoverMode = "local"
)

// ParseFailover translates a configuration string into a FailoverMode.
// Empty selects FailoverAllow.
func ParseFailover(s string) (FailoverMode, error) {
	switch FailoverMode(s) {
	case "":
		return FailoverAllow, nil
	case FailoverAllow, FailoverBlock, FailoverLocal:
		return FailoverMode(s), nil
	default:
		return "", fmt.Errorf("ratelimit: unknown failover mode %q", s)
	}
}

// Policy declares one metering rule. Policies are matched in the order
// they were passed to New; a request may be metered by several policies.
type Policy struct {
	// Name labels the policy in events and forms the bucket key prefix.
	Name string

	// Methods is "*" or one exact HTTP method. Empty means "*".
	Methods string

	// Path is a doublestar glob the request path must match. Empty
	// means every path.
	Path string

	// Identity resolves the per-client bucket identity. Nil defaults
	// to IPIdentity.
	Identity Identity

	// Strategy is the metering algorithm.
	Strategy Strategy

	// Failover selects behavior on repository errors. Empty defaults
	// to FailoverAllow.
	Failover FailoverMode
}

// compiledPolicy is a Policy validated and normalized by New.
type compiledPolicy struct {
	name     string
	method   string
	path     string
	identity Identity
	strategy Strategy
	failover FailoverMode
}

// compilePolicy validates p and fills defaults. All failures are
// configuration errors that fail New.
func compilePolicy(p Policy) (*compiledPolicy, error) {
	if p.Name == "" {
		return nil, fmt.Errorf("ratelimit: policy needs a name")
	}
	if p.Strategy == nil {
		return nil, fmt.Errorf("ratelimit: policy %q: strategy must not be nil", p.Name)
	}
	if err := p.Strategy.validate(); err != nil {
		return nil, fmt.Errorf("ratelimit: policy %q: %w", p.Name, err)
	}

	path := p.Path
	if path == "" {
		path = "**"
	}
	if !doublestar.ValidatePattern(path) {
		return nil, fmt.Errorf("ratelimit: policy %q: invalid path glob %q", p.Name, p.Path)
	}

	method := strings.ToUpper(p.Methods)
	if method == "" {
		method = "*"
	}

	identity := p.Identity
	if identity == nil {
		identity = IPIdentity{}
	}

	failover, err := ParseFailover(string(p.Failover))
	if err != nil {
		return nil, fmt.Errorf("ratelimit: policy %q: %w", p.Name, err)
	}

	return &compiledPolicy{
		name:     p.Name,
		method:   method,
		path:     path,
		identity: identity,
		strategy: p.Strategy,
		failover: failover,
	}, nil
}

// matches reports whether the policy governs (method, path).
func (p *compiledPolicy) matches(method, path string) bool {
	if p.method != "*" && p.method != method {
		return false
	}
	ok, err := doublestar.PathMatch(p.path, path)
	return err == nil && ok
}
