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

package config

import (
	"errors"
	"fmt"
	"time"
)

// RoutingOptions controls route matching and automatic responses.
// It lives under the "routing" key.
type RoutingOptions struct {
	// RedirectTrailingSlash redirects /users/ to /users (301 for GET,
	// 307 otherwise) when only the slash-less route exists.
	RedirectTrailingSlash bool `config:"redirect_trailing_slash" default:"true"`

	// HandleMethodNotAllowed answers 405 with an Allow header when
	// the path matches under other methods.
	HandleMethodNotAllowed bool `config:"handle_method_not_allowed" default:"true"`

	// DefaultOptions answers OPTIONS requests automatically with an
	// Allow header when no explicit OPTIONS route exists.
	DefaultOptions bool `config:"default_options"`

	// ETag controls response ETag generation.
	ETag ETagOptions `config:"etag"`
}

// Validate checks nested sections.
func (o RoutingOptions) Validate() error {
	return o.ETag.Validate()
}

// ETag strategies.
const (
	ETagDisabled = "disabled"
	ETagStrong   = "strong"
	ETagWeak     = "weak"
)

// ETagOptions configures ETag generation for buffered GET responses.
type ETagOptions struct {
	// Strategy is one of disabled, strong, or weak.
	Strategy string `config:"strategy" default:"disabled"`
}

// Validate rejects unknown strategies.
func (o ETagOptions) Validate() error {
	switch o.Strategy {
	case ETagDisabled, ETagStrong, ETagWeak:
		return nil
	}
	return fmt.Errorf("unknown etag strategy %q", o.Strategy)
}

// SecurityOptions groups request-security settings under the
// "security" key.
type SecurityOptions struct {
	// MaxRequestSize caps request bodies in bytes. Zero means no cap.
	MaxRequestSize int64 `config:"max_request_size"`

	// CSRF configures cross-site request forgery protection.
	CSRF CSRFOptions `config:"csrf"`

	// TrustedProxies configures client IP resolution behind proxies.
	TrustedProxies TrustedProxyOptions `config:"trusted_proxies"`

	// IPFilter configures the client address gate.
	IPFilter IPFilterOptions `config:"ip_filter"`
}

// Validate checks the body cap and nested sections.
func (o SecurityOptions) Validate() error {
	if o.MaxRequestSize < 0 {
		return fmt.Errorf("max_request_size must not be negative, got %d", o.MaxRequestSize)
	}
	return o.IPFilter.Validate()
}

// CSRFOptions configures CSRF token issuance and checking.
type CSRFOptions struct {
	// Enabled turns the middleware on.
	Enabled bool `config:"enabled"`

	// CookieName carries the token to the client.
	CookieName string `config:"cookie_name" default:"csrf_token"`
}

// TrustedProxyOptions configures which peers may supply forwarding
// headers and which headers are consulted when resolving the client
// address.
type TrustedProxyOptions struct {
	// Enabled turns forwarded-header resolution on.
	Enabled bool `config:"enabled"`

	// Proxies lists trusted CIDR ranges; bare addresses count as
	// single-host ranges.
	Proxies []string `config:"proxies"`

	// Headers are the forwarding headers consulted in order. Empty
	// means X-Forwarded-For then X-Real-IP.
	Headers []string `config:"headers"`

	// PlatformHeader names a header whose value is taken as the
	// client address whenever present, such as CF-Connecting-IP.
	PlatformHeader string `config:"platform_header"`

	// ForwardClientIP toggles the header walk; when false only the
	// platform header and the transport address are used.
	ForwardClientIP bool `config:"forward_client_ip" default:"true"`
}

// Filter actions.
const (
	ActionAllow = "allow"
	ActionDeny  = "deny"
)

// IPFilterOptions configures client address filtering.
type IPFilterOptions struct {
	// Enabled turns the filter on.
	Enabled bool `config:"enabled"`

	// DefaultAction decides requests matching neither list: allow or
	// deny.
	DefaultAction string `config:"default_action" default:"allow"`

	// Allow lists CIDR ranges that always pass.
	Allow []string `config:"allow"`

	// Deny lists CIDR ranges rejected with 403.
	Deny []string `config:"deny"`
}

// Validate rejects unknown default actions.
func (o IPFilterOptions) Validate() error {
	switch o.DefaultAction {
	case ActionAllow, ActionDeny:
		return nil
	}
	return fmt.Errorf("unknown default_action %q", o.DefaultAction)
}

// Rate-limit backends.
const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
)

// Failover modes applied when the rate-limit backend errors.
const (
	FailoverAllow = "allow"
	FailoverBlock = "block"
	FailoverLocal = "local"
)

// RateLimitOptions configures the rate-limit service under the
// "rate_limit" key.
type RateLimitOptions struct {
	// Enabled turns rate limiting on.
	Enabled bool `config:"enabled"`

	// Backend selects the state store: memory or redis.
	Backend string `config:"backend" default:"memory"`

	// Store is the backend-specific address, such as a Redis
	// host:port. Ignored by the memory backend.
	Store string `config:"store"`

	// Failover is the default failover mode for policies that do not
	// set their own: allow, block, or local.
	Failover string `config:"failover" default:"allow"`

	// Policies lists the rate-limit policies in evaluation order.
	Policies []PolicyOptions `config:"policies"`
}

// Validate checks the backend, the failover mode, and every policy.
func (o RateLimitOptions) Validate() error {
	switch o.Backend {
	case BackendMemory, BackendRedis:
	default:
		return fmt.Errorf("unknown rate_limit backend %q", o.Backend)
	}
	if err := validFailover(o.Failover); err != nil {
		return err
	}
	for i, p := range o.Policies {
		if err := p.Validate(); err != nil {
			return fmt.Errorf("policy[%d]: %w", i, err)
		}
	}
	return nil
}

// Rate-limit strategies.
const (
	StrategyTokenBucket   = "token_bucket"
	StrategySlidingWindow = "sliding_window"
	StrategyQuota         = "quota"
)

// PolicyOptions describes one rate-limit policy. Strategy selects
// which algorithm fields apply: token_bucket reads capacity,
// refill_interval, and burst_multiplier; sliding_window reads limit
// and window; quota reads limit and period. Numeric bounds are
// enforced when the policy compiles.
type PolicyOptions struct {
	// Name identifies the policy in headers, events, and metrics.
	Name string `config:"name"`

	// Methods is a comma-separated list of HTTP methods, or * for
	// all. Empty means all.
	Methods string `config:"methods"`

	// Path is a glob the request path must match. Empty means all
	// paths.
	Path string `config:"path"`

	// Identity names the bucket key source: "ip" or "header:<Name>".
	// Empty means ip.
	Identity string `config:"identity"`

	// Strategy is one of token_bucket, sliding_window, or quota.
	Strategy string `config:"strategy"`

	Capacity        int           `config:"capacity"`
	RefillInterval  time.Duration `config:"refill_interval"`
	BurstMultiplier float64       `config:"burst_multiplier"`
	Limit           int           `config:"limit"`
	Window          time.Duration `config:"window"`
	Period          time.Duration `config:"period"`

	// Failover overrides the section-wide failover mode.
	Failover string `config:"failover"`
}

// Validate checks the name, strategy, and failover enums.
func (o PolicyOptions) Validate() error {
	if o.Name == "" {
		return errors.New("policy name is required")
	}
	switch o.Strategy {
	case StrategyTokenBucket, StrategySlidingWindow, StrategyQuota:
	default:
		return fmt.Errorf("unknown strategy %q", o.Strategy)
	}
	if o.Failover == "" {
		return nil
	}
	return validFailover(o.Failover)
}

func validFailover(mode string) error {
	switch mode {
	case FailoverAllow, FailoverBlock, FailoverLocal:
		return nil
	}
	return fmt.Errorf("unknown failover mode %q", mode)
}

// Session drivers.
const (
	SessionMemory = "memory"
	SessionCookie = "cookie"
	SessionFile   = "file"
)

// SessionOptions configures the session manager under the "session"
// key.
type SessionOptions struct {
	// Driver selects the store: memory, cookie, or file.
	Driver string `config:"driver" default:"memory"`

	// Lifetime bounds how long an idle session stays valid.
	Lifetime time.Duration `config:"lifetime" default:"2h"`

	// Cookie names the session cookie.
	Cookie string `config:"cookie" default:"routed_session"`

	// Encrypt additionally encrypts cookie payloads instead of only
	// signing them.
	Encrypt bool `config:"encrypt"`

	// Keys are the signing keys, newest first. Required for the
	// cookie driver; older keys stay valid for reads so keys can
	// rotate.
	Keys []string `config:"keys"`

	// Dir is where the file driver keeps session files.
	Dir string `config:"dir"`
}

// Validate checks the driver enum and its requirements.
func (o SessionOptions) Validate() error {
	switch o.Driver {
	case SessionMemory, SessionCookie, SessionFile:
	default:
		return fmt.Errorf("unknown session driver %q", o.Driver)
	}
	if o.Lifetime <= 0 {
		return fmt.Errorf("session lifetime must be positive, got %s", o.Lifetime)
	}
	if o.Driver == SessionCookie && len(o.Keys) == 0 {
		return errors.New("cookie driver requires signing keys")
	}
	if o.Driver == SessionFile && o.Dir == "" {
		return errors.New("file driver requires dir")
	}
	return nil
}
