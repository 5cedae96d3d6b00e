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

package ipfilter

import (
	"fmt"
	"net/netip"

	"github.com/kingwill101/routed/router"
)

// Option configures the filter.
type Option func(*config)

type config struct {
	allow       []string
	deny        []string
	defaultDeny bool
}

// WithAllow adds ranges that always pass, taking precedence over the
// deny list.
func WithAllow(cidrs ...string) Option {
	return func(cfg *config) {
		cfg.allow = append(cfg.allow, cidrs...)
	}
}

// WithDeny adds ranges rejected with 403 Forbidden.
func WithDeny(cidrs ...string) Option {
	return func(cfg *config) {
		cfg.deny = append(cfg.deny, cidrs...)
	}
}

// WithDefaultDeny rejects requests matching neither list. Without it
// unmatched requests pass.
func WithDefaultDeny() Option {
	return func(cfg *config) {
		cfg.defaultDeny = true
	}
}

// filter is the compiled form used at request time.
type filter struct {
	allow       []netip.Prefix
	deny        []netip.Prefix
	defaultDeny bool
}

// New compiles the configured ranges into middleware gating every
// request on its client address. Invalid ranges fail here rather than
// at request time.
func New(opts ...Option) (router.MiddlewareFunc, error) {
	cfg := &config{}
	for _, opt := range opts {
		opt(cfg)
	}

	allow, err := compileRanges(cfg.allow)
	if err != nil {
		return nil, fmt.Errorf("ipfilter: allow list: %w", err)
	}
	deny, err := compileRanges(cfg.deny)
	if err != nil {
		return nil, fmt.Errorf("ipfilter: deny list: %w", err)
	}
	f := &filter{allow: allow, deny: deny, defaultDeny: cfg.defaultDeny}

	return func(c *router.Context, next router.HandlerFunc) error {
		if f.permitted(c.ClientIP()) {
			return next(c)
		}
		return router.NewError(router.KindForbidden, "address not allowed")
	}, nil
}

// permitted applies allow, then deny, then the default action. An
// address that does not parse matches neither list.
func (f *filter) permitted(ip string) bool {
	addr, err := netip.ParseAddr(ip)
	if err != nil {
		return !f.defaultDeny
	}
	addr = addr.Unmap()
	if containsAddr(f.allow, addr) {
		return true
	}
	if containsAddr(f.deny, addr) {
		return false
	}
	return !f.defaultDeny
}

func containsAddr(prefixes []netip.Prefix, addr netip.Addr) bool {
	for _, prefix := range prefixes {
		if prefix.Contains(addr) {
			return true
		}
	}
	return false
}

// compileRanges parses CIDRs once, accepting bare addresses as
// single-host ranges.
func compileRanges(cidrs []string) ([]netip.Prefix, error) {
	prefixes := make([]netip.Prefix, 0, len(cidrs))
	for _, cidr := range cidrs {
		prefix, err := netip.ParsePrefix(cidr)
		if err != nil {
			addr, aerr := netip.ParseAddr(cidr)
			if aerr != nil {
				return nil, fmt.Errorf("invalid CIDR %q: %w", cidr, err)
			}
			prefix = netip.PrefixFrom(addr, addr.BitLen())
		}
		prefixes = append(prefixes, prefix)
	}
	return prefixes, nil
}
