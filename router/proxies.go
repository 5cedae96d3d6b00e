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
	"fmt"
	"net"
	"net/http"
	"net/netip"
	"strings"
)

// Common forwarding headers.
const (
	// HeaderXFF is the X-Forwarded-For header.
	HeaderXFF = "X-Forwarded-For"

	// HeaderXRealIP is the X-Real-IP header.
	HeaderXRealIP = "X-Real-IP"

	// HeaderCFConnecting is Cloudflare's CF-Connecting-IP header.
	HeaderCFConnecting = "CF-Connecting-IP"
)

// TrustedProxyOption configures trusted-proxy detection for client IP
// resolution.
type TrustedProxyOption func(*trustedProxyConfig)

// trustedProxyConfig collects the raw trusted proxy settings.
type trustedProxyConfig struct {
	proxies         []string
	headers         []string
	platformHeader  string
	forwardClientIP bool
}

// realIPConfig is the compiled form used at request time.
type realIPConfig struct {
	cidrs           []netip.Prefix
	headers         []string
	platformHeader  string
	forwardClientIP bool
}

// WithProxies sets the trusted proxy CIDR ranges. Forwarding headers
// are only consulted when the transport peer falls inside one of them,
// which keeps clients from spoofing their own address.
//
// Example:
//
//	router.WithProxies("10.0.0.0/8", "127.0.0.1/32")
func WithProxies(cidrs ...string) TrustedProxyOption {
	return func(cfg *trustedProxyConfig) {
		cfg.proxies = cidrs
	}
}

// WithProxyHeaders sets which forwarding headers to consult, in order
// of preference. Defaults to X-Forwarded-For then X-Real-IP.
//
// Example:
//
//	router.WithProxyHeaders(router.HeaderXFF, "True-Client-IP")
func WithProxyHeaders(headers ...string) TrustedProxyOption {
	return func(cfg *trustedProxyConfig) {
		cfg.headers = headers
	}
}

// WithPlatformHeader names a header whose value is taken as the client
// IP whenever present, bypassing the trust walk. Use it when a fronting
// platform (Cloudflare, Fly, a service mesh) injects a verified header.
//
// Example:
//
//	router.WithTrustedProxies(router.WithPlatformHeader(router.HeaderCFConnecting))
func WithPlatformHeader(name string) TrustedProxyOption {
	return func(cfg *trustedProxyConfig) {
		cfg.platformHeader = name
	}
}

// WithForwardClientIP toggles forwarding-header resolution. When false
// only the platform header (if any) and the transport address are used.
//
// Default: true.
func WithForwardClientIP(enabled bool) TrustedProxyOption {
	return func(cfg *trustedProxyConfig) {
		cfg.forwardClientIP = enabled
	}
}

// WithTrustedProxies configures client IP resolution from forwarding
// headers. Without this option the transport remote address is used
// as-is.
//
// Example:
//
//	e := router.MustNew(
//	    router.WithTrustedProxies(
//	        router.WithProxies("10.0.0.0/8", "192.168.0.0/16"),
//	        router.WithProxyHeaders(router.HeaderXFF, router.HeaderXRealIP),
//	    ),
//	)
func WithTrustedProxies(opts ...TrustedProxyOption) Option {
	return func(e *Engine) {
		cfg := &trustedProxyConfig{forwardClientIP: true}
		for _, opt := range opts {
			opt(cfg)
		}
		compiled, err := compileProxies(cfg)
		if err != nil {
			panic(fmt.Sprintf("router: invalid trusted proxy configuration: %v", err))
		}
		e.realip = compiled
	}
}

// compileProxies parses CIDRs once and fills header defaults.
func compileProxies(opts *trustedProxyConfig) (*realIPConfig, error) {
	cfg := &realIPConfig{
		headers:         opts.headers,
		platformHeader:  opts.platformHeader,
		forwardClientIP: opts.forwardClientIP,
	}
	if len(cfg.headers) == 0 {
		cfg.headers = []string{HeaderXFF, HeaderXRealIP}
	}

	cfg.cidrs = make([]netip.Prefix, 0, len(opts.proxies))
	for _, cidr := range opts.proxies {
		prefix, err := netip.ParsePrefix(cidr)
		if err != nil {
			// Accept bare addresses as single-host ranges.
			addr, aerr := netip.ParseAddr(cidr)
			if aerr != nil {
				return nil, fmt.Errorf("invalid CIDR %q: %w", cidr, err)
			}
			prefix = netip.PrefixFrom(addr, addr.BitLen())
		}
		cfg.cidrs = append(cfg.cidrs, prefix)
	}
	return cfg, nil
}

// isTrusted reports whether the address falls inside a trusted range.
func (cfg *realIPConfig) isTrusted(ip string) bool {
	addr, err := netip.ParseAddr(ip)
	if err != nil {
		return false
	}
	addr = addr.Unmap()
	for _, prefix := range cfg.cidrs {
		if prefix.Contains(addr) {
			return true
		}
	}
	return false
}

// resolveClientIP derives the client address for a request.
//
// Order:
//  1. The platform header, when configured and present.
//  2. When forwarding is enabled and the transport peer is trusted:
//     scan the configured headers in order and take the left-most
//     address that is not itself a trusted proxy.
//  3. The transport remote address.
func (cfg *realIPConfig) resolveClientIP(req *http.Request) string {
	remote := ipFromRemoteAddr(req.RemoteAddr)
	if cfg == nil {
		return remote
	}

	if cfg.platformHeader != "" {
		if ip := parseOneIP(req.Header.Get(cfg.platformHeader)); ip != "" {
			return ip
		}
	}

	if !cfg.forwardClientIP || !cfg.isTrusted(remote) {
		return remote
	}

	for _, h := range cfg.headers {
		if ip := cfg.leftmostUntrusted(req.Header.Get(h)); ip != "" {
			return ip
		}
	}
	return remote
}

// leftmostUntrusted walks a comma-separated address list left to right
// and returns the first valid address outside the trusted ranges.
func (cfg *realIPConfig) leftmostUntrusted(value string) string {
	if value == "" {
		return ""
	}
	for part := range strings.SplitSeq(value, ",") {
		ip := parseOneIP(part)
		if ip == "" {
			continue
		}
		if !cfg.isTrusted(ip) {
			return ip
		}
	}
	return ""
}

// parseOneIP validates a single textual address, stripping whitespace
// and an optional port.
func parseOneIP(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	if host, _, err := net.SplitHostPort(s); err == nil {
		s = host
	}
	addr, err := netip.ParseAddr(strings.Trim(s, "[]"))
	if err != nil {
		return ""
	}
	return addr.Unmap().String()
}

// ipFromRemoteAddr extracts the bare address from an addr:port pair.
func ipFromRemoteAddr(remoteAddr string) string {
	if host, _, err := net.SplitHostPort(remoteAddr); err == nil {
		return strings.Trim(host, "[]")
	}
	return strings.Trim(remoteAddr, "[]")
}
