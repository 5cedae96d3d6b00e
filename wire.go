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

package routed

import (
	"context"
	"fmt"
	"net/netip"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/kingwill101/routed/cache"
	"github.com/kingwill101/routed/config"
	"github.com/kingwill101/routed/metrics"
	"github.com/kingwill101/routed/middleware/csrf"
	"github.com/kingwill101/routed/middleware/etag"
	"github.com/kingwill101/routed/middleware/ipfilter"
	"github.com/kingwill101/routed/ratelimit"
	"github.com/kingwill101/routed/router"
	"github.com/kingwill101/routed/sessions"
)

// sections holds the resolved configuration sections the facade wires
// from. With no configuration every section decodes to its defaults;
// hasSession records whether a session block was actually present,
// since sessions are only wired when asked for.
type sections struct {
	routing    config.RoutingOptions
	security   config.SecurityOptions
	rateLimit  config.RateLimitOptions
	session    config.SessionOptions
	hasSession bool
}

func (a *App) resolveSections() (sections, error) {
	var s sections
	var err error

	conf := a.settings.conf
	if conf == nil {
		if s.routing, err = config.FromMap[config.RoutingOptions](nil); err != nil {
			return s, err
		}
		if s.security, err = config.FromMap[config.SecurityOptions](nil); err != nil {
			return s, err
		}
		if s.rateLimit, err = config.FromMap[config.RateLimitOptions](nil); err != nil {
			return s, err
		}
		if s.session, err = config.FromMap[config.SessionOptions](nil); err != nil {
			return s, err
		}
		return s, nil
	}

	if s.routing, err = config.Resolve[config.RoutingOptions](conf, "routing"); err != nil {
		return s, err
	}
	if s.security, err = config.Resolve[config.SecurityOptions](conf, "security"); err != nil {
		return s, err
	}
	if s.rateLimit, err = config.Resolve[config.RateLimitOptions](conf, "rate_limit"); err != nil {
		return s, err
	}
	if s.session, err = config.Resolve[config.SessionOptions](conf, "session"); err != nil {
		return s, err
	}
	s.hasSession = conf.Has("session")
	return s, nil
}

// wire builds the engine from the resolved sections and attaches the
// configured middleware in a fixed order: ipfilter, csrf, ratelimit,
// sessions, etag. Wired middleware is registered by name so routes can
// opt out with WithoutMiddleware.
func (a *App) wire() error {
	secs, err := a.resolveSections()
	if err != nil {
		return err
	}

	engineOpts, err := a.engineOptions(secs)
	if err != nil {
		return err
	}
	engine, err := router.New(engineOpts...)
	if err != nil {
		return err
	}
	a.engine = engine

	if err := a.wireSecurity(secs.security); err != nil {
		return err
	}
	if err := a.wireRateLimit(secs.rateLimit); err != nil {
		return err
	}
	if err := a.wireSessions(secs); err != nil {
		return err
	}
	if err := a.wireETag(secs.routing); err != nil {
		return err
	}
	return a.wireMetrics()
}

// use registers mw under name in the engine registry and appends it to
// the engine chain, so per-route exclusion by name keeps working.
func (a *App) use(name string, mw router.MiddlewareFunc) error {
	if err := a.engine.Registry().Register(name, mw); err != nil {
		return fmt.Errorf("registering %s middleware: %w", name, err)
	}
	a.engine.UseNamed(name)
	return nil
}

// engineOptions translates the routing and security sections into
// engine options. User options from WithEngineOptions are appended
// last, so they override anything derived from configuration.
func (a *App) engineOptions(secs sections) ([]router.Option, error) {
	opts := []router.Option{
		router.WithLogger(a.log),
		router.WithHub(a.hub),
		router.WithShutdownTimeout(a.settings.server.shutdownTimeout),
		router.WithRedirectTrailingSlash(secs.routing.RedirectTrailingSlash),
		router.WithMethodNotAllowed(secs.routing.HandleMethodNotAllowed),
		router.WithDefaultOptions(secs.routing.DefaultOptions),
	}

	if secs.security.MaxRequestSize > 0 {
		opts = append(opts, router.WithMaxRequestSize(secs.security.MaxRequestSize))
	}

	if tp := secs.security.TrustedProxies; tp.Enabled {
		// Validate here so a bad range comes back as an error instead
		// of the panic WithTrustedProxies raises inside router.New.
		if err := validateProxyRanges(tp.Proxies); err != nil {
			return nil, err
		}
		proxyOpts := []router.TrustedProxyOption{
			router.WithProxies(tp.Proxies...),
			router.WithForwardClientIP(tp.ForwardClientIP),
		}
		if len(tp.Headers) > 0 {
			proxyOpts = append(proxyOpts, router.WithProxyHeaders(tp.Headers...))
		}
		if tp.PlatformHeader != "" {
			proxyOpts = append(proxyOpts, router.WithPlatformHeader(tp.PlatformHeader))
		}
		opts = append(opts, router.WithTrustedProxies(proxyOpts...))
	}

	return append(opts, a.settings.engineOpts...), nil
}

func validateProxyRanges(ranges []string) error {
	for _, r := range ranges {
		if _, err := netip.ParsePrefix(r); err == nil {
			continue
		}
		if _, err := netip.ParseAddr(r); err == nil {
			continue
		}
		return fmt.Errorf("security.trusted_proxies: invalid range %q", r)
	}
	return nil
}

func (a *App) wireSecurity(sec config.SecurityOptions) error {
	if ipf := sec.IPFilter; ipf.Enabled {
		filterOpts := []ipfilter.Option{
			ipfilter.WithAllow(ipf.Allow...),
			ipfilter.WithDeny(ipf.Deny...),
		}
		if ipf.DefaultAction == config.ActionDeny {
			filterOpts = append(filterOpts, ipfilter.WithDefaultDeny())
		}
		mw, err := ipfilter.New(filterOpts...)
		if err != nil {
			return fmt.Errorf("security.ip_filter: %w", err)
		}
		if err := a.use("ipfilter", mw); err != nil {
			return err
		}
	}

	if sec.CSRF.Enabled {
		mw := csrf.New(
			csrf.WithCookieName(sec.CSRF.CookieName),
			csrf.WithSecureCookie(a.settings.environment == EnvironmentProduction),
		)
		if err := a.use("csrf", mw); err != nil {
			return err
		}
	}
	return nil
}

func (a *App) wireRateLimit(rl config.RateLimitOptions) error {
	if !rl.Enabled {
		return nil
	}

	repo, backend, err := a.buildRepository(rl)
	if err != nil {
		return err
	}
	policies, err := buildPolicies(rl)
	if err != nil {
		return err
	}

	svc, err := ratelimit.New(repo, policies,
		ratelimit.WithHub(a.hub),
		ratelimit.WithLogger(a.log),
	)
	if err != nil {
		return fmt.Errorf("rate_limit: %w", err)
	}

	a.repo = repo
	a.limiter = svc
	a.features.rateLimit = fmt.Sprintf("%d policies [%s]", len(policies), backend)
	return a.use("ratelimit", ratelimit.Middleware(svc))
}

// buildRepository constructs the store behind the rate limiter. The
// memory backend needs nothing; the redis backend dials rate_limit.store
// unless a client was injected with WithRedisClient.
func (a *App) buildRepository(rl config.RateLimitOptions) (cache.Repository, string, error) {
	switch rl.Backend {
	case config.BackendMemory, "":
		return cache.Instrument(cache.NewMemory(0, 0), a.hub, "memory"), config.BackendMemory, nil
	case config.BackendRedis:
		client := a.settings.redis
		if client == nil {
			if rl.Store == "" {
				return nil, "", fmt.Errorf("rate_limit: redis backend requires a store address or WithRedisClient")
			}
			client = redis.NewClient(&redis.Options{Addr: rl.Store})
			a.ownsRedis = true
		}
		a.redis = client
		return cache.Instrument(cache.NewRedis(client, "ratelimit"), a.hub, "redis"), config.BackendRedis, nil
	default:
		return nil, "", fmt.Errorf("rate_limit: unknown backend %q", rl.Backend)
	}
}

// buildPolicies converts the configured policy blocks into service
// policies. A policy without its own failover mode inherits the
// section-level one.
func buildPolicies(rl config.RateLimitOptions) ([]ratelimit.Policy, error) {
	policies := make([]ratelimit.Policy, 0, len(rl.Policies))
	for _, p := range rl.Policies {
		identity, err := ratelimit.ParseIdentity(p.Identity)
		if err != nil {
			return nil, fmt.Errorf("rate_limit policy %q: %w", p.Name, err)
		}
		failover := p.Failover
		if failover == "" {
			failover = rl.Failover
		}
		mode, err := ratelimit.ParseFailover(failover)
		if err != nil {
			return nil, fmt.Errorf("rate_limit policy %q: %w", p.Name, err)
		}
		strategy, err := strategyFor(p)
		if err != nil {
			return nil, err
		}
		policies = append(policies, ratelimit.Policy{
			Name:     p.Name,
			Methods:  p.Methods,
			Path:     p.Path,
			Identity: identity,
			Strategy: strategy,
			Failover: mode,
		})
	}
	return policies, nil
}

func strategyFor(p config.PolicyOptions) (ratelimit.Strategy, error) {
	switch p.Strategy {
	case config.StrategyTokenBucket:
		return ratelimit.TokenBucket{
			Capacity:        p.Capacity,
			RefillInterval:  p.RefillInterval,
			BurstMultiplier: p.BurstMultiplier,
		}, nil
	case config.StrategySlidingWindow:
		return ratelimit.SlidingWindow{
			Limit:  p.Limit,
			Window: p.Window,
		}, nil
	case config.StrategyQuota:
		return ratelimit.Quota{
			Limit:  p.Limit,
			Period: p.Period,
		}, nil
	default:
		return nil, fmt.Errorf("rate_limit policy %q: unknown strategy %q", p.Name, p.Strategy)
	}
}

func (a *App) wireSessions(secs sections) error {
	if !secs.hasSession {
		return nil
	}

	store, driver, err := a.buildSessionStore(secs.session)
	if err != nil {
		return err
	}
	a.sessions = sessions.NewManager(store,
		sessions.WithCookieName(secs.session.Cookie),
		sessions.WithLifetime(secs.session.Lifetime),
		sessions.WithSecureCookies(a.settings.environment == EnvironmentProduction),
	)
	a.features.sessions = driver
	return a.use("sessions", a.sessions.Middleware())
}

func (a *App) buildSessionStore(s config.SessionOptions) (sessions.Store, string, error) {
	switch s.Driver {
	case config.SessionMemory, "":
		return sessions.NewMemoryStore(0, s.Lifetime), config.SessionMemory, nil
	case config.SessionCookie:
		store, err := sessions.NewCookieStore(s.Keys, s.Encrypt)
		if err != nil {
			return nil, "", fmt.Errorf("session: %w", err)
		}
		return store, config.SessionCookie, nil
	case config.SessionFile:
		store, err := sessions.NewFileStore(s.Dir)
		if err != nil {
			return nil, "", fmt.Errorf("session: %w", err)
		}
		// Sweep expired session files once at startup. A failed sweep
		// is not fatal; the store skips expired entries on read anyway.
		a.OnStart(func(ctx context.Context) error {
			if err := store.GC(ctx); err != nil {
				a.log.Warn("session file GC", "error", err)
			}
			return nil
		})
		return store, config.SessionFile, nil
	default:
		return nil, "", fmt.Errorf("session: unknown driver %q", s.Driver)
	}
}

func (a *App) wireETag(routing config.RoutingOptions) error {
	switch routing.ETag.Strategy {
	case config.ETagStrong:
		return a.use("etag", etag.New())
	case config.ETagWeak:
		return a.use("etag", etag.New(etag.WithWeak()))
	default:
		return nil
	}
}

func (a *App) wireMetrics() error {
	if !a.settings.metrics.enabled {
		return nil
	}
	reg := a.settings.metrics.registry
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	m, err := metrics.New(reg, a.hub)
	if err != nil {
		return fmt.Errorf("metrics: %w", err)
	}
	a.metrics = m
	a.engine.GET(a.settings.metrics.path, router.WrapHandler(metrics.Handler(reg)))
	a.features.metricsPath = a.settings.metrics.path
	return nil
}
