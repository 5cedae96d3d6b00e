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
	"context"
	"hash/fnv"
	"io"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/kingwill101/routed/cache"
	"github.com/kingwill101/routed/events"
)

// serviceShards bounds lock contention for concurrent consumes on
// distinct bucket keys.
const serviceShards = 64

// noopLogger discards backend-failure warnings when no logger is
// configured.
var noopLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

// Outcome is the decision one policy produced for one request.
type Outcome struct {
	Policy     string
	Strategy   string
	Identity   string
	Allowed    bool
	Remaining  float64
	RetryAfter time.Duration

	// Failover names the mode that produced the outcome when the
	// repository failed; empty when the backend answered.
	Failover string
}

// Result aggregates the outcomes of every policy applied to one
// request. A request no policy applied to is allowed with no outcomes.
type Result struct {
	Allowed  bool
	Outcomes []Outcome
}

// Blocked returns the outcome that denied the request. Evaluation
// short-circuits on the first denial, so it is always the last one.
func (r Result) Blocked() (Outcome, bool) {
	if r.Allowed || len(r.Outcomes) == 0 {
		return Outcome{}, false
	}
	return r.Outcomes[len(r.Outcomes)-1], true
}

// Remaining returns the tightest remaining budget across the applied
// policies, or false when none applied.
func (r Result) Remaining() (float64, bool) {
	if len(r.Outcomes) == 0 {
		return 0, false
	}
	min := r.Outcomes[0].Remaining
	for _, o := range r.Outcomes[1:] {
		if o.Remaining < min {
			min = o.Remaining
		}
	}
	return min, true
}

// Service evaluates an ordered set of rate-limit policies against a
// cache repository. The policy table is immutable after New; per-key
// state updates serialize on a mutex shard so each consume is one
// logical read-modify-write.
type Service struct {
	repo     cache.Repository
	policies []*compiledPolicy
	hub      *events.Hub
	log      *slog.Logger
	now      func() time.Time

	shards [serviceShards]sync.Mutex

	localMu sync.Mutex
	local   map[string]*rate.Limiter
}

// Option configures a Service.
type Option func(*Service)

// WithHub publishes RateLimitAllowed/RateLimitBlocked events to h.
func WithHub(h *events.Hub) Option {
	return func(s *Service) { s.hub = h }
}

// WithLogger sets the logger for backend-failure warnings.
func WithLogger(log *slog.Logger) Option {
	return func(s *Service) {
		if log != nil {
			s.log = log
		}
	}
}

// WithClock overrides the time source. Evaluation reads it once per
// request, so tests can pin or step time deterministically.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// New compiles policies into a Service backed by repo. Invalid policies
// (capacity or limit below 1, non-positive durations, malformed globs,
// unknown failover modes) fail construction.
func New(repo cache.Repository, policies []Policy, opts ...Option) (*Service, error) {
	s := &Service{
		repo:  repo,
		log:   noopLogger,
		now:   time.Now,
		local: make(map[string]*rate.Limiter),
	}
	for _, p := range policies {
		cp, err := compilePolicy(p)
		if err != nil {
			return nil, err
		}
		s.policies = append(s.policies, cp)
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Evaluate runs every applicable policy against req in declaration
// order. The first denial short-circuits; each applied policy publishes
// exactly one event.
func (s *Service) Evaluate(ctx context.Context, req Request) Result {
	now := s.now()
	res := Result{Allowed: true}
	for _, p := range s.policies {
		if !p.matches(req.Method, req.Path) {
			continue
		}
		identity := p.identity.Key(req)
		if identity == "" {
			continue
		}
		out := s.consume(ctx, p, identity, now)
		res.Outcomes = append(res.Outcomes, out)
		s.publish(out)
		if !out.Allowed {
			res.Allowed = false
			break
		}
	}
	return res
}

// consume runs one policy's algorithm against the bucket keyed by
// policy name and identity.
func (s *Service) consume(ctx context.Context, p *compiledPolicy, identity string, now time.Time) Outcome {
	out := Outcome{
		Policy:   p.name,
		Strategy: p.strategy.Kind(),
		Identity: identity,
	}
	key := p.name + ":" + identity

	mu := s.shard(key)
	mu.Lock()
	d, err := s.consumeLocked(ctx, p, key, now)
	mu.Unlock()

	if err != nil {
		return s.failover(p, key, out, now, err)
	}
	out.Allowed = d.allowed
	out.Remaining = d.remaining
	out.RetryAfter = d.retryAfter
	return out
}

// consumeLocked is the read-modify-write cycle. The caller holds the
// key's shard.
func (s *Service) consumeLocked(ctx context.Context, p *compiledPolicy, key string, now time.Time) (decision, error) {
	raw, ok, err := s.repo.Get(ctx, key)
	if err != nil {
		return decision{}, err
	}
	var state []byte
	if ok {
		state = stateBytes(raw)
	}
	d, next, err := p.strategy.consume(state, now)
	if err != nil {
		return decision{}, err
	}
	if err := s.repo.Put(ctx, key, next, p.strategy.stateTTL()); err != nil {
		return decision{}, err
	}
	return d, nil
}

// failover decides the outcome when the repository failed, stamping the
// mode that produced it.
func (s *Service) failover(p *compiledPolicy, key string, out Outcome, now time.Time, err error) Outcome {
	out.Failover = string(p.failover)
	s.log.Warn("rate-limit backend failure",
		"policy", p.name,
		"failover", string(p.failover),
		"error", err,
	)

	switch p.failover {
	case FailoverBlock:
		out.RetryAfter = time.Second
	case FailoverLocal:
		lim := s.localLimiter(p, key)
		r := lim.ReserveN(now, 1)
		if delay := r.DelayFrom(now); delay > 0 {
			r.CancelAt(now)
			out.RetryAfter = delay
		} else {
			out.Allowed = true
			out.Remaining = lim.TokensAt(now)
		}
	default: // FailoverAllow
		out.Allowed = true
	}
	return out
}

// localLimiter returns the in-process fallback limiter for key,
// creating it on first use.
func (s *Service) localLimiter(p *compiledPolicy, key string) *rate.Limiter {
	s.localMu.Lock()
	defer s.localMu.Unlock()
	lim, ok := s.local[key]
	if !ok {
		r, burst := p.strategy.localRate()
		lim = rate.NewLimiter(r, burst)
		s.local[key] = lim
	}
	return lim
}

// publish emits the per-evaluation event.
func (s *Service) publish(out Outcome) {
	if s.hub == nil {
		return
	}
	if out.Allowed {
		s.hub.EmitFrom(s, events.RateLimitAllowed{
			Base:      events.NewBase(),
			Policy:    out.Policy,
			Strategy:  out.Strategy,
			Identity:  out.Identity,
			Remaining: out.Remaining,
			Failover:  out.Failover,
		})
		return
	}
	s.hub.EmitFrom(s, events.RateLimitBlocked{
		Base:       events.NewBase(),
		Policy:     out.Policy,
		Strategy:   out.Strategy,
		Identity:   out.Identity,
		RetryAfter: out.RetryAfter,
		Failover:   out.Failover,
	})
}

// shard returns the mutex guarding read-modify-write cycles for key.
func (s *Service) shard(key string) *sync.Mutex {
	h := fnv.New32a()
	h.Write([]byte(key))
	return &s.shards[h.Sum32()%serviceShards]
}

// stateBytes normalizes a repository value into state bytes. The memory
// store hands back the []byte it was given; Redis returns strings.
func stateBytes(v any) []byte {
	switch b := v.(type) {
	case []byte:
		return b
	case string:
		return []byte(b)
	default:
		return nil
	}
}

