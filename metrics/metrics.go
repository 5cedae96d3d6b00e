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

package metrics

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kingwill101/routed/events"
)

// Metrics owns the registered instruments and the hub subscriptions
// feeding them.
type Metrics struct {
	subs []*events.Subscription

	requestsTotal   *prometheus.CounterVec
	requestDuration prometheus.Histogram
	activeRequests  prometheus.Gauge
	ratelimitTotal  *prometheus.CounterVec
	cacheOps        *prometheus.CounterVec
}

// New registers the instruments with reg and subscribes them to hub.
// Registration conflicts (for example wiring two observers to one
// registry) surface as errors.
func New(reg prometheus.Registerer, hub *events.Hub) (*Metrics, error) {
	m := &Metrics{
		requestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "requests_total",
			Help: "Requests served, by method and response status.",
		}, []string{"method", "status"}),
		requestDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "request_duration_seconds",
			Help:    "Wall time per request.",
			Buckets: prometheus.DefBuckets,
		}),
		activeRequests: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "active_requests",
			Help: "Requests currently in flight.",
		}),
		ratelimitTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ratelimit_decisions_total",
			Help: "Rate-limit evaluations, by policy and outcome.",
		}, []string{"policy", "outcome"}),
		cacheOps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cache_ops_total",
			Help: "Cache repository operations, by operation.",
		}, []string{"op"}),
	}

	collectors := []prometheus.Collector{
		m.requestsTotal, m.requestDuration, m.activeRequests,
		m.ratelimitTotal, m.cacheOps,
	}
	for _, collector := range collectors {
		if err := reg.Register(collector); err != nil {
			return nil, fmt.Errorf("metrics: register: %w", err)
		}
	}

	m.subscribe(hub)
	return m, nil
}

// subscribe attaches one handler per observed signal.
func (m *Metrics) subscribe(hub *events.Hub) {
	m.subs = append(m.subs,
		events.On(hub, func(events.RequestStarted) {
			m.activeRequests.Inc()
		}, events.WithKey("metrics")),
		events.On(hub, func(ev events.RequestFinished) {
			m.activeRequests.Dec()
			m.requestsTotal.WithLabelValues(ev.Method, strconv.Itoa(ev.Status)).Inc()
			m.requestDuration.Observe(ev.Duration.Seconds())
		}, events.WithKey("metrics")),
		events.On(hub, func(ev events.RateLimitAllowed) {
			m.ratelimitTotal.WithLabelValues(ev.Policy, "allowed").Inc()
		}, events.WithKey("metrics")),
		events.On(hub, func(ev events.RateLimitBlocked) {
			m.ratelimitTotal.WithLabelValues(ev.Policy, "blocked").Inc()
		}, events.WithKey("metrics")),
		events.On(hub, func(events.CacheHit) {
			m.cacheOps.WithLabelValues("hit").Inc()
		}, events.WithKey("metrics")),
		events.On(hub, func(events.CacheMiss) {
			m.cacheOps.WithLabelValues("miss").Inc()
		}, events.WithKey("metrics")),
		events.On(hub, func(events.CacheWrite) {
			m.cacheOps.WithLabelValues("write").Inc()
		}, events.WithKey("metrics")),
		events.On(hub, func(events.CacheForget) {
			m.cacheOps.WithLabelValues("forget").Inc()
		}, events.WithKey("metrics")),
	)
}

// Close cancels the hub subscriptions. Registered series remain in the
// registry but stop moving.
func (m *Metrics) Close() {
	for _, sub := range m.subs {
		sub.Cancel()
	}
	m.subs = nil
}

// Handler serves the registry in the Prometheus exposition format.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
