// Package metrics owns the prometheus registry and the service's collectors.
// A nil *Metrics is valid and records nothing.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	registry *prometheus.Registry

	fetches        *prometheus.CounterVec
	pageCacheHits  prometheus.Counter
	durableCache   *prometheus.CounterVec
	scrapeRequests *prometheus.CounterVec
	chatReplies    *prometheus.CounterVec
	sessions       prometheus.Gauge
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		fetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "breederchat",
			Name:      "page_fetches_total",
			Help:      "Outbound page fetches by outcome.",
		}, []string{"outcome"}),
		pageCacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "breederchat",
			Name:      "page_cache_hits_total",
			Help:      "Pages served from a session page cache instead of the network.",
		}),
		durableCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "breederchat",
			Name:      "durable_cache_ops_total",
			Help:      "Durable cache operations by op and outcome.",
		}, []string{"op", "outcome"}),
		scrapeRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "breederchat",
			Name:      "scrape_requests_total",
			Help:      "Scrape requests by variant and result code.",
		}, []string{"variant", "code"}),
		chatReplies: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "breederchat",
			Name:      "chat_replies_total",
			Help:      "Chat turns by responder outcome.",
		}, []string{"outcome"}),
		sessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "breederchat",
			Name:      "sessions_live",
			Help:      "Sessions currently held in memory.",
		}),
	}
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.fetches, m.pageCacheHits, m.durableCache, m.scrapeRequests, m.chatReplies, m.sessions,
	)
	return m
}

func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) Fetch(outcome string) {
	if m == nil {
		return
	}
	m.fetches.WithLabelValues(outcome).Inc()
}

func (m *Metrics) PageCacheHit() {
	if m == nil {
		return
	}
	m.pageCacheHits.Inc()
}

func (m *Metrics) DurableCache(op, outcome string) {
	if m == nil {
		return
	}
	m.durableCache.WithLabelValues(op, outcome).Inc()
}

func (m *Metrics) ScrapeRequest(variant, code string) {
	if m == nil {
		return
	}
	m.scrapeRequests.WithLabelValues(variant, code).Inc()
}

func (m *Metrics) ChatReply(outcome string) {
	if m == nil {
		return
	}
	m.chatReplies.WithLabelValues(outcome).Inc()
}

func (m *Metrics) SetSessions(n int) {
	if m == nil {
		return
	}
	m.sessions.Set(float64(n))
}
