// Package metrics exports prometheus collectors for fetches, persistence,
// deliveries and handled updates, plus an optional /metrics HTTP server.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"kursbot/internal/currency"
	"kursbot/internal/delivery"
)

const namespace = "kursbot"

// Metrics owns its registry so tests and parallel instances do not collide.
type Metrics struct {
	reg *prometheus.Registry

	FetchTotal      *prometheus.CounterVec
	FetchDuration   *prometheus.HistogramVec
	CacheHits       *prometheus.CounterVec
	PersistFailures *prometheus.CounterVec
	Deliveries      *prometheus.CounterVec
	Updates         *prometheus.CounterVec
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)
	return &Metrics{
		reg: reg,
		FetchTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "rate_fetch_total",
				Help:      "Rate page fetches by currency and result.",
			},
			[]string{"currency", "result"},
		),
		FetchDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "rate_fetch_duration_seconds",
				Help:      "Time to retrieve and extract one rate page.",
				Buckets:   prometheus.ExponentialBuckets(0.05, 2, 10), // 50ms .. ~25s
			},
			[]string{"currency"},
		),
		CacheHits: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "rate_cache_hits_total",
				Help:      "Rate requests served from the cache.",
			},
			[]string{"currency"},
		),
		PersistFailures: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "persist_failures_total",
				Help:      "Failed history writes after a fetch.",
			},
			[]string{"currency"},
		),
		Deliveries: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "deliveries_total",
				Help:      "Outbound sends by batch source and outcome.",
			},
			[]string{"source", "outcome"},
		),
		Updates: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "updates_total",
				Help:      "Handled bot updates by route.",
			},
			[]string{"route"},
		),
	}
}

func (m *Metrics) Registry() *prometheus.Registry { return m.reg }

// FetchDone records one fetch attempt.
func (m *Metrics) FetchDone(sym currency.Symbol, took time.Duration, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.FetchTotal.WithLabelValues(sym.String(), result).Inc()
	m.FetchDuration.WithLabelValues(sym.String()).Observe(took.Seconds())
}

func (m *Metrics) CacheHit(sym currency.Symbol) {
	m.CacheHits.WithLabelValues(sym.String()).Inc()
}

func (m *Metrics) PersistFailed(sym currency.Symbol) {
	m.PersistFailures.WithLabelValues(sym.String()).Inc()
}

func (m *Metrics) Delivered(source string, outcome delivery.Outcome) {
	m.Deliveries.WithLabelValues(source, string(outcome)).Inc()
}

// UpdateHandled counts one routed update, e.g. "cmd:kurs" or "cb:rate".
func (m *Metrics) UpdateHandled(route string) {
	m.Updates.WithLabelValues(route).Inc()
}
