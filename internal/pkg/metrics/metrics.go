package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// FetchAttempts counts outbound fetch attempts per source.
	FetchAttempts = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "portfolio_fetch_attempts_total",
		Help: "Number of balance fetch attempts per source.",
	}, []string{"source"})

	// FetchOutcomes counts settled fetch cycles per source and outcome kind.
	FetchOutcomes = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "portfolio_fetch_outcomes_total",
		Help: "Number of settled fetch cycles per source and outcome.",
	}, []string{"source", "outcome"})

	// FetchDuration observes wall time of fetch cycles per source.
	FetchDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "portfolio_fetch_duration_seconds",
		Help:    "Duration of balance fetch cycles per source.",
		Buckets: prometheus.ExponentialBuckets(0.05, 2, 10),
	}, []string{"source"})

	// CacheHits, CacheMisses and CacheEvictions track the namespaced cache.
	CacheHits = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "portfolio_cache_hits_total",
		Help: "Cache hits per namespace.",
	}, []string{"namespace"})
	CacheMisses = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "portfolio_cache_misses_total",
		Help: "Cache misses per namespace.",
	}, []string{"namespace"})
	CacheEvictions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "portfolio_cache_evictions_total",
		Help: "Cache evictions per namespace (LRU and sweep).",
	}, []string{"namespace"})

	// RateLimitRejections counts sliding-window rejections per source.
	RateLimitRejections = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "portfolio_ratelimit_rejections_total",
		Help: "Requests rejected by the sliding-window limiter per source.",
	}, []string{"source"})

	// PortfolioTotal exposes the current aggregate portfolio value.
	PortfolioTotal = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "portfolio_total_value_usd",
		Help: "Current aggregate portfolio value in USD.",
	})
)

// MustRegisterMetrics registers all collectors on the default registry.
// Called once from the composition root.
func MustRegisterMetrics() {
	prometheus.MustRegister(
		FetchAttempts,
		FetchOutcomes,
		FetchDuration,
		CacheHits,
		CacheMisses,
		CacheEvictions,
		RateLimitRejections,
		PortfolioTotal,
	)
}
