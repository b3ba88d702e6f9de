package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	AggregateRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "discussed_aggregate_requests_total",
			Help: "Total number of aggregate requests by outcome status",
		},
		[]string{"status"},
	)

	AggregateDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "discussed_aggregate_duration_seconds",
			Help:    "End-to-end duration of aggregate requests in seconds",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		},
	)

	BlacklistedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "discussed_blacklisted_total",
			Help: "Aggregate requests short-circuited by the blacklist",
		},
	)

	ProviderQueriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "discussed_provider_queries_total",
			Help: "Total number of provider queries executed",
		},
		[]string{"provider", "query_type", "outcome"},
	)

	ProviderQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "discussed_provider_query_duration_seconds",
			Help:    "Duration of provider queries in seconds",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10},
		},
		[]string{"provider"},
	)

	CacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "discussed_cache_lookups_total",
			Help: "Cache lookups by result (hit or miss)",
		},
		[]string{"result"},
	)

	CacheEvictions = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "discussed_cache_evictions_total",
			Help: "Entries deleted by the cache sweeper",
		},
	)

	ScoringFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "discussed_scoring_failures_total",
			Help: "Relevance scoring calls that failed and left results unscored",
		},
	)
)

// RecordProviderQuery updates provider metrics for one (provider, query type) slot
func RecordProviderQuery(provider, queryType string, err error, elapsed time.Duration) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	ProviderQueriesTotal.WithLabelValues(provider, queryType, outcome).Inc()
	ProviderQueryDuration.WithLabelValues(provider).Observe(elapsed.Seconds())
}

// Handler exposes the default registry in Prometheus text format
func Handler() http.Handler {
	return promhttp.Handler()
}
