package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ProviderCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "weatherproxy_provider_calls_total",
			Help: "Total upstream provider HTTP calls",
		},
		[]string{"provider", "outcome"},
	)

	ProviderLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "weatherproxy_provider_latency_seconds",
			Help:    "Upstream provider call latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"provider"},
	)

	CacheResultsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "weatherproxy_cache_results_total",
			Help: "Cache lookup results by keyspace and status",
		},
		[]string{"keyspace", "status"},
	)

	CacheBackendErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "weatherproxy_cache_backend_errors_total",
			Help: "Cache backend failures by operation",
		},
		[]string{"op"},
	)
)
