package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	DecisionCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gateway_decisions_total",
			Help: "Total number of routing decisions by outcome",
		},
		[]string{"outcome"},
	)

	DecisionDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name: "gateway_decision_duration_seconds",
			Help: "Routing decision duration in seconds",
		},
	)

	FailoverAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gateway_failover_attempts_total",
			Help: "Total number of completion attempts by result",
		},
		[]string{"result"},
	)

	LoadCacheEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gateway_load_cache_total",
			Help: "Provider load cache lookups by event",
		},
		[]string{"event"},
	)

	ProviderRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gateway_provider_requests_total",
			Help: "Total number of upstream provider requests by status",
		},
		[]string{"provider", "status"},
	)
)
