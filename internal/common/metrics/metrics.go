// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	TurnsProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "assistant_turns_processed_total",
			Help: "Total number of dialogue turns processed",
		},
		[]string{"intent", "status"},
	)

	TurnDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "assistant_turn_duration_seconds",
			Help: "Duration of dialogue turn processing in seconds",
		},
		[]string{"intent"},
	)

	SearchesExecuted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "assistant_searches_executed_total",
			Help: "Total number of scored searches executed",
		},
		[]string{"intent"},
	)

	SearchResultCount = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "assistant_search_result_count",
			Help: "Number of results returned per search",
			Buckets: []float64{0, 1, 2, 5, 10, 20, 50},
		},
		[]string{"intent"},
	)

	SessionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "assistant_sessions_active",
			Help: "Number of live sessions in the store",
		},
	)

	SessionsEvicted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "assistant_sessions_evicted_total",
			Help: "Total number of sessions evicted by the TTL reaper",
		},
	)

	SchemaReloads = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "assistant_schema_reloads_total",
			Help: "Total number of schema reload attempts",
		},
		[]string{"result"},
	)

	OracleRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "assistant_oracle_requests_total",
			Help: "Total number of NLU oracle requests",
		},
		[]string{"result"},
	)

	WebSearchRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "assistant_web_search_requests_total",
			Help: "Total number of web search requests",
		},
		[]string{"result"},
	)
)
