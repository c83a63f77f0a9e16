// Package metrics provides Prometheus metrics for the incident engine (RED + domain counters).
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "incident_engine"

var (
	// HTTPRequestTotal counts requests by method, path, status (RED: rate).
	HTTPRequestTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests by method, path, and status.",
		},
		[]string{"method", "path", "status"},
	)

	// HTTPRequestDurationSeconds is request latency histogram (RED: duration).
	HTTPRequestDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2.5, 10), // 1ms to ~9.3s
		},
		[]string{"method", "path"},
	)

	// ChunksIngestedTotal counts ingested transcript chunks by outcome.
	ChunksIngestedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chunks_ingested_total",
			Help:      "Total number of transcript chunks ingested, by outcome.",
		},
		[]string{"outcome"}, // outcome: applied, skipped
	)

	// ExtractionFallbackTotal counts extractions that fell back to the
	// deterministic extractor after an LLM call failed or returned unparseable
	// JSON. Running the deterministic extractor directly (no OPENAI_API_KEY)
	// does not count.
	ExtractionFallbackTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "extraction_fallback_total",
			Help:      "Total number of claim extractions that fell back to the deterministic extractor.",
		},
	)

	// ExtractionDurationSeconds is claim extraction latency by extractor kind.
	ExtractionDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "extraction_duration_seconds",
			Help:      "Claim extraction duration in seconds.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 10), // 10ms to ~5s
		},
		[]string{"extractor"}, // extractor: llm, deterministic
	)

	// ClusterAssignTotal counts clustering decisions by outcome.
	ClusterAssignTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cluster_assign_total",
			Help:      "Total number of clustering assignments, by outcome.",
		},
		[]string{"outcome"}, // outcome: joined, new, degraded
	)

	// ClusterAssignDurationSeconds is clustering decision latency.
	ClusterAssignDurationSeconds = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "cluster_assign_duration_seconds",
			Help:      "Clustering assignment duration in seconds.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 10), // 10ms to ~5s
		},
	)

	// ClaimMergeTotal counts claim merge operations by claim type and result.
	// Only the single-valued incident_type and people_estimate merges are
	// counted; location, hazard and device_location merges are not.
	ClaimMergeTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "claim_merge_total",
			Help:      "Total number of claim merge operations, by claim type and result.",
		},
		[]string{"claim_type", "result"}, // result: replaced, kept, appended
	)

	// AnalyticsDispatchFailuresTotal counts best-effort analytics sink failures.
	AnalyticsDispatchFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "analytics_dispatch_failures_total",
			Help:      "Total number of analytics sink dispatch failures, by operation.",
		},
		[]string{"operation"}, // operation: record_chunk, record_snapshot
	)

	// OpenAICallsTotal counts outbound OpenAI calls by kind and outcome.
	OpenAICallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "openai_calls_total",
			Help:      "Total number of outbound OpenAI API calls, by kind and outcome.",
		},
		[]string{"kind", "outcome"}, // kind: embed, judge, extract; outcome: success, error, timeout
	)
)
