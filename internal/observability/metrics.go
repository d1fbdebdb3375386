// Package observability defines the Prometheus metrics exposed on /metrics.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTPRequestsTotal counts requests by route, method and status class.
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "haulink",
		Name:      "http_requests_total",
		Help:      "HTTP requests served.",
	}, []string{"route", "method", "status"})

	// HTTPRequestDuration observes request latency by route.
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "haulink",
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request latency.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"route", "method"})

	// RequestsCreated counts trip requests by direction.
	RequestsCreated = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "haulink",
		Name:      "requests_created_total",
		Help:      "Trip requests created, by direction.",
	}, []string{"direction"})

	// Assignments counts accepted requests, split into driver bindings and
	// reassignment releases.
	Assignments = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "haulink",
		Name:      "assignments_total",
		Help:      "Accepted trip requests, by outcome.",
	}, []string{"outcome"})

	// CascadeRejections counts rival requests rejected by an acceptance.
	CascadeRejections = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "haulink",
		Name:      "cascade_rejections_total",
		Help:      "Rival requests auto-rejected when another was accepted.",
	})

	// SchedulingConflicts counts acceptances blocked by the conflict check.
	SchedulingConflicts = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "haulink",
		Name:      "scheduling_conflicts_total",
		Help:      "Acceptances rejected by the driver schedule conflict check.",
	})

	// MatchCacheHits counts eligible-driver cache hits and misses.
	MatchCacheHits = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "haulink",
		Name:      "match_cache_lookups_total",
		Help:      "Eligible-driver cache lookups.",
	}, []string{"result"})
)
