// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTPRequestDuration observes request latency by method, route template and status.
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "missoes",
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request latency.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "route", "status"})

	// GuardDenials counts requests blocked by access guards.
	GuardDenials = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "missoes",
		Name:      "guard_denials_total",
		Help:      "Requests denied by access guards, by required and actual level.",
	}, []string{"required", "actual"})

	// MissionAccepts counts mission acceptances; result is "inserted" or "updated".
	MissionAccepts = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "missoes",
		Name:      "mission_accepts_total",
		Help:      "Mission acceptances by outcome.",
	}, []string{"result"})

	// EmailJobs counts processed e-mail jobs by status.
	EmailJobs = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "missoes",
		Name:      "email_jobs_total",
		Help:      "E-mail jobs processed by the worker.",
	}, []string{"status"})
)
