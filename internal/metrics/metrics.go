package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RefreshAttempts counts token refresh calls made against the backend.
	RefreshAttempts = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "aido_client_refresh_attempts_total",
			Help: "The total number of token refresh calls made to the backend.",
		},
	)

	// RefreshSuccesses counts refreshes that produced a new token pair.
	RefreshSuccesses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "aido_client_refresh_successes_total",
			Help: "The total number of successful token refreshes.",
		},
	)

	// RefreshFailures counts failed refreshes, labeled by reason.
	RefreshFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aido_client_refresh_failures_total",
			Help: "The total number of failed token refreshes.",
		},
		[]string{"reason"},
	)

	// CoalescedWaiters counts callers whose refresh result came from a
	// shared in-flight call rather than a dedicated one.
	CoalescedWaiters = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "aido_client_refresh_coalesced_waiters_total",
			Help: "The total number of callers that shared an in-flight refresh.",
		},
	)

	// RequestRetries counts requests re-issued after a refresh.
	RequestRetries = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "aido_client_request_retries_total",
			Help: "The total number of requests re-issued with a fresh token.",
		},
	)
)
