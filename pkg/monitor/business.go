package monitor

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// JobTransitionsTotal counts job status changes by target status.
	JobTransitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tezos_gateway_job_transitions_total",
		Help: "Job status transitions by target status",
	}, []string{"status"})

	ForgeDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "tezos_gateway_forge_duration_seconds",
		Help:    "Duration of forge and estimate requests",
		Buckets: prometheus.DefBuckets,
	}, []string{"mode", "outcome"})

	PoolAttemptsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tezos_gateway_pool_attempts_total",
		Help: "Attempts made against pooled external services",
	}, []string{"pool", "member", "outcome"})

	ConfirmationEventsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tezos_gateway_confirmation_events_total",
		Help: "Transaction confirmed events published to the broker",
	})

	OutboxRelayedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tezos_gateway_outbox_relayed_total",
		Help: "Outbox messages handed to the broker",
	}, []string{"topic", "outcome"})
)
