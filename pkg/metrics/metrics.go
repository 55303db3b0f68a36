package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// PassVerifications counts guard verification attempts by outcome
	// (granted|denied|banned).
	PassVerifications = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "estateflow_pass_verifications_total",
			Help: "Total number of gate pass verification attempts",
		},
		[]string{"outcome"},
	)

	// InvitationsIssued counts issued invitations by role (tenant|guard).
	InvitationsIssued = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "estateflow_invitations_issued_total",
			Help: "Total number of invitations issued",
		},
		[]string{"role"},
	)

	// InvitationsAccepted counts accepted invitations by role.
	InvitationsAccepted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "estateflow_invitations_accepted_total",
			Help: "Total number of invitations accepted",
		},
		[]string{"role"},
	)

	// APILatency measures HTTP request latencies.
	APILatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "estateflow_api_latency_seconds",
			Help:    "API endpoint latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)
