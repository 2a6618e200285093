package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ClaimsSucceededTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dispatch_claims_succeeded_total",
		Help: "Total number of orders successfully bound to a driver.",
	})

	ClaimConflictsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dispatch_claim_conflicts_total",
		Help: "Total number of claims rejected because the order was already assigned.",
	},
		[]string{"service_type"},
	)

	ClaimErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dispatch_claim_errors_total",
		Help: "Total number of claims failing for non-conflict reasons.",
	},
		[]string{"kind"},
	)

	ClaimDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "dispatch_claim_duration_seconds",
		Help:    "End-to-end duration of claim calls, all outcomes.",
		Buckets: prometheus.DefBuckets,
	})

	AssignmentCacheItems = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "dispatch_assignment_cache_items",
		Help: "Current number of active assignments held in the read cache.",
	})

	OutboxPublishedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dispatch_outbox_published_total",
		Help: "Total number of outbox tasks successfully published to Kafka.",
	})
)
