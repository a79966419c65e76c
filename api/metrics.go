/*
metrics.go - Prometheus instrumentation

PURPOSE:
  Counters for the write paths of the ledger. Registered on the default
  registry and exposed via /metrics.
*/
package api

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	paymentsRecorded = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rewards_payments_recorded_total",
		Help: "Payments recorded, by payment type. Replays are not counted.",
	}, []string{"type"})

	pointsAccrued = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rewards_points_accrued_total",
		Help: "Total reward points credited to users.",
	})

	redemptionsCompleted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rewards_redemptions_total",
		Help: "Completed catalog redemptions.",
	})

	gateRejections = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rewards_gate_rejections_total",
		Help: "Requests rejected by the credit score gate.",
	})
)
