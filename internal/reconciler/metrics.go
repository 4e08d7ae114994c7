package reconciler

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	SweepsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "routeman_reconciler_sweeps_total",
		Help: "Total number of reconciliation sweeps",
	})

	TransitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "routeman_reconciler_transitions_total",
		Help: "Total number of route lifecycle transitions applied",
	},
		[]string{"transition"},
	)

	ErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "routeman_reconciler_errors_total",
		Help: "Total number of reconciliation errors",
	},
		[]string{"op"},
	)
)
