package reconciliation

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	checksRun = promauto.NewCounter(prometheus.CounterOpts{
		Name: "reconciliation_checks_total",
		Help: "Individual invariant checks executed.",
	})

	discrepanciesFound = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reconciliation_discrepancies_total",
		Help: "New discrepancies opened, by severity.",
	}, []string{"severity"})

	discrepanciesResolved = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reconciliation_discrepancies_resolved_total",
		Help: "Discrepancies resolved, by resolution type.",
	}, []string{"type"})
)
