package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	OccurrencesMaterialized = promauto.NewCounter(prometheus.CounterOpts{
		Name: "calengine_occurrences_materialized_total",
		Help: "Total number of occurrences produced by the materializer.",
	})

	ExpansionFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "calengine_expansion_failures_total",
		Help: "Total number of source records whose ICS payload failed to expand.",
	})

	ExpansionTruncated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "calengine_expansion_truncated_total",
		Help: "Total number of expansions cut short by the per-event occurrence cap.",
	})

	RecurringEdits = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "calengine_recurring_edits_total",
		Help: "Recurring event time changes by the scope chosen by the user.",
	}, []string{"scope"})

	Tasks = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "calengine_tasks_total",
		Help: "Persistence tasks processed by kind and result.",
	}, []string{"kind", "result"})

	Undo = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "calengine_undo_total",
		Help: "Undo requests by result.",
	}, []string{"result"})
)
