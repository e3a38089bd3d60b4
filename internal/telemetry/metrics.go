// Package telemetry exposes prometheus instrumentation for the pipeline
// core. Counters are package-level so the engine can increment them without
// plumbing a registry through every constructor.
package telemetry

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	once sync.Once

	// TransitionsTotal counts applied transitions by intent (advance,
	// approve, fail, retry, rollback, restart).
	TransitionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "adforge_transitions_total", Help: "Applied stage transitions by intent"},
		[]string{"intent"},
	)
	// TransitionConflicts counts compare-and-set losses.
	TransitionConflicts = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "adforge_transition_conflicts_total", Help: "Transitions lost to concurrent modification"},
	)
	// StaleAdvancesDiscarded counts worker callbacks dropped by the epoch check.
	StaleAdvancesDiscarded = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "adforge_stale_advances_discarded_total", Help: "Worker results discarded for abandoned generation epochs"},
	)
	// GenerationFailures counts stage failures recorded by the engine.
	GenerationFailures = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "adforge_generation_failures_total", Help: "Stage failures recorded"},
	)
	// AutoRetries counts failures absorbed by the automatic retry budget.
	AutoRetries = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "adforge_auto_retries_total", Help: "Failures re-dispatched from the retry budget"},
	)
	// StageDispatches counts generation stages handed to the dispatcher.
	StageDispatches = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "adforge_stage_dispatches_total", Help: "Processing stages dispatched for generation"},
	)
)

// Handler exposes the /metrics HTTP handler with a singleton registration.
func Handler() http.Handler {
	once.Do(func() {
		prometheus.MustRegister(
			TransitionsTotal,
			TransitionConflicts,
			StaleAdvancesDiscarded,
			GenerationFailures,
			AutoRetries,
			StageDispatches,
		)
	})
	return promhttp.Handler()
}
