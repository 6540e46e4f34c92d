// Package metrics exposes the loop's operational counters for Prometheus.
// The daemon serves them on /metrics when a listen address is configured.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// BarrierChecks counts barrier check evaluations by result:
	// satisfied, unsatisfied, error.
	BarrierChecks = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "wildloop",
		Name:      "barrier_checks_total",
		Help:      "Barrier check evaluations by result.",
	}, []string{"result"})

	// BarriersSatisfied counts barriers that reached satisfied.
	BarriersSatisfied = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "wildloop",
		Name:      "barriers_satisfied_total",
		Help:      "Barriers flipped to satisfied by the monitor.",
	})

	// Selections counts work selections by kind.
	Selections = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "wildloop",
		Name:      "selections_total",
		Help:      "Work selections by kind.",
	}, []string{"kind"})

	// Escalations counts decisions to surface an alert to a human.
	Escalations = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "wildloop",
		Name:      "escalations_total",
		Help:      "Escalation decisions by urgency.",
	}, []string{"urgency"})

	// ActiveAlerts tracks the size of the active-alerts view.
	ActiveAlerts = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "wildloop",
		Name:      "alerts_active",
		Help:      "Unresolved alerts in the event log.",
	})

	// WaitingBarriers tracks barriers still gating work.
	WaitingBarriers = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "wildloop",
		Name:      "barriers_waiting",
		Help:      "Barriers in waiting status.",
	})
)

// Handler returns the /metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
