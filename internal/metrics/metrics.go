// Package metrics exposes Prometheus collectors for the subscription engine.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics bundles the engine's counters. A single instance is created in main
// and injected where needed, mirroring how the store is wired.
type Metrics struct {
	UpdatesReceived   prometheus.Counter
	DuplicatesDropped prometheus.Counter
	SweepTicks        prometheus.Counter
	// Revocations is labeled by outcome: kicked, unprivileged, already_gone.
	Revocations    *prometheus.CounterVec
	NotifyFailures prometheus.Counter
}

// New registers the collectors on reg and returns them.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		UpdatesReceived: factory.NewCounter(prometheus.CounterOpts{
			Name: "subkeeper_updates_received_total",
			Help: "Inbound transport updates accepted by the webhook or poller.",
		}),
		DuplicatesDropped: factory.NewCounter(prometheus.CounterOpts{
			Name: "subkeeper_duplicate_updates_dropped_total",
			Help: "Updates suppressed by the idempotency filter.",
		}),
		SweepTicks: factory.NewCounter(prometheus.CounterOpts{
			Name: "subkeeper_sweep_ticks_total",
			Help: "Expiry sweep runs.",
		}),
		Revocations: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "subkeeper_membership_revocations_total",
			Help: "Expired memberships removed, by outcome.",
		}, []string{"outcome"}),
		NotifyFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "subkeeper_notify_failures_total",
			Help: "Best-effort expiry notifications that could not be delivered.",
		}),
	}
}
