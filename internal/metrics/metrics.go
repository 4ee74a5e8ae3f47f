// Package metrics exposes Prometheus instruments for the request lifecycle
// and the live feed.
package metrics

import (
	"context"
	"net/http"

	"github.com/phrazzld/detailer-api/internal/events"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	RequestsCreatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "detailer_requests_created_total",
		Help: "Total number of service requests successfully created.",
	})

	RequestTransitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "detailer_request_transitions_total",
		Help: "Total number of confirmed status transitions, by target status.",
	},
		[]string{"to"},
	)

	TransitionRejectionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "detailer_request_transition_rejections_total",
		Help: "Total number of refused transitions, by attempted target status.",
	},
		[]string{"to"},
	)

	OperationErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "detailer_operation_errors_total",
		Help: "Total number of errors encountered during specific operations.",
	},
		[]string{"operation"},
	)

	ActiveSubscriptions = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "detailer_feed_active_subscriptions",
		Help: "Current number of open live feed subscriptions, by role.",
	},
		[]string{"role"},
	)

	FeedResyncsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "detailer_feed_resyncs_total",
		Help: "Total number of times a dropped feed was re-established.",
	})

	FeedSnapshotsDroppedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "detailer_feed_snapshots_dropped_total",
		Help: "Total number of snapshots not delivered, by reason.",
	},
		[]string{"reason"},
	)
)

// Snapshot drop reasons.
const (
	DropSuperseded = "superseded"
	DropRegression = "regression"
)

// Handler serves the default registry in the Prometheus exposition format.
func Handler() http.Handler {
	return promhttp.Handler()
}

// EventHandler returns an events.EventHandler that counts lifecycle events.
func EventHandler() events.EventHandler {
	return events.EventHandlerFunc(func(_ context.Context, e *events.RequestEvent) error {
		switch e.Type {
		case events.TypeRequestCreated:
			RequestsCreatedTotal.Inc()
		case events.TypeRequestTransitioned:
			RequestTransitionsTotal.WithLabelValues(string(e.To)).Inc()
		case events.TypeTransitionRejected:
			TransitionRejectionsTotal.WithLabelValues(string(e.To)).Inc()
		}
		return nil
	})
}
