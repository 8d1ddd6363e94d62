// Package metrics exposes the engine's Prometheus counters.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// InstancesMarkedMissed counts instances transitioned to MISSED by
	// the sweep job.
	InstancesMarkedMissed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "stride_instances_marked_missed_total",
		Help: "Action instances transitioned from PENDING to MISSED by the sweep job.",
	})

	// EnforcementEvaluations counts per-user enforcement evaluations by
	// outcome of the evaluation itself.
	EnforcementEvaluations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "stride_enforcement_evaluations_total",
		Help: "Per-user enforcement evaluations run by the engine.",
	}, []string{"result"})

	// WebhookDeliveries counts webhook delivery attempts by result.
	WebhookDeliveries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "stride_webhook_deliveries_total",
		Help: "Webhook delivery attempts by the notification worker.",
	}, []string{"result"})
)

// Handler returns the HTTP handler serving the metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
