package metrics

import "github.com/prometheus/client_golang/prometheus"

// Prometheus collectors for the shipment lifecycle and the location pipeline.
var (
	StatusTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shipment_status_transitions_total",
			Help: "Shipment status changes, by target status",
		},
		[]string{"status"},
	)

	ApprovalDecisions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shipment_approval_decisions_total",
			Help: "Approval decisions recorded, by party and outcome",
		},
		[]string{"party", "outcome"},
	)

	AutoApprovals = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "shipment_auto_approvals_total",
			Help: "Shipments whose pending approval slots were resolved by the deadline",
		},
	)

	RejectedOperations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shipment_operations_rejected_total",
			Help: "Status or approval operations rejected, by operation and error code",
		},
		[]string{"operation", "code"},
	)

	LocationSamples = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "driver_location_samples_total",
			Help: "Driver location samples stored",
		},
	)

	SweepDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "approval_sweep_duration_seconds",
			Help:    "Duration of auto-approval sweeps",
			Buckets: prometheus.DefBuckets,
		},
	)

	WebSocketClients = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "websocket_clients",
			Help: "Connected change-feed subscribers",
		},
	)
)

// Register registers all collectors with reg.
func Register(reg prometheus.Registerer) {
	reg.MustRegister(
		StatusTransitions,
		ApprovalDecisions,
		AutoApprovals,
		RejectedOperations,
		LocationSamples,
		SweepDuration,
		WebSocketClients,
	)
}
