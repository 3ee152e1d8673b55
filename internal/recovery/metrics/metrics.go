package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the recovery module.
type Metrics struct {
	// Verification outcomes.
	VerifyOutcome *prometheus.CounterVec

	// Escrow registrations by created/updated.
	EscrowSubmission *prometheus.CounterVec

	// Vault-key delivery results.
	Delivery *prometheus.CounterVec

	// Full verification latency including store and delivery round trips.
	VerifyLatency prometheus.Histogram
}

// New creates a Metrics instance with all recovery module metrics registered.
func New() *Metrics {
	return &Metrics{
		VerifyOutcome: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "keyhaven_recovery_verifications_total",
			Help: "Total recovery verification outcomes",
		}, []string{"outcome"}),

		EscrowSubmission: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "keyhaven_recovery_escrow_submissions_total",
			Help: "Total escrow submissions by result",
		}, []string{"result"}), // result: "created", "updated", "error"

		Delivery: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "keyhaven_recovery_deliveries_total",
			Help: "Total vault-key delivery attempts by result",
		}, []string{"result"}), // result: "ok", "error"

		VerifyLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "keyhaven_recovery_verify_duration_seconds",
			Help:    "Duration of full recovery verification including delivery",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}),
	}
}

// IncrementOutcome records a verification outcome.
func (m *Metrics) IncrementOutcome(outcome string) {
	if m != nil {
		m.VerifyOutcome.WithLabelValues(outcome).Inc()
	}
}

// IncrementEscrow records an escrow submission result.
func (m *Metrics) IncrementEscrow(result string) {
	if m != nil {
		m.EscrowSubmission.WithLabelValues(result).Inc()
	}
}

// IncrementDelivery records a delivery attempt result.
func (m *Metrics) IncrementDelivery(result string) {
	if m != nil {
		m.Delivery.WithLabelValues(result).Inc()
	}
}

// ObserveVerifyLatency records the total verification duration.
func (m *Metrics) ObserveVerifyLatency(d time.Duration) {
	if m != nil {
		m.VerifyLatency.Observe(d.Seconds())
	}
}
