package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the document pipeline.
type Metrics struct {
	// Extraction outcomes by result and the method that produced the fields.
	ExtractionOutcome *prometheus.CounterVec

	// Structural rejections by failed check.
	StructuralRejection *prometheus.CounterVec

	// Full pipeline latency.
	ExtractLatency prometheus.Histogram
}

// New creates a Metrics instance with all document pipeline metrics registered.
func New() *Metrics {
	return &Metrics{
		ExtractionOutcome: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "keyhaven_document_extractions_total",
			Help: "Total extraction outcomes by result and extraction method",
		}, []string{"result", "method"}), // method: "shape", "generic", "mixed", "none"

		StructuralRejection: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "keyhaven_document_structural_rejections_total",
			Help: "Total structural rejections by failed check",
		}, []string{"check"}),

		ExtractLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "keyhaven_document_extract_duration_seconds",
			Help:    "Duration of full document extraction including validation",
			Buckets: []float64{0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1},
		}),
	}
}

// IncrementOutcome records an extraction outcome.
func (m *Metrics) IncrementOutcome(result, method string) {
	if m != nil {
		m.ExtractionOutcome.WithLabelValues(result, method).Inc()
	}
}

// IncrementStructuralRejection records a rejected document by failed check.
func (m *Metrics) IncrementStructuralRejection(check string) {
	if m != nil {
		m.StructuralRejection.WithLabelValues(check).Inc()
	}
}

// ObserveExtractLatency records the total extraction duration.
func (m *Metrics) ObserveExtractLatency(d time.Duration) {
	if m != nil {
		m.ExtractLatency.Observe(d.Seconds())
	}
}
