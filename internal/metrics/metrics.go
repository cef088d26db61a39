package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Extraction outcomes
const (
	OutcomeSuccess = "success"
	OutcomeFailed  = "failed"
	OutcomeSkipped = "skipped"
)

// Sources of a saved receipt
const (
	SourceExtraction = "extraction"
	SourceManual     = "manual"
	SourceEdit       = "edit"
	SourceImport     = "import"
	SourceToggle     = "toggle"
)

// Metrics holds the application counters on a dedicated registry
type Metrics struct {
	registry *prometheus.Registry

	Extractions     *prometheus.CounterVec
	ReceiptsSaved   *prometheus.CounterVec
	ReceiptsDeleted prometheus.Counter
}

// New creates the counters and registers them along with the Go runtime collectors
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		Extractions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "receiptify",
			Name:      "extractions_total",
			Help:      "Receipt field extractions by outcome.",
		}, []string{"outcome"}),
		ReceiptsSaved: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "receiptify",
			Name:      "receipts_saved_total",
			Help:      "Receipts written to the store by source.",
		}, []string{"source"}),
		ReceiptsDeleted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "receiptify",
			Name:      "receipts_deleted_total",
			Help:      "Receipts removed from the store.",
		}),
	}

	m.registry.MustRegister(
		m.Extractions,
		m.ReceiptsSaved,
		m.ReceiptsDeleted,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return m
}

// Extraction counts one extraction attempt
func (m *Metrics) Extraction(outcome string) {
	if m == nil {
		return
	}
	m.Extractions.WithLabelValues(outcome).Inc()
}

// Saved counts one receipt write
func (m *Metrics) Saved(source string) {
	if m == nil {
		return
	}
	m.ReceiptsSaved.WithLabelValues(source).Inc()
}

// Deleted counts one receipt removal
func (m *Metrics) Deleted() {
	if m == nil {
		return
	}
	m.ReceiptsDeleted.Inc()
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
