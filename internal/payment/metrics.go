package payment

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metric names as constants for consistency.
const (
	MetricPaymentsTotal          = "admin_payments_total"
	MetricVoidsTotal             = "admin_payment_voids_total"
	MetricTokensSavedTotal       = "admin_payment_tokens_saved_total"
	MetricGatewayRequestDuration = "gateway_request_duration_seconds"
)

// Metrics contains Prometheus metrics for the payment workflow.
// All operations are thread-safe.
type Metrics struct {
	payments        *prometheus.CounterVec
	voids           *prometheus.CounterVec
	tokensSaved     prometheus.Counter
	gatewayDuration *prometheus.HistogramVec
}

// NewMetrics creates and returns a new Metrics instance with all collectors
// initialized. The metrics are not registered; call Register to register them
// with a registry.
func NewMetrics() *Metrics {
	return &Metrics{
		payments: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricPaymentsTotal,
				Help: "Total number of admin payment attempts by result",
			},
			[]string{"result"},
		),
		voids: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricVoidsTotal,
				Help: "Total number of prior-transaction voids by result",
			},
			[]string{"result"},
		),
		tokensSaved: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: MetricTokensSavedTotal,
				Help: "Total number of payment tokens saved after approved charges",
			},
		),
		gatewayDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    MetricGatewayRequestDuration,
				Help:    "Gateway call duration in seconds",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0},
			},
			[]string{"operation"},
		),
	}
}

// Register registers all metrics with the given registry.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		m.payments,
		m.voids,
		m.tokensSaved,
		m.gatewayDuration,
	}
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// RecordPayment increments the payment counter for a result label.
func (m *Metrics) RecordPayment(result string) {
	m.payments.WithLabelValues(result).Inc()
}

// RecordVoid increments the void counter for a result label.
func (m *Metrics) RecordVoid(result string) {
	m.voids.WithLabelValues(result).Inc()
}

// RecordTokenSaved increments the saved-token counter.
func (m *Metrics) RecordTokenSaved() {
	m.tokensSaved.Inc()
}

// ObserveGatewayDuration records the duration of a gateway call.
func (m *Metrics) ObserveGatewayDuration(operation string, seconds float64) {
	m.gatewayDuration.WithLabelValues(operation).Observe(seconds)
}
