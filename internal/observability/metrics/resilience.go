package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sony/gobreaker/v2"
)

// ResilienceMetrics counts retries and breaker state changes reported by the resilience executor.
type ResilienceMetrics struct {
	service      string
	retries      *prometheus.CounterVec
	breakerState *prometheus.GaugeVec
}

func NewResilienceMetrics(registerer prometheus.Registerer, service string) *ResilienceMetrics {
	retries := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "resilience",
			Name:      "retries_total",
			Help:      "Retried dependency calls by operation.",
		},
		[]string{"service", "operation"},
	)
	breakerState := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "resilience",
			Name:      "breaker_state",
			Help:      "Circuit breaker state by operation (0 closed, 1 half-open, 2 open).",
		},
		[]string{"service", "operation"},
	)
	registerer.MustRegister(retries, breakerState)
	return &ResilienceMetrics{service: service, retries: retries, breakerState: breakerState}
}

func (m *ResilienceMetrics) ObserveRetry(operation string, _ int, _ error) {
	m.retries.WithLabelValues(m.service, operation).Inc()
}

func (m *ResilienceMetrics) ObserveStateChange(operation string, _, to gobreaker.State) {
	var value float64
	switch to {
	case gobreaker.StateHalfOpen:
		value = 1
	case gobreaker.StateOpen:
		value = 2
	}
	m.breakerState.WithLabelValues(m.service, operation).Set(value)
}
