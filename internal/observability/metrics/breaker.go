package metrics

import "github.com/prometheus/client_golang/prometheus"

// BreakerMetrics exports circuit breaker state per upstream operation
// (ollama.embed, crossencoder.rerank, nats.publish, ...).
type BreakerMetrics struct {
	service     string
	state       *prometheus.GaugeVec
	transitions *prometheus.CounterVec
}

func NewBreakerMetrics(service string, registerer prometheus.Registerer) *BreakerMetrics {
	m := &BreakerMetrics{
		service: service,
		state: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "breaker",
			Name:      "state",
			Help:      "Circuit breaker state: 0 closed, 1 half-open, 2 open.",
		}, []string{"service", "operation"}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "breaker",
			Name:      "transitions_total",
			Help:      "Circuit breaker transitions by target state.",
		}, []string{"service", "operation", "to"}),
	}
	registerer.MustRegister(m.state, m.transitions)
	return m
}

func (m *BreakerMetrics) BreakerStateChanged(operation, _, to string) {
	m.transitions.WithLabelValues(m.service, operation, to).Inc()
	m.state.WithLabelValues(m.service, operation).Set(breakerStateValue(to))
}

func breakerStateValue(state string) float64 {
	switch state {
	case "open":
		return 2
	case "half-open":
		return 1
	default:
		return 0
	}
}
