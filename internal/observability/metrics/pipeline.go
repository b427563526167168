package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/kirillkom/club-events-assistant/internal/core/domain"
)

// PipelineMetrics records question answering and ingestion outcomes. It
// satisfies ports.PipelineObserver.
type PipelineMetrics struct {
	service string

	intentsTotal    *prometheus.CounterVec
	answersTotal    *prometheus.CounterVec
	answerDuration  *prometheus.HistogramVec
	retrievalSize   prometheus.Histogram
	retrievalsTotal *prometheus.CounterVec
	ingestsTotal    *prometheus.CounterVec
}

func NewPipelineMetrics(service string, registerer prometheus.Registerer) *PipelineMetrics {
	m := &PipelineMetrics{
		service: service,
		intentsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "intents_total",
			Help:      "Classified questions by intent and whether the fallback was used.",
		}, []string{"service", "intent", "fallback"}),
		answersTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "answers_total",
			Help:      "Answered questions by intent and outcome.",
		}, []string{"service", "intent", "outcome"}),
		answerDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "answer_duration_seconds",
			Help:      "End to end answer latency by intent.",
			Buckets:   []float64{0.25, 0.5, 1, 2, 5, 10, 20, 40},
		}, []string{"service", "intent"}),
		retrievalSize: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace:   namespace,
			Subsystem:   "pipeline",
			Name:        "retrieval_candidates",
			Help:        "Passages returned by hybrid retrieval per question.",
			Buckets:     []float64{0, 1, 2, 3, 5, 8, 13},
			ConstLabels: prometheus.Labels{"service": service},
		}),
		retrievalsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "retrievals_total",
			Help:      "Hybrid retrievals by outcome.",
		}, []string{"service", "outcome"}),
		ingestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingest",
			Name:      "results_total",
			Help:      "Event submissions by result status.",
		}, []string{"service", "status"}),
	}

	registerer.MustRegister(
		m.intentsTotal,
		m.answersTotal,
		m.answerDuration,
		m.retrievalSize,
		m.retrievalsTotal,
		m.ingestsTotal,
	)
	return m
}

func (m *PipelineMetrics) ObserveIntent(kind domain.IntentKind, fallback bool) {
	m.intentsTotal.WithLabelValues(m.service, string(kind), boolLabel(fallback)).Inc()
}

func (m *PipelineMetrics) ObserveRetrieval(candidates int, outcome domain.RetrievalOutcome) {
	m.retrievalSize.Observe(float64(candidates))
	m.retrievalsTotal.WithLabelValues(m.service, string(outcome)).Inc()
}

func (m *PipelineMetrics) ObserveAnswer(kind domain.IntentKind, outcome string, elapsed time.Duration) {
	intent := string(kind)
	if intent == "" {
		intent = "none"
	}
	m.answersTotal.WithLabelValues(m.service, intent, outcome).Inc()
	m.answerDuration.WithLabelValues(m.service, intent).Observe(elapsed.Seconds())
}

func (m *PipelineMetrics) ObserveIngest(status domain.IngestStatus) {
	m.ingestsTotal.WithLabelValues(m.service, string(status)).Inc()
}

func boolLabel(v bool) string {
	if v {
		return "true"
	}
	return "false"
}
