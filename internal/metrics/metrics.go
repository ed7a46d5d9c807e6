// Package metrics holds the Prometheus instruments for the decision engine.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds Prometheus metrics for the engine.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	DecisionsTotal            *prometheus.CounterVec
	CollaboratorFailuresTotal *prometheus.CounterVec
	FeedbackTotal             *prometheus.CounterVec
	PromotionsTotal           prometheus.Counter
	LearningFailuresTotal     prometheus.Counter
	ProcessDuration           prometheus.Histogram
}

// New creates the metrics on a private registry.
//
// Metrics:
//   - smartfix_decisions_total{source} - responses by source (memory, fresh_analysis, error)
//   - smartfix_collaborator_failures_total{collaborator} - normalize, analysis and web search failures
//   - smartfix_feedback_total{outcome} - feedback submissions by status
//   - smartfix_promotions_total - fresh analyses promoted to records
//   - smartfix_learning_failures_total - interactions that could not be learned
//   - smartfix_process_duration_seconds - end-to-end Process latency
func New() *Metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(registry)

	return &Metrics{
		registry: registry,

		DecisionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "smartfix_decisions_total",
				Help: "Total number of processed queries by response source",
			},
			[]string{"source"},
		),

		CollaboratorFailuresTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "smartfix_collaborator_failures_total",
				Help: "Total number of failed external collaborator calls",
			},
			[]string{"collaborator"},
		),

		FeedbackTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "smartfix_feedback_total",
				Help: "Total number of feedback submissions by outcome",
			},
			[]string{"outcome"},
		),

		PromotionsTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "smartfix_promotions_total",
				Help: "Total number of fresh analyses promoted to knowledge records",
			},
		),

		LearningFailuresTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "smartfix_learning_failures_total",
				Help: "Total number of interactions that failed to be learned",
			},
		),

		ProcessDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "smartfix_process_duration_seconds",
				Help:    "Duration of query processing in seconds",
				Buckets: prometheus.ExponentialBuckets(0.001, 2, 16), // 1ms to ~33s
			},
		),
	}
}

// Registry returns the registry the metrics are registered on.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RecordDecision counts one response by source and observes its duration.
func (m *Metrics) RecordDecision(source string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.DecisionsTotal.WithLabelValues(source).Inc()
	m.ProcessDuration.Observe(elapsed.Seconds())
}

// RecordCollaboratorFailure counts a failed collaborator call.
func (m *Metrics) RecordCollaboratorFailure(collaborator string) {
	if m == nil {
		return
	}
	m.CollaboratorFailuresTotal.WithLabelValues(collaborator).Inc()
}

// RecordFeedback counts a feedback submission.
func (m *Metrics) RecordFeedback(outcome string) {
	if m == nil {
		return
	}
	m.FeedbackTotal.WithLabelValues(outcome).Inc()
}

// RecordPromotion counts a promoted record.
func (m *Metrics) RecordPromotion() {
	if m == nil {
		return
	}
	m.PromotionsTotal.Inc()
}

// RecordLearningFailure counts an interaction that could not be learned.
func (m *Metrics) RecordLearningFailure() {
	if m == nil {
		return
	}
	m.LearningFailuresTotal.Inc()
}
