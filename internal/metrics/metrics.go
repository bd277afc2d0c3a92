// Package metrics exposes Prometheus collectors for plans, tasks, tools,
// decompositions and LLM calls.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus collectors for waver.
// All Observe/Record methods are safe to call on a nil *Metrics.
type Metrics struct {
	// Plan execution
	PlanExecutions *prometheus.CounterVec
	PlanDuration   *prometheus.HistogramVec
	PlanStalls     prometheus.Counter

	// Task execution
	TaskOutcomes *prometheus.CounterVec
	TaskRetries  *prometheus.CounterVec

	// Tool calls through the registry
	ToolCalls    *prometheus.CounterVec
	ToolDuration *prometheus.HistogramVec

	// Decomposition
	Decompositions  *prometheus.CounterVec
	ComplexityScore prometheus.Histogram

	// LLM provider calls
	LLMCalls   *prometheus.CounterVec
	LLMLatency *prometheus.HistogramVec
}

// NewMetrics creates a Metrics instance with every collector registered on registry.
func NewMetrics(registry prometheus.Registerer) *Metrics {
	factory := promauto.With(registry)

	return &Metrics{
		PlanExecutions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "waver_plan_executions_total",
				Help: "Total number of executed query plans",
			},
			[]string{"query_type", "success"},
		),
		PlanDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "waver_plan_duration_seconds",
				Help:    "Query plan execution duration in seconds",
				Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30},
			},
			[]string{"query_type"},
		),
		PlanStalls: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "waver_plan_stalls_total",
				Help: "Total number of plans aborted on a dependency deadlock",
			},
		),
		TaskOutcomes: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "waver_task_outcomes_total",
				Help: "Terminal task outcomes by tool",
			},
			[]string{"tool", "status"},
		),
		TaskRetries: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "waver_task_retries_total",
				Help: "Total number of task retries by tool",
			},
			[]string{"tool"},
		),
		ToolCalls: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "waver_tool_calls_total",
				Help: "Total number of tool registry executions",
			},
			[]string{"tool", "outcome"},
		),
		ToolDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "waver_tool_duration_seconds",
				Help:    "Tool execution duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"tool"},
		),
		Decompositions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "waver_decompositions_total",
				Help: "Total number of query decompositions",
			},
			[]string{"query_type", "strategy"},
		),
		ComplexityScore: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "waver_query_complexity_score",
				Help:    "Distribution of analyzer complexity scores",
				Buckets: []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10},
			},
		),
		LLMCalls: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "waver_llm_calls_total",
				Help: "Total number of LLM generation calls",
			},
			[]string{"provider", "success"},
		),
		LLMLatency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "waver_llm_latency_seconds",
				Help:    "LLM generation latency in seconds",
				Buckets: []float64{0.1, 0.5, 1.0, 2.0, 5.0, 10.0, 30.0, 60.0},
			},
			[]string{"provider"},
		),
	}
}

// NewRegistry creates a fresh Prometheus registry with metrics registered on it.
func NewRegistry() (*prometheus.Registry, *Metrics) {
	reg := prometheus.NewRegistry()
	return reg, NewMetrics(reg)
}

// HandlerFor returns an HTTP handler serving the registry in the exposition format.
func HandlerFor(reg prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}

// ObservePlan records one finished plan.
func (m *Metrics) ObservePlan(queryType string, success, stalled bool, d time.Duration) {
	if m == nil {
		return
	}
	m.PlanExecutions.WithLabelValues(queryType, strconv.FormatBool(success)).Inc()
	m.PlanDuration.WithLabelValues(queryType).Observe(d.Seconds())
	if stalled {
		m.PlanStalls.Inc()
	}
}

// ObserveTaskOutcome records a task reaching a terminal status.
func (m *Metrics) ObserveTaskOutcome(tool, status string) {
	if m == nil {
		return
	}
	m.TaskOutcomes.WithLabelValues(tool, status).Inc()
}

// ObserveTaskRetry records a task being requeued.
func (m *Metrics) ObserveTaskRetry(tool string) {
	if m == nil {
		return
	}
	m.TaskRetries.WithLabelValues(tool).Inc()
}

// ObserveToolCall records one registry execution. Outcome is "ok", "error" or "not_found".
func (m *Metrics) ObserveToolCall(tool, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.ToolCalls.WithLabelValues(tool, outcome).Inc()
	if outcome != "not_found" {
		m.ToolDuration.WithLabelValues(tool).Observe(d.Seconds())
	}
}

// ObserveDecomposition records one decomposition and its complexity score.
func (m *Metrics) ObserveDecomposition(queryType, strategy string, score float64) {
	if m == nil {
		return
	}
	m.Decompositions.WithLabelValues(queryType, strategy).Inc()
	m.ComplexityScore.Observe(score)
}

// ObserveLLMCall records one generation call against a provider.
func (m *Metrics) ObserveLLMCall(provider string, success bool, d time.Duration) {
	if m == nil {
		return
	}
	m.LLMCalls.WithLabelValues(provider, strconv.FormatBool(success)).Inc()
	m.LLMLatency.WithLabelValues(provider).Observe(d.Seconds())
}
