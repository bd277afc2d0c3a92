package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNewMetrics(t *testing.T) {
	_, m := NewRegistry()

	tests := []struct {
		name   string
		metric interface{}
	}{
		{"PlanExecutions", m.PlanExecutions},
		{"PlanDuration", m.PlanDuration},
		{"PlanStalls", m.PlanStalls},
		{"TaskOutcomes", m.TaskOutcomes},
		{"TaskRetries", m.TaskRetries},
		{"ToolCalls", m.ToolCalls},
		{"ToolDuration", m.ToolDuration},
		{"Decompositions", m.Decompositions},
		{"ComplexityScore", m.ComplexityScore},
		{"LLMCalls", m.LLMCalls},
		{"LLMLatency", m.LLMLatency},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.metric == nil {
				t.Errorf("%s metric is nil", tt.name)
			}
		})
	}
}

func TestPlanAndTaskMetrics(t *testing.T) {
	_, m := NewRegistry()

	m.ObservePlan("analytical_aggregation", true, false, 200*time.Millisecond)
	m.ObservePlan("complex_multi_step", true, true, time.Second)
	m.ObserveTaskOutcome("calculation", "failed")
	m.ObserveTaskRetry("calculation")
	m.ObserveTaskRetry("calculation")

	if got := testutil.ToFloat64(m.PlanExecutions.WithLabelValues("analytical_aggregation", "true")); got != 1 {
		t.Errorf("PlanExecutions = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.PlanStalls); got != 1 {
		t.Errorf("PlanStalls = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.TaskOutcomes.WithLabelValues("calculation", "failed")); got != 1 {
		t.Errorf("TaskOutcomes = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.TaskRetries.WithLabelValues("calculation")); got != 2 {
		t.Errorf("TaskRetries = %v, want 2", got)
	}
}

func TestToolDecompositionAndLLMMetrics(t *testing.T) {
	_, m := NewRegistry()

	m.ObserveToolCall("database_query", "ok", 10*time.Millisecond)
	m.ObserveToolCall("missing", "not_found", 0)
	m.ObserveDecomposition("simple_informational", "heuristic", 1)
	m.ObserveLLMCall("gemini", false, time.Second)

	if got := testutil.ToFloat64(m.ToolCalls.WithLabelValues("database_query", "ok")); got != 1 {
		t.Errorf("ToolCalls ok = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.ToolCalls.WithLabelValues("missing", "not_found")); got != 1 {
		t.Errorf("ToolCalls not_found = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.Decompositions.WithLabelValues("simple_informational", "heuristic")); got != 1 {
		t.Errorf("Decompositions = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.LLMCalls.WithLabelValues("gemini", "false")); got != 1 {
		t.Errorf("LLMCalls = %v, want 1", got)
	}
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.ObservePlan("x", true, false, time.Second)
	m.ObserveTaskOutcome("x", "completed")
	m.ObserveTaskRetry("x")
	m.ObserveToolCall("x", "ok", time.Second)
	m.ObserveDecomposition("x", "heuristic", 1)
	m.ObserveLLMCall("x", true, time.Second)
}

func TestMetricsExport(t *testing.T) {
	reg, m := NewRegistry()
	m.ObserveToolCall("calculation", "ok", time.Millisecond)

	req := httptest.NewRequest("GET", "/metrics", nil)
	w := httptest.NewRecorder()
	HandlerFor(reg).ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %v, want %v", w.Code, http.StatusOK)
	}
	body := w.Body.String()
	if !strings.Contains(body, "waver_tool_calls_total") {
		t.Error("metrics output does not contain waver_tool_calls_total")
	}
	if !strings.Contains(body, `tool="calculation"`) {
		t.Error("metrics output does not contain tool label")
	}
}
