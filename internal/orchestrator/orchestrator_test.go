package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/ShayCichocki/waver/internal/decompose"
	"github.com/ShayCichocki/waver/internal/metrics"
	"github.com/ShayCichocki/waver/internal/orchestrator/policy"
	"github.com/ShayCichocki/waver/internal/store"
	"github.com/ShayCichocki/waver/internal/tools"
	"github.com/ShayCichocki/waver/pkg/models"
)

func TestNew_InvalidFailurePolicy(t *testing.T) {
	if _, err := New(newFakeRunner(), WithFailurePolicy("explode")); err == nil {
		t.Fatal("New() accepted an unknown failure policy")
	}
}

func TestNew_Defaults(t *testing.T) {
	o := newOrchestrator(t, newFakeRunner())
	p := o.Policy()
	if p.Scheduling.MaxConcurrentTasks != 3 || p.Failure.MaxRetries != models.DefaultMaxRetries {
		t.Errorf("policy = %+v", p)
	}
	if o.Events() != nil {
		t.Error("events enabled by default")
	}
}

func TestExecuteQueryPlan_EndToEnd(t *testing.T) {
	ctx := context.Background()
	reg := tools.NewDefaultRegistry(store.NewMemory())
	d, err := decompose.New().Decompose(ctx, "¿Cuántos pedidos y clientes tenemos?")
	if err != nil {
		t.Fatalf("Decompose() error = %v", err)
	}
	o := newOrchestrator(t, reg)

	res := o.ExecuteQueryPlan(ctx, d, map[string]any{"session_id": "s1"})
	if !res.Success {
		t.Fatalf("plan failed: %s", res.Error)
	}
	if res.TasksExecuted != len(d.SubTasks) {
		t.Errorf("TasksExecuted = %d, want %d", res.TasksExecuted, len(d.SubTasks))
	}
	if res.QueryType != d.QueryType || res.ComplexityScore != d.ComplexityScore {
		t.Errorf("result echoes %s/%v, want %s/%v", res.QueryType, res.ComplexityScore, d.QueryType, d.ComplexityScore)
	}
	if res.Result["format"] != string(models.FormatAnalyticalReport) {
		t.Errorf("format = %v", res.Result["format"])
	}
	if !strings.HasPrefix(res.ExecutionID, "exec_") {
		t.Errorf("ExecutionID = %q", res.ExecutionID)
	}
	if res.Stalled {
		t.Error("plan reported stalled")
	}
}

func TestExecuteQueryPlan_DependencyOrder(t *testing.T) {
	f := newFakeRunner()
	o := newOrchestrator(t, f)
	d := decomposition(models.FormatDefault,
		task("c", "calculation", 9, "b"),
		task("b", "calculation", 9, "a"),
		task("a", "calculation", 1),
	)

	res := o.ExecuteQueryPlan(context.Background(), d, nil)
	if !res.Success || res.TasksExecuted != 3 {
		t.Fatalf("result = %+v", res)
	}
	if got := f.callOrder(); !slices.Equal(got, []string{"a", "b", "c"}) {
		t.Errorf("order = %v, want [a b c]", got)
	}
}

func TestExecuteQueryPlan_PriorityOrder(t *testing.T) {
	f := newFakeRunner()
	o := newOrchestrator(t, f, WithMaxConcurrentTasks(1))
	d := decomposition(models.FormatDefault,
		task("low", "calculation", 1),
		task("high", "calculation", 5),
		task("mid1", "calculation", 3),
		task("mid2", "calculation", 3),
	)

	o.ExecuteQueryPlan(context.Background(), d, nil)
	want := []string{"high", "mid1", "mid2", "low"}
	if got := f.callOrder(); !slices.Equal(got, want) {
		t.Errorf("order = %v, want %v", got, want)
	}
}

func TestExecuteQueryPlan_ConcurrencyCeiling(t *testing.T) {
	f := newFakeRunner()
	f.handler = func(ctx context.Context, id string, _ int, _ map[string]any) (map[string]any, error) {
		time.Sleep(5 * time.Millisecond)
		return map[string]any{"result": id}, nil
	}
	o := newOrchestrator(t, f, WithMaxConcurrentTasks(2))
	var tasks []*models.SubTask
	for i := range 6 {
		tasks = append(tasks, task(fmt.Sprintf("t%d", i), "calculation", 1))
	}

	res := o.ExecuteQueryPlan(context.Background(), decomposition(models.FormatDefault, tasks...), nil)
	if res.TasksExecuted != 6 {
		t.Fatalf("TasksExecuted = %d", res.TasksExecuted)
	}
	if peak := f.peakInFlight(); peak > 2 {
		t.Errorf("peak in flight = %d, want <= 2", peak)
	}
}

func TestExecuteQueryPlan_RetryThenSucceed(t *testing.T) {
	f := newFakeRunner()
	f.handler = func(_ context.Context, id string, attempt int, _ map[string]any) (map[string]any, error) {
		if attempt < 2 {
			return nil, errors.New("transient")
		}
		return map[string]any{"result": id}, nil
	}
	o := newOrchestrator(t, f)

	res := o.ExecuteQueryPlan(context.Background(), decomposition(models.FormatDefault, task("a", "calculation", 1)), nil)
	if res.TasksExecuted != 1 {
		t.Fatalf("TasksExecuted = %d", res.TasksExecuted)
	}
	tr := taskRecord(t, record(t, o, res), "a")
	if tr.Status != models.ExecutionStatusCompleted || tr.RetryCount != 2 || tr.Error != "" {
		t.Errorf("task record = %+v", tr)
	}
}

func TestExecuteQueryPlan_RetriesExhaustedContinue(t *testing.T) {
	f := newFakeRunner()
	f.handler = func(_ context.Context, id string, _ int, _ map[string]any) (map[string]any, error) {
		if id == "a" {
			return nil, errors.New("boom")
		}
		return map[string]any{"result": id}, nil
	}
	o := newOrchestrator(t, f)
	d := decomposition(models.FormatDefault,
		task("a", "calculation", 1),
		task("b", "calculation", 1, "a"),
	)

	res := o.ExecuteQueryPlan(context.Background(), d, nil)
	if !res.Success {
		t.Fatalf("plan failed: %s", res.Error)
	}
	if got := f.callCount("a"); got != models.DefaultMaxRetries+1 {
		t.Errorf("attempts = %d, want %d", got, models.DefaultMaxRetries+1)
	}
	if res.TasksExecuted != 1 {
		t.Errorf("TasksExecuted = %d, want 1", res.TasksExecuted)
	}
	rec := record(t, o, res)
	a := taskRecord(t, rec, "a")
	if a.Status != models.ExecutionStatusFailed || a.RetryCount != models.DefaultMaxRetries || a.Error != "boom" {
		t.Errorf("a = %+v", a)
	}
	if b := taskRecord(t, rec, "b"); b.Status != models.ExecutionStatusCompleted {
		t.Errorf("b = %+v, want completed under continue policy", b)
	}
	if rec.FailedTasks != 1 || rec.CompletedTasks != 1 {
		t.Errorf("summary = %+v", rec.ExecutionSummary)
	}
}

func TestExecuteQueryPlan_SkipDependents(t *testing.T) {
	f := newFakeRunner()
	f.handler = func(_ context.Context, id string, _ int, _ map[string]any) (map[string]any, error) {
		if id == "a" {
			return nil, errors.New("boom")
		}
		return map[string]any{"result": id}, nil
	}
	o := newOrchestrator(t, f, WithFailurePolicy(policy.FailureSkipDependents), WithMaxRetries(1))
	d := decomposition(models.FormatDefault,
		task("a", "calculation", 1),
		task("b", "calculation", 1, "a"),
		task("c", "calculation", 1, "b"),
		task("d", "calculation", 1),
	)

	res := o.ExecuteQueryPlan(context.Background(), d, nil)
	if !res.Success || res.TasksExecuted != 1 {
		t.Fatalf("result = %+v", res)
	}
	if f.callCount("b") != 0 || f.callCount("c") != 0 {
		t.Errorf("skipped tasks ran: b=%d c=%d", f.callCount("b"), f.callCount("c"))
	}
	rec := record(t, o, res)
	for _, id := range []string{"b", "c"} {
		if tr := taskRecord(t, rec, id); tr.Status != models.ExecutionStatusSkipped {
			t.Errorf("%s status = %s, want skipped", id, tr.Status)
		}
	}
	if rec.SkippedTasks != 2 {
		t.Errorf("SkippedTasks = %d", rec.SkippedTasks)
	}
}

func TestExecuteQueryPlan_ToolNotFoundNotRetried(t *testing.T) {
	o := newOrchestrator(t, tools.NewRegistry())
	d := decomposition(models.FormatDefault, task("a", "weather", 1))

	res := o.ExecuteQueryPlan(context.Background(), d, nil)
	if !res.Success {
		t.Fatalf("plan failed: %s", res.Error)
	}
	tr := taskRecord(t, record(t, o, res), "a")
	if tr.Status != models.ExecutionStatusFailed || tr.RetryCount != 0 {
		t.Errorf("task = %+v", tr)
	}
	if !strings.Contains(tr.Error, "not found") {
		t.Errorf("error = %q", tr.Error)
	}
}

func TestExecuteQueryPlan_Deadlock(t *testing.T) {
	tests := []struct {
		name  string
		tasks []*models.SubTask
		ran   int
	}{
		{
			name: "cycle",
			tasks: []*models.SubTask{
				task("a", "calculation", 1, "b"),
				task("b", "calculation", 1, "a"),
				task("c", "calculation", 1),
			},
			ran: 1,
		},
		{
			name: "dangling",
			tasks: []*models.SubTask{
				task("a", "calculation", 1),
				task("b", "calculation", 1, "ghost"),
			},
			ran: 1,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := newOrchestrator(t, newFakeRunner())
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			res := o.ExecuteQueryPlan(ctx, decomposition(models.FormatDefault, tt.tasks...), nil)
			if !res.Success || !res.Stalled {
				t.Fatalf("result = %+v, want successful stalled plan", res)
			}
			if res.TasksExecuted != tt.ran {
				t.Errorf("TasksExecuted = %d, want %d", res.TasksExecuted, tt.ran)
			}
			if got := res.Result["total_results"]; got != tt.ran {
				t.Errorf("synthesized %v results, want %d", got, tt.ran)
			}
		})
	}
}

func TestExecuteQueryPlan_Cancelled(t *testing.T) {
	f := newFakeRunner()
	started := make(chan struct{})
	f.handler = func(ctx context.Context, id string, _ int, _ map[string]any) (map[string]any, error) {
		if id == "slow" {
			close(started)
			<-ctx.Done()
			return nil, ctx.Err()
		}
		return map[string]any{"result": id}, nil
	}
	o := newOrchestrator(t, f, WithMaxConcurrentTasks(1))
	d := decomposition(models.FormatDefault,
		task("fast", "calculation", 9),
		task("slow", "calculation", 1),
	)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-started
		cancel()
	}()

	res := o.ExecuteQueryPlan(ctx, d, nil)
	if res.Success {
		t.Fatal("cancelled plan reported success")
	}
	if !strings.Contains(res.Error, context.Canceled.Error()) {
		t.Errorf("error = %q", res.Error)
	}
	if _, ok := res.PartialResults["fast"]; !ok || len(res.PartialResults) != 1 {
		t.Errorf("partial results = %v", res.PartialResults)
	}
	rec := record(t, o, res)
	if rec.Status != models.ExecutionStatusFailed || rec.Error == "" {
		t.Errorf("record = %+v", rec.ExecutionSummary)
	}
	if tr := taskRecord(t, rec, "slow"); tr.Status != models.ExecutionStatusFailed {
		t.Errorf("in-flight task status = %s", tr.Status)
	}
}

func TestExecuteQueryPlan_TaskTimeout(t *testing.T) {
	f := newFakeRunner()
	f.handler = func(ctx context.Context, _ string, _ int, _ map[string]any) (map[string]any, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	o := newOrchestrator(t, f, WithTaskTimeout(10*time.Millisecond), WithMaxRetries(0))

	res := o.ExecuteQueryPlan(context.Background(), decomposition(models.FormatDefault, task("a", "calculation", 1)), nil)
	if !res.Success || res.TasksExecuted != 0 {
		t.Fatalf("result = %+v", res)
	}
	tr := taskRecord(t, record(t, o, res), "a")
	if !strings.Contains(tr.Error, context.DeadlineExceeded.Error()) {
		t.Errorf("error = %q", tr.Error)
	}
}

func TestExecuteQueryPlan_RetryBackoff(t *testing.T) {
	f := newFakeRunner()
	f.handler = func(_ context.Context, id string, attempt int, _ map[string]any) (map[string]any, error) {
		if attempt == 0 {
			return nil, errors.New("transient")
		}
		return map[string]any{"result": id}, nil
	}
	o := newOrchestrator(t, f, WithRetryBackoff(20*time.Millisecond))

	start := time.Now()
	res := o.ExecuteQueryPlan(context.Background(), decomposition(models.FormatDefault, task("a", "calculation", 1)), nil)
	if res.TasksExecuted != 1 {
		t.Fatalf("result = %+v", res)
	}
	if elapsed := time.Since(start); elapsed < 20*time.Millisecond {
		t.Errorf("elapsed = %v, want >= backoff", elapsed)
	}
}

func TestExecuteQueryPlan_RunnerPanic(t *testing.T) {
	f := newFakeRunner()
	f.handler = func(_ context.Context, id string, _ int, _ map[string]any) (map[string]any, error) {
		if id == "a" {
			panic("kaboom")
		}
		return map[string]any{"result": id}, nil
	}
	o := newOrchestrator(t, f, WithMaxRetries(0))
	d := decomposition(models.FormatDefault, task("a", "calculation", 1), task("b", "calculation", 1))

	res := o.ExecuteQueryPlan(context.Background(), d, nil)
	if !res.Success || res.TasksExecuted != 1 {
		t.Fatalf("result = %+v", res)
	}
	if tr := taskRecord(t, record(t, o, res), "a"); !strings.Contains(tr.Error, "kaboom") {
		t.Errorf("error = %q", tr.Error)
	}
}

func TestExecuteQueryPlan_NilDecomposition(t *testing.T) {
	o := newOrchestrator(t, newFakeRunner())
	res := o.ExecuteQueryPlan(context.Background(), nil, nil)
	if res.Success || res.Error != ErrNilDecomposition.Error() || res.ExecutionID == "" {
		t.Errorf("result = %+v", res)
	}
}

func TestExecuteQueryPlan_EmptyPlan(t *testing.T) {
	o := newOrchestrator(t, newFakeRunner())
	res := o.ExecuteQueryPlan(context.Background(), decomposition(models.FormatConversational), nil)
	if !res.Success || res.TasksExecuted != 0 || res.Stalled {
		t.Fatalf("result = %+v", res)
	}
	if res.Result["response"] != NoResultResponse {
		t.Errorf("response = %v", res.Result["response"])
	}
}

func TestExecuteQueryPlan_ContextOverridesEnrichment(t *testing.T) {
	f := newFakeRunner()
	f.handler = func(_ context.Context, id string, _ int, _ map[string]any) (map[string]any, error) {
		return map[string]any{"result": "from " + id}, nil
	}
	o := newOrchestrator(t, f)
	d := decomposition(models.FormatDefault,
		task("a", "text_processing", 1),
		task("b", "text_processing", 1, "a"),
		task("c", "text_processing", 1, "a"),
	)

	o.ExecuteQueryPlan(context.Background(), d, map[string]any{"text": "context wins", "session_id": "s1"})
	if got := f.paramsFor("b")["text"]; got != "context wins" {
		t.Errorf("b text = %v", got)
	}
	if got := f.paramsFor("c")["session_id"]; got != "s1" {
		t.Errorf("c session_id = %v", got)
	}
	if d.SubTasks[1].Parameters["text"] != nil {
		t.Error("enrichment mutated the sub-task parameters")
	}
}

func TestPerformanceMetrics(t *testing.T) {
	f := newFakeRunner()
	o := newOrchestrator(t, f)
	ctx := context.Background()

	o.ExecuteQueryPlan(ctx, decomposition(models.FormatDefault, task("a", "calculation", 1), task("b", "text_processing", 1)), nil)
	o.ExecuteQueryPlan(ctx, decomposition(models.FormatDefault, task("c", "calculation", 1)), nil)
	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	o.ExecuteQueryPlan(cancelled, decomposition(models.FormatDefault, task("d", "calculation", 1)), nil)

	m := o.PerformanceMetrics()
	if m.TotalExecutions != 3 || m.SuccessfulExecutions != 2 || m.FailedExecutions != 1 {
		t.Errorf("counts = %+v", m)
	}
	if m.SuccessRate != 66.67 {
		t.Errorf("SuccessRate = %v, want 66.67", m.SuccessRate)
	}
	if m.ToolUsageCount["calculation"] != 2 || m.ToolUsageCount["text_processing"] != 1 {
		t.Errorf("ToolUsageCount = %v", m.ToolUsageCount)
	}
	if m.ActiveExecutions != 0 {
		t.Errorf("ActiveExecutions = %d", m.ActiveExecutions)
	}
	if m.AverageExecutionTime < 0 {
		t.Errorf("AverageExecutionTime = %v", m.AverageExecutionTime)
	}
}

func TestPerformanceMetrics_RollingAverage(t *testing.T) {
	var ticks []time.Time
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	clock := func() time.Time {
		next := base
		if len(ticks) > 0 {
			next = ticks[len(ticks)-1].Add(time.Second)
		}
		ticks = append(ticks, next)
		return next
	}
	o := newOrchestrator(t, newFakeRunner(), withClock(clock))

	// Empty plans read the clock three times: id, start, end.
	o.ExecuteQueryPlan(context.Background(), decomposition(models.FormatDefault), nil)
	o.ExecuteQueryPlan(context.Background(), decomposition(models.FormatDefault), nil)
	if got := o.PerformanceMetrics().AverageExecutionTime; got != 1 {
		t.Errorf("AverageExecutionTime = %v, want 1", got)
	}
}

func TestExecutionStatus(t *testing.T) {
	o := newOrchestrator(t, newFakeRunner())
	ctx := context.Background()
	res := o.ExecuteQueryPlan(ctx, decomposition(models.FormatDefault, task("a", "calculation", 1), task("b", "calculation", 1)), nil)

	s, err := o.ExecutionStatus(ctx, res.ExecutionID)
	if err != nil || s == nil {
		t.Fatalf("ExecutionStatus() = %v, %v", s, err)
	}
	if s.Status != models.ExecutionStatusCompleted || s.TotalTasks != 2 || s.CompletedTasks != 2 || s.StartTime == nil || s.EndTime == nil {
		t.Errorf("summary = %+v", s)
	}

	if s, err := o.ExecutionStatus(ctx, "exec_unknown"); s != nil || err != nil {
		t.Errorf("unknown id = %v, %v", s, err)
	}
}

func TestExecutionStatus_Active(t *testing.T) {
	f := newFakeRunner()
	started := make(chan struct{})
	release := make(chan struct{})
	f.handler = func(_ context.Context, id string, _ int, _ map[string]any) (map[string]any, error) {
		close(started)
		<-release
		return map[string]any{"result": id}, nil
	}
	o := newOrchestrator(t, f, WithEvents(16))

	done := make(chan *PlanResult)
	go func() {
		done <- o.ExecuteQueryPlan(context.Background(), decomposition(models.FormatDefault, task("a", "calculation", 1)), nil)
	}()

	var execID string
	for ev := range o.Events() {
		if ev.Type == EventPlanStarted {
			execID = ev.ExecutionID
			break
		}
	}
	<-started

	s, err := o.ExecutionStatus(context.Background(), execID)
	if err != nil || s == nil || s.Status != models.ExecutionStatusRunning {
		t.Errorf("active status = %+v, %v", s, err)
	}
	if got := o.PerformanceMetrics().ActiveExecutions; got != 1 {
		t.Errorf("ActiveExecutions = %d", got)
	}

	close(release)
	<-done
}

func TestHistoryEviction(t *testing.T) {
	o := newOrchestrator(t, newFakeRunner(), WithHistory(NewRingHistory(2)))
	ctx := context.Background()
	var ids []string
	for range 3 {
		ids = append(ids, o.ExecuteQueryPlan(ctx, decomposition(models.FormatDefault), nil).ExecutionID)
	}

	if s, _ := o.ExecutionStatus(ctx, ids[0]); s != nil {
		t.Error("oldest plan still retained")
	}
	recs, err := o.History(ctx, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(recs) != 2 || recs[0].ExecutionID != ids[2] || recs[1].ExecutionID != ids[1] {
		t.Errorf("history = %d records", len(recs))
	}
}

func TestEvents(t *testing.T) {
	f := newFakeRunner()
	f.handler = func(_ context.Context, id string, attempt int, _ map[string]any) (map[string]any, error) {
		if id == "a" && attempt == 0 {
			return nil, errors.New("transient")
		}
		if id == "b" {
			return nil, errors.New("permanent")
		}
		return map[string]any{"result": id}, nil
	}
	o := newOrchestrator(t, f, WithEvents(64), WithMaxRetries(1), WithFailurePolicy(policy.FailureSkipDependents))
	d := decomposition(models.FormatDefault,
		task("a", "calculation", 2),
		task("b", "calculation", 1),
		task("c", "calculation", 1, "b"),
	)

	o.ExecuteQueryPlan(context.Background(), d, nil)
	o.Close()

	var types []EventType
	for ev := range o.Events() {
		types = append(types, ev.Type)
	}
	if types[0] != EventPlanStarted || types[len(types)-1] != EventPlanCompleted {
		t.Errorf("events = %v", types)
	}
	for _, want := range []EventType{EventTaskStarted, EventTaskRetrying, EventTaskCompleted, EventTaskFailed, EventTaskSkipped} {
		if !slices.Contains(types, want) {
			t.Errorf("missing %s in %v", want, types)
		}
	}
}

func TestPrometheusMetrics(t *testing.T) {
	_, m := metrics.NewRegistry()
	f := newFakeRunner()
	f.handler = func(_ context.Context, id string, _ int, _ map[string]any) (map[string]any, error) {
		if id == "bad" {
			return nil, errors.New("boom")
		}
		return map[string]any{"result": id}, nil
	}
	o := newOrchestrator(t, f, WithMetrics(m), WithMaxRetries(2))
	d := decomposition(models.FormatDefault, task("ok", "calculation", 1), task("bad", "text_processing", 1))

	o.ExecuteQueryPlan(context.Background(), d, nil)

	if got := testutil.ToFloat64(m.PlanExecutions.WithLabelValues(string(models.QueryTypeComplexMultiStep), "true")); got != 1 {
		t.Errorf("plan executions = %v", got)
	}
	if got := testutil.ToFloat64(m.TaskOutcomes.WithLabelValues("calculation", "completed")); got != 1 {
		t.Errorf("completed outcomes = %v", got)
	}
	if got := testutil.ToFloat64(m.TaskOutcomes.WithLabelValues("text_processing", "failed")); got != 1 {
		t.Errorf("failed outcomes = %v", got)
	}
	if got := testutil.ToFloat64(m.TaskRetries.WithLabelValues("text_processing")); got != 2 {
		t.Errorf("retries = %v", got)
	}
}
