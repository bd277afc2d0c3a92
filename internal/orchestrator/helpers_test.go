package orchestrator

import (
	"context"
	"sync"
	"testing"

	"github.com/ShayCichocki/waver/internal/tools"
	"github.com/ShayCichocki/waver/pkg/models"
)

// fakeRunner records calls keyed by the "task" parameter and delegates
// results to handler. Without a handler every call succeeds.
type fakeRunner struct {
	handler func(ctx context.Context, id string, attempt int, params map[string]any) (map[string]any, error)

	mu       sync.Mutex
	calls    map[string]int
	order    []string
	params   map[string]map[string]any
	inflight int
	peak     int
}

func newFakeRunner() *fakeRunner {
	return &fakeRunner{calls: map[string]int{}, params: map[string]map[string]any{}}
}

func (f *fakeRunner) Execute(ctx context.Context, name string, params map[string]any) (*tools.Result, error) {
	id, _ := params["task"].(string)

	f.mu.Lock()
	attempt := f.calls[id]
	f.calls[id]++
	f.order = append(f.order, id)
	f.params[id] = params
	f.inflight++
	f.peak = max(f.peak, f.inflight)
	f.mu.Unlock()

	defer func() {
		f.mu.Lock()
		f.inflight--
		f.mu.Unlock()
	}()

	out := map[string]any{"result": id}
	var err error
	if f.handler != nil {
		out, err = f.handler(ctx, id, attempt, params)
	}
	if err != nil {
		return nil, err
	}
	return &tools.Result{ToolName: name, Output: out}, nil
}

func (f *fakeRunner) callCount(id string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[id]
}

func (f *fakeRunner) callOrder() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.order...)
}

func (f *fakeRunner) paramsFor(id string) map[string]any {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.params[id]
}

func (f *fakeRunner) peakInFlight() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.peak
}

func task(id, tool string, priority int, deps ...string) *models.SubTask {
	tt, _ := models.TaskTypeForTool(tool)
	return &models.SubTask{
		ID:           id,
		Type:         tt,
		Description:  "task " + id,
		ToolName:     tool,
		Parameters:   map[string]any{"task": id},
		Dependencies: deps,
		Priority:     priority,
	}
}

func decomposition(format models.ResponseFormat, tasks ...*models.SubTask) *models.QueryDecomposition {
	return &models.QueryDecomposition{
		OriginalQuery:          "test query",
		QueryType:              models.QueryTypeComplexMultiStep,
		ComplexityScore:        7.5,
		SubTasks:               tasks,
		ExpectedResponseFormat: format,
	}
}

func newOrchestrator(t *testing.T, runner Runner, opts ...Option) *Orchestrator {
	t.Helper()
	o, err := New(runner, opts...)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return o
}

func record(t *testing.T, o *Orchestrator, res *PlanResult) *models.PlanRecord {
	t.Helper()
	rec, err := o.HistoryRecord(context.Background(), res.ExecutionID)
	if err != nil {
		t.Fatalf("HistoryRecord() error = %v", err)
	}
	if rec == nil {
		t.Fatalf("no history record for %s", res.ExecutionID)
	}
	return rec
}

func taskRecord(t *testing.T, rec *models.PlanRecord, id string) models.TaskRecord {
	t.Helper()
	for _, tr := range rec.Tasks {
		if tr.ID == id {
			return tr
		}
	}
	t.Fatalf("no task record %s", id)
	return models.TaskRecord{}
}
