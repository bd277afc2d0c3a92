package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ShayCichocki/waver/internal/metrics"
	"github.com/ShayCichocki/waver/internal/orchestrator/policy"
	"github.com/ShayCichocki/waver/internal/tools"
	"github.com/ShayCichocki/waver/pkg/models"
)

// Runner executes a named tool. *tools.Registry satisfies it.
type Runner interface {
	Execute(ctx context.Context, name string, params map[string]any) (*tools.Result, error)
}

// ErrNilDecomposition is reported when ExecuteQueryPlan receives no plan.
var ErrNilDecomposition = errors.New("nil decomposition")

// PlanResult is the outcome of ExecuteQueryPlan. On success Result holds the
// synthesized response; on failure Error and PartialResults are set.
type PlanResult struct {
	Success         bool             `json:"success"`
	Result          map[string]any   `json:"result,omitempty"`
	Error           string           `json:"error,omitempty"`
	ExecutionID     string           `json:"execution_id"`
	ExecutionTime   float64          `json:"execution_time"`
	TasksExecuted   int              `json:"tasks_executed"`
	QueryType       models.QueryType `json:"query_type,omitempty"`
	ComplexityScore float64          `json:"complexity_score"`
	PartialResults  map[string]any   `json:"partial_results,omitempty"`
	// Stalled is set when the loop stopped because no task could progress.
	Stalled bool `json:"stalled,omitempty"`
}

// PerformanceMetrics are the rolling counters across executed plans.
type PerformanceMetrics struct {
	TotalExecutions      int            `json:"total_executions"`
	SuccessfulExecutions int            `json:"successful_executions"`
	FailedExecutions     int            `json:"failed_executions"`
	AverageExecutionTime float64        `json:"average_execution_time"`
	ToolUsageCount       map[string]int `json:"tool_usage_count"`
	SuccessRate          float64        `json:"success_rate"`
	ActiveExecutions     int            `json:"active_executions"`
}

// Orchestrator executes query plans against a Runner. One Orchestrator may
// execute many plans concurrently; each plan has its own concurrency ceiling.
type Orchestrator struct {
	runner  Runner
	policy  policy.Config
	logger  *slog.Logger
	metrics *metrics.Metrics
	history HistoryStore
	events  *EventEmitter
	now     func() time.Time

	// mu protects active and perf.
	mu     sync.Mutex
	active map[string]models.ExecutionSummary
	perf   PerformanceMetrics
}

// New creates an Orchestrator. It fails only on an invalid failure policy.
func New(runner Runner, opts ...Option) (*Orchestrator, error) {
	o := &orchestratorOptions{}
	for _, opt := range opts {
		opt(o)
	}
	cfg, err := o.resolvePolicy()
	if err != nil {
		return nil, err
	}

	orch := &Orchestrator{
		runner:  runner,
		policy:  cfg,
		logger:  o.logger,
		metrics: o.metrics,
		history: o.history,
		now:     o.now,
		active:  make(map[string]models.ExecutionSummary),
		perf:    PerformanceMetrics{ToolUsageCount: map[string]int{}},
	}
	if orch.logger == nil {
		orch.logger = slog.New(slog.DiscardHandler)
	}
	if orch.history == nil {
		orch.history = NewRingHistory(cfg.History.Size)
	}
	if orch.now == nil {
		orch.now = time.Now
	}
	if cfg.Events.BufferSize > 0 {
		orch.events = NewEventEmitter(cfg.Events.BufferSize, cfg.Events.SendTimeout, orch.logger)
	}
	return orch, nil
}

// Policy returns the effective policy.
func (o *Orchestrator) Policy() policy.Config {
	return o.policy
}

// Events returns the event stream, or nil when events are disabled.
func (o *Orchestrator) Events() <-chan Event {
	return o.events.Events()
}

// Close closes the event stream.
func (o *Orchestrator) Close() {
	o.events.Close()
}

// ExecuteQueryPlan runs every task of d and synthesizes the results.
// execCtx is merged over every task's parameters. Individual task failures
// do not fail the plan; cancellation of ctx, a panic, or a nil d does.
func (o *Orchestrator) ExecuteQueryPlan(ctx context.Context, d *models.QueryDecomposition, execCtx map[string]any) *PlanResult {
	id := o.newExecutionID()
	if d == nil {
		o.logger.Error("execution plan failed", "execution_id", id, "error", ErrNilDecomposition)
		return &PlanResult{Success: false, Error: ErrNilDecomposition.Error(), ExecutionID: id, PartialResults: map[string]any{}}
	}

	plan := models.NewExecutionPlan(d, id, o.policy.Failure.MaxRetries)
	plan.StartTime = o.now()
	plan.OverallStatus = models.ExecutionStatusRunning
	o.publish(plan)

	o.logger.Info("starting execution plan", "execution_id", id, "tasks", len(plan.TaskExecutions), "query_type", d.QueryType)
	o.events.Emit(Event{Type: EventPlanStarted, ExecutionID: id, Message: fmt.Sprintf("%d tasks", len(plan.TaskExecutions))})

	result, stalled, err := o.execute(ctx, plan, execCtx)

	plan.EndTime = o.now()
	elapsed := plan.EndTime.Sub(plan.StartTime)
	var res *PlanResult
	errMsg := ""
	if err != nil {
		errMsg = err.Error()
		plan.OverallStatus = models.ExecutionStatusFailed
		abandonRunning(plan, errMsg)
		o.logger.Error("execution plan failed", "execution_id", id, "error", err)
		o.events.Emit(Event{Type: EventPlanFailed, ExecutionID: id, Error: err.Error()})
		res = &PlanResult{
			Success:        false,
			Error:          err.Error(),
			ExecutionID:    id,
			ExecutionTime:  elapsed.Seconds(),
			PartialResults: partialResults(plan),
			Stalled:        stalled,
		}
	} else {
		plan.OverallStatus = models.ExecutionStatusCompleted
		o.logger.Info("execution plan completed", "execution_id", id, "duration", elapsed, "stalled", stalled)
		o.events.Emit(Event{Type: EventPlanCompleted, ExecutionID: id, Duration: elapsed})
		res = &PlanResult{
			Success:         true,
			Result:          result,
			ExecutionID:     id,
			ExecutionTime:   elapsed.Seconds(),
			TasksExecuted:   plan.CountStatus(models.ExecutionStatusCompleted),
			QueryType:       d.QueryType,
			ComplexityScore: d.ComplexityScore,
			Stalled:         stalled,
		}
	}

	o.finish(ctx, plan, stalled, elapsed, errMsg)
	return res
}

// execute runs the loop and synthesis, turning panics into errors.
func (o *Orchestrator) execute(ctx context.Context, plan *models.ExecutionPlan, execCtx map[string]any) (result map[string]any, stalled bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = panicError(r)
		}
	}()

	stalled, err = o.runLoop(ctx, plan, execCtx)
	if err != nil {
		return nil, stalled, err
	}
	return Synthesize(plan.Decomposition.ExpectedResponseFormat, collectResults(plan)), stalled, nil
}

// abandonRunning fails tasks that were still in flight when the plan aborted.
func abandonRunning(plan *models.ExecutionPlan, reason string) {
	for _, te := range plan.TaskExecutions {
		if te.Status == models.ExecutionStatusRunning {
			te.Status = models.ExecutionStatusFailed
			te.Error = reason
		}
	}
}

// finish moves the plan to history and updates the rolling counters.
func (o *Orchestrator) finish(ctx context.Context, plan *models.ExecutionPlan, stalled bool, elapsed time.Duration, errMsg string) {
	success := plan.OverallStatus == models.ExecutionStatusCompleted
	rec := models.NewPlanRecord(plan)
	rec.Stalled = stalled
	rec.Error = errMsg

	if err := o.history.Add(context.WithoutCancel(ctx), rec); err != nil {
		o.logger.Warn("failed to record plan history", "execution_id", plan.ExecutionID, "error", err)
	}

	o.mu.Lock()
	delete(o.active, plan.ExecutionID)
	o.perf.TotalExecutions++
	if success {
		o.perf.SuccessfulExecutions++
	} else {
		o.perf.FailedExecutions++
	}
	n := float64(o.perf.TotalExecutions)
	o.perf.AverageExecutionTime = (o.perf.AverageExecutionTime*(n-1) + elapsed.Seconds()) / n
	for _, te := range plan.TaskExecutions {
		if te.Status == models.ExecutionStatusCompleted {
			o.perf.ToolUsageCount[te.Task.ToolName]++
		}
	}
	o.mu.Unlock()

	o.metrics.ObservePlan(string(plan.Decomposition.QueryType), success, stalled, elapsed)
}

// publish snapshots the plan's status for ExecutionStatus lookups.
func (o *Orchestrator) publish(plan *models.ExecutionPlan) {
	summary := plan.Summary()
	o.mu.Lock()
	o.active[plan.ExecutionID] = summary
	o.mu.Unlock()
}

// PerformanceMetrics returns the rolling counters, the success rate as a
// percentage rounded to two decimals, and the number of running plans.
func (o *Orchestrator) PerformanceMetrics() PerformanceMetrics {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := o.perf
	out.ToolUsageCount = maps.Clone(o.perf.ToolUsageCount)
	if out.TotalExecutions > 0 {
		rate := float64(out.SuccessfulExecutions) / float64(out.TotalExecutions) * 100
		out.SuccessRate = math.Round(rate*100) / 100
	}
	out.ActiveExecutions = len(o.active)
	return out
}

// ExecutionStatus looks up a running plan, then history. It returns nil
// without error for unknown ids.
func (o *Orchestrator) ExecutionStatus(ctx context.Context, executionID string) (*models.ExecutionSummary, error) {
	o.mu.Lock()
	summary, ok := o.active[executionID]
	o.mu.Unlock()
	if ok {
		return &summary, nil
	}

	rec, err := o.history.Get(ctx, executionID)
	if err != nil {
		return nil, fmt.Errorf("lookup execution %s: %w", executionID, err)
	}
	if rec == nil {
		return nil, nil
	}
	s := rec.ExecutionSummary
	return &s, nil
}

// History returns up to limit finished plans, newest first.
func (o *Orchestrator) History(ctx context.Context, limit int) ([]*models.PlanRecord, error) {
	return o.history.List(ctx, limit)
}

// HistoryRecord returns a finished plan with its task records, or nil.
func (o *Orchestrator) HistoryRecord(ctx context.Context, executionID string) (*models.PlanRecord, error) {
	return o.history.Get(ctx, executionID)
}

func (o *Orchestrator) newExecutionID() string {
	now := o.now()
	return fmt.Sprintf("exec_%s_%06d_%s", now.Format("20060102_150405"), now.Nanosecond()/1000, uuid.NewString()[:8])
}
