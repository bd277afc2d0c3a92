package orchestrator

import (
	"context"
	"time"

	"github.com/ShayCichocki/waver/internal/orchestrator/policy"
	"github.com/ShayCichocki/waver/internal/tools"
	"github.com/ShayCichocki/waver/pkg/models"
)

// completion is what a task goroutine reports back to the run loop.
type completion struct {
	te     *models.TaskExecution
	result *tools.Result
	err    error
	end    time.Time
}

// runLoop dispatches ready tasks up to the ceiling, waits for the first
// completion, records it, and repeats until every task is terminal. It
// returns stalled when nothing is ready and nothing is in flight before
// that point, and an error only when ctx ends.
func (o *Orchestrator) runLoop(ctx context.Context, plan *models.ExecutionPlan, execCtx map[string]any) (stalled bool, err error) {
	sched := NewScheduler(plan, o.policy.Scheduling.MaxConcurrentTasks, o.logger)
	outputs := make(map[string]map[string]any, len(plan.TaskExecutions))

	// Buffered to the ceiling so task goroutines never block on send, even
	// after the loop has returned.
	completionCh := make(chan completion, max(o.policy.Scheduling.MaxConcurrentTasks, 1))
	loopCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	for !sched.Done() {
		if ctx.Err() != nil {
			return false, ctx.Err()
		}

		for _, te := range sched.Schedule() {
			o.dispatch(loopCtx, plan.ExecutionID, sched, te, prepareParameters(te.Task, outputs, execCtx), completionCh)
		}
		o.publish(plan)

		if sched.InFlight() == 0 {
			unresolved := sched.Unresolved()
			o.logger.Warn("potential deadlock detected: no ready tasks and no running tasks",
				"execution_id", plan.ExecutionID,
				"unresolved", unresolved,
				"missing_dependencies", sched.MissingDependencies())
			o.events.Emit(Event{Type: EventPlanStalled, ExecutionID: plan.ExecutionID, Message: "unresolved tasks remain"})
			return true, nil
		}

		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case c := <-completionCh:
			o.handleCompletion(ctx, plan.ExecutionID, sched, outputs, c)
		}

		// Record anything else that finished in the same wave.
	drain:
		for {
			select {
			case c := <-completionCh:
				o.handleCompletion(ctx, plan.ExecutionID, sched, outputs, c)
			default:
				break drain
			}
		}
	}
	o.publish(plan)
	return false, ctx.Err()
}

// dispatch marks te running and starts its tool call in a goroutine.
func (o *Orchestrator) dispatch(ctx context.Context, execID string, sched *Scheduler, te *models.TaskExecution, params map[string]any, ch chan<- completion) {
	te.Status = models.ExecutionStatusRunning
	te.StartTime = o.now()
	sched.Start(te.Task.ID)

	o.logger.Info("started task", "execution_id", execID, "task", te.Task.ID, "tool", te.Task.ToolName, "attempt", te.RetryCount, "description", te.Task.Description)
	o.events.Emit(Event{Type: EventTaskStarted, ExecutionID: execID, TaskID: te.Task.ID, ToolName: te.Task.ToolName, Attempt: te.RetryCount})

	go o.runTask(ctx, te, te.Task.ToolName, te.RetryCount, params, ch)
}

// runTask invokes the tool. It must not touch te beyond passing it back.
func (o *Orchestrator) runTask(ctx context.Context, te *models.TaskExecution, toolName string, attempt int, params map[string]any, ch chan<- completion) {
	c := completion{te: te}
	defer func() {
		if r := recover(); r != nil {
			c.result, c.err = nil, panicError(r)
		}
		c.end = o.now()
		ch <- c
	}()

	if backoff := o.policy.Loop.RetryBackoff; backoff > 0 && attempt > 0 {
		timer := time.NewTimer(time.Duration(attempt) * backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			c.err = ctx.Err()
			return
		case <-timer.C:
		}
	}

	if timeout := o.policy.Loop.TaskTimeout; timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	c.result, c.err = o.runner.Execute(ctx, toolName, params)
}

// handleCompletion applies the state machine to one finished attempt:
// success completes the task, a retryable failure under the bound requeues
// it, and anything else fails it terminally. Once ctx is done nothing is
// requeued.
func (o *Orchestrator) handleCompletion(ctx context.Context, execID string, sched *Scheduler, outputs map[string]map[string]any, c completion) {
	te := c.te
	id, tool := te.Task.ID, te.Task.ToolName
	sched.Finish(id)
	te.EndTime = c.end
	elapsed := te.EndTime.Sub(te.StartTime)

	if c.err == nil {
		out := map[string]any{}
		if c.result != nil && c.result.Output != nil {
			out = c.result.Output
		}
		te.Result = out
		te.Error = ""
		te.Status = models.ExecutionStatusCompleted
		outputs[id] = out
		sched.Resolve(id)

		o.logger.Info("completed task", "execution_id", execID, "task", id, "tool", tool, "duration", elapsed)
		o.metrics.ObserveTaskOutcome(tool, string(models.ExecutionStatusCompleted))
		o.events.Emit(Event{Type: EventTaskCompleted, ExecutionID: execID, TaskID: id, ToolName: tool, Attempt: te.RetryCount, Duration: elapsed})
		return
	}

	te.Error = c.err.Error()
	o.logger.Error("task failed", "execution_id", execID, "task", id, "tool", tool, "attempt", te.RetryCount, "error", c.err)

	if tools.IsRetryable(c.err) && te.CanRetry() && ctx.Err() == nil {
		te.RetryCount++
		te.Status = models.ExecutionStatusPending
		o.logger.Info("retrying task", "execution_id", execID, "task", id, "attempt", te.RetryCount)
		o.metrics.ObserveTaskRetry(tool)
		o.events.Emit(Event{Type: EventTaskRetrying, ExecutionID: execID, TaskID: id, ToolName: tool, Attempt: te.RetryCount, Error: te.Error})
		return
	}

	te.Status = models.ExecutionStatusFailed
	sched.Resolve(id)
	o.metrics.ObserveTaskOutcome(tool, string(models.ExecutionStatusFailed))
	o.events.Emit(Event{Type: EventTaskFailed, ExecutionID: execID, TaskID: id, ToolName: tool, Attempt: te.RetryCount, Error: te.Error})

	if o.policy.Failure.Mode != policy.FailureSkipDependents {
		return
	}
	for _, skipped := range sched.SkipDescendants(id) {
		o.logger.Info("skipping task", "execution_id", execID, "task", skipped.Task.ID, "failed_dependency", id)
		o.metrics.ObserveTaskOutcome(skipped.Task.ToolName, string(models.ExecutionStatusSkipped))
		o.events.Emit(Event{Type: EventTaskSkipped, ExecutionID: execID, TaskID: skipped.Task.ID, ToolName: skipped.Task.ToolName, Error: skipped.Error})
	}
}
