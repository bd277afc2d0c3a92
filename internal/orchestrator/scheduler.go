package orchestrator

import (
	"cmp"
	"log/slog"
	"slices"

	"github.com/ShayCichocki/waver/internal/graph"
	"github.com/ShayCichocki/waver/pkg/models"
)

// Scheduler decides which tasks of one plan may start. It respects the
// concurrency ceiling and only offers tasks whose dependencies have all
// reached a terminal state. It is owned by a single run loop and is not
// safe for concurrent use.
type Scheduler struct {
	// graph tracks which tasks are terminal.
	graph *graph.DependencyGraph
	// executions maps task IDs to their runtime state.
	executions map[string]*models.TaskExecution
	// running holds the IDs of in-flight tasks.
	running map[string]bool
	// maxConcurrent is the in-flight ceiling.
	maxConcurrent int
	logger        *slog.Logger
}

// NewScheduler creates a Scheduler over the plan's task executions.
func NewScheduler(plan *models.ExecutionPlan, maxConcurrent int, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	tasks := make([]*models.SubTask, 0, len(plan.TaskExecutions))
	executions := make(map[string]*models.TaskExecution, len(plan.TaskExecutions))
	for _, te := range plan.TaskExecutions {
		tasks = append(tasks, te.Task)
		if _, dup := executions[te.Task.ID]; !dup {
			executions[te.Task.ID] = te
		}
	}
	return &Scheduler{
		graph:         graph.New(tasks, graph.WithLogger(logger)),
		executions:    executions,
		running:       make(map[string]bool),
		maxConcurrent: max(maxConcurrent, 1),
		logger:        logger,
	}
}

// Schedule returns the tasks to start now: pending, not running, every
// dependency terminal, highest priority first (stable on ties), at most as
// many as there are free slots.
func (s *Scheduler) Schedule() []*models.TaskExecution {
	slots := s.maxConcurrent - len(s.running)
	if slots <= 0 {
		return nil
	}
	ready := s.Ready()
	if len(ready) > slots {
		ready = ready[:slots]
	}
	return ready
}

// Ready returns every task that could start ignoring the ceiling, in
// dispatch order.
func (s *Scheduler) Ready() []*models.TaskExecution {
	var ready []*models.TaskExecution
	for _, id := range s.graph.Ready() {
		te := s.executions[id]
		if te == nil || s.running[id] || te.Status != models.ExecutionStatusPending {
			continue
		}
		ready = append(ready, te)
	}
	slices.SortStableFunc(ready, func(a, b *models.TaskExecution) int {
		return cmp.Compare(b.Task.Priority, a.Task.Priority)
	})
	return ready
}

// Start records that a task is in flight.
func (s *Scheduler) Start(taskID string) {
	s.running[taskID] = true
}

// Finish records that an in-flight task returned.
func (s *Scheduler) Finish(taskID string) {
	delete(s.running, taskID)
}

// Resolve marks a task terminal so its dependents may become ready.
func (s *Scheduler) Resolve(taskID string) {
	s.graph.MarkDone(taskID)
}

// SkipDescendants marks every non-terminal transitive dependent of taskID
// as skipped and resolves it. It returns the skipped executions.
func (s *Scheduler) SkipDescendants(taskID string) []*models.TaskExecution {
	var skipped []*models.TaskExecution
	for _, id := range s.graph.Descendants(taskID) {
		te := s.executions[id]
		if te == nil || te.Status.IsTerminal() || s.running[id] {
			continue
		}
		te.Status = models.ExecutionStatusSkipped
		te.Error = "dependency " + taskID + " failed"
		s.graph.MarkDone(id)
		skipped = append(skipped, te)
	}
	return skipped
}

// InFlight returns the number of running tasks.
func (s *Scheduler) InFlight() int {
	return len(s.running)
}

// Done reports whether every task is terminal.
func (s *Scheduler) Done() bool {
	return len(s.graph.Pending()) == 0
}

// Unresolved returns the IDs of tasks that are not terminal.
func (s *Scheduler) Unresolved() []string {
	return s.graph.Pending()
}

// MissingDependencies returns, per unresolved task, the dependency IDs that
// name no task in the plan.
func (s *Scheduler) MissingDependencies() map[string][]string {
	out := map[string][]string{}
	for _, id := range s.graph.Pending() {
		if missing := s.graph.MissingDependencies(id); len(missing) > 0 {
			out[id] = missing
		}
	}
	return out
}
