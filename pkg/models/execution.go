package models

import "time"

// DefaultMaxRetries is the retry bound applied to each task execution.
const DefaultMaxRetries = 3

// ExecutionStatus is the state of a task execution or a whole plan.
type ExecutionStatus string

const (
	// ExecutionStatusPending means not started, or waiting for a retry.
	ExecutionStatusPending ExecutionStatus = "pending"
	// ExecutionStatusRunning means the tool call is in flight.
	ExecutionStatusRunning ExecutionStatus = "running"
	// ExecutionStatusCompleted means the tool returned a result.
	ExecutionStatusCompleted ExecutionStatus = "completed"
	// ExecutionStatusFailed means retries were exhausted (or, for a plan, the plan failed).
	ExecutionStatusFailed ExecutionStatus = "failed"
	// ExecutionStatusSkipped means an upstream task failed and the skip policy applied.
	ExecutionStatusSkipped ExecutionStatus = "skipped"
)

// Valid returns true if the status is a known value.
func (s ExecutionStatus) Valid() bool {
	switch s {
	case ExecutionStatusPending, ExecutionStatusRunning, ExecutionStatusCompleted,
		ExecutionStatusFailed, ExecutionStatusSkipped:
		return true
	default:
		return false
	}
}

// IsTerminal reports whether no further transitions are possible.
func (s ExecutionStatus) IsTerminal() bool {
	switch s {
	case ExecutionStatusCompleted, ExecutionStatusFailed, ExecutionStatusSkipped:
		return true
	default:
		return false
	}
}

// TaskExecution is the mutable runtime state wrapping one SubTask.
// Only the orchestrator's run loop writes to it.
type TaskExecution struct {
	Task       *SubTask        `json:"task"`
	Status     ExecutionStatus `json:"status"`
	StartTime  time.Time       `json:"start_time,omitempty"`
	EndTime    time.Time       `json:"end_time,omitempty"`
	Result     map[string]any  `json:"result,omitempty"`
	Error      string          `json:"error,omitempty"`
	RetryCount int             `json:"retry_count"`
	MaxRetries int             `json:"max_retries"`
}

// CanRetry reports whether a failed attempt may be requeued.
func (te *TaskExecution) CanRetry() bool {
	return te.RetryCount < te.MaxRetries
}

// ExecutionPlan is the runtime instance of a QueryDecomposition.
type ExecutionPlan struct {
	Decomposition  *QueryDecomposition `json:"decomposition"`
	TaskExecutions []*TaskExecution    `json:"task_executions"`
	ExecutionID    string              `json:"execution_id"`
	StartTime      time.Time           `json:"start_time,omitempty"`
	EndTime        time.Time           `json:"end_time,omitempty"`
	OverallStatus  ExecutionStatus     `json:"overall_status"`
}

// NewExecutionPlan creates a plan with one pending TaskExecution per sub-task,
// in decomposition order. A maxRetries below zero is treated as zero.
func NewExecutionPlan(d *QueryDecomposition, executionID string, maxRetries int) *ExecutionPlan {
	if maxRetries < 0 {
		maxRetries = 0
	}
	plan := &ExecutionPlan{
		Decomposition: d,
		ExecutionID:   executionID,
		OverallStatus: ExecutionStatusPending,
	}
	for _, task := range d.SubTasks {
		plan.TaskExecutions = append(plan.TaskExecutions, &TaskExecution{
			Task:       task,
			Status:     ExecutionStatusPending,
			MaxRetries: maxRetries,
		})
	}
	return plan
}

// CountStatus returns how many task executions are in the given status.
func (p *ExecutionPlan) CountStatus(status ExecutionStatus) int {
	n := 0
	for _, te := range p.TaskExecutions {
		if te.Status == status {
			n++
		}
	}
	return n
}

// Summary returns the status summary of the plan.
func (p *ExecutionPlan) Summary() ExecutionSummary {
	s := ExecutionSummary{
		ExecutionID:    p.ExecutionID,
		Status:         p.OverallStatus,
		TotalTasks:     len(p.TaskExecutions),
		CompletedTasks: p.CountStatus(ExecutionStatusCompleted),
		FailedTasks:    p.CountStatus(ExecutionStatusFailed),
		SkippedTasks:   p.CountStatus(ExecutionStatusSkipped),
	}
	if !p.StartTime.IsZero() {
		t := p.StartTime
		s.StartTime = &t
	}
	if !p.EndTime.IsZero() {
		t := p.EndTime
		s.EndTime = &t
	}
	return s
}

// ExecutionSummary is the status view of a plan returned by status lookups.
type ExecutionSummary struct {
	ExecutionID    string          `json:"execution_id"`
	Status         ExecutionStatus `json:"status"`
	StartTime      *time.Time      `json:"start_time"`
	EndTime        *time.Time      `json:"end_time"`
	TotalTasks     int             `json:"total_tasks"`
	CompletedTasks int             `json:"completed_tasks"`
	FailedTasks    int             `json:"failed_tasks"`
	SkippedTasks   int             `json:"skipped_tasks"`
}

// TaskRecord is the retained view of one task execution.
type TaskRecord struct {
	ID          string          `json:"id"`
	Description string          `json:"description"`
	ToolName    string          `json:"tool_name"`
	Status      ExecutionStatus `json:"status"`
	RetryCount  int             `json:"retry_count"`
	Error       string          `json:"error,omitempty"`
	StartTime   *time.Time      `json:"start_time,omitempty"`
	EndTime     *time.Time      `json:"end_time,omitempty"`
}

// PlanRecord is what history stores keep for a finished plan.
type PlanRecord struct {
	ExecutionSummary
	Query           string         `json:"query"`
	QueryType       QueryType      `json:"query_type"`
	ComplexityScore float64        `json:"complexity_score"`
	ResponseFormat  ResponseFormat `json:"response_format"`
	Success         bool           `json:"success"`
	Error           string         `json:"error,omitempty"`
	Stalled         bool           `json:"stalled,omitempty"`
	Tasks           []TaskRecord   `json:"tasks"`
}

// NewPlanRecord snapshots a plan into a PlanRecord.
func NewPlanRecord(p *ExecutionPlan) *PlanRecord {
	rec := &PlanRecord{
		ExecutionSummary: p.Summary(),
		Success:          p.OverallStatus == ExecutionStatusCompleted,
	}
	if d := p.Decomposition; d != nil {
		rec.Query = d.OriginalQuery
		rec.QueryType = d.QueryType
		rec.ComplexityScore = d.ComplexityScore
		rec.ResponseFormat = d.ExpectedResponseFormat
	}
	for _, te := range p.TaskExecutions {
		tr := TaskRecord{
			ID:          te.Task.ID,
			Description: te.Task.Description,
			ToolName:    te.Task.ToolName,
			Status:      te.Status,
			RetryCount:  te.RetryCount,
			Error:       te.Error,
		}
		if !te.StartTime.IsZero() {
			t := te.StartTime
			tr.StartTime = &t
		}
		if !te.EndTime.IsZero() {
			t := te.EndTime
			tr.EndTime = &t
		}
		rec.Tasks = append(rec.Tasks, tr)
	}
	return rec
}
