package orchestrator

import "time"

// EventType represents the type of orchestrator event.
type EventType string

const (
	// EventPlanStarted indicates a plan has started execution.
	EventPlanStarted EventType = "plan_started"
	// EventTaskStarted indicates a task was dispatched to its tool.
	EventTaskStarted EventType = "task_started"
	// EventTaskCompleted indicates a task completed successfully.
	EventTaskCompleted EventType = "task_completed"
	// EventTaskRetrying indicates a failed task was requeued.
	EventTaskRetrying EventType = "task_retrying"
	// EventTaskFailed indicates a task exhausted its retries.
	EventTaskFailed EventType = "task_failed"
	// EventTaskSkipped indicates a task was skipped because an upstream task failed.
	EventTaskSkipped EventType = "task_skipped"
	// EventPlanStalled indicates no task could make progress.
	EventPlanStalled EventType = "plan_stalled"
	// EventPlanCompleted indicates the plan finished and was synthesized.
	EventPlanCompleted EventType = "plan_completed"
	// EventPlanFailed indicates a plan-level failure.
	EventPlanFailed EventType = "plan_failed"
)

// Event represents an event emitted by the orchestrator.
// These events are used to update the TUI and track progress.
type Event struct {
	// Type is the kind of event.
	Type EventType `json:"type"`
	// ExecutionID identifies the plan.
	ExecutionID string `json:"execution_id"`
	// TaskID is the ID of the related task, if applicable.
	TaskID string `json:"task_id,omitempty"`
	// ToolName is the tool the task runs, if applicable.
	ToolName string `json:"tool_name,omitempty"`
	// Message provides additional context about the event.
	Message string `json:"message,omitempty"`
	// Error contains error details for failure events.
	Error string `json:"error,omitempty"`
	// Attempt is the retry count at the time of the event.
	Attempt int `json:"attempt,omitempty"`
	// Duration is the elapsed time for completion events.
	Duration time.Duration `json:"duration,omitempty"`
	// Timestamp is when the event occurred.
	Timestamp time.Time `json:"timestamp"`
}
