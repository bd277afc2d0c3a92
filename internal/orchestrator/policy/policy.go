// Package policy defines configurable policy parameters for orchestrator behavior.
// This centralizes the limits and timings the execution loop consults so they
// can be configured and tested in one place.
package policy

import (
	"fmt"
	"time"
)

// FailureMode decides what happens to dependents of a task whose retries are exhausted.
type FailureMode string

const (
	// FailureContinue treats a terminally failed task as satisfying its
	// dependents, which then run without its result.
	FailureContinue FailureMode = "continue"
	// FailureSkipDependents marks every transitive dependent as skipped.
	FailureSkipDependents FailureMode = "skip_dependents"
)

// Valid returns true if the mode is a known value.
func (m FailureMode) Valid() bool {
	return m == FailureContinue || m == FailureSkipDependents
}

// Config contains all configurable policy parameters for the orchestrator.
type Config struct {
	// Scheduling policies
	Scheduling SchedulingPolicy

	// Failure handling policies
	Failure FailurePolicy

	// Loop policies
	Loop LoopPolicy

	// Retention policies
	History HistoryPolicy

	// Event stream policies
	Events EventPolicy
}

// SchedulingPolicy controls task dispatch.
type SchedulingPolicy struct {
	// MaxConcurrentTasks bounds in-flight tool invocations per plan.
	MaxConcurrentTasks int
}

// FailurePolicy controls retries and failure propagation.
type FailurePolicy struct {
	// MaxRetries is how many times a failed task is requeued.
	MaxRetries int

	// Mode is applied once a task's retries are exhausted.
	Mode FailureMode
}

// LoopPolicy controls run loop timing.
type LoopPolicy struct {
	// TaskTimeout bounds each tool invocation. Zero means no timeout.
	TaskTimeout time.Duration

	// RetryBackoff is multiplied by the retry count before a retry starts.
	// Zero retries immediately.
	RetryBackoff time.Duration
}

// HistoryPolicy controls how many finished plans are retained.
type HistoryPolicy struct {
	// Size is the capacity of the in-memory history ring.
	Size int
}

// EventPolicy controls the event stream.
type EventPolicy struct {
	// BufferSize is the event channel capacity. Zero disables events.
	BufferSize int

	// SendTimeout is how long Emit waits on a full channel before dropping.
	SendTimeout time.Duration
}

// Default returns the default policy configuration.
func Default() *Config {
	return &Config{
		Scheduling: SchedulingPolicy{
			MaxConcurrentTasks: 3,
		},
		Failure: FailurePolicy{
			MaxRetries: 3,
			Mode:       FailureContinue,
		},
		History: HistoryPolicy{
			Size: 100,
		},
		Events: EventPolicy{
			SendTimeout: 100 * time.Millisecond,
		},
	}
}

// Validate checks that policy values are within acceptable ranges.
// Out-of-range numbers are reset to their defaults; an unknown failure
// mode is an error.
func (c *Config) Validate() error {
	if c.Scheduling.MaxConcurrentTasks < 1 {
		c.Scheduling.MaxConcurrentTasks = 3
	}
	if c.Failure.MaxRetries < 0 {
		c.Failure.MaxRetries = 3
	}
	if c.Failure.Mode == "" {
		c.Failure.Mode = FailureContinue
	}
	if !c.Failure.Mode.Valid() {
		return fmt.Errorf("unknown failure policy %q (want %s or %s)", c.Failure.Mode, FailureContinue, FailureSkipDependents)
	}
	if c.Loop.TaskTimeout < 0 {
		c.Loop.TaskTimeout = 0
	}
	if c.Loop.RetryBackoff < 0 {
		c.Loop.RetryBackoff = 0
	}
	if c.History.Size < 1 {
		c.History.Size = 100
	}
	if c.Events.BufferSize < 0 {
		c.Events.BufferSize = 0
	}
	if c.Events.SendTimeout <= 0 {
		c.Events.SendTimeout = 100 * time.Millisecond
	}
	return nil
}
