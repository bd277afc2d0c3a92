// Package tools provides the tool registry and the database, calculation
// and text processing tools the orchestrator executes.
package tools

import (
	"context"
	"time"
)

// Schema is a JSON-schema shaped description of a tool's parameters.
type Schema map[string]any

// Tool is a named capability invoked with keyword parameters.
type Tool interface {
	Name() string
	Description() string
	Schema() Schema
	// Execute runs the tool. Errors describe a failed precondition or an
	// underlying failure; they are wrapped into a *ToolError by the registry.
	Execute(ctx context.Context, params map[string]any) (map[string]any, error)
}

// Result is the output of a successful registry execution.
type Result struct {
	ToolName   string         `json:"tool_name"`
	Output     map[string]any `json:"result"`
	ExecutedAt time.Time      `json:"execution_time"`
	Duration   time.Duration  `json:"duration"`
}

// Info describes a registered tool and its usage.
type Info struct {
	Name           string     `json:"name"`
	Description    string     `json:"description"`
	Parameters     Schema     `json:"parameters_schema"`
	ExecutionCount int64      `json:"execution_count"`
	LastUsed       *time.Time `json:"last_used"`
}
