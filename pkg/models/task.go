package models

// TaskType identifies the kind of work a sub-task performs.
// It drives how dependency results are projected into the task's parameters.
type TaskType string

const (
	// TaskTypeDatabaseQuery reads from the data store.
	TaskTypeDatabaseQuery TaskType = "database_query"
	// TaskTypeCalculation performs arithmetic or statistics.
	TaskTypeCalculation TaskType = "calculation"
	// TaskTypeTextProcessing extracts or reshapes text.
	TaskTypeTextProcessing TaskType = "text_processing"
	// TaskTypeResponseSynthesis produces the final formatted text.
	TaskTypeResponseSynthesis TaskType = "response_synthesis"
)

// Valid returns true if the task type is a known value.
func (t TaskType) Valid() bool {
	switch t {
	case TaskTypeDatabaseQuery, TaskTypeCalculation, TaskTypeTextProcessing, TaskTypeResponseSynthesis:
		return true
	default:
		return false
	}
}

// TaskTypeForTool maps a registry tool name to the task type that runs it.
// The second return value is false for tool names with no task type.
func TaskTypeForTool(toolName string) (TaskType, bool) {
	switch TaskType(toolName) {
	case TaskTypeDatabaseQuery:
		return TaskTypeDatabaseQuery, true
	case TaskTypeCalculation:
		return TaskTypeCalculation, true
	case TaskTypeTextProcessing:
		return TaskTypeTextProcessing, true
	case TaskTypeResponseSynthesis:
		return TaskTypeResponseSynthesis, true
	default:
		return "", false
	}
}

// SubTask is one unit of planned work.
// It is created once by the decomposer and never mutated during execution;
// the orchestrator works on a copy of Parameters.
type SubTask struct {
	// ID is the identifier assigned by the decomposer (e.g. task_001).
	ID string `json:"id"`
	// Type is the kind of work the task performs.
	Type TaskType `json:"type"`
	// Description is a human-readable label, used for diagnostics and some response formats.
	Description string `json:"description"`
	// ToolName is the registry key of the tool that executes the task.
	ToolName string `json:"tool_name"`
	// Parameters are the keyword parameters passed to the tool.
	Parameters map[string]any `json:"parameters"`
	// Dependencies lists task IDs that must reach a terminal state before this task starts.
	Dependencies []string `json:"dependencies,omitempty"`
	// Priority orders otherwise-ready tasks; higher runs first.
	Priority int `json:"priority"`
}

// CloneParameters returns a deep copy of the task parameters.
// Nested maps and slices are copied so callers may modify the result freely.
func (t *SubTask) CloneParameters() map[string]any {
	out := make(map[string]any, len(t.Parameters))
	for k, v := range t.Parameters {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		m := make(map[string]any, len(val))
		for k, inner := range val {
			m[k] = cloneValue(inner)
		}
		return m
	case []any:
		s := make([]any, len(val))
		for i, inner := range val {
			s[i] = cloneValue(inner)
		}
		return s
	case []string:
		return append([]string(nil), val...)
	default:
		return v
	}
}
