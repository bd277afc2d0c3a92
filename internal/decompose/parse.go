package decompose

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/ShayCichocki/waver/pkg/models"
)

// ErrNoPlan is returned when a model response holds no usable task array.
var ErrNoPlan = errors.New("no task array in response")

// proposedTask is the JSON structure the model returns for a single task.
type proposedTask struct {
	ID           string         `json:"id"`
	Description  string         `json:"description"`
	ToolName     string         `json:"tool_name"`
	Parameters   map[string]any `json:"parameters"`
	Dependencies []any          `json:"dependencies"`
	Priority     *int           `json:"priority"`
}

// ParseResponse parses a model's JSON task array into sub-tasks. newID
// supplies the id of each task in order. Dependencies may name the model's
// own ids, a task description, a generated id or a 1-based position; all are
// rewritten to generated ids. Unresolvable dependencies are an error.
// Tool names are not checked here; see Validator.
func ParseResponse(response string, newID func() string) ([]*models.SubTask, error) {
	start := strings.Index(response, "[")
	end := strings.LastIndex(response, "]")
	if start == -1 || end == -1 || end <= start {
		preview := response
		if len(preview) > 200 {
			preview = preview[:200] + "... (truncated)"
		}
		return nil, fmt.Errorf("%w (got %d chars): %q", ErrNoPlan, len(response), preview)
	}

	var proposed []proposedTask
	if err := json.Unmarshal([]byte(response[start:end+1]), &proposed); err != nil {
		return nil, fmt.Errorf("unmarshal task array: %w", err)
	}
	if len(proposed) == 0 {
		return nil, fmt.Errorf("%w: empty task list", ErrNoPlan)
	}

	tasks := make([]*models.SubTask, len(proposed))
	refs := make(map[string]string, len(proposed)*3)
	for i, p := range proposed {
		toolName := strings.TrimSpace(p.ToolName)
		if toolName == "" {
			toolName = string(models.TaskTypeTextProcessing)
		}
		taskType, _ := models.TaskTypeForTool(toolName)
		params := p.Parameters
		if params == nil {
			params = map[string]any{}
		}
		priority := i + 1
		if p.Priority != nil {
			priority = *p.Priority
		}

		id := newID()
		tasks[i] = &models.SubTask{
			ID:          id,
			Type:        taskType,
			Description: p.Description,
			ToolName:    toolName,
			Parameters:  params,
			Priority:    priority,
		}

		refs[id] = id
		if p.ID != "" {
			refs[p.ID] = id
		}
		if p.Description != "" {
			if _, taken := refs[p.Description]; !taken {
				refs[p.Description] = id
			}
		}
		refs[strconv.Itoa(i+1)] = id
	}

	for i, p := range proposed {
		for _, raw := range p.Dependencies {
			ref, ok := dependencyRef(raw)
			if !ok {
				return nil, fmt.Errorf("task %d: invalid dependency %v", i+1, raw)
			}
			id, ok := refs[ref]
			if !ok {
				return nil, fmt.Errorf("task %d: unknown dependency %q", i+1, ref)
			}
			tasks[i].Dependencies = append(tasks[i].Dependencies, id)
		}
	}
	return tasks, nil
}

func dependencyRef(raw any) (string, bool) {
	switch v := raw.(type) {
	case string:
		v = strings.TrimSpace(v)
		return v, v != ""
	case float64:
		if v != float64(int(v)) {
			return "", false
		}
		return strconv.Itoa(int(v)), true
	default:
		return "", false
	}
}
