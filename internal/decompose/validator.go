package decompose

import (
	"fmt"
	"slices"

	"github.com/ShayCichocki/waver/internal/graph"
	"github.com/ShayCichocki/waver/internal/tools"
	"github.com/ShayCichocki/waver/pkg/models"
)

// ValidationResult contains the results of validating a plan.
type ValidationResult struct {
	Valid    bool     `json:"valid"`
	Errors   []string `json:"errors"`
	Warnings []string `json:"warnings"`
}

// Err returns the first error as an error value, or nil when valid.
func (r ValidationResult) Err() error {
	if r.Valid {
		return nil
	}
	if len(r.Errors) == 0 {
		return fmt.Errorf("invalid plan")
	}
	return fmt.Errorf("invalid plan: %s", r.Errors[0])
}

// maxPlanTasks bounds model-proposed plans.
const maxPlanTasks = 12

// Validator checks sub-task plans against the available tools.
type Validator struct {
	tools []string
}

// NewValidator creates a validator accepting the given tool names.
func NewValidator(toolNames []string) *Validator {
	return &Validator{tools: append([]string(nil), toolNames...)}
}

// Validate checks dependencies, tool names and required parameters.
func (v *Validator) Validate(tasks []*models.SubTask) ValidationResult {
	result := ValidationResult{Valid: true, Errors: []string{}, Warnings: []string{}}
	fail := func(format string, args ...any) {
		result.Valid = false
		result.Errors = append(result.Errors, fmt.Sprintf(format, args...))
	}

	if len(tasks) == 0 {
		fail("plan has no tasks")
		return result
	}
	if len(tasks) > maxPlanTasks {
		fail("plan has %d tasks, more than %d", len(tasks), maxPlanTasks)
	}

	if err := graph.New(tasks).Validate(); err != nil {
		fail("%v", err)
	}

	for _, task := range tasks {
		v.validateTask(task, fail, &result)
	}
	v.checkAntiPatterns(tasks, &result)
	return result
}

func (v *Validator) validateTask(task *models.SubTask, fail func(string, ...any), result *ValidationResult) {
	if !slices.Contains(v.tools, task.ToolName) {
		fail("task %s: unknown tool %q", task.ID, task.ToolName)
		return
	}
	if !task.Type.Valid() {
		fail("task %s: no task type for tool %q", task.ID, task.ToolName)
	}
	if task.Description == "" {
		result.Warnings = append(result.Warnings, fmt.Sprintf("task %s: missing description", task.ID))
	}

	switch models.TaskType(task.ToolName) {
	case models.TaskTypeDatabaseQuery:
		q, _ := task.Parameters["query_type"].(string)
		if q == "" {
			fail("task %s: database_query without query_type", task.ID)
		} else if !knownQueryType(q) {
			fail("task %s: unknown query_type %q", task.ID, q)
		}
	case models.TaskTypeCalculation, models.TaskTypeTextProcessing:
		if op, _ := task.Parameters["operation"].(string); op == "" {
			fail("task %s: %s without operation", task.ID, task.ToolName)
		}
	}
}

func (v *Validator) checkAntiPatterns(tasks []*models.SubTask, result *ValidationResult) {
	last := tasks[len(tasks)-1]
	if op, _ := last.Parameters["operation"].(string); last.ToolName != string(models.TaskTypeTextProcessing) || op != "format_response" {
		result.Warnings = append(result.Warnings, "plan does not end with a format_response task")
	}
	roots := 0
	for _, t := range tasks {
		if len(t.Dependencies) == 0 {
			roots++
		}
	}
	if len(tasks) > 1 && roots == len(tasks) {
		result.Warnings = append(result.Warnings, "no task depends on another; results will not flow between tasks")
	}
}

func knownQueryType(q string) bool {
	return slices.Contains(tools.DatabaseQueryTypes, tools.DatabaseQueryType(q))
}
