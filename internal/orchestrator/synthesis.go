package orchestrator

import (
	"fmt"
	"maps"

	"github.com/ShayCichocki/waver/internal/tools"
	"github.com/ShayCichocki/waver/pkg/models"
)

// TaskResult is the output of one completed task as seen by the formatters.
type TaskResult struct {
	TaskID          string         `json:"task_id"`
	TaskDescription string         `json:"task_description"`
	Result          map[string]any `json:"result"`
}

// NoResultResponse is the conversational answer when nothing completed.
const NoResultResponse = "I apologize, but I couldn't process your request at this time."

// collectResults returns the outputs of completed tasks in plan order.
func collectResults(plan *models.ExecutionPlan) []TaskResult {
	var out []TaskResult
	for _, te := range plan.TaskExecutions {
		if te.Status != models.ExecutionStatusCompleted || te.Result == nil {
			continue
		}
		out = append(out, TaskResult{
			TaskID:          te.Task.ID,
			TaskDescription: te.Task.Description,
			Result:          te.Result,
		})
	}
	return out
}

// Synthesize reshapes task results into the given response format.
// Unknown formats use the default passthrough.
func Synthesize(format models.ResponseFormat, results []TaskResult) map[string]any {
	switch format {
	case models.FormatConversational:
		return formatConversational(results)
	case models.FormatStructured:
		return formatStructured(results)
	case models.FormatStructuredList:
		return formatStructuredList(results)
	case models.FormatComparisonTable:
		return formatComparison(results)
	case models.FormatAnalyticalReport:
		return formatAnalytical(results)
	case models.FormatComprehensiveReport:
		return formatComprehensive(results)
	default:
		return formatDefault(results)
	}
}

func formatConversational(results []TaskResult) map[string]any {
	if len(results) == 0 {
		return map[string]any{"response": NoResultResponse}
	}
	main := results[len(results)-1].Result
	return map[string]any{
		"response":   responseText(main),
		"format":     string(models.FormatConversational),
		"confidence": 0.8,
	}
}

// responseText prefers a string "result" field and otherwise renders the map.
func responseText(m map[string]any) string {
	if s, ok := m["result"].(string); ok {
		return s
	}
	return tools.RenderMap(m)
}

func formatStructured(results []TaskResult) map[string]any {
	if len(results) == 0 {
		return map[string]any{"data": map[string]any{}, "format": string(models.FormatStructured)}
	}
	data := map[string]any{}
	for _, r := range results {
		maps.Copy(data, r.Result)
	}
	return map[string]any{
		"data":            data,
		"format":          string(models.FormatStructured),
		"tasks_completed": len(results),
	}
}

func formatStructuredList(results []TaskResult) map[string]any {
	items := []any{}
	for _, r := range results {
		data, ok := r.Result["data"]
		if !ok {
			items = append(items, r.Result)
			continue
		}
		if list, ok := tools.AsList(data); ok {
			items = append(items, list...)
		} else {
			items = append(items, data)
		}
	}
	return map[string]any{
		"items":       items,
		"format":      string(models.FormatStructuredList),
		"total_items": len(items),
	}
}

// formatComparison keys results by task description; later tasks with the
// same description overwrite earlier ones.
func formatComparison(results []TaskResult) map[string]any {
	comparison := map[string]any{}
	for _, r := range results {
		comparison[r.TaskDescription] = r.Result
	}
	return map[string]any{
		"comparison":       comparison,
		"format":           string(models.FormatComparisonTable),
		"comparisons_made": len(comparison),
	}
}

func formatAnalytical(results []TaskResult) map[string]any {
	summary := map[string]any{}
	metrics := map[string]any{}
	for _, r := range results {
		switch {
		case has(r.Result, "statistics"):
			maps.Copy(metrics, r.Result)
		case has(r.Result, "data"):
			summary[r.TaskID] = r.Result["data"]
		default:
			maps.Copy(summary, r.Result)
		}
	}
	return map[string]any{
		"analytics": map[string]any{
			"summary":  summary,
			"metrics":  metrics,
			"insights": []any{},
		},
		"format":         string(models.FormatAnalyticalReport),
		"analysis_depth": len(results),
	}
}

func formatComprehensive(results []TaskResult) map[string]any {
	executive := map[string]any{}
	findings := make([]any, 0, len(results))
	for _, r := range results {
		findings = append(findings, map[string]any{
			"task":    r.TaskDescription,
			"data":    r.Result,
			"task_id": r.TaskID,
		})
		for k, v := range r.Result {
			if _, ok := tools.AsNumber(v); ok {
				executive[k] = v
			}
		}
	}
	return map[string]any{
		"report": map[string]any{
			"executive_summary": executive,
			"detailed_findings": findings,
			"data_analysis":     map[string]any{},
			"recommendations":   []any{},
		},
		"format":             string(models.FormatComprehensiveReport),
		"sections_completed": len(results),
	}
}

func formatDefault(results []TaskResult) map[string]any {
	out := make([]any, len(results))
	for i, r := range results {
		out[i] = r
	}
	return map[string]any{
		"results":       out,
		"format":        string(models.FormatDefault),
		"total_results": len(results),
	}
}

func has(m map[string]any, key string) bool {
	_, ok := m[key]
	return ok
}

// partialResults maps completed task ids to their outputs.
func partialResults(plan *models.ExecutionPlan) map[string]any {
	out := map[string]any{}
	for _, te := range plan.TaskExecutions {
		if te.Status == models.ExecutionStatusCompleted && te.Result != nil {
			out[te.Task.ID] = te.Result
		}
	}
	return out
}

func panicError(r any) error {
	if err, ok := r.(error); ok {
		return fmt.Errorf("panic: %w", err)
	}
	return fmt.Errorf("panic: %v", r)
}
