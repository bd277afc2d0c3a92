package tools

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/expr-lang/expr"
)

// CalculationTool performs arithmetic, statistics, percentages and counts.
type CalculationTool struct{}

// NewCalculationTool creates the calculation tool.
func NewCalculationTool() *CalculationTool {
	return &CalculationTool{}
}

func (t *CalculationTool) Name() string { return "calculation" }

func (t *CalculationTool) Description() string {
	return "Perform mathematical calculations, statistical analysis, and data processing"
}

func (t *CalculationTool) Schema() Schema {
	return Schema{
		"type": "object",
		"properties": map[string]any{
			"operation": map[string]any{
				"type":        "string",
				"enum":        []any{"basic_math", "statistics", "percentage", "count"},
				"description": "Type of calculation to perform",
			},
			"expression": map[string]any{
				"type":        "string",
				"description": "Mathematical expression for basic_math operation",
			},
			"data": map[string]any{
				"type":        "array",
				"description": "Data array for statistics or count operations",
			},
			"part": map[string]any{
				"type":        "number",
				"description": "Part value for percentage calculation",
			},
			"total": map[string]any{
				"type":        "number",
				"description": "Total value for percentage calculation",
			},
		},
		"required": []any{"operation"},
	}
}

func (t *CalculationTool) Execute(ctx context.Context, params map[string]any) (map[string]any, error) {
	op := stringParam(params, "operation")
	if op == "" {
		return nil, errors.New("operation parameter is required")
	}
	result, err := t.dispatch(op, params)
	if err != nil {
		return nil, fmt.Errorf("calculation failed: %w", err)
	}
	return map[string]any{"result": result, "operation": op}, nil
}

func (t *CalculationTool) dispatch(op string, params map[string]any) (any, error) {
	switch op {
	case "basic_math":
		expression := stringParam(params, "expression")
		if expression == "" {
			return nil, errors.New("expression is required for basic math")
		}
		return EvalArithmetic(expression)

	case "statistics":
		data, ok := AsList(params["data"])
		if !ok || len(data) == 0 {
			return nil, errors.New("data list is required for statistics")
		}
		return Statistics(data), nil

	case "percentage":
		part, partOK := params["part"]
		total, totalOK := params["total"]
		if !partOK || !totalOK || part == nil || total == nil {
			return nil, errors.New("part and total are required for percentage")
		}
		p, ok1 := AsNumber(part)
		tot, ok2 := AsNumber(total)
		if !ok1 || !ok2 {
			return nil, errors.New("part and total must be numbers")
		}
		return Percentage(p, tot), nil

	case "count":
		data := params["data"]
		if isEmpty(data) {
			return nil, errors.New("data is required for count operation")
		}
		if l, ok := AsList(data); ok {
			return len(l), nil
		}
		if m, ok := data.(map[string]any); ok {
			return len(m), nil
		}
		return 1, nil

	default:
		return nil, fmt.Errorf("Unknown operation: %s", op)
	}
}

const allowedExpressionChars = "0123456789+-*/.() "

// EvalArithmetic evaluates an expression made only of digits, + - * / . ( )
// and spaces. Integer arithmetic stays integral; division yields a float.
func EvalArithmetic(expression string) (any, error) {
	for _, r := range expression {
		if !strings.ContainsRune(allowedExpressionChars, r) {
			return nil, errors.New("Invalid characters in expression")
		}
	}
	program, err := expr.Compile(expression)
	if err != nil {
		return nil, fmt.Errorf("Invalid expression: %v", err)
	}
	out, err := expr.Run(program, nil)
	if err != nil {
		return nil, fmt.Errorf("Invalid expression: %v", err)
	}
	if f, ok := out.(float64); ok && (math.IsInf(f, 0) || math.IsNaN(f)) {
		return nil, errors.New("Invalid expression: division by zero")
	}
	if _, ok := AsNumber(out); !ok {
		return nil, fmt.Errorf("Invalid expression: result %v is not a number", out)
	}
	return out, nil
}

// Statistics computes count, sum, mean, min, max and range over the numeric
// members of data. With no numeric members only count is reported; an empty
// input yields an empty map.
func Statistics(data []any) map[string]any {
	if len(data) == 0 {
		return map[string]any{}
	}
	var nums []float64
	for _, v := range data {
		if f, ok := AsNumber(v); ok {
			nums = append(nums, f)
		}
	}
	if len(nums) == 0 {
		return map[string]any{"count": len(data)}
	}
	sum, lo, hi := 0.0, nums[0], nums[0]
	for _, f := range nums {
		sum += f
		lo = math.Min(lo, f)
		hi = math.Max(hi, f)
	}
	return map[string]any{
		"count": len(nums),
		"sum":   sum,
		"mean":  sum / float64(len(nums)),
		"min":   lo,
		"max":   hi,
		"range": hi - lo,
	}
}

// Percentage returns part/total*100 rounded to two decimals; a zero total yields 0.
func Percentage(part, total float64) float64 {
	if total == 0 {
		return 0
	}
	return round2(part / total * 100)
}

func isEmpty(v any) bool {
	if v == nil {
		return true
	}
	if l, ok := AsList(v); ok {
		return len(l) == 0
	}
	switch val := v.(type) {
	case map[string]any:
		return len(val) == 0
	case string:
		return val == ""
	case bool:
		return !val
	}
	if f, ok := AsNumber(v); ok {
		return f == 0
	}
	return false
}
