package tools

import (
	"context"
	"reflect"
	"strings"
	"testing"
)

func TestCalculationTool_BasicMath(t *testing.T) {
	tool := NewCalculationTool()
	ctx := context.Background()

	tests := []struct {
		expr    string
		want    float64
		wantErr string
	}{
		{expr: "1 + 2 * 3", want: 7},
		{expr: "(1 + 2) * 3", want: 9},
		{expr: "10 / 4", want: 2.5},
		{expr: "2.5 - 0.5", want: 2},
		{expr: "1 / 0", wantErr: "calculation failed: Invalid expression: division by zero"},
		{expr: "__import__('os')", wantErr: "calculation failed: Invalid characters in expression"},
		{expr: "1 +", wantErr: "calculation failed: Invalid expression"},
		{expr: "", wantErr: "calculation failed: expression is required for basic math"},
	}
	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			out, err := tool.Execute(ctx, map[string]any{"operation": "basic_math", "expression": tt.expr})
			if tt.wantErr != "" {
				if err == nil || !strings.HasPrefix(err.Error(), tt.wantErr) {
					t.Fatalf("error = %v, want prefix %q", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Execute() error = %v", err)
			}
			got, ok := AsNumber(out["result"])
			if !ok || got != tt.want {
				t.Errorf("result = %v, want %v", out["result"], tt.want)
			}
			if out["operation"] != "basic_math" {
				t.Errorf("operation = %v", out["operation"])
			}
		})
	}
}

func TestStatistics(t *testing.T) {
	got := Statistics([]any{1, 2.5, "x", 4, true, 0.5})
	want := map[string]float64{"sum": 8, "mean": 2, "min": 0.5, "max": 4, "range": 3.5}
	if got["count"] != 4 {
		t.Errorf("count = %v, want 4", got["count"])
	}
	for k, w := range want {
		if g, _ := AsNumber(got[k]); g != w {
			t.Errorf("%s = %v, want %v", k, got[k], w)
		}
	}

	exact := Statistics([]any{1, 2, 3, "x"})
	wantExact := map[string]any{"count": 3, "sum": 6.0, "mean": 2.0, "min": 1.0, "max": 3.0, "range": 2.0}
	if !reflect.DeepEqual(exact, wantExact) {
		t.Errorf("Statistics([1,2,3,x]) = %v, want %v", exact, wantExact)
	}

	if got := Statistics([]any{"a", "b"}); len(got) != 1 || got["count"] != 2 {
		t.Errorf("non-numeric Statistics() = %v", got)
	}
	if got := Statistics(nil); len(got) != 0 {
		t.Errorf("Statistics(nil) = %v", got)
	}
}

func TestCalculationTool_Operations(t *testing.T) {
	tool := NewCalculationTool()
	ctx := context.Background()

	tests := []struct {
		name    string
		params  map[string]any
		want    any
		wantErr string
	}{
		{name: "percentage", params: map[string]any{"operation": "percentage", "part": 1, "total": 3}, want: 33.33},
		{name: "percentage zero total", params: map[string]any{"operation": "percentage", "part": 5, "total": 0}, want: 0.0},
		{name: "percentage zero over zero", params: map[string]any{"operation": "percentage", "part": 0, "total": 0}, want: 0.0},
		{name: "percentage missing", params: map[string]any{"operation": "percentage", "part": 5}, wantErr: "calculation failed: part and total are required for percentage"},
		{name: "count list", params: map[string]any{"operation": "count", "data": []any{1, 2, 3}}, want: 3},
		{name: "count map", params: map[string]any{"operation": "count", "data": map[string]any{"a": 1}}, want: 1},
		{name: "count scalar", params: map[string]any{"operation": "count", "data": "x"}, want: 1},
		{name: "count empty", params: map[string]any{"operation": "count", "data": []any{}}, wantErr: "calculation failed: data is required for count operation"},
		{name: "statistics empty", params: map[string]any{"operation": "statistics", "data": []any{}}, wantErr: "calculation failed: data list is required for statistics"},
		{name: "missing operation", params: map[string]any{}, wantErr: "operation parameter is required"},
		{name: "unknown", params: map[string]any{"operation": "integrate"}, wantErr: "calculation failed: Unknown operation: integrate"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := tool.Execute(ctx, tt.params)
			if tt.wantErr != "" {
				if err == nil || err.Error() != tt.wantErr {
					t.Fatalf("error = %v, want %q", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Execute() error = %v", err)
			}
			if out["result"] != tt.want {
				t.Errorf("result = %v (%T), want %v (%T)", out["result"], out["result"], tt.want, tt.want)
			}
		})
	}
}
