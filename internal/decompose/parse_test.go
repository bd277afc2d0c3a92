package decompose

import (
	"errors"
	"fmt"
	"testing"
)

func counterIDs() func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("task_%03d", n)
	}
}

func TestParseResponse_Valid(t *testing.T) {
	response := `Here is the plan:
[
	{"description": "Extract", "tool_name": "text_processing", "parameters": {"operation": "extract_keywords"}},
	{"description": "Fetch", "tool_name": "database_query", "parameters": {"query_type": "business_summary"}, "dependencies": ["Extract"]},
	{"description": "Stats", "tool_name": "calculation", "parameters": {"operation": "statistics"}, "dependencies": [2, "task_001"], "priority": 9}
]
Done.`

	tasks, err := ParseResponse(response, counterIDs())
	if err != nil {
		t.Fatalf("ParseResponse() error = %v", err)
	}
	if len(tasks) != 3 {
		t.Fatalf("len = %d", len(tasks))
	}
	if len(tasks[0].Dependencies) != 0 {
		t.Errorf("task 0 deps = %v", tasks[0].Dependencies)
	}
	if got := tasks[1].Dependencies; len(got) != 1 || got[0] != "task_001" {
		t.Errorf("description reference = %v", got)
	}
	if got := tasks[2].Dependencies; len(got) != 2 || got[0] != "task_002" || got[1] != "task_001" {
		t.Errorf("position and id references = %v", got)
	}
	if tasks[0].Priority != 1 || tasks[2].Priority != 9 {
		t.Errorf("priorities = %d, %d", tasks[0].Priority, tasks[2].Priority)
	}
}

func TestParseResponse_DefaultsToolName(t *testing.T) {
	tasks, err := ParseResponse(`[{"description": "x"}]`, counterIDs())
	if err != nil {
		t.Fatalf("ParseResponse() error = %v", err)
	}
	if tasks[0].ToolName != "text_processing" || tasks[0].Parameters == nil {
		t.Errorf("task = %+v", tasks[0])
	}
}

func TestParseResponse_Errors(t *testing.T) {
	tests := []struct {
		name     string
		response string
		wantNo   bool
	}{
		{name: "no array", response: "nothing here", wantNo: true},
		{name: "empty array", response: "[]", wantNo: true},
		{name: "bad json", response: `[{"description": }]`},
		{name: "unknown dependency", response: `[{"description": "a", "dependencies": ["zzz"]}]`},
		{name: "fractional position", response: `[{"description": "a"}, {"description": "b", "dependencies": [1.5]}]`},
		{name: "object dependency", response: `[{"description": "a", "dependencies": [{}]}]`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseResponse(tt.response, counterIDs())
			if err == nil {
				t.Fatal("ParseResponse() succeeded")
			}
			if tt.wantNo && !errors.Is(err, ErrNoPlan) {
				t.Errorf("error = %v, want ErrNoPlan", err)
			}
		})
	}
}
