package orchestrator

import (
	"maps"
	"slices"

	"github.com/ShayCichocki/waver/internal/tools"
	"github.com/ShayCichocki/waver/pkg/models"
)

// prepareParameters copies the task's parameters, projects the outputs of
// its finished dependencies into them according to the task's type, and
// finally overlays the execution context. Dependencies without an output
// (failed, skipped, unknown) contribute nothing.
func prepareParameters(task *models.SubTask, outputs map[string]map[string]any, execCtx map[string]any) map[string]any {
	params := task.CloneParameters()

	for _, dep := range task.Dependencies {
		out, ok := outputs[dep]
		if !ok || out == nil {
			continue
		}
		switch task.Type {
		case models.TaskTypeDatabaseQuery:
			mergeEntities(params, out)
		case models.TaskTypeCalculation:
			projectData(params, out)
		case models.TaskTypeTextProcessing:
			projectText(params, out)
		}
	}

	maps.Copy(params, execCtx)
	return params
}

// mergeEntities merges out["entities"] into params["params"].
func mergeEntities(params, out map[string]any) {
	entities, ok := out["entities"].(map[string]any)
	if !ok || len(entities) == 0 {
		return
	}
	inner, ok := params["params"].(map[string]any)
	if !ok {
		inner = map[string]any{}
		params["params"] = inner
	}
	maps.Copy(inner, entities)
}

// projectData sets params["data"] from out["data"]. Lists are used as is;
// maps are flattened, in key order, into their numeric scalars and the numeric entries of
// list-valued fields.
func projectData(params, out map[string]any) {
	data, ok := out["data"]
	if !ok {
		return
	}
	if list, ok := tools.AsList(data); ok {
		params["data"] = list
		return
	}
	m, ok := data.(map[string]any)
	if !ok {
		return
	}
	var numbers []any
	for _, k := range slices.Sorted(maps.Keys(m)) {
		v := m[k]
		if _, ok := tools.AsNumber(v); ok {
			numbers = append(numbers, v)
			continue
		}
		if list, ok := tools.AsList(v); ok {
			for _, item := range list {
				if _, ok := tools.AsNumber(item); ok {
					numbers = append(numbers, item)
				}
			}
		}
	}
	if len(numbers) > 0 {
		params["data"] = numbers
	}
}

// projectText sets params["text"] from out["result"]: strings verbatim,
// maps rendered as "key: value; ...". Outputs with any other result shape
// are rendered whole.
func projectText(params, out map[string]any) {
	switch r := out["result"].(type) {
	case string:
		params["text"] = r
	case map[string]any:
		params["text"] = tools.RenderMap(r)
	default:
		params["text"] = tools.RenderMap(out)
	}
}
