package assistant

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/ShayCichocki/waver/internal/tools"
)

// Render turns a synthesized plan result into a single line of text,
// choosing the renderer by the first of response, data, items, analytics
// and report present in result.
func Render(result map[string]any) string {
	if result == nil {
		return ""
	}
	if v, ok := result["response"]; ok {
		return text(v)
	}
	if v, ok := result["data"]; ok {
		return renderData(v)
	}
	if v, ok := result["items"]; ok {
		items, _ := tools.AsList(v)
		return renderItems(items)
	}
	if v, ok := result["analytics"]; ok {
		return renderAnalytics(v)
	}
	if v, ok := result["report"]; ok {
		return renderReport(v)
	}
	return text(result)
}

func renderData(data any) string {
	if m, ok := data.(map[string]any); ok {
		parts := make([]string, 0, len(m))
		for _, k := range sortedKeys(m) {
			switch v := m[k].(type) {
			case map[string]any:
				parts = append(parts, k+": datos disponibles")
			default:
				if list, ok := tools.AsList(v); ok {
					parts = append(parts, fmt.Sprintf("%s: %d", k, len(list)))
				} else {
					parts = append(parts, k+": "+text(v))
				}
			}
		}
		return strings.Join(parts, "; ")
	}
	if list, ok := tools.AsList(data); ok {
		return fmt.Sprintf("Se encontraron %d elementos", len(list))
	}
	return text(data)
}

func renderItems(items []any) string {
	if len(items) == 0 {
		return "No se encontraron elementos"
	}
	if len(items) <= 5 {
		return joinText(items)
	}
	return fmt.Sprintf("%s y %d más", joinText(items[:3]), len(items)-3)
}

func joinText(items []any) string {
	parts := make([]string, len(items))
	for i, item := range items {
		parts[i] = text(item)
	}
	return strings.Join(parts, "; ")
}

func renderAnalytics(v any) string {
	analytics, _ := v.(map[string]any)
	var parts []string
	if summary, ok := analytics["summary"]; ok {
		parts = append(parts, "Resumen: "+text(summary))
	}
	if metrics, ok := analytics["metrics"].(map[string]any); ok {
		var numeric []string
		for _, k := range sortedKeys(metrics) {
			if _, ok := tools.AsNumber(metrics[k]); ok {
				numeric = append(numeric, fmt.Sprintf("%s: %v", k, metrics[k]))
			}
		}
		if len(numeric) > 0 {
			parts = append(parts, "Métricas: "+strings.Join(numeric, "; "))
		}
	}
	if len(parts) == 0 {
		return "Análisis completado"
	}
	return strings.Join(parts, "; ")
}

func renderReport(v any) string {
	report, _ := v.(map[string]any)
	var parts []string
	if summary, ok := report["executive_summary"].(map[string]any); ok && len(summary) > 0 {
		parts = append(parts, "Resumen ejecutivo: "+tools.RenderMap(summary))
	}
	if findings, ok := tools.AsList(report["detailed_findings"]); ok {
		parts = append(parts, fmt.Sprintf("Hallazgos detallados: %d elementos analizados", len(findings)))
	}
	if len(parts) == 0 {
		return "Reporte generado"
	}
	return strings.Join(parts, "; ")
}

var digits = regexp.MustCompile(`\d+`)

// Fallback formats rendered plan data when the model cannot rephrase it.
// Counting questions get the last number found in data.
func Fallback(data, message string) string {
	if data == "" {
		return "He procesado tu consulta pero no encontré información específica."
	}
	clean := strings.NewReplacer("{", "", "}", "", "[", "", "]", "").Replace(data)

	lower := strings.ToLower(message)
	if strings.Contains(lower, "cuantos") || strings.Contains(lower, "cuántos") {
		if numbers := digits.FindAllString(clean, -1); len(numbers) > 0 {
			return fmt.Sprintf("Según los datos disponibles, el total es %s.", numbers[len(numbers)-1])
		}
	}

	runes := []rune(clean)
	if len(runes) > 200 {
		return "He analizado tu consulta y encontré: " + string(runes[:200]) + "..."
	}
	return "He analizado tu consulta y encontré: " + clean
}

// text renders scalars with fmt and composite values as JSON.
func text(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case map[string]any, []any, []map[string]any, []string:
		var buf bytes.Buffer
		enc := json.NewEncoder(&buf)
		enc.SetEscapeHTML(false)
		if err := enc.Encode(val); err != nil {
			return fmt.Sprint(val)
		}
		return strings.TrimSpace(buf.String())
	default:
		return fmt.Sprint(val)
	}
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
