package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/fatih/color"
	"go.yaml.in/yaml/v3"
)

// Output formats accepted by --output.
const (
	formatText = "text"
	formatJSON = "json"
	formatYAML = "yaml"
)

func validFormat(f string) bool {
	return f == formatText || f == formatJSON || f == formatYAML
}

// render writes v as JSON or YAML, or calls text for the text format.
func render(w io.Writer, format string, v any, text func(io.Writer) error) error {
	switch format {
	case formatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		enc.SetEscapeHTML(false)
		return enc.Encode(v)
	case formatYAML:
		// Round-trip through JSON so the json tags name the YAML keys.
		data, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("encode output: %w", err)
		}
		var generic any
		if err := json.Unmarshal(data, &generic); err != nil {
			return fmt.Errorf("encode output: %w", err)
		}
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(generic); err != nil {
			return fmt.Errorf("encode output: %w", err)
		}
		return enc.Close()
	default:
		return text(w)
	}
}

var (
	headingStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("63"))
	labelColor   = color.New(color.FgCyan)
	mutedColor   = color.New(color.Faint)
)

func heading(w io.Writer, title string) {
	fmt.Fprintln(w, headingStyle.Render(title))
}

// field prints an aligned "label: value" line.
func field(w io.Writer, label string, value any) {
	fmt.Fprintf(w, "  %s %v\n", labelColor.Sprintf("%-18s", label+":"), value)
}

// printStatus prints a status line with a colored symbol.
func printStatus(w io.Writer, symbol, message string, attr color.Attribute) {
	fmt.Fprintf(w, "%s %s\n", color.New(attr).Sprint(symbol), message)
}

func statusColor(status string) color.Attribute {
	switch strings.ToLower(status) {
	case "completed", "success", "ok":
		return color.FgGreen
	case "failed", "error":
		return color.FgRed
	case "skipped", "stalled", "retrying":
		return color.FgYellow
	default:
		return color.FgWhite
	}
}

// compactJSON renders v on one line for text output.
func compactJSON(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(data)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
