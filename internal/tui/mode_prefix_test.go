package tui

import (
	"testing"

	"github.com/ShayCichocki/waver/internal/assistant"
)

func TestClassifyMode(t *testing.T) {
	tests := []struct {
		input    string
		wantMode assistant.Mode
		wantText string
	}{
		// Explicit prefixes
		{"!simple hola", assistant.ModeSimple, "hola"},
		{"!agentic compara los productos A y B", assistant.ModeAgentic, "compara los productos A y B"},
		{"!adaptive ¿cuántos pedidos hay?", assistant.ModeAdaptive, "¿cuántos pedidos hay?"},
		{"  !simple   gracias  ", assistant.ModeSimple, "gracias"},

		// Bare prefixes only switch mode
		{"!agentic", assistant.ModeAgentic, ""},
		{"!simple", assistant.ModeSimple, ""},

		// No prefix keeps the current mode
		{"¿dónde está mi pedido?", "", "¿dónde está mi pedido?"},
		{"!unknown pregunta", "", "!unknown pregunta"},
		{"simple pregunta", "", "simple pregunta"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			gotMode, gotText := ClassifyMode(tt.input)
			if gotMode != tt.wantMode {
				t.Errorf("ClassifyMode(%q) mode = %q, want %q", tt.input, gotMode, tt.wantMode)
			}
			if gotText != tt.wantText {
				t.Errorf("ClassifyMode(%q) text = %q, want %q", tt.input, gotText, tt.wantText)
			}
		})
	}
}
