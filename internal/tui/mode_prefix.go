package tui

import (
	"strings"

	"github.com/ShayCichocki/waver/internal/assistant"
)

// modePrefixes maps explicit "!mode " prefixes to processing modes.
var modePrefixes = []struct {
	prefix string
	mode   assistant.Mode
}{
	{"!simple ", assistant.ModeSimple},
	{"!agentic ", assistant.ModeAgentic},
	{"!adaptive ", assistant.ModeAdaptive},
}

// ClassifyMode strips an explicit mode prefix (!simple, !agentic,
// !adaptive) from the question. The returned mode is empty when no
// prefix was given, meaning the current mode is kept.
func ClassifyMode(text string) (assistant.Mode, string) {
	text = strings.TrimSpace(text)
	for _, p := range modePrefixes {
		if strings.HasPrefix(text, p.prefix) {
			return p.mode, strings.TrimSpace(strings.TrimPrefix(text, p.prefix))
		}
		// A bare prefix switches mode without asking anything.
		if text == strings.TrimSpace(p.prefix) {
			return p.mode, ""
		}
	}
	return "", text
}
