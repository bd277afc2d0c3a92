package tools

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

var (
	wordPattern    = regexp.MustCompile(`[\p{L}\p{N}_]+`)
	orderIDPattern = regexp.MustCompile(`\b(?:ORD|PED|PRD)[A-Z0-9-]{2,}\b`)
	numberPattern  = regexp.MustCompile(`\b\d+\b`)
	emailPattern   = regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Z|a-z]{2,}\b`)
)

// stopWords are the Spanish function words dropped by keyword extraction.
var stopWords = map[string]bool{
	"el": true, "la": true, "los": true, "las": true, "un": true, "una": true,
	"de": true, "del": true, "y": true, "o": true, "en": true, "con": true,
	"por": true, "para": true, "que": true, "es": true, "son": true,
}

const maxKeywords = 10

// TextProcessingTool extracts keywords and entities, formats and summarizes text.
type TextProcessingTool struct{}

// NewTextProcessingTool creates the text processing tool.
func NewTextProcessingTool() *TextProcessingTool {
	return &TextProcessingTool{}
}

func (t *TextProcessingTool) Name() string { return "text_processing" }

func (t *TextProcessingTool) Description() string {
	return "Process and analyze text data, extract keywords, format responses"
}

func (t *TextProcessingTool) Schema() Schema {
	return Schema{
		"type": "object",
		"properties": map[string]any{
			"operation": map[string]any{
				"type":        "string",
				"enum":        []any{"extract_keywords", "format_response", "extract_entities", "summarize"},
				"description": "Type of text processing operation",
			},
			"text": map[string]any{
				"type":        "string",
				"description": "Text to process",
			},
			"format_type": map[string]any{
				"type":        "string",
				"enum":        []any{"default", "bullet_points", "numbered_list"},
				"description": "Format type for response formatting",
			},
			"max_length": map[string]any{
				"type":        "integer",
				"description": "Maximum length for summarization",
			},
		},
		"required": []any{"operation", "text"},
	}
}

func (t *TextProcessingTool) Execute(ctx context.Context, params map[string]any) (map[string]any, error) {
	op := stringParam(params, "operation")
	if op == "" {
		return nil, errors.New("operation parameter is required")
	}
	text := stringParam(params, "text")

	switch op {
	case "extract_keywords":
		return map[string]any{"result": toAny(ExtractKeywords(text)), "operation": op}, nil

	case "format_response":
		formatType := stringParam(params, "format_type")
		if formatType == "" {
			formatType = "default"
		}
		return map[string]any{"result": FormatText(text, formatType), "operation": op}, nil

	case "extract_entities":
		ents := ExtractEntities(text)
		return map[string]any{
			"result": map[string]any{
				"order_ids": toAny(ents.OrderIDs),
				"numbers":   toAny(ents.Numbers),
				"emails":    toAny(ents.Emails),
				"products":  []any{},
			},
			"entities":  ents.Lookup(ExtractKeywords(text)),
			"operation": op,
		}, nil

	case "summarize":
		maxLen := 100
		if v, ok := AsNumber(params["max_length"]); ok && v > 0 {
			maxLen = int(v)
		}
		return map[string]any{"result": Summarize(text, maxLen), "operation": op}, nil

	default:
		return nil, fmt.Errorf("text processing failed: Unknown operation: %s", op)
	}
}

// ExtractKeywords lowercases text, splits it into word runs and keeps up to
// ten distinct words longer than two runes that are not stop words, in order
// of first appearance.
func ExtractKeywords(text string) []string {
	seen := map[string]bool{}
	out := []string{}
	for _, w := range wordPattern.FindAllString(strings.ToLower(text), -1) {
		if stopWords[w] || utf8.RuneCountInString(w) <= 2 || seen[w] {
			continue
		}
		seen[w] = true
		out = append(out, w)
		if len(out) == maxKeywords {
			break
		}
	}
	return out
}

// FormatText renders text as bullet points or a numbered list of its
// '.'-separated sentences. Other format types return text unchanged.
func FormatText(text, formatType string) string {
	switch formatType {
	case "bullet_points", "numbered_list":
		var lines []string
		n := 0
		for _, s := range strings.Split(text, ".") {
			s = strings.TrimSpace(s)
			if s == "" {
				continue
			}
			n++
			if formatType == "bullet_points" {
				lines = append(lines, "• "+s)
			} else {
				lines = append(lines, fmt.Sprintf("%d. %s", n, s))
			}
		}
		return strings.Join(lines, "\n")
	default:
		return text
	}
}

// Entities are the pattern matches found in a text.
type Entities struct {
	OrderIDs []string
	Numbers  []string
	Emails   []string
}

// ExtractEntities finds order-style codes (on the upper-cased text), bare
// integers and email addresses.
func ExtractEntities(text string) Entities {
	return Entities{
		OrderIDs: nonNil(orderIDPattern.FindAllString(strings.ToUpper(text), -1)),
		Numbers:  nonNil(numberPattern.FindAllString(text, -1)),
		Emails:   nonNil(emailPattern.FindAllString(text, -1)),
	}
}

// Lookup returns the database lookup parameters implied by the entities:
// the order id, the first email and the given keywords. Empty fields are
// omitted. Words such as PEDIDO also match the order pattern, so the first
// id containing a digit wins over the first match.
func (e Entities) Lookup(keywords []string) map[string]any {
	out := map[string]any{}
	if id := e.orderID(); id != "" {
		out["order_id"] = id
	}
	if len(e.Emails) > 0 {
		out["email"] = e.Emails[0]
	}
	if len(keywords) > 0 {
		out["keywords"] = toAny(keywords)
	}
	return out
}

func (e Entities) orderID() string {
	for _, id := range e.OrderIDs {
		if strings.ContainsAny(id, "0123456789") {
			return id
		}
	}
	if len(e.OrderIDs) > 0 {
		return e.OrderIDs[0]
	}
	return ""
}

// Summarize returns text unchanged when it fits in maxLength characters,
// otherwise the leading whole '.'-sentences that fit.
func Summarize(text string, maxLength int) string {
	if utf8.RuneCountInString(text) <= maxLength {
		return text
	}
	var b strings.Builder
	n := 0
	for _, s := range strings.Split(text, ".") {
		size := utf8.RuneCountInString(s)
		if n+size > maxLength {
			break
		}
		b.WriteString(s)
		b.WriteString(".")
		n += size + 1
	}
	return strings.TrimSpace(b.String())
}

func toAny(ss []string) []any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}

func nonNil(ss []string) []string {
	if ss == nil {
		return []string{}
	}
	return ss
}
