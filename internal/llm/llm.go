// Package llm provides the language model collaborator used for complex
// query decomposition and for rephrasing assistant responses.
package llm

import (
	"context"
	"errors"
	"strings"
)

// ErrUnavailable is returned by generators that have no configured backend.
var ErrUnavailable = errors.New("language model is not available")

// ErrEmptyResponse is returned when the model produced no text.
var ErrEmptyResponse = errors.New("language model returned an empty response")

// Complexity selects the model tier and sampling parameters of a call.
type Complexity string

const (
	ComplexitySimple  Complexity = "simple"
	ComplexityComplex Complexity = "complex"
)

// Request is a single text generation call.
type Request struct {
	// Prompt is the user message, or the whole prompt when Raw is set.
	Prompt string
	// Context is database information placed ahead of the user message.
	Context string
	// Complexity picks the model and sampling parameters.
	Complexity Complexity
	// MaxTokens overrides the per-complexity output limit when positive.
	MaxTokens int
	// Raw sends Prompt without the customer service framing.
	Raw bool
}

// Generator produces text from a prompt.
type Generator interface {
	Name() string
	Available() bool
	Generate(ctx context.Context, req Request) (string, error)
}

// sampling holds the generation parameters for one complexity tier.
type sampling struct {
	maxTokens   int
	temperature float64
	topP        float64
}

func samplingFor(req Request) sampling {
	s := sampling{maxTokens: 1500, temperature: 0.7, topP: 0.9}
	if req.Complexity == ComplexityComplex {
		s = sampling{maxTokens: 2000, temperature: 0.3, topP: 0.8}
	}
	if req.MaxTokens > 0 {
		s.maxTokens = req.MaxTokens
	}
	return s
}

// SystemPrompt frames every non-raw request.
const SystemPrompt = `Eres un agente de servicio al cliente amigable y útil para una tienda de e-commerce.

Puedes ayudar con:
- Consultas sobre pedidos específicos o generales
- Búsquedas de productos y catálogo completo
- Información sobre políticas de la empresa
- Análisis de datos cuando te proporcionen información de la base de datos

FORMATO DE RESPUESTA:
- Usa **texto** para resaltar información importante (nombres, números, estados)
- Sé claro, completo y preciso
- Si te proporcionan información de la base de datos, analízala y responde de manera útil
- Mantén las respuestas naturales, completas y útiles`

// BuildPrompt renders the user turn of a non-raw request, with the database
// context ahead of the message when present.
func BuildPrompt(message, context string) string {
	var b strings.Builder
	if strings.TrimSpace(context) != "" {
		b.WriteString("Información de la base de datos:\n")
		b.WriteString(context)
		b.WriteString("\n\n")
	}
	b.WriteString("Usuario: ")
	b.WriteString(message)
	b.WriteString("\n\nAsistente:")
	return b.String()
}

// fullPrompt is the single-string form used by providers without a system role.
func fullPrompt(req Request) string {
	if req.Raw {
		return req.Prompt
	}
	return SystemPrompt + "\n\n" + BuildPrompt(req.Prompt, req.Context)
}

// Unavailable is the generator used when no provider is configured.
type Unavailable struct{}

func (Unavailable) Name() string    { return "none" }
func (Unavailable) Available() bool { return false }

func (Unavailable) Generate(context.Context, Request) (string, error) {
	return "", ErrUnavailable
}

// IsAvailable reports whether g is non-nil and has a usable backend.
func IsAvailable(g Generator) bool {
	return g != nil && g.Available()
}
