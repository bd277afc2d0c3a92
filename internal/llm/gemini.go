package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/googleai"
)

const (
	DefaultGeminiModel    = "gemini-2.0-flash-exp"
	DefaultGeminiProModel = "gemini-2.5-pro"
)

// GeminiConfig configures the Gemini provider.
type GeminiConfig struct {
	APIKey string
	// Model serves simple requests.
	Model string
	// ProModel serves complex requests.
	ProModel string
}

// Gemini generates text with Google Gemini through langchaingo.
type Gemini struct {
	model    llms.Model
	flash    string
	pro      string
	hasModel bool
}

// NewGemini creates a Gemini generator. An empty API key is an error.
func NewGemini(ctx context.Context, cfg GeminiConfig) (*Gemini, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini: %w", ErrUnavailable)
	}
	flash, _ := geminiModels(cfg)
	client, err := googleai.New(ctx,
		googleai.WithAPIKey(cfg.APIKey),
		googleai.WithDefaultModel(flash),
	)
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	return newGemini(client, cfg), nil
}

func newGemini(m llms.Model, cfg GeminiConfig) *Gemini {
	flash, pro := geminiModels(cfg)
	return &Gemini{model: m, flash: flash, pro: pro, hasModel: m != nil}
}

func geminiModels(cfg GeminiConfig) (flash, pro string) {
	flash, pro = cfg.Model, cfg.ProModel
	if flash == "" {
		flash = DefaultGeminiModel
	}
	if pro == "" {
		pro = DefaultGeminiProModel
	}
	return flash, pro
}

func (g *Gemini) Name() string { return "gemini" }

func (g *Gemini) Available() bool { return g != nil && g.hasModel }

// Generate sends the request to the flash model, or to the pro model for
// complex requests.
func (g *Gemini) Generate(ctx context.Context, req Request) (string, error) {
	if !g.Available() {
		return "", ErrUnavailable
	}
	model := g.flash
	if req.Complexity == ComplexityComplex {
		model = g.pro
	}
	s := samplingFor(req)

	text, err := llms.GenerateFromSinglePrompt(ctx, g.model, fullPrompt(req),
		llms.WithModel(model),
		llms.WithMaxTokens(s.maxTokens),
		llms.WithTemperature(s.temperature),
		llms.WithTopP(s.topP),
	)
	if err != nil {
		return "", fmt.Errorf("gemini %s: %w", model, err)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", ErrEmptyResponse
	}
	return text, nil
}
