package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/bedrock"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/aws/aws-sdk-go-v2/config"
)

// AnthropicConfig configures the Anthropic provider.
type AnthropicConfig struct {
	APIKey string
	// Model is the Claude model; empty selects Claude Sonnet 4.
	Model string
	// UseBedrock routes requests through AWS Bedrock using the default
	// credential chain instead of an API key.
	UseBedrock bool
	AWSRegion  string
	AWSProfile string
	// BaseURL overrides the API endpoint.
	BaseURL string
}

// Anthropic generates text with Claude.
type Anthropic struct {
	client anthropic.Client
	model  anthropic.Model
}

// NewAnthropic creates a Claude generator. Without Bedrock an API key is required.
func NewAnthropic(ctx context.Context, cfg AnthropicConfig) (*Anthropic, error) {
	var opts []option.RequestOption

	if cfg.UseBedrock {
		var loadOpts []func(*config.LoadOptions) error
		if cfg.AWSRegion != "" {
			loadOpts = append(loadOpts, config.WithRegion(cfg.AWSRegion))
		}
		if cfg.AWSProfile != "" {
			loadOpts = append(loadOpts, config.WithSharedConfigProfile(cfg.AWSProfile))
		}
		opts = append(opts, bedrock.WithLoadDefaultConfig(ctx, loadOpts...))
	} else {
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("anthropic: %w", ErrUnavailable)
		}
		opts = append(opts, option.WithAPIKey(cfg.APIKey))
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	model := anthropic.Model(cfg.Model)
	if model == "" {
		model = anthropic.ModelClaudeSonnet4_20250514
	}
	if cfg.UseBedrock {
		model = bedrockModel(model)
	}

	return &Anthropic{
		client: anthropic.NewClient(opts...),
		model:  model,
	}, nil
}

// bedrockModel maps Anthropic model names to Bedrock cross-region inference profiles.
func bedrockModel(model anthropic.Model) anthropic.Model {
	profiles := map[anthropic.Model]string{
		anthropic.ModelClaudeSonnet4_20250514:   "us.anthropic.claude-sonnet-4-20250514-v1:0",
		anthropic.ModelClaudeSonnet4_5_20250929: "us.anthropic.claude-sonnet-4-5-20250929-v1:0",
		anthropic.ModelClaudeHaiku4_5_20251001:  "us.anthropic.claude-haiku-4-5-20251001-v1:0",
		anthropic.ModelClaude3_5Haiku20241022:   "us.anthropic.claude-3-5-haiku-20241022-v1:0",
	}
	if p, ok := profiles[model]; ok {
		return anthropic.Model(p)
	}
	return model
}

func (a *Anthropic) Name() string { return "anthropic" }

func (a *Anthropic) Available() bool { return a != nil }

// Model returns the model requests are sent to.
func (a *Anthropic) Model() anthropic.Model { return a.model }

// Generate sends a single user message; non-raw requests carry the
// customer service system prompt.
func (a *Anthropic) Generate(ctx context.Context, req Request) (string, error) {
	s := samplingFor(req)
	params := anthropic.MessageNewParams{
		Model:       a.model,
		MaxTokens:   int64(s.maxTokens),
		Temperature: anthropic.Float(s.temperature),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(userTurn(req))),
		},
	}
	if !req.Raw {
		params.System = []anthropic.TextBlockParam{{Text: SystemPrompt}}
	}

	resp, err := a.client.Messages.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("anthropic %s: %w", a.model, err)
	}

	var b strings.Builder
	for _, block := range resp.Content {
		if text, ok := block.AsAny().(anthropic.TextBlock); ok {
			b.WriteString(text.Text)
		}
	}
	out := strings.TrimSpace(b.String())
	if out == "" {
		return "", ErrEmptyResponse
	}
	return out, nil
}

func userTurn(req Request) string {
	if req.Raw {
		return req.Prompt
	}
	return BuildPrompt(req.Prompt, req.Context)
}
