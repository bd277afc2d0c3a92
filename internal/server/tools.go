package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/ShayCichocki/waver/internal/assistant"
	"github.com/ShayCichocki/waver/internal/tools"
)

// RegistryTool exposes one registry tool over MCP.
type RegistryTool struct {
	registry *tools.Registry
	tool     tools.Tool
}

// NewRegistryTool creates a RegistryTool for tool, executed through registry.
func NewRegistryTool(registry *tools.Registry, tool tools.Tool) *RegistryTool {
	return &RegistryTool{registry: registry, tool: tool}
}

// Definition returns the MCP tool definition with the tool's own JSON schema.
func (t *RegistryTool) Definition() mcp.Tool {
	schema, err := json.Marshal(t.tool.Schema())
	if err != nil {
		schema = []byte(`{"type":"object"}`)
	}
	return mcp.NewToolWithRawSchema(t.tool.Name(), t.tool.Description(), schema)
}

// Handle executes the tool with the call arguments as parameters.
func (t *RegistryTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	params := req.GetArguments()
	if params == nil {
		params = map[string]any{}
	}
	res, err := t.registry.Execute(ctx, t.tool.Name(), params)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(res.Output)
}

// AskTool handles the waver_ask MCP tool.
type AskTool struct {
	assistant *assistant.Assistant
}

// NewAskTool creates an AskTool answering through a.
func NewAskTool(a *assistant.Assistant) *AskTool {
	return &AskTool{assistant: a}
}

// Definition returns the MCP tool definition for waver_ask.
func (t *AskTool) Definition() mcp.Tool {
	return mcp.NewTool("waver_ask",
		mcp.WithDescription(
			"Ask the shop assistant a question about orders, products, customers or company policies. "+
				"Complex questions are decomposed into sub-tasks and executed against the store.",
		),
		mcp.WithString("message",
			mcp.Required(),
			mcp.Description("The customer's question, in Spanish or English"),
		),
		mcp.WithString("session_id",
			mcp.Description("Conversation id; questions with the same id share context. Defaults to the server's session"),
		),
		mcp.WithBoolean("include_metadata",
			mcp.Description("Return the full response with plan metadata as JSON"),
		),
	)
}

// Handle answers the message.
func (t *AskTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	message := req.GetString("message", "")
	resp, err := t.assistant.ProcessSession(ctx, req.GetString("session_id", ""), message)
	if errors.Is(err, assistant.ErrEmptyMessage) {
		return mcp.NewToolResultError("message is required"), nil
	}
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to process message: %v", err)), nil
	}
	if include, _ := req.GetArguments()["include_metadata"].(bool); include {
		return jsonResult(resp)
	}
	return mcp.NewToolResultText(resp.Response), nil
}

// MetricsTool handles the waver_metrics MCP tool.
type MetricsTool struct {
	assistant *assistant.Assistant
}

// NewMetricsTool creates a MetricsTool reporting for a.
func NewMetricsTool(a *assistant.Assistant) *MetricsTool {
	return &MetricsTool{assistant: a}
}

// Definition returns the MCP tool definition for waver_metrics.
func (t *MetricsTool) Definition() mcp.Tool {
	return mcp.NewTool("waver_metrics",
		mcp.WithDescription("Show plan execution counters and tool usage statistics."),
	)
}

// Handle returns the metrics as JSON.
func (t *MetricsTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return jsonResult(t.assistant.Metrics())
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to encode result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}
