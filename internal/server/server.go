// Package server exposes the assistant and the tool registry as an MCP
// server over stdio.
package server

import (
	"github.com/mark3labs/mcp-go/server"

	"github.com/ShayCichocki/waver/internal/assistant"
	"github.com/ShayCichocki/waver/internal/tools"
	"github.com/ShayCichocki/waver/internal/version"
)

const instructions = `Waver answers questions about an e-commerce shop (orders, products, customers, policies).
Use waver_ask for natural language questions; it plans and executes the needed lookups.
The database_query, calculation and text_processing tools can also be called directly.
waver_metrics reports execution statistics.`

// Tools returns every MCP tool served: one per registry tool, then
// waver_ask and waver_metrics.
func Tools(a *assistant.Assistant, registry *tools.Registry) []server.ServerTool {
	var out []server.ServerTool
	for _, tool := range registry.Tools() {
		rt := NewRegistryTool(registry, tool)
		out = append(out, server.ServerTool{Tool: rt.Definition(), Handler: rt.Handle})
	}
	ask := NewAskTool(a)
	out = append(out, server.ServerTool{Tool: ask.Definition(), Handler: ask.Handle})
	metrics := NewMetricsTool(a)
	out = append(out, server.ServerTool{Tool: metrics.Definition(), Handler: metrics.Handle})
	return out
}

// New creates the MCP server with every tool registered.
func New(a *assistant.Assistant, registry *tools.Registry) *server.MCPServer {
	s := server.NewMCPServer(
		"waver",
		version.Get(),
		server.WithToolCapabilities(true),
		server.WithRecovery(),
		server.WithInstructions(instructions),
	)
	s.AddTools(Tools(a, registry)...)
	return s
}

// ServeStdio runs s on stdin and stdout until the client disconnects.
func ServeStdio(s *server.MCPServer) error {
	return server.ServeStdio(s)
}
