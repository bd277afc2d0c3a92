package tools

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ShayCichocki/waver/internal/metrics"
)

type entry struct {
	tool       Tool
	usage      atomic.Int64
	executions atomic.Int64
	lastUsed   atomic.Pointer[time.Time]
}

// Registry maps tool names to tools and tracks per-tool usage.
// It is safe for concurrent use by multiple plans.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]*entry
	order   []string

	logger  *slog.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithRegistryLogger sets the logger used for execution records.
func WithRegistryLogger(l *slog.Logger) RegistryOption {
	return func(r *Registry) { r.logger = l }
}

// WithRegistryMetrics records tool calls in m.
func WithRegistryMetrics(m *metrics.Metrics) RegistryOption {
	return func(r *Registry) { r.metrics = m }
}

// NewRegistry creates an empty registry.
func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{
		entries: make(map[string]*entry),
		logger:  slog.New(slog.DiscardHandler),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register adds tool under its name, replacing any previous tool with that
// name. Usage and execution counters start at zero.
func (r *Registry) Register(tool Tool) {
	name := tool.Name()
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.entries[name]; !exists {
		r.order = append(r.order, name)
	}
	r.entries[name] = &entry{tool: tool}
	r.logger.Debug("registered tool", "tool", name)
}

// Get returns the tool registered under name.
func (r *Registry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[name]
	if !ok {
		return nil, false
	}
	return e.tool, true
}

// Names returns the registered tool names in registration order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.order...)
}

// Tools returns the registered tools in registration order.
func (r *Registry) Tools() []Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Tool, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.entries[name].tool)
	}
	return out
}

// Infos describes every registered tool, in registration order.
func (r *Registry) Infos() []Info {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Info, 0, len(r.order))
	for _, name := range r.order {
		e := r.entries[name]
		info := Info{
			Name:           name,
			Description:    e.tool.Description(),
			Parameters:     e.tool.Schema(),
			ExecutionCount: e.executions.Load(),
		}
		if t := e.lastUsed.Load(); t != nil {
			last := *t
			info.LastUsed = &last
		}
		out = append(out, info)
	}
	return out
}

// UsageStats returns the number of Execute calls per tool name.
func (r *Registry) UsageStats() map[string]int64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]int64, len(r.entries))
	for name, e := range r.entries {
		out[name] = e.usage.Load()
	}
	return out
}

// Execute runs the named tool. Unknown names fail with a not_found *ToolError
// before any counter is touched; tool failures (including panics) come back
// as an execution *ToolError.
func (r *Registry) Execute(ctx context.Context, name string, params map[string]any) (*Result, error) {
	r.mu.RLock()
	e, ok := r.entries[name]
	r.mu.RUnlock()
	if !ok {
		r.metrics.ObserveToolCall(name, "not_found", 0)
		return nil, notFound(name)
	}

	e.usage.Add(1)
	e.executions.Add(1)
	start := r.now()
	e.lastUsed.Store(&start)

	r.logger.Debug("executing tool", "tool", name)
	output, err := safeExecute(ctx, e.tool, params)
	dur := r.now().Sub(start)
	if err != nil {
		r.logger.Warn("tool execution failed", "tool", name, "error", err)
		r.metrics.ObserveToolCall(name, "error", dur)
		return nil, executionError(name, err)
	}
	r.metrics.ObserveToolCall(name, "ok", dur)

	return &Result{
		ToolName:   name,
		Output:     output,
		ExecutedAt: r.now(),
		Duration:   dur,
	}, nil
}

func safeExecute(ctx context.Context, tool Tool, params map[string]any) (output map[string]any, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			output = nil
			err = fmt.Errorf("tool %s panicked: %v", tool.Name(), rec)
		}
	}()
	if params == nil {
		params = map[string]any{}
	}
	output, err = tool.Execute(ctx, params)
	if err == nil && output == nil {
		output = map[string]any{}
	}
	return output, err
}

// NewDefaultRegistry creates a registry holding the database, calculation and
// text processing tools.
func NewDefaultRegistry(db DataSource, opts ...RegistryOption) *Registry {
	r := NewRegistry(opts...)
	r.Register(NewDatabaseQueryTool(db))
	r.Register(NewCalculationTool())
	r.Register(NewTextProcessingTool())
	return r
}
