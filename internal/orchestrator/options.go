package orchestrator

import (
	"log/slog"
	"time"

	"github.com/ShayCichocki/waver/internal/metrics"
	"github.com/ShayCichocki/waver/internal/orchestrator/policy"
)

// Option configures an Orchestrator. Use With* functions to create Options.
type Option func(*orchestratorOptions)

// orchestratorOptions holds all optional configuration.
// They are only used during construction.
type orchestratorOptions struct {
	policyConfig *policy.Config
	logger       *slog.Logger
	metrics      *metrics.Metrics
	history      HistoryStore
	now          func() time.Time

	// policy overrides applied on top of policyConfig
	maxConcurrent *int
	maxRetries    *int
	failureMode   *policy.FailureMode
	taskTimeout   *time.Duration
	retryBackoff  *time.Duration
	eventBuffer   *int
}

// WithPolicy sets the full policy configuration.
func WithPolicy(p *policy.Config) Option {
	return func(o *orchestratorOptions) { o.policyConfig = p }
}

// WithMaxConcurrentTasks sets the per-plan ceiling on in-flight tool calls.
func WithMaxConcurrentTasks(n int) Option {
	return func(o *orchestratorOptions) { o.maxConcurrent = &n }
}

// WithMaxRetries sets how many times a failed task is requeued.
func WithMaxRetries(n int) Option {
	return func(o *orchestratorOptions) { o.maxRetries = &n }
}

// WithFailurePolicy sets what happens to dependents of an exhausted task.
func WithFailurePolicy(m policy.FailureMode) Option {
	return func(o *orchestratorOptions) { o.failureMode = &m }
}

// WithTaskTimeout bounds each tool invocation.
func WithTaskTimeout(d time.Duration) Option {
	return func(o *orchestratorOptions) { o.taskTimeout = &d }
}

// WithRetryBackoff sets the linear delay applied before each retry.
func WithRetryBackoff(d time.Duration) Option {
	return func(o *orchestratorOptions) { o.retryBackoff = &d }
}

// WithEvents enables the event stream with the given buffer size.
func WithEvents(bufferSize int) Option {
	return func(o *orchestratorOptions) { o.eventBuffer = &bufferSize }
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *orchestratorOptions) { o.logger = l }
}

// WithMetrics sets the Prometheus collectors.
func WithMetrics(m *metrics.Metrics) Option {
	return func(o *orchestratorOptions) { o.metrics = m }
}

// WithHistory sets the store finished plans are recorded in.
// The default is an in-memory ring sized by the history policy.
func WithHistory(h HistoryStore) Option {
	return func(o *orchestratorOptions) { o.history = h }
}

// withClock replaces time.Now (for testing).
func withClock(now func() time.Time) Option {
	return func(o *orchestratorOptions) { o.now = now }
}

// resolvePolicy applies the individual overrides to a copy of the policy.
func (o *orchestratorOptions) resolvePolicy() (policy.Config, error) {
	cfg := *policy.Default()
	if o.policyConfig != nil {
		cfg = *o.policyConfig
	}
	if o.maxConcurrent != nil {
		cfg.Scheduling.MaxConcurrentTasks = *o.maxConcurrent
	}
	if o.maxRetries != nil {
		cfg.Failure.MaxRetries = *o.maxRetries
	}
	if o.failureMode != nil {
		cfg.Failure.Mode = *o.failureMode
	}
	if o.taskTimeout != nil {
		cfg.Loop.TaskTimeout = *o.taskTimeout
	}
	if o.retryBackoff != nil {
		cfg.Loop.RetryBackoff = *o.retryBackoff
	}
	if o.eventBuffer != nil {
		cfg.Events.BufferSize = *o.eventBuffer
	}
	err := cfg.Validate()
	return cfg, err
}
