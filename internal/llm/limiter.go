package llm

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/time/rate"

	"github.com/ShayCichocki/waver/internal/metrics"
)

// Limited wraps a Generator with a request rate limit and a per-call timeout.
type Limited struct {
	inner   Generator
	limiter *rate.Limiter
	timeout time.Duration
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// LimitedOption configures a Limited generator.
type LimitedOption func(*Limited)

// WithRate limits calls to rps per second with the given burst. A
// non-positive rps disables the limit.
func WithRate(rps float64, burst int) LimitedOption {
	return func(l *Limited) {
		if rps <= 0 {
			l.limiter = rate.NewLimiter(rate.Inf, 0)
			return
		}
		if burst < 1 {
			burst = 1
		}
		l.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// WithTimeout bounds each call; zero means no bound beyond the caller's context.
func WithTimeout(d time.Duration) LimitedOption {
	return func(l *Limited) { l.timeout = d }
}

// WithLogger sets the logger for call records.
func WithLogger(logger *slog.Logger) LimitedOption {
	return func(l *Limited) { l.logger = logger }
}

// WithMetrics records call outcomes and latency in m.
func WithMetrics(m *metrics.Metrics) LimitedOption {
	return func(l *Limited) { l.metrics = m }
}

// NewLimited wraps g.
func NewLimited(g Generator, opts ...LimitedOption) *Limited {
	l := &Limited{
		inner:   g,
		limiter: rate.NewLimiter(rate.Inf, 0),
		logger:  slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *Limited) Name() string { return l.inner.Name() }

func (l *Limited) Available() bool { return IsAvailable(l.inner) }

// Generate waits for the limiter, then calls the wrapped generator under
// the configured timeout.
func (l *Limited) Generate(ctx context.Context, req Request) (string, error) {
	if !l.Available() {
		return "", ErrUnavailable
	}
	if err := l.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("wait for llm rate limit: %w", err)
	}
	if l.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.timeout)
		defer cancel()
	}

	start := time.Now()
	text, err := l.inner.Generate(ctx, req)
	dur := time.Since(start)
	l.metrics.ObserveLLMCall(l.inner.Name(), err == nil, dur)
	if err != nil {
		l.logger.Warn("llm call failed", "provider", l.inner.Name(), "duration", dur, "error", err)
		return "", err
	}
	l.logger.Debug("llm call completed", "provider", l.inner.Name(), "duration", dur, "chars", len(text))
	return text, nil
}
