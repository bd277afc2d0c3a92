package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/ShayCichocki/waver/internal/assistant"
	"github.com/ShayCichocki/waver/internal/config"
	"github.com/ShayCichocki/waver/internal/decompose"
	"github.com/ShayCichocki/waver/internal/llm"
	wlog "github.com/ShayCichocki/waver/internal/log"
	"github.com/ShayCichocki/waver/internal/metrics"
	"github.com/ShayCichocki/waver/internal/orchestrator"
	"github.com/ShayCichocki/waver/internal/orchestrator/policy"
	"github.com/ShayCichocki/waver/internal/state"
	"github.com/ShayCichocki/waver/internal/store"
	"github.com/ShayCichocki/waver/internal/tools"
)

// app holds every wired component for one command invocation.
type app struct {
	cfg          *config.Config
	logger       *slog.Logger
	level        *slog.LevelVar
	registry     *prometheus.Registry
	metrics      *metrics.Metrics
	store        store.Store
	llm          llm.Generator
	decomposer   *decompose.Decomposer
	tools        *tools.Registry
	orchestrator *orchestrator.Orchestrator
	history      orchestrator.HistoryStore
	stateDB      *state.DB
	assistant    *assistant.Assistant

	closers []io.Closer
}

type appOptions struct {
	// events enables the orchestrator event stream with this buffer size.
	events int
	// noStore skips the shop data store (analyze, decompose).
	noStore bool
	// quiet discards logs unless log.file is set, for full-screen output.
	quiet bool
}

// loadConfig loads the config from --config or the layered default locations.
func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFromPath(path)
	}
	return config.Load()
}

// newLogger builds the CLI logger. Logs never go to stdout, which belongs
// to command output, the TUI and the MCP transport.
func newLogger(cfg *config.Config, levelOverride string, quiet bool) (*slog.Logger, *slog.LevelVar, io.Closer, error) {
	var out io.Writer = os.Stderr
	var closer io.Closer
	switch {
	case cfg.Log.File != "":
		f, err := wlog.OpenFile(cfg.Log.File)
		if err != nil {
			return nil, nil, nil, err
		}
		out, closer = f, f
	case quiet:
		out = io.Discard
	}

	level := cfg.Log.Level
	if levelOverride != "" {
		level = levelOverride
	}
	logger, lv, err := wlog.New(wlog.Config{Level: level, Format: cfg.Log.Format, Output: out})
	if err != nil {
		if closer != nil {
			_ = closer.Close()
		}
		return nil, nil, nil, err
	}
	return logger, lv, closer, nil
}

// newApp wires the components described by cfg.
func newApp(ctx context.Context, cfg *config.Config, logger *slog.Logger, level *slog.LevelVar, opts appOptions) (_ *app, err error) {
	a := &app{cfg: cfg, logger: logger, level: level}
	defer func() {
		if err != nil {
			a.Close()
		}
	}()

	a.registry, a.metrics = metrics.NewRegistry()

	if !opts.noStore {
		if a.store, err = openStore(ctx, cfg.Database, logger); err != nil {
			return nil, err
		}
		a.closers = append(a.closers, a.store)
	}

	a.llm = newGenerator(ctx, cfg, logger, a.metrics)

	analyzerOpts := []decompose.AnalyzerOption{decompose.WithWholeWords(cfg.Analyzer.WholeWords)}
	if len(cfg.Analyzer.ExtraKeywords) > 0 {
		extra, unknown := decompose.ParseKeywords(cfg.Analyzer.ExtraKeywords)
		if len(unknown) > 0 {
			logger.Warn("ignoring unknown keyword categories", "categories", strings.Join(unknown, ","))
		}
		analyzerOpts = append(analyzerOpts, decompose.WithExtraKeywords(extra))
	}

	var ds tools.DataSource = a.store
	if a.store == nil {
		ds = store.NewMemory()
	}
	a.tools = tools.NewDefaultRegistry(ds,
		tools.WithRegistryLogger(logger),
		tools.WithRegistryMetrics(a.metrics),
	)

	a.decomposer = decompose.New(
		decompose.WithAnalyzer(decompose.NewAnalyzer(analyzerOpts...)),
		decompose.WithLLM(a.llm, cfg.Decomposer.LLMEnabled),
		decompose.WithLLMTimeout(cfg.Decomposer.LLMTimeout),
		decompose.WithToolNames(a.tools.Names()),
		decompose.WithLogger(logger),
		decompose.WithMetrics(a.metrics),
	)

	if a.history, err = a.openHistory(); err != nil {
		return nil, err
	}

	orchOpts := []orchestrator.Option{
		orchestrator.WithMaxConcurrentTasks(cfg.Orchestrator.MaxConcurrentTasks),
		orchestrator.WithMaxRetries(cfg.Orchestrator.MaxRetries),
		orchestrator.WithRetryBackoff(cfg.Orchestrator.RetryBackoff),
		orchestrator.WithTaskTimeout(cfg.Orchestrator.TaskTimeout),
		orchestrator.WithFailurePolicy(policy.FailureMode(cfg.Orchestrator.FailurePolicy)),
		orchestrator.WithHistory(a.history),
		orchestrator.WithLogger(logger),
		orchestrator.WithMetrics(a.metrics),
	}
	if opts.events > 0 {
		orchOpts = append(orchOpts, orchestrator.WithEvents(opts.events))
	}
	if a.orchestrator, err = orchestrator.New(a.tools, orchOpts...); err != nil {
		return nil, fmt.Errorf("create orchestrator: %w", err)
	}

	asstOpts := []assistant.Option{
		assistant.WithLLM(a.llm),
		assistant.WithMode(assistant.Mode(cfg.Assistant.Mode)),
		assistant.WithEnhance(cfg.Assistant.EnhanceResponses),
		assistant.WithLogger(logger),
	}
	if a.store != nil {
		asstOpts = append(asstOpts, assistant.WithStore(a.store))
	}
	a.assistant = assistant.New(a.decomposer, a.orchestrator, a.tools, asstOpts...)
	return a, nil
}

func openStore(ctx context.Context, cfg config.DatabaseConfig, logger *slog.Logger) (store.Store, error) {
	switch cfg.Driver {
	case "postgres":
		pg, err := store.OpenPostgres(ctx, store.PostgresConfig{
			URL:                cfg.URL,
			PingTimeout:        cfg.PingTimeout,
			MaxOpenConns:       cfg.MaxOpenConns,
			MaxIdleConns:       cfg.MaxIdleConns,
			ConnMaxLifetime:    cfg.ConnMaxLifetime,
			ProductNameColumns: cfg.ProductNameColumns,
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("open postgres store: %w", err)
		}
		return pg, nil
	default:
		return store.NewMemory(), nil
	}
}

// newGenerator returns the configured provider, rate limited. A provider
// that cannot be created degrades to llm.Unavailable with a warning.
func newGenerator(ctx context.Context, cfg *config.Config, logger *slog.Logger, m *metrics.Metrics) llm.Generator {
	var (
		g   llm.Generator
		err error
	)
	switch cfg.LLM.Provider {
	case "gemini":
		var key string
		if key, err = config.GetGeminiAPIKey(cfg); err == nil {
			g, err = llm.NewGemini(ctx, llm.GeminiConfig{
				APIKey:   key,
				Model:    cfg.Gemini.Model,
				ProModel: cfg.Gemini.ProModel,
			})
		}
	case "anthropic":
		var key string
		if !cfg.Anthropic.UseBedrock {
			key, err = config.GetAnthropicAPIKey(cfg)
		}
		if err == nil {
			g, err = llm.NewAnthropic(ctx, llm.AnthropicConfig{
				APIKey:     key,
				Model:      cfg.Anthropic.Model,
				UseBedrock: cfg.Anthropic.UseBedrock,
				AWSRegion:  cfg.Anthropic.AWSRegion,
				AWSProfile: cfg.Anthropic.AWSProfile,
			})
		}
	default:
		return llm.Unavailable{}
	}
	if err != nil {
		level := slog.LevelWarn
		if errors.Is(err, config.ErrNoAPIKey) {
			level = slog.LevelInfo
		}
		logger.Log(ctx, level, "language model unavailable", "provider", cfg.LLM.Provider, "error", err)
		return llm.Unavailable{}
	}

	return llm.NewLimited(g,
		llm.WithRate(cfg.LLM.RequestsPerSecond, cfg.LLM.Burst),
		llm.WithTimeout(cfg.LLM.Timeout),
		llm.WithLogger(logger),
		llm.WithMetrics(m),
	)
}

func (a *app) openHistory() (orchestrator.HistoryStore, error) {
	if a.cfg.History.Driver != "sqlite" {
		return orchestrator.NewRingHistory(a.cfg.History.Size), nil
	}
	db, err := openStateDB(a.cfg.History.Path)
	if err != nil {
		return nil, err
	}
	a.stateDB = db
	a.closers = append(a.closers, db)
	return state.NewHistory(db, a.cfg.History.Size), nil
}

// openStateDB opens and migrates the SQLite history database.
func openStateDB(path string) (*state.DB, error) {
	if path == "" {
		path = state.DefaultPath()
	}
	db, err := state.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open history database: %w", err)
	}
	if err := db.Migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate history database: %w", err)
	}
	return db, nil
}

// watchConfig reloads the config file on change and applies the new log
// level. Only an explicit --config file is watched.
func (a *app) watchConfig(path string) {
	if path == "" {
		return
	}
	_, err := config.Watch(path, func(cfg *config.Config, err error) {
		if err != nil {
			a.logger.Warn("config reload failed", "path", path, "error", err)
			return
		}
		level, err := wlog.ParseLevel(cfg.Log.Level)
		if err != nil {
			a.logger.Warn("config reload: invalid log level", "level", cfg.Log.Level)
			return
		}
		a.level.Set(level)
		a.logger.Info("config reloaded", "path", path, "log_level", level.String())
	})
	if err != nil {
		a.logger.Warn("config watch disabled", "path", path, "error", err)
	}
}

// Close releases every opened resource.
func (a *app) Close() {
	if a.orchestrator != nil {
		a.orchestrator.Close()
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			a.logger.Warn("close failed", "error", err)
		}
	}
	a.closers = nil
}
