package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/ShayCichocki/waver/internal/config"
)

func newConfigCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show the effective configuration",
		Long: `Show the effective configuration with API keys masked.

Configuration is read from ~/.config/waver/config.yaml, merged with a
project .waver.yaml (searched upward from the working directory) and
overridden by GEMINI_API_KEY, ANTHROPIC_API_KEY, WAVER_DATABASE_URL and
WAVER_* environment variables.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(opts.configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			masked := maskedConfig(cfg)
			return render(cmd.OutOrStdout(), opts.output, masked, func(w io.Writer) error {
				printConfig(w, masked)
				return nil
			})
		},
	}
	cmd.AddCommand(newConfigPathCmd(opts), newConfigInitCmd())
	return cmd
}

// maskedConfig returns a copy of cfg safe to print.
func maskedConfig(cfg *config.Config) *config.Config {
	c := *cfg
	c.Gemini.APIKey = config.MaskAPIKey(cfg.Gemini.APIKey)
	c.Anthropic.APIKey = config.MaskAPIKey(cfg.Anthropic.APIKey)
	if cfg.Database.URL != "" {
		c.Database.URL = "****"
	}
	return &c
}

func printConfig(w io.Writer, c *config.Config) {
	heading(w, "database")
	field(w, "driver", c.Database.Driver)
	field(w, "url", c.Database.URL)
	field(w, "ping_timeout", c.Database.PingTimeout)
	field(w, "max_open_conns", c.Database.MaxOpenConns)
	heading(w, "llm")
	field(w, "provider", c.LLM.Provider)
	field(w, "timeout", c.LLM.Timeout)
	field(w, "requests/second", c.LLM.RequestsPerSecond)
	field(w, "burst", c.LLM.Burst)
	heading(w, "gemini")
	field(w, "api_key", c.Gemini.APIKey)
	field(w, "model", c.Gemini.Model)
	field(w, "pro_model", c.Gemini.ProModel)
	heading(w, "anthropic")
	field(w, "api_key", c.Anthropic.APIKey)
	field(w, "model", c.Anthropic.Model)
	field(w, "use_bedrock", c.Anthropic.UseBedrock)
	heading(w, "orchestrator")
	field(w, "max_concurrent", c.Orchestrator.MaxConcurrentTasks)
	field(w, "max_retries", c.Orchestrator.MaxRetries)
	field(w, "retry_backoff", c.Orchestrator.RetryBackoff)
	field(w, "task_timeout", c.Orchestrator.TaskTimeout)
	field(w, "failure_policy", c.Orchestrator.FailurePolicy)
	heading(w, "decomposer")
	field(w, "llm_enabled", c.Decomposer.LLMEnabled)
	field(w, "llm_timeout", c.Decomposer.LLMTimeout)
	heading(w, "history")
	field(w, "driver", c.History.Driver)
	field(w, "size", c.History.Size)
	heading(w, "assistant")
	field(w, "mode", c.Assistant.Mode)
	field(w, "enhance", c.Assistant.EnhanceResponses)
	heading(w, "log")
	field(w, "level", c.Log.Level)
	field(w, "format", c.Log.Format)
	if c.Metrics.Addr != "" {
		heading(w, "metrics")
		field(w, "addr", c.Metrics.Addr)
	}
}

func newConfigPathCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print the config file locations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			w := cmd.OutOrStdout()
			if opts.configPath != "" {
				fmt.Fprintln(w, opts.configPath)
				return nil
			}
			fmt.Fprintln(w, config.GetUserConfigPath())
			if p := config.GetProjectConfigPath(); p != "" {
				fmt.Fprintln(w, p)
			}
			return nil
		},
	}
}

func newConfigInitCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init [path]",
		Short: "Write the default configuration",
		Long:  "Write the default configuration to path, or to the user config file.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := config.GetUserConfigPath()
			if len(args) == 1 {
				path = args[0]
			}
			if !force && fileExists(path) {
				return fmt.Errorf("%s already exists (use --force to overwrite)", path)
			}

			var err error
			if len(args) == 1 {
				err = config.SaveTo(config.Default(), path)
			} else {
				err = config.Save(config.Default())
			}
			if err != nil {
				return fmt.Errorf("write config: %w", err)
			}
			printStatus(cmd.OutOrStdout(), "✓", "Wrote "+path, statusColor("ok"))
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing file")
	return cmd
}
