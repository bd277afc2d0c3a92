package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

// rootOptions are the persistent flags shared by every command.
type rootOptions struct {
	configPath string
	output     string
	logLevel   string
}

// newRootCmd builds the command tree.
func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	rootCmd := &cobra.Command{
		Use:   "waver",
		Short: "E-commerce assistant with query decomposition and tool orchestration",
		Long: `Waver answers customer questions about an online shop (orders, products,
customers and company policies).

Simple questions are answered directly. Comparative, analytical and
multi-entity questions are decomposed into sub-tasks that run in parallel
against the shop's tools and are synthesized into one answer.

With no arguments, launches the interactive chat.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !validFormat(opts.output) {
				return fmt.Errorf("invalid --output %q: want text, json or yaml", opts.output)
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runChat(cmd, opts)
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&opts.configPath, "config", "", "Config file (default ~/.config/waver/config.yaml plus .waver.yaml)")
	flags.StringVarP(&opts.output, "output", "o", formatText, "Output format: text, json or yaml")
	flags.StringVar(&opts.logLevel, "log-level", "", "Override log.level (debug, info, warn, error)")

	rootCmd.AddCommand(
		newAskCmd(opts),
		newAnalyzeCmd(opts),
		newDecomposeCmd(opts),
		newToolsCmd(opts),
		newChatCmd(opts),
		newServeCmd(opts),
		newHistoryCmd(opts),
		newStatusCmd(opts),
		newConfigCmd(opts),
		newVersionCmd(),
	)
	return rootCmd
}

// setup loads the config and wires the components for one command.
func (o *rootOptions) setup(ctx context.Context, appOpts appOptions) (*app, error) {
	cfg, err := loadConfig(o.configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	logger, level, logCloser, err := newLogger(cfg, o.logLevel, appOpts.quiet)
	if err != nil {
		return nil, fmt.Errorf("create logger: %w", err)
	}
	a, err := newApp(ctx, cfg, logger, level, appOpts)
	if err != nil {
		if logCloser != nil {
			_ = logCloser.Close()
		}
		return nil, err
	}
	if logCloser != nil {
		a.closers = append([]io.Closer{logCloser}, a.closers...)
	}
	return a, nil
}

// Execute runs the root command.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}
