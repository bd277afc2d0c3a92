package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ShayCichocki/waver/internal/tui"
)

// chatEventBuffer sizes the orchestrator event stream feeding the activity panel.
const chatEventBuffer = 256

func newChatCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "chat",
		Short: "Interactive chat with live plan activity",
		Long: `Open the interactive chat.

Questions may start with !simple, !agentic or !adaptive to switch the
processing mode; a bare prefix only switches. Logs are discarded unless
log.file is set.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runChat(cmd, opts)
		},
	}
}

func runChat(cmd *cobra.Command, opts *rootOptions) error {
	ctx := cmd.Context()
	a, err := opts.setup(ctx, appOptions{events: chatEventBuffer, quiet: true})
	if err != nil {
		return err
	}
	defer a.Close()
	a.watchConfig(opts.configPath)

	program, _ := tui.NewChatProgram(ctx, a.assistant, a.orchestrator.Events())
	if _, err := program.Run(); err != nil {
		return fmt.Errorf("run chat: %w", err)
	}
	return nil
}
