package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/ShayCichocki/waver/internal/config"
	"github.com/ShayCichocki/waver/internal/version"
	"github.com/ShayCichocki/waver/pkg/models"
)

// statusReport is the structured output of status without arguments.
type statusReport struct {
	Version       string   `json:"version"`
	UserConfig    string   `json:"user_config"`
	ProjectConfig string   `json:"project_config,omitempty"`
	Database      string   `json:"database"`
	LLMProvider   string   `json:"llm_provider"`
	LLMAvailable  bool     `json:"llm_available"`
	APIKeySource  string   `json:"api_key_source"`
	Mode          string   `json:"processing_mode"`
	History       string   `json:"history"`
	Plans         int      `json:"plans_recorded"`
	Tools         []string `json:"tools"`
}

func newStatusCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "status [execution-id]",
		Short: "Show the configured components, or the status of one plan",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.setup(cmd.Context(), appOptions{noStore: true})
			if err != nil {
				return err
			}
			defer a.Close()

			if len(args) == 1 {
				summary, err := a.orchestrator.ExecutionStatus(cmd.Context(), args[0])
				if err != nil {
					return fmt.Errorf("get execution status: %w", err)
				}
				if summary == nil {
					return fmt.Errorf("plan %s not found", args[0])
				}
				return render(cmd.OutOrStdout(), opts.output, summary, func(w io.Writer) error {
					printSummary(w, summary)
					return nil
				})
			}

			records, err := a.orchestrator.History(cmd.Context(), 0)
			if err != nil {
				return fmt.Errorf("list history: %w", err)
			}
			cfg := a.cfg
			report := statusReport{
				Version:       version.Get(),
				UserConfig:    config.GetUserConfigPath(),
				ProjectConfig: config.GetProjectConfigPath(),
				Database:      cfg.Database.Driver,
				LLMProvider:   cfg.LLM.Provider,
				LLMAvailable:  a.llm.Available(),
				APIKeySource:  string(config.GetAPIKeySource(cfg, cfg.LLM.Provider)),
				Mode:          string(a.assistant.Mode()),
				History:       cfg.History.Driver,
				Plans:         len(records),
				Tools:         a.tools.Names(),
			}
			return render(cmd.OutOrStdout(), opts.output, report, func(w io.Writer) error {
				printStatusReport(w, report)
				return nil
			})
		},
	}
}

func printSummary(w io.Writer, s *models.ExecutionSummary) {
	heading(w, s.ExecutionID)
	printStatus(w, "●", string(s.Status), statusColor(string(s.Status)))
	field(w, "tasks", s.TotalTasks)
	field(w, "completed", s.CompletedTasks)
	field(w, "failed", s.FailedTasks)
	field(w, "skipped", s.SkippedTasks)
	if s.StartTime != nil && s.EndTime != nil {
		field(w, "duration", s.EndTime.Sub(*s.StartTime))
	}
}

func printStatusReport(w io.Writer, r statusReport) {
	heading(w, "waver "+r.Version)
	field(w, "user config", r.UserConfig)
	if r.ProjectConfig != "" {
		field(w, "project config", r.ProjectConfig)
	}
	field(w, "database", r.Database)
	llmStatus := "unavailable"
	if r.LLMAvailable {
		llmStatus = "available"
	}
	field(w, "llm", fmt.Sprintf("%s (%s, key from %s)", r.LLMProvider, llmStatus, r.APIKeySource))
	field(w, "mode", r.Mode)
	field(w, "history", fmt.Sprintf("%s (%d plans)", r.History, r.Plans))
	field(w, "tools", fmt.Sprint(r.Tools))
}
