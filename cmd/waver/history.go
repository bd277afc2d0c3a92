package main

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/ShayCichocki/waver/internal/state"
	"github.com/ShayCichocki/waver/pkg/models"
)

func newHistoryCmd(opts *rootOptions) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List finished plans",
		Long: `List finished plans, newest first.

Plans outlive the process only with history.driver sqlite; the memory
driver keeps them for the lifetime of chat or serve.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.setup(cmd.Context(), appOptions{noStore: true})
			if err != nil {
				return err
			}
			defer a.Close()

			records, err := a.orchestrator.History(cmd.Context(), limit)
			if err != nil {
				return fmt.Errorf("list history: %w", err)
			}
			return render(cmd.OutOrStdout(), opts.output, records, func(w io.Writer) error {
				if len(records) == 0 {
					fmt.Fprintln(w, "No plans recorded.")
					return nil
				}
				for _, rec := range records {
					printPlanLine(w, rec)
				}
				return nil
			})
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum plans to list (0 for all)")
	cmd.AddCommand(newHistoryShowCmd(opts), newHistoryPurgeCmd(opts))
	return cmd
}

func printPlanLine(w io.Writer, rec *models.PlanRecord) {
	started := ""
	if rec.StartTime != nil {
		started = rec.StartTime.Local().Format(time.DateTime)
	}
	status := string(rec.Status)
	if rec.Stalled {
		status = "stalled"
	}
	printStatus(w, "●", fmt.Sprintf("%s %s %s %d/%d %s",
		labelColor.Sprint(rec.ExecutionID), started, rec.QueryType,
		rec.CompletedTasks, rec.TotalTasks, mutedColor.Sprint(rec.Query)), statusColor(status))
}

func newHistoryShowCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show <execution-id>",
		Short: "Show one finished plan with its tasks",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.setup(cmd.Context(), appOptions{noStore: true})
			if err != nil {
				return err
			}
			defer a.Close()

			rec, err := a.orchestrator.HistoryRecord(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("get plan: %w", err)
			}
			if rec == nil {
				return fmt.Errorf("plan %s not found", args[0])
			}
			return render(cmd.OutOrStdout(), opts.output, rec, func(w io.Writer) error {
				printPlanRecord(w, rec)
				return nil
			})
		},
	}
}

func printPlanRecord(w io.Writer, rec *models.PlanRecord) {
	heading(w, rec.ExecutionID)
	field(w, "query", rec.Query)
	field(w, "query type", rec.QueryType)
	field(w, "complexity", fmt.Sprintf("%.2f", rec.ComplexityScore))
	field(w, "status", rec.Status)
	field(w, "success", rec.Success)
	if rec.Stalled {
		field(w, "stalled", true)
	}
	if rec.Error != "" {
		field(w, "error", rec.Error)
	}
	if rec.StartTime != nil && rec.EndTime != nil {
		field(w, "duration", rec.EndTime.Sub(*rec.StartTime).Round(time.Millisecond))
	}
	fmt.Fprintln(w)
	for _, t := range rec.Tasks {
		line := fmt.Sprintf("%s %s [%s]", t.ID, t.Description, t.ToolName)
		if t.RetryCount > 0 {
			line += fmt.Sprintf(" retries=%d", t.RetryCount)
		}
		if t.Error != "" {
			line += " " + mutedColor.Sprint(t.Error)
		}
		printStatus(w, "●", line, statusColor(string(t.Status)))
	}
}

func newHistoryPurgeCmd(opts *rootOptions) *cobra.Command {
	var olderThan time.Duration

	cmd := &cobra.Command{
		Use:   "purge",
		Short: "Delete plans older than a duration (sqlite history only)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.setup(cmd.Context(), appOptions{noStore: true})
			if err != nil {
				return err
			}
			defer a.Close()

			h, ok := a.history.(*state.History)
			if !ok {
				return errors.New("purge requires history.driver sqlite")
			}
			n, err := h.PurgeOlderThan(cmd.Context(), olderThan)
			if err != nil {
				return fmt.Errorf("purge history: %w", err)
			}
			out := map[string]any{"purged": n, "older_than": olderThan.String()}
			return render(cmd.OutOrStdout(), opts.output, out, func(w io.Writer) error {
				fmt.Fprintf(w, "Purged %d plans older than %s\n", n, olderThan)
				return nil
			})
		},
	}

	cmd.Flags().DurationVar(&olderThan, "older-than", 30*24*time.Hour, "Delete plans that finished before now minus this duration")
	return cmd
}
