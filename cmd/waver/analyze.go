package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ShayCichocki/waver/internal/decompose"
	"github.com/ShayCichocki/waver/internal/orchestrator"
	"github.com/ShayCichocki/waver/pkg/models"
)

func newAnalyzeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "analyze <query>",
		Short: "Classify a query and show its complexity score",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.setup(cmd.Context(), appOptions{noStore: true})
			if err != nil {
				return err
			}
			defer a.Close()

			analysis := a.decomposer.Analyzer().Analyze(strings.Join(args, " "))
			return render(cmd.OutOrStdout(), opts.output, analysis, func(w io.Writer) error {
				printAnalysis(w, analysis)
				return nil
			})
		},
	}
}

func printAnalysis(w io.Writer, analysis *decompose.Analysis) {
	heading(w, "Analysis")
	field(w, "query type", analysis.QueryType)
	field(w, "complexity", fmt.Sprintf("%.2f (raw %.2f)", analysis.Score, analysis.RawScore))
	field(w, "words", analysis.WordCount)
	field(w, "sentences", analysis.Sentences)
	for _, c := range decompose.Categories {
		if phrases := analysis.Matches[c]; len(phrases) > 0 {
			field(w, string(c), strings.Join(phrases, ", "))
		}
	}
}

// decomposeOutput is the structured output of decompose --execute.
type decomposeOutput struct {
	Decomposition *models.QueryDecomposition `json:"decomposition"`
	// Waves lists task ids by dependency depth.
	Waves         [][]string               `json:"waves"`
	Execution     *orchestrator.PlanResult `json:"execution,omitempty"`
}

func waves(d *models.QueryDecomposition) [][]string {
	var out [][]string
	for _, level := range decompose.Levels(d.SubTasks) {
		ids := make([]string, len(level))
		for i, t := range level {
			ids[i] = t.ID
		}
		out = append(out, ids)
	}
	return out
}

func newDecomposeCmd(opts *rootOptions) *cobra.Command {
	var execute bool

	cmd := &cobra.Command{
		Use:   "decompose <query>",
		Short: "Show the sub-task plan for a query",
		Long: `Decompose a query into sub-tasks with their tools, parameters and
dependencies. With --execute the plan is also run by the orchestrator.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.setup(cmd.Context(), appOptions{noStore: !execute})
			if err != nil {
				return err
			}
			defer a.Close()

			query := strings.Join(args, " ")
			d, err := a.decomposer.Decompose(cmd.Context(), query)
			if err != nil {
				return fmt.Errorf("decompose query: %w", err)
			}

			out := decomposeOutput{Decomposition: d, Waves: waves(d)}
			if execute {
				out.Execution = a.orchestrator.ExecuteQueryPlan(cmd.Context(), d, map[string]any{"user_message": query})
			}
			return render(cmd.OutOrStdout(), opts.output, out, func(w io.Writer) error {
				printDecomposition(w, d)
				fmt.Fprintln(w)
				for i, ids := range out.Waves {
					field(w, fmt.Sprintf("wave %d", i+1), strings.Join(ids, ", "))
				}
				if out.Execution != nil {
					fmt.Fprintln(w)
					printPlanResult(w, out.Execution)
				}
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&execute, "execute", false, "Execute the plan and show the synthesized result")
	return cmd
}

func printDecomposition(w io.Writer, d *models.QueryDecomposition) {
	heading(w, "Plan")
	field(w, "query type", d.QueryType)
	field(w, "complexity", fmt.Sprintf("%.2f", d.ComplexityScore))
	field(w, "strategy", d.Strategy)
	field(w, "response format", d.ExpectedResponseFormat)
	field(w, "estimated time", fmt.Sprintf("%.1fs", d.EstimatedExecutionTime))
	fmt.Fprintln(w)
	for _, t := range d.SubTasks {
		deps := ""
		if len(t.Dependencies) > 0 {
			deps = mutedColor.Sprintf(" after %s", strings.Join(t.Dependencies, ", "))
		}
		fmt.Fprintf(w, "  %s %s [%s] p%d%s\n", labelColor.Sprint(t.ID), t.Description, t.ToolName, t.Priority, deps)
		fmt.Fprintf(w, "      %s\n", mutedColor.Sprint(compactJSON(t.Parameters)))
	}
}

func printPlanResult(w io.Writer, r *orchestrator.PlanResult) {
	heading(w, "Execution")
	status := "completed"
	if !r.Success {
		status = "failed"
	}
	printStatus(w, "●", fmt.Sprintf("%s %s in %.3fs (%d tasks)", r.ExecutionID, status, r.ExecutionTime, r.TasksExecuted), statusColor(status))
	if r.Stalled {
		printStatus(w, "⚠", "plan stalled", statusColor("stalled"))
	}
	if r.Error != "" {
		field(w, "error", r.Error)
	}
	if r.Result != nil {
		field(w, "result", compactJSON(r.Result))
	}
}
