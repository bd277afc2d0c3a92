package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ShayCichocki/waver/internal/assistant"
)

func newAskCmd(opts *rootOptions) *cobra.Command {
	var (
		mode     string
		metadata bool
	)

	cmd := &cobra.Command{
		Use:   "ask <message>",
		Short: "Answer one question",
		Long: `Answer one customer question and save the exchange.

The processing mode decides how the question is handled:
  simple    answer directly with the language model
  agentic   always decompose and execute a plan
  adaptive  decompose comparative, analytical and multi-entity questions`,
		Args: cobra.MinimumNArgs(1),
		Example: `  waver ask "¿Cuál es el estado del pedido ORD-1001?"
  waver ask --mode agentic "compara el producto A y el producto B"`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.setup(cmd.Context(), appOptions{})
			if err != nil {
				return err
			}
			defer a.Close()

			if mode != "" {
				if err := a.assistant.SetMode(assistant.Mode(mode)); err != nil {
					return err
				}
			}

			resp, err := a.assistant.Process(cmd.Context(), strings.Join(args, " "))
			if err != nil {
				return fmt.Errorf("process message: %w", err)
			}
			return render(cmd.OutOrStdout(), opts.output, resp, func(w io.Writer) error {
				fmt.Fprintln(w, resp.Response)
				if metadata {
					printResponseMetadata(w, resp)
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&mode, "mode", "", "Processing mode: simple, agentic or adaptive (default from config)")
	cmd.Flags().BoolVar(&metadata, "metadata", false, "Show classification and plan details in text output")
	return cmd
}

func printResponseMetadata(w io.Writer, resp *assistant.Response) {
	fmt.Fprintln(w)
	heading(w, "Details")
	field(w, "processing mode", resp.ProcessingMode)
	field(w, "query type", resp.QueryType)
	field(w, "complexity", fmt.Sprintf("%.2f", resp.ComplexityScore))
	field(w, "session", resp.SessionID)
	field(w, "sentiment", resp.Sentiment)
	if sc := resp.Session; sc != nil {
		field(w, "conversation", sc.Summary)
		if sc.ShouldEscalate {
			printStatus(w, "⚠", "customer should be handed to a human agent", color.FgYellow)
		}
	}
	if m := resp.Agentic; m != nil {
		field(w, "execution", m.ExecutionID)
		field(w, "tasks executed", m.TasksExecuted)
		field(w, "execution time", fmt.Sprintf("%.3fs", m.ExecutionTime))
		if m.Stalled {
			printStatus(w, "⚠", "plan stalled before every task could run", color.FgYellow)
		}
	}
}
