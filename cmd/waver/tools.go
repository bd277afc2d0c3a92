package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/ShayCichocki/waver/internal/tools"
)

func newToolsCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tools",
		Short: "List the registered tools",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.setup(cmd.Context(), appOptions{noStore: true})
			if err != nil {
				return err
			}
			defer a.Close()

			infos := a.tools.Infos()
			return render(cmd.OutOrStdout(), opts.output, infos, func(w io.Writer) error {
				for _, info := range infos {
					printToolInfo(w, info)
				}
				return nil
			})
		},
	}
	cmd.AddCommand(newToolsRunCmd(opts))
	return cmd
}

func printToolInfo(w io.Writer, info tools.Info) {
	heading(w, info.Name)
	fmt.Fprintf(w, "  %s\n", info.Description)
	props, _ := info.Parameters["properties"].(map[string]any)
	for _, name := range sortedKeys(props) {
		prop, _ := props[name].(map[string]any)
		line := fmt.Sprint(prop["type"])
		if enum, ok := prop["enum"].([]any); ok {
			values := make([]string, len(enum))
			for i, v := range enum {
				values[i] = fmt.Sprint(v)
			}
			line += " (" + strings.Join(values, "|") + ")"
		}
		field(w, name, line)
	}
	fmt.Fprintln(w)
}

func newToolsRunCmd(opts *rootOptions) *cobra.Command {
	var params string

	cmd := &cobra.Command{
		Use:   "run <tool>",
		Short: "Execute one tool with JSON parameters",
		Args:  cobra.ExactArgs(1),
		Example: `  waver tools run calculation --params '{"operation":"basic_math","expression":"2 + 3 * 4"}'
  waver tools run database_query --params '{"query_type":"order_lookup","order_id":"ORD-1001"}'`,
		RunE: func(cmd *cobra.Command, args []string) error {
			var p map[string]any
			if err := json.Unmarshal([]byte(params), &p); err != nil {
				return fmt.Errorf("parse --params: %w", err)
			}

			a, err := opts.setup(cmd.Context(), appOptions{})
			if err != nil {
				return err
			}
			defer a.Close()

			res, err := a.tools.Execute(cmd.Context(), args[0], p)
			if err != nil {
				return err
			}
			return render(cmd.OutOrStdout(), opts.output, res, func(w io.Writer) error {
				heading(w, res.ToolName)
				field(w, "duration", res.Duration.Round(time.Microsecond))
				for _, k := range sortedKeys(res.Output) {
					field(w, k, compactJSON(res.Output[k]))
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&params, "params", "{}", "Tool parameters as a JSON object")
	return cmd
}
