package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"sounder-sim/internal/scenario"
)

var scenarioCmd = &cobra.Command{
	Use:   "scenario",
	Short: "Inspect command scenarios",
}

var scenarioListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the built-in scenarios",
	RunE: func(cmd *cobra.Command, args []string) error {
		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "NAME\tSTEPS\tDURATION\tDESCRIPTION")
		builtIn := scenario.BuiltIn()
		for _, name := range scenario.Names() {
			s := builtIn[name]
			fmt.Fprintf(tw, "%s\t%d\t%s\t%s\n", name, len(s.Steps), s.Duration(), s.Description)
		}
		return tw.Flush()
	},
}

var scenarioShowCmd = &cobra.Command{
	Use:   "show <name|path>",
	Short: "Print the steps of a scenario",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := scenario.Resolve(args[0])
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "%s: %s\n", s.Name, s.Description)
		tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "AFTER\tCOMMAND\tNOTE")
		for _, st := range s.Steps {
			fmt.Fprintf(tw, "%s\t%s\t%s\n", st.After, st.Command, st.Note)
		}
		return tw.Flush()
	},
}

func init() {
	scenarioCmd.AddCommand(scenarioListCmd)
	scenarioCmd.AddCommand(scenarioShowCmd)
}

