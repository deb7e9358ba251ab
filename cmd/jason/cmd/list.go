package cmd

import (
	"github.com/spf13/cobra"
)

var listCmd = &cobra.Command{
	Use:     "list_processes",
	Aliases: []string{"list"},
	Short:   "List the processes of the user",
	Long: `Print one comma-separated line per process (id, type, status, source file,
creation time) after a header line. Nothing is printed when there are no processes.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		orchestrator, err := newOrchestrator(cmd, false)
		if err != nil {
			return err
		}
		return orchestrator.List(cmd.Context(), cmd.OutOrStdout())
	},
}

func init() {
	rootCmd.AddCommand(listCmd)
}
