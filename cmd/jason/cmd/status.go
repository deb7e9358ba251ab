package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status <process_id>",
	Short: "Get the status of a process",
	Long:  `Print the current state of a process: PENDING, RUNNING, FINISHED or ERROR.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		orchestrator, err := newOrchestrator(cmd, false)
		if err != nil {
			return err
		}

		status, err := orchestrator.Status(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if status == "" {
			return fmt.Errorf("could not get the status of process %s", args[0])
		}

		fmt.Fprintln(cmd.OutOrStdout(), status)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
