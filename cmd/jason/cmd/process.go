package cmd

import (
	"fmt"

	"jason/internal/workflow"
	"jason/pkg/api"

	"github.com/spf13/cobra"
)

var processCmd = &cobra.Command{
	Use:   "process <rover_file> [base_file]",
	Short: "Process a rover file and download the results",
	Long: `Submit a rover observation file (and optionally a base station file) for
GNSS processing, wait until the service finishes and download the result archive.

The base station position takes three numbers, latitude, longitude and height,
either comma separated (-p 41.38,2.11,70.5) or as repeated flags
(-p 41.38 -p 2.11 -p 70.5). Space separated words are not accepted.

Example:
  jason process rover.obs
  jason process rover.obs base.obs -p 41.38,2.11,70.5 --dynamics static
  jason process rover.obs --strategy PPP --timeout 10m`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runWorkflow(cmd, args, api.ProcessTypeGNSS)
	},
}

var convertCmd = &cobra.Command{
	Use:   "convert <file>",
	Short: "Convert a receiver file to RINEX and download the results",
	Long: `Submit a raw receiver file for conversion to RINEX, wait until the service
finishes and download the result archive.

Example:
  jason convert rover.ubx`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runWorkflow(cmd, args, api.ProcessTypeConversion)
	},
}

func runWorkflow(cmd *cobra.Command, args []string, processType api.ProcessType) error {
	req, cleanup, err := submitRequest(cmd, args, processType)
	if err != nil {
		return err
	}
	defer cleanup()

	orchestrator, err := newOrchestrator(cmd, true)
	if err != nil {
		return err
	}

	out, err := orchestrator.Run(cmd.Context(), req)
	if err != nil {
		return err
	}

	switch out.State {
	case workflow.StateFinished:
		fmt.Fprintf(cmd.OutOrStdout(), "✓ Process %s finished\nResults: %s\n", out.ProcessID, out.Path)
		if out.Link != "" {
			fmt.Fprintf(cmd.OutOrStdout(), "Link:    %s\n", out.Link)
		}
		return nil
	case workflow.StateNotSubmitted:
		return fmt.Errorf("submission was not accepted")
	case workflow.StateTimedOut:
		fmt.Fprintf(cmd.OutOrStdout(), "Process %s still %s, try 'jason download %s' later\n", out.ProcessID, out.LastStatus, out.ProcessID)
		return fmt.Errorf("timed out waiting for process %s", out.ProcessID)
	default:
		return fmt.Errorf("process %s ended with status %s", out.ProcessID, out.LastStatus)
	}
}

func init() {
	for _, c := range []*cobra.Command{processCmd, convertCmd} {
		addSubmitFlags(c)
		addWaitFlags(c)
		rootCmd.AddCommand(c)
	}
}
