package cmd

import (
	"fmt"

	"jason/pkg/api"

	"github.com/spf13/cobra"
)

var submitCmd = &cobra.Command{
	Use:   "submit <rover_file> [base_file]",
	Short: "Submit a rover file for processing without waiting",
	Long: `Submit a rover observation file (and optionally a base station file) and
print the process ID. Use 'jason status' and 'jason download' to follow it up.
The base station position is given as -p lat,lon,height or as three repeated
-p flags, see 'jason process --help'.

Example:
  jason submit rover.obs base.obs --label survey-1`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		req, cleanup, err := submitRequest(cmd, args, api.ProcessTypeGNSS)
		if err != nil {
			return err
		}
		defer cleanup()

		orchestrator, err := newOrchestrator(cmd, false)
		if err != nil {
			return err
		}

		id, err := orchestrator.SubmitOnly(cmd.Context(), req)
		if err != nil {
			return err
		}
		if id == "" {
			return fmt.Errorf("submission was not accepted")
		}

		fmt.Fprintf(cmd.OutOrStdout(), "✓ Process submitted!\nProcess ID: %s\n", id)
		return nil
	},
}

func init() {
	addSubmitFlags(submitCmd)
	rootCmd.AddCommand(submitCmd)
}
