package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check that the Jason API is reachable",
	Long:  `Query the API status endpoint with the CLI version and print the answer. Only the API key is needed.`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		body, err := newClient().APIHealth(cmd.Context())
		if err != nil {
			return err
		}
		if body == nil {
			return fmt.Errorf("API status check failed")
		}

		out, err := json.MarshalIndent(body, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(out))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(healthCmd)
}
