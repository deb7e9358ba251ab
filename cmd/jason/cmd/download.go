package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var downloadCmd = &cobra.Command{
	Use:   "download <process_id>",
	Short: "Download the result archive of a finished process",
	Long: `Download the zip result of a finished process into the download directory
(the working directory unless --download-dir is set) and print its path.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		orchestrator, err := newOrchestrator(cmd, false)
		if err != nil {
			return err
		}

		path, err := orchestrator.Download(cmd.Context(), args[0])
		if err != nil {
			return err
		}

		fmt.Fprintln(cmd.OutOrStdout(), path)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(downloadCmd)
}
