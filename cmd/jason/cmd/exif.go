package cmd

import (
	"fmt"

	"jason/internal/exif"

	"github.com/spf13/cobra"
)

var exifCmd = &cobra.Command{
	Use:   "exif <folder>",
	Short: "Extract EXIF tags of the pictures in a folder",
	Long: `Read the EXIF tags of every ` + exif.ImageSuffix + ` file in a folder and write them as a
single JSON camera metadata file inside that folder. The file can be attached
to a submission with --images.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		output, _ := cmd.Flags().GetString("output")

		path, err := exif.New(current.log).BuildMetadataFile(args[0], output)
		if err != nil {
			return err
		}
		if path != "" {
			fmt.Fprintln(cmd.OutOrStdout(), path)
		}
		return nil
	},
}

func init() {
	exifCmd.Flags().StringP("output", "o", exif.DefaultOutputName, "name of the metadata file written inside the folder")
	rootCmd.AddCommand(exifCmd)
}
