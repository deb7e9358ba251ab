// Package main is the entry point for the jason CLI.
// The CLI submits GNSS observation files to the Jason service and fetches the results.
package main

import (
	"os"

	"jason/cmd/jason/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
