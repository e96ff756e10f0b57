// Package main is the entry point for the chartscan CLI, the presentation
// layer over the batch extraction core.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "chartscan",
	Short: "Batch extraction of structured data from scanned clinical documents",
	Long: `chartscan queues scanned clinical documents (prescriptions, charts) into an
in-memory batch, drives each through an external extraction endpoint, and
aggregates the structured markup for export as raw markup, CSV, or XLSX.`,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
