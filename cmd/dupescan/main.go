package main

import (
	"os"

	"github.com/spf13/cobra"
)

const version = "1.0.0"

var rootCmd = &cobra.Command{
	Use:     "dupescan",
	Short:   "Find files with identical content",
	Version: version,
	Long: `dupescan finds groups of files whose byte contents are identical,
optionally marks a preferred member of each group, and can act on a
generated report by deleting duplicates or replacing them with hard
links. The correlate subcommand compares two directory trees by
content.

Arguments that accept byte counts take an integer with an optional
suffix: 'B' for bytes (the default), 'K' for kibibytes, 'M' for
mebibytes, 'G' for gibibytes, 'T' for tebibytes.`,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
