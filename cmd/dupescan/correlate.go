package main

import (
	"os"

	"github.com/fatih/color"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/dupescan/dupescan/internal/correlate"
)

var (
	corrMatches      bool
	corrRemoves      bool
	corrAdds         bool
	corrColor        string
	corrNoSummary    bool
	corrMaxMemory    string
	corrMaxBuffer    string
	corrMaxOpenFiles int
	corrVerbose      bool
)

var correlateCmd = &cobra.Command{
	Use:   "correlate [flags] DIR1 DIR2",
	Short: "Compare two directories by content",
	Long: `Compare the contents of two directory trees. Files whose bytes
appear under both trees report as matches; content present only under
the first tree reports as a remove, and content present only under
the second as an add. When none of --matches, --removes, --adds is
given, all three sections are reported.`,
	Args: cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		cfg := correlate.Config{
			ShowMatches:  corrMatches,
			ShowRemoves:  corrRemoves,
			ShowAdds:     corrAdds,
			Summary:      !corrNoSummary,
			MaxOpenFiles: corrMaxOpenFiles,
			Verbose:      corrVerbose,
			Out:          os.Stdout,
			Errw:         os.Stderr,
		}
		if !corrMatches && !corrRemoves && !corrAdds {
			cfg.ShowMatches = true
			cfg.ShowRemoves = true
			cfg.ShowAdds = true
		}

		switch corrColor {
		case "on":
			color.NoColor = false
			cfg.Colorize = true
		case "off":
			cfg.Colorize = false
		case "auto":
			// The color package detects non-terminal output itself.
			cfg.Colorize = !color.NoColor
		default:
			fatal("--color must be auto, on or off")
		}

		cfg.MaxMemory = parseByteFlag("max-memory", corrMaxMemory)
		cfg.MaxBuffer = parseByteFlag("max-buffer-size", corrMaxBuffer)

		if err := correlate.Run(afero.NewOsFs(), args[0], args[1], cfg); err != nil {
			fatal("%v", err)
		}
	},
}

func init() {
	correlateCmd.Flags().BoolVarP(&corrMatches, "matches", "m", false,
		"list content present under both directories")
	correlateCmd.Flags().BoolVarP(&corrRemoves, "removes", "r", false,
		"list content present only under the first directory")
	correlateCmd.Flags().BoolVarP(&corrAdds, "adds", "a", false,
		"list content present only under the second directory")
	correlateCmd.Flags().StringVar(&corrColor, "color", "auto",
		"colorize output: auto, on or off")
	correlateCmd.Flags().BoolVar(&corrNoSummary, "no-summary", false,
		"suppress the summary line")
	correlateCmd.Flags().StringVar(&corrMaxMemory, "max-memory", "256M",
		"maximum memory used for comparison buffers")
	correlateCmd.Flags().StringVar(&corrMaxBuffer, "max-buffer-size", "1M",
		"maximum per-file comparison buffer")
	correlateCmd.Flags().IntVar(&corrMaxOpenFiles, "max-open-files", 64,
		"maximum simultaneously open files during comparison")
	correlateCmd.Flags().BoolVarP(&corrVerbose, "verbose", "v", false,
		"log detailed information to stderr")

	rootCmd.AddCommand(correlateCmd)
}
