package main

import (
	"fmt"
	"os"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/dupescan/dupescan/internal/config"
	"github.com/dupescan/dupescan/internal/execute"
	"github.com/dupescan/dupescan/internal/scan"
	"github.com/dupescan/dupescan/internal/units"
)

var (
	findSymlinks     bool
	findZero         bool
	findAliases      bool
	findRecurse      bool
	findOnlyMixed    bool
	findMinSize      string
	findMaxMemory    string
	findMaxBuffer    string
	findMaxOpenFiles int
	findExclude      []string
	findPrefer       string
	findHelpPrefer   bool
	findVerbose      bool
	findProgress     bool
	findTime         bool
	findExecutePath  string
	findCoalescePath string
	findDryRun       bool
	findConfigPath   string
)

var findCmd = &cobra.Command{
	Use:   "find [flags] PATH...",
	Short: "Find files with identical content",
	Long: `Scan the given files, and with --recurse the contents of the given
directories, for groups of files whose bytes are identical. Each
group is written to stdout as a report block; pass the report back
with --execute or --coalesce to act on it.`,
	Run: func(cmd *cobra.Command, args []string) {
		if findHelpPrefer {
			fmt.Print(preferHelpText)
			return
		}

		if findExecutePath != "" && findCoalescePath != "" {
			fatal("--execute and --coalesce cannot be combined")
		}
		if findExecutePath != "" || findCoalescePath != "" {
			runExecute(cmd, args)
			return
		}

		if findDryRun {
			fmt.Fprintln(os.Stderr, "Warning: -n/--dry-run has no effect without --execute or --coalesce")
		}
		if len(args) == 0 {
			fatal("no paths specified")
		}

		cfg := scanConfig(cmd)
		if err := scan.Run(afero.NewOsFs(), args, cfg); err != nil {
			fatal("%v", err)
		}
	},
}

// scanFlagNames are the flags that only make sense when scanning, for
// rejecting them in execute mode.
var scanFlagNames = []string{
	"symlinks", "zero", "aliases", "recurse", "only-mixed-roots",
	"min-size", "exclude", "prefer", "time", "progress", "config",
	"max-memory", "max-buffer-size", "max-open-files", "verbose",
}

func runExecute(cmd *cobra.Command, args []string) {
	if len(args) > 0 {
		fatal("only -n/--dry-run can be combined with --execute or --coalesce")
	}
	for _, name := range scanFlagNames {
		if cmd.Flags().Changed(name) {
			fatal("only -n/--dry-run can be combined with --execute or --coalesce")
		}
	}

	opts := execute.Options{DryRun: findDryRun, Out: os.Stdout}
	fsys := afero.NewOsFs()

	var failures int
	var err error
	if findExecutePath != "" {
		failures, err = execute.Delete(fsys, findExecutePath, opts)
	} else {
		failures, err = execute.Coalesce(fsys, findCoalescePath, execute.OSLinker{}, opts)
	}
	if err != nil {
		fatal("%v", err)
	}
	if failures > 0 {
		os.Exit(2)
	}
}

// scanConfig merges flags with the optional YAML defaults file.
// Flags that were set explicitly always win.
func scanConfig(cmd *cobra.Command) scan.Config {
	cfg := scan.Config{
		Recurse:         findRecurse,
		IncludeSymlinks: findSymlinks,
		FoldAliases:     findAliases,
		OnlyMixedRoots:  findOnlyMixed,
		MaxOpenFiles:    findMaxOpenFiles,
		Exclude:         findExclude,
		Prefer:          findPrefer,
		Verbose:         findVerbose,
		Progress:        findProgress,
		LogTime:         findTime,
		Out:             os.Stdout,
		Errw:            os.Stderr,
	}

	cfg.MinSize = parseByteFlag("min-size", findMinSize)
	cfg.MaxMemory = parseByteFlag("max-memory", findMaxMemory)
	cfg.MaxBuffer = parseByteFlag("max-buffer-size", findMaxBuffer)

	path := findConfigPath
	if path == "" {
		path = config.DefaultPath()
	}
	if path != "" {
		defaults, err := config.Load(path)
		if err != nil {
			fatal("%s: %v", path, err)
		}
		if defaults.SetMinSize && !cmd.Flags().Changed("min-size") {
			cfg.MinSize = defaults.MinSize
		}
		if defaults.SetMaxMemory && !cmd.Flags().Changed("max-memory") {
			cfg.MaxMemory = defaults.MaxMemory
		}
		if defaults.SetMaxBuffer && !cmd.Flags().Changed("max-buffer-size") {
			cfg.MaxBuffer = defaults.MaxBuffer
		}
		if defaults.MaxOpenFiles > 0 && !cmd.Flags().Changed("max-open-files") {
			cfg.MaxOpenFiles = defaults.MaxOpenFiles
		}
		if len(defaults.Exclude) > 0 && !cmd.Flags().Changed("exclude") {
			cfg.Exclude = defaults.Exclude
		}
	}

	if findZero {
		if cmd.Flags().Changed("min-size") {
			fatal("conflicting arguments: --zero implies --min-size 0, but --min-size was also specified")
		}
		cfg.MinSize = 0
	}
	return cfg
}

func parseByteFlag(name, value string) int64 {
	n, err := units.ParseByteCount(value)
	if err != nil {
		fatal("--%s: %v", name, err)
	}
	return n
}

func fatal(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
	os.Exit(1)
}

func init() {
	findCmd.Flags().BoolVarP(&findSymlinks, "symlinks", "s", false,
		"include symlinks; their content is the link target's bytes")
	findCmd.Flags().BoolVarP(&findZero, "zero", "z", false,
		"include zero-length files (equivalent to --min-size 0)")
	findCmd.Flags().BoolVarP(&findAliases, "aliases", "a", false,
		"detect files with more than one name (hardlinks, and symlinks with -s)")
	findCmd.Flags().BoolVarP(&findRecurse, "recurse", "r", false,
		"recurse into subdirectories")
	findCmd.Flags().BoolVarP(&findOnlyMixed, "only-mixed-roots", "o", false,
		"only report groups spanning two or more root arguments")
	findCmd.Flags().StringVarP(&findMinSize, "min-size", "m", "1",
		"ignore files smaller than this byte count")
	findCmd.Flags().StringVar(&findMaxMemory, "max-memory", "256M",
		"maximum memory used for comparison buffers")
	findCmd.Flags().StringVar(&findMaxBuffer, "max-buffer-size", "1M",
		"maximum per-file comparison buffer")
	findCmd.Flags().IntVar(&findMaxOpenFiles, "max-open-files", 64,
		"maximum simultaneously open files during comparison")
	findCmd.Flags().StringArrayVar(&findExclude, "exclude", nil,
		"skip files and directories with this exact name (repeatable)")
	findCmd.Flags().StringVarP(&findPrefer, "prefer", "p", "",
		"criteria for marking one file of each group (see --help-prefer)")
	findCmd.Flags().BoolVar(&findHelpPrefer, "help-prefer", false,
		"show detailed help for --prefer and exit")
	findCmd.Flags().BoolVarP(&findVerbose, "verbose", "v", false,
		"log detailed information to stderr")
	findCmd.Flags().BoolVar(&findProgress, "progress", false,
		"show a progress line on stderr")
	findCmd.Flags().BoolVar(&findTime, "time", false,
		"append the elapsed time to the report")
	findCmd.Flags().StringVarP(&findExecutePath, "execute", "x", "",
		"delete unmarked files listed in the report at this path")
	findCmd.Flags().StringVar(&findCoalescePath, "coalesce", "",
		"replace unmarked files in the report with hard links to the marked file")
	findCmd.Flags().BoolVarP(&findDryRun, "dry-run", "n", false,
		"with --execute or --coalesce, list actions without performing them")
	findCmd.Flags().StringVar(&findConfigPath, "config", "",
		"defaults file (default $XDG_CONFIG_HOME/dupescan/config.yaml)")

	rootCmd.AddCommand(findCmd)
}
