// Package correlate compares two directory trees by content,
// reporting which files match between them and which exist on only
// one side.
package correlate

import (
	"fmt"
	"io"
	"log"

	"github.com/fatih/color"
	"github.com/spf13/afero"

	"github.com/dupescan/dupescan/internal/compare"
	"github.com/dupescan/dupescan/internal/fsentry"
	"github.com/dupescan/dupescan/internal/index"
	"github.com/dupescan/dupescan/internal/units"
)

// Action classifies one reported file pair.
type Action int

const (
	// ActionMatch is content present under both trees.
	ActionMatch Action = iota
	// ActionRemove is content present only under the first tree.
	ActionRemove
	// ActionAdd is content present only under the second tree.
	ActionAdd
)

var actionSymbols = map[Action]string{
	ActionMatch:  "=",
	ActionRemove: "-",
	ActionAdd:    "+",
}

var actionWords = map[Action]string{
	ActionMatch:  "Matches",
	ActionRemove: "Removes",
	ActionAdd:    "Adds",
}

// Config adjusts correlate output and resource limits.
type Config struct {
	// Show* suppress report sections independently. The command layer
	// turns them all on when none was requested.
	ShowMatches bool
	ShowRemoves bool
	ShowAdds    bool

	// Colorize paints removes red and adds green.
	Colorize bool

	// Summary appends the per-section file and byte counts.
	Summary bool

	MaxMemory    int64
	MaxBuffer    int64
	MaxOpenFiles int

	Verbose bool

	Out  io.Writer
	Errw io.Writer
}

// Run walks both trees, partitions the combined candidates by
// content, and classifies every content class by which trees hold it.
func Run(fsys afero.Fs, dirA, dirB string, cfg Config) error {
	logger := log.New(cfg.Errw, "", 0)
	logf := func(format string, args ...any) {
		if cfg.Verbose {
			logger.Printf(format, args...)
		}
	}

	ix, err := index.New()
	if err != nil {
		return err
	}
	defer ix.Close()

	walker := fsentry.NewWalker(fsys, fsentry.WalkConfig{
		Recurse: true,
		OnError: func(path string, err error) {
			logger.Printf("[WALK] %s: %v", path, err)
		},
	})

	var indexErr error
	walker.Walk([]string{dirA, dirB}, fsentry.Dedupe(func(e *fsentry.Entry) {
		if indexErr == nil {
			indexErr = ix.Add(e)
		}
	}))
	if indexErr != nil {
		return indexErr
	}
	logf("[WALK] enumerated %d candidate(s)", ix.Count())

	partitioner := compare.New(fsys, compare.Config{
		MaxMemory:     cfg.MaxMemory,
		MaxBufferSize: cfg.MaxBuffer,
		MaxOpenFiles:  cfg.MaxOpenFiles,
		Logf:          logf,
		OnError: func(path string, err error) {
			logger.Printf("[COMPARE] %s: %v", path, err)
		},
	})

	fileCounts := make(map[Action]int)
	byteCounts := make(map[Action]int64)

	err = ix.Buckets(1, func(b index.Bucket) error {
		// Hardlinked copies stay separate so each path classifies.
		instances := fsentry.FoldAliases(b.Entries, false)

		partitioner.Partition(b.Size, instances, true, func(class []*fsentry.Instance) {
			for _, pair := range pairClass(class) {
				fileCounts[pair.action]++
				byteCounts[pair.action] += b.Size
				if cfg.showAction(pair.action) {
					printPair(cfg, pair)
				}
			}
		})
		return nil
	})
	if err != nil {
		return err
	}

	if cfg.Summary {
		parts := make([]string, 0, 3)
		for _, action := range []Action{ActionMatch, ActionRemove, ActionAdd} {
			parts = append(parts, fmt.Sprintf("%s: %d (%s)",
				actionWords[action], fileCounts[action],
				units.FormatByteCount(byteCounts[action])))
		}
		fmt.Fprintf(cfg.Out, "# %s, %s, %s\n", parts[0], parts[1], parts[2])
	}
	return nil
}

type pair struct {
	action Action
	left   string
	right  string
}

// pairClass splits a content class by originating tree and zips the
// two sides: a pair with both paths is a match, and surplus copies on
// one side report as removes or adds.
func pairClass(class []*fsentry.Instance) []pair {
	var left, right []string
	for _, inst := range class {
		for _, e := range inst.Entries {
			if e.Root.Index == 1 {
				left = append(left, e.Path)
			} else {
				right = append(right, e.Path)
			}
		}
	}

	var pairs []pair
	for i := 0; i < len(left) || i < len(right); i++ {
		p := pair{}
		if i < len(left) {
			p.left = left[i]
		}
		if i < len(right) {
			p.right = right[i]
		}
		switch {
		case p.left != "" && p.right != "":
			p.action = ActionMatch
		case p.left != "":
			p.action = ActionRemove
		default:
			p.action = ActionAdd
		}
		pairs = append(pairs, p)
	}
	return pairs
}

var actionColors = map[Action]*color.Color{
	ActionRemove: color.New(color.FgRed),
	ActionAdd:    color.New(color.FgGreen),
}

func printPair(cfg Config, p pair) {
	paint := func(s string) string { return s }
	if cfg.Colorize {
		if c := actionColors[p.action]; c != nil {
			paint = func(s string) string { return c.Sprint(s) }
		}
	}

	symbol := actionSymbols[p.action]
	for _, path := range []string{p.left, p.right} {
		if path == "" {
			continue
		}
		fmt.Fprintln(cfg.Out, paint(symbol+" "+path))
		symbol = " "
	}
	fmt.Fprintln(cfg.Out)
}

func (cfg Config) showAction(a Action) bool {
	switch a {
	case ActionMatch:
		return cfg.ShowMatches
	case ActionRemove:
		return cfg.ShowRemoves
	default:
		return cfg.ShowAdds
	}
}
