// Package scan wires the find mode together: enumerate candidates,
// bucket them by size, partition each bucket by content, apply the
// preference criteria, and stream the report.
package scan

import (
	"fmt"
	"io"
	"log"
	"time"

	"github.com/spf13/afero"

	"github.com/dupescan/dupescan/internal/compare"
	"github.com/dupescan/dupescan/internal/criteria"
	"github.com/dupescan/dupescan/internal/fsentry"
	"github.com/dupescan/dupescan/internal/index"
	"github.com/dupescan/dupescan/internal/progress"
	"github.com/dupescan/dupescan/internal/report"
	"github.com/dupescan/dupescan/internal/units"
)

// Config captures everything the find command collects from flags and
// the defaults file.
type Config struct {
	Recurse         bool
	IncludeSymlinks bool
	FoldAliases     bool
	OnlyMixedRoots  bool

	MinSize      int64
	MaxMemory    int64
	MaxBuffer    int64
	MaxOpenFiles int
	Exclude      []string

	// Prefer is the raw criteria string; empty means no marking.
	Prefer string

	Verbose  bool
	Progress bool
	LogTime  bool

	Out  io.Writer
	Errw io.Writer
}

// Run performs a full duplicate scan. Criteria errors abort before
// any I/O; per-file errors are logged and the scan continues.
func Run(fsys afero.Fs, paths []string, cfg Config) error {
	logger := log.New(cfg.Errw, "", 0)
	logf := func(format string, args ...any) {
		if cfg.Verbose {
			logger.Printf(format, args...)
		}
	}

	var program *criteria.Program
	if cfg.Prefer != "" {
		parsed, err := criteria.Parse(cfg.Prefer)
		if err != nil {
			for _, line := range criteria.HighlightError(cfg.Prefer, err) {
				fmt.Fprintln(cfg.Errw, line)
			}
			return fmt.Errorf("invalid criteria: %w", err)
		}
		program = parsed
		logf("[SCAN] compiled %d criteria phrase(s)", program.Len())
	}

	ix, err := index.New()
	if err != nil {
		return err
	}
	defer ix.Close()

	var status *progress.StatusLine
	if cfg.Progress {
		status = progress.NewStatusLine(cfg.Errw)
	}

	walkErrors := 0
	walker := fsentry.NewWalker(fsys, fsentry.WalkConfig{
		Recurse:         cfg.Recurse,
		IncludeSymlinks: cfg.IncludeSymlinks,
		MinSize:         cfg.MinSize,
		Exclude:         cfg.Exclude,
		OnError: func(path string, err error) {
			walkErrors++
			if status != nil {
				status.Clear()
			}
			logger.Printf("[WALK] %s: %v", path, err)
		},
	})

	var indexErr error
	walker.Walk(paths, fsentry.Dedupe(func(e *fsentry.Entry) {
		if indexErr != nil {
			return
		}
		if status != nil {
			status.Walk(e.Path)
		}
		indexErr = ix.Add(e)
	}))
	if status != nil {
		status.Clear()
	}
	if indexErr != nil {
		return indexErr
	}
	logf("[WALK] enumerated %d candidate(s), %d error(s)", ix.Count(), walkErrors)

	writer := report.NewWriter(cfg.Out)
	writer.ShowAliases = cfg.FoldAliases

	partitioner := compare.New(fsys, compare.Config{
		MaxMemory:     cfg.MaxMemory,
		MaxBufferSize: cfg.MaxBuffer,
		MaxOpenFiles:  cfg.MaxOpenFiles,
		Logf:          logf,
		OnError: func(path string, err error) {
			if status != nil {
				status.Clear()
			}
			logger.Printf("[COMPARE] %s: %v", path, err)
		},
		Cancel:   cancelFunc(cfg.OnlyMixedRoots),
		Progress: progressFunc(status),
	})

	start := time.Now()
	var emitErr error
	err = ix.Buckets(2, func(b index.Bucket) error {
		instances := fsentry.FoldAliases(b.Entries, cfg.FoldAliases)
		if len(instances) == 0 {
			return nil
		}
		if cfg.OnlyMixedRoots && singleRoot(instances) {
			logf("[SCAN] skipping %d file(s) of size %d: single root", len(instances), b.Size)
			return nil
		}
		logf("[SCAN] comparing %d instance(s) of %d byte(s)", len(instances), b.Size)

		partitioner.Partition(b.Size, instances, false, func(class []*fsentry.Instance) {
			if emitErr != nil {
				return
			}
			if status != nil {
				status.Clear()
			}
			emitErr = writer.EmitGroup(class, pickMarked(program, class))
		})
		return emitErr
	})
	if err != nil {
		return err
	}

	if cfg.LogTime {
		return writer.Comment("Elapsed time: %s", units.FormatDuration(time.Since(start)))
	}
	return nil
}

// pickMarked runs the criteria program over a group and maps the
// selected primaries back to their instances. Aliases share their
// primary's mark.
func pickMarked(program *criteria.Program, class []*fsentry.Instance) map[*fsentry.Instance]bool {
	marked := make(map[*fsentry.Instance]bool)
	if program == nil || len(class) < 2 {
		return marked
	}

	primaries := make([]*fsentry.Entry, len(class))
	byEntry := make(map[*fsentry.Entry]*fsentry.Instance, len(class))
	for i, inst := range class {
		primaries[i] = inst.Primary()
		byEntry[inst.Primary()] = inst
	}
	for _, selected := range program.Pick(primaries) {
		marked[byEntry[selected]] = true
	}
	return marked
}

// cancelFunc abandons sub-groups whose remaining candidates all came
// from the same root argument, for --only-mixed-roots.
func cancelFunc(onlyMixedRoots bool) func([]*fsentry.Instance) bool {
	if !onlyMixedRoots {
		return nil
	}
	return singleRoot
}

func singleRoot(instances []*fsentry.Instance) bool {
	first := 0
	for _, inst := range instances {
		for _, e := range inst.Entries {
			if first == 0 {
				first = e.Root.Index
				continue
			}
			if e.Root.Index != first {
				return false
			}
		}
	}
	return true
}

func progressFunc(status *progress.StatusLine) func([]int, int64, int64) {
	if status == nil {
		return nil
	}
	return status.Compare
}
