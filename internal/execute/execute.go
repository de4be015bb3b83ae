// Package execute consumes a previously generated report: deleting
// the unmarked duplicates, or replacing them with hard links to the
// marked file. Groups where no file was marked are skipped.
package execute

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/afero"

	"github.com/dupescan/dupescan/internal/report"
)

// Linker creates hard links. The real implementation is OSLinker;
// tests substitute their own because in-memory filesystems have no
// link concept.
type Linker interface {
	Link(oldname, newname string) error
}

// OSLinker links through the os package.
type OSLinker struct{}

func (OSLinker) Link(oldname, newname string) error {
	return os.Link(oldname, newname)
}

// Options configures an execution run.
type Options struct {
	// DryRun prints the actions without performing them. A dry run
	// always succeeds once the report has parsed.
	DryRun bool

	// Out receives one line per action.
	Out io.Writer

	// Logf is a hook for verbose diagnostics. Delete and Coalesce do
	// not call it.
	Logf func(format string, args ...any)
}

// Delete removes the unmarked files of every group that has at least
// one marked file. It returns the number of files that could not be
// removed; the report failing to parse aborts before anything is
// touched.
func Delete(fsys afero.Fs, reportPath string, opts Options) (failures int, err error) {
	groups, err := loadReport(fsys, reportPath)
	if err != nil {
		return 0, err
	}

	for _, group := range groups {
		if len(group.Marked) == 0 {
			continue
		}
		for _, path := range group.Unmarked {
			fmt.Fprint(opts.Out, path)
			if opts.DryRun {
				fmt.Fprintln(opts.Out)
				continue
			}
			if removeErr := fsys.Remove(path); removeErr != nil {
				fmt.Fprintf(opts.Out, ": %v", removeErr)
				failures++
			}
			fmt.Fprintln(opts.Out)
		}
	}
	return failures, nil
}

// Coalesce replaces each unmarked file with a hard link to its
// group's marked file. The link lands under a temporary name and
// renames over the duplicate, so the duplicate is never missing. With
// several marked files the first is the link target.
func Coalesce(fsys afero.Fs, reportPath string, linker Linker, opts Options) (failures int, err error) {
	groups, err := loadReport(fsys, reportPath)
	if err != nil {
		return 0, err
	}

	for _, group := range groups {
		if len(group.Marked) == 0 {
			continue
		}
		target := group.Marked[0]
		for _, path := range group.Unmarked {
			fmt.Fprintf(opts.Out, "%s <= %s", path, target)
			if opts.DryRun {
				fmt.Fprintln(opts.Out)
				continue
			}
			if linkErr := coalesceOne(fsys, linker, target, path); linkErr != nil {
				fmt.Fprintf(opts.Out, ": %v", linkErr)
				failures++
			}
			fmt.Fprintln(opts.Out)
		}
	}
	return failures, nil
}

func coalesceOne(fsys afero.Fs, linker Linker, target, path string) error {
	tmp := path + ".dupescan-tmp"
	if err := linker.Link(target, tmp); err != nil {
		return err
	}
	if err := fsys.Rename(tmp, path); err != nil {
		fsys.Remove(tmp)
		return err
	}
	return nil
}

func loadReport(fsys afero.Fs, reportPath string) ([]report.Group, error) {
	f, err := fsys.Open(reportPath)
	if err != nil {
		return nil, fmt.Errorf("opening report: %w", err)
	}
	defer f.Close()
	groups, err := report.Parse(f)
	if err != nil {
		return nil, err
	}
	return groups, nil
}
