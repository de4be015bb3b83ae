// Package report reads and writes the duplicate-report text format: a
// sequence of group blocks separated by blank lines, each holding a
// header line and one path per line behind a two-character mark.
package report

import (
	"fmt"
	"io"
	"sort"

	"github.com/dupescan/dupescan/internal/fsentry"
	"github.com/dupescan/dupescan/internal/units"
)

// Marks prefixing each path line.
const (
	MarkPreferred = "> "
	MarkAmbiguous = "? "
	MarkUnmarked  = "  "
)

// Writer serializes duplicate groups.
type Writer struct {
	out io.Writer

	// ShowAliases adds instance-numbering comments when a group
	// contains files known by more than one name.
	ShowAliases bool
}

// NewWriter creates a Writer over out.
func NewWriter(out io.Writer) *Writer {
	return &Writer{out: out}
}

// EmitGroup writes one group block. marked holds the instances the
// criteria engine selected; with exactly one marked instance its
// paths carry the preferred mark, with several each carries the
// ambiguous mark.
func (w *Writer) EmitGroup(insts []*fsentry.Instance, marked map[*fsentry.Instance]bool) error {
	ordered := make([]*fsentry.Instance, len(insts))
	copy(ordered, insts)
	sort.Slice(ordered, func(i, j int) bool {
		return ordered[i].Primary().Path < ordered[j].Primary().Path
	})

	size := ordered[0].Size()
	names := 0
	for _, inst := range ordered {
		names += inst.NameCount()
	}
	excess := size * int64(len(ordered)-1)

	if _, err := fmt.Fprintf(w.out, "## Size: %s Instances: %d Excess: %s Names: %d\n",
		units.FormatByteCount(size), len(ordered),
		units.FormatByteCount(excess), names); err != nil {
		return err
	}

	mark := MarkPreferred
	if len(marked) > 1 {
		mark = MarkAmbiguous
	}

	// Instances order alphabetically, so multi-name and single-name
	// instances may interleave. Each multi-name instance gets its own
	// header; the first single-name instance after any multi-name one
	// announces the transition once.
	sawMultiName := false
	announcedSingles := false
	for i, inst := range ordered {
		if w.ShowAliases {
			switch {
			case inst.NameCount() > 1:
				sawMultiName = true
				if _, err := fmt.Fprintf(w.out, "# Instance %d\n", i+1); err != nil {
					return err
				}
			case sawMultiName && !announcedSingles:
				announcedSingles = true
				if _, err := fmt.Fprintln(w.out, "# Separate instances follow"); err != nil {
					return err
				}
			}
		}
		line := MarkUnmarked
		if marked[inst] {
			line = mark
		}
		for _, entry := range inst.Entries {
			if _, err := fmt.Fprintf(w.out, "%s%s\n", line, entry.Path); err != nil {
				return err
			}
		}
	}

	_, err := fmt.Fprintln(w.out)
	return err
}

// Comment writes a comment line readers skip.
func (w *Writer) Comment(format string, args ...any) error {
	_, err := fmt.Fprintf(w.out, "# "+format+"\n", args...)
	return err
}
