package report

import (
	"bufio"
	"fmt"
	"io"
)

// Group is one parsed report block: the paths the criteria engine
// marked and the rest.
type Group struct {
	Marked   []string
	Unmarked []string
}

// Parse reads an entire report. Any malformed line fails the whole
// parse, so execute modes never act on a half-understood report.
//
// Lines beginning with '#' are comments (the group header among
// them). Other lines carry a two-character mark followed by the path,
// verbatim; a non-space first character marks the path as selected.
func Parse(r io.Reader) ([]Group, error) {
	var groups []Group
	var current Group

	flush := func() {
		if len(current.Marked) > 0 || len(current.Unmarked) > 0 {
			groups = append(groups, current)
		}
		current = Group{}
	}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Text()

		if line == "" {
			flush()
			continue
		}
		if line[0] == '#' {
			continue
		}

		if len(line) < 3 || line[1] != ' ' {
			return nil, fmt.Errorf("report line %d: expected a two-character mark before the path", lineNo)
		}
		path := line[2:]
		if line[0] == ' ' {
			current.Unmarked = append(current.Unmarked, path)
		} else {
			current.Marked = append(current.Marked, path)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading report: %w", err)
	}
	flush()

	return groups, nil
}
