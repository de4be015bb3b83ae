// Package progress paints a single overwriting status line on a
// terminal during enumeration and comparison.
package progress

import (
	"fmt"
	"io"
	"strings"

	"golang.org/x/time/rate"

	"github.com/dupescan/dupescan/internal/units"
)

const (
	defaultWidth = 78
	elideString  = "..."
	elidePoint   = 0.33
)

// StatusLine repaints a single stderr line in place. Repaints are
// rate-limited so tight comparison loops do not spend their time
// writing to the terminal; Clear always paints.
type StatusLine struct {
	w       io.Writer
	width   int
	lastLen int
	limiter *rate.Limiter
}

// NewStatusLine creates a status line writing to w.
func NewStatusLine(w io.Writer) *StatusLine {
	return &StatusLine{
		w:       w,
		width:   defaultWidth,
		limiter: rate.NewLimiter(rate.Limit(10), 1),
	}
}

// Walk shows the path currently being enumerated.
func (s *StatusLine) Walk(path string) {
	if !s.limiter.Allow() {
		return
	}
	s.paint(path)
}

// Compare shows the state of a comparison: the sizes of the in-flight
// sub-groups, a position bar, and the common file size.
func (s *StatusLine) Compare(subgroupSizes []int, pos, total int64) {
	if !s.limiter.Allow() {
		return
	}

	counts := make([]string, len(subgroupSizes))
	for i, n := range subgroupSizes {
		counts[i] = fmt.Sprintf("%d", n)
	}
	setVis := "[" + strings.Join(counts, "|") + "]"
	sizeText := units.FormatByteCount(total)

	room := s.width - len(setVis) - len(sizeText) - 2
	if room >= 2 && total > 0 {
		filled := int(float64(room)*float64(pos)/float64(total) + 0.5)
		if filled > room {
			filled = room
		}
		bar := strings.Repeat("*", filled) + strings.Repeat("-", room-filled)
		s.paint(setVis + " " + bar + " " + sizeText)
		return
	}
	s.paint(setVis + " " + sizeText)
}

// Clear erases the status line before other output is printed.
func (s *StatusLine) Clear() {
	s.paint("")
}

func (s *StatusLine) paint(text string) {
	text = prepare(text, s.width)
	fmt.Fprintf(s.w, "\r%s", text)
	if len(text) < s.lastLen {
		fmt.Fprint(s.w, strings.Repeat(" ", s.lastLen-len(text)))
	}
	s.lastLen = len(text)
}

// prepare flattens the text to one line and middle-elides it to fit.
func prepare(text string, maxLen int) string {
	if i := strings.IndexByte(text, '\n'); i >= 0 {
		text = text[:i]
	}
	text = strings.ReplaceAll(text, "\t", "    ")

	if len(text) <= maxLen {
		return text
	}
	lead := int(elidePoint*float64(maxLen)+0.5) - len(elideString)
	if lead < 0 {
		lead = 0
	}
	return text[:lead] + elideString + text[len(text)-maxLen+lead+len(elideString):]
}
