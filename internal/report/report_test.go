package report

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dupescan/dupescan/internal/fsentry"
)

func soloInstance(path string, size int64) *fsentry.Instance {
	return &fsentry.Instance{Entries: []*fsentry.Entry{{Path: path, Size: size}}}
}

func TestEmitGroupUnmarked(t *testing.T) {
	var out bytes.Buffer
	w := NewWriter(&out)

	insts := []*fsentry.Instance{
		soloInstance("b/x", 10240),
		soloInstance("a/x", 10240),
	}
	require.NoError(t, w.EmitGroup(insts, nil))

	assert.Equal(t,
		"## Size: 10K Instances: 2 Excess: 10K Names: 2\n"+
			"  a/x\n"+
			"  b/x\n"+
			"\n",
		out.String())
}

func TestEmitGroupPreferred(t *testing.T) {
	var out bytes.Buffer
	w := NewWriter(&out)

	short := soloInstance("photo.jpg", 2048)
	long := soloInstance("backup/photo.jpg", 2048)
	marked := map[*fsentry.Instance]bool{short: true}

	require.NoError(t, w.EmitGroup([]*fsentry.Instance{long, short}, marked))

	assert.Equal(t,
		"## Size: 2K Instances: 2 Excess: 2K Names: 2\n"+
			"  backup/photo.jpg\n"+
			"> photo.jpg\n"+
			"\n",
		out.String())
}

func TestEmitGroupAmbiguous(t *testing.T) {
	var out bytes.Buffer
	w := NewWriter(&out)

	a := soloInstance("photo1.jpg", 100)
	b := soloInstance("photo2.jpg", 100)
	c := soloInstance("backup/photo.jpg", 100)
	marked := map[*fsentry.Instance]bool{a: true, b: true}

	require.NoError(t, w.EmitGroup([]*fsentry.Instance{a, b, c}, marked))

	lines := strings.Split(out.String(), "\n")
	assert.Equal(t, "  backup/photo.jpg", lines[1])
	assert.Equal(t, "? photo1.jpg", lines[2])
	assert.Equal(t, "? photo2.jpg", lines[3])
}

func TestEmitGroupAliases(t *testing.T) {
	var out bytes.Buffer
	w := NewWriter(&out)
	w.ShowAliases = true

	linked := &fsentry.Instance{Entries: []*fsentry.Entry{
		{Path: "a/orig", Size: 4096},
		{Path: "z/hardlink", Size: 4096},
	}}
	other := soloInstance("b/copy", 4096)

	require.NoError(t, w.EmitGroup([]*fsentry.Instance{other, linked}, nil))

	// Two instances, three names; excess counts instances only. The
	// single-name instance after the hardlinked one is announced.
	assert.Equal(t,
		"## Size: 4K Instances: 2 Excess: 4K Names: 3\n"+
			"# Instance 1\n"+
			"  a/orig\n"+
			"  z/hardlink\n"+
			"# Separate instances follow\n"+
			"  b/copy\n"+
			"\n",
		out.String())
}

func TestEmitGroupAliasesInterleaved(t *testing.T) {
	// Alphabetical ordering can put single-name instances before,
	// between and after multi-name ones. Every multi-name instance
	// keeps its header, and the transition to single-name instances
	// is announced exactly once, after the first multi-name instance
	// has been seen.
	var out bytes.Buffer
	w := NewWriter(&out)
	w.ShowAliases = true

	early := soloInstance("a/copy", 2048)
	linked1 := &fsentry.Instance{Entries: []*fsentry.Entry{
		{Path: "b/orig", Size: 2048},
		{Path: "y/link", Size: 2048},
	}}
	middle := soloInstance("c/copy", 2048)
	linked2 := &fsentry.Instance{Entries: []*fsentry.Entry{
		{Path: "d/orig", Size: 2048},
		{Path: "z/link", Size: 2048},
	}}
	late := soloInstance("e/copy", 2048)

	require.NoError(t, w.EmitGroup(
		[]*fsentry.Instance{late, linked2, middle, linked1, early}, nil))

	assert.Equal(t,
		"## Size: 2K Instances: 5 Excess: 8K Names: 7\n"+
			"  a/copy\n"+
			"# Instance 2\n"+
			"  b/orig\n"+
			"  y/link\n"+
			"# Separate instances follow\n"+
			"  c/copy\n"+
			"# Instance 4\n"+
			"  d/orig\n"+
			"  z/link\n"+
			"  e/copy\n"+
			"\n",
		out.String())
}

func TestWriterReaderRoundTrip(t *testing.T) {
	var out bytes.Buffer
	w := NewWriter(&out)

	first := soloInstance("keep/a", 100)
	second := soloInstance("dupe/a", 100)
	require.NoError(t, w.EmitGroup(
		[]*fsentry.Instance{first, second},
		map[*fsentry.Instance]bool{first: true}))

	third := soloInstance("one", 50)
	fourth := soloInstance("two", 50)
	require.NoError(t, w.EmitGroup([]*fsentry.Instance{third, fourth}, nil))
	require.NoError(t, w.Comment("Elapsed time: 1s"))

	groups, err := Parse(&out)
	require.NoError(t, err)
	require.Len(t, groups, 2)

	assert.Equal(t, []string{"keep/a"}, groups[0].Marked)
	assert.Equal(t, []string{"dupe/a"}, groups[0].Unmarked)
	assert.Empty(t, groups[1].Marked)
	assert.Equal(t, []string{"one", "two"}, groups[1].Unmarked)
}

func TestParseAmbiguousMarks(t *testing.T) {
	input := "## Size: 1K Instances: 3 Excess: 2K Names: 3\n" +
		"? a\n" +
		"? b\n" +
		"  c\n" +
		"\n"
	groups, err := Parse(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, groups, 1)
	assert.Equal(t, []string{"a", "b"}, groups[0].Marked)
	assert.Equal(t, []string{"c"}, groups[0].Unmarked)
}

func TestParsePathsVerbatim(t *testing.T) {
	input := ">  leading-space/file\n" +
		"  path with spaces/img 1.jpg\n"
	groups, err := Parse(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, groups, 1)
	assert.Equal(t, []string{" leading-space/file"}, groups[0].Marked)
	assert.Equal(t, []string{"path with spaces/img 1.jpg"}, groups[0].Unmarked)
}

func TestParseMissingTrailingBlankLine(t *testing.T) {
	input := "> a\n  b"
	groups, err := Parse(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, groups, 1)
}

func TestParseMalformedLineFailsWholeReport(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"missing mark column", ">a\n"},
		{"mark without path", "> \n"},
		{"single character line", "x\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(strings.NewReader(tt.input))
			assert.Error(t, err)
		})
	}
}
