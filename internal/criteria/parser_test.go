package criteria

import (
	"strings"
	"testing"

	"github.com/davecgh/go-spew/spew"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAcceptsWellFormedCriteria(t *testing.T) {
	tests := []struct {
		input   string
		phrases int
	}{
		{"shorter path", 1},
		{"longer path", 1},
		{"shallower directory", 1},
		{"deeper path", 1},
		{"earlier mtime", 1},
		{"later modification time", 1},
		{"lower index", 1},
		{"higher index", 1},
		{"name is backup.txt", 1},
		{"name isnt backup.txt", 1},
		{"name is not backup.txt", 1},
		{"path contains cache", 1},
		{"path not contains cache", 1},
		{"name starts with img_", 1},
		{"name start with img_", 1},
		{"name not starts with img_", 1},
		{"name ends with .jpg", 1},
		{"name ends .jpg", 1},
		{"extension is .jpg", 1},
		{"ext is .jpg", 1},
		{"directory name is photos", 1},
		{"dir name is photos", 1},
		{"directory is photos/", 1},
		{"name matches re ^img_[0-9]+", 1},
		{"name matches regex ^img_[0-9]+", 1},
		{"name match regexp ^img_[0-9]+", 1},
		{"name not matches re ^img_[0-9]+", 1},
		{"name is FOO ignoring case", 1},
		{"shorter path ignoring case", 1},
		{"mtime is 0", 1},
		{"index is 2", 1},
		{"shorter path, earlier path", 2},
		{"name ends with .jpg, shorter path, earlier mtime", 3},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			program, err := Parse(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.phrases, program.Len(), spew.Sdump(program))
		})
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"empty criteria", ""},
		{"empty phrase", "shorter path,,earlier path"},
		{"unknown property", "smallest blob"},
		{"unknown operator", "name resembles backup"},
		{"missing argument", "name is"},
		{"missing property after adjective", "shorter"},
		{"trailing garbage", "shorter path path"},
		{"argument then garbage", "name is x y"},
		{"adjective needs text property", "shorter mtime"},
		{"separators need text property", "deeper index"},
		{"string operator on number property", "mtime contains 5"},
		{"bad regex", "name matches re ("},
		{"unterminated quote", "name is 'oops"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			program, err := Parse(tt.input)
			require.Error(t, err)
			assert.Nil(t, program)
		})
	}
}

func TestParseErrorPositions(t *testing.T) {
	_, err := Parse("shorter path, name resembles x")
	require.Error(t, err)

	var parseErr *ParseError
	require.ErrorAs(t, err, &parseErr)
	assert.Equal(t, 19, parseErr.Pos, "error should point at the unknown operator")
}

func TestHighlightErrorUnderlinesRange(t *testing.T) {
	source := "shorter path, name resembles x"
	_, err := Parse(source)
	require.Error(t, err)

	lines := HighlightError(source, err)
	require.Len(t, lines, 2)
	assert.Equal(t, source, lines[0])
	assert.Equal(t, strings.Repeat(" ", 19)+strings.Repeat("~", len("resembles")), lines[1])
}

func TestHighlightErrorSingleCharacterTilde(t *testing.T) {
	// A known one-character range still gets a tilde; the caret is
	// reserved for positions with no reported length.
	source := "name matches re ("
	_, err := Parse(source)
	require.Error(t, err)

	lines := HighlightError(source, err)
	require.Len(t, lines, 2)
	assert.Equal(t, strings.Repeat(" ", 16)+"~", lines[1])
}

func TestHighlightErrorCaretAtEndOfInput(t *testing.T) {
	source := "name is"
	_, err := Parse(source)
	require.Error(t, err)

	lines := HighlightError(source, err)
	require.Len(t, lines, 2)
	assert.Equal(t, source, lines[0])
	assert.Equal(t, strings.Repeat(" ", len(source))+"^", lines[1])
}

func TestHighlightErrorWindowsLongSource(t *testing.T) {
	// An error deep inside a long criteria string centers the window
	// on the offending range and elides the leading text.
	source := "name is " + strings.Repeat("a", 120) + ", name resembles x"
	_, err := Parse(source)
	require.Error(t, err)

	lines := HighlightError(source, err)
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[0], "..."))
	assert.LessOrEqual(t, len(lines[0]), 78)
	assert.LessOrEqual(t, len(lines[1]), 78)
	assert.Contains(t, lines[0], "resembles")
	assert.Equal(t,
		strings.Index(lines[0], "resembles"),
		strings.Index(lines[1], "~"),
		"underline lines up with the offending word")
	assert.Equal(t, strings.Repeat("~", len("resembles")), strings.TrimLeft(lines[1], " "))
}

func TestHighlightErrorElidesTrailingText(t *testing.T) {
	// An error near the start of a long string keeps the head and
	// elides the tail.
	source := "name resembles " + strings.Repeat("b", 100)
	_, err := Parse(source)
	require.Error(t, err)

	lines := HighlightError(source, err)
	require.Len(t, lines, 2)
	assert.False(t, strings.HasPrefix(lines[0], "..."))
	assert.True(t, strings.HasSuffix(lines[0], "..."))
	assert.Equal(t, 78, len(lines[0]))
	assert.Equal(t, strings.Index(source, "resembles"), strings.Index(lines[1], "~"))
}
