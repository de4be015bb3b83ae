//go:build unix

package fsentry

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWalkSymlinksOnRealFilesystem(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "target.txt")
	link := filepath.Join(dir, "link.txt")
	require.NoError(t, os.WriteFile(target, []byte("hello symlinks"), 0644))
	require.NoError(t, os.Symlink(target, link))

	fsys := afero.NewOsFs()

	// Symlinks are ignored by default.
	w := NewWalker(fsys, WalkConfig{Recurse: true, MinSize: 1})
	entries := collect(w, []string{dir})
	require.Len(t, entries, 1)
	assert.Equal(t, target, entries[0].Path)

	// With symlinks included, the link is a candidate whose size and
	// identity come from the target.
	w = NewWalker(fsys, WalkConfig{Recurse: true, MinSize: 1, IncludeSymlinks: true})
	entries = collect(w, []string{dir})
	require.Len(t, entries, 2)

	byPath := make(map[string]*Entry)
	for _, e := range entries {
		byPath[e.Path] = e
	}
	linkEntry := byPath[link]
	targetEntry := byPath[target]
	require.NotNil(t, linkEntry)
	require.NotNil(t, targetEntry)

	assert.True(t, linkEntry.Symlink)
	assert.Equal(t, targetEntry.Size, linkEntry.Size)

	// Followed symlinks share the target's identity, so alias
	// folding merges them into one instance.
	require.True(t, linkEntry.HasIdentity)
	instances := FoldAliases(entries, true)
	require.Len(t, instances, 1)
	assert.Equal(t, 2, instances[0].NameCount())
}

func TestWalkHardlinkIdentity(t *testing.T) {
	dir := t.TempDir()
	original := filepath.Join(dir, "original")
	hardlink := filepath.Join(dir, "hardlink")
	require.NoError(t, os.WriteFile(original, []byte("shared inode"), 0644))
	require.NoError(t, os.Link(original, hardlink))

	w := NewWalker(afero.NewOsFs(), WalkConfig{Recurse: true, MinSize: 1})
	entries := collect(w, []string{dir})
	require.Len(t, entries, 2)

	id0, ok0 := entries[0].Identity()
	id1, ok1 := entries[1].Identity()
	require.True(t, ok0)
	require.True(t, ok1)
	assert.Equal(t, id0, id1)

	instances := FoldAliases(entries, true)
	require.Len(t, instances, 1)
	assert.Equal(t, []string{hardlink, original},
		[]string{instances[0].Entries[0].Path, instances[0].Entries[1].Path})
}
