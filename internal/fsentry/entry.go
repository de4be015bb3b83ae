// Package fsentry models the files a scan considers: where each one
// was found, the metadata recorded at scan time, and which paths turn
// out to name the same underlying file.
package fsentry

import (
	"path/filepath"
	"strings"
	"time"
)

// Root identifies one of the path arguments a scan started from.
// Index is the 1-based position of the argument on the command line.
type Root struct {
	Path  string
	Index int
}

// Entry is a single file selected for consideration. Size and ModTime
// are captured when the file is first seen; the scan does not re-stat
// during comparison.
type Entry struct {
	Path    string
	Size    int64
	ModTime time.Time
	Root    Root

	// Filesystem identity, used for alias folding. HasIdentity is
	// false when the backing filesystem does not expose one (for
	// example an in-memory filesystem in tests).
	Dev         uint64
	Ino         uint64
	HasIdentity bool

	// Symlink records that the path itself is a symbolic link whose
	// content is read through the link.
	Symlink bool
}

// Name returns the portion of the path after the last separator.
func (e *Entry) Name() string {
	return filepath.Base(e.Path)
}

// Dir returns the portion of the path up to and including the last
// separator, or "" if the path has none.
func (e *Entry) Dir() string {
	i := strings.LastIndexByte(e.Path, filepath.Separator)
	if i < 0 {
		return ""
	}
	return e.Path[:i+1]
}

// DirName returns the path component between the second-to-last and
// last separators, or "" if there is no such component.
func (e *Entry) DirName() string {
	dir := strings.TrimSuffix(e.Dir(), string(filepath.Separator))
	if dir == "" {
		return ""
	}
	return filepath.Base(dir)
}

// Ext returns the last dot-delimited suffix of the name, including
// the dot. A name with no dot, or only a leading dot, has no
// extension.
func (e *Entry) Ext() string {
	name := e.Name()
	i := strings.LastIndexByte(name, '.')
	if i <= 0 {
		return ""
	}
	return name[i:]
}

// Identity is the dev+inode pair entries are folded by.
type Identity struct {
	Dev uint64
	Ino uint64
}

// Identity returns the entry's filesystem identity. The second return
// is false when the filesystem did not provide one.
func (e *Entry) Identity() (Identity, bool) {
	return Identity{Dev: e.Dev, Ino: e.Ino}, e.HasIdentity
}
