package fsentry

import (
	"io/fs"
	"path/filepath"
	"sort"

	"github.com/spf13/afero"
)

// WalkConfig controls which files a Walker yields.
type WalkConfig struct {
	// Recurse expands directory arguments into their descendants.
	// Without it, directory arguments are skipped with a diagnostic.
	Recurse bool

	// IncludeSymlinks admits symlinks as candidates; their content is
	// the target's bytes read through the link. When false, symlinks
	// are ignored entirely and symlinked directories are not entered.
	IncludeSymlinks bool

	// MinSize discards files smaller than this many bytes before they
	// reach the size index.
	MinSize int64

	// Exclude lists literal basenames to skip. A matching directory
	// is not entered; a matching file is not yielded.
	Exclude []string

	// OnError receives per-path failures (unreadable directories,
	// stat errors). The walk continues. May be nil.
	OnError func(path string, err error)
}

// Walker enumerates candidate files beneath a list of root arguments,
// assigning each entry the 1-based index of the argument that
// introduced it.
type Walker struct {
	fsys    afero.Fs
	cfg     WalkConfig
	exclude map[string]struct{}
}

// NewWalker creates a Walker over the given filesystem.
func NewWalker(fsys afero.Fs, cfg WalkConfig) *Walker {
	exclude := make(map[string]struct{}, len(cfg.Exclude))
	for _, name := range cfg.Exclude {
		exclude[name] = struct{}{}
	}
	return &Walker{fsys: fsys, cfg: cfg, exclude: exclude}
}

// Walk yields an Entry for every candidate file to the emit callback,
// in a deterministic order within each root.
func (w *Walker) Walk(paths []string, emit func(*Entry)) {
	for i, path := range paths {
		root := Root{Path: path, Index: i + 1}

		info, symlink, err := w.statPath(path)
		if err != nil {
			w.reportError(path, err)
			continue
		}

		switch {
		case info.IsDir():
			if _, skip := w.exclude[filepath.Base(path)]; skip {
				continue
			}
			if !w.cfg.Recurse {
				w.reportError(path, errIsDirectory)
				continue
			}
			w.walkDir(path, root, emit)
		default:
			if symlink && !w.cfg.IncludeSymlinks {
				continue
			}
			w.emitFile(path, info, symlink, root, emit)
		}
	}
}

// errIsDirectory marks a directory argument given without recursion.
var errIsDirectory = &directoryError{}

type directoryError struct{}

func (*directoryError) Error() string {
	return "is a directory (specify --recurse to include its contents)"
}

func (w *Walker) walkDir(dir string, root Root, emit func(*Entry)) {
	stack := []string{dir}

	for len(stack) > 0 {
		current := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		children, err := afero.ReadDir(w.fsys, current)
		if err != nil {
			w.reportError(current, err)
			continue
		}
		sort.Slice(children, func(i, j int) bool { return children[i].Name() < children[j].Name() })

		// Subdirectories collect separately so they are visited after
		// the files of the current directory, in order.
		var dirs []string
		for _, child := range children {
			name := child.Name()
			if _, skip := w.exclude[name]; skip {
				continue
			}
			childPath := filepath.Join(current, name)

			symlink := child.Mode()&fs.ModeSymlink != 0
			if symlink {
				if !w.cfg.IncludeSymlinks {
					continue
				}
				// Resolve through the link for the candidate's size.
				resolved, err := w.fsys.Stat(childPath)
				if err != nil {
					w.reportError(childPath, err)
					continue
				}
				if resolved.IsDir() {
					// Symlinked directories are never entered.
					continue
				}
				child = resolved
			}

			if child.IsDir() {
				dirs = append(dirs, childPath)
				continue
			}
			if !child.Mode().IsRegular() && !symlink {
				continue
			}
			w.emitFile(childPath, child, symlink, root, emit)
		}

		for i := len(dirs) - 1; i >= 0; i-- {
			stack = append(stack, dirs[i])
		}
	}
}

func (w *Walker) emitFile(path string, info fs.FileInfo, symlink bool, root Root, emit func(*Entry)) {
	if info.Size() < w.cfg.MinSize {
		return
	}

	entry := &Entry{
		Path:    path,
		Size:    info.Size(),
		ModTime: info.ModTime(),
		Root:    root,
		Symlink: symlink,
	}
	entry.Dev, entry.Ino, entry.HasIdentity = sysIdentity(info)
	if symlink {
		// For alias folding, a followed symlink's identity is its
		// target's. info already reflects the target when it came
		// from Stat; when it came from Lstat re-resolve.
		if resolved, err := w.fsys.Stat(path); err == nil {
			entry.Dev, entry.Ino, entry.HasIdentity = sysIdentity(resolved)
			entry.Size = resolved.Size()
			entry.ModTime = resolved.ModTime()
		}
	}
	emit(entry)
}

// statPath stats a root argument, reporting whether it is a symlink.
func (w *Walker) statPath(path string) (fs.FileInfo, bool, error) {
	if lstater, ok := w.fsys.(afero.Lstater); ok {
		info, usedLstat, err := lstater.LstatIfPossible(path)
		if err != nil {
			return nil, false, err
		}
		if usedLstat && info.Mode()&fs.ModeSymlink != 0 {
			resolved, err := w.fsys.Stat(path)
			if err != nil {
				return nil, false, err
			}
			return resolved, true, nil
		}
		return info, false, nil
	}

	info, err := w.fsys.Stat(path)
	if err != nil {
		return nil, false, err
	}
	return info, false, nil
}

func (w *Walker) reportError(path string, err error) {
	if w.cfg.OnError != nil {
		w.cfg.OnError(path, err)
	}
}

// Dedupe drops entries whose path repeats an earlier one, which
// happens when the same file is reachable from more than one root
// argument.
func Dedupe(emit func(*Entry)) func(*Entry) {
	seen := make(map[string]struct{})
	return func(e *Entry) {
		abs := e.Path
		if a, err := filepath.Abs(e.Path); err == nil {
			abs = a
		}
		if _, dup := seen[abs]; dup {
			return
		}
		seen[abs] = struct{}{}
		emit(e)
	}
}
