// Package index accumulates scanned candidates in a throwaway SQLite
// file and hands them back bucketed by size. Spilling the index to
// disk keeps memory flat no matter how many files a scan visits; the
// file is deleted when the index closes, so nothing persists between
// runs.
package index

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"

	"github.com/dupescan/dupescan/internal/fsentry"
)

const schema = `
CREATE TABLE files (
	path      TEXT UNIQUE ON CONFLICT IGNORE,
	size      INTEGER NOT NULL,
	rootn     INTEGER NOT NULL,
	root_path TEXT NOT NULL,
	mtime_ns  INTEGER NOT NULL,
	dev       INTEGER NOT NULL,
	ino       INTEGER NOT NULL,
	has_ident INTEGER NOT NULL,
	symlink   INTEGER NOT NULL
);
CREATE INDEX size_index ON files (size);
`

// Index is a disk-backed size bucketer.
type Index struct {
	db     *sql.DB
	insert *sql.Stmt
	dir    string
	count  int64
}

// New creates an index backed by a uniquely named temp file.
func New() (*Index, error) {
	dir, err := os.MkdirTemp("", "dupescan-")
	if err != nil {
		return nil, fmt.Errorf("creating index directory: %w", err)
	}
	path := filepath.Join(dir, "index-"+uuid.New().String()+".db")

	db, err := sql.Open("sqlite3", "file:"+path)
	if err != nil {
		os.RemoveAll(dir)
		return nil, fmt.Errorf("opening index database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		os.RemoveAll(dir)
		return nil, fmt.Errorf("initializing index schema: %w", err)
	}

	insert, err := db.Prepare(
		"INSERT INTO files VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)")
	if err != nil {
		db.Close()
		os.RemoveAll(dir)
		return nil, fmt.Errorf("preparing index insert: %w", err)
	}

	return &Index{db: db, insert: insert, dir: dir}, nil
}

// Add records a candidate. Re-adding a path is a no-op.
func (ix *Index) Add(e *fsentry.Entry) error {
	hasIdent := 0
	if e.HasIdentity {
		hasIdent = 1
	}
	symlink := 0
	if e.Symlink {
		symlink = 1
	}
	res, err := ix.insert.Exec(
		e.Path, e.Size, e.Root.Index, e.Root.Path,
		e.ModTime.UnixNano(), int64(e.Dev), int64(e.Ino), hasIdent, symlink,
	)
	if err != nil {
		return fmt.Errorf("indexing %s: %w", e.Path, err)
	}
	if n, err := res.RowsAffected(); err == nil && n > 0 {
		ix.count++
	}
	return nil
}

// Count reports how many candidates have been added.
func (ix *Index) Count() int64 {
	return ix.count
}

// Bucket is a set of candidates sharing an exact byte size.
type Bucket struct {
	Size    int64
	Entries []*fsentry.Entry
}

// Buckets streams size buckets holding at least minCount candidates to
// the emit callback, largest size first. Duplicate detection uses
// minCount 2; correlate mode uses 1 so unique files still classify.
func (ix *Index) Buckets(minCount int, emit func(Bucket) error) error {
	sizes, err := ix.db.Query(
		"SELECT size FROM files GROUP BY size HAVING COUNT(*) >= ? ORDER BY size DESC",
		minCount,
	)
	if err != nil {
		return fmt.Errorf("querying bucket sizes: %w", err)
	}

	var bucketSizes []int64
	for sizes.Next() {
		var size int64
		if err := sizes.Scan(&size); err != nil {
			sizes.Close()
			return fmt.Errorf("scanning bucket size: %w", err)
		}
		bucketSizes = append(bucketSizes, size)
	}
	if err := sizes.Err(); err != nil {
		sizes.Close()
		return fmt.Errorf("iterating bucket sizes: %w", err)
	}
	sizes.Close()

	for _, size := range bucketSizes {
		entries, err := ix.bucketEntries(size)
		if err != nil {
			return err
		}
		if err := emit(Bucket{Size: size, Entries: entries}); err != nil {
			return err
		}
	}
	return nil
}

func (ix *Index) bucketEntries(size int64) ([]*fsentry.Entry, error) {
	rows, err := ix.db.Query(
		`SELECT path, rootn, root_path, mtime_ns, dev, ino, has_ident, symlink
		 FROM files WHERE size = ? ORDER BY path`,
		size,
	)
	if err != nil {
		return nil, fmt.Errorf("querying bucket of size %d: %w", size, err)
	}
	defer rows.Close()

	var entries []*fsentry.Entry
	for rows.Next() {
		var (
			path, rootPath    string
			rootn             int
			mtimeNS, dev, ino int64
			hasIdent, symlink int
		)
		if err := rows.Scan(&path, &rootn, &rootPath, &mtimeNS, &dev, &ino, &hasIdent, &symlink); err != nil {
			return nil, fmt.Errorf("scanning bucket row: %w", err)
		}
		entries = append(entries, &fsentry.Entry{
			Path:        path,
			Size:        size,
			ModTime:     time.Unix(0, mtimeNS),
			Root:        fsentry.Root{Path: rootPath, Index: rootn},
			Dev:         uint64(dev),
			Ino:         uint64(ino),
			HasIdentity: hasIdent != 0,
			Symlink:     symlink != 0,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating bucket of size %d: %w", size, err)
	}
	return entries, nil
}

// Close tears down the database and removes the temp file.
func (ix *Index) Close() error {
	if ix.db == nil {
		return nil
	}
	ix.insert.Close()
	err := ix.db.Close()
	ix.db = nil
	if rmErr := os.RemoveAll(ix.dir); rmErr != nil && err == nil {
		err = rmErr
	}
	return err
}
