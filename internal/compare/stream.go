package compare

import (
	"fmt"
	"io"
	"sync"

	"github.com/spf13/afero"
)

// pool caps the number of simultaneously open file handles. A stream
// over its budget is suspended (handle closed, offset remembered) and
// transparently resumed on the next read. Suspension picks the least
// recently opened unpinned stream; streams are pinned for the duration
// of a read so concurrent round reads never lose a handle mid-read.
type pool struct {
	fsys afero.Fs

	mu    sync.Mutex
	limit int
	open  []*stream
}

func newPool(fsys afero.Fs, limit int) *pool {
	if limit < 1 {
		limit = 1
	}
	return &pool{fsys: fsys, limit: limit}
}

// setLimit adjusts the handle budget between rounds.
func (p *pool) setLimit(n int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if n < 1 {
		n = 1
	}
	p.limit = n
}

// stream creates a suspended stream positioned at offset zero.
func (p *pool) stream(path string) *stream {
	return &stream{pool: p, path: path}
}

type stream struct {
	pool   *pool
	path   string
	offset int64
	file   afero.File
	pinned bool
}

// readChunk fills buf completely from the stream's current offset. A
// partial fill is an error: callers size buf from the recorded file
// size, so running out of bytes means the file changed underneath the
// scan.
func (s *stream) readChunk(buf []byte) error {
	if err := s.pin(); err != nil {
		return err
	}
	defer s.unpin()

	n, err := io.ReadFull(s.file, buf)
	s.offset += int64(n)
	if err == io.EOF || err == io.ErrUnexpectedEOF {
		return fmt.Errorf("%s: %w", s.path, ErrShortRead)
	}
	if err != nil {
		return fmt.Errorf("reading %s: %w", s.path, err)
	}
	return nil
}

// pin resumes the stream's handle, evicting idle streams as needed,
// and protects it from eviction until unpin.
func (s *stream) pin() error {
	s.pool.mu.Lock()
	defer s.pool.mu.Unlock()

	if s.file == nil {
		for len(s.pool.open) >= s.pool.limit {
			if !s.pool.evictOldestLocked() {
				break
			}
		}

		file, err := s.pool.fsys.Open(s.path)
		if err != nil {
			return fmt.Errorf("opening %s: %w", s.path, err)
		}
		if s.offset > 0 {
			if _, err := file.Seek(s.offset, io.SeekStart); err != nil {
				file.Close()
				return fmt.Errorf("seeking %s: %w", s.path, err)
			}
		}
		s.file = file
		s.pool.open = append(s.pool.open, s)
	}
	s.pinned = true
	return nil
}

func (s *stream) unpin() {
	s.pool.mu.Lock()
	s.pinned = false
	s.pool.mu.Unlock()
}

// evictOldestLocked suspends the least recently opened unpinned
// stream. Returns false when every open stream is pinned.
func (p *pool) evictOldestLocked() bool {
	for i, candidate := range p.open {
		if candidate.pinned {
			continue
		}
		candidate.file.Close()
		candidate.file = nil
		p.open = append(p.open[:i], p.open[i+1:]...)
		return true
	}
	return false
}

// close releases the stream's handle if open.
func (s *stream) close() {
	s.pool.mu.Lock()
	defer s.pool.mu.Unlock()
	if s.file == nil {
		return
	}
	s.file.Close()
	s.file = nil
	for i, open := range s.pool.open {
		if open == s {
			s.pool.open = append(s.pool.open[:i], s.pool.open[i+1:]...)
			break
		}
	}
}
