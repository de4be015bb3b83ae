// Package compare partitions same-size files into byte-equality
// classes. Equality is proven by comparing the files' bytes directly;
// content hashes only pre-sort chunks within a round and never decide
// equivalence on their own.
package compare

import (
	"bytes"
	"context"
	"errors"
	"sync"

	"github.com/cespare/xxhash/v2"
	"github.com/spf13/afero"
	"golang.org/x/sync/semaphore"

	"github.com/dupescan/dupescan/internal/fsentry"
)

// MinBufferSize is the floor on per-file read buffers. Groups too
// large for every member to hold a buffer this size within the memory
// budget are compared in waves against a reference member instead.
const MinBufferSize = 4096

// Defaults applied by New when the corresponding Config field is zero.
const (
	DefaultMaxMemory     = 256 << 20
	DefaultMaxBufferSize = 1 << 20
	DefaultMaxOpenFiles  = 64
)

// ErrShortRead reports a file that ran out of bytes before its
// recorded size, meaning it changed after it was scanned.
var ErrShortRead = errors.New("file shorter than recorded size")

// Config adjusts resource limits and observation hooks.
type Config struct {
	// MaxMemory bounds the total bytes of comparison buffers alive at
	// any instant while a group is compared.
	MaxMemory int64

	// MaxBufferSize bounds the per-file read buffer.
	MaxBufferSize int64

	// MaxOpenFiles bounds simultaneously open handles; wider
	// sub-groups suspend and resume handles transparently.
	MaxOpenFiles int

	// OnError receives candidates ejected by read failures. The
	// remaining candidates continue. May be nil.
	OnError func(path string, err error)

	// Logf, when set, receives verbose diagnostics.
	Logf func(format string, args ...any)

	// Cancel, when set, is consulted before each sub-group round with
	// the candidates still undifferentiated in that sub-group.
	// Returning true abandons the sub-group.
	Cancel func(undecided []*fsentry.Instance) bool

	// Progress, when set, is called after each round with the sizes
	// of the sub-groups still in flight and the current offset.
	Progress func(subgroupSizes []int, offset, total int64)
}

// Partitioner computes byte-equality classes within size buckets.
type Partitioner struct {
	fsys afero.Fs
	cfg  Config
}

// New creates a Partitioner over the given filesystem, filling unset
// limits with defaults.
func New(fsys afero.Fs, cfg Config) *Partitioner {
	if cfg.MaxMemory <= 0 {
		cfg.MaxMemory = DefaultMaxMemory
	}
	if cfg.MaxBufferSize <= 0 {
		cfg.MaxBufferSize = DefaultMaxBufferSize
	}
	if cfg.MaxBufferSize < MinBufferSize {
		cfg.MaxBufferSize = MinBufferSize
	}
	if cfg.MaxOpenFiles <= 0 {
		cfg.MaxOpenFiles = DefaultMaxOpenFiles
	}
	if cfg.MaxMemory < MinBufferSize {
		cfg.MaxMemory = MinBufferSize
	}
	return &Partitioner{fsys: fsys, cfg: cfg}
}

type member struct {
	inst   *fsentry.Instance
	stream *stream
}

type subgroup struct {
	members []*member
	offset  int64
}

type roundStats struct {
	bytesRead int64
	completed int
	earlyOut  int
	canceled  int
	ejected   int
}

// Partition emits the byte-equality classes among instances of a
// common size. With emitAll set, classes of a single instance are
// emitted too (correlate mode); otherwise a class must hold two or
// more instances, or one instance known by several names.
//
// Each file is read sequentially and, outside the wave fallback, at
// most once end-to-end. Every file handle is closed before Partition
// returns.
func (p *Partitioner) Partition(size int64, instances []*fsentry.Instance, emitAll bool, emit func([]*fsentry.Instance)) {
	if len(instances) == 0 {
		return
	}

	// Zero-length files are all trivially equal, and a lone instance
	// has nothing to be compared against.
	if size == 0 {
		p.emitClass(instances, emitAll, emit)
		return
	}
	if len(instances) == 1 {
		p.emitClass(instances, emitAll, emit)
		return
	}

	if int64(len(instances))*MinBufferSize > p.cfg.MaxMemory {
		p.logf("[COMPARE] %d files of %d bytes exceed memory budget, using wave comparison", len(instances), size)
		p.partitionWaves(size, instances, emitAll, emit)
		return
	}

	pool := newPool(p.fsys, p.cfg.MaxOpenFiles)
	var stats roundStats

	initial := &subgroup{members: make([]*member, 0, len(instances))}
	for _, inst := range instances {
		initial.members = append(initial.members, &member{
			inst:   inst,
			stream: pool.stream(inst.Primary().Path),
		})
	}

	stack := []*subgroup{initial}
	for len(stack) > 0 {
		g := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if p.cfg.Cancel != nil && p.cfg.Cancel(memberInstances(g.members)) {
			stats.canceled++
			closeMembers(g.members)
			continue
		}

		stack = p.runRound(size, g, stack, pool, emitAll, emit, &stats)

		if p.cfg.Progress != nil {
			counts := make([]int, 0, len(stack))
			for _, s := range stack {
				counts = append(counts, len(s.members))
			}
			p.cfg.Progress(counts, g.offset, size)
		}
	}

	p.logf("[COMPARE] size=%d bytes_read=%d completed=%d early_out=%d canceled=%d ejected=%d",
		size, stats.bytesRead, stats.completed, stats.earlyOut, stats.canceled, stats.ejected)
}

// runRound advances every member of g by one buffer, splits g by the
// bytes read, and pushes unresolved splits back on the stack.
func (p *Partitioner) runRound(size int64, g *subgroup, stack []*subgroup, pool *pool, emitAll bool, emit func([]*fsentry.Instance), stats *roundStats) []*subgroup {
	bufSize := p.roundBufferSize(len(g.members), g.offset)
	want := bufSize
	if remaining := size - g.offset; remaining < want {
		want = remaining
	}

	handleBudget := int(p.cfg.MaxMemory / bufSize)
	if handleBudget > p.cfg.MaxOpenFiles {
		handleBudget = p.cfg.MaxOpenFiles
	}
	if handleBudget < 1 {
		handleBudget = 1
	}
	pool.setLimit(handleBudget)

	chunks, readErrs := p.readRound(g.members, want, handleBudget)

	// Split members by chunk content. Chunks bucket by hash first;
	// equality within a hash bucket is decided on the bytes.
	type bucket struct {
		chunk   []byte
		members []*member
	}
	var buckets []*bucket
	byHash := make(map[uint64][]int)

	for i, m := range g.members {
		if readErrs[i] != nil {
			stats.ejected++
			p.reportError(m.inst.Primary().Path, readErrs[i])
			m.stream.close()
			continue
		}
		stats.bytesRead += int64(len(chunks[i]))

		h := xxhash.Sum64(chunks[i])
		placed := false
		for _, bi := range byHash[h] {
			if bytes.Equal(buckets[bi].chunk, chunks[i]) {
				buckets[bi].members = append(buckets[bi].members, m)
				placed = true
				break
			}
		}
		if !placed {
			buckets = append(buckets, &bucket{chunk: chunks[i], members: []*member{m}})
			byHash[h] = append(byHash[h], len(buckets)-1)
		}
	}

	nextOffset := g.offset + want
	for _, b := range buckets {
		switch {
		case nextOffset == size:
			stats.completed++
			p.emitClass(memberInstances(b.members), emitAll, emit)
			closeMembers(b.members)

		case len(b.members) == 1 && b.members[0].inst.NameCount() == 1 && !emitAll:
			// Diverged from everything else; cannot be a duplicate.
			stats.earlyOut++
			closeMembers(b.members)

		case len(b.members) == 1:
			// A lone survivor is a complete content class already;
			// there is nothing left to compare it against.
			stats.earlyOut++
			p.emitClass(memberInstances(b.members), emitAll, emit)
			closeMembers(b.members)

		default:
			stack = append(stack, &subgroup{members: b.members, offset: nextOffset})
		}
	}
	return stack
}

// readRound reads want bytes from every member concurrently, bounded
// by the handle budget. Results are positional, so downstream
// processing is deterministic regardless of scheduling.
func (p *Partitioner) readRound(members []*member, want int64, bound int) ([][]byte, []error) {
	chunks := make([][]byte, len(members))
	errs := make([]error, len(members))

	sem := semaphore.NewWeighted(int64(bound))
	ctx := context.Background()
	var wg sync.WaitGroup
	for i, m := range members {
		wg.Add(1)
		go func(i int, m *member) {
			defer wg.Done()
			if err := sem.Acquire(ctx, 1); err != nil {
				errs[i] = err
				return
			}
			defer sem.Release(1)

			buf := make([]byte, want)
			if err := m.stream.readChunk(buf); err != nil {
				errs[i] = err
				return
			}
			chunks[i] = buf
		}(i, m)
	}
	wg.Wait()
	return chunks, errs
}

// roundBufferSize picks the per-file buffer for a round: the largest
// power of two that lets every member hold a buffer within the memory
// budget, clamped to [MinBufferSize, MaxBufferSize]. The first round
// always reads MinBufferSize so that groups differing near the start
// split before any large buffers are committed.
func (p *Partitioner) roundBufferSize(n int, offset int64) int64 {
	if offset == 0 {
		return MinBufferSize
	}
	b := p.cfg.MaxMemory / int64(n)
	b = floorPow2(b)
	if b > p.cfg.MaxBufferSize {
		b = p.cfg.MaxBufferSize
	}
	if b < MinBufferSize {
		b = MinBufferSize
	}
	return b
}

func floorPow2(n int64) int64 {
	p := int64(1)
	for p <= n/2 {
		p *= 2
	}
	return p
}

// partitionWaves handles groups too wide for synchronous comparison:
// a reference member streams once per wave while a memory-budget's
// worth of companions compare against it; companions that diverge are
// set aside and recompared under the next reference.
func (p *Partitioner) partitionWaves(size int64, instances []*fsentry.Instance, emitAll bool, emit func([]*fsentry.Instance)) {
	companionsPerWave := int(p.cfg.MaxMemory/MinBufferSize) - 1
	if companionsPerWave > p.cfg.MaxOpenFiles-1 {
		companionsPerWave = p.cfg.MaxOpenFiles - 1
	}
	if companionsPerWave < 1 {
		companionsPerWave = 1
	}

	remaining := instances
	for len(remaining) > 0 {
		ref := remaining[0]
		rest := remaining[1:]
		equal := []*fsentry.Instance{ref}
		var leftover []*fsentry.Instance

		for start := 0; start < len(rest); start += companionsPerWave {
			end := start + companionsPerWave
			if end > len(rest) {
				end = len(rest)
			}
			survivors, dropped := p.compareAgainstReference(size, ref, rest[start:end])
			equal = append(equal, survivors...)
			leftover = append(leftover, dropped...)
		}

		p.emitClass(equal, emitAll, emit)
		remaining = leftover
	}
}

// compareAgainstReference streams ref and the wave's companions in
// lockstep. It returns the companions bytewise equal to ref and the
// companions that diverged (to be re-grouped under a later
// reference); read failures eject the companion entirely. A read
// failure on the reference aborts the wave and sends every companion
// to the divergent pile.
func (p *Partitioner) compareAgainstReference(size int64, ref *fsentry.Instance, wave []*fsentry.Instance) (survivors, divergent []*fsentry.Instance) {
	pool := newPool(p.fsys, len(wave)+1)
	refStream := pool.stream(ref.Primary().Path)
	defer refStream.close()

	type companion struct {
		inst   *fsentry.Instance
		stream *stream
	}
	alive := make([]*companion, 0, len(wave))
	for _, inst := range wave {
		alive = append(alive, &companion{inst: inst, stream: pool.stream(inst.Primary().Path)})
	}
	defer func() {
		for _, c := range alive {
			c.stream.close()
		}
	}()

	refBuf := make([]byte, MinBufferSize)
	chunkBuf := make([]byte, MinBufferSize)

	for offset := int64(0); offset < size && len(alive) > 0; {
		want := int64(MinBufferSize)
		if remaining := size - offset; remaining < want {
			want = remaining
		}

		if err := refStream.readChunk(refBuf[:want]); err != nil {
			p.reportError(ref.Primary().Path, err)
			for _, c := range alive {
				divergent = append(divergent, c.inst)
			}
			return nil, divergent
		}

		next := alive[:0]
		for _, c := range alive {
			if err := c.stream.readChunk(chunkBuf[:want]); err != nil {
				p.reportError(c.inst.Primary().Path, err)
				c.stream.close()
				continue
			}
			if !bytes.Equal(refBuf[:want], chunkBuf[:want]) {
				divergent = append(divergent, c.inst)
				c.stream.close()
				continue
			}
			next = append(next, c)
		}
		alive = next
		offset += want
	}

	for _, c := range alive {
		survivors = append(survivors, c.inst)
	}
	return survivors, divergent
}

// emitClass applies the interest filter: every class in correlate
// mode, otherwise only classes that amount to duplicates or to a
// single file with several names.
func (p *Partitioner) emitClass(insts []*fsentry.Instance, emitAll bool, emit func([]*fsentry.Instance)) {
	if len(insts) == 0 {
		return
	}
	if emitAll || len(insts) > 1 || insts[0].NameCount() > 1 {
		emit(insts)
	}
}

func (p *Partitioner) reportError(path string, err error) {
	p.logf("[COMPARE] ejecting %s: %v", path, err)
	if p.cfg.OnError != nil {
		p.cfg.OnError(path, err)
	}
}

func (p *Partitioner) logf(format string, args ...any) {
	if p.cfg.Logf != nil {
		p.cfg.Logf(format, args...)
	}
}

func memberInstances(members []*member) []*fsentry.Instance {
	insts := make([]*fsentry.Instance, 0, len(members))
	for _, m := range members {
		insts = append(insts, m.inst)
	}
	return insts
}

func closeMembers(members []*member) {
	for _, m := range members {
		m.stream.close()
	}
}
