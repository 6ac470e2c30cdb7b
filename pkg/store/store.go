// pkg/store/store.go

package store

import (
	"math"
	"sync"

	"ChunkFS/pkg/chunk"
	"ChunkFS/pkg/utils"

	"github.com/pkg/errors"
)

var logger = utils.GetLogger("chunkfs")

// DefaultQset is the number of chunk slots per segment when none is configured.
// A qset of 1 makes the chain a plain list of chunks.
const DefaultQset = 1

// Config for a Store.
type Config struct {
	Qset        int // chunk slots per segment
	MaxSegments int // 0 means unlimited
}

// Check fills defaults.
func (c *Config) Check() {
	if c.Qset <= 0 {
		c.Qset = DefaultQset
	}
	if c.MaxSegments < 0 {
		c.MaxSegments = 0
	}
}

// Store is a byte stream kept in fixed-size chunks. Mutations are serialized
// by the write lock, reads share the read lock.
//
// The valid bytes end in the tail chunk: length == tail*quantum + fill, with
// 0 < fill <= quantum whenever length > 0. Every chunk before the tail is
// allocated. Chunks after the tail are garbage left by a truncation until
// Reclaim frees them.
type Store struct {
	sync.RWMutex
	alloc   chunk.Allocator
	index   *Index
	quantum int64
	qset    int64

	length int64
	tail   int64 // chunk number holding the last valid byte
	fill   int64 // valid bytes in the tail chunk
	closed bool
}

// New creates an empty store allocating its chunks from alloc.
func New(alloc chunk.Allocator, conf Config) *Store {
	conf.Check()
	q := alloc.ChunkSize()
	return &Store{
		alloc:   alloc,
		index:   NewIndex(q, conf.Qset, conf.MaxSegments),
		quantum: int64(q),
		qset:    int64(conf.Qset),
	}
}

// Quantum returns the chunk size.
func (s *Store) Quantum() int {
	return int(s.quantum)
}

// Qset returns the number of chunk slots per segment.
func (s *Store) Qset() int {
	return int(s.qset)
}

// Translate maps off to its position in the chain.
func (s *Store) Translate(off int64) Address {
	return s.index.Translate(off)
}

// Length returns the logical length in bytes.
func (s *Store) Length() int64 {
	s.RLock()
	defer s.RUnlock()
	return s.length
}

// locked
func (s *Store) setLength(n int64) {
	s.length = n
	if n == 0 {
		s.tail, s.fill = 0, 0
		return
	}
	s.tail = (n - 1) / s.quantum
	s.fill = n - s.tail*s.quantum
}

// clamp limits n so that [off, off+n) stays inside one chunk.
func (s *Store) clamp(off int64, n int) int {
	if rest := s.quantum - off%s.quantum; int64(n) > rest {
		return int(rest)
	}
	return n
}

// EnsureWritable makes sure the chunk holding off exists, together with every
// chunk between the tail and it, so that a write of n bytes at off can be
// copied in. n is clamped to the chunk boundary.
func (s *Store) EnsureWritable(off int64, n int) error {
	if off < 0 {
		return errors.Wrapf(ErrInvalidOffset, "offset %d", off)
	}
	s.Lock()
	defer s.Unlock()
	if s.closed {
		return ErrClosed
	}
	n = s.clamp(off, n)
	if n > 0 && off > math.MaxInt64-int64(n) {
		return errors.Wrapf(ErrInvalidOffset, "write %d bytes at %d", n, off)
	}
	return s.ensureWritable(off, n)
}

// locked
func (s *Store) ensureWritable(off int64, n int) error {
	if n <= 0 {
		return nil
	}
	last := off / s.quantum
	var stale []int64 // chunks that existed before this call and may hold old bytes
	for idx := s.tail; idx <= last; idx++ {
		segno, slot := s.index.position(idx)
		seg, err := s.index.Walk(segno)
		if err != nil {
			return err
		}
		if seg.Slots[slot] != 0 {
			stale = append(stale, idx)
			continue
		}
		h, err := s.alloc.Allocate()
		if err != nil {
			return errors.Wrapf(err, "allocate chunk %d", idx)
		}
		seg.Slots[slot] = h
	}
	if off > s.length {
		// a sparse write: the hole must read as zero even where a chunk
		// still carries bytes from before a truncation
		for _, idx := range stale {
			s.zero(idx, s.length, off)
		}
	}
	return nil
}

// zero clears the part of chunk idx that falls in [from, to).
func (s *Store) zero(idx, from, to int64) {
	start, end := idx*s.quantum, (idx+1)*s.quantum
	if from > start {
		start = from
	}
	if to < end {
		end = to
	}
	if start >= end {
		return
	}
	buf := s.alloc.Bytes(s.index.Chunk(idx))
	if buf == nil {
		return
	}
	base := idx * s.quantum
	clear(buf[start-base : end-base])
}

// WriteAt copies src at off through t, never crossing a chunk boundary. It
// returns the number of bytes written; on error nothing visible has changed.
func (s *Store) WriteAt(off int64, src []byte, t Transfer) (int, error) {
	if off < 0 {
		return 0, errors.Wrapf(ErrInvalidOffset, "offset %d", off)
	}
	s.Lock()
	defer s.Unlock()
	if s.closed {
		return 0, ErrClosed
	}
	n := s.clamp(off, len(src))
	if n == 0 {
		return 0, nil
	}
	if off > math.MaxInt64-int64(n) {
		return 0, errors.Wrapf(ErrInvalidOffset, "write %d bytes at %d", n, off)
	}
	if err := s.ensureWritable(off, n); err != nil {
		return 0, err
	}
	buf := s.alloc.Bytes(s.index.Chunk(off / s.quantum))
	if buf == nil {
		return 0, errors.Wrapf(ErrMissingChunk, "chunk %d", off/s.quantum)
	}
	within := off % s.quantum
	if err := t.CopyIn(buf[within:within+int64(n)], src[:n]); err != nil {
		return 0, errors.Wrapf(ErrCopyFault, "write %d bytes at %d: %s", n, off, err)
	}
	if end := off + int64(n); end > s.length {
		s.setLength(end)
	}
	return n, nil
}

// ReadAt copies valid bytes at off into dst through t, never crossing a chunk
// boundary nor the logical end. Reading at or past the end returns 0, nil.
func (s *Store) ReadAt(off int64, dst []byte, t Transfer) (int, error) {
	if off < 0 {
		return 0, errors.Wrapf(ErrInvalidOffset, "offset %d", off)
	}
	s.RLock()
	defer s.RUnlock()
	if s.closed {
		return 0, ErrClosed
	}
	if off >= s.length || len(dst) == 0 {
		return 0, nil
	}
	n := int64(s.clamp(off, len(dst)))
	if rest := s.length - off; n > rest {
		n = rest
	}
	idx := off / s.quantum
	buf := s.alloc.Bytes(s.index.Chunk(idx))
	if buf == nil {
		logger.Errorf("chunk %d before the tail %d is missing", idx, s.tail)
		return 0, errors.Wrapf(ErrMissingChunk, "chunk %d", idx)
	}
	within := off % s.quantum
	if err := t.CopyOut(dst[:n], buf[within:within+n]); err != nil {
		return 0, errors.Wrapf(ErrCopyFault, "read %d bytes at %d: %s", n, off, err)
	}
	return int(n), nil
}

// TruncateAt shrinks the logical length to n. Chunks after the new tail are
// left in place as garbage until Reclaim.
func (s *Store) TruncateAt(n int64) error {
	s.Lock()
	defer s.Unlock()
	if s.closed {
		return ErrClosed
	}
	if n < 0 || n > s.length {
		return errors.Wrapf(ErrInvalidLength, "truncate %d bytes to %d", s.length, n)
	}
	s.setLength(n)
	return nil
}

// Reclaim frees every chunk after the tail chunk and drops the segments
// after the tail segment. It returns the number of chunks freed.
func (s *Store) Reclaim() int {
	s.Lock()
	defer s.Unlock()
	if s.closed {
		return 0
	}
	var freed int
	for idx := s.tail + 1; idx < s.index.chunks(); idx++ {
		h := s.index.detach(idx)
		if h == 0 {
			continue
		}
		if err := s.alloc.Free(h); err != nil {
			logger.Errorf("reclaim chunk %d: %s", idx, err)
			continue
		}
		freed++
	}
	segs := s.index.truncate(s.tail / s.qset)
	if freed > 0 || segs > 0 {
		logger.Debugf("reclaimed %d chunks and %d segments after chunk %d", freed, segs, s.tail)
	}
	return freed
}

// Close frees every chunk of the store. The store can not be used afterwards.
func (s *Store) Close() int {
	s.Lock()
	defer s.Unlock()
	if s.closed {
		return 0
	}
	var freed int
	for idx := int64(0); idx < s.index.chunks(); idx++ {
		if h := s.index.detach(idx); h != 0 {
			if err := s.alloc.Free(h); err != nil {
				logger.Errorf("free chunk %d: %s", idx, err)
				continue
			}
			freed++
		}
	}
	s.index.truncate(-1)
	s.setLength(0)
	s.closed = true
	return freed
}

// Stats is a snapshot of the store layout.
type Stats struct {
	Quantum  int   `json:"quantum"`
	Qset     int   `json:"qset"`
	Length   int64 `json:"length"`
	Tail     int64 `json:"tail"`
	TailFill int64 `json:"tailFill"`
	Segments int   `json:"segments"`
	Chunks   int64 `json:"chunks"`
	Garbage  int64 `json:"garbage"`
}

func (s *Store) Stats() Stats {
	s.RLock()
	defer s.RUnlock()
	st := Stats{
		Quantum:  int(s.quantum),
		Qset:     int(s.qset),
		Length:   s.length,
		Tail:     s.tail,
		TailFill: s.fill,
		Segments: s.index.Len(),
	}
	for idx := int64(0); idx < s.index.chunks(); idx++ {
		if s.index.Chunk(idx) == 0 {
			continue
		}
		st.Chunks++
		if idx > s.tail {
			st.Garbage++
		}
	}
	return st
}
