// pkg/store/index.go

package store

import (
	"ChunkFS/pkg/chunk"

	"github.com/pkg/errors"
)

// Address locates a byte inside the segment chain.
type Address struct {
	Segment int64 // position of the segment in the chain
	Slot    int   // chunk slot inside the segment
	Offset  int   // byte offset inside the chunk
}

// Segment groups qset chunk slots, a zero handle is an empty slot.
type Segment struct {
	Slots []chunk.Handle
}

// Index is the chain of segments. It only grows at the tail; segments are
// removed only from the tail, by reclamation.
type Index struct {
	quantum     int64
	qset        int64
	maxSegments int
	segments    []*Segment
}

// NewIndex creates an empty chain for chunks of quantum bytes grouped by qset.
// maxSegments bounds the chain length, 0 means unlimited.
func NewIndex(quantum, qset, maxSegments int) *Index {
	if quantum <= 0 || qset <= 0 {
		panic("quantum and qset should > 0")
	}
	return &Index{quantum: int64(quantum), qset: int64(qset), maxSegments: maxSegments}
}

// Translate maps a byte offset to its segment, slot and in-chunk offset.
func (x *Index) Translate(off int64) Address {
	return Address{
		Segment: off / (x.quantum * x.qset),
		Slot:    int((off / x.quantum) % x.qset),
		Offset:  int(off % x.quantum),
	}
}

// position splits a global chunk number into segment and slot.
func (x *Index) position(idx int64) (int64, int) {
	return idx / x.qset, int(idx % x.qset)
}

// Len returns the number of segments in the chain.
func (x *Index) Len() int {
	return len(x.segments)
}

// Segment returns the n-th segment, or nil if the chain is shorter.
func (x *Index) Segment(n int64) *Segment {
	if n < 0 || n >= int64(len(x.segments)) {
		return nil
	}
	return x.segments[n]
}

// Walk returns the n-th segment, appending empty segments one by one until
// the chain is long enough. On failure the chain keeps every segment appended
// so far.
func (x *Index) Walk(n int64) (*Segment, error) {
	if n < 0 {
		return nil, errors.Wrapf(ErrInvalidOffset, "segment %d", n)
	}
	for int64(len(x.segments)) <= n {
		if x.maxSegments > 0 && len(x.segments) >= x.maxSegments {
			return nil, errors.Wrapf(ErrAllocationFailure, "walk to segment %d: chain limited to %d segments", n, x.maxSegments)
		}
		x.segments = append(x.segments, &Segment{Slots: make([]chunk.Handle, x.qset)})
	}
	return x.segments[n], nil
}

// Chunk returns the handle stored for the global chunk number idx, 0 if none.
func (x *Index) Chunk(idx int64) chunk.Handle {
	seg, slot := x.position(idx)
	s := x.Segment(seg)
	if s == nil {
		return 0
	}
	return s.Slots[slot]
}

// detach clears the slot of chunk idx and returns what it held.
func (x *Index) detach(idx int64) chunk.Handle {
	seg, slot := x.position(idx)
	s := x.Segment(seg)
	if s == nil {
		return 0
	}
	h := s.Slots[slot]
	s.Slots[slot] = 0
	return h
}

// chunks returns how many chunk slots the chain has.
func (x *Index) chunks() int64 {
	return int64(len(x.segments)) * x.qset
}

// truncate drops every segment after the n-th. Their slots must be empty.
func (x *Index) truncate(n int64) int {
	keep := n + 1
	if keep < 0 {
		keep = 0
	}
	if keep >= int64(len(x.segments)) {
		return 0
	}
	dropped := len(x.segments) - int(keep)
	clear(x.segments[keep:])
	x.segments = x.segments[:keep]
	return dropped
}
