// pkg/store/engine.go

package store

import (
	"sync/atomic"

	"github.com/pkg/errors"
)

// Engine binds a Store to the Transfer used by the device glue and keeps the
// I/O counters. ReadAt and WriteAt move at most one chunk per call; ReadFull
// and WriteFull repeat them for requests spanning several chunks.
type Engine struct {
	store    *Store
	transfer Transfer

	reads        atomic.Int64
	writes       atomic.Int64
	readBytes    atomic.Int64
	writtenBytes atomic.Int64
	faults       atomic.Int64
}

// NewEngine creates an engine over s. A nil transfer copies directly.
func NewEngine(s *Store, t Transfer) *Engine {
	if t == nil {
		t = Direct
	}
	return &Engine{store: s, transfer: t}
}

// ReadAt reads at most one chunk worth of valid bytes at off. 0, nil means
// end of data.
func (e *Engine) ReadAt(dst []byte, off int64) (int, error) {
	n, err := e.store.ReadAt(off, dst, e.transfer)
	e.account(&e.reads, &e.readBytes, n, err)
	return n, err
}

// WriteAt writes at most one chunk worth of src at off.
func (e *Engine) WriteAt(src []byte, off int64) (int, error) {
	n, err := e.store.WriteAt(off, src, e.transfer)
	e.account(&e.writes, &e.writtenBytes, n, err)
	return n, err
}

func (e *Engine) account(ops, bytes *atomic.Int64, n int, err error) {
	ops.Add(1)
	bytes.Add(int64(n))
	if errors.Is(err, ErrCopyFault) {
		e.faults.Add(1)
	}
}

// ReadFull reads until dst is full or the end of data is reached.
func (e *Engine) ReadFull(dst []byte, off int64) (int, error) {
	var total int
	for total < len(dst) {
		n, err := e.ReadAt(dst[total:], off+int64(total))
		total += n
		if err != nil {
			return total, err
		}
		if n == 0 {
			break
		}
	}
	return total, nil
}

// WriteFull writes all of src starting at off. On error it returns the bytes
// written before the failing chunk.
func (e *Engine) WriteFull(src []byte, off int64) (int, error) {
	var total int
	for total < len(src) {
		n, err := e.WriteAt(src[total:], off+int64(total))
		total += n
		if err != nil {
			return total, err
		}
		if n == 0 {
			return total, errors.Errorf("no progress writing at %d", off+int64(total))
		}
	}
	return total, nil
}

// Counters is a snapshot of the engine I/O counters.
type Counters struct {
	Reads        int64 `json:"reads"`
	Writes       int64 `json:"writes"`
	ReadBytes    int64 `json:"readBytes"`
	WrittenBytes int64 `json:"writtenBytes"`
	Faults       int64 `json:"faults"`
}

func (e *Engine) Counters() Counters {
	return Counters{
		Reads:        e.reads.Load(),
		Writes:       e.writes.Load(),
		ReadBytes:    e.readBytes.Load(),
		WrittenBytes: e.writtenBytes.Load(),
		Faults:       e.faults.Load(),
	}
}
