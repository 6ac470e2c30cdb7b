// pkg/chunk/arena.go

package chunk

import (
	"sync"

	"github.com/bits-and-blooms/bitset"
	"github.com/pkg/errors"
)

// Arena owns every chunk of a store. Chunks are addressed by Handle, a live
// bit per handle guarantees a chunk is released at most once.
type Arena struct {
	sync.Mutex
	conf   Config
	pages  []*Page // pages[h-1]
	live   *bitset.BitSet
	idle   []Handle // freed handles ready for reuse
	cache  *memCache
	budget *budget

	allocated int64
	freed     int64
	recycled  int64
}

var _ Allocator = (*Arena)(nil)

// NewArena creates an arena handing out chunks of conf.ChunkSize bytes.
func NewArena(conf Config) *Arena {
	conf.Check()
	return &Arena{
		conf:   conf,
		live:   bitset.New(64),
		cache:  newMemCache(conf.CacheSize),
		budget: newBudget(conf.MemoryLimit),
	}
}

func (a *Arena) ChunkSize() int {
	return a.conf.ChunkSize
}

// Allocate returns the handle of a new zero-filled chunk.
func (a *Arena) Allocate() (Handle, error) {
	a.Lock()
	defer a.Unlock()

	if a.conf.MaxChunks > 0 && a.live.Count() >= uint(a.conf.MaxChunks) {
		return 0, errors.Wrapf(ErrAllocationFailure, "%d chunks in use", a.conf.MaxChunks)
	}
	size := int64(a.conf.ChunkSize)
	if !a.budget.acquire(size) {
		return 0, errors.Wrapf(ErrAllocationFailure, "memory limit %d reached", a.conf.MemoryLimit)
	}

	p := a.cache.get(a.conf.ChunkSize)
	if p != nil {
		a.recycled++
	} else {
		p = NewPage(a.conf.ChunkSize)
	}

	var h Handle
	if n := len(a.idle); n > 0 {
		h = a.idle[n-1]
		a.idle = a.idle[:n-1]
		a.pages[h-1] = p
	} else {
		a.pages = append(a.pages, p)
		h = Handle(len(a.pages))
	}
	a.live.Set(uint(h))
	a.allocated++
	return h, nil
}

// Free releases the chunk behind h. Freeing a handle that is not live fails
// with ErrInvalidHandle and leaves the arena untouched.
func (a *Arena) Free(h Handle) error {
	a.Lock()
	defer a.Unlock()
	return a.free(h)
}

// locked
func (a *Arena) free(h Handle) error {
	if h == 0 || int(h) > len(a.pages) || !a.live.Test(uint(h)) {
		return errors.Wrapf(ErrInvalidHandle, "free %d", h)
	}
	p := a.pages[h-1]
	a.pages[h-1] = nil
	a.live.Clear(uint(h))
	a.idle = append(a.idle, h)
	a.freed++
	a.budget.release(int64(a.conf.ChunkSize))
	if !a.cache.put(p) {
		p.Release()
	}
	return nil
}

// Bytes returns the buffer of a live chunk, or nil for any other handle.
func (a *Arena) Bytes(h Handle) []byte {
	a.Lock()
	defer a.Unlock()
	if h == 0 || int(h) > len(a.pages) || !a.live.Test(uint(h)) {
		return nil
	}
	return a.pages[h-1].Data
}

// Live returns the number of chunks allocated and not yet freed.
func (a *Arena) Live() int {
	a.Lock()
	defer a.Unlock()
	return int(a.live.Count())
}

func (a *Arena) Stats() Stats {
	a.Lock()
	defer a.Unlock()
	cached, _ := a.cache.stats()
	return Stats{
		ChunkSize:   a.conf.ChunkSize,
		Live:        int64(a.live.Count()),
		Allocated:   a.allocated,
		Freed:       a.freed,
		Recycled:    a.recycled,
		Cached:      cached,
		UsedMemory:  a.budget.usage(),
		MemoryLimit: a.conf.MemoryLimit,
	}
}

// Close frees every live chunk and drops the reuse cache. It returns the
// number of chunks that were still live.
func (a *Arena) Close() int {
	a.Lock()
	defer a.Unlock()
	var n int
	for i, ok := a.live.NextSet(1); ok; i, ok = a.live.NextSet(i + 1) {
		if err := a.free(Handle(i)); err != nil {
			logger.Errorf("free chunk %d: %s", i, err)
			continue
		}
		n++
	}
	a.cache.drain()
	a.pages = nil
	a.idle = nil
	return n
}
