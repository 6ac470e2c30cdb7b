// pkg/chunk/chunk.go

package chunk

import (
	"ChunkFS/pkg/utils"

	"github.com/pkg/errors"
)

var logger = utils.GetLogger("chunkfs")

// DefaultChunkSize is the capacity of a chunk when none is configured.
const DefaultChunkSize = 4096

var (
	// ErrAllocationFailure is returned when a chunk can not be allocated.
	ErrAllocationFailure = errors.New("chunk: allocation failure")
	// ErrInvalidHandle is returned when freeing or resolving a handle that is not live.
	ErrInvalidHandle = errors.New("chunk: invalid handle")
)

// Handle addresses a chunk inside an Allocator. The zero Handle is never allocated.
type Handle uint64

// Allocator hands out zero-filled fixed-capacity chunks.
type Allocator interface {
	Allocate() (Handle, error)
	Free(h Handle) error
	Bytes(h Handle) []byte
	ChunkSize() int
	Stats() Stats
}

// Config for the chunk arena.
type Config struct {
	ChunkSize   int   // capacity of every chunk in bytes
	MaxChunks   int   // 0 means unlimited
	MemoryLimit int64 // bytes, 0 means unlimited
	CacheSize   int64 // bytes of freed chunks kept for reuse
}

// Check fills defaults.
func (c *Config) Check() {
	if c.ChunkSize <= 0 {
		c.ChunkSize = DefaultChunkSize
	}
	if c.MaxChunks < 0 {
		c.MaxChunks = 0
	}
	if c.MemoryLimit < 0 {
		c.MemoryLimit = 0
	}
	if c.CacheSize < 0 {
		c.CacheSize = 0
	}
}

// Stats is a snapshot of allocator counters.
type Stats struct {
	ChunkSize   int   `json:"chunkSize"`
	Live        int64 `json:"live"`
	Allocated   int64 `json:"allocated"`
	Freed       int64 `json:"freed"`
	Recycled    int64 `json:"recycled"`
	Cached      int64 `json:"cached"`
	UsedMemory  int64 `json:"usedMemory"`
	MemoryLimit int64 `json:"memoryLimit"`
}
