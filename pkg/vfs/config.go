// pkg/vfs/config.go

package vfs

import (
	"ChunkFS/pkg/chunk"
	"ChunkFS/pkg/store"
)

// Config for a device.
type Config struct {
	Name        string // name of the device node
	Quantum     int    // chunk size in bytes
	Qset        int    // chunks per segment, 1 is a flat chain
	MaxSegments int
	MaxChunks   int
	MemoryLimit int64 // bytes held by live chunks, 0 is unlimited
	CacheSize   int64 // bytes of freed chunks kept for reuse
	ReadLimit   int64 // bytes per second, 0 is unlimited
	WriteLimit  int64 // bytes per second, 0 is unlimited
}

const DefaultName = "chunk0"

// Check fills defaults.
func (c *Config) Check() {
	if c.Name == "" {
		c.Name = DefaultName
	}
	if c.Quantum <= 0 {
		c.Quantum = chunk.DefaultChunkSize
	}
	if c.Qset <= 0 {
		c.Qset = store.DefaultQset
	}
}

func (c *Config) chunkConfig() chunk.Config {
	return chunk.Config{
		ChunkSize:   c.Quantum,
		MaxChunks:   c.MaxChunks,
		MemoryLimit: c.MemoryLimit,
		CacheSize:   c.CacheSize,
	}
}

func (c *Config) storeConfig() store.Config {
	return store.Config{
		Qset:        c.Qset,
		MaxSegments: c.MaxSegments,
	}
}
