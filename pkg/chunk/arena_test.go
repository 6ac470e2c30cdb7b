// pkg/chunk/arena_test.go

package chunk

import (
	"sync"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestArena_Allocate(t *testing.T) {
	t.Run("default chunk size", func(t *testing.T) {
		a := NewArena(Config{})
		defer a.Close()
		assert.Equal(t, DefaultChunkSize, a.ChunkSize())
	})

	t.Run("zero filled", func(t *testing.T) {
		a := NewArena(Config{ChunkSize: 16})
		defer a.Close()

		h, err := a.Allocate()
		require.NoError(t, err)
		assert.NotZero(t, h)
		buf := a.Bytes(h)
		require.Len(t, buf, 16)
		for i, b := range buf {
			assert.Zerof(t, b, "byte %d", i)
		}
		assert.Equal(t, 1, a.Live())
	})

	t.Run("distinct handles", func(t *testing.T) {
		a := NewArena(Config{ChunkSize: 8})
		defer a.Close()

		seen := make(map[Handle]bool)
		for i := 0; i < 100; i++ {
			h, err := a.Allocate()
			require.NoError(t, err)
			require.False(t, seen[h], "handle %d handed out twice", h)
			seen[h] = true
		}
		assert.Equal(t, 100, a.Live())
	})
}

func TestArena_Free(t *testing.T) {
	t.Run("double free is rejected", func(t *testing.T) {
		a := NewArena(Config{ChunkSize: 8})
		defer a.Close()

		h, err := a.Allocate()
		require.NoError(t, err)
		require.NoError(t, a.Free(h))
		assert.Equal(t, 0, a.Live())

		err = a.Free(h)
		assert.True(t, errors.Is(err, ErrInvalidHandle))
		assert.Equal(t, int64(1), a.Stats().Freed)
		assert.Nil(t, a.Bytes(h))
	})

	t.Run("unknown handles", func(t *testing.T) {
		a := NewArena(Config{ChunkSize: 8})
		defer a.Close()
		assert.True(t, errors.Is(a.Free(0), ErrInvalidHandle))
		assert.True(t, errors.Is(a.Free(42), ErrInvalidHandle))
	})

	t.Run("reused buffers are zeroed", func(t *testing.T) {
		a := NewArena(Config{ChunkSize: 8, CacheSize: 64})
		defer a.Close()

		h, err := a.Allocate()
		require.NoError(t, err)
		copy(a.Bytes(h), "dirtydat")
		require.NoError(t, a.Free(h))

		h2, err := a.Allocate()
		require.NoError(t, err)
		assert.Equal(t, make([]byte, 8), a.Bytes(h2))
		assert.Equal(t, int64(1), a.Stats().Recycled)
	})
}

func TestArena_Limits(t *testing.T) {
	t.Run("memory limit", func(t *testing.T) {
		a := NewArena(Config{ChunkSize: 16, MemoryLimit: 32})
		defer a.Close()

		_, err := a.Allocate()
		require.NoError(t, err)
		h, err := a.Allocate()
		require.NoError(t, err)

		_, err = a.Allocate()
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrAllocationFailure))
		assert.Equal(t, int64(32), a.Stats().UsedMemory)

		require.NoError(t, a.Free(h))
		_, err = a.Allocate()
		assert.NoError(t, err)
	})

	t.Run("chunk limit", func(t *testing.T) {
		a := NewArena(Config{ChunkSize: 16, MaxChunks: 1})
		defer a.Close()

		_, err := a.Allocate()
		require.NoError(t, err)
		_, err = a.Allocate()
		assert.True(t, errors.Is(err, ErrAllocationFailure))
		assert.Equal(t, 1, a.Live())
	})
}

func TestArena_Close(t *testing.T) {
	a := NewArena(Config{ChunkSize: 8, CacheSize: 16})
	for i := 0; i < 5; i++ {
		_, err := a.Allocate()
		require.NoError(t, err)
	}
	assert.Equal(t, 5, a.Close())
	assert.Equal(t, 0, a.Live())
	assert.Equal(t, int64(0), a.Stats().UsedMemory)
	assert.Equal(t, 0, a.Close())
}

func TestArena_Concurrent(t *testing.T) {
	a := NewArena(Config{ChunkSize: 32, CacheSize: 1 << 10})
	defer a.Close()

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				h, err := a.Allocate()
				if err != nil {
					t.Error(err)
					return
				}
				if err := a.Free(h); err != nil {
					t.Error(err)
					return
				}
			}
		}()
	}
	wg.Wait()

	st := a.Stats()
	assert.Equal(t, int64(0), st.Live)
	assert.Equal(t, st.Allocated, st.Freed)
}
