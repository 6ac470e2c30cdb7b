// pkg/store/store_test.go

package store

import (
	"bytes"
	"math"
	"sync"
	"testing"

	"ChunkFS/pkg/chunk"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T, quantum, qset int) (*Store, *chunk.Arena) {
	t.Helper()
	a := chunk.NewArena(chunk.Config{ChunkSize: quantum})
	s := New(a, Config{Qset: qset})
	t.Cleanup(func() {
		s.Close()
		a.Close()
	})
	return s, a
}

func readAll(t *testing.T, s *Store) []byte {
	t.Helper()
	buf := make([]byte, s.Length())
	n, err := NewEngine(s, nil).ReadFull(buf, 0)
	require.NoError(t, err)
	require.Equal(t, len(buf), n)
	return buf
}

type faultyTransfer struct{}

func (faultyTransfer) CopyIn(dst, src []byte) error  { return errors.New("bad address") }
func (faultyTransfer) CopyOut(dst, src []byte) error { return errors.New("bad address") }

func TestStore_RoundTrip(t *testing.T) {
	for _, qset := range []int{1, 2, 5} {
		s, _ := newTestStore(t, 4, qset)
		e := NewEngine(s, nil)
		data := []byte("the quick brown fox jumps over the lazy dog")

		n, err := e.WriteFull(data, 0)
		require.NoError(t, err)
		require.Equal(t, len(data), n)
		assert.Equal(t, int64(len(data)), s.Length())

		got := make([]byte, len(data))
		n, err = e.ReadFull(got, 0)
		require.NoError(t, err)
		assert.Equal(t, len(data), n)
		assert.Equalf(t, data, got, "qset %d", qset)
	}
}

func TestStore_SparseScenario(t *testing.T) {
	s, a := newTestStore(t, 4, 2)
	e := NewEngine(s, nil)

	n, err := e.WriteFull([]byte("ABCDEFGH"), 0)
	require.NoError(t, err)
	require.Equal(t, 8, n)

	n, err = e.WriteAt([]byte("Z"), 12)
	require.NoError(t, err)
	require.Equal(t, 1, n)

	want := append([]byte("ABCDEFGH"), 0, 0, 0, 0, 'Z')
	assert.Equal(t, want, readAll(t, s))

	st := s.Stats()
	assert.Equal(t, int64(13), st.Length)
	assert.Equal(t, int64(3), st.Tail)
	assert.Equal(t, int64(1), st.TailFill)
	assert.Equal(t, 2, st.Segments)
	assert.Equal(t, int64(4), st.Chunks)
	assert.Equal(t, 4, a.Live())
}

func TestStore_SparseWrites(t *testing.T) {
	s, _ := newTestStore(t, 8, 3)
	e := NewEngine(s, nil)

	var want []byte
	writes := []struct {
		off  int64
		data string
	}{
		{0, "abc"},
		{5, "defghijklm"},
		{40, "n"},
		{41, "opq"},
		{100, "rstuvwxyz0123456789"},
		{250, "!"},
	}
	for _, w := range writes {
		n, err := e.WriteFull([]byte(w.data), w.off)
		require.NoError(t, err)
		require.Equal(t, len(w.data), n)

		if end := int(w.off) + len(w.data); end > len(want) {
			want = append(want, make([]byte, end-len(want))...)
		}
		copy(want[w.off:], w.data)
	}
	assert.Equal(t, want, readAll(t, s))
}

func TestStore_ReadClamp(t *testing.T) {
	s, _ := newTestStore(t, 4, 2)
	_, err := NewEngine(s, nil).WriteFull([]byte("HELLO"), 0)
	require.NoError(t, err)

	t.Run("chunk boundary", func(t *testing.T) {
		buf := make([]byte, 10)
		n, err := s.ReadAt(1, buf, Direct)
		require.NoError(t, err)
		assert.Equal(t, 3, n)
		assert.Equal(t, "ELL", string(buf[:n]))
	})

	t.Run("tail fill", func(t *testing.T) {
		buf := make([]byte, 4)
		n, err := s.ReadAt(4, buf, Direct)
		require.NoError(t, err)
		assert.Equal(t, 1, n)
		assert.Equal(t, "O", string(buf[:n]))
	})

	t.Run("end of data", func(t *testing.T) {
		for _, off := range []int64{5, 6, 1000} {
			n, err := s.ReadAt(off, make([]byte, 8), Direct)
			assert.NoError(t, err)
			assert.Zero(t, n)
		}
	})

	t.Run("negative offset", func(t *testing.T) {
		_, err := s.ReadAt(-1, make([]byte, 1), Direct)
		assert.True(t, errors.Is(err, ErrInvalidOffset))
	})
}

func TestStore_WriteClamp(t *testing.T) {
	s, _ := newTestStore(t, 4, 1)
	n, err := s.WriteAt(2, []byte("abcdef"), Direct)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, int64(4), s.Length())
	assert.Equal(t, []byte{0, 0, 'a', 'b'}, readAll(t, s))

	n, err = s.WriteAt(0, nil, Direct)
	assert.NoError(t, err)
	assert.Zero(t, n)
}

func TestStore_Truncate(t *testing.T) {
	t.Run("truncate then reclaim reads nothing", func(t *testing.T) {
		s, a := newTestStore(t, 4, 2)
		_, err := NewEngine(s, nil).WriteFull([]byte("HELLO WORLD"), 0)
		require.NoError(t, err)

		require.NoError(t, s.TruncateAt(0))
		assert.Equal(t, 3, a.Live())
		assert.Equal(t, 2, s.Reclaim())
		assert.Equal(t, 1, a.Live(), "the tail chunk stays allocated")

		n, err := s.ReadAt(0, make([]byte, 1), Direct)
		assert.NoError(t, err)
		assert.Zero(t, n)
	})

	t.Run("stale bytes never come back", func(t *testing.T) {
		s, _ := newTestStore(t, 4, 1)
		e := NewEngine(s, nil)
		_, err := e.WriteFull([]byte("HELLOWORLD"), 0)
		require.NoError(t, err)

		require.NoError(t, s.TruncateAt(2))
		assert.Equal(t, []byte("HE"), readAll(t, s))

		_, err = e.WriteAt([]byte("Z"), 6)
		require.NoError(t, err)
		assert.Equal(t, []byte{'H', 'E', 0, 0, 0, 0, 'Z'}, readAll(t, s))
	})

	t.Run("layout", func(t *testing.T) {
		s, a := newTestStore(t, 4, 2)
		_, err := NewEngine(s, nil).WriteFull(bytes.Repeat([]byte("x"), 16), 0)
		require.NoError(t, err)

		require.NoError(t, s.TruncateAt(5))
		st := s.Stats()
		assert.Equal(t, int64(5), st.Length)
		assert.Equal(t, int64(1), st.Tail)
		assert.Equal(t, int64(1), st.TailFill)
		assert.Equal(t, int64(2), st.Garbage)
		assert.Equal(t, 4, a.Live())

		assert.Equal(t, 2, s.Reclaim())
		assert.Equal(t, 0, s.Reclaim())
		assert.Equal(t, 2, a.Live())
		assert.Equal(t, 1, s.Stats().Segments)
	})

	t.Run("invalid", func(t *testing.T) {
		s, _ := newTestStore(t, 4, 1)
		_, err := s.WriteAt(0, []byte("abc"), Direct)
		require.NoError(t, err)
		assert.True(t, errors.Is(s.TruncateAt(4), ErrInvalidLength))
		assert.True(t, errors.Is(s.TruncateAt(-1), ErrInvalidLength))
		assert.Equal(t, int64(3), s.Length())
	})
}

func TestStore_AllocationFailure(t *testing.T) {
	t.Run("memory limit", func(t *testing.T) {
		a := chunk.NewArena(chunk.Config{ChunkSize: 4, MemoryLimit: 8})
		defer a.Close()
		s := New(a, Config{Qset: 1})
		defer s.Close()

		n, err := s.WriteAt(12, []byte("z"), Direct)
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrAllocationFailure))
		assert.Zero(t, n)
		assert.Zero(t, s.Length())
		assert.Equal(t, int64(2), s.Stats().Chunks)

		assert.Equal(t, 1, s.Reclaim())
		n, err = s.WriteAt(0, []byte("ok"), Direct)
		require.NoError(t, err)
		assert.Equal(t, 2, n)
		assert.Equal(t, []byte("ok"), readAll(t, s))
	})

	t.Run("segment limit", func(t *testing.T) {
		a := chunk.NewArena(chunk.Config{ChunkSize: 4})
		defer a.Close()
		s := New(a, Config{Qset: 2, MaxSegments: 1})
		defer s.Close()

		err := s.EnsureWritable(8, 1)
		assert.True(t, errors.Is(err, ErrAllocationFailure))
		assert.Zero(t, s.Length())
		st := s.Stats()
		assert.Equal(t, 1, st.Segments)
		assert.Equal(t, int64(2), st.Chunks)
	})
}

func TestStore_CopyFault(t *testing.T) {
	s, _ := newTestStore(t, 4, 2)
	_, err := s.WriteAt(0, []byte("abc"), Direct)
	require.NoError(t, err)

	e := NewEngine(s, faultyTransfer{})
	n, err := e.WriteAt([]byte("defgh"), 3)
	assert.True(t, errors.Is(err, ErrCopyFault))
	assert.Zero(t, n)
	assert.Equal(t, int64(3), s.Length())

	n, err = e.ReadAt(make([]byte, 3), 0)
	assert.True(t, errors.Is(err, ErrCopyFault))
	assert.Zero(t, n)
	assert.Equal(t, int64(2), e.Counters().Faults)
}

func TestStore_OffsetOverflow(t *testing.T) {
	s, a := newTestStore(t, 4, 2)
	n, err := s.WriteAt(math.MaxInt64-1, []byte("ab"), Direct)
	assert.True(t, errors.Is(err, ErrInvalidOffset))
	assert.Zero(t, n)
	err = s.EnsureWritable(math.MaxInt64-1, 2)
	assert.True(t, errors.Is(err, ErrInvalidOffset))
	assert.Equal(t, int64(0), s.Length())
	assert.Equal(t, 0, a.Live())
}

func TestStore_MissingChunk(t *testing.T) {
	s, a := newTestStore(t, 4, 2)
	_, err := NewEngine(s, nil).WriteFull([]byte("abcdefgh"), 0)
	require.NoError(t, err)
	require.NoError(t, a.Free(s.index.Chunk(0)))

	n, err := s.ReadAt(0, make([]byte, 4), Direct)
	assert.True(t, errors.Is(err, ErrMissingChunk))
	assert.True(t, errors.Is(err, chunk.ErrInvalidHandle))
	assert.Zero(t, n)
	_, err = s.WriteAt(1, []byte("x"), Direct)
	assert.True(t, errors.Is(err, ErrMissingChunk))

	n, err = s.ReadAt(4, make([]byte, 4), Direct)
	require.NoError(t, err)
	assert.Equal(t, 4, n)
}

func TestStore_Close(t *testing.T) {
	a := chunk.NewArena(chunk.Config{ChunkSize: 4})
	defer a.Close()
	s := New(a, Config{Qset: 3})

	_, err := NewEngine(s, nil).WriteFull(bytes.Repeat([]byte("y"), 30), 0)
	require.NoError(t, err)
	require.NoError(t, s.TruncateAt(3))

	assert.Equal(t, 8, s.Close())
	assert.Equal(t, 0, a.Live())
	assert.Equal(t, 0, s.Close())
	assert.Equal(t, 0, a.Close())

	_, err = s.WriteAt(0, []byte("a"), Direct)
	assert.True(t, errors.Is(err, ErrClosed))
	_, err = s.ReadAt(0, make([]byte, 1), Direct)
	assert.True(t, errors.Is(err, ErrClosed))
}

func TestStore_ConcurrentReaders(t *testing.T) {
	s, _ := newTestStore(t, 16, 4)
	e := NewEngine(s, nil)
	payload := bytes.Repeat([]byte("0123456789abcdef"), 64)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		if _, err := e.WriteFull(payload, 0); err != nil {
			t.Error(err)
		}
	}()
	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			buf := make([]byte, 16)
			for i := 0; i < 200; i++ {
				n, err := e.ReadAt(buf, int64(i%64)*16)
				if err != nil {
					t.Error(err)
					return
				}
				if !bytes.Equal(buf[:n], payload[(i%64)*16:(i%64)*16+n]) {
					t.Errorf("read %d: unexpected bytes %q", i, buf[:n])
					return
				}
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, payload, readAll(t, s))
}
