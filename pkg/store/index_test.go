// pkg/store/index_test.go

package store

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIndex_Translate(t *testing.T) {
	cases := []struct {
		quantum, qset int
		off           int64
		want          Address
	}{
		{4, 1, 0, Address{0, 0, 0}},
		{4, 1, 13, Address{3, 0, 1}},
		{4, 2, 13, Address{1, 1, 1}},
		{4, 2, 7, Address{0, 1, 3}},
		{4096, 1000, 4096*1000 + 5, Address{1, 0, 5}},
		{16, 12, 16*12*3 + 16*5 + 9, Address{3, 5, 9}},
	}
	for _, c := range cases {
		x := NewIndex(c.quantum, c.qset, 0)
		assert.Equalf(t, c.want, x.Translate(c.off), "Q=%d G=%d off=%d", c.quantum, c.qset, c.off)
	}
}

func TestIndex_Walk(t *testing.T) {
	t.Run("appends empty segments", func(t *testing.T) {
		x := NewIndex(4, 3, 0)
		seg, err := x.Walk(2)
		require.NoError(t, err)
		assert.Equal(t, 3, x.Len())
		assert.Len(t, seg.Slots, 3)
		for i := int64(0); i < 3; i++ {
			for _, h := range x.Segment(i).Slots {
				assert.Zero(t, h)
			}
		}

		again, err := x.Walk(1)
		require.NoError(t, err)
		assert.Same(t, x.Segment(1), again)
		assert.Equal(t, 3, x.Len())
	})

	t.Run("partial growth on failure", func(t *testing.T) {
		x := NewIndex(4, 1, 2)
		_, err := x.Walk(5)
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrAllocationFailure))
		assert.Equal(t, 2, x.Len())

		seg, err := x.Walk(1)
		require.NoError(t, err)
		assert.NotNil(t, seg)
	})

	t.Run("negative", func(t *testing.T) {
		x := NewIndex(4, 1, 0)
		_, err := x.Walk(-1)
		assert.True(t, errors.Is(err, ErrInvalidOffset))
	})
}

func TestIndex_Truncate(t *testing.T) {
	x := NewIndex(4, 2, 0)
	_, err := x.Walk(3)
	require.NoError(t, err)
	assert.Equal(t, 2, x.truncate(1))
	assert.Equal(t, 2, x.Len())
	assert.Equal(t, 0, x.truncate(5))
	assert.Equal(t, 2, x.truncate(-1))
	assert.Equal(t, 0, x.Len())
	assert.Nil(t, x.Segment(0))
	assert.Zero(t, x.Chunk(3))
}
