package ivf

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInvertedListAppend(t *testing.T) {
	l := NewInvertedList(2)
	l.Append(1, []float32{1, 2})
	l.Append(2, []float32{3, 4})

	require.Equal(t, 2, l.Len())
	assert.Equal(t, []int64{1, 2}, l.IDs())
	assert.Equal(t, []float32{1, 2, 3, 4}, l.Vectors())
	assert.Equal(t, []float32{3, 4}, l.At(1))
}

func TestInvertedListAppendAll(t *testing.T) {
	a := NewInvertedList(1)
	a.Append(1, []float32{1})
	b := NewInvertedList(1)
	b.Append(2, []float32{2})

	a.AppendAll(b)
	assert.Equal(t, []int64{1, 2}, a.IDs())
	assert.Equal(t, []float32{1, 2}, a.Vectors())
}

func TestShardAddPostingExtends(t *testing.T) {
	s := NewShard(0, "node-a", 1)

	l1 := NewInvertedList(1)
	l1.Append(1, []float32{0})
	s.AddPosting(5, l1)

	l2 := NewInvertedList(1)
	l2.Append(2, []float32{1})
	s.AddPosting(5, l2)

	assert.True(t, s.Owns(5))
	assert.Equal(t, 2, s.PostingLen(5))
}

func TestShardSearchLocalUnknownCentroidEmpty(t *testing.T) {
	s := NewShard(0, "node-a", 2)
	l := NewInvertedList(2)
	l.Append(1, []float32{0, 0})
	s.AddPosting(3, l)

	hits, err := s.SearchLocal([]uint32{99}, []float32{0, 0}, 5)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestShardSearchLocalRanksByDistance(t *testing.T) {
	s := NewShard(0, "node-a", 1)

	l := NewInvertedList(1)
	l.Append(1, []float32{10})
	l.Append(2, []float32{0})
	l.Append(3, []float32{5})
	s.AddPosting(0, l)

	hits, err := s.SearchLocal([]uint32{0}, []float32{0}, 2)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, int64(2), hits[0].ID)
	assert.Equal(t, float32(0), hits[0].Distance)
	assert.Equal(t, int64(3), hits[1].ID)
}

func TestShardUnavailable(t *testing.T) {
	s := NewShard(0, "node-a", 1)
	s.SetUnavailable(true)

	_, err := s.SearchLocal([]uint32{0}, []float32{0}, 1)
	require.ErrorIs(t, err, ErrUnavailable)

	s.SetUnavailable(false)
	hits, err := s.SearchLocal([]uint32{0}, []float32{0}, 1)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestShardOwnedCentroidsIndependentClone(t *testing.T) {
	s := NewShard(0, "node-a", 1)
	l := NewInvertedList(1)
	l.Append(1, []float32{0})
	s.AddPosting(7, l)

	bm := s.OwnedCentroids()
	bm.Add(8)

	assert.True(t, s.Owns(7))
	assert.False(t, s.Owns(8))
}
