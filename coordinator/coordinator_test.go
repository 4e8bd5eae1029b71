package coordinator

import (
	"context"
	"math/rand"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChooseK(t *testing.T) {
	assert.Equal(t, 8, ChooseK(1)) // floor(8*sqrt(1))
	assert.Equal(t, 800, ChooseK(10_000))
	assert.Equal(t, 65_536, ChooseK(1_000_000))
	assert.Equal(t, 262_144, ChooseK(10_000_000))
	assert.Equal(t, 1_048_576, ChooseK(100_000_000))
	assert.Equal(t, 2_000_000_000, ChooseK(2_000_000_000))
}

// TestChooseKNonPerfectSquare guards floor(8*sqrt(N)) against the cheaper
// but wrong 8*floor(sqrt(N)), which only agrees with the spec formula when
// N is a perfect square.
func TestChooseKNonPerfectSquare(t *testing.T) {
	assert.Equal(t, 11, ChooseK(2))     // floor(8*sqrt(2))  = floor(11.3137...) = 11, not 8*1=8
	assert.Equal(t, 252, ChooseK(1000)) // floor(8*sqrt(1000)) = floor(252.982...) = 252, not 8*31=248
}

func TestNewValidatesShardsAndNodes(t *testing.T) {
	_, err := New("idx", 4, 1000, 2, nil)
	require.ErrorIs(t, err, ErrInvalidArgument)

	_, err = New("idx", 4, 1000, 1, []string{"a", "b"})
	require.ErrorIs(t, err, ErrInvalidArgument)

	_, err = New("idx", 0, 1000, 1, []string{"a"})
	require.ErrorIs(t, err, ErrInvalidDimension)

	c, err := New("idx", 4, 1000, 2, []string{"a", "b"})
	require.NoError(t, err)
	assert.Equal(t, StateEmpty, c.State())
}

func TestBuildShapeValidation(t *testing.T) {
	c, err := New("idx", 128, 100, 1, []string{"a"}, WithNList(4))
	require.NoError(t, err)

	vectors := make([]float32, 129)
	ids := []int64{1}

	err = c.Build(context.Background(), vectors, ids)
	require.ErrorIs(t, err, ErrInvalidDimension)
	assert.Equal(t, StateEmpty, c.State())
}

func TestBuildAndSearchTinyClustered(t *testing.T) {
	c, err := New("idx", 2, 4, 1, []string{"a"}, WithNList(2), WithNIter(20), WithNRedo(3),
		WithMinPointsPerCentroid(1), WithMaxPointsPerCentroid(4), WithMaxSampleRatio(1.0))
	require.NoError(t, err)

	vectors := []float32{
		0.1, 0.1,
		0.2, 0.0,
		9.8, 10.1,
		10.2, 9.9,
	}
	ids := []int64{1, 2, 3, 4}

	require.NoError(t, c.Build(context.Background(), vectors, ids))
	assert.Equal(t, StatePopulated, c.State())
	assert.EqualValues(t, 4, c.Size())

	res, err := c.Search(context.Background(), []float32{0, 0}, 2, 1)
	require.NoError(t, err)
	assert.False(t, res.Partial)
	require.Len(t, res.Hits, 2)

	gotIDs := []int64{res.Hits[0].ID, res.Hits[1].ID}
	sort.Slice(gotIDs, func(i, j int) bool { return gotIDs[i] < gotIDs[j] })
	assert.Equal(t, []int64{1, 2}, gotIDs)
}

func TestSearchRejectsInvalidArguments(t *testing.T) {
	c := buildRandomIndex(t, 200, 8, 16, 1)

	_, err := c.Search(context.Background(), make([]float32, 8), 1, 0)
	require.ErrorIs(t, err, ErrInvalidArgument)

	_, err = c.Search(context.Background(), make([]float32, 8), 0, 1)
	require.ErrorIs(t, err, ErrInvalidArgument)

	_, err = c.Search(context.Background(), make([]float32, 3), 1, 1)
	require.ErrorIs(t, err, ErrInvalidDimension)
}

func TestSearchBeforeBuildFails(t *testing.T) {
	c, err := New("idx", 4, 100, 1, []string{"a"})
	require.NoError(t, err)

	_, err = c.Search(context.Background(), make([]float32, 4), 1, 1)
	require.ErrorIs(t, err, ErrNotBuilt)
}

func TestDeterministicBuild(t *testing.T) {
	rng := rand.New(rand.NewSource(9))
	n, d := 300, 4
	vectors := make([]float32, n*d)
	for i := range vectors {
		vectors[i] = rng.Float32() * 10
	}
	ids := make([]int64, n)
	for i := range ids {
		ids[i] = int64(i)
	}

	build := func() []float32 {
		c, err := New("idx", d, uint64(n), 2, []string{"a", "b"}, WithNList(8), WithSeed(1234))
		require.NoError(t, err)
		require.NoError(t, c.Build(context.Background(), vectors, ids))
		out := make([]float32, len(c.centroids.Data))
		copy(out, c.centroids.Data)
		return out
	}

	a := build()
	b := build()
	assert.Equal(t, a, b)
}

func TestPartialAvailability(t *testing.T) {
	c := buildRandomIndex(t, 300, 4, 12, 3)

	c.Shard(1).SetUnavailable(true)

	res, err := c.Search(context.Background(), make([]float32, 4), 10, c.NList())
	require.NoError(t, err)
	assert.True(t, res.Partial)
	require.NotNil(t, res.UnavailableShards)
	assert.True(t, res.UnavailableShards.Contains(1))
	assert.LessOrEqual(t, len(res.Hits), 10)
}

func TestCentroidOwnership(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	n, d, k, shardCount := 500, 4, 17, 4
	vectors := make([]float32, n*d)
	for i := range vectors {
		vectors[i] = rng.Float32()
	}
	ids := make([]int64, n)
	for i := range ids {
		ids[i] = int64(i)
	}

	c, err := New("idx", d, uint64(n), shardCount, []string{"a", "b", "c", "d"}, WithNList(k))
	require.NoError(t, err)
	require.NoError(t, c.Build(context.Background(), vectors, ids))

	for centroid := 0; centroid < k; centroid++ {
		expectedShard := centroid % shardCount
		for s := 0; s < shardCount; s++ {
			if c.Shard(s).Owns(uint32(centroid)) {
				assert.Equal(t, expectedShard, s, "centroid %d owned by wrong shard", centroid)
			}
		}
	}
}

func buildRandomIndex(t *testing.T, n, d, k, shardCount int) *Coordinator {
	t.Helper()
	rng := rand.New(rand.NewSource(int64(n + d + k)))
	vectors := make([]float32, n*d)
	for i := range vectors {
		vectors[i] = rng.Float32()
	}
	ids := make([]int64, n)
	for i := range ids {
		ids[i] = int64(i)
	}
	nodes := make([]string, shardCount)
	for i := range nodes {
		nodes[i] = string(rune('a' + i))
	}

	c, err := New("idx", d, uint64(n), shardCount, nodes, WithNList(k))
	require.NoError(t, err)
	require.NoError(t, c.Build(context.Background(), vectors, ids))
	return c
}
