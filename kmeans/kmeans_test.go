package kmeans

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTrainInvalidDimension(t *testing.T) {
	_, err := Train([]float32{1, 2, 3}, 1, 2, 1, DefaultConfig())
	var dimErr *ErrInvalidDimension
	require.ErrorAs(t, err, &dimErr)
	assert.Equal(t, 2, dimErr.Dimension)
}

func TestTrainInsufficientData(t *testing.T) {
	vectors := []float32{0, 0, 1, 1}
	_, err := Train(vectors, 2, 2, 4, DefaultConfig())
	require.ErrorIs(t, err, ErrInsufficientData)
}

func TestTrainTinyClustered(t *testing.T) {
	// Two well-separated clusters, d=2.
	vectors := []float32{
		0.1, 0.1,
		0.2, 0.0,
		9.8, 10.1,
		10.2, 9.9,
	}
	cfg := DefaultConfig()
	cfg.NIter = 20
	cfg.NRedo = 3
	cfg.MinPointsPerCentroid = 1
	cfg.MaxPointsPerCentroid = 4
	cfg.MaxSampleRatio = 1.0

	centroids, err := Train(vectors, 4, 2, 2, cfg)
	require.NoError(t, err)
	require.Equal(t, 2, centroids.K)
	require.Equal(t, 2, centroids.D)

	var near0, near10 bool
	for j := 0; j < centroids.K; j++ {
		c := centroids.At(j)
		if abs32(c[0]-0.15) < 0.5 && abs32(c[1]-0.05) < 0.5 {
			near0 = true
		}
		if abs32(c[0]-10.0) < 0.5 && abs32(c[1]-10.0) < 0.5 {
			near10 = true
		}
	}
	assert.True(t, near0, "expected a centroid near (0.15, 0.05), got %v", centroids.Data)
	assert.True(t, near10, "expected a centroid near (10.0, 10.0), got %v", centroids.Data)
}

func TestTrainDeterministic(t *testing.T) {
	vectors := make([]float32, 200*4)
	rng := rand.New(rand.NewSource(42))
	for i := range vectors {
		vectors[i] = rng.Float32() * 10
	}

	cfg := DefaultConfig()
	cfg.Seed = 1234
	cfg.NRedo = 2

	a, err := Train(vectors, 200, 4, 8, cfg)
	require.NoError(t, err)
	b, err := Train(vectors, 200, 4, 8, cfg)
	require.NoError(t, err)

	assert.Equal(t, a.Data, b.Data)
}

func TestSampleSizeClamping(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MinPointsPerCentroid = 10
	cfg.MaxPointsPerCentroid = 10
	cfg.MaxSampleRatio = 1.0

	rng := rand.New(rand.NewSource(1))
	// n much larger than k*u: s should be k*u.
	s := SampleSize(100000, 5, cfg, rng)
	assert.Equal(t, 50, s)

	// n smaller than k: s clamps up to n (still below k is impossible
	// since Train itself rejects n < k before ever calling SampleSize).
	s = SampleSize(3, 5, cfg, rng)
	assert.Equal(t, 3, s)
}

func TestShufflePrefixSamplerDistinct(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	idx := ShufflePrefixSampler{}.Sample(rng, 100, 10)
	assert.Len(t, idx, 10)
	seen := make(map[int]bool)
	for _, i := range idx {
		assert.False(t, seen[i])
		seen[i] = true
		assert.True(t, i >= 0 && i < 100)
	}
}

func TestReservoirSamplerDistinct(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	idx := ReservoirSampler{}.Sample(rng, 100, 10)
	assert.Len(t, idx, 10)
	seen := make(map[int]bool)
	for _, i := range idx {
		assert.False(t, seen[i])
		seen[i] = true
		assert.True(t, i >= 0 && i < 100)
	}
}

func abs32(f float32) float32 {
	if f < 0 {
		return -f
	}
	return f
}
