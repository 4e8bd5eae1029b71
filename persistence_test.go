package ivfshard

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/ivfshard/blobstore"
)

func trainedTestIndex(t *testing.T) *Index {
	t.Helper()

	idx, err := New("tiny", 2, 4).
		Nodes("a", "b").
		Shards(2).
		NList(2).
		NIter(20).
		NRedo(3).
		MinPointsPerCentroid(1).
		MaxPointsPerCentroid(4).
		MaxSampleRatio(1.0).
		Build()
	require.NoError(t, err)

	vectors := []float32{
		0.1, 0.1,
		0.2, 0.0,
		9.8, 10.1,
		10.2, 9.9,
	}
	ids := []int64{1, 2, 3, 4}
	require.NoError(t, idx.Train(context.Background(), vectors, ids))
	return idx
}

func TestSaveRejectsUntrainedIndex(t *testing.T) {
	idx, err := New("tiny", 2, 4).Build()
	require.NoError(t, err)

	store := blobstore.NewMemoryStore()
	err = idx.Save(context.Background(), store, "tiny.idx", 1)
	require.ErrorIs(t, err, ErrInvalidState)
}

func TestSaveOpenRoundTrip(t *testing.T) {
	idx := trainedTestIndex(t)
	store := blobstore.NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, idx.Save(ctx, store, "tiny.idx", 1, WithPersistenceCompression(CompressionZSTD)))

	restored, err := Open(ctx, store, "tiny.idx")
	require.NoError(t, err)
	assert.EqualValues(t, 4, restored.Size())
	assert.Equal(t, []string{"a", "b"}, restored.coordinator.Nodes())

	res, err := restored.Search([]float32{0, 0}).KNN(2).NProbe(restored.NList()).Execute(ctx)
	require.NoError(t, err)
	require.Len(t, res.Hits, 2)
}

func TestOpenNodeOverride(t *testing.T) {
	idx := trainedTestIndex(t)
	store := blobstore.NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, idx.Save(ctx, store, "tiny.idx", 1))

	restored, err := Open(ctx, store, "tiny.idx", WithNodes("x", "y"))
	require.NoError(t, err)
	assert.Equal(t, []string{"x", "y"}, restored.coordinator.Nodes())
}
