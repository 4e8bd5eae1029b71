package ivfshard

import (
	"context"
	"fmt"
	"time"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/hupe1980/ivfshard/coordinator"
)

// Index is a distributed IVF vector index: a trained coarse quantizer plus
// the set of shards its postings are routed to. An Index is safe for
// concurrent use by multiple goroutines.
type Index struct {
	name        string
	coordinator *coordinator.Coordinator
	logger      *Logger
	metrics     MetricsCollector
}

// newIndex is the internal constructor shared by Builder.Build and any
// future direct-option constructor. External users should use
// ivfshard.New(name, dimension, expectedN).Build() instead.
func newIndex(name string, dimension int, expectedN uint64, optFns ...Option) (*Index, error) {
	opts := applyOptions(optFns)

	coord, err := coordinator.New(name, dimension, expectedN, opts.shardCount, opts.nodes, opts.coordinatorOptions()...)
	if err != nil {
		return nil, translateError(err)
	}

	return &Index{
		name:        name,
		coordinator: coord,
		logger:      opts.logger,
		metrics:     opts.metrics,
	}, nil
}

// Train builds the coarse quantizer from vectors and routes the resulting
// postings to their owning shards. vectors must have length
// len(ids)*Dimension() and ids must be non-empty. A failed call leaves the
// index in its prior state.
func (idx *Index) Train(ctx context.Context, vectors []float32, ids []int64) error {
	start := time.Now()
	err := translateError(idx.coordinator.Build(ctx, vectors, ids))
	duration := time.Since(start)
	if err != nil {
		idx.metrics.RecordBuild(len(ids), idx.coordinator.NList(), duration.Seconds())
	}
	idx.logger.LogBuild(ctx, len(ids), idx.coordinator.NList(), duration, err)
	return err
}

// Hit is a single scored result returned by Search.
type Hit struct {
	ID       int64
	Distance float32
}

// Result is Search's return value. Partial is set when one or more shards
// failed to respond (a failed shard is not retried) or the search deadline
// expired; UnavailableShards then names the shards that failed or were
// skipped.
type Result struct {
	Hits              []Hit
	Partial           bool
	UnavailableShards *roaring.Bitmap
}

// KNNSearch finds the k nearest neighbors of query among the nprobe
// closest centroid buckets. Requires the index to be trained and
// populated, len(query) == Dimension(), k > 0, and nprobe > 0.
//
// KNNSearch never returns ErrShardUnavailable or ErrTimeout directly: a
// shard that fails to respond degrades the result to Partial instead of
// propagating a hard error.
func (idx *Index) KNNSearch(ctx context.Context, query []float32, k, nprobe int) (Result, error) {
	start := time.Now()
	res, err := idx.coordinator.Search(ctx, query, k, nprobe)
	duration := time.Since(start)
	if err != nil {
		err = translateError(err)
		idx.metrics.RecordSearch(nprobe, k, 0, duration.Seconds(), false)
		idx.logger.LogSearch(ctx, k, nprobe, 0, duration, false, err)
		return Result{}, err
	}

	idx.logger.LogSearch(ctx, k, nprobe, len(res.Hits), duration, res.Partial, nil)

	hits := make([]Hit, len(res.Hits))
	for i, h := range res.Hits {
		hits[i] = Hit{ID: h.ID, Distance: h.Distance}
	}
	return Result{Hits: hits, Partial: res.Partial, UnavailableShards: res.UnavailableShards}, nil
}

// Add appends vector under id into the bucket owned by its nearest
// already-trained centroid, without retraining. It is the single-node
// wrapper's mutation entry point (C6): valid once the index holds centroids
// (Trained or Populated), and it degrades the index's recall guarantee the
// same way any post-build mutation does, since the centroid table is not
// rebalanced to account for it. len(vector) must equal Dimension().
func (idx *Index) Add(ctx context.Context, id int64, vector []float32) error {
	err := translateError(idx.coordinator.Add(id, vector))
	n := 0
	if err == nil {
		n = 1
	}
	idx.logger.LogMutate(ctx, "add", id, n, err)
	return err
}

// Remove deletes every stored entry with the given id, across however many
// shards happen to hold it. DocIds are routed to shards by a stable hash
// for the mutation API (ShardForDocID), independent of how Train/Build or
// Add placed the entry, so Remove always checks every shard; the hash only
// decides which shard it checks first. Returns the number of entries
// removed, which may be 0 if id was never present, or more than 1 if id was
// stored as a duplicate.
func (idx *Index) Remove(ctx context.Context, id int64) int {
	n := idx.coordinator.Remove(id)
	idx.logger.LogMutate(ctx, "remove", id, n, nil)
	return n
}

// Update overwrites the stored vector for every entry with the given id,
// using the same shard search as Remove. It does not move the entry to a
// different centroid bucket even if vector's nearest centroid changed;
// callers needing that should Remove then Add. len(vector) must equal
// Dimension(). Returns the number of entries updated.
func (idx *Index) Update(ctx context.Context, id int64, vector []float32) (int, error) {
	n, err := idx.coordinator.Update(id, vector)
	err = translateError(err)
	idx.logger.LogMutate(ctx, "update", id, n, err)
	return n, err
}

// Dimension returns the configured vector dimension.
func (idx *Index) Dimension() int {
	return idx.coordinator.Dimension()
}

// Size returns the total number of vectors conserved across all shards'
// postings.
func (idx *Index) Size() uint64 {
	return idx.coordinator.Size()
}

// State returns the index's current lifecycle state (Empty, Trained, or
// Populated).
func (idx *Index) State() coordinator.State {
	return idx.coordinator.State()
}

// NList returns the number of centroids (nlist) the quantizer was trained
// with, or the configured/derived value before Train has run.
func (idx *Index) NList() int {
	return idx.coordinator.NList()
}

// ShardCount returns the number of shards the index was constructed with.
func (idx *Index) ShardCount() int {
	return idx.coordinator.ShardCount()
}

// SetShardUnavailable marks shard i as unavailable (or available again),
// primarily for operational drills and tests exercising partial-result
// degradation.
func (idx *Index) SetShardUnavailable(i int, unavailable bool) error {
	if i < 0 || i >= idx.coordinator.ShardCount() {
		return fmt.Errorf("%w: shard index %d out of range [0,%d)", ErrInvalidArgument, i, idx.coordinator.ShardCount())
	}
	idx.coordinator.Shard(i).SetUnavailable(unavailable)
	return nil
}
