package coordinator

import (
	"context"
	"fmt"
	"math/rand"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/ivfshard/distance"
	"github.com/hupe1980/ivfshard/ivf"
	"github.com/hupe1980/ivfshard/kmeans"
)

// Build trains the coarse quantizer on a sample of vectors, assigns every
// input vector to its closest centroid, and routes the resulting postings
// to their owning shards. vectors must have length len(ids)*Dimension()
// and ids must be non-empty. A failed build leaves the coordinator in its
// prior state.
func (c *Coordinator) Build(ctx context.Context, vectors []float32, ids []int64) error {
	start := time.Now()

	n := len(ids)
	if n == 0 || len(vectors) != n*c.d {
		return fmt.Errorf("%w: vectors.len()=%d inconsistent with ids.len()=%d * d=%d", ErrInvalidDimension, len(vectors), n, c.d)
	}

	c.mu.Lock()
	k := c.cfg.NList
	c.mu.Unlock()
	if k > n {
		k = n
	}
	if k < 1 {
		k = 1
	}

	sizingRNG := rand.New(rand.NewSource(c.cfg.Seed))
	nTrain := min(k*64, n)
	trainVectors := vectors
	if nTrain < n {
		sampler := c.cfg.Sampler
		if sampler == nil {
			sampler = kmeans.ShufflePrefixSampler{}
		}
		idx := sampler.Sample(sizingRNG, n, nTrain)
		trainVectors = make([]float32, nTrain*c.d)
		for i, srcIdx := range idx {
			copy(trainVectors[i*c.d:(i+1)*c.d], vectors[srcIdx*c.d:(srcIdx+1)*c.d])
		}
	}

	centroids, err := kmeans.Train(trainVectors, nTrain, c.d, k, c.cfg.kmeansConfig())
	if err != nil {
		c.cfg.Logger.Error("kmeans training failed", "error", err, "n", n, "k", k)
		return err
	}

	c.mu.Lock()
	prevCentroids, prevNList, prevState := c.centroids, c.cfg.NList, c.state
	c.centroids = centroids
	c.cfg.NList = k
	c.state = StateTrained
	c.mu.Unlock()

	buckets, err := c.assign(ctx, vectors, ids, centroids)
	if err != nil {
		c.mu.Lock()
		c.centroids, c.cfg.NList, c.state = prevCentroids, prevNList, prevState
		c.mu.Unlock()
		return err
	}

	c.mu.Lock()
	for centroid, list := range buckets {
		if list.Len() == 0 {
			continue
		}
		shardIdx := int(centroid) % c.shardCount
		c.shards[shardIdx].AddPosting(centroid, list)
	}
	c.n = uint64(n)
	c.state = StatePopulated
	c.mu.Unlock()

	c.cfg.Metrics.RecordBuild(n, k, time.Since(start).Seconds())
	c.cfg.Logger.Info("build complete", "n", n, "k", k, "shards", c.shardCount, "took", time.Since(start))

	return nil
}

// assign partitions vectors across worker-local staging buffers keyed by
// centroid, then merges the workers' buffers in ascending worker order so
// the merge is reproducible across identical builds. This avoids a single
// shared-map bottleneck under concurrent assignment.
func (c *Coordinator) assign(ctx context.Context, vectors []float32, ids []int64, centroids *kmeans.Centroids) (map[uint32]*ivf.InvertedList, error) {
	n := len(ids)
	workers := c.cfg.WorkerPoolSize
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	if workers > n {
		workers = n
	}
	if workers < 1 {
		workers = 1
	}

	// Pre-reserve per-centroid buffers to an expected average bucket size,
	// per the build pipeline's staging guidance.
	expectedPerCentroid := n/centroids.K + 1
	centroidTable := centroidSlices(centroids)

	staging := make([]map[uint32]*ivf.InvertedList, workers)
	chunk := (n + workers - 1) / workers

	g, gctx := errgroup.WithContext(ctx)
	for w := 0; w < workers; w++ {
		w := w
		lo := w * chunk
		hi := min(lo+chunk, n)
		if lo >= hi {
			continue
		}
		g.Go(func() error {
			local := make(map[uint32]*ivf.InvertedList)
			for i := lo; i < hi; i++ {
				if i%4096 == 0 {
					select {
					case <-gctx.Done():
						return gctx.Err()
					default:
					}
				}
				vec := vectors[i*c.d : (i+1)*c.d]
				centroidIdx, _ := distance.ArgMinSquaredL2(vec, centroidTable)
				centroid := uint32(centroidIdx)

				list, ok := local[centroid]
				if !ok {
					list = ivf.NewInvertedListWithCapacity(c.d, expectedPerCentroid)
					local[centroid] = list
				}
				list.Append(ids[i], vec)
			}
			staging[w] = local
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	merged := make(map[uint32]*ivf.InvertedList)
	for _, local := range staging {
		for centroid, list := range local {
			if existing, ok := merged[centroid]; ok {
				existing.AppendAll(list)
				continue
			}
			merged[centroid] = list
		}
	}
	return merged, nil
}

// centroidSlices returns a view of the centroid table as one slice per
// centroid, matching the []([]float32) shape distance.ArgMinSquaredL2
// expects. Allocates a slice of headers only, not of the underlying data.
func centroidSlices(c *kmeans.Centroids) [][]float32 {
	out := make([][]float32, c.K)
	for j := 0; j < c.K; j++ {
		out[j] = c.At(j)
	}
	return out
}
