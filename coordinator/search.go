package coordinator

import (
	"context"
	"fmt"
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/RoaringBitmap/roaring/v2"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/hupe1980/ivfshard/distance"
	"github.com/hupe1980/ivfshard/ivf"
	"github.com/hupe1980/ivfshard/kmeans"
)

// Hit is a single scored result returned by Search.
type Hit struct {
	ID       int64
	Distance float32
}

// Result is Search's return value. Partial is set when one or more shards
// failed to respond (a failed shard is not retried) or the search deadline
// expired; UnavailableShards then names the shards that failed or were
// skipped, as a compact bitmap
// since shard counts at the high end of the nlist table can be large.
type Result struct {
	Hits              []Hit
	Partial           bool
	UnavailableShards *roaring.Bitmap
}

// Search finds the kOut nearest neighbors of query among the nprobe
// closest centroid buckets. Requires State() == Populated, len(query) ==
// Dimension(), kOut > 0, and nprobe > 0 (nprobe == 0 is InvalidArgument,
// not silently accepted). nprobe is clamped to the trained centroid count.
//
// For fixed inputs and a fixed index, the returned hit sequence is
// deterministic: distances non-decreasing, ties broken by ascending ID.
func (c *Coordinator) Search(ctx context.Context, query []float32, kOut, nprobe int) (Result, error) {
	c.mu.RLock()
	state := c.state
	centroids := c.centroids
	d := c.d
	shardCount := c.shardCount
	timeout := c.cfg.SearchTimeout
	c.mu.RUnlock()

	if state != StatePopulated {
		return Result{}, ErrNotBuilt
	}
	if len(query) != d {
		return Result{}, fmt.Errorf("%w: query.len()=%d, expected %d", ErrInvalidDimension, len(query), d)
	}
	if kOut <= 0 {
		return Result{}, fmt.Errorf("%w: k must be positive, got %d", ErrInvalidArgument, kOut)
	}
	if nprobe <= 0 {
		return Result{}, fmt.Errorf("%w: nprobe must be positive", ErrInvalidArgument)
	}
	if nprobe > centroids.K {
		nprobe = centroids.K
	}

	start := time.Now()

	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	probes := nearestCentroids(query, centroids, nprobe)

	byShard := make(map[int][]uint32)
	for _, centroidIdx := range probes {
		s := centroidIdx % shardCount
		byShard[s] = append(byShard[s], uint32(centroidIdx))
	}

	shardIdxs := make([]int, 0, len(byShard))
	for s := range byShard {
		shardIdxs = append(shardIdxs, s)
	}
	sort.Ints(shardIdxs)

	workers := c.cfg.WorkerPoolSize
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	sem := semaphore.NewWeighted(int64(workers))

	var (
		mu          sync.Mutex
		allHits     []Hit
		unavailable = roaring.New()
		partial     bool
	)

	g, gctx := errgroup.WithContext(ctx)
	for _, s := range shardIdxs {
		s := s
		candidates := byShard[s]
		g.Go(func() error {
			if err := sem.Acquire(gctx, 1); err != nil {
				mu.Lock()
				unavailable.Add(uint32(s))
				partial = true
				mu.Unlock()
				return nil
			}
			defer sem.Release(1)

			hits, err := c.shards[s].SearchLocal(candidates, query, kOut)
			if err != nil || hasInvalidHit(hits) {
				c.cfg.Logger.Warn("shard unavailable", "shard_id", s, "error", err)
				c.cfg.Metrics.RecordShardUnavailable(uint32(s))
				mu.Lock()
				unavailable.Add(uint32(s))
				partial = true
				mu.Unlock()
				return nil
			}

			mu.Lock()
			for _, h := range hits {
				allHits = append(allHits, Hit{ID: h.ID, Distance: h.Distance})
			}
			mu.Unlock()
			return nil
		})
	}

	// Dispatch goroutines never return a non-nil error: a failed shard or
	// an expired deadline is folded into unavailable/partial instead, so
	// Search degrades to a PartialResult rather than propagating.
	_ = g.Wait()
	if ctx.Err() != nil {
		partial = true
	}

	sort.SliceStable(allHits, func(i, j int) bool {
		if allHits[i].Distance != allHits[j].Distance {
			return allHits[i].Distance < allHits[j].Distance
		}
		return allHits[i].ID < allHits[j].ID
	})
	if len(allHits) > kOut {
		allHits = allHits[:kOut]
	}

	took := time.Since(start).Seconds()
	c.cfg.Metrics.RecordSearch(nprobe, kOut, len(allHits), took, partial)
	if partial {
		c.cfg.Logger.Warn("search returned partial result", "nprobe", nprobe, "unavailable_shards", unavailable.GetCardinality())
	}

	res := Result{Hits: allHits, Partial: partial}
	if partial {
		res.UnavailableShards = unavailable
	}
	return res, nil
}

// hasInvalidHit reports whether hits contains a NaN distance, which the
// coordinator treats identically to an unavailable shard: malformed
// results are never merged into the final ranking.
func hasInvalidHit(hits []ivf.Hit) bool {
	for _, h := range hits {
		if h.Distance != h.Distance { // NaN check without importing math
			return true
		}
	}
	return false
}

// nearestCentroids returns the nprobe centroid indices closest to query,
// ties broken by lowest index, in ascending distance order.
func nearestCentroids(query []float32, centroids *kmeans.Centroids, nprobe int) []int {
	type scored struct {
		idx  int
		dist float32
	}
	k := centroids.K
	scores := make([]scored, k)
	for j := 0; j < k; j++ {
		scores[j] = scored{idx: j, dist: distance.SquaredL2(query, centroids.At(j))}
	}
	sort.Slice(scores, func(i, j int) bool {
		if scores[i].dist != scores[j].dist {
			return scores[i].dist < scores[j].dist
		}
		return scores[i].idx < scores[j].idx
	})
	if nprobe > k {
		nprobe = k
	}
	out := make([]int, nprobe)
	for i := 0; i < nprobe; i++ {
		out[i] = scores[i].idx
	}
	return out
}
