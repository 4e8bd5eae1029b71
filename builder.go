// Package ivfshard provides functionalities for a distributed IVF vector
// index.
//
// This file implements the fluent builder API for creating and configuring
// Index instances. The builder is immutable - each method returns a new
// builder with the updated configuration.
package ivfshard

import (
	"time"

	"github.com/hupe1980/ivfshard/kmeans"
)

// New creates a new Builder for an index named name, holding d-dimensional
// vectors, expected to grow to roughly expectedN vectors. expectedN seeds
// the default centroid count (nlist) via coordinator.ChooseK unless
// overridden with NList.
//
// The builder is immutable - each method returns a new builder with the
// updated configuration. This ensures thread-safety and prevents
// accidental state sharing.
//
// Example:
//
//	idx, err := ivfshard.New("products", 128, 1_000_000).
//	    Nodes("node-a", "node-b").
//	    Shards(4).
//	    Seed(42).
//	    Build()
func New(name string, d int, expectedN uint64) Builder {
	return Builder{
		name:       name,
		dimension:  d,
		expectedN:  expectedN,
		shardCount: 1,
		nodes:      []string{"local"},
		seed:       1,
		nIter:      25,
		nRedo:      1,
		minPoints:  39,
		maxPoints:  256,
		maxRatio:   1.0,
	}
}

// Builder is an immutable fluent builder for creating Index instances.
// Each method returns a new builder with the updated configuration.
type Builder struct {
	name      string
	dimension int
	expectedN uint64

	nlist      int
	shardCount int
	nodes      []string

	seed      int64
	nIter     int
	nRedo     int
	minPoints int
	maxPoints int
	maxRatio  float64
	sampler   kmeans.Sampler

	workerPoolSize int
	searchTimeout  time.Duration

	logger  *Logger
	metrics MetricsCollector
}

// NList overrides the automatically derived centroid count (nlist).
func (b Builder) NList(k int) Builder {
	b.nlist = k
	return b
}

// Shards sets the number of shards the index is partitioned into.
// Default: 1. Must be >= len(nodes) set via Nodes.
func (b Builder) Shards(n int) Builder {
	b.shardCount = n
	return b
}

// Nodes sets the cluster node identifiers shards are placed on,
// round-robin by shard index. Default: a single local node.
func (b Builder) Nodes(nodes ...string) Builder {
	b.nodes = nodes
	return b
}

// Seed sets the deterministic PRNG seed used for sampling and centroid
// initialization during Build.
func (b Builder) Seed(seed int64) Builder {
	b.seed = seed
	return b
}

// NIter sets the maximum number of Lloyd refinement passes per clustering
// restart. Default: 25.
func (b Builder) NIter(n int) Builder {
	b.nIter = n
	return b
}

// NRedo sets the number of independent clustering restarts; the
// lowest-cost restart is kept. Default: 1.
func (b Builder) NRedo(n int) Builder {
	b.nRedo = n
	return b
}

// MinPointsPerCentroid sets the lower bound used when computing the
// training sample size. Default: 39.
func (b Builder) MinPointsPerCentroid(n int) Builder {
	b.minPoints = n
	return b
}

// MaxPointsPerCentroid sets the upper bound used when computing the
// training sample size. Default: 256.
func (b Builder) MaxPointsPerCentroid(n int) Builder {
	b.maxPoints = n
	return b
}

// MaxSampleRatio hard-caps the training sample as a fraction of n.
// Default: 1.0.
func (b Builder) MaxSampleRatio(ratio float64) Builder {
	b.maxRatio = ratio
	return b
}

// Sampler overrides the sampler used to draw the training sample.
func (b Builder) Sampler(s kmeans.Sampler) Builder {
	b.sampler = s
	return b
}

// WorkerPoolSize bounds the number of goroutines used to fan out
// shard-local searches and build-time staging work.
// Default: 0 (runtime.GOMAXPROCS(0)).
func (b Builder) WorkerPoolSize(n int) Builder {
	b.workerPoolSize = n
	return b
}

// SearchTimeout sets a per-request deadline. On expiry, shard scans that
// have not started yet are skipped and their shards reported unavailable;
// scans already running finish and their hits are merged. Either way Search
// returns a partial result. Default: 0 (no deadline).
func (b Builder) SearchTimeout(d time.Duration) Builder {
	b.searchTimeout = d
	return b
}

// Logger sets the structured logger for operation tracing.
func (b Builder) Logger(l *Logger) Builder {
	b.logger = l
	return b
}

// Metrics sets the metrics collector for monitoring.
func (b Builder) Metrics(mc MetricsCollector) Builder {
	b.metrics = mc
	return b
}

// Build creates the Index.
func (b Builder) Build() (*Index, error) {
	if b.nodes == nil {
		b.nodes = []string{"local"}
	}
	if b.shardCount <= 0 {
		b.shardCount = 1
	}

	var optFns []Option
	optFns = append(optFns,
		WithSeed(b.seed),
		WithNIter(b.nIter),
		WithNRedo(b.nRedo),
		WithMinPointsPerCentroid(b.minPoints),
		WithMaxPointsPerCentroid(b.maxPoints),
		WithMaxSampleRatio(b.maxRatio),
		WithShardCount(b.shardCount),
		WithNodes(b.nodes...),
		WithWorkerPoolSize(b.workerPoolSize),
		WithSearchTimeout(b.searchTimeout),
	)
	if b.sampler != nil {
		optFns = append(optFns, WithSampler(b.sampler))
	}
	if b.nlist > 0 {
		optFns = append(optFns, WithNList(b.nlist))
	}
	if b.logger != nil {
		optFns = append(optFns, WithLogger(b.logger))
	}
	if b.metrics != nil {
		optFns = append(optFns, WithMetrics(b.metrics))
	}

	return newIndex(b.name, b.dimension, b.expectedN, optFns...)
}

// MustBuild creates the Index, panicking on error.
func (b Builder) MustBuild() *Index {
	idx, err := b.Build()
	if err != nil {
		panic(err)
	}
	return idx
}
