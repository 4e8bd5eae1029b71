package ivfshard

import (
	"log/slog"
	"time"

	"github.com/hupe1980/ivfshard/coordinator"
	"github.com/hupe1980/ivfshard/kmeans"
)

type options struct {
	seed                 int64
	nIter                int
	nRedo                int
	minPointsPerCentroid int
	maxPointsPerCentroid int
	maxSampleRatio       float64
	sampler              kmeans.Sampler
	nlist                int

	shardCount int
	nodes      []string
	nodesSet   bool

	workerPoolSize int
	searchTimeout  time.Duration

	logger  *Logger
	metrics MetricsCollector

	persistCompression Compression
	ioLimitBytesPerSec int64
}

// Option configures an Index constructor/builder.
//
// Breaking changes are expected while ivfshard is pre-release.
type Option func(*options)

// WithSeed sets the deterministic PRNG seed used for sampling and centroid
// initialization during Build.
func WithSeed(seed int64) Option {
	return func(o *options) { o.seed = seed }
}

// WithNIter sets the maximum number of Lloyd refinement passes per
// clustering restart.
func WithNIter(n int) Option {
	return func(o *options) { o.nIter = n }
}

// WithNRedo sets the number of independent clustering restarts; the
// lowest-cost restart is kept.
func WithNRedo(n int) Option {
	return func(o *options) { o.nRedo = n }
}

// WithMinPointsPerCentroid sets the lower bound used when computing the
// training sample size.
func WithMinPointsPerCentroid(n int) Option {
	return func(o *options) { o.minPointsPerCentroid = n }
}

// WithMaxPointsPerCentroid sets the upper bound used when computing the
// training sample size.
func WithMaxPointsPerCentroid(n int) Option {
	return func(o *options) { o.maxPointsPerCentroid = n }
}

// WithMaxSampleRatio hard-caps the training sample as a fraction of n.
func WithMaxSampleRatio(ratio float64) Option {
	return func(o *options) { o.maxSampleRatio = ratio }
}

// WithSampler overrides the sampler used to draw the training sample
// (ShufflePrefixSampler by default; ReservoirSampler trades O(n) space for
// O(n) time over a single streaming pass).
func WithSampler(s kmeans.Sampler) Option {
	return func(o *options) { o.sampler = s }
}

// WithNList overrides the automatically chosen centroid count (nlist).
// If unset, nlist is derived from ExpectedSize via coordinator.ChooseK.
func WithNList(k int) Option {
	return func(o *options) { o.nlist = k }
}

// WithShardCount sets the number of shards the index is partitioned into.
// Must be >= len(nodes) (WithNodes) and > 0. Default: 1.
func WithShardCount(n int) Option {
	return func(o *options) { o.shardCount = n }
}

// WithNodes sets the cluster node identifiers shards are placed on,
// round-robin by shard index. At least one node is required.
func WithNodes(nodes ...string) Option {
	return func(o *options) {
		o.nodes = nodes
		o.nodesSet = true
	}
}

// WithWorkerPoolSize bounds the number of goroutines used to fan out
// shard-local searches and build-time staging work. 0 (default) uses
// runtime.GOMAXPROCS(0).
func WithWorkerPoolSize(n int) Option {
	return func(o *options) { o.workerPoolSize = n }
}

// WithSearchTimeout sets a per-request deadline. On expiry, shard scans that
// have not started yet are skipped and their shards reported unavailable;
// scans already running finish and their hits are merged. Either way Search
// returns a partial result. Zero (default) means no deadline.
func WithSearchTimeout(d time.Duration) Option {
	return func(o *options) { o.searchTimeout = d }
}

// WithLogger configures structured logging for operations. Pass nil to
// disable logging.
func WithLogger(logger *Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithLogLevel creates a text logger with the specified level and sets it.
// Convenience wrapper for WithLogger(NewTextLogger(level)).
func WithLogLevel(level slog.Level) Option {
	return func(o *options) { o.logger = NewTextLogger(level) }
}

// WithMetrics configures a metrics collector for monitoring operations.
// Pass nil to disable metrics collection.
//
// Example with BasicMetricsCollector:
//
//	metrics := &ivfshard.BasicMetricsCollector{}
//	idx, _ := ivfshard.New("products", 128, 1_000_000, ivfshard.WithMetrics(metrics))
//	// ... use idx ...
//	stats := metrics.GetStats()
func WithMetrics(mc MetricsCollector) Option {
	return func(o *options) { o.metrics = mc }
}

func defaultOptions() options {
	return options{
		seed:                 1,
		nIter:                25,
		nRedo:                1,
		minPointsPerCentroid: 39,
		maxPointsPerCentroid: 256,
		maxSampleRatio:       1.0,
		sampler:              kmeans.ShufflePrefixSampler{},
		shardCount:           1,
		nodes:                []string{"local"},
		logger:               NoopLogger(),
		metrics:              NoopMetricsCollector{},
		persistCompression:   CompressionNone,
	}
}

func applyOptions(optFns []Option) options {
	o := defaultOptions()
	for _, fn := range optFns {
		if fn != nil {
			fn(&o)
		}
	}
	if o.logger == nil {
		o.logger = NoopLogger()
	}
	if o.metrics == nil {
		o.metrics = NoopMetricsCollector{}
	}
	return o
}

// coordinatorOptions translates the root package's options into the
// coordinator package's Option slice.
func (o options) coordinatorOptions() []coordinator.Option {
	opts := []coordinator.Option{
		coordinator.WithSeed(o.seed),
		coordinator.WithNIter(o.nIter),
		coordinator.WithNRedo(o.nRedo),
		coordinator.WithMinPointsPerCentroid(o.minPointsPerCentroid),
		coordinator.WithMaxPointsPerCentroid(o.maxPointsPerCentroid),
		coordinator.WithMaxSampleRatio(o.maxSampleRatio),
		coordinator.WithWorkerPoolSize(o.workerPoolSize),
		coordinator.WithSearchTimeout(o.searchTimeout),
	}
	if o.sampler != nil {
		opts = append(opts, coordinator.WithSampler(o.sampler))
	}
	if o.nlist > 0 {
		opts = append(opts, coordinator.WithNList(o.nlist))
	}
	if o.logger != nil {
		opts = append(opts, coordinator.WithLogger(o.logger))
	}
	if o.metrics != nil {
		opts = append(opts, coordinator.WithMetrics(o.metrics))
	}
	return opts
}
