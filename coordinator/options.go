package coordinator

import (
	"time"

	"github.com/hupe1980/ivfshard/kmeans"
)

// Config holds every knob the coordinator accepts, either directly or via
// the Option functions below. New starts from defaultConfig and applies
// each Option over it, so a field an Option sets to zero stays zero; only
// NList <= 0 is replaced, by ChooseK.
type Config struct {
	// NList overrides the automatically chosen centroid count (nlist).
	// Zero means "derive from expected dataset size via ChooseK".
	NList int

	Seed                  int64
	NIter                 int
	NRedo                 int
	MinPointsPerCentroid  int
	MaxPointsPerCentroid  int
	MaxSampleRatio        float64
	Sampler               kmeans.Sampler

	WorkerPoolSize int
	SearchTimeout  time.Duration

	Logger  Logger
	Metrics MetricsCollector
}

func defaultConfig() Config {
	return Config{
		Seed:                 1,
		NIter:                25,
		NRedo:                1,
		MinPointsPerCentroid: 39,
		MaxPointsPerCentroid: 256,
		MaxSampleRatio:       1.0,
		Sampler:              kmeans.ShufflePrefixSampler{},
		WorkerPoolSize:       0, // 0 means "runtime.GOMAXPROCS(0)"
		SearchTimeout:        0, // 0 means "no deadline"
		Logger:               noopLogger{},
		Metrics:              noopMetrics{},
	}
}

func (c Config) kmeansConfig() kmeans.Config {
	return kmeans.Config{
		NIter:                c.NIter,
		NRedo:                c.NRedo,
		Seed:                 c.Seed,
		MinPointsPerCentroid: c.MinPointsPerCentroid,
		MaxPointsPerCentroid: c.MaxPointsPerCentroid,
		MaxSampleRatio:       c.MaxSampleRatio,
		Sampler:              c.Sampler,
	}
}

// Option configures a Coordinator at construction time.
type Option func(*Config)

// WithNList overrides the automatically derived centroid count.
func WithNList(k int) Option {
	return func(c *Config) { c.NList = k }
}

// WithSeed sets the deterministic PRNG seed used for sampling and
// centroid initialization.
func WithSeed(seed int64) Option {
	return func(c *Config) { c.Seed = seed }
}

// WithNIter sets the maximum number of Lloyd refinement passes per
// clustering restart.
func WithNIter(n int) Option {
	return func(c *Config) { c.NIter = n }
}

// WithNRedo sets the number of independent clustering restarts; the
// lowest-cost restart is kept.
func WithNRedo(n int) Option {
	return func(c *Config) { c.NRedo = n }
}

// WithMinPointsPerCentroid sets the lower bound used when computing the
// training sample size.
func WithMinPointsPerCentroid(n int) Option {
	return func(c *Config) { c.MinPointsPerCentroid = n }
}

// WithMaxPointsPerCentroid sets the upper bound used when computing the
// training sample size.
func WithMaxPointsPerCentroid(n int) Option {
	return func(c *Config) { c.MaxPointsPerCentroid = n }
}

// WithMaxSampleRatio hard-caps the training sample as a fraction of n.
func WithMaxSampleRatio(ratio float64) Option {
	return func(c *Config) { c.MaxSampleRatio = ratio }
}

// WithSampler overrides the sampler used to draw the training sample.
func WithSampler(s kmeans.Sampler) Option {
	return func(c *Config) { c.Sampler = s }
}

// WithWorkerPoolSize bounds the number of goroutines used to fan out
// shard-local searches and build-time staging work. 0 defaults to
// runtime.GOMAXPROCS(0).
func WithWorkerPoolSize(n int) Option {
	return func(c *Config) { c.WorkerPoolSize = n }
}

// WithSearchTimeout sets a per-request deadline. On expiry, shard scans that
// have not started yet are skipped and their shards reported unavailable;
// scans already running finish and their hits are merged. Either way Search
// returns a PartialResult. Zero means no deadline.
func WithSearchTimeout(d time.Duration) Option {
	return func(c *Config) { c.SearchTimeout = d }
}

// WithLogger installs the leveled-text sink for build progress and shard
// errors.
func WithLogger(l Logger) Option {
	return func(c *Config) {
		if l != nil {
			c.Logger = l
		}
	}
}

// WithMetrics installs the counters/histograms sink for build and search
// outcomes.
func WithMetrics(m MetricsCollector) Option {
	return func(c *Config) {
		if m != nil {
			c.Metrics = m
		}
	}
}
