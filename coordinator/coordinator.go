// Package coordinator implements the distributed IVF coordinator: it
// trains the global coarse quantizer, assigns postings to shards placed on
// cluster nodes, and dispatches probe-restricted queries to those shards,
// merging their local results into a single ranked answer.
package coordinator

import (
	"fmt"
	"sync"

	"github.com/hupe1980/ivfshard/ivf"
	"github.com/hupe1980/ivfshard/kmeans"
)

// State is the coordinator's lifecycle state.
type State int

const (
	// StateEmpty holds neither centroids nor postings.
	StateEmpty State = iota
	// StateTrained holds centroids but no postings; Search is not
	// permitted yet.
	StateTrained
	// StatePopulated holds centroids and postings; Search is permitted.
	StatePopulated
)

func (s State) String() string {
	switch s {
	case StateEmpty:
		return "Empty"
	case StateTrained:
		return "Trained"
	case StatePopulated:
		return "Populated"
	default:
		return "Unknown"
	}
}

// Logger is the narrow leveled-text sink the coordinator reports build
// progress and shard failures through. The root package's *ivfshard.Logger
// satisfies this interface structurally.
type Logger interface {
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// MetricsCollector is the narrow counters/histograms sink the coordinator
// reports build and search outcomes through.
type MetricsCollector interface {
	RecordBuild(nVectors, nCentroids int, took float64)
	RecordSearch(nprobe, kOut, hits int, took float64, partial bool)
	RecordShardUnavailable(shardID uint32)
}

type noopLogger struct{}

func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

type noopMetrics struct{}

func (noopMetrics) RecordBuild(int, int, float64)             {}
func (noopMetrics) RecordSearch(int, int, int, float64, bool) {}
func (noopMetrics) RecordShardUnavailable(uint32)             {}

// Coordinator owns the global centroid table and the set of shard handles
// it routes postings and queries to. It exclusively owns its shards; a
// shard exclusively owns its postings; cross-references back to the
// coordinator are not needed during search.
type Coordinator struct {
	name string
	d    int
	cfg  Config

	mu         sync.RWMutex
	state      State
	shardCount int
	nodes      []string
	shards     []*ivf.Shard
	centroids  *kmeans.Centroids
	n          uint64 // total vectors conserved across shards

	// mutateMu serializes the mutation API (Add, Remove, Update) against
	// itself: at most one mutator runs at a time. Each shard's own
	// sync.RWMutex still lets concurrent searches proceed against shards the
	// in-flight mutation isn't touching.
	mutateMu sync.Mutex
}

// New constructs a coordinator for a d-dimensional index, expected to hold
// roughly expectedN vectors, partitioned into shardCount shards placed
// round-robin across nodes. Requires shardCount >= len(nodes) > 0 and
// shardCount > 0. The centroid count (nlist) is chosen from expectedN via
// ChooseK unless overridden with WithNList.
func New(name string, d int, expectedN uint64, shardCount int, nodes []string, opts ...Option) (*Coordinator, error) {
	if d <= 0 {
		return nil, fmt.Errorf("%w: dimension must be positive, got %d", ErrInvalidDimension, d)
	}
	if len(nodes) == 0 {
		return nil, fmt.Errorf("%w: at least one node is required", ErrInvalidArgument)
	}
	if shardCount <= 0 || shardCount < len(nodes) {
		return nil, fmt.Errorf("%w: shard_count (%d) must be >= nodes.len() (%d) and > 0", ErrInvalidArgument, shardCount, len(nodes))
	}

	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.NList <= 0 {
		cfg.NList = ChooseK(expectedN)
	}

	shards := make([]*ivf.Shard, shardCount)
	for i := 0; i < shardCount; i++ {
		shards[i] = ivf.NewShard(uint32(i), nodes[i%len(nodes)], d)
	}

	return &Coordinator{
		name:       name,
		d:          d,
		cfg:        cfg,
		state:      StateEmpty,
		shardCount: shardCount,
		nodes:      nodes,
		shards:     shards,
	}, nil
}

// ChooseK selects nlist (k) from an expected dataset size, per the table:
// below 10^6 it scales as floor(8*sqrt(N)); above that it steps through
// fixed powers of two up to 10^9, beyond which k == N.
func ChooseK(expectedN uint64) int {
	switch {
	case expectedN < 1_000_000:
		// floor(8*sqrt(N)) == isqrt(64*N): compute via integer sqrt of 64*N
		// rather than 8*isqrt(N), which rounds down a factor of 8 too early
		// for any N that isn't a perfect square.
		k := int(isqrt(64 * expectedN))
		if k < 1 {
			k = 1
		}
		return k
	case expectedN < 10_000_000:
		return 65_536
	case expectedN < 100_000_000:
		return 262_144
	case expectedN < 1_000_000_000:
		return 1_048_576
	default:
		return int(expectedN)
	}
}

// isqrt returns floor(sqrt(n)) using integer Newton's method, avoiding
// float64 precision loss for n near the upper end of the < 10^6 band.
func isqrt(n uint64) uint64 {
	if n == 0 {
		return 0
	}
	x := n
	y := (x + 1) / 2
	for y < x {
		x = y
		y = (x + n/x) / 2
	}
	return x
}

// ShardForCentroid returns the shard index that owns centroid c: stable
// and deterministic for the life of the index.
func (c *Coordinator) ShardForCentroid(centroid uint32) int {
	return int(centroid) % c.shardCount
}

// NodeForShard returns the node hosting shard i.
func (c *Coordinator) NodeForShard(i int) string {
	return c.nodes[i%len(c.nodes)]
}

// Dimension returns the configured vector dimension.
func (c *Coordinator) Dimension() int {
	return c.d
}

// State returns the coordinator's current lifecycle state.
func (c *Coordinator) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// Size returns the total number of vectors conserved across all shards'
// postings.
func (c *Coordinator) Size() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.n
}

// NList returns the number of centroids (k) the quantizer was trained
// with, or the configured/derived value before Build has run.
func (c *Coordinator) NList() int {
	return c.cfg.NList
}

// ShardCount returns the number of shards the coordinator was constructed
// with.
func (c *Coordinator) ShardCount() int {
	return c.shardCount
}

// Shard returns the i-th shard handle, primarily for tests and
// administrative introspection (e.g. SetUnavailable).
func (c *Coordinator) Shard(i int) *ivf.Shard {
	return c.shards[i]
}

// Centroids returns the trained centroid table, or nil if the coordinator
// has not been trained yet. Shared with callers for serialization; treat
// as read-only.
func (c *Coordinator) Centroids() *kmeans.Centroids {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.centroids
}

// Nodes returns the node list shards are placed across, in placement order.
func (c *Coordinator) Nodes() []string {
	return c.nodes
}

// Restore installs a previously-trained centroid table and per-shard
// postings into a freshly-constructed (StateEmpty) coordinator, bypassing
// k-means training. It is the inverse of Build for loading a persisted
// index: shardPostings maps each shard index to the centroid->posting
// assignments that shard owns.
//
// Restore requires the coordinator to be in StateEmpty and centroids.D to
// match the coordinator's configured dimension; it returns ErrInvalidState
// or ErrInvalidDimension otherwise.
func (c *Coordinator) Restore(centroids *kmeans.Centroids, shardPostings map[int]map[uint32]*ivf.InvertedList, n uint64) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StateEmpty {
		return fmt.Errorf("%w: restore requires an empty coordinator, got %s", ErrInvalidState, c.state)
	}
	if centroids.D != c.d {
		return fmt.Errorf("%w: centroid dimension %d does not match coordinator dimension %d", ErrInvalidDimension, centroids.D, c.d)
	}

	for shardIdx, postings := range shardPostings {
		if shardIdx < 0 || shardIdx >= c.shardCount {
			return fmt.Errorf("%w: shard index %d out of range [0,%d)", ErrInvalidArgument, shardIdx, c.shardCount)
		}
		for centroid, list := range postings {
			c.shards[shardIdx].AddPosting(centroid, list)
		}
	}

	c.centroids = centroids
	c.cfg.NList = centroids.K
	c.n = n
	c.state = StatePopulated
	return nil
}
