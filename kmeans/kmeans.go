// Package kmeans fits a coarse quantizer to a set of vectors using
// mini-batch Lloyd's algorithm: an optional sampling pass reduces the
// working set, then several independent restarts are run and the
// lowest-cost restart is kept.
package kmeans

import (
	"errors"
	"fmt"
	"math"
	"math/rand"

	"github.com/hupe1980/ivfshard/distance"
)

// ErrInsufficientData is returned by Train when fewer vectors than
// centroids are supplied.
var ErrInsufficientData = errors.New("kmeans: n < k")

// ErrInvalidDimension is returned by Train when the flattened vectors
// slice length is not a multiple of the configured dimension, or
// disagrees with the caller-supplied vector count.
type ErrInvalidDimension struct {
	Dimension int
	Got       int
}

func (e *ErrInvalidDimension) Error() string {
	return fmt.Sprintf("kmeans: vectors length %d is inconsistent with dimension %d", e.Got, e.Dimension)
}

// Sampler draws s distinct indices uniformly without replacement from
// [0, n). Implementations need not be safe for concurrent use; callers
// own a private rand.Rand per call.
type Sampler interface {
	Sample(rng *rand.Rand, n, s int) []int
}

// ShufflePrefixSampler shuffles [0, n) and takes the first s indices.
// O(n) time and space; simplest correct sampler for small to medium n.
type ShufflePrefixSampler struct{}

func (ShufflePrefixSampler) Sample(rng *rand.Rand, n, s int) []int {
	perm := rng.Perm(n)
	return perm[:s]
}

// ReservoirSampler implements Algorithm R: O(n) time, O(s) space.
// Preferred over ShufflePrefixSampler when n is large relative to s,
// since it never materializes a full permutation of n.
type ReservoirSampler struct{}

func (ReservoirSampler) Sample(rng *rand.Rand, n, s int) []int {
	reservoir := make([]int, s)
	for i := 0; i < s; i++ {
		reservoir[i] = i
	}
	for i := s; i < n; i++ {
		j := rng.Intn(i + 1)
		if j < s {
			reservoir[j] = i
		}
	}
	return reservoir
}

// Config controls the mini-batch Lloyd's algorithm.
type Config struct {
	// NIter is the maximum number of refinement passes per restart.
	NIter int
	// NRedo is the number of independent restarts; the lowest-cost
	// restart's centroids are returned.
	NRedo int
	// Seed is the deterministic PRNG seed. Restart i is seeded with
	// Seed + i.
	Seed int64
	// MinPointsPerCentroid and MaxPointsPerCentroid bound the sample
	// size per centroid used to compute the training sample size.
	MinPointsPerCentroid int
	MaxPointsPerCentroid int
	// MaxSampleRatio hard-caps the sample as a fraction of n.
	MaxSampleRatio float64
	// Sampler draws the training sample; defaults to ShufflePrefixSampler.
	Sampler Sampler
}

// DefaultConfig returns conservative defaults suitable for small to
// medium training sets.
func DefaultConfig() Config {
	return Config{
		NIter:                25,
		NRedo:                1,
		Seed:                 1,
		MinPointsPerCentroid: 39,
		MaxPointsPerCentroid: 256,
		MaxSampleRatio:       1.0,
		Sampler:              ShufflePrefixSampler{},
	}
}

// Centroids holds a dense k x d matrix of fitted centroids.
type Centroids struct {
	K    int
	D    int
	Data []float32 // len == K*D
}

// At returns the j-th centroid as a slice sharing storage with Data.
func (c *Centroids) At(j int) []float32 {
	return c.Data[j*c.D : (j+1)*c.D]
}

// Clone returns a deep copy of c.
func (c *Centroids) Clone() *Centroids {
	data := make([]float32, len(c.Data))
	copy(data, c.Data)
	return &Centroids{K: c.K, D: c.D, Data: data}
}

// SampleSize computes the training sample size s per:
//
//	s = clamp(min(n, k*u, floor(max_sample_ratio*n)), lower=k, upper=n)
//	u ~ UniformInt[min_points_per_centroid, max_points_per_centroid]
//
// u is drawn once from rng, matching "drawn once per training call".
func SampleSize(n, k int, cfg Config, rng *rand.Rand) int {
	lo, hi := cfg.MinPointsPerCentroid, cfg.MaxPointsPerCentroid
	if lo <= 0 {
		lo = 1
	}
	if hi < lo {
		hi = lo
	}

	u := lo
	if hi > lo {
		u = lo + rng.Intn(hi-lo+1)
	}

	ratio := cfg.MaxSampleRatio
	if ratio <= 0 {
		ratio = 1.0
	}
	ratioCap := int(math.Floor(ratio * float64(n)))

	s := min(n, k*u)
	s = min(s, ratioCap)

	if s < k {
		s = k
	}
	if s > n {
		s = n
	}
	return s
}

// Train fits k centroids to n vectors of dimension d using mini-batch
// Lloyd's algorithm. vectors must have length n*d. Fails with
// ErrInsufficientData if n < k, or *ErrInvalidDimension if the vectors
// slice length disagrees with n*d.
func Train(vectors []float32, n, d, k int, cfg Config) (*Centroids, error) {
	if d <= 0 || len(vectors)%d != 0 || len(vectors)/d != n {
		return nil, &ErrInvalidDimension{Dimension: d, Got: len(vectors)}
	}
	if n < k {
		return nil, ErrInsufficientData
	}

	sampler := cfg.Sampler
	if sampler == nil {
		sampler = ShufflePrefixSampler{}
	}

	sizingRNG := rand.New(rand.NewSource(cfg.Seed))
	s := SampleSize(n, k, cfg, sizingRNG)

	batch, bn := vectors, n
	if s < n {
		idx := sampler.Sample(sizingRNG, n, s)
		batch = make([]float32, s*d)
		for i, srcIdx := range idx {
			copy(batch[i*d:(i+1)*d], vectors[srcIdx*d:(srcIdx+1)*d])
		}
		bn = s
	}

	niter := cfg.NIter
	if niter <= 0 {
		niter = 25
	}
	nredo := cfg.NRedo
	if nredo <= 0 {
		nredo = 1
	}

	var best *Centroids
	bestCost := math.Inf(1)

	for redo := 0; redo < nredo; redo++ {
		rng := rand.New(rand.NewSource(cfg.Seed + int64(redo)))
		centroids, cost := lloyd(batch, bn, d, k, niter, rng)
		if cost < bestCost {
			bestCost = cost
			best = centroids
		}
	}

	return best, nil
}

// lloyd runs one restart to convergence (max_change < 1e-6) or niter
// iterations, whichever comes first. It returns the fitted centroids and
// the total assignment cost (sum of squared distances) of the final
// assignment pass.
func lloyd(vectors []float32, n, d, k, niter int, rng *rand.Rand) (*Centroids, float64) {
	perm := rng.Perm(n)
	data := make([]float32, k*d)
	for j := 0; j < k; j++ {
		copy(data[j*d:(j+1)*d], vectors[perm[j]*d:(perm[j]+1)*d])
	}

	assignments := make([]int, n)
	counts := make([]int, k)
	sums := make([]float32, k*d)
	newCentroid := make([]float32, d)

	var cost float64

	for iter := 0; iter < niter; iter++ {
		cost = 0
		for i := 0; i < n; i++ {
			vec := vectors[i*d : (i+1)*d]
			bestJ, bestDist := 0, distance.SquaredL2(vec, data[0:d])
			for j := 1; j < k; j++ {
				dd := distance.SquaredL2(vec, data[j*d:(j+1)*d])
				if dd < bestDist {
					bestDist = dd
					bestJ = j
				}
			}
			assignments[i] = bestJ
			cost += float64(bestDist)
		}

		for i := range sums {
			sums[i] = 0
		}
		for j := range counts {
			counts[j] = 0
		}
		for i := 0; i < n; i++ {
			c := assignments[i]
			vec := vectors[i*d : (i+1)*d]
			for dIdx := 0; dIdx < d; dIdx++ {
				sums[c*d+dIdx] += vec[dIdx]
			}
			counts[c]++
		}

		var maxChange float32
		for j := 0; j < k; j++ {
			if counts[j] == 0 {
				// Retain prior position; no re-seeding of empty clusters.
				continue
			}
			scale := 1 / float32(counts[j])
			for dIdx := 0; dIdx < d; dIdx++ {
				newCentroid[dIdx] = sums[j*d+dIdx] * scale
			}
			change := distance.SquaredL2(data[j*d:(j+1)*d], newCentroid)
			if change > maxChange {
				maxChange = change
			}
			copy(data[j*d:(j+1)*d], newCentroid)
		}

		if iter > 0 && maxChange < 1e-6 {
			break
		}
	}

	return &Centroids{K: k, D: d, Data: data}, cost
}
