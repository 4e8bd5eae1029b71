package ivf

import (
	"errors"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/hupe1980/ivfshard/distance"
)

// ErrUnavailable is returned by SearchLocal when the shard cannot serve a
// request, either because its backing store failed or because it has been
// administratively marked unavailable (used to exercise the coordinator's
// PartialResult path in tests and in real deployments alike).
var ErrUnavailable = errors.New("ivf: shard unavailable")

// Hit is a single scored result from a shard-local scan.
type Hit struct {
	ID       int64
	Distance float32
}

// Shard owns a disjoint subset of a coordinator's inverted lists and serves
// probe-restricted search over them. Postings are written by a single
// builder at build time and are read-only during search; concurrent
// SearchLocal calls do not contend with each other, only with a concurrent
// AddPosting.
type Shard struct {
	ID     uint32
	NodeID string
	dim    int

	mu       sync.RWMutex
	postings map[uint32]*InvertedList
	owned    *roaring.Bitmap

	unavailable atomic.Bool
}

// NewShard returns an empty shard for vectors of dimension dim.
func NewShard(id uint32, nodeID string, dim int) *Shard {
	return &Shard{
		ID:       id,
		NodeID:   nodeID,
		dim:      dim,
		postings: make(map[uint32]*InvertedList),
		owned:    roaring.New(),
	}
}

// AddPosting inserts list under centroid, or extends the existing list for
// that centroid with list's entries in append order.
func (s *Shard) AddPosting(centroid uint32, list *InvertedList) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.postings[centroid]; ok {
		existing.AppendAll(list)
		return
	}
	s.postings[centroid] = list
	s.owned.Add(centroid)
}

// Owns reports whether this shard holds the posting for centroid.
func (s *Shard) Owns(centroid uint32) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.owned.Contains(centroid)
}

// Posting returns the inverted list this shard owns for centroid, if any.
// The returned list shares storage with the shard and must be treated as
// read-only; used by the persistence layer to serialize a shard's postings.
func (s *Shard) Posting(centroid uint32) (*InvertedList, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	l, ok := s.postings[centroid]
	return l, ok
}

// OwnedCentroids returns the set of centroids this shard owns, as a cloned
// bitmap safe for the caller to mutate.
func (s *Shard) OwnedCentroids() *roaring.Bitmap {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.owned.Clone()
}

// RemoveByID removes every posting entry matching id across every centroid
// this shard owns. Takes the shard's write lock, so it serializes against
// both SearchLocal and AddPosting. Returns the number of entries removed.
func (s *Shard) RemoveByID(id int64) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for _, list := range s.postings {
		removed += list.RemoveID(id)
	}
	return removed
}

// UpdateByID overwrites the stored vector for every posting entry matching
// id across every centroid this shard owns; vector must have length dim.
// Takes the shard's write lock, so it serializes against both SearchLocal
// and AddPosting. Returns the number of entries updated.
func (s *Shard) UpdateByID(id int64, vector []float32) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	updated := 0
	for _, list := range s.postings {
		updated += list.UpdateVector(id, vector)
	}
	return updated
}

// PostingLen returns the number of entries stored under centroid, or 0 if
// this shard does not own it.
func (s *Shard) PostingLen(centroid uint32) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if l, ok := s.postings[centroid]; ok {
		return l.Len()
	}
	return 0
}

// SetUnavailable flips the shard's availability. A shard marked unavailable
// fails every SearchLocal call with ErrUnavailable until cleared, modeling
// a transient backing-store failure in a persisted deployment.
func (s *Shard) SetUnavailable(v bool) {
	s.unavailable.Store(v)
}

// IsUnavailable reports the shard's current availability flag.
func (s *Shard) IsUnavailable() bool {
	return s.unavailable.Load()
}

// SearchLocal scans every centroid in candidateCentroids that this shard
// owns, scoring each stored vector against query by squared L2 distance,
// and returns the k smallest hits. Shards owning none of the candidates
// return an empty, nil-error result. Ties resolve by scan order: insertion
// order within a list, then the order candidateCentroids supplies.
func (s *Shard) SearchLocal(candidateCentroids []uint32, query []float32, k int) ([]Hit, error) {
	if s.unavailable.Load() {
		return nil, ErrUnavailable
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var hits []Hit
	for _, c := range candidateCentroids {
		list, ok := s.postings[c]
		if !ok {
			continue
		}
		n := list.Len()
		ids := list.IDs()
		for i := 0; i < n; i++ {
			d := distance.SquaredL2(query, list.At(i))
			hits = append(hits, Hit{ID: ids[i], Distance: d})
		}
	}

	sort.SliceStable(hits, func(i, j int) bool {
		return hits[i].Distance < hits[j].Distance
	})

	if len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}
