// Package ivf implements the inverted-list posting structure and the
// per-shard search that scans it: the storage layer a distributed
// coordinator routes postings into and dispatches queries against.
package ivf

// InvertedList is the bucket of (id, vector) pairs assigned to one
// centroid. Vectors are stored contiguously by centroid so a probe can scan
// the list with a tight inner loop over cache-friendly memory. The build
// pipeline only ever appends; RemoveID/UpdateVector exist solely for the
// mutation API (coordinator.Remove/Update) and are not safe to call
// concurrently with a scan of the same list.
type InvertedList struct {
	dim     int
	ids     []int64
	vectors []float32
}

// NewInvertedList returns an empty list for vectors of dimension dim.
func NewInvertedList(dim int) *InvertedList {
	return &InvertedList{dim: dim}
}

// NewInvertedListWithCapacity returns an empty list for vectors of
// dimension dim, pre-sized to hold capacity entries without reallocating.
// Used by the build pipeline to pre-reserve per-centroid staging buffers
// to their expected average size.
func NewInvertedListWithCapacity(dim, capacity int) *InvertedList {
	if capacity < 0 {
		capacity = 0
	}
	return &InvertedList{
		dim:     dim,
		ids:     make([]int64, 0, capacity),
		vectors: make([]float32, 0, capacity*dim),
	}
}

// Append adds (id, vector) to the list. vector must have length dim;
// amortized O(1).
func (l *InvertedList) Append(id int64, vector []float32) {
	l.ids = append(l.ids, id)
	l.vectors = append(l.vectors, vector...)
}

// AppendAll extends the list with another list's entries, in that list's
// order. Used when a shard receives a second posting for a centroid it
// already owns.
func (l *InvertedList) AppendAll(other *InvertedList) {
	l.ids = append(l.ids, other.ids...)
	l.vectors = append(l.vectors, other.vectors...)
}

// Len returns the number of entries in the list.
func (l *InvertedList) Len() int {
	return len(l.ids)
}

// IDs returns the list's ids in insertion order. The returned slice shares
// storage with the list and must be treated as read-only.
func (l *InvertedList) IDs() []int64 {
	return l.ids
}

// Vectors returns the flattened vector storage; len == IDs()*dim. The
// returned slice shares storage with the list and must be treated as
// read-only.
func (l *InvertedList) Vectors() []float32 {
	return l.vectors
}

// At returns the i-th stored vector, sharing storage with the list.
func (l *InvertedList) At(i int) []float32 {
	return l.vectors[i*l.dim : (i+1)*l.dim]
}

// RemoveID removes every entry whose id equals id, preserving the relative
// order of the remaining entries. Used by the mutation API's Remove, which
// is allowed to fall outside the append-only contract the build pipeline
// relies on. Returns the number of entries removed.
func (l *InvertedList) RemoveID(id int64) int {
	removed := 0
	w := 0
	for r := 0; r < len(l.ids); r++ {
		if l.ids[r] == id {
			removed++
			continue
		}
		if w != r {
			l.ids[w] = l.ids[r]
			copy(l.vectors[w*l.dim:(w+1)*l.dim], l.vectors[r*l.dim:(r+1)*l.dim])
		}
		w++
	}
	l.ids = l.ids[:w]
	l.vectors = l.vectors[:w*l.dim]
	return removed
}

// UpdateVector overwrites the stored vector for every entry whose id equals
// id with vector, which must have length dim. Used by the mutation API's
// Update. Returns the number of entries updated.
func (l *InvertedList) UpdateVector(id int64, vector []float32) int {
	updated := 0
	for i, existing := range l.ids {
		if existing == id {
			copy(l.vectors[i*l.dim:(i+1)*l.dim], vector)
			updated++
		}
	}
	return updated
}

// Dim returns the vector dimension entries in this list are stored with.
func (l *InvertedList) Dim() int {
	return l.dim
}
