// Package ivfshard provides functionalities for a distributed IVF vector
// index.
//
// This file implements a fluent search API for querying Index instances.
package ivfshard

import (
	"context"
	"fmt"
)

// Search creates a new fluent search builder for the given query vector.
//
// Example:
//
//	results, err := idx.Search(query).
//	    KNN(10).
//	    NProbe(8).
//	    Execute(ctx)
func (idx *Index) Search(query []float32) *SearchBuilder {
	return &SearchBuilder{
		idx:    idx,
		query:  query,
		k:      10, // Default k
		nprobe: 8,  // Default nprobe
	}
}

// SearchBuilder is a fluent builder for constructing search queries.
type SearchBuilder struct {
	idx    *Index
	query  []float32
	k      int
	nprobe int
}

// KNN sets the number of nearest neighbors to return.
func (sb *SearchBuilder) KNN(k int) *SearchBuilder {
	sb.k = k
	return sb
}

// NProbe sets the number of centroid buckets to probe. Higher values
// improve recall but touch more shards and postings.
func (sb *SearchBuilder) NProbe(nprobe int) *SearchBuilder {
	sb.nprobe = nprobe
	return sb
}

// Execute runs the search and returns the result.
func (sb *SearchBuilder) Execute(ctx context.Context) (Result, error) {
	return sb.idx.KNNSearch(ctx, sb.query, sb.k, sb.nprobe)
}

// MustExecute runs the search, panicking on error.
// Use this only in tests or when you're certain the query is valid.
func (sb *SearchBuilder) MustExecute(ctx context.Context) Result {
	res, err := sb.Execute(ctx)
	if err != nil {
		panic(err)
	}
	return res
}

// First returns only the nearest hit, or an error if none found.
func (sb *SearchBuilder) First(ctx context.Context) (Hit, error) {
	sb.k = 1
	res, err := sb.Execute(ctx)
	if err != nil {
		return Hit{}, err
	}
	if len(res.Hits) == 0 {
		return Hit{}, fmt.Errorf("%w: no hits found", ErrInvalidState)
	}
	return res.Hits[0], nil
}

// Count executes the search and returns the number of hits.
func (sb *SearchBuilder) Count(ctx context.Context) (int, error) {
	res, err := sb.Execute(ctx)
	if err != nil {
		return 0, err
	}
	return len(res.Hits), nil
}

// Exists checks if at least one hit matches the search.
func (sb *SearchBuilder) Exists(ctx context.Context) (bool, error) {
	sb.k = 1
	res, err := sb.Execute(ctx)
	if err != nil {
		return false, err
	}
	return len(res.Hits) > 0, nil
}
