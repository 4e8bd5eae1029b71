// Package distance provides the squared L2 distance kernel shared by
// clustering and search.
//
// # Usage
//
//	dist := distance.SquaredL2(a, b)
//	idx, dist := distance.ArgMinSquaredL2(query, candidates)
package distance
