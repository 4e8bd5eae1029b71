// Package ivfshard provides a distributed IVF (Inverted File) approximate
// nearest neighbor vector index for Go.
//
// ivfshard partitions a coarse-quantized vector index across shards placed
// on cluster nodes. A single coarse quantizer (k-means centroids) is
// trained once; each centroid's posting list is routed to exactly one
// shard, and queries are dispatched only to the shards holding the
// centroids closest to the query (the nprobe probe set), merging their
// local top-k results into one ranked answer.
//
// # Key features
//
//   - Mini-batch Lloyd k-means coarse quantizer with deterministic,
//     seedable training and configurable restarts
//   - Deterministic shard/centroid placement: shard i lives on
//     nodes[i % len(nodes)], centroid c is owned by shard c % shardCount
//   - Bounded-fan-out search via a worker pool, degrading to a partial
//     result (rather than a hard error) when a shard is slow or down
//   - Roaring-bitmap tracking of unavailable shards for compact partial
//     result reporting
//   - Structured logging (log/slog) and pluggable metrics collection
//
// # Quick Start
//
//	idx, err := ivfshard.New("products", 128, 1_000_000).
//	    Nodes("node-a", "node-b", "node-c").
//	    Shards(6).
//	    Seed(42).
//	    Build()
//	if err != nil {
//	    panic(err)
//	}
//
//	err = idx.Train(ctx, vectors, ids)
//
//	results, err := idx.Search(query).
//	    KNN(10).
//	    NProbe(8).
//	    Execute(ctx)
//	if results.Partial {
//	    log.Printf("degraded result: shards %v unavailable", results.UnavailableShards.ToArray())
//	}
package ivfshard
