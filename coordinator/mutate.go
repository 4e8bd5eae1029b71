package coordinator

import (
	"encoding/binary"
	"fmt"

	"github.com/cespare/xxhash/v2"

	"github.com/hupe1980/ivfshard/distance"
	"github.com/hupe1980/ivfshard/ivf"
)

// ShardForDocID maps id to a shard index via a stable hash, independent of
// centroid ownership. Remove and Update route through this to reach a
// candidate shard directly instead of broadcasting to every shard first.
func (c *Coordinator) ShardForDocID(id int64) int {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], uint64(id))
	h := xxhash.Sum64(buf[:])
	return int(h % uint64(c.shardCount))
}

// Add appends vector under id into the bucket owned by its nearest centroid
// in the already-trained table. It never retrains centroids: the contract
// is append-only into existing centroid ownership, so mutations after Build
// or Restore do not move the index back to StateTrained or invalidate other
// shards' postings. Requires the coordinator to hold centroids (StateTrained
// or StatePopulated); returns ErrNotBuilt otherwise.
//
// Add serializes against Remove/Update/other Add calls via the coordinator's
// mutation lock; it does not block concurrent Search calls against shards
// it isn't writing to, only the one shard it appends into.
func (c *Coordinator) Add(id int64, vector []float32) error {
	if len(vector) != c.d {
		return fmt.Errorf("%w: vector.len()=%d != dimension %d", ErrInvalidDimension, len(vector), c.d)
	}

	c.mu.RLock()
	state := c.state
	centroids := c.centroids
	c.mu.RUnlock()
	if state == StateEmpty {
		return fmt.Errorf("%w: add requires a trained coordinator", ErrNotBuilt)
	}

	c.mutateMu.Lock()
	defer c.mutateMu.Unlock()

	centroidIdx, _ := distance.ArgMinSquaredL2(vector, centroidSlices(centroids))
	centroid := uint32(centroidIdx)
	shardIdx := c.ShardForCentroid(centroid)

	list := ivf.NewInvertedList(c.d)
	list.Append(id, vector)
	c.shards[shardIdx].AddPosting(centroid, list)

	c.mu.Lock()
	c.n++
	if c.state == StateTrained {
		c.state = StatePopulated
	}
	c.mu.Unlock()

	return nil
}

// Remove deletes every posting entry matching id. It checks id's hash-routed
// home shard (ShardForDocID) first, then the remaining shards, so Remove
// stays correct even though id's actual posting was placed by centroid
// ownership (Build, Restore, Add) rather than by hash — the home shard is
// simply the common case this checks without waiting on every other shard's
// lock first. Returns the number of entries removed.
func (c *Coordinator) Remove(id int64) int {
	c.mutateMu.Lock()
	defer c.mutateMu.Unlock()

	home := c.ShardForDocID(id)
	removed := c.shards[home].RemoveByID(id)
	for i, shard := range c.shards {
		if i == home {
			continue
		}
		removed += shard.RemoveByID(id)
	}

	if removed > 0 {
		c.mu.Lock()
		c.n -= uint64(removed)
		c.mu.Unlock()
	}
	return removed
}

// Update overwrites the stored vector for every posting entry matching id,
// using the same hash-routed-then-fallback shard search as Remove. It does
// not move an entry to a new centroid bucket even if vector's nearest
// centroid changed; a caller needing that should Remove then Add instead.
// vector must have length Dimension(). Returns the number of entries
// updated.
func (c *Coordinator) Update(id int64, vector []float32) (int, error) {
	if len(vector) != c.d {
		return 0, fmt.Errorf("%w: vector.len()=%d != dimension %d", ErrInvalidDimension, len(vector), c.d)
	}

	c.mutateMu.Lock()
	defer c.mutateMu.Unlock()

	home := c.ShardForDocID(id)
	updated := c.shards[home].UpdateByID(id, vector)
	for i, shard := range c.shards {
		if i == home {
			continue
		}
		updated += shard.UpdateByID(id, vector)
	}
	return updated, nil
}
