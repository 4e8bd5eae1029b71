package persist

import (
	"context"
	"fmt"

	"github.com/hupe1980/ivfshard/blobstore"
	"github.com/hupe1980/ivfshard/coordinator"
	"github.com/hupe1980/ivfshard/internal/resource"
)

// Save encodes coord's trained state and writes it to store under name,
// then publishes a manifest recording the placement topology that
// produced it. coord must be in StateTrained or StatePopulated.
//
// If io is non-nil and configured with an IOLimitBytesPerSec, the write is
// throttled to that rate; pass nil for unlimited throughput.
func Save(ctx context.Context, store blobstore.BlobStore, coord *coordinator.Coordinator, name string, c Compression, version uint64, io *resource.Controller) error {
	blob, err := Encode(coord, c)
	if err != nil {
		return err
	}
	if err := io.AcquireIO(ctx, len(blob)); err != nil {
		return fmt.Errorf("persist: io limit: %w", err)
	}
	if err := store.Put(ctx, name, blob); err != nil {
		return fmt.Errorf("persist: write data blob %q: %w", name, err)
	}
	return PutManifest(ctx, store, ManifestFor(coord, version, name, c))
}

// Load reads the active manifest from store, fetches the data blob it
// names, and restores a coordinator in StatePopulated from it. nodes
// overrides the placement the manifest recorded only if non-empty;
// otherwise the manifest's own node list is used, preserving shard->node
// assignment across a restart.
func Load(ctx context.Context, store blobstore.BlobStore, name string, nodes []string, opts ...coordinator.Option) (*coordinator.Coordinator, error) {
	m, err := GetManifest(ctx, store)
	if err != nil {
		return nil, err
	}

	blobHandle, err := store.Open(ctx, m.DataBlob)
	if err != nil {
		return nil, fmt.Errorf("persist: open data blob %q: %w", m.DataBlob, err)
	}
	defer blobHandle.Close()

	buf := make([]byte, blobHandle.Size())
	if _, err := blobHandle.ReadAt(ctx, buf, 0); err != nil {
		return nil, fmt.Errorf("persist: read data blob %q: %w", m.DataBlob, err)
	}

	centroids, shardPostings, n, err := Decode(buf)
	if err != nil {
		return nil, err
	}

	placementNodes := m.Nodes
	if len(nodes) > 0 {
		placementNodes = nodes
	}

	// Pin NList to the manifest's value so New doesn't re-derive it from
	// expectedN via ChooseK; Restore validates centroids against it.
	optsWithNList := append([]coordinator.Option{coordinator.WithNList(m.NList)}, opts...)
	coord, err := coordinator.New(name, m.Dimension, uint64(n), m.ShardCount, placementNodes, optsWithNList...)
	if err != nil {
		return nil, err
	}
	if err := coord.Restore(centroids, shardPostings, n); err != nil {
		return nil, err
	}
	return coord, nil
}
