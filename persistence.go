package ivfshard

import (
	"context"
	"fmt"

	"github.com/hupe1980/ivfshard/blobstore"
	"github.com/hupe1980/ivfshard/coordinator"
	"github.com/hupe1980/ivfshard/internal/resource"
	"github.com/hupe1980/ivfshard/persist"
)

// Compression selects the codec used to compress a persisted index blob.
// It is a re-export of persist.Compression so callers configuring
// WithPersistenceCompression don't need to import the persist package
// directly.
type Compression = persist.Compression

// Compression levels for WithPersistenceCompression.
const (
	CompressionNone = persist.CompressionNone
	CompressionLZ4  = persist.CompressionLZ4
	CompressionZSTD = persist.CompressionZSTD
)

// WithPersistenceCompression sets the compression codec used by Save. The
// default, CompressionNone, stores the blob uncompressed; CompressionLZ4
// trades compression ratio for lower CPU cost, CompressionZSTD the
// reverse. Has no effect on Open/Load, which self-describe their
// compression in the blob header.
func WithPersistenceCompression(c Compression) Option {
	return func(o *options) { o.persistCompression = c }
}

// WithIOLimitBytesPerSec throttles Save's write to the given rate, leaving
// Open/Load unthrottled. 0 (default) means unlimited.
func WithIOLimitBytesPerSec(bytesPerSec int64) Option {
	return func(o *options) { o.ioLimitBytesPerSec = bytesPerSec }
}

// Save encodes idx's trained centroids and shard postings and writes them
// to store under name, then publishes a manifest recording the shard
// placement that produced them. idx must be Trained or Populated;
// ErrInvalidState is returned otherwise.
func (idx *Index) Save(ctx context.Context, store blobstore.BlobStore, name string, version uint64, optFns ...Option) error {
	if idx.State() == coordinator.StateEmpty {
		return fmt.Errorf("%w: cannot save an untrained index", ErrInvalidState)
	}
	opts := applyOptions(optFns)

	var io *resource.Controller
	if opts.ioLimitBytesPerSec > 0 {
		io = resource.NewController(resource.Config{IOLimitBytesPerSec: opts.ioLimitBytesPerSec})
	}
	return translateError(persist.Save(ctx, store, idx.coordinator, name, opts.persistCompression, version, io))
}

// Open reads the manifest and data blob previously written by Save and
// reconstructs a Populated Index from them, without retraining. nodes
// overrides the placement the manifest recorded only if non-empty;
// otherwise the manifest's own node list is reused, preserving
// shard-to-node assignment across a restart. Options that configure
// training parameters (WithSeed, WithNIter, ...) are accepted but have no
// effect, since Open never trains; WithLogger, WithMetrics, and
// WithWorkerPoolSize/WithSearchTimeout still apply to the restored index.
func Open(ctx context.Context, store blobstore.BlobStore, name string, optFns ...Option) (*Index, error) {
	opts := applyOptions(optFns)

	var nodeOverride []string
	if opts.nodesSet {
		nodeOverride = opts.nodes
	}
	coord, err := persist.Load(ctx, store, name, nodeOverride, opts.coordinatorOptions()...)
	if err != nil {
		return nil, translateError(err)
	}

	return &Index{
		name:        name,
		coordinator: coord,
		logger:      opts.logger,
		metrics:     opts.metrics,
	}, nil
}
