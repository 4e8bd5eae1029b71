package persist

import (
	"context"
	"fmt"

	"github.com/hupe1980/ivfshard/blobstore"
	"github.com/hupe1980/ivfshard/codec"
	"github.com/hupe1980/ivfshard/coordinator"
)

// manifestBlobName is the well-known name under which a Manifest is
// published in a BlobStore. Readers fetch this name to discover the active
// shard-placement version before opening per-shard blobs.
const manifestBlobName = "MANIFEST"

// Manifest records a trained coordinator's shard-placement topology and
// where its data blob lives, so a replica or a fresh process can
// rediscover how the index was sharded without retraining.
type Manifest struct {
	Name        string   `json:"name"`
	Version     uint64   `json:"version"`
	Dimension   int      `json:"dimension"`
	NList       int      `json:"nlist"`
	ShardCount  int      `json:"shard_count"`
	Nodes       []string `json:"nodes"`
	Size        uint64   `json:"size"`
	Compression string   `json:"compression"`
	DataBlob    string   `json:"data_blob"`
	Codec       string   `json:"codec"`
}

// ManifestFor builds a Manifest describing coord's current placement and
// the blob name its data will be (or was) written to.
func ManifestFor(coord *coordinator.Coordinator, version uint64, dataBlob string, c Compression) Manifest {
	return Manifest{
		Name:        dataBlob,
		Version:     version,
		Dimension:   coord.Dimension(),
		NList:       coord.NList(),
		ShardCount:  coord.ShardCount(),
		Nodes:       coord.Nodes(),
		Size:        coord.Size(),
		Compression: c.String(),
		DataBlob:    dataBlob,
		Codec:       codec.Default.Name(),
	}
}

// PutManifest encodes m with its recorded codec and publishes it to store
// under the well-known manifest name, overwriting any prior manifest.
//
// Concurrent writers racing on this call can clobber each other, also when
// store is a s3.DDBCommitStore: only its "CURRENT" name goes through a
// DynamoDB conditional write, and the manifest name is written with a plain
// S3 PutObject.
func PutManifest(ctx context.Context, store blobstore.BlobStore, m Manifest) error {
	c, ok := codec.ByName(m.Codec)
	if !ok {
		c = codec.Default
		m.Codec = c.Name()
	}
	data, err := c.Marshal(m)
	if err != nil {
		return fmt.Errorf("persist: encode manifest: %w", err)
	}
	// Prefix the blob with the codec name so GetManifest can select the
	// right decoder even if Default changes between writer and reader
	// processes.
	header := []byte(c.Name() + "\n")
	return store.Put(ctx, manifestBlobName, append(header, data...))
}

// GetManifest fetches and decodes the active manifest from store.
func GetManifest(ctx context.Context, store blobstore.BlobStore) (Manifest, error) {
	blob, err := store.Open(ctx, manifestBlobName)
	if err != nil {
		return Manifest{}, err
	}
	defer blob.Close()

	buf := make([]byte, blob.Size())
	if _, err := blob.ReadAt(ctx, buf, 0); err != nil {
		return Manifest{}, fmt.Errorf("persist: read manifest: %w", err)
	}

	name, payload, ok := splitHeaderLine(buf)
	if !ok {
		return Manifest{}, fmt.Errorf("%w: manifest missing codec header", ErrCorrupt)
	}
	c, ok := codec.ByName(name)
	if !ok {
		return Manifest{}, fmt.Errorf("%w: unknown manifest codec %q", ErrCorrupt, name)
	}

	var m Manifest
	if err := c.Unmarshal(payload, &m); err != nil {
		return Manifest{}, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	return m, nil
}

func splitHeaderLine(buf []byte) (header string, rest []byte, ok bool) {
	for i, b := range buf {
		if b == '\n' {
			return string(buf[:i]), buf[i+1:], true
		}
	}
	return "", nil, false
}
