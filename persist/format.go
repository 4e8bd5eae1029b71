// Package persist implements the on-disk/on-blob encoding of a trained
// coordinator: a single self-describing blob holding the centroid table
// and every shard's postings, plus the shard-placement manifest that
// records which node serves which shard.
//
// Layout (little-endian throughout):
//
//	magic       uint32
//	version     uint32
//	compression uint32
//	body        (optionally compressed; see Compression)
//	crc32       uint32 (IEEE, over every byte preceding it)
//
// body, once decompressed, holds:
//
//	d           uint32
//	k           uint32
//	shardCount  uint32
//	n           uint64
//	centroids   k*d float32
//	shards      shardCount blocks of:
//	              shardID        uint32
//	              nodeIDLen      uint32
//	              nodeID         nodeIDLen bytes
//	              centroidCount  uint32
//	              postings       centroidCount blocks of:
//	                               centroidIdx uint32
//	                               len         uint32
//	                               ids         len int64
//	                               vectors     len*d float32
//
// The checksum covers the 12-byte header plus the (possibly compressed)
// body, so Decode rejects truncated or bit-flipped blobs before attempting
// to decompress them.
package persist

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"io"

	"github.com/hupe1980/ivfshard/coordinator"
	"github.com/hupe1980/ivfshard/ivf"
	"github.com/hupe1980/ivfshard/kmeans"
)

// magic identifies an ivfshard index blob; version allows the layout to
// evolve without ambiguity.
const (
	magic         uint32 = 0x49564653 // "IVFS"
	formatVersion uint32 = 1
)

// ErrCorrupt is returned when a blob fails its magic, version, or checksum
// check. It is never auto-repaired.
var ErrCorrupt = coordinator.ErrCorrupt

// Encode serializes a trained coordinator's centroids and shard postings
// into a single blob, compressed with c. The coordinator must be in
// StatePopulated or StateTrained; StateEmpty has nothing to persist.
func Encode(coord *coordinator.Coordinator, c Compression) ([]byte, error) {
	centroids := coord.Centroids()
	if centroids == nil {
		return nil, fmt.Errorf("%w: coordinator has no trained centroids", ErrCorrupt)
	}

	var body bytes.Buffer
	writeU32(&body, uint32(coord.Dimension()))
	writeU32(&body, uint32(centroids.K))
	writeU32(&body, uint32(coord.ShardCount()))
	writeU64(&body, coord.Size())
	if err := binary.Write(&body, binary.LittleEndian, centroids.Data); err != nil {
		return nil, err
	}

	for i := 0; i < coord.ShardCount(); i++ {
		shard := coord.Shard(i)
		writeU32(&body, shard.ID)

		nodeID := []byte(shard.NodeID)
		writeU32(&body, uint32(len(nodeID)))
		body.Write(nodeID)

		owned := shard.OwnedCentroids()
		writeU32(&body, uint32(owned.GetCardinality()))

		it := owned.Iterator()
		for it.HasNext() {
			centroidIdx := it.Next()
			list, ok := shard.Posting(centroidIdx)
			if !ok {
				return nil, fmt.Errorf("%w: shard %d claims centroid %d with no posting", ErrCorrupt, shard.ID, centroidIdx)
			}
			writeU32(&body, centroidIdx)
			writeU32(&body, uint32(list.Len()))
			if err := binary.Write(&body, binary.LittleEndian, list.IDs()); err != nil {
				return nil, err
			}
			if err := binary.Write(&body, binary.LittleEndian, list.Vectors()); err != nil {
				return nil, err
			}
		}
	}

	payload, err := compressBlock(body.Bytes(), c)
	if err != nil {
		return nil, err
	}

	var out bytes.Buffer
	writeU32(&out, magic)
	writeU32(&out, formatVersion)
	writeU32(&out, uint32(c))
	out.Write(payload)

	sum := crc32.ChecksumIEEE(out.Bytes())
	writeU32(&out, sum)

	return out.Bytes(), nil
}

// Decode validates and parses a blob produced by Encode, returning the
// centroid table and a per-shard posting map suitable for
// coordinator.Restore.
func Decode(blob []byte) (centroids *kmeans.Centroids, shardPostings map[int]map[uint32]*ivf.InvertedList, n uint64, err error) {
	if len(blob) < 12+4 {
		return nil, nil, 0, fmt.Errorf("%w: blob too small", ErrCorrupt)
	}

	wantSum := crc32.ChecksumIEEE(blob[:len(blob)-4])
	gotSum := binary.LittleEndian.Uint32(blob[len(blob)-4:])
	if wantSum != gotSum {
		return nil, nil, 0, fmt.Errorf("%w: checksum mismatch", ErrCorrupt)
	}

	r := bytes.NewReader(blob)
	gotMagic, err := readU32(r)
	if err != nil || gotMagic != magic {
		return nil, nil, 0, fmt.Errorf("%w: bad magic", ErrCorrupt)
	}
	gotVersion, err := readU32(r)
	if err != nil {
		return nil, nil, 0, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	if gotVersion != formatVersion {
		return nil, nil, 0, fmt.Errorf("%w: unsupported format version %d", ErrCorrupt, gotVersion)
	}
	compressionRaw, err := readU32(r)
	if err != nil {
		return nil, nil, 0, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}

	payload := blob[12 : len(blob)-4]
	body, err := decompressBlock(payload, Compression(compressionRaw))
	if err != nil {
		return nil, nil, 0, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}

	br := bytes.NewReader(body)
	d, err := readU32(br)
	if err != nil {
		return nil, nil, 0, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	k, err := readU32(br)
	if err != nil {
		return nil, nil, 0, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	shardCount, err := readU32(br)
	if err != nil {
		return nil, nil, 0, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	n, err = readU64(br)
	if err != nil {
		return nil, nil, 0, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}

	data := make([]float32, int(k)*int(d))
	if err := binary.Read(br, binary.LittleEndian, data); err != nil {
		return nil, nil, 0, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	centroids = &kmeans.Centroids{K: int(k), D: int(d), Data: data}

	shardPostings = make(map[int]map[uint32]*ivf.InvertedList, shardCount)
	for i := uint32(0); i < shardCount; i++ {
		shardID, err := readU32(br)
		if err != nil {
			return nil, nil, 0, fmt.Errorf("%w: %v", ErrCorrupt, err)
		}
		nodeIDLen, err := readU32(br)
		if err != nil {
			return nil, nil, 0, fmt.Errorf("%w: %v", ErrCorrupt, err)
		}
		nodeID := make([]byte, nodeIDLen)
		if _, err := io.ReadFull(br, nodeID); err != nil {
			return nil, nil, 0, fmt.Errorf("%w: %v", ErrCorrupt, err)
		}
		centroidCount, err := readU32(br)
		if err != nil {
			return nil, nil, 0, fmt.Errorf("%w: %v", ErrCorrupt, err)
		}

		postings := make(map[uint32]*ivf.InvertedList, centroidCount)
		for j := uint32(0); j < centroidCount; j++ {
			centroidIdx, err := readU32(br)
			if err != nil {
				return nil, nil, 0, fmt.Errorf("%w: %v", ErrCorrupt, err)
			}
			listLen, err := readU32(br)
			if err != nil {
				return nil, nil, 0, fmt.Errorf("%w: %v", ErrCorrupt, err)
			}

			ids := make([]int64, listLen)
			if err := binary.Read(br, binary.LittleEndian, ids); err != nil {
				return nil, nil, 0, fmt.Errorf("%w: %v", ErrCorrupt, err)
			}
			vectors := make([]float32, int(listLen)*int(d))
			if err := binary.Read(br, binary.LittleEndian, vectors); err != nil {
				return nil, nil, 0, fmt.Errorf("%w: %v", ErrCorrupt, err)
			}

			list := ivf.NewInvertedListWithCapacity(int(d), int(listLen))
			for idx, id := range ids {
				list.Append(id, vectors[idx*int(d):(idx+1)*int(d)])
			}
			postings[centroidIdx] = list
		}
		shardPostings[int(shardID)] = postings
	}

	return centroids, shardPostings, n, nil
}

func writeU32(buf *bytes.Buffer, v uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	buf.Write(b[:])
}

func writeU64(buf *bytes.Buffer, v uint64) {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	buf.Write(b[:])
}

func readU32(r *bytes.Reader) (uint32, error) {
	var b [4]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b[:]), nil
}

func readU64(r *bytes.Reader) (uint64, error) {
	var b [8]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b[:]), nil
}
