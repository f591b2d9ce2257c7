package replay

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"sort"

	flatbuffers "github.com/google/flatbuffers/go"
	"github.com/klauspost/compress/zstd"
	"github.com/zeebo/blake3"

	"ReserveGate/internal/attestation"
	"ReserveGate/internal/types"
)

const (
	// snapshotVersion is the current id snapshot format version.
	snapshotVersion = 1

	// MaxSnapshotSize bounds the decompressed size of a snapshot.
	MaxSnapshotSize = 64 << 20
)

// ErrBadSnapshot is returned for a snapshot that fails decoding or its checksum.
var ErrBadSnapshot = errors.New("invalid id snapshot")

// Export serializes every consumed id into a zstd-compressed snapshot.
// Ids are in key order, so equal sets export to equal bytes.
func (r *Registry) Export() ([]byte, error) {
	var ids []byte

	err := r.db.IteratePrefix(usedPrefix, func(key, _ []byte) error {
		if len(key) != len(usedPrefix)+32 {
			return nil
		}

		ids = append(ids, key[len(usedPrefix):]...)

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("collect ids:\n%w", err)
	}

	return compress(buildSnapshot(ids))
}

// Snapshot is a read-only set of ids consumed by a predecessor deployment.
type Snapshot struct {
	ids map[attestation.Hash]bool // ids holds every exported id
}

// OpenSnapshot decompresses and verifies an exported snapshot.
func OpenSnapshot(data []byte) (*Snapshot, error) {
	raw, err := decompress(data)
	if err != nil {
		return nil, fmt.Errorf("%w: decompress:\n%v", ErrBadSnapshot, err)
	}

	ids, err := parseSnapshot(raw)
	if err != nil {
		return nil, err
	}

	s := &Snapshot{ids: make(map[attestation.Hash]bool, len(ids)/32)}
	for off := 0; off < len(ids); off += 32 {
		var id attestation.Hash
		copy(id[:], ids[off:off+32])
		s.ids[id] = true
	}

	return s, nil
}

// IsUsed reports whether the predecessor consumed id.
func (s *Snapshot) IsUsed(id attestation.Hash) (bool, error) {
	return s.ids[id], nil
}

// IDs returns every id in the snapshot, sorted.
func (s *Snapshot) IDs() []attestation.Hash {
	result := make([]attestation.Hash, 0, len(s.ids))
	for id := range s.ids {
		result = append(result, id)
	}

	sortHashes(result)

	return result
}

// Len returns the number of ids in the snapshot.
func (s *Snapshot) Len() int {
	return len(s.ids)
}

// buildSnapshot encodes ids with version and checksum as a UsedIDSnapshot table.
func buildSnapshot(ids []byte) []byte {
	checksum := computeChecksum(snapshotVersion, ids)

	builder := flatbuffers.NewBuilder(len(ids) + 128)
	idsOffset := builder.CreateByteVector(ids)
	checksumOffset := builder.CreateByteVector(checksum[:])

	types.UsedIDSnapshotStart(builder)
	types.UsedIDSnapshotAddVersion(builder, snapshotVersion)
	types.UsedIDSnapshotAddIds(builder, idsOffset)
	types.UsedIDSnapshotAddChecksum(builder, checksumOffset)
	builder.Finish(types.UsedIDSnapshotEnd(builder))

	return builder.FinishedBytes()
}

// parseSnapshot validates a decoded snapshot and returns its id bytes.
func parseSnapshot(raw []byte) (ids []byte, retErr error) {
	// FlatBuffers panics on malformed data, recover gracefully
	defer func() {
		if rec := recover(); rec != nil {
			ids, retErr = nil, fmt.Errorf("%w: malformed table", ErrBadSnapshot)
		}
	}()

	if len(raw) < 8 {
		return nil, fmt.Errorf("%w: too short", ErrBadSnapshot)
	}

	snap := types.GetRootAsUsedIDSnapshot(raw, 0)

	if v := snap.Version(); v != snapshotVersion {
		return nil, fmt.Errorf("%w: unsupported version %d", ErrBadSnapshot, v)
	}

	ids = snap.IdsBytes()
	if len(ids)%32 != 0 {
		return nil, fmt.Errorf("%w: ids length %d not a multiple of 32", ErrBadSnapshot, len(ids))
	}

	want := computeChecksum(snapshotVersion, ids)
	if !bytes.Equal(snap.ChecksumBytes(), want[:]) {
		return nil, fmt.Errorf("%w: checksum mismatch", ErrBadSnapshot)
	}

	return ids, nil
}

// computeChecksum hashes version (4 bytes) || ids with blake3.
func computeChecksum(version uint32, ids []byte) [32]byte {
	hasher := blake3.New()

	var buf [4]byte
	binary.BigEndian.PutUint32(buf[:], version)
	hasher.Write(buf[:])
	hasher.Write(ids)

	var checksum [32]byte
	hasher.Sum(checksum[:0])

	return checksum
}

// compress encodes data with zstd.
func compress(data []byte) ([]byte, error) {
	encoder, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("create encoder:\n%w", err)
	}
	defer encoder.Close()

	return encoder.EncodeAll(data, nil), nil
}

// decompress decodes zstd data.
func decompress(data []byte) ([]byte, error) {
	decoder, err := zstd.NewReader(nil, zstd.WithDecoderMaxMemory(MaxSnapshotSize))
	if err != nil {
		return nil, fmt.Errorf("create decoder:\n%w", err)
	}
	defer decoder.Close()

	return decoder.DecodeAll(data, nil)
}

// sortHashes sorts ids in byte order.
func sortHashes(ids []attestation.Hash) {
	sort.Slice(ids, func(i, j int) bool {
		return bytes.Compare(ids[i][:], ids[j][:]) < 0
	})
}
