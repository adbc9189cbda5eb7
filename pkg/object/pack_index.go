package object

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"io"
	"sort"
)

const (
	packIndexVersion    = 2
	packIndexHeaderSize = 13 // 5-byte magic + u32 version + u32 entry count
	packIndexRecordSize = 37 // 32-byte raw hash + 1-byte type tag + u32 offset
)

var packIndexMagic = [5]byte{'a', 'g', 'i', 'd', 'x'}

// PackIndexEntry is one fixed-width record in a pack index file.
type PackIndexEntry struct {
	Hash   Hash
	Tag    TypeTag
	Offset uint32
}

func normalizePackIndexEntries(entries []PackIndexEntry) ([]PackIndexEntry, error) {
	out := make([]PackIndexEntry, len(entries))
	copy(out, entries)

	for i := range out {
		if _, err := hashHexToBytes(out[i].Hash); err != nil {
			return nil, fmt.Errorf("entry %d: %w", i, err)
		}
	}
	// Ascending hash order is the invariant that makes binary search
	// valid; lexicographic hex order equals raw byte order.
	sort.Slice(out, func(i, j int) bool {
		return out[i].Hash < out[j].Hash
	})
	return out, nil
}

// WritePackIndex writes a sorted fixed-width index for the provided
// entries and returns the hex-encoded index checksum.
func WritePackIndex(w io.Writer, entries []PackIndexEntry) (Hash, error) {
	if len(entries) == 0 {
		return "", fmt.Errorf("pack index must contain at least one entry")
	}
	normalized, err := normalizePackIndexEntries(entries)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	buf.Write(packIndexMagic[:])
	_ = binary.Write(&buf, binary.BigEndian, uint32(packIndexVersion))
	_ = binary.Write(&buf, binary.BigEndian, uint32(len(normalized)))

	for _, entry := range normalized {
		raw, _ := hashHexToBytes(entry.Hash)
		buf.Write(raw)
		buf.WriteByte(byte(entry.Tag))
		_ = binary.Write(&buf, binary.BigEndian, entry.Offset)
	}

	indexSum := sha256.Sum256(buf.Bytes())
	buf.Write(indexSum[:])

	if _, err := w.Write(buf.Bytes()); err != nil {
		return "", fmt.Errorf("write pack index: %w", err)
	}
	return Hash(hex.EncodeToString(indexSum[:])), nil
}
