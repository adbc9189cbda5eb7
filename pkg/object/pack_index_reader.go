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

// PackIndex is an in-memory representation of a pack index file.
type PackIndex struct {
	entries       []PackIndexEntry
	IndexChecksum Hash
}

// Entries returns a copy of all index entries in ascending hash order.
func (idx *PackIndex) Entries() []PackIndexEntry {
	out := make([]PackIndexEntry, len(idx.entries))
	copy(out, idx.entries)
	return out
}

// Find performs binary search for an exact hash match.
func (idx *PackIndex) Find(h Hash) (PackIndexEntry, bool) {
	if len(h) != 64 || !ValidHash(h) {
		return PackIndexEntry{}, false
	}
	i := sort.Search(len(idx.entries), func(i int) bool {
		return idx.entries[i].Hash >= h
	})
	if i < len(idx.entries) && idx.entries[i].Hash == h {
		return idx.entries[i], true
	}
	return PackIndexEntry{}, false
}

// FindByPrefix resolves a raw hash prefix (as stored in delta frames) to
// the unique index entry whose hash starts with it. Ambiguous or absent
// prefixes report false.
func (idx *PackIndex) FindByPrefix(rawPrefix []byte) (PackIndexEntry, bool) {
	prefix := Hash(hex.EncodeToString(rawPrefix))
	i := sort.Search(len(idx.entries), func(i int) bool {
		return idx.entries[i].Hash >= prefix
	})
	if i >= len(idx.entries) || !hasHashPrefix(idx.entries[i].Hash, prefix) {
		return PackIndexEntry{}, false
	}
	if i+1 < len(idx.entries) && hasHashPrefix(idx.entries[i+1].Hash, prefix) {
		return PackIndexEntry{}, false
	}
	return idx.entries[i], true
}

func hasHashPrefix(h, prefix Hash) bool {
	return len(h) >= len(prefix) && h[:len(prefix)] == prefix
}

// ReadPackIndexFromReader parses a pack index stream.
func ReadPackIndexFromReader(r io.Reader) (*PackIndex, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read pack index stream: %w", err)
	}
	return ReadPackIndex(data)
}

// ReadPackIndex parses and validates a pack index file.
func ReadPackIndex(data []byte) (*PackIndex, error) {
	minLen := packIndexHeaderSize + sha256.Size
	if len(data) < minLen {
		return nil, fmt.Errorf("pack index too short: %d", len(data))
	}
	if string(data[:5]) != string(packIndexMagic[:]) {
		return nil, fmt.Errorf("invalid pack index magic %q", data[:5])
	}
	version := binary.BigEndian.Uint32(data[5:9])
	if version != packIndexVersion {
		return nil, fmt.Errorf("unsupported pack index version %d", version)
	}

	gotChecksumRaw := data[len(data)-sha256.Size:]
	sum := sha256.Sum256(data[:len(data)-sha256.Size])
	if !bytes.Equal(gotChecksumRaw, sum[:]) {
		return nil, fmt.Errorf("pack index checksum mismatch")
	}

	n := int(binary.BigEndian.Uint32(data[9:13]))
	recordsLen := n * packIndexRecordSize
	if packIndexHeaderSize+recordsLen+sha256.Size != len(data) {
		return nil, fmt.Errorf("pack index size mismatch: %d entries in %d bytes", n, len(data))
	}

	entries := make([]PackIndexEntry, n)
	prev := Hash("")
	for i := 0; i < n; i++ {
		rec := data[packIndexHeaderSize+i*packIndexRecordSize:]
		h := Hash(hex.EncodeToString(rec[:32]))
		if i > 0 && h <= prev {
			return nil, fmt.Errorf("pack index not sorted at entry %d", i)
		}
		prev = h
		entries[i] = PackIndexEntry{
			Hash:   h,
			Tag:    TypeTag(rec[32]),
			Offset: binary.BigEndian.Uint32(rec[33:37]),
		}
	}

	return &PackIndex{
		entries:       entries,
		IndexChecksum: Hash(hex.EncodeToString(sum[:])),
	}, nil
}
