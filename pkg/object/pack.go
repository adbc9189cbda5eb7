package object

import (
	"encoding/binary"
	"fmt"
)

const (
	packHeaderSize       = 12
	supportedPackVersion = 2
	frameHeaderSize      = 5 // 1-byte type tag + 4-byte big-endian body length

	// deltaBaseRefSize is the length of the raw base-hash prefix carried
	// ahead of the compressed bytes in a delta frame.
	deltaBaseRefSize = 16
)

var packMagic = [4]byte{'P', 'A', 'C', 'K'}

// TypeTag is the one-byte object type tag used in pack frames and pack
// index records.
type TypeTag uint8

const (
	TagBlob   TypeTag = 1
	TagTree   TypeTag = 2
	TagCommit TypeTag = 3
	TagTag    TypeTag = 4
	// TagDelta marks a frame whose body is a 16-byte raw base-hash
	// prefix followed by compressed delta instructions. Readers unaware
	// of deltas can skip the frame by its recorded length.
	TagDelta TypeTag = 5
)

func kindToTag(k Kind) (TypeTag, bool) {
	switch k {
	case KindBlob:
		return TagBlob, true
	case KindTree:
		return TagTree, true
	case KindCommit:
		return TagCommit, true
	case KindTag:
		return TagTag, true
	}
	return 0, false
}

func tagToKind(t TypeTag) (Kind, bool) {
	switch t {
	case TagBlob:
		return KindBlob, true
	case TagTree:
		return KindTree, true
	case TagCommit:
		return KindCommit, true
	case TagTag:
		return KindTag, true
	}
	return "", false
}

// PackHeader is the fixed-size pack header.
//
// Bytes:
//   - 0..3:  "PACK"
//   - 4..7:  version (big-endian)
//   - 8..11: number of objects (big-endian)
type PackHeader struct {
	Version    uint32
	NumObjects uint32
}

// Marshal serializes the header to the canonical 12-byte pack header.
func (h PackHeader) Marshal() []byte {
	buf := make([]byte, packHeaderSize)
	copy(buf[:4], packMagic[:])
	binary.BigEndian.PutUint32(buf[4:8], h.Version)
	binary.BigEndian.PutUint32(buf[8:12], h.NumObjects)
	return buf
}

// UnmarshalPackHeader parses a pack header.
func UnmarshalPackHeader(data []byte) (*PackHeader, error) {
	if len(data) < packHeaderSize {
		return nil, fmt.Errorf("pack header too short: got %d bytes", len(data))
	}
	if string(data[:4]) != string(packMagic[:]) {
		return nil, fmt.Errorf("invalid pack magic %q", data[:4])
	}

	version := binary.BigEndian.Uint32(data[4:8])
	if version != supportedPackVersion {
		return nil, fmt.Errorf("unsupported pack version %d", version)
	}

	return &PackHeader{
		Version:    version,
		NumObjects: binary.BigEndian.Uint32(data[8:12]),
	}, nil
}

func encodeFrameHeader(tag TypeTag, bodyLen uint32) []byte {
	buf := make([]byte, frameHeaderSize)
	buf[0] = byte(tag)
	binary.BigEndian.PutUint32(buf[1:], bodyLen)
	return buf
}

// decodeFrameAt slices the frame starting at offset out of a pack's
// payload region (everything before the trailing checksum). It returns
// the frame's tag, its body, and the offset just past the frame.
func decodeFrameAt(payload []byte, offset int) (TypeTag, []byte, int, error) {
	if offset < packHeaderSize || offset+frameHeaderSize > len(payload) {
		return 0, nil, 0, fmt.Errorf("frame offset %d out of range", offset)
	}
	tag := TypeTag(payload[offset])
	bodyLen := binary.BigEndian.Uint32(payload[offset+1 : offset+frameHeaderSize])
	bodyStart := offset + frameHeaderSize
	bodyEnd := bodyStart + int(bodyLen)
	if bodyEnd > len(payload) || bodyEnd < bodyStart {
		return 0, nil, 0, fmt.Errorf("frame at %d truncated: body length %d", offset, bodyLen)
	}
	return tag, payload[bodyStart:bodyEnd], bodyEnd, nil
}
