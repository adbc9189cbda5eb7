package object

import (
	"bytes"
	"crypto/sha256"

	"github.com/mnemo-vc/mnemo/pkg/delta"
)

// LookupInPack finds a hash in the given pack bytes using its index and
// returns the object's kind and payload. If want is non-empty and the
// stored kind differs, the object is treated as absent. Every structural
// inconsistency — bad magic, truncated frame, checksum mismatch, offset
// out of range, unresolvable delta base — also reports absent: callers
// treat pack corruption as "object not found" and try other sources.
func LookupInPack(packData []byte, idx *PackIndex, h Hash, want Kind) (Kind, []byte, bool) {
	if idx == nil {
		return "", nil, false
	}
	entry, ok := idx.Find(h)
	if !ok {
		return "", nil, false
	}

	payload, ok := packPayload(packData)
	if !ok {
		return "", nil, false
	}

	envelope, ok := resolveFrame(payload, idx, entry, 0)
	if !ok {
		return "", nil, false
	}

	kind, body, err := parseEnvelope(envelope)
	if err != nil {
		return "", nil, false
	}
	if HashObject(kind, body) != entry.Hash {
		return "", nil, false
	}
	if want != "" && want != kind {
		return "", nil, false
	}
	return kind, body, true
}

// packPayload validates the pack's magic, version, and trailer checksum
// and returns the byte range the trailer covers.
func packPayload(packData []byte) ([]byte, bool) {
	if len(packData) < packHeaderSize+sha256.Size {
		return nil, false
	}
	payload := packData[:len(packData)-sha256.Size]
	trailer := packData[len(packData)-sha256.Size:]

	sum := sha256.Sum256(payload)
	if !bytes.Equal(sum[:], trailer) {
		return nil, false
	}
	if _, err := UnmarshalPackHeader(payload[:packHeaderSize]); err != nil {
		return nil, false
	}
	return payload, true
}

// resolveFrame decodes the frame behind an index entry into raw envelope
// bytes, following at most one delta hop.
func resolveFrame(payload []byte, idx *PackIndex, entry PackIndexEntry, depth int) ([]byte, bool) {
	tag, body, _, err := decodeFrameAt(payload, int(entry.Offset))
	if err != nil {
		return nil, false
	}

	if tag != TagDelta {
		if entry.Tag != tag {
			return nil, false
		}
		envelope, err := inflateBytes(body)
		if err != nil {
			return nil, false
		}
		return envelope, true
	}

	// base -> target is a one-hop dependency: a base is never itself a
	// delta, so a second hop means the pack is malformed.
	if depth > 0 {
		return nil, false
	}
	if len(body) < deltaBaseRefSize {
		return nil, false
	}
	baseEntry, ok := idx.FindByPrefix(body[:deltaBaseRefSize])
	if !ok {
		return nil, false
	}
	baseEnvelope, ok := resolveFrame(payload, idx, baseEntry, depth+1)
	if !ok {
		return nil, false
	}
	deltaBytes, err := inflateBytes(body[deltaBaseRefSize:])
	if err != nil {
		return nil, false
	}
	envelope, err := delta.Apply(baseEnvelope, deltaBytes)
	if err != nil {
		return nil, false
	}
	return envelope, true
}
