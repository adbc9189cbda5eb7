package object

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// HashObject computes the SHA-256 of the envelope "kind len\0payload",
// mirroring Git's object hashing but with SHA-256. The kind-and-length
// prefix keeps identical payloads of different kinds from colliding.
func HashObject(kind Kind, payload []byte) Hash {
	header := fmt.Sprintf("%s %d\x00", kind, len(payload))
	h := sha256.New()
	h.Write([]byte(header))
	h.Write(payload)
	return Hash(hex.EncodeToString(h.Sum(nil)))
}

// ValidHash reports whether h is safe to use as a filesystem path
// fragment: 4 to 64 lowercase hex characters. Anything else, including
// path separators, "..", uppercase hex, or a wrong length, fails the
// gate. Callers short-circuit to "not found" on failure instead of
// building a path from the input.
func ValidHash(h Hash) bool {
	if len(h) < 4 || len(h) > 64 {
		return false
	}
	for i := 0; i < len(h); i++ {
		c := h[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}

func hashHexToBytes(h Hash) ([]byte, error) {
	if len(h) != 64 {
		return nil, fmt.Errorf("hash length must be 64 hex chars, got %d", len(h))
	}
	raw, err := hex.DecodeString(string(h))
	if err != nil {
		return nil, fmt.Errorf("invalid hash %q: %w", h, err)
	}
	return raw, nil
}
