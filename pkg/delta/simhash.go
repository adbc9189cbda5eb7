package delta

import (
	"math/bits"

	"github.com/cespare/xxhash/v2"
)

const (
	simhashBits = 64

	// defaultChunkSize is the fixed window fingerprinted per vote.
	defaultChunkSize = 16
)

// SimHash computes a 64-bit locality-sensitive fingerprint: each
// fixed-size chunk of data is hashed, and every chunk casts a per-bit
// vote; bits with a positive majority end up set. Similar content
// shifts few votes, so the Hamming distance between two fingerprints
// approximates content similarity in O(1) per comparison.
func SimHash(data []byte, chunkSize int) uint64 {
	if chunkSize <= 0 {
		chunkSize = defaultChunkSize
	}
	var votes [simhashBits]int
	for off := 0; off < len(data); off += chunkSize {
		end := off + chunkSize
		if end > len(data) {
			end = len(data)
		}
		h := xxhash.Sum64(data[off:end])
		for bit := 0; bit < simhashBits; bit++ {
			if h&(1<<uint(bit)) != 0 {
				votes[bit]++
			} else {
				votes[bit]--
			}
		}
	}

	var fp uint64
	for bit := 0; bit < simhashBits; bit++ {
		if votes[bit] > 0 {
			fp |= 1 << uint(bit)
		}
	}
	return fp
}

// HammingDistance counts differing fingerprint bits.
func HammingDistance(a, b uint64) int {
	return bits.OnesCount64(a ^ b)
}

// hammingThreshold picks the acceptance distance for a candidate pair.
// Small buffers yield few votes and noisy fingerprints, so the window
// widens for them and narrows as sizes grow.
func hammingThreshold(aLen, bLen int) int {
	n := aLen
	if bLen > n {
		n = bLen
	}
	switch {
	case n < 1<<10:
		return 20
	case n < 1<<16:
		return 12
	default:
		return 8
	}
}
