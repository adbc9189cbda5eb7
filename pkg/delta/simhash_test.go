package delta

import (
	"bytes"
	"testing"
)

func TestSimHashDeterminism(t *testing.T) {
	data := []byte("fingerprint me consistently")
	if SimHash(data, 16) != SimHash(data, 16) {
		t.Error("SimHash not deterministic")
	}
}

func TestSimHashChunkSizeMatters(t *testing.T) {
	data := bytes.Repeat([]byte("abcdefgh"), 32)
	if SimHash(data, 8) == SimHash(data, 16) {
		t.Log("chunk sizes 8 and 16 happened to collide; acceptable but unusual")
	}
}

func TestSimHashSimilarContentClose(t *testing.T) {
	base := bytes.Repeat([]byte("the quick brown fox jumps over the lazy dog\n"), 30)
	variant := append(append([]byte{}, base...), []byte("one more sentence\n")...)
	unrelated := bytes.Repeat([]byte("0123456789abcdef Zyxwvutsrq PONMLKJIHG\n"), 30)

	near := HammingDistance(SimHash(base, 16), SimHash(variant, 16))
	far := HammingDistance(SimHash(base, 16), SimHash(unrelated, 16))
	if near >= far {
		t.Errorf("similar pair distance %d not below unrelated pair distance %d", near, far)
	}
}

func TestSimHashEmptyInput(t *testing.T) {
	if SimHash(nil, 16) != 0 {
		t.Error("SimHash of empty input should be zero (no votes cast)")
	}
}

func TestHammingDistance(t *testing.T) {
	if d := HammingDistance(0, 0); d != 0 {
		t.Errorf("HammingDistance(0,0) = %d", d)
	}
	if d := HammingDistance(0, ^uint64(0)); d != 64 {
		t.Errorf("HammingDistance(0,~0) = %d", d)
	}
	if d := HammingDistance(0b1010, 0b0110); d != 2 {
		t.Errorf("HammingDistance(1010,0110) = %d", d)
	}
}

func TestHammingThresholdTiers(t *testing.T) {
	if got := hammingThreshold(100, 500); got != 20 {
		t.Errorf("sub-KiB threshold: got %d, want 20", got)
	}
	if got := hammingThreshold(2048, 4096); got != 12 {
		t.Errorf("mid-size threshold: got %d, want 12", got)
	}
	if got := hammingThreshold(1<<20, 1<<16); got != 8 {
		t.Errorf("large threshold: got %d, want 8", got)
	}
	// The larger of the pair picks the tier.
	if got := hammingThreshold(10, 1<<17); got != 8 {
		t.Errorf("mixed-size threshold: got %d, want 8", got)
	}
}
