package object

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"testing"

	"github.com/mnemo-vc/mnemo/pkg/delta"
)

func TestPackHeaderRoundTrip(t *testing.T) {
	h := PackHeader{Version: supportedPackVersion, NumObjects: 42}
	got, err := UnmarshalPackHeader(h.Marshal())
	if err != nil {
		t.Fatalf("UnmarshalPackHeader: %v", err)
	}
	if got.Version != h.Version || got.NumObjects != h.NumObjects {
		t.Errorf("header: got %+v, want %+v", got, h)
	}
}

func TestUnmarshalPackHeaderRejects(t *testing.T) {
	short := []byte("PACK")
	if _, err := UnmarshalPackHeader(short); err == nil {
		t.Error("accepted a truncated header")
	}

	badMagic := PackHeader{Version: supportedPackVersion, NumObjects: 1}.Marshal()
	copy(badMagic, "JUNK")
	if _, err := UnmarshalPackHeader(badMagic); err == nil {
		t.Error("accepted bad magic")
	}

	badVersion := PackHeader{Version: 9, NumObjects: 1}.Marshal()
	if _, err := UnmarshalPackHeader(badVersion); err == nil {
		t.Error("accepted unsupported version")
	}
}

// buildPack writes the given envelopes into an in-memory pack/index pair.
func buildPack(t *testing.T, kinds []Kind, payloads [][]byte) ([]byte, *PackIndex) {
	t.Helper()
	var packBuf bytes.Buffer
	pw, err := NewPackWriter(&packBuf, uint32(len(payloads)))
	if err != nil {
		t.Fatalf("NewPackWriter: %v", err)
	}

	entries := make([]PackIndexEntry, 0, len(payloads))
	for i, payload := range payloads {
		offset := pw.CurrentOffset()
		envelope := makeEnvelope(kinds[i], payload)
		if err := pw.WriteObject(kinds[i], envelope); err != nil {
			t.Fatalf("WriteObject %d: %v", i, err)
		}
		tag, _ := kindToTag(kinds[i])
		entries = append(entries, PackIndexEntry{
			Hash:   HashObject(kinds[i], payload),
			Tag:    tag,
			Offset: uint32(offset),
		})
	}
	if _, err := pw.Finish(); err != nil {
		t.Fatalf("Finish: %v", err)
	}

	var idxBuf bytes.Buffer
	if _, err := WritePackIndex(&idxBuf, entries); err != nil {
		t.Fatalf("WritePackIndex: %v", err)
	}
	idx, err := ReadPackIndex(idxBuf.Bytes())
	if err != nil {
		t.Fatalf("ReadPackIndex: %v", err)
	}
	return packBuf.Bytes(), idx
}

func TestPackLookupRoundTrip(t *testing.T) {
	kinds := []Kind{KindBlob, KindBlob, KindCommit}
	payloads := [][]byte{
		[]byte("first"),
		[]byte("second"),
		MarshalCommit(&CommitObj{TreeHash: HashObject(KindTree, []byte("t")), Author: "x", Timestamp: 1, Message: "m"}),
	}
	packData, idx := buildPack(t, kinds, payloads)

	for i := range payloads {
		h := HashObject(kinds[i], payloads[i])
		kind, body, ok := LookupInPack(packData, idx, h, kinds[i])
		if !ok {
			t.Fatalf("LookupInPack(%q): not found", h)
		}
		if kind != kinds[i] {
			t.Errorf("kind: got %q, want %q", kind, kinds[i])
		}
		if !bytes.Equal(body, payloads[i]) {
			t.Errorf("payload %d mismatch", i)
		}
	}
}

func TestPackLookupKindMismatchAbsent(t *testing.T) {
	packData, idx := buildPack(t, []Kind{KindBlob}, [][]byte{[]byte("x")})
	h := HashObject(KindBlob, []byte("x"))
	if _, _, ok := LookupInPack(packData, idx, h, KindCommit); ok {
		t.Error("LookupInPack found object under wrong kind")
	}
	// Empty want accepts any kind.
	if _, _, ok := LookupInPack(packData, idx, h, ""); !ok {
		t.Error("LookupInPack with empty want missed the object")
	}
}

func TestPackLookupMiss(t *testing.T) {
	packData, idx := buildPack(t, []Kind{KindBlob}, [][]byte{[]byte("x")})
	if _, _, ok := LookupInPack(packData, idx, HashObject(KindBlob, []byte("absent")), KindBlob); ok {
		t.Error("LookupInPack found an absent hash")
	}
}

func TestPackLookupCorruptTrailerAbsent(t *testing.T) {
	packData, idx := buildPack(t, []Kind{KindBlob}, [][]byte{[]byte("x")})
	h := HashObject(KindBlob, []byte("x"))

	// Flip one bit in the frame region; the trailer no longer matches.
	mangled := append([]byte(nil), packData...)
	mangled[packHeaderSize+2] ^= 0x01
	if _, _, ok := LookupInPack(mangled, idx, h, KindBlob); ok {
		t.Error("LookupInPack returned data from a pack with a bad checksum")
	}

	// Truncation below the minimum structural size also reads as absent.
	if _, _, ok := LookupInPack(packData[:packHeaderSize], idx, h, KindBlob); ok {
		t.Error("LookupInPack returned data from a truncated pack")
	}
}

func TestPackLookupOffsetOutOfRangeAbsent(t *testing.T) {
	packData, _ := buildPack(t, []Kind{KindBlob}, [][]byte{[]byte("x")})
	h := HashObject(KindBlob, []byte("x"))

	var idxBuf bytes.Buffer
	if _, err := WritePackIndex(&idxBuf, []PackIndexEntry{
		{Hash: h, Tag: TagBlob, Offset: 1 << 30},
	}); err != nil {
		t.Fatalf("WritePackIndex: %v", err)
	}
	idx, err := ReadPackIndex(idxBuf.Bytes())
	if err != nil {
		t.Fatalf("ReadPackIndex: %v", err)
	}

	if _, _, ok := LookupInPack(packData, idx, h, KindBlob); ok {
		t.Error("LookupInPack resolved an out-of-range offset")
	}
}

func TestPackDeltaFrameRoundTrip(t *testing.T) {
	base := []byte("line one\nline two\nline three\n")
	target := []byte("line one\nline 2\nline three\nline four\n")
	baseEnv := makeEnvelope(KindBlob, base)
	targetEnv := makeEnvelope(KindBlob, target)
	baseHash := HashObject(KindBlob, base)
	targetHash := HashObject(KindBlob, target)

	var packBuf bytes.Buffer
	pw, err := NewPackWriter(&packBuf, 2)
	if err != nil {
		t.Fatalf("NewPackWriter: %v", err)
	}

	baseOffset := pw.CurrentOffset()
	if err := pw.WriteObject(KindBlob, baseEnv); err != nil {
		t.Fatalf("WriteObject base: %v", err)
	}
	deltaOffset := pw.CurrentOffset()
	if err := pw.WriteDelta(baseHash, delta.Compute(baseEnv, targetEnv)); err != nil {
		t.Fatalf("WriteDelta: %v", err)
	}
	if _, err := pw.Finish(); err != nil {
		t.Fatalf("Finish: %v", err)
	}

	var idxBuf bytes.Buffer
	if _, err := WritePackIndex(&idxBuf, []PackIndexEntry{
		{Hash: baseHash, Tag: TagBlob, Offset: uint32(baseOffset)},
		{Hash: targetHash, Tag: TagDelta, Offset: uint32(deltaOffset)},
	}); err != nil {
		t.Fatalf("WritePackIndex: %v", err)
	}
	idx, err := ReadPackIndex(idxBuf.Bytes())
	if err != nil {
		t.Fatalf("ReadPackIndex: %v", err)
	}

	kind, body, ok := LookupInPack(packBuf.Bytes(), idx, targetHash, KindBlob)
	if !ok {
		t.Fatal("LookupInPack failed to resolve delta frame")
	}
	if kind != KindBlob {
		t.Errorf("kind: got %q, want blob", kind)
	}
	if !bytes.Equal(body, target) {
		t.Errorf("reconstructed target mismatch: got %q, want %q", body, target)
	}
}

func TestPackWriterCountEnforced(t *testing.T) {
	var buf bytes.Buffer
	pw, err := NewPackWriter(&buf, 1)
	if err != nil {
		t.Fatalf("NewPackWriter: %v", err)
	}
	if err := pw.WriteObject(KindBlob, makeEnvelope(KindBlob, []byte("a"))); err != nil {
		t.Fatalf("WriteObject: %v", err)
	}
	if err := pw.WriteObject(KindBlob, makeEnvelope(KindBlob, []byte("b"))); err == nil {
		t.Error("WriteObject accepted more objects than declared")
	}
}

func TestPackWriterFinishUnderCount(t *testing.T) {
	var buf bytes.Buffer
	pw, err := NewPackWriter(&buf, 2)
	if err != nil {
		t.Fatalf("NewPackWriter: %v", err)
	}
	if err := pw.WriteObject(KindBlob, makeEnvelope(KindBlob, []byte("a"))); err != nil {
		t.Fatalf("WriteObject: %v", err)
	}
	if _, err := pw.Finish(); err == nil {
		t.Error("Finish accepted an under-count pack")
	}
}

func TestPackWriterRejectsEmpty(t *testing.T) {
	var buf bytes.Buffer
	if _, err := NewPackWriter(&buf, 0); err == nil {
		t.Error("NewPackWriter accepted zero objects")
	}
}

func TestPackWriterTrailerMatchesContent(t *testing.T) {
	var buf bytes.Buffer
	pw, err := NewPackWriter(&buf, 1)
	if err != nil {
		t.Fatalf("NewPackWriter: %v", err)
	}
	if err := pw.WriteObject(KindBlob, makeEnvelope(KindBlob, []byte("checked"))); err != nil {
		t.Fatalf("WriteObject: %v", err)
	}
	checksum, err := pw.Finish()
	if err != nil {
		t.Fatalf("Finish: %v", err)
	}

	data := buf.Bytes()
	payload := data[:len(data)-sha256.Size]
	sum := sha256.Sum256(payload)
	if checksum != Hash(hex.EncodeToString(sum[:])) {
		t.Errorf("Finish checksum %q does not match recomputed trailer", checksum)
	}
	if !bytes.Equal(data[len(data)-sha256.Size:], sum[:]) {
		t.Error("trailer bytes do not match recomputed checksum")
	}
}
