package object

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"hash"
	"io"
)

type packCountedWriter struct {
	w io.Writer
	n uint64
}

func (cw *packCountedWriter) Write(p []byte) (int, error) {
	n, err := cw.w.Write(p)
	cw.n += uint64(n)
	return n, err
}

func (cw *packCountedWriter) Count() uint64 {
	return cw.n
}

// PackWriter emits an append-only pack stream: fixed header, one framed
// record per object, and a trailing SHA-256 over everything before the
// trailer. The trailer checksum doubles as the pack's filename stem, so
// the name itself is a verifiable content hash.
type PackWriter struct {
	out      io.Writer
	hasher   hash.Hash
	hashedW  io.Writer
	counter  *packCountedWriter
	expected uint32
	written  uint32
	finished bool
}

// NewPackWriter initializes a new writer and writes the fixed pack header.
func NewPackWriter(out io.Writer, numObjects uint32) (*PackWriter, error) {
	if numObjects == 0 {
		return nil, fmt.Errorf("pack must contain at least one object")
	}
	hasher := sha256.New()
	counter := &packCountedWriter{w: out}
	pw := &PackWriter{
		out:      out,
		hasher:   hasher,
		hashedW:  io.MultiWriter(counter, hasher),
		counter:  counter,
		expected: numObjects,
	}

	header := PackHeader{
		Version:    supportedPackVersion,
		NumObjects: numObjects,
	}
	if _, err := pw.hashedW.Write(header.Marshal()); err != nil {
		return nil, fmt.Errorf("write pack header: %w", err)
	}
	return pw, nil
}

// CurrentOffset returns the current byte offset in the pack stream (from
// pack start), excluding the trailing checksum written by Finish.
func (p *PackWriter) CurrentOffset() uint64 {
	return p.counter.Count()
}

// WriteObject appends one full-object frame: the object's envelope,
// compressed, behind its kind's type tag.
func (p *PackWriter) WriteObject(kind Kind, envelope []byte) error {
	tag, ok := kindToTag(kind)
	if !ok {
		return fmt.Errorf("pack entry: unknown kind %q", kind)
	}
	compressed, err := deflateBytes(envelope)
	if err != nil {
		return fmt.Errorf("compress pack entry: %w", err)
	}
	return p.writeFrame(tag, compressed)
}

// WriteDelta appends a delta frame: the base hash's first 16 raw bytes,
// then the compressed delta instruction stream. The recorded body length
// covers both so non-delta-aware readers skip the frame whole.
func (p *PackWriter) WriteDelta(base Hash, delta []byte) error {
	baseRaw, err := hashHexToBytes(base)
	if err != nil {
		return fmt.Errorf("delta base: %w", err)
	}
	compressed, err := deflateBytes(delta)
	if err != nil {
		return fmt.Errorf("compress delta payload: %w", err)
	}
	body := make([]byte, 0, deltaBaseRefSize+len(compressed))
	body = append(body, baseRaw[:deltaBaseRefSize]...)
	body = append(body, compressed...)
	return p.writeFrame(TagDelta, body)
}

func (p *PackWriter) writeFrame(tag TypeTag, body []byte) error {
	if p.finished {
		return fmt.Errorf("pack writer already finished")
	}
	if p.written >= p.expected {
		return fmt.Errorf("pack object count exceeded: expected %d", p.expected)
	}
	if uint64(len(body)) > uint64(^uint32(0)) {
		return fmt.Errorf("pack frame body too large: %d bytes", len(body))
	}

	if _, err := p.hashedW.Write(encodeFrameHeader(tag, uint32(len(body)))); err != nil {
		return fmt.Errorf("write pack frame header: %w", err)
	}
	if _, err := p.hashedW.Write(body); err != nil {
		return fmt.Errorf("write pack frame body: %w", err)
	}

	p.written++
	return nil
}

// Finish validates the object count, writes the trailing pack checksum,
// and returns that checksum as a hex digest.
func (p *PackWriter) Finish() (Hash, error) {
	if p.finished {
		return "", fmt.Errorf("pack writer already finished")
	}
	if p.written != p.expected {
		return "", fmt.Errorf("pack object count mismatch: wrote %d, expected %d", p.written, p.expected)
	}

	sum := p.hasher.Sum(nil)
	if _, err := p.out.Write(sum); err != nil {
		return "", fmt.Errorf("write pack trailer checksum: %w", err)
	}

	p.finished = true
	return Hash(hex.EncodeToString(sum)), nil
}
