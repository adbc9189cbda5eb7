// Package delta finds near-duplicate byte buffers through tiered
// similarity filtering and encodes compact instruction streams that
// rebuild one buffer from another.
package delta

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"strings"

	"github.com/pmezard/go-difflib/difflib"
)

// Delta opcodes. COPY carries a 4-byte base offset and 4-byte length;
// INSERT carries a 4-byte literal length followed by that many bytes;
// END terminates the stream.
const (
	opEnd    byte = 0x00
	opCopy   byte = 0x01
	opInsert byte = 0x02
)

// Compute derives an opcode stream that rebuilds target from base:
// COPY ops for runs shared with base, INSERT ops for the gaps, then
// END. Identical inputs produce a single whole-buffer COPY; completely
// disjoint inputs degenerate to one INSERT of the whole target. Deltas
// are a compression optimization, never a correctness requirement —
// callers discard any stream that is not meaningfully smaller than the
// raw target.
func Compute(base, target []byte) []byte {
	baseLines := splitKeepEnds(base)
	targetLines := splitKeepEnds(target)
	baseOffsets := lineOffsets(baseLines)
	targetOffsets := lineOffsets(targetLines)

	m := difflib.NewMatcher(baseLines, targetLines)

	var out bytes.Buffer
	cursor := 0 // byte position reached in target
	for _, blk := range m.GetMatchingBlocks() {
		targetStart := targetOffsets[blk.B]
		if targetStart > cursor {
			emitInsert(&out, target[cursor:targetStart])
			cursor = targetStart
		}
		if blk.Size == 0 {
			// Sentinel terminator block at (len(base), len(target)).
			continue
		}
		baseStart := baseOffsets[blk.A]
		length := baseOffsets[blk.A+blk.Size] - baseStart
		emitCopy(&out, uint32(baseStart), uint32(length))
		cursor += length
	}
	out.WriteByte(opEnd)
	return out.Bytes()
}

// Apply replays an opcode stream against base, concatenating copied
// ranges and literal inserts in order until END. The result matches the
// original target byte-for-byte.
func Apply(base, delta []byte) ([]byte, error) {
	var out bytes.Buffer
	pos := 0
	for {
		if pos >= len(delta) {
			return nil, fmt.Errorf("delta truncated: missing END")
		}
		op := delta[pos]
		pos++
		switch op {
		case opEnd:
			return out.Bytes(), nil
		case opCopy:
			if pos+8 > len(delta) {
				return nil, fmt.Errorf("delta copy truncated at %d", pos)
			}
			offset := binary.BigEndian.Uint32(delta[pos:])
			length := binary.BigEndian.Uint32(delta[pos+4:])
			pos += 8
			end := int(offset) + int(length)
			if end > len(base) {
				return nil, fmt.Errorf("delta copy [%d,%d) out of range in %d-byte base", offset, end, len(base))
			}
			out.Write(base[offset:end])
		case opInsert:
			if pos+4 > len(delta) {
				return nil, fmt.Errorf("delta insert truncated at %d", pos)
			}
			length := int(binary.BigEndian.Uint32(delta[pos:]))
			pos += 4
			if pos+length > len(delta) {
				return nil, fmt.Errorf("delta insert literal truncated at %d", pos)
			}
			out.Write(delta[pos : pos+length])
			pos += length
		default:
			return nil, fmt.Errorf("unknown delta opcode 0x%02x at %d", op, pos-1)
		}
	}
}

func emitCopy(out *bytes.Buffer, offset, length uint32) {
	out.WriteByte(opCopy)
	var buf [8]byte
	binary.BigEndian.PutUint32(buf[:4], offset)
	binary.BigEndian.PutUint32(buf[4:], length)
	out.Write(buf[:])
}

func emitInsert(out *bytes.Buffer, literal []byte) {
	out.WriteByte(opInsert)
	var buf [4]byte
	binary.BigEndian.PutUint32(buf[:], uint32(len(literal)))
	out.Write(buf[:])
	out.Write(literal)
}

// splitKeepEnds splits data into newline-terminated segments without
// altering a single byte, so matched segments map back to exact byte
// ranges.
func splitKeepEnds(data []byte) []string {
	return strings.SplitAfter(string(data), "\n")
}

// lineOffsets returns cumulative byte offsets: offsets[i] is where line
// i starts, offsets[len(lines)] is the total byte length.
func lineOffsets(lines []string) []int {
	offsets := make([]int, len(lines)+1)
	for i, line := range lines {
		offsets[i+1] = offsets[i] + len(line)
	}
	return offsets
}
