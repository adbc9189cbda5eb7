package object

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/mnemo-vc/mnemo/pkg/delta"
)

// PackOptions controls pack writing.
type PackOptions struct {
	// Deltas enables similarity-based delta compression of near-duplicate
	// objects inside the pack.
	Deltas bool
	// Similarity tunes the delta engine; zero values take engine defaults.
	Similarity delta.Options
}

// PackSummary reports the outcome of Store.WritePack.
type PackSummary struct {
	Objects   int
	Deltas    int
	PackFile  string
	IndexFile string
	Checksum  Hash
}

// WritePack packs the selected objects into a new pack/index pair under
// objects/pack. Every selected hash must exist loose; an empty selection
// or an unknown hash is rejected before any file is created. Both files
// are written to temporary names and renamed on completion, so a reader
// never observes a pack mid-write.
func (s *Store) WritePack(selection map[Hash]Kind, opts PackOptions) (*PackSummary, error) {
	if len(selection) == 0 {
		return nil, fmt.Errorf("write pack: empty selection")
	}
	if len(selection) > int(^uint32(0)) {
		return nil, fmt.Errorf("write pack: too many objects: %d", len(selection))
	}

	// Ascending hash order doubles as the index sort order.
	hashes := make([]Hash, 0, len(selection))
	for h := range selection {
		hashes = append(hashes, h)
	}
	sort.Slice(hashes, func(i, j int) bool { return hashes[i] < hashes[j] })

	// Load and validate everything before the first byte hits disk.
	envelopes := make([][]byte, len(hashes))
	for i, h := range hashes {
		kind := selection[h]
		if !ValidHash(h) || len(h) != 64 || !ValidKind(kind) {
			return nil, fmt.Errorf("write pack: invalid selection entry %q (%s)", h, kind)
		}
		envelope, err := s.readLooseEnvelope(h, kind)
		if err != nil {
			return nil, fmt.Errorf("write pack: object %s: %w", h, err)
		}
		envelopes[i] = envelope
	}

	deltas := make(map[int]packedDelta)
	if opts.Deltas && len(hashes) > 1 {
		var err error
		deltas, err = planDeltas(hashes, envelopes, opts.Similarity)
		if err != nil {
			return nil, fmt.Errorf("write pack: plan deltas: %w", err)
		}
	}

	packDir := filepath.Join(s.root, "objects", "pack")
	if err := os.MkdirAll(packDir, 0o755); err != nil {
		return nil, fmt.Errorf("write pack: mkdir pack dir: %w", err)
	}

	packTmp, err := os.CreateTemp(packDir, ".tmp-pack-*.pack")
	if err != nil {
		return nil, fmt.Errorf("write pack: create pack temp file: %w", err)
	}
	packTmpPath := packTmp.Name()
	packTmpRemoved := false
	defer func() {
		if !packTmpRemoved {
			_ = os.Remove(packTmpPath)
		}
	}()

	pw, err := NewPackWriter(packTmp, uint32(len(hashes)))
	if err != nil {
		_ = packTmp.Close()
		return nil, fmt.Errorf("write pack: create pack writer: %w", err)
	}

	indexEntries := make([]PackIndexEntry, 0, len(hashes))
	deltaCount := 0
	for i, h := range hashes {
		kind := selection[h]
		offset := pw.CurrentOffset()
		if offset > uint64(^uint32(0)) {
			_ = packTmp.Close()
			return nil, fmt.Errorf("write pack: pack exceeds 4 GiB offset range")
		}

		tag, _ := kindToTag(kind)
		if d, ok := deltas[i]; ok {
			if err := pw.WriteDelta(d.base, d.instructions); err != nil {
				_ = packTmp.Close()
				return nil, fmt.Errorf("write pack: delta entry %s: %w", h, err)
			}
			tag = TagDelta
			deltaCount++
		} else if err := pw.WriteObject(kind, envelopes[i]); err != nil {
			_ = packTmp.Close()
			return nil, fmt.Errorf("write pack: entry %s: %w", h, err)
		}
		indexEntries = append(indexEntries, PackIndexEntry{
			Hash:   h,
			Tag:    tag,
			Offset: uint32(offset),
		})
	}

	packChecksum, err := pw.Finish()
	if err != nil {
		_ = packTmp.Close()
		return nil, fmt.Errorf("write pack: finalize pack: %w", err)
	}
	if err := packTmp.Close(); err != nil {
		return nil, fmt.Errorf("write pack: close pack temp file: %w", err)
	}

	// The filename carries the first 16 checksum bytes, making the name
	// itself verifiable against the trailer.
	packBase := "pack-" + string(packChecksum[:32])
	packPath := filepath.Join(packDir, packBase+".pack")
	idxPath := filepath.Join(packDir, packBase+".idx")
	if err := os.Rename(packTmpPath, packPath); err != nil {
		return nil, fmt.Errorf("write pack: rename pack file: %w", err)
	}
	packTmpRemoved = true

	idxTmp, err := os.CreateTemp(packDir, ".tmp-pack-*.idx")
	if err != nil {
		_ = os.Remove(packPath)
		return nil, fmt.Errorf("write pack: create index temp file: %w", err)
	}
	idxTmpPath := idxTmp.Name()
	idxTmpRemoved := false
	defer func() {
		if !idxTmpRemoved {
			_ = os.Remove(idxTmpPath)
		}
	}()

	if _, err := WritePackIndex(idxTmp, indexEntries); err != nil {
		_ = idxTmp.Close()
		_ = os.Remove(packPath)
		return nil, fmt.Errorf("write pack: write pack index: %w", err)
	}
	if err := idxTmp.Close(); err != nil {
		_ = os.Remove(packPath)
		return nil, fmt.Errorf("write pack: close index temp file: %w", err)
	}
	if err := os.Rename(idxTmpPath, idxPath); err != nil {
		_ = os.Remove(packPath)
		return nil, fmt.Errorf("write pack: rename index file: %w", err)
	}
	idxTmpRemoved = true

	s.log().Info("pack written",
		"objects", len(hashes),
		"deltas", deltaCount,
		"pack", filepath.Base(packPath),
	)

	return &PackSummary{
		Objects:   len(hashes),
		Deltas:    deltaCount,
		PackFile:  filepath.Base(packPath),
		IndexFile: filepath.Base(idxPath),
		Checksum:  packChecksum,
	}, nil
}

type packedDelta struct {
	base         Hash
	instructions []byte
}

// planDeltas runs the similarity engine over the selected envelopes and
// returns, per target index, the delta to emit instead of a full copy.
// Group bases are always stored full; a delta that fails the size
// threshold falls back to a full copy.
func planDeltas(hashes []Hash, envelopes [][]byte, opts delta.Options) (map[int]packedDelta, error) {
	groups, err := delta.FindGroups(envelopes, opts)
	if err != nil {
		return nil, err
	}

	maxRatio := opts.MaxDeltaRatio
	if maxRatio <= 0 {
		maxRatio = delta.DefaultOptions().MaxDeltaRatio
	}

	out := make(map[int]packedDelta)
	for _, g := range groups {
		for _, target := range g.Targets {
			instructions := delta.Compute(envelopes[g.Base], envelopes[target])
			if float64(len(instructions)) >= maxRatio*float64(len(envelopes[target])) {
				continue
			}
			out[target] = packedDelta{
				base:         hashes[g.Base],
				instructions: instructions,
			}
		}
	}
	return out, nil
}

// readFromPacks looks a hash up in every resident pack/index pair in
// sorted filename order. Corrupt packs are skipped; a miss everywhere
// reports ErrNotFound.
func (s *Store) readFromPacks(h Hash, kind Kind) (Kind, []byte, error) {
	idxPaths, err := s.listPackIndexPaths()
	if err != nil {
		return "", nil, err
	}
	for _, idxPath := range idxPaths {
		idxData, err := os.ReadFile(idxPath)
		if err != nil {
			continue
		}
		idx, err := ReadPackIndex(idxData)
		if err != nil {
			continue
		}
		if _, ok := idx.Find(h); !ok {
			continue
		}

		packData, err := os.ReadFile(packPathForIndex(idxPath))
		if err != nil {
			continue
		}
		gotKind, payload, ok := LookupInPack(packData, idx, h, kind)
		if !ok {
			continue
		}
		return gotKind, payload, nil
	}
	return "", nil, fmt.Errorf("packed object %s: %w", h, ErrNotFound)
}

// packedHashSet returns every hash indexed by a resident pack.
func (s *Store) packedHashSet() (map[Hash]Kind, error) {
	idxPaths, err := s.listPackIndexPaths()
	if err != nil {
		return nil, err
	}

	out := make(map[Hash]Kind)
	for _, idxPath := range idxPaths {
		idxData, err := os.ReadFile(idxPath)
		if err != nil {
			return nil, fmt.Errorf("read pack index %s: %w", filepath.Base(idxPath), err)
		}
		idx, err := ReadPackIndex(idxData)
		if err != nil {
			return nil, fmt.Errorf("parse pack index %s: %w", filepath.Base(idxPath), err)
		}
		for _, entry := range idx.Entries() {
			kind, ok := tagToKind(entry.Tag)
			if !ok {
				// Delta targets record their real kind only in the frame's
				// envelope; kind is resolved lazily on read.
				kind = ""
			}
			out[entry.Hash] = kind
		}
	}
	return out, nil
}

func (s *Store) listPackIndexPaths() ([]string, error) {
	packDir := filepath.Join(s.root, "objects", "pack")
	entries, err := os.ReadDir(packDir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read pack dir: %w", err)
	}

	idxPaths := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".idx") {
			continue
		}
		idxPaths = append(idxPaths, filepath.Join(packDir, entry.Name()))
	}
	sort.Strings(idxPaths)
	return idxPaths, nil
}

func packPathForIndex(idxPath string) string {
	return strings.TrimSuffix(idxPath, ".idx") + ".pack"
}
