package object

import (
	"fmt"
	"time"
)

// RootsSupplier yields the hashes the garbage collector treats as live
// anchors: branch tips, tag targets, and recent reflog entries. Entries
// older than the cutoff are intentionally excluded, so long-dangling
// commits become collectable even while still nominally logged.
type RootsSupplier interface {
	BranchTips() ([]Hash, error)
	TagTargets() ([]Hash, error)
	RecentReflog(cutoff time.Time) ([]Hash, error)
}

// GCSummary reports the outcome of a sweep.
type GCSummary struct {
	Removed    int
	BytesFreed int64
}

// RepackSummary reports the outcome of a repack.
type RepackSummary struct {
	Packed     int
	Deltas     int
	Removed    int
	BytesFreed int64
	PackFile   string
}

func collectRoots(supplier RootsSupplier, cutoff time.Time) ([]Hash, error) {
	tips, err := supplier.BranchTips()
	if err != nil {
		return nil, fmt.Errorf("gc roots: branch tips: %w", err)
	}
	tags, err := supplier.TagTargets()
	if err != nil {
		return nil, fmt.Errorf("gc roots: tag targets: %w", err)
	}
	logged, err := supplier.RecentReflog(cutoff)
	if err != nil {
		return nil, fmt.Errorf("gc roots: reflog: %w", err)
	}

	roots := make([]Hash, 0, len(tips)+len(tags)+len(logged))
	roots = append(roots, tips...)
	roots = append(roots, tags...)
	roots = append(roots, logged...)
	return uniqueNormalizedHashes(roots), nil
}

// GC deletes every loose object not reachable from the supplier's
// roots, returning the count and bytes freed. In dry-run mode nothing
// is deleted and the summary reports what a real run would remove.
// Objects whose removal fails are skipped and left out of the count.
func (s *Store) GC(supplier RootsSupplier, reflogCutoff time.Time, dryRun bool) (*GCSummary, error) {
	roots, err := collectRoots(supplier, reflogCutoff)
	if err != nil {
		return nil, err
	}
	reachable, err := s.ReachableSet(roots)
	if err != nil {
		return nil, err
	}

	summary := &GCSummary{}
	for _, kind := range Kinds {
		hashes, err := s.List(kind)
		if err != nil {
			return nil, fmt.Errorf("gc: list %s: %w", kind, err)
		}
		for _, h := range hashes {
			if _, ok := reachable[h]; ok {
				continue
			}
			size := s.looseSize(h, kind)
			if dryRun {
				summary.Removed++
				summary.BytesFreed += size
				continue
			}
			if s.Delete(h, kind) {
				summary.Removed++
				summary.BytesFreed += size
			}
		}
	}

	s.log().Info("gc sweep",
		"roots", len(roots),
		"reachable", len(reachable),
		"removed", summary.Removed,
		"bytes_freed", summary.BytesFreed,
		"dry_run", dryRun,
	)
	return summary, nil
}

// Repack writes the reachable surviving loose objects into a new pack
// and deletes the now-packed loose originals. Run it after GC: the two
// steps are sequential, never interleaved, so a crash between them can
// not leave a pack referencing a deleted object. Dry-run reports what
// would be packed without creating any file.
func (s *Store) Repack(supplier RootsSupplier, reflogCutoff time.Time, dryRun bool, opts PackOptions) (*RepackSummary, error) {
	roots, err := collectRoots(supplier, reflogCutoff)
	if err != nil {
		return nil, err
	}
	reachable, err := s.ReachableSet(roots)
	if err != nil {
		return nil, err
	}

	selection := make(map[Hash]Kind)
	for _, kind := range Kinds {
		hashes, err := s.List(kind)
		if err != nil {
			return nil, fmt.Errorf("repack: list %s: %w", kind, err)
		}
		for _, h := range hashes {
			if _, ok := reachable[h]; ok {
				selection[h] = kind
			}
		}
	}

	summary := &RepackSummary{Packed: len(selection)}
	if len(selection) == 0 || dryRun {
		return summary, nil
	}

	packSummary, err := s.WritePack(selection, opts)
	if err != nil {
		return nil, fmt.Errorf("repack: %w", err)
	}
	summary.Deltas = packSummary.Deltas
	summary.PackFile = packSummary.PackFile

	for h, kind := range selection {
		size := s.looseSize(h, kind)
		if s.Delete(h, kind) {
			summary.Removed++
			summary.BytesFreed += size
		}
	}

	s.log().Info("repack",
		"packed", summary.Packed,
		"deltas", summary.Deltas,
		"pack", summary.PackFile,
		"loose_removed", summary.Removed,
	)
	return summary, nil
}
