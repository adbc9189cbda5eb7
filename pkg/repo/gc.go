package repo

import (
	"time"

	"github.com/mnemo-vc/mnemo/pkg/delta"
	"github.com/mnemo-vc/mnemo/pkg/object"
)

// Repo implements object.RootsSupplier over the refs and logs trees.
var _ object.RootsSupplier = (*Repo)(nil)

// BranchTips returns every branch head hash.
func (r *Repo) BranchTips() ([]object.Hash, error) {
	refs, err := r.ListRefs("heads")
	if err != nil {
		return nil, err
	}
	out := make([]object.Hash, 0, len(refs))
	for _, h := range refs {
		out = append(out, h)
	}
	return out, nil
}

// TagTargets returns every tag's hash. A tag ref may point at an
// annotated tag object or directly at a commit; the reachability walk
// resolves either.
func (r *Repo) TagTargets() ([]object.Hash, error) {
	refs, err := r.ListRefs("tags")
	if err != nil {
		return nil, err
	}
	out := make([]object.Hash, 0, len(refs))
	for _, h := range refs {
		out = append(out, h)
	}
	return out, nil
}

// RecentReflog returns the commit hashes logged at or after cutoff.
// Older entries are deliberately dropped: a commit only the stale log
// still mentions is fair game for collection.
func (r *Repo) RecentReflog(cutoff time.Time) ([]object.Hash, error) {
	names, err := r.listReflogRefs()
	if err != nil {
		return nil, err
	}

	var out []object.Hash
	for _, name := range names {
		entries, err := r.readReflogFile(name)
		if err != nil {
			return nil, err
		}
		for _, e := range entries {
			if time.Unix(e.Timestamp, 0).Before(cutoff) {
				continue
			}
			if string(e.NewHash) != zeroHash {
				out = append(out, e.NewHash)
			}
			if string(e.OldHash) != zeroHash {
				out = append(out, e.OldHash)
			}
		}
	}
	return out, nil
}

func (r *Repo) reflogCutoff() time.Time {
	days := r.Config.GC.PruneDays
	if days <= 0 {
		days = DefaultConfig().GC.PruneDays
	}
	return time.Now().AddDate(0, 0, -days)
}

// GC deletes loose objects unreachable from branch tips, tags, and the
// recent reflog window.
func (r *Repo) GC(dryRun bool) (*object.GCSummary, error) {
	return r.Store.GC(r, r.reflogCutoff(), dryRun)
}

// Repack rewrites the reachable loose objects into a pack and removes
// their loose copies. Delta compression follows the repository config.
func (r *Repo) Repack(dryRun bool) (*object.RepackSummary, error) {
	opts := object.PackOptions{
		Deltas: r.Config.Deltas.Enabled,
		Similarity: delta.Options{
			MaxLengthRatio: r.Config.Deltas.MaxLengthRatio,
			ChunkSize:      r.Config.Deltas.ChunkSize,
			MinSimilarity:  r.Config.Deltas.MinSimilarity,
			MaxDeltaRatio:  r.Config.Deltas.MaxDeltaRatio,
		},
	}
	return r.Store.Repack(r, r.reflogCutoff(), dryRun, opts)
}
