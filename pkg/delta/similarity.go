package delta

import (
	"runtime"
	"sort"

	"golang.org/x/sync/errgroup"
)

// Options tunes the similarity tiers and delta acceptance.
type Options struct {
	// MaxLengthRatio rejects a pair when 1 - min(len)/max(len) exceeds
	// it; buffers whose sizes differ too much cannot delta well.
	MaxLengthRatio float64
	// ChunkSize is the SimHash fingerprint window in bytes.
	ChunkSize int
	// MinSimilarity is the tier-3 floor: pairs scoring below it are
	// discarded. Similarity is 1 - editDistance/max(len).
	MinSimilarity float64
	// MaxDeltaRatio keeps a delta only when it is smaller than this
	// fraction of the raw target.
	MaxDeltaRatio float64
	// Workers caps tier-3 parallelism; 0 means GOMAXPROCS.
	Workers int
}

// DefaultOptions returns the engine defaults.
func DefaultOptions() Options {
	return Options{
		MaxLengthRatio: 0.5,
		ChunkSize:      defaultChunkSize,
		MinSimilarity:  0.7,
		MaxDeltaRatio:  0.8,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.MaxLengthRatio <= 0 {
		o.MaxLengthRatio = d.MaxLengthRatio
	}
	if o.ChunkSize <= 0 {
		o.ChunkSize = d.ChunkSize
	}
	if o.MinSimilarity <= 0 {
		o.MinSimilarity = d.MinSimilarity
	}
	if o.MaxDeltaRatio <= 0 {
		o.MaxDeltaRatio = d.MaxDeltaRatio
	}
	if o.Workers <= 0 {
		o.Workers = runtime.GOMAXPROCS(0)
	}
	return o
}

// Group is one delta group over the caller's buffer slice: Base indexes
// the chosen base (the smallest member, the best compression anchor)
// and Targets the remaining members, each a candidate for encoding as a
// delta of the base.
type Group struct {
	Base    int
	Targets []int
}

type candidatePair struct {
	a, b int
}

// FindGroups runs three cheap-to-expensive filter tiers over bufs and
// returns the connected components of the resulting similarity graph.
// Tier 1 compares lengths in O(1) per pair; tier 2 compares 64-bit
// SimHash fingerprints (computed once per buffer) in O(1) per pair;
// only survivors pay for tier 3's exact edit distance, which runs in
// parallel across independent pairs.
func FindGroups(bufs [][]byte, opts Options) ([]Group, error) {
	opts = opts.withDefaults()
	if len(bufs) < 2 {
		return nil, nil
	}

	fingerprints := make([]uint64, len(bufs))
	for i, buf := range bufs {
		fingerprints[i] = SimHash(buf, opts.ChunkSize)
	}

	var candidates []candidatePair
	for i := 0; i < len(bufs); i++ {
		for j := i + 1; j < len(bufs); j++ {
			if !lengthsComparable(len(bufs[i]), len(bufs[j]), opts.MaxLengthRatio) {
				continue
			}
			if HammingDistance(fingerprints[i], fingerprints[j]) > hammingThreshold(len(bufs[i]), len(bufs[j])) {
				continue
			}
			candidates = append(candidates, candidatePair{i, j})
		}
	}
	if len(candidates) == 0 {
		return nil, nil
	}

	similar := make([]bool, len(candidates))
	var g errgroup.Group
	g.SetLimit(opts.Workers)
	for idx, pair := range candidates {
		idx, pair := idx, pair
		g.Go(func() error {
			similar[idx] = Similarity(bufs[pair.a], bufs[pair.b]) >= opts.MinSimilarity
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	// Union surviving pairs into components.
	parent := make([]int, len(bufs))
	for i := range parent {
		parent[i] = i
	}
	var find func(int) int
	find = func(x int) int {
		if parent[x] != x {
			parent[x] = find(parent[x])
		}
		return parent[x]
	}
	for idx, pair := range candidates {
		if similar[idx] {
			parent[find(pair.a)] = find(pair.b)
		}
	}

	members := make(map[int][]int)
	for i := range bufs {
		root := find(i)
		members[root] = append(members[root], i)
	}

	groups := make([]Group, 0, len(members))
	for _, component := range members {
		if len(component) < 2 {
			continue
		}
		base := component[0]
		for _, i := range component[1:] {
			if len(bufs[i]) < len(bufs[base]) {
				base = i
			}
		}
		targets := make([]int, 0, len(component)-1)
		for _, i := range component {
			if i != base {
				targets = append(targets, i)
			}
		}
		sort.Ints(targets)
		groups = append(groups, Group{Base: base, Targets: targets})
	}
	sort.Slice(groups, func(i, j int) bool { return groups[i].Base < groups[j].Base })
	return groups, nil
}

func lengthsComparable(a, b int, maxRatio float64) bool {
	if a == 0 || b == 0 {
		return a == b
	}
	min, max := a, b
	if min > max {
		min, max = max, min
	}
	return 1-float64(min)/float64(max) <= maxRatio
}

// Similarity maps edit distance into [0,1]: 1 - distance/max(len).
func Similarity(a, b []byte) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 1
	}
	n := len(a)
	if len(b) > n {
		n = len(b)
	}
	return 1 - float64(editDistance(a, b))/float64(n)
}

// editDistance computes byte-level Levenshtein distance with a two-row
// table: O(len(a)*len(b)) time, O(min(len)) space.
func editDistance(a, b []byte) int {
	if len(a) < len(b) {
		a, b = b, a
	}
	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(a); i++ {
		curr[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			best := prev[j] + 1 // delete
			if ins := curr[j-1] + 1; ins < best {
				best = ins
			}
			if sub := prev[j-1] + cost; sub < best {
				best = sub
			}
			curr[j] = best
		}
		prev, curr = curr, prev
	}
	return prev[len(b)]
}
