package object

import (
	"fmt"
	"sort"
	"strings"
)

type typedHash struct {
	hash Hash
	kind Kind
}

// ReachableSet returns all object hashes reachable from roots by
// following commit parent/tree edges and tree entry edges. Roots may be
// commits or annotated tags; missing roots are ignored. Traversal uses
// an explicit stack and a visited set so deep hierarchies cannot
// exhaust the call stack.
func (s *Store) ReachableSet(roots []Hash) (map[Hash]struct{}, error) {
	roots = uniqueNormalizedHashes(roots)
	out := make(map[Hash]struct{}, len(roots))
	if len(roots) == 0 {
		return out, nil
	}

	stack := make([]typedHash, 0, len(roots))
	for _, h := range roots {
		switch {
		case s.Has(h, KindCommit):
			stack = append(stack, typedHash{h, KindCommit})
		case s.Has(h, KindTag):
			stack = append(stack, typedHash{h, KindTag})
		}
	}

	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if cur.hash == "" {
			continue
		}
		if _, ok := out[cur.hash]; ok {
			continue
		}
		if !s.Has(cur.hash, cur.kind) {
			continue
		}
		out[cur.hash] = struct{}{}

		payload, err := s.Read(cur.hash, cur.kind)
		if err != nil {
			return nil, fmt.Errorf("reachable set read %s: %w", cur.hash, err)
		}
		refs, err := referencedHashes(cur.kind, payload)
		if err != nil {
			return nil, fmt.Errorf("reachable set parse %s (%s): %w", cur.hash, cur.kind, err)
		}
		stack = append(stack, refs...)
	}

	return out, nil
}

func referencedHashes(kind Kind, payload []byte) ([]typedHash, error) {
	switch kind {
	case KindBlob:
		return nil, nil
	case KindTag:
		tag, err := UnmarshalTag(payload)
		if err != nil {
			return nil, err
		}
		return []typedHash{{tag.TargetHash, KindCommit}}, nil
	case KindCommit:
		commit, err := UnmarshalCommit(payload)
		if err != nil {
			return nil, err
		}
		refs := make([]typedHash, 0, 1+len(commit.Parents))
		refs = append(refs, typedHash{commit.TreeHash, KindTree})
		for _, p := range commit.Parents {
			refs = append(refs, typedHash{p, KindCommit})
		}
		return refs, nil
	case KindTree:
		tree, err := UnmarshalTree(payload)
		if err != nil {
			return nil, err
		}
		refs := make([]typedHash, 0, len(tree.Entries))
		for _, e := range tree.Entries {
			refs = append(refs, typedHash{e.Hash, e.Kind})
		}
		return refs, nil
	default:
		return nil, fmt.Errorf("unsupported object kind %q", kind)
	}
}

func uniqueNormalizedHashes(in []Hash) []Hash {
	if len(in) == 0 {
		return nil
	}
	seen := make(map[Hash]struct{}, len(in))
	out := make([]Hash, 0, len(in))
	for _, h := range in {
		h = Hash(strings.TrimSpace(string(h)))
		if h == "" {
			continue
		}
		if _, ok := seen[h]; ok {
			continue
		}
		seen[h] = struct{}{}
		out = append(out, h)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
