package repo

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mnemo-vc/mnemo/pkg/object"
)

// Commit records a snapshot commit pointing at an already-stored tree.
//
//  1. Resolve HEAD to get the parent commit hash (if any)
//  2. Create CommitObj with tree hash, parent, author, current timestamp, message
//  3. Write commit to store
//  4. Update the current branch ref to the new commit hash
func (r *Repo) Commit(treeHash object.Hash, message, author string) (object.Hash, error) {
	if !r.Store.Has(treeHash, object.KindTree) {
		return "", fmt.Errorf("commit: tree %s not found", treeHash)
	}

	// Resolve HEAD to get the parent. A failed resolution means the branch
	// has no commits yet, which is fine.
	var parents []object.Hash
	parentHash, err := r.ResolveRef("HEAD")
	if err == nil && parentHash != "" {
		parents = append(parents, parentHash)
	}

	commitHash, err := r.Store.WriteCommit(&object.CommitObj{
		TreeHash:  treeHash,
		Parents:   parents,
		Author:    author,
		Timestamp: time.Now().Unix(),
		Message:   message,
	})
	if err != nil {
		return "", fmt.Errorf("commit: write commit: %w", err)
	}

	head, err := r.Head()
	if err != nil {
		return "", fmt.Errorf("commit: read HEAD: %w", err)
	}

	// head is either a ref path ("refs/heads/main") or a detached hash.
	ref := head
	if !strings.HasPrefix(head, "refs/") {
		ref = "HEAD"
	}
	if err := r.updateRef(ref, commitHash, "commit: "+firstLine(message)); err != nil {
		return "", fmt.Errorf("commit: update ref %q: %w", ref, err)
	}

	return commitHash, nil
}

// Log walks the commit history starting from the given hash, following
// first-parent links, returning up to limit commits in reverse-chronological
// order (newest first).
func (r *Repo) Log(start object.Hash, limit int) ([]*object.CommitObj, error) {
	var commits []*object.CommitObj
	current := start

	for len(commits) < limit {
		c, err := r.Store.ReadCommit(current)
		if err != nil {
			if errors.Is(err, object.ErrNotFound) {
				break
			}
			return nil, fmt.Errorf("log: read commit %s: %w", current, err)
		}
		commits = append(commits, c)

		if len(c.Parents) == 0 {
			break
		}
		current = c.Parents[0]
	}

	return commits, nil
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
