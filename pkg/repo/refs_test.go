package repo

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/mnemo-vc/mnemo/pkg/object"
)

func TestUpdateAndResolveRef(t *testing.T) {
	r := initTestRepo(t)
	h := object.HashObject(object.KindCommit, []byte("fake commit"))

	if err := r.UpdateRef("refs/heads/main", h); err != nil {
		t.Fatalf("UpdateRef: %v", err)
	}

	got, err := r.ResolveRef("refs/heads/main")
	if err != nil {
		t.Fatalf("ResolveRef: %v", err)
	}
	if got != h {
		t.Errorf("ResolveRef: got %q, want %q", got, h)
	}

	// Bare names fall back to refs/heads/.
	got, err = r.ResolveRef("main")
	if err != nil {
		t.Fatalf("ResolveRef bare: %v", err)
	}
	if got != h {
		t.Errorf("ResolveRef bare: got %q, want %q", got, h)
	}

	// HEAD resolves through the symbolic ref.
	got, err = r.ResolveRef("HEAD")
	if err != nil {
		t.Fatalf("ResolveRef HEAD: %v", err)
	}
	if got != h {
		t.Errorf("ResolveRef HEAD: got %q, want %q", got, h)
	}
}

func TestResolveRefMissing(t *testing.T) {
	r := initTestRepo(t)
	if _, err := r.ResolveRef("refs/heads/nowhere"); err == nil {
		t.Error("ResolveRef succeeded for a missing ref")
	}
}

func TestUpdateRefLeavesNoLockfile(t *testing.T) {
	r := initTestRepo(t)
	h := object.HashObject(object.KindCommit, []byte("c"))
	if err := r.UpdateRef("refs/heads/main", h); err != nil {
		t.Fatalf("UpdateRef: %v", err)
	}
	lock := filepath.Join(r.MnemoDir, "refs", "heads", "main.lock")
	if _, err := os.Stat(lock); !os.IsNotExist(err) {
		t.Errorf("lockfile %s survived the update", lock)
	}
}

func TestListRefs(t *testing.T) {
	r := initTestRepo(t)
	h1 := object.HashObject(object.KindCommit, []byte("one"))
	h2 := object.HashObject(object.KindCommit, []byte("two"))
	if err := r.UpdateRef("refs/heads/main", h1); err != nil {
		t.Fatalf("UpdateRef: %v", err)
	}
	if err := r.UpdateRef("refs/heads/feature/x", h2); err != nil {
		t.Fatalf("UpdateRef: %v", err)
	}

	refs, err := r.ListRefs("heads")
	if err != nil {
		t.Fatalf("ListRefs: %v", err)
	}
	if len(refs) != 2 {
		t.Fatalf("refs: got %d, want 2", len(refs))
	}
	if refs["heads/main"] != h1 || refs["heads/feature/x"] != h2 {
		t.Errorf("refs content: %v", refs)
	}
}

func TestUpdateRefAppendsReflog(t *testing.T) {
	r := initTestRepo(t)
	h1 := object.HashObject(object.KindCommit, []byte("first"))
	h2 := object.HashObject(object.KindCommit, []byte("second"))

	if err := r.UpdateRef("refs/heads/main", h1); err != nil {
		t.Fatalf("UpdateRef 1: %v", err)
	}
	if err := r.UpdateRef("refs/heads/main", h2); err != nil {
		t.Fatalf("UpdateRef 2: %v", err)
	}

	entries, err := r.ReadReflog("main", 0)
	if err != nil {
		t.Fatalf("ReadReflog: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("reflog entries: got %d, want 2", len(entries))
	}
	// Newest first.
	if entries[0].OldHash != h1 || entries[0].NewHash != h2 {
		t.Errorf("newest entry: %+v", entries[0])
	}
	if string(entries[1].OldHash) != zeroHash || entries[1].NewHash != h1 {
		t.Errorf("oldest entry: %+v", entries[1])
	}
}

func TestReadReflogLimit(t *testing.T) {
	r := initTestRepo(t)
	for i := 0; i < 5; i++ {
		h := object.HashObject(object.KindCommit, []byte{byte(i)})
		if err := r.UpdateRef("refs/heads/main", h); err != nil {
			t.Fatalf("UpdateRef %d: %v", i, err)
		}
	}
	entries, err := r.ReadReflog("main", 3)
	if err != nil {
		t.Fatalf("ReadReflog: %v", err)
	}
	if len(entries) != 3 {
		t.Errorf("limited reflog: got %d entries, want 3", len(entries))
	}
}

func TestReadReflogMissingRef(t *testing.T) {
	r := initTestRepo(t)
	entries, err := r.ReadReflog("ghost", 0)
	if err != nil {
		t.Fatalf("ReadReflog: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("entries for missing ref: %d", len(entries))
	}
}

func TestCommitAdvancesBranchAndLog(t *testing.T) {
	r := initTestRepo(t)
	_, _, c1 := writeHistory(t, r, "first")
	_, _, c2 := writeHistory(t, r, "second")

	tip, err := r.ResolveRef("HEAD")
	if err != nil {
		t.Fatalf("ResolveRef: %v", err)
	}
	if tip != c2 {
		t.Errorf("branch tip: got %q, want %q", tip, c2)
	}

	commits, err := r.Log(c2, 10)
	if err != nil {
		t.Fatalf("Log: %v", err)
	}
	if len(commits) != 2 {
		t.Fatalf("log: got %d commits, want 2", len(commits))
	}
	if commits[0].Message != "second" || commits[1].Message != "first" {
		t.Errorf("log order: %q then %q", commits[0].Message, commits[1].Message)
	}
	if len(commits[0].Parents) != 1 || commits[0].Parents[0] != c1 {
		t.Errorf("second commit parents: %v", commits[0].Parents)
	}
}

func TestCommitRejectsMissingTree(t *testing.T) {
	r := initTestRepo(t)
	absent := object.HashObject(object.KindTree, []byte("never stored"))
	if _, err := r.Commit(absent, "msg", "tester"); err == nil {
		t.Error("Commit accepted a missing tree")
	}
}

func TestBranchLifecycle(t *testing.T) {
	r := initTestRepo(t)
	_, _, c1 := writeHistory(t, r, "base")

	if err := r.CreateBranch("feature", c1); err != nil {
		t.Fatalf("CreateBranch: %v", err)
	}
	if err := r.CreateBranch("feature", c1); err == nil {
		t.Error("CreateBranch accepted a duplicate name")
	}

	branches, err := r.ListBranches()
	if err != nil {
		t.Fatalf("ListBranches: %v", err)
	}
	if len(branches) != 2 || branches[0] != "feature" || branches[1] != "main" {
		t.Errorf("branches: %v", branches)
	}

	current, err := r.CurrentBranch()
	if err != nil {
		t.Fatalf("CurrentBranch: %v", err)
	}
	if current != "main" {
		t.Errorf("CurrentBranch: got %q, want main", current)
	}
	if err := r.DeleteBranch("main"); err == nil {
		t.Error("DeleteBranch removed the current branch")
	}

	if err := r.DeleteBranch("feature"); err != nil {
		t.Fatalf("DeleteBranch: %v", err)
	}
	if err := r.DeleteBranch("feature"); err == nil {
		t.Error("DeleteBranch succeeded twice")
	}
}

func TestTagLifecycle(t *testing.T) {
	r := initTestRepo(t)
	_, _, c1 := writeHistory(t, r, "taggable")

	if err := r.CreateTag("v1", c1, false); err != nil {
		t.Fatalf("CreateTag: %v", err)
	}
	if err := r.CreateTag("v1", c1, false); err == nil {
		t.Error("CreateTag accepted a duplicate without force")
	}
	if err := r.CreateTag("v1", c1, true); err != nil {
		t.Errorf("CreateTag force: %v", err)
	}

	got, err := r.ResolveTag("v1")
	if err != nil {
		t.Fatalf("ResolveTag: %v", err)
	}
	if got != c1 {
		t.Errorf("ResolveTag: got %q, want %q", got, c1)
	}

	tags, err := r.ListTags()
	if err != nil {
		t.Fatalf("ListTags: %v", err)
	}
	if len(tags) != 1 || tags[0] != "v1" {
		t.Errorf("tags: %v", tags)
	}

	if err := r.DeleteTag("v1"); err != nil {
		t.Fatalf("DeleteTag: %v", err)
	}
	if _, err := r.ResolveTag("v1"); err == nil {
		t.Error("ResolveTag found a deleted tag")
	}
}

func TestAnnotatedTag(t *testing.T) {
	r := initTestRepo(t)
	_, _, c1 := writeHistory(t, r, "release")

	tagHash, err := r.CreateAnnotatedTag("v1.0", c1, "tester", "first release", false)
	if err != nil {
		t.Fatalf("CreateAnnotatedTag: %v", err)
	}

	tag, err := r.Store.ReadTag(tagHash)
	if err != nil {
		t.Fatalf("ReadTag: %v", err)
	}
	if tag.TargetHash != c1 || tag.Name != "v1.0" || tag.Tagger != "tester" || tag.Message != "first release" {
		t.Errorf("tag object: %+v", tag)
	}

	// The ref points at the tag object, not the commit.
	refTarget, err := r.ResolveTag("v1.0")
	if err != nil {
		t.Fatalf("ResolveTag: %v", err)
	}
	if refTarget != tagHash {
		t.Errorf("tag ref: got %q, want %q", refTarget, tagHash)
	}
}

func TestAnnotatedTagValidation(t *testing.T) {
	r := initTestRepo(t)
	_, _, c1 := writeHistory(t, r, "x")

	if _, err := r.CreateAnnotatedTag("bad name", c1, "t", "m", false); err == nil {
		t.Error("accepted a tag name with spaces")
	}
	if _, err := r.CreateAnnotatedTag("../up", c1, "t", "m", false); err == nil {
		t.Error("accepted a traversal tag name")
	}
	if _, err := r.CreateAnnotatedTag("v1", c1, "t", "", false); err == nil {
		t.Error("accepted an empty message")
	}
	absent := object.HashObject(object.KindCommit, []byte("ghost"))
	if _, err := r.CreateAnnotatedTag("v1", absent, "t", "m", false); err == nil {
		t.Error("accepted a missing target")
	}
}
