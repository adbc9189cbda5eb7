package object

// Hash is a 64-character lowercase hex-encoded SHA-256 digest.
type Hash string

// Kind identifies the kind of object stored.
type Kind string

const (
	KindBlob   Kind = "blob"
	KindTree   Kind = "tree"
	KindCommit Kind = "commit"
	KindTag    Kind = "tag"
)

// Kinds lists every storable object kind in loose-directory order.
var Kinds = []Kind{KindBlob, KindTree, KindCommit, KindTag}

// ValidKind reports whether k is one of the four storable kinds.
func ValidKind(k Kind) bool {
	switch k {
	case KindBlob, KindTree, KindCommit, KindTag:
		return true
	}
	return false
}

const (
	// Tree mode constants compatible with Git's canonical mode strings.
	TreeModeDir        = "40000"
	TreeModeFile       = "100644"
	TreeModeExecutable = "100755"
)

// Blob holds raw memory-file data.
type Blob struct {
	Data []byte
}

// TreeEntry is one entry in a flattened tree object. Prefix is the
// relative directory the entry lives under, empty for the tree root;
// trees flatten hierarchy into a single serialized list.
type TreeEntry struct {
	Mode   string
	Kind   Kind // KindBlob or KindTree
	Hash   Hash
	Prefix string
	Name   string
}

// TreeObj holds a sorted list of tree entries.
type TreeObj struct {
	Entries []TreeEntry // sorted by Prefix, then Name
}

// CommitObj represents a commit pointing to a tree with metadata.
type CommitObj struct {
	TreeHash  Hash
	Parents   []Hash
	Author    string
	Timestamp int64
	Message   string
}

// TagObj is an annotated tag referencing a commit.
type TagObj struct {
	TargetHash Hash
	Name       string
	Tagger     string
	Timestamp  int64
	Message    string
}
