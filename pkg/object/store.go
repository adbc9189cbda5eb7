package object

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/klauspost/compress/zlib"
)

var (
	// ErrNotFound marks an ordinary miss: the hash is absent from both
	// the loose tree and every resident pack.
	ErrNotFound = errors.New("object not found")

	// ErrCorrupt marks a loose object that exists on disk but cannot be
	// decoded: bad compression, malformed envelope, or length mismatch.
	ErrCorrupt = errors.New("object corrupt")
)

// Store is a content-addressed object store. Loose objects live under
// objects/<kind>/<hash[:2]>/<hash[2:]> as zlib-compressed envelopes,
// optionally sealed by an injected Cipher. Objects missing from the
// loose tree are looked up in resident pack files.
type Store struct {
	root   string
	cipher Cipher
	logger *slog.Logger
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithCipher injects an at-rest encryption hook. New writes go through
// Encrypt; reads try Decrypt and fall back to treating the file as
// plain zlib for objects written before encryption was enabled.
func WithCipher(c Cipher) StoreOption {
	return func(s *Store) {
		if c != nil {
			s.cipher = c
		}
	}
}

// WithLogger attaches a logger for maintenance-level events.
func WithLogger(l *slog.Logger) StoreOption {
	return func(s *Store) { s.logger = l }
}

// NewStore creates a Store rooted at the given directory. The objects/
// subdirectory is created lazily on first write.
func NewStore(root string, opts ...StoreOption) *Store {
	s := &Store{root: root, cipher: NoopCipher{}}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) log() *slog.Logger {
	if s.logger == nil {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return s.logger
}

// objectPath returns the filesystem path for a hash. Callers must have
// passed the hash through ValidHash first.
func (s *Store) objectPath(h Hash, kind Kind) string {
	return filepath.Join(s.root, "objects", string(kind), string(h[:2]), string(h[2:]))
}

// Has reports whether the store contains an object with the given hash,
// loose or packed. A malformed hash or kind yields false without
// touching the filesystem.
func (s *Store) Has(h Hash, kind Kind) bool {
	if !ValidHash(h) || !ValidKind(kind) {
		return false
	}
	if _, err := os.Stat(s.objectPath(h, kind)); err == nil {
		return true
	}
	_, _, err := s.readFromPacks(h, kind)
	return err == nil
}

// Write stores an object and returns its content hash. Write is
// idempotent: if the hash already exists, loose or packed, no file is
// touched. New objects are written atomically via temp file + rename.
func (s *Store) Write(kind Kind, payload []byte) (Hash, error) {
	if !ValidKind(kind) {
		return "", fmt.Errorf("object write: unknown kind %q", kind)
	}
	h := HashObject(kind, payload)

	// Fast path: already exists.
	if s.Has(h, kind) {
		return h, nil
	}

	compressed, err := deflateBytes(makeEnvelope(kind, payload))
	if err != nil {
		return "", fmt.Errorf("object write compress: %w", err)
	}
	sealed, err := s.cipher.Encrypt(compressed)
	if err != nil {
		return "", fmt.Errorf("object write encrypt: %w", err)
	}

	dir := filepath.Join(s.root, "objects", string(kind), string(h[:2]))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("object write mkdir: %w", err)
	}

	// Atomic write via temp + rename.
	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return "", fmt.Errorf("object write tmpfile: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(sealed); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return "", fmt.Errorf("object write: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return "", fmt.Errorf("object write close: %w", err)
	}
	if err := os.Rename(tmpName, s.objectPath(h, kind)); err != nil {
		os.Remove(tmpName)
		return "", fmt.Errorf("object write rename: %w", err)
	}

	return h, nil
}

// Read retrieves an object by hash and kind. Misses return an error
// wrapping ErrNotFound; a loose file that exists but cannot be decoded
// returns an error wrapping ErrCorrupt. When the loose file is absent
// the resident packs are consulted before reporting a miss.
func (s *Store) Read(h Hash, kind Kind) ([]byte, error) {
	if !ValidHash(h) || len(h) != 64 || !ValidKind(kind) {
		return nil, fmt.Errorf("object read %s: %w", h, ErrNotFound)
	}

	sealed, err := os.ReadFile(s.objectPath(h, kind))
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("object read %s: %w", h, err)
		}
		_, payload, packErr := s.readFromPacks(h, kind)
		if packErr != nil {
			return nil, fmt.Errorf("object read %s: %w", h, ErrNotFound)
		}
		return payload, nil
	}

	// Decrypt failure means the file predates encryption and is plain
	// zlib; inflate decides whether that assumption holds.
	compressed, err := s.cipher.Decrypt(sealed)
	if err != nil {
		compressed = sealed
	}
	envelope, err := inflateBytes(compressed)
	if err != nil {
		return nil, fmt.Errorf("object read %s: inflate: %w", h, ErrCorrupt)
	}

	gotKind, payload, err := parseEnvelope(envelope)
	if err != nil {
		return nil, fmt.Errorf("object read %s: %w: %v", h, ErrCorrupt, err)
	}
	if gotKind != kind {
		return nil, fmt.Errorf("object read %s: %w: kind %q under %q directory", h, ErrCorrupt, gotKind, kind)
	}
	return payload, nil
}

// Delete removes the loose copy of an object, pruning its fanout
// directory if it becomes empty. Packed copies are untouched; packs are
// immutable and superseded only by repack. Returns false for malformed
// hashes and ordinary misses.
func (s *Store) Delete(h Hash, kind Kind) bool {
	if !ValidHash(h) || len(h) != 64 || !ValidKind(kind) {
		return false
	}
	path := s.objectPath(h, kind)
	if err := os.Remove(path); err != nil {
		return false
	}
	// Best effort: an empty fanout dir is cosmetic, not structural.
	_ = removeIfEmpty(filepath.Dir(path))
	_ = removeIfEmpty(filepath.Dir(filepath.Dir(path)))
	return true
}

func removeIfEmpty(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil || len(entries) > 0 {
		return err
	}
	return os.Remove(dir)
}

// List enumerates every loose object of the given kind in ascending
// hash order.
func (s *Store) List(kind Kind) ([]Hash, error) {
	if !ValidKind(kind) {
		return nil, fmt.Errorf("object list: unknown kind %q", kind)
	}

	kindDir := filepath.Join(s.root, "objects", string(kind))
	fanoutDirs, err := os.ReadDir(kindDir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("object list %s: %w", kind, err)
	}

	hashes := make([]Hash, 0)
	for _, fanoutDir := range fanoutDirs {
		if !fanoutDir.IsDir() || !isHexComponent(fanoutDir.Name(), 2) {
			continue
		}
		prefix := fanoutDir.Name()
		objectEntries, err := os.ReadDir(filepath.Join(kindDir, prefix))
		if err != nil {
			return nil, fmt.Errorf("object list %s fanout %s: %w", kind, prefix, err)
		}
		for _, objectEntry := range objectEntries {
			if objectEntry.IsDir() || !isHexComponent(objectEntry.Name(), 62) {
				continue
			}
			hashes = append(hashes, Hash(prefix+objectEntry.Name()))
		}
	}

	sort.Slice(hashes, func(i, j int) bool { return hashes[i] < hashes[j] })
	return hashes, nil
}

// looseSize returns the on-disk byte size of a loose object, 0 if absent.
func (s *Store) looseSize(h Hash, kind Kind) int64 {
	info, err := os.Stat(s.objectPath(h, kind))
	if err != nil {
		return 0
	}
	return info.Size()
}

// readLooseEnvelope reads and decodes a loose object into its raw
// envelope bytes without consulting packs.
func (s *Store) readLooseEnvelope(h Hash, kind Kind) ([]byte, error) {
	sealed, err := os.ReadFile(s.objectPath(h, kind))
	if err != nil {
		return nil, err
	}
	compressed, err := s.cipher.Decrypt(sealed)
	if err != nil {
		compressed = sealed
	}
	envelope, err := inflateBytes(compressed)
	if err != nil {
		return nil, fmt.Errorf("loose %s: inflate: %w", h, ErrCorrupt)
	}
	return envelope, nil
}

func isHexComponent(s string, expectedLen int) bool {
	if len(s) != expectedLen {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}

// ---------------------------------------------------------------------------
// Envelope and compression helpers
// ---------------------------------------------------------------------------

func makeEnvelope(kind Kind, payload []byte) []byte {
	header := fmt.Sprintf("%s %d\x00", kind, len(payload))
	out := make([]byte, 0, len(header)+len(payload))
	out = append(out, header...)
	out = append(out, payload...)
	return out
}

func parseEnvelope(envelope []byte) (Kind, []byte, error) {
	nulIdx := bytes.IndexByte(envelope, 0)
	if nulIdx < 0 {
		return "", nil, fmt.Errorf("invalid envelope (no NUL)")
	}
	header := string(envelope[:nulIdx])
	payload := envelope[nulIdx+1:]

	kindStr, lenStr, ok := strings.Cut(header, " ")
	if !ok {
		return "", nil, fmt.Errorf("invalid envelope header %q", header)
	}
	kind := Kind(kindStr)
	if !ValidKind(kind) {
		return "", nil, fmt.Errorf("unknown kind %q in envelope", kindStr)
	}
	length, err := strconv.Atoi(lenStr)
	if err != nil {
		return "", nil, fmt.Errorf("invalid envelope length %q: %w", lenStr, err)
	}
	if len(payload) != length {
		return "", nil, fmt.Errorf("envelope length mismatch (header=%d, actual=%d)", length, len(payload))
	}
	return kind, payload, nil
}

func deflateBytes(raw []byte) ([]byte, error) {
	var buf bytes.Buffer
	zw := zlib.NewWriter(&buf)
	if _, err := zw.Write(raw); err != nil {
		_ = zw.Close()
		return nil, err
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func inflateBytes(data []byte) ([]byte, error) {
	zr, err := zlib.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	raw, err := io.ReadAll(zr)
	if err != nil {
		_ = zr.Close()
		return nil, err
	}
	if err := zr.Close(); err != nil {
		return nil, err
	}
	return raw, nil
}

// ---------------------------------------------------------------------------
// Typed convenience methods
// ---------------------------------------------------------------------------

// WriteBlob serializes and stores a Blob.
func (s *Store) WriteBlob(b *Blob) (Hash, error) {
	return s.Write(KindBlob, MarshalBlob(b))
}

// ReadBlob reads and deserializes a Blob.
func (s *Store) ReadBlob(h Hash) (*Blob, error) {
	payload, err := s.Read(h, KindBlob)
	if err != nil {
		return nil, err
	}
	return UnmarshalBlob(payload)
}

// WriteTree serializes and stores a TreeObj.
func (s *Store) WriteTree(tr *TreeObj) (Hash, error) {
	return s.Write(KindTree, MarshalTree(tr))
}

// ReadTree reads and deserializes a TreeObj.
func (s *Store) ReadTree(h Hash) (*TreeObj, error) {
	payload, err := s.Read(h, KindTree)
	if err != nil {
		return nil, err
	}
	return UnmarshalTree(payload)
}

// WriteCommit serializes and stores a CommitObj.
func (s *Store) WriteCommit(c *CommitObj) (Hash, error) {
	return s.Write(KindCommit, MarshalCommit(c))
}

// ReadCommit reads and deserializes a CommitObj.
func (s *Store) ReadCommit(h Hash) (*CommitObj, error) {
	payload, err := s.Read(h, KindCommit)
	if err != nil {
		return nil, err
	}
	return UnmarshalCommit(payload)
}

// WriteTag serializes and stores a TagObj.
func (s *Store) WriteTag(t *TagObj) (Hash, error) {
	return s.Write(KindTag, MarshalTag(t))
}

// ReadTag reads and deserializes a TagObj.
func (s *Store) ReadTag(h Hash) (*TagObj, error) {
	payload, err := s.Read(h, KindTag)
	if err != nil {
		return nil, err
	}
	return UnmarshalTag(payload)
}
