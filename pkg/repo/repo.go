package repo

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/mnemo-vc/mnemo/pkg/object"
)

// Repo represents an opened mnemo repository.
type Repo struct {
	RootDir  string        // working directory root
	MnemoDir string        // .mnemo/ directory
	Store    *object.Store // content-addressed object store
	Config   *Config

	cipher object.Cipher
	logger *slog.Logger
}

// Init creates a new mnemo repository at path: the .mnemo/ directory
// with HEAD, objects/, refs/heads/, refs/tags/, logs/, and a default
// config.toml. Returns an error if .mnemo/ already exists.
func Init(path string) (*Repo, error) {
	mnemoDir := filepath.Join(path, ".mnemo")

	if _, err := os.Stat(mnemoDir); err == nil {
		return nil, fmt.Errorf("init: repository already exists at %s", mnemoDir)
	}

	dirs := []string{
		filepath.Join(mnemoDir, "objects"),
		filepath.Join(mnemoDir, "refs", "heads"),
		filepath.Join(mnemoDir, "refs", "tags"),
		filepath.Join(mnemoDir, "logs", "refs", "heads"),
	}
	for _, d := range dirs {
		if err := os.MkdirAll(d, 0o755); err != nil {
			return nil, fmt.Errorf("init: mkdir %s: %w", d, err)
		}
	}

	headPath := filepath.Join(mnemoDir, "HEAD")
	if err := os.WriteFile(headPath, []byte("ref: refs/heads/main\n"), 0o644); err != nil {
		return nil, fmt.Errorf("init: write HEAD: %w", err)
	}

	r := &Repo{
		RootDir:  path,
		MnemoDir: mnemoDir,
		Config:   DefaultConfig(),
	}
	if err := r.WriteConfig(r.Config); err != nil {
		return nil, err
	}
	r.Store = object.NewStore(mnemoDir, r.storeOptions()...)
	return r, nil
}

// Open searches upward from path for a .mnemo/ directory and opens the
// repository. Returns an error if none is found.
func Open(path string, opts ...OpenOption) (*Repo, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("open: abs path: %w", err)
	}

	cur := abs
	for {
		mnemoDir := filepath.Join(cur, ".mnemo")
		info, err := os.Stat(mnemoDir)
		if err == nil && info.IsDir() {
			r := &Repo{
				RootDir:  cur,
				MnemoDir: mnemoDir,
			}
			cfg, err := r.ReadConfig()
			if err != nil {
				return nil, err
			}
			r.Config = cfg
			for _, opt := range opts {
				opt(r)
			}
			r.Store = object.NewStore(mnemoDir, r.storeOptions()...)
			return r, nil
		}

		parent := filepath.Dir(cur)
		if parent == cur {
			return nil, fmt.Errorf("open: not a mnemo repository (or any parent up to /)")
		}
		cur = parent
	}
}

// OpenOption configures an opened repository.
type OpenOption func(*Repo)

// WithCipher injects an at-rest encryption hook into the object store.
func WithCipher(c object.Cipher) OpenOption {
	return func(r *Repo) { r.cipher = c }
}

// WithLogger attaches a logger to the object store.
func WithLogger(l *slog.Logger) OpenOption {
	return func(r *Repo) { r.logger = l }
}

func (r *Repo) storeOptions() []object.StoreOption {
	var opts []object.StoreOption
	if r.cipher != nil {
		opts = append(opts, object.WithCipher(r.cipher))
	}
	if r.logger != nil {
		opts = append(opts, object.WithLogger(r.logger))
	}
	return opts
}

// Head reads .mnemo/HEAD. If the content starts with "ref: ", it
// returns the ref path (e.g. "refs/heads/main"); otherwise the raw
// content as a detached hash string.
func (r *Repo) Head() (string, error) {
	data, err := os.ReadFile(filepath.Join(r.MnemoDir, "HEAD"))
	if err != nil {
		return "", fmt.Errorf("head: %w", err)
	}
	content := strings.TrimRight(string(data), "\n")

	if strings.HasPrefix(content, "ref: ") {
		return strings.TrimPrefix(content, "ref: "), nil
	}
	return content, nil
}
