package repo

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Config stores repository-local engine tunables, persisted as
// .mnemo/config.toml.
type Config struct {
	GC     GCConfig     `toml:"gc"`
	Deltas DeltasConfig `toml:"deltas"`
}

// GCConfig controls garbage collection.
type GCConfig struct {
	// PruneDays bounds the reflog window treated as GC roots; entries
	// older than this are eligible for collection.
	PruneDays int `toml:"prune_days"`
}

// DeltasConfig tunes the similarity engine used during repack.
type DeltasConfig struct {
	Enabled        bool    `toml:"enabled"`
	MaxLengthRatio float64 `toml:"max_length_ratio"`
	ChunkSize      int     `toml:"chunk_size"`
	MinSimilarity  float64 `toml:"min_similarity"`
	MaxDeltaRatio  float64 `toml:"max_delta_ratio"`
}

// DefaultConfig returns the settings a fresh repository starts with.
func DefaultConfig() *Config {
	return &Config{
		GC: GCConfig{PruneDays: 90},
		Deltas: DeltasConfig{
			Enabled:        true,
			MaxLengthRatio: 0.5,
			ChunkSize:      16,
			MinSimilarity:  0.7,
			MaxDeltaRatio:  0.8,
		},
	}
}

func (r *Repo) configPath() string {
	return filepath.Join(r.MnemoDir, "config.toml")
}

// ReadConfig reads .mnemo/config.toml. A missing file returns defaults.
func (r *Repo) ReadConfig() (*Config, error) {
	cfg := DefaultConfig()
	if _, err := toml.DecodeFile(r.configPath(), cfg); err != nil {
		if os.IsNotExist(err) {
			return DefaultConfig(), nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}
	if cfg.GC.PruneDays <= 0 {
		cfg.GC.PruneDays = DefaultConfig().GC.PruneDays
	}
	return cfg, nil
}

// WriteConfig atomically writes .mnemo/config.toml.
func (r *Repo) WriteConfig(cfg *Config) error {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	tmp, err := os.CreateTemp(r.MnemoDir, ".config-tmp-*")
	if err != nil {
		return fmt.Errorf("write config: tmpfile: %w", err)
	}
	tmpName := tmp.Name()

	if err := toml.NewEncoder(tmp).Encode(cfg); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write config: encode: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("write config: close: %w", err)
	}
	if err := os.Rename(tmpName, r.configPath()); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("write config: rename: %w", err)
	}
	return nil
}
