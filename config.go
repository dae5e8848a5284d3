package depresolve

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// Config holds the resolver's environment inputs: everything besides
// the workspace descriptors themselves and the CLI flags layered on
// top of it by cmd/depresolve.
type Config struct {
	// ArtifactCacheDir is where the default artifact fetcher looks for
	// (and extracts) cached repository module archives.
	ArtifactCacheDir string `toml:"artifact_cache_dir"`

	// AllowMissingSnapshots, when true, treats a repository module
	// with neither local sources nor an export snapshot as
	// contributing no dependencies instead of failing the resolve.
	AllowMissingSnapshots bool `toml:"allow_missing_snapshots"`

	// WellKnownRootPrefixes names root modules unioned into every
	// executable's required-provider search scope regardless of
	// whether they appear in that executable's own transitive closure
	// (see the provider resolver's "required scope" definition).
	WellKnownRootPrefixes []string `toml:"well_known_root_prefixes"`

	// IngestConcurrency bounds how many descriptors Registry.EnsureAll
	// parses in parallel. Zero means unbounded. Registry.Build's own
	// discovery of referenced modules loads them one at a time through
	// Registry.Ensure.
	IngestConcurrency int `toml:"ingest_concurrency"`

	// EmulationTable overrides the emulation selector's target-to-module
	// table. Nil means [DefaultEmulationTable]; TOML files can't
	// express the Match predicate directly, so a loaded config always
	// falls back to the default table unless the embedding caller sets
	// this field programmatically after [LoadConfig] returns.
	EmulationTable []EmulationRule `toml:"-"`
}

// emulationTable returns cfg.EmulationTable, falling back to
// [DefaultEmulationTable] when unset.
func (cfg Config) emulationTable() []EmulationRule {
	if cfg.EmulationTable != nil {
		return cfg.EmulationTable
	}
	return DefaultEmulationTable()
}

// DefaultConfig returns the configuration used when no TOML file is
// supplied: a temp-dir artifact cache, missing snapshots treated as
// fatal, no extra well-known roots, unbounded ingestion concurrency.
func DefaultConfig() Config {
	return Config{
		ArtifactCacheDir:      os.TempDir(),
		AllowMissingSnapshots: false,
		IngestConcurrency:     0,
	}
}

// LoadConfig reads and decodes a TOML configuration file, starting
// from [DefaultConfig] so a file only needs to mention the fields it
// overrides.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return Config{}, fmt.Errorf("load config %s: %w", path, err)
	}
	return cfg, nil
}
