package depresolve

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.AllowMissingSnapshots {
		t.Error("default config should treat missing snapshots as fatal")
	}
	if cfg.ArtifactCacheDir == "" {
		t.Error("default config should set a non-empty artifact cache dir")
	}
}

func TestLoadConfigOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "depresolve.toml")
	body := `
artifact_cache_dir = "/var/cache/depresolve"
allow_missing_snapshots = true
well_known_root_prefixes = ["com.ex:platform"]
ingest_concurrency = 4
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("failed to write config fixture: %v", err)
	}
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.ArtifactCacheDir != "/var/cache/depresolve" {
		t.Errorf("ArtifactCacheDir = %q, want /var/cache/depresolve", cfg.ArtifactCacheDir)
	}
	if !cfg.AllowMissingSnapshots {
		t.Error("AllowMissingSnapshots should be true")
	}
	if len(cfg.WellKnownRootPrefixes) != 1 || cfg.WellKnownRootPrefixes[0] != "com.ex:platform" {
		t.Errorf("WellKnownRootPrefixes = %v, want [com.ex:platform]", cfg.WellKnownRootPrefixes)
	}
	if cfg.IngestConcurrency != 4 {
		t.Errorf("IngestConcurrency = %d, want 4", cfg.IngestConcurrency)
	}
}

func TestEmulationTableFallsBackToDefault(t *testing.T) {
	cfg := DefaultConfig()
	if len(cfg.emulationTable()) != len(DefaultEmulationTable()) {
		t.Error("a config with no EmulationTable override should fall back to DefaultEmulationTable")
	}

	cfg.EmulationTable = []EmulationRule{{Name: "custom"}}
	if got := cfg.emulationTable(); len(got) != 1 || got[0].Name != "custom" {
		t.Error("an explicit EmulationTable override should win over the default")
	}
}
