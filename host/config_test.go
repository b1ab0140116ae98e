package host

import (
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestDiscoverConfigPathExplicit(t *testing.T) {
	dir := t.TempDir()
	explicit := filepath.Join(dir, "mine.yaml")
	writeFile(t, explicit, "log_level: debug\n")

	path, found, err := DiscoverConfigPathFrom(explicit, dir, dir)
	if err != nil {
		t.Fatalf("DiscoverConfigPathFrom() error: %v", err)
	}
	if !found || path != explicit {
		t.Errorf("explicit path = (%q, %v), want (%q, true)", path, found, explicit)
	}
}

func TestDiscoverConfigPathExplicitMissing(t *testing.T) {
	dir := t.TempDir()
	if _, _, err := DiscoverConfigPathFrom(filepath.Join(dir, "nope.yaml"), dir, dir); err == nil {
		t.Error("missing explicit path did not error")
	}
}

func TestDiscoverConfigPathProjectBeforeHome(t *testing.T) {
	cwd := t.TempDir()
	home := t.TempDir()
	project := filepath.Join(cwd, projectConfigName)
	homeCfg := filepath.Join(home, ".glyphflow", homeConfigName)
	writeFile(t, project, "log_level: debug\n")
	writeFile(t, homeCfg, "log_level: warn\n")

	path, found, err := DiscoverConfigPathFrom("", cwd, home)
	if err != nil {
		t.Fatalf("DiscoverConfigPathFrom() error: %v", err)
	}
	if !found || path != project {
		t.Errorf("discovered = (%q, %v), want project config first", path, found)
	}
}

func TestDiscoverConfigPathFallsBackToHome(t *testing.T) {
	cwd := t.TempDir()
	home := t.TempDir()
	homeCfg := filepath.Join(home, ".glyphflow", homeConfigName)
	writeFile(t, homeCfg, "log_level: warn\n")

	path, found, err := DiscoverConfigPathFrom("", cwd, home)
	if err != nil {
		t.Fatalf("DiscoverConfigPathFrom() error: %v", err)
	}
	if !found || path != homeCfg {
		t.Errorf("discovered = (%q, %v), want home config", path, found)
	}
}

func TestDiscoverConfigPathNoneFound(t *testing.T) {
	path, found, err := DiscoverConfigPathFrom("", t.TempDir(), t.TempDir())
	if err != nil {
		t.Fatalf("DiscoverConfigPathFrom() error: %v", err)
	}
	if found || path != "" {
		t.Errorf("discovered = (%q, %v), want none", path, found)
	}
}

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "glyphflow.yaml")
	writeFile(t, path, `
paths:
  data_dir: /var/lib/glyphflow
capabilities:
  - env.os.read
  - net.outbound
settings:
  theme: dark
jobs:
  workers: 8
log_level: debug
`)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig() error: %v", err)
	}
	if cfg.Paths.DataDir != "/var/lib/glyphflow" {
		t.Errorf("DataDir = %q", cfg.Paths.DataDir)
	}
	set := cfg.CapabilitySet()
	if !set["net.outbound"] || !set["env.os.read"] {
		t.Errorf("CapabilitySet() = %v", set)
	}
	if cfg.Settings["theme"] != "dark" {
		t.Errorf("Settings = %v", cfg.Settings)
	}
	if cfg.Jobs.Workers != 8 {
		t.Errorf("Jobs.Workers = %d, want 8", cfg.Jobs.Workers)
	}
	// Unset fields keep defaults.
	if cfg.Jobs.QueueDepth != 64 {
		t.Errorf("Jobs.QueueDepth = %d, want default 64", cfg.Jobs.QueueDepth)
	}
	if cfg.TriggerQueueDepth != 256 {
		t.Errorf("TriggerQueueDepth = %d, want default 256", cfg.TriggerQueueDepth)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel = %q, want debug", cfg.LogLevel)
	}
}

func TestLoadConfigMalformed(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.yaml")
	writeFile(t, path, "paths: [not a map\n")
	if _, err := LoadConfig(path); err == nil {
		t.Error("malformed config did not error")
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.Jobs.Workers <= 0 || cfg.TriggerQueueDepth <= 0 {
		t.Errorf("DefaultConfig() has zero pool sizes: %+v", cfg)
	}
	if cfg.CapabilitySet()["env.os.write"] {
		t.Error("os env writes granted by default")
	}
}
