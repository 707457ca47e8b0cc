package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefaultConfigValidates(t *testing.T) {
	cfg := Default()
	if err := cfg.normalize(); err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}
}

func TestLoadParsesAndExpands(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := `
[paths]
data_dir = "` + dir + `/data"
staging_dir = "` + dir + `/staging"

[queue]
workers = 4
max_attempts = 7
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, resolved, exists, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !exists {
		t.Fatal("expected config file to be found")
	}
	if resolved != path {
		t.Fatalf("expected resolved path %q, got %q", path, resolved)
	}
	if cfg.Queue.Workers != 4 {
		t.Fatalf("expected workers=4, got %d", cfg.Queue.Workers)
	}
	if cfg.Queue.MaxAttempts != 7 {
		t.Fatalf("expected max_attempts=7, got %d", cfg.Queue.MaxAttempts)
	}
	// Unset sections keep defaults.
	if cfg.Queue.PollInterval != defaultPollInterval {
		t.Fatalf("expected default poll interval, got %d", cfg.Queue.PollInterval)
	}
	if !filepath.IsAbs(cfg.Paths.DataDir) {
		t.Fatalf("expected absolute data dir, got %q", cfg.Paths.DataDir)
	}
}

func TestLoadRejectsInvalidQueueSettings(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := `
[queue]
workers = 0
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	if _, _, _, err := Load(path); err == nil {
		t.Fatal("expected validation error for workers=0")
	}
}

func TestLoadRejectsBackoffCapBelowBase(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := `
[queue]
retry_backoff = 60
retry_backoff_cap = 30
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	_, _, _, err := Load(path)
	if err == nil || !strings.Contains(err.Error(), "retry_backoff_cap") {
		t.Fatalf("expected backoff cap error, got %v", err)
	}
}

func TestExpandPathHome(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skipf("no home dir: %v", err)
	}
	got, err := ExpandPath("~/darkroom")
	if err != nil {
		t.Fatalf("ExpandPath: %v", err)
	}
	if got != filepath.Join(home, "darkroom") {
		t.Fatalf("expected %q, got %q", filepath.Join(home, "darkroom"), got)
	}
}

func TestCreateSampleWritesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "config.toml")
	if err := CreateSample(path); err != nil {
		t.Fatalf("CreateSample: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read sample: %v", err)
	}
	if !strings.Contains(string(data), "[queue]") {
		t.Fatal("sample config missing [queue] section")
	}
}

func TestDatabaseAndLockPaths(t *testing.T) {
	cfg := Default()
	cfg.Paths.DataDir = "/tmp/darkroom-test"
	if cfg.DatabasePath() != "/tmp/darkroom-test/archive.db" {
		t.Fatalf("unexpected database path %q", cfg.DatabasePath())
	}
	if cfg.LockPath() != "/tmp/darkroom-test/darkroomd.lock" {
		t.Fatalf("unexpected lock path %q", cfg.LockPath())
	}
}
