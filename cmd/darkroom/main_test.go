package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/pelletier/go-toml/v2"

	"darkroom/internal/config"
	"darkroom/internal/daemon"
	"darkroom/internal/logging"
	"darkroom/internal/store"
	"darkroom/internal/testsupport"
)

type cliTestEnv struct {
	cfg        *config.Config
	store      *store.Store
	configPath string
}

func setupCLIEnv(t *testing.T) *cliTestEnv {
	t.Helper()

	cfg := testsupport.NewConfig(t)
	configPath := filepath.Join(testsupport.BaseDir(cfg), "config.toml")
	writeTestConfig(t, configPath, cfg)

	st := testsupport.MustOpenStore(t, cfg)
	return &cliTestEnv{cfg: cfg, store: st, configPath: configPath}
}

func writeTestConfig(t *testing.T, path string, cfg *config.Config) {
	t.Helper()
	encoded, err := toml.Marshal(cfg)
	if err != nil {
		t.Fatalf("marshal config: %v", err)
	}
	if err := os.WriteFile(path, encoded, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func runCLI(t *testing.T, configPath string, args ...string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	flags := []string{}
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func TestCLIQueueCommands(t *testing.T) {
	env := setupCLIEnv(t)
	ctx := context.Background()

	// A terminally failed job for retry/clear to act on.
	if _, err := env.store.EnqueueArchiveJob(ctx, "beta", "hash-beta", store.EnqueueOptions{MaxAttempts: 1}); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	job, err := env.store.LeaseJob(ctx, "cli-test", 5*time.Minute)
	if err != nil || job == nil || job.GalleryID != "beta" {
		t.Fatalf("lease: %v %+v", err, job)
	}
	if _, err := env.store.FailJob(ctx, job.ID, "cli-test", "boom", time.Second, time.Minute); err != nil {
		t.Fatalf("fail job: %v", err)
	}

	testsupport.Enqueue(t, env.store, "alpha", "hash-alpha")

	out, _, err := runCLI(t, env.configPath, "queue", "list")
	if err != nil {
		t.Fatalf("queue list: %v", err)
	}
	if !strings.Contains(out, "alpha") || !strings.Contains(out, "beta") {
		t.Fatalf("queue list missing jobs: %q", out)
	}

	out, _, err = runCLI(t, env.configPath, "queue", "list", "--status", "failed")
	if err != nil {
		t.Fatalf("queue list --status failed: %v", err)
	}
	if strings.Contains(out, "alpha") || !strings.Contains(out, "beta") {
		t.Fatalf("status filter not applied: %q", out)
	}

	out, _, err = runCLI(t, env.configPath, "queue", "retry")
	if err != nil {
		t.Fatalf("queue retry: %v", err)
	}
	if !strings.Contains(out, "Reset 1 failed job(s)") {
		t.Fatalf("unexpected retry output: %q", out)
	}

	out, _, err = runCLI(t, env.configPath, "queue", "clear", "--all")
	if err != nil {
		t.Fatalf("queue clear --all: %v", err)
	}
	if !strings.Contains(out, "Removed") {
		t.Fatalf("unexpected clear output: %q", out)
	}

	out, _, err = runCLI(t, env.configPath, "queue", "list")
	if err != nil {
		t.Fatalf("queue list after clear: %v", err)
	}
	if !strings.Contains(out, "Queue is empty") {
		t.Fatalf("expected empty queue, got: %q", out)
	}

	_, _, err = runCLI(t, env.configPath, "queue", "clear")
	if err == nil {
		t.Fatal("queue clear without a scope flag should fail")
	}

	_, _, err = runCLI(t, env.configPath, "queue", "list", "--status", "bogus")
	if err == nil || !strings.Contains(err.Error(), `invalid status "bogus"`) {
		t.Fatalf("expected invalid status error, got %v", err)
	}
}

func TestCLIQueueHealth(t *testing.T) {
	env := setupCLIEnv(t)

	out, _, err := runCLI(t, env.configPath, "queue", "health")
	if err != nil {
		t.Fatalf("queue health: %v", err)
	}
	if !strings.Contains(out, "Integrity: ok") {
		t.Fatalf("unexpected health output: %q", out)
	}
}

func TestCLIStatusDaemonDown(t *testing.T) {
	env := setupCLIEnv(t)

	out, _, err := runCLI(t, env.configPath, "status")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if !strings.Contains(out, "Daemon: not running") {
		t.Fatalf("expected offline status, got: %q", out)
	}
}

func TestCLIRequestAgainstDaemon(t *testing.T) {
	env := setupCLIEnv(t)

	testsupport.SeedGallery(t, env.cfg.Library.ImagesDir, "g1", "a.jpg")

	st, err := store.OpenPath(env.cfg.DatabasePath())
	if err != nil {
		t.Fatalf("open daemon store: %v", err)
	}
	d, err := daemon.New(env.cfg, st, logging.NewNop())
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	t.Cleanup(func() {
		_ = d.Close()
	})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := d.Start(ctx); err != nil {
		t.Fatalf("start daemon: %v", err)
	}
	defer d.Stop()

	out, _, err := runCLI(t, env.configPath, "--api", d.APIAddr(), "request", "g1", "--notify", "ops@example.com")
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if !strings.Contains(out, "Queued job") {
		t.Fatalf("unexpected request output: %q", out)
	}

	out, _, err = runCLI(t, env.configPath, "--api", d.APIAddr(), "show", "archives")
	if err != nil {
		t.Fatalf("show archives: %v", err)
	}
	if !strings.Contains(out, "g1") {
		t.Fatalf("archive listing missing gallery: %q", out)
	}

	out, _, err = runCLI(t, env.configPath, "--api", d.APIAddr(), "--json", "show", "job", "1")
	if err != nil {
		t.Fatalf("show job: %v", err)
	}
	if !strings.Contains(out, `"gallery_id": "g1"`) {
		t.Fatalf("unexpected job JSON: %q", out)
	}
}

func TestCLIConfigInit(t *testing.T) {
	base := t.TempDir()
	target := filepath.Join(base, "darkroom.toml")

	out, _, err := runCLI(t, "", "config", "init", "--path", target)
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	if !strings.Contains(out, "Wrote sample configuration") {
		t.Fatalf("unexpected init output: %q", out)
	}
	if _, err := os.Stat(target); err != nil {
		t.Fatalf("sample config missing: %v", err)
	}

	_, _, err = runCLI(t, "", "config", "init", "--path", target)
	if err == nil {
		t.Fatal("second init without --overwrite should fail")
	}

	out, _, err = runCLI(t, "", "config", "show", "--path", target)
	if err != nil {
		t.Fatalf("config show: %v", err)
	}
	if !strings.Contains(out, "[queue]") {
		t.Fatalf("unexpected config show output: %q", out)
	}
}
