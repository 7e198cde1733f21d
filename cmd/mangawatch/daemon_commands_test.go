package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"mangawatch/internal/ipc"
	"mangawatch/internal/testsupport"
	"mangawatch/internal/watchlist"
)

func TestStatusFromDaemon(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := env.run(t, "status")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	requireContains(t, out, "== Daemon ==")
	requireContains(t, out, "Tracked series")
	requireContains(t, out, env.cfg.Paths.WatchlistFile)

	out, _, err = env.run(t, "status", "--json")
	if err != nil {
		t.Fatalf("status --json: %v", err)
	}
	var status ipc.StatusResponse
	if err := json.Unmarshal([]byte(out), &status); err != nil {
		t.Fatalf("decode status: %v\n%s", err, out)
	}
	if status.PID != os.Getpid() {
		t.Fatalf("expected pid %d, got %d", os.Getpid(), status.PID)
	}
}

func TestStatusWithoutDaemonReadsWatchlist(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	t.Setenv("HOME", testsupport.BaseDir(cfg))
	testsupport.SeedWatchlist(t, cfg, map[string]watchlist.Series{
		"s-1": testsupport.Series("Solo Leveling", "10"),
	})
	configPath := filepath.Join(testsupport.BaseDir(cfg), "config.toml")
	writeTestConfig(t, configPath, cfg)

	out, _, err := runCLI(t, []string{"status"}, "", configPath)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	requireContains(t, out, "Not running")
	requireContains(t, out, "[INFO] 1")
}

func TestStopWithoutDaemon(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	t.Setenv("HOME", testsupport.BaseDir(cfg))
	configPath := filepath.Join(testsupport.BaseDir(cfg), "config.toml")
	writeTestConfig(t, configPath, cfg)

	out, _, err := runCLI(t, []string{"stop"}, "", configPath)
	if err != nil {
		t.Fatalf("stop: %v", err)
	}
	requireContains(t, out, "Daemon is not running")
}

func TestDialErrorSuggestsStart(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	t.Setenv("HOME", testsupport.BaseDir(cfg))
	configPath := filepath.Join(testsupport.BaseDir(cfg), "config.toml")
	writeTestConfig(t, configPath, cfg)

	_, _, err := runCLI(t, []string{"list"}, filepath.Join(cfg.Paths.StateDir, "missing.sock"), configPath)
	if err == nil {
		t.Fatal("expected list to fail without a daemon")
	}
	requireContains(t, err.Error(), "mangawatch start")
}

func TestLogsCommand(t *testing.T) {
	env := setupCLITestEnv(t)
	if err := os.MkdirAll(filepath.Dir(env.daemon.LogPath()), 0o755); err != nil {
		t.Fatalf("mkdir log dir: %v", err)
	}
	if err := os.WriteFile(env.daemon.LogPath(), []byte("one\ntwo cycle\nthree\n"), 0o644); err != nil {
		t.Fatalf("write log: %v", err)
	}

	out, _, err := env.run(t, "logs", "--lines", "2")
	if err != nil {
		t.Fatalf("logs: %v", err)
	}
	if out != "two cycle\nthree\n" {
		t.Fatalf("unexpected logs output %q", out)
	}

	out, _, err = env.run(t, "logs", "--match", "CYCLE")
	if err != nil {
		t.Fatalf("logs --match: %v", err)
	}
	if out != "two cycle\n" {
		t.Fatalf("unexpected filtered output %q", out)
	}
}

func TestTestNotifyWithoutTopic(t *testing.T) {
	env := setupCLITestEnv(t)
	out, _, err := env.run(t, "test-notify")
	if err != nil {
		t.Fatalf("test-notify: %v", err)
	}
	requireContains(t, out, "not configured")
}
