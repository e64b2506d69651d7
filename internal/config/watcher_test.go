package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/MrWong99/voxpulse/internal/config"
)

const watcherValidYAML = `
server:
  log_level: info
dashboard:
  simulate_delay: 2s
`

const watcherUpdatedYAML = `
server:
  log_level: debug
dashboard:
  simulate_delay: 1s
`

const watcherInvalidYAML = `
server:
  log_level: bananas
`

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write file %q: %v", path, err)
	}
}

func noEnv(string) string { return "" }

type change struct{ old, new *config.Config }

func newTestWatcher(t *testing.T, content string) (string, *config.Watcher, chan change) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	writeFile(t, path, content)

	changes := make(chan change, 4)
	w, err := config.NewWatcher(path, func(old, new *config.Config) {
		changes <- change{old, new}
	}, config.WithDebounce(20*time.Millisecond), config.WithGetenv(noEnv))
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	t.Cleanup(w.Stop)
	return path, w, changes
}

func TestWatcher_InitialLoad(t *testing.T) {
	t.Parallel()
	_, w, _ := newTestWatcher(t, watcherValidYAML)
	cfg := w.Current()
	if cfg == nil || cfg.Server.LogLevel != config.LogInfo {
		t.Fatalf("Current() = %+v", cfg)
	}
}

func TestWatcher_InitialLoadInvalid(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "config.yaml")
	writeFile(t, path, watcherInvalidYAML)
	if _, err := config.NewWatcher(path, nil); err == nil {
		t.Fatal("expected error for invalid initial config")
	}
}

func TestWatcher_DetectsChange(t *testing.T) {
	t.Parallel()
	path, w, changes := newTestWatcher(t, watcherValidYAML)

	writeFile(t, path, watcherUpdatedYAML)

	select {
	case c := <-changes:
		if c.old.Server.LogLevel != config.LogInfo || c.new.Server.LogLevel != config.LogDebug {
			t.Errorf("change = %q -> %q", c.old.Server.LogLevel, c.new.Server.LogLevel)
		}
		d := config.Diff(c.old, c.new)
		if !d.SimulateDelayChanged || d.NewSimulateDelay != time.Second {
			t.Errorf("diff = %+v", d)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for reload")
	}
	if w.Current().Server.LogLevel != config.LogDebug {
		t.Error("Current() not updated")
	}
}

func TestWatcher_KeepsConfigOnInvalidChange(t *testing.T) {
	t.Parallel()
	path, w, changes := newTestWatcher(t, watcherValidYAML)

	writeFile(t, path, watcherInvalidYAML)

	select {
	case <-changes:
		t.Fatal("onChange called for an invalid config")
	case <-time.After(300 * time.Millisecond):
	}
	if w.Current().Server.LogLevel != config.LogInfo {
		t.Error("invalid config replaced the current one")
	}
}

func TestWatcher_IgnoresOtherFiles(t *testing.T) {
	t.Parallel()
	path, _, changes := newTestWatcher(t, watcherValidYAML)

	writeFile(t, filepath.Join(filepath.Dir(path), "other.yaml"), watcherUpdatedYAML)

	select {
	case <-changes:
		t.Fatal("onChange called for an unrelated file")
	case <-time.After(200 * time.Millisecond):
	}
}

func TestWatcher_StopIsIdempotent(t *testing.T) {
	t.Parallel()
	_, w, _ := newTestWatcher(t, watcherValidYAML)
	w.Stop()
	w.Stop()
}
