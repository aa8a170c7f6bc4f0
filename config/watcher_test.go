package config

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// startWatcher writes content to a fresh config file and runs a watcher on
// it until the test ends. Every reloaded config is sent on the returned
// channel.
func startWatcher(t *testing.T, content string, opts ...WatcherOption) (string, *Watcher, <-chan *Config) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "taskflow.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	opts = append([]WatcherOption{WithDebounce(50 * time.Millisecond)}, opts...)
	w, err := NewWatcher(path, NewLoader(), opts...)
	require.NoError(t, err)

	reloaded := make(chan *Config, 16)
	w.OnChange(func(cfg *Config) { reloaded <- cfg })

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Watch(ctx) }()
	require.Eventually(t, w.IsRunning, time.Second, 10*time.Millisecond)

	t.Cleanup(func() {
		cancel()
		<-done
		_ = w.Stop()
	})
	return path, w, reloaded
}

func waitConfig(t *testing.T, ch <-chan *Config) *Config {
	t.Helper()
	select {
	case cfg := <-ch:
		return cfg
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for reload")
		return nil
	}
}

func TestNewWatcher(t *testing.T) {
	_, err := NewWatcher("", NewLoader())
	assert.Error(t, err)

	w, err := NewWatcher("taskflow.yaml", nil, WithDebounce(time.Second))
	require.NoError(t, err)
	defer w.Stop()

	assert.True(t, filepath.IsAbs(w.ConfigPath()))
	assert.Equal(t, "taskflow.yaml", filepath.Base(w.ConfigPath()))
	assert.Equal(t, time.Second, w.debounce)
	assert.NotNil(t, w.loader)
	assert.False(t, w.IsRunning())
}

func TestWatcher_ReloadsOnWrite(t *testing.T) {
	path, _, reloaded := startWatcher(t, "log:\n  level: info\n")

	require.NoError(t, os.WriteFile(path, []byte("log:\n  level: debug\nengine:\n  enable_auto_fix: true\n"), 0o644))

	cfg := waitConfig(t, reloaded)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.True(t, cfg.Engine.EnableAutoFix)
}

func TestWatcher_ReloadsOnRename(t *testing.T) {
	path, _, reloaded := startWatcher(t, "log:\n  level: info\n")

	tmp := filepath.Join(filepath.Dir(path), "taskflow.yaml.swp")
	require.NoError(t, os.WriteFile(tmp, []byte("log:\n  level: warn\n"), 0o644))
	require.NoError(t, os.Rename(tmp, path))

	cfg := waitConfig(t, reloaded)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestWatcher_IgnoresSiblingFiles(t *testing.T) {
	path, _, reloaded := startWatcher(t, "log:\n  level: info\n")

	other := filepath.Join(filepath.Dir(path), "other.yaml")
	require.NoError(t, os.WriteFile(other, []byte("log:\n  level: debug\n"), 0o644))

	select {
	case cfg := <-reloaded:
		t.Fatalf("unexpected reload: %+v", cfg.Log)
	case <-time.After(300 * time.Millisecond):
	}
}

func TestWatcher_Debounces(t *testing.T) {
	path, _, reloaded := startWatcher(t, "log:\n  level: info\n", WithDebounce(200*time.Millisecond))

	for _, level := range []string{"debug", "warn", "error"} {
		require.NoError(t, os.WriteFile(path, []byte("log:\n  level: "+level+"\n"), 0o644))
		time.Sleep(20 * time.Millisecond)
	}

	cfg := waitConfig(t, reloaded)
	assert.Equal(t, "error", cfg.Log.Level)

	select {
	case extra := <-reloaded:
		t.Fatalf("expected a single reload, got another with level %s", extra.Log.Level)
	case <-time.After(400 * time.Millisecond):
	}
}

func TestWatcher_InvalidConfigKeepsPrevious(t *testing.T) {
	path, _, reloaded := startWatcher(t, "log:\n  level: info\n")

	require.NoError(t, os.WriteFile(path, []byte("log:\n  level: loud\n"), 0o644))
	select {
	case cfg := <-reloaded:
		t.Fatalf("invalid config must not be delivered: %+v", cfg.Log)
	case <-time.After(300 * time.Millisecond):
	}

	require.NoError(t, os.WriteFile(path, []byte("log:\n  level: error\n"), 0o644))
	assert.Equal(t, "error", waitConfig(t, reloaded).Log.Level)
}

func TestWatcher_ReappliesOverrides(t *testing.T) {
	path, _, reloaded := startWatcher(t, "log:\n  level: info\n",
		WithOverrides(map[string]interface{}{"server.port": 9191}))

	require.NoError(t, os.WriteFile(path, []byte("server:\n  port: 7000\n"), 0o644))

	assert.Equal(t, 9191, waitConfig(t, reloaded).Server.Port)
}

func TestWatcher_CallbackPanicIsContained(t *testing.T) {
	path, w, reloaded := startWatcher(t, "log:\n  level: info\n")

	var mu sync.Mutex
	var order []string
	w.OnChange(func(*Config) {
		mu.Lock()
		order = append(order, "panicking")
		mu.Unlock()
		panic("boom")
	})
	w.OnChange(func(*Config) {
		mu.Lock()
		order = append(order, "after")
		mu.Unlock()
	})

	require.NoError(t, os.WriteFile(path, []byte("log:\n  level: debug\n"), 0o644))
	waitConfig(t, reloaded)

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(order) == 2
	}, time.Second, 10*time.Millisecond)
	assert.Equal(t, []string{"panicking", "after"}, order)
}

func TestWatcher_StopEndsWatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "taskflow.yaml")
	require.NoError(t, os.WriteFile(path, []byte("app:\n  name: x\n"), 0o644))

	w, err := NewWatcher(path, NewLoader())
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- w.Watch(context.Background()) }()
	require.Eventually(t, w.IsRunning, time.Second, 10*time.Millisecond)

	assert.Error(t, w.Watch(context.Background()), "second Watch must fail")

	require.NoError(t, w.Stop())
	require.NoError(t, w.Stop())
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Watch did not return after Stop")
	}
	assert.False(t, w.IsRunning())
}

func TestRestartRequired(t *testing.T) {
	old := DefaultConfig()
	next := DefaultConfig()
	assert.Empty(t, RestartRequired(old, next))

	next.Log.Level = "debug"
	next.Engine.EnableAutoFix = true
	assert.Empty(t, RestartRequired(old, next), "reloadable settings need no restart")
	assert.Equal(t, Reloadable{LogLevel: "debug", EnableAutoFix: true}, ReloadableFrom(next))

	next.Server.Port = 9000
	next.Storage.Type = "badger"
	assert.Equal(t, []string{"server.port", "storage.type"}, RestartRequired(old, next))

	assert.Equal(t, 1024, old.Events.QueueSize)
	next.Events.QueueSize = 16
	assert.Contains(t, RestartRequired(old, next), "events.queue_size")
}
