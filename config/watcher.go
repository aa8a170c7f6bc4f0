package config

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/goclaw/taskflow/pkg/logger"
)

const defaultDebounce = 500 * time.Millisecond

// Watcher reloads the config file when it changes and hands every valid
// result to the registered callbacks. It watches the file's directory so
// editors that save by renaming over the file are picked up too.
type Watcher struct {
	mu        sync.Mutex
	fs        *fsnotify.Watcher
	loader    *Loader
	path      string
	overrides map[string]interface{}
	callbacks []func(*Config)
	debounce  time.Duration
	log       logger.Logger
	running   bool

	stop     chan struct{}
	stopOnce sync.Once
}

// WatcherOption is a functional option for Watcher configuration.
type WatcherOption func(*Watcher)

// WithDebounce sets how long the file must stay quiet before a reload.
func WithDebounce(d time.Duration) WatcherOption {
	return func(w *Watcher) {
		w.debounce = d
	}
}

// WithOverrides reapplies the given overrides on every reload, so command
// line flags keep winning over the file.
func WithOverrides(overrides map[string]interface{}) WatcherOption {
	return func(w *Watcher) {
		w.overrides = overrides
	}
}

// WithWatcherLogger sets the logger for reload failures.
func WithWatcherLogger(log logger.Logger) WatcherOption {
	return func(w *Watcher) {
		w.log = log
	}
}

// NewWatcher creates a watcher for configPath.
func NewWatcher(configPath string, loader *Loader, opts ...WatcherOption) (*Watcher, error) {
	if configPath == "" {
		return nil, errors.New("config path is required for watching")
	}
	abs, err := filepath.Abs(configPath)
	if err != nil {
		return nil, fmt.Errorf("resolve config path: %w", err)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}

	w := &Watcher{
		fs:       fsw,
		loader:   loader,
		path:     abs,
		debounce: defaultDebounce,
		log:      logger.Nop(),
		stop:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.loader == nil {
		w.loader = NewLoader()
	}
	return w, nil
}

// Watch blocks until ctx is cancelled or Stop is called. Reloads that fail
// to parse or validate are logged and the previous config stays in effect.
func (w *Watcher) Watch(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return errors.New("watcher is already running")
	}
	if err := w.fs.Add(filepath.Dir(w.path)); err != nil {
		w.mu.Unlock()
		return fmt.Errorf("failed to watch config file %s: %w", w.path, err)
	}
	w.running = true
	w.mu.Unlock()
	defer func() {
		w.mu.Lock()
		w.running = false
		w.mu.Unlock()
	}()

	timer := time.NewTimer(w.debounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case <-w.stop:
			return nil

		case event, ok := <-w.fs.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			timer.Reset(w.debounce)

		case <-timer.C:
			w.reload()

		case err, ok := <-w.fs.Errors:
			if !ok {
				return nil
			}
			w.log.Warn("config watcher error", "error", err, "path", w.path)
		}
	}
}

func (w *Watcher) reload() {
	cfg, err := w.loader.Load(w.path, w.overrides)
	if err != nil {
		w.log.Warn("config reload failed, keeping previous configuration", "error", err, "path", w.path)
		return
	}

	w.mu.Lock()
	callbacks := append(([]func(*Config))(nil), w.callbacks...)
	w.mu.Unlock()

	for _, cb := range callbacks {
		w.notify(cb, cfg)
	}
}

func (w *Watcher) notify(cb func(*Config), cfg *Config) {
	defer func() {
		if r := recover(); r != nil {
			w.log.Error("config callback panic", "panic", r)
		}
	}()
	cb(cfg)
}

// OnChange registers a callback. Callbacks run one after another on the
// watching goroutine, in registration order.
func (w *Watcher) OnChange(callback func(*Config)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.callbacks = append(w.callbacks, callback)
}

// Stop ends Watch and releases the fsnotify handle. It is safe to call more
// than once.
func (w *Watcher) Stop() error {
	var err error
	w.stopOnce.Do(func() {
		close(w.stop)
		err = w.fs.Close()
	})
	return err
}

// IsRunning reports whether Watch is active.
func (w *Watcher) IsRunning() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}

// ConfigPath returns the absolute path being watched.
func (w *Watcher) ConfigPath() string {
	return w.path
}

// Reloadable is the part of Config that a running server can apply without
// a restart.
type Reloadable struct {
	LogLevel      string
	EnableAutoFix bool
}

// ReloadableFrom extracts the reloadable settings of cfg.
func ReloadableFrom(cfg *Config) Reloadable {
	return Reloadable{
		LogLevel:      cfg.Log.Level,
		EnableAutoFix: cfg.Engine.EnableAutoFix,
	}
}

// RestartRequired lists the keys whose change between old and next only
// takes effect after a restart.
func RestartRequired(old, next *Config) []string {
	var keys []string
	check := func(key string, changed bool) {
		if changed {
			keys = append(keys, key)
		}
	}
	check("log.format", old.Log.Format != next.Log.Format)
	check("log.output", old.Log.Output != next.Log.Output)
	check("server.host", old.Server.Host != next.Server.Host)
	check("server.port", old.Server.Port != next.Server.Port)
	check("engine.status_field", old.Engine.StatusField != next.Engine.StatusField)
	check("storage.type", old.Storage.Type != next.Storage.Type)
	check("events.type", old.Events.Type != next.Events.Type)
	check("events.queue_size", old.Events.QueueSize != next.Events.QueueSize)
	check("metrics.enabled", old.Metrics.Enabled != next.Metrics.Enabled)
	check("metrics.port", old.Metrics.Port != next.Metrics.Port)
	check("tracing.enabled", old.Tracing.Enabled != next.Tracing.Enabled)
	return keys
}
