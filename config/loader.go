package config

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"sync"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const (
	// EnvPrefix is the prefix for environment variables.
	EnvPrefix = "TASKFLOW_"
	// Delimiter is the key delimiter for nested config.
	Delimiter = "."
)

// DefaultSearchPaths are tried in order when no config file is given.
var DefaultSearchPaths = []string{
	"taskflow.yaml",
	"taskflow.yml",
	"taskflow.json",
	"config/taskflow.yaml",
	"/etc/taskflow/taskflow.yaml",
}

// Loader layers defaults, a config file, environment variables and explicit
// overrides, lowest priority first. Every Load starts from a clean state, so
// a key removed from the file falls back to its default on the next load.
type Loader struct {
	mu          sync.RWMutex
	k           *koanf.Koanf
	file        string
	envPrefix   string
	searchPaths []string
}

// LoaderOption configures a Loader.
type LoaderOption func(*Loader)

// WithEnvPrefix changes the environment variable prefix.
func WithEnvPrefix(prefix string) LoaderOption {
	return func(l *Loader) {
		l.envPrefix = prefix
	}
}

// WithSearchPaths replaces DefaultSearchPaths. No paths disables discovery.
func WithSearchPaths(paths ...string) LoaderOption {
	return func(l *Loader) {
		l.searchPaths = paths
	}
}

// NewLoader creates a new configuration loader.
func NewLoader(opts ...LoaderOption) *Loader {
	l := &Loader{
		k:           koanf.New(Delimiter),
		envPrefix:   EnvPrefix,
		searchPaths: DefaultSearchPaths,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load reads configPath (or the first search path that exists when it is
// empty), applies env vars and overrides, and validates the result.
func (l *Loader) Load(configPath string, overrides map[string]interface{}) (*Config, error) {
	k := koanf.New(Delimiter)

	defaults := structToMap(DefaultConfig(), "")
	if err := k.Load(confmap.Provider(defaults, Delimiter), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	path := configPath
	if path == "" {
		path = l.discover()
	} else if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("config file not found: %s", path)
	}
	if path != "" {
		parser, err := parserFor(path)
		if err != nil {
			return nil, err
		}
		if err := k.Load(file.Provider(path), parser); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(l.envPrefix, Delimiter, l.envKey), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	if len(overrides) > 0 {
		if err := k.Load(confmap.Provider(overrides, Delimiter), nil); err != nil {
			return nil, fmt.Errorf("failed to apply overrides: %w", err)
		}
	}

	// A section given as a nested map replaces the defaults under it.
	for key, value := range defaults {
		if !k.Exists(key) {
			if err := k.Set(key, value); err != nil {
				return nil, fmt.Errorf("failed to set default for %s: %w", key, err)
			}
		}
	}

	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "mapstructure"}); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := ValidateWithDetails(&cfg); err != nil {
		return nil, err
	}

	l.mu.Lock()
	l.k = k
	l.file = path
	l.mu.Unlock()
	return &cfg, nil
}

// File returns the config file used by the last successful Load, or "" when
// none was found.
func (l *Loader) File() string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.file
}

// Get returns the raw value of a key from the last successful Load.
func (l *Loader) Get(key string) interface{} {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.k.Get(key)
}

// String returns a string value from the last successful Load.
func (l *Loader) String(key string) string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.k.String(key)
}

// Keys lists every key of the last successful Load.
func (l *Loader) Keys() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.k.Keys()
}

func (l *Loader) discover() string {
	for _, path := range l.searchPaths {
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			return path
		}
	}
	return ""
}

func parserFor(path string) (koanf.Parser, error) {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		return yaml.Parser(), nil
	case ".json":
		return json.Parser(), nil
	default:
		return nil, fmt.Errorf("unsupported config file format: %s", ext)
	}
}

func (l *Loader) envKey(s string) string {
	return envKeyWithPrefix(s, l.envPrefix)
}

// envKey maps an environment variable name to a config key. A double
// underscore separates every nesting level; without one, only the first
// underscore does, so section keys may themselves contain underscores.
//
//	TASKFLOW_LOG_LEVEL                    -> log.level
//	TASKFLOW_ENGINE_ENABLE_AUTO_FIX       -> engine.enable_auto_fix
//	TASKFLOW_SERVER__RATE_LIMIT__ENABLED  -> server.rate_limit.enabled
func envKey(s string) string {
	return envKeyWithPrefix(s, EnvPrefix)
}

func envKeyWithPrefix(s, prefix string) string {
	key := strings.ToLower(strings.TrimPrefix(s, prefix))
	if strings.Contains(key, "__") {
		return strings.ReplaceAll(key, "__", Delimiter)
	}
	return strings.Replace(key, "_", Delimiter, 1)
}

// structToMap flattens a struct into dot-separated keys using its
// mapstructure tags. Empty maps are skipped.
func structToMap(v interface{}, prefix string) map[string]interface{} {
	result := make(map[string]interface{})
	val := reflect.ValueOf(v)
	if val.Kind() == reflect.Ptr {
		val = val.Elem()
	}
	if val.Kind() != reflect.Struct {
		return result
	}

	typ := val.Type()
	for i := 0; i < val.NumField(); i++ {
		field := typ.Field(i)
		if !field.IsExported() {
			continue
		}
		key := field.Tag.Get("mapstructure")
		if key == "" || key == "-" {
			continue
		}
		if prefix != "" {
			key = prefix + Delimiter + key
		}

		fv := val.Field(i)
		switch fv.Kind() {
		case reflect.Ptr:
			if fv.IsNil() {
				continue
			}
			for k, v := range structToMap(fv.Elem().Interface(), key) {
				result[k] = v
			}
		case reflect.Struct:
			for k, v := range structToMap(fv.Interface(), key) {
				result[k] = v
			}
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
			result[key] = fv.Int()
		case reflect.Slice:
			items := make([]interface{}, fv.Len())
			for j := range items {
				items[j] = fv.Index(j).Interface()
			}
			result[key] = items
		case reflect.Map:
			if fv.Len() > 0 {
				result[key] = fv.Interface()
			}
		default:
			result[key] = fv.Interface()
		}
	}
	return result
}

// Load is a convenience wrapper around NewLoader().Load.
func Load(configPath string, overrides map[string]interface{}) (*Config, error) {
	return NewLoader().Load(configPath, overrides)
}
