// Package config provides configuration management for taskflow.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root of the configuration tree. Keys use the mapstructure
// names, so "server.http.read_timeout" in YAML is
// TASKFLOW_SERVER__HTTP__READ_TIMEOUT in the environment.
type Config struct {
	App     AppConfig     `mapstructure:"app" validate:"required"`
	Server  ServerConfig  `mapstructure:"server" validate:"required"`
	Log     LogConfig     `mapstructure:"log" validate:"required"`
	Engine  EngineConfig  `mapstructure:"engine"`
	Storage StorageConfig `mapstructure:"storage"`
	Events  EventsConfig  `mapstructure:"events"`
	Metrics MetricsConfig `mapstructure:"metrics"`
	Tracing TracingConfig `mapstructure:"tracing"`
}

type AppConfig struct {
	Name        string `mapstructure:"name" validate:"required"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment" validate:"env"` // development, staging or production
	Debug       bool   `mapstructure:"debug"`                      // forces debug logging
}

type ServerConfig struct {
	Host      string          `mapstructure:"host" validate:"host"`
	Port      int             `mapstructure:"port" validate:"required,min=1,max=65535"`
	HTTP      HTTPConfig      `mapstructure:"http"`
	CORS      CORSConfig      `mapstructure:"cors"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
}

// HTTPConfig maps onto http.Server. RequestTimeout is applied by the
// timeout middleware to every route except the websocket stream.
type HTTPConfig struct {
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	RequestTimeout  time.Duration `mapstructure:"request_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	MaxHeaderBytes  int           `mapstructure:"max_header_bytes" validate:"min=0"`
}

// CORSConfig lists what cross-origin callers may do. "*" in AllowedOrigins
// accepts any origin.
type CORSConfig struct {
	Enabled          bool     `mapstructure:"enabled"`
	AllowedOrigins   []string `mapstructure:"allowed_origins"`
	AllowedMethods   []string `mapstructure:"allowed_methods"`
	AllowedHeaders   []string `mapstructure:"allowed_headers"`
	AllowCredentials bool     `mapstructure:"allow_credentials"`
	MaxAge           int      `mapstructure:"max_age" validate:"min=0"` // seconds
}

// RateLimitConfig holds token bucket settings applied per client address.
type RateLimitConfig struct {
	Enabled           bool    `mapstructure:"enabled"`
	RequestsPerSecond float64 `mapstructure:"requests_per_second" validate:"gte=0"`
	Burst             int     `mapstructure:"burst" validate:"min=0"`
}

type LogConfig struct {
	Level  string `mapstructure:"level" validate:"oneof=debug info warn error"`
	Format string `mapstructure:"format" validate:"oneof=json text"`
	Output string `mapstructure:"output"` // stdout, stderr, discard or a file path
}

// EngineConfig holds workflow and validation engine settings.
type EngineConfig struct {
	// EnableAutoFix lets the validation engine apply auto_fix actions. It
	// can be flipped at runtime by a config reload.
	EnableAutoFix bool `mapstructure:"enable_auto_fix"`

	// StatusField is the dot-path of the entity's current status id.
	StatusField string `mapstructure:"status_field" validate:"required"`

	// Definitions are doublestar globs of YAML definition files loaded at
	// startup.
	Definitions []string `mapstructure:"definitions" validate:"dive,glob"`

	SeedDefaults bool `mapstructure:"seed_defaults"`
}

type StorageConfig struct {
	Type   string       `mapstructure:"type" validate:"oneof=memory badger redis"`
	Badger BadgerConfig `mapstructure:"badger"`
	Redis  RedisConfig  `mapstructure:"redis"`
}

// BadgerConfig is passed through to badger.Options. Path is required when
// storage.type is badger; zero sizes keep badger's defaults.
type BadgerConfig struct {
	Path              string `mapstructure:"path"`
	SyncWrites        bool   `mapstructure:"sync_writes"`
	ValueLogFileSize  int64  `mapstructure:"value_log_file_size" validate:"min=0"`
	NumVersionsToKeep int    `mapstructure:"num_versions_to_keep" validate:"min=0"`
}

// RedisConfig is shared by the redis storage backend and the redis event
// transport.
type RedisConfig struct {
	Address   string `mapstructure:"address"`
	Password  string `mapstructure:"password"`
	DB        int    `mapstructure:"db" validate:"min=0"`
	KeyPrefix string `mapstructure:"key_prefix"`
}

// EventsConfig selects the transport lifecycle events are published on.
// The in-process bus always receives a copy for websocket subscribers.
type EventsConfig struct {
	Type   string           `mapstructure:"type" validate:"oneof=memory redis nats"`
	NodeID string           `mapstructure:"node_id" validate:"required"` // stamped on every envelope
	NATS   NATSConfig       `mapstructure:"nats"`
	Retry  EventRetryConfig `mapstructure:"retry"`

	QueueSize int `mapstructure:"queue_size" validate:"min=0"` // events waiting for the publisher; 0 uses 1024
}

type NATSConfig struct {
	URL  string `mapstructure:"url"`
	Name string `mapstructure:"name"` // client connection name
}

type EventRetryConfig struct {
	MaxRetries     int           `mapstructure:"max_retries" validate:"min=0"`
	InitialBackoff time.Duration `mapstructure:"initial_backoff"`
	MaxBackoff     time.Duration `mapstructure:"max_backoff"`
}

// MetricsConfig configures the standalone Prometheus listener.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
	Port    int    `mapstructure:"port" validate:"min=1,max=65535"`
}

// TracingConfig configures OTLP span export. Sampler defaults to parent
// based with SampleRate as the root ratio.
type TracingConfig struct {
	Enabled    bool              `mapstructure:"enabled"`
	Exporter   string            `mapstructure:"exporter" validate:"omitempty,oneof=otlpgrpc"`
	Endpoint   string            `mapstructure:"endpoint"`
	Headers    map[string]string `mapstructure:"headers"`
	Timeout    time.Duration     `mapstructure:"timeout"` // per export
	Sampler    string            `mapstructure:"sampler" validate:"omitempty,oneof=always_on always_off traceidratio parentbased_traceidratio"`
	SampleRate float64           `mapstructure:"sample_rate" validate:"min=0,max=1"`
}

// Validate runs the struct tags, then the cross-field checks.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}
	return c.validateDependencies()
}

// validateDependencies checks settings that only matter once a feature is selected.
func (c *Config) validateDependencies() error {
	var errs ValidationErrors
	if c.Storage.Type == "badger" && strings.TrimSpace(c.Storage.Badger.Path) == "" {
		errs = append(errs, ConfigError{Field: "storage.badger.path", Message: "required when storage.type is badger", Value: c.Storage.Badger.Path})
	}
	if (c.Storage.Type == "redis" || c.Events.Type == "redis") && strings.TrimSpace(c.Storage.Redis.Address) == "" {
		errs = append(errs, ConfigError{Field: "storage.redis.address", Message: "required when redis is selected", Value: c.Storage.Redis.Address})
	}
	if c.Events.Type == "nats" && strings.TrimSpace(c.Events.NATS.URL) == "" {
		errs = append(errs, ConfigError{Field: "events.nats.url", Message: "required when events.type is nats", Value: c.Events.NATS.URL})
	}
	if c.Tracing.Enabled {
		if strings.TrimSpace(c.Tracing.Endpoint) == "" {
			errs = append(errs, ConfigError{Field: "tracing.endpoint", Message: "required when tracing is enabled", Value: c.Tracing.Endpoint})
		}
		if c.Tracing.Timeout <= 0 {
			errs = append(errs, ConfigError{Field: "tracing.timeout", Message: "must be positive when tracing is enabled", Value: c.Tracing.Timeout})
		}
	}
	if c.Server.RateLimit.Enabled && c.Server.RateLimit.RequestsPerSecond <= 0 {
		errs = append(errs, ConfigError{Field: "server.rate_limit.requests_per_second", Message: "must be positive when rate limiting is enabled", Value: c.Server.RateLimit.RequestsPerSecond})
	}
	if len(errs) > 0 {
		return errs
	}
	return nil
}

// String summarizes the configuration for logs. Secrets are left out.
func (c *Config) String() string {
	return fmt.Sprintf("Config{App: %s, Server: :%d, Env: %s, Storage: %s, Events: %s}",
		c.App.Name, c.Server.Port, c.App.Environment, c.Storage.Type, c.Events.Type)
}
