package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// ServerConfig holds the gRPC server's listen and concurrency settings.
// MaxConcurrentStreams is spec.md §5's MAX_CONCURRENCY.
type ServerConfig struct {
	NodeID               string        `yaml:"node_id"`
	Host                 string        `yaml:"host"`
	Port                 int           `yaml:"port"`
	MaxConcurrentStreams int           `yaml:"max_concurrent_streams"`
	ShutdownTimeout      time.Duration `yaml:"shutdown_timeout"`
}

// EngineConfig holds defaults for newly created tables.
type EngineConfig struct {
	DefaultStorageMode string `yaml:"default_storage_mode"`
	// CursorBatchSize is spec.md §4.9's BATCH_SIZE.
	CursorBatchSize int `yaml:"cursor_batch_size"`
	// IndexBackfillWorkers bounds the worker pool used to back-fill a
	// newly added index (C4).
	IndexBackfillWorkers int `yaml:"index_backfill_workers"`
}

// WriteAheadConfig holds settings for the optional durable-mode
// write-ahead log collaborator (see internal/persist).
type WriteAheadConfig struct {
	DataDir     string        `yaml:"data_dir"`
	SegmentSize int64         `yaml:"segment_size"`
	SyncWrites  bool          `yaml:"sync_writes"`
	BufferSize  int           `yaml:"buffer_size"`
	MaxAge      time.Duration `yaml:"max_age"`
}

// MetricsConfig holds metrics server configuration.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

// HealthConfig holds settings for the background health checker.
type HealthConfig struct {
	// MaxGoroutines flags a warning once runtime.NumGoroutine exceeds this
	// and a critical check at 4x this. setDefaults replaces an unset (zero)
	// value with 10000.
	MaxGoroutines int `yaml:"max_goroutines"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Config represents the complete configuration for the dialogtable server.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Engine     EngineConfig     `yaml:"engine"`
	WriteAhead WriteAheadConfig `yaml:"write_ahead"`
	Metrics    MetricsConfig    `yaml:"metrics"`
	Health     HealthConfig     `yaml:"health"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// LoadConfig loads configuration from a YAML file.
func LoadConfig(filePath string) (*Config, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	setDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults fills in unspecified configuration with production defaults.
func setDefaults(cfg *Config) {
	if cfg.Server.NodeID == "" {
		cfg.Server.NodeID = "dialogtable-0"
	}
	if cfg.Server.Host == "" {
		cfg.Server.Host = "0.0.0.0"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 9090
	}
	if cfg.Server.MaxConcurrentStreams == 0 {
		cfg.Server.MaxConcurrentStreams = 1000
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = 30 * time.Second
	}

	if cfg.Engine.DefaultStorageMode == "" {
		cfg.Engine.DefaultStorageMode = "IN_MEMORY"
	}
	if cfg.Engine.CursorBatchSize == 0 {
		cfg.Engine.CursorBatchSize = 1024
	}
	if cfg.Engine.IndexBackfillWorkers == 0 {
		cfg.Engine.IndexBackfillWorkers = 4
	}

	if cfg.WriteAhead.DataDir == "" {
		cfg.WriteAhead.DataDir = "/var/lib/dialogtable/wal"
	}
	if cfg.WriteAhead.SegmentSize == 0 {
		cfg.WriteAhead.SegmentSize = 64 * 1024 * 1024
	}
	if cfg.WriteAhead.BufferSize == 0 {
		cfg.WriteAhead.BufferSize = 4096
	}
	if cfg.WriteAhead.MaxAge == 0 {
		cfg.WriteAhead.MaxAge = 24 * time.Hour
	}

	if cfg.Metrics.Port == 0 {
		cfg.Metrics.Port = 9091
	}
	if cfg.Health.MaxGoroutines == 0 {
		cfg.Health.MaxGoroutines = 10000
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
}

// Validate checks the configuration for internal consistency.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535")
	}
	if c.Engine.CursorBatchSize < 1 {
		return fmt.Errorf("engine.cursor_batch_size must be positive")
	}
	switch c.Engine.DefaultStorageMode {
	case "IN_MEMORY", "DURABLE_RELAXED", "DURABLE":
	default:
		return fmt.Errorf("engine.default_storage_mode must be one of IN_MEMORY, DURABLE_RELAXED, DURABLE")
	}
	return nil
}
