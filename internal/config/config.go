// Package config defines the process-wide configuration surface for the
// sandbox daemon: per-sandbox resource caps, store budget, server binding,
// and the optional backing stores for the supplemented observability
// features (Postgres audit log, Redis event fan-out, S3 init-script
// registry).
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
)

// SandboxConfig bounds a single sandbox context.
type SandboxConfig struct {
	MaxBytes         uint64 `json:"max_bytes"`
	MaxTableElements uint32 `json:"max_table_elements"`
	FuelPerInit      uint64 `json:"fuel_per_init"`
	FuelPerCall      uint64 `json:"fuel_per_call"`
}

// StoreConfig bounds the process-wide sandbox store.
type StoreConfig struct {
	MemoryBudgetBytes uint64 `json:"memory_budget_bytes"`
}

// ServerConfig configures the HTTP collaborator's listener.
type ServerConfig struct {
	Port           int `json:"port"`
	WorkerPoolSize int `json:"worker_pool_size"`
}

// PostgresConfig configures the optional execution audit log sink.
type PostgresConfig struct {
	Enabled bool   `json:"enabled"`
	DSN     string `json:"dsn"`
}

// RedisConfig configures the optional execution event fan-out publisher.
type RedisConfig struct {
	Enabled bool   `json:"enabled"`
	Addr    string `json:"addr"`
	Channel string `json:"channel"`
}

// S3Config configures the optional named init-script registry.
type S3Config struct {
	Enabled     bool   `json:"enabled"`
	Bucket      string `json:"bucket"`
	Region      string `json:"region"`
	Prefix      string `json:"prefix"`
	CacheTTLSec int    `json:"cache_ttl_sec"`
}

// TracingConfig configures the OpenTelemetry exporter.
type TracingConfig struct {
	Enabled     bool    `json:"enabled"`
	Endpoint    string  `json:"endpoint"`
	ServiceName string  `json:"service_name"`
	SampleRate  float64 `json:"sample_rate"`
}

// MetricsConfig configures the Prometheus exposition endpoint.
type MetricsConfig struct {
	Namespace string `json:"namespace"`
}

// LoggingConfig configures the operational logger.
type LoggingConfig struct {
	Format string `json:"format"` // "text" or "json"
	Level  string `json:"level"`  // "debug", "info", "warn", "error"
}

// Config is the complete configuration surface for the sandbox daemon.
type Config struct {
	Sandbox  SandboxConfig  `json:"sandbox"`
	Store    StoreConfig    `json:"store"`
	Server   ServerConfig   `json:"server"`
	Postgres PostgresConfig `json:"postgres"`
	Redis    RedisConfig    `json:"redis"`
	S3       S3Config       `json:"s3"`
	Tracing  TracingConfig  `json:"tracing"`
	Metrics  MetricsConfig  `json:"metrics"`
	Logging  LoggingConfig  `json:"logging"`
}

// DefaultConfig returns the configuration described in spec §6's
// "stage-appropriate defaults".
func DefaultConfig() *Config {
	return &Config{
		Sandbox: SandboxConfig{
			MaxBytes:         50 * 1024 * 1024,
			MaxTableElements: 10_000,
			FuelPerInit:      440_000_000,
			FuelPerCall:      440_000_000,
		},
		Store: StoreConfig{
			MemoryBudgetBytes: 128 * 1024 * 1024,
		},
		Server: ServerConfig{
			Port:           3000,
			WorkerPoolSize: 16,
		},
		Postgres: PostgresConfig{Enabled: false},
		Redis: RedisConfig{
			Enabled: false,
			Channel: "sandbox:events",
		},
		S3: S3Config{
			Enabled:     false,
			Prefix:      "init-scripts/",
			CacheTTLSec: 30,
		},
		Tracing: TracingConfig{
			Enabled:     false,
			ServiceName: "sandboxd",
			SampleRate:  1.0,
		},
		Metrics: MetricsConfig{
			Namespace: "sandboxd",
		},
		Logging: LoggingConfig{
			Format: "text",
			Level:  "info",
		},
	}
}

// LoadFromFile reads a JSON configuration file, overlaying it onto the
// defaults. A missing file is not an error at the call site's discretion;
// this function always requires the file to exist.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	cfg := DefaultConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return cfg, nil
}

// LoadFromEnv overlays SANDBOX_* environment variables onto cfg in place.
func LoadFromEnv(cfg *Config) {
	if v, ok := os.LookupEnv("SANDBOX_MAX_BYTES"); ok {
		if n, err := strconv.ParseUint(v, 10, 64); err == nil {
			cfg.Sandbox.MaxBytes = n
		}
	}
	if v, ok := os.LookupEnv("SANDBOX_MAX_TABLE_ELEMENTS"); ok {
		if n, err := strconv.ParseUint(v, 10, 32); err == nil {
			cfg.Sandbox.MaxTableElements = uint32(n)
		}
	}
	if v, ok := os.LookupEnv("SANDBOX_FUEL_PER_INIT"); ok {
		if n, err := strconv.ParseUint(v, 10, 64); err == nil {
			cfg.Sandbox.FuelPerInit = n
		}
	}
	if v, ok := os.LookupEnv("SANDBOX_FUEL_PER_CALL"); ok {
		if n, err := strconv.ParseUint(v, 10, 64); err == nil {
			cfg.Sandbox.FuelPerCall = n
		}
	}
	if v, ok := os.LookupEnv("SANDBOX_STORE_BUDGET_BYTES"); ok {
		if n, err := strconv.ParseUint(v, 10, 64); err == nil {
			cfg.Store.MemoryBudgetBytes = n
		}
	}
	if v, ok := os.LookupEnv("SANDBOX_PORT"); ok {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = n
		}
	}
	if v, ok := os.LookupEnv("SANDBOX_WORKER_POOL_SIZE"); ok {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Server.WorkerPoolSize = n
		}
	}
	if v, ok := os.LookupEnv("SANDBOX_POSTGRES_DSN"); ok {
		cfg.Postgres.DSN = v
		cfg.Postgres.Enabled = v != ""
	}
	if v, ok := os.LookupEnv("SANDBOX_REDIS_ADDR"); ok {
		cfg.Redis.Addr = v
		cfg.Redis.Enabled = v != ""
	}
	if v, ok := os.LookupEnv("SANDBOX_S3_BUCKET"); ok {
		cfg.S3.Bucket = v
		cfg.S3.Enabled = v != ""
	}
	if v, ok := os.LookupEnv("SANDBOX_S3_REGION"); ok {
		cfg.S3.Region = v
	}
	if v, ok := os.LookupEnv("SANDBOX_TRACING_ENDPOINT"); ok {
		cfg.Tracing.Endpoint = v
		cfg.Tracing.Enabled = v != ""
	}
	if v, ok := os.LookupEnv("SANDBOX_LOG_FORMAT"); ok {
		cfg.Logging.Format = v
	}
	if v, ok := os.LookupEnv("SANDBOX_LOG_LEVEL"); ok {
		cfg.Logging.Level = v
	}
}
