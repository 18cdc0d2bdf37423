// Package config provides configuration management for the application.
package config

import (
	"fmt"
	"os"
	"reflect"
	"regexp"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"gomodel/internal/storage"
)

// Body size limit constants
const (
	DefaultBodySizeLimit int64 = 1 * 1024 * 1024   // 1MB
	MinBodySizeLimit     int64 = 1 * 1024          // 1KB
	MaxBodySizeLimit     int64 = 100 * 1024 * 1024 // 100MB
)

var bodySizeLimitRegex = regexp.MustCompile(`(?i)^(\d+)([KMG])?B?$`)

// Config holds the application configuration.
type Config struct {
	Storage   StorageConfig   `yaml:"storage"`
	TCP       TCPConfig       `yaml:"tcp_listener"`
	API       APIConfig       `yaml:"api_server"`
	Admission AdmissionConfig `yaml:"admission"`
	Retention RetentionConfig `yaml:"retention"`
	Ingest    IngestConfig    `yaml:"ingest"`
	Logging   LogConfig       `yaml:"logging"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Swagger   SwaggerConfig   `yaml:"swagger"`
}

// StorageConfig holds the SQLite log store configuration.
type StorageConfig struct {
	// Path is the database file path.
	// Default: "logs.db"
	Path string `yaml:"path" env:"LOG_DB"`
}

// TCPConfig holds the raw-log ingestion listener's bind address.
type TCPConfig struct {
	// IP is the bind address. Default: "127.0.0.1"
	IP string `yaml:"ip" env:"TCP_LISTENER_IP"`
	// Port is the bind port. Default: 5000
	Port int `yaml:"port" env:"TCP_LISTENER_PORT"`
}

// APIConfig holds the HTTP query API's bind address and request limits.
type APIConfig struct {
	// IP is the bind address. Default: "127.0.0.1"
	IP string `yaml:"ip" env:"API_SERVER_IP"`
	// Port is the bind port. Default: 8000
	Port int `yaml:"port" env:"API_SERVER_PORT"`
	// BodySizeLimit caps request bodies (e.g. "1M", "512K"). Default: "1M"
	BodySizeLimit string `yaml:"body_size_limit" env:"BODY_SIZE_LIMIT"`
}

// AdmissionConfig selects and sizes the distinct-hash admission cache.
type AdmissionConfig struct {
	// Backend is "local" (default) or "redis".
	Backend string `yaml:"backend" env:"ADMISSION_BACKEND"`
	// MaxHashes caps the number of distinct stream ids admitted.
	// Default: 1000
	MaxHashes int `yaml:"max_hashes" env:"MAX_HASHES"`
	// Redis configuration, used only when Backend is "redis".
	Redis RedisConfig `yaml:"redis"`
}

// RedisConfig holds Redis connection settings for the shared admission cache.
type RedisConfig struct {
	// URL is the Redis connection URL (e.g. "redis://localhost:6379").
	URL string `yaml:"url" env:"REDIS_URL"`
	// Key is the Redis hash key the admitted set is stored under.
	Key string `yaml:"key" env:"REDIS_KEY"`
}

// RetentionConfig controls the background sweeper.
type RetentionConfig struct {
	// IntervalSeconds is how often the sweeper runs. Default: 60
	IntervalSeconds int `yaml:"interval_seconds" env:"SWEEP_INTERVAL_SECONDS"`
	// MaxLogCount caps persisted rows per hash. Default: 10000
	MaxLogCount int `yaml:"max_log_count" env:"MAX_LOG_COUNT"`
}

// IngestConfig holds limits applied uniformly to both ingest paths
// (the TCP listener and POST /api/insert_log).
type IngestConfig struct {
	// MaxLogLength caps message bytes before persistence. Default: 4096
	MaxLogLength int `yaml:"max_log_length" env:"MAX_LOG_LENGTH"`
}

// LogConfig controls the process-wide slog handler.
type LogConfig struct {
	// Format is "json" (default) or "pretty".
	Format string `yaml:"format" env:"LOG_FORMAT"`
	// Level is "debug", "info" (default), "warn", or "error".
	Level string `yaml:"level" env:"LOG_LEVEL"`
}

// MetricsConfig holds observability configuration for Prometheus metrics.
type MetricsConfig struct {
	// Enabled controls whether Prometheus metrics are collected and exposed.
	// Default: true
	Enabled bool `yaml:"enabled" env:"METRICS_ENABLED"`
	// Endpoint is the HTTP path metrics are exposed on. Default: "/metrics"
	Endpoint string `yaml:"endpoint" env:"METRICS_ENDPOINT"`
}

// SwaggerConfig controls the generated OpenAPI docs endpoint.
type SwaggerConfig struct {
	// Enabled exposes /swagger/index.html. Default: true
	Enabled bool `yaml:"enabled" env:"SWAGGER_ENABLED"`
}

// buildDefaultConfig returns the single source of truth for all configuration defaults.
func buildDefaultConfig() *Config {
	return &Config{
		Storage: StorageConfig{
			Path: storage.DefaultPath,
		},
		TCP: TCPConfig{
			IP:   "127.0.0.1",
			Port: 5000,
		},
		API: APIConfig{
			IP:            "127.0.0.1",
			Port:          8000,
			BodySizeLimit: "1M",
		},
		Admission: AdmissionConfig{
			Backend:   "local",
			MaxHashes: 1000,
			Redis: RedisConfig{
				Key: "logserver:admitted_hashes",
			},
		},
		Retention: RetentionConfig{
			IntervalSeconds: 60,
			MaxLogCount:     10000,
		},
		Ingest: IngestConfig{
			MaxLogLength: 4096,
		},
		Logging: LogConfig{
			Format: "json",
			Level:  "info",
		},
		Metrics: MetricsConfig{
			Enabled:  true,
			Endpoint: "/metrics",
		},
		Swagger: SwaggerConfig{
			Enabled: true,
		},
	}
}

// Load reads configuration from file and environment using a three-layer pipeline:
//
//	defaults (code) → config.yaml (optional overlay) → env vars (always win)
//
// Every run follows the same code path regardless of whether config.yaml exists.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := buildDefaultConfig()

	if err := applyYAML(cfg); err != nil {
		return nil, err
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}

	if cfg.API.BodySizeLimit != "" {
		if err := ValidateBodySizeLimit(cfg.API.BodySizeLimit); err != nil {
			return nil, fmt.Errorf("invalid BODY_SIZE_LIMIT: %w", err)
		}
	}

	return cfg, nil
}

// applyYAML reads an optional config.yaml and overlays it onto cfg.
// If no config file is found, this is a no-op (not an error).
func applyYAML(cfg *Config) error {
	paths := []string{
		"config/config.yaml",
		"config.yaml",
	}

	var data []byte
	for _, p := range paths {
		raw, err := os.ReadFile(p)
		if err == nil {
			data = raw
			break
		}
	}

	if data == nil {
		return nil
	}

	expanded := expandString(string(data))

	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return fmt.Errorf("failed to parse config.yaml: %w", err)
	}

	return nil
}

// applyEnvOverrides walks cfg's struct fields and applies env var overrides
// based on `env` struct tags.
func applyEnvOverrides(cfg *Config) error {
	return applyEnvOverridesValue(reflect.ValueOf(cfg).Elem())
}

func applyEnvOverridesValue(v reflect.Value) error {
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		fieldVal := v.Field(i)

		if field.Type.Kind() == reflect.Struct {
			if err := applyEnvOverridesValue(fieldVal); err != nil {
				return err
			}
			continue
		}

		envKey := field.Tag.Get("env")
		if envKey == "" {
			continue
		}
		envVal := os.Getenv(envKey)
		if envVal == "" {
			continue
		}

		switch field.Type.Kind() {
		case reflect.String:
			fieldVal.SetString(envVal)
		case reflect.Bool:
			fieldVal.SetBool(parseBool(envVal))
		case reflect.Int:
			n, err := strconv.Atoi(envVal)
			if err != nil {
				return fmt.Errorf("invalid value for %s (%s): %q is not a valid integer", field.Name, envKey, envVal)
			}
			fieldVal.SetInt(int64(n))
		}
	}
	return nil
}

// expandString expands environment variable references like ${VAR} or ${VAR:-default} in a string.
func expandString(s string) string {
	if s == "" {
		return s
	}
	return os.Expand(s, func(key string) string {
		varname := key
		defaultValue := ""
		hasDefault := false
		if idx := strings.Index(key, ":-"); idx >= 0 {
			varname = key[:idx]
			defaultValue = key[idx+2:]
			hasDefault = true
		}
		value := os.Getenv(varname)
		if value == "" {
			if hasDefault {
				return defaultValue
			}
			return "${" + key + "}"
		}
		return value
	})
}

// parseBool returns true if s is "true" or "1" (case-insensitive).
func parseBool(s string) bool {
	return strings.EqualFold(s, "true") || s == "1"
}

// ValidateBodySizeLimit validates a body size limit string.
// Accepts formats like: "10M", "10MB", "1024K", "1024KB", "104857600"
// Returns an error if the format is invalid or value is outside bounds (1KB - 100MB).
func ValidateBodySizeLimit(s string) error {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}

	matches := bodySizeLimitRegex.FindStringSubmatch(s)
	if matches == nil {
		return fmt.Errorf("invalid format %q: expected pattern like '10M', '1024K', or '104857600'", s)
	}

	value, err := strconv.ParseInt(matches[1], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid number in %q: %w", s, err)
	}

	switch strings.ToUpper(matches[2]) {
	case "K":
		value *= 1024
	case "M":
		value *= 1024 * 1024
	case "G":
		value *= 1024 * 1024 * 1024
	}

	if value < MinBodySizeLimit {
		return fmt.Errorf("value %d bytes is below minimum of %d bytes (1KB)", value, MinBodySizeLimit)
	}
	if value > MaxBodySizeLimit {
		return fmt.Errorf("value %d bytes exceeds maximum of %d bytes (100MB)", value, MaxBodySizeLimit)
	}

	return nil
}

// Addr formats an ip/port pair as a net.Listen-compatible address.
func Addr(ip string, port int) string {
	return fmt.Sprintf("%s:%d", ip, port)
}
