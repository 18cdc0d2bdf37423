package config

import (
	"os"
	"path/filepath"
	"testing"
)

// clearAllConfigEnvVars unsets all config-related environment variables.
func clearAllConfigEnvVars(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"LOG_DB",
		"TCP_LISTENER_IP", "TCP_LISTENER_PORT",
		"API_SERVER_IP", "API_SERVER_PORT", "BODY_SIZE_LIMIT",
		"ADMISSION_BACKEND", "MAX_HASHES", "REDIS_URL", "REDIS_KEY",
		"SWEEP_INTERVAL_SECONDS", "MAX_LOG_COUNT",
		"MAX_LOG_LENGTH",
		"LOG_FORMAT", "LOG_LEVEL",
		"METRICS_ENABLED", "METRICS_ENDPOINT",
		"SWAGGER_ENABLED",
	} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}
}

// withTempDir runs fn in a temporary directory, restoring the original working directory afterward.
func withTempDir(t *testing.T, fn func(dir string)) {
	t.Helper()
	tempDir := t.TempDir()
	originalDir, err := os.Getwd()
	if err != nil {
		t.Fatalf("Failed to get current directory: %v", err)
	}
	if err := os.Chdir(tempDir); err != nil {
		t.Fatalf("Failed to change to temp directory: %v", err)
	}
	t.Cleanup(func() { _ = os.Chdir(originalDir) })
	fn(tempDir)
}

func TestBuildDefaultConfig(t *testing.T) {
	cfg := buildDefaultConfig()

	if cfg.Storage.Path != "logs.db" {
		t.Errorf("expected Storage.Path=logs.db, got %s", cfg.Storage.Path)
	}
	if cfg.TCP.IP != "127.0.0.1" {
		t.Errorf("expected TCP.IP=127.0.0.1, got %s", cfg.TCP.IP)
	}
	if cfg.TCP.Port != 5000 {
		t.Errorf("expected TCP.Port=5000, got %d", cfg.TCP.Port)
	}
	if cfg.API.IP != "127.0.0.1" {
		t.Errorf("expected API.IP=127.0.0.1, got %s", cfg.API.IP)
	}
	if cfg.API.Port != 8000 {
		t.Errorf("expected API.Port=8000, got %d", cfg.API.Port)
	}
	if cfg.API.BodySizeLimit != "1M" {
		t.Errorf("expected API.BodySizeLimit=1M, got %s", cfg.API.BodySizeLimit)
	}
	if cfg.Admission.Backend != "local" {
		t.Errorf("expected Admission.Backend=local, got %s", cfg.Admission.Backend)
	}
	if cfg.Admission.MaxHashes != 1000 {
		t.Errorf("expected Admission.MaxHashes=1000, got %d", cfg.Admission.MaxHashes)
	}
	if cfg.Admission.Redis.Key != "logserver:admitted_hashes" {
		t.Errorf("expected Admission.Redis.Key=logserver:admitted_hashes, got %s", cfg.Admission.Redis.Key)
	}
	if cfg.Retention.IntervalSeconds != 60 {
		t.Errorf("expected Retention.IntervalSeconds=60, got %d", cfg.Retention.IntervalSeconds)
	}
	if cfg.Retention.MaxLogCount != 10000 {
		t.Errorf("expected Retention.MaxLogCount=10000, got %d", cfg.Retention.MaxLogCount)
	}
	if cfg.Ingest.MaxLogLength != 4096 {
		t.Errorf("expected Ingest.MaxLogLength=4096, got %d", cfg.Ingest.MaxLogLength)
	}
	if cfg.Logging.Format != "json" {
		t.Errorf("expected Logging.Format=json, got %s", cfg.Logging.Format)
	}
	if cfg.Logging.Level != "info" {
		t.Errorf("expected Logging.Level=info, got %s", cfg.Logging.Level)
	}
	if !cfg.Metrics.Enabled {
		t.Error("expected Metrics.Enabled=true")
	}
	if cfg.Metrics.Endpoint != "/metrics" {
		t.Errorf("expected Metrics.Endpoint=/metrics, got %s", cfg.Metrics.Endpoint)
	}
	if !cfg.Swagger.Enabled {
		t.Error("expected Swagger.Enabled=true")
	}
}

func TestLoad_NoConfigFileUsesDefaults(t *testing.T) {
	clearAllConfigEnvVars(t)
	withTempDir(t, func(dir string) {
		cfg, err := Load()
		if err != nil {
			t.Fatalf("Load() error = %v", err)
		}
		if cfg.TCP.Port != 5000 {
			t.Errorf("expected TCP.Port=5000, got %d", cfg.TCP.Port)
		}
		if cfg.Admission.MaxHashes != 1000 {
			t.Errorf("expected Admission.MaxHashes=1000, got %d", cfg.Admission.MaxHashes)
		}
	})
}

func TestLoad_YAMLOverlayAppliesOverDefaults(t *testing.T) {
	clearAllConfigEnvVars(t)
	withTempDir(t, func(dir string) {
		yamlContent := `
tcp_listener:
  ip: "0.0.0.0"
  port: 6000
admission:
  max_hashes: 500
retention:
  max_log_count: 2000
`
		if err := os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yamlContent), 0644); err != nil {
			t.Fatalf("failed to write config.yaml: %v", err)
		}

		cfg, err := Load()
		if err != nil {
			t.Fatalf("Load() error = %v", err)
		}
		if cfg.TCP.IP != "0.0.0.0" {
			t.Errorf("expected TCP.IP=0.0.0.0, got %s", cfg.TCP.IP)
		}
		if cfg.TCP.Port != 6000 {
			t.Errorf("expected TCP.Port=6000, got %d", cfg.TCP.Port)
		}
		if cfg.Admission.MaxHashes != 500 {
			t.Errorf("expected Admission.MaxHashes=500, got %d", cfg.Admission.MaxHashes)
		}
		if cfg.Retention.MaxLogCount != 2000 {
			t.Errorf("expected Retention.MaxLogCount=2000, got %d", cfg.Retention.MaxLogCount)
		}
		// Fields absent from the overlay keep their compiled defaults.
		if cfg.API.Port != 8000 {
			t.Errorf("expected API.Port=8000 (default), got %d", cfg.API.Port)
		}
	})
}

func TestLoad_EnvVarsOverrideYAML(t *testing.T) {
	clearAllConfigEnvVars(t)
	withTempDir(t, func(dir string) {
		yamlContent := `
tcp_listener:
  port: 6000
`
		if err := os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yamlContent), 0644); err != nil {
			t.Fatalf("failed to write config.yaml: %v", err)
		}
		t.Setenv("TCP_LISTENER_PORT", "7000")

		cfg, err := Load()
		if err != nil {
			t.Fatalf("Load() error = %v", err)
		}
		if cfg.TCP.Port != 7000 {
			t.Errorf("expected TCP.Port=7000 (env wins), got %d", cfg.TCP.Port)
		}
	})
}

func TestLoad_EnvVarExpansionInYAML(t *testing.T) {
	clearAllConfigEnvVars(t)
	withTempDir(t, func(dir string) {
		t.Setenv("LOG_DB_DIR", "/var/lib/logserver")
		yamlContent := `
storage:
  path: "${LOG_DB_DIR}/logs.db"
`
		if err := os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yamlContent), 0644); err != nil {
			t.Fatalf("failed to write config.yaml: %v", err)
		}

		cfg, err := Load()
		if err != nil {
			t.Fatalf("Load() error = %v", err)
		}
		if cfg.Storage.Path != "/var/lib/logserver/logs.db" {
			t.Errorf("expected expanded path, got %s", cfg.Storage.Path)
		}
	})
}

func TestLoad_InvalidBodySizeLimitRejected(t *testing.T) {
	clearAllConfigEnvVars(t)
	withTempDir(t, func(dir string) {
		t.Setenv("BODY_SIZE_LIMIT", "not-a-size")
		if _, err := Load(); err == nil {
			t.Error("expected error for invalid BODY_SIZE_LIMIT")
		}
	})
}

func TestLoad_InvalidIntEnvVarRejected(t *testing.T) {
	clearAllConfigEnvVars(t)
	withTempDir(t, func(dir string) {
		t.Setenv("MAX_HASHES", "not-an-int")
		if _, err := Load(); err == nil {
			t.Error("expected error for invalid MAX_HASHES")
		}
	})
}

func TestValidateBodySizeLimit(t *testing.T) {
	cases := []struct {
		input   string
		wantErr bool
	}{
		{"", false},
		{"10M", false},
		{"10MB", false},
		{"1024K", false},
		{"104857600", false},
		{"500", true}, // below 1KB minimum
		{"1G", true},  // above 100MB maximum
		{"50M", false},
		{"abc", true},
	}
	for _, c := range cases {
		err := ValidateBodySizeLimit(c.input)
		if (err != nil) != c.wantErr {
			t.Errorf("ValidateBodySizeLimit(%q) error = %v, wantErr %v", c.input, err, c.wantErr)
		}
	}
}

func TestExpandString(t *testing.T) {
	os.Setenv("TESTVAR_PRESENT", "hello")
	defer os.Unsetenv("TESTVAR_PRESENT")

	if got := expandString("${TESTVAR_PRESENT}"); got != "hello" {
		t.Errorf("expected hello, got %s", got)
	}
	if got := expandString("${TESTVAR_ABSENT:-fallback}"); got != "fallback" {
		t.Errorf("expected fallback, got %s", got)
	}
	if got := expandString("${TESTVAR_ABSENT}"); got != "${TESTVAR_ABSENT}" {
		t.Errorf("expected literal passthrough, got %s", got)
	}
}

func TestAddr(t *testing.T) {
	if got := Addr("127.0.0.1", 8000); got != "127.0.0.1:8000" {
		t.Errorf("expected 127.0.0.1:8000, got %s", got)
	}
}
