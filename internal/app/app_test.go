package app

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gomodel/config"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	return &config.Config{
		Storage: config.StorageConfig{Path: filepath.Join(dir, "logs.db")},
		TCP:     config.TCPConfig{IP: "127.0.0.1", Port: 0},
		API:     config.APIConfig{IP: "127.0.0.1", Port: 0, BodySizeLimit: "1M"},
		Admission: config.AdmissionConfig{
			Backend:   "local",
			MaxHashes: 100,
		},
		Retention: config.RetentionConfig{
			IntervalSeconds: 60,
			MaxLogCount:     1000,
		},
		Ingest: config.IngestConfig{MaxLogLength: 4096},
		Logging: config.LogConfig{
			Format: "json",
			Level:  "info",
		},
		Metrics: config.MetricsConfig{Enabled: false},
		Swagger: config.SwaggerConfig{Enabled: false},
	}
}

func TestNew_WiresAllComponents(t *testing.T) {
	a, err := New(testConfig(t))
	require.NoError(t, err)
	require.NotNil(t, a.store)
	require.NotNil(t, a.admission)
	require.NotNil(t, a.listener)
	require.NotNil(t, a.writer)
	require.NotNil(t, a.sweeper)
	require.NotNil(t, a.server)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	assert.NoError(t, a.Shutdown(ctx))
}

func TestNew_RejectsNilConfig(t *testing.T) {
	_, err := New(nil)
	assert.Error(t, err)
}

func TestStartAndShutdown_GracefulLifecycle(t *testing.T) {
	a, err := New(testConfig(t))
	require.NoError(t, err)

	started := make(chan error, 1)
	go func() {
		started <- a.Start("127.0.0.1:0")
	}()

	// Give the server goroutine a moment to bind before tearing down.
	time.Sleep(50 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, a.Shutdown(ctx))

	select {
	case err := <-started:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Start did not return after Shutdown")
	}
}

func TestShutdown_IsIdempotent(t *testing.T) {
	a, err := New(testConfig(t))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, a.Shutdown(ctx))
	assert.NoError(t, a.Shutdown(ctx))
}
