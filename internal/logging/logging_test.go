package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInit_JSONFormatProducesParsableLines(t *testing.T) {
	var buf bytes.Buffer
	Init(Config{Format: "json"}, &buf)

	slog.Info("hello", "key", "value")

	var line map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "hello", line["msg"])
	assert.Equal(t, "value", line["key"])
}

func TestInit_PrettyFormatProducesOutput(t *testing.T) {
	var buf bytes.Buffer
	Init(Config{Format: "pretty"}, &buf)

	slog.Info("hello there")

	assert.Contains(t, buf.String(), "hello there")
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, parseLevel("debug"))
	assert.Equal(t, slog.LevelWarn, parseLevel("warn"))
	assert.Equal(t, slog.LevelError, parseLevel("error"))
	assert.Equal(t, slog.LevelInfo, parseLevel("info"))
	assert.Equal(t, slog.LevelInfo, parseLevel(""))
}
