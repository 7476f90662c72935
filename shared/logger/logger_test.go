package logger

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeLines(t *testing.T, output *bytes.Buffer) []map[string]interface{} {
	t.Helper()
	var entries []map[string]interface{}
	for _, line := range strings.Split(strings.TrimSpace(output.String()), "\n") {
		if line == "" {
			continue
		}
		var entry map[string]interface{}
		require.NoError(t, json.Unmarshal([]byte(line), &entry))
		entries = append(entries, entry)
	}
	return entries
}

func TestNewHandler(t *testing.T) {
	tests := []struct {
		name      string
		config    *Config
		checkFunc func(t *testing.T, logger *slog.Logger, output *bytes.Buffer)
	}{
		{
			name:   "json format with debug level",
			config: &Config{Level: "debug", Format: "json"},
			checkFunc: func(t *testing.T, logger *slog.Logger, output *bytes.Buffer) {
				logger.Debug("Render job queued", slog.String("job_id", "job-1"))

				entries := decodeLines(t, output)
				require.Len(t, entries, 1)
				assert.Equal(t, "DEBUG", entries[0]["level"])
				assert.Equal(t, "Render job queued", entries[0]["msg"])
				assert.Equal(t, "job-1", entries[0]["job_id"])
				assert.Contains(t, entries[0], "time")
			},
		},
		{
			name:   "json format with warn level drops info",
			config: &Config{Level: "warn", Format: "json"},
			checkFunc: func(t *testing.T, logger *slog.Logger, output *bytes.Buffer) {
				logger.Info("info message")
				logger.Warn("Failed to update presence", slog.String("error", "timeout"))

				entries := decodeLines(t, output)
				require.Len(t, entries, 1)
				assert.Equal(t, "WARN", entries[0]["level"])
				assert.Equal(t, "timeout", entries[0]["error"])
			},
		},
		{
			name:   "console format",
			config: &Config{Level: "info", Format: "text", TimeFormat: time.RFC3339},
			checkFunc: func(t *testing.T, logger *slog.Logger, output *bytes.Buffer) {
				logger.Info("console test")

				// tint abbreviates levels.
				assert.Contains(t, output.String(), "INF")
				assert.Contains(t, output.String(), "console test")
			},
		},
		{
			name:   "with source location enabled",
			config: &Config{Level: "info", Format: "json", EnableSource: true},
			checkFunc: func(t *testing.T, logger *slog.Logger, output *bytes.Buffer) {
				logger.Info("message with source")

				entries := decodeLines(t, output)
				require.Len(t, entries, 1)
				source := entries[0]["source"].(map[string]interface{})
				assert.Contains(t, source, "file")
				assert.Contains(t, source, "line")
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			output := &bytes.Buffer{}
			logger := slog.New(newHandler(output, tt.config, true))
			tt.checkFunc(t, logger, output)
		})
	}
}

func TestNew_FileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "courtbot.log")

	l, err := New(&Config{Level: "info", Format: "json", Output: path})
	require.NoError(t, err)

	l.Info("Queue driver started", slog.Duration("interval", 5*time.Second))
	require.NoError(t, l.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"Queue driver started"`)
}

func TestNew_StdStreams(t *testing.T) {
	for _, out := range []string{"", "stdout", "stderr"} {
		l, err := New(&Config{Output: out})
		require.NoError(t, err)
		assert.NoError(t, l.Close())
	}
}

func TestNewDefault(t *testing.T) {
	logger := NewDefault()
	require.NotNil(t, logger)
	assert.NotNil(t, logger.Logger)
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		level    string
		expected slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"DEBUG", slog.LevelInfo},
		{"invalid", slog.LevelInfo},
		{"", slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			assert.Equal(t, tt.expected, parseLevel(tt.level))
		})
	}
}

func TestWithComponentAndJobID(t *testing.T) {
	output := &bytes.Buffer{}
	base := slog.New(newHandler(output, &Config{Format: "json"}, true))

	WithJobID(WithComponent(base, "worker"), "job-7").Info("Render completed")

	entries := decodeLines(t, output)
	require.Len(t, entries, 1)
	assert.Equal(t, "worker", entries[0]["component"])
	assert.Equal(t, "job-7", entries[0]["job_id"])
}
