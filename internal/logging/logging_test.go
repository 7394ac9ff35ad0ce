package logging

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func captureStdout(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	previous := stdout
	stdout = zapcore.AddSync(&buf)
	t.Cleanup(func() { stdout = previous })
	return &buf
}

func TestNew_ProductionWritesJSON(t *testing.T) {
	buf := captureStdout(t)

	logger, err := New(Config{Level: "warn"})
	require.NoError(t, err)
	logger.Info("hidden")
	logger.Warn("shown", zap.String("symbol", "SPY"))
	require.NoError(t, logger.Sync())

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 1)

	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
	assert.Equal(t, "shown", entry["msg"])
	assert.Equal(t, "SPY", entry["symbol"])
	assert.Contains(t, entry, "ts")
}

func TestNew_TeesToFile(t *testing.T) {
	captureStdout(t)
	path := filepath.Join(t.TempDir(), "quantex.log")

	logger, err := New(Config{Development: true, File: path, MaxSizeMB: 1})
	require.NoError(t, err)
	logger.Info("written", zap.Int("fills", 3))
	require.NoError(t, logger.Sync())

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(data), &entry))
	assert.Equal(t, "written", entry["msg"])
	assert.EqualValues(t, 3, entry["fills"])
}

func TestNew_RejectsUnknownLevel(t *testing.T) {
	_, err := New(Config{Level: "loud"})
	assert.Error(t, err)
}
