package logging

import (
	"bufio"
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/Swind/go-task-batch/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"DEBUG":   slog.LevelDebug,
		"info":    slog.LevelInfo,
		"warn":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"bogus":   slog.LevelInfo,
		"":        slog.LevelInfo,
	}
	for in, want := range tests {
		assert.Equal(t, want, ParseLevel(in), "ParseLevel(%q)", in)
	}
}

func TestSink_CoreLoggerWritesJSON(t *testing.T) {
	var buf bytes.Buffer
	sink := NewWithWriter(&buf, "info", nil)
	logger := sink.Core("coordinator")

	logger.Debug("filtered")
	logger.Info("coordinator started", core.F("coordinator", "abc"), core.F("tasks", 5))

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	require.Len(t, lines, 1)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(lines[0], &entry))
	assert.Equal(t, "coordinator started", entry["msg"])
	assert.Equal(t, "coordinator", entry["component"])
	assert.Equal(t, "abc", entry["coordinator"])
	assert.EqualValues(t, 5, entry["tasks"])
	assert.NoError(t, sink.Close())
}

func TestSink_FileSinkAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "taskbatch.log")

	for range 2 {
		sink, err := New(path, "debug")
		require.NoError(t, err)
		sink.Core("").Debug("hello")
		require.NoError(t, sink.Close())
		require.NoError(t, sink.Close(), "second Close is a no-op")
	}

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	count := 0
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		count++
	}
	require.NoError(t, scanner.Err())
	assert.Equal(t, 2, count)
}

func TestSink_StderrDefault(t *testing.T) {
	sink, err := New("", "warn")

	require.NoError(t, err)
	assert.NotNil(t, sink.Core("cli"))
	assert.NoError(t, sink.Close())
}
