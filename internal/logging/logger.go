// Package logging builds the JSON slog loggers used by the taskbatch command
// and adapts them to core.Logger.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/Swind/go-task-batch/core"
)

// Sink owns a JSON slog logger and the file it writes to, if any.
// It is safe for concurrent use.
type Sink struct {
	logger *slog.Logger
	file   *os.File
	mu     sync.Mutex // Protects file operations
}

// New creates a Sink writing JSON lines at level. When path is empty the
// sink writes to stderr; otherwise the file is created (with its directory)
// and opened in append mode.
func New(path string, level string) (*Sink, error) {
	var writer io.Writer
	var file *os.File

	if path != "" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create log directory: %w", err)
		}
		var err error
		file, err = os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file: %w", err)
		}
		writer = file
	} else {
		writer = os.Stderr
	}

	return NewWithWriter(writer, level, file), nil
}

// NewWithWriter creates a Sink on an arbitrary writer. closer, when non-nil,
// is closed by Close.
func NewWithWriter(w io.Writer, level string, closer *os.File) *Sink {
	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{Level: ParseLevel(level)})
	return &Sink{logger: slog.New(handler), file: closer}
}

// ParseLevel converts a level name to slog.Level. Unknown names map to info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Core adapts the sink to core.Logger, tagging every entry with component.
func (s *Sink) Core(component string) core.Logger {
	l := s.logger
	if component != "" {
		l = l.With(slog.String("component", component))
	}
	return core.NewSlogLogger(l)
}

// Close flushes and closes the log file, if any.
func (s *Sink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.file == nil {
		return nil
	}
	if err := s.file.Sync(); err != nil {
		return fmt.Errorf("failed to sync log file: %w", err)
	}
	err := s.file.Close()
	s.file = nil
	return err
}
