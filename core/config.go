package core

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

const (
	// DefaultChunkSize bounds how many Tasks a pool-mode Coordinator fires at once.
	DefaultChunkSize = 30

	// maxAllowedChunkSize caps ChunkSize; a chunk is fanned out all at once,
	// so larger values amount to unbounded goroutine creation.
	maxAllowedChunkSize = 10000
)

// Config is the explicit per-Coordinator configuration. Zero fields are
// filled by WithDefaults; there is no package-level mutable default.
type Config struct {
	// Name labels metrics and is shared by nested Coordinators. Defaults to
	// "coordinator". Instance ids are generated separately.
	Name string

	// ChunkSize is the pool-mode concurrency bound. Defaults to DefaultChunkSize.
	ChunkSize int

	// Mode is used by Run. Defaults to ModeQueue.
	Mode Mode

	// Timeout forces the Coordinator terminal with ErrTimeout when it has not
	// finished this long after Start. Zero disables it.
	Timeout time.Duration

	// Executor runs work functions. Defaults to InlineExecutor.
	Executor Executor

	Logger       Logger
	Metrics      Metrics
	PanicHandler PanicHandler

	// NewID generates coordinator ids and names for bare work functions.
	// Defaults to uuid.NewString.
	NewID func() string

	// HistoryCapacity is the number of TaskExecutionRecords kept per Coordinator.
	HistoryCapacity int
}

// DefaultConfig returns a fresh Config with every default applied.
func DefaultConfig() Config {
	return Config{}.WithDefaults()
}

// WithDefaults returns a copy of c with zero fields replaced by defaults.
func (c Config) WithDefaults() Config {
	if c.Name == "" {
		c.Name = "coordinator"
	}
	if c.ChunkSize <= 0 {
		c.ChunkSize = DefaultChunkSize
	}
	if c.ChunkSize > maxAllowedChunkSize {
		c.ChunkSize = maxAllowedChunkSize
	}
	if c.Executor == nil {
		c.Executor = InlineExecutor{}
	}
	if c.Logger == nil {
		c.Logger = &NoOpLogger{}
	}
	if c.Metrics == nil {
		c.Metrics = &NilMetrics{}
	}
	if c.PanicHandler == nil {
		c.PanicHandler = &DefaultPanicHandler{}
	}
	if c.NewID == nil {
		c.NewID = uuid.NewString
	}
	if c.HistoryCapacity <= 0 {
		c.HistoryCapacity = defaultTaskHistoryCapacity
	}
	return c
}

// Validate reports configuration values WithDefaults would have to clamp.
func (c Config) Validate() error {
	if c.ChunkSize < 0 || c.ChunkSize > maxAllowedChunkSize {
		return fmt.Errorf("chunk size must be within [1, %d], got %d", maxAllowedChunkSize, c.ChunkSize)
	}
	if c.Mode != ModeQueue && c.Mode != ModePool {
		return fmt.Errorf("unknown mode %s", c.Mode)
	}
	if c.Timeout < 0 {
		return fmt.Errorf("timeout must not be negative, got %v", c.Timeout)
	}
	return nil
}

// child derives the configuration of a nested Coordinator. Children share
// the host executor and sinks but never time out on their own; the
// ancestor's deadline governs the whole tree.
func (c Config) child() Config {
	c.Timeout = 0
	return c
}
