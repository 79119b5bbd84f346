package config

import (
	"time"

	"github.com/Swind/go-task-batch/core"
)

// Config holds the settings of a taskbatch process.
// It organizes settings into logical groups for better maintainability.
type Config struct {
	Batch   BatchConfig   `mapstructure:"batch" validate:"required"`
	Pool    PoolConfig    `mapstructure:"pool" validate:"required"`
	Log     LogConfig     `mapstructure:"log" validate:"required"`
	Metrics MetricsConfig `mapstructure:"metrics"`
}

// BatchConfig contains the Coordinator defaults.
type BatchConfig struct {
	Name            string        `mapstructure:"name" validate:"required"`
	Mode            string        `mapstructure:"mode" validate:"required,oneof=queue pool"`
	ChunkSize       int           `mapstructure:"chunk_size" validate:"required,gte=1,lte=10000"`
	Timeout         time.Duration `mapstructure:"timeout" validate:"gte=0"`
	HistoryCapacity int           `mapstructure:"history_capacity" validate:"gte=0"`
}

// PoolConfig sizes the host thread pool.
type PoolConfig struct {
	Workers int `mapstructure:"workers" validate:"required,gte=1"`
}

// LogConfig selects the log level and an optional file sink.
type LogConfig struct {
	Level string `mapstructure:"level" validate:"required,oneof=debug info warn error"`
	File  string `mapstructure:"file"`
}

// MetricsConfig controls the Prometheus endpoint. An empty Addr disables it.
type MetricsConfig struct {
	Addr      string `mapstructure:"addr" validate:"omitempty,hostname_port"`
	Namespace string `mapstructure:"namespace"`
}

// CoreConfig converts the batch section into a core.Config wired to the
// given executor, logger and metrics sink. Nil arguments take core defaults.
func (c *Config) CoreConfig(executor core.Executor, logger core.Logger, metrics core.Metrics) (core.Config, error) {
	mode, err := core.ParseMode(c.Batch.Mode)
	if err != nil {
		return core.Config{}, err
	}
	cfg := core.Config{
		Name:            c.Batch.Name,
		ChunkSize:       c.Batch.ChunkSize,
		Mode:            mode,
		Timeout:         c.Batch.Timeout,
		Executor:        executor,
		Logger:          logger,
		Metrics:         metrics,
		HistoryCapacity: c.Batch.HistoryCapacity,
	}
	if err := cfg.Validate(); err != nil {
		return core.Config{}, err
	}
	return cfg.WithDefaults(), nil
}
