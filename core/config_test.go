package core

import (
	"testing"
	"time"
)

// TestConfig_WithDefaults verifies zero fields take their defaults
// Given: A zero Config
// When: WithDefaults is applied
// Then: Every pluggable dependency is populated and the chunk size is 30
func TestConfig_WithDefaults(t *testing.T) {
	// Arrange and Act
	cfg := Config{}.WithDefaults()

	// Assert
	if cfg.Name != "coordinator" {
		t.Errorf("Name = %q, want coordinator", cfg.Name)
	}
	if cfg.ChunkSize != DefaultChunkSize || DefaultChunkSize != 30 {
		t.Errorf("ChunkSize = %d, want 30", cfg.ChunkSize)
	}
	if _, ok := cfg.Executor.(InlineExecutor); !ok {
		t.Errorf("Executor = %T, want InlineExecutor", cfg.Executor)
	}
	if cfg.Logger == nil || cfg.Metrics == nil || cfg.PanicHandler == nil || cfg.NewID == nil {
		t.Error("pluggable dependencies must not be nil")
	}
	if cfg.HistoryCapacity != defaultTaskHistoryCapacity {
		t.Errorf("HistoryCapacity = %d, want %d", cfg.HistoryCapacity, defaultTaskHistoryCapacity)
	}
	if a, b := cfg.NewID(), cfg.NewID(); a == "" || a == b {
		t.Errorf("NewID produced %q and %q, want distinct non-empty ids", a, b)
	}
}

// TestConfig_WithDefaults_KeepsExplicitValues verifies explicit values win
func TestConfig_WithDefaults_KeepsExplicitValues(t *testing.T) {
	cfg := Config{Name: "import", ChunkSize: 5, Mode: ModePool, Timeout: time.Second}.WithDefaults()

	if cfg.Name != "import" || cfg.ChunkSize != 5 || cfg.Mode != ModePool || cfg.Timeout != time.Second {
		t.Errorf("explicit values were overwritten: %+v", cfg)
	}
}

// TestConfig_ChunkSizeClamped verifies oversized chunks are capped
func TestConfig_ChunkSizeClamped(t *testing.T) {
	cfg := Config{ChunkSize: maxAllowedChunkSize + 1}

	if err := cfg.Validate(); err == nil {
		t.Error("Validate() = nil, want chunk size error")
	}
	if got := cfg.WithDefaults().ChunkSize; got != maxAllowedChunkSize {
		t.Errorf("clamped ChunkSize = %d, want %d", got, maxAllowedChunkSize)
	}
}

// TestConfig_Validate covers the remaining validation branches
func TestConfig_Validate(t *testing.T) {
	cases := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{name: "zero", cfg: Config{}},
		{name: "pool", cfg: Config{Mode: ModePool, ChunkSize: 30}},
		{name: "negative chunk", cfg: Config{ChunkSize: -1}, wantErr: true},
		{name: "unknown mode", cfg: Config{Mode: Mode(7)}, wantErr: true},
		{name: "negative timeout", cfg: Config{Timeout: -time.Second}, wantErr: true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.cfg.Validate()
			if (err != nil) != tc.wantErr {
				t.Errorf("Validate() = %v, wantErr %v", err, tc.wantErr)
			}
		})
	}
}

// TestConfig_ChildDropsTimeout verifies nested configs never time out on their own
func TestConfig_ChildDropsTimeout(t *testing.T) {
	parent := Config{Name: "import", Timeout: time.Minute}.WithDefaults()

	child := parent.child()

	if child.Timeout != 0 {
		t.Errorf("child Timeout = %v, want 0", child.Timeout)
	}
	if child.Name != parent.Name || child.ChunkSize != parent.ChunkSize {
		t.Errorf("child config diverged from parent: %+v", child)
	}
}
