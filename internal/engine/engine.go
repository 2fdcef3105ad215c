package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"codeberg.org/snonux/bn2en/internal/device"
	"codeberg.org/snonux/bn2en/internal/pyworker"
)

// Batch types understood by TranslateBatch
const (
	BatchTypeExamples = "examples"
	BatchTypeTokens   = "tokens"
)

// Backends
const (
	BackendCTranslate2 = "ctranslate2"
	BackendStub        = "stub"
)

var (
	// ErrClosed is returned when the engine has been closed
	ErrClosed = pyworker.ErrClosed
	// ErrWorkerExited is returned when the worker process died
	ErrWorkerExited = pyworker.ErrExited
	// ErrStartup is returned when the engine could not be constructed
	ErrStartup = pyworker.ErrStartup
)

// BatchOptions controls how the engine groups its input
type BatchOptions struct {
	BatchType    string
	MaxBatchSize int
	BeamSize     int
}

// Result holds the hypotheses for one input sequence, best first
type Result struct {
	Hypotheses [][]string `json:"hypotheses"`
	Scores     []float64  `json:"scores,omitempty"`
}

// Engine translates batches of token sequences
type Engine interface {
	// TranslateBatch translates each token sequence of batches and returns one
	// result per input, in input order
	TranslateBatch(ctx context.Context, batches [][]string, opts BatchOptions) ([]Result, error)

	// Close releases the engine
	Close() error
}

// Factory constructs an engine bound to a model directory and device
type Factory func(ctx context.Context, modelDir string, dev device.Device) (Engine, error)

// Config holds engine settings
type Config struct {
	Backend      string        `mapstructure:"backend"`
	Python       string        `mapstructure:"python"`
	ComputeType  string        `mapstructure:"compute_type"`
	BeamSize     int           `mapstructure:"beam_size"`
	StartTimeout time.Duration `mapstructure:"start_timeout"`

	// Command replaces "<python> -c <worker script>" for the engine worker;
	// the mode, model directory, device and compute type are appended
	Command []string `mapstructure:"command"`
	// Env is added to the worker environment
	Env []string `mapstructure:"env"`
}

// DefaultConfig returns default configuration
func DefaultConfig() *Config {
	return &Config{
		Backend:      BackendCTranslate2,
		Python:       "python3",
		ComputeType:  "default",
		StartTimeout: 2 * time.Minute,
	}
}

// Worker returns the settings for Python workers started next to the engine.
// Command is left empty so helpers run the embedded script.
func (c *Config) Worker() *pyworker.Config {
	if c == nil {
		return pyworker.DefaultConfig()
	}
	return &pyworker.Config{
		Python:       c.Python,
		Env:          c.Env,
		StartTimeout: c.StartTimeout,
	}
}

// NewFactory returns a Factory for the configured backend
func NewFactory(config *Config, log zerolog.Logger) (Factory, error) {
	if config == nil {
		config = DefaultConfig()
	}

	switch config.Backend {
	case "", BackendCTranslate2:
		return func(ctx context.Context, modelDir string, dev device.Device) (Engine, error) {
			return StartCT2(ctx, modelDir, dev, config, log)
		}, nil
	case BackendStub:
		return func(ctx context.Context, modelDir string, dev device.Device) (Engine, error) {
			return NewStub(nil), nil
		}, nil
	default:
		return nil, fmt.Errorf("unknown engine backend: %s", config.Backend)
	}
}
