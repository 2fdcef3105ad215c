package engine

import (
	"context"
	"fmt"
	"os"

	"github.com/rs/zerolog"

	"codeberg.org/snonux/bn2en/internal/device"
	"codeberg.org/snonux/bn2en/internal/pyworker"
)

type translateArgs struct {
	Batch        [][]string `json:"batch"`
	BatchType    string     `json:"batch_type,omitempty"`
	MaxBatchSize int        `json:"max_batch_size,omitempty"`
	BeamSize     int        `json:"beam_size,omitempty"`
}

type translateResult struct {
	Results []Result `json:"results"`
}

// CT2 runs CTranslate2 in a worker process
type CT2 struct {
	worker *pyworker.Worker
	config *Config
	log    zerolog.Logger
}

// StartCT2 launches the worker for modelDir on dev and waits until the model is loaded
func StartCT2(ctx context.Context, modelDir string, dev device.Device, config *Config, log zerolog.Logger) (*CT2, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if _, err := os.Stat(modelDir); err != nil {
		return nil, fmt.Errorf("%w: model directory: %v", ErrStartup, err)
	}

	computeType := config.ComputeType
	if computeType == "" {
		computeType = "default"
	}

	workerConfig := config.Worker()
	workerConfig.Command = config.Command

	var info struct {
		Device string `json:"device"`
	}
	worker, err := pyworker.Start(ctx, workerConfig, "ctranslate2", pyworker.ModeTranslate,
		[]string{modelDir, dev.String(), computeType}, &info, log)
	if err != nil {
		return nil, err
	}

	log.Info().Str("model_dir", modelDir).Str("device", info.Device).Msg("inference engine ready")
	return &CT2{worker: worker, config: config, log: log}, nil
}

// TranslateBatch sends one batch to the worker and waits for its results
func (e *CT2) TranslateBatch(ctx context.Context, batches [][]string, opts BatchOptions) ([]Result, error) {
	if opts.BeamSize == 0 {
		opts.BeamSize = e.config.BeamSize
	}

	var out translateResult
	err := e.worker.Call(ctx, "translate_batch", translateArgs{
		Batch:        batches,
		BatchType:    opts.BatchType,
		MaxBatchSize: opts.MaxBatchSize,
		BeamSize:     opts.BeamSize,
	}, &out)
	if err != nil {
		return nil, err
	}
	if len(out.Results) != len(batches) {
		return nil, fmt.Errorf("ctranslate2: got %d results for %d inputs", len(out.Results), len(batches))
	}

	return out.Results, nil
}

// Close stops the worker
func (e *CT2) Close() error {
	return e.worker.Close()
}
