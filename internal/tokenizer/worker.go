package tokenizer

import (
	"context"

	"github.com/rs/zerolog"

	"codeberg.org/snonux/bn2en/internal/pyworker"
)

// Worker implements Tokenizer with the Python sentencepiece package running
// in a pyworker process. It handles every model type.
type Worker struct {
	worker *pyworker.Worker
	log    zerolog.Logger
}

type encodeArgs struct {
	Text string `json:"text"`
}

type encodeResult struct {
	Pieces []string `json:"pieces"`
}

type decodeArgs struct {
	Pieces []string `json:"pieces"`
}

type decodeResult struct {
	Text string `json:"text"`
}

// StartWorker loads the model at path in a new sentencepiece worker
func StartWorker(ctx context.Context, path string, config *pyworker.Config, log zerolog.Logger) (*Worker, error) {
	log = log.With().Str("tokenizer", path).Logger()

	var info struct {
		Pieces int `json:"pieces"`
	}
	w, err := pyworker.Start(ctx, config, "sentencepiece", pyworker.ModeSentencePiece, []string{path}, &info, log)
	if err != nil {
		return nil, err
	}

	log.Debug().Int("pieces", info.Pieces).Msg("sentencepiece worker ready")
	return &Worker{worker: w, log: log}, nil
}

// Encode splits text into subword pieces
func (w *Worker) Encode(ctx context.Context, text string) ([]string, error) {
	if text == "" {
		return []string{}, nil
	}
	var out encodeResult
	if err := w.worker.Call(ctx, "encode", encodeArgs{Text: text}, &out); err != nil {
		return nil, err
	}
	return out.Pieces, nil
}

// Decode joins pieces back into text
func (w *Worker) Decode(ctx context.Context, pieces []string) (string, error) {
	if len(pieces) == 0 {
		return "", nil
	}
	var out decodeResult
	if err := w.worker.Call(ctx, "decode", decodeArgs{Pieces: pieces}, &out); err != nil {
		return "", err
	}
	return out.Text, nil
}

// EncodeAsPieces is Encode without a context; errors yield no pieces
func (w *Worker) EncodeAsPieces(text string) []string {
	pieces, err := w.Encode(context.Background(), text)
	if err != nil {
		w.log.Error().Err(err).Msg("encode failed")
		return nil
	}
	return pieces
}

// DecodePieces is Decode without a context; errors yield empty text
func (w *Worker) DecodePieces(pieces []string) string {
	text, err := w.Decode(context.Background(), pieces)
	if err != nil {
		w.log.Error().Err(err).Msg("decode failed")
		return ""
	}
	return text
}

// Close stops the worker
func (w *Worker) Close() error {
	return w.worker.Close()
}
