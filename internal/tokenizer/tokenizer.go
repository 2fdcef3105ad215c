package tokenizer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	sentencepiece "github.com/eliben/go-sentencepiece"
	"github.com/rs/zerolog"

	"codeberg.org/snonux/bn2en/internal/pyworker"
)

// wordBoundary is the SentencePiece meta symbol that stands for a space
const wordBoundary = "▁"

var (
	// ErrModelNotFound is returned when the model file does not exist
	ErrModelNotFound = errors.New("tokenizer model not found")
	// ErrUnsupportedModel is returned when a model needs the sentencepiece
	// worker but none is configured
	ErrUnsupportedModel = errors.New("model type needs the sentencepiece worker")
)

// Tokenizer converts between text and subword pieces
type Tokenizer interface {
	// EncodeAsPieces splits text into subword pieces
	EncodeAsPieces(text string) []string

	// DecodePieces joins pieces back into text
	DecodePieces(pieces []string) string
}

// ContextTokenizer is a Tokenizer whose calls block on I/O and can fail
type ContextTokenizer interface {
	Tokenizer
	Encode(ctx context.Context, text string) ([]string, error)
	Decode(ctx context.Context, pieces []string) (string, error)
}

// Encode splits text with t, honouring ctx when t supports it
func Encode(ctx context.Context, t Tokenizer, text string) ([]string, error) {
	if ct, ok := t.(ContextTokenizer); ok {
		return ct.Encode(ctx, text)
	}
	return t.EncodeAsPieces(text), nil
}

// Decode joins pieces with t, honouring ctx when t supports it
func Decode(ctx context.Context, t Tokenizer, pieces []string) (string, error) {
	if ct, ok := t.(ContextTokenizer); ok {
		return ct.Decode(ctx, pieces)
	}
	return t.DecodePieces(pieces), nil
}

// Loader loads a tokenizer model from a file
type Loader func(path string) (Tokenizer, error)

type encoder interface {
	Encode(text string) []sentencepiece.Token
}

// SentencePiece implements Tokenizer on a SentencePiece model file with the
// pure Go processor, which understands BPE models only
type SentencePiece struct {
	proc encoder
}

// Load reads a BPE SentencePiece model file. Other model types fail with
// ErrUnsupportedModel; use NewLoader to serve them.
func Load(path string) (Tokenizer, error) {
	return load(path, nil, zerolog.Nop())
}

// NewLoader returns a Loader that uses the Go processor for BPE models and a
// sentencepiece worker for other model types and for BPE models the Go
// processor rejects. A nil config disables the worker.
func NewLoader(config *pyworker.Config, log zerolog.Logger) Loader {
	return func(path string) (Tokenizer, error) {
		return load(path, config, log)
	}
}

func load(path string, config *pyworker.Config, log zerolog.Logger) (Tokenizer, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrModelNotFound, path)
		}
		return nil, fmt.Errorf("failed to stat tokenizer model: %w", err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("tokenizer model %s is a directory", path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read tokenizer model: %w", err)
	}
	modelType, err := ReadModelType(data)
	if err != nil {
		return nil, fmt.Errorf("failed to load sentencepiece model %s: %w", path, err)
	}

	if modelType == ModelBPE {
		proc, err := sentencepiece.NewProcessorFromPath(path)
		if err == nil {
			return &SentencePiece{proc: proc}, nil
		}
		if config == nil {
			return nil, fmt.Errorf("failed to load sentencepiece model %s: %w", path, err)
		}
		log.Warn().Err(err).Str("path", path).Msg("go sentencepiece rejected the model, using the sentencepiece worker")
	} else if config == nil {
		return nil, fmt.Errorf("%w: %s model %s", ErrUnsupportedModel, modelType, path)
	}

	tok, err := StartWorker(context.Background(), path, config, log)
	if err != nil {
		return nil, fmt.Errorf("failed to load sentencepiece model %s: %w", path, err)
	}
	log.Info().Str("path", path).Str("model_type", modelType.String()).Msg("tokenizer runs in the sentencepiece worker")
	return tok, nil
}

// EncodeAsPieces splits text into subword pieces
func (s *SentencePiece) EncodeAsPieces(text string) []string {
	if text == "" {
		return []string{}
	}
	tokens := s.proc.Encode(text)
	pieces := make([]string, 0, len(tokens))
	for _, tok := range tokens {
		pieces = append(pieces, tok.Text)
	}
	return pieces
}

// DecodePieces joins pieces back into text
func (s *SentencePiece) DecodePieces(pieces []string) string {
	return DecodePieces(pieces)
}

// DecodePieces reverses SentencePiece segmentation: the word boundary symbol
// becomes a space, the leading space added by encoding is dropped, byte
// fallback pieces (<0xNN>) are reassembled into UTF-8, and control pieces
// are removed.
func DecodePieces(pieces []string) string {
	var buf []byte
	for _, p := range pieces {
		switch p {
		case "<s>", "</s>", "<pad>":
			continue
		case "<unk>":
			buf = append(buf, " ⁇ "...)
			continue
		}
		if b, ok := bytePiece(p); ok {
			buf = append(buf, b)
			continue
		}
		buf = append(buf, strings.ReplaceAll(p, wordBoundary, " ")...)
	}
	return strings.TrimPrefix(string(buf), " ")
}

// bytePiece parses a byte fallback piece like <0xE0>
func bytePiece(p string) (byte, bool) {
	if len(p) != 6 || !strings.HasPrefix(p, "<0x") || p[5] != '>' {
		return 0, false
	}
	v, err := strconv.ParseUint(p[3:5], 16, 8)
	if err != nil {
		return 0, false
	}
	return byte(v), true
}
