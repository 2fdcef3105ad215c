package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/rs/zerolog"
	"golang.org/x/text/unicode/norm"

	"codeberg.org/snonux/bn2en/internal/device"
	"codeberg.org/snonux/bn2en/internal/engine"
	"codeberg.org/snonux/bn2en/internal/tokenizer"
)

// MaxBatchSize is the token budget of one engine batch
const MaxBatchSize = 4096

// Translator is a ready session. It is created by Session.Setup only.
type Translator struct {
	source   tokenizer.Tokenizer
	target   tokenizer.Tokenizer
	engine   engine.Engine
	modelDir string
	device   device.Device
	log      zerolog.Logger
}

// ModelDir returns the directory the bundle was loaded from
func (t *Translator) ModelDir() string {
	if t == nil {
		return ""
	}
	return t.modelDir
}

// Device returns the device the engine runs on
func (t *Translator) Device() device.Device {
	if t == nil {
		return device.Auto
	}
	return t.device
}

// Translate translates Bangla text to English
func (t *Translator) Translate(ctx context.Context, text string) (string, error) {
	if t == nil || t.source == nil || t.target == nil || t.engine == nil {
		return "", &Error{Kind: KindNotReady, Op: "translate", Err: ErrNotReady}
	}

	text = norm.NFKC.String(text)
	if strings.TrimSpace(text) == "" {
		return "", nil
	}

	var pieces []string
	var err error
	if panicErr := guard(func() { pieces, err = tokenizer.Encode(ctx, t.source, text) }); panicErr != nil {
		err = panicErr
	}
	if err != nil {
		return "", t.fail(&Error{Kind: KindTokenizeFailed, Op: "tokenize", Err: err})
	}
	if len(pieces) == 0 {
		return "", t.fail(&Error{Kind: KindTokenizeFailed, Op: "tokenize", Err: errors.New("no pieces produced")})
	}

	results, err := t.engine.TranslateBatch(ctx, [][]string{pieces}, engine.BatchOptions{
		BatchType:    engine.BatchTypeTokens,
		MaxBatchSize: MaxBatchSize,
	})
	if err != nil {
		return "", t.fail(&Error{Kind: KindEngineFailed, Op: "translate batch", Err: err})
	}
	if len(results) == 0 || len(results[0].Hypotheses) == 0 {
		return "", t.fail(&Error{Kind: KindEngineFailed, Op: "translate batch", Err: errors.New("no hypothesis returned")})
	}

	var translated string
	if panicErr := guard(func() { translated, err = tokenizer.Decode(ctx, t.target, results[0].Hypotheses[0]) }); panicErr != nil {
		err = panicErr
	}
	if err != nil {
		return "", t.fail(&Error{Kind: KindDetokenizeFailed, Op: "detokenize", Err: err})
	}
	if !utf8.ValidString(translated) {
		return "", t.fail(&Error{Kind: KindDetokenizeFailed, Op: "detokenize", Err: errors.New("output is not valid UTF-8")})
	}

	t.log.Debug().Int("pieces", len(pieces)).Int("output_pieces", len(results[0].Hypotheses[0])).Msg("translated")
	return translated, nil
}

// Close stops the engine and any tokenizer workers
func (t *Translator) Close() error {
	if t == nil {
		return nil
	}
	var err error
	if t.engine != nil {
		err = t.engine.Close()
	}
	return errors.Join(err, closeTokenizers(t.source, t.target))
}

// closeTokenizers closes the tokenizers that hold a worker process
func closeTokenizers(toks ...tokenizer.Tokenizer) error {
	var errs []error
	for _, tok := range toks {
		if closer, ok := tok.(io.Closer); ok {
			errs = append(errs, closer.Close())
		}
	}
	return errors.Join(errs...)
}

func (t *Translator) fail(err *Error) error {
	t.log.Error().Err(err.Err).Str("kind", string(err.Kind)).Msg("error during translation")
	return err
}

// guard turns a panic inside a tokenizer call into an error
func guard(f func()) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("tokenizer panic: %v", r)
		}
	}()
	f()
	return nil
}
