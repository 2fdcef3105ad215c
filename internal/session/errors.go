package session

import (
	"errors"
	"fmt"

	"codeberg.org/snonux/bn2en/internal/engine"
	"codeberg.org/snonux/bn2en/internal/hub"
)

// Kind classifies session failures
type Kind string

// Failure kinds
const (
	KindNotReady            Kind = "NOT_READY"
	KindDownloadFailed      Kind = "DOWNLOAD_FAILED"
	KindArtifactMissing     Kind = "ARTIFACT_MISSING"
	KindTokenizerLoadFailed Kind = "TOKENIZER_LOAD_FAILED"
	KindEngineInitFailed    Kind = "ENGINE_INIT_FAILED"
	KindTokenizeFailed      Kind = "TOKENIZE_FAILED"
	KindEngineFailed        Kind = "ENGINE_FAILED"
	KindDetokenizeFailed    Kind = "DETOKENIZE_FAILED"
)

// ErrNotReady is wrapped by NOT_READY errors
var ErrNotReady = errors.New("translation system not initialized")

// Error is returned by every session operation
type Error struct {
	Kind Kind
	Op   string
	Path string
	Err  error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("[%s] %s", e.Kind, e.Op)
	if e.Path != "" {
		msg += " " + e.Path
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Retryable reports whether the same call may succeed when repeated. Only
// download and engine failures are transient, and not when the hub rejected
// the request or the engine is gone.
func (e *Error) Retryable() bool {
	switch e.Kind {
	case KindDownloadFailed:
		return !errors.Is(e.Err, hub.ErrNotFound) && !errors.Is(e.Err, hub.ErrUnauthorized) &&
			!errors.Is(e.Err, hub.ErrInvalidFilename)
	case KindEngineFailed:
		return !errors.Is(e.Err, engine.ErrClosed)
	default:
		return false
	}
}

// KindOf returns the Kind of err, or "" when err is not a session error
func KindOf(err error) Kind {
	var serr *Error
	if errors.As(err, &serr) {
		return serr.Kind
	}
	return ""
}

// IsRetryable reports whether err is a retryable session error
func IsRetryable(err error) bool {
	var serr *Error
	return errors.As(err, &serr) && serr.Retryable()
}
