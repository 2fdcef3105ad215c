package translation

import (
	"context"
	"sync"

	"codeberg.org/snonux/bn2en/internal/session"
)

// LocalProvider translates with the downloaded model. The session is set up
// on first use unless Setup was called explicitly.
type LocalProvider struct {
	session *session.Session

	mu         sync.Mutex
	translator *session.Translator
}

// NewLocalProvider creates a provider backed by s
func NewLocalProvider(s *session.Session) *LocalProvider {
	return &LocalProvider{session: s}
}

// Setup prepares the session. It is a no-op once it has succeeded.
func (p *LocalProvider) Setup(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.setupLocked(ctx)
}

func (p *LocalProvider) setupLocked(ctx context.Context) error {
	if p.translator != nil {
		return nil
	}
	tr, err := p.session.Setup(ctx)
	if err != nil {
		return err
	}
	p.translator = tr
	return nil
}

// Translate translates text, setting the session up first if needed
func (p *LocalProvider) Translate(ctx context.Context, text string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.setupLocked(ctx); err != nil {
		return "", err
	}
	return p.translator.Translate(ctx, text)
}

// Translator returns the ready translator, or nil before setup
func (p *LocalProvider) Translator() *session.Translator {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.translator
}

// Name returns the provider name
func (p *LocalProvider) Name() string {
	return ProviderLocal
}

// IsAvailable reports NOT_READY until setup has succeeded
func (p *LocalProvider) IsAvailable() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.translator == nil {
		return &session.Error{Kind: session.KindNotReady, Op: "translate", Err: session.ErrNotReady}
	}
	return nil
}

// Close releases the engine
func (p *LocalProvider) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	err := p.translator.Close()
	p.translator = nil
	return err
}
