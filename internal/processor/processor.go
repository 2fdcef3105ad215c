package processor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"

	"codeberg.org/snonux/bn2en/internal/cli"
	"codeberg.org/snonux/bn2en/internal/hub"
	"codeberg.org/snonux/bn2en/internal/logging"
	"codeberg.org/snonux/bn2en/internal/memory"
	"codeberg.org/snonux/bn2en/internal/models"
	"codeberg.org/snonux/bn2en/internal/session"
	"codeberg.org/snonux/bn2en/internal/translation"
)

// Processor handles the main translation logic
type Processor struct {
	flags            *cli.Flags
	local            *translation.LocalProvider
	provider         translation.Provider
	translationCache *translation.TranslationCache
	history          *memory.History
	lister           *models.Lister
	log              zerolog.Logger

	in         io.Reader
	out        io.Writer
	retryDelay time.Duration

	sessionOpts []session.Option
	fallback    translation.Provider
	hubConfig   *hub.Config
}

// Option customises a Processor
type Option func(*Processor)

// WithInput sets the reader of the interactive loop
func WithInput(r io.Reader) Option {
	return func(p *Processor) { p.in = r }
}

// WithOutput sets where user-facing output goes
func WithOutput(w io.Writer) Option {
	return func(p *Processor) { p.out = w }
}

// WithLogger sets the logger
func WithLogger(log zerolog.Logger) Option {
	return func(p *Processor) { p.log = log }
}

// WithSessionOptions passes options to the translation session
func WithSessionOptions(opts ...session.Option) Option {
	return func(p *Processor) { p.sessionOpts = append(p.sessionOpts, opts...) }
}

// WithFallback sets the provider used when the local model fails
func WithFallback(fallback translation.Provider) Option {
	return func(p *Processor) { p.fallback = fallback }
}

// WithModelLister sets the source of repository file listings
func WithModelLister(files models.FileLister) Option {
	return func(p *Processor) { p.lister = models.NewLister(files) }
}

// WithRetryDelay sets the base delay between batch retries
func WithRetryDelay(d time.Duration) Option {
	return func(p *Processor) { p.retryDelay = d }
}

// NewProcessor creates a processor from the flags
func NewProcessor(ctx context.Context, flags *cli.Flags, opts ...Option) (*Processor, error) {
	p := &Processor{
		flags:            flags,
		translationCache: translation.NewTranslationCache(),
		in:               os.Stdin,
		out:              os.Stdout,
		retryDelay:       time.Second,
	}
	logConfig := flags.LoggingConfig()
	logConfig.ApplyDefaults()
	if err := logConfig.Validate(); err != nil {
		return nil, err
	}
	p.log = logging.New(logConfig)
	for _, opt := range opts {
		opt(p)
	}

	config, err := flags.SessionConfig()
	if err != nil {
		return nil, err
	}
	p.hubConfig = config.Hub
	p.hubConfig.Token = config.Token

	s := session.New(config, append([]session.Option{session.WithLogger(p.log)}, p.sessionOpts...)...)
	p.local = translation.NewLocalProvider(s)
	p.provider = p.local

	if p.fallback == nil && flags.Fallback != "" {
		p.fallback, err = translation.NewProvider(ctx, flags.ProviderConfig())
		if err != nil {
			return nil, fmt.Errorf("failed to create fallback provider: %w", err)
		}
	}
	if p.fallback != nil {
		if err := p.fallback.IsAvailable(); err != nil {
			return nil, fmt.Errorf("fallback provider %s is unavailable: %w", p.fallback.Name(), err)
		}
		p.provider = translation.NewProviderWithFallback(p.local, p.fallback, p.log)
	}

	if !flags.NoHistory {
		path := flags.HistoryPath
		if path == "" {
			path = memory.DefaultPath()
		}
		p.history, err = memory.Open(path)
		if err != nil {
			return nil, err
		}
	}

	return p, nil
}

// Close releases the engine and the history database
func (p *Processor) Close() error {
	errs := []error{p.local.Close()}
	if p.history != nil {
		errs = append(errs, p.history.Close())
	}
	return errors.Join(errs...)
}

// translate looks text up in the cache, then asks the provider and records
// the result
func (p *Processor) translate(ctx context.Context, text string) (string, error) {
	if translated, ok := p.translationCache.Get(text); ok {
		return translated, nil
	}

	translated, err := p.provider.Translate(ctx, text)
	if err != nil {
		return "", err
	}

	p.translationCache.Add(text, translated)
	p.record(ctx, text, translated)
	return translated, nil
}

func (p *Processor) record(ctx context.Context, text, translated string) {
	if p.history == nil || text == "" {
		return
	}
	_, err := p.history.Save(ctx, memory.Entry{
		Source:      text,
		Translation: translated,
		Provider:    p.provider.Name(),
		RepoID:      p.flags.RepoID,
	})
	if err != nil {
		p.log.Warn().Err(err).Msg("failed to record translation")
	}
}
