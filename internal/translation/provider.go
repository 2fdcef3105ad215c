package translation

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
)

// Provider names
const (
	ProviderLocal  = "local"
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"
)

// Provider defines the interface for translation providers
type Provider interface {
	// Translate translates Bangla text to English
	Translate(ctx context.Context, text string) (string, error)

	// Name returns the provider name
	Name() string

	// IsAvailable checks if the provider is properly configured and available
	IsAvailable() error
}

// Config holds configuration for the remote providers
type Config struct {
	Provider string // "openai" or "gemini"

	OpenAIKey     string
	OpenAIModel   string
	OpenAIBaseURL string

	GeminiKey     string
	GeminiModel   string
	GeminiBaseURL string
}

// DefaultProviderConfig returns default configuration
func DefaultProviderConfig() *Config {
	return &Config{
		Provider:    ProviderOpenAI,
		OpenAIModel: "gpt-4o-mini",
		GeminiModel: "gemini-2.0-flash",
	}
}

// NewProvider creates the remote provider named in config
func NewProvider(ctx context.Context, config *Config) (Provider, error) {
	if config == nil {
		config = DefaultProviderConfig()
	}

	switch config.Provider {
	case ProviderOpenAI:
		if config.OpenAIKey == "" {
			return nil, fmt.Errorf("OpenAI API key is required")
		}
		return NewOpenAIProvider(config)
	case ProviderGemini:
		if config.GeminiKey == "" {
			return nil, fmt.Errorf("Gemini API key is required")
		}
		return NewGeminiProvider(ctx, config)
	default:
		return nil, fmt.Errorf("unknown translation provider: %s", config.Provider)
	}
}

// ProviderWithFallback wraps a primary provider with a fallback option
type ProviderWithFallback struct {
	primary  Provider
	fallback Provider
	log      zerolog.Logger
}

// NewProviderWithFallback creates a provider that falls back to secondary if primary fails
func NewProviderWithFallback(primary, fallback Provider, log zerolog.Logger) Provider {
	return &ProviderWithFallback{
		primary:  primary,
		fallback: fallback,
		log:      log,
	}
}

// Translate tries the primary provider first and falls back to secondary on
// error. Both errors stay reachable through errors.Is and errors.As.
func (p *ProviderWithFallback) Translate(ctx context.Context, text string) (string, error) {
	translation, err := p.primary.Translate(ctx, text)
	if err == nil {
		return translation, nil
	}

	if availErr := p.fallback.IsAvailable(); availErr != nil {
		p.log.Warn().Err(err).AnErr("fallback_error", availErr).
			Str("fallback", p.fallback.Name()).
			Msg("primary provider failed, fallback unavailable")
		return "", err
	}

	p.log.Warn().Err(err).
		Str("primary", p.primary.Name()).
		Str("fallback", p.fallback.Name()).
		Msg("primary provider failed, falling back")

	translation, fallbackErr := p.fallback.Translate(ctx, text)
	if fallbackErr != nil {
		return "", fmt.Errorf("both providers failed: primary: %w, fallback: %w", err, fallbackErr)
	}
	return translation, nil
}

// Name returns the provider name
func (p *ProviderWithFallback) Name() string {
	return fmt.Sprintf("%s (fallback: %s)", p.primary.Name(), p.fallback.Name())
}

// IsAvailable checks if at least one provider is available
func (p *ProviderWithFallback) IsAvailable() error {
	primaryErr := p.primary.IsAvailable()
	if primaryErr == nil {
		return nil
	}

	fallbackErr := p.fallback.IsAvailable()
	if fallbackErr == nil {
		return nil
	}

	return fmt.Errorf("both providers unavailable: primary=%v, fallback=%v",
		primaryErr, fallbackErr)
}

func prompt(text string) string {
	return fmt.Sprintf("Translate the following Bangla text to English. Respond with only the English translation, nothing else.\n\n%s", text)
}
