package translation

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

var geminiTemperature float32 = 0.2

// GeminiProvider translates with the Gemini API
type GeminiProvider struct {
	client *genai.Client
	config *Config
}

// NewGeminiProvider creates a new Gemini translation provider
func NewGeminiProvider(ctx context.Context, config *Config) (*GeminiProvider, error) {
	if config.GeminiKey == "" {
		return nil, fmt.Errorf("Gemini API key is required")
	}

	clientConfig := &genai.ClientConfig{
		APIKey:  config.GeminiKey,
		Backend: genai.BackendGeminiAPI,
	}
	if config.GeminiBaseURL != "" {
		clientConfig.HTTPOptions = genai.HTTPOptions{BaseURL: config.GeminiBaseURL}
	}

	client, err := genai.NewClient(ctx, clientConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	return &GeminiProvider{
		client: client,
		config: config,
	}, nil
}

// Translate translates text to English
func (p *GeminiProvider) Translate(ctx context.Context, text string) (string, error) {
	model := p.config.GeminiModel
	if model == "" {
		model = DefaultProviderConfig().GeminiModel
	}

	resp, err := p.client.Models.GenerateContent(ctx, model, genai.Text(prompt(text)), &genai.GenerateContentConfig{
		Temperature: &geminiTemperature,
	})
	if err != nil {
		return "", fmt.Errorf("Gemini API error: %w", err)
	}

	translation := strings.TrimSpace(resp.Text())
	if translation == "" {
		return "", fmt.Errorf("no translation returned")
	}
	return translation, nil
}

// Name returns the provider name
func (p *GeminiProvider) Name() string {
	return ProviderGemini
}

// IsAvailable checks that an API key is configured
func (p *GeminiProvider) IsAvailable() error {
	if p.config.GeminiKey == "" {
		return fmt.Errorf("Gemini API key not found")
	}
	return nil
}
