package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"codeberg.org/snonux/bn2en/internal/device"
	"codeberg.org/snonux/bn2en/internal/engine"
	"codeberg.org/snonux/bn2en/internal/hub"
	"codeberg.org/snonux/bn2en/internal/logging"
	"codeberg.org/snonux/bn2en/internal/session"
	"codeberg.org/snonux/bn2en/internal/translation"
)

// Flags holds all command-line flag values
type Flags struct {
	// General flags
	CfgFile     string
	LogLevel    string
	LogFormat   string
	HistoryPath string
	NoHistory   bool
	Fallback    string

	// Model flags
	RepoID   string
	BaseDir  string
	Revision string
	Device   string

	// Engine flags
	Backend     string
	Python      string
	ComputeType string
	BeamSize    int

	// Hub flags
	HubEndpoint string

	// Batch flags
	BatchFile string
	OutputDir string
	Retries   int
	Archive   bool

	// History flags
	Limit int

	// Export flags
	ExportPath string
	DeckName   string
}

// NewFlags creates a new Flags instance with default values
func NewFlags() *Flags {
	return &Flags{
		LogLevel:    logging.DefaultLevel,
		LogFormat:   logging.FormatConsole,
		RepoID:      session.DefaultRepoID,
		Revision:    session.DefaultRevision,
		Device:      "auto",
		Backend:     engine.BackendCTranslate2,
		Python:      "python3",
		ComputeType: "default",
		BeamSize:    2,
		HubEndpoint: hub.DefaultEndpoint,
		Retries:     2,
		Limit:       20,
		ExportPath:  "bn2en.apkg",
		DeckName:    "Bangla",
	}
}

// DefaultOutputDir returns the default batch output directory
func DefaultOutputDir() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".local", "state", "bn2en", "output")
}

// SessionConfig builds the session configuration from the flags
func (f *Flags) SessionConfig() (*session.Config, error) {
	dev, err := device.Parse(f.Device)
	if err != nil {
		return nil, err
	}
	if f.BeamSize < 0 {
		return nil, fmt.Errorf("invalid beam size %d", f.BeamSize)
	}

	engineConfig := engine.DefaultConfig()
	engineConfig.Backend = f.Backend
	engineConfig.Python = f.Python
	engineConfig.ComputeType = f.ComputeType
	engineConfig.BeamSize = f.BeamSize

	hubConfig := hub.DefaultConfig()
	hubConfig.Endpoint = f.HubEndpoint

	return &session.Config{
		RepoID:     f.RepoID,
		BaseDir:    f.BaseDir,
		Device:     dev,
		Token:      GetHubToken(),
		Revision:   f.Revision,
		SourceLang: session.DefaultSourceLang,
		TargetLang: session.DefaultTargetLang,
		Engine:     engineConfig,
		Hub:        hubConfig,
	}, nil
}

// LoggingConfig builds the logger configuration from the flags
func (f *Flags) LoggingConfig() logging.Config {
	return logging.Config{
		Level:  f.LogLevel,
		Format: f.LogFormat,
	}
}

// ProviderConfig builds the fallback provider configuration from the flags
func (f *Flags) ProviderConfig() *translation.Config {
	config := translation.DefaultProviderConfig()
	config.Provider = f.Fallback
	config.OpenAIKey = GetOpenAIKey()
	config.GeminiKey = GetGeminiKey()
	return config
}
