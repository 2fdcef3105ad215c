package session

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"

	"codeberg.org/snonux/bn2en/internal"
	"codeberg.org/snonux/bn2en/internal/device"
	"codeberg.org/snonux/bn2en/internal/engine"
	"codeberg.org/snonux/bn2en/internal/hub"
	"codeberg.org/snonux/bn2en/internal/tokenizer"
)

// Defaults
const (
	DefaultRepoID     = "nascenia/bn2en_base"
	DefaultRevision   = "main"
	DefaultSourceLang = "bn"
	DefaultTargetLang = "en"
)

// Config holds the session settings
type Config struct {
	RepoID     string
	BaseDir    string
	Device     device.Device
	Token      string
	Revision   string
	SourceLang string
	TargetLang string

	Engine *engine.Config
	Hub    *hub.Config
}

// DefaultConfig returns default configuration
func DefaultConfig() *Config {
	return &Config{
		RepoID:     DefaultRepoID,
		Revision:   DefaultRevision,
		SourceLang: DefaultSourceLang,
		TargetLang: DefaultTargetLang,
		Engine:     engine.DefaultConfig(),
		Hub:        hub.DefaultConfig(),
	}
}

// Fetcher mirrors a repository revision into a local directory
type Fetcher interface {
	Snapshot(ctx context.Context, repoID, revision, localDir string) (string, error)
}

// Option customises a Session
type Option func(*Session)

// WithFetcher replaces the model hub client
func WithFetcher(f Fetcher) Option {
	return func(s *Session) { s.fetcher = f }
}

// WithTokenizerLoader replaces the SentencePiece loader
func WithTokenizerLoader(l tokenizer.Loader) Option {
	return func(s *Session) { s.loadTokenizer = l }
}

// WithEngineFactory replaces the engine constructor
func WithEngineFactory(f engine.Factory) Option {
	return func(s *Session) { s.newEngine = f }
}

// WithLogger sets the logger
func WithLogger(log zerolog.Logger) Option {
	return func(s *Session) { s.log = log }
}

// WithDetector replaces accelerator detection
func WithDetector(d device.Detector) Option {
	return func(s *Session) { s.detect = d }
}

// Session is a configured, not yet ready, translation session
type Session struct {
	config Config
	id     string
	device device.Device

	fetcher       Fetcher
	loadTokenizer tokenizer.Loader
	newEngine     engine.Factory
	factoryErr    error
	detect        device.Detector
	log           zerolog.Logger
}

// New captures config. The only side effect is accelerator detection when no
// device is configured.
func New(config *Config, opts ...Option) *Session {
	cfg := *DefaultConfig()
	if config != nil {
		cfg = *config
	}
	if cfg.Revision == "" {
		cfg.Revision = DefaultRevision
	}
	if cfg.SourceLang == "" {
		cfg.SourceLang = DefaultSourceLang
	}
	if cfg.TargetLang == "" {
		cfg.TargetLang = DefaultTargetLang
	}
	if cfg.Engine == nil {
		cfg.Engine = engine.DefaultConfig()
	}
	if cfg.Hub == nil {
		cfg.Hub = hub.DefaultConfig()
	}

	s := &Session{
		config:        cfg,
		id:  internal.GenerateRequestID(),
		log: zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.log = s.log.With().Str("session", s.id).Str("repo", cfg.RepoID).Logger()
	s.device = device.Resolve(cfg.Device, s.detect)

	if s.fetcher == nil {
		hubConfig := *cfg.Hub
		if cfg.Token != "" {
			hubConfig.Token = cfg.Token
		}
		s.fetcher = hub.NewClient(&hubConfig, s.log)
	}
	if s.newEngine == nil {
		s.newEngine, s.factoryErr = engine.NewFactory(cfg.Engine, s.log)
	}
	if s.loadTokenizer == nil {
		s.loadTokenizer = tokenizer.NewLoader(cfg.Engine.Worker(), s.log)
	}

	return s
}

// ModelDir returns BaseDir/<repo name>, or just the repo name without BaseDir
func (s *Session) ModelDir() string {
	name := internal.RepoShortName(s.config.RepoID)
	if s.config.BaseDir == "" {
		return name
	}
	return filepath.Join(s.config.BaseDir, name)
}

// SourceModelPath returns the path of the source language tokenizer model
func (s *Session) SourceModelPath() string {
	return filepath.Join(s.ModelDir(), s.config.SourceLang+".model")
}

// TargetModelPath returns the path of the target language tokenizer model
func (s *Session) TargetModelPath() string {
	return filepath.Join(s.ModelDir(), s.config.TargetLang+".model")
}

// Setup downloads the model bundle, loads both tokenizers and starts the
// engine. The returned Translator is ready to use.
func (s *Session) Setup(ctx context.Context) (*Translator, error) {
	modelDir := s.ModelDir()
	log := s.log.With().Str("model_dir", modelDir).Logger()

	fail := func(err *Error) (*Translator, error) {
		log.Error().Err(err.Err).Str("kind", string(err.Kind)).Str("op", err.Op).Msg("error setting up translation system")
		return nil, err
	}

	if parent := filepath.Dir(modelDir); parent != "." {
		if err := os.MkdirAll(parent, 0755); err != nil {
			return fail(&Error{Kind: KindDownloadFailed, Op: "create base directory", Path: parent, Err: err})
		}
	}

	log.Info().Str("revision", s.config.Revision).Msg("downloading models from the model hub")
	if _, err := s.fetcher.Snapshot(ctx, s.config.RepoID, s.config.Revision, modelDir); err != nil {
		return fail(&Error{Kind: KindDownloadFailed, Op: "download", Path: s.config.RepoID, Err: err})
	}
	log.Info().Msg("models downloaded")

	sourcePath, targetPath := s.SourceModelPath(), s.TargetModelPath()
	for _, path := range []string{sourcePath, targetPath, modelDir} {
		if _, err := os.Stat(path); err != nil {
			return fail(&Error{Kind: KindArtifactMissing, Op: "locate artifact", Path: path, Err: err})
		}
	}

	source, err := s.loadTokenizer(sourcePath)
	if err != nil {
		return fail(&Error{Kind: KindTokenizerLoadFailed, Op: "load source tokenizer", Path: sourcePath, Err: err})
	}
	target, err := s.loadTokenizer(targetPath)
	if err != nil {
		closeTokenizers(source)
		return fail(&Error{Kind: KindTokenizerLoadFailed, Op: "load target tokenizer", Path: targetPath, Err: err})
	}

	if s.factoryErr != nil {
		closeTokenizers(source, target)
		return fail(&Error{Kind: KindEngineInitFailed, Op: "start engine", Path: modelDir, Err: s.factoryErr})
	}
	eng, err := s.newEngine(ctx, modelDir, s.device)
	if err == nil && eng == nil {
		err = fmt.Errorf("no engine returned")
	}
	if err != nil {
		closeTokenizers(source, target)
		return fail(&Error{Kind: KindEngineInitFailed, Op: "start engine", Path: modelDir, Err: err})
	}

	log.Info().Str("device", s.device.String()).Msg("translation system ready")

	return &Translator{
		source:   source,
		target:   target,
		engine:   eng,
		modelDir: modelDir,
		device:   s.device,
		log:      log,
	}, nil
}
