package session

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"codeberg.org/snonux/bn2en/internal/device"
	"codeberg.org/snonux/bn2en/internal/engine"
	"codeberg.org/snonux/bn2en/internal/hub"
	"codeberg.org/snonux/bn2en/internal/testutil"
	"codeberg.org/snonux/bn2en/internal/tokenizer"
)

const sampleBangla = "আমি বাংলায় কথা বলি।"

func stubFactory(stub *engine.Stub) engine.Factory {
	return func(ctx context.Context, modelDir string, dev device.Device) (engine.Engine, error) {
		return stub, nil
	}
}

func newTestSession(t *testing.T, cfg *Config, stub *engine.Stub, opts ...Option) (*Session, *testutil.FakeFetcher) {
	t.Helper()
	fetcher := &testutil.FakeFetcher{Files: testutil.BundleFiles}
	base := []Option{
		WithFetcher(fetcher),
		WithTokenizerLoader(testutil.FakeLoader()),
		WithEngineFactory(stubFactory(stub)),
		WithDetector(func() bool { return false }),
	}
	return New(cfg, append(base, opts...)...), fetcher
}

func TestModelDir(t *testing.T) {
	tests := []struct {
		name       string
		repoID     string
		baseDir    string
		wantDir    string
		wantSource string
		wantTarget string
	}{
		{
			name:       "no base dir",
			repoID:     "org/bn2en_base",
			wantDir:    "bn2en_base",
			wantSource: filepath.Join("bn2en_base", "bn.model"),
			wantTarget: filepath.Join("bn2en_base", "en.model"),
		},
		{
			name:       "with base dir",
			repoID:     "nascenia/bn2en_base",
			baseDir:    "/srv/models",
			wantDir:    filepath.Join("/srv/models", "bn2en_base"),
			wantSource: filepath.Join("/srv/models", "bn2en_base", "bn.model"),
			wantTarget: filepath.Join("/srv/models", "bn2en_base", "en.model"),
		},
		{
			name:       "repo without owner",
			repoID:     "bn2en_base",
			wantDir:    "bn2en_base",
			wantSource: filepath.Join("bn2en_base", "bn.model"),
			wantTarget: filepath.Join("bn2en_base", "en.model"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, _ := newTestSession(t, &Config{RepoID: tt.repoID, BaseDir: tt.baseDir}, engine.NewStub(nil))
			if got := s.ModelDir(); got != tt.wantDir {
				t.Errorf("ModelDir() = %q, want %q", got, tt.wantDir)
			}
			if got := s.SourceModelPath(); got != tt.wantSource {
				t.Errorf("SourceModelPath() = %q, want %q", got, tt.wantSource)
			}
			if got := s.TargetModelPath(); got != tt.wantTarget {
				t.Errorf("TargetModelPath() = %q, want %q", got, tt.wantTarget)
			}
		})
	}
}

func TestNew_Defaults(t *testing.T) {
	s, _ := newTestSession(t, &Config{RepoID: "org/bn2en_base"}, engine.NewStub(nil))

	if s.config.Revision != DefaultRevision {
		t.Errorf("Revision = %q, want %q", s.config.Revision, DefaultRevision)
	}
	if s.config.SourceLang != "bn" || s.config.TargetLang != "en" {
		t.Errorf("languages = %s/%s, want bn/en", s.config.SourceLang, s.config.TargetLang)
	}
	if s.id == "" {
		t.Error("expected a session id")
	}

	d := New(nil, WithDetector(func() bool { return false }))
	if d.config.RepoID != DefaultRepoID {
		t.Errorf("RepoID = %q, want %q", d.config.RepoID, DefaultRepoID)
	}
	if d.loadTokenizer == nil {
		t.Error("expected a default tokenizer loader")
	}
}

func TestNew_Device(t *testing.T) {
	tests := []struct {
		name        string
		configured  device.Device
		accelerator bool
		want        device.Device
		wantDetect   bool
	}{
		{"auto with accelerator", device.Auto, true, device.CUDA, true},
		{"auto without accelerator", device.Auto, false, device.CPU, true},
		{"explicit cpu", device.CPU, true, device.CPU, false},
		{"explicit cuda", device.CUDA, false, device.CUDA, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			detected := 0
			s := New(&Config{RepoID: "org/m", Device: tt.configured},
				WithFetcher(&testutil.FakeFetcher{}),
				WithDetector(func() bool { detected++; return tt.accelerator }))

			if s.device != tt.want {
				t.Errorf("device = %s, want %s", s.device, tt.want)
			}
			if (detected > 0) != tt.wantDetect {
				t.Errorf("detector called %d times, wantDetect=%v", detected, tt.wantDetect)
			}
			if detected > 1 {
				t.Errorf("device resolved %d times, want once", detected)
			}
		})
	}
}

func TestSetup_Success(t *testing.T) {
	base := filepath.Join(t.TempDir(), "models", "nested")
	stub := engine.NewStub(&engine.StubConfig{Dictionary: map[string][]string{
		"▁আমি ▁বাংলায় ▁কথা ▁বলি।": {"▁I", "▁speak", "▁in", "▁Bangla", "."},
	}})
	s, fetcher := newTestSession(t, &Config{RepoID: "nascenia/bn2en_base", BaseDir: base}, stub)

	tr, err := s.Setup(context.Background())
	if err != nil {
		t.Fatalf("Setup failed: %v", err)
	}
	defer tr.Close()

	wantDir := filepath.Join(base, "bn2en_base")
	if tr.ModelDir() != wantDir {
		t.Errorf("ModelDir() = %q, want %q", tr.ModelDir(), wantDir)
	}
	calls := fetcher.Calls()
	if len(calls) != 1 || calls[0] != "nascenia/bn2en_base@main -> "+wantDir {
		t.Errorf("snapshot calls = %v", calls)
	}
	testutil.AssertFileExists(t, filepath.Join(wantDir, "bn.model"))

	got, err := tr.Translate(context.Background(), sampleBangla)
	if err != nil {
		t.Fatalf("Translate failed: %v", err)
	}
	if got != "I speak in Bangla." {
		t.Errorf("Translate() = %q, want %q", got, "I speak in Bangla.")
	}

	opts := stub.Options()
	if len(opts) != 1 || opts[0].BatchType != engine.BatchTypeTokens || opts[0].MaxBatchSize != MaxBatchSize {
		t.Errorf("batch options = %+v", opts)
	}

	if err := tr.Close(); err != nil {
		t.Errorf("Close failed: %v", err)
	}
	if !stub.Closed() {
		t.Error("engine not closed")
	}
}

func TestSetup_ThroughModelHub(t *testing.T) {
	server := testutil.NewFakeHub(t, "nascenia/bn2en_base", testutil.BundleFiles)

	hubConfig := hub.DefaultConfig()
	hubConfig.Endpoint = server.URL
	hubConfig.RetryCount = 0
	engineConfig := engine.DefaultConfig()
	engineConfig.Backend = engine.BackendStub

	base := t.TempDir()
	s := New(&Config{
		RepoID:  "nascenia/bn2en_base",
		BaseDir: base,
		Device:  device.CPU,
		Hub:     hubConfig,
		Engine:  engineConfig,
	}, WithTokenizerLoader(testutil.FakeLoader()))

	tr, err := s.Setup(context.Background())
	if err != nil {
		t.Fatalf("Setup failed: %v", err)
	}
	defer tr.Close()

	for name, content := range testutil.BundleFiles {
		testutil.AssertFileContent(t, filepath.Join(base, "bn2en_base", name), []byte(content))
	}

	// the stub echoes the pieces back
	got, err := tr.Translate(context.Background(), sampleBangla)
	if err != nil {
		t.Fatalf("Translate failed: %v", err)
	}
	if got != sampleBangla {
		t.Errorf("Translate() = %q, want %q", got, sampleBangla)
	}
}

func TestSetup_Failures(t *testing.T) {
	withoutTargetModel := map[string]string{}
	for k, v := range testutil.BundleFiles {
		if k != "en.model" {
			withoutTargetModel[k] = v
		}
	}

	tests := []struct {
		name      string
		opts      []Option
		config    *Config
		wantKind  Kind
		retryable bool
	}{
		{
			name:      "network failure",
			opts:      []Option{WithFetcher(&testutil.FakeFetcher{Err: fmt.Errorf("dial tcp: connection refused")})},
			wantKind:  KindDownloadFailed,
			retryable: true,
		},
		{
			name:     "unknown repository",
			opts:     []Option{WithFetcher(&testutil.FakeFetcher{Err: fmt.Errorf("repository org/missing: %w", hub.ErrNotFound)})},
			wantKind: KindDownloadFailed,
		},
		{
			name:     "bad credential",
			opts:     []Option{WithFetcher(&testutil.FakeFetcher{Err: hub.ErrUnauthorized})},
			wantKind: KindDownloadFailed,
		},
		{
			name:     "target tokenizer missing",
			opts:     []Option{WithFetcher(&testutil.FakeFetcher{Files: withoutTargetModel})},
			wantKind: KindArtifactMissing,
		},
		{
			name:     "source tokenizer unloadable",
			opts:     []Option{WithTokenizerLoader(testutil.FakeLoader("bn.model"))},
			wantKind: KindTokenizerLoadFailed,
		},
		{
			name: "engine fails to start",
			opts: []Option{WithEngineFactory(func(ctx context.Context, modelDir string, dev device.Device) (engine.Engine, error) {
				return nil, fmt.Errorf("%w: Unable to open file 'model.bin'", engine.ErrStartup)
			})},
			wantKind: KindEngineInitFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := tt.config
			if cfg == nil {
				cfg = &Config{RepoID: "org/bn2en_base", BaseDir: t.TempDir()}
			}
			s, _ := newTestSession(t, cfg, engine.NewStub(nil), tt.opts...)

			tr, err := s.Setup(context.Background())
			if err == nil {
				t.Fatal("expected error")
			}
			if tr != nil {
				t.Error("expected no translator on failure")
			}
			if KindOf(err) != tt.wantKind {
				t.Errorf("KindOf(err) = %q, want %q (%v)", KindOf(err), tt.wantKind, err)
			}
			if IsRetryable(err) != tt.retryable {
				t.Errorf("IsRetryable(err) = %v, want %v", IsRetryable(err), tt.retryable)
			}
		})
	}
}

func TestSetup_UnknownBackend(t *testing.T) {
	engineConfig := engine.DefaultConfig()
	engineConfig.Backend = "onnx"

	s := New(&Config{RepoID: "org/bn2en_base", BaseDir: t.TempDir(), Device: device.CPU, Engine: engineConfig},
		WithFetcher(&testutil.FakeFetcher{Files: testutil.BundleFiles}),
		WithTokenizerLoader(testutil.FakeLoader()))

	_, err := s.Setup(context.Background())
	if KindOf(err) != KindEngineInitFailed {
		t.Errorf("expected %s, got %v", KindEngineInitFailed, err)
	}
}

func TestSetup_Repeatable(t *testing.T) {
	fetcher := &testutil.FakeFetcher{Err: errors.New("temporary failure in name resolution")}
	s, _ := newTestSession(t, &Config{RepoID: "org/bn2en_base", BaseDir: t.TempDir()}, engine.NewStub(nil), WithFetcher(fetcher))

	if _, err := s.Setup(context.Background()); err == nil {
		t.Fatal("expected first setup to fail")
	}

	fetcher.Err = nil
	fetcher.Files = testutil.BundleFiles
	tr, err := s.Setup(context.Background())
	if err != nil {
		t.Fatalf("second Setup failed: %v", err)
	}
	tr.Close()
}

func TestTranslate_NotReady(t *testing.T) {
	var nilTranslator *Translator
	for name, tr := range map[string]*Translator{"nil": nilTranslator, "zero": {}} {
		t.Run(name, func(t *testing.T) {
			_, err := tr.Translate(context.Background(), sampleBangla)
			if KindOf(err) != KindNotReady {
				t.Errorf("expected %s, got %v", KindNotReady, err)
			}
			if !errors.Is(err, ErrNotReady) {
				t.Errorf("expected errors.Is(err, ErrNotReady), got %v", err)
			}
			if err := tr.Close(); err != nil {
				t.Errorf("Close on %s translator failed: %v", name, err)
			}
		})
	}
}

func TestTranslate_Deterministic(t *testing.T) {
	s, _ := newTestSession(t, &Config{RepoID: "org/bn2en_base", BaseDir: t.TempDir()}, engine.NewStub(nil))
	tr, err := s.Setup(context.Background())
	if err != nil {
		t.Fatalf("Setup failed: %v", err)
	}
	defer tr.Close()

	first, err := tr.Translate(context.Background(), sampleBangla)
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 5; i++ {
		again, err := tr.Translate(context.Background(), sampleBangla)
		if err != nil {
			t.Fatal(err)
		}
		if again != first {
			t.Fatalf("translation %d = %q, want %q", i, again, first)
		}
	}
}

func TestTranslate_EmptyInput(t *testing.T) {
	stub := engine.NewStub(nil)
	s, _ := newTestSession(t, &Config{RepoID: "org/bn2en_base", BaseDir: t.TempDir()}, stub)
	tr, err := s.Setup(context.Background())
	if err != nil {
		t.Fatalf("Setup failed: %v", err)
	}
	defer tr.Close()

	for _, input := range []string{"", "   ", "\n"} {
		got, err := tr.Translate(context.Background(), input)
		if err != nil {
			t.Errorf("Translate(%q) failed: %v", input, err)
		}
		if got != "" {
			t.Errorf("Translate(%q) = %q, want empty", input, got)
		}
	}
	if len(stub.Calls()) != 0 {
		t.Errorf("engine called %d times for empty input", len(stub.Calls()))
	}
}

func TestTranslate_NormalizesInput(t *testing.T) {
	stub := engine.NewStub(nil)
	s, _ := newTestSession(t, &Config{RepoID: "org/bn2en_base", BaseDir: t.TempDir()}, stub)
	tr, err := s.Setup(context.Background())
	if err != nil {
		t.Fatalf("Setup failed: %v", err)
	}
	defer tr.Close()

	// U+FB01 LATIN SMALL LIGATURE FI folds to "fi"
	got, err := tr.Translate(context.Background(), "ﬁle")
	if err != nil {
		t.Fatal(err)
	}
	if got != "file" {
		t.Errorf("Translate() = %q, want %q", got, "file")
	}
}

type panickingTokenizer struct {
	encode, decode bool
}

func (p panickingTokenizer) EncodeAsPieces(text string) []string {
	if p.encode {
		panic("encode")
	}
	if text == "nothing" {
		return nil
	}
	return []string{"▁" + text}
}

func (p panickingTokenizer) DecodePieces(pieces []string) string {
	if p.decode {
		panic("decode")
	}
	return tokenizer.DecodePieces(pieces)
}

// workerTokenizer behaves like a tokenizer backed by a worker process
type workerTokenizer struct {
	panickingTokenizer
	encodeErr, decodeErr error
	closed               int
}

func (w *workerTokenizer) Encode(ctx context.Context, text string) ([]string, error) {
	if w.encodeErr != nil {
		return nil, w.encodeErr
	}
	return w.EncodeAsPieces(text), nil
}

func (w *workerTokenizer) Decode(ctx context.Context, pieces []string) (string, error) {
	if w.decodeErr != nil {
		return "", w.decodeErr
	}
	return w.DecodePieces(pieces), nil
}

func (w *workerTokenizer) Close() error {
	w.closed++
	return nil
}

type emptyEngine struct{}

func (emptyEngine) TranslateBatch(ctx context.Context, batches [][]string, opts engine.BatchOptions) ([]engine.Result, error) {
	return []engine.Result{{}}, nil
}

func (emptyEngine) Close() error { return nil }

func TestTranslate_Failures(t *testing.T) {
	closed := engine.NewStub(nil)
	closed.Close()

	tests := []struct {
		name      string
		tr        *Translator
		input     string
		wantKind  Kind
		retryable bool
	}{
		{
			name:     "tokenizer panics",
			tr:       &Translator{source: panickingTokenizer{encode: true}, target: panickingTokenizer{}, engine: engine.NewStub(nil)},
			input:    "আমি",
			wantKind: KindTokenizeFailed,
		},
		{
			name:     "tokenizer produces nothing",
			tr:       &Translator{source: panickingTokenizer{}, target: panickingTokenizer{}, engine: engine.NewStub(nil)},
			input:    "nothing",
			wantKind: KindTokenizeFailed,
		},
		{
			name: "engine error",
			tr: &Translator{source: panickingTokenizer{}, target: panickingTokenizer{},
				engine: engine.NewStub(&engine.StubConfig{Err: engine.ErrWorkerExited})},
			input:     "আমি",
			wantKind:  KindEngineFailed,
			retryable: true,
		},
		{
			name:     "engine closed",
			tr:       &Translator{source: panickingTokenizer{}, target: panickingTokenizer{}, engine: closed},
			input:    "আমি",
			wantKind: KindEngineFailed,
		},
		{
			name:      "no hypothesis",
			tr:        &Translator{source: panickingTokenizer{}, target: panickingTokenizer{}, engine: emptyEngine{}},
			input:     "আমি",
			wantKind:  KindEngineFailed,
			retryable: true,
		},
		{
			name: "tokenizer worker fails",
			tr: &Translator{source: &workerTokenizer{encodeErr: errors.New("sentencepiece: RuntimeError")},
				target: panickingTokenizer{}, engine: engine.NewStub(nil)},
			input:    "আমি",
			wantKind: KindTokenizeFailed,
		},
		{
			name: "detokenizer worker fails",
			tr: &Translator{source: panickingTokenizer{},
				target: &workerTokenizer{decodeErr: errors.New("sentencepiece: RuntimeError")}, engine: engine.NewStub(nil)},
			input:    "আমি",
			wantKind: KindDetokenizeFailed,
		},
		{
			name:     "detokenizer panics",
			tr:       &Translator{source: panickingTokenizer{}, target: panickingTokenizer{decode: true}, engine: engine.NewStub(nil)},
			input:    "আমি",
			wantKind: KindDetokenizeFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.tr.Translate(context.Background(), tt.input)
			if err == nil {
				t.Fatalf("expected error, got %q", got)
			}
			if KindOf(err) != tt.wantKind {
				t.Errorf("KindOf(err) = %q, want %q (%v)", KindOf(err), tt.wantKind, err)
			}
			if IsRetryable(err) != tt.retryable {
				t.Errorf("IsRetryable(err) = %v, want %v", IsRetryable(err), tt.retryable)
			}
		})
	}
}

func TestTranslate_WorkerTokenizers(t *testing.T) {
	source, target := &workerTokenizer{}, &workerTokenizer{}
	tr := &Translator{source: source, target: target, engine: engine.NewStub(nil)}

	got, err := tr.Translate(context.Background(), "আমি")
	if err != nil {
		t.Fatalf("Translate failed: %v", err)
	}
	if got != "আমি" {
		t.Errorf("Translate() = %q, want %q", got, "আমি")
	}

	if err := tr.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if source.closed != 1 || target.closed != 1 {
		t.Errorf("tokenizers closed %d and %d times, want once each", source.closed, target.closed)
	}
}

func TestSetup_ClosesTokenizersOnFailure(t *testing.T) {
	var loaded []*workerTokenizer
	loader := func(path string) (tokenizer.Tokenizer, error) {
		tok := &workerTokenizer{}
		loaded = append(loaded, tok)
		return tok, nil
	}
	failing := WithEngineFactory(func(ctx context.Context, modelDir string, dev device.Device) (engine.Engine, error) {
		return nil, engine.ErrStartup
	})

	s, _ := newTestSession(t, &Config{RepoID: "org/bn2en_base", BaseDir: t.TempDir()}, engine.NewStub(nil),
		WithTokenizerLoader(loader), failing)
	if _, err := s.Setup(context.Background()); KindOf(err) != KindEngineInitFailed {
		t.Fatalf("expected %s, got %v", KindEngineInitFailed, err)
	}

	if len(loaded) != 2 {
		t.Fatalf("loaded %d tokenizers, want 2", len(loaded))
	}
	for i, tok := range loaded {
		if tok.closed != 1 {
			t.Errorf("tokenizer %d closed %d times, want 1", i, tok.closed)
		}
	}
}

func TestError(t *testing.T) {
	err := &Error{Kind: KindArtifactMissing, Op: "locate artifact", Path: "bn2en_base/en.model", Err: os.ErrNotExist}

	if !strings.Contains(err.Error(), "ARTIFACT_MISSING") || !strings.Contains(err.Error(), "bn2en_base/en.model") {
		t.Errorf("Error() = %q", err.Error())
	}
	if !errors.Is(err, os.ErrNotExist) {
		t.Error("expected Unwrap to expose the cause")
	}

	wrapped := fmt.Errorf("setup: %w", err)
	if KindOf(wrapped) != KindArtifactMissing {
		t.Errorf("KindOf(wrapped) = %q", KindOf(wrapped))
	}
	if KindOf(errors.New("plain")) != "" {
		t.Error("expected empty kind for foreign errors")
	}
}

func TestIntegration_Translate(t *testing.T) {
	if os.Getenv("BN2EN_INTEGRATION") == "" {
		t.Skip("Skipping integration test: BN2EN_INTEGRATION not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
	defer cancel()

	cfg := DefaultConfig()
	cfg.BaseDir = os.Getenv("MODEL_BASE_DIR")
	cfg.Token = os.Getenv("HUGGINGFACE_TOKEN")

	tr, err := New(cfg).Setup(ctx)
	if err != nil {
		t.Fatalf("Setup failed: %v", err)
	}
	defer tr.Close()

	got, err := tr.Translate(ctx, sampleBangla)
	if err != nil {
		t.Fatalf("Translate failed: %v", err)
	}
	if strings.TrimSpace(got) == "" {
		t.Error("expected non-empty translation")
	}
	t.Logf("%s -> %s", sampleBangla, got)
}
