package testutil

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"testing"

	"codeberg.org/snonux/bn2en/internal/tokenizer"
)

// FakeTokenizer splits on whitespace and marks every word start with ▁
type FakeTokenizer struct {
	Path string
}

// EncodeAsPieces splits text into word pieces
func (f *FakeTokenizer) EncodeAsPieces(text string) []string {
	fields := strings.Fields(text)
	pieces := make([]string, 0, len(fields))
	for _, field := range fields {
		pieces = append(pieces, "▁"+field)
	}
	return pieces
}

// DecodePieces joins pieces the way a SentencePiece model does
func (f *FakeTokenizer) DecodePieces(pieces []string) string {
	return tokenizer.DecodePieces(pieces)
}

// FakeLoader returns a tokenizer.Loader that requires the model file to
// exist and fails for paths whose base name is listed in failing
func FakeLoader(failing ...string) tokenizer.Loader {
	return func(path string) (tokenizer.Tokenizer, error) {
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("%w: %s", tokenizer.ErrModelNotFound, path)
		}
		for _, name := range failing {
			if filepath.Base(path) == name {
				return nil, fmt.Errorf("failed to load sentencepiece model %s: unsupported model type", path)
			}
		}
		return &FakeTokenizer{Path: path}, nil
	}
}

// FakeFetcher writes Files into the snapshot directory
type FakeFetcher struct {
	Files map[string]string
	Err   error

	mu    sync.Mutex
	calls []string
}

// Snapshot records the call and materialises Files under localDir
func (f *FakeFetcher) Snapshot(ctx context.Context, repoID, revision, localDir string) (string, error) {
	f.mu.Lock()
	f.calls = append(f.calls, fmt.Sprintf("%s@%s -> %s", repoID, revision, localDir))
	f.mu.Unlock()

	if f.Err != nil {
		return "", f.Err
	}
	for name, content := range f.Files {
		path := filepath.Join(localDir, name)
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return "", err
		}
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			return "", err
		}
	}
	return localDir, nil
}

// Calls returns the recorded snapshot calls
func (f *FakeFetcher) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

// MockProvider mocks a translation provider
type MockProvider struct {
	ProviderName string
	Translations map[string]string
	Errors       map[string]error
	AvailableErr error

	mu    sync.Mutex
	calls []string
}

// Translate returns the configured translation or error for text
func (m *MockProvider) Translate(ctx context.Context, text string) (string, error) {
	m.mu.Lock()
	m.calls = append(m.calls, text)
	m.mu.Unlock()

	if err, ok := m.Errors[text]; ok {
		return "", err
	}
	if translation, ok := m.Translations[text]; ok {
		return translation, nil
	}
	return fmt.Sprintf("mock translation of %s", text), nil
}

// Name returns the provider name
func (m *MockProvider) Name() string {
	if m.ProviderName == "" {
		return "mock"
	}
	return m.ProviderName
}

// IsAvailable returns AvailableErr
func (m *MockProvider) IsAvailable() error {
	return m.AvailableErr
}

// Calls returns the texts passed to Translate
func (m *MockProvider) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.calls...)
}

// NewFakeHub starts a model hub serving files for repoID at any revision.
// It implements the repository info and file resolve endpoints.
func NewFakeHub(t *testing.T, repoID string, files map[string]string) *httptest.Server {
	t.Helper()

	names := make([]string, 0, len(files))
	for name := range files {
		names = append(names, name)
	}
	sort.Strings(names)

	infoPrefix := "/api/models/" + repoID + "/revision/"
	resolvePrefix := "/" + repoID + "/resolve/"

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasPrefix(r.URL.Path, infoPrefix):
			siblings := make([]map[string]interface{}, 0, len(names))
			for _, name := range names {
				siblings = append(siblings, map[string]interface{}{
					"rfilename": name,
					"size":      len(files[name]),
				})
			}
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(map[string]interface{}{
				"id":       repoID,
				"sha":      "0123456789abcdef",
				"siblings": siblings,
			})
		case strings.HasPrefix(r.URL.Path, resolvePrefix):
			rest := strings.TrimPrefix(r.URL.Path, resolvePrefix)
			// rest is "<revision>/<file>"
			_, name, ok := strings.Cut(rest, "/")
			content, found := files[name]
			if !ok || !found {
				http.NotFound(w, r)
				return
			}
			fmt.Fprint(w, content)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(server.Close)

	return server
}
