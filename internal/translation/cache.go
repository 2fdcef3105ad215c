package translation

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// SaveTranslation appends "text = translation" to the translations file in dir
func SaveTranslation(dir, text, translation string) error {
	outputFile := filepath.Join(dir, "translations.txt")
	content := fmt.Sprintf("%s = %s\n", text, translation)

	f, err := os.OpenFile(outputFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to write translation file: %w", err)
	}
	defer f.Close()

	if _, err := f.WriteString(content); err != nil {
		return fmt.Errorf("failed to write translation file: %w", err)
	}

	return nil
}

// TranslationCache stores translations in memory
type TranslationCache struct {
	mu           sync.RWMutex
	translations map[string]string
}

// NewTranslationCache creates a new translation cache
func NewTranslationCache() *TranslationCache {
	return &TranslationCache{
		translations: make(map[string]string),
	}
}

// Add adds a translation to the cache
func (tc *TranslationCache) Add(text, translation string) {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	tc.translations[text] = translation
}

// Get retrieves a translation from the cache
func (tc *TranslationCache) Get(text string) (string, bool) {
	tc.mu.RLock()
	defer tc.mu.RUnlock()
	translation, ok := tc.translations[text]
	return translation, ok
}
