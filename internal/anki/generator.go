package anki

import (
	"encoding/csv"
	"fmt"
	"os"
	"strings"
)

// Card represents a single Anki flashcard
type Card struct {
	Bangla  string // The Bangla source text
	English string // The translation
	Notes   string // Optional notes, such as the provider that translated it
}

// GeneratorOptions configures the Anki export
type GeneratorOptions struct {
	OutputPath     string // Output CSV file path
	IncludeHeaders bool   // Include CSV headers
}

// DefaultGeneratorOptions returns sensible defaults
func DefaultGeneratorOptions() *GeneratorOptions {
	return &GeneratorOptions{
		OutputPath:     "anki_import.csv",
		IncludeHeaders: true,
	}
}

// Generator creates Anki-compatible import files
type Generator struct {
	options *GeneratorOptions
	cards   []Card
	seen    map[string]bool
}

// NewGenerator creates a new Anki generator
func NewGenerator(options *GeneratorOptions) *Generator {
	if options == nil {
		options = DefaultGeneratorOptions()
	}
	return &Generator{
		options: options,
		seen:    make(map[string]bool),
	}
}

// AddCard adds a card to the collection. Cards without text and repeated
// Bangla texts are ignored; it reports whether the card was added.
func (g *Generator) AddCard(card Card) bool {
	card.Bangla = strings.TrimSpace(card.Bangla)
	card.English = strings.TrimSpace(card.English)
	if card.Bangla == "" || card.English == "" || g.seen[card.Bangla] {
		return false
	}
	g.seen[card.Bangla] = true
	g.cards = append(g.cards, card)
	return true
}

// Cards returns the collected cards
func (g *Generator) Cards() []Card {
	return g.cards
}

// GenerateCSV creates a CSV file for Anki import
func (g *Generator) GenerateCSV() error {
	file, err := os.Create(g.options.OutputPath)
	if err != nil {
		return fmt.Errorf("failed to create CSV file: %w", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)

	if g.options.IncludeHeaders {
		if err := writer.Write([]string{"Bangla", "English", "Notes"}); err != nil {
			return fmt.Errorf("failed to write headers: %w", err)
		}
	}

	for _, card := range g.cards {
		if err := writer.Write([]string{card.Bangla, card.English, card.Notes}); err != nil {
			return fmt.Errorf("failed to write card: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return fmt.Errorf("failed to write CSV file: %w", err)
	}
	return nil
}

// GenerateAPKG creates a .apkg file holding one deck with all cards
func (g *Generator) GenerateAPKG(outputPath, deckName string) error {
	apkgGen := NewAPKGGenerator(deckName)
	for _, card := range g.cards {
		apkgGen.AddCard(card)
	}
	return apkgGen.GenerateAPKG(outputPath)
}
