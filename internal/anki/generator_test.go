package anki

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultGeneratorOptions(t *testing.T) {
	opts := DefaultGeneratorOptions()

	if opts.OutputPath != "anki_import.csv" {
		t.Errorf("Expected output path 'anki_import.csv', got '%s'", opts.OutputPath)
	}
	if !opts.IncludeHeaders {
		t.Error("Expected IncludeHeaders to be true")
	}
}

func TestNewGenerator(t *testing.T) {
	gen := NewGenerator(nil)
	if gen.options == nil {
		t.Fatal("Generator options should not be nil")
	}

	gen = NewGenerator(&GeneratorOptions{OutputPath: "custom.csv"})
	if gen.options.OutputPath != "custom.csv" {
		t.Errorf("Expected custom output path, got '%s'", gen.options.OutputPath)
	}
}

func TestAddCard(t *testing.T) {
	tests := []struct {
		name string
		card Card
		want bool
	}{
		{"complete card", Card{Bangla: "আমি ভাত খাই", English: "I eat rice"}, true},
		{"duplicate text", Card{Bangla: " আমি ভাত খাই ", English: "I eat rice."}, false},
		{"missing translation", Card{Bangla: "বই", English: "  "}, false},
		{"missing source", Card{English: "book"}, false},
		{"another card", Card{Bangla: "বই", English: "book", Notes: "local"}, true},
	}

	gen := NewGenerator(nil)
	for _, tt := range tests {
		if got := gen.AddCard(tt.card); got != tt.want {
			t.Errorf("%s: AddCard() = %v, want %v", tt.name, got, tt.want)
		}
	}

	cards := gen.Cards()
	if len(cards) != 2 {
		t.Fatalf("Expected 2 cards, got %d", len(cards))
	}
	if cards[0].English != "I eat rice" {
		t.Errorf("first card kept the wrong translation: %q", cards[0].English)
	}
}

func TestGenerateCSV(t *testing.T) {
	tests := []struct {
		name        string
		headers     bool
		wantRecords int
	}{
		{"with headers", true, 3},
		{"without headers", false, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			outputPath := filepath.Join(t.TempDir(), "cards.csv")
			gen := NewGenerator(&GeneratorOptions{OutputPath: outputPath, IncludeHeaders: tt.headers})
			gen.AddCard(Card{Bangla: "আমি ভাত খাই", English: "I eat rice", Notes: "local"})
			gen.AddCard(Card{Bangla: "বই, খাতা", English: "book, notebook"})

			if err := gen.GenerateCSV(); err != nil {
				t.Fatalf("GenerateCSV() error = %v", err)
			}

			file, err := os.Open(outputPath)
			if err != nil {
				t.Fatalf("Failed to open CSV: %v", err)
			}
			defer file.Close()

			records, err := csv.NewReader(file).ReadAll()
			if err != nil {
				t.Fatalf("Failed to read CSV: %v", err)
			}
			if len(records) != tt.wantRecords {
				t.Fatalf("Expected %d records, got %d", tt.wantRecords, len(records))
			}

			last := records[len(records)-1]
			if last[0] != "বই, খাতা" || last[1] != "book, notebook" {
				t.Errorf("last record = %v", last)
			}
			if tt.headers && records[0][0] != "Bangla" {
				t.Errorf("header = %v", records[0])
			}
		})
	}
}

func TestGenerateCSV_InvalidPath(t *testing.T) {
	gen := NewGenerator(&GeneratorOptions{OutputPath: filepath.Join(t.TempDir(), "missing", "cards.csv")})
	gen.AddCard(Card{Bangla: "বই", English: "book"})

	if err := gen.GenerateCSV(); err == nil {
		t.Error("Expected error for missing directory")
	}
}
