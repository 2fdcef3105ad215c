package anki

import (
	"archive/zip"
	"database/sql"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNewAPKGGenerator(t *testing.T) {
	gen := NewAPKGGenerator("Test Deck")

	if gen.deckName != "Test Deck" {
		t.Errorf("Expected deck name 'Test Deck', got '%s'", gen.deckName)
	}
	if gen.modelID == gen.deckID {
		t.Error("model and deck IDs should differ")
	}
	if len(gen.cards) != 0 {
		t.Errorf("Expected empty cards slice, got %d cards", len(gen.cards))
	}
}

func TestChecksum(t *testing.T) {
	if checksum("book") == checksum("books") {
		t.Error("different fields should have different checksums")
	}
	if checksum("বই") != checksum("বই") {
		t.Error("checksum is not deterministic")
	}
	if checksum("বই") < 0 {
		t.Error("checksum should be positive")
	}
}

// extractCollection unpacks the collection database of an .apkg file
func extractCollection(t *testing.T, apkgPath string) (string, map[string]bool) {
	t.Helper()

	reader, err := zip.OpenReader(apkgPath)
	if err != nil {
		t.Fatalf("Generated file is not a valid zip: %v", err)
	}
	defer reader.Close()

	names := make(map[string]bool)
	dbPath := filepath.Join(t.TempDir(), "collection.anki2")
	for _, f := range reader.File {
		names[f.Name] = true
		if f.Name != "collection.anki2" {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			t.Fatalf("Failed to open collection: %v", err)
		}
		out, err := os.Create(dbPath)
		if err != nil {
			t.Fatalf("Failed to create collection copy: %v", err)
		}
		if _, err := io.Copy(out, rc); err != nil {
			t.Fatalf("Failed to extract collection: %v", err)
		}
		out.Close()
		rc.Close()
	}
	return dbPath, names
}

func TestGenerateAPKG(t *testing.T) {
	tempDir := t.TempDir()
	gen := NewGenerator(nil)
	gen.AddCard(Card{Bangla: "আমি ভাত খাই", English: "I eat rice", Notes: "local"})
	gen.AddCard(Card{Bangla: "বই", English: "book"})

	outputPath := filepath.Join(tempDir, "bn2en.apkg")
	if err := gen.GenerateAPKG(outputPath, "Bangla"); err != nil {
		t.Fatalf("GenerateAPKG() error = %v", err)
	}

	dbPath, names := extractCollection(t, outputPath)
	for _, name := range []string{"collection.anki2", "media"} {
		if !names[name] {
			t.Errorf("package is missing %s", name)
		}
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		t.Fatalf("Failed to open collection: %v", err)
	}
	defer db.Close()

	var notes, cards int
	if err := db.QueryRow("SELECT COUNT(*) FROM notes").Scan(&notes); err != nil {
		t.Fatalf("Failed to count notes: %v", err)
	}
	if err := db.QueryRow("SELECT COUNT(*) FROM cards").Scan(&cards); err != nil {
		t.Fatalf("Failed to count cards: %v", err)
	}
	if notes != 2 || cards != 4 {
		t.Errorf("Expected 2 notes and 4 cards, got %d and %d", notes, cards)
	}

	var flds, sfld, guid string
	err = db.QueryRow("SELECT flds, sfld, guid FROM notes WHERE sfld = ?", "আমি ভাত খাই").Scan(&flds, &sfld, &guid)
	if err != nil {
		t.Fatalf("Failed to read note: %v", err)
	}
	if fields := strings.Split(flds, fieldSeparator); len(fields) != 3 || fields[1] != "I eat rice" || fields[2] != "local" {
		t.Errorf("note fields = %q", fields)
	}

	var decks string
	if err := db.QueryRow("SELECT decks FROM col").Scan(&decks); err != nil {
		t.Fatalf("Failed to read decks: %v", err)
	}
	if !strings.Contains(decks, `"name":"Bangla"`) {
		t.Errorf("deck not found in %s", decks)
	}
}

func TestGenerateAPKG_StableGUID(t *testing.T) {
	guidOf := func() string {
		tempDir := t.TempDir()
		gen := NewAPKGGenerator("Bangla")
		gen.AddCard(Card{Bangla: "বই", English: "book"})
		outputPath := filepath.Join(tempDir, "deck.apkg")
		if err := gen.GenerateAPKG(outputPath); err != nil {
			t.Fatalf("GenerateAPKG() error = %v", err)
		}

		dbPath, _ := extractCollection(t, outputPath)
		db, err := sql.Open("sqlite3", dbPath)
		if err != nil {
			t.Fatalf("Failed to open collection: %v", err)
		}
		defer db.Close()

		var guid string
		if err := db.QueryRow("SELECT guid FROM notes").Scan(&guid); err != nil {
			t.Fatalf("Failed to read guid: %v", err)
		}
		return guid
	}

	if first, second := guidOf(), guidOf(); first != second {
		t.Errorf("GUIDs differ between exports: %s != %s", first, second)
	}
}

func TestGenerateAPKG_InvalidPath(t *testing.T) {
	gen := NewAPKGGenerator("Bangla")
	gen.AddCard(Card{Bangla: "বই", English: "book"})

	if err := gen.GenerateAPKG(filepath.Join(t.TempDir(), "missing", "deck.apkg")); err == nil {
		t.Error("Expected error for missing directory")
	}
}
