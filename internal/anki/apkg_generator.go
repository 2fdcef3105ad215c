package anki

import (
	"archive/zip"
	"crypto/sha1"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

// fieldSeparator joins note fields in the notes table
const fieldSeparator = "\x1f"

// guidNamespace scopes the name based note GUIDs, so exporting the same text
// twice updates the existing note on import
var guidNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://codeberg.org/snonux/bn2en"))

// APKGGenerator creates Anki package files (.apkg)
type APKGGenerator struct {
	deckName string
	deckID   int64
	modelID  int64
	cards    []Card
	now      func() time.Time
}

// NewAPKGGenerator creates a new APKG generator
func NewAPKGGenerator(deckName string) *APKGGenerator {
	now := time.Now().UnixMilli()
	return &APKGGenerator{
		deckName: deckName,
		deckID:   now,
		modelID:  now + 1,
		now:      time.Now,
	}
}

// AddCard adds a card to the generator
func (g *APKGGenerator) AddCard(card Card) {
	g.cards = append(g.cards, card)
}

// GenerateAPKG creates an .apkg file
func (g *APKGGenerator) GenerateAPKG(outputPath string) error {
	tempDir, err := os.MkdirTemp("", "bn2en_anki_*")
	if err != nil {
		return fmt.Errorf("failed to create temp directory: %w", err)
	}
	defer os.RemoveAll(tempDir)

	// Text-only cards, the media map stays empty
	if err := os.WriteFile(filepath.Join(tempDir, "media"), []byte("{}"), 0644); err != nil {
		return fmt.Errorf("failed to create media mapping: %w", err)
	}

	if err := g.createDatabase(filepath.Join(tempDir, "collection.anki2")); err != nil {
		return fmt.Errorf("failed to create database: %w", err)
	}

	if err := createZipPackage(tempDir, outputPath); err != nil {
		return fmt.Errorf("failed to create zip package: %w", err)
	}
	return nil
}

func (g *APKGGenerator) createDatabase(dbPath string) error {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return err
	}
	defer db.Close()

	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := createTables(tx); err != nil {
		return fmt.Errorf("failed to create tables: %w", err)
	}
	if err := g.insertCollection(tx); err != nil {
		return fmt.Errorf("failed to insert collection: %w", err)
	}
	if err := g.insertNotesAndCards(tx); err != nil {
		return fmt.Errorf("failed to insert notes and cards: %w", err)
	}
	return tx.Commit()
}

// createTables creates the schema of an Anki 2.1 collection
func createTables(tx *sql.Tx) error {
	queries := []string{
		`CREATE TABLE col (
			id integer PRIMARY KEY, crt integer NOT NULL, mod integer NOT NULL,
			scm integer NOT NULL, ver integer NOT NULL, dty integer NOT NULL,
			usn integer NOT NULL, ls integer NOT NULL, conf text NOT NULL,
			models text NOT NULL, decks text NOT NULL, dconf text NOT NULL,
			tags text NOT NULL
		)`,
		`CREATE TABLE notes (
			id integer PRIMARY KEY, guid text NOT NULL, mid integer NOT NULL,
			mod integer NOT NULL, usn integer NOT NULL, tags text NOT NULL,
			flds text NOT NULL, sfld text NOT NULL, csum integer NOT NULL,
			flags integer NOT NULL, data text NOT NULL
		)`,
		`CREATE TABLE cards (
			id integer PRIMARY KEY, nid integer NOT NULL, did integer NOT NULL,
			ord integer NOT NULL, mod integer NOT NULL, usn integer NOT NULL,
			type integer NOT NULL, queue integer NOT NULL, due integer NOT NULL,
			ivl integer NOT NULL, factor integer NOT NULL, reps integer NOT NULL,
			lapses integer NOT NULL, left integer NOT NULL, odue integer NOT NULL,
			odid integer NOT NULL, flags integer NOT NULL, data text NOT NULL
		)`,
		`CREATE TABLE revlog (
			id integer PRIMARY KEY, cid integer NOT NULL, usn integer NOT NULL,
			ease integer NOT NULL, ivl integer NOT NULL, lastIvl integer NOT NULL,
			factor integer NOT NULL, time integer NOT NULL, type integer NOT NULL
		)`,
		`CREATE TABLE graves (usn integer NOT NULL, oid integer NOT NULL, type integer NOT NULL)`,
		`CREATE INDEX ix_notes_csum ON notes (csum)`,
		`CREATE INDEX ix_notes_usn ON notes (usn)`,
		`CREATE INDEX ix_cards_usn ON cards (usn)`,
		`CREATE INDEX ix_cards_nid ON cards (nid)`,
		`CREATE INDEX ix_cards_sched ON cards (did, queue, due)`,
		`CREATE INDEX ix_revlog_usn ON revlog (usn)`,
		`CREATE INDEX ix_revlog_cid ON revlog (cid)`,
	}

	for _, query := range queries {
		if _, err := tx.Exec(query); err != nil {
			return fmt.Errorf("failed to execute query: %w", err)
		}
	}
	return nil
}

func deckConfig(id int64, name, desc string, mod int64) map[string]any {
	return map[string]any{
		"id":               id,
		"name":             name,
		"mod":              mod,
		"desc":             desc,
		"collapsed":        false,
		"dyn":              0,
		"conf":             1,
		"usn":              0,
		"newToday":         []int{0, 0},
		"revToday":         []int{0, 0},
		"lrnToday":         []int{0, 0},
		"timeToday":        []int{0, 0},
		"browserCollapsed": false,
		"extendNew":        10,
		"extendRev":        50,
	}
}

func (g *APKGGenerator) insertCollection(tx *sql.Tx) error {
	now := g.now().Unix()

	decks := map[string]any{"1": deckConfig(1, "Default", "", now)}
	decks[fmt.Sprint(g.deckID)] = deckConfig(g.deckID, g.deckName, "Bangla to English translations exported by bn2en", now)
	models := map[string]any{
		fmt.Sprint(g.modelID): g.noteTypeConfig(now),
	}
	conf := map[string]any{
		"nextPos":       1,
		"estTimes":      true,
		"activeDecks":   []int64{1},
		"sortType":      "noteFld",
		"sortBackwards": false,
		"addToCur":      true,
		"curDeck":       1,
		"newSpread":     0,
		"dueCounts":     true,
		"collapseTime":  1200,
		"timeLim":       0,
		"schedVer":      1,
		"curModel":      fmt.Sprint(g.modelID),
		"dayLearnFirst": false,
	}
	dconf := map[string]any{
		"1": map[string]any{
			"id":   1,
			"name": "Default",
			"dyn":  0,
			"new": map[string]any{
				"delays":        []int{1, 10},
				"ints":          []int{1, 4, 7},
				"initialFactor": 2500,
				"perDay":        20,
				"order":         1,
				"bury":          true,
				"separate":      true,
			},
			"lapse": map[string]any{
				"delays":      []int{10},
				"mult":        0,
				"minInt":      1,
				"leechFails":  8,
				"leechAction": 0,
			},
			"rev": map[string]any{
				"perDay":   100,
				"ease4":    1.3,
				"fuzz":     0.05,
				"maxIvl":   36500,
				"ivlFct":   1,
				"bury":     true,
				"minSpace": 1,
			},
			"timer":    0,
			"maxTaken": 60,
			"usn":      0,
			"mod":      now,
			"autoplay": true,
			"replayq":  true,
		},
	}

	var encoded [4][]byte
	for i, v := range []any{conf, models, decks, dconf} {
		data, err := json.Marshal(v)
		if err != nil {
			return err
		}
		encoded[i] = data
	}

	_, err := tx.Exec(`INSERT INTO col VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		1,        // id
		now,      // crt
		now*1000, // mod
		now*1000, // scm
		11,       // ver (schema version)
		0,        // dty
		0,        // usn
		0,        // ls
		string(encoded[0]),
		string(encoded[1]),
		string(encoded[2]),
		string(encoded[3]),
		"{}", // tags
	)
	return err
}

// noteTypeConfig describes a basic note type with a reverse card
func (g *APKGGenerator) noteTypeConfig(mod int64) map[string]any {
	field := func(name string, ord, size int) map[string]any {
		return map[string]any{
			"name":   name,
			"ord":    ord,
			"sticky": false,
			"rtl":    false,
			"font":   "Noto Sans Bengali",
			"size":   size,
			"media":  []string{},
		}
	}
	template := func(name string, ord int, front, back string) map[string]any {
		return map[string]any{
			"name":  name,
			"ord":   ord,
			"qfmt":  front,
			"afmt":  back,
			"did":   nil,
			"bqfmt": "",
			"bafmt": "",
		}
	}

	return map[string]any{
		"id":        g.modelID,
		"name":      "bn2en (Bangla/English + Reverse)",
		"type":      0,
		"mod":       mod,
		"usn":       -1,
		"sortf":     0,
		"did":       g.deckID,
		"req":       [][]any{{0, "all", []int{0}}, {1, "all", []int{1}}},
		"vers":      []int{},
		"tags":      []string{},
		"latexPre":  "\\documentclass[12pt]{article}\n\\begin{document}",
		"latexPost": "\\end{document}",
		"flds": []map[string]any{
			field("Bangla", 0, 24),
			field("English", 1, 20),
			field("Notes", 2, 14),
		},
		"tmpls": []map[string]any{
			template("Bangla to English", 0,
				`<div class="bangla">{{Bangla}}</div>`,
				"{{FrontSide}}\n\n<hr id=\"answer\">\n\n<div class=\"english\">{{English}}</div>\n{{#Notes}}<div class=\"notes\">{{Notes}}</div>{{/Notes}}"),
			template("English to Bangla", 1,
				`<div class="english">{{English}}</div>`,
				"{{FrontSide}}\n\n<hr id=\"answer\">\n\n<div class=\"bangla\">{{Bangla}}</div>\n{{#Notes}}<div class=\"notes\">{{Notes}}</div>{{/Notes}}"),
		},
		"css": cardCSS,
	}
}

const cardCSS = `.card {
  font-family: "Noto Sans Bengali", Arial, sans-serif;
  font-size: 20px;
  text-align: center;
  color: #333;
  background-color: white;
}

.bangla {
  font-size: 30px;
  font-weight: bold;
  color: #006a4e;
  margin: 20px 0;
}

.english {
  font-size: 26px;
  color: #2c3e50;
  margin: 20px 0;
}

.notes {
  font-size: 14px;
  color: #7f8c8d;
  font-style: italic;
}`

func (g *APKGGenerator) insertNotesAndCards(tx *sql.Tx) error {
	now := g.now()

	for i, card := range g.cards {
		// Leave room for two cards per note
		noteID := now.UnixMilli() + int64(i*3)

		fields := strings.Join([]string{card.Bangla, card.English, card.Notes}, fieldSeparator)
		guid := uuid.NewSHA1(guidNamespace, []byte(card.Bangla)).String()

		_, err := tx.Exec(`INSERT INTO notes VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			noteID,                // id
			guid,                  // guid
			g.modelID,             // mid
			now.Unix(),            // mod
			-1,                    // usn
			"bn2en",               // tags
			fields,                // flds
			card.Bangla,           // sfld (sort field)
			checksum(card.Bangla), // csum
			0,                     // flags
			"",                    // data
		)
		if err != nil {
			return fmt.Errorf("failed to insert note: %w", err)
		}

		// Template 0 is Bangla to English, template 1 the reverse
		for ord := 0; ord < 2; ord++ {
			_, err = tx.Exec(`INSERT INTO cards VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				noteID+int64(ord)+1,    // id
				noteID,                 // nid
				g.deckID,               // did
				ord,                    // ord
				now.Unix(),             // mod
				-1,                     // usn
				0,                      // type (0=new)
				0,                      // queue (0=new)
				noteID+int64(ord),      // due (position for new cards)
				0, 0, 0, 0, 0, 0, 0, 0, // ivl, factor, reps, lapses, left, odue, odid, flags
				"",                     // data
			)
			if err != nil {
				return fmt.Errorf("failed to insert card: %w", err)
			}
		}
	}
	return nil
}

// checksum is the first 32 bits of the SHA-1 of the sort field, the way Anki
// detects duplicate notes
func checksum(field string) int64 {
	sum := sha1.Sum([]byte(field))
	return int64(binary.BigEndian.Uint32(sum[:4]))
}

func createZipPackage(tempDir, outputPath string) error {
	zipFile, err := os.Create(outputPath)
	if err != nil {
		return err
	}
	defer zipFile.Close()

	archive := zip.NewWriter(zipFile)

	entries, err := os.ReadDir(tempDir)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if err := addZipEntry(archive, filepath.Join(tempDir, entry.Name()), entry.Name()); err != nil {
			return err
		}
	}

	if err := archive.Close(); err != nil {
		return err
	}
	return zipFile.Close()
}

func addZipEntry(archive *zip.Writer, path, name string) error {
	writer, err := archive.Create(name)
	if err != nil {
		return err
	}
	file, err := os.Open(path)
	if err != nil {
		return err
	}
	defer file.Close()

	_, err = io.Copy(writer, file)
	return err
}
