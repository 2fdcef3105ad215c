package batch

import (
	"bufio"
	"fmt"
	"os"
	"strings"
)

const maxLineSize = 1024 * 1024

// Entry is one text to translate
type Entry struct {
	Line      int
	Source    string
	Reference string
}

// ReadBatchFile reads entries from a file
// Supports formats:
// - Bangla text only: "আমি ভাত খাই"
// - With a reference translation: "আমি ভাত খাই = I eat rice"
// Blank lines, "#" comments and lines without Bangla text are skipped.
func ReadBatchFile(filename string) ([]Entry, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read batch file: %w", err)
	}
	defer f.Close()

	var entries []Entry
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		source, reference, _ := strings.Cut(line, "=")
		source = strings.TrimSpace(source)
		if source == "" {
			continue
		}
		entries = append(entries, Entry{
			Line:      lineNo,
			Source:    source,
			Reference: strings.TrimSpace(reference),
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read batch file: %w", err)
	}

	return entries, nil
}
