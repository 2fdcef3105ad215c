package models

import (
	"context"
	"fmt"
	"io"
	"path"
	"sort"
	"strings"

	"codeberg.org/snonux/bn2en/internal/hub"
)

// FileLister lists the files of a repository revision
type FileLister interface {
	ListFiles(ctx context.Context, repoID, revision string) ([]hub.Sibling, error)
}

// Categories groups repository files by role
type Categories struct {
	Tokenizers []hub.Sibling
	Engine     []hub.Sibling
	Other      []hub.Sibling
}

// TotalSize returns the size of all files in bytes
func (c Categories) TotalSize() int64 {
	var total int64
	for _, group := range [][]hub.Sibling{c.Tokenizers, c.Engine, c.Other} {
		for _, s := range group {
			total += s.FileSize()
		}
	}
	return total
}

// Lister handles listing repository files
type Lister struct {
	files FileLister
}

// NewLister creates a new model lister
func NewLister(files FileLister) *Lister {
	return &Lister{files: files}
}

// Categorize sorts files into tokenizer models, engine files and the rest
func Categorize(files []hub.Sibling) Categories {
	var c Categories
	for _, f := range files {
		name := path.Base(f.Filename)
		switch {
		case strings.HasSuffix(name, ".model"):
			c.Tokenizers = append(c.Tokenizers, f)
		case name == "model.bin" || name == "config.json" || strings.Contains(name, "vocabulary"):
			c.Engine = append(c.Engine, f)
		default:
			c.Other = append(c.Other, f)
		}
	}

	for _, group := range [][]hub.Sibling{c.Tokenizers, c.Engine, c.Other} {
		sort.Slice(group, func(i, j int) bool { return group[i].Filename < group[j].Filename })
	}
	return c
}

// ListRepository writes the categorized file list of repoID to w
func (l *Lister) ListRepository(ctx context.Context, w io.Writer, repoID, revision string) error {
	files, err := l.files.ListFiles(ctx, repoID, revision)
	if err != nil {
		return fmt.Errorf("failed to list models: %w", err)
	}

	c := Categorize(files)
	fmt.Fprintf(w, "Files in %s:\n", repoID)
	printGroup(w, "Tokenizer models", c.Tokenizers)
	printGroup(w, "Inference engine", c.Engine)
	printGroup(w, "Other files", c.Other)
	fmt.Fprintf(w, "\nTotal: %d files, %s\n", len(files), humanSize(c.TotalSize()))

	if len(c.Tokenizers) < 2 || len(c.Engine) == 0 {
		fmt.Fprintln(w, "\nWarning: this repository does not look like a complete translation bundle")
	}
	return nil
}

func printGroup(w io.Writer, title string, files []hub.Sibling) {
	fmt.Fprintf(w, "\n%s:\n", title)
	if len(files) == 0 {
		fmt.Fprintln(w, "  none")
		return
	}
	for _, f := range files {
		fmt.Fprintf(w, "  %-40s %10s\n", f.Filename, humanSize(f.FileSize()))
	}
}

func humanSize(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for v := n / unit; v >= unit; v /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
