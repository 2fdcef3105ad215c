package processor

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"codeberg.org/snonux/bn2en/internal/anki"
	"codeberg.org/snonux/bn2en/internal/archive"
	"codeberg.org/snonux/bn2en/internal/batch"
	"codeberg.org/snonux/bn2en/internal/hub"
	"codeberg.org/snonux/bn2en/internal/models"
	"codeberg.org/snonux/bn2en/internal/session"
	"codeberg.org/snonux/bn2en/internal/translation"
)

// TranslateText translates a single text and prints the result
func (p *Processor) TranslateText(ctx context.Context, text string) error {
	translated, err := p.translate(ctx, strings.TrimSpace(text))
	if err != nil {
		fmt.Fprintln(p.out, MsgTranslationFailed)
		return err
	}
	fmt.Fprintf(p.out, "Translation: %s\n", translated)
	return nil
}

// Download fetches the model bundle and checks that it loads
func (p *Processor) Download(ctx context.Context) error {
	if err := p.local.Setup(ctx); err != nil {
		fmt.Fprintln(p.out, MsgInitFailed)
		return err
	}
	tr := p.local.Translator()
	fmt.Fprintf(p.out, "Models ready in: %s (device: %s)\n", tr.ModelDir(), tr.Device())
	return nil
}

// ListModels prints the files of a model repository
func (p *Processor) ListModels(ctx context.Context, repoID string) error {
	if p.lister == nil {
		p.lister = models.NewLister(hub.NewClient(p.hubConfig, p.log))
	}
	return p.lister.ListRepository(ctx, p.out, repoID, p.flags.Revision)
}

// ShowHistory prints the most recent translations
func (p *Processor) ShowHistory(ctx context.Context) error {
	if p.history == nil {
		return fmt.Errorf("history is disabled")
	}

	entries, err := p.history.Recent(ctx, p.flags.Limit)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		fmt.Fprintln(p.out, "No translations recorded yet")
		return nil
	}
	for _, e := range entries {
		fmt.Fprintf(p.out, "%s  [%s] %s = %s\n", e.CreatedAt.Format("2006-01-02 15:04"), e.Provider, e.Source, e.Translation)
	}
	return nil
}

// Export writes the whole history as Anki flashcards. The format follows
// the file extension: .csv for the import dialog, anything else is a .apkg
// package. Newer translations of a text win.
func (p *Processor) Export(ctx context.Context) error {
	if p.history == nil {
		return fmt.Errorf("history is disabled")
	}

	count, err := p.history.Count(ctx)
	if err != nil {
		return err
	}
	if count == 0 {
		fmt.Fprintln(p.out, "No translations recorded yet")
		return nil
	}
	entries, err := p.history.Recent(ctx, count)
	if err != nil {
		return err
	}

	outputPath := p.flags.ExportPath
	gen := anki.NewGenerator(&anki.GeneratorOptions{OutputPath: outputPath, IncludeHeaders: true})
	for _, e := range entries {
		gen.AddCard(anki.Card{Bangla: e.Source, English: e.Translation, Notes: e.Provider})
	}
	if len(gen.Cards()) == 0 {
		fmt.Fprintln(p.out, "No translations to export")
		return nil
	}

	if strings.EqualFold(filepath.Ext(outputPath), ".csv") {
		err = gen.GenerateCSV()
	} else {
		err = gen.GenerateAPKG(outputPath, p.flags.DeckName)
	}
	if err != nil {
		return fmt.Errorf("failed to export flashcards: %w", err)
	}

	fmt.Fprintf(p.out, "Exported %d cards to: %s\n", len(gen.Cards()), outputPath)
	return nil
}

// ProcessBatch translates every entry of the batch file into the output
// directory. Texts found in the history are not translated again.
func (p *Processor) ProcessBatch(ctx context.Context) error {
	entries, err := batch.ReadBatchFile(p.flags.BatchFile)
	if err != nil {
		return err
	}

	outputDir := p.flags.OutputDir
	if p.flags.Archive {
		if _, err := os.Stat(outputDir); err == nil {
			archivePath, err := archive.ArchiveOutputs(outputDir)
			if err != nil {
				return err
			}
			fmt.Fprintf(p.out, "Output directory archived to: %s\n", archivePath)
		}
	}
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	// Track statistics
	skippedCount := 0
	processedCount := 0
	errorCount := 0

	for i, entry := range entries {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		fmt.Fprintf(p.out, "\nProcessing %d/%d: %s\n", i+1, len(entries), entry.Source)

		if translated, ok := p.lookupHistory(ctx, entry.Source); ok {
			fmt.Fprintf(p.out, "  ✓ Skipping - already translated: %s\n", translated)
			if err := translation.SaveTranslation(outputDir, entry.Source, translated); err != nil {
				return err
			}
			skippedCount++
			continue
		}

		translated, err := p.translateWithRetry(ctx, entry.Source)
		if err != nil {
			fmt.Fprintf(p.out, "  %s (line %d): %v\n", MsgTranslationFailed, entry.Line, err)
			errorCount++
			continue
		}

		fmt.Fprintf(p.out, "  Translation: %s\n", translated)
		if entry.Reference != "" {
			fmt.Fprintf(p.out, "  Reference:   %s\n", entry.Reference)
		}
		if err := translation.SaveTranslation(outputDir, entry.Source, translated); err != nil {
			return err
		}
		processedCount++
	}

	// Print summary
	fmt.Fprintf(p.out, "\n=== Batch Processing Summary ===\n")
	fmt.Fprintf(p.out, "Total texts: %d\n", len(entries))
	fmt.Fprintf(p.out, "Translated: %d\n", processedCount)
	fmt.Fprintf(p.out, "Skipped (already translated): %d\n", skippedCount)
	if errorCount > 0 {
		fmt.Fprintf(p.out, "Errors: %d\n", errorCount)
	}
	fmt.Fprintf(p.out, "Results: %s\n", filepath.Join(outputDir, "translations.txt"))
	fmt.Fprintf(p.out, "================================\n")

	if errorCount > 0 && processedCount == 0 && skippedCount == 0 {
		return fmt.Errorf("all %d translations failed", errorCount)
	}
	return nil
}

func (p *Processor) lookupHistory(ctx context.Context, source string) (string, bool) {
	if p.history == nil {
		return "", false
	}
	e, found, err := p.history.Lookup(ctx, source, p.flags.RepoID)
	if err != nil {
		p.log.Warn().Err(err).Msg("history lookup failed")
		return "", false
	}
	return e.Translation, found
}

// translateWithRetry retries transient failures with a linear backoff
func (p *Processor) translateWithRetry(ctx context.Context, text string) (string, error) {
	var err error
	for attempt := 0; attempt <= p.flags.Retries; attempt++ {
		if attempt > 0 {
			p.log.Info().Int("attempt", attempt).Str("kind", string(session.KindOf(err))).Msg("retrying translation")
			select {
			case <-time.After(time.Duration(attempt) * p.retryDelay):
			case <-ctx.Done():
				return "", ctx.Err()
			}
		}

		var translated string
		translated, err = p.translate(ctx, text)
		if err == nil {
			return translated, nil
		}
		if !session.IsRetryable(err) {
			break
		}
	}
	return "", err
}
