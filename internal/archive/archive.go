package archive

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// ArchiveOutputs moves the batch output directory into a sibling "archive"
// directory under a timestamped name and returns the new location
func ArchiveOutputs(outputDir string) (string, error) {
	if _, err := os.Stat(outputDir); os.IsNotExist(err) {
		return "", fmt.Errorf("output directory does not exist: %s", outputDir)
	}

	parentDir := filepath.Dir(filepath.Clean(outputDir))
	archiveDir := filepath.Join(parentDir, "archive")
	if err := os.MkdirAll(archiveDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create archive directory: %w", err)
	}

	prefix := filepath.Base(filepath.Clean(outputDir))
	archivePath := filepath.Join(archiveDir, fmt.Sprintf("%s-%s", prefix, time.Now().Format("20060102-150405")))

	// Same second: fall back to microseconds
	if _, err := os.Stat(archivePath); err == nil {
		archivePath = filepath.Join(archiveDir, fmt.Sprintf("%s-%s", prefix, time.Now().Format("20060102-150405.000000")))
	}

	if err := os.Rename(outputDir, archivePath); err != nil {
		return "", fmt.Errorf("failed to archive output directory: %w", err)
	}

	return archivePath, nil
}
