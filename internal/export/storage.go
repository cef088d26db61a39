package export

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

var (
	reUnsafe = regexp.MustCompile(`[^a-zA-Z0-9\s\-_.]`)
	reSpaces = regexp.MustCompile(`\s+`)
)

// Storage writes export artifacts
type Storage interface {
	// Save writes data under a sanitized version of filename and returns the path
	Save(filename string, data []byte) (string, error)
}

// LocalStorage implements the Storage interface using local filesystem
type LocalStorage struct {
	basePath string
}

// NewLocalStorage creates a new LocalStorage instance
func NewLocalStorage(basePath string) (*LocalStorage, error) {
	// Create directory if it doesn't exist
	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, fmt.Errorf("creating export directory: %w", err)
	}

	return &LocalStorage{
		basePath: basePath,
	}, nil
}

// Save writes an artifact to the export directory
func (l *LocalStorage) Save(filename string, data []byte) (string, error) {
	path := filepath.Join(l.basePath, SanitizeFilename(filename))
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("writing file: %w", err)
	}
	return path, nil
}

// SanitizeFilename keeps letters, digits, spaces, dots, hyphens and
// underscores, collapses whitespace to hyphens and truncates long names
func SanitizeFilename(filename string) string {
	ext := filepath.Ext(filename)
	base := strings.TrimSuffix(filepath.Base(filename), ext)

	base = reUnsafe.ReplaceAllString(base, "")
	base = strings.TrimSpace(reSpaces.ReplaceAllString(base, " "))
	base = strings.ReplaceAll(base, " ", "-")

	// Truncate to reasonable length (50 chars for base, plus extension)
	const maxLen = 50
	if len(base) > maxLen {
		base = base[:maxLen]
	}

	if base == "" {
		base = "receipt"
	}

	return base + reUnsafe.ReplaceAllString(ext, "")
}

// ReceiptFilename names the printable document of a receipt
func ReceiptFilename(merchant, date string) string {
	return fmt.Sprintf("receipt %s %s.html", merchant, date)
}
