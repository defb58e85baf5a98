package audio

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// DefaultExtensions is the file dialog's audio filter.
var DefaultExtensions = []string{"mp3", "wav", "m4a", "ogg", "flac"}

var (
	ErrNoSource    = errors.New("no audio file selected")
	ErrIsDirectory = errors.New("audio source is a directory")
)

// Filter is a case-insensitive extension allow-list. It is a hint for
// listing candidates, not a format check: the engine decides what it can read.
type Filter struct {
	extensions []string
	allowed    map[string]struct{}
}

func NewFilter(extensions []string) Filter {
	f := Filter{allowed: make(map[string]struct{})}
	for _, ext := range extensions {
		ext = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), "."))
		if ext == "" {
			continue
		}
		if _, seen := f.allowed[ext]; seen {
			continue
		}
		f.allowed[ext] = struct{}{}
		f.extensions = append(f.extensions, ext)
	}
	if len(f.extensions) == 0 {
		return NewFilter(DefaultExtensions)
	}
	return f
}

func (f Filter) Extensions() []string {
	return append([]string(nil), f.extensions...)
}

func (f Filter) Allows(path string) bool {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
	_, ok := f.allowed[ext]
	return ok
}

// Pattern renders the filter the way file dialogs show it, e.g. "*.mp3 *.wav".
func (f Filter) Pattern() string {
	parts := make([]string, 0, len(f.extensions))
	for _, ext := range f.extensions {
		parts = append(parts, "*."+ext)
	}
	return strings.Join(parts, " ")
}

// ListCandidates returns the matching regular files directly inside dir,
// sorted by name.
func (f Filter) ListCandidates(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", dir, err)
	}

	var out []string
	for _, entry := range entries {
		if entry.IsDir() || !f.Allows(entry.Name()) {
			continue
		}
		out = append(out, filepath.Join(dir, entry.Name()))
	}
	sort.Strings(out)
	return out, nil
}

// CheckSource verifies that path names an existing regular file and returns
// it cleaned.
func CheckSource(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return "", ErrNoSource
	}

	cleaned := filepath.Clean(strings.TrimSpace(path))
	info, err := os.Stat(cleaned)
	if err != nil {
		return "", fmt.Errorf("audio file not found: %w", err)
	}
	if info.IsDir() {
		return "", fmt.Errorf("%w: %s", ErrIsDirectory, cleaned)
	}
	return cleaned, nil
}
