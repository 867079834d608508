// Package docs enumerates and reads the local documents that are published
// to the wiki.
package docs

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/afero"
)

// DefaultExtension is the document extension used when none is configured.
const DefaultExtension = ".md"

// Source is a directory of documents. A document is identified by its file
// name, which is also its remote page title.
type Source struct {
	fs  afero.Fs
	dir string
	ext string
}

// NewSource creates a Source over dir. An empty ext means DefaultExtension.
func NewSource(fs afero.Fs, dir, ext string) *Source {
	if ext == "" {
		ext = DefaultExtension
	}
	return &Source{fs: fs, dir: dir, ext: ext}
}

// Dir returns the source directory.
func (s *Source) Dir() string {
	return s.dir
}

// List returns the names of all regular files in the directory that end in
// the configured extension, sorted lexicographically. Subdirectories are not
// descended into.
func (s *Source) List() ([]string, error) {
	entries, err := afero.ReadDir(s.fs, s.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list documents in %s: %w", s.dir, err)
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() || !entry.Mode().IsRegular() {
			continue
		}
		if !strings.HasSuffix(entry.Name(), s.ext) {
			continue
		}
		names = append(names, entry.Name())
	}
	sort.Strings(names)
	return names, nil
}

// Path returns the full path of the named document.
func (s *Source) Path(name string) string {
	return filepath.Join(s.dir, name)
}

// Read returns the raw bytes of the named document.
func (s *Source) Read(name string) ([]byte, error) {
	data, err := afero.ReadFile(s.fs, s.Path(name))
	if err != nil {
		return nil, fmt.Errorf("failed to read document %s: %w", name, err)
	}
	return data, nil
}

// Exists reports whether the named document is present.
func (s *Source) Exists(name string) (bool, error) {
	ok, err := afero.Exists(s.fs, s.Path(name))
	if err != nil {
		return false, fmt.Errorf("failed to stat document %s: %w", name, err)
	}
	return ok, nil
}
