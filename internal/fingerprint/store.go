// Package fingerprint records which rendered payload was last published for
// each document.
//
// For a document "A.md" the store keeps two files in its directory:
//
//	A.md.confluence   the most recently rendered payload
//	A.md.lastSynced   hex SHA-256 of the payload last published successfully
//
// The .lastSynced file is only written after the remote publish succeeded, so
// a crash in between costs one redundant publish on the next run.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
)

const (
	// ContentSuffix is appended to a document name for its rendered payload.
	ContentSuffix = ".confluence"
	// SyncedSuffix is appended to a document name for its fingerprint.
	SyncedSuffix = ".lastSynced"
)

// Fingerprint is the lowercase hex SHA-256 of a rendered payload.
type Fingerprint string

// Compute returns the fingerprint of payload.
func Compute(payload []byte) Fingerprint {
	sum := sha256.Sum256(payload)
	return Fingerprint(hex.EncodeToString(sum[:]))
}

// Store persists fingerprints and rendered payloads under one directory.
// Each document owns its own files, so concurrent calls for different
// documents are safe.
type Store struct {
	fs  afero.Fs
	dir string
}

// NewStore creates a store rooted at dir. Nothing is created until the
// first write.
func NewStore(fs afero.Fs, dir string) *Store {
	return &Store{fs: fs, dir: dir}
}

// Dir returns the state directory.
func (s *Store) Dir() string {
	return s.dir
}

// WriteContent saves the rendered payload for doc.
func (s *Store) WriteContent(doc string, payload []byte) error {
	if err := s.fs.MkdirAll(s.dir, 0755); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}
	if err := afero.WriteFile(s.fs, s.path(doc, ContentSuffix), payload, 0644); err != nil {
		return fmt.Errorf("failed to write rendered content for %s: %w", doc, err)
	}
	return nil
}

// ReadPrevious returns the fingerprint recorded for doc. ok is false when no
// record exists.
func (s *Store) ReadPrevious(doc string) (fp Fingerprint, ok bool, err error) {
	data, err := afero.ReadFile(s.fs, s.path(doc, SyncedSuffix))
	if errors.Is(err, fs.ErrNotExist) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to read fingerprint for %s: %w", doc, err)
	}
	return Fingerprint(strings.TrimSpace(string(data))), true, nil
}

// Write records fp for doc. The file is replaced atomically so a reader
// never sees a partial fingerprint.
func (s *Store) Write(doc string, fp Fingerprint) error {
	if err := s.fs.MkdirAll(s.dir, 0755); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}

	tmp, err := afero.TempFile(s.fs, s.dir, "."+doc+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file for %s: %w", doc, err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.WriteString(string(fp)); err != nil {
		tmp.Close()
		_ = s.fs.Remove(tmpName)
		return fmt.Errorf("failed to write fingerprint for %s: %w", doc, err)
	}
	if err := tmp.Close(); err != nil {
		_ = s.fs.Remove(tmpName)
		return fmt.Errorf("failed to close temp file for %s: %w", doc, err)
	}
	if err := s.fs.Rename(tmpName, s.path(doc, SyncedSuffix)); err != nil {
		_ = s.fs.Remove(tmpName)
		return fmt.Errorf("failed to commit fingerprint for %s: %w", doc, err)
	}
	return nil
}

// Forget removes the fingerprint for doc so the next run republishes it.
func (s *Store) Forget(doc string) error {
	err := s.fs.Remove(s.path(doc, SyncedSuffix))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to forget fingerprint for %s: %w", doc, err)
	}
	return nil
}

func (s *Store) path(doc, suffix string) string {
	return filepath.Join(s.dir, doc+suffix)
}
