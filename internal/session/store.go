// Package session owns the authenticated session: its persistence, its
// lifecycle, and the single in-memory copy every other component reads
// through. The Manager is the only writer; readers get the session by
// accessor and never cache it.
package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"golang.org/x/oauth2"
)

// FilePerms restricts session files to owner-only read/write.
const FilePerms = 0o600

// DirPerms is used when creating the session directory.
const DirPerms = 0o700

// Store is the key-value persistence the session rides on. Absence is a
// valid state, not an error: Load returns (nil, nil) when nothing is
// stored, and Remove of a missing record is a no-op.
type Store interface {
	Load() (*Record, error)
	Save(*Record) error
	Remove() error
}

// Record is the persisted session shape. The bearer credential rides in an
// oauth2.Token (AccessToken holds the vault JWT; Expiry stays zero — the
// vault does not report token lifetime at login). Meta carries cached
// display fields: identifier, role, established-at.
type Record struct {
	Token *oauth2.Token     `json:"token"`
	Meta  map[string]string `json:"meta,omitempty"`
}

// Meta keys.
const (
	MetaIdentifier    = "identifier"
	MetaRole          = "role"
	MetaEstablishedAt = "established_at"
)

// FileStore persists the session record as a JSON file with atomic
// write-temp+rename and 0600 permissions. Token values are never logged.
type FileStore struct {
	path string
}

// NewFileStore creates a store backed by the given file path.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Load reads the saved session record. Returns (nil, nil) if the file does
// not exist.
func (s *FileStore) Load() (*Record, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil //nolint:nilnil // sentinel for "not found"
	}

	if err != nil {
		return nil, fmt.Errorf("session: reading %s: %w", s.path, err)
	}

	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("session: decoding %s: %w", s.path, err)
	}

	if rec.Token == nil || rec.Token.AccessToken == "" {
		return nil, fmt.Errorf("session: %s missing token (re-login required)", s.path)
	}

	return &rec, nil
}

// Save writes the session record to disk atomically (write-to-temp +
// rename) with 0600 permissions.
func (s *FileStore) Save(rec *Record) error {
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("session: encoding: %w", err)
	}

	dir := filepath.Dir(s.path)
	if mkErr := os.MkdirAll(dir, DirPerms); mkErr != nil {
		return fmt.Errorf("session: creating directory %s: %w", dir, mkErr)
	}

	// Atomic write: temp file in the same directory, then rename.
	// Same directory guarantees same filesystem for rename(2).
	tmp, err := os.CreateTemp(dir, ".session-*.tmp")
	if err != nil {
		return fmt.Errorf("session: creating temp file: %w", err)
	}

	tmpPath := tmp.Name()

	// Clean up temp file on any error path.
	success := false
	defer func() {
		if !success {
			_ = os.Remove(tmpPath)
		}
	}()

	if err := os.Chmod(tmpPath, FilePerms); err != nil {
		tmp.Close()
		return fmt.Errorf("session: setting permissions: %w", err)
	}

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("session: writing: %w", err)
	}

	// Flush to stable storage before rename so a power loss between close
	// and rename cannot leave an empty or partial session file.
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("session: syncing: %w", err)
	}

	if err := tmp.Close(); err != nil {
		return fmt.Errorf("session: closing: %w", err)
	}

	if err := os.Rename(tmpPath, s.path); err != nil {
		return fmt.Errorf("session: renaming: %w", err)
	}

	success = true

	return nil
}

// Remove deletes the stored session. Removing an absent session is a no-op.
func (s *FileStore) Remove() error {
	err := os.Remove(s.path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("session: removing %s: %w", s.path, err)
	}

	return nil
}
