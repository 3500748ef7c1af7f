// Package store persists the last-read byte offset per tracked file, so
// tailers can resume where they stopped across process restarts. Offsets are
// kept in one small file per tracked path inside a store directory, named by
// the md5 digest of the absolute tracked path and holding exactly eight
// big-endian bytes.
package store

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/danjacques/gofslock/fslock"

	"logalike/internal/constants"
	"logalike/internal/logger"
)

// Store manages position entries under one directory. Lock contention on an
// entry is demoted to "no persistence": lookups simply report no stored
// offset and writes are dropped with a warning.
type Store struct {
	directory string
	logger    logger.Logger

	mu      sync.Mutex
	entries map[string]*entry
	closed  bool
}

// DefaultDirectory returns the store directory used when none is
// configured: ".logalike_store" under the user's home directory.
func DefaultDirectory() string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return filepath.Join(home, constants.StoreDirectoryName)
}

// New opens a store under the given directory, creating it when missing.
// Fails when the path exists and is not a directory.
func New(directory string, log logger.Logger) (*Store, error) {
	if log == nil {
		log = logger.NopLogger()
	}
	fi, err := os.Stat(directory)
	switch {
	case err == nil && !fi.IsDir():
		return nil, fmt.Errorf("position store path %s exists and is not a directory", directory)
	case err != nil && os.IsNotExist(err):
		if err := os.MkdirAll(directory, 0o755); err != nil {
			return nil, fmt.Errorf("creating position store directory %s: %w", directory, err)
		}
	case err != nil:
		return nil, fmt.Errorf("checking position store directory %s: %w", directory, err)
	}
	return &Store{
		directory: directory,
		logger:    log,
		entries:   make(map[string]*entry),
	}, nil
}

// NewUnderDefaultDirectory opens a store under DefaultDirectory.
func NewUnderDefaultDirectory(log logger.Logger) (*Store, error) {
	return New(DefaultDirectory(), log)
}

// Position returns the stored offset for the tracked path. Reports no
// offset when no entry exists, the entry is locked by another process, or
// the tracked file's identity changed since the entry was opened (the stale
// entry is then discarded and reopened fresh).
func (s *Store) Position(trackedPath string) (int64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := s.entryLocked(trackedPath)
	if e == nil {
		return 0, false
	}

	same, err := e.isSameFile()
	if err != nil {
		s.logger.Warnw("Failed to verify tracked file identity", "file", trackedPath, "error", err)
		return 0, false
	}
	if !same {
		s.logger.Infow("Tracked file was recreated, discarding stored position", "file", trackedPath)
		s.replaceStaleLocked(trackedPath, e)
		return 0, false
	}

	offset, ok, err := e.position()
	if err != nil {
		s.logger.Warnw("Error when reading stored position", "file", trackedPath, "error", err)
		return 0, false
	}
	return offset, ok
}

// SetPosition persists the offset for the tracked path, creating the entry
// on first use. Errors are logged and swallowed so tailing continues
// without persistence.
func (s *Store) SetPosition(trackedPath string, offset int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := s.entryLocked(trackedPath)
	if e == nil {
		return
	}
	if err := e.setPosition(offset); err != nil {
		s.logger.Warnw("Error when setting stored position", "file", trackedPath, "error", err)
	}
}

// entryLocked returns the cached entry for the path, opening one when
// needed. Returns nil when the entry cannot be opened or locked.
func (s *Store) entryLocked(trackedPath string) *entry {
	if s.closed {
		return nil
	}
	if e, ok := s.entries[trackedPath]; ok {
		return e
	}
	e, err := openEntry(s.directory, trackedPath)
	if err != nil {
		if errors.Is(err, fslock.ErrLockHeld) {
			s.logger.Warnw("Position store entry is locked by another process, continuing without persistence",
				"file", trackedPath)
		} else {
			s.logger.Warnw("Failed to create position store entry", "file", trackedPath, "error", err)
		}
		return nil
	}
	s.entries[trackedPath] = e
	return e
}

// replaceStaleLocked swaps a stale entry for a fresh one recording the
// recreated file's identity. The stored offset is wiped.
func (s *Store) replaceStaleLocked(trackedPath string, stale *entry) {
	if err := stale.reset(); err != nil {
		s.logger.Warnw("Failed to reset stale store entry", "file", trackedPath, "error", err)
	}
	if err := stale.close(); err != nil {
		s.logger.Warnw("Failed to close stale store entry", "file", trackedPath, "error", err)
	}
	delete(s.entries, trackedPath)

	fresh, err := openEntry(s.directory, trackedPath)
	if err != nil {
		s.logger.Warnw("Failed to reopen store entry", "file", trackedPath, "error", err)
		return
	}
	s.entries[trackedPath] = fresh
}

// Close releases every held lock and file handle. Idempotent.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	var firstErr error
	for trackedPath, e := range s.entries {
		if err := e.close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("closing entry for %s: %w", trackedPath, err)
		}
	}
	s.entries = make(map[string]*entry)
	return firstErr
}
