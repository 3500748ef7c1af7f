package store

import (
	"crypto/md5"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/danjacques/gofslock/fslock"
)

const offsetBytes = 8

// entry tracks the persisted byte offset for one file. Each entry holds an
// exclusive advisory lock on its store file until closed, so two processes
// never track the same file through the same store directory.
type entry struct {
	trackedPath string
	storeFile   *os.File
	lock        fslock.Handle
	createdAt   time.Time
}

// hashFileName derives the store file name for a tracked path. The fixed
// width hex digest makes any legal path representable as a file name.
func hashFileName(trackedPath string) string {
	sum := md5.Sum([]byte(trackedPath))
	return hex.EncodeToString(sum[:])
}

// openEntry opens (or creates) the store file for the tracked path, locks it
// and records the tracked file's current creation time for later identity
// checks. Returns fslock.ErrLockHeld when another process holds the entry.
func openEntry(directory, trackedPath string) (*entry, error) {
	storePath := filepath.Join(directory, hashFileName(trackedPath))

	lock, err := fslock.Lock(storePath)
	if err != nil {
		return nil, err
	}

	storeFile, err := os.OpenFile(storePath, os.O_RDWR|os.O_CREATE|os.O_SYNC, 0o644)
	if err != nil {
		_ = lock.Unlock()
		return nil, fmt.Errorf("opening store file for %s: %w", trackedPath, err)
	}

	createdAt, err := trackedCreationTime(trackedPath)
	if err != nil {
		_ = lock.Unlock()
		_ = storeFile.Close()
		return nil, err
	}

	return &entry{
		trackedPath: trackedPath,
		storeFile:   storeFile,
		lock:        lock,
		createdAt:   createdAt,
	}, nil
}

func trackedCreationTime(trackedPath string) (time.Time, error) {
	fi, err := os.Stat(trackedPath)
	if err != nil {
		return time.Time{}, fmt.Errorf("reading attributes of %s: %w", trackedPath, err)
	}
	return creationTime(fi), nil
}

// isSameFile verifies that the tracked path still refers to the file the
// entry was opened for, by comparing creation times.
func (e *entry) isSameFile() (bool, error) {
	current, err := trackedCreationTime(e.trackedPath)
	if err != nil {
		return false, err
	}
	return e.createdAt.Equal(current), nil
}

// position reads the stored offset. The second return is false when the
// store file holds no complete offset yet.
func (e *entry) position() (int64, bool, error) {
	buf := make([]byte, offsetBytes)
	n, err := e.storeFile.ReadAt(buf, 0)
	if err != nil && err != io.EOF {
		return 0, false, fmt.Errorf("reading stored position for %s: %w", e.trackedPath, err)
	}
	if n < offsetBytes {
		return 0, false, nil
	}
	return int64(binary.BigEndian.Uint64(buf)), true, nil
}

// setPosition writes the offset big-endian at the start of the store file
// and flushes it to stable storage.
func (e *entry) setPosition(offset int64) error {
	buf := make([]byte, offsetBytes)
	binary.BigEndian.PutUint64(buf, uint64(offset))
	if _, err := e.storeFile.WriteAt(buf, 0); err != nil {
		return fmt.Errorf("writing position for %s: %w", e.trackedPath, err)
	}
	if err := e.storeFile.Sync(); err != nil {
		return fmt.Errorf("syncing position for %s: %w", e.trackedPath, err)
	}
	return nil
}

// reset truncates the store file, discarding any stored offset.
func (e *entry) reset() error {
	if err := e.storeFile.Truncate(0); err != nil {
		return fmt.Errorf("truncating store file for %s: %w", e.trackedPath, err)
	}
	return nil
}

func (e *entry) close() error {
	lockErr := e.lock.Unlock()
	fileErr := e.storeFile.Close()
	if lockErr != nil {
		return lockErr
	}
	return fileErr
}
