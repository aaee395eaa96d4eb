package fs

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// AtomicFile is written under a temporary name in the destination directory and
// renamed onto its final name on Commit, so readers never observe a partial file.
type AtomicFile struct {
	f    *os.File
	done bool
}

// NewAtomicFile creates the temporary file in dir. Creating it in the destination
// directory keeps the final rename on one filesystem.
func NewAtomicFile(dir, pattern string) (*AtomicFile, error) {
	f, err := os.CreateTemp(dir, pattern)
	if err != nil {
		return nil, fmt.Errorf("failed to create temp file: %w", err)
	}
	return &AtomicFile{f: f}, nil
}

func (a *AtomicFile) Write(p []byte) (int, error) {
	return a.f.Write(p)
}

// Name returns the temporary path.
func (a *AtomicFile) Name() string {
	return a.f.Name()
}

// Commit syncs and closes the file, then renames it to dest.
// It refuses to replace an existing dest.
func (a *AtomicFile) Commit(dest string) error {
	if a.done {
		return errors.New("temp file already finished")
	}
	if err := a.f.Sync(); err != nil {
		return fmt.Errorf("failed to sync temp file: %w", err)
	}
	if err := a.f.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	a.done = true

	if _, err := os.Lstat(dest); err == nil {
		os.Remove(a.f.Name())
		return fmt.Errorf("%s: %w", dest, fs.ErrExist)
	}
	if err := os.Rename(a.f.Name(), filepath.Clean(dest)); err != nil {
		os.Remove(a.f.Name())
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	return nil
}

// Abort closes and removes the temporary file. It is a no-op after Commit.
func (a *AtomicFile) Abort() error {
	if a.done {
		return nil
	}
	a.done = true
	a.f.Close()
	if err := os.Remove(a.f.Name()); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to remove temp file: %w", err)
	}
	return nil
}
