package dk

import (
	"io"
	"io/fs"
)

// Filesystem abstracts the filesystem calls made by the walker, the directory
// operations and the archiver, so tests can inject failures.
type Filesystem interface {
	// Stat follows symlinks; used to validate entry roots at dispatch time.
	Stat(path string) (fs.FileInfo, error)

	// Lstat does not follow symlinks.
	Lstat(path string) (fs.FileInfo, error)

	// ReadDir lists a directory. Entry info must describe the entry itself,
	// not a symlink target.
	ReadDir(path string) ([]fs.DirEntry, error)

	// Open opens a file for reading.
	Open(path string) (io.ReadCloser, error)

	// Readlink returns the target of a symbolic link.
	Readlink(path string) (string, error)

	// Remove deletes a file, symlink or empty directory.
	Remove(path string) error

	// RemoveAll deletes path and everything beneath it.
	RemoveAll(path string) error

	// MkdirAll creates a directory and any missing parents.
	MkdirAll(path string, perm fs.FileMode) error

	// CreateTemp creates a temporary file in dir that is later committed
	// onto its final name or aborted.
	CreateTemp(dir, pattern string) (TempFile, error)
}

// TempFile is a file being written that only appears under its final name on Commit.
type TempFile interface {
	io.Writer

	// Name returns the temporary path.
	Name() string

	// Commit closes the file and renames it to dest. It fails if dest already exists.
	Commit(dest string) error

	// Abort closes and removes the temporary file. Safe to call after Commit.
	Abort() error
}

// PathMatcher decides whether a path relative to an archive source root is excluded.
type PathMatcher interface {
	Match(relativePath string) bool
}
