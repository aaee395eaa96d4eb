package fs

import (
	"io"
	"io/fs"
	"os"

	"dirkeep/internal/dk"
)

// OSFilesystem is the real filesystem implementation of dk.Filesystem.
// It performs actual filesystem operations using the os package.
type OSFilesystem struct{}

// NewOSFilesystem creates a filesystem that operates on the real filesystem.
func NewOSFilesystem() *OSFilesystem {
	return &OSFilesystem{}
}

func (m *OSFilesystem) Stat(path string) (fs.FileInfo, error) {
	return os.Stat(path)
}

func (m *OSFilesystem) Lstat(path string) (fs.FileInfo, error) {
	return os.Lstat(path)
}

// ReadDir lists a directory sorted by name. Entry info is lstat-based.
func (m *OSFilesystem) ReadDir(path string) ([]fs.DirEntry, error) {
	return os.ReadDir(path)
}

func (m *OSFilesystem) Open(path string) (io.ReadCloser, error) {
	return os.Open(path)
}

func (m *OSFilesystem) Readlink(path string) (string, error) {
	return os.Readlink(path)
}

func (m *OSFilesystem) Remove(path string) error {
	return os.Remove(path)
}

func (m *OSFilesystem) RemoveAll(path string) error {
	return os.RemoveAll(path)
}

func (m *OSFilesystem) MkdirAll(path string, perm fs.FileMode) error {
	return os.MkdirAll(path, perm)
}

// CreateTemp creates a temporary file in dir; see AtomicFile.
func (m *OSFilesystem) CreateTemp(dir, pattern string) (dk.TempFile, error) {
	return NewAtomicFile(dir, pattern)
}

// Compile-time check that OSFilesystem implements dk.Filesystem
var _ dk.Filesystem = (*OSFilesystem)(nil)
