package testutil

import (
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"dirkeep/internal/dk"
	dkfs "dirkeep/internal/fs"
)

// WriteTree creates files under root. Keys are slash-separated relative paths;
// a key ending in "/" creates an empty directory.
func WriteTree(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for rel, content := range files {
		p := filepath.Join(root, filepath.FromSlash(rel))
		if strings.HasSuffix(rel, "/") {
			if err := os.MkdirAll(p, 0755); err != nil {
				t.Fatalf("creating %s: %v", rel, err)
			}
			continue
		}
		if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
			t.Fatalf("creating parent of %s: %v", rel, err)
		}
		if err := os.WriteFile(p, []byte(content), 0644); err != nil {
			t.Fatalf("writing %s: %v", rel, err)
		}
	}
}

// FaultyFilesystem wraps the real filesystem and fails chosen calls.
// Faults are keyed by operation name ("Remove", "Open", ...) and absolute path.
type FaultyFilesystem struct {
	dk.Filesystem

	mu     sync.Mutex
	faults map[string]error
	calls  []string
}

// NewFaultyFilesystem wraps an OS filesystem.
func NewFaultyFilesystem() *FaultyFilesystem {
	return &FaultyFilesystem{
		Filesystem: dkfs.NewOSFilesystem(),
		faults:     make(map[string]error),
	}
}

// Fail makes op on path return err.
func (f *FaultyFilesystem) Fail(op, path string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.faults[op+" "+path] = err
}

// Calls returns the mutating calls made so far as "Op path" strings.
func (f *FaultyFilesystem) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.calls))
	copy(out, f.calls)
	return out
}

func (f *FaultyFilesystem) fault(op, path string, mutating bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if mutating {
		f.calls = append(f.calls, op+" "+path)
	}
	return f.faults[op+" "+path]
}

func (f *FaultyFilesystem) Stat(path string) (fs.FileInfo, error) {
	if err := f.fault("Stat", path, false); err != nil {
		return nil, err
	}
	return f.Filesystem.Stat(path)
}

func (f *FaultyFilesystem) ReadDir(path string) ([]fs.DirEntry, error) {
	if err := f.fault("ReadDir", path, false); err != nil {
		return nil, err
	}
	return f.Filesystem.ReadDir(path)
}

func (f *FaultyFilesystem) Open(path string) (io.ReadCloser, error) {
	if err := f.fault("Open", path, false); err != nil {
		return nil, err
	}
	return f.Filesystem.Open(path)
}

func (f *FaultyFilesystem) Remove(path string) error {
	if err := f.fault("Remove", path, true); err != nil {
		return err
	}
	return f.Filesystem.Remove(path)
}

func (f *FaultyFilesystem) RemoveAll(path string) error {
	if err := f.fault("RemoveAll", path, true); err != nil {
		return err
	}
	return f.Filesystem.RemoveAll(path)
}

func (f *FaultyFilesystem) MkdirAll(path string, perm fs.FileMode) error {
	if err := f.fault("MkdirAll", path, true); err != nil {
		return err
	}
	return f.Filesystem.MkdirAll(path, perm)
}

func (f *FaultyFilesystem) CreateTemp(dir, pattern string) (dk.TempFile, error) {
	if err := f.fault("CreateTemp", dir, true); err != nil {
		return nil, err
	}
	return f.Filesystem.CreateTemp(dir, pattern)
}

var _ dk.Filesystem = (*FaultyFilesystem)(nil)
