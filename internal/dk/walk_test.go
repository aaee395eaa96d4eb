package dk_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dirkeep/internal/dk"
	dkfs "dirkeep/internal/fs"
	"dirkeep/internal/testutil"
)

func collect(t *testing.T, fsys dk.Filesystem, root string, recursive bool) ([]dk.TraversalEntry, error) {
	t.Helper()
	var out []dk.TraversalEntry
	for te, err := range dk.Walk(fsys, root, recursive) {
		if err != nil {
			return out, err
		}
		out = append(out, te)
	}
	return out, nil
}

func relPaths(entries []dk.TraversalEntry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = filepath.ToSlash(e.RelativePath)
	}
	return out
}

func TestWalk_PreOrderSortedByName(t *testing.T) {
	root := t.TempDir()
	testutil.WriteTree(t, root, map[string]string{
		"b.txt":        "bb",
		"a/z.txt":      "z",
		"a/m/deep.txt": "deep",
		"c/":           "",
	})

	entries, err := collect(t, dkfs.NewOSFilesystem(), root, true)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "a/m", "a/m/deep.txt", "a/z.txt", "b.txt", "c"}, relPaths(entries))

	for _, e := range entries {
		assert.Equal(t, filepath.Join(root, e.RelativePath), e.AbsolutePath)
		if e.IsDirectory {
			assert.Zero(t, e.Size, "directory %s size", e.RelativePath)
		}
	}
	assert.Equal(t, int64(2), entries[4].Size)
}

func TestWalk_NonRecursiveStaysAtTopLevel(t *testing.T) {
	root := t.TempDir()
	testutil.WriteTree(t, root, map[string]string{
		"top.txt":        "x",
		"sub/nested.txt": "y",
	})

	entries, err := collect(t, dkfs.NewOSFilesystem(), root, false)
	require.NoError(t, err)
	assert.Equal(t, []string{"sub", "top.txt"}, relPaths(entries))
}

func TestWalk_EmptyDirectory(t *testing.T) {
	entries, err := collect(t, dkfs.NewOSFilesystem(), t.TempDir(), true)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestWalk_SymlinksAreNotFollowed(t *testing.T) {
	root := t.TempDir()
	testutil.WriteTree(t, root, map[string]string{"sub/file.txt": "x"})
	if err := os.Symlink(root, filepath.Join(root, "sub", "loop")); err != nil {
		t.Skipf("symlinks unsupported: %v", err)
	}

	entries, err := collect(t, dkfs.NewOSFilesystem(), root, true)
	require.NoError(t, err)
	assert.Equal(t, []string{"sub", "sub/file.txt", "sub/loop"}, relPaths(entries))

	loop := entries[2]
	assert.True(t, loop.IsSymlink)
	assert.False(t, loop.IsDirectory)
}

func TestWalk_ReadErrorStopsTheWalk(t *testing.T) {
	root := t.TempDir()
	testutil.WriteTree(t, root, map[string]string{
		"a/file.txt": "x",
		"b/file.txt": "y",
	})
	fsys := testutil.NewFaultyFilesystem()
	fsys.Fail("ReadDir", filepath.Join(root, "a"), os.ErrPermission)

	entries, err := collect(t, fsys, root, true)
	require.Error(t, err)
	assert.True(t, errors.Is(err, dk.ErrRead))
	assert.True(t, errors.Is(err, os.ErrPermission))
	assert.Equal(t, []string{"a"}, relPaths(entries))
}

func TestWalk_ConsumerCanStopEarly(t *testing.T) {
	root := t.TempDir()
	testutil.WriteTree(t, root, map[string]string{"1": "", "2": "", "3": ""})

	var seen int
	for _, err := range dk.Walk(dkfs.NewOSFilesystem(), root, true) {
		require.NoError(t, err)
		seen++
		if seen == 2 {
			break
		}
	}
	assert.Equal(t, 2, seen)
}

func TestWalkSkipping_PrunesSkippedDirectories(t *testing.T) {
	root := t.TempDir()
	testutil.WriteTree(t, root, map[string]string{
		"a/file.txt":  "x",
		"b/file.txt":  "y",
		"b/c/deep.go": "z",
	})
	fsys := testutil.NewFaultyFilesystem()
	fsys.Fail("ReadDir", filepath.Join(root, "b"), os.ErrPermission)

	var entries []dk.TraversalEntry
	skip := func(te dk.TraversalEntry) bool { return te.RelativePath == "b" }
	for te, err := range dk.WalkSkipping(fsys, root, true, skip) {
		require.NoError(t, err)
		entries = append(entries, te)
	}
	assert.Equal(t, []string{"a", "a/file.txt"}, relPaths(entries))
}
