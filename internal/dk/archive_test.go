package dk_test

import (
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/klauspost/compress/zip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dirkeep/internal/dk"
	dkfs "dirkeep/internal/fs"
	"dirkeep/internal/testutil"
)

// readArchive returns entry name -> content for every entry in the zip at path.
func readArchive(t *testing.T, path string) (map[string]string, []*zip.File) {
	t.Helper()
	r, err := zip.OpenReader(path)
	require.NoError(t, err)
	t.Cleanup(func() { r.Close() })

	contents := make(map[string]string)
	for _, f := range r.File {
		rc, err := f.Open()
		require.NoError(t, err)
		data, err := io.ReadAll(rc)
		rc.Close()
		require.NoError(t, err)
		contents[f.Name] = string(data)
	}
	return contents, r.File
}

func newArchiver(fsys dk.Filesystem, events dk.Events, opts dk.ArchiveOptions) *dk.Archiver {
	return dk.NewArchiver(fsys, events, dk.NewNopLogger(), opts)
}

func TestArchiver_RoundTrip(t *testing.T) {
	src := sampleTree(t)
	dest := t.TempDir()
	job := dk.NewArchiveJob(dest, src, "20240115103000")

	events := testutil.NewRecordingEvents()
	out, err := newArchiver(dkfs.NewOSFilesystem(), events, dk.ArchiveOptions{}).Archive(job)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(dest, filepath.Base(src)+"_20240115103000.zip"), job.DestinationFile)
	assert.Equal(t, job.DestinationFile, out.ArchiveFile)
	assert.Equal(t, int64(2), out.FilesTouched)
	assert.Equal(t, int64(27), out.BytesTouched)
	assert.Equal(t, int64(1), out.DirectoriesTouched)

	contents, files := readArchive(t, job.DestinationFile)
	assert.Equal(t, map[string]string{
		"file1.txt":        "Hello, world!",
		"subdir/":          "",
		"subdir/file2.txt": "Hello, subdir!",
	}, contents)

	for _, f := range files {
		assert.Equal(t, zip.Store, f.Method, "entry %s", f.Name)
		if strings.HasSuffix(f.Name, "/") {
			assert.True(t, f.Mode().IsDir(), "entry %s", f.Name)
			continue
		}
		assert.Equal(t, fs.FileMode(0o644), f.Mode().Perm(), "entry %s", f.Name)
	}

	// source untouched
	assert.FileExists(t, filepath.Join(src, "file1.txt"))
	assert.FileExists(t, filepath.Join(src, "subdir", "file2.txt"))

	written := testutil.EventsOf[dk.ArchiveEntryWritten](events)
	require.Len(t, written, 3)
	assert.Equal(t, "subdir/", written[1].Name)
	assert.True(t, written[1].IsDirectory)
	assert.Len(t, testutil.EventsOf[dk.ArchiveCompleted](events), 1)
}

func TestArchiver_EmptySource(t *testing.T) {
	src := t.TempDir()
	job := dk.NewArchiveJob(t.TempDir(), src, "20240115103000")

	out, err := newArchiver(dkfs.NewOSFilesystem(), dk.NopEvents{}, dk.ArchiveOptions{}).Archive(job)
	require.NoError(t, err)
	assert.Zero(t, out.FilesTouched)

	contents, _ := readArchive(t, job.DestinationFile)
	assert.Empty(t, contents)
}

func TestArchiver_EmptySubdirectoryKeepsMarker(t *testing.T) {
	src := t.TempDir()
	testutil.WriteTree(t, src, map[string]string{"empty/": ""})
	job := dk.NewArchiveJob(t.TempDir(), src, "20240115103000")

	_, err := newArchiver(dkfs.NewOSFilesystem(), dk.NopEvents{}, dk.ArchiveOptions{}).Archive(job)
	require.NoError(t, err)

	contents, _ := readArchive(t, job.DestinationFile)
	assert.Equal(t, map[string]string{"empty/": ""}, contents)
}

func TestArchiver_DeflateAndFileMode(t *testing.T) {
	src := sampleTree(t)
	job := dk.NewArchiveJob(t.TempDir(), src, "20240115103000")

	opts := dk.ArchiveOptions{Compression: dk.CompressionDeflate, FileMode: 0o600}
	_, err := newArchiver(dkfs.NewOSFilesystem(), dk.NopEvents{}, opts).Archive(job)
	require.NoError(t, err)

	contents, files := readArchive(t, job.DestinationFile)
	assert.Equal(t, "Hello, world!", contents["file1.txt"])
	for _, f := range files {
		if f.Name == "file1.txt" {
			assert.Equal(t, zip.Deflate, f.Method)
			assert.Equal(t, fs.FileMode(0o600), f.Mode().Perm())
		}
	}
}

func TestArchiver_UnknownCompression(t *testing.T) {
	src := sampleTree(t)
	dest := t.TempDir()
	job := dk.NewArchiveJob(dest, src, "20240115103000")

	_, err := newArchiver(dkfs.NewOSFilesystem(), dk.NopEvents{}, dk.ArchiveOptions{Compression: "lzma"}).Archive(job)
	assert.True(t, errors.Is(err, dk.ErrArchive))
	assert.NoFileExists(t, job.DestinationFile)
}

func TestArchiver_Exclude(t *testing.T) {
	src := t.TempDir()
	testutil.WriteTree(t, src, map[string]string{
		"keep.txt":        "keep",
		"scratch.tmp":     "drop",
		"cache/blob.bin":  "drop",
		"nested/keep.txt": "keep",
		"nested/x.tmp":    "drop",
	})
	job := dk.NewArchiveJob(t.TempDir(), src, "20240115103000")

	opts := dk.ArchiveOptions{Exclude: dkfs.NewExcludeMatcher([]string{"*.tmp", "cache/"})}
	out, err := newArchiver(dkfs.NewOSFilesystem(), dk.NopEvents{}, opts).Archive(job)
	require.NoError(t, err)

	contents, _ := readArchive(t, job.DestinationFile)
	assert.Equal(t, map[string]string{
		"keep.txt":        "keep",
		"nested/":         "",
		"nested/keep.txt": "keep",
	}, contents)
	assert.Equal(t, int64(2), out.FilesTouched)
}

func TestArchiver_ExcludedDirectoryIsNotRead(t *testing.T) {
	src := t.TempDir()
	testutil.WriteTree(t, src, map[string]string{
		"keep.txt":       "keep",
		"cache/blob.bin": "drop",
	})
	job := dk.NewArchiveJob(t.TempDir(), src, "20240115103000")

	fsys := testutil.NewFaultyFilesystem()
	fsys.Fail("ReadDir", filepath.Join(src, "cache"), os.ErrPermission)

	opts := dk.ArchiveOptions{Exclude: dkfs.NewExcludeMatcher([]string{"cache/"})}
	_, err := newArchiver(fsys, dk.NopEvents{}, opts).Archive(job)
	require.NoError(t, err)

	contents, _ := readArchive(t, job.DestinationFile)
	assert.Equal(t, map[string]string{"keep.txt": "keep"}, contents)
}

func TestArchiver_DestinationInsideSource(t *testing.T) {
	src := sampleTree(t)
	dest := filepath.Join(src, "archives")
	job := dk.NewArchiveJob(dest, src, "20240115103000")

	_, err := newArchiver(dkfs.NewOSFilesystem(), dk.NopEvents{}, dk.ArchiveOptions{}).Archive(job)
	require.NoError(t, err)

	contents, _ := readArchive(t, job.DestinationFile)
	for name := range contents {
		assert.False(t, strings.HasSuffix(name, ".zip"), "archive contains itself as %s", name)
		assert.False(t, strings.Contains(name, ".zip."), "archive contains its temp file as %s", name)
	}
	assert.Equal(t, "Hello, world!", contents["file1.txt"])
}

func TestArchiver_ExistingArchiveIsNotOverwritten(t *testing.T) {
	src := sampleTree(t)
	dest := t.TempDir()
	job := dk.NewArchiveJob(dest, src, "20240115103000")
	require.NoError(t, os.WriteFile(job.DestinationFile, []byte("previous"), 0o644))

	_, err := newArchiver(dkfs.NewOSFilesystem(), dk.NopEvents{}, dk.ArchiveOptions{}).Archive(job)
	require.Error(t, err)
	assert.True(t, errors.Is(err, dk.ErrArchive))
	assert.True(t, errors.Is(err, fs.ErrExist))

	data, err := os.ReadFile(job.DestinationFile)
	require.NoError(t, err)
	assert.Equal(t, "previous", string(data))
}

func TestArchiver_FailureLeavesNoPartialFile(t *testing.T) {
	src := sampleTree(t)
	dest := t.TempDir()
	job := dk.NewArchiveJob(dest, src, "20240115103000")

	fsys := testutil.NewFaultyFilesystem()
	fsys.Fail("Open", filepath.Join(src, "subdir", "file2.txt"), os.ErrPermission)

	_, err := newArchiver(fsys, dk.NopEvents{}, dk.ArchiveOptions{}).Archive(job)
	require.Error(t, err)
	assert.True(t, errors.Is(err, dk.ErrArchive))
	assert.True(t, errors.Is(err, os.ErrPermission))

	entries, err := os.ReadDir(dest)
	require.NoError(t, err)
	assert.Empty(t, entries, "destination must not hold a partial archive")
}

func TestArchiver_CreatesDestinationRoot(t *testing.T) {
	src := sampleTree(t)
	dest := filepath.Join(t.TempDir(), "a", "b")
	job := dk.NewArchiveJob(dest, src, "20240115103000")

	_, err := newArchiver(dkfs.NewOSFilesystem(), dk.NopEvents{}, dk.ArchiveOptions{}).Archive(job)
	require.NoError(t, err)
	assert.FileExists(t, job.DestinationFile)
}

func TestArchiver_SourceMustBeDirectory(t *testing.T) {
	src := sampleTree(t)
	job := dk.NewArchiveJob(t.TempDir(), filepath.Join(src, "file1.txt"), "20240115103000")

	_, err := newArchiver(dkfs.NewOSFilesystem(), dk.NopEvents{}, dk.ArchiveOptions{}).Archive(job)
	assert.True(t, errors.Is(err, dk.ErrRead))
	assert.NoFileExists(t, job.DestinationFile)
}

func TestArchiveName(t *testing.T) {
	decomposed := filepath.Join("dir", "cafe\u0301.txt")
	assert.Equal(t, "dir/caf\u00e9.txt", dk.ArchiveName(decomposed))
}
