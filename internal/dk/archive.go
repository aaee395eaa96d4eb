package dk

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"path/filepath"

	"github.com/klauspost/compress/zip"
	"golang.org/x/text/unicode/norm"
)

// Compression selects how file entries are encoded in the archive.
type Compression string

const (
	CompressionStore   Compression = "store"
	CompressionDeflate Compression = "deflate"
)

// DefaultArchiveFileMode is applied to file entries unless overridden.
const DefaultArchiveFileMode fs.FileMode = 0o644

// ArchiveOptions tunes the encoding of archives. The zero value stores entries
// uncompressed with DefaultArchiveFileMode and excludes nothing.
type ArchiveOptions struct {
	Compression Compression
	FileMode    fs.FileMode
	Exclude     PathMatcher
}

func (o ArchiveOptions) method() (uint16, error) {
	switch o.Compression {
	case CompressionStore, "":
		return zip.Store, nil
	case CompressionDeflate:
		return zip.Deflate, nil
	default:
		return 0, fmt.Errorf("unknown compression %q", o.Compression)
	}
}

// Archiver serializes a directory tree into a zip file.
type Archiver struct {
	fsys   Filesystem
	events Events
	logger Logger
	opts   ArchiveOptions
}

// NewArchiver creates an Archiver. A zero FileMode in opts means DefaultArchiveFileMode.
func NewArchiver(fsys Filesystem, events Events, logger Logger, opts ArchiveOptions) *Archiver {
	if opts.FileMode == 0 {
		opts.FileMode = DefaultArchiveFileMode
	}
	return &Archiver{fsys: fsys, events: events, logger: logger, opts: opts}
}

// ArchiveName converts a host relative path into the in-archive entry name:
// forward slashes, NFC-normalised.
func ArchiveName(relativePath string) string {
	return norm.NFC.String(filepath.ToSlash(relativePath))
}

// Archive writes job.SourceRoot into job.DestinationFile. The whole tree is
// captured: every non-root directory becomes a marker entry ("name/") and every
// regular file is streamed into its own entry. Special files are skipped. The archive is written to a temporary
// file next to the destination and only renamed into place once finalized; on
// failure the temporary file is removed and an existing archive is never
// overwritten.
func (a *Archiver) Archive(job ArchiveJob) (OperationOutcome, error) {
	out := OperationOutcome{ArchiveFile: job.DestinationFile}

	method, err := a.opts.method()
	if err != nil {
		return out, archiveError("configure", job.DestinationFile, err)
	}
	if err := checkRoot(a.fsys, "archive", job.SourceRoot); err != nil {
		return out, err
	}

	destDir := filepath.Dir(job.DestinationFile)
	if err := a.fsys.MkdirAll(destDir, 0o755); err != nil {
		return out, archiveError("create destination", destDir, err)
	}
	if _, err := a.fsys.Lstat(job.DestinationFile); err == nil {
		return out, archiveError("create archive", job.DestinationFile, fs.ErrExist)
	} else if !errors.Is(err, fs.ErrNotExist) {
		return out, archiveError("create archive", job.DestinationFile, err)
	}

	tmp, err := a.fsys.CreateTemp(destDir, "."+filepath.Base(job.DestinationFile)+".*")
	if err != nil {
		return out, archiveError("create archive", job.DestinationFile, err)
	}
	committed := false
	defer func() {
		if !committed {
			if err := tmp.Abort(); err != nil {
				a.logger.Warn("removing partial archive failed", "path", tmp.Name(), "error", err)
			}
		}
	}()

	zw := zip.NewWriter(tmp)
	skip := newSkipper(a.opts.Exclude, tmp.Name(), job.DestinationFile)

	excluded := func(te TraversalEntry) bool {
		if !skip.skip(te) {
			return false
		}
		a.logger.Debug("archive entry excluded", "path", te.AbsolutePath)
		return true
	}

	for te, err := range WalkSkipping(a.fsys, job.SourceRoot, true, excluded) {
		if err != nil {
			return out, archiveError("read source", job.SourceRoot, err)
		}

		var written int64
		switch {
		case te.IsDirectory:
			err = a.writeDirectory(zw, te)
			out.DirectoriesTouched++
		case te.IsSymlink:
			err = a.writeSymlink(zw, te)
			out.FilesTouched++
		case te.Mode.IsRegular():
			written, err = a.writeFile(zw, te, method)
			out.FilesTouched++
			out.BytesTouched += written
		default:
			// pipes, sockets and device nodes have no content to capture
			a.logger.Warn("skipping special file", "path", te.AbsolutePath, "type", te.Mode.Type().String())
			out.Skipped++
			continue
		}
		if err != nil {
			return out, err
		}
		a.events.Send(ArchiveEntryWritten{
			Name:        entryName(te),
			IsDirectory: te.IsDirectory,
			Size:        written,
		})
	}

	if err := zw.Close(); err != nil {
		return out, archiveError("finalize", job.DestinationFile, err)
	}
	if err := tmp.Commit(job.DestinationFile); err != nil {
		return out, archiveError("finalize", job.DestinationFile, err)
	}
	committed = true

	a.events.Send(ArchiveCompleted{
		Source:      job.SourceRoot,
		Destination: job.DestinationFile,
		Files:       out.FilesTouched,
		Directories: out.DirectoriesTouched,
		Bytes:       out.BytesTouched,
	})
	a.logger.Info("archive written", "source", job.SourceRoot, "destination", job.DestinationFile,
		"files", out.FilesTouched, "bytes", out.BytesTouched)
	return out, nil
}

func entryName(te TraversalEntry) string {
	name := ArchiveName(te.RelativePath)
	if te.IsDirectory {
		name += "/"
	}
	return name
}

func (a *Archiver) writeDirectory(zw *zip.Writer, te TraversalEntry) error {
	hdr := &zip.FileHeader{
		Name:     entryName(te),
		Method:   zip.Store,
		Modified: te.ModTime,
	}
	hdr.SetMode(fs.ModeDir | 0o755)
	if _, err := zw.CreateHeader(hdr); err != nil {
		return archiveError("write directory entry", te.AbsolutePath, err)
	}
	return nil
}

// writeSymlink stores the link target as the entry content, the zip convention
// for symbolic links.
func (a *Archiver) writeSymlink(zw *zip.Writer, te TraversalEntry) error {
	target, err := a.fsys.Readlink(te.AbsolutePath)
	if err != nil {
		return archiveError("read link", te.AbsolutePath, err)
	}
	hdr := &zip.FileHeader{
		Name:     entryName(te),
		Method:   zip.Store,
		Modified: te.ModTime,
	}
	hdr.SetMode(fs.ModeSymlink | 0o777)
	w, err := zw.CreateHeader(hdr)
	if err != nil {
		return archiveError("write link entry", te.AbsolutePath, err)
	}
	if _, err := io.WriteString(w, filepath.ToSlash(target)); err != nil {
		return archiveError("write link entry", te.AbsolutePath, err)
	}
	return nil
}

func (a *Archiver) writeFile(zw *zip.Writer, te TraversalEntry, method uint16) (int64, error) {
	src, err := a.fsys.Open(te.AbsolutePath)
	if err != nil {
		return 0, archiveError("open file", te.AbsolutePath, err)
	}
	defer src.Close()

	hdr := &zip.FileHeader{
		Name:     entryName(te),
		Method:   method,
		Modified: te.ModTime,
	}
	hdr.SetMode(a.opts.FileMode)
	w, err := zw.CreateHeader(hdr)
	if err != nil {
		return 0, archiveError("write file entry", te.AbsolutePath, err)
	}
	n, err := io.Copy(w, src)
	if err != nil {
		return n, archiveError("copy file", te.AbsolutePath, err)
	}
	return n, nil
}

// skipper drops the archive being written (when the destination lies inside the
// source tree) and excluded paths. Excluded directories are pruned by the walk.
type skipper struct {
	exclude PathMatcher
	own     map[string]bool
}

func newSkipper(exclude PathMatcher, ownPaths ...string) *skipper {
	s := &skipper{exclude: exclude, own: make(map[string]bool)}
	for _, p := range ownPaths {
		s.own[filepath.Clean(p)] = true
	}
	return s
}

func (s *skipper) skip(te TraversalEntry) bool {
	if s.own[filepath.Clean(te.AbsolutePath)] {
		return true
	}
	return s.exclude != nil && s.exclude.Match(te.RelativePath)
}
