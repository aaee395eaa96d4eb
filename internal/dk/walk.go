package dk

import (
	"io/fs"
	"iter"
	"path/filepath"
	"slices"
	"strings"
)

// Walk returns a lazy, depth-first, pre-order sequence of the entries under root.
// Children are visited in name order. When recursive is false only the direct
// children of root are produced. Symlinks are reported but never followed, so a
// link cycle can never revisit a directory.
//
// A directory that cannot be listed or an entry whose metadata cannot be read
// yields a single ReadError and ends the sequence. Every call re-reads the
// filesystem.
func Walk(fsys Filesystem, root string, recursive bool) iter.Seq2[TraversalEntry, error] {
	return WalkSkipping(fsys, root, recursive, nil)
}

// WalkSkipping is Walk with a filter. An entry for which skip reports true is not
// yielded, and a skipped directory is not read at all. A nil skip keeps everything.
func WalkSkipping(fsys Filesystem, root string, recursive bool, skip func(TraversalEntry) bool) iter.Seq2[TraversalEntry, error] {
	return func(yield func(TraversalEntry, error) bool) {
		walkDir(fsys, root, "", recursive, skip, yield)
	}
}

// walkDir returns false once the consumer stopped or an error was yielded.
func walkDir(fsys Filesystem, root, rel string, recursive bool, skip func(TraversalEntry) bool, yield func(TraversalEntry, error) bool) bool {
	dir := filepath.Join(root, rel)
	entries, err := fsys.ReadDir(dir)
	if err != nil {
		yield(TraversalEntry{}, readError("read directory", dir, err))
		return false
	}
	slices.SortFunc(entries, func(a, b fs.DirEntry) int {
		return strings.Compare(a.Name(), b.Name())
	})

	for _, de := range entries {
		childRel := filepath.Join(rel, de.Name())
		abs := filepath.Join(root, childRel)

		info, err := de.Info()
		if err != nil {
			yield(TraversalEntry{}, readError("stat", abs, err))
			return false
		}

		te := TraversalEntry{
			AbsolutePath: abs,
			RelativePath: childRel,
			IsDirectory:  info.IsDir(),
			IsSymlink:    info.Mode()&fs.ModeSymlink != 0,
			Size:         info.Size(),
			Mode:         info.Mode(),
			ModTime:      info.ModTime(),
		}
		if te.IsDirectory {
			te.Size = 0
		}
		if skip != nil && skip(te) {
			continue
		}
		if !yield(te, nil) {
			return false
		}
		if te.IsDirectory && recursive {
			if !walkDir(fsys, root, childRel, recursive, skip, yield) {
				return false
			}
		}
	}
	return true
}

// checkRoot validates that an entry path exists and is a directory.
func checkRoot(fsys Filesystem, op, path string) error {
	info, err := fsys.Stat(path)
	if err != nil {
		return readError(op, path, err)
	}
	if !info.IsDir() {
		return readError(op, path, errNotDirectory)
	}
	return nil
}
