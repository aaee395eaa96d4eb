package dk

import "errors"

var errNotDirectory = errors.New("not a directory")

// Enumerate lists the direct children of entry.Path. Every non-directory child is
// reported; child directories are reported only when IncludeSubdirectories is set.
// Enumerate never descends into subdirectories, regardless of the flag.
func Enumerate(fsys Filesystem, events Events, entry DirectoryEntry) (OperationOutcome, error) {
	out := OperationOutcome{Entry: entry}
	if err := checkRoot(fsys, "enumerate", entry.Path); err != nil {
		return out, err
	}

	for te, err := range Walk(fsys, entry.Path, false) {
		if err != nil {
			return out, err
		}
		if te.IsDirectory {
			if entry.IncludeSubdirectories {
				events.Send(DirectoryListed{Path: te.AbsolutePath})
				out.DirectoriesTouched++
			}
			continue
		}
		events.Send(FileListed{Path: te.AbsolutePath})
		out.FilesTouched++
	}
	return out, nil
}

// Measure counts the files under entry.Path and sums their sizes. With
// IncludeSubdirectories unset the walk does not descend at all. A single
// unreadable entry aborts the whole aggregate.
func Measure(fsys Filesystem, events Events, entry DirectoryEntry) (OperationOutcome, error) {
	out := OperationOutcome{Entry: entry}
	if err := checkRoot(fsys, "measure", entry.Path); err != nil {
		return out, err
	}

	for te, err := range Walk(fsys, entry.Path, entry.IncludeSubdirectories) {
		if err != nil {
			return out, err
		}
		if te.IsDirectory {
			continue
		}
		out.FilesTouched++
		out.BytesTouched += te.Size
	}

	events.Send(MeasureCompleted{
		Path:      entry.Path,
		Recursive: entry.IncludeSubdirectories,
		Files:     out.FilesTouched,
		Bytes:     out.BytesTouched,
	})
	return out, nil
}

// Purge deletes the direct children of entry.Path. Files and symlinks are always
// removed. Subdirectories are removed with everything beneath them when
// IncludeSubdirectories is set and skipped otherwise. The root itself is kept.
// The first removal failure aborts with a DeleteError.
func Purge(fsys Filesystem, events Events, entry DirectoryEntry) (OperationOutcome, error) {
	out := OperationOutcome{Entry: entry}
	if err := checkRoot(fsys, "purge", entry.Path); err != nil {
		return out, err
	}

	for te, err := range Walk(fsys, entry.Path, false) {
		if err != nil {
			return out, err
		}

		if !te.IsDirectory {
			if err := fsys.Remove(te.AbsolutePath); err != nil {
				return out, deleteError("remove file", te.AbsolutePath, err)
			}
			events.Send(FileRemoved{Path: te.AbsolutePath})
			out.FilesTouched++
			out.BytesTouched += te.Size
			continue
		}

		if !entry.IncludeSubdirectories {
			events.Send(DirectorySkipped{Path: te.AbsolutePath})
			out.Skipped++
			continue
		}
		if err := fsys.RemoveAll(te.AbsolutePath); err != nil {
			return out, deleteError("remove directory", te.AbsolutePath, err)
		}
		events.Send(DirectoryRemoved{Path: te.AbsolutePath})
		out.DirectoriesTouched++
	}
	return out, nil
}
