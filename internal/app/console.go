package app

import (
	"fmt"
	"io"

	"dirkeep/internal/dk"
)

// Console renders run events as human readable lines.
type Console struct {
	w io.Writer
}

// NewConsole creates a Console writing to w.
func NewConsole(w io.Writer) *Console {
	return &Console{w: w}
}

func (c *Console) Send(event any) {
	switch e := event.(type) {
	case dk.EntryStarted:
		c.entryStarted(e)
	case dk.EntryFinished:
		c.entryFinished(e)
	case dk.FileListed:
		fmt.Fprintf(c.w, "File: '%s'\n", e.Path)
	case dk.DirectoryListed:
		fmt.Fprintf(c.w, "Directory: '%s'\n", e.Path)
	case dk.FileRemoved:
		fmt.Fprintf(c.w, "Removing file: '%s'\n", e.Path)
	case dk.DirectoryRemoved:
		fmt.Fprintf(c.w, "Removing directory: '%s'\n", e.Path)
	case dk.DirectorySkipped:
		fmt.Fprintf(c.w, "Skipping directory: '%s'\n", e.Path)
	case dk.MeasureCompleted:
		fmt.Fprintf(c.w, "Number of files: %d\n", e.Files)
		fmt.Fprintf(c.w, "Total size: %d bytes\n", e.Bytes)
	case dk.ArchiveEntryWritten:
		fmt.Fprintf(c.w, "Adding: '%s'\n", e.Name)
	case dk.ArchiveCompleted:
		fmt.Fprintf(c.w, "Archive created: '%s' (%d files, %d bytes)\n", e.Destination, e.Files, e.Bytes)
	}
}

func (c *Console) entryStarted(e dk.EntryStarted) {
	verb := map[dk.ActionKind]string{
		dk.ActionArchive:   "Archiving",
		dk.ActionPurge:     "Purging",
		dk.ActionMeasure:   "Analyzing",
		dk.ActionEnumerate: "Listing",
	}[e.Entry.Action]
	fmt.Fprintf(c.w, "[%d] %s directory (subdirs=%t): '%s'\n", e.Sequence, verb, e.Entry.IncludeSubdirectories, e.Entry.Path)
}

func (c *Console) entryFinished(e dk.EntryFinished) {
	if e.Outcome.Err != nil {
		fmt.Fprintf(c.w, "[%d] failed: %v\n", e.Outcome.Sequence, e.Outcome.Err)
	}
	fmt.Fprintln(c.w)
}

// PrintReport writes the run summary.
func PrintReport(w io.Writer, r *dk.Report) {
	t := r.Totals()
	fmt.Fprintf(w, "Run %s (%s): %s\n", r.TimestampTag, r.RunID, r.Status())
	fmt.Fprintf(w, "  entries: %d, failed: %d\n", t.Entries, t.Failed)
	fmt.Fprintf(w, "  files: %d, bytes: %d, directories: %d, skipped: %d\n", t.Files, t.Bytes, t.Directories, t.Skipped)
}

var _ dk.Events = (*Console)(nil)
