package dk

// Events receives per-step progress events. The console renderer and tests
// implement it; the domain layer never formats output itself.
type Events interface {
	Send(event any)
}

// NopEvents discards all events.
type NopEvents struct{}

func (NopEvents) Send(any) {}

// EntryStarted is sent before an entry is dispatched.
type EntryStarted struct {
	Sequence int
	Entry    DirectoryEntry
}

// EntryFinished is sent after an entry completed or failed.
type EntryFinished struct {
	Outcome OperationOutcome
}

type FileListed struct {
	Path string
}

type DirectoryListed struct {
	Path string
}

type FileRemoved struct {
	Path string
}

type DirectoryRemoved struct {
	Path string
}

type DirectorySkipped struct {
	Path string
}

type MeasureCompleted struct {
	Path      string
	Recursive bool
	Files     int64
	Bytes     int64
}

// ArchiveEntryWritten is sent for every entry added to an archive.
// Name is the in-archive name; directory markers end with "/".
type ArchiveEntryWritten struct {
	Name        string
	IsDirectory bool
	Size        int64
}

type ArchiveCompleted struct {
	Source      string
	Destination string
	Files       int64
	Directories int64
	Bytes       int64
}
