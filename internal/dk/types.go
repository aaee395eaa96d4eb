package dk

import (
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"
	"time"
)

// ActionKind selects the operation applied to a configured directory.
// The numeric order doubles as the scheduling priority for entries that share a path.
type ActionKind int

const (
	ActionArchive ActionKind = iota + 1
	ActionPurge
	ActionMeasure
	ActionEnumerate
)

// ArchiveExtension is the file extension of archives produced by the Archiver.
const ArchiveExtension = "zip"

// TimestampLayout formats the run timestamp tag as YYYYMMDDHHMMSS.
const TimestampLayout = "20060102150405"

var actionNames = map[ActionKind]string{
	ActionArchive:   "archive",
	ActionPurge:     "purge",
	ActionMeasure:   "measure",
	ActionEnumerate: "enumerate",
}

// legacy spellings accepted in configuration files
var actionAliases = map[string]ActionKind{
	"archive":   ActionArchive,
	"backup":    ActionArchive,
	"purge":     ActionPurge,
	"clean":     ActionPurge,
	"measure":   ActionMeasure,
	"analyze":   ActionMeasure,
	"enumerate": ActionEnumerate,
	"list":      ActionEnumerate,
}

func (k ActionKind) String() string {
	if name, ok := actionNames[k]; ok {
		return name
	}
	return fmt.Sprintf("ActionKind(%d)", int(k))
}

// Valid reports whether k is one of the four known actions.
func (k ActionKind) Valid() bool {
	_, ok := actionNames[k]
	return ok
}

// ParseActionKind converts a configuration spelling into an ActionKind.
// Matching is case-insensitive.
func ParseActionKind(s string) (ActionKind, error) {
	k, ok := actionAliases[strings.ToLower(strings.TrimSpace(s))]
	if !ok {
		return 0, fmt.Errorf("unknown action %q", s)
	}
	return k, nil
}

// DirectoryEntry is one configured target directory plus the action to apply to it.
type DirectoryEntry struct {
	Path                  string
	IncludeSubdirectories bool
	Action                ActionKind
}

// RunConfig is the validated input of a run.
type RunConfig struct {
	Entries                []DirectoryEntry
	ArchiveDestinationRoot string
}

// NeedsArchiveRoot reports whether any entry archives.
func (c RunConfig) NeedsArchiveRoot() bool {
	for _, e := range c.Entries {
		if e.Action == ActionArchive {
			return true
		}
	}
	return false
}

// Validate checks the shape of the configuration. It never touches the filesystem.
// Archive entries must have distinct base names, since all archives of a run
// share the destination root and the timestamp tag.
func (c RunConfig) Validate() error {
	archived := make(map[string]int)
	for i, e := range c.Entries {
		if strings.TrimSpace(e.Path) == "" {
			return configErrorf(fmt.Sprintf("directories[%d].path", i), "path is required")
		}
		if !e.Action.Valid() {
			return configErrorf(fmt.Sprintf("directories[%d].action", i), "invalid action %v", e.Action)
		}
		if e.Action != ActionArchive {
			continue
		}
		base := archiveBase(e.Path)
		if j, ok := archived[base]; ok {
			return configErrorf(fmt.Sprintf("directories[%d].path", i),
				"archive name %q is already used by directories[%d]", base, j)
		}
		archived[base] = i
	}
	if c.NeedsArchiveRoot() && strings.TrimSpace(c.ArchiveDestinationRoot) == "" {
		return configErrorf("backup_root_path", "required when an entry uses the archive action")
	}
	return nil
}

// ArchiveJob describes one execution of the Archiver within a run.
type ArchiveJob struct {
	SourceRoot      string
	DestinationFile string
	TimestampTag    string
}

// NewArchiveJob derives the job for sourceRoot, naming the archive
// {destinationRoot}/{base(sourceRoot)}_{tag}.zip.
func NewArchiveJob(destinationRoot, sourceRoot, tag string) ArchiveJob {
	name := fmt.Sprintf("%s_%s.%s", archiveBase(sourceRoot), tag, ArchiveExtension)
	return ArchiveJob{
		SourceRoot:      sourceRoot,
		DestinationFile: filepath.Join(destinationRoot, name),
		TimestampTag:    tag,
	}
}

func archiveBase(sourceRoot string) string {
	return filepath.Base(filepath.Clean(sourceRoot))
}

// TimestampTag formats t as the run identity shared by all archive jobs of a run.
func TimestampTag(t time.Time) string {
	return t.Format(TimestampLayout)
}

// TraversalEntry is a filesystem entry produced by Walk. It is never persisted.
type TraversalEntry struct {
	AbsolutePath string // root joined with RelativePath
	RelativePath string // host separators, relative to the walk root
	IsDirectory  bool
	IsSymlink    bool
	Size         int64
	Mode         fs.FileMode
	ModTime      time.Time
}

// OperationOutcome is the result of dispatching one DirectoryEntry.
type OperationOutcome struct {
	Sequence           int
	Entry              DirectoryEntry
	FilesTouched       int64
	BytesTouched       int64
	DirectoriesTouched int64
	Skipped            int64
	ArchiveFile        string
	StartedAt          time.Time
	FinishedAt         time.Time
	Err                error
}

// Succeeded reports whether the operation completed without error.
func (o OperationOutcome) Succeeded() bool {
	return o.Err == nil
}
