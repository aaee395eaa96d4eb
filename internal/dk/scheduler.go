package dk

import (
	"cmp"
	"path/filepath"
	"slices"
	"strings"
)

// ScheduledEntry is an entry in dispatch position. Sequence starts at 1.
type ScheduledEntry struct {
	Sequence int
	Entry    DirectoryEntry
}

// Schedule orders entries for dispatch. The order is by cleaned path, then by
// action priority (archive, purge, measure, enumerate), so a directory is always
// archived before it is purged. An archive of a directory inside the tree of a
// recursive purge is moved in front of that purge as well. Configuration order
// is irrelevant: equal inputs always produce the same schedule.
func Schedule(entries []DirectoryEntry) []ScheduledEntry {
	ordered := slices.Clone(entries)
	slices.SortStableFunc(ordered, compareEntries)
	ordered = hoistNestedArchives(ordered)

	out := make([]ScheduledEntry, len(ordered))
	for i, e := range ordered {
		out[i] = ScheduledEntry{Sequence: i + 1, Entry: e}
	}
	return out
}

func compareEntries(a, b DirectoryEntry) int {
	return cmp.Or(
		strings.Compare(filepath.Clean(a.Path), filepath.Clean(b.Path)),
		cmp.Compare(a.Action, b.Action),
		compareBool(a.IncludeSubdirectories, b.IncludeSubdirectories),
	)
}

func compareBool(a, b bool) int {
	switch {
	case a == b:
		return 0
	case !a:
		return -1
	default:
		return 1
	}
}

// hoistNestedArchives moves every archive entry located strictly inside a
// recursive purge's tree to just before the earliest such purge. Relative order
// among hoisted archives is preserved.
func hoistNestedArchives(ordered []DirectoryEntry) []DirectoryEntry {
	out := make([]DirectoryEntry, 0, len(ordered))
	placed := make([]bool, len(ordered))

	for i, e := range ordered {
		if placed[i] {
			continue
		}
		if e.Action == ActionPurge && e.IncludeSubdirectories {
			for j := i + 1; j < len(ordered); j++ {
				if placed[j] || ordered[j].Action != ActionArchive {
					continue
				}
				if isWithin(e.Path, ordered[j].Path) {
					out = append(out, ordered[j])
					placed[j] = true
				}
			}
		}
		out = append(out, e)
		placed[i] = true
	}
	return out
}

// isWithin reports whether path lies strictly below root.
func isWithin(root, path string) bool {
	rel, err := filepath.Rel(filepath.Clean(root), filepath.Clean(path))
	if err != nil || rel == "." {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
