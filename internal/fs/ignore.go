package fs

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"dirkeep/internal/dk"
)

// excludeRule is a parsed exclude pattern with its matching strategy.
type excludeRule struct {
	pattern   string
	matchPath bool // true = match against relative path; false = match against basename only
}

// ExcludeMatcher decides which archive entries are left out.
// Patterns without '/' match against the entry's basename only.
// Patterns with '/' match against the full slash-separated path relative to the
// archive source root.
type ExcludeMatcher struct {
	rules []excludeRule
}

// NewExcludeMatcher creates an ExcludeMatcher from raw pattern strings.
// Blank lines, lines starting with '#' and malformed globs are dropped.
func NewExcludeMatcher(rawPatterns []string) *ExcludeMatcher {
	var rules []excludeRule
	for _, raw := range rawPatterns {
		raw = strings.TrimSpace(raw)
		if raw == "" || strings.HasPrefix(raw, "#") {
			continue
		}
		pattern := strings.TrimSuffix(filepath.ToSlash(raw), "/")
		if _, err := filepath.Match(pattern, ""); err != nil {
			continue
		}
		rules = append(rules, excludeRule{
			pattern:   pattern,
			matchPath: strings.Contains(pattern, "/"),
		})
	}
	return &ExcludeMatcher{rules: rules}
}

// Empty reports whether the matcher has no rules.
func (m *ExcludeMatcher) Empty() bool {
	return len(m.rules) == 0
}

// Match reports whether the given relative path is excluded.
func (m *ExcludeMatcher) Match(relativePath string) bool {
	if relativePath == "" || len(m.rules) == 0 {
		return false
	}

	normalized := filepath.ToSlash(relativePath)
	basename := filepath.Base(relativePath)

	for _, r := range m.rules {
		subject := basename
		if r.matchPath {
			subject = normalized
		}
		if ok, _ := filepath.Match(r.pattern, subject); ok {
			return true
		}
	}
	return false
}

// ParseExcludeFile reads exclude patterns, one per line.
// Returns nil and no error if the file does not exist.
func ParseExcludeFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("opening exclude file: %w", err)
	}
	defer f.Close()

	var patterns []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		patterns = append(patterns, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading exclude file: %w", err)
	}
	return patterns, nil
}

var _ dk.PathMatcher = (*ExcludeMatcher)(nil)
