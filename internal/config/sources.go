package config

import (
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"
)

// ResolveSources expands the configured source patterns against rootPath.
// Patterns are expanded in the order they are listed and each pattern's
// matches are sorted, so the resulting read order is stable. A file matched
// by several patterns is kept at its first position. A pattern that matches
// nothing is an error: a silently dropped source changes the design.
func (c *Config) ResolveSources(rootPath string) ([]string, error) {
	seen := make(map[string]bool)
	var result []string

	for _, pattern := range c.Sources {
		if !filepath.IsAbs(pattern) {
			pattern = filepath.Join(rootPath, pattern)
		}

		matches, err := expandGlob(pattern)
		if err != nil {
			return nil, fmt.Errorf("expand source pattern %q: %w", pattern, err)
		}
		if len(matches) == 0 {
			return nil, fmt.Errorf("source pattern %q matched no files", pattern)
		}
		sort.Strings(matches)

		for _, m := range matches {
			if seen[m] {
				continue
			}
			seen[m] = true
			result = append(result, m)
		}
	}

	return result, nil
}

// expandGlob expands a glob pattern, handling ** for recursive matching
func expandGlob(pattern string) ([]string, error) {
	if !strings.Contains(pattern, "**") {
		return filepath.Glob(pattern)
	}

	parts := strings.SplitN(pattern, "**", 2)
	baseDir := filepath.Clean(parts[0])
	suffix := strings.TrimPrefix(parts[1], string(filepath.Separator))
	if _, err := filepath.Match(suffix, ""); err != nil {
		return nil, err
	}

	var results []string
	err := filepath.WalkDir(baseDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			// unreadable subtrees are skipped
			return nil
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(baseDir, path)
		if err != nil {
			return nil
		}
		if suffix == "" || matchSuffix(rel, suffix) {
			results = append(results, path)
		}
		return nil
	})
	return results, err
}

// matchSuffix reports whether the trailing path segments of rel match pattern.
// A pattern without separators matches against the base name only.
func matchSuffix(rel, pattern string) bool {
	sep := string(filepath.Separator)
	if !strings.Contains(pattern, sep) {
		ok, _ := filepath.Match(pattern, filepath.Base(rel))
		return ok
	}

	want := len(strings.Split(pattern, sep))
	segs := strings.Split(rel, sep)
	if len(segs) < want {
		return false
	}
	ok, _ := filepath.Match(pattern, strings.Join(segs[len(segs)-want:], sep))
	return ok
}
