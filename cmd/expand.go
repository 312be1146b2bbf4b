package cmd

import (
	"fmt"
	"path/filepath"
	"sort"
)

// expandInputs expands each input pattern to concrete archive paths,
// deduplicates across patterns, and fails if nothing matched at all —
// an empty expansion is a configuration error, not an empty run.
func expandInputs(patterns []string) ([]string, error) {
	var paths []string
	seen := make(map[string]bool)

	for _, pattern := range patterns {
		matches, err := filepath.Glob(pattern)
		if err != nil {
			return nil, fmt.Errorf("%w: '%s'", ErrInputPatternInvalid, pattern)
		}
		for _, match := range matches {
			if !seen[match] {
				seen[match] = true
				paths = append(paths, match)
			}
		}
	}

	if len(paths) == 0 {
		return nil, fmt.Errorf("%w: %v", ErrNoInputsMatched, patterns)
	}

	sort.Strings(paths)
	return paths, nil
}
