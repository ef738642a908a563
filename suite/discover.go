package suite

// This file contains suite discovery: glob expansion, filtering and
// de-duplication across suites.

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/nytrix/nytest/model"
	"github.com/rs/zerolog"
)

// Discovered is a suite with the relative paths of its cases in path order.
type Discovered struct {
	Suite model.Suite
	Paths []string
}

// Options configures Discover.
type Options struct {
	// Root is the project root the patterns are relative to
	Root   string
	Suites []model.Suite
	Filter Filter
	// Exclude holds absolute paths that must not be discovered
	Exclude []string
}

// Discover expands every suite pattern below the root. A path claimed by
// an earlier suite is not repeated in later ones. Suites without cases are
// omitted.
func Discover(opts Options, logger zerolog.Logger) ([]Discovered, error) {
	fsys := os.DirFS(opts.Root)
	seen := make(map[string]bool)
	excluded := make(map[string]bool, len(opts.Exclude))
	for _, p := range opts.Exclude {
		excluded[filepath.Clean(p)] = true
	}

	var out []Discovered
	for _, s := range opts.Suites {
		matches, err := doublestar.Glob(fsys, s.Pattern, doublestar.WithFilesOnly())
		if err != nil {
			return nil, fmt.Errorf("invalid pattern for suite %s: %w", s.Name, err)
		}
		sort.Strings(matches)

		var paths []string
		for _, rel := range matches {
			if seen[rel] || !opts.Filter.Match(rel) {
				continue
			}
			seen[rel] = true
			if excluded[filepath.Join(opts.Root, filepath.FromSlash(rel))] {
				continue
			}
			paths = append(paths, rel)
		}
		logger.Debug().
			Str("suite", s.Key).
			Str("pattern", s.Pattern).
			Int("cases", len(paths)).
			Msg("Discovered suite")
		if len(paths) > 0 {
			out = append(out, Discovered{Suite: s, Paths: paths})
		}
	}
	return out, nil
}
