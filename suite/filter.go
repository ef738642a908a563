// Package suite discovers test programs and resolves the compiler binaries
// they run against.
package suite

import (
	"regexp"

	"github.com/rs/zerolog"
)

// Filter selects paths by regular expression search. An empty filter
// matches everything.
type Filter struct {
	patterns []*regexp.Regexp
	active   bool
}

// NewFilter compiles patterns. Invalid patterns are ignored with a
// warning; they never match anything.
func NewFilter(patterns []string, logger zerolog.Logger) Filter {
	f := Filter{active: len(patterns) > 0}
	for _, p := range patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			logger.Warn().Err(err).Str("pattern", p).Msg("Ignoring invalid pattern")
			continue
		}
		f.patterns = append(f.patterns, re)
	}
	return f
}

// Active reports whether any pattern was given.
func (f Filter) Active() bool {
	return f.active
}

// Match reports whether any pattern matches somewhere in path.
func (f Filter) Match(path string) bool {
	if !f.active {
		return true
	}
	for _, re := range f.patterns {
		if re.MatchString(path) {
			return true
		}
	}
	return false
}
