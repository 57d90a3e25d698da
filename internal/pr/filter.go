package pr

import (
	"fmt"

	ignore "github.com/sabhiram/go-gitignore"
)

// PathFilter drops paths matching gitignore-style patterns from a change set.
type PathFilter struct {
	matcher *ignore.GitIgnore
}

// NewPathFilter compiles patterns. An empty pattern list yields a filter
// that keeps everything.
func NewPathFilter(patterns []string) (*PathFilter, error) {
	if len(patterns) == 0 {
		return &PathFilter{}, nil
	}
	gi, err := ignore.CompileIgnoreLines(patterns...)
	if err != nil {
		return nil, fmt.Errorf("compiling ignore patterns: %w", err)
	}
	return &PathFilter{matcher: gi}, nil
}

// Ignored reports whether path matches one of the patterns.
func (f *PathFilter) Ignored(path string) bool {
	if f == nil || f.matcher == nil {
		return false
	}
	return f.matcher.MatchesPath(path)
}

// Apply returns a copy of meta without ignored paths. Line counts are left
// untouched; they come from the host and cover the whole change.
func (f *PathFilter) Apply(meta Metadata) Metadata {
	out := meta
	out.Modified = f.keep(meta.Modified)
	out.Created = f.keep(meta.Created)
	out.Deleted = f.keep(meta.Deleted)
	return out
}

func (f *PathFilter) keep(paths []string) []string {
	if paths == nil {
		return nil
	}
	kept := make([]string, 0, len(paths))
	for _, p := range paths {
		if !f.Ignored(p) {
			kept = append(kept, p)
		}
	}
	return kept
}
