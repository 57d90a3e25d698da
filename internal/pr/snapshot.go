// Package pr holds the read-only view of a pull request that rules evaluate.
package pr

import "context"

// Metadata is what a source reports about a pull request before any diff
// text has been resolved.
type Metadata struct {
	Number      int      `json:"number,omitempty"`
	Title       string   `json:"title,omitempty"`
	URL         string   `json:"url,omitempty"`
	Additions   int      `json:"additions"`
	Deletions   int      `json:"deletions"`
	Description string   `json:"description"`
	Modified    []string `json:"modified"`
	Created     []string `json:"created"`
	Deleted     []string `json:"deleted"`
}

// DiffSource resolves the unified diff text of a single changed path.
// Implementations may hit the network; they must be safe for concurrent use.
type DiffSource interface {
	Diff(ctx context.Context, path string) (string, error)
}

// Source produces the metadata of the pull request under evaluation and the
// lookup for its per-file diffs.
type Source interface {
	Name() string
	Metadata(ctx context.Context) (*Metadata, error)
	DiffSource
}

// Snapshot is an immutable pull request view. All accessors return copies.
type Snapshot struct {
	meta  Metadata
	diffs map[string]string
}

// NewSnapshot builds a snapshot from metadata and the diffs that could be
// resolved. Paths missing from diffs are reported as unavailable by DiffOf.
// Negative line counts are clamped to zero.
func NewSnapshot(meta Metadata, diffs map[string]string) *Snapshot {
	m := meta
	if m.Additions < 0 {
		m.Additions = 0
	}
	if m.Deletions < 0 {
		m.Deletions = 0
	}
	m.Modified = cloneStrings(meta.Modified)
	m.Created = cloneStrings(meta.Created)
	m.Deleted = cloneStrings(meta.Deleted)

	d := make(map[string]string, len(diffs))
	for k, v := range diffs {
		d[k] = v
	}
	return &Snapshot{meta: m, diffs: d}
}

func (s *Snapshot) Number() int         { return s.meta.Number }
func (s *Snapshot) Title() string       { return s.meta.Title }
func (s *Snapshot) URL() string         { return s.meta.URL }
func (s *Snapshot) Additions() int      { return s.meta.Additions }
func (s *Snapshot) Deletions() int      { return s.meta.Deletions }
func (s *Snapshot) Description() string { return s.meta.Description }

// TotalLines is additions plus deletions.
func (s *Snapshot) TotalLines() int { return s.meta.Additions + s.meta.Deletions }

func (s *Snapshot) Modified() []string { return cloneStrings(s.meta.Modified) }
func (s *Snapshot) Created() []string  { return cloneStrings(s.meta.Created) }
func (s *Snapshot) Deleted() []string  { return cloneStrings(s.meta.Deleted) }

// Changed returns modified then created paths, the files that carry new content.
func (s *Snapshot) Changed() []string {
	out := make([]string, 0, len(s.meta.Modified)+len(s.meta.Created))
	out = append(out, s.meta.Modified...)
	return append(out, s.meta.Created...)
}

// Touched returns every path in the change set, deletions included.
func (s *Snapshot) Touched() []string {
	return append(s.Changed(), s.meta.Deleted...)
}

// DiffOf returns the diff text for path and whether it was resolved.
func (s *Snapshot) DiffOf(path string) (string, bool) {
	d, ok := s.diffs[path]
	return d, ok
}

// Metadata returns a copy of the underlying metadata.
func (s *Snapshot) Metadata() Metadata {
	m := s.meta
	m.Modified = cloneStrings(s.meta.Modified)
	m.Created = cloneStrings(s.meta.Created)
	m.Deleted = cloneStrings(s.meta.Deleted)
	return m
}

func cloneStrings(in []string) []string {
	if in == nil {
		return nil
	}
	out := make([]string, len(in))
	copy(out, in)
	return out
}
