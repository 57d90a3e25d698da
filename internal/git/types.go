// Package git parses unified diffs and reads change sets from a local
// repository.
package git

// Diff represents a complete diff with multiple files.
type Diff struct {
	Files []FileDiff `json:"files"`
	Stats DiffStats  `json:"stats"`
}

// FileDiff represents the diff for a single file.
type FileDiff struct {
	Path      string     `json:"path"`
	OldPath   string     `json:"old_path,omitempty"` // For renames
	Status    FileStatus `json:"status"`
	IsBinary  bool       `json:"is_binary"`
	Hunks     []Hunk     `json:"hunks"`
	Additions int        `json:"additions"`
	Deletions int        `json:"deletions"`
}

// FileStatus represents the status of a file in the diff.
type FileStatus string

const (
	FileAdded    FileStatus = "added"
	FileModified FileStatus = "modified"
	FileDeleted  FileStatus = "deleted"
	FileRenamed  FileStatus = "renamed"
	FileCopied   FileStatus = "copied"
)

// Hunk represents a section of changes in a file.
type Hunk struct {
	Header   string `json:"header"` // @@ -start,count +start,count @@
	OldStart int    `json:"old_start"`
	OldLines int    `json:"old_lines"`
	NewStart int    `json:"new_start"`
	NewLines int    `json:"new_lines"`
	Lines    []Line `json:"lines"`
}

// Line represents a single line in a hunk.
type Line struct {
	Type      LineType `json:"type"`
	Content   string   `json:"content"`
	OldNumber int      `json:"old_number,omitempty"`
	NewNumber int      `json:"new_number,omitempty"`
}

// LineType represents the type of a diff line.
type LineType string

const (
	LineContext  LineType = "context"
	LineAddition LineType = "addition"
	LineDeletion LineType = "deletion"
)

// DiffStats contains summary statistics about a diff.
type DiffStats struct {
	FilesChanged int `json:"files_changed"`
	Additions    int `json:"additions"`
	Deletions    int `json:"deletions"`
}

// CalculateStats calculates statistics from the diff.
func (d *Diff) CalculateStats() {
	d.Stats = DiffStats{
		FilesChanged: len(d.Files),
	}
	for _, f := range d.Files {
		d.Stats.Additions += f.Additions
		d.Stats.Deletions += f.Deletions
	}
}
