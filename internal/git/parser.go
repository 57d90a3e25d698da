package git

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/sourcegraph/go-diff/diff"
)

var (
	hunkHeaderRe = regexp.MustCompile(`(?m)^@@ -\d`)
	fileHeaderRe = regexp.MustCompile(`(?m)^(?:diff --git |--- )`)
)

// ParseDiff parses the output of git diff into structured form.
func ParseDiff(text string) (*Diff, error) {
	result := &Diff{Files: []FileDiff{}}
	if strings.TrimSpace(text) == "" {
		return result, nil
	}

	fds, err := diff.ParseMultiFileDiff([]byte(text))
	if err != nil {
		return nil, fmt.Errorf("parse diff: %w", err)
	}

	for _, fd := range fds {
		result.Files = append(result.Files, convertFile(fd))
	}
	result.CalculateStats()
	return result, nil
}

// ParsePatch parses a hunk-only patch, the form hosting APIs return per file.
func ParsePatch(path, patch string) (*FileDiff, error) {
	file := &FileDiff{Path: path, Status: FileModified}
	if strings.TrimSpace(patch) == "" {
		return file, nil
	}

	hunks, err := diff.ParseHunks([]byte(patch))
	if err != nil {
		return nil, fmt.Errorf("parse patch for %s: %w", path, err)
	}
	for _, h := range hunks {
		hunk, add, del := convertHunk(h)
		file.Hunks = append(file.Hunks, hunk)
		file.Additions += add
		file.Deletions += del
	}
	return file, nil
}

// Additions returns the added lines of a diff with their line numbers in
// the new file. The input may be a full git diff, a hunk-only patch or, when
// it carries neither hunk nor file header, raw file content, in which case
// every line counts as added. A diff with headers and no hunks (pure rename,
// mode change, empty or binary file) adds nothing. Lines recovered by the
// lenient fallback carry no line number.
func Additions(text string) []Line {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	if !hunkHeaderRe.MatchString(text) {
		if fileHeaderRe.MatchString(text) {
			return nil
		}
		raw := splitLines(text)
		out := make([]Line, len(raw))
		for i, l := range raw {
			out[i] = Line{Type: LineAddition, Content: l, NewNumber: i + 1}
		}
		return out
	}

	files, err := parseAny(text)
	if err != nil {
		return scanAdded(text)
	}

	var out []Line
	for _, f := range files {
		for _, h := range f.Hunks {
			for _, l := range h.Lines {
				if l.Type == LineAddition {
					out = append(out, l)
				}
			}
		}
	}
	return out
}

// CountChanges returns the number of added and deleted lines in a diff.
func CountChanges(text string) (additions, deletions int) {
	if !hunkHeaderRe.MatchString(text) {
		if fileHeaderRe.MatchString(text) {
			return 0, 0
		}
		return len(splitLines(text)), 0
	}

	files, err := parseAny(text)
	if err != nil {
		for _, line := range splitLines(text) {
			switch {
			case strings.HasPrefix(line, "+++ "), strings.HasPrefix(line, "--- "):
			case strings.HasPrefix(line, "+"):
				additions++
			case strings.HasPrefix(line, "-"):
				deletions++
			}
		}
		return additions, deletions
	}
	for _, f := range files {
		additions += f.Additions
		deletions += f.Deletions
	}
	return additions, deletions
}

const devNull = "/dev/null"

var errNoFiles = errors.New("no file sections")

func parseAny(text string) ([]FileDiff, error) {
	if strings.HasPrefix(strings.TrimLeft(text, "\n"), "@@") {
		f, err := ParsePatch("", text)
		if err != nil {
			return nil, err
		}
		return []FileDiff{*f}, nil
	}

	d, err := ParseDiff(text)
	if err != nil {
		return nil, err
	}
	if len(d.Files) == 0 {
		return nil, errNoFiles
	}
	return d.Files, nil
}

// scanAdded is the lenient fallback for input go-diff rejects.
func scanAdded(text string) []Line {
	var out []Line
	for _, line := range splitLines(text) {
		if strings.HasPrefix(line, "+") && !strings.HasPrefix(line, "+++ ") {
			out = append(out, Line{Type: LineAddition, Content: line[1:]})
		}
	}
	return out
}

func splitLines(text string) []string {
	text = strings.TrimSuffix(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
	if text == "" {
		return nil
	}
	return strings.Split(text, "\n")
}

func convertFile(fd *diff.FileDiff) FileDiff {
	origName, newName := stripPrefix(fd.OrigName), stripPrefix(fd.NewName)
	if len(fd.Extended) > 0 {
		o, n := parseDiffGitLine(fd.Extended[0])
		if origName == "" {
			origName = o
		}
		if newName == "" {
			newName = n
		}
	}

	file := FileDiff{Path: newName, Status: FileModified}
	for _, ext := range fd.Extended {
		switch {
		case strings.HasPrefix(ext, "new file mode"):
			file.Status = FileAdded
		case strings.HasPrefix(ext, "deleted file mode"):
			file.Status = FileDeleted
		case strings.HasPrefix(ext, "rename from"):
			file.Status = FileRenamed
		case strings.HasPrefix(ext, "copy from"):
			file.Status = FileCopied
		case strings.HasPrefix(ext, "Binary files"), strings.HasPrefix(ext, "GIT binary patch"):
			file.IsBinary = true
		}
	}

	switch {
	case fd.OrigName == devNull:
		file.Status = FileAdded
	case fd.NewName == devNull:
		file.Status = FileDeleted
	}

	switch file.Status {
	case FileDeleted:
		file.Path = origName
	case FileRenamed, FileCopied:
		file.OldPath = origName
	}

	for _, h := range fd.Hunks {
		hunk, add, del := convertHunk(h)
		file.Hunks = append(file.Hunks, hunk)
		file.Additions += add
		file.Deletions += del
	}
	return file
}

func convertHunk(h *diff.Hunk) (hunk Hunk, additions, deletions int) {
	hunk = Hunk{
		OldStart: int(h.OrigStartLine),
		OldLines: int(h.OrigLines),
		NewStart: int(h.NewStartLine),
		NewLines: int(h.NewLines),
	}
	hunk.Header = fmt.Sprintf("@@ -%d,%d +%d,%d @@", hunk.OldStart, hunk.OldLines, hunk.NewStart, hunk.NewLines)
	if h.Section != "" {
		hunk.Header += " " + h.Section
	}

	oldN, newN := hunk.OldStart, hunk.NewStart
	for _, raw := range splitLines(string(h.Body)) {
		if raw == "" {
			hunk.Lines = append(hunk.Lines, Line{Type: LineContext, OldNumber: oldN, NewNumber: newN})
			oldN++
			newN++
			continue
		}
		switch raw[0] {
		case '+':
			hunk.Lines = append(hunk.Lines, Line{Type: LineAddition, Content: raw[1:], NewNumber: newN})
			newN++
			additions++
		case '-':
			hunk.Lines = append(hunk.Lines, Line{Type: LineDeletion, Content: raw[1:], OldNumber: oldN})
			oldN++
			deletions++
		case '\\':
			// No newline at end of file
		default:
			hunk.Lines = append(hunk.Lines, Line{Type: LineContext, Content: raw[1:], OldNumber: oldN, NewNumber: newN})
			oldN++
			newN++
		}
	}
	return hunk, additions, deletions
}

func stripPrefix(name string) string {
	if strings.HasPrefix(name, "a/") || strings.HasPrefix(name, "b/") {
		return name[2:]
	}
	return name
}

// parseDiffGitLine extracts paths from "diff --git a/path b/path"
func parseDiffGitLine(line string) (oldPath, newPath string) {
	const prefix = "diff --git "
	if !strings.HasPrefix(line, prefix) {
		return "", ""
	}

	rest := line[len(prefix):]
	idx := strings.Index(rest, " b/")
	if idx == -1 {
		return "", ""
	}

	if len(rest) > 2 && rest[0] == 'a' && rest[1] == '/' {
		oldPath = rest[2:idx]
	} else {
		oldPath = rest[:idx]
	}
	newPath = rest[idx+3:]
	return oldPath, newPath
}
