package git

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"github.com/JNZader/prgate/internal/pr"
)

const (
	unifiedContextFlag = "--unified=3"
	renamesFlag        = "-M"
	defaultBase        = "main"
)

// Options configures the local change set.
type Options struct {
	// Base is the ref the branch is compared against (base...HEAD).
	Base string
	// DescriptionFile, when set, provides the description. Otherwise the
	// commit messages of the range are used.
	DescriptionFile string
}

// Repo reads the change set between a base ref and HEAD from a local
// repository. It implements pr.Source.
type Repo struct {
	path string
	opts Options

	mu      sync.RWMutex
	renames map[string]string // new path -> old path
}

var _ pr.Source = (*Repo)(nil)

// NewRepo creates a new Repo.
func NewRepo(path string, opts Options) (*Repo, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to get absolute path: %w", err)
	}
	if opts.Base == "" {
		opts.Base = defaultBase
	}

	repo := &Repo{path: absPath, opts: opts, renames: map[string]string{}}
	if _, err := repo.GetRepoRoot(context.Background()); err != nil {
		return nil, fmt.Errorf("not a git repository: %w", err)
	}

	return repo, nil
}

// runGit executes a git command and returns the output.
func (r *Repo) runGit(ctx context.Context, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = r.path

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		errMsg := strings.TrimSpace(stderr.String())
		if errMsg != "" {
			return "", fmt.Errorf("git %s: %w: %s", args[0], err, errMsg)
		}
		return "", fmt.Errorf("git %s: %w", args[0], err)
	}

	return stdout.String(), nil
}

// Name identifies the source in logs and reports.
func (r *Repo) Name() string { return "local" }

func (r *Repo) revRange() string { return r.opts.Base + "...HEAD" }

// Metadata collects line totals, changed paths and the description of the
// branch relative to its base.
func (r *Repo) Metadata(ctx context.Context) (*pr.Metadata, error) {
	shortstat, err := r.runGit(ctx, "diff", "--shortstat", renamesFlag, r.revRange())
	if err != nil {
		return nil, fmt.Errorf("failed to read diff totals: %w", err)
	}
	nameStatus, err := r.runGit(ctx, "diff", "--name-status", renamesFlag, r.revRange())
	if err != nil {
		return nil, fmt.Errorf("failed to list changed files: %w", err)
	}

	meta := &pr.Metadata{}
	meta.Additions, meta.Deletions = parseShortstat(shortstat)

	changes := parseNameStatus(nameStatus)
	renames := make(map[string]string)
	for _, c := range changes {
		switch c.Status {
		case FileAdded, FileCopied:
			meta.Created = append(meta.Created, c.Path)
		case FileDeleted:
			meta.Deleted = append(meta.Deleted, c.Path)
		case FileRenamed:
			renames[c.Path] = c.OldPath
			meta.Modified = append(meta.Modified, c.Path)
		default:
			meta.Modified = append(meta.Modified, c.Path)
		}
	}
	r.mu.Lock()
	r.renames = renames
	r.mu.Unlock()

	meta.Description, err = r.description(ctx)
	if err != nil {
		return nil, err
	}
	meta.Title = r.title(ctx)
	return meta, nil
}

// Diff returns the unified diff of one file in the range.
func (r *Repo) Diff(ctx context.Context, path string) (string, error) {
	args := []string{"diff", unifiedContextFlag, renamesFlag, r.revRange(), "--", path}
	r.mu.RLock()
	if old, ok := r.renames[path]; ok {
		args = append(args, old)
	}
	r.mu.RUnlock()

	return r.runGit(ctx, args...)
}

func (r *Repo) description(ctx context.Context) (string, error) {
	if r.opts.DescriptionFile != "" {
		data, err := os.ReadFile(r.opts.DescriptionFile)
		if err != nil {
			return "", fmt.Errorf("failed to read description: %w", err)
		}
		return string(data), nil
	}

	out, err := r.runGit(ctx, "log", "--format=%B", "--no-merges", r.opts.Base+"..HEAD")
	if err != nil {
		return "", fmt.Errorf("failed to read commit messages: %w", err)
	}
	return strings.TrimSpace(out), nil
}

// title is the subject of the newest commit, or the branch name.
func (r *Repo) title(ctx context.Context) string {
	out, err := r.runGit(ctx, "log", "-1", "--format=%s", r.opts.Base+"..HEAD")
	if err == nil && strings.TrimSpace(out) != "" {
		return strings.TrimSpace(out)
	}
	branch, err := r.GetCurrentBranch(ctx)
	if err != nil {
		return ""
	}
	return branch
}

func (r *Repo) GetCurrentBranch(ctx context.Context) (string, error) {
	output, err := r.runGit(ctx, "rev-parse", "--abbrev-ref", "HEAD")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(output), nil
}

func (r *Repo) GetRepoRoot(ctx context.Context) (string, error) {
	output, err := r.runGit(ctx, "rev-parse", "--show-toplevel")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(output), nil
}

var (
	insertionsRe = regexp.MustCompile(`(\d+) insertions?\(\+\)`)
	deletionsRe  = regexp.MustCompile(`(\d+) deletions?\(-\)`)
)

// parseShortstat reads "3 files changed, 10 insertions(+), 2 deletions(-)".
func parseShortstat(out string) (additions, deletions int) {
	if m := insertionsRe.FindStringSubmatch(out); m != nil {
		additions, _ = strconv.Atoi(m[1])
	}
	if m := deletionsRe.FindStringSubmatch(out); m != nil {
		deletions, _ = strconv.Atoi(m[1])
	}
	return additions, deletions
}

// parseNameStatus reads git diff --name-status output. Status letters map to
// FileStatus; rename and copy scores are ignored.
func parseNameStatus(out string) []FileDiff {
	var files []FileDiff
	for _, line := range splitLines(out) {
		fields := strings.Split(line, "\t")
		if len(fields) < 2 || fields[0] == "" {
			continue
		}

		f := FileDiff{Path: fields[len(fields)-1], Status: FileModified}
		switch fields[0][0] {
		case 'A':
			f.Status = FileAdded
		case 'D':
			f.Status = FileDeleted
		case 'R':
			f.Status = FileRenamed
		case 'C':
			f.Status = FileCopied
		}
		if (f.Status == FileRenamed || f.Status == FileCopied) && len(fields) >= 3 {
			f.OldPath = fields[1]
		}
		files = append(files, f)
	}
	return files
}
