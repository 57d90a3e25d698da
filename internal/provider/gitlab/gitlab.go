// Package gitlab reads merge requests through the GitLab REST API.
package gitlab

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/xanzy/go-gitlab"

	"github.com/JNZader/prgate/internal/git"
	"github.com/JNZader/prgate/internal/logger"
	"github.com/JNZader/prgate/internal/pr"
	"github.com/JNZader/prgate/internal/provider"
)

const pageSize = 100

// Provider implements provider.Provider for GitLab merge requests.
type Provider struct {
	client  *gitlab.Client
	project string
	iid     int
	marker  string
	log     *logger.Logger

	mu    sync.Mutex
	diffs map[string]string
}

// New creates a GitLab provider. opts.Repo is the project path with its
// namespace; opts.BaseURL is the instance root without "/api/v4".
func New(opts provider.Options) (*Provider, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	var clientOpts []gitlab.ClientOptionFunc
	if opts.BaseURL != "" {
		clientOpts = append(clientOpts, gitlab.WithBaseURL(strings.TrimSuffix(opts.BaseURL, "/")+"/api/v4"))
	}
	client, err := gitlab.NewClient(opts.Token, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("creating gitlab client: %w", err)
	}

	return &Provider{
		client:  client,
		project: strings.Trim(opts.Repo, "/"),
		iid:     opts.Number,
		marker:  opts.Marker,
		log:     logger.Default().WithPrefix("gitlab"),
	}, nil
}

// Name returns the provider name.
func (p *Provider) Name() string { return "gitlab" }

// Metadata fetches the merge request and its changes. GitLab reports no
// line totals, so additions and deletions are counted from the diffs.
func (p *Provider) Metadata(ctx context.Context) (*pr.Metadata, error) {
	mr, _, err := p.client.MergeRequests.GetMergeRequest(p.project, p.iid, nil, gitlab.WithContext(ctx))
	if err != nil {
		return nil, p.wrap(err, "fetching merge request")
	}

	changes, err := p.changes(ctx)
	if err != nil {
		return nil, err
	}

	meta := &pr.Metadata{
		Number:      mr.IID,
		Title:       mr.Title,
		Description: mr.Description,
		URL:         mr.WebURL,
	}
	for _, c := range changes {
		adds, dels := git.CountChanges(c.Diff)
		meta.Additions += adds
		meta.Deletions += dels

		switch {
		case c.NewFile:
			meta.Created = append(meta.Created, c.NewPath)
		case c.DeletedFile:
			meta.Deleted = append(meta.Deleted, c.OldPath)
		default:
			meta.Modified = append(meta.Modified, c.NewPath)
		}
	}

	p.mu.Lock()
	p.diffs = diffsOf(changes)
	p.mu.Unlock()

	p.log.Debug("MR !%d: %d modified, %d created, %d deleted",
		meta.Number, len(meta.Modified), len(meta.Created), len(meta.Deleted))
	return meta, nil
}

// fileChange is one entry of a merge request's change list.
type fileChange struct {
	NewPath     string
	OldPath     string
	Diff        string
	NewFile     bool
	DeletedFile bool
}

// changes returns every changed file. The changes endpoint truncates large
// merge requests; the paged diffs endpoint is read instead when it does.
func (p *Provider) changes(ctx context.Context) ([]fileChange, error) {
	mr, _, err := p.client.MergeRequests.GetMergeRequestChanges(p.project, p.iid, nil, gitlab.WithContext(ctx))
	if err != nil {
		return nil, p.wrap(err, "fetching merge request changes")
	}

	out := make([]fileChange, 0, len(mr.Changes))
	for _, c := range mr.Changes {
		out = append(out, fileChange{
			NewPath:     c.NewPath,
			OldPath:     c.OldPath,
			Diff:        c.Diff,
			NewFile:     c.NewFile,
			DeletedFile: c.DeletedFile,
		})
	}
	if !mr.Overflow {
		return out, nil
	}

	p.log.Warn("!%d has more changes than the changes endpoint returns, listing diffs page by page", p.iid)
	all, err := p.listDiffs(ctx)
	if err != nil {
		p.log.Warn("listing diffs of !%d failed, size totals may be low: %v", p.iid, err)
		return out, nil
	}
	return all, nil
}

func (p *Provider) listDiffs(ctx context.Context) ([]fileChange, error) {
	var out []fileChange
	opt := &gitlab.ListMergeRequestDiffsOptions{ListOptions: gitlab.ListOptions{PerPage: pageSize}}
	for {
		diffs, resp, err := p.client.MergeRequests.ListMergeRequestDiffs(p.project, p.iid, opt, gitlab.WithContext(ctx))
		if err != nil {
			return nil, p.wrap(err, "listing merge request diffs")
		}
		for _, d := range diffs {
			out = append(out, fileChange{
				NewPath:     d.NewPath,
				OldPath:     d.OldPath,
				Diff:        d.Diff,
				NewFile:     d.NewFile,
				DeletedFile: d.DeletedFile,
			})
		}
		if resp.NextPage == 0 {
			break
		}
		opt.Page = resp.NextPage
	}
	return out, nil
}

func diffsOf(changes []fileChange) map[string]string {
	diffs := make(map[string]string, len(changes))
	for _, c := range changes {
		if !c.DeletedFile {
			diffs[c.NewPath] = c.Diff
		}
	}
	return diffs
}

// Diff returns the diff of path from the changes read by Metadata, fetching
// them first when Metadata has not run.
func (p *Provider) Diff(ctx context.Context, path string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.diffs == nil {
		changes, err := p.changes(ctx)
		if err != nil {
			return "", err
		}
		p.diffs = diffsOf(changes)
	}

	text, ok := p.diffs[path]
	if !ok {
		return "", fmt.Errorf("%s is not part of %s!%d", path, p.project, p.iid)
	}
	return text, nil
}

// PostComment publishes body as a merge request note. With a marker
// configured, the newest earlier note carrying it is updated instead.
func (p *Provider) PostComment(ctx context.Context, body string) error {
	if p.marker != "" {
		id, err := p.findNote(ctx)
		if err != nil {
			return err
		}
		if id != 0 {
			_, _, err := p.client.Notes.UpdateMergeRequestNote(p.project, p.iid, id,
				&gitlab.UpdateMergeRequestNoteOptions{Body: &body}, gitlab.WithContext(ctx))
			if err != nil {
				return p.wrap(err, "updating note")
			}
			p.log.Info("Updated note %d on !%d", id, p.iid)
			return nil
		}
	}

	_, _, err := p.client.Notes.CreateMergeRequestNote(p.project, p.iid,
		&gitlab.CreateMergeRequestNoteOptions{Body: &body}, gitlab.WithContext(ctx))
	if err != nil {
		return p.wrap(err, "posting note")
	}
	p.log.Info("Posted note on !%d", p.iid)
	return nil
}

func (p *Provider) findNote(ctx context.Context) (int, error) {
	var found int
	var newest int64
	opt := &gitlab.ListMergeRequestNotesOptions{ListOptions: gitlab.ListOptions{PerPage: pageSize}}
	for {
		notes, resp, err := p.client.Notes.ListMergeRequestNotes(p.project, p.iid, opt, gitlab.WithContext(ctx))
		if err != nil {
			return 0, p.wrap(err, "listing notes")
		}
		for _, n := range notes {
			if n.System || !strings.Contains(n.Body, p.marker) {
				continue
			}
			var created int64
			if n.CreatedAt != nil {
				created = n.CreatedAt.UnixNano()
			}
			if found == 0 || created > newest {
				found, newest = n.ID, created
			}
		}
		if resp.NextPage == 0 {
			return found, nil
		}
		opt.Page = resp.NextPage
	}
}

func (p *Provider) wrap(err error, action string) error {
	var glErr *gitlab.ErrorResponse
	if errors.As(err, &glErr) && glErr.Response != nil && glErr.Response.StatusCode == http.StatusNotFound {
		err = provider.ErrNotFound
	}
	return fmt.Errorf("%s %s!%d: %w", action, p.project, p.iid, err)
}
