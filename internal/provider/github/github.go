// Package github reads pull requests through the GitHub GraphQL and REST
// APIs.
package github

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/google/go-github/v60/github"
	"github.com/shurcooL/githubv4"
	"golang.org/x/oauth2"

	"github.com/JNZader/prgate/internal/logger"
	"github.com/JNZader/prgate/internal/pr"
	"github.com/JNZader/prgate/internal/provider"
)

const pageSize = 100

// Provider implements provider.Provider for GitHub. Metadata comes from
// GraphQL; per-file patches and comments use REST.
type Provider struct {
	v3     *github.Client
	v4     *githubv4.Client
	owner  string
	repo   string
	number int
	marker string
	log    *logger.Logger

	listOnce   sync.Once
	patches    map[string]string
	patchesErr error
}

// New creates a GitHub provider. opts.BaseURL is the REST root, e.g.
// "https://ghe.example.com/api/v3"; the GraphQL endpoint defaults to
// "<host>/api/graphql" for such hosts.
func New(opts provider.Options) (*Provider, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	owner, repo, err := provider.SplitRepo(opts.Repo)
	if err != nil {
		return nil, err
	}

	httpClient := &http.Client{}
	if opts.Token != "" {
		httpClient = oauth2.NewClient(context.Background(), oauth2.StaticTokenSource(
			&oauth2.Token{AccessToken: opts.Token},
		))
	}

	v3 := github.NewClient(httpClient)
	graphqlURL := opts.GraphQLURL
	if opts.BaseURL != "" {
		base, err := url.Parse(strings.TrimSuffix(opts.BaseURL, "/") + "/")
		if err != nil {
			return nil, fmt.Errorf("parsing base url: %w", err)
		}
		v3.BaseURL = base
		if graphqlURL == "" {
			graphqlURL = base.Scheme + "://" + base.Host + "/api/graphql"
		}
	}

	var v4 *githubv4.Client
	if graphqlURL != "" {
		v4 = githubv4.NewEnterpriseClient(graphqlURL, httpClient)
	} else {
		v4 = githubv4.NewClient(httpClient)
	}

	return &Provider{
		v3:     v3,
		v4:     v4,
		owner:  owner,
		repo:   repo,
		number: opts.Number,
		marker: opts.Marker,
		log:    logger.Default().WithPrefix("github"),
	}, nil
}

// Name returns the provider name.
func (p *Provider) Name() string { return "github" }

type changedFile struct {
	Path       githubv4.String
	ChangeType githubv4.String
}

type pullRequestQuery struct {
	Repository struct {
		PullRequest *struct {
			Number    githubv4.Int
			Title     githubv4.String
			Body      githubv4.String
			URL       githubv4.String
			Additions githubv4.Int
			Deletions githubv4.Int
			Files     struct {
				Nodes    []changedFile
				PageInfo struct {
					EndCursor   githubv4.String
					HasNextPage bool
				}
			} `graphql:"files(first:$filesFirst,after:$filesCursor)"`
		} `graphql:"pullRequest(number:$number)"`
	} `graphql:"repository(owner:$owner,name:$name)"`
}

// Metadata fetches the pull request and its changed files, following the
// files connection until the last page.
func (p *Provider) Metadata(ctx context.Context) (*pr.Metadata, error) {
	vars := map[string]interface{}{
		"owner":       githubv4.String(p.owner),
		"name":        githubv4.String(p.repo),
		"number":      githubv4.Int(p.number),
		"filesFirst":  githubv4.Int(pageSize),
		"filesCursor": (*githubv4.String)(nil),
	}

	meta := &pr.Metadata{}
	for page := 1; ; page++ {
		var query pullRequestQuery
		if err := p.v4.Query(ctx, &query, vars); err != nil {
			return nil, fmt.Errorf("querying pull request %s/%s#%d: %w", p.owner, p.repo, p.number, err)
		}
		pull := query.Repository.PullRequest
		if pull == nil {
			return nil, fmt.Errorf("%s/%s#%d: %w", p.owner, p.repo, p.number, provider.ErrNotFound)
		}

		if page == 1 {
			meta.Number = int(pull.Number)
			meta.Title = string(pull.Title)
			meta.Description = string(pull.Body)
			meta.URL = string(pull.URL)
			meta.Additions = int(pull.Additions)
			meta.Deletions = int(pull.Deletions)
		}
		for _, f := range pull.Files.Nodes {
			addFile(meta, string(f.Path), string(f.ChangeType))
		}

		if !pull.Files.PageInfo.HasNextPage {
			break
		}
		vars["filesCursor"] = githubv4.NewString(pull.Files.PageInfo.EndCursor)
	}

	p.log.Debug("PR #%d: %d modified, %d created, %d deleted",
		meta.Number, len(meta.Modified), len(meta.Created), len(meta.Deleted))
	return meta, nil
}

func addFile(meta *pr.Metadata, path, changeType string) {
	switch changeType {
	case "ADDED", "COPIED":
		meta.Created = append(meta.Created, path)
	case "DELETED":
		meta.Deleted = append(meta.Deleted, path)
	default:
		meta.Modified = append(meta.Modified, path)
	}
}

// Diff returns the patch of path. All patches are listed once, on the first
// call, and a listing failure is returned for every path. Files GitHub
// returns without a patch, such as binaries, yield an empty diff.
func (p *Provider) Diff(ctx context.Context, path string) (string, error) {
	p.listOnce.Do(func() {
		p.patches, p.patchesErr = p.listPatches(ctx)
	})
	if p.patchesErr != nil {
		return "", p.patchesErr
	}

	patch, ok := p.patches[path]
	if !ok {
		return "", fmt.Errorf("%s is not part of %s/%s#%d", path, p.owner, p.repo, p.number)
	}
	return patch, nil
}

func (p *Provider) listPatches(ctx context.Context) (map[string]string, error) {
	patches := make(map[string]string)
	opt := &github.ListOptions{PerPage: pageSize}
	for {
		files, resp, err := p.v3.PullRequests.ListFiles(ctx, p.owner, p.repo, p.number, opt)
		if err != nil {
			return nil, wrapNotFound(err, "listing files of %s/%s#%d", p.owner, p.repo, p.number)
		}
		for _, f := range files {
			patches[f.GetFilename()] = f.GetPatch()
		}
		if resp.NextPage == 0 {
			break
		}
		opt.Page = resp.NextPage
	}
	return patches, nil
}

// PostComment publishes body as an issue comment. With a marker configured,
// the newest earlier comment carrying it is edited instead.
func (p *Provider) PostComment(ctx context.Context, body string) error {
	if p.marker != "" {
		id, err := p.findComment(ctx)
		if err != nil {
			return err
		}
		if id != 0 {
			_, _, err := p.v3.Issues.EditComment(ctx, p.owner, p.repo, id, &github.IssueComment{Body: &body})
			if err != nil {
				return fmt.Errorf("updating comment %d: %w", id, err)
			}
			p.log.Info("Updated comment %d on #%d", id, p.number)
			return nil
		}
	}

	_, _, err := p.v3.Issues.CreateComment(ctx, p.owner, p.repo, p.number, &github.IssueComment{Body: &body})
	if err != nil {
		return wrapNotFound(err, "posting comment on %s/%s#%d", p.owner, p.repo, p.number)
	}
	p.log.Info("Posted comment on #%d", p.number)
	return nil
}

func (p *Provider) findComment(ctx context.Context) (int64, error) {
	var found int64
	opt := &github.IssueListCommentsOptions{ListOptions: github.ListOptions{PerPage: pageSize}}
	for {
		comments, resp, err := p.v3.Issues.ListComments(ctx, p.owner, p.repo, p.number, opt)
		if err != nil {
			return 0, wrapNotFound(err, "listing comments of %s/%s#%d", p.owner, p.repo, p.number)
		}
		for _, c := range comments {
			if strings.Contains(c.GetBody(), p.marker) {
				found = c.GetID()
			}
		}
		if resp.NextPage == 0 {
			return found, nil
		}
		opt.Page = resp.NextPage
	}
}

func wrapNotFound(err error, format string, args ...interface{}) error {
	var ghErr *github.ErrorResponse
	if errors.As(err, &ghErr) && ghErr.Response != nil && ghErr.Response.StatusCode == http.StatusNotFound {
		err = provider.ErrNotFound
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}
