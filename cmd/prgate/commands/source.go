package commands

import (
	"fmt"

	"github.com/JNZader/prgate/internal/config"
	"github.com/JNZader/prgate/internal/git"
	"github.com/JNZader/prgate/internal/pr"
	"github.com/JNZader/prgate/internal/provider"
	"github.com/JNZader/prgate/internal/provider/github"
	"github.com/JNZader/prgate/internal/provider/gitlab"
	"github.com/JNZader/prgate/internal/report"
)

// newSource builds the pull request source selected by source.kind.
func newSource(cfg *config.Config) (pr.Source, error) {
	s := cfg.Source
	opts := provider.Options{
		Token:      s.Token,
		Repo:       s.FullRepo(),
		Number:     s.Number,
		BaseURL:    s.BaseURL,
		GraphQLURL: s.GraphQLURL,
		Marker:     report.CommentMarker,
	}

	var (
		src pr.Source
		err error
	)
	switch s.Kind {
	case config.SourceLocal:
		src, err = git.NewRepo(s.RepoPath, git.Options{Base: s.BaseRef, DescriptionFile: s.DescriptionFile})
	case config.SourceGitHub:
		src, err = github.New(opts)
	case config.SourceGitLab:
		src, err = gitlab.New(opts)
	default:
		return nil, fmt.Errorf("unknown source %q", s.Kind)
	}
	if err != nil {
		return nil, fmt.Errorf("creating %s source: %w", s.Kind, err)
	}
	return src, nil
}
