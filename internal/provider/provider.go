// Package provider defines the hosted review platforms prgate can read pull
// requests from and publish reports to.
package provider

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/JNZader/prgate/internal/pr"
)

// ErrNotFound is returned when the pull request does not exist or is not
// visible with the configured token.
var ErrNotFound = errors.New("pull request not found")

// Publisher posts a report body on the pull request.
type Publisher interface {
	PostComment(ctx context.Context, body string) error
}

// Provider is a pull request source that can also publish comments.
type Provider interface {
	pr.Source
	Publisher
}

// Options configures a provider.
type Options struct {
	Token string
	// Repo is "owner/name" on GitHub or the full project path on GitLab.
	Repo   string
	Number int
	// BaseURL points at an enterprise or self-hosted instance.
	BaseURL string
	// GraphQLURL overrides the GitHub GraphQL endpoint.
	GraphQLURL string
	// Marker, when set, makes PostComment update the previous comment
	// containing it instead of adding a new one.
	Marker string
}

// Validate checks the fields every provider needs.
func (o Options) Validate() error {
	if o.Repo == "" {
		return errors.New("repository is required")
	}
	if o.Number <= 0 {
		return fmt.Errorf("invalid pull request number %d", o.Number)
	}
	return nil
}

// SplitRepo splits "owner/name" into its parts.
func SplitRepo(repo string) (owner, name string, err error) {
	owner, name, ok := strings.Cut(repo, "/")
	if !ok || owner == "" || name == "" || strings.Contains(name, "/") {
		return "", "", fmt.Errorf("malformed repository %q, expected owner/name", repo)
	}
	return owner, name, nil
}
