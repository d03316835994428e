package driven

import (
	"context"

	"github.com/ericfisherdev/pagesdns/internal/domain/model"
)

// PagesSource is the read side of the GitHub API the discovery chain needs.
type PagesSource interface {
	// GetPagesInfo returns the live Pages configuration, or nil, nil when the
	// repository has no Pages site.
	GetPagesInfo(ctx context.Context, repo string) (*model.PagesInfo, error)

	// GetFileContent returns the decoded content of path at branch. found is
	// false when the file or branch does not exist.
	GetFileContent(ctx context.Context, repo, path, branch string) (content string, found bool, err error)

	// GetDefaultBranch returns the repository's default branch name.
	GetDefaultBranch(ctx context.Context, repo string) (string, error)
}

// InstallationTokenExchanger trades a signed app assertion for an
// installation access token.
type InstallationTokenExchanger interface {
	Exchange(ctx context.Context) (model.AccessToken, error)
}
