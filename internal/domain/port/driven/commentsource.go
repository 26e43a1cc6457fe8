package driven

import (
	"context"
	"time"

	"github.com/mwhitley/approvalgate/internal/domain/model"
)

// CommentSource defines the driven port for reading PR-level comments and
// resolving issues to pull requests.
type CommentSource interface {
	// ListComments returns comments on the issue/PR ordered oldest-first.
	// A non-nil since limits results to comments created after it.
	ListComments(ctx context.Context, owner, repo string, number int, since *time.Time) ([]model.Comment, error)

	// GetOpenPullRequest resolves an issue number to its pull request.
	// Returns nil, nil when the issue is not a pull request or the pull
	// request is not open.
	GetOpenPullRequest(ctx context.Context, owner, repo string, issueNumber int) (*model.PullRequest, error)
}
