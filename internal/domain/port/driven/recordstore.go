package driven

import (
	"context"

	"github.com/mwhitley/approvalgate/internal/domain/model"
)

// RecordStore defines the driven port for pull request tracking records.
// The record's LastPush timestamp is the single source of truth for "since
// when do comments count."
type RecordStore interface {
	// Get returns the record for (repo, number), or nil, nil if none exists.
	Get(ctx context.Context, repoFullName string, number int) (*model.PullRequestRecord, error)

	// Create inserts a record with LastPush set to now and returns it.
	Create(ctx context.Context, repoFullName string, number int) (*model.PullRequestRecord, error)

	// RecordNewCommit advances the record's LastPush to now, creating the
	// record first if it does not exist.
	RecordNewCommit(ctx context.Context, repoFullName string, number int) error

	// ListByRepository returns all records for a repository, ordered by
	// PR number.
	ListByRepository(ctx context.Context, repoFullName string) ([]model.PullRequestRecord, error)
}
