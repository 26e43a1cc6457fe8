package model

import "time"

// PullRequestRecord is the persisted tracking record for one pull request,
// keyed uniquely by (repository full name, PR number). LastPush marks the
// lower bound for comment eligibility: only comments created after it count
// toward the quorum. It is set on creation and advanced when a new commit
// is pushed; the record is never deleted by the engine.
type PullRequestRecord struct {
	ID           int64
	RepoFullName string
	Number       int
	LastPush     time.Time
	CreatedAt    time.Time
}
