package model

// PullRequestAction is the webhook action on a pull_request event.
// Only opened, reopened, and synchronize trigger behavior; all other
// actions are no-ops.
type PullRequestAction string

const (
	ActionOpened      PullRequestAction = "opened"
	ActionReopened    PullRequestAction = "reopened"
	ActionSynchronize PullRequestAction = "synchronize"
)

// PullRequestEvent is an inbound pull_request webhook delivery, already
// parsed and reduced to the fields the engine consumes.
type PullRequestEvent struct {
	Action    PullRequestAction
	RepoOwner string
	RepoName  string
	Number    int
	State     string // PR state at delivery time, "open" or "closed".
	HeadSHA   string
	Author    string
}

// RepoFullName returns the "owner/repo" identity for the event.
func (ev PullRequestEvent) RepoFullName() string {
	return ev.RepoOwner + "/" + ev.RepoName
}

// IssueCommentEvent is an inbound issue_comment webhook delivery. The issue
// number may or may not refer to a pull request; resolution happens against
// the comment source.
type IssueCommentEvent struct {
	RepoOwner   string
	RepoName    string
	IssueNumber int
}

// RepoFullName returns the "owner/repo" identity for the event.
func (ev IssueCommentEvent) RepoFullName() string {
	return ev.RepoOwner + "/" + ev.RepoName
}
