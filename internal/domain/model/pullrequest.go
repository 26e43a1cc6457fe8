package model

// PullRequest carries the subset of pull request data the approval engine
// needs: identity, author (for self-approval exclusion), open/closed state,
// and the head commit a status report targets.
type PullRequest struct {
	Number       int
	RepoFullName string
	Author       string
	State        string // "open" or "closed" as reported by the API.
	HeadSHA      string
	Title        string
	URL          string
}

// IsOpen returns true when the pull request is open.
func (pr PullRequest) IsOpen() bool {
	return pr.State == "open"
}
