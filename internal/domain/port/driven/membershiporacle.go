package driven

import "context"

// MembershipOracle defines the driven port for answering collaborator and
// organization membership queries used by the approval counter's "from"
// restriction.
type MembershipOracle interface {
	IsCollaborator(ctx context.Context, owner, repo, username string) (bool, error)
	IsOrgMember(ctx context.Context, org, username string) (bool, error)
}
