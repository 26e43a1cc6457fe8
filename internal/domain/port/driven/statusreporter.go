package driven

import (
	"context"

	"github.com/mwhitley/approvalgate/internal/domain/model"
)

// StatusReporter defines the driven port for posting commit statuses that
// surface the approval state on the pull request.
type StatusReporter interface {
	ReportStatus(ctx context.Context, owner, repo, sha string, report model.StatusReport) error
}
