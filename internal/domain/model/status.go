package model

import "fmt"

// StatusState is the state of a commit status report.
type StatusState string

const (
	StatusPending StatusState = "pending"
	StatusSuccess StatusState = "success"
	StatusError   StatusState = "error"
)

// StatusContext is the fixed context string attached to every status report,
// so this check can coexist with other check types on the same commit.
const StatusContext = "approvalgate/approvals"

// StatusReport is one commit status update sent to the status reporter.
type StatusReport struct {
	State       StatusState
	Description string
	Context     string
}

// InProgressDescription is the placeholder description reported while an
// event is being evaluated.
const InProgressDescription = "validation in progress"

// NewReport builds a StatusReport with the fixed approval check context.
func NewReport(state StatusState, description string) StatusReport {
	return StatusReport{
		State:       state,
		Description: description,
		Context:     StatusContext,
	}
}

// ApprovalMessage renders the human-readable quorum summary for a status
// description. Below quorum it states how many approvals are still missing;
// at or above quorum it states the achieved count.
func ApprovalMessage(actual, needed int) string {
	if actual < needed {
		return fmt.Sprintf("needs %d more approvals (%d/%d given)", needed-actual, actual, needed)
	}
	return fmt.Sprintf("has %d/%d approvals since the last commit", actual, needed)
}
