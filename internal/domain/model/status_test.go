package model_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/mwhitley/approvalgate/internal/domain/model"
)

func TestApprovalMessage(t *testing.T) {
	tests := []struct {
		name   string
		actual int
		needed int
		want   string
	}{
		{"none of two", 0, 2, "needs 2 more approvals (0/2 given)"},
		{"one of two", 1, 2, "needs 1 more approvals (1/2 given)"},
		{"quorum met", 2, 2, "has 2/2 approvals since the last commit"},
		{"above quorum", 3, 2, "has 3/2 approvals since the last commit"},
		{"zero quorum", 0, 0, "has 0/0 approvals since the last commit"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, model.ApprovalMessage(tt.actual, tt.needed))
		})
	}
}

func TestNewReport(t *testing.T) {
	report := model.NewReport(model.StatusSuccess, "has 1/1 approvals since the last commit")

	assert.Equal(t, model.StatusSuccess, report.State)
	assert.Equal(t, model.StatusContext, report.Context)
}
