package driven

import (
	"context"

	"github.com/mwhitley/approvalgate/internal/domain/model"
)

// CheckConfigStore defines the driven port for per-repository check
// configuration overrides. Repositories without a stored override fall back
// to the service-wide default config.
type CheckConfigStore interface {
	// Get returns the stored config for the repository, or nil, nil if the
	// repository has no override.
	Get(ctx context.Context, repoFullName string) (*model.CheckConfig, error)

	// Put inserts or replaces the repository's config.
	Put(ctx context.Context, repoFullName string, cfg model.CheckConfig) error

	// Delete removes the repository's override. Deleting a missing override
	// is an error.
	Delete(ctx context.Context, repoFullName string) error
}
