package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mwhitley/approvalgate/internal/domain/model"
	"github.com/mwhitley/approvalgate/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.CheckConfigStore = (*CheckConfigRepo)(nil)

// CheckConfigRepo is the SQLite implementation of the CheckConfigStore port
// interface. String collections are serialized as JSON arrays in TEXT columns.
type CheckConfigRepo struct {
	db *DB
}

// NewCheckConfigRepo creates a new CheckConfigRepo backed by the given DB.
func NewCheckConfigRepo(db *DB) *CheckConfigRepo {
	return &CheckConfigRepo{db: db}
}

// Get returns the stored config for the repository, or nil, nil if the
// repository has no override.
func (r *CheckConfigRepo) Get(ctx context.Context, repoFullName string) (*model.CheckConfig, error) {
	const query = `
		SELECT pattern, ignore, minimum, from_users, from_collaborators, from_orgs
		FROM check_configs
		WHERE repo_full_name = ?
	`

	var pattern string
	var ignoreJSON string
	var minimum int
	var usersJSON string
	var collaborators int
	var orgsJSON string

	err := r.db.Reader.QueryRowContext(ctx, query, repoFullName).Scan(
		&pattern, &ignoreJSON, &minimum, &usersJSON, &collaborators, &orgsJSON,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get check config for %s: %w", repoFullName, err)
	}

	cfg := model.CheckConfig{
		Pattern: pattern,
		Minimum: minimum,
	}

	if err := json.Unmarshal([]byte(ignoreJSON), &cfg.Ignore); err != nil {
		return nil, fmt.Errorf("unmarshal ignore: %w", err)
	}

	var users, orgs []string
	if err := json.Unmarshal([]byte(usersJSON), &users); err != nil {
		return nil, fmt.Errorf("unmarshal from_users: %w", err)
	}
	if err := json.Unmarshal([]byte(orgsJSON), &orgs); err != nil {
		return nil, fmt.Errorf("unmarshal from_orgs: %w", err)
	}

	rule := &model.MembershipRule{
		Users:         users,
		Collaborators: collaborators != 0,
		Orgs:          orgs,
	}
	if rule.Active() {
		cfg.From = rule
	}

	return &cfg, nil
}

// Put inserts or replaces the repository's config.
func (r *CheckConfigRepo) Put(ctx context.Context, repoFullName string, cfg model.CheckConfig) error {
	const query = `
		INSERT INTO check_configs (
			repo_full_name, pattern, ignore, minimum,
			from_users, from_collaborators, from_orgs, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(repo_full_name) DO UPDATE SET
			pattern = excluded.pattern,
			ignore = excluded.ignore,
			minimum = excluded.minimum,
			from_users = excluded.from_users,
			from_collaborators = excluded.from_collaborators,
			from_orgs = excluded.from_orgs,
			updated_at = excluded.updated_at
	`

	ignoreJSON, err := marshalStrings(cfg.Ignore)
	if err != nil {
		return fmt.Errorf("marshal ignore: %w", err)
	}

	var users, orgs []string
	collaborators := 0
	if cfg.From != nil {
		users = cfg.From.Users
		orgs = cfg.From.Orgs
		if cfg.From.Collaborators {
			collaborators = 1
		}
	}

	usersJSON, err := marshalStrings(users)
	if err != nil {
		return fmt.Errorf("marshal from_users: %w", err)
	}

	orgsJSON, err := marshalStrings(orgs)
	if err != nil {
		return fmt.Errorf("marshal from_orgs: %w", err)
	}

	_, err = r.db.Writer.ExecContext(ctx, query,
		repoFullName, cfg.Pattern, ignoreJSON, cfg.Minimum,
		usersJSON, collaborators, orgsJSON, formatTime(time.Now()),
	)
	if err != nil {
		return fmt.Errorf("put check config for %s: %w", repoFullName, err)
	}

	return nil
}

// Delete removes the repository's override. Returns an error if no override
// exists.
func (r *CheckConfigRepo) Delete(ctx context.Context, repoFullName string) error {
	const query = `DELETE FROM check_configs WHERE repo_full_name = ?`

	result, err := r.db.Writer.ExecContext(ctx, query, repoFullName)
	if err != nil {
		return fmt.Errorf("delete check config for %s: %w", repoFullName, err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check rows affected: %w", err)
	}

	if rows == 0 {
		return fmt.Errorf("check config for %s not found", repoFullName)
	}

	return nil
}

// marshalStrings serializes a string slice as a JSON array, treating nil as
// empty.
func marshalStrings(values []string) (string, error) {
	if values == nil {
		values = []string{}
	}
	data, err := json.Marshal(values)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
