package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/mwhitley/approvalgate/internal/domain/model"
	"github.com/mwhitley/approvalgate/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.RecordStore = (*RecordRepo)(nil)

// RecordRepo is the SQLite implementation of the RecordStore port interface.
type RecordRepo struct {
	db *DB
	// now is swappable in tests.
	now func() time.Time
}

// NewRecordRepo creates a new RecordRepo backed by the given DB.
func NewRecordRepo(db *DB) *RecordRepo {
	return &RecordRepo{db: db, now: time.Now}
}

// Get returns the record for (repo, number), or nil, nil if none exists.
func (r *RecordRepo) Get(ctx context.Context, repoFullName string, number int) (*model.PullRequestRecord, error) {
	const query = `
		SELECT id, repo_full_name, number, last_push, created_at
		FROM pull_request_records
		WHERE repo_full_name = ? AND number = ?
	`

	record, err := scanRecord(r.db.Reader.QueryRowContext(ctx, query, repoFullName, number))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get record %s#%d: %w", repoFullName, number, err)
	}

	return record, nil
}

// Create inserts a record with LastPush set to now and returns it.
func (r *RecordRepo) Create(ctx context.Context, repoFullName string, number int) (*model.PullRequestRecord, error) {
	const query = `
		INSERT INTO pull_request_records (repo_full_name, number, last_push, created_at)
		VALUES (?, ?, ?, ?)
	`

	now := r.now()

	result, err := r.db.Writer.ExecContext(ctx, query,
		repoFullName, number, formatTime(now), formatTime(now),
	)
	if err != nil {
		return nil, fmt.Errorf("create record %s#%d: %w", repoFullName, number, err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}

	return &model.PullRequestRecord{
		ID:           id,
		RepoFullName: repoFullName,
		Number:       number,
		LastPush:     now.UTC(),
		CreatedAt:    now.UTC(),
	}, nil
}

// RecordNewCommit advances the record's LastPush to now, creating the record
// first if it does not exist. The upsert keeps created_at from the original
// insert.
func (r *RecordRepo) RecordNewCommit(ctx context.Context, repoFullName string, number int) error {
	const query = `
		INSERT INTO pull_request_records (repo_full_name, number, last_push, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(repo_full_name, number) DO UPDATE SET
			last_push = excluded.last_push
	`

	now := formatTime(r.now())

	_, err := r.db.Writer.ExecContext(ctx, query, repoFullName, number, now, now)
	if err != nil {
		return fmt.Errorf("record new commit %s#%d: %w", repoFullName, number, err)
	}

	return nil
}

// ListByRepository returns all records for a repository, ordered by PR number.
func (r *RecordRepo) ListByRepository(ctx context.Context, repoFullName string) ([]model.PullRequestRecord, error) {
	const query = `
		SELECT id, repo_full_name, number, last_push, created_at
		FROM pull_request_records
		WHERE repo_full_name = ?
		ORDER BY number
	`

	rows, err := r.db.Reader.QueryContext(ctx, query, repoFullName)
	if err != nil {
		return nil, fmt.Errorf("query records: %w", err)
	}
	defer rows.Close()

	var records []model.PullRequestRecord
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		records = append(records, *record)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate records: %w", err)
	}

	return records, nil
}

func scanRecord(s scanner) (*model.PullRequestRecord, error) {
	var record model.PullRequestRecord
	var lastPush, createdAt string

	err := s.Scan(&record.ID, &record.RepoFullName, &record.Number, &lastPush, &createdAt)
	if err != nil {
		return nil, err
	}

	record.LastPush, err = parseTime(lastPush)
	if err != nil {
		return nil, fmt.Errorf("parse last_push: %w", err)
	}

	record.CreatedAt, err = parseTime(createdAt)
	if err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}

	return &record, nil
}
