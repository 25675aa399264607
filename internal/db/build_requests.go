package db

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/aparcar/buildboard/internal/models"
)

const buildRequestColumns = `id, branch, buildername, revision, status, result,
	submitted_at, start_time, complete_at`

// InsertBuildRequests stores reqs, replacing requests with the same ID
func (db *DB) InsertBuildRequests(ctx context.Context, reqs []*models.BuildRequest) (err error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO build_requests (`+buildRequestColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			branch = excluded.branch,
			buildername = excluded.buildername,
			revision = excluded.revision,
			status = excluded.status,
			result = excluded.result,
			submitted_at = excluded.submitted_at,
			start_time = excluded.start_time,
			complete_at = excluded.complete_at
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, req := range reqs {
		req.Normalize()
		_, err = stmt.ExecContext(ctx,
			req.ID,
			req.Branch,
			req.BuilderName,
			req.Revision,
			req.Status,
			req.Result,
			req.SubmittedAt,
			req.StartTime,
			req.CompleteAt,
		)
		if err != nil {
			return fmt.Errorf("failed to insert build request %d: %w", req.ID, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit build requests: %w", err)
	}
	return nil
}

// GetBuildRequest retrieves a build request by ID
func (db *DB) GetBuildRequest(ctx context.Context, id int64) (*models.BuildRequest, error) {
	row := db.QueryRowContext(ctx, `SELECT `+buildRequestColumns+` FROM build_requests WHERE id = ?`, id)

	req, err := scanBuildRequest(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query build request: %w", err)
	}
	return req, nil
}

// ListBuildRequests returns the requests of branch submitted in [start, end)
func (db *DB) ListBuildRequests(ctx context.Context, branch string, start, end int64) ([]*models.BuildRequest, error) {
	query := `
		SELECT ` + buildRequestColumns + `
		FROM build_requests
		WHERE branch = ? AND submitted_at >= ? AND submitted_at < ?
		ORDER BY submitted_at ASC, id ASC
	`
	return db.queryBuildRequests(ctx, query, branch, start, end)
}

// ListBuilderRequests returns the requests of one builder submitted in [start, end)
func (db *DB) ListBuilderRequests(ctx context.Context, builderName string, start, end int64) ([]*models.BuildRequest, error) {
	query := `
		SELECT ` + buildRequestColumns + `
		FROM build_requests
		WHERE buildername = ? AND submitted_at >= ? AND submitted_at < ?
		ORDER BY submitted_at ASC, id ASC
	`
	return db.queryBuildRequests(ctx, query, builderName, start, end)
}

// ListBranches returns the distinct branch names
func (db *DB) ListBranches(ctx context.Context) ([]string, error) {
	rows, err := db.QueryContext(ctx, `SELECT DISTINCT branch FROM build_requests ORDER BY branch`)
	if err != nil {
		return nil, fmt.Errorf("failed to query branches: %w", err)
	}
	defer rows.Close()

	var branches []string
	for rows.Next() {
		var b string
		if err := rows.Scan(&b); err != nil {
			return nil, fmt.Errorf("failed to scan branch: %w", err)
		}
		branches = append(branches, b)
	}
	return branches, rows.Err()
}

// CountBuildRequests returns the number of stored requests
func (db *DB) CountBuildRequests(ctx context.Context) (int, error) {
	var count int
	err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM build_requests").Scan(&count)
	return count, err
}

// PruneBuildRequests removes requests submitted before the given unix time
func (db *DB) PruneBuildRequests(ctx context.Context, before int64) (int64, error) {
	result, err := db.ExecContext(ctx, `DELETE FROM build_requests WHERE submitted_at < ?`, before)
	if err != nil {
		return 0, fmt.Errorf("failed to prune build requests: %w", err)
	}
	return result.RowsAffected()
}

func (db *DB) queryBuildRequests(ctx context.Context, query string, args ...any) ([]*models.BuildRequest, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query build requests: %w", err)
	}
	defer rows.Close()

	var reqs []*models.BuildRequest
	for rows.Next() {
		req, err := scanBuildRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan build request row: %w", err)
		}
		reqs = append(reqs, req)
	}

	return reqs, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanBuildRequest(s scanner) (*models.BuildRequest, error) {
	var req models.BuildRequest
	err := s.Scan(
		&req.ID,
		&req.Branch,
		&req.BuilderName,
		&req.Revision,
		&req.Status,
		&req.Result,
		&req.SubmittedAt,
		&req.StartTime,
		&req.CompleteAt,
	)
	if err != nil {
		return nil, err
	}
	return &req, nil
}
