package db

import (
	"context"
	"fmt"

	"github.com/aparcar/buildboard/internal/models"
)

// ResultsPerDay returns the number of build requests of branch submitted in
// [start, end), grouped by UTC day and result
func (db *DB) ResultsPerDay(ctx context.Context, branch string, start, end int64) (map[string]map[models.Result]int, error) {
	query := `
		SELECT DATE(submitted_at, 'unixepoch') as day, result, COUNT(*) as count
		FROM build_requests
		WHERE branch = ? AND submitted_at >= ? AND submitted_at < ?
		GROUP BY day, result
		ORDER BY day
	`

	rows, err := db.QueryContext(ctx, query, branch, start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to query results per day: %w", err)
	}
	defer rows.Close()

	stats := make(map[string]map[models.Result]int)
	for rows.Next() {
		var day string
		var result models.Result
		var count int

		if err := rows.Scan(&day, &result, &count); err != nil {
			return nil, fmt.Errorf("failed to scan stat row: %w", err)
		}

		if stats[day] == nil {
			stats[day] = make(map[models.Result]int)
		}
		stats[day][result] = count
	}

	return stats, rows.Err()
}

// CountByStatus returns the number of stored build requests per status
func (db *DB) CountByStatus(ctx context.Context) (map[models.JobStatus]int, error) {
	rows, err := db.QueryContext(ctx, "SELECT status, COUNT(*) FROM build_requests GROUP BY status")
	if err != nil {
		return nil, fmt.Errorf("failed to count build requests: %w", err)
	}
	defer rows.Close()

	counts := map[models.JobStatus]int{
		models.JobStatusPending:  0,
		models.JobStatusRunning:  0,
		models.JobStatusComplete: 0,
	}
	for rows.Next() {
		var status models.JobStatus
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("failed to scan status row: %w", err)
		}
		counts[status] = count
	}
	return counts, rows.Err()
}
