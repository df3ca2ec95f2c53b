package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/custodia-labs/vulnsync/internal/core/domain"
)

// timeLayout is fixed-width so stored timestamps sort as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// RecordRun persists a run summary.
// Creates or updates the row based on run id.
func (s *Store) RecordRun(ctx context.Context, summary domain.RunSummary) error {
	if summary.RunID == "" {
		return domain.ErrInvalidInput
	}

	partitions, err := marshalList(summary.Partitions)
	if err != nil {
		return fmt.Errorf("marshalling partitions: %w", err)
	}

	var mergeStats any
	if summary.Merge != nil {
		data, err := json.Marshal(summary.Merge)
		if err != nil {
			return fmt.Errorf("marshalling merge stats: %w", err)
		}
		mergeStats = string(data)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO runs (run_id, kind, started_at, finished_at, partitions, records, failures, merge_stats, merge_error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(run_id) DO UPDATE SET
			kind = excluded.kind,
			started_at = excluded.started_at,
			finished_at = excluded.finished_at,
			partitions = excluded.partitions,
			records = excluded.records,
			failures = excluded.failures,
			merge_stats = excluded.merge_stats,
			merge_error = excluded.merge_error
	`, summary.RunID, string(summary.Kind),
		summary.Started.UTC().Format(timeLayout), formatNullableTime(summary.Finished),
		partitions, summary.Records, summary.Failures,
		mergeStats, nullString(summary.MergeError))

	if err != nil {
		return fmt.Errorf("saving run: %w", err)
	}
	return nil
}

// RecentRuns returns up to limit runs ordered by start time descending
// (most recent first).
func (s *Store) RecentRuns(ctx context.Context, limit int) ([]domain.RunSummary, error) {
	if limit <= 0 {
		return nil, nil
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT run_id, kind, started_at, finished_at, partitions, records, failures, merge_stats, merge_error
		FROM runs
		ORDER BY started_at DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying runs: %w", err)
	}
	defer rows.Close()

	var runs []domain.RunSummary //nolint:prealloc // size unknown from query
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *run)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating runs: %w", err)
	}

	return runs, nil
}

// scanRun scans a run summary from *sql.Rows.
func scanRun(rows *sql.Rows) (*domain.RunSummary, error) {
	var run domain.RunSummary
	var kind, startedAt, partitions string
	var finishedAt, mergeStats, mergeError sql.NullString

	if err := rows.Scan(&run.RunID, &kind, &startedAt, &finishedAt, &partitions,
		&run.Records, &run.Failures, &mergeStats, &mergeError); err != nil {
		return nil, fmt.Errorf("scanning run: %w", err)
	}

	run.Kind = domain.RunKind(kind)
	if t, err := time.Parse(time.RFC3339Nano, startedAt); err == nil {
		run.Started = t
	}
	run.Finished = parseNullableTime(finishedAt)

	list, err := unmarshalList(partitions)
	if err != nil {
		return nil, fmt.Errorf("unmarshalling partitions: %w", err)
	}
	run.Partitions = list

	if mergeStats.Valid {
		var stats domain.MergeStats
		if err := json.Unmarshal([]byte(mergeStats.String), &stats); err != nil {
			return nil, fmt.Errorf("unmarshalling merge stats: %w", err)
		}
		run.Merge = &stats
	}
	if mergeError.Valid {
		run.MergeError = mergeError.String
	}

	return &run, nil
}

// formatNullableTime formats a time to RFC3339 string, or returns nil for zero time.
func formatNullableTime(t time.Time) interface{} {
	if t.IsZero() {
		return nil
	}
	return t.UTC().Format(timeLayout)
}

// parseNullableTime parses a nullable RFC3339 string to time.Time.
// Returns zero time if the string is empty or invalid.
func parseNullableTime(s sql.NullString) time.Time {
	if !s.Valid || s.String == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, s.String)
	if err != nil {
		return time.Time{} // Return zero time on parse error
	}
	return t
}

// nullString returns nil for empty strings, otherwise the string.
func nullString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
