package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"
)

// ReclaimExpiredLeases returns processing jobs whose lease is older than the
// timeout to pending. Attempts are deliberately left alone: a crashed worker
// is not the job's fault, and charging an attempt for it would let repeated
// crashes exhaust the retry budget without the job ever misbehaving.
func (s *Store) ReclaimExpiredLeases(ctx context.Context, leaseTimeout time.Duration) (int64, error) {
	now := time.Now()
	res, err := s.db.ExecContext(
		ctx,
		`UPDATE jobs
         SET status = ?, lease_holder = NULL, lease_acquired_at = NULL, updated_at = ?
         WHERE status = ? AND lease_acquired_at IS NOT NULL AND lease_acquired_at <= ?`,
		StatusPending,
		formatTime(now),
		StatusProcessing,
		formatTime(now.Add(-leaseTimeout)),
	)
	if err != nil {
		return 0, fmt.Errorf("reclaim expired leases: %w", err)
	}
	return res.RowsAffected()
}

// RetryFailed moves failed jobs back to pending with a fresh attempt budget,
// and their archives back to pending with it. The notification claim is reset
// too: a terminal failure burned it, and a retried archive that completes
// should still announce itself. Specific ids narrow the sweep.
func (s *Store) RetryFailed(ctx context.Context, ids ...int64) (int64, error) {
	tx, err := s.beginWrite(ctx)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback() }()

	now := formatTime(time.Now())

	jobQuery := `UPDATE jobs
        SET status = ?, attempts = 0, last_error = NULL, run_at = ?,
            lease_holder = NULL, lease_acquired_at = NULL, updated_at = ?
        WHERE status = ?`
	args := []any{StatusPending, now, now, StatusFailed}
	if len(ids) > 0 {
		jobQuery += ` AND id IN (` + makePlaceholders(len(ids)) + `)`
		for _, id := range ids {
			args = append(args, id)
		}
	}
	res, err := tx.ExecContext(ctx, jobQuery, args...)
	if err != nil {
		return 0, fmt.Errorf("retry failed jobs: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}

	archiveQuery := `UPDATE archives
        SET status = ?, error_message = NULL, notify_sent = 0, notify_sent_at = NULL, updated_at = ?
        WHERE status = ? AND id IN (SELECT archive_id FROM jobs WHERE status = ?`
	archiveArgs := []any{StatusPending, now, StatusFailed, StatusPending}
	if len(ids) > 0 {
		archiveQuery += ` AND id IN (` + makePlaceholders(len(ids)) + `)`
		for _, id := range ids {
			archiveArgs = append(archiveArgs, id)
		}
	}
	archiveQuery += `)`
	if _, err := tx.ExecContext(ctx, archiveQuery, archiveArgs...); err != nil {
		return 0, fmt.Errorf("retry failed archives: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit retry: %w", err)
	}
	return affected, nil
}

// ClearCompleted removes completed jobs. Archive rows stay: they are the
// cache.
func (s *Store) ClearCompleted(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM jobs WHERE status = ?`, StatusCompleted)
	if err != nil {
		return 0, fmt.Errorf("clear completed: %w", err)
	}
	return res.RowsAffected()
}

// ClearFailed removes failed jobs and their failed archive rows. Jobs go
// first: they hold the foreign key, so deleting the archives while the job
// rows still reference them would trip the constraint.
func (s *Store) ClearFailed(ctx context.Context) (int64, error) {
	tx, err := s.beginWrite(ctx)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback() }()

	archiveIDs, err := referencedArchiveIDs(ctx, tx, StatusFailed)
	if err != nil {
		return 0, err
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM jobs WHERE status = ?`, StatusFailed)
	if err != nil {
		return 0, fmt.Errorf("clear failed jobs: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	if len(archiveIDs) > 0 {
		args := make([]any, 0, len(archiveIDs)+1)
		args = append(args, StatusFailed)
		for _, id := range archiveIDs {
			args = append(args, id)
		}
		if _, err := tx.ExecContext(
			ctx,
			`DELETE FROM archives WHERE status = ? AND id IN (`+makePlaceholders(len(archiveIDs))+`)`,
			args...,
		); err != nil {
			return 0, fmt.Errorf("clear failed archives: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit clear: %w", err)
	}
	return affected, nil
}

// referencedArchiveIDs collects the archive ids held by jobs in the given
// status, for deleting archives after their referencing jobs are gone.
func referencedArchiveIDs(ctx context.Context, tx *sql.Tx, status Status) ([]int64, error) {
	rows, err := tx.QueryContext(
		ctx,
		`SELECT archive_id FROM jobs WHERE status = ? AND archive_id IS NOT NULL`,
		status,
	)
	if err != nil {
		return nil, fmt.Errorf("select referenced archives: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan archive id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Clear removes every job and archive row. Schema stays in place.
func (s *Store) Clear(ctx context.Context) (int64, error) {
	tx, err := s.beginWrite(ctx)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, `DELETE FROM jobs`)
	if err != nil {
		return 0, fmt.Errorf("clear jobs: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM archives`); err != nil {
		return 0, fmt.Errorf("clear archives: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit clear: %w", err)
	}
	return affected, nil
}

// PruneExpiredArchives deletes completed archive rows past their expiry and
// returns the storage locations whose blobs should be removed.
func (s *Store) PruneExpiredArchives(ctx context.Context) ([]string, error) {
	tx, err := s.beginWrite(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	now := formatTime(time.Now())
	rows, err := tx.QueryContext(
		ctx,
		`SELECT id, storage_location FROM archives
         WHERE status = ? AND expires_at IS NOT NULL AND expires_at <= ?`,
		StatusCompleted,
		now,
	)
	if err != nil {
		return nil, fmt.Errorf("select expired archives: %w", err)
	}

	var (
		ids       []int64
		locations []string
	)
	for rows.Next() {
		var (
			id       int64
			location sql.NullString
		)
		if err := rows.Scan(&id, &location); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan expired archive: %w", err)
		}
		ids = append(ids, id)
		if location.String != "" {
			locations = append(locations, location.String)
		}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate expired archives: %w", err)
	}

	if len(ids) == 0 {
		return nil, tx.Commit()
	}

	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	// The producing jobs usually still reference these rows; detach them so
	// the foreign key does not block the delete.
	if _, err := tx.ExecContext(
		ctx,
		`UPDATE jobs SET archive_id = NULL WHERE archive_id IN (`+makePlaceholders(len(ids))+`)`,
		args...,
	); err != nil {
		return nil, fmt.Errorf("detach pruned archives: %w", err)
	}
	if _, err := tx.ExecContext(
		ctx,
		`DELETE FROM archives WHERE id IN (`+makePlaceholders(len(ids))+`)`,
		args...,
	); err != nil {
		return nil, fmt.Errorf("delete expired archives: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit prune: %w", err)
	}
	return locations, nil
}

// Stats returns a count of jobs grouped by status.
func (s *Store) Stats(ctx context.Context) (map[Status]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(1) FROM jobs GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("job stats: %w", err)
	}
	defer rows.Close()

	stats := make(map[Status]int)
	for rows.Next() {
		var status Status
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		stats[status] = count
	}
	return stats, rows.Err()
}

// Health aggregates job state for diagnostic output.
func (s *Store) Health(ctx context.Context) (HealthSummary, error) {
	stats, err := s.Stats(ctx)
	if err != nil {
		return HealthSummary{}, err
	}
	health := HealthSummary{}
	for status, count := range stats {
		health.Total += count
		switch status {
		case StatusPending:
			health.Pending += count
		case StatusProcessing:
			health.Processing += count
		case StatusCompleted:
			health.Completed += count
		case StatusFailed:
			health.Failed += count
		}
	}
	return health, nil
}

// CheckHealth returns diagnostic information about the archive database.
func (s *Store) CheckHealth(ctx context.Context) (DatabaseHealth, error) {
	health := DatabaseHealth{
		DBPath:        s.path,
		SchemaVersion: fmt.Sprintf("%d", schemaVersion),
	}

	if s.path == "" {
		return health, errors.New("archive database path is unknown")
	}

	info, err := os.Stat(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			health.DatabaseExists = false
			return health, nil
		}
		return health, fmt.Errorf("stat archive database: %w", err)
	}
	if info.IsDir() {
		return health, fmt.Errorf("archive database path %q is a directory", s.path)
	}
	health.DatabaseExists = true

	if s.db == nil {
		return health, errors.New("archive database connection unavailable")
	}

	connCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if err := s.db.PingContext(connCtx); err != nil {
		health.Error = err.Error()
		return health, fmt.Errorf("ping archive database: %w", err)
	}
	health.DatabaseReadable = true

	expected := map[string]struct{}{"archives": {}, "jobs": {}}
	rows, err := s.db.QueryContext(connCtx, "SELECT name FROM sqlite_master WHERE type = 'table' AND name IN ('archives', 'jobs')")
	if err != nil {
		health.Error = err.Error()
		return health, fmt.Errorf("query table info: %w", err)
	}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			rows.Close()
			health.Error = err.Error()
			return health, fmt.Errorf("scan table info: %w", err)
		}
		health.TablesPresent = append(health.TablesPresent, name)
		delete(expected, name)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		health.Error = err.Error()
		return health, fmt.Errorf("iterate table info: %w", err)
	}
	for name := range expected {
		health.MissingTables = append(health.MissingTables, name)
	}

	if len(health.MissingTables) == 0 {
		row := s.db.QueryRowContext(connCtx, "SELECT COUNT(*) FROM archives")
		if err := row.Scan(&health.TotalArchives); err != nil {
			health.Error = err.Error()
			return health, fmt.Errorf("count archives: %w", err)
		}
		row = s.db.QueryRowContext(connCtx, "SELECT COUNT(*) FROM jobs")
		if err := row.Scan(&health.TotalJobs); err != nil {
			health.Error = err.Error()
			return health, fmt.Errorf("count jobs: %w", err)
		}
	}

	row := s.db.QueryRowContext(connCtx, "PRAGMA integrity_check")
	var integrityResult string
	if err := row.Scan(&integrityResult); err != nil {
		health.Error = err.Error()
		return health, fmt.Errorf("integrity check: %w", err)
	}
	health.IntegrityCheck = strings.EqualFold(integrityResult, "ok")

	return health, nil
}
