package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// EnqueueOptions tune a new archive job.
type EnqueueOptions struct {
	Priority        int64
	MaxAttempts     int64
	NotifyRecipient string
	ImageCount      int64
}

// EnqueueArchiveJob creates a pending archive (version = 1 + the gallery's
// highest) and its generation job inside one write transaction. If the gallery
// already has a non-terminal job, that job's ticket comes back instead with
// Created=false: at most one job is ever in flight per gallery.
func (s *Store) EnqueueArchiveJob(ctx context.Context, galleryID, contentHash string, opts EnqueueOptions) (*Ticket, error) {
	if galleryID == "" {
		return nil, errors.New("gallery id is empty")
	}
	if opts.MaxAttempts <= 0 {
		return nil, errors.New("max attempts must be positive")
	}

	tx, err := s.beginWrite(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	row := tx.QueryRowContext(
		ctx,
		`SELECT `+jobColumns+` FROM jobs
         WHERE gallery_id = ? AND status IN (?, ?)
         ORDER BY id LIMIT 1`,
		galleryID,
		StatusPending,
		StatusProcessing,
	)
	existing, err := scanJob(row)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("check in-flight job: %w", err)
	}
	if existing != nil {
		archive, err := getArchiveTx(ctx, tx, existing.ArchiveID)
		if err != nil {
			return nil, err
		}
		if err := tx.Commit(); err != nil {
			return nil, fmt.Errorf("commit enqueue: %w", err)
		}
		return &Ticket{Archive: archive, Job: existing, Created: false}, nil
	}

	var maxVersion int64
	if err := tx.QueryRowContext(
		ctx,
		`SELECT COALESCE(MAX(version), 0) FROM archives WHERE gallery_id = ?`,
		galleryID,
	).Scan(&maxVersion); err != nil {
		return nil, fmt.Errorf("next archive version: %w", err)
	}

	now := formatTime(time.Now())
	res, err := tx.ExecContext(
		ctx,
		`INSERT INTO archives (
            gallery_id, version, content_hash, status, image_count,
            notify_recipient, notify_sent, created_at, updated_at
        ) VALUES (?, ?, ?, ?, ?, ?, 0, ?, ?)`,
		galleryID,
		maxVersion+1,
		contentHash,
		StatusPending,
		opts.ImageCount,
		nullableString(opts.NotifyRecipient),
		now,
		now,
	)
	if err != nil {
		return nil, fmt.Errorf("insert archive: %w", err)
	}
	archiveID, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("archive insert id: %w", err)
	}

	res, err = tx.ExecContext(
		ctx,
		`INSERT INTO jobs (
            gallery_id, archive_id, status, priority, attempts, max_attempts,
            run_at, created_at, updated_at
        ) VALUES (?, ?, ?, ?, 0, ?, ?, ?, ?)`,
		galleryID,
		archiveID,
		StatusPending,
		opts.Priority,
		opts.MaxAttempts,
		now,
		now,
		now,
	)
	if err != nil {
		return nil, fmt.Errorf("insert job: %w", err)
	}
	jobID, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("job insert id: %w", err)
	}

	archive, err := getArchiveTx(ctx, tx, archiveID)
	if err != nil {
		return nil, err
	}
	job, err := getJobTx(ctx, tx, jobID)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit enqueue: %w", err)
	}
	return &Ticket{Archive: archive, Job: job, Created: true}, nil
}

// LeaseJob claims the most eligible pending job for a worker. Eligibility is
// status=pending, run_at due, and no live lease; candidates order by priority
// descending, then run_at, then id. Returns nil when nothing is due. Two
// concurrent callers can never lease the same job: the select and the
// conditional update share one write transaction.
func (s *Store) LeaseJob(ctx context.Context, workerID string, leaseTimeout time.Duration) (*Job, error) {
	if workerID == "" {
		return nil, errors.New("worker id is empty")
	}

	tx, err := s.beginWrite(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now()
	nowStr := formatTime(now)
	staleCutoff := formatTime(now.Add(-leaseTimeout))

	var jobID int64
	err = tx.QueryRowContext(
		ctx,
		`SELECT id FROM jobs
         WHERE status = ? AND run_at <= ?
           AND (lease_holder IS NULL OR lease_acquired_at <= ?)
         ORDER BY priority DESC, run_at, id
         LIMIT 1`,
		StatusPending,
		nowStr,
		staleCutoff,
	).Scan(&jobID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("select eligible job: %w", err)
	}

	res, err := tx.ExecContext(
		ctx,
		`UPDATE jobs SET status = ?, lease_holder = ?, lease_acquired_at = ?, updated_at = ?
         WHERE id = ? AND status = ?`,
		StatusProcessing,
		workerID,
		nowStr,
		nowStr,
		jobID,
		StatusPending,
	)
	if err != nil {
		return nil, fmt.Errorf("lease job: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return nil, nil
	}

	job, err := getJobTx(ctx, tx, jobID)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit lease: %w", err)
	}
	return job, nil
}

// ExtendLease refreshes a worker's lease on a job it still holds. False means
// the lease was lost in the meantime.
func (s *Store) ExtendLease(ctx context.Context, jobID int64, workerID string) (bool, error) {
	now := formatTime(time.Now())
	res, err := s.db.ExecContext(
		ctx,
		`UPDATE jobs SET lease_acquired_at = ?, updated_at = ?
         WHERE id = ? AND lease_holder = ? AND status = ?`,
		now,
		now,
		jobID,
		workerID,
		StatusProcessing,
	)
	if err != nil {
		return false, fmt.Errorf("extend lease: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected > 0, nil
}

// CompleteJob finalizes a job the worker still holds. False means the lease
// was reclaimed while the worker ran; the result must be discarded.
func (s *Store) CompleteJob(ctx context.Context, jobID int64, workerID string) (bool, error) {
	now := formatTime(time.Now())
	res, err := s.db.ExecContext(
		ctx,
		`UPDATE jobs
         SET status = ?, lease_holder = NULL, lease_acquired_at = NULL, last_error = NULL, updated_at = ?
         WHERE id = ? AND lease_holder = ? AND status = ?`,
		StatusCompleted,
		now,
		jobID,
		workerID,
		StatusProcessing,
	)
	if err != nil {
		return false, fmt.Errorf("complete job: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected > 0, nil
}

// FailJob records a failed attempt on a job the worker still holds. While
// attempts remain it requeues with exponential backoff (base doubled per prior
// attempt, capped); once attempts are exhausted the job is failed terminally.
// Outcome.Applied is false when the lease was already reclaimed.
func (s *Store) FailJob(ctx context.Context, jobID int64, workerID, message string, backoffBase, backoffCap time.Duration) (FailOutcome, error) {
	tx, err := s.beginWrite(ctx)
	if err != nil {
		return FailOutcome{}, err
	}
	defer func() { _ = tx.Rollback() }()

	var attempts, maxAttempts int64
	err = tx.QueryRowContext(
		ctx,
		`SELECT attempts, max_attempts FROM jobs
         WHERE id = ? AND lease_holder = ? AND status = ?`,
		jobID,
		workerID,
		StatusProcessing,
	).Scan(&attempts, &maxAttempts)
	if errors.Is(err, sql.ErrNoRows) {
		return FailOutcome{}, nil
	}
	if err != nil {
		return FailOutcome{}, fmt.Errorf("load job for failure: %w", err)
	}

	now := time.Now()
	nowStr := formatTime(now)
	newAttempts := attempts + 1

	if newAttempts >= maxAttempts {
		_, err = tx.ExecContext(
			ctx,
			`UPDATE jobs
             SET status = ?, attempts = ?, last_error = ?,
                 lease_holder = NULL, lease_acquired_at = NULL, updated_at = ?
             WHERE id = ?`,
			StatusFailed,
			newAttempts,
			nullableString(message),
			nowStr,
			jobID,
		)
		if err != nil {
			return FailOutcome{}, fmt.Errorf("finalize failed job: %w", err)
		}
		if err := tx.Commit(); err != nil {
			return FailOutcome{}, fmt.Errorf("commit failure: %w", err)
		}
		return FailOutcome{Applied: true, Terminal: true, Attempts: newAttempts}, nil
	}

	nextRun := now.Add(backoffDelay(attempts, backoffBase, backoffCap))
	_, err = tx.ExecContext(
		ctx,
		`UPDATE jobs
         SET status = ?, attempts = ?, last_error = ?, run_at = ?,
             lease_holder = NULL, lease_acquired_at = NULL, updated_at = ?
         WHERE id = ?`,
		StatusPending,
		newAttempts,
		nullableString(message),
		formatTime(nextRun),
		nowStr,
		jobID,
	)
	if err != nil {
		return FailOutcome{}, fmt.Errorf("requeue failed job: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return FailOutcome{}, fmt.Errorf("commit failure: %w", err)
	}
	return FailOutcome{Applied: true, Attempts: newAttempts, NextRun: nextRun}, nil
}

// backoffDelay doubles the base per prior attempt and clamps at the cap.
func backoffDelay(priorAttempts int64, base, maxDelay time.Duration) time.Duration {
	delay := base
	for i := int64(0); i < priorAttempts; i++ {
		delay *= 2
		if delay >= maxDelay {
			return maxDelay
		}
	}
	if delay > maxDelay {
		return maxDelay
	}
	return delay
}

// GetJob fetches a job by identifier.
func (s *Store) GetJob(ctx context.Context, id int64) (*Job, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = ?`, id)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	return job, nil
}

// ListJobs returns jobs filtered by status set (or all jobs when no status is
// provided), oldest first.
func (s *Store) ListJobs(ctx context.Context, statuses ...Status) ([]*Job, error) {
	var (
		rows *sql.Rows
		err  error
	)

	baseQuery := `SELECT ` + jobColumns + ` FROM jobs`
	orderClause := ` ORDER BY id`

	if len(statuses) == 0 {
		rows, err = s.db.QueryContext(ctx, baseQuery+orderClause)
	} else {
		placeholders := makePlaceholders(len(statuses))
		args := make([]any, len(statuses))
		for i, status := range statuses {
			args[i] = status
		}
		query := baseQuery + ` WHERE status IN (` + placeholders + `)` + orderClause
		rows, err = s.db.QueryContext(ctx, query, args...)
	}
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

func getArchiveTx(ctx context.Context, tx *sql.Tx, id int64) (*Archive, error) {
	row := tx.QueryRowContext(ctx, `SELECT `+archiveColumns+` FROM archives WHERE id = ?`, id)
	archive, err := scanArchive(row)
	if err != nil {
		return nil, fmt.Errorf("get archive in tx: %w", err)
	}
	return archive, nil
}

func getJobTx(ctx context.Context, tx *sql.Tx, id int64) (*Job, error) {
	row := tx.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = ?`, id)
	job, err := scanJob(row)
	if err != nil {
		return nil, fmt.Errorf("get job in tx: %w", err)
	}
	return job, nil
}
