package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// FindCurrentArchive returns the newest completed, unexpired archive matching
// the gallery's current content hash, or nil when the cache has no hit.
func (s *Store) FindCurrentArchive(ctx context.Context, galleryID, contentHash string) (*Archive, error) {
	now := formatTime(time.Now())
	row := s.db.QueryRowContext(
		ctx,
		`SELECT `+archiveColumns+` FROM archives
         WHERE gallery_id = ? AND content_hash = ? AND status = ?
           AND (expires_at IS NULL OR expires_at > ?)
         ORDER BY version DESC LIMIT 1`,
		galleryID,
		contentHash,
		StatusCompleted,
		now,
	)
	archive, err := scanArchive(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find current archive: %w", err)
	}
	return archive, nil
}

// GetArchive fetches an archive by identifier.
func (s *Store) GetArchive(ctx context.Context, id int64) (*Archive, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+archiveColumns+` FROM archives WHERE id = ?`, id)
	archive, err := scanArchive(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get archive: %w", err)
	}
	return archive, nil
}

// ListArchives returns a gallery's archives newest-first, or all archives when
// galleryID is empty.
func (s *Store) ListArchives(ctx context.Context, galleryID string) ([]*Archive, error) {
	var (
		rows *sql.Rows
		err  error
	)
	if galleryID == "" {
		rows, err = s.db.QueryContext(ctx, `SELECT `+archiveColumns+` FROM archives ORDER BY gallery_id, version DESC`)
	} else {
		rows, err = s.db.QueryContext(ctx, `SELECT `+archiveColumns+` FROM archives WHERE gallery_id = ? ORDER BY version DESC`, galleryID)
	}
	if err != nil {
		return nil, fmt.Errorf("list archives: %w", err)
	}
	defer rows.Close()

	var archives []*Archive
	for rows.Next() {
		archive, err := scanArchive(rows)
		if err != nil {
			return nil, err
		}
		archives = append(archives, archive)
	}
	return archives, rows.Err()
}

// MarkArchiveProcessing moves a pending archive to processing. Repeating the
// call for an archive already processing is a no-op, which is what a retried
// job does.
func (s *Store) MarkArchiveProcessing(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(
		ctx,
		`UPDATE archives SET status = ?, updated_at = ?
         WHERE id = ? AND status IN (?, ?)`,
		StatusProcessing,
		formatTime(time.Now()),
		id,
		StatusPending,
		StatusProcessing,
	)
	if err != nil {
		return fmt.Errorf("mark archive processing: %w", err)
	}
	return nil
}

// MarkArchiveCompleted records the finished blob against a processing archive.
func (s *Store) MarkArchiveCompleted(ctx context.Context, id int64, location string, sizeBytes int64, checksum string, imageCount int64, expiresAt *time.Time) error {
	now := formatTime(time.Now())
	_, err := s.db.ExecContext(
		ctx,
		`UPDATE archives
         SET status = ?, storage_location = ?, size_bytes = ?, checksum = ?,
             image_count = ?, expires_at = ?, error_message = NULL,
             completed_at = ?, updated_at = ?
         WHERE id = ? AND status IN (?, ?)`,
		StatusCompleted,
		location,
		sizeBytes,
		checksum,
		imageCount,
		nullableTime(expiresAt),
		now,
		now,
		id,
		StatusProcessing,
		StatusCompleted,
	)
	if err != nil {
		return fmt.Errorf("mark archive completed: %w", err)
	}
	return nil
}

// MarkArchiveFailed records a terminal failure on an archive.
func (s *Store) MarkArchiveFailed(ctx context.Context, id int64, message string) error {
	_, err := s.db.ExecContext(
		ctx,
		`UPDATE archives SET status = ?, error_message = ?, updated_at = ?
         WHERE id = ? AND status IN (?, ?, ?)`,
		StatusFailed,
		nullableString(message),
		formatTime(time.Now()),
		id,
		StatusPending,
		StatusProcessing,
		StatusFailed,
	)
	if err != nil {
		return fmt.Errorf("mark archive failed: %w", err)
	}
	return nil
}

// ClaimNotification flips the notify_sent flag exactly once per archive. The
// caller that gets true owns sending the notification; everyone else backs
// off. Flag-before-send keeps delivery at-most-once across worker crashes.
func (s *Store) ClaimNotification(ctx context.Context, id int64) (bool, error) {
	now := formatTime(time.Now())
	res, err := s.db.ExecContext(
		ctx,
		`UPDATE archives SET notify_sent = 1, notify_sent_at = ?, updated_at = ?
         WHERE id = ? AND notify_sent = 0`,
		now,
		now,
		id,
	)
	if err != nil {
		return false, fmt.Errorf("claim notification: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected > 0, nil
}

// MarkNotificationSent records the recipient that was actually notified.
func (s *Store) MarkNotificationSent(ctx context.Context, id int64, recipient string) error {
	now := formatTime(time.Now())
	_, err := s.db.ExecContext(
		ctx,
		`UPDATE archives SET notify_recipient = ?, notify_sent_at = ?, updated_at = ? WHERE id = ?`,
		nullableString(recipient),
		now,
		now,
		id,
	)
	if err != nil {
		return fmt.Errorf("mark notification sent: %w", err)
	}
	return nil
}
