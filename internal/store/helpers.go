package store

import (
	"database/sql"
	"errors"
	"time"
)

// sqlTimeLayout is RFC 3339 with fixed-width fractional seconds. Timestamps
// are stored as TEXT and compared with SQL string operators, which only
// orders chronologically when every value has the same width; RFC3339Nano
// trims trailing zeros and breaks that.
const sqlTimeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(sqlTimeLayout)
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	if t, err := time.Parse(sqlTimeLayout, value); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339Nano, value)
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func nullableTime(value *time.Time) any {
	if value == nil {
		return nil
	}
	return formatTime(*value)
}

func makePlaceholders(count int) string {
	if count <= 0 {
		return ""
	}
	placeholders := make([]byte, 0, count*2)
	for i := 0; i < count; i++ {
		if i > 0 {
			placeholders = append(placeholders, ',')
		}
		placeholders = append(placeholders, '?')
	}
	return string(placeholders)
}

type rowScanner interface{ Scan(dest ...any) error }

const archiveColumns = "id, gallery_id, version, content_hash, status, storage_location, size_bytes, checksum, image_count, error_message, expires_at, notify_recipient, notify_sent, notify_sent_at, created_at, completed_at, updated_at"

func scanArchive(scanner rowScanner) (*Archive, error) {
	var (
		id              int64
		galleryID       string
		version         int64
		contentHash     string
		statusStr       string
		location        sql.NullString
		sizeBytes       sql.NullInt64
		checksum        sql.NullString
		imageCount      sql.NullInt64
		errorMessage    sql.NullString
		expiresRaw      sql.NullString
		notifyRecipient sql.NullString
		notifySent      sql.NullInt64
		notifySentRaw   sql.NullString
		createdRaw      sql.NullString
		completedRaw    sql.NullString
		updatedRaw      sql.NullString
	)

	if err := scanner.Scan(
		&id,
		&galleryID,
		&version,
		&contentHash,
		&statusStr,
		&location,
		&sizeBytes,
		&checksum,
		&imageCount,
		&errorMessage,
		&expiresRaw,
		&notifyRecipient,
		&notifySent,
		&notifySentRaw,
		&createdRaw,
		&completedRaw,
		&updatedRaw,
	); err != nil {
		return nil, err
	}

	archive := &Archive{
		ID:              id,
		GalleryID:       galleryID,
		Version:         version,
		ContentHash:     contentHash,
		Status:          Status(statusStr),
		StorageLocation: location.String,
		SizeBytes:       sizeBytes.Int64,
		Checksum:        checksum.String,
		ImageCount:      imageCount.Int64,
		ErrorMessage:    errorMessage.String,
		NotifyRecipient: notifyRecipient.String,
		NotifySent:      notifySent.Valid && notifySent.Int64 != 0,
	}

	if expiresRaw.Valid {
		if t, err := parseTimeString(expiresRaw.String); err == nil {
			archive.ExpiresAt = &t
		}
	}
	if notifySentRaw.Valid {
		if t, err := parseTimeString(notifySentRaw.String); err == nil {
			archive.NotifySentAt = &t
		}
	}
	if created, err := parseTimeString(createdRaw.String); err == nil {
		archive.CreatedAt = created
	}
	if completedRaw.Valid {
		if t, err := parseTimeString(completedRaw.String); err == nil {
			archive.CompletedAt = &t
		}
	}
	if updated, err := parseTimeString(updatedRaw.String); err == nil {
		archive.UpdatedAt = updated
	}
	return archive, nil
}

const jobColumns = "id, gallery_id, archive_id, status, priority, attempts, max_attempts, last_error, run_at, lease_holder, lease_acquired_at, created_at, updated_at"

func scanJob(scanner rowScanner) (*Job, error) {
	var (
		id          int64
		galleryID   string
		archiveID   sql.NullInt64
		statusStr   string
		priority    int64
		attempts    int64
		maxAttempts int64
		lastError   sql.NullString
		runAtRaw    sql.NullString
		leaseHolder sql.NullString
		leaseRaw    sql.NullString
		createdRaw  sql.NullString
		updatedRaw  sql.NullString
	)

	if err := scanner.Scan(
		&id,
		&galleryID,
		&archiveID,
		&statusStr,
		&priority,
		&attempts,
		&maxAttempts,
		&lastError,
		&runAtRaw,
		&leaseHolder,
		&leaseRaw,
		&createdRaw,
		&updatedRaw,
	); err != nil {
		return nil, err
	}

	job := &Job{
		ID:          id,
		GalleryID:   galleryID,
		ArchiveID:   archiveID.Int64,
		Status:      Status(statusStr),
		Priority:    priority,
		Attempts:    attempts,
		MaxAttempts: maxAttempts,
		LastError:   lastError.String,
		LeaseHolder: leaseHolder.String,
	}

	if runAt, err := parseTimeString(runAtRaw.String); err == nil {
		job.RunAt = runAt
	}
	if leaseRaw.Valid {
		if t, err := parseTimeString(leaseRaw.String); err == nil {
			job.LeaseAcquiredAt = &t
		}
	}
	if created, err := parseTimeString(createdRaw.String); err == nil {
		job.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw.String); err == nil {
		job.UpdatedAt = updated
	}
	return job, nil
}
