package api

import (
	"time"

	"darkroom/internal/store"
)

// ArchiveView is the wire form of a store.Archive.
type ArchiveView struct {
	ID              int64  `json:"id"`
	GalleryID       string `json:"gallery_id"`
	Version         int64  `json:"version"`
	ContentHash     string `json:"content_hash"`
	Status          string `json:"status"`
	StorageLocation string `json:"storage_location,omitempty"`
	SizeBytes       int64  `json:"size_bytes"`
	Checksum        string `json:"checksum,omitempty"`
	ImageCount      int64  `json:"image_count"`
	ErrorMessage    string `json:"error_message,omitempty"`
	ExpiresAt       string `json:"expires_at,omitempty"`
	NotifyRecipient string `json:"notify_recipient,omitempty"`
	NotifySent      bool   `json:"notify_sent"`
	CreatedAt       string `json:"created_at"`
	CompletedAt     string `json:"completed_at,omitempty"`
	UpdatedAt       string `json:"updated_at"`
}

// JobView is the wire form of a store.Job.
type JobView struct {
	ID          int64  `json:"id"`
	GalleryID   string `json:"gallery_id"`
	ArchiveID   int64  `json:"archive_id"`
	Status      string `json:"status"`
	Priority    int64  `json:"priority"`
	Attempts    int64  `json:"attempts"`
	MaxAttempts int64  `json:"max_attempts"`
	LastError   string `json:"last_error,omitempty"`
	RunAt       string `json:"run_at"`
	LeaseHolder string `json:"lease_holder,omitempty"`
	CreatedAt   string `json:"created_at"`
	UpdatedAt   string `json:"updated_at"`
}

// RequestArchiveRequest asks the daemon for a downloadable archive of a
// gallery's current contents.
type RequestArchiveRequest struct {
	GalleryID   string `json:"gallery_id"`
	Priority    int64  `json:"priority,omitempty"`
	NotifyEmail string `json:"notify_email,omitempty"`
}

// RequestArchiveResponse is either a cache hit or a ticket for the job that
// will produce the archive.
type RequestArchiveResponse struct {
	Hit     bool        `json:"hit"`
	Created bool        `json:"created"`
	Archive ArchiveView `json:"archive"`
	Job     *JobView    `json:"job,omitempty"`
}

// ArchiveResponse wraps a single archive.
type ArchiveResponse struct {
	Archive ArchiveView `json:"archive"`
}

// ArchiveListResponse wraps an archive listing.
type ArchiveListResponse struct {
	Archives []ArchiveView `json:"archives"`
}

// JobResponse wraps a single job.
type JobResponse struct {
	Job JobView `json:"job"`
}

// JobListResponse wraps a job listing.
type JobListResponse struct {
	Jobs []JobView `json:"jobs"`
}

// QueueHealth mirrors store.HealthSummary on the wire.
type QueueHealth struct {
	Total      int `json:"total"`
	Pending    int `json:"pending"`
	Processing int `json:"processing"`
	Completed  int `json:"completed"`
	Failed     int `json:"failed"`
}

// StatusResponse reports daemon runtime state.
type StatusResponse struct {
	Running      bool        `json:"running"`
	PID          int         `json:"pid"`
	Workers      int         `json:"workers"`
	DBPath       string      `json:"db_path"`
	LockFilePath string      `json:"lock_file_path"`
	Queue        QueueHealth `json:"queue"`
}

// ErrorResponse carries an API error message.
type ErrorResponse struct {
	Error string `json:"error"`
}

// FromArchive converts a store row to its wire form.
func FromArchive(a *store.Archive) ArchiveView {
	if a == nil {
		return ArchiveView{}
	}
	return ArchiveView{
		ID:              a.ID,
		GalleryID:       a.GalleryID,
		Version:         a.Version,
		ContentHash:     a.ContentHash,
		Status:          string(a.Status),
		StorageLocation: a.StorageLocation,
		SizeBytes:       a.SizeBytes,
		Checksum:        a.Checksum,
		ImageCount:      a.ImageCount,
		ErrorMessage:    a.ErrorMessage,
		ExpiresAt:       formatTimePtr(a.ExpiresAt),
		NotifyRecipient: a.NotifyRecipient,
		NotifySent:      a.NotifySent,
		CreatedAt:       formatTime(a.CreatedAt),
		CompletedAt:     formatTimePtr(a.CompletedAt),
		UpdatedAt:       formatTime(a.UpdatedAt),
	}
}

// FromArchives converts a slice of store rows.
func FromArchives(archives []*store.Archive) []ArchiveView {
	views := make([]ArchiveView, 0, len(archives))
	for _, a := range archives {
		views = append(views, FromArchive(a))
	}
	return views
}

// FromJob converts a store row to its wire form.
func FromJob(j *store.Job) JobView {
	if j == nil {
		return JobView{}
	}
	return JobView{
		ID:          j.ID,
		GalleryID:   j.GalleryID,
		ArchiveID:   j.ArchiveID,
		Status:      string(j.Status),
		Priority:    j.Priority,
		Attempts:    j.Attempts,
		MaxAttempts: j.MaxAttempts,
		LastError:   j.LastError,
		RunAt:       formatTime(j.RunAt),
		LeaseHolder: j.LeaseHolder,
		CreatedAt:   formatTime(j.CreatedAt),
		UpdatedAt:   formatTime(j.UpdatedAt),
	}
}

// FromJobs converts a slice of store rows.
func FromJobs(jobs []*store.Job) []JobView {
	views := make([]JobView, 0, len(jobs))
	for _, j := range jobs {
		views = append(views, FromJob(j))
	}
	return views
}

// FromHealth converts a queue summary to its wire form.
func FromHealth(h store.HealthSummary) QueueHealth {
	return QueueHealth{
		Total:      h.Total,
		Pending:    h.Pending,
		Processing: h.Processing,
		Completed:  h.Completed,
		Failed:     h.Failed,
	}
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func formatTimePtr(t *time.Time) string {
	if t == nil {
		return ""
	}
	return formatTime(*t)
}
