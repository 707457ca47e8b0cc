package store

import (
	"strings"
	"time"
)

// Status represents the lifecycle of an archive or job row.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

var allStatuses = []Status{
	StatusPending,
	StatusProcessing,
	StatusCompleted,
	StatusFailed,
}

var statusSet = func() map[Status]struct{} {
	set := make(map[Status]struct{}, len(allStatuses))
	for _, status := range allStatuses {
		set[status] = struct{}{}
	}
	return set
}()

// AllStatuses returns the ordered list of known statuses.
func AllStatuses() []Status {
	cp := make([]Status, len(allStatuses))
	copy(cp, allStatuses)
	return cp
}

// ParseStatus converts a string into a known Status.
func ParseStatus(value string) (Status, bool) {
	normalized := Status(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	_, ok := statusSet[normalized]
	return normalized, ok
}

// IsTerminal reports whether a status admits no further transitions.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Archive is one versioned ZIP of a gallery's image set.
type Archive struct {
	ID              int64
	GalleryID       string
	Version         int64
	ContentHash     string
	Status          Status
	StorageLocation string
	SizeBytes       int64
	Checksum        string
	ImageCount      int64
	ErrorMessage    string
	ExpiresAt       *time.Time
	NotifyRecipient string
	NotifySent      bool
	NotifySentAt    *time.Time
	CreatedAt       time.Time
	CompletedAt     *time.Time
	UpdatedAt       time.Time
}

// Job is one unit of archive-generation work.
type Job struct {
	ID              int64
	GalleryID       string
	ArchiveID       int64
	Status          Status
	Priority        int64
	Attempts        int64
	MaxAttempts     int64
	LastError       string
	RunAt           time.Time
	LeaseHolder     string
	LeaseAcquiredAt *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Leased reports whether the job currently carries a lease.
func (j Job) Leased() bool {
	return j.LeaseHolder != ""
}

// Ticket is the result of an enqueue attempt: the job that will (or already
// does) cover the request, plus the archive row it targets.
type Ticket struct {
	Archive *Archive
	Job     *Job
	Created bool
}

// FailOutcome describes what FailJob decided.
type FailOutcome struct {
	// Applied is false when the caller no longer held the lease; nothing
	// was changed in that case.
	Applied  bool
	Terminal bool
	Attempts int64
	NextRun  time.Time
}

// HealthSummary describes aggregated job counts per lifecycle state.
type HealthSummary struct {
	Total      int
	Pending    int
	Processing int
	Completed  int
	Failed     int
}

// DatabaseHealth captures diagnostic information about the archive database.
type DatabaseHealth struct {
	DBPath           string
	DatabaseExists   bool
	DatabaseReadable bool
	SchemaVersion    string
	TablesPresent    []string
	MissingTables    []string
	IntegrityCheck   bool
	TotalArchives    int
	TotalJobs        int
	Error            string
}
