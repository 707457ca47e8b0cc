package config

import "time"

// Queue tuning values are stored as integer seconds in TOML; these accessors
// give callers proper durations.

// PollIntervalDuration returns the worker idle poll interval.
func (q Queue) PollIntervalDuration() time.Duration {
	return time.Duration(q.PollInterval) * time.Second
}

// LeaseTimeoutDuration returns how long a worker lease stays valid without renewal.
func (q Queue) LeaseTimeoutDuration() time.Duration {
	return time.Duration(q.LeaseTimeout) * time.Second
}

// ReapIntervalDuration returns how often the reaper sweeps expired leases.
func (q Queue) ReapIntervalDuration() time.Duration {
	return time.Duration(q.ReapInterval) * time.Second
}

// RetryBackoffDuration returns the base retry delay.
func (q Queue) RetryBackoffDuration() time.Duration {
	return time.Duration(q.RetryBackoff) * time.Second
}

// RetryBackoffCapDuration returns the maximum retry delay.
func (q Queue) RetryBackoffCapDuration() time.Duration {
	return time.Duration(q.RetryBackoffCap) * time.Second
}

// JobTimeoutDuration returns the per-job processing deadline.
func (q Queue) JobTimeoutDuration() time.Duration {
	return time.Duration(q.JobTimeout) * time.Second
}

// ErrorRetryPauseDuration returns how long a worker sleeps after a store error.
func (q Queue) ErrorRetryPauseDuration() time.Duration {
	return time.Duration(q.ErrorRetryPause) * time.Second
}

// RequestTimeoutDuration returns the outbound notification HTTP timeout.
func (n Notifications) RequestTimeoutDuration() time.Duration {
	return time.Duration(n.RequestTimeout) * time.Second
}

// ExpiryFrom returns the expiry for an archive completed at the given time,
// or nil when archives never expire.
func (a Archive) ExpiryFrom(completed time.Time) *time.Time {
	if a.TTLDays <= 0 {
		return nil
	}
	t := completed.Add(time.Duration(a.TTLDays) * 24 * time.Hour)
	return &t
}
