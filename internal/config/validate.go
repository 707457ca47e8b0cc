package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateQueue(); err != nil {
		return err
	}
	if err := c.validateArchive(); err != nil {
		return err
	}
	if err := c.validateNotifications(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validatePaths() error {
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		return errors.New("paths.data_dir must be set")
	}
	if strings.TrimSpace(c.Paths.StagingDir) == "" {
		return errors.New("paths.staging_dir must be set")
	}
	if strings.TrimSpace(c.Library.ImagesDir) == "" {
		return errors.New("library.images_dir must be set")
	}
	if strings.TrimSpace(c.Library.ArchivesDir) == "" {
		return errors.New("library.archives_dir must be set")
	}
	return nil
}

func (c *Config) validateQueue() error {
	if err := ensurePositiveMap(map[string]int{
		"queue.workers":           c.Queue.Workers,
		"queue.poll_interval":     c.Queue.PollInterval,
		"queue.lease_timeout":     c.Queue.LeaseTimeout,
		"queue.reap_interval":     c.Queue.ReapInterval,
		"queue.max_attempts":      c.Queue.MaxAttempts,
		"queue.retry_backoff":     c.Queue.RetryBackoff,
		"queue.retry_backoff_cap": c.Queue.RetryBackoffCap,
		"queue.job_timeout":       c.Queue.JobTimeout,
		"queue.error_retry_pause": c.Queue.ErrorRetryPause,
	}); err != nil {
		return err
	}
	if c.Queue.RetryBackoffCap < c.Queue.RetryBackoff {
		return errors.New("queue.retry_backoff_cap must be >= queue.retry_backoff")
	}
	if c.Queue.LeaseTimeout <= c.Queue.PollInterval {
		return errors.New("queue.lease_timeout must be greater than queue.poll_interval")
	}
	return nil
}

func (c *Config) validateArchive() error {
	if c.Archive.TTLDays < 0 {
		return errors.New("archive.ttl_days must be >= 0 (0 disables expiry)")
	}
	return nil
}

func (c *Config) validateNotifications() error {
	if c.Notifications.RequestTimeout <= 0 {
		return errors.New("notifications.request_timeout must be positive")
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
