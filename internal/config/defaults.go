package config

const (
	defaultDataDir         = "~/.local/share/darkroom"
	defaultStagingDir      = "~/.local/share/darkroom/staging"
	defaultImagesDir       = "~/darkroom/images"
	defaultArchivesDir     = "~/darkroom/archives"
	defaultAPIBind         = "127.0.0.1:7319"
	defaultWorkers         = 2
	defaultPollInterval    = 5
	defaultLeaseTimeout    = 300
	defaultReapInterval    = 60
	defaultMaxAttempts     = 4
	defaultRetryBackoff    = 30
	defaultRetryBackoffCap = 900
	defaultJobTimeout      = 1800
	defaultErrorRetryPause = 10
	defaultArchiveTTLDays  = 30
	defaultNotifyTimeout   = 10
	defaultLogFormat       = "console"
	defaultLogLevel        = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir:    defaultDataDir,
			StagingDir: defaultStagingDir,
			APIBind:    defaultAPIBind,
		},
		Library: Library{
			ImagesDir:   defaultImagesDir,
			ArchivesDir: defaultArchivesDir,
		},
		Queue: Queue{
			Workers:         defaultWorkers,
			PollInterval:    defaultPollInterval,
			LeaseTimeout:    defaultLeaseTimeout,
			ReapInterval:    defaultReapInterval,
			MaxAttempts:     defaultMaxAttempts,
			RetryBackoff:    defaultRetryBackoff,
			RetryBackoffCap: defaultRetryBackoffCap,
			JobTimeout:      defaultJobTimeout,
			ErrorRetryPause: defaultErrorRetryPause,
		},
		Archive: Archive{
			TTLDays: defaultArchiveTTLDays,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyTimeout,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
