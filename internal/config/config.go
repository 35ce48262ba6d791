package config

import (
	"time"

	"github.com/spf13/viper"
)

type (
	Config struct {
		HTTP
		Database
		Crypto
		Scheduler
		Sync
		Tasks
		Providers
		Global
	}

	HTTP struct {
		Port int32
		Host string
	}
	Database struct {
		Path string
	}
	Crypto struct {
		// TokenEncryptionKey is the base64-encoded 32-byte AES key for
		// provider tokens. Empty means resolve from env / key file.
		TokenEncryptionKey string
	}
	Scheduler struct {
		Enabled  bool
		Schedule string // Cron format: "*/5 * * * *" = every 5 minutes
	}
	Sync struct {
		DefaultWindow  time.Duration // Window synced when no dates are given
		ConflictWindow time.Duration // Timestamp proximity for duplicate detection
	}
	// Tasks tunes the queue worker pool; per-queue retry and retention
	// policy lives with each queue definition.
	Tasks struct {
		Enabled         bool
		Workers         int
		ReleaseAfter    time.Duration
		CleanupInterval time.Duration
	}
	Providers struct {
		MyFitnessPalBaseURL string
		CronometerBaseURL   string
		LoseItBaseURL       string
		FatSecretBaseURL    string
	}
	Global struct {
		ShutdownTimeoutInSeconds int
	}
)

func NewConfig() *Config {
	v := viper.New()
	v.AutomaticEnv()
	v.SetDefault("port", 8188)
	v.SetDefault("host", "0.0.0.0")
	v.SetDefault("shutdown_timeout_in_seconds", 2)
	v.SetDefault("database_path", DefaultDatabasePath)
	v.SetDefault("token_encryption_key", "")

	// Scheduler defaults: scan for due connections every 5 minutes.
	v.SetDefault("scheduler_enabled", true)
	v.SetDefault("scheduler_schedule", "*/5 * * * *")

	// Sync defaults
	v.SetDefault("sync_default_window", "24h")
	v.SetDefault("sync_conflict_window", "30m")

	// Provider API defaults
	v.SetDefault("myfitnesspal_base_url", "")
	v.SetDefault("cronometer_base_url", "")
	v.SetDefault("loseit_base_url", "")
	v.SetDefault("fatsecret_base_url", "")

	// Task queue defaults
	v.SetDefault("tasks_enabled", true)
	v.SetDefault("task_workers", 2)
	v.SetDefault("task_release_after", "15m")
	v.SetDefault("task_cleanup_interval", "1h")

	return &Config{
		HTTP: HTTP{
			Port: v.GetInt32("PORT"),
			Host: v.GetString("HOST"),
		},
		Database: Database{
			Path: v.GetString("DATABASE_PATH"),
		},
		Crypto: Crypto{
			TokenEncryptionKey: v.GetString("TOKEN_ENCRYPTION_KEY"),
		},
		Scheduler: Scheduler{
			Enabled:  v.GetBool("SCHEDULER_ENABLED"),
			Schedule: v.GetString("SCHEDULER_SCHEDULE"),
		},
		Sync: Sync{
			DefaultWindow:  v.GetDuration("SYNC_DEFAULT_WINDOW"),
			ConflictWindow: v.GetDuration("SYNC_CONFLICT_WINDOW"),
		},
		Tasks: Tasks{
			Enabled:         v.GetBool("TASKS_ENABLED"),
			Workers:         v.GetInt("TASK_WORKERS"),
			ReleaseAfter:    v.GetDuration("TASK_RELEASE_AFTER"),
			CleanupInterval: v.GetDuration("TASK_CLEANUP_INTERVAL"),
		},
		Providers: Providers{
			MyFitnessPalBaseURL: v.GetString("MYFITNESSPAL_BASE_URL"),
			CronometerBaseURL:   v.GetString("CRONOMETER_BASE_URL"),
			LoseItBaseURL:       v.GetString("LOSEIT_BASE_URL"),
			FatSecretBaseURL:    v.GetString("FATSECRET_BASE_URL"),
		},
		Global: Global{
			ShutdownTimeoutInSeconds: v.GetInt("SHUTDOWN_TIMEOUT_IN_SECONDS"),
		},
	}
}
