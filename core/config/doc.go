// Package config provides configuration management for crm-sync.
//
// It utilizes Viper for loading configuration from environment variables
// and an optional .env file. Defaults come from the `default` struct tags of
// every section.
//
// # Configuration Structure
//
// The Config struct is the central repository for all application settings, divided into subsections:
//   - Server: HTTP server settings (port, API key, timeouts)
//   - Database: local record store connection (mysql or sqlite)
//   - Storage: S3/MinIO credentials and bucket for audit reports
//   - Log: logging level, format and optional rotated file
//   - Remote: CRM base URL, token, API version and throttling
//   - Sync: registry file, partitioning, polling and job retries
//
// Nested keys map to environment variables by replacing dots with
// underscores, e.g. sync.jobs.retry.max_attempts is SYNC_JOBS_RETRY_MAX_ATTEMPTS.
//
// # Usage
//
//	cfg, err := config.LoadConfig(".")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.Server.Port)
package config
