package config

import (
	"fmt"
	"time"

	"crm-sync/core/jobs"
)

// SyncConfig holds configuration for audits, polls and sync jobs.
type SyncConfig struct {
	// RegistryFile is the YAML file declaring the synced record types.
	RegistryFile string `mapstructure:"registry_file" default:"registry.yaml"`
	// PartitionSize bounds the ids per partition for types that do not set one.
	PartitionSize int `mapstructure:"partition_size" default:"200"`
	// Workers bounds the partitions processed concurrently in one run.
	Workers int `mapstructure:"workers" default:"4"`
	// CacheTTLSeconds enables the remote record cache when positive.
	CacheTTLSeconds int `mapstructure:"cache_ttl_seconds" default:"0"`
	// PollIntervalSeconds runs the poll scheduler when positive.
	PollIntervalSeconds int `mapstructure:"poll_interval_seconds" default:"0"`
	// PollLookbackMinutes is the first window of a type without a checkpoint.
	PollLookbackMinutes int `mapstructure:"poll_lookback_minutes" default:"60"`
	// ReportRetention is the number of archived audit reports kept per type. Zero keeps all.
	ReportRetention int `mapstructure:"report_retention" default:"0"`
	// Jobs configures the job runner.
	Jobs jobs.Config `mapstructure:"jobs"`
}

// Validate rejects negative sizes and unknown policies.
func (c SyncConfig) Validate() error {
	switch {
	case c.PartitionSize < 0:
		return fmt.Errorf("partition size must not be negative, got %d", c.PartitionSize)
	case c.Workers < 0:
		return fmt.Errorf("workers must not be negative, got %d", c.Workers)
	case c.Jobs.FailurePolicy != "" && c.Jobs.FailurePolicy != jobs.FailRaise && c.Jobs.FailurePolicy != jobs.FailSwallow:
		return fmt.Errorf("unknown failure policy %q", c.Jobs.FailurePolicy)
	}
	return nil
}

// CacheTTL returns the remote cache lifetime.
func (c SyncConfig) CacheTTL() time.Duration {
	return time.Duration(c.CacheTTLSeconds) * time.Second
}

// PollInterval returns the scheduler interval, zero when disabled.
func (c SyncConfig) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalSeconds) * time.Second
}

// PollLookback returns the first poll window length.
func (c SyncConfig) PollLookback() time.Duration {
	return time.Duration(c.PollLookbackMinutes) * time.Minute
}
