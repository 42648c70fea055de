package crm

import "time"

// Config holds configuration for the remote CRM API.
type Config struct {
	// BaseURL is the instance URL, e.g. https://example.my.salesforce.com.
	BaseURL string `mapstructure:"base_url" default:""`
	// Token is the OAuth bearer token.
	Token string `mapstructure:"token" default:""`
	// APIVersion is the REST API version without the leading v.
	APIVersion string `mapstructure:"api_version" default:"59.0"`
	// RatePerSecond bounds outgoing calls. Zero disables throttling.
	RatePerSecond float64 `mapstructure:"rate_per_second" default:"10"`
	// Burst is the number of calls allowed above the rate.
	Burst int `mapstructure:"burst" default:"5"`
	// TimeoutSeconds bounds a single HTTP call.
	TimeoutSeconds int `mapstructure:"timeout_seconds" default:"60"`
	// BatchSize bounds the ids of one composite fetch.
	BatchSize int `mapstructure:"batch_size" default:"200"`
}

// Timeout returns the per-call timeout.
func (c Config) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}
