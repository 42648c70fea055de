// Package metrics exposes Prometheus counters and histograms for audits, polls, jobs and
// remote calls, and mounts the scrape endpoint on the Fiber app.
package metrics
