// Package jobs runs units of sync work now or later with bounded retries.
//
// A Job is a pure function of its explicit arguments. The Runner retries a failing job
// with exponential backoff, never retries validation errors, and hands the terminal error
// to an ErrorHandler exactly once before swallowing or returning it according to the
// FailurePolicy. Jobs sharing a Key never run concurrently.
//
// The Dispatcher is the change hook of the local store: local creates, updates and
// deletes made without SkipSync trigger outbound jobs, filtered by the operations the
// record type allows, and run inline or on the worker pool depending on the SyncMode.
//
// # Usage
//
//	runner := jobs.NewRunner(cfg.Sync.Jobs, onFailure, logger)
//	defer runner.Close()
//
//	d := jobs.NewDispatcher(runner, engine.Mapping(), engine.Outbound(), engine.Inbound(), ops, jobs.SyncModeAsync, logger)
//	store.SetHook(jobs.Router{"Contact": d}.OnChange)
package jobs
