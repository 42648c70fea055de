// Package poll imports remote changes window by window.
//
// Each record type has a checkpoint: the end of its last successful window.
// PollNext polls from the checkpoint up to now and moves the checkpoint only
// when the whole window was applied, so a failed window is polled again on
// the next tick. Scheduler runs PollNext for every type on an interval.
package poll
