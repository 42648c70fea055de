// Package records persists synced records, window checkpoints and run history with gorm.
//
// Store implements reconcile.LocalStore. Writes made without SkipSync call the
// installed change hook after the row is committed, which is how local edits
// reach the outbound sync jobs.
package records
