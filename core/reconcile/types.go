package reconcile

import (
	"time"
)

// Attributes is a keyed set of raw field values.
// Local records key it by local field names, remote records by remote field names.
type Attributes map[string]any

// Clone returns a shallow copy of the attribute set.
func (a Attributes) Clone() Attributes {
	if a == nil {
		return nil
	}
	out := make(Attributes, len(a))
	for k, v := range a {
		out[k] = v
	}
	return out
}

// LocalRecord is a record held by the local store.
type LocalRecord struct {
	// ID is the local primary key. Zero means the record is not persisted yet.
	ID int64 `json:"id"`

	// Type is the remote record type the local record is mirrored to.
	Type string `json:"type"`

	// RemoteID is the remote identity. Empty until the record has been pushed.
	RemoteID string `json:"remote_id,omitempty"`

	// Attributes holds the synced values keyed by local field name.
	Attributes Attributes `json:"attributes"`

	// RemoteModstamp is the last known remote modification timestamp.
	RemoteModstamp *time.Time `json:"remote_modstamp,omitempty"`

	// UpdatedAt is the local modification timestamp.
	UpdatedAt time.Time `json:"updated_at"`
}

// HasRemoteID reports whether the record has been assigned a remote identity.
func (r *LocalRecord) HasRemoteID() bool {
	return r != nil && r.RemoteID != ""
}

// RemoteRecord is a record as returned by the remote system of record.
type RemoteRecord struct {
	// Type is the remote record type name (e.g. "Contact").
	Type string `json:"type"`

	// ID is the remote identity.
	ID string `json:"id"`

	// Attributes holds the raw values keyed by remote field name.
	Attributes Attributes `json:"attributes"`
}

// Partition is a bounded unit of audit or poll work over one change window.
type Partition struct {
	// RecordType is the remote record type the ids belong to.
	RecordType string `json:"record_type"`

	// WindowStart is the inclusive start of the change window.
	WindowStart time.Time `json:"window_start"`

	// WindowEnd is the end of the change window.
	WindowEnd time.Time `json:"window_end"`

	// UpdatedIDs are remote ids changed on either side in the window.
	UpdatedIDs []string `json:"updated_ids,omitempty"`

	// DeletedIDs are remote ids deleted remotely in the window.
	DeletedIDs []string `json:"deleted_ids,omitempty"`

	// UnpersistedIDs are local ids modified in the window that were never pushed.
	UnpersistedIDs []int64 `json:"unpersisted_ids,omitempty"`
}

// Size returns the total number of ids across the three categories.
func (p Partition) Size() int {
	return len(p.UpdatedIDs) + len(p.DeletedIDs) + len(p.UnpersistedIDs)
}

// Empty reports whether the partition carries no ids.
func (p Partition) Empty() bool {
	return p.Size() == 0
}

// DiscrepancyType classifies a single audit finding.
type DiscrepancyType string

const (
	// DiscrepancyLocalWithoutRemoteID is a local record that was never pushed.
	DiscrepancyLocalWithoutRemoteID DiscrepancyType = "local_record_without_remote_id"
	// DiscrepancyRemoteDeleteKeptLocally is a remotely deleted record still present locally.
	DiscrepancyRemoteDeleteKeptLocally DiscrepancyType = "remote_delete_kept_locally"
	// DiscrepancyRemoteMissingLocally is a remote record with no local counterpart.
	DiscrepancyRemoteMissingLocally DiscrepancyType = "remote_record_missing_locally"
	// DiscrepancyMismatchingRecords is a pair whose audited attributes differ.
	DiscrepancyMismatchingRecords DiscrepancyType = "mismatching_records"
)

// Discrepancy is one audit finding. It is never mutated after being recorded.
type Discrepancy struct {
	Type             DiscrepancyType `json:"type"`
	RemoteType       string          `json:"remote_type"`
	RemoteID         string          `json:"remote_id,omitempty"`
	LocalType        string          `json:"local_type,omitempty"`
	LocalID          int64           `json:"local_id,omitempty"`
	LocalAttributes  Attributes      `json:"local_attributes,omitempty"`
	RemoteAttributes Attributes      `json:"remote_attributes,omitempty"`
	DiffKeys         []string        `json:"diff_keys,omitempty"`
}

// AuditStatus is the lifecycle state of an AuditResult.
type AuditStatus string

const (
	AuditRunning AuditStatus = "running"
	AuditSuccess AuditStatus = "success"
	AuditFailure AuditStatus = "failure"
)

// AuditResult accumulates the discrepancies found by an audit run.
type AuditResult struct {
	// ID identifies the run.
	ID string `json:"id"`

	// RecordType is the audited remote record type.
	RecordType string `json:"record_type"`

	// WindowStart and WindowEnd bound the audited change window.
	WindowStart time.Time `json:"window_start"`
	WindowEnd   time.Time `json:"window_end"`

	// Discrepancies is append-only.
	Discrepancies []Discrepancy `json:"discrepancies"`

	// Status is running until Finish or Fail is called.
	Status AuditStatus `json:"status"`

	// Error is the message of the fatal error that aborted the run, if any.
	Error string `json:"error,omitempty"`

	err error
}

// NewAuditResult creates a running result for the given partition.
func NewAuditResult(id string, p Partition) *AuditResult {
	return &AuditResult{
		ID:            id,
		RecordType:    p.RecordType,
		WindowStart:   p.WindowStart,
		WindowEnd:     p.WindowEnd,
		Discrepancies: []Discrepancy{},
		Status:        AuditRunning,
	}
}

// Add appends a discrepancy.
func (r *AuditResult) Add(d Discrepancy) {
	r.Discrepancies = append(r.Discrepancies, d)
}

// Finish computes the terminal status from the recorded discrepancies.
// A result that already failed stays failed.
func (r *AuditResult) Finish() *AuditResult {
	switch {
	case r.err != nil:
		r.Status = AuditFailure
	case len(r.Discrepancies) > 0:
		r.Status = AuditFailure
	default:
		r.Status = AuditSuccess
	}
	return r
}

// Fail marks the result as failed with the given error.
func (r *AuditResult) Fail(err error) *AuditResult {
	r.err = err
	if err != nil {
		r.Error = err.Error()
	}
	r.Status = AuditFailure
	return r
}

// Err returns the error captured by Fail.
func (r *AuditResult) Err() error {
	return r.err
}

func (r *AuditResult) Running() bool { return r.Status == AuditRunning }
func (r *AuditResult) Success() bool { return r.Status == AuditSuccess }
func (r *AuditResult) Failure() bool { return r.Status == AuditFailure }

// Merge appends the discrepancies of other and keeps the first captured error.
func (r *AuditResult) Merge(other *AuditResult) {
	if other == nil {
		return
	}
	r.Discrepancies = append(r.Discrepancies, other.Discrepancies...)
	if other.err != nil && r.err == nil {
		r.Fail(other.err)
	}
}

// CountByType tallies discrepancies per type.
func (r *AuditResult) CountByType() map[DiscrepancyType]int {
	counts := make(map[DiscrepancyType]int)
	for _, d := range r.Discrepancies {
		counts[d.Type]++
	}
	return counts
}

// PollOptions selects which categories of remote changes a poll applies.
type PollOptions struct {
	ImportCreated bool `json:"import_created"`
	ImportUpdated bool `json:"import_updated"`
	ImportDeleted bool `json:"import_deleted"`
	// WithCounts also reports total record counts on both sides.
	WithCounts bool `json:"with_counts"`
}

// DefaultPollOptions imports created and deleted records but leaves existing ones alone.
func DefaultPollOptions() PollOptions {
	return PollOptions{
		ImportCreated: true,
		ImportUpdated: false,
		ImportDeleted: true,
	}
}

// PollResult reports what a poll applied.
type PollResult struct {
	Created int `json:"created"`
	Updated int `json:"updated"`
	Deleted int `json:"deleted"`

	// RemoteCount is -1 when the remote cannot count records.
	RemoteCount int64 `json:"remote_count"`
	LocalCount  int64 `json:"local_count"`
}

// Add sums the counters of other into r. Record counts are taken from other when set.
func (r *PollResult) Add(other *PollResult) {
	if other == nil {
		return
	}
	r.Created += other.Created
	r.Updated += other.Updated
	r.Deleted += other.Deleted
	if other.RemoteCount != 0 {
		r.RemoteCount = other.RemoteCount
	}
	if other.LocalCount != 0 {
		r.LocalCount = other.LocalCount
	}
}
