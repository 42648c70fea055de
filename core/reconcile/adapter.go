package reconcile

import (
	"context"
	"time"
)

// Remote is the remote system of record.
//
// Implementations only transport calls; retries are owned by the job layer.
type Remote interface {
	// GetUpdatedIDs returns ids of records changed remotely in [start, end].
	GetUpdatedIDs(ctx context.Context, recordType string, start, end time.Time) ([]string, error)

	// GetDeletedIDs returns ids of records deleted remotely in [start, end].
	GetDeletedIDs(ctx context.Context, recordType string, start, end time.Time) ([]string, error)

	// FetchMultiple loads records by id in a single batched call.
	// An empty id list returns an empty result without calling out.
	FetchMultiple(ctx context.Context, recordType string, ids []string) ([]RemoteRecord, error)

	// Find loads one record. It returns nil and no error when the record does not exist.
	Find(ctx context.Context, recordType, id string) (*RemoteRecord, error)

	// Create creates a record and returns its assigned id.
	Create(ctx context.Context, recordType string, attrs Attributes) (string, error)

	// Update writes attrs to an existing record.
	Update(ctx context.Context, recordType, id string, attrs Attributes) error

	// Delete removes a record.
	Delete(ctx context.Context, recordType, id string) error
}

// StampQuerier is implemented by remotes that can list ids by a timestamp field.
type StampQuerier interface {
	QueryIDsByStamp(ctx context.Context, recordType, field string, start, end time.Time) ([]string, error)
}

// Counter is implemented by remotes that can count records of a type.
type Counter interface {
	Count(ctx context.Context, recordType string) (int64, error)
}

// WriteOptions scopes behaviour to a single local mutation.
type WriteOptions struct {
	// SkipSync suppresses the outbound sync that a local mutation would normally trigger.
	SkipSync bool
}

// LocalStore is the local record store.
//
// Lookups return nil (or an empty slice) and no error for absent records.
type LocalStore interface {
	FindByID(ctx context.Context, recordType string, id int64) (*LocalRecord, error)
	FindByIDs(ctx context.Context, recordType string, ids []int64) ([]LocalRecord, error)
	FindByRemoteID(ctx context.Context, recordType, remoteID string) (*LocalRecord, error)
	FindByRemoteIDs(ctx context.Context, recordType string, remoteIDs []string) ([]LocalRecord, error)

	// RemoteIDsModifiedBetween returns remote ids of pushed records modified locally in [start, end].
	RemoteIDsModifiedBetween(ctx context.Context, recordType string, start, end time.Time) ([]string, error)

	// UnsyncedIDsModifiedBetween returns local ids of never-pushed records modified in [start, end].
	UnsyncedIDsModifiedBetween(ctx context.Context, recordType string, start, end time.Time) ([]int64, error)

	// Save creates the record when its ID is zero and updates it otherwise.
	Save(ctx context.Context, rec *LocalRecord, opts WriteOptions) error

	// MarkSynced records the remote id and, when modstamp is non-nil, the last known
	// remote stamp of a local record. Only those two columns are written, the update
	// time is kept and the change hook is not called.
	MarkSynced(ctx context.Context, recordType string, id int64, remoteID string, modstamp *time.Time) error

	// Delete removes a single record.
	Delete(ctx context.Context, rec *LocalRecord, opts WriteOptions) error

	// DeleteByRemoteIDs removes all records with the given remote ids in one statement.
	// Per-record side effects are bypassed.
	DeleteByRemoteIDs(ctx context.Context, recordType string, remoteIDs []string) (int64, error)

	// Count returns the number of local records of the type.
	Count(ctx context.Context, recordType string) (int64, error)
}

// EventType names a sync event.
type EventType string

const (
	EventOutboundCreate EventType = "outbound_create"
	EventOutboundUpdate EventType = "outbound_update"
	EventOutboundDelete EventType = "outbound_delete"
	EventInboundCreate  EventType = "inbound_create"
	EventInboundUpdate  EventType = "inbound_update"
	EventInboundDelete  EventType = "inbound_delete"
)

// Event describes a completed sync write.
type Event struct {
	Type       EventType
	RecordType string
	RemoteID   string
	LocalID    int64
	Attributes Attributes
}

// EventHook observes completed sync writes. It must not block.
type EventHook func(Event)

// ChangeKind names a local mutation.
type ChangeKind string

const (
	ChangeCreated ChangeKind = "created"
	ChangeUpdated ChangeKind = "updated"
	ChangeDeleted ChangeKind = "deleted"
)

// Change describes a local mutation that was not made with SkipSync.
type Change struct {
	Kind   ChangeKind
	Record LocalRecord
	// Changed lists the local field names whose values changed on update.
	Changed []string
}

// ChangeHook is called by local stores after a mutation that should be synced outbound.
type ChangeHook func(ctx context.Context, c Change) error
