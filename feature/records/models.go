package records

import (
	"time"

	"crm-sync/core/reconcile"
)

// Record is a locally stored copy of a remote record.
type Record struct {
	ID             int64                `gorm:"column:id;primaryKey;autoIncrement"`
	RecordType     string               `gorm:"column:record_type;size:64;not null;index:idx_records_type_remote,priority:1;index:idx_records_type_updated,priority:1"`
	RemoteID       string               `gorm:"column:remote_id;size:64;not null;default:'';index:idx_records_type_remote,priority:2"`
	Attributes     reconcile.Attributes `gorm:"column:attributes;serializer:json;type:text"`
	RemoteModstamp *time.Time           `gorm:"column:remote_modstamp"`
	CreatedAt      time.Time            `gorm:"column:created_at"`
	UpdatedAt      time.Time            `gorm:"column:updated_at;index:idx_records_type_updated,priority:2"`
}

// TableName overrides the table name.
func (Record) TableName() string {
	return "sync_records"
}

// Models lists every table the store owns.
func Models() []any {
	return []any{&Record{}, &Checkpoint{}, &Run{}}
}

// RecordColumns are the columns the store reads and writes.
var RecordColumns = []string{"id", "record_type", "remote_id", "attributes", "remote_modstamp", "created_at", "updated_at"}

func (r Record) toLocal() reconcile.LocalRecord {
	return reconcile.LocalRecord{
		ID:             r.ID,
		Type:           r.RecordType,
		RemoteID:       r.RemoteID,
		Attributes:     r.Attributes,
		RemoteModstamp: r.RemoteModstamp,
		UpdatedAt:      r.UpdatedAt,
	}
}

func fromLocal(rec *reconcile.LocalRecord) Record {
	return Record{
		ID:             rec.ID,
		RecordType:     rec.Type,
		RemoteID:       rec.RemoteID,
		Attributes:     rec.Attributes,
		RemoteModstamp: rec.RemoteModstamp,
		UpdatedAt:      rec.UpdatedAt,
	}
}

// Checkpoint is the end of the last successful window per record type and run kind.
type Checkpoint struct {
	RecordType string    `gorm:"column:record_type;primaryKey;size:64"`
	Kind       string    `gorm:"column:kind;primaryKey;size:16"`
	WindowEnd  time.Time `gorm:"column:window_end;not null"`
	UpdatedAt  time.Time `gorm:"column:updated_at"`
}

// TableName overrides the table name.
func (Checkpoint) TableName() string {
	return "sync_checkpoints"
}

// Run kinds.
const (
	KindAudit = "audit"
	KindPoll  = "poll"
)

// Run statuses.
const (
	RunRunning = "running"
	RunSuccess = "success"
	RunFailure = "failure"
)

// Run is one audit or poll execution.
type Run struct {
	ID            string     `gorm:"column:id;primaryKey;size:36" json:"id"`
	Kind          string     `gorm:"column:kind;size:16;index" json:"kind"`
	RecordType    string     `gorm:"column:record_type;size:64;index" json:"record_type"`
	WindowStart   time.Time  `gorm:"column:window_start" json:"window_start"`
	WindowEnd     time.Time  `gorm:"column:window_end" json:"window_end"`
	Status        string     `gorm:"column:status;size:16" json:"status"`
	Discrepancies int        `gorm:"column:discrepancies" json:"discrepancies"`
	Created       int        `gorm:"column:created" json:"created"`
	Updated       int        `gorm:"column:updated" json:"updated"`
	Deleted       int        `gorm:"column:deleted" json:"deleted"`
	Error         string     `gorm:"column:error;type:text" json:"error,omitempty"`
	StartedAt     time.Time  `gorm:"column:started_at" json:"started_at"`
	FinishedAt    *time.Time `gorm:"column:finished_at" json:"finished_at,omitempty"`
}

// TableName overrides the table name.
func (Run) TableName() string {
	return "sync_runs"
}
