package records

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CheckpointStore remembers where the last successful window ended.
type CheckpointStore struct {
	db *gorm.DB
}

// NewCheckpointStore creates a checkpoint store.
func NewCheckpointStore(db *gorm.DB) *CheckpointStore {
	return &CheckpointStore{db: db}
}

// Get returns the checkpoint and whether one exists.
func (s *CheckpointStore) Get(ctx context.Context, recordType, kind string) (time.Time, bool, error) {
	var cp Checkpoint
	err := s.db.WithContext(ctx).Where("record_type = ? AND kind = ?", recordType, kind).First(&cp).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("failed to read %s checkpoint for %s: %w", kind, recordType, err)
	}
	return cp.WindowEnd.UTC(), true, nil
}

// Advance stores end as the new checkpoint.
func (s *CheckpointStore) Advance(ctx context.Context, recordType, kind string, end time.Time) error {
	cp := Checkpoint{RecordType: recordType, Kind: kind, WindowEnd: end.UTC()}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "record_type"}, {Name: "kind"}},
		DoUpdates: clause.AssignmentColumns([]string{"window_end", "updated_at"}),
	}).Create(&cp).Error
	if err != nil {
		return fmt.Errorf("failed to advance %s checkpoint for %s: %w", kind, recordType, err)
	}
	return nil
}
