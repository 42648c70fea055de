package records

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ErrRunNotFound is returned when a run id is unknown.
var ErrRunNotFound = errors.New("run not found")

// History records audit and poll runs.
type History struct {
	db  *gorm.DB
	now func() time.Time
}

// NewHistory creates a run history.
func NewHistory(db *gorm.DB) *History {
	return &History{db: db, now: time.Now}
}

// Start inserts a running entry. An empty id gets a generated one.
func (h *History) Start(ctx context.Context, id, kind, recordType string, start, end time.Time) (*Run, error) {
	if id == "" {
		id = uuid.NewString()
	}
	run := &Run{
		ID:          id,
		Kind:        kind,
		RecordType:  recordType,
		WindowStart: start.UTC(),
		WindowEnd:   end.UTC(),
		Status:      RunRunning,
		StartedAt:   h.now().UTC(),
	}
	if err := h.db.WithContext(ctx).Create(run).Error; err != nil {
		return nil, fmt.Errorf("failed to record %s run: %w", kind, err)
	}
	return run, nil
}

// Finish stores the outcome of run. A non-nil runErr marks it failed.
func (h *History) Finish(ctx context.Context, run *Run, runErr error) error {
	finished := h.now().UTC()
	run.FinishedAt = &finished
	run.Status = RunSuccess
	if runErr != nil {
		run.Status = RunFailure
		run.Error = runErr.Error()
	}
	if err := h.db.WithContext(ctx).Save(run).Error; err != nil {
		return fmt.Errorf("failed to finish run %s: %w", run.ID, err)
	}
	return nil
}

// Get loads one run.
func (h *History) Get(ctx context.Context, id string) (*Run, error) {
	var run Run
	err := h.db.WithContext(ctx).Where("id = ?", id).First(&run).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrRunNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load run %s: %w", id, err)
	}
	return &run, nil
}

// List returns the latest runs of a kind and record type, newest first.
func (h *History) List(ctx context.Context, kind, recordType string, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 50
	}
	runs := []Run{}
	q := h.db.WithContext(ctx).Where("kind = ?", kind)
	if recordType != "" {
		q = q.Where("record_type = ?", recordType)
	}
	if err := q.Order("started_at DESC").Limit(limit).Find(&runs).Error; err != nil {
		return nil, fmt.Errorf("failed to list %s runs: %w", kind, err)
	}
	return runs, nil
}
