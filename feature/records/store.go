package records

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"crm-sync/core/database"
	"crm-sync/core/reconcile"

	"gorm.io/gorm"
)

// inChunk bounds the ids bound into a single IN clause.
const inChunk = 1000

// Store is a reconcile.LocalStore on a gorm database.
type Store struct {
	db  *gorm.DB
	now func() time.Time

	mu   sync.RWMutex
	hook reconcile.ChangeHook
}

// NewStore creates a store. The schema must exist, see Migrate.
func NewStore(db *gorm.DB) *Store {
	return &Store{db: db, now: time.Now}
}

// Migrate creates or updates the sync tables.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(Models()...); err != nil {
		return fmt.Errorf("failed to migrate sync tables: %w", err)
	}
	return nil
}

// VerifySchema reports columns the records table lacks.
func VerifySchema(db *gorm.DB) error {
	missing, err := database.MissingColumns(db, Record{}.TableName(), RecordColumns)
	if err != nil {
		return err
	}
	if len(missing) > 0 {
		return fmt.Errorf("table %s is missing columns %v", Record{}.TableName(), missing)
	}
	return nil
}

// SetHook installs the hook called after writes made without SkipSync.
func (s *Store) SetHook(hook reconcile.ChangeHook) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hook = hook
}

func (s *Store) session(ctx context.Context) *gorm.DB {
	return s.db.WithContext(ctx).Session(&gorm.Session{NowFunc: func() time.Time { return s.now().UTC() }})
}

func (s *Store) FindByID(ctx context.Context, recordType string, id int64) (*reconcile.LocalRecord, error) {
	var r Record
	err := s.session(ctx).Where("record_type = ? AND id = ?", recordType, id).First(&r).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find %s %d: %w", recordType, id, err)
	}
	rec := r.toLocal()
	return &rec, nil
}

func (s *Store) FindByIDs(ctx context.Context, recordType string, ids []int64) ([]reconcile.LocalRecord, error) {
	out := []reconcile.LocalRecord{}
	for _, chunk := range chunks(ids, inChunk) {
		var rows []Record
		err := s.session(ctx).Where("record_type = ? AND id IN ?", recordType, chunk).Order("id").Find(&rows).Error
		if err != nil {
			return nil, fmt.Errorf("failed to find %s records: %w", recordType, err)
		}
		for _, r := range rows {
			out = append(out, r.toLocal())
		}
	}
	return out, nil
}

func (s *Store) FindByRemoteID(ctx context.Context, recordType, remoteID string) (*reconcile.LocalRecord, error) {
	if remoteID == "" {
		return nil, nil
	}
	var r Record
	err := s.session(ctx).Where("record_type = ? AND remote_id = ?", recordType, remoteID).Order("id").First(&r).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find %s %s: %w", recordType, remoteID, err)
	}
	rec := r.toLocal()
	return &rec, nil
}

func (s *Store) FindByRemoteIDs(ctx context.Context, recordType string, remoteIDs []string) ([]reconcile.LocalRecord, error) {
	out := []reconcile.LocalRecord{}
	for _, chunk := range chunks(remoteIDs, inChunk) {
		var rows []Record
		err := s.session(ctx).Where("record_type = ? AND remote_id IN ?", recordType, chunk).Order("id").Find(&rows).Error
		if err != nil {
			return nil, fmt.Errorf("failed to find %s records: %w", recordType, err)
		}
		for _, r := range rows {
			out = append(out, r.toLocal())
		}
	}
	return out, nil
}

func (s *Store) RemoteIDsModifiedBetween(ctx context.Context, recordType string, start, end time.Time) ([]string, error) {
	ids := []string{}
	err := s.session(ctx).Model(&Record{}).
		Where("record_type = ? AND remote_id <> '' AND updated_at BETWEEN ? AND ?", recordType, start.UTC(), end.UTC()).
		Order("id").
		Pluck("remote_id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list modified %s records: %w", recordType, err)
	}
	return ids, nil
}

func (s *Store) UnsyncedIDsModifiedBetween(ctx context.Context, recordType string, start, end time.Time) ([]int64, error) {
	ids := []int64{}
	err := s.session(ctx).Model(&Record{}).
		Where("record_type = ? AND remote_id = '' AND updated_at BETWEEN ? AND ?", recordType, start.UTC(), end.UTC()).
		Order("id").
		Pluck("id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list unsynced %s records: %w", recordType, err)
	}
	return ids, nil
}

// Save inserts or updates rec and sets its id and update time.
func (s *Store) Save(ctx context.Context, rec *reconcile.LocalRecord, opts reconcile.WriteOptions) error {
	change := reconcile.Change{Kind: reconcile.ChangeCreated}
	row := fromLocal(rec)

	err := s.session(ctx).Transaction(func(tx *gorm.DB) error {
		if row.ID == 0 {
			return tx.Create(&row).Error
		}
		var prev Record
		if err := tx.Where("id = ?", row.ID).First(&prev).Error; err != nil {
			return err
		}
		change.Kind = reconcile.ChangeUpdated
		d := reconcile.DiffValues(prev.Attributes, row.Attributes)
		change.Changed = append(d.Changed, d.Added...)
		row.CreatedAt = prev.CreatedAt
		return tx.Save(&row).Error
	})
	if err != nil {
		return fmt.Errorf("failed to save %s %d: %w", rec.Type, rec.ID, err)
	}

	rec.ID = row.ID
	rec.UpdatedAt = row.UpdatedAt
	if opts.SkipSync {
		return nil
	}
	change.Record = *rec
	return s.notify(ctx, change)
}

// MarkSynced writes the remote id and stamp columns only. UpdateColumns leaves
// updated_at alone so the bookkeeping never reads as a local modification.
func (s *Store) MarkSynced(ctx context.Context, recordType string, id int64, remoteID string, modstamp *time.Time) error {
	cols := map[string]any{"remote_id": remoteID}
	if modstamp != nil {
		cols["remote_modstamp"] = modstamp.UTC()
	}
	err := s.session(ctx).Model(&Record{}).
		Where("id = ? AND record_type = ?", id, recordType).
		UpdateColumns(cols).Error
	if err != nil {
		return fmt.Errorf("failed to mark %s %d synced: %w", recordType, id, err)
	}
	return nil
}

// Delete removes rec.
func (s *Store) Delete(ctx context.Context, rec *reconcile.LocalRecord, opts reconcile.WriteOptions) error {
	if err := s.session(ctx).Where("id = ?", rec.ID).Delete(&Record{}).Error; err != nil {
		return fmt.Errorf("failed to delete %s %d: %w", rec.Type, rec.ID, err)
	}
	if opts.SkipSync {
		return nil
	}
	return s.notify(ctx, reconcile.Change{Kind: reconcile.ChangeDeleted, Record: *rec})
}

// DeleteByRemoteIDs removes records in bulk. The change hook is not called.
func (s *Store) DeleteByRemoteIDs(ctx context.Context, recordType string, remoteIDs []string) (int64, error) {
	var n int64
	for _, chunk := range chunks(remoteIDs, inChunk) {
		res := s.session(ctx).Where("record_type = ? AND remote_id <> '' AND remote_id IN ?", recordType, chunk).Delete(&Record{})
		if res.Error != nil {
			return n, fmt.Errorf("failed to delete %s records: %w", recordType, res.Error)
		}
		n += res.RowsAffected
	}
	return n, nil
}

func (s *Store) Count(ctx context.Context, recordType string) (int64, error) {
	var n int64
	if err := s.session(ctx).Model(&Record{}).Where("record_type = ?", recordType).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("failed to count %s records: %w", recordType, err)
	}
	return n, nil
}

func (s *Store) notify(ctx context.Context, c reconcile.Change) error {
	s.mu.RLock()
	hook := s.hook
	s.mu.RUnlock()
	if hook == nil {
		return nil
	}
	return hook(ctx, c)
}

func chunks[T any](ids []T, size int) [][]T {
	var out [][]T
	for len(ids) > size {
		out = append(out, ids[:size])
		ids = ids[size:]
	}
	if len(ids) > 0 {
		out = append(out, ids)
	}
	return out
}
