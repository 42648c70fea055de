package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"crm-sync/core/reconcile"
)

// Store is an in-memory local store. Save stamps UpdatedAt with Now.
type Store struct {
	mu      sync.Mutex
	records map[int64]*reconcile.LocalRecord
	nextID  int64
	saves   []reconcile.WriteOptions

	// Now stamps writes. Defaults to time.Now.
	Now func() time.Time
	// Hook receives mutations made without SkipSync.
	Hook reconcile.ChangeHook
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{records: make(map[int64]*reconcile.LocalRecord), Now: time.Now}
}

// SetHook installs the change hook.
func (s *Store) SetHook(hook reconcile.ChangeHook) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Hook = hook
}

// Put stores a copy of rec as is, assigning an id when rec.ID is zero.
// The hook is not called.
func (s *Store) Put(rec reconcile.LocalRecord) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rec.ID == 0 {
		s.nextID++
		rec.ID = s.nextID
	} else if rec.ID > s.nextID {
		s.nextID = rec.ID
	}
	cp := clone(rec)
	s.records[rec.ID] = &cp
	return rec.ID
}

// All returns copies of every record ordered by id.
func (s *Store) All() []reconcile.LocalRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]reconcile.LocalRecord, 0, len(s.records))
	for _, rec := range s.records {
		out = append(out, clone(*rec))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Saves returns the write options of every Save and Delete call, in order.
func (s *Store) Saves() []reconcile.WriteOptions {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]reconcile.WriteOptions(nil), s.saves...)
}

func (s *Store) FindByID(_ context.Context, recordType string, id int64) (*reconcile.LocalRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[id]
	if !ok || rec.Type != recordType {
		return nil, nil
	}
	cp := clone(*rec)
	return &cp, nil
}

func (s *Store) FindByIDs(_ context.Context, recordType string, ids []int64) ([]reconcile.LocalRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []reconcile.LocalRecord{}
	for _, id := range ids {
		if rec, ok := s.records[id]; ok && rec.Type == recordType {
			out = append(out, clone(*rec))
		}
	}
	return out, nil
}

func (s *Store) FindByRemoteID(_ context.Context, recordType, remoteID string) (*reconcile.LocalRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, rec := range s.sorted() {
		if rec.Type == recordType && rec.RemoteID == remoteID && remoteID != "" {
			cp := clone(*rec)
			return &cp, nil
		}
	}
	return nil, nil
}

func (s *Store) FindByRemoteIDs(_ context.Context, recordType string, remoteIDs []string) ([]reconcile.LocalRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	want := toSet(remoteIDs)
	out := []reconcile.LocalRecord{}
	for _, rec := range s.sorted() {
		if _, ok := want[rec.RemoteID]; ok && rec.Type == recordType && rec.RemoteID != "" {
			out = append(out, clone(*rec))
		}
	}
	return out, nil
}

func (s *Store) RemoteIDsModifiedBetween(_ context.Context, recordType string, start, end time.Time) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []string{}
	for _, rec := range s.sorted() {
		if rec.Type == recordType && rec.RemoteID != "" && within(rec.UpdatedAt, start, end) {
			out = append(out, rec.RemoteID)
		}
	}
	return out, nil
}

func (s *Store) UnsyncedIDsModifiedBetween(_ context.Context, recordType string, start, end time.Time) ([]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []int64{}
	for _, rec := range s.sorted() {
		if rec.Type == recordType && rec.RemoteID == "" && within(rec.UpdatedAt, start, end) {
			out = append(out, rec.ID)
		}
	}
	return out, nil
}

func (s *Store) Save(ctx context.Context, rec *reconcile.LocalRecord, opts reconcile.WriteOptions) error {
	s.mu.Lock()
	s.saves = append(s.saves, opts)
	change := reconcile.Change{Kind: reconcile.ChangeUpdated}
	if rec.ID == 0 {
		s.nextID++
		rec.ID = s.nextID
		change.Kind = reconcile.ChangeCreated
	} else if prev, ok := s.records[rec.ID]; ok {
		d := reconcile.DiffValues(prev.Attributes, rec.Attributes)
		change.Changed = append(d.Changed, d.Added...)
	}
	rec.UpdatedAt = s.Now()
	cp := clone(*rec)
	s.records[rec.ID] = &cp
	hook := s.Hook
	s.mu.Unlock()

	if hook == nil || opts.SkipSync {
		return nil
	}
	change.Record = clone(*rec)
	return hook(ctx, change)
}

func (s *Store) MarkSynced(_ context.Context, recordType string, id int64, remoteID string, modstamp *time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[id]
	if !ok || rec.Type != recordType {
		return nil
	}
	rec.RemoteID = remoteID
	if modstamp != nil {
		t := *modstamp
		rec.RemoteModstamp = &t
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, rec *reconcile.LocalRecord, opts reconcile.WriteOptions) error {
	s.mu.Lock()
	s.saves = append(s.saves, opts)
	delete(s.records, rec.ID)
	hook := s.Hook
	s.mu.Unlock()

	if hook == nil || opts.SkipSync {
		return nil
	}
	return hook(ctx, reconcile.Change{Kind: reconcile.ChangeDeleted, Record: clone(*rec)})
}

func (s *Store) DeleteByRemoteIDs(_ context.Context, recordType string, remoteIDs []string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	want := toSet(remoteIDs)
	var n int64
	for id, rec := range s.records {
		if _, ok := want[rec.RemoteID]; ok && rec.Type == recordType && rec.RemoteID != "" {
			delete(s.records, id)
			n++
		}
	}
	return n, nil
}

func (s *Store) Count(_ context.Context, recordType string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, rec := range s.records {
		if rec.Type == recordType {
			n++
		}
	}
	return n, nil
}

func (s *Store) sorted() []*reconcile.LocalRecord {
	out := make([]*reconcile.LocalRecord, 0, len(s.records))
	for _, rec := range s.records {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func clone(rec reconcile.LocalRecord) reconcile.LocalRecord {
	rec.Attributes = rec.Attributes.Clone()
	if rec.RemoteModstamp != nil {
		t := *rec.RemoteModstamp
		rec.RemoteModstamp = &t
	}
	return rec
}

func toSet(ids []string) map[string]struct{} {
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}

func within(t, start, end time.Time) bool {
	return !t.Before(start) && !t.After(end)
}
