package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"crm-sync/core/reconcile"
)

// Remote is an in-memory remote system of record.
// Writes stamp SystemModstamp with Now.
type Remote struct {
	mu      sync.Mutex
	records map[string]map[string]reconcile.Attributes
	updated map[string][]string
	deleted map[string][]string
	failOn  map[string]error
	calls   map[string]int
	nextID  int

	// Now stamps writes. Defaults to time.Now.
	Now func() time.Time
}

// NewRemote creates an empty remote.
func NewRemote() *Remote {
	return &Remote{
		records: make(map[string]map[string]reconcile.Attributes),
		updated: make(map[string][]string),
		deleted: make(map[string][]string),
		failOn:  make(map[string]error),
		calls:   make(map[string]int),
		Now:     time.Now,
	}
}

// Put stores a record as is. The Id attribute is set from id.
func (r *Remote) Put(recordType, id string, attrs reconcile.Attributes) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.put(recordType, id, attrs)
}

func (r *Remote) put(recordType, id string, attrs reconcile.Attributes) {
	if r.records[recordType] == nil {
		r.records[recordType] = make(map[string]reconcile.Attributes)
	}
	cp := attrs.Clone()
	if cp == nil {
		cp = reconcile.Attributes{}
	}
	cp[reconcile.DefaultIDField] = id
	r.records[recordType][id] = cp
}

// Get returns a copy of a stored record's attributes.
func (r *Remote) Get(recordType, id string) (reconcile.Attributes, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	attrs, ok := r.records[recordType][id]
	return attrs.Clone(), ok
}

// SetUpdated sets the ids reported by GetUpdatedIDs.
func (r *Remote) SetUpdated(recordType string, ids ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.updated[recordType] = ids
}

// SetDeleted sets the ids reported by GetDeletedIDs.
func (r *Remote) SetDeleted(recordType string, ids ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.deleted[recordType] = ids
}

// FailOn makes every call of method return err. A nil err clears it.
func (r *Remote) FailOn(method string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err == nil {
		delete(r.failOn, method)
		return
	}
	r.failOn[method] = err
}

// Calls returns how often method was called.
func (r *Remote) Calls(method string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls[method]
}

// TotalWrites returns the number of Create, Update and Delete calls.
func (r *Remote) TotalWrites() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls["Create"] + r.calls["Update"] + r.calls["Delete"]
}

func (r *Remote) enter(method string) error {
	r.calls[method]++
	return r.failOn[method]
}

func (r *Remote) GetUpdatedIDs(_ context.Context, recordType string, _, _ time.Time) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.enter("GetUpdatedIDs"); err != nil {
		return nil, err
	}
	return append([]string{}, r.updated[recordType]...), nil
}

func (r *Remote) GetDeletedIDs(_ context.Context, recordType string, _, _ time.Time) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.enter("GetDeletedIDs"); err != nil {
		return nil, err
	}
	return append([]string{}, r.deleted[recordType]...), nil
}

func (r *Remote) FetchMultiple(_ context.Context, recordType string, ids []string) ([]reconcile.RemoteRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(ids) == 0 {
		return []reconcile.RemoteRecord{}, nil
	}
	if err := r.enter("FetchMultiple"); err != nil {
		return nil, err
	}
	out := make([]reconcile.RemoteRecord, 0, len(ids))
	for _, id := range ids {
		if attrs, ok := r.records[recordType][id]; ok {
			out = append(out, reconcile.RemoteRecord{Type: recordType, ID: id, Attributes: attrs.Clone()})
		}
	}
	return out, nil
}

func (r *Remote) Find(_ context.Context, recordType, id string) (*reconcile.RemoteRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.enter("Find"); err != nil {
		return nil, err
	}
	attrs, ok := r.records[recordType][id]
	if !ok {
		return nil, nil
	}
	return &reconcile.RemoteRecord{Type: recordType, ID: id, Attributes: attrs.Clone()}, nil
}

func (r *Remote) Create(_ context.Context, recordType string, attrs reconcile.Attributes) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.enter("Create"); err != nil {
		return "", err
	}
	r.nextID++
	id := fmt.Sprintf("R%05d", r.nextID)
	cp := attrs.Clone()
	if cp == nil {
		cp = reconcile.Attributes{}
	}
	cp[reconcile.DefaultModstampField] = r.Now().UTC()
	r.put(recordType, id, cp)
	return id, nil
}

func (r *Remote) Update(_ context.Context, recordType, id string, attrs reconcile.Attributes) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.enter("Update"); err != nil {
		return err
	}
	existing, ok := r.records[recordType][id]
	if !ok {
		return fmt.Errorf("%s %s not found", recordType, id)
	}
	for k, v := range attrs {
		existing[k] = v
	}
	existing[reconcile.DefaultModstampField] = r.Now().UTC()
	return nil
}

func (r *Remote) Delete(_ context.Context, recordType, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.enter("Delete"); err != nil {
		return err
	}
	delete(r.records[recordType], id)
	return nil
}

// Count returns the number of stored records of the type.
func (r *Remote) Count(_ context.Context, recordType string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.enter("Count"); err != nil {
		return 0, err
	}
	return int64(len(r.records[recordType])), nil
}

// QueryIDsByStamp lists ids whose stamp field falls in [start, end].
func (r *Remote) QueryIDsByStamp(_ context.Context, recordType, field string, start, end time.Time) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.enter("QueryIDsByStamp"); err != nil {
		return nil, err
	}
	ids := []string{}
	for id, attrs := range r.records[recordType] {
		t, ok := attrs[field].(time.Time)
		if !ok {
			continue
		}
		if !t.Before(start) && !t.After(end) {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

// PageRecords lists records with ids after afterID in ascending id order.
func (r *Remote) PageRecords(_ context.Context, recordType, afterID string, limit int) ([]reconcile.RemoteRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.enter("PageRecords"); err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(r.records[recordType]))
	for id := range r.records[recordType] {
		if id > afterID {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	if len(ids) > limit {
		ids = ids[:limit]
	}
	out := make([]reconcile.RemoteRecord, 0, len(ids))
	for _, id := range ids {
		out = append(out, reconcile.RemoteRecord{Type: recordType, ID: id, Attributes: r.records[recordType][id].Clone()})
	}
	return out, nil
}
