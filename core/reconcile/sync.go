package reconcile

import (
	"context"
	"fmt"
	"time"
)

// Outbound pushes local records to the remote.
type Outbound struct {
	remote  Remote
	store   LocalStore
	mapping *Mapping
	hook    EventHook
}

// NewOutbound creates an outbound syncer. hook may be nil.
func NewOutbound(remote Remote, store LocalStore, mapping *Mapping, hook EventHook) *Outbound {
	return &Outbound{remote: remote, store: store, mapping: mapping, hook: hook}
}

// Create pushes a never-synced record and stores the assigned remote id.
func (o *Outbound) Create(ctx context.Context, rec *LocalRecord) error {
	attrs := Compact(o.mapping.ToRemote(rec.Attributes))
	id, err := o.remote.Create(ctx, o.mapping.RecordType, attrs)
	if err != nil {
		return fmt.Errorf("failed to create remote %s: %w", o.mapping.RecordType, err)
	}
	rec.RemoteID = id
	if rec.ID != 0 {
		if err := o.store.MarkSynced(ctx, o.mapping.RecordType, rec.ID, id, nil); err != nil {
			return fmt.Errorf("failed to store remote id %s: %w", id, err)
		}
	}
	o.emit(EventOutboundCreate, rec, attrs)
	return nil
}

// Update writes attrs (remote names) to the record's remote counterpart and
// records the resulting remote modification stamp. Empty attrs are a no-op.
func (o *Outbound) Update(ctx context.Context, rec *LocalRecord, attrs Attributes) error {
	if !rec.HasRemoteID() {
		return invalid(ErrRemoteIDRequired, "local %s %d", o.mapping.RecordType, rec.ID)
	}
	if len(attrs) == 0 {
		return nil
	}
	if err := o.remote.Update(ctx, o.mapping.RecordType, rec.RemoteID, attrs); err != nil {
		return fmt.Errorf("failed to update remote %s %s: %w", o.mapping.RecordType, rec.RemoteID, err)
	}

	found, err := o.remote.Find(ctx, o.mapping.RecordType, rec.RemoteID)
	if err != nil {
		return fmt.Errorf("failed to read back remote %s %s: %w", o.mapping.RecordType, rec.RemoteID, err)
	}
	if found != nil {
		if stamp, ok := o.mapping.Modstamp(found.Attributes); ok {
			rec.RemoteModstamp = &stamp
			if err := o.store.MarkSynced(ctx, o.mapping.RecordType, rec.ID, rec.RemoteID, &stamp); err != nil {
				return fmt.Errorf("failed to store remote modstamp: %w", err)
			}
		}
	}
	o.emit(EventOutboundUpdate, rec, attrs)
	return nil
}

// Push sends the full synced attribute set, creating the remote record when needed.
func (o *Outbound) Push(ctx context.Context, rec *LocalRecord) error {
	if rec.HasRemoteID() {
		return o.Update(ctx, rec, o.mapping.ToRemote(rec.Attributes))
	}
	return o.Create(ctx, rec)
}

// Delete removes the remote counterpart. Records that were never pushed are ignored.
func (o *Outbound) Delete(ctx context.Context, rec *LocalRecord) error {
	if !rec.HasRemoteID() {
		return nil
	}
	if err := o.remote.Delete(ctx, o.mapping.RecordType, rec.RemoteID); err != nil {
		return fmt.Errorf("failed to delete remote %s %s: %w", o.mapping.RecordType, rec.RemoteID, err)
	}
	o.emit(EventOutboundDelete, rec, nil)
	return nil
}

func (o *Outbound) emit(t EventType, rec *LocalRecord, attrs Attributes) {
	if o.hook == nil {
		return
	}
	o.hook(Event{Type: t, RecordType: o.mapping.RecordType, RemoteID: rec.RemoteID, LocalID: rec.ID, Attributes: attrs})
}

// Inbound applies remote records to the local store. Every write it makes skips outbound sync.
type Inbound struct {
	store   LocalStore
	mapping *Mapping
	hook    EventHook
	now     func() time.Time
}

// NewInbound creates an inbound syncer. hook may be nil.
func NewInbound(store LocalStore, mapping *Mapping, hook EventHook) *Inbound {
	return &Inbound{store: store, mapping: mapping, hook: hook, now: time.Now}
}

// Update applies remote attributes to the matching local record, creating it when absent.
// Stale payloads (not strictly newer than the last known remote stamp) are ignored.
// With addBlanks, synced fields missing from attrs are cleared locally.
func (in *Inbound) Update(ctx context.Context, attrs Attributes, addBlanks bool) (*LocalRecord, bool, error) {
	return in.upsert(ctx, attrs, addBlanks, true)
}

// Force applies remote attributes without the freshness guard.
func (in *Inbound) Force(ctx context.Context, attrs Attributes, addBlanks bool) (*LocalRecord, error) {
	rec, _, err := in.upsert(ctx, attrs, addBlanks, false)
	return rec, err
}

// Apply writes remote attributes onto an already loaded record without the freshness guard.
func (in *Inbound) Apply(ctx context.Context, rec *LocalRecord, attrs Attributes, addBlanks bool) error {
	created := rec.ID == 0
	if stamp, ok := in.mapping.Modstamp(attrs); ok {
		rec.RemoteModstamp = &stamp
	}
	if addBlanks {
		attrs = in.mapping.WithBlanks(attrs)
	}
	if rec.Attributes == nil {
		rec.Attributes = Attributes{}
	}
	for k, v := range in.mapping.ToLocal(attrs) {
		rec.Attributes[k] = v
	}
	rec.UpdatedAt = in.now()

	if err := in.store.Save(ctx, rec, WriteOptions{SkipSync: true}); err != nil {
		return fmt.Errorf("failed to save %s %s: %w", in.mapping.RecordType, rec.RemoteID, err)
	}

	t := EventInboundUpdate
	if created {
		t = EventInboundCreate
	}
	in.emit(t, rec, attrs)
	return nil
}

// Delete removes the local record with the given remote id, if any.
func (in *Inbound) Delete(ctx context.Context, remoteID string) (bool, error) {
	rec, err := in.store.FindByRemoteID(ctx, in.mapping.RecordType, remoteID)
	if err != nil {
		return false, err
	}
	if rec == nil {
		return false, nil
	}
	if err := in.DeleteRecord(ctx, rec); err != nil {
		return false, err
	}
	return true, nil
}

// DeleteRecord removes a loaded record without propagating the delete remotely.
func (in *Inbound) DeleteRecord(ctx context.Context, rec *LocalRecord) error {
	if err := in.store.Delete(ctx, rec, WriteOptions{SkipSync: true}); err != nil {
		return fmt.Errorf("failed to delete %s %d: %w", in.mapping.RecordType, rec.ID, err)
	}
	in.emit(EventInboundDelete, rec, nil)
	return nil
}

func (in *Inbound) upsert(ctx context.Context, attrs Attributes, addBlanks, guard bool) (*LocalRecord, bool, error) {
	id := in.mapping.RemoteID(attrs)
	if id == "" {
		return nil, false, invalid(ErrRemoteIDRequired, "inbound %s payload has no %s", in.mapping.RecordType, in.mapping.IDField)
	}

	rec, err := in.store.FindByRemoteID(ctx, in.mapping.RecordType, id)
	if err != nil {
		return nil, false, err
	}
	if rec == nil {
		rec = &LocalRecord{Type: in.mapping.RecordType, RemoteID: id, Attributes: Attributes{}}
	} else if guard && !in.mapping.IsFresh(rec.RemoteModstamp, attrs) {
		return rec, false, nil
	}

	if err := in.Apply(ctx, rec, attrs, addBlanks); err != nil {
		return nil, false, err
	}
	return rec, true, nil
}

func (in *Inbound) emit(t EventType, rec *LocalRecord, attrs Attributes) {
	if in.hook == nil {
		return
	}
	in.hook(Event{Type: t, RecordType: in.mapping.RecordType, RemoteID: rec.RemoteID, LocalID: rec.ID, Attributes: attrs})
}
