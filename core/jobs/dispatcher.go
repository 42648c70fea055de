package jobs

import (
	"context"
	"fmt"

	"crm-sync/core/reconcile"

	"go.uber.org/zap"
)

// SyncMode decides whether triggered jobs run inline or on the worker pool.
type SyncMode string

const (
	SyncModeSync  SyncMode = "sync"
	SyncModeAsync SyncMode = "async"
)

// ParseSyncMode validates a mode name. Empty means sync.
func ParseSyncMode(s string) (SyncMode, error) {
	switch SyncMode(s) {
	case "", SyncModeSync:
		return SyncModeSync, nil
	case SyncModeAsync:
		return SyncModeAsync, nil
	default:
		return "", fmt.Errorf("unknown sync mode %q", s)
	}
}

// Dispatcher turns local mutations and remote notifications of one record type into jobs.
type Dispatcher struct {
	runner   *Runner
	mapping  *reconcile.Mapping
	outbound *reconcile.Outbound
	inbound  *reconcile.Inbound
	ops      reconcile.Operations
	mode     SyncMode
	logger   *zap.Logger
}

// NewDispatcher creates a dispatcher. A nil ops set enables every operation.
func NewDispatcher(runner *Runner, mapping *reconcile.Mapping, outbound *reconcile.Outbound, inbound *reconcile.Inbound, ops reconcile.Operations, mode SyncMode, logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{
		runner:   runner,
		mapping:  mapping,
		outbound: outbound,
		inbound:  inbound,
		ops:      ops,
		mode:     mode,
		logger:   logger.With(zap.String("record_type", mapping.RecordType)),
	}
}

// OnChange is a reconcile.ChangeHook. It triggers the outbound job matching the change.
func (d *Dispatcher) OnChange(ctx context.Context, c reconcile.Change) error {
	rec := c.Record
	switch c.Kind {
	case reconcile.ChangeCreated:
		if !d.ops.Has(reconcile.OpOutboundCreate) || rec.HasRemoteID() {
			return nil
		}
		return d.dispatch(ctx, OutboundCreate(d.outbound, rec))

	case reconcile.ChangeUpdated:
		if !d.ops.Has(reconcile.OpOutboundUpdate) {
			return nil
		}
		if !rec.HasRemoteID() {
			d.logger.Debug("Skipping outbound update of unsynced record", zap.Int64("local_id", rec.ID))
			return nil
		}
		attrs := d.mapping.ToRemote(reconcile.Slice(rec.Attributes, c.Changed))
		if len(attrs) == 0 {
			return nil
		}
		return d.dispatch(ctx, OutboundUpdate(d.outbound, rec, attrs))

	case reconcile.ChangeDeleted:
		if !d.ops.Has(reconcile.OpOutboundDelete) || !rec.HasRemoteID() {
			return nil
		}
		return d.dispatch(ctx, OutboundDelete(d.outbound, rec))
	}
	return nil
}

// OnInboundUpdate applies a remote change notification.
func (d *Dispatcher) OnInboundUpdate(ctx context.Context, attrs reconcile.Attributes) error {
	if !d.ops.Has(reconcile.OpInboundUpdate) {
		return nil
	}
	return d.dispatch(ctx, InboundUpdate(d.inbound, d.mapping.RecordType, attrs, d.mapping.RemoteID(attrs)))
}

// OnInboundDelete applies a remote delete notification.
func (d *Dispatcher) OnInboundDelete(ctx context.Context, remoteID string) error {
	if !d.ops.Has(reconcile.OpInboundDelete) {
		return nil
	}
	return d.dispatch(ctx, InboundDelete(d.inbound, d.mapping.RecordType, remoteID))
}

func (d *Dispatcher) dispatch(ctx context.Context, job Job) error {
	if d.mode == SyncModeAsync {
		return d.runner.Enqueue(ctx, job)
	}
	return d.runner.Run(ctx, job)
}

// Router fans a store's change hook out to the dispatcher of each record type.
type Router map[string]*Dispatcher

// OnChange is a reconcile.ChangeHook. Changes of unregistered types are ignored.
func (r Router) OnChange(ctx context.Context, c reconcile.Change) error {
	d, ok := r[c.Record.Type]
	if !ok {
		return nil
	}
	return d.OnChange(ctx, c)
}
