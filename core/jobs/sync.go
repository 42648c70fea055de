package jobs

import (
	"context"
	"fmt"

	"crm-sync/core/reconcile"
)

// Job names.
const (
	NameOutboundCreate = "outbound_create"
	NameOutboundUpdate = "outbound_update"
	NameOutboundDelete = "outbound_delete"
	NameInboundUpdate  = "inbound_update"
	NameInboundDelete  = "inbound_delete"
	NameAudit          = "audit_partition"
	NamePoll           = "poll_partition"
	NameResolve        = "resolve"
)

// RecordArgs are the arguments of a record level sync job.
type RecordArgs struct {
	RecordType string               `json:"record_type"`
	LocalID    int64                `json:"local_id,omitempty"`
	RemoteID   string               `json:"remote_id,omitempty"`
	Attributes reconcile.Attributes `json:"attributes,omitempty"`
}

// ResolveArgs are the arguments of a resolve job.
type ResolveArgs struct {
	RecordType string                   `json:"record_type"`
	Target     reconcile.Target         `json:"target"`
	Resolution reconcile.ResolutionType `json:"resolution"`
	Options    reconcile.ResolveOptions `json:"options"`
}

// recordKey prefers the local id, which a record keeps for life. Targets that only
// exist remotely are keyed on their remote id.
func recordKey(recordType string, localID int64, remoteID string) string {
	if localID != 0 || remoteID == "" {
		return fmt.Sprintf("%s/local/%d", recordType, localID)
	}
	return recordType + "/remote/" + remoteID
}

// OutboundCreate pushes a never-synced record.
func OutboundCreate(out *reconcile.Outbound, rec reconcile.LocalRecord) Job {
	return Job{
		Name: NameOutboundCreate,
		Key:  recordKey(rec.Type, rec.ID, ""),
		Args: RecordArgs{RecordType: rec.Type, LocalID: rec.ID},
		Run: func(ctx context.Context) error {
			r := rec
			r.Attributes = rec.Attributes.Clone()
			return out.Create(ctx, &r)
		},
	}
}

// OutboundUpdate writes attrs, as remote field names, to the record's remote counterpart.
func OutboundUpdate(out *reconcile.Outbound, rec reconcile.LocalRecord, attrs reconcile.Attributes) Job {
	return Job{
		Name: NameOutboundUpdate,
		Key:  recordKey(rec.Type, rec.ID, rec.RemoteID),
		Args: RecordArgs{RecordType: rec.Type, LocalID: rec.ID, RemoteID: rec.RemoteID, Attributes: attrs},
		Run: func(ctx context.Context) error {
			r := rec
			return out.Update(ctx, &r, attrs)
		},
	}
}

// OutboundDelete deletes the record's remote counterpart.
func OutboundDelete(out *reconcile.Outbound, rec reconcile.LocalRecord) Job {
	return Job{
		Name: NameOutboundDelete,
		Key:  recordKey(rec.Type, rec.ID, rec.RemoteID),
		Args: RecordArgs{RecordType: rec.Type, LocalID: rec.ID, RemoteID: rec.RemoteID},
		Run: func(ctx context.Context) error {
			r := rec
			return out.Delete(ctx, &r)
		},
	}
}

// InboundUpdate applies a remote payload locally, guarded by freshness.
func InboundUpdate(in *reconcile.Inbound, recordType string, attrs reconcile.Attributes, remoteID string) Job {
	return Job{
		Name: NameInboundUpdate,
		Key:  recordKey(recordType, 0, remoteID),
		Args: RecordArgs{RecordType: recordType, RemoteID: remoteID, Attributes: attrs},
		Run: func(ctx context.Context) error {
			_, _, err := in.Update(ctx, attrs, true)
			return err
		},
	}
}

// InboundDelete removes the local record of a deleted remote record.
func InboundDelete(in *reconcile.Inbound, recordType, remoteID string) Job {
	return Job{
		Name: NameInboundDelete,
		Key:  recordKey(recordType, 0, remoteID),
		Args: RecordArgs{RecordType: recordType, RemoteID: remoteID},
		Run: func(ctx context.Context) error {
			_, err := in.Delete(ctx, remoteID)
			return err
		},
	}
}

// AuditPartition audits one partition. The result is handed to sink even when the audit fails.
func AuditPartition(a *reconcile.Auditor, p reconcile.Partition, sink func(*reconcile.AuditResult)) Job {
	return Job{
		Name: NameAudit,
		Args: p,
		Run: func(ctx context.Context) error {
			res, err := a.Run(ctx, p)
			if sink != nil {
				sink(res)
			}
			return err
		},
	}
}

// PollPartition polls one partition. sink receives the counts of a successful run.
func PollPartition(p *reconcile.Poller, part reconcile.Partition, opts reconcile.PollOptions, sink func(*reconcile.PollResult)) Job {
	return Job{
		Name: NamePoll,
		Args: part,
		Run: func(ctx context.Context) error {
			res, err := p.Run(ctx, part, opts)
			if err != nil {
				return err
			}
			if sink != nil {
				sink(res)
			}
			return nil
		},
	}
}

// Resolve runs a conflict resolution.
func Resolve(r *reconcile.Resolver, args ResolveArgs) Job {
	key := recordKey(args.RecordType, args.Target.LocalID, args.Target.RemoteID)
	return Job{
		Name: NameResolve,
		Key:  key,
		Args: args,
		Run: func(ctx context.Context) error {
			return r.Resolve(ctx, args.Target, args.Resolution, args.Options)
		},
	}
}
