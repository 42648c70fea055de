package reconcile

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// ResolutionType names a conflict resolution action.
type ResolutionType string

const (
	ResolveRemotePush  ResolutionType = "remote_push"
	ResolveRemotePull  ResolutionType = "remote_pull"
	ResolveLocalDelete ResolutionType = "local_delete"
	ResolveMerge       ResolutionType = "merge"
)

// ResolutionTypes lists the allowed resolutions.
var ResolutionTypes = []ResolutionType{ResolveRemotePush, ResolveRemotePull, ResolveLocalDelete, ResolveMerge}

// ParseResolution validates a resolution name.
func ParseResolution(s string) (ResolutionType, error) {
	for _, t := range ResolutionTypes {
		if string(t) == s {
			return t, nil
		}
	}
	return "", invalid(ErrUnknownResolution, "%q", s)
}

// Target identifies the record pair to resolve. LocalID wins over RemoteID for the local lookup.
type Target struct {
	LocalID  int64  `json:"local_id,omitempty"`
	RemoteID string `json:"remote_id,omitempty"`
}

// ResolveOptions carries the field lists of a merge, as remote field names.
// A nil list means the option was not given; an empty list means "no fields".
type ResolveOptions struct {
	LocalAttributes  []string `json:"local_attributes"`
	RemoteAttributes []string `json:"remote_attributes"`
}

// Resolver executes conflict resolutions for one record type.
type Resolver struct {
	remote   Remote
	store    LocalStore
	mapping  *Mapping
	outbound *Outbound
	inbound  *Inbound
	logger   *zap.Logger
}

// NewResolver creates a resolver. hook may be nil.
func NewResolver(remote Remote, store LocalStore, mapping *Mapping, hook EventHook, logger *zap.Logger) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{
		remote:   remote,
		store:    store,
		mapping:  mapping,
		outbound: NewOutbound(remote, store, mapping, hook),
		inbound:  NewInbound(store, mapping, hook),
		logger:   logger,
	}
}

// Conflict classifies the target pair over every synced field.
func (r *Resolver) Conflict(ctx context.Context, target Target) (Classification, error) {
	local, remote, err := r.load(ctx, target)
	if err != nil {
		return Classification{}, err
	}
	return Classify(local, remote, r.mapping, r.mapping.SyncedAttributes()), nil
}

// Resolve runs one resolution action against the target pair.
// Caller errors are returned as *ValidationError.
func (r *Resolver) Resolve(ctx context.Context, target Target, resolution ResolutionType, opts ResolveOptions) error {
	if _, err := ParseResolution(string(resolution)); err != nil {
		return err
	}
	if resolution == ResolveMerge {
		if opts.LocalAttributes == nil {
			return invalid(ErrMissingOption, "local_attributes")
		}
		if opts.RemoteAttributes == nil {
			return invalid(ErrMissingOption, "remote_attributes")
		}
	}

	local, remote, err := r.load(ctx, target)
	if err != nil {
		return err
	}

	r.logger.Info("Resolving conflict",
		zap.String("record_type", r.mapping.RecordType),
		zap.String("resolution", string(resolution)),
		zap.Int64("local_id", target.LocalID),
		zap.String("remote_id", target.RemoteID),
	)

	switch resolution {
	case ResolveRemotePush:
		if local == nil {
			return invalid(ErrLocalRecordRequired, "remote push")
		}
		return r.outbound.Push(ctx, local)

	case ResolveRemotePull:
		if remote == nil {
			return invalid(ErrRemoteRecordRequired, "remote pull")
		}
		if local == nil {
			_, err := r.inbound.Force(ctx, withID(remote, r.mapping), true)
			return err
		}
		if local.RemoteID == "" {
			local.RemoteID = remote.ID
		}
		return r.inbound.Apply(ctx, local, withID(remote, r.mapping), true)

	case ResolveLocalDelete:
		if local == nil {
			return nil
		}
		return r.inbound.DeleteRecord(ctx, local)

	default:
		if local == nil {
			return invalid(ErrLocalRecordRequired, "merge")
		}
		if remote == nil {
			return invalid(ErrRemoteRecordRequired, "merge")
		}
		return r.merge(ctx, local, remote, opts)
	}
}

// merge pushes the named local fields, then pulls the named remote fields.
func (r *Resolver) merge(ctx context.Context, local *LocalRecord, remote *RemoteRecord, opts ResolveOptions) error {
	if local.RemoteID == "" {
		local.RemoteID = remote.ID
	}
	push := Slice(r.mapping.ToRemote(local.Attributes), opts.LocalAttributes)
	if err := r.outbound.Update(ctx, local, push); err != nil {
		return err
	}

	pull := Slice(remote.Attributes, opts.RemoteAttributes)
	if len(pull) == 0 {
		return nil
	}
	return r.inbound.Apply(ctx, local, pull, false)
}

func (r *Resolver) load(ctx context.Context, target Target) (*LocalRecord, *RemoteRecord, error) {
	var (
		local *LocalRecord
		err   error
	)
	switch {
	case target.LocalID != 0:
		local, err = r.store.FindByID(ctx, r.mapping.RecordType, target.LocalID)
	case target.RemoteID != "":
		local, err = r.store.FindByRemoteID(ctx, r.mapping.RecordType, target.RemoteID)
	default:
		return nil, nil, invalid(ErrMissingOption, "local id or remote id")
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load local %s: %w", r.mapping.RecordType, err)
	}

	remoteID := target.RemoteID
	if remoteID == "" && local != nil {
		remoteID = local.RemoteID
	}
	if remoteID == "" {
		return local, nil, nil
	}
	remote, err := r.remote.Find(ctx, r.mapping.RecordType, remoteID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load remote %s %s: %w", r.mapping.RecordType, remoteID, err)
	}
	return local, remote, nil
}

// withID makes sure the payload carries the identity field.
func withID(remote *RemoteRecord, m *Mapping) Attributes {
	attrs := remote.Attributes.Clone()
	if attrs == nil {
		attrs = Attributes{}
	}
	if m.RemoteID(attrs) == "" {
		attrs[m.IDField] = remote.ID
	}
	return attrs
}
