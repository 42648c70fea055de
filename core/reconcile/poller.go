package reconcile

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Poller applies remote changes of a partition to the local store.
type Poller struct {
	remote  Remote
	store   LocalStore
	mapping *Mapping
	inbound *Inbound
	logger  *zap.Logger
}

// NewPoller creates a poller for one record type. hook may be nil.
func NewPoller(remote Remote, store LocalStore, mapping *Mapping, hook EventHook, logger *zap.Logger) *Poller {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Poller{
		remote:  remote,
		store:   store,
		mapping: mapping,
		inbound: NewInbound(store, mapping, hook),
		logger:  logger,
	}
}

// Run applies a partition. Errors are not caught; re-running the same
// partition converges to the same local state.
func (p *Poller) Run(ctx context.Context, part Partition, opts PollOptions) (*PollResult, error) {
	result := &PollResult{RemoteCount: -1}

	if opts.ImportCreated || opts.ImportUpdated {
		created, updated, err := p.importChanges(ctx, part, opts)
		if err != nil {
			return nil, err
		}
		result.Created, result.Updated = created, updated
	}

	if opts.ImportDeleted && len(part.DeletedIDs) > 0 {
		n, err := p.store.DeleteByRemoteIDs(ctx, part.RecordType, part.DeletedIDs)
		if err != nil {
			return nil, fmt.Errorf("failed to delete %s records: %w", part.RecordType, err)
		}
		result.Deleted = int(n)
	}

	if opts.WithCounts {
		if err := p.count(ctx, part.RecordType, result); err != nil {
			return nil, err
		}
	}

	p.logger.Debug("Poll partition finished",
		zap.String("record_type", part.RecordType),
		zap.Int("created", result.Created),
		zap.Int("updated", result.Updated),
		zap.Int("deleted", result.Deleted),
	)
	return result, nil
}

func (p *Poller) importChanges(ctx context.Context, part Partition, opts PollOptions) (created, updated int, err error) {
	if len(part.UpdatedIDs) == 0 {
		return 0, 0, nil
	}

	remotes, err := p.remote.FetchMultiple(ctx, part.RecordType, part.UpdatedIDs)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to fetch %s records: %w", part.RecordType, err)
	}
	locals, err := p.store.FindByRemoteIDs(ctx, part.RecordType, part.UpdatedIDs)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to load local %s records: %w", part.RecordType, err)
	}

	existing := make(map[string]*LocalRecord, len(locals))
	for i := range locals {
		existing[locals[i].RemoteID] = &locals[i]
	}

	for i := range remotes {
		remote := &remotes[i]
		attrs := withID(remote, p.mapping)
		local, found := existing[remote.ID]

		switch {
		case !found && opts.ImportCreated:
			rec := &LocalRecord{Type: part.RecordType, RemoteID: remote.ID, Attributes: Attributes{}}
			if err := p.inbound.Apply(ctx, rec, attrs, false); err != nil {
				return created, updated, err
			}
			existing[remote.ID] = rec
			created++
		case found && opts.ImportUpdated:
			if !p.mapping.IsFresh(local.RemoteModstamp, attrs) {
				continue
			}
			if err := p.inbound.Apply(ctx, local, attrs, false); err != nil {
				return created, updated, err
			}
			updated++
		}
	}
	return created, updated, nil
}

func (p *Poller) count(ctx context.Context, recordType string, result *PollResult) error {
	if counter, ok := p.remote.(Counter); ok {
		n, err := counter.Count(ctx, recordType)
		if err != nil {
			return fmt.Errorf("failed to count remote %s records: %w", recordType, err)
		}
		result.RemoteCount = n
	}
	n, err := p.store.Count(ctx, recordType)
	if err != nil {
		return fmt.Errorf("failed to count local %s records: %w", recordType, err)
	}
	result.LocalCount = n
	return nil
}

// Poll discovers and applies all changes of a window as a single partition.
func Poll(ctx context.Context, partitioner *Partitioner, poller *Poller, recordType string, start, end time.Time, opts PollOptions) (*PollResult, error) {
	parts, err := partitioner.Partition(ctx, recordType, start, end, Unbounded)
	if err != nil {
		return nil, err
	}
	return poller.Run(ctx, parts[0], opts)
}
