package reconcile

import (
	"context"
	"fmt"
	"time"
)

// DefaultPartitionSize bounds the number of ids per partition when no size is given.
const DefaultPartitionSize = 100

// Unbounded is a partition size that yields a single partition.
const Unbounded = int(^uint(0) >> 1)

type idKind int

const (
	kindUpdated idKind = iota
	kindDeleted
	kindUnpersisted
)

type taggedID struct {
	kind   idKind
	remote string
	local  int64
}

// Partitioner discovers the change set of a window and slices it into partitions.
type Partitioner struct {
	mechanism Mechanism
	store     LocalStore
}

// NewPartitioner creates a partitioner over the given mechanism and local store.
func NewPartitioner(mechanism Mechanism, store LocalStore) *Partitioner {
	return &Partitioner{mechanism: mechanism, store: store}
}

// Partition returns the partitions covering [start, end] for recordType.
// It always returns at least one partition. Remote failures are returned as is;
// retrying is left to the caller.
func (p *Partitioner) Partition(ctx context.Context, recordType string, start, end time.Time, size int) ([]Partition, error) {
	if size <= 0 {
		size = DefaultPartitionSize
	}

	updated, err := p.updatedIDs(ctx, recordType, start, end)
	if err != nil {
		return nil, err
	}

	deleted, err := p.mechanism.DeletedIDs(ctx, recordType, start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to get deleted ids for %s: %w", recordType, err)
	}

	unpersisted, err := p.store.UnsyncedIDsModifiedBetween(ctx, recordType, start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to get unpersisted ids for %s: %w", recordType, err)
	}

	all := make([]taggedID, 0, len(updated)+len(deleted)+len(unpersisted))
	for _, id := range updated {
		all = append(all, taggedID{kind: kindUpdated, remote: id})
	}
	for _, id := range deleted {
		all = append(all, taggedID{kind: kindDeleted, remote: id})
	}
	for _, id := range unpersisted {
		all = append(all, taggedID{kind: kindUnpersisted, local: id})
	}

	base := Partition{RecordType: recordType, WindowStart: start, WindowEnd: end}
	if len(all) == 0 {
		return []Partition{base}, nil
	}

	partitions := make([]Partition, 0, (len(all)+size-1)/size)
	for lo := 0; lo < len(all); lo += size {
		hi := lo + size
		if hi > len(all) || hi < lo {
			hi = len(all)
		}
		part := base
		for _, t := range all[lo:hi] {
			switch t.kind {
			case kindUpdated:
				part.UpdatedIDs = append(part.UpdatedIDs, t.remote)
			case kindDeleted:
				part.DeletedIDs = append(part.DeletedIDs, t.remote)
			case kindUnpersisted:
				part.UnpersistedIDs = append(part.UnpersistedIDs, t.local)
			}
		}
		partitions = append(partitions, part)
	}
	return partitions, nil
}

// updatedIDs unions remote changes with locally modified pushed records, keeping first-seen order.
func (p *Partitioner) updatedIDs(ctx context.Context, recordType string, start, end time.Time) ([]string, error) {
	remote, err := p.mechanism.UpdatedIDs(ctx, recordType, start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to get updated ids for %s: %w", recordType, err)
	}
	local, err := p.store.RemoteIDsModifiedBetween(ctx, recordType, start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to get locally modified ids for %s: %w", recordType, err)
	}

	seen := make(map[string]struct{}, len(remote)+len(local))
	ids := make([]string, 0, len(remote)+len(local))
	for _, list := range [][]string{remote, local} {
		for _, id := range list {
			if id == "" {
				continue
			}
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}
			ids = append(ids, id)
		}
	}
	return ids, nil
}
