package reconcile

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Auditor re-fetches both sides of a partition and records every discrepancy.
type Auditor struct {
	remote  Remote
	store   LocalStore
	mapping *Mapping
	logger  *zap.Logger
}

// NewAuditor creates an auditor for one record type.
func NewAuditor(remote Remote, store LocalStore, mapping *Mapping, logger *zap.Logger) *Auditor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Auditor{remote: remote, store: store, mapping: mapping, logger: logger}
}

// Run audits a partition.
//
// The three checks always all run. When one of them fails the result is
// marked as failed and returned together with the error, so callers see the
// discrepancies found so far.
func (a *Auditor) Run(ctx context.Context, p Partition) (*AuditResult, error) {
	result := NewAuditResult(uuid.NewString(), p)

	checks := []struct {
		name string
		fn   func(context.Context, Partition, *AuditResult) error
	}{
		{"unpersisted", a.checkUnpersisted},
		{"deletes", a.checkDeletes},
		{"modifications", a.checkModifications},
	}

	for _, check := range checks {
		if err := check.fn(ctx, p, result); err != nil {
			err = fmt.Errorf("audit %s check failed for %s: %w", check.name, p.RecordType, err)
			a.logger.Error("Audit failed",
				zap.String("record_type", p.RecordType),
				zap.String("check", check.name),
				zap.Error(err),
			)
			return result.Fail(err), err
		}
	}

	result.Finish()
	a.logger.Debug("Audit partition finished",
		zap.String("record_type", p.RecordType),
		zap.Int("ids", p.Size()),
		zap.Int("discrepancies", len(result.Discrepancies)),
		zap.String("status", string(result.Status)),
	)
	return result, nil
}

func (a *Auditor) checkUnpersisted(ctx context.Context, p Partition, result *AuditResult) error {
	if len(p.UnpersistedIDs) == 0 {
		return nil
	}
	records, err := a.store.FindByIDs(ctx, p.RecordType, p.UnpersistedIDs)
	if err != nil {
		return err
	}
	for _, rec := range records {
		if rec.HasRemoteID() {
			continue
		}
		result.Add(Discrepancy{
			Type:            DiscrepancyLocalWithoutRemoteID,
			RemoteType:      p.RecordType,
			LocalType:       a.mapping.LocalType,
			LocalID:         rec.ID,
			LocalAttributes: rec.Attributes,
		})
	}
	return nil
}

func (a *Auditor) checkDeletes(ctx context.Context, p Partition, result *AuditResult) error {
	if len(p.DeletedIDs) == 0 {
		return nil
	}
	ghosts, err := a.store.FindByRemoteIDs(ctx, p.RecordType, p.DeletedIDs)
	if err != nil {
		return err
	}
	for _, rec := range ghosts {
		result.Add(Discrepancy{
			Type:            DiscrepancyRemoteDeleteKeptLocally,
			RemoteType:      p.RecordType,
			RemoteID:        rec.RemoteID,
			LocalType:       a.mapping.LocalType,
			LocalID:         rec.ID,
			LocalAttributes: rec.Attributes,
		})
	}
	return nil
}

func (a *Auditor) checkModifications(ctx context.Context, p Partition, result *AuditResult) error {
	if len(p.UpdatedIDs) == 0 {
		return nil
	}

	remotes, err := a.remote.FetchMultiple(ctx, p.RecordType, p.UpdatedIDs)
	if err != nil {
		return err
	}
	locals, err := a.store.FindByRemoteIDs(ctx, p.RecordType, p.UpdatedIDs)
	if err != nil {
		return err
	}

	remoteByID := make(map[string]*RemoteRecord, len(remotes))
	for i := range remotes {
		remoteByID[remotes[i].ID] = &remotes[i]
	}
	localByID := make(map[string]*LocalRecord, len(locals))
	for i := range locals {
		localByID[locals[i].RemoteID] = &locals[i]
	}

	fields := a.mapping.AuditedAttributes()
	for _, id := range p.UpdatedIDs {
		remote, local := remoteByID[id], localByID[id]
		switch {
		case remote != nil && local == nil:
			result.Add(Discrepancy{
				Type:             DiscrepancyRemoteMissingLocally,
				RemoteType:       p.RecordType,
				RemoteID:         id,
				RemoteAttributes: remote.Attributes,
			})
		case remote != nil && local != nil:
			c := Classify(local, remote, a.mapping, fields)
			if c.Type != MismatchingRecords {
				continue
			}
			result.Add(Discrepancy{
				Type:             DiscrepancyMismatchingRecords,
				RemoteType:       p.RecordType,
				RemoteID:         id,
				LocalType:        a.mapping.LocalType,
				LocalID:          local.ID,
				LocalAttributes:  local.Attributes,
				RemoteAttributes: remote.Attributes,
				DiffKeys:         c.DiffKeys(),
			})
		}
	}
	return nil
}
