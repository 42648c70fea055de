package reconcile

import (
	"context"
	"errors"
	"fmt"
)

// Policy maps a discrepancy type to the resolution applied to it.
// Discrepancy types without an entry are left unresolved.
type Policy map[DiscrepancyType]ResolutionType

// DefaultPolicy resolves every unambiguous discrepancy and leaves mismatches to an operator.
func DefaultPolicy() Policy {
	return Policy{
		DiscrepancyLocalWithoutRemoteID:    ResolveRemotePush,
		DiscrepancyRemoteDeleteKeptLocally: ResolveLocalDelete,
		DiscrepancyRemoteMissingLocally:    ResolveRemotePull,
	}
}

// Action is a planned resolution for a single discrepancy.
type Action struct {
	// Type is the resolution to run.
	Type ResolutionType `json:"type"`

	// Target is the record pair the resolution runs against.
	Target Target `json:"target"`

	// Discrepancy is the finding that produced the action.
	Discrepancy DiscrepancyType `json:"discrepancy"`
}

// PlanSummary counts what a plan found and intends to do.
type PlanSummary struct {
	// TotalDiscrepancies is the number of findings the plan was built from.
	TotalDiscrepancies int `json:"total_discrepancies"`

	// ByType counts findings per discrepancy type.
	ByType map[DiscrepancyType]int `json:"by_type"`

	// PushActions, PullActions and DeleteActions count planned actions per resolution.
	PushActions   int `json:"push_actions"`
	PullActions   int `json:"pull_actions"`
	DeleteActions int `json:"delete_actions"`

	// Unresolved counts findings the policy had no resolution for.
	Unresolved int `json:"unresolved"`
}

// ResolutionPlan is the audit result plus the actions derived from it.
type ResolutionPlan struct {
	Result  *AuditResult `json:"result"`
	Actions []Action     `json:"actions"`
	Summary PlanSummary  `json:"summary"`
}

// ApplyOptions guards plan execution.
type ApplyOptions struct {
	// DryRun forces a no-op even when confirmed.
	DryRun bool
	// Confirmed must be set for any action to run.
	Confirmed bool
}

// BuildPlan derives actions from an audit result. It does not execute anything.
func BuildPlan(result *AuditResult, policy Policy) *ResolutionPlan {
	plan := &ResolutionPlan{
		Result:  result,
		Actions: []Action{},
		Summary: PlanSummary{ByType: result.CountByType()},
	}
	plan.Summary.TotalDiscrepancies = len(result.Discrepancies)

	for _, d := range result.Discrepancies {
		resolution, ok := policy[d.Type]
		if !ok || resolution == ResolveMerge {
			plan.Summary.Unresolved++
			continue
		}
		plan.Actions = append(plan.Actions, Action{
			Type:        resolution,
			Target:      Target{LocalID: d.LocalID, RemoteID: d.RemoteID},
			Discrepancy: d.Type,
		})
		switch resolution {
		case ResolveRemotePush:
			plan.Summary.PushActions++
		case ResolveRemotePull:
			plan.Summary.PullActions++
		case ResolveLocalDelete:
			plan.Summary.DeleteActions++
		}
	}
	return plan
}

// ApplyPlan executes the actions of a plan.
// Requires opts.Confirmed=true and opts.DryRun=false to actually execute.
// Actions are independent: a failing action does not stop the others, and all
// failures are returned joined.
func ApplyPlan(ctx context.Context, resolver *Resolver, plan *ResolutionPlan, opts ApplyOptions) (executed int, err error) {
	if !opts.Confirmed || opts.DryRun {
		return 0, nil
	}

	var (
		bulkDeletes []string
		single      []Action
		errs        []error
	)
	for _, action := range plan.Actions {
		if action.Type == ResolveLocalDelete && action.Target.RemoteID != "" {
			bulkDeletes = append(bulkDeletes, action.Target.RemoteID)
			continue
		}
		single = append(single, action)
	}

	// Local deletes of remotely deleted records need no per-record side effects.
	if len(bulkDeletes) > 0 {
		if _, err := resolver.store.DeleteByRemoteIDs(ctx, resolver.mapping.RecordType, bulkDeletes); err != nil {
			errs = append(errs, fmt.Errorf("failed to batch delete %d local records: %w", len(bulkDeletes), err))
		} else {
			executed += len(bulkDeletes)
		}
	}

	for _, action := range single {
		if err := resolver.Resolve(ctx, action.Target, action.Type, ResolveOptions{}); err != nil {
			errs = append(errs, fmt.Errorf("failed to %s %s/%d: %w", action.Type, action.Target.RemoteID, action.Target.LocalID, err))
			continue
		}
		executed++
	}

	return executed, errors.Join(errs...)
}
