// Package reconcile keeps a local record store and a remote system of record
// eventually consistent.
//
// The package works on change windows: everything touched on either side
// between two points in time. A window is split into bounded partitions, and
// each partition is either audited (compared, with every divergence recorded)
// or polled (remote changes applied locally).
//
// # Architecture
//
// The reconcile system consists of these components:
//
// 1. Partitioner: asks the remote (through a query Mechanism) and the local
// store for updated, deleted and never-synced ids, and slices them into
// Partitions of at most PartitionSize ids.
//
// 2. Auditor: re-fetches both sides of a partition in batches and records
// Discrepancies in an AuditResult. Values are compared with compare.Equals.
//
// 3. Classify / Resolver: classify a single local/remote pair and run one of
// the resolution actions (remote_push, remote_pull, local_delete, merge).
//
// 4. Poller: applies remote creates, fresher updates and deletes locally.
//
// 5. Outbound / Inbound: the single-record writes used by the resolver, the
// poller and the job layer. Inbound writes always skip outbound sync.
//
// 6. Engine: runs whole windows, processing partitions concurrently.
//
// # Collaborators
//
// The remote and the local store are consumed through the Remote and
// LocalStore interfaces. Remote calls are always batched: the auditor and
// the poller never issue one remote call per id.
//
// Retrying failed work is left to the caller. Every operation is safe to
// re-run with the same arguments.
//
// # Usage Example
//
//	mapping, _ := reconcile.NewMapping("Contact", map[string]string{
//	    "FirstName": "first_name",
//	    "Email":     "email",
//	}, reconcile.MappingOptions{})
//	mech, _ := reconcile.NewMechanism(reconcile.MechanismDefault, remote)
//	engine := reconcile.NewEngine(remote, store, mapping, mech, reconcile.EngineConfig{}, nil, logger)
//
//	result, err := engine.AuditWindow(ctx, start, end)
//	plan := reconcile.BuildPlan(result, reconcile.DefaultPolicy())
//	executed, err := reconcile.ApplyPlan(ctx, engine.Resolver(), plan, reconcile.ApplyOptions{Confirmed: true})
package reconcile
