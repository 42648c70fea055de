package reconcile

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// DefaultWorkers is the number of partitions processed concurrently when unset.
const DefaultWorkers = 4

// EngineConfig tunes how a window is split and processed.
type EngineConfig struct {
	// PartitionSize bounds the ids per partition.
	PartitionSize int
	// Workers bounds the partitions processed concurrently.
	Workers int
}

// Engine runs audits and polls over whole windows for one record type.
type Engine struct {
	mapping     *Mapping
	partitioner *Partitioner
	auditor     *Auditor
	poller      *Poller
	resolver    *Resolver
	outbound    *Outbound
	inbound     *Inbound
	cfg         EngineConfig
	logger      *zap.Logger
}

// NewEngine wires the components of one record type.
func NewEngine(remote Remote, store LocalStore, mapping *Mapping, mechanism Mechanism, cfg EngineConfig, hook EventHook, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.PartitionSize <= 0 {
		cfg.PartitionSize = DefaultPartitionSize
	}
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultWorkers
	}
	logger = logger.With(zap.String("record_type", mapping.RecordType))
	return &Engine{
		mapping:     mapping,
		partitioner: NewPartitioner(mechanism, store),
		auditor:     NewAuditor(remote, store, mapping, logger),
		poller:      NewPoller(remote, store, mapping, hook, logger),
		resolver:    NewResolver(remote, store, mapping, hook, logger),
		outbound:    NewOutbound(remote, store, mapping, hook),
		inbound:     NewInbound(store, mapping, hook),
		cfg:         cfg,
		logger:      logger,
	}
}

func (e *Engine) Mapping() *Mapping { return e.mapping }
func (e *Engine) Resolver() *Resolver { return e.resolver }
func (e *Engine) Outbound() *Outbound { return e.outbound }
func (e *Engine) Inbound() *Inbound { return e.inbound }
func (e *Engine) Auditor() *Auditor { return e.auditor }
func (e *Engine) Poller() *Poller { return e.poller }
func (e *Engine) Config() EngineConfig { return e.cfg }

// Partition splits the window using the configured partition size.
func (e *Engine) Partition(ctx context.Context, start, end time.Time) ([]Partition, error) {
	return e.partitioner.Partition(ctx, e.mapping.RecordType, start, end, e.cfg.PartitionSize)
}

// AuditWindow audits every partition of the window concurrently and merges the results
// in partition order. The first failure cancels the remaining partitions; the merged
// partial result is returned with the error.
func (e *Engine) AuditWindow(ctx context.Context, start, end time.Time) (*AuditResult, error) {
	merged := NewAuditResult(uuid.NewString(), Partition{RecordType: e.mapping.RecordType, WindowStart: start, WindowEnd: end})

	parts, err := e.Partition(ctx, start, end)
	if err != nil {
		return merged.Fail(err), err
	}

	results := make([]*AuditResult, len(parts))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.cfg.Workers)
	for i, p := range parts {
		g.Go(func() error {
			res, err := e.auditor.Run(gctx, p)
			results[i] = res
			return err
		})
	}
	err = g.Wait()

	for _, res := range results {
		merged.Merge(res)
	}
	if err != nil {
		return merged.Fail(err), err
	}

	e.logger.Info("Audit finished",
		zap.Int("partitions", len(parts)),
		zap.Int("discrepancies", len(merged.Discrepancies)),
	)
	return merged.Finish(), nil
}

// PollWindow polls every partition of the window concurrently and sums the counts.
func (e *Engine) PollWindow(ctx context.Context, start, end time.Time, opts PollOptions) (*PollResult, error) {
	total := &PollResult{RemoteCount: -1}

	parts, err := e.Partition(ctx, start, end)
	if err != nil {
		return total, err
	}

	perPartition := opts
	perPartition.WithCounts = false

	results := make([]*PollResult, len(parts))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.cfg.Workers)
	for i, p := range parts {
		g.Go(func() error {
			res, err := e.poller.Run(gctx, p, perPartition)
			results[i] = res
			return err
		})
	}
	err = g.Wait()

	for _, res := range results {
		total.Add(res)
	}
	if err != nil {
		return total, err
	}

	if opts.WithCounts {
		if err := e.poller.count(ctx, e.mapping.RecordType, total); err != nil {
			return total, err
		}
	}

	e.logger.Info("Poll finished",
		zap.Int("partitions", len(parts)),
		zap.Int("created", total.Created),
		zap.Int("updated", total.Updated),
		zap.Int("deleted", total.Deleted),
	)
	return total, nil
}
