package integration

import (
	"fmt"
	"time"

	"crm-sync/core/jobs"
	"crm-sync/core/reconcile"
	"crm-sync/core/registry"

	"go.uber.org/zap"
)

// Store is a local store that accepts a change hook.
type Store interface {
	reconcile.LocalStore
	SetHook(hook reconcile.ChangeHook)
}

type fieldRegistrar interface {
	RegisterFields(recordType string, fields []string) error
}

// batchSizer is a remote whose FetchMultiple splits ids into batches.
type batchSizer interface {
	BatchSize() int
}

// Config tunes the engines built for every record type.
type Config struct {
	// PartitionSize applies to types that do not set their own. Either size is
	// capped at the batch size of a remote that reports one.
	PartitionSize int
	// Workers bounds concurrently processed partitions per run.
	Workers int
	// CacheTTL enables the caching remote when positive.
	CacheTTL time.Duration
}

// Type is one wired record type.
type Type struct {
	Descriptor *registry.Descriptor
	Engine     *reconcile.Engine
	Dispatcher *jobs.Dispatcher
	Importer   *reconcile.Importer
}

// Integration wires every registered record type to the remote, the local
// store and the job runner.
type Integration struct {
	registry *registry.Registry
	types    map[string]*Type
}

// New builds the engines and dispatchers and installs the dispatch router as the store's change hook.
func New(reg *registry.Registry, remote reconcile.Remote, store Store, runner *jobs.Runner, cfg Config, logger *zap.Logger) (*Integration, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	cached := remote
	if cfg.CacheTTL > 0 {
		cached = reconcile.NewCachingRemote(remote, cfg.CacheTTL)
	}
	pager, _ := remote.(reconcile.Pager)
	registrar, _ := remote.(fieldRegistrar)
	batchLimit := 0
	if b, ok := remote.(batchSizer); ok {
		batchLimit = b.BatchSize()
	}
	hook := eventLogger(logger)

	in := &Integration{registry: reg, types: make(map[string]*Type)}
	router := jobs.Router{}
	for _, d := range reg.Descriptors() {
		m := d.Mapping
		if registrar != nil {
			if err := registrar.RegisterFields(m.RecordType, selectFields(m)); err != nil {
				return nil, err
			}
		}

		mech, err := reconcile.NewMechanism(d.Mechanism, cached)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", d.Name, err)
		}
		ecfg := reconcile.EngineConfig{PartitionSize: cfg.PartitionSize, Workers: cfg.Workers}
		if d.PartitionSize > 0 {
			ecfg.PartitionSize = d.PartitionSize
		}
		if ecfg.PartitionSize <= 0 {
			ecfg.PartitionSize = reconcile.DefaultPartitionSize
		}
		// A partition is fetched in one remote call, so it may not outgrow a batch.
		if batchLimit > 0 && ecfg.PartitionSize > batchLimit {
			logger.Warn("Partition size exceeds the remote batch size, capping",
				zap.String("record_type", d.Name),
				zap.Int("partition_size", ecfg.PartitionSize),
				zap.Int("batch_size", batchLimit),
			)
			ecfg.PartitionSize = batchLimit
		}

		engine := reconcile.NewEngine(cached, store, m, mech, ecfg, hook, logger)
		t := &Type{
			Descriptor: d,
			Engine:     engine,
			Dispatcher: jobs.NewDispatcher(runner, m, engine.Outbound(), engine.Inbound(), d.Operations, d.SyncMode, logger),
		}
		if pager != nil {
			t.Importer = reconcile.NewImporter(pager, store, m, hook, logger)
		}
		in.types[d.Name] = t
		router[m.RecordType] = t.Dispatcher

		logger.Debug("Wired record type",
			zap.String("record_type", d.Name),
			zap.String("mechanism", mech.Name()),
			zap.Strings("operations", d.Operations.Names()),
			zap.String("sync_mode", string(d.SyncMode)),
		)
	}

	store.SetHook(router.OnChange)
	return in, nil
}

// Names returns the wired record types, sorted.
func (in *Integration) Names() []string {
	return in.registry.Names()
}

// Type returns a wired record type.
func (in *Integration) Type(recordType string) (*Type, error) {
	t, ok := in.types[recordType]
	if !ok {
		return nil, fmt.Errorf("%w: %s", registry.ErrUnknownType, recordType)
	}
	return t, nil
}

// Engine returns the engine of a record type.
func (in *Integration) Engine(recordType string) (*reconcile.Engine, error) {
	t, err := in.Type(recordType)
	if err != nil {
		return nil, err
	}
	return t.Engine, nil
}

// PollOptions returns the scheduled poll options of a record type.
func (in *Integration) PollOptions(recordType string) reconcile.PollOptions {
	t, err := in.Type(recordType)
	if err != nil {
		return reconcile.DefaultPollOptions()
	}
	return t.Descriptor.Poll
}

// Importer returns the bulk importer of a record type, if the remote can page.
func (in *Integration) Importer(recordType string) (*reconcile.Importer, error) {
	t, err := in.Type(recordType)
	if err != nil {
		return nil, err
	}
	if t.Importer == nil {
		return nil, fmt.Errorf("remote cannot page %s records", recordType)
	}
	return t.Importer, nil
}

// selectFields lists the remote fields to fetch: identity, stamp, then synced fields.
func selectFields(m *reconcile.Mapping) []string {
	fields := []string{m.IDField, m.ModstampField}
	seen := map[string]bool{m.IDField: true, m.ModstampField: true}
	for _, f := range m.SyncedAttributes() {
		if !seen[f] {
			seen[f] = true
			fields = append(fields, f)
		}
	}
	return fields
}

func eventLogger(logger *zap.Logger) reconcile.EventHook {
	return func(ev reconcile.Event) {
		logger.Debug("Sync event",
			zap.String("event", string(ev.Type)),
			zap.String("record_type", ev.RecordType),
			zap.String("remote_id", ev.RemoteID),
			zap.Int64("local_id", ev.LocalID),
		)
	}
}
