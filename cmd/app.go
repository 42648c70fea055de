package cmd

import (
	"context"
	"fmt"
	"time"

	"crm-sync/core/config"
	"crm-sync/core/database"
	"crm-sync/core/jobs"
	"crm-sync/core/logger"
	"crm-sync/core/reconcile"
	"crm-sync/core/registry"
	"crm-sync/core/storage"
	"crm-sync/feature/crm"
	"crm-sync/feature/integration"
	"crm-sync/feature/records"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// app holds the components shared by every command.
type app struct {
	cfg         *config.Config
	logger      *zap.Logger
	db          *gorm.DB
	registry    *registry.Registry
	remote      *crm.Client
	store       *records.Store
	history     *records.History
	checkpoints *records.CheckpointStore
	runner      *jobs.Runner
	integration *integration.Integration
}

// bootstrap loads configuration and wires the store, the remote client and
// the engines of every registered record type.
func bootstrap() (*app, error) {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	logg, err := logger.New(&cfg.Log)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	reg, err := registry.Load(cfg.Sync.RegistryFile)
	if err != nil {
		return nil, err
	}

	db, err := database.Connect(cfg.Database)
	if err != nil {
		return nil, err
	}
	if cfg.Database.AutoMigrate {
		if err := records.Migrate(db); err != nil {
			return nil, err
		}
	} else if err := records.VerifySchema(db); err != nil {
		return nil, err
	}

	remote, err := crm.NewClient(cfg.Remote, logg)
	if err != nil {
		return nil, err
	}

	runner := jobs.NewRunner(cfg.Sync.Jobs, jobFailureHandler(logg), logg)
	store := records.NewStore(db)

	in, err := integration.New(reg, remote, store, runner, integration.Config{
		PartitionSize: cfg.Sync.PartitionSize,
		Workers:       cfg.Sync.Workers,
		CacheTTL:      cfg.Sync.CacheTTL(),
	}, logg)
	if err != nil {
		return nil, err
	}

	logg.Info("Loaded record types", zap.Strings("record_types", reg.Names()))

	return &app{
		cfg:         cfg,
		logger:      logg,
		db:          db,
		registry:    reg,
		remote:      remote,
		store:       store,
		history:     records.NewHistory(db),
		checkpoints: records.NewCheckpointStore(db),
		runner:      runner,
		integration: in,
	}, nil
}

// reportStore returns the report archive client, nil when storage is disabled.
func (a *app) reportStore(ctx context.Context) (storage.Client, error) {
	if !a.cfg.Storage.Enabled {
		return nil, nil
	}
	client, err := storage.NewClient(a.cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}
	if err := storage.EnsureBucket(ctx, client, a.cfg.Storage.Bucket, a.cfg.Storage.Region); err != nil {
		return nil, err
	}
	return client, nil
}

// close drains queued sync jobs and releases the database.
func (a *app) close() {
	a.runner.Close()
	if sqlDB, err := a.db.DB(); err == nil {
		_ = sqlDB.Close()
	}
	_ = a.logger.Sync()
}

// jobFailureHandler logs jobs that ran out of attempts.
func jobFailureHandler(logg *zap.Logger) jobs.ErrorHandler {
	return func(err error, job jobs.Job, args any) {
		logg.Error("Sync job failed",
			zap.String("job", job.Name),
			zap.String("job_id", job.ID),
			zap.Any("args", args),
			zap.Error(err),
		)
	}
}

// parseWindow reads an RFC3339 window; an empty end means now.
func parseWindow(start, end string) (time.Time, time.Time, error) {
	if start == "" {
		return time.Time{}, time.Time{}, fmt.Errorf("--start is required")
	}
	s, err := time.Parse(time.RFC3339, start)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid --start: %w", err)
	}
	e := time.Now().UTC()
	if end != "" {
		if e, err = time.Parse(time.RFC3339, end); err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid --end: %w", err)
		}
	}
	if e.Before(s) {
		return time.Time{}, time.Time{}, fmt.Errorf("window end %s is before start %s", e.Format(time.RFC3339), s.Format(time.RFC3339))
	}
	return s, e, nil
}

// logAudit prints an audit result the way every command reports it.
func logAudit(l *zap.Logger, result *reconcile.AuditResult) {
	fields := []zap.Field{
		zap.String("id", result.ID),
		zap.String("record_type", result.RecordType),
		zap.Time("window_start", result.WindowStart),
		zap.Time("window_end", result.WindowEnd),
		zap.String("status", string(result.Status)),
		zap.Int("discrepancies", len(result.Discrepancies)),
	}
	for t, n := range result.CountByType() {
		fields = append(fields, zap.Int(string(t), n))
	}
	l.Info("Audit report", fields...)
}
