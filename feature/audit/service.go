package audit

import (
	"context"
	"errors"
	"fmt"
	"path"
	"time"

	"crm-sync/core/metrics"
	"crm-sync/core/reconcile"
	"crm-sync/core/storage"
	"crm-sync/feature/records"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"go.uber.org/zap"
)

// ErrInvalidWindow is returned when a window does not end after it starts.
var ErrInvalidWindow = errors.New("window end must be after start")

// Engines resolves the engine of a record type.
type Engines interface {
	Engine(recordType string) (*reconcile.Engine, error)
}

// Report is a stored audit: its history row and, when archived, the full result.
type Report struct {
	Run    *records.Run           `json:"run"`
	Result *reconcile.AuditResult `json:"result,omitempty"`
}

// Service runs audits and keeps their reports.
type Service struct {
	engines Engines
	history *records.History
	client  storage.Client
	bucket  string
	logger  *zap.Logger
	newID   func() string
}

// NewService creates an audit service. client may be nil to skip archiving.
func NewService(engines Engines, history *records.History, client storage.Client, bucket string, logger *zap.Logger) *Service {
	return &Service{
		engines: engines,
		history: history,
		client:  client,
		bucket:  bucket,
		logger:  logger,
		newID:   uuid.NewString,
	}
}

// ReportKey is the object key of an archived report.
func ReportKey(recordType, id string) string {
	return path.Join("audits", recordType, id+".json")
}

// Run audits [start, end] for the record type.
// Audit failures still produce a recorded and archived result.
func (s *Service) Run(ctx context.Context, recordType string, start, end time.Time) (*reconcile.AuditResult, error) {
	if !end.After(start) {
		return nil, ErrInvalidWindow
	}
	engine, err := s.engines.Engine(recordType)
	if err != nil {
		return nil, err
	}

	run, err := s.history.Start(ctx, s.newID(), records.KindAudit, recordType, start, end)
	if err != nil {
		return nil, err
	}

	s.logger.Info("Starting audit",
		zap.String("run_id", run.ID),
		zap.String("record_type", recordType),
		zap.Time("start", start),
		zap.Time("end", end),
	)

	began := time.Now()
	result, auditErr := engine.AuditWindow(ctx, start, end)
	result.ID = run.ID
	metrics.ObserveAudit(result, time.Since(began))

	run.Discrepancies = len(result.Discrepancies)
	if err := s.history.Finish(context.WithoutCancel(ctx), run, auditErr); err != nil {
		s.logger.Error("Failed to record audit run", zap.String("run_id", run.ID), zap.Error(err))
	}

	if s.client != nil {
		if err := storage.PutJSON(context.WithoutCancel(ctx), s.client, s.bucket, ReportKey(recordType, run.ID), result); err != nil {
			s.logger.Error("Failed to archive audit report", zap.String("run_id", run.ID), zap.Error(err))
		}
	}

	if auditErr != nil {
		s.logger.Error("Audit failed", zap.String("run_id", run.ID), zap.Error(auditErr))
		return result, auditErr
	}

	s.logger.Info("Audit completed",
		zap.String("run_id", run.ID),
		zap.String("status", string(result.Status)),
		zap.Int("discrepancies", len(result.Discrepancies)),
	)
	return result, nil
}

// Get returns a stored report. The result is omitted when archiving is off.
func (s *Service) Get(ctx context.Context, recordType, id string) (*Report, error) {
	run, err := s.history.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if run.Kind != records.KindAudit || run.RecordType != recordType {
		return nil, records.ErrRunNotFound
	}

	report := &Report{Run: run}
	if s.client == nil {
		return report, nil
	}
	var result reconcile.AuditResult
	err = storage.GetJSON(ctx, s.client, s.bucket, ReportKey(recordType, id), &result)
	if errors.Is(err, storage.ErrNotFound) {
		return report, nil
	}
	if err != nil {
		return nil, err
	}
	report.Result = &result
	return report, nil
}

// List returns the latest audit runs of the record type.
func (s *Service) List(ctx context.Context, recordType string, limit int) ([]records.Run, error) {
	return s.history.List(ctx, records.KindAudit, recordType, limit)
}

// Prune removes archived reports beyond the newest keep runs.
func (s *Service) Prune(ctx context.Context, recordType string, keep int) (int, error) {
	if s.client == nil || keep < 0 {
		return 0, nil
	}
	runs, err := s.history.List(ctx, records.KindAudit, recordType, 10000)
	if err != nil {
		return 0, err
	}
	if len(runs) <= keep {
		return 0, nil
	}

	removed := 0
	for _, run := range runs[keep:] {
		key := ReportKey(recordType, run.ID)
		if err := s.client.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{}); err != nil {
			return removed, fmt.Errorf("failed to remove %s: %w", key, err)
		}
		removed++
	}
	s.logger.Info("Pruned audit reports", zap.String("record_type", recordType), zap.Int("removed", removed))
	return removed, nil
}
