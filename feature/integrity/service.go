package integrity

import (
	"context"
	"errors"

	"crm-sync/core/storage"
	"crm-sync/feature/integrity/checks"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ErrStorageDisabled is returned by storage checks when no report archive is configured.
var ErrStorageDisabled = errors.New("storage is disabled")

// Service handles integrity checks.
type Service struct {
	db     *gorm.DB
	models []any
	client storage.Client
	bucket string
	region string
	local  checks.Counter
	remote checks.Counter
	types  []string
	logger *zap.Logger
}

// Options configures the integrity service. Client may be nil when storage is disabled.
type Options struct {
	DB     *gorm.DB
	Models []any
	Client storage.Client
	Bucket string
	Region string
	Local  checks.Counter
	Remote checks.Counter
	Types  []string
}

// NewService creates a new integrity service.
func NewService(opts Options, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		db:     opts.DB,
		models: opts.Models,
		client: opts.Client,
		bucket: opts.Bucket,
		region: opts.Region,
		local:  opts.Local,
		remote: opts.Remote,
		types:  opts.Types,
		logger: logger,
	}
}

// CheckSchema compares the sync tables with their models.
func (s *Service) CheckSchema() (*checks.SchemaReport, error) {
	return checks.CheckSchema(s.db, s.models)
}

// CheckStorage inspects the report archive.
func (s *Service) CheckStorage(ctx context.Context) (*checks.StorageReport, error) {
	if s.client == nil {
		return nil, ErrStorageDisabled
	}
	return checks.CheckStorage(ctx, s.client, s.bucket)
}

// FixStorage creates the report bucket.
func (s *Service) FixStorage(ctx context.Context) error {
	if s.client == nil {
		return ErrStorageDisabled
	}
	return checks.FixStorage(ctx, s.client, s.bucket, s.region, s.logger)
}

// CheckCounts compares local and remote record totals per type.
func (s *Service) CheckCounts(ctx context.Context) *checks.CountReport {
	return checks.CheckCounts(ctx, s.local, s.remote, s.types)
}
