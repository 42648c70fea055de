package conflicts

import (
	"context"

	"crm-sync/core/jobs"
	"crm-sync/core/reconcile"

	"go.uber.org/zap"
)

// Engines resolves the engine of a record type.
type Engines interface {
	Engine(recordType string) (*reconcile.Engine, error)
}

// ResolveRequest is the body of a resolve call. Attribute lists use remote field names.
type ResolveRequest struct {
	LocalID          int64    `json:"local_id"`
	RemoteID         string   `json:"remote_id"`
	Resolution       string   `json:"resolution"`
	LocalAttributes  []string `json:"local_attributes"`
	RemoteAttributes []string `json:"remote_attributes"`
}

// Service inspects and resolves record conflicts.
type Service struct {
	engines Engines
	runner  *jobs.Runner
	logger  *zap.Logger
}

// NewService creates a conflict service.
func NewService(engines Engines, runner *jobs.Runner, logger *zap.Logger) *Service {
	return &Service{engines: engines, runner: runner, logger: logger}
}

// Conflict classifies the record pair with the given remote id.
func (s *Service) Conflict(ctx context.Context, recordType, remoteID string) (reconcile.Classification, error) {
	engine, err := s.engines.Engine(recordType)
	if err != nil {
		return reconcile.Classification{}, err
	}
	return engine.Resolver().Conflict(ctx, reconcile.Target{RemoteID: remoteID})
}

// Resolve runs the requested resolution as a job.
func (s *Service) Resolve(ctx context.Context, recordType string, req ResolveRequest) error {
	engine, err := s.engines.Engine(recordType)
	if err != nil {
		return err
	}
	resolution, err := reconcile.ParseResolution(req.Resolution)
	if err != nil {
		return err
	}

	args := jobs.ResolveArgs{
		RecordType: recordType,
		Target:     reconcile.Target{LocalID: req.LocalID, RemoteID: req.RemoteID},
		Resolution: resolution,
		Options: reconcile.ResolveOptions{
			LocalAttributes:  req.LocalAttributes,
			RemoteAttributes: req.RemoteAttributes,
		},
	}
	return s.runner.Run(ctx, jobs.Resolve(engine.Resolver(), args))
}
