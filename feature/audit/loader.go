package audit

import (
	"crm-sync/core/storage"
	"crm-sync/feature/records"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// Feature implements the loader.Feature interface.
type Feature struct {
	service *Service
	handler *Handler
}

// NewFeature creates a new audit feature.
func NewFeature(engines Engines, history *records.History, client storage.Client, bucket string, logger *zap.Logger) *Feature {
	svc := NewService(engines, history, client, bucket, logger)
	return &Feature{service: svc, handler: NewHandler(svc)}
}

// Service returns the audit service.
func (f *Feature) Service() *Service {
	return f.service
}

// Name returns the name of the feature.
func (f *Feature) Name() string {
	return "audit"
}

// IsEnabled checks if the feature is enabled.
func (f *Feature) IsEnabled() bool {
	return true
}

// Load registers the feature's routes.
func (f *Feature) Load(app fiber.Router) error {
	f.handler.RegisterRoutes(app)
	return nil
}
