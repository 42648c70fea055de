package audit

import (
	"errors"
	"time"

	"crm-sync/core/logger"
	"crm-sync/core/registry"
	"crm-sync/feature/records"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// Handler handles HTTP requests for audits.
type Handler struct {
	service *Service
	now     func() time.Time
}

// NewHandler creates a new HTTP handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service, now: time.Now}
}

// RegisterRoutes registers the audit routes.
func (h *Handler) RegisterRoutes(app fiber.Router) {
	group := app.Group("/audits")
	group.Post("/:type", h.HandleRunAudit)
	group.Get("/:type", h.HandleListAudits)
	group.Get("/:type/:id", h.HandleGetAudit)
}

// HandleRunAudit audits a window. start is required, end defaults to now.
func (h *Handler) HandleRunAudit(c *fiber.Ctx) error {
	recordType := c.Params("type")
	l := logger.WithRayID(h.service.logger, c)

	start, err := time.Parse(time.RFC3339, c.Query("start"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "start must be an RFC3339 timestamp"})
	}
	end := h.now().UTC()
	if raw := c.Query("end"); raw != "" {
		if end, err = time.Parse(time.RFC3339, raw); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "end must be an RFC3339 timestamp"})
		}
	}

	result, err := h.service.Run(c.Context(), recordType, start, end)
	switch {
	case errors.Is(err, registry.ErrUnknownType):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, ErrInvalidWindow):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	case err != nil:
		l.Error("Audit failed", zap.String("record_type", recordType), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error":  err.Error(),
			"result": result,
		})
	}
	return c.JSON(result)
}

// HandleListAudits returns recent audit runs.
func (h *Handler) HandleListAudits(c *fiber.Ctx) error {
	runs, err := h.service.List(c.Context(), c.Params("type"), c.QueryInt("limit", 50))
	if err != nil {
		logger.WithRayID(h.service.logger, c).Error("Listing audits failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(runs)
}

// HandleGetAudit returns one audit report.
func (h *Handler) HandleGetAudit(c *fiber.Ctx) error {
	report, err := h.service.Get(c.Context(), c.Params("type"), c.Params("id"))
	if errors.Is(err, records.ErrRunNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": err.Error()})
	}
	if err != nil {
		logger.WithRayID(h.service.logger, c).Error("Loading audit failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(report)
}
