package conflicts

import (
	"errors"

	"crm-sync/core/logger"
	"crm-sync/core/reconcile"
	"crm-sync/core/registry"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// Handler handles HTTP requests for conflicts.
type Handler struct {
	service *Service
}

// NewHandler creates a new HTTP handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes registers the conflict routes.
func (h *Handler) RegisterRoutes(app fiber.Router) {
	group := app.Group("/conflicts")
	group.Post("/:type/resolve", h.HandleResolve)
	group.Get("/:type/:remoteId", h.HandleGetConflict)
}

// HandleGetConflict classifies one record pair.
func (h *Handler) HandleGetConflict(c *fiber.Ctx) error {
	recordType, remoteID := c.Params("type"), c.Params("remoteId")

	classification, err := h.service.Conflict(c.Context(), recordType, remoteID)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(fiber.Map{
		"record_type":    recordType,
		"remote_id":      remoteID,
		"classification": classification,
	})
}

// HandleResolve applies a resolution to one record pair.
func (h *Handler) HandleResolve(c *fiber.Ctx) error {
	var req ResolveRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}

	if err := h.service.Resolve(c.Context(), c.Params("type"), req); err != nil {
		return h.fail(c, err)
	}
	return c.JSON(fiber.Map{"status": "resolved"})
}

func (h *Handler) fail(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, registry.ErrUnknownType):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": err.Error()})
	case reconcile.IsValidation(err):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	logger.WithRayID(h.service.logger, c).Error("Conflict request failed", zap.Error(err))
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
}
