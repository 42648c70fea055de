package poll

import (
	"errors"

	"crm-sync/core/logger"
	"crm-sync/core/registry"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// Handler handles HTTP requests for polling.
type Handler struct {
	service   *Service
	scheduler *Scheduler
}

// NewHandler creates a new HTTP handler. scheduler may be nil.
func NewHandler(service *Service, scheduler *Scheduler) *Handler {
	return &Handler{service: service, scheduler: scheduler}
}

// RegisterRoutes registers the poll routes.
func (h *Handler) RegisterRoutes(app fiber.Router) {
	group := app.Group("/polls")
	group.Get("/status", h.HandleStatus)
	group.Post("/:type", h.HandlePoll)
}

// HandlePoll polls the next window of a record type now.
func (h *Handler) HandlePoll(c *fiber.Ctx) error {
	recordType := c.Params("type")
	res, err := h.service.PollNext(c.Context(), recordType)
	switch {
	case errors.Is(err, registry.ErrUnknownType):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, ErrEmptyWindow):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": err.Error()})
	case err != nil:
		logger.WithRayID(h.service.logger, c).Error("Poll failed", zap.String("record_type", recordType), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(res)
}

// HandleStatus reports the scheduler state.
func (h *Handler) HandleStatus(c *fiber.Ctx) error {
	if h.scheduler == nil {
		return c.JSON(Status{})
	}
	return c.JSON(h.scheduler.Status())
}
