package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/evalia-edu/evalia-api/internal/middleware"
	"github.com/evalia-edu/evalia-api/internal/service"
	"github.com/evalia-edu/evalia-api/internal/utils"
)

// ProgressHandler serves aggregated per-student progress.
type ProgressHandler struct {
	service service.ProgressService
	logger  zerolog.Logger
}

// NewProgressHandler constructs the handler.
func NewProgressHandler(service service.ProgressService, logger zerolog.Logger) *ProgressHandler {
	return &ProgressHandler{
		service: service,
		logger:  logger.With().Str("component", "progress_handler").Logger(),
	}
}

// Register wires the handler endpoints into the router group.
func (h *ProgressHandler) Register(router fiber.Router) {
	router.Get("/me", h.me)
	router.Get("/students/:id", middleware.RequireStaff(), h.student)
}

func (h *ProgressHandler) me(c *fiber.Ctx) error {
	studentID := userIDFromContext(c)
	if studentID == 0 {
		return utils.SendError(c, fiber.StatusUnauthorized, "unauthorized")
	}
	return h.respond(c, studentID)
}

// student lets staff inspect any student's progress.
func (h *ProgressHandler) student(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}
	return h.respond(c, id)
}

func (h *ProgressHandler) respond(c *fiber.Ctx, studentID uint) error {
	response, err := h.service.GetProgress(c.Context(), studentID)
	if err != nil {
		requestLogger(h.logger, c).Error().Err(err).Msg("progress aggregation failed")
		return utils.SendError(c, fiber.StatusInternalServerError, "internal server error")
	}
	return utils.SendSuccess(c, "progress retrieved", response)
}
