package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/evalia-edu/evalia-api/internal/models"
	"github.com/evalia-edu/evalia-api/internal/service"
	"github.com/evalia-edu/evalia-api/internal/utils"
)

// SeedHandler exposes tooling endpoints for seeding the exercise catalog.
type SeedHandler struct {
	service service.SeedService
	logger  zerolog.Logger
}

// NewSeedHandler constructs a seed handler.
func NewSeedHandler(service service.SeedService, logger zerolog.Logger) *SeedHandler {
	return &SeedHandler{
		service: service,
		logger:  logger.With().Str("component", "seed_handler").Logger(),
	}
}

// Register wires seed routes.
func (h *SeedHandler) Register(router fiber.Router) {
	router.Post("/exercises", h.exercises)
	router.Post("/builtins", h.builtins)
}

type seedExercisesRequest struct {
	Items []models.Exercise `json:"items"`
}

func (h *SeedHandler) exercises(c *fiber.Ctx) error {
	token := c.Get("X-Seed-Token")
	var payload seedExercisesRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	affected, err := h.service.SeedExercises(c.Context(), token, payload.Items)
	if err != nil {
		return h.seedError(c, err)
	}

	return utils.SendSuccess(c, "exercises seeded", fiber.Map{"affected": affected})
}

func (h *SeedHandler) builtins(c *fiber.Ctx) error {
	token := c.Get("X-Seed-Token")

	affected, err := h.service.SeedBuiltins(c.Context(), token)
	if err != nil {
		return h.seedError(c, err)
	}

	return utils.SendSuccess(c, "builtin exercises seeded", fiber.Map{"affected": affected})
}

func (h *SeedHandler) seedError(c *fiber.Ctx, err error) error {
	switch err {
	case service.ErrSeedDisabled:
		return utils.SendError(c, fiber.StatusForbidden, "seeding disabled")
	case service.ErrSeedUnauthorized:
		return utils.SendError(c, fiber.StatusForbidden, "invalid token")
	default:
		h.logger.Error().Err(err).Msg("seed operation failed")
		return utils.SendError(c, fiber.StatusInternalServerError, "seed operation failed")
	}
}
