package handler

import (
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/evalia-edu/evalia-api/internal/dto"
	"github.com/evalia-edu/evalia-api/internal/service"
	"github.com/evalia-edu/evalia-api/internal/utils"
)

// ExerciseHandler exposes the exercise catalog endpoints.
type ExerciseHandler struct {
	service   service.ExerciseService
	validator *validator.Validate
	logger    zerolog.Logger
}

// NewExerciseHandler constructs the handler.
func NewExerciseHandler(service service.ExerciseService, validator *validator.Validate, logger zerolog.Logger) *ExerciseHandler {
	return &ExerciseHandler{
		service:   service,
		validator: validator,
		logger:    logger.With().Str("component", "exercise_handler").Logger(),
	}
}

// Register wires the handler endpoints into the router group.
func (h *ExerciseHandler) Register(router fiber.Router) {
	router.Get("", h.list)
	router.Get("/:id", h.get)
	router.Post("", h.create)
	router.Put("/:id", h.update)
	router.Delete("/:id", h.delete)
}

func (h *ExerciseHandler) list(c *fiber.Ctx) error {
	page, err := parseQueryInt(c, "page")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid page")
	}
	pageSize, err := parseQueryInt(c, "page_size")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid page_size")
	}

	filter := dto.ExerciseFilter{
		Language:   c.Query("language"),
		Difficulty: c.Query("difficulty"),
		Channel:    c.Query("channel"),
		Search:     c.Query("search"),
		Page:       page,
		PageSize:   pageSize,
	}
	if tags := c.Query("tags"); tags != "" {
		filter.Tags = splitAndTrim(tags)
	}

	response, err := h.service.List(c.Context(), filter, userRoleFromContext(c))
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "exercises retrieved", response)
}

func (h *ExerciseHandler) get(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	response, err := h.service.Get(c.Context(), id, userRoleFromContext(c))
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "exercise retrieved", response)
}

func (h *ExerciseHandler) create(c *fiber.Ctx) error {
	var payload dto.ExerciseRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	response, err := h.service.Create(c.Context(), payload, userRoleFromContext(c))
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendCreated(c, "exercise created", response)
}

func (h *ExerciseHandler) update(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	var payload dto.ExerciseRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	response, err := h.service.Update(c.Context(), id, payload, userRoleFromContext(c))
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "exercise updated", response)
}

func (h *ExerciseHandler) delete(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	if err := h.service.Delete(c.Context(), id, userRoleFromContext(c)); err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "exercise deleted", nil)
}

func (h *ExerciseHandler) handleError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, service.ErrExerciseNotFound):
		return utils.SendError(c, fiber.StatusNotFound, err.Error())
	case errors.Is(err, service.ErrExerciseForbidden):
		return utils.SendError(c, fiber.StatusForbidden, "forbidden")
	case errors.Is(err, service.ErrSlugTaken):
		return utils.SendError(c, fiber.StatusConflict, err.Error())
	case isValidationError(err):
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	default:
		requestLogger(h.logger, c).Error().Err(err).Msg("exercise operation failed")
		return utils.SendError(c, fiber.StatusInternalServerError, "internal server error")
	}
}
