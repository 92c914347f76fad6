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

// SubmissionHandler exposes the submission and judging endpoints.
type SubmissionHandler struct {
	service   service.SubmissionService
	validator *validator.Validate
	logger    zerolog.Logger
}

// NewSubmissionHandler constructs the handler.
func NewSubmissionHandler(service service.SubmissionService, validator *validator.Validate, logger zerolog.Logger) *SubmissionHandler {
	return &SubmissionHandler{
		service:   service,
		validator: validator,
		logger:    logger.With().Str("component", "submission_handler").Logger(),
	}
}

// Register wires the handler endpoints into the router group.
func (h *SubmissionHandler) Register(router fiber.Router) {
	router.Post("", h.create)
	router.Post("/file", h.createFromFile)
	router.Get("/:id", h.get)
	router.Post("/:id/review", h.review)
}

func (h *SubmissionHandler) create(c *fiber.Ctx) error {
	var payload dto.SubmissionRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	studentID := userIDFromContext(c)
	if studentID == 0 {
		return utils.SendError(c, fiber.StatusUnauthorized, "unauthorized")
	}

	response, err := h.service.Submit(c.Context(), studentID, payload)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendCreated(c, "submission judged", response)
}

func (h *SubmissionHandler) createFromFile(c *fiber.Ctx) error {
	studentID := userIDFromContext(c)
	if studentID == 0 {
		return utils.SendError(c, fiber.StatusUnauthorized, "unauthorized")
	}

	exerciseID, err := parseQueryInt(c, "exercise_id")
	if err != nil || exerciseID <= 0 {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid exercise_id")
	}

	file, err := c.FormFile("answer")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "answer file is required")
	}

	response, err := h.service.SubmitFile(c.Context(), studentID, uint(exerciseID), file)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendCreated(c, "submission judged", response)
}

func (h *SubmissionHandler) get(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	response, err := h.service.Get(c.Context(), id, userIDFromContext(c), userRoleFromContext(c))
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "submission retrieved", response)
}

func (h *SubmissionHandler) review(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	reviewerID := userIDFromContext(c)
	role := userRoleFromContext(c)
	if reviewerID == 0 || role == "" {
		return utils.SendError(c, fiber.StatusForbidden, "insufficient permissions")
	}

	review, err := h.service.Review(c.Context(), id, reviewerID, role)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "submission reviewed", review)
}

func (h *SubmissionHandler) handleError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, service.ErrUnsupportedLanguage):
		return utils.SendError(c, fiber.StatusBadRequest, "language not supported")
	case errors.Is(err, service.ErrAnswerFileRequired), errors.Is(err, service.ErrAnswerFileNotText):
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrExerciseNotFound), errors.Is(err, service.ErrSubmissionNotFound):
		return utils.SendError(c, fiber.StatusNotFound, err.Error())
	case errors.Is(err, service.ErrSubmissionForbidden):
		return utils.SendError(c, fiber.StatusForbidden, "forbidden")
	case errors.Is(err, service.ErrReviewerUnavailable):
		return utils.SendError(c, fiber.StatusServiceUnavailable, "reviewer unavailable")
	case isValidationError(err):
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	default:
		requestLogger(h.logger, c).Error().Err(err).Msg("submission operation failed")
		return utils.SendError(c, fiber.StatusInternalServerError, "internal server error")
	}
}
