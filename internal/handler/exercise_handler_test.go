package handler_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/evalia-edu/evalia-api/internal/dto"
	"github.com/evalia-edu/evalia-api/internal/handler"
	"github.com/evalia-edu/evalia-api/internal/models"
	"github.com/evalia-edu/evalia-api/internal/service"
)

type mockExerciseService struct {
	lastFilter dto.ExerciseFilter
	lastRole   string
	list       dto.ExerciseListResponse
	exercise   dto.ExerciseResponse
	err        error
}

func (m *mockExerciseService) List(_ context.Context, filter dto.ExerciseFilter, role string) (dto.ExerciseListResponse, error) {
	m.lastFilter = filter
	m.lastRole = role
	if m.err != nil {
		return dto.ExerciseListResponse{}, m.err
	}
	return m.list, nil
}

func (m *mockExerciseService) Get(_ context.Context, id uint, role string) (dto.ExerciseResponse, error) {
	m.lastRole = role
	if m.err != nil {
		return dto.ExerciseResponse{}, m.err
	}
	return m.exercise, nil
}

func (m *mockExerciseService) Create(_ context.Context, payload dto.ExerciseRequest, role string) (dto.ExerciseResponse, error) {
	m.lastRole = role
	if m.err != nil {
		return dto.ExerciseResponse{}, m.err
	}
	return m.exercise, nil
}

func (m *mockExerciseService) Update(_ context.Context, id uint, payload dto.ExerciseRequest, role string) (dto.ExerciseResponse, error) {
	if m.err != nil {
		return dto.ExerciseResponse{}, m.err
	}
	return m.exercise, nil
}

func (m *mockExerciseService) Delete(_ context.Context, id uint, role string) error {
	return m.err
}

func withUser(id uint, role string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if id != 0 {
			c.Locals("user_id", id)
		}
		if role != "" {
			c.Locals("user_role", role)
		}
		return c.Next()
	}
}

func decodeResponse(t *testing.T, resp *http.Response, target interface{}) {
	t.Helper()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(body, target))
}

func newExerciseApp(svc *mockExerciseService, role string) *fiber.App {
	app := fiber.New()
	group := app.Group("/api/v2/exercises", withUser(1, role))
	handler.NewExerciseHandler(svc, validator.New(validator.WithRequiredStructEnabled()), zerolog.New(io.Discard)).Register(group)
	return app
}

func TestExerciseHandler_ListPassesFilter(t *testing.T) {
	svc := &mockExerciseService{list: dto.ExerciseListResponse{
		Items:      []dto.ExerciseResponse{{ID: 1, Slug: "echo-function", Title: "Echo Function"}},
		Pagination: dto.Pagination{Page: 2, PageSize: 10, TotalItems: 11},
	}}
	app := newExerciseApp(svc, models.RoleStudent)

	req := httptest.NewRequest(http.MethodGet, "/api/v2/exercises?language=python&tags=warmup,text&page=2&page_size=10", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	require.Equal(t, "python", svc.lastFilter.Language)
	require.Equal(t, []string{"warmup", "text"}, svc.lastFilter.Tags)
	require.Equal(t, 2, svc.lastFilter.Page)
	require.Equal(t, models.RoleStudent, svc.lastRole)

	var body struct {
		Success bool                     `json:"success"`
		Data    dto.ExerciseListResponse `json:"data"`
	}
	decodeResponse(t, resp, &body)
	require.True(t, body.Success)
	require.Len(t, body.Data.Items, 1)
	require.Equal(t, "echo-function", body.Data.Items[0].Slug)
}

func TestExerciseHandler_InvalidPage(t *testing.T) {
	app := newExerciseApp(&mockExerciseService{}, models.RoleStudent)

	req := httptest.NewRequest(http.MethodGet, "/api/v2/exercises?page=oops", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestExerciseHandler_GetNotFound(t *testing.T) {
	svc := &mockExerciseService{err: service.ErrExerciseNotFound}
	app := newExerciseApp(svc, models.RoleStudent)

	req := httptest.NewRequest(http.MethodGet, "/api/v2/exercises/42", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}

func TestExerciseHandler_CreateForbidden(t *testing.T) {
	svc := &mockExerciseService{err: service.ErrExerciseForbidden}
	app := newExerciseApp(svc, models.RoleStudent)

	req := httptest.NewRequest(http.MethodPost, "/api/v2/exercises", strings.NewReader(`{"slug":"new","title":"New","prompt":"p","channel":"text"}`))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusForbidden, resp.StatusCode)
}

func TestExerciseHandler_CreateConflict(t *testing.T) {
	svc := &mockExerciseService{err: service.ErrSlugTaken}
	app := newExerciseApp(svc, models.RoleTeacher)

	req := httptest.NewRequest(http.MethodPost, "/api/v2/exercises", strings.NewReader(`{"slug":"echo-function","title":"Echo","prompt":"p","channel":"text"}`))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusConflict, resp.StatusCode)
}

func TestExerciseHandler_ServiceError(t *testing.T) {
	svc := &mockExerciseService{err: errors.New("boom")}
	app := newExerciseApp(svc, models.RoleStudent)

	req := httptest.NewRequest(http.MethodGet, "/api/v2/exercises", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusInternalServerError, resp.StatusCode)
}
