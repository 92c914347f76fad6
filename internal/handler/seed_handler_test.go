package handler_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/evalia-edu/evalia-api/internal/handler"
	"github.com/evalia-edu/evalia-api/internal/models"
	"github.com/evalia-edu/evalia-api/internal/service"
)

type mockSeedService struct {
	lastToken string
	lastItems []models.Exercise
	affected  int64
	err       error
}

func (m *mockSeedService) SeedExercises(_ context.Context, token string, items []models.Exercise) (int64, error) {
	m.lastToken = token
	m.lastItems = items
	if m.err != nil {
		return 0, m.err
	}
	return m.affected, nil
}

func (m *mockSeedService) SeedBuiltins(_ context.Context, token string) (int64, error) {
	m.lastToken = token
	if m.err != nil {
		return 0, m.err
	}
	return m.affected, nil
}

func newSeedApp(svc *mockSeedService) *fiber.App {
	app := fiber.New()
	handler.NewSeedHandler(svc, zerolog.New(io.Discard)).Register(app.Group("/api/v1/seed"))
	return app
}

func TestSeedHandler_Builtins(t *testing.T) {
	svc := &mockSeedService{affected: 5}
	app := newSeedApp(svc)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/seed/builtins", nil)
	req.Header.Set("X-Seed-Token", "secret")
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	require.Equal(t, "secret", svc.lastToken)
}

func TestSeedHandler_ExercisesPayload(t *testing.T) {
	svc := &mockSeedService{affected: 1}
	app := newSeedApp(svc)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/seed/exercises", strings.NewReader(`{"items":[{"slug":"echo-function","title":"Echo Function"}]}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Seed-Token", "secret")
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	require.Len(t, svc.lastItems, 1)
	require.Equal(t, "echo-function", svc.lastItems[0].Slug)
}

func TestSeedHandler_InvalidToken(t *testing.T) {
	svc := &mockSeedService{err: service.ErrSeedUnauthorized}
	app := newSeedApp(svc)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/seed/builtins", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusForbidden, resp.StatusCode)
}

func TestSeedHandler_Disabled(t *testing.T) {
	svc := &mockSeedService{err: service.ErrSeedDisabled}
	app := newSeedApp(svc)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/seed/builtins", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusForbidden, resp.StatusCode)
}
