package middleware_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"github.com/evalia-edu/evalia-api/internal/middleware"
	"github.com/evalia-edu/evalia-api/internal/models"
)

const jwtTestSecret = "judge-access-secret"

func signToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(jwtTestSecret))
	require.NoError(t, err)
	return signed
}

func newJWTApp() *fiber.App {
	app := fiber.New()
	app.Get("/submissions/1", middleware.JWTProtected(jwtTestSecret), func(c *fiber.Ctx) error {
		userID, _ := c.Locals("user_id").(uint)
		role, _ := c.Locals("user_role").(string)
		return c.JSON(fiber.Map{"user_id": userID, "role": role})
	})
	return app
}

func TestJWTProtectedAcceptsValidToken(t *testing.T) {
	app := newJWTApp()

	token := signToken(t, jwt.MapClaims{
		"sub":  float64(7),
		"role": models.RoleStudent,
		"exp":  time.Now().Add(time.Hour).Unix(),
	})

	req := httptest.NewRequest(http.MethodGet, "/submissions/1", nil)
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestJWTProtectedReadsAlternateClaimShapes(t *testing.T) {
	app := newJWTApp()

	token := signToken(t, jwt.MapClaims{
		"user_id": "42",
		"roles":   []interface{}{"Teacher"},
		"exp":     time.Now().Add(time.Hour).Unix(),
	})

	req := httptest.NewRequest(http.MethodGet, "/submissions/1", nil)
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var payload struct {
		UserID uint   `json:"user_id"`
		Role   string `json:"role"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&payload))
	require.Equal(t, uint(42), payload.UserID)
	require.Equal(t, models.RoleTeacher, payload.Role)
}

func TestJWTProtectedRejectsMissingHeader(t *testing.T) {
	app := newJWTApp()

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/submissions/1", nil))
	require.NoError(t, err)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestJWTProtectedRejectsWrongSecret(t *testing.T) {
	app := newJWTApp()

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": float64(7)})
	signed, err := token.SignedString([]byte("other-secret"))
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/submissions/1", nil)
	req.Header.Set("Authorization", "Bearer "+signed)

	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestJWTProtectedRejectsExpiredToken(t *testing.T) {
	app := newJWTApp()

	token := signToken(t, jwt.MapClaims{
		"sub": float64(7),
		"exp": time.Now().Add(-time.Hour).Unix(),
	})

	req := httptest.NewRequest(http.MethodGet, "/submissions/1", nil)
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}
