package middleware

import (
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/evalia-edu/evalia-api/internal/models"
	"github.com/evalia-edu/evalia-api/internal/utils"
)

// RequireStaff restricts a route to teachers and admins. Students reach the
// judge only through their own submissions and progress.
func RequireStaff() fiber.Handler {
	return RequireRole(models.RoleTeacher, models.RoleAdmin)
}

// RequireRole ensures the authenticated user holds one of the allowed roles.
// Roles are compared case-insensitively after trimming.
func RequireRole(roles ...string) fiber.Handler {
	allowed := make(map[string]struct{}, len(roles))
	for _, role := range roles {
		if normalized := roleString(role); normalized != "" {
			allowed[normalized] = struct{}{}
		}
	}

	return func(c *fiber.Ctx) error {
		if _, ok := allowed[roleString(c.Locals("user_role"))]; !ok {
			return utils.SendError(c, fiber.StatusForbidden, "insufficient permissions")
		}
		return c.Next()
	}
}

// roleString folds whatever the token layer stored into a comparable role.
func roleString(value interface{}) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return strings.ToLower(strings.TrimSpace(v))
	case fmt.Stringer:
		return strings.ToLower(strings.TrimSpace(v.String()))
	default:
		return strings.ToLower(strings.TrimSpace(fmt.Sprintf("%v", value)))
	}
}
