package auth

import (
	"net/http"

	"github.com/gofiber/fiber/v2"
)

// Role scopes what an ops API caller may do.
type Role string

const (
	// RoleAdmin may inspect and force-close tickets.
	RoleAdmin Role = "admin"
	// RoleViewer may only read ticket listings.
	RoleViewer Role = "viewer"
)

// RequireRole ensures the principal holds one of the allowed roles.
func RequireRole(allowed ...Role) fiber.Handler {
	allowedSet := make(map[Role]struct{}, len(allowed))
	for _, role := range allowed {
		allowedSet[role] = struct{}{}
	}

	return func(c *fiber.Ctx) error {
		principal, ok := PrincipalFromContext(c)
		if !ok {
			return fiber.NewError(http.StatusUnauthorized, http.StatusText(http.StatusUnauthorized))
		}
		if len(allowedSet) == 0 {
			return c.Next()
		}
		if _, exists := allowedSet[principal.Role]; !exists {
			return fiber.NewError(http.StatusForbidden, "insufficient role")
		}
		return c.Next()
	}
}
