package auth

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/field-service/internal/domain"
	apperrors "github.com/spec-kit/field-service/pkg/util"
)

// RequireAuthenticated ensures a caller is logged in.
func RequireAuthenticated() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if _, ok := UserFromContext(c); !ok {
			return apperrors.NewUnauthorized("authentication required")
		}
		return c.Next()
	}
}

// RequireRole ensures the caller holds one of the allowed roles.
func RequireRole(allowed ...domain.UserRole) fiber.Handler {
	allowedSet := make(map[domain.UserRole]struct{}, len(allowed))
	for _, role := range allowed {
		allowedSet[role] = struct{}{}
	}

	return func(c *fiber.Ctx) error {
		user, ok := UserFromContext(c)
		if !ok {
			return apperrors.NewUnauthorized("authentication required")
		}
		if len(allowedSet) == 0 {
			return c.Next()
		}
		if _, exists := allowedSet[user.Role]; !exists {
			return apperrors.NewForbidden("insufficient role")
		}
		return c.Next()
	}
}

// RequireAdmin shortcuts the admin role check.
func RequireAdmin() fiber.Handler {
	return RequireRole(domain.RoleAdmin, domain.RoleSuperAdmin)
}
