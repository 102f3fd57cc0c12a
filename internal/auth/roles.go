package auth

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/helpdesk-service/internal/domain"
	"github.com/spec-kit/helpdesk-service/internal/policy"
)

// Route guards reject early with the same policy checks the services apply.
// They never replace the service-level check.

// RequireProfile ensures the caller has a provisioned profile.
func RequireProfile() fiber.Handler {
	return guard(policy.RequireProfile)
}

// RequireStaff ensures the caller is IT staff or an admin.
func RequireStaff() fiber.Handler {
	return guard(policy.RequireStaff)
}

// RequireAdmin ensures the caller is an admin.
func RequireAdmin() fiber.Handler {
	return guard(policy.RequireAdmin)
}

func guard(check func(*domain.Principal) error) fiber.Handler {
	return func(c *fiber.Ctx) error {
		principal, _ := PrincipalFromContext(c)
		if err := check(principal); err != nil {
			return err
		}
		return c.Next()
	}
}
