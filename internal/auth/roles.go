package auth

import (
	"github.com/gofiber/fiber/v2"

	"github.com/casedesk/case-dispatch/internal/domain"
	apperrors "github.com/casedesk/case-dispatch/pkg/util/errorutil"
)

// RequireRole ensures the principal has one of the allowed roles.
func RequireRole(allowed ...domain.Role) fiber.Handler {
	allowedSet := make(map[domain.Role]struct{}, len(allowed))
	for _, role := range allowed {
		allowedSet[role] = struct{}{}
	}

	return func(c *fiber.Ctx) error {
		principal, ok := PrincipalFromContext(c)
		if !ok {
			return apperrors.NewUnauthorized("authentication required")
		}
		if _, exists := allowedSet[principal.Role]; !exists {
			return apperrors.NewForbidden("insufficient role")
		}
		return c.Next()
	}
}

// RequireAgentSelfOr lets an agent act on its own :id route parameter and
// admits the listed roles for any agent.
func RequireAgentSelfOr(param string, allowed ...domain.Role) fiber.Handler {
	byRole := RequireRole(allowed...)
	return func(c *fiber.Ctx) error {
		principal, ok := PrincipalFromContext(c)
		if !ok {
			return apperrors.NewUnauthorized("authentication required")
		}
		if principal.IsAgent(c.Params(param)) {
			return c.Next()
		}
		if principal.Role == domain.RoleAgent {
			return apperrors.NewForbidden("agents may only act for themselves")
		}
		return byRole(c)
	}
}
