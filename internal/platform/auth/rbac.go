package auth

import (
	"fmt"
	"strings"

	"github.com/labstack/echo/v4"

	apperrors "github.com/visitmgr/visitmgr/pkg/errors"
)

// RequireRole returns middleware that lets the request through when the
// caller holds one of roles. Admin passes every check.
func RequireRole(roles ...Role) echo.MiddlewareFunc {
	names := make([]string, len(roles))
	for i, r := range roles {
		names[i] = string(r)
	}
	denied := fmt.Sprintf("required role: %s", strings.Join(names, " or "))

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			p, ok := PrincipalFromContext(c.Request().Context())
			if !ok {
				return apperrors.NewUnauthorizedError("authentication required")
			}
			if p.Role == RoleAdmin {
				return next(c)
			}
			for _, required := range roles {
				if p.Role == required {
					return next(c)
				}
			}
			return apperrors.NewForbiddenError(denied)
		}
	}
}

// RequireAuthenticated admits any caller with a valid token.
func RequireAuthenticated() echo.MiddlewareFunc {
	return RequireRole(RoleAdmin, RoleDoctor, RoleReceptionist)
}

func RequireAdmin() echo.MiddlewareFunc {
	return RequireRole(RoleAdmin)
}

func RequireDoctorOrAdmin() echo.MiddlewareFunc {
	return RequireRole(RoleDoctor)
}

func RequireReceptionistOrAdmin() echo.MiddlewareFunc {
	return RequireRole(RoleReceptionist)
}
