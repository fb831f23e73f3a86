package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/visitmgr/visitmgr/pkg/errors"
)

func runWithRole(t *testing.T, mw echo.MiddlewareFunc, role Role) error {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if role != "" {
		req = req.WithContext(WithPrincipal(req.Context(), &Principal{UserID: 1, Email: "u@clinic.test", Role: role}))
	}
	rec := httptest.NewRecorder()
	return mw(okHandler)(e.NewContext(req, rec))
}

func TestRequireRole_Policies(t *testing.T) {
	tests := []struct {
		name    string
		mw      echo.MiddlewareFunc
		role    Role
		allowed bool
	}{
		{"admin policy admin", RequireAdmin(), RoleAdmin, true},
		{"admin policy doctor", RequireAdmin(), RoleDoctor, false},
		{"admin policy receptionist", RequireAdmin(), RoleReceptionist, false},
		{"doctor policy doctor", RequireDoctorOrAdmin(), RoleDoctor, true},
		{"doctor policy admin", RequireDoctorOrAdmin(), RoleAdmin, true},
		{"doctor policy receptionist", RequireDoctorOrAdmin(), RoleReceptionist, false},
		{"reception policy receptionist", RequireReceptionistOrAdmin(), RoleReceptionist, true},
		{"reception policy admin", RequireReceptionistOrAdmin(), RoleAdmin, true},
		{"reception policy doctor", RequireReceptionistOrAdmin(), RoleDoctor, false},
		{"any role doctor", RequireAuthenticated(), RoleDoctor, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := runWithRole(t, tt.mw, tt.role)
			if tt.allowed {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Equal(t, http.StatusForbidden, apperrors.HTTPStatus(err))
		})
	}
}

func TestRequireRole_NoPrincipal(t *testing.T) {
	err := runWithRole(t, RequireAdmin(), "")
	require.Error(t, err)
	assert.Equal(t, http.StatusUnauthorized, apperrors.HTTPStatus(err))
	assert.Equal(t, "authentication required", apperrors.PublicMessage(err))
}

func TestRequireRole_DeniedMessageNamesRoles(t *testing.T) {
	err := runWithRole(t, RequireDoctorOrAdmin(), RoleReceptionist)
	assert.Equal(t, "required role: Doctor", apperrors.PublicMessage(err))
}
