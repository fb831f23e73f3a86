package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func okHandler(c echo.Context) error {
	return c.String(http.StatusOK, "ok")
}

func runMiddleware(t *testing.T, mw echo.MiddlewareFunc, authHeader string, h echo.HandlerFunc) (*httptest.ResponseRecorder, error) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/visits", nil)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetPath("/api/v1/visits")
	return rec, mw(h)(c)
}

func assertHTTPError(t *testing.T, err error, code int) {
	t.Helper()
	require.Error(t, err)
	var httpErr *echo.HTTPError
	require.True(t, errors.As(err, &httpErr), "expected echo.HTTPError, got %T", err)
	assert.Equal(t, code, httpErr.Code)
}

func TestJWTMiddleware_MissingHeader(t *testing.T) {
	_, err := runMiddleware(t, JWTMiddleware(JWTConfig{Issuer: newTestIssuer()}), "", okHandler)
	assertHTTPError(t, err, http.StatusUnauthorized)
}

func TestJWTMiddleware_InvalidFormat(t *testing.T) {
	for _, header := range []string{"Token abc123", "Bearer", "Bearer ", "Basic dXNlcjpwYXNz"} {
		t.Run(header, func(t *testing.T) {
			_, err := runMiddleware(t, JWTMiddleware(JWTConfig{Issuer: newTestIssuer()}), header, okHandler)
			assertHTTPError(t, err, http.StatusUnauthorized)
		})
	}
}

func TestJWTMiddleware_InvalidToken(t *testing.T) {
	_, err := runMiddleware(t, JWTMiddleware(JWTConfig{Issuer: newTestIssuer()}), "Bearer not.a.jwt", okHandler)
	assertHTTPError(t, err, http.StatusUnauthorized)
}

func TestJWTMiddleware_ValidTokenSetsPrincipal(t *testing.T) {
	iss := newTestIssuer()
	tok, _, err := iss.Issue(7, "doc@clinic.test", RoleDoctor)
	require.NoError(t, err)

	var got *Principal
	h := func(c echo.Context) error {
		p, ok := PrincipalFromContext(c.Request().Context())
		require.True(t, ok)
		got = p
		return c.NoContent(http.StatusOK)
	}

	rec, err := runMiddleware(t, JWTMiddleware(JWTConfig{Issuer: iss}), "Bearer "+tok, h)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, got)
	assert.Equal(t, int64(7), got.UserID)
	assert.Equal(t, RoleDoctor, got.Role)
	assert.Equal(t, "doc@clinic.test", got.Email)
}

func TestJWTMiddleware_RevokedToken(t *testing.T) {
	iss := newTestIssuer()
	store := NewMemoryRevocationStore()
	defer store.Close()

	tok, exp, err := iss.Issue(7, "doc@clinic.test", RoleDoctor)
	require.NoError(t, err)
	p, err := iss.Parse(tok)
	require.NoError(t, err)
	require.NoError(t, store.Revoke(context.Background(), p.TokenID, exp))

	_, err = runMiddleware(t, JWTMiddleware(JWTConfig{Issuer: iss, Revocations: store}), "Bearer "+tok, okHandler)
	assertHTTPError(t, err, http.StatusUnauthorized)
}

type failingStore struct{}

func (failingStore) Revoke(context.Context, string, time.Time) error { return nil }
func (failingStore) RevokeAllForUser(context.Context, int64, time.Time, time.Duration) error {
	return nil
}
func (failingStore) IsRevoked(context.Context, string, int64, time.Time) (bool, error) {
	return false, errors.New("redis down")
}

func TestJWTMiddleware_RevocationStoreFailure(t *testing.T) {
	iss := newTestIssuer()
	tok, _, err := iss.Issue(7, "doc@clinic.test", RoleDoctor)
	require.NoError(t, err)

	_, err = runMiddleware(t, JWTMiddleware(JWTConfig{Issuer: iss, Revocations: failingStore{}}), "Bearer "+tok, okHandler)
	assertHTTPError(t, err, http.StatusServiceUnavailable)
}

func TestJWTMiddleware_SkipsPublicPaths(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetPath("/api/v1/auth/login")

	err := JWTMiddleware(JWTConfig{Issuer: newTestIssuer()})(okHandler)(c)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestContextHelpers_Anonymous(t *testing.T) {
	ctx := context.Background()
	assert.Equal(t, int64(0), UserIDFromContext(ctx))
	assert.Equal(t, Role(""), RoleFromContext(ctx))
	assert.Equal(t, "anonymous", ActorFromContext(ctx))

	ctx = WithPrincipal(ctx, &Principal{UserID: 3, Email: "x@clinic.test", Role: RoleAdmin})
	assert.Equal(t, int64(3), UserIDFromContext(ctx))
	assert.Equal(t, RoleAdmin, RoleFromContext(ctx))
	assert.Equal(t, "x@clinic.test", ActorFromContext(ctx))
}
