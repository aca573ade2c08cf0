package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/casedesk/case-dispatch/internal/domain"
	apperrors "github.com/casedesk/case-dispatch/pkg/util/errorutil"
)

func TestTokenRoundTrip(t *testing.T) {
	tm := NewTokenManager("secret", 5)

	token, expiresAt, err := tm.GenerateToken("agent-1", domain.RoleAgent)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(5*time.Minute), expiresAt, time.Minute)

	claims, err := tm.ParseToken(token)
	require.NoError(t, err)
	assert.Equal(t, "agent-1", claims.Subject)
	assert.Equal(t, domain.RoleAgent, claims.Role)

	_, err = NewTokenManager("other", 5).ParseToken(token)
	assert.Error(t, err)

	_, _, err = tm.GenerateToken("x", "ADMIN")
	assert.Error(t, err)
}

func TestExpiredTokenRejected(t *testing.T) {
	tm := NewTokenManager("secret", 1)
	tm.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	token, _, err := tm.GenerateToken("agent-1", domain.RoleAgent)
	require.NoError(t, err)

	tm.now = time.Now
	_, err = tm.ParseToken(token)
	assert.Error(t, err)
}

func newTestApp(tm *TokenManager) *fiber.App {
	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			de := apperrors.ToDomainError(err)
			return c.SendStatus(de.HTTPStatus)
		},
	})
	mw := NewAuthMiddleware(tm)
	app.Post("/agents/:id/next-case", mw.Handle, RequireAgentSelfOr("id", domain.RoleSupervisor), func(c *fiber.Ctx) error {
		return c.SendStatus(http.StatusOK)
	})
	app.Post("/cases", mw.Handle, RequireRole(domain.RoleSystem, domain.RoleSupervisor), func(c *fiber.Ctx) error {
		return c.SendStatus(http.StatusCreated)
	})
	return app
}

func call(t *testing.T, app *fiber.App, path, token string) int {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := app.Test(req)
	require.NoError(t, err)
	return resp.StatusCode
}

func TestRoleGuards(t *testing.T) {
	tm := NewTokenManager("secret", 5)
	app := newTestApp(tm)
	agent, _, _ := tm.GenerateToken("a1", domain.RoleAgent)
	supervisor, _, _ := tm.GenerateToken("lead", domain.RoleSupervisor)
	system, _, _ := tm.GenerateToken("mail-ingest", domain.RoleSystem)

	assert.Equal(t, http.StatusUnauthorized, call(t, app, "/agents/a1/next-case", ""))
	assert.Equal(t, http.StatusUnauthorized, call(t, app, "/agents/a1/next-case", "garbage"))
	assert.Equal(t, http.StatusOK, call(t, app, "/agents/a1/next-case", agent))
	assert.Equal(t, http.StatusForbidden, call(t, app, "/agents/a2/next-case", agent))
	assert.Equal(t, http.StatusOK, call(t, app, "/agents/a2/next-case", supervisor))
	assert.Equal(t, http.StatusForbidden, call(t, app, "/agents/a2/next-case", system))

	assert.Equal(t, http.StatusForbidden, call(t, app, "/cases", agent))
	assert.Equal(t, http.StatusCreated, call(t, app, "/cases", system))
}
