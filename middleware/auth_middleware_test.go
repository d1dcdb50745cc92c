package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/anjiri1684/zukih_store/models"
	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const secret = "test-secret"

func sign(t *testing.T, claims jwt.MapClaims, key string) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(key))
	require.NoError(t, err)
	return token
}

func TestParseToken(t *testing.T) {
	userID := uuid.New()
	token := sign(t, jwt.MapClaims{"user_id": userID.String(), "exp": time.Now().Add(time.Hour).Unix()}, secret)

	got, err := ParseToken(secret, token)
	require.NoError(t, err)
	assert.Equal(t, userID, got)

	_, err = ParseToken("other-secret", token)
	assert.Error(t, err)

	expired := sign(t, jwt.MapClaims{"user_id": userID.String(), "exp": time.Now().Add(-time.Hour).Unix()}, secret)
	_, err = ParseToken(secret, expired)
	assert.Error(t, err)
}

type stubRoles map[uuid.UUID]string

func (r stubRoles) ActiveRole(ctx context.Context, userID uuid.UUID) (string, error) {
	return r[userID], nil
}

func newProtectedApp(roles RoleLookup) *fiber.App {
	app := fiber.New()
	app.Get("/me", Protected(secret), func(c *fiber.Ctx) error {
		return c.SendString(CurrentUserID(c).String())
	})
	app.Get("/admin", Protected(secret), AdminRequired(roles), func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusNoContent)
	})
	return app
}

func request(t *testing.T, app *fiber.App, path, token string) *http.Response {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := app.Test(req)
	require.NoError(t, err)
	return resp
}

func TestProtected(t *testing.T) {
	app := newProtectedApp(stubRoles{})

	assert.Equal(t, http.StatusUnauthorized, request(t, app, "/me", "").StatusCode)
	assert.Equal(t, http.StatusUnauthorized, request(t, app, "/me", "not-a-jwt").StatusCode)

	token := sign(t, jwt.MapClaims{"user_id": uuid.NewString(), "role": models.RoleCustomer, "exp": time.Now().Add(time.Hour).Unix()}, secret)
	assert.Equal(t, http.StatusOK, request(t, app, "/me", token).StatusCode)
}

func TestAdminRequired(t *testing.T) {
	customerID, adminID := uuid.New(), uuid.New()
	app := newProtectedApp(stubRoles{customerID: models.RoleCustomer, adminID: models.RoleAdmin})
	exp := time.Now().Add(time.Hour).Unix()

	customer := sign(t, jwt.MapClaims{"user_id": customerID.String(), "role": models.RoleCustomer, "exp": exp}, secret)
	assert.Equal(t, http.StatusForbidden, request(t, app, "/admin", customer).StatusCode)

	admin := sign(t, jwt.MapClaims{"user_id": adminID.String(), "role": models.RoleAdmin, "exp": exp}, secret)
	assert.Equal(t, http.StatusNoContent, request(t, app, "/admin", admin).StatusCode)
}

func TestAdminRequiredIgnoresStaleRoleClaim(t *testing.T) {
	demotedID := uuid.New()
	app := newProtectedApp(stubRoles{demotedID: models.RoleCustomer})

	token := sign(t, jwt.MapClaims{"user_id": demotedID.String(), "role": models.RoleAdmin, "exp": time.Now().Add(time.Hour).Unix()}, secret)
	assert.Equal(t, http.StatusForbidden, request(t, app, "/admin", token).StatusCode)
}
