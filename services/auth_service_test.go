package services

import (
	"context"
	"testing"

	"github.com/anjiri1684/zukih_store/database"
	"github.com/anjiri1684/zukih_store/models"
	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterAndLogin(t *testing.T) {
	db := database.NewTestDB(t)
	svc := NewAuthService(db, "test-secret")
	phone := "0712345678"

	user, err := svc.Register(context.Background(), "Jane Wanjiku", "jane@example.com", "s3cretpass", &phone)
	require.NoError(t, err)
	assert.Equal(t, models.RoleCustomer, user.Role)
	assert.NotEqual(t, "s3cretpass", user.Password)

	token, loggedIn, err := svc.Login(context.Background(), "jane@example.com", "s3cretpass")
	require.NoError(t, err)
	assert.Equal(t, user.ID, loggedIn.ID)

	parsed, err := jwt.Parse(token, func(*jwt.Token) (interface{}, error) { return []byte("test-secret"), nil })
	require.NoError(t, err)
	claims := parsed.Claims.(jwt.MapClaims)
	assert.Equal(t, user.ID.String(), claims["user_id"])
	assert.Equal(t, models.RoleCustomer, claims["role"])
}

func TestRegisterDuplicateEmail(t *testing.T) {
	db := database.NewTestDB(t)
	svc := NewAuthService(db, "test-secret")

	_, err := svc.Register(context.Background(), "Jane", "jane@example.com", "s3cretpass", nil)
	require.NoError(t, err)
	_, err = svc.Register(context.Background(), "Jane Again", "jane@example.com", "otherpass", nil)
	assert.ErrorIs(t, err, ErrEmailTaken)
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	db := database.NewTestDB(t)
	svc := NewAuthService(db, "test-secret")
	_, err := svc.Register(context.Background(), "Jane", "jane@example.com", "s3cretpass", nil)
	require.NoError(t, err)

	_, _, err = svc.Login(context.Background(), "jane@example.com", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, _, err = svc.Login(context.Background(), "nobody@example.com", "s3cretpass")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestLoginDisabledAccount(t *testing.T) {
	db := database.NewTestDB(t)
	svc := NewAuthService(db, "test-secret")
	user, err := svc.Register(context.Background(), "Jane", "jane@example.com", "s3cretpass", nil)
	require.NoError(t, err)
	require.NoError(t, db.Model(user).Update("is_active", false).Error)

	_, _, err = svc.Login(context.Background(), "jane@example.com", "s3cretpass")
	assert.ErrorIs(t, err, ErrAccountDisabled)
}
