package auth

import (
	"context"
	"testing"

	"siteforge/pkg/models"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.User{}))
	return NewService(db, "test-secret")
}

func TestRegisterAndLogin(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	user, pair, err := s.Register(ctx, &RegisterRequest{
		Username: "maria",
		Email:    "Maria@Example.com",
		Password: "correct horse battery",
		FullName: "Maria Santos",
	})
	require.NoError(t, err)
	assert.NotZero(t, user.ID)
	assert.Equal(t, "maria@example.com", user.Email, "email is normalized to lowercase")
	assert.Equal(t, "free", user.SubscriptionTier)
	assert.NotEqual(t, "correct horse battery", user.PasswordHash)
	assert.NotEmpty(t, pair.AccessToken)
	assert.NotEmpty(t, pair.RefreshToken)
	assert.Equal(t, "Bearer", pair.TokenType)

	// Login by username.
	got, loginPair, err := s.Login(ctx, &LoginRequest{Username: "maria", Password: "correct horse battery"})
	require.NoError(t, err)
	assert.Equal(t, user.ID, got.ID)
	assert.NotEmpty(t, loginPair.AccessToken)

	// Login by email.
	_, _, err = s.Login(ctx, &LoginRequest{Username: "maria@example.com", Password: "correct horse battery"})
	assert.NoError(t, err)
}

func TestRegisterDuplicate(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	_, _, err := s.Register(ctx, &RegisterRequest{Username: "maria", Email: "maria@example.com", Password: "password123"})
	require.NoError(t, err)

	_, _, err = s.Register(ctx, &RegisterRequest{Username: "maria", Email: "other@example.com", Password: "password123"})
	assert.ErrorIs(t, err, ErrUserExists)

	_, _, err = s.Register(ctx, &RegisterRequest{Username: "other", Email: "maria@example.com", Password: "password123"})
	assert.ErrorIs(t, err, ErrUserExists)
}

func TestLoginFailures(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	_, _, err := s.Register(ctx, &RegisterRequest{Username: "maria", Email: "maria@example.com", Password: "password123"})
	require.NoError(t, err)

	_, _, err = s.Login(ctx, &LoginRequest{Username: "maria", Password: "wrong"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, _, err = s.Login(ctx, &LoginRequest{Username: "nobody", Password: "password123"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestValidateToken(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	user, pair, err := s.Register(ctx, &RegisterRequest{Username: "maria", Email: "maria@example.com", Password: "password123"})
	require.NoError(t, err)

	claims, err := s.ValidateToken(pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, user.ID, claims.UserID)
	assert.Equal(t, "maria", claims.Username)
	assert.Equal(t, "free", claims.Tier)

	_, err = s.ValidateToken("not.a.token")
	assert.ErrorIs(t, err, ErrInvalidToken)

	// A token signed with a different secret is rejected.
	other := newTestService(t)
	other.jwtSecret = []byte("different-secret")
	_, otherPair, err := other.Register(ctx, &RegisterRequest{Username: "eve", Email: "eve@example.com", Password: "password123"})
	require.NoError(t, err)
	_, err = s.ValidateToken(otherPair.AccessToken)
	assert.Error(t, err)
}

func TestRefreshTokens(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	user, pair, err := s.Register(ctx, &RegisterRequest{Username: "maria", Email: "maria@example.com", Password: "password123"})
	require.NoError(t, err)

	newPair, err := s.RefreshTokens(ctx, pair.RefreshToken)
	require.NoError(t, err)
	claims, err := s.ValidateToken(newPair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, user.ID, claims.UserID)

	// An access token cannot be used as a refresh token.
	_, err = s.RefreshTokens(ctx, pair.AccessToken)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestPasswordHashing(t *testing.T) {
	s := newTestService(t)

	hash, err := s.HashPassword("hunter22")
	require.NoError(t, err)
	assert.NoError(t, s.CheckPassword("hunter22", hash))
	assert.ErrorIs(t, s.CheckPassword("hunter23", hash), ErrInvalidCredentials)
}
