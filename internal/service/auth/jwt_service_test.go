package auth

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vaelis-ai/vaelis-api/internal/config"
)

const testSecret = "thisisasecretkeythatis32charslong!!"

func newTestService(t *testing.T, now time.Time) *hmacJWTService {
	t.Helper()
	svc, err := NewJWTService(config.AuthConfig{JWTSecret: testSecret, TokenLifetimeMinutes: 60})
	require.NoError(t, err)
	impl := svc.(*hmacJWTService)
	impl.timeFunc = func() time.Time { return now }
	return impl
}

func TestNewJWTService_Validation(t *testing.T) {
	_, err := NewJWTService(config.AuthConfig{JWTSecret: "short", TokenLifetimeMinutes: 60})
	assert.Error(t, err)

	_, err = NewJWTService(config.AuthConfig{JWTSecret: testSecret, TokenLifetimeMinutes: 0})
	assert.Error(t, err)
}

func TestGenerateAndValidate(t *testing.T) {
	now := time.Now()
	svc := newTestService(t, now)
	ctx := context.Background()

	token, err := svc.GenerateToken(ctx, "user-42")
	require.NoError(t, err)

	claims, err := svc.ValidateToken(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, "user-42", claims.UserID)
	assert.NotEmpty(t, claims.ID)
	assert.WithinDuration(t, now.Add(time.Hour), claims.ExpiresAt, time.Second)
}

func TestGenerateToken_EmptySubject(t *testing.T) {
	svc := newTestService(t, time.Now())
	_, err := svc.GenerateToken(context.Background(), " ")
	assert.ErrorIs(t, err, ErrEmptySubject)
}

func TestValidateToken_Expired(t *testing.T) {
	issued := time.Now()
	svc := newTestService(t, issued)
	token, err := svc.GenerateToken(context.Background(), "user-1")
	require.NoError(t, err)

	svc.timeFunc = func() time.Time { return issued.Add(2 * time.Hour) }
	_, err = svc.ValidateToken(context.Background(), token)
	assert.ErrorIs(t, err, ErrExpiredToken)
}

func TestValidateToken_WithinClockSkew(t *testing.T) {
	issued := time.Now()
	svc := newTestService(t, issued)
	token, err := svc.GenerateToken(context.Background(), "user-1")
	require.NoError(t, err)

	svc.timeFunc = func() time.Time { return issued.Add(time.Hour + time.Minute) }
	_, err = svc.ValidateToken(context.Background(), token)
	assert.NoError(t, err)
}

func TestValidateToken_Invalid(t *testing.T) {
	svc := newTestService(t, time.Now())
	ctx := context.Background()

	_, err := svc.ValidateToken(ctx, "not-a-token")
	assert.ErrorIs(t, err, ErrInvalidToken)

	other, err := NewJWTService(config.AuthConfig{JWTSecret: "another-secret-that-is-32-chars-long", TokenLifetimeMinutes: 60})
	require.NoError(t, err)
	foreign, err := other.GenerateToken(ctx, "user-1")
	require.NoError(t, err)

	_, err = svc.ValidateToken(ctx, foreign)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestValidateToken_RejectsOtherAlgorithms(t *testing.T) {
	svc := newTestService(t, time.Now())

	claims := jwt.RegisteredClaims{
		Subject:   "user-1",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS512, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)

	_, err = svc.ValidateToken(context.Background(), token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestValidateToken_RequiresExpiry(t *testing.T) {
	svc := newTestService(t, time.Now())

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{Subject: "user-1"}).
		SignedString([]byte(testSecret))
	require.NoError(t, err)

	_, err = svc.ValidateToken(context.Background(), token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}
