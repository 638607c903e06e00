package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ukydev/fleet-compliance/internal/models"
	"golang.org/x/crypto/bcrypt"
)

func testIdentity() models.Claims {
	return models.Claims{UserID: "user-1", TenantID: "tenant-a", Role: models.RoleManager}
}

func TestNewService(t *testing.T) {
	service, err := NewService(Options{})
	assert.NoError(t, err)
	assert.NotNil(t, service)
	assert.NotEmpty(t, service.jwtSecret)
	assert.Equal(t, 24*time.Hour, service.tokenExp)

	service, err = NewService(Options{JWTSecret: "s3cret", TokenExpiry: time.Hour})
	assert.NoError(t, err)
	assert.Equal(t, []byte("s3cret"), service.jwtSecret)
	assert.Equal(t, time.Hour, service.tokenExp)
}

func TestNewService_RejectsMalformedKeyHash(t *testing.T) {
	_, err := NewService(Options{ServiceKeyHash: "not-a-hash"})
	assert.Error(t, err)
}

func TestService_ServiceKey(t *testing.T) {
	plain, _ := NewService(Options{})
	hash, err := plain.HashKey("cron-runner-key")
	require.NoError(t, err)
	assert.NotEqual(t, "cron-runner-key", hash)

	// Keep the test fast: rehash at minimum cost.
	cheap, err := bcrypt.GenerateFromPassword([]byte("cron-runner-key"), bcrypt.MinCost)
	require.NoError(t, err)
	service, err := NewService(Options{ServiceKeyHash: string(cheap)})
	require.NoError(t, err)

	assert.NoError(t, service.CheckServiceKey("cron-runner-key"))
	assert.Equal(t, ErrInvalidServiceKey, service.CheckServiceKey("wrong"))
	assert.Equal(t, ErrInvalidServiceKey, service.CheckServiceKey(""))

	// No hash configured: nothing is accepted.
	assert.Equal(t, ErrInvalidServiceKey, plain.CheckServiceKey("cron-runner-key"))
}

func TestService_GenerateAndValidateToken(t *testing.T) {
	service, _ := NewService(Options{})
	identity := testIdentity()

	token, err := service.GenerateToken(identity)
	assert.NoError(t, err)
	assert.NotEmpty(t, token)

	// Test valid token
	claims, err := service.ValidateToken(token)
	assert.NoError(t, err)
	require.NotNil(t, claims)
	assert.Equal(t, identity.UserID, claims.UserID)
	assert.Equal(t, identity.TenantID, claims.TenantID)
	assert.Equal(t, identity.Role, claims.Role)

	// Test invalid token
	_, err = service.ValidateToken("invalid-token")
	assert.Equal(t, ErrInvalidToken, err)

	// Test token with Bearer prefix
	_, err = service.ValidateToken("Bearer " + token)
	assert.NoError(t, err)
}

func TestService_GenerateToken_RequiresTenant(t *testing.T) {
	service, _ := NewService(Options{})
	identity := testIdentity()
	identity.TenantID = ""
	_, err := service.GenerateToken(identity)
	assert.Equal(t, ErrMissingTenant, err)
}

func TestService_ValidateToken_RejectsTokenWithoutTenant(t *testing.T) {
	service, _ := NewService(Options{})
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": "user-1",
		"role":    "admin",
		"exp":     time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString(service.jwtSecret)
	require.NoError(t, err)

	_, err = service.ValidateToken(signed)
	assert.Equal(t, ErrMissingTenant, err)
}

func TestService_ValidateToken_RejectsUnknownRole(t *testing.T) {
	service, _ := NewService(Options{})
	for _, role := range []interface{}{"superuser", "", 7} {
		token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
			"user_id":   "user-1",
			"tenant_id": "tenant-a",
			"role":      role,
			"exp":       time.Now().Add(time.Hour).Unix(),
		})
		signed, err := token.SignedString(service.jwtSecret)
		require.NoError(t, err)

		_, err = service.ValidateToken(signed)
		assert.Equal(t, ErrInvalidToken, err, "role %v", role)
	}
}

func TestService_ValidateToken_WrongSecret(t *testing.T) {
	issuer, _ := NewService(Options{JWTSecret: "issuer"})
	verifier, _ := NewService(Options{JWTSecret: "verifier"})
	token, err := issuer.GenerateToken(testIdentity())
	require.NoError(t, err)

	_, err = verifier.ValidateToken(token)
	assert.Equal(t, ErrInvalidToken, err)
}

func TestService_ValidateToken_Expired(t *testing.T) {
	service, _ := NewService(Options{})
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"tenant_id": "tenant-a",
		"role":      "admin",
		"exp":       time.Now().Add(-time.Minute).Unix(),
	})
	signed, err := token.SignedString(service.jwtSecret)
	require.NoError(t, err)

	_, err = service.ValidateToken(signed)
	assert.Equal(t, ErrExpiredToken, err)
}

func TestService_ExtractTokenFromHeader(t *testing.T) {
	service, _ := NewService(Options{})

	// Test valid header
	token := "valid-token"
	header := "Bearer " + token
	extracted, err := service.ExtractTokenFromHeader(header)
	assert.NoError(t, err)
	assert.Equal(t, token, extracted)

	// Test empty header
	_, err = service.ExtractTokenFromHeader("")
	assert.Equal(t, ErrInvalidToken, err)

	// Test invalid format
	_, err = service.ExtractTokenFromHeader("InvalidFormat")
	assert.Equal(t, ErrInvalidToken, err)

	// Test missing token
	_, err = service.ExtractTokenFromHeader("Bearer ")
	assert.Equal(t, ErrInvalidToken, err)
}

func TestService_TokenExpiration(t *testing.T) {
	service, _ := NewService(Options{})

	token, _ := service.GenerateToken(testIdentity())

	// Token should be valid immediately
	claims, err := service.ValidateToken(token)
	assert.NoError(t, err)
	require.NotNil(t, claims)

	// Check expiration time
	now := time.Now().Unix()
	assert.Greater(t, claims.Exp, now)
	assert.LessOrEqual(t, claims.Exp, now+int64(service.tokenExp.Seconds())+1)
}
