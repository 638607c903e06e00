package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/ukydev/fleet-compliance/internal/models"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrInvalidToken      = errors.New("invalid token")
	ErrExpiredToken      = errors.New("token expired")
	ErrMissingTenant     = errors.New("token carries no tenant")
	ErrInvalidServiceKey = errors.New("invalid service key")
)

// DefaultTokenExpiry is used when no expiry is configured.
const DefaultTokenExpiry = 24 * time.Hour

const defaultSecret = "default-secret-key-change-in-production"

// Options configures the authentication service.
type Options struct {
	JWTSecret   string
	TokenExpiry time.Duration
	// ServiceKeyHash is the bcrypt hash of the key that external schedulers
	// present to trigger horizon maintenance. Empty disables service keys.
	ServiceKeyHash string
}

// Service handles authentication operations
type Service struct {
	jwtSecret      []byte
	tokenExp       time.Duration
	serviceKeyHash []byte
}

// NewService creates a new authentication service
func NewService(opts Options) (*Service, error) {
	secret := opts.JWTSecret
	if secret == "" {
		secret = defaultSecret
	}
	exp := opts.TokenExpiry
	if exp <= 0 {
		exp = DefaultTokenExpiry
	}
	if opts.ServiceKeyHash != "" {
		if _, err := bcrypt.Cost([]byte(opts.ServiceKeyHash)); err != nil {
			return nil, fmt.Errorf("service key hash is not a bcrypt hash: %w", err)
		}
	}

	return &Service{
		jwtSecret:      []byte(secret),
		tokenExp:       exp,
		serviceKeyHash: []byte(opts.ServiceKeyHash),
	}, nil
}

// HashKey hashes a service key using bcrypt
func (s *Service) HashKey(key string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(key), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash key: %w", err)
	}
	return string(bytes), nil
}

// CheckServiceKey reports whether key matches the configured service key hash.
func (s *Service) CheckServiceKey(key string) error {
	if len(s.serviceKeyHash) == 0 || key == "" {
		return ErrInvalidServiceKey
	}
	if err := bcrypt.CompareHashAndPassword(s.serviceKeyHash, []byte(key)); err != nil {
		return ErrInvalidServiceKey
	}
	return nil
}

// GenerateToken generates a JWT token for the given identity
func (s *Service) GenerateToken(identity models.Claims) (string, error) {
	if identity.TenantID == "" {
		return "", ErrMissingTenant
	}
	now := time.Now()
	claims := jwt.MapClaims{
		"user_id":   identity.UserID,
		"tenant_id": identity.TenantID,
		"role":      string(identity.Role),
		"exp":       now.Add(s.tokenExp).Unix(),
		"iat":       now.Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.jwtSecret)
}

// ValidateToken validates a JWT token and returns the claims
func (s *Service) ValidateToken(tokenString string) (*models.Claims, error) {
	// Remove "Bearer " prefix if present
	tokenString = strings.TrimPrefix(tokenString, "Bearer ")

	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.jwtSecret, nil
	})

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}

	if !token.Valid {
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, ErrInvalidToken
	}

	userID, _ := claims["user_id"].(string)

	tenantID, ok := claims["tenant_id"].(string)
	if !ok || tenantID == "" {
		return nil, ErrMissingTenant
	}

	roleStr, ok := claims["role"].(string)
	if !ok || !models.IsValidRole(models.Role(roleStr)) {
		return nil, ErrInvalidToken
	}

	exp, ok := claims["exp"].(float64)
	if !ok {
		return nil, ErrInvalidToken
	}

	return &models.Claims{
		UserID:   userID,
		TenantID: tenantID,
		Role:     models.Role(roleStr),
		Exp:      int64(exp),
	}, nil
}

// ExtractTokenFromHeader extracts token from Authorization header
func (s *Service) ExtractTokenFromHeader(authHeader string) (string, error) {
	if authHeader == "" {
		return "", ErrInvalidToken
	}

	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
		return "", ErrInvalidToken
	}

	return parts[1], nil
}
