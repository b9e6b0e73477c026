// Package auth authenticates endpoint calls with HS256 bearer tokens and
// authorizes them against the roles and permissions declared in the
// endpoint's "auth" metadata.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims are the token claims issued by TokenService
type Claims struct {
	Email string   `json:"email,omitempty"`
	Roles []string `json:"roles,omitempty"`
	jwt.RegisteredClaims
}

// TokenService provides JWT token generation and validation
type TokenService struct {
	secretKey []byte
	tokenTTL  time.Duration
	issuer    string
}

// NewTokenService creates a TokenService signing with secretKey
func NewTokenService(secretKey string, tokenTTL time.Duration) (*TokenService, error) {
	if secretKey == "" {
		return nil, errors.New("jwt secret is required")
	}
	if tokenTTL <= 0 {
		tokenTTL = time.Hour
	}
	return &TokenService{
		secretKey: []byte(secretKey),
		tokenTTL:  tokenTTL,
		issuer:    "waypoint",
	}, nil
}

// GenerateToken generates a token for subject with the given email and roles
func (s *TokenService) GenerateToken(subject, email string, roles []string) (string, error) {
	now := time.Now()
	claims := Claims{
		Email: email,
		Roles: roles,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Issuer:    s.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.tokenTTL)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secretKey)
}

// ValidateToken validates a token and returns its claims
func (s *TokenService) ValidateToken(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if token.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secretKey, nil
	}, jwt.WithIssuer(s.issuer), jwt.WithExpirationRequired())
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, errors.New("invalid token")
	}
	return claims, nil
}
