package service

import (
	"errors"
	"fmt"
	"time"

	"telemetry_dashboard/internal/clock"

	"github.com/golang-jwt/jwt/v5"
)

// Domain errors for token checks.
var (
	ErrInvalidToken = errors.New("invalid token")
	ErrAuthDisabled = errors.New("api authentication disabled")
)

// Claims defines the API bearer token claims.
type Claims struct {
	jwt.RegisteredClaims
}

// AuthService verifies API consumer tokens signed with a shared HMAC key.
// With an empty key authentication is disabled.
type AuthService struct {
	signingKey []byte
	clock      clock.Clock
}

func NewAuthService(signingKey string, clk clock.Clock) *AuthService {
	if clk == nil {
		clk = clock.Real()
	}
	return &AuthService{signingKey: []byte(signingKey), clock: clk}
}

// Enabled reports whether a signing key is configured.
func (s *AuthService) Enabled() bool { return len(s.signingKey) > 0 }

// ParseToken parses a JWT and returns its subject.
func (s *AuthService) ParseToken(accessToken string) (string, error) {
	if !s.Enabled() {
		return "", ErrAuthDisabled
	}
	token, err := jwt.ParseWithClaims(accessToken, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		// Ensure HMAC signing is used
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.signingKey, nil
	}, jwt.WithTimeFunc(s.clock.Now))
	if err != nil {
		return "", err
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return "", ErrInvalidToken
	}
	return claims.Subject, nil
}

// IssueToken signs a token for subject valid for ttl.
func (s *AuthService) IssueToken(subject string, ttl time.Duration) (string, error) {
	if !s.Enabled() {
		return "", ErrAuthDisabled
	}
	now := s.clock.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	})
	return token.SignedString(s.signingKey)
}

// CredentialExpiry reads the exp claim of the collaborator credential without
// verifying it. ok is false for opaque (non-JWT) credentials or tokens without
// exp.
func CredentialExpiry(credential string) (exp time.Time, ok bool) {
	var claims jwt.RegisteredClaims
	if _, _, err := jwt.NewParser().ParseUnverified(credential, &claims); err != nil {
		return time.Time{}, false
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, false
	}
	return claims.ExpiresAt.Time, true
}
