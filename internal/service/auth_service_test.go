package service

import (
	"crypto/rand"
	"crypto/rsa"
	"errors"
	"testing"
	"time"

	"telemetry_dashboard/internal/clock"

	"github.com/golang-jwt/jwt/v5"
)

var authNow = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestAuth(key string) (*AuthService, *clock.FakeClock) {
	clk := clock.Fake(authNow)
	return NewAuthService(key, clk), clk
}

func TestAuthService_IssueAndParse(t *testing.T) {
	t.Parallel()
	svc, _ := newTestAuth("k3y")

	tok, err := svc.IssueToken("ops-console", time.Hour)
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}
	sub, err := svc.ParseToken(tok)
	if err != nil {
		t.Fatalf("ParseToken: %v", err)
	}
	if sub != "ops-console" {
		t.Fatalf("subject: want ops-console, got %q", sub)
	}
}

func TestAuthService_ParseToken_Malformed(t *testing.T) {
	t.Parallel()
	svc, _ := newTestAuth("k3y")

	if _, err := svc.ParseToken("not-a-jwt"); err == nil {
		t.Fatalf("expected error for malformed token")
	}
}

func TestAuthService_ParseToken_InvalidSignature(t *testing.T) {
	t.Parallel()
	issuer, _ := newTestAuth("other-key")
	svc, _ := newTestAuth("k3y")

	tok, err := issuer.IssueToken("x", time.Hour)
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}
	if _, err := svc.ParseToken(tok); !errors.Is(err, jwt.ErrTokenSignatureInvalid) {
		t.Fatalf("expected signature error, got %v", err)
	}
}

func TestAuthService_ParseToken_Expired(t *testing.T) {
	t.Parallel()
	svc, clk := newTestAuth("k3y")

	tok, err := svc.IssueToken("x", time.Minute)
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}
	clk.Advance(2 * time.Minute)
	if _, err := svc.ParseToken(tok); !errors.Is(err, jwt.ErrTokenExpired) {
		t.Fatalf("expected expired error, got %v", err)
	}
}

func TestAuthService_ParseToken_UnexpectedAlg(t *testing.T) {
	t.Parallel()
	svc, _ := newTestAuth("k3y")

	privateKey, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("rsa.GenerateKey failed: %v", err)
	}
	tk := jwt.NewWithClaims(jwt.SigningMethodRS256, &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "x",
			ExpiresAt: jwt.NewNumericDate(authNow.Add(time.Hour)),
		},
	})
	tokenStr, err := tk.SignedString(privateKey)
	if err != nil {
		t.Fatalf("SignedString failed: %v", err)
	}
	if _, err := svc.ParseToken(tokenStr); err == nil {
		t.Fatalf("expected error for non-HMAC token")
	}
}

func TestAuthService_Disabled(t *testing.T) {
	t.Parallel()
	svc, _ := newTestAuth("")

	if svc.Enabled() {
		t.Fatalf("expected auth disabled with empty key")
	}
	if _, err := svc.ParseToken("anything"); !errors.Is(err, ErrAuthDisabled) {
		t.Fatalf("expected ErrAuthDisabled, got %v", err)
	}
}

func TestCredentialExpiry(t *testing.T) {
	t.Parallel()
	svc, _ := newTestAuth("collector-key")

	tok, err := svc.IssueToken("dashboard", 30*time.Minute)
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}
	exp, ok := CredentialExpiry(tok)
	if !ok {
		t.Fatalf("expected exp claim")
	}
	if want := authNow.Add(30 * time.Minute); !exp.Equal(want) {
		t.Fatalf("exp: want %v, got %v", want, exp)
	}

	if _, ok := CredentialExpiry("opaque-api-key"); ok {
		t.Fatalf("opaque credential should report no expiry")
	}
}
