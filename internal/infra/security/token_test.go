package security

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const testSecret = "test-signing-secret"

func mintToken(t *testing.T, secret string, method jwt.SigningMethod, mutate func(*jwt.RegisteredClaims)) string {
	t.Helper()

	registered := jwt.RegisteredClaims{
		Subject:   "user-1",
		Issuer:    "homeservice-auth",
		Audience:  jwt.ClaimStrings{"homeservice-iam"},
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		IssuedAt:  jwt.NewNumericDate(time.Now()),
	}
	if mutate != nil {
		mutate(&registered)
	}

	token := jwt.NewWithClaims(method, struct {
		UserType string `json:"user_type"`
		jwt.RegisteredClaims
	}{
		UserType:         "provider",
		RegisteredClaims: registered,
	})

	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}

func TestNewTokenVerifierRequiresSecret(t *testing.T) {
	if _, err := NewTokenVerifier("  ", "", ""); err == nil {
		t.Fatal("expected error for blank secret")
	}
}

func TestVerifyValidToken(t *testing.T) {
	verifier, err := NewTokenVerifier(testSecret, "homeservice-auth", "homeservice-iam")
	if err != nil {
		t.Fatalf("NewTokenVerifier failed: %v", err)
	}

	claims, err := verifier.Verify(mintToken(t, testSecret, jwt.SigningMethodHS256, nil))
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if claims.UserID != "user-1" {
		t.Fatalf("expected subject user-1, got %q", claims.UserID)
	}
	if claims.UserType != "provider" {
		t.Fatalf("expected user type provider, got %q", claims.UserType)
	}
	if claims.Issuer != "homeservice-auth" {
		t.Fatalf("expected issuer homeservice-auth, got %q", claims.Issuer)
	}
}

func TestVerifyExpiredToken(t *testing.T) {
	verifier, _ := NewTokenVerifier(testSecret, "", "")

	token := mintToken(t, testSecret, jwt.SigningMethodHS256, func(c *jwt.RegisteredClaims) {
		c.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Hour))
	})
	if _, err := verifier.Verify(token); !errors.Is(err, ErrExpiredToken) {
		t.Fatalf("expected ErrExpiredToken, got %v", err)
	}
}

func TestVerifyExpirationInsideLeeway(t *testing.T) {
	verifier, _ := NewTokenVerifier(testSecret, "", "")

	token := mintToken(t, testSecret, jwt.SigningMethodHS256, func(c *jwt.RegisteredClaims) {
		c.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-10 * time.Second))
	})
	if _, err := verifier.Verify(token); err != nil {
		t.Fatalf("expected leeway to cover recent expiry, got %v", err)
	}
}

func TestVerifyWrongSecret(t *testing.T) {
	verifier, _ := NewTokenVerifier(testSecret, "", "")

	if _, err := verifier.Verify(mintToken(t, "other-secret", jwt.SigningMethodHS256, nil)); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestVerifyRejectsUnexpectedAlgorithm(t *testing.T) {
	verifier, _ := NewTokenVerifier(testSecret, "", "")

	if _, err := verifier.Verify(mintToken(t, testSecret, jwt.SigningMethodHS512, nil)); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for HS512, got %v", err)
	}
}

func TestVerifyIssuerMismatch(t *testing.T) {
	verifier, _ := NewTokenVerifier(testSecret, "expected-issuer", "")

	if _, err := verifier.Verify(mintToken(t, testSecret, jwt.SigningMethodHS256, nil)); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for issuer mismatch, got %v", err)
	}
}

func TestVerifyRequiresExpiration(t *testing.T) {
	verifier, _ := NewTokenVerifier(testSecret, "", "")

	token := mintToken(t, testSecret, jwt.SigningMethodHS256, func(c *jwt.RegisteredClaims) {
		c.ExpiresAt = nil
	})
	if _, err := verifier.Verify(token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for missing exp, got %v", err)
	}
}

func TestVerifyRequiresSubject(t *testing.T) {
	verifier, _ := NewTokenVerifier(testSecret, "", "")

	token := mintToken(t, testSecret, jwt.SigningMethodHS256, func(c *jwt.RegisteredClaims) {
		c.Subject = ""
	})
	if _, err := verifier.Verify(token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for missing subject, got %v", err)
	}
}
