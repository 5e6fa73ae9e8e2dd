package security

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidToken indicates the token failed signature or claim validation.
var ErrInvalidToken = errors.New("security: invalid token")

// ErrExpiredToken indicates the token is syntactically valid but expired.
var ErrExpiredToken = errors.New("security: expired token")

// AccessClaims carries the identity claims extracted from an access token.
type AccessClaims struct {
	UserID   string
	UserType string
	Issuer   string
}

type tokenClaims struct {
	UserType string `json:"user_type"`
	jwt.RegisteredClaims
}

// TokenVerifier validates HMAC-signed access tokens issued by the auth service.
type TokenVerifier struct {
	secret   []byte
	issuer   string
	audience string
	leeway   time.Duration
}

// NewTokenVerifier creates a verifier for the shared signing secret.
// Issuer and audience checks are skipped when the corresponding value is empty.
func NewTokenVerifier(secret, issuer, audience string) (*TokenVerifier, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, fmt.Errorf("token verifier: signing secret is required")
	}

	return &TokenVerifier{
		secret:   []byte(secret),
		issuer:   issuer,
		audience: audience,
		leeway:   30 * time.Second,
	}, nil
}

// Verify parses and validates an access token, returning its identity claims.
func (v *TokenVerifier) Verify(tokenString string) (*AccessClaims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithLeeway(v.leeway),
		jwt.WithExpirationRequired(),
	}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}
	if v.audience != "" {
		opts = append(opts, jwt.WithAudience(v.audience))
	}

	claims := &tokenClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		return v.secret, nil
	}, opts...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	if !token.Valid || claims.Subject == "" {
		return nil, ErrInvalidToken
	}

	return &AccessClaims{
		UserID:   claims.Subject,
		UserType: claims.UserType,
		Issuer:   claims.Issuer,
	}, nil
}
