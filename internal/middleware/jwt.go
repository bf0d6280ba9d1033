// Package middleware holds the HTTP middleware of the report API: request IDs,
// access logging, rate limiting and bearer-token authentication.
package middleware

import (
	"context"
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"

	"govreport/internal/domain"
)

// TokenValidator turns a bearer token into the principal it identifies.
type TokenValidator interface {
	Validate(ctx context.Context, token string) (domain.ContextPrincipal, error)
}

// HS256Validator validates JWTs signed with a shared HS256 secret. The
// principal name is the email claim when present, otherwise the subject.
type HS256Validator struct {
	secret []byte
}

var _ TokenValidator = (*HS256Validator)(nil)

// NewHS256Validator creates a validator for HS256 tokens.
func NewHS256Validator(secret string) (*HS256Validator, error) {
	if secret == "" {
		return nil, errors.New("JWT secret is required")
	}
	return &HS256Validator{secret: []byte(secret)}, nil
}

// Validate verifies the signature and expiry and extracts the principal.
func (v *HS256Validator) Validate(_ context.Context, token string) (domain.ContextPrincipal, error) {
	claims := jwt.MapClaims{}
	_, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return v.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil {
		return domain.ContextPrincipal{}, fmt.Errorf("token verification failed: %w", err)
	}

	p := domain.ContextPrincipal{}
	if email, ok := claims["email"].(string); ok && email != "" {
		p.Name = email
	} else if sub, err := claims.GetSubject(); err == nil {
		p.Name = sub
	}
	if p.Name == "" {
		return domain.ContextPrincipal{}, errors.New("token has neither email nor sub claim")
	}
	if admin, ok := claims["admin"].(bool); ok {
		p.IsAdmin = admin
	}
	return p, nil
}
