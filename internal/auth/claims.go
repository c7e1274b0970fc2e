package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenKind discriminates access tokens from refresh tokens. The kind is
// carried inside the signed payload, so it cannot be altered without
// invalidating the signature.
type TokenKind string

const (
	// KindAccess is a short-lived credential authorising API calls.
	KindAccess TokenKind = "access"

	// KindRefresh is a longer-lived credential usable only to mint a new
	// access/refresh pair.
	KindRefresh TokenKind = "refresh"
)

// ClaimSet is the immutable set of facts a token asserts: who it represents,
// what it authorises, and when it is valid. Timestamps are carried on the
// wire as integer epoch seconds.
type ClaimSet struct {
	Subject     string
	Authorities []string
	IssuedAt    time.Time
	ExpiresAt   time.Time
	Issuer      string
}

// tokenClaims is the wire shape of a signed token payload. The `typ` kind
// claim rides alongside the registered claims and the `roles` authority list.
type tokenClaims struct {
	jwt.RegisteredClaims
	Roles []string  `json:"roles"`
	Kind  TokenKind `json:"typ"`
}

// EncodeToken serialises a ClaimSet into a signed compact token string using
// HMAC-SHA256 over the canonical JWT encoding. Pure computation, no side
// effects.
func EncodeToken(claims ClaimSet, kind TokenKind, secret []byte) (string, error) {
	if claims.Subject == "" {
		return "", fmt.Errorf("encoding token: subject is required")
	}
	if !claims.ExpiresAt.After(claims.IssuedAt) {
		return "", fmt.Errorf("encoding token: expiry %v not after issuance %v",
			claims.ExpiresAt, claims.IssuedAt)
	}

	wire := tokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   claims.Subject,
			Issuer:    claims.Issuer,
			IssuedAt:  jwt.NewNumericDate(claims.IssuedAt),
			ExpiresAt: jwt.NewNumericDate(claims.ExpiresAt),
		},
		Roles: append([]string{}, claims.Authorities...),
		Kind:  kind,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, wire)
	signed, err := token.SignedString(secret)
	if err != nil {
		return "", fmt.Errorf("signing token: %w", err)
	}
	return signed, nil
}

// DecodeToken parses a token string, verifies its HMAC-SHA256 signature
// (constant-time comparison inside the MAC check), and returns the embedded
// ClaimSet and kind.
//
// DecodeToken checks structural and cryptographic validity only. Expiry is
// deliberately NOT validated here: the expiry admission check belongs to the
// caller (issuer, refresh exchanger, authorization gate), which compare
// ExpiresAt against their own clock.
//
// Failure modes: ErrTokenMalformed for structurally invalid input,
// ErrSignatureInvalid for a MAC mismatch.
func DecodeToken(token string, secret []byte) (ClaimSet, TokenKind, error) {
	parsed, err := jwt.ParseWithClaims(token, &tokenClaims{},
		func(_ *jwt.Token) (any, error) { return secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithoutClaimsValidation(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenSignatureInvalid) {
			return ClaimSet{}, "", fmt.Errorf("%w: %w", ErrSignatureInvalid, err)
		}
		return ClaimSet{}, "", fmt.Errorf("%w: %w", ErrTokenMalformed, err)
	}

	wire, ok := parsed.Claims.(*tokenClaims)
	if !ok {
		return ClaimSet{}, "", ErrTokenMalformed
	}

	if wire.Subject == "" {
		return ClaimSet{}, "", fmt.Errorf("%w: missing subject", ErrTokenMalformed)
	}
	if wire.IssuedAt == nil || wire.ExpiresAt == nil {
		return ClaimSet{}, "", fmt.Errorf("%w: missing timestamps", ErrTokenMalformed)
	}
	if wire.Kind != KindAccess && wire.Kind != KindRefresh {
		return ClaimSet{}, "", fmt.Errorf("%w: missing or unknown token kind", ErrTokenMalformed)
	}

	claims := ClaimSet{
		Subject:     wire.Subject,
		Authorities: wire.Roles,
		IssuedAt:    wire.IssuedAt.Time,
		ExpiresAt:   wire.ExpiresAt.Time,
		Issuer:      wire.Issuer,
	}
	if claims.Authorities == nil {
		claims.Authorities = []string{}
	}

	return claims, wire.Kind, nil
}
