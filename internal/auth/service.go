package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// bearerScheme is the Authorization header scheme prefix.
const bearerScheme = "Bearer "

// UserDirectory is the service's only contract with user persistence:
// resolve a subject string to a credential record and to its current
// authority grants. The SQLite user repository satisfies it; tests use small
// in-memory fakes.
type UserDirectory interface {
	GetByUsername(ctx context.Context, username string) (*User, error)
	AuthoritiesByUsername(ctx context.Context, username string) ([]string, error)
}

// Identity is the verified (subject, authorities) pair the authorization
// gate binds to a request context.
type Identity struct {
	Subject     string
	Authorities []string
}

// HasAuthority reports whether the identity carries the named authority.
func (id *Identity) HasAuthority(name string) bool {
	for _, a := range id.Authorities {
		if a == name {
			return true
		}
	}
	return false
}

// Service implements sign-in, refresh exchange, and access verification over
// a user directory and a signing context. It is stateless and safe for
// concurrent use.
type Service struct {
	directory UserDirectory
	signer    *SigningContext
	logger    *slog.Logger
	now       func() time.Time
}

// NewService creates the authentication service.
func NewService(directory UserDirectory, signer *SigningContext, logger *slog.Logger) *Service {
	return &Service{
		directory: directory,
		signer:    signer,
		logger:    logger,
		now:       time.Now,
	}
}

// SignIn verifies a username/password pair against the user directory and
// mints a token pair on success.
//
// Blank credentials are rejected before any directory lookup. Unknown
// usernames and wrong passwords both return ErrAuthenticationFailed with no
// distinguishing detail; the real reason is logged server-side.
func (s *Service) SignIn(ctx context.Context, username, password string) (*TokenPair, error) {
	if strings.TrimSpace(username) == "" || strings.TrimSpace(password) == "" {
		return nil, ErrInvalidRequest
	}

	user, err := s.directory.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			s.logger.Warn("sign-in rejected", "username", username, "reason", "unknown user")
			return nil, ErrAuthenticationFailed
		}
		return nil, fmt.Errorf("looking up user: %w", err)
	}

	if !user.Enabled {
		s.logger.Warn("sign-in rejected", "username", username, "reason", "account disabled")
		return nil, ErrAuthenticationFailed
	}

	match, err := VerifyPassword(password, user.PasswordHash)
	if err != nil {
		s.logger.Error("password verification failed", "username", username, "error", err)
		return nil, ErrAuthenticationFailed
	}
	if !match {
		s.logger.Warn("sign-in rejected", "username", username, "reason", "wrong password")
		return nil, ErrAuthenticationFailed
	}

	authorities, err := s.directory.AuthoritiesByUsername(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("resolving authorities: %w", err)
	}

	pair, err := s.signer.Issue(user.Username, authorities, s.now())
	if err != nil {
		return nil, fmt.Errorf("issuing token pair: %w", err)
	}

	s.logger.Info("sign-in succeeded", "username", username)
	return pair, nil
}

// Refresh validates a refresh token and mints a brand-new token pair.
//
// The subject is re-resolved in the user directory and the pair is issued
// with the directory's CURRENT authorities, not the token's embedded list.
// Re-resolving on every refresh bounds how long a permission change takes to
// propagate to exactly one access token lifetime, and catches deleted or
// disabled accounts promptly rather than trusting stale claims.
func (s *Service) Refresh(ctx context.Context, username, rawToken string, now time.Time) (*TokenPair, error) {
	if strings.TrimSpace(username) == "" || strings.TrimSpace(rawToken) == "" {
		return nil, ErrInvalidRequest
	}

	claims, kind, err := DecodeToken(StripBearer(rawToken), s.signer.secret)
	if err != nil {
		s.logger.Warn("refresh rejected", "username", username, "reason", err.Error())
		return nil, ErrAuthenticationFailed
	}

	if kind != KindRefresh {
		s.logger.Warn("refresh rejected", "username", username, "reason", "access token presented for refresh")
		return nil, ErrWrongTokenKind
	}

	// Strict admission check: a token expiring exactly now is already invalid.
	if !claims.ExpiresAt.After(now) {
		return nil, ErrTokenExpired
	}

	if claims.Subject != username {
		s.logger.Warn("refresh rejected", "username", username, "reason", "token subject mismatch")
		return nil, ErrAuthenticationFailed
	}

	user, err := s.directory.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			s.logger.Warn("refresh rejected", "username", username, "reason", ErrSubjectNotFound.Error())
			return nil, ErrAuthenticationFailed
		}
		return nil, fmt.Errorf("looking up user: %w", err)
	}
	if !user.Enabled {
		s.logger.Warn("refresh rejected", "username", username, "reason", "account disabled")
		return nil, ErrAuthenticationFailed
	}

	authorities, err := s.directory.AuthoritiesByUsername(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("resolving authorities: %w", err)
	}

	pair, err := s.signer.Issue(user.Username, authorities, now)
	if err != nil {
		return nil, fmt.Errorf("issuing token pair: %w", err)
	}

	s.logger.Info("refresh succeeded", "username", username)
	return pair, nil
}

// VerifyAccess validates a bearer access token and returns the bound
// identity with the subject's current authorities re-resolved from the
// directory.
//
// Failure modes map onto the 401 taxonomy: ErrTokenMalformed and
// ErrSignatureInvalid for structural/cryptographic failures,
// ErrWrongTokenKind for a refresh token presented as a bearer credential,
// ErrTokenExpired past the strict expiry boundary, and ErrSubjectNotFound
// when the account no longer exists.
func (s *Service) VerifyAccess(ctx context.Context, rawToken string, now time.Time) (*Identity, error) {
	claims, kind, err := DecodeToken(StripBearer(rawToken), s.signer.secret)
	if err != nil {
		return nil, err
	}

	if kind != KindAccess {
		return nil, ErrWrongTokenKind
	}

	if !claims.ExpiresAt.After(now) {
		return nil, ErrTokenExpired
	}

	user, err := s.directory.GetByUsername(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, ErrSubjectNotFound
		}
		return nil, fmt.Errorf("looking up subject: %w", err)
	}
	if !user.Enabled {
		return nil, ErrSubjectNotFound
	}

	authorities, err := s.directory.AuthoritiesByUsername(ctx, claims.Subject)
	if err != nil {
		return nil, fmt.Errorf("resolving authorities: %w", err)
	}

	return &Identity{
		Subject:     claims.Subject,
		Authorities: authorities,
	}, nil
}

// StripBearer removes a leading bearer-scheme prefix and surrounding
// whitespace from a raw Authorization header value. Values without the
// prefix are returned trimmed.
func StripBearer(header string) string {
	v := strings.TrimSpace(header)
	scheme := strings.TrimSpace(bearerScheme)
	if strings.EqualFold(v, scheme) {
		return ""
	}
	if len(v) > len(scheme) && strings.EqualFold(v[:len(scheme)], scheme) && v[len(scheme)] == ' ' {
		v = strings.TrimSpace(v[len(scheme):])
	}
	return v
}
