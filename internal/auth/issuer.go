package auth

import (
	"errors"
	"fmt"
	"time"
)

// Default lifetime policy: access tokens live one hour, refresh tokens three
// times that.
const (
	DefaultAccessTTL = time.Hour

	refreshTTLFactor = 3
)

// TokenPair is the response artifact handed to the caller after a successful
// sign-in or refresh exchange. Authenticated is true only when issuance
// succeeded.
type TokenPair struct {
	Username        string    `json:"username"`
	Authenticated   bool      `json:"authenticated"`
	IssuedAt        time.Time `json:"issued_at"`
	AccessExpiresAt time.Time `json:"access_expires_at"`
	AccessToken     string    `json:"access_token"`
	RefreshToken    string    `json:"refresh_token"`
}

// SigningContext holds the process-wide signing state: the shared secret and
// the two lifetime policies. It is created once at startup and read-only
// afterwards, so it may be shared across all concurrent issuance and
// verification calls without locking. The secret is never persisted and
// never logged.
type SigningContext struct {
	secret     []byte
	issuer     string
	accessTTL  time.Duration
	refreshTTL time.Duration
}

// NewSigningContext creates the signing context from the shared secret and
// lifetime policy. A zero accessTTL defaults to one hour; a zero refreshTTL
// defaults to three times the access TTL.
func NewSigningContext(secret []byte, issuer string, accessTTL, refreshTTL time.Duration) (*SigningContext, error) {
	if len(secret) == 0 {
		return nil, errors.New("signing secret is required")
	}
	if accessTTL < 0 || refreshTTL < 0 {
		return nil, errors.New("token lifetimes must not be negative")
	}

	if accessTTL == 0 {
		accessTTL = DefaultAccessTTL
	}
	if refreshTTL == 0 {
		refreshTTL = refreshTTLFactor * accessTTL
	}
	if refreshTTL < accessTTL {
		return nil, errors.New("refresh token lifetime must not be shorter than access token lifetime")
	}

	sc := &SigningContext{
		secret:     make([]byte, len(secret)),
		issuer:     issuer,
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
	}
	copy(sc.secret, secret)
	return sc, nil
}

// AccessTTL returns the configured access token lifetime.
func (sc *SigningContext) AccessTTL() time.Duration {
	return sc.accessTTL
}

// RefreshTTL returns the configured refresh token lifetime.
func (sc *SigningContext) RefreshTTL() time.Duration {
	return sc.refreshTTL
}

// Issue mints a fresh token pair for an authenticated subject.
//
// Authorities are copied by value into both claim sets: later changes to the
// subject's grants do not retroactively affect already-issued tokens. That
// staleness window is bounded by the access TTL because refresh and
// gate-binding both re-resolve current authorities from the directory.
//
// Tokens are stateless and not stored server-side; Issue has no side effects
// beyond computation.
func (sc *SigningContext) Issue(subject string, authorities []string, now time.Time) (*TokenPair, error) {
	if subject == "" {
		return nil, fmt.Errorf("issuing tokens: subject is required")
	}

	// JWT timestamps have second precision; truncate so the claim set
	// round-trips exactly.
	now = now.UTC().Truncate(time.Second)

	granted := append([]string{}, authorities...)
	accessExpiry := now.Add(sc.accessTTL)

	access, err := EncodeToken(ClaimSet{
		Subject:     subject,
		Authorities: granted,
		IssuedAt:    now,
		ExpiresAt:   accessExpiry,
		Issuer:      sc.issuer,
	}, KindAccess, sc.secret)
	if err != nil {
		return nil, fmt.Errorf("issuing access token: %w", err)
	}

	refresh, err := EncodeToken(ClaimSet{
		Subject:     subject,
		Authorities: granted,
		IssuedAt:    now,
		ExpiresAt:   now.Add(sc.refreshTTL),
		Issuer:      sc.issuer,
	}, KindRefresh, sc.secret)
	if err != nil {
		return nil, fmt.Errorf("issuing refresh token: %w", err)
	}

	return &TokenPair{
		Username:        subject,
		Authenticated:   true,
		IssuedAt:        now,
		AccessExpiresAt: accessExpiry,
		AccessToken:     access,
		RefreshToken:    refresh,
	}, nil
}
