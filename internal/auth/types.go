package auth

import (
	"errors"
	"regexp"
	"time"
)

// usernamePattern defines the valid format for usernames:
// alphanumeric, dots, hyphens, underscores, 1-64 characters.
var usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9._-]{1,64}$`)

// maxUsernameLength is the maximum allowed username length.
const maxUsernameLength = 64

// IsValidUsername checks if a username meets format requirements.
func IsValidUsername(username string) bool {
	return len(username) <= maxUsernameLength && usernamePattern.MatchString(username)
}

// User is the credential record held by the user directory. It is
// deliberately separate from ClaimSet: the directory owns the stored hash and
// the current authority grants, while a ClaimSet is the immutable snapshot a
// token carries.
type User struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	FullName     string    `json:"full_name"`
	PasswordHash string    `json:"-"` // never serialised
	Enabled      bool      `json:"enabled"`
	CreatedBy    string    `json:"created_by,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`

	// Authorities holds the user's current permission grants when loaded
	// alongside the record. Empty means no grants.
	Authorities []string `json:"authorities,omitempty"`
}

// AdminAuthority is the authority required for user, permission, and audit
// administration endpoints.
const AdminAuthority = "ADMIN"

// Sentinel errors for auth operations.
//
// ErrAuthenticationFailed is the single client-visible failure for both
// unknown usernames and wrong passwords. Never surface ErrUserNotFound or
// ErrSubjectNotFound to a client on an authentication path.
var (
	ErrInvalidRequest       = errors.New("invalid client request: check your parameters")
	ErrAuthenticationFailed = errors.New("invalid username/password supplied")
	ErrTokenMalformed       = errors.New("malformed token")
	ErrSignatureInvalid     = errors.New("invalid token signature")
	ErrTokenExpired         = errors.New("token has expired")
	ErrWrongTokenKind       = errors.New("wrong token kind")
	ErrSubjectNotFound      = errors.New("token subject no longer exists")
	ErrUserNotFound         = errors.New("user not found")
	ErrUserDisabled         = errors.New("user account is disabled")
	ErrUsernameExists       = errors.New("username already exists")
	ErrAuthorityNotGranted  = errors.New("authority not granted")
)
