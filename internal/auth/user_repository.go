package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// UserRepository defines the interface for user account persistence.
// It is a superset of the UserDirectory contract the auth service consumes.
type UserRepository interface {
	UserDirectory

	Create(ctx context.Context, user *User) error
	GetByID(ctx context.Context, id string) (*User, error)
	List(ctx context.Context) ([]User, error)
	Update(ctx context.Context, user *User) error
	UpdatePassword(ctx context.Context, id, passwordHash string) error
	Delete(ctx context.Context, id string) error
	Count(ctx context.Context) (int, error)

	Grant(ctx context.Context, userID, authority string) error
	Revoke(ctx context.Context, userID, authority string) error
	ListAuthorities(ctx context.Context) ([]string, error)
}

// SQLiteUserRepository implements UserRepository using SQLite.
type SQLiteUserRepository struct {
	db *sql.DB
}

// NewUserRepository creates a new SQLite-backed user repository.
func NewUserRepository(db *sql.DB) *SQLiteUserRepository {
	return &SQLiteUserRepository{db: db}
}

const userColumns = "id, username, full_name, password_hash, enabled, created_by, created_at, updated_at"

// Create inserts a new user account. The ID is generated if empty.
func (r *SQLiteUserRepository) Create(ctx context.Context, user *User) error {
	if user.ID == "" {
		user.ID = "usr-" + uuid.NewString()[:8]
	}

	now := time.Now().UTC().Format(time.RFC3339)
	user.CreatedAt, _ = time.Parse(time.RFC3339, now) //nolint:errcheck // format is controlled
	user.UpdatedAt = user.CreatedAt

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO users (id, username, full_name, password_hash, enabled, created_by, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		user.ID, user.Username, user.FullName, user.PasswordHash,
		boolToInt(user.Enabled), nullString(user.CreatedBy), now, now,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrUsernameExists
		}
		return fmt.Errorf("creating user: %w", err)
	}

	return nil
}

// GetByID retrieves a user by their unique ID.
func (r *SQLiteUserRepository) GetByID(ctx context.Context, id string) (*User, error) {
	return r.getUser(ctx, "SELECT "+userColumns+" FROM users WHERE id = ?", id)
}

// GetByUsername retrieves a user by their username.
func (r *SQLiteUserRepository) GetByUsername(ctx context.Context, username string) (*User, error) {
	return r.getUser(ctx, "SELECT "+userColumns+" FROM users WHERE username = ?", username)
}

// AuthoritiesByUsername returns the user's current permission grants in
// description order. A missing user returns ErrUserNotFound; a user with no
// grants returns an empty slice.
func (r *SQLiteUserRepository) AuthoritiesByUsername(ctx context.Context, username string) ([]string, error) {
	var userID string
	err := r.db.QueryRowContext(ctx, "SELECT id FROM users WHERE username = ?", username).Scan(&userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("resolving user: %w", err)
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT p.description FROM permissions p
		 JOIN user_permissions up ON up.permission_id = p.id
		 WHERE up.user_id = ?
		 ORDER BY p.description ASC`, userID)
	if err != nil {
		return nil, fmt.Errorf("querying authorities: %w", err)
	}
	defer rows.Close()

	authorities := []string{}
	for rows.Next() {
		var a string
		if err := rows.Scan(&a); err != nil {
			return nil, fmt.Errorf("scanning authority: %w", err)
		}
		authorities = append(authorities, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating authorities: %w", err)
	}

	return authorities, nil
}

// List returns all users ordered by creation date, each with their current
// authorities attached.
func (r *SQLiteUserRepository) List(ctx context.Context) ([]User, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT "+userColumns+" FROM users ORDER BY created_at ASC, id ASC")
	if err != nil {
		return nil, fmt.Errorf("listing users: %w", err)
	}
	defer rows.Close()

	users := []User{}
	for rows.Next() {
		u, err := scanUserFrom(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, *u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating users: %w", err)
	}

	for i := range users {
		authorities, err := r.AuthoritiesByUsername(ctx, users[i].Username)
		if err != nil {
			return nil, err
		}
		users[i].Authorities = authorities
	}

	return users, nil
}

// Update modifies a user's mutable fields (full_name, enabled).
func (r *SQLiteUserRepository) Update(ctx context.Context, user *User) error {
	now := time.Now().UTC().Format(time.RFC3339)
	user.UpdatedAt, _ = time.Parse(time.RFC3339, now) //nolint:errcheck // format is controlled

	result, err := r.db.ExecContext(ctx,
		`UPDATE users SET full_name = ?, enabled = ?, updated_at = ? WHERE id = ?`,
		user.FullName, boolToInt(user.Enabled), now, user.ID,
	)
	if err != nil {
		return fmt.Errorf("updating user: %w", err)
	}

	rows, _ := result.RowsAffected() //nolint:errcheck // always succeeds on SQLite
	if rows == 0 {
		return ErrUserNotFound
	}
	return nil
}

// UpdatePassword changes a user's password hash.
func (r *SQLiteUserRepository) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	now := time.Now().UTC().Format(time.RFC3339)

	result, err := r.db.ExecContext(ctx,
		`UPDATE users SET password_hash = ?, updated_at = ? WHERE id = ?`,
		passwordHash, now, id,
	)
	if err != nil {
		return fmt.Errorf("updating password: %w", err)
	}

	rows, _ := result.RowsAffected() //nolint:errcheck // always succeeds on SQLite
	if rows == 0 {
		return ErrUserNotFound
	}
	return nil
}

// Delete removes a user account by ID. Permission grants are removed by
// the ON DELETE CASCADE on user_permissions.
func (r *SQLiteUserRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM users WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting user: %w", err)
	}

	rows, _ := result.RowsAffected() //nolint:errcheck // always succeeds on SQLite
	if rows == 0 {
		return ErrUserNotFound
	}
	return nil
}

// Count returns the total number of user accounts.
func (r *SQLiteUserRepository) Count(ctx context.Context) (int, error) {
	var count int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM users").Scan(&count); err != nil {
		return 0, fmt.Errorf("counting users: %w", err)
	}
	return count, nil
}

// Grant attaches an authority to a user, creating the permission row on
// first use. Granting an already-granted authority is a no-op.
func (r *SQLiteUserRepository) Grant(ctx context.Context, userID, authority string) error {
	if _, err := r.GetByID(ctx, userID); err != nil {
		return err
	}

	permID, err := r.ensurePermission(ctx, authority)
	if err != nil {
		return err
	}

	_, err = r.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO user_permissions (user_id, permission_id) VALUES (?, ?)`,
		userID, permID,
	)
	if err != nil {
		return fmt.Errorf("granting authority: %w", err)
	}
	return nil
}

// Revoke removes an authority from a user. Revoking an authority the user
// does not hold returns ErrAuthorityNotGranted.
func (r *SQLiteUserRepository) Revoke(ctx context.Context, userID, authority string) error {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM user_permissions
		 WHERE user_id = ? AND permission_id IN (SELECT id FROM permissions WHERE description = ?)`,
		userID, authority,
	)
	if err != nil {
		return fmt.Errorf("revoking authority: %w", err)
	}

	rows, _ := result.RowsAffected() //nolint:errcheck // always succeeds on SQLite
	if rows == 0 {
		return ErrAuthorityNotGranted
	}
	return nil
}

// ListAuthorities returns all known permission descriptions.
func (r *SQLiteUserRepository) ListAuthorities(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT description FROM permissions ORDER BY description ASC")
	if err != nil {
		return nil, fmt.Errorf("listing authorities: %w", err)
	}
	defer rows.Close()

	authorities := []string{}
	for rows.Next() {
		var a string
		if err := rows.Scan(&a); err != nil {
			return nil, fmt.Errorf("scanning authority: %w", err)
		}
		authorities = append(authorities, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating authorities: %w", err)
	}
	return authorities, nil
}

// ensurePermission returns the ID of the named permission, creating the row
// if it does not already exist.
func (r *SQLiteUserRepository) ensurePermission(ctx context.Context, description string) (string, error) {
	description = strings.TrimSpace(description)
	if description == "" {
		return "", fmt.Errorf("authority description is required")
	}

	var id string
	err := r.db.QueryRowContext(ctx, "SELECT id FROM permissions WHERE description = ?", description).Scan(&id)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("resolving permission: %w", err)
	}

	id = "prm-" + uuid.NewString()[:8]
	now := time.Now().UTC().Format(time.RFC3339)
	if _, err := r.db.ExecContext(ctx,
		"INSERT INTO permissions (id, description, created_at) VALUES (?, ?, ?)",
		id, description, now,
	); err != nil {
		return "", fmt.Errorf("creating permission: %w", err)
	}
	return id, nil
}

// getUser executes a query and scans a single user result.
func (r *SQLiteUserRepository) getUser(ctx context.Context, query string, args ...any) (*User, error) {
	return scanUserFrom(r.db.QueryRowContext(ctx, query, args...))
}

// scanner is an interface for sql.Row and sql.Rows Scan methods.
type scanner interface {
	Scan(dest ...any) error
}

// scanUserFrom scans a user from any scanner (Row or Rows).
func scanUserFrom(s scanner) (*User, error) {
	var u User
	var createdBy sql.NullString
	var enabled int
	var createdAt, updatedAt string

	err := s.Scan(&u.ID, &u.Username, &u.FullName, &u.PasswordHash,
		&enabled, &createdBy, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("scanning user: %w", err)
	}

	u.Enabled = enabled != 0
	if createdBy.Valid {
		u.CreatedBy = createdBy.String
	}
	u.CreatedAt, _ = time.Parse(time.RFC3339, createdAt) //nolint:errcheck // format is controlled
	u.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt) //nolint:errcheck // format is controlled

	return &u, nil
}

// Helper functions.

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// isUniqueViolation checks if a SQLite error is a UNIQUE constraint violation.
func isUniqueViolation(err error) bool {
	return err != nil && (strings.Contains(err.Error(), "UNIQUE constraint failed") ||
		strings.Contains(err.Error(), "unique constraint"))
}
