package auth

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	_ "github.com/mattn/go-sqlite3"
)

const testUserSchema = `
CREATE TABLE users (
    id TEXT PRIMARY KEY,
    username TEXT NOT NULL UNIQUE,
    full_name TEXT NOT NULL DEFAULT '',
    password_hash TEXT NOT NULL,
    enabled INTEGER NOT NULL DEFAULT 1,
    created_by TEXT,
    created_at TEXT NOT NULL,
    updated_at TEXT NOT NULL
);

CREATE TABLE permissions (
    id TEXT PRIMARY KEY,
    description TEXT NOT NULL UNIQUE,
    created_at TEXT NOT NULL
);

CREATE TABLE user_permissions (
    user_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
    permission_id TEXT NOT NULL REFERENCES permissions(id) ON DELETE CASCADE,
    PRIMARY KEY (user_id, permission_id)
);
`

func testRepository(t *testing.T) *SQLiteUserRepository {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:?_foreign_keys=on")
	if err != nil {
		t.Fatalf("opening in-memory database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if _, err := db.Exec(testUserSchema); err != nil {
		t.Fatalf("creating schema: %v", err)
	}

	return NewUserRepository(db)
}

func testUser(username string) *User {
	return &User{
		Username:     username,
		FullName:     "Test User",
		PasswordHash: "$argon2id$v=19$m=65536,t=3,p=1$c2FsdHNhbHRzYWx0c2Fs$aGFzaGhhc2hoYXNoaGFzaGhhc2hoYXNoaGFzaGhhc2g",
		Enabled:      true,
	}
}

func TestUserRepository_CreateAndGet(t *testing.T) {
	repo := testRepository(t)
	ctx := context.Background()

	user := testUser("alice")
	if err := repo.Create(ctx, user); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if user.ID == "" {
		t.Fatal("Create() should generate an ID")
	}

	byID, err := repo.GetByID(ctx, user.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if byID.Username != "alice" {
		t.Errorf("Username = %q, want %q", byID.Username, "alice")
	}
	if !byID.Enabled {
		t.Error("Enabled should round-trip as true")
	}

	byName, err := repo.GetByUsername(ctx, "alice")
	if err != nil {
		t.Fatalf("GetByUsername() error = %v", err)
	}
	if byName.ID != user.ID {
		t.Errorf("ID = %q, want %q", byName.ID, user.ID)
	}
}

func TestUserRepository_DuplicateUsername(t *testing.T) {
	repo := testRepository(t)
	ctx := context.Background()

	if err := repo.Create(ctx, testUser("alice")); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	err := repo.Create(ctx, testUser("alice"))
	if !errors.Is(err, ErrUsernameExists) {
		t.Errorf("Create() duplicate error = %v, want ErrUsernameExists", err)
	}
}

func TestUserRepository_GetMissing(t *testing.T) {
	repo := testRepository(t)
	ctx := context.Background()

	if _, err := repo.GetByUsername(ctx, "nobody"); !errors.Is(err, ErrUserNotFound) {
		t.Errorf("GetByUsername() error = %v, want ErrUserNotFound", err)
	}
	if _, err := repo.GetByID(ctx, "usr-missing"); !errors.Is(err, ErrUserNotFound) {
		t.Errorf("GetByID() error = %v, want ErrUserNotFound", err)
	}
}

func TestUserRepository_Update(t *testing.T) {
	repo := testRepository(t)
	ctx := context.Background()

	user := testUser("alice")
	if err := repo.Create(ctx, user); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	user.FullName = "Alice Admin"
	user.Enabled = false
	if err := repo.Update(ctx, user); err != nil {
		t.Fatalf("Update() error = %v", err)
	}

	got, err := repo.GetByID(ctx, user.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if got.FullName != "Alice Admin" {
		t.Errorf("FullName = %q, want %q", got.FullName, "Alice Admin")
	}
	if got.Enabled {
		t.Error("Enabled should be false after update")
	}

	missing := testUser("ghost")
	missing.ID = "usr-ghost"
	if err := repo.Update(ctx, missing); !errors.Is(err, ErrUserNotFound) {
		t.Errorf("Update() missing error = %v, want ErrUserNotFound", err)
	}
}

func TestUserRepository_UpdatePassword(t *testing.T) {
	repo := testRepository(t)
	ctx := context.Background()

	user := testUser("alice")
	if err := repo.Create(ctx, user); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	newHash, err := HashPassword("rotated")
	if err != nil {
		t.Fatalf("HashPassword() error = %v", err)
	}

	if err := repo.UpdatePassword(ctx, user.ID, newHash); err != nil {
		t.Fatalf("UpdatePassword() error = %v", err)
	}

	got, err := repo.GetByID(ctx, user.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if got.PasswordHash != newHash {
		t.Error("password hash should be replaced")
	}

	if err := repo.UpdatePassword(ctx, "usr-missing", newHash); !errors.Is(err, ErrUserNotFound) {
		t.Errorf("UpdatePassword() missing error = %v, want ErrUserNotFound", err)
	}
}

func TestUserRepository_Delete(t *testing.T) {
	repo := testRepository(t)
	ctx := context.Background()

	user := testUser("alice")
	if err := repo.Create(ctx, user); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if err := repo.Grant(ctx, user.ID, "ADMIN"); err != nil {
		t.Fatalf("Grant() error = %v", err)
	}

	if err := repo.Delete(ctx, user.ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := repo.GetByID(ctx, user.ID); !errors.Is(err, ErrUserNotFound) {
		t.Errorf("GetByID() after delete error = %v, want ErrUserNotFound", err)
	}
	if err := repo.Delete(ctx, user.ID); !errors.Is(err, ErrUserNotFound) {
		t.Errorf("Delete() again error = %v, want ErrUserNotFound", err)
	}
}

func TestUserRepository_Authorities(t *testing.T) {
	repo := testRepository(t)
	ctx := context.Background()

	user := testUser("alice")
	if err := repo.Create(ctx, user); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	// No grants yet: empty slice, not nil, not an error.
	authorities, err := repo.AuthoritiesByUsername(ctx, "alice")
	if err != nil {
		t.Fatalf("AuthoritiesByUsername() error = %v", err)
	}
	if authorities == nil || len(authorities) != 0 {
		t.Errorf("authorities = %v, want empty slice", authorities)
	}

	if err := repo.Grant(ctx, user.ID, "STOCK_WRITE"); err != nil {
		t.Fatalf("Grant() error = %v", err)
	}
	if err := repo.Grant(ctx, user.ID, "ADMIN"); err != nil {
		t.Fatalf("Grant() error = %v", err)
	}
	// Repeated grant is a no-op.
	if err := repo.Grant(ctx, user.ID, "ADMIN"); err != nil {
		t.Fatalf("Grant() repeat error = %v", err)
	}

	authorities, err = repo.AuthoritiesByUsername(ctx, "alice")
	if err != nil {
		t.Fatalf("AuthoritiesByUsername() error = %v", err)
	}
	if len(authorities) != 2 || authorities[0] != "ADMIN" || authorities[1] != "STOCK_WRITE" {
		t.Errorf("authorities = %v, want [ADMIN STOCK_WRITE]", authorities)
	}

	if err := repo.Revoke(ctx, user.ID, "ADMIN"); err != nil {
		t.Fatalf("Revoke() error = %v", err)
	}
	if err := repo.Revoke(ctx, user.ID, "ADMIN"); !errors.Is(err, ErrAuthorityNotGranted) {
		t.Errorf("Revoke() again error = %v, want ErrAuthorityNotGranted", err)
	}

	authorities, err = repo.AuthoritiesByUsername(ctx, "alice")
	if err != nil {
		t.Fatalf("AuthoritiesByUsername() error = %v", err)
	}
	if len(authorities) != 1 || authorities[0] != "STOCK_WRITE" {
		t.Errorf("authorities = %v, want [STOCK_WRITE]", authorities)
	}

	if _, err := repo.AuthoritiesByUsername(ctx, "nobody"); !errors.Is(err, ErrUserNotFound) {
		t.Errorf("AuthoritiesByUsername() missing error = %v, want ErrUserNotFound", err)
	}
}

func TestUserRepository_ListAuthorities(t *testing.T) {
	repo := testRepository(t)
	ctx := context.Background()

	user := testUser("alice")
	if err := repo.Create(ctx, user); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	for _, a := range []string{"STOCK_WRITE", "ADMIN", "STOCK_READ"} {
		if err := repo.Grant(ctx, user.ID, a); err != nil {
			t.Fatalf("Grant(%q) error = %v", a, err)
		}
	}

	all, err := repo.ListAuthorities(ctx)
	if err != nil {
		t.Fatalf("ListAuthorities() error = %v", err)
	}
	want := []string{"ADMIN", "STOCK_READ", "STOCK_WRITE"}
	if len(all) != len(want) {
		t.Fatalf("ListAuthorities() = %v, want %v", all, want)
	}
	for i := range want {
		if all[i] != want[i] {
			t.Errorf("ListAuthorities()[%d] = %q, want %q", i, all[i], want[i])
		}
	}
}

func TestUserRepository_ListAndCount(t *testing.T) {
	repo := testRepository(t)
	ctx := context.Background()

	count, err := repo.Count(ctx)
	if err != nil {
		t.Fatalf("Count() error = %v", err)
	}
	if count != 0 {
		t.Errorf("Count() = %d, want 0", count)
	}

	alice := testUser("alice")
	bob := testUser("bob")
	for _, u := range []*User{alice, bob} {
		if err := repo.Create(ctx, u); err != nil {
			t.Fatalf("Create(%q) error = %v", u.Username, err)
		}
	}
	if err := repo.Grant(ctx, alice.ID, "ADMIN"); err != nil {
		t.Fatalf("Grant() error = %v", err)
	}

	users, err := repo.List(ctx)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(users) != 2 {
		t.Fatalf("List() returned %d users, want 2", len(users))
	}
	for _, u := range users {
		if u.Username == "alice" && (len(u.Authorities) != 1 || u.Authorities[0] != "ADMIN") {
			t.Errorf("alice authorities = %v, want [ADMIN]", u.Authorities)
		}
		if u.Username == "bob" && len(u.Authorities) != 0 {
			t.Errorf("bob authorities = %v, want none", u.Authorities)
		}
	}

	count, err = repo.Count(ctx)
	if err != nil {
		t.Fatalf("Count() error = %v", err)
	}
	if count != 2 {
		t.Errorf("Count() = %d, want 2", count)
	}
}
