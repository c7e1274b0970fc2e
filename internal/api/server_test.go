package api

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/stockwise/stockwise-core/internal/audit"
	"github.com/stockwise/stockwise-core/internal/auth"
	"github.com/stockwise/stockwise-core/internal/infrastructure/config"
	"github.com/stockwise/stockwise-core/internal/infrastructure/logging"
	"github.com/stockwise/stockwise-core/internal/inventory"
)

const testSchema = `
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

CREATE TABLE persons (
    id TEXT PRIMARY KEY,
    first_name TEXT NOT NULL,
    last_name TEXT NOT NULL,
    created_at TEXT NOT NULL,
    updated_at TEXT NOT NULL
);

CREATE TABLE product_types (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL UNIQUE,
    created_at TEXT NOT NULL,
    updated_at TEXT NOT NULL
);

CREATE TABLE products (
    id TEXT PRIMARY KEY,
    brand TEXT NOT NULL,
    package_quantity INTEGER NOT NULL DEFAULT 0,
    package_size REAL NOT NULL DEFAULT 0,
    delivered_at TEXT NOT NULL,
    product_type_id TEXT NOT NULL REFERENCES product_types(id) ON DELETE RESTRICT,
    person_id TEXT NOT NULL REFERENCES persons(id) ON DELETE RESTRICT,
    created_at TEXT NOT NULL,
    updated_at TEXT NOT NULL
);

CREATE TABLE audit_logs (
    id TEXT PRIMARY KEY,
    action TEXT NOT NULL,
    entity_type TEXT NOT NULL,
    entity_id TEXT,
    actor TEXT,
    details TEXT,
    created_at TEXT NOT NULL
);
`

const testSecret = "test-secret-key-at-least-32-characters-long"

type testHarness struct {
	srv      *Server
	router   http.Handler
	userRepo auth.UserRepository
	audit    audit.Repository
}

// testServer creates a Server backed by in-memory SQLite with a seeded admin
// (admin/admin-secret-1) and a regular user (clerk/clerk-secret-1).
func testServer(t *testing.T) *testHarness {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:?_foreign_keys=on")
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if _, err := db.Exec(testSchema); err != nil {
		t.Fatalf("failed to create test schema: %v", err)
	}

	log := logging.New(config.LoggingConfig{Level: "error", Format: "text", Output: "stdout"}, "test")

	userRepo := auth.NewUserRepository(db)
	auditRepo := audit.NewSQLiteRepository(db)

	signer, err := auth.NewSigningContext([]byte(testSecret), "stockwise-test", 0, 0)
	if err != nil {
		t.Fatalf("NewSigningContext() error = %v", err)
	}
	authService := auth.NewService(userRepo, signer, log.Logger)

	srv, err := New(Deps{
		Config: config.APIConfig{
			Host: "127.0.0.1",
			Port: 0,
			Timeouts: config.APITimeoutConfig{
				Read:  5,
				Write: 5,
				Idle:  5,
			},
		},
		Logger:          log,
		Auth:            authService,
		UserRepo:        userRepo,
		PersonRepo:      inventory.NewPersonRepository(db),
		ProductTypeRepo: inventory.NewProductTypeRepository(db),
		ProductRepo:     inventory.NewProductRepository(db),
		AuditRepo:       auditRepo,
		Version:         "test",
	})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	// Drain audit entries in the background like Start() would.
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go srv.drainAuditTrail(ctx)

	seedAccount(t, userRepo, "admin", "admin-secret-1", auth.AdminAuthority)
	seedAccount(t, userRepo, "clerk", "clerk-secret-1")

	return &testHarness{
		srv:      srv,
		router:   srv.buildRouter(),
		userRepo: userRepo,
		audit:    auditRepo,
	}
}

func seedAccount(t *testing.T, repo auth.UserRepository, username, password string, authorities ...string) {
	t.Helper()
	ctx := context.Background()

	hash, err := auth.HashPassword(password)
	if err != nil {
		t.Fatalf("HashPassword() error = %v", err)
	}

	user := &auth.User{Username: username, FullName: username, PasswordHash: hash, Enabled: true}
	if err := repo.Create(ctx, user); err != nil {
		t.Fatalf("seeding %q: %v", username, err)
	}
	for _, a := range authorities {
		if err := repo.Grant(ctx, user.ID, a); err != nil {
			t.Fatalf("granting %q to %q: %v", a, username, err)
		}
	}
}

// signIn exchanges credentials for a token pair through the HTTP surface.
func (h *testHarness) signIn(t *testing.T, username, password string) *auth.TokenPair {
	t.Helper()

	body := `{"username":"` + username + `","password":"` + password + `"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/sign-in", strings.NewReader(body))
	w := httptest.NewRecorder()
	h.router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("sign-in status = %d, body: %s", w.Code, w.Body.String())
	}

	var pair auth.TokenPair
	if err := json.Unmarshal(w.Body.Bytes(), &pair); err != nil {
		t.Fatalf("unmarshal token pair: %v", err)
	}
	return &pair
}

// do performs a request with an optional bearer token and returns the recorder.
func (h *testHarness) do(method, path, token, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	h.router.ServeHTTP(w, req)
	return w
}

// ─── Health and Middleware Tests ───────────────────────────────────

func TestHealth(t *testing.T) {
	h := testServer(t)

	w := h.do(http.MethodGet, "/api/v1/health", "", "")
	if w.Code != http.StatusOK {
		t.Errorf("health status = %d, want %d", w.Code, http.StatusOK)
	}

	var resp map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp["status"] != "ok" {
		t.Errorf("status = %v, want ok", resp["status"])
	}
	if resp["version"] != "test" {
		t.Errorf("version = %v, want test", resp["version"])
	}
}

func TestRequestID_Generated(t *testing.T) {
	h := testServer(t)

	w := h.do(http.MethodGet, "/api/v1/health", "", "")
	if w.Header().Get("X-Request-ID") == "" {
		t.Error("expected X-Request-ID header to be set")
	}
}

func TestRequestID_PreservesClient(t *testing.T) {
	h := testServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	req.Header.Set("X-Request-ID", "client-123")
	w := httptest.NewRecorder()
	h.router.ServeHTTP(w, req)

	if got := w.Header().Get("X-Request-ID"); got != "client-123" {
		t.Errorf("X-Request-ID = %q, want %q", got, "client-123")
	}
}

func TestCORS_Preflight(t *testing.T) {
	h := testServer(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/health", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	w := httptest.NewRecorder()
	h.router.ServeHTTP(w, req)

	if w.Code != http.StatusNoContent {
		t.Errorf("preflight status = %d, want %d", w.Code, http.StatusNoContent)
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:3000" {
		t.Errorf("ACAO = %q, want %q", got, "http://localhost:3000")
	}
}

func TestNotFound(t *testing.T) {
	h := testServer(t)

	w := h.do(http.MethodGet, "/api/v1/nonexistent", "", "")
	if w.Code != http.StatusNotFound {
		t.Errorf("unknown route status = %d, want %d", w.Code, http.StatusNotFound)
	}
}

// ─── Sign-In Tests ─────────────────────────────────────────────────

func TestSignIn(t *testing.T) {
	h := testServer(t)

	pair := h.signIn(t, "admin", "admin-secret-1")
	if !pair.Authenticated {
		t.Error("Authenticated should be true")
	}
	if pair.Username != "admin" {
		t.Errorf("Username = %q, want admin", pair.Username)
	}
	if pair.AccessToken == "" || pair.RefreshToken == "" {
		t.Error("token pair should carry both tokens")
	}
}

func TestSignIn_BadJSON(t *testing.T) {
	h := testServer(t)

	w := h.do(http.MethodPost, "/api/v1/auth/sign-in", "", "{not json")
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
}

func TestSignIn_BlankCredentials(t *testing.T) {
	h := testServer(t)

	w := h.do(http.MethodPost, "/api/v1/auth/sign-in", "", `{"username":"","password":""}`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
}

// TestSignIn_EnumerationResistance verifies unknown-user and wrong-password
// rejections produce byte-identical response bodies.
func TestSignIn_EnumerationResistance(t *testing.T) {
	h := testServer(t)

	unknown := h.do(http.MethodPost, "/api/v1/auth/sign-in", "", `{"username":"mallory","password":"whatever-123"}`)
	wrongPass := h.do(http.MethodPost, "/api/v1/auth/sign-in", "", `{"username":"admin","password":"wrong-password"}`)

	if unknown.Code != http.StatusUnauthorized {
		t.Fatalf("unknown user status = %d, want 401", unknown.Code)
	}
	if wrongPass.Code != http.StatusUnauthorized {
		t.Fatalf("wrong password status = %d, want 401", wrongPass.Code)
	}
	if unknown.Body.String() != wrongPass.Body.String() {
		t.Errorf("response bodies differ:\n%s\n%s", unknown.Body.String(), wrongPass.Body.String())
	}
}

// ─── Refresh Tests ─────────────────────────────────────────────────

func TestRefreshToken(t *testing.T) {
	h := testServer(t)
	pair := h.signIn(t, "admin", "admin-secret-1")

	w := h.do(http.MethodPut, "/api/v1/auth/refresh-token/admin", pair.RefreshToken, "")
	if w.Code != http.StatusOK {
		t.Fatalf("refresh status = %d, body: %s", w.Code, w.Body.String())
	}

	var fresh auth.TokenPair
	if err := json.Unmarshal(w.Body.Bytes(), &fresh); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if fresh.AccessToken == "" || fresh.RefreshToken == "" {
		t.Error("refreshed pair should carry both tokens")
	}
}

func TestRefreshToken_AccessTokenRejected(t *testing.T) {
	h := testServer(t)
	pair := h.signIn(t, "admin", "admin-secret-1")

	w := h.do(http.MethodPut, "/api/v1/auth/refresh-token/admin", pair.AccessToken, "")
	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", w.Code, http.StatusUnauthorized)
	}
}

func TestRefreshToken_SubjectMismatch(t *testing.T) {
	h := testServer(t)
	pair := h.signIn(t, "admin", "admin-secret-1")

	w := h.do(http.MethodPut, "/api/v1/auth/refresh-token/clerk", pair.RefreshToken, "")
	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", w.Code, http.StatusUnauthorized)
	}
}

func TestRefreshToken_Garbage(t *testing.T) {
	h := testServer(t)

	w := h.do(http.MethodPut, "/api/v1/auth/refresh-token/admin", "not-a-token", "")
	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", w.Code, http.StatusUnauthorized)
	}
}

// ─── Authorization Gate Tests ──────────────────────────────────────

func TestGate_NoToken(t *testing.T) {
	h := testServer(t)

	w := h.do(http.MethodGet, "/api/v1/products", "", "")
	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", w.Code, http.StatusUnauthorized)
	}
}

func TestGate_MalformedToken(t *testing.T) {
	h := testServer(t)

	w := h.do(http.MethodGet, "/api/v1/products", "garbage.token.here", "")
	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", w.Code, http.StatusUnauthorized)
	}
}

// TestGate_DeniedAttemptAudited verifies a rejected bearer credential lands
// in the audit trail as a denied action.
func TestGate_DeniedAttemptAudited(t *testing.T) {
	h := testServer(t)

	w := h.do(http.MethodGet, "/api/v1/products", "garbage.token.here", "")
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusUnauthorized)
	}

	// Audit writes are drained asynchronously; poll briefly.
	deadline := time.Now().Add(2 * time.Second)
	for {
		result, err := h.audit.List(context.Background(), audit.Filter{Action: audit.ActionDenied})
		if err != nil {
			t.Fatalf("List() error = %v", err)
		}
		if result.Total > 0 {
			if result.Entries[0].EntityType != "token" {
				t.Errorf("entity_type = %q, want %q", result.Entries[0].EntityType, "token")
			}
			return
		}
		if time.Now().After(deadline) {
			t.Fatal("denied attempt never reached the audit trail")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

// TestGate_RefreshTokenRejected verifies a refresh token cannot be used as a
// bearer credential on protected routes.
func TestGate_RefreshTokenRejected(t *testing.T) {
	h := testServer(t)
	pair := h.signIn(t, "admin", "admin-secret-1")

	w := h.do(http.MethodGet, "/api/v1/products", pair.RefreshToken, "")
	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", w.Code, http.StatusUnauthorized)
	}
}

func TestMe(t *testing.T) {
	h := testServer(t)
	pair := h.signIn(t, "admin", "admin-secret-1")

	w := h.do(http.MethodGet, "/api/v1/auth/me", pair.AccessToken, "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body: %s", w.Code, w.Body.String())
	}

	var resp struct {
		Username    string   `json:"username"`
		Authorities []string `json:"authorities"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.Username != "admin" {
		t.Errorf("username = %q, want admin", resp.Username)
	}
	if len(resp.Authorities) != 1 || resp.Authorities[0] != auth.AdminAuthority {
		t.Errorf("authorities = %v, want [ADMIN]", resp.Authorities)
	}
}

func TestAdminOnly_ForbiddenForClerk(t *testing.T) {
	h := testServer(t)
	pair := h.signIn(t, "clerk", "clerk-secret-1")

	w := h.do(http.MethodGet, "/api/v1/users", pair.AccessToken, "")
	if w.Code != http.StatusForbidden {
		t.Errorf("status = %d, want %d", w.Code, http.StatusForbidden)
	}
}

// TestGate_AuthorityChangeVisible verifies the gate binds current grants, not
// the ones embedded in the token.
func TestGate_AuthorityChangeVisible(t *testing.T) {
	h := testServer(t)
	ctx := context.Background()
	pair := h.signIn(t, "clerk", "clerk-secret-1")

	// Clerk has no admin authority: forbidden.
	if w := h.do(http.MethodGet, "/api/v1/users", pair.AccessToken, ""); w.Code != http.StatusForbidden {
		t.Fatalf("pre-grant status = %d, want 403", w.Code)
	}

	clerk, err := h.userRepo.GetByUsername(ctx, "clerk")
	if err != nil {
		t.Fatalf("GetByUsername() error = %v", err)
	}
	if err := h.userRepo.Grant(ctx, clerk.ID, auth.AdminAuthority); err != nil {
		t.Fatalf("Grant() error = %v", err)
	}

	// Same token, new grant: allowed without re-issuing.
	if w := h.do(http.MethodGet, "/api/v1/users", pair.AccessToken, ""); w.Code != http.StatusOK {
		t.Errorf("post-grant status = %d, want 200", w.Code)
	}
}
