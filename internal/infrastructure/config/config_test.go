package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return configPath
}

func TestLoad_ValidConfig(t *testing.T) {
	path := writeConfig(t, `
database:
  path: "/tmp/test.db"
  wal_mode: true
  busy_timeout: 5
api:
  host: "127.0.0.1"
  port: 9090
security:
  jwt:
    secret: "test-secret-key-at-least-32-chars!"
    access_token_ttl: 60
    refresh_token_ttl: 180
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Database.Path != "/tmp/test.db" {
		t.Errorf("Database.Path = %q, want %q", cfg.Database.Path, "/tmp/test.db")
	}
	if cfg.API.Port != 9090 {
		t.Errorf("API.Port = %d, want 9090", cfg.API.Port)
	}
	if got := cfg.Security.JWT.AccessTTL(); got != time.Hour {
		t.Errorf("AccessTTL() = %v, want %v", got, time.Hour)
	}
	if got := cfg.Security.JWT.RefreshTTL(); got != 3*time.Hour {
		t.Errorf("RefreshTTL() = %v, want %v", got, 3*time.Hour)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/path/config.yaml")
	if err == nil {
		t.Error("Load() expected error for missing file, got nil")
	}
}

func TestLoad_MissingSecret(t *testing.T) {
	path := writeConfig(t, `
database:
  path: "/tmp/test.db"
`)

	if _, err := Load(path); err == nil {
		t.Error("Load() expected validation error for missing JWT secret, got nil")
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("STOCKWISE_JWT_SECRET", "env-secret")
	t.Setenv("STOCKWISE_DATABASE_PATH", "/tmp/env.db")
	t.Setenv("STOCKWISE_API_PORT", "8181")

	path := writeConfig(t, `
database:
  path: "/tmp/file.db"
security:
  jwt:
    secret: "file-secret"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Security.JWT.Secret != "env-secret" {
		t.Errorf("JWT.Secret = %q, want env override", cfg.Security.JWT.Secret)
	}
	if cfg.Database.Path != "/tmp/env.db" {
		t.Errorf("Database.Path = %q, want env override", cfg.Database.Path)
	}
	if cfg.API.Port != 8181 {
		t.Errorf("API.Port = %d, want 8181", cfg.API.Port)
	}
}

func TestValidate_RefreshShorterThanAccess(t *testing.T) {
	path := writeConfig(t, `
database:
  path: "/tmp/test.db"
security:
  jwt:
    secret: "test-secret"
    access_token_ttl: 60
    refresh_token_ttl: 30
`)

	if _, err := Load(path); err == nil {
		t.Error("Load() expected validation error for refresh TTL shorter than access TTL, got nil")
	}
}

func TestValidate_InfluxDBRequiresURL(t *testing.T) {
	path := writeConfig(t, `
database:
  path: "/tmp/test.db"
security:
  jwt:
    secret: "test-secret"
influxdb:
  enabled: true
`)

	if _, err := Load(path); err == nil {
		t.Error("Load() expected validation error for enabled influxdb without url, got nil")
	}
}

func TestDefaults(t *testing.T) {
	cfg := defaultConfig()

	if cfg.Security.JWT.AccessTokenTTL != 60 {
		t.Errorf("default access_token_ttl = %d, want 60", cfg.Security.JWT.AccessTokenTTL)
	}
	if cfg.Security.JWT.RefreshTokenTTL != 180 {
		t.Errorf("default refresh_token_ttl = %d, want 180", cfg.Security.JWT.RefreshTokenTTL)
	}
	if !cfg.Database.WALMode {
		t.Error("default wal_mode should be true")
	}
}
