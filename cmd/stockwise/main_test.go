package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// TestRun_InvalidConfig verifies run fails with invalid config path.
func TestRun_InvalidConfig(t *testing.T) {
	originalEnv := os.Getenv("STOCKWISE_CONFIG")
	defer os.Setenv("STOCKWISE_CONFIG", originalEnv)

	os.Setenv("STOCKWISE_CONFIG", "/nonexistent/path/config.yaml")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := run(ctx)
	if err == nil {
		t.Fatal("run() should fail with invalid config path")
	}
}

// TestRun_MissingDatabasePath verifies run fails when database path is empty.
func TestRun_MissingDatabasePath(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "test-config.yaml")

	configContent := `
database:
  path: ""
  wal_mode: true
  busy_timeout: 5

api:
  host: "127.0.0.1"
  port: 8080
  timeouts:
    read: 30
    write: 60
    idle: 120

logging:
  level: info
  format: text
  output: stdout

security:
  jwt:
    secret: "test-secret-for-development-only"
    issuer: "stockwise-test"
    access_token_ttl: 60
    refresh_token_ttl: 180

influxdb:
  enabled: false
`
	if err := os.WriteFile(configPath, []byte(configContent), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	originalEnv := os.Getenv("STOCKWISE_CONFIG")
	defer os.Setenv("STOCKWISE_CONFIG", originalEnv)
	os.Setenv("STOCKWISE_CONFIG", configPath)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := run(ctx)
	if err == nil {
		t.Fatal("run() should fail with empty database path")
	}
}

// TestGetConfigPath_Default verifies default config path.
func TestGetConfigPath_Default(t *testing.T) {
	originalEnv := os.Getenv("STOCKWISE_CONFIG")
	defer os.Setenv("STOCKWISE_CONFIG", originalEnv)

	os.Unsetenv("STOCKWISE_CONFIG")

	path := getConfigPath()
	if path != defaultConfigPath {
		t.Errorf("getConfigPath() = %q, want %q", path, defaultConfigPath)
	}
}

// TestGetConfigPath_EnvOverride verifies environment variable override.
func TestGetConfigPath_EnvOverride(t *testing.T) {
	originalEnv := os.Getenv("STOCKWISE_CONFIG")
	defer os.Setenv("STOCKWISE_CONFIG", originalEnv)

	expected := "/custom/path/config.yaml"
	os.Setenv("STOCKWISE_CONFIG", expected)

	path := getConfigPath()
	if path != expected {
		t.Errorf("getConfigPath() = %q, want %q", path, expected)
	}
}
