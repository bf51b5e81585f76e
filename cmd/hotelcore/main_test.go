package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const testSecret = "0123456789abcdef0123456789abcdef"

// TestRun_InvalidConfig verifies run fails with invalid config path.
func TestRun_InvalidConfig(t *testing.T) {
	t.Setenv("HOTELCORE_CONFIG", "/nonexistent/path/config.yaml")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := run(ctx)
	if err == nil {
		t.Fatal("run() should fail with invalid config path")
	}
	if !strings.Contains(err.Error(), "loading config") {
		t.Errorf("error = %v, want loading config failure", err)
	}
}

// TestRun_MissingSecrets verifies run refuses to start without key material.
func TestRun_MissingSecrets(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := writeConfig(t, tmpDir, fmt.Sprintf(`
site:
  id: test-site
database:
  path: %q
api:
  port: 8080
`, filepath.Join(tmpDir, "hotel.db")))

	clearEnvOverrides(t)
	t.Setenv("HOTELCORE_CONFIG", configPath)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := run(ctx)
	if err == nil {
		t.Fatal("run() should fail without secrets")
	}
	if !strings.Contains(err.Error(), "security.jwt.secret") {
		t.Errorf("error = %v, want jwt secret validation failure", err)
	}
}

// TestRun_MissingDatabasePath verifies run fails when database path is invalid.
func TestRun_MissingDatabasePath(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := writeConfig(t, tmpDir, fmt.Sprintf(`
site:
  id: test-site
database:
  path: ""
api:
  port: 8080
security:
  jwt:
    secret: %q
  secret_key: %q
`, testSecret, testSecret))

	clearEnvOverrides(t)
	t.Setenv("HOTELCORE_CONFIG", configPath)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := run(ctx); err == nil {
		t.Fatal("run() should fail with empty database path")
	}
}

// TestRun_StartsAndStops boots the full stack against a temp database and
// shuts it down when the context ends.
func TestRun_StartsAndStops(t *testing.T) {
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "hotel.db")
	port := freePort(t)

	configPath := writeConfig(t, tmpDir, fmt.Sprintf(`
site:
  id: test-site
database:
  path: %q
  wal_mode: true
  busy_timeout: 5
api:
  host: "127.0.0.1"
  port: %d
security:
  jwt:
    secret: %q
  secret_key: %q
  bootstrap_admin_password: "correct-horse-battery"
mqtt:
  enabled: false
influxdb:
  enabled: false
redis:
  enabled: false
logging:
  level: error
`, dbPath, port, testSecret, testSecret))

	clearEnvOverrides(t)
	t.Setenv("HOTELCORE_CONFIG", configPath)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	if err := run(ctx); err != nil {
		t.Fatalf("run() error = %v", err)
	}
	if _, err := os.Stat(dbPath); err != nil {
		t.Errorf("database file not created: %v", err)
	}
}

func TestGetConfigPath(t *testing.T) {
	t.Setenv("HOTELCORE_CONFIG", "")
	if got := getConfigPath(); got != defaultConfigPath {
		t.Errorf("getConfigPath() = %q, want %q", got, defaultConfigPath)
	}

	t.Setenv("HOTELCORE_CONFIG", "/etc/hotelcore/config.yaml")
	if got := getConfigPath(); got != "/etc/hotelcore/config.yaml" {
		t.Errorf("getConfigPath() = %q, want env override", got)
	}
}

func TestHealthFunc(t *testing.T) {
	want := errors.New("down")
	var check healthFunc = func(context.Context) error { return want }

	if err := check.HealthCheck(context.Background()); !errors.Is(err, want) {
		t.Errorf("HealthCheck() = %v, want %v", err, want)
	}
}

// clearEnvOverrides stops the caller's environment leaking into a test config.
func clearEnvOverrides(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"HOTELCORE_DATABASE_PATH", "HOTELCORE_API_HOST", "HOTELCORE_API_PORT",
		"HOTELCORE_JWT_SECRET", "HOTELCORE_SECRET_KEY", "HOTELCORE_BOOTSTRAP_ADMIN_PASSWORD",
	} {
		t.Setenv(key, "")
	}
}

func writeConfig(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, "test-config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("writing config: %v", err)
	}
	return path
}

func freePort(t *testing.T) int {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("finding free port: %v", err)
	}
	defer ln.Close()
	return ln.Addr().(*net.TCPAddr).Port
}
