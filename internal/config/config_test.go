package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config file: %v", err)
	}
	return path
}

func TestLoad(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	path := writeConfig(t, `
server:
  port: 9090
auth:
  jwt_secret: test-secret
currency:
  use_external: false
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Port != 9090 {
		t.Errorf("server.port = %d, want 9090", cfg.Server.Port)
	}
	if cfg.Auth.JWTSecret != "test-secret" {
		t.Errorf("auth.jwt_secret = %q", cfg.Auth.JWTSecret)
	}

	// Unset keys fall back to defaults.
	if cfg.Server.Host != "0.0.0.0" {
		t.Errorf("server.host = %q, want default", cfg.Server.Host)
	}
	if cfg.Auth.TokenTTL != 24*time.Hour {
		t.Errorf("auth.token_ttl = %v, want 24h", cfg.Auth.TokenTTL)
	}
	if cfg.Database.MigrationsDir != "migrations" {
		t.Errorf("database.migrations_dir = %q, want default", cfg.Database.MigrationsDir)
	}
	if cfg.Currency.UseExternal {
		t.Error("currency.use_external = true, want false")
	}
}

func TestLoad_MissingJWTSecret(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	path := writeConfig(t, `
server:
  port: 8080
`)

	if _, err := Load(path); err == nil {
		t.Fatal("Load() expected error without auth.jwt_secret")
	}
}

func TestLoad_SecretFromEnv(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)
	t.Setenv("AUTH_JWT_SECRET", "env-secret")

	path := writeConfig(t, `
server:
  port: 8080
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Auth.JWTSecret != "env-secret" {
		t.Errorf("auth.jwt_secret = %q, want env-secret", cfg.Auth.JWTSecret)
	}
}
