package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	for _, k := range []string{"PORT", "DATABASE_DRIVER", "LLM_PROVIDER", "JWT_ACCESS_TTL", "DB_BOOTSTRAP"} {
		t.Setenv(k, "")
	}

	cfg := Load()

	if cfg.Port != 8080 {
		t.Errorf("expected port 8080, got %d", cfg.Port)
	}
	if cfg.DatabaseDriver != "sqlite" {
		t.Errorf("expected sqlite driver, got %s", cfg.DatabaseDriver)
	}
	if cfg.LLMProvider != "none" {
		t.Errorf("expected llm provider none, got %s", cfg.LLMProvider)
	}
	if cfg.JWTAccessTTL != 24*time.Hour {
		t.Errorf("expected 24h access ttl, got %s", cfg.JWTAccessTTL)
	}
	if !cfg.BootstrapSchema {
		t.Error("expected schema bootstrap enabled by default")
	}
}

func TestLoad_NoDefaultJWTSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "")

	cfg := Load()

	if cfg.JWTSecret != "" {
		t.Fatalf("expected empty secret without JWT_SECRET, got %q", cfg.JWTSecret)
	}
	if err := cfg.Validate(); !errors.Is(err, ErrMissingJWTSecret) {
		t.Errorf("expected ErrMissingJWTSecret, got %v", err)
	}
}

func TestValidate_WithJWTSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "from-env")

	if err := Load().Validate(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestLoad_FromEnv(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("DATABASE_DRIVER", "Postgres")
	t.Setenv("AI_REPLY_TIMEOUT", "3s")
	t.Setenv("DB_BOOTSTRAP", "false")
	t.Setenv("MAX_RETRIES", "not-a-number")

	cfg := Load()

	if cfg.Port != 9090 {
		t.Errorf("expected port 9090, got %d", cfg.Port)
	}
	if cfg.DatabaseDriver != "postgres" {
		t.Errorf("expected driver lowercased, got %s", cfg.DatabaseDriver)
	}
	if cfg.AIReplyTimeout != 3*time.Second {
		t.Errorf("expected 3s, got %s", cfg.AIReplyTimeout)
	}
	if cfg.BootstrapSchema {
		t.Error("expected schema bootstrap disabled")
	}
	if cfg.MaxRetries != 3 {
		t.Errorf("expected fallback for invalid int, got %d", cfg.MaxRetries)
	}
}

func TestLoadDotEnv_DoesNotOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	content := "BAZCHAT_TEST_A=from-file\nBAZCHAT_TEST_B=\"quoted\"\n# comment\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("BAZCHAT_TEST_A", "from-env")
	os.Unsetenv("BAZCHAT_TEST_B")
	t.Cleanup(func() { os.Unsetenv("BAZCHAT_TEST_B") })

	if err := LoadDotEnv(path); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got := os.Getenv("BAZCHAT_TEST_A"); got != "from-env" {
		t.Errorf("expected env to win, got %s", got)
	}
	if got := os.Getenv("BAZCHAT_TEST_B"); got != "quoted" {
		t.Errorf("expected quoted value unwrapped, got %s", got)
	}
}

func TestLoadDotEnv_MissingFile(t *testing.T) {
	if err := LoadDotEnv(filepath.Join(t.TempDir(), "nope.env")); err == nil {
		t.Error("expected error for missing file")
	}
}
