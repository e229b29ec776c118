package internal

import (
	"strings"
	"testing"
)

func TestAuthConfig_DisabledMode(t *testing.T) {
	cfg := AuthConfig{Mode: "disabled", Token: ""}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("disabled mode should pass: %v", err)
	}
	if cfg.AuthEnabled() {
		t.Error("disabled mode should not be enabled")
	}
}

func TestAuthConfig_EmptyModeDefaultsDisabled(t *testing.T) {
	cfg := AuthConfig{Mode: "", Token: ""}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("empty mode should default to disabled: %v", err)
	}
	if cfg.Mode != AuthModeDisabled {
		t.Errorf("mode = %q, want %q", cfg.Mode, AuthModeDisabled)
	}
}

func TestAuthConfig_TokenModeEmptyToken(t *testing.T) {
	cfg := AuthConfig{Mode: "token", Token: ""}
	err := cfg.Validate()
	if err == nil {
		t.Fatal("token mode with empty token should fail")
	}
	if !strings.Contains(err.Error(), "token is empty") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestStorageConfig_UnknownBackend(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Storage.Backend = "mongodb"
	if err := cfg.Validate(); err == nil {
		t.Fatal("unknown backend should fail validation")
	}
}

func TestStorageConfig_SQLiteRequiresPath(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Storage.SQLite.Path = ""
	if err := cfg.Validate(); err == nil {
		t.Fatal("sqlite backend without a path should fail validation")
	}
}

func TestStorageConfig_PostgresRequiresDSN(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Storage.Backend = BackendPostgres
	if err := cfg.Validate(); err == nil {
		t.Fatal("postgres backend without a dsn should fail validation")
	}
	cfg.Storage.Postgres.DSN = "postgres://localhost/othala"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("postgres backend with a dsn should pass: %v", err)
	}
}

func TestStorageConfig_EmbeddingDimBounds(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Storage.EmbeddingDim = 0
	if err := cfg.Validate(); err == nil {
		t.Fatal("zero embedding dimension should fail validation")
	}
}

func TestDefaultConfig_IsValid(t *testing.T) {
	if err := NewDefaultConfig().Validate(); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}
}
