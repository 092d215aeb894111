package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	if cfg.Listen != ":8501" {
		t.Errorf("expected :8501, got %s", cfg.Listen)
	}
	if cfg.Model.Name != "gemini-2.5-flash" {
		t.Errorf("expected gemini-2.5-flash, got %s", cfg.Model.Name)
	}
	if cfg.Credential.Name != "GEMINI_API_KEY" {
		t.Errorf("expected GEMINI_API_KEY, got %s", cfg.Credential.Name)
	}
	if cfg.Cache.TTL != 0 {
		t.Errorf("expected no TTL by default, got %v", cfg.Cache.TTL)
	}
	if err := Validate(cfg); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
}

func TestLoad(t *testing.T) {
	t.Setenv("TEST_GEMINI_URL", "http://localhost:9999")

	content := `
listen: ":9090"
db_path: "test.db"
model:
  name: gemini-2.5-pro
  base_url: ${TEST_GEMINI_URL}
  timeout: 45s
credential:
  name: MY_KEY
cache:
  enabled: true
  backend: sqlite
  ttl: 30m
highlight:
  default_language: go
audit:
  enabled: true
  retention_days: 7
`
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}

	if cfg.Listen != ":9090" {
		t.Errorf("expected :9090, got %s", cfg.Listen)
	}
	if cfg.Model.BaseURL != "http://localhost:9999" {
		t.Errorf("env var not expanded: got %s", cfg.Model.BaseURL)
	}
	if cfg.Model.Timeout != 45*time.Second {
		t.Errorf("expected 45s timeout, got %v", cfg.Model.Timeout)
	}
	if cfg.Credential.Name != "MY_KEY" {
		t.Errorf("expected MY_KEY, got %s", cfg.Credential.Name)
	}
	// Unset nested fields keep their defaults.
	if cfg.Credential.SecretsPath != "secrets.toml" {
		t.Errorf("expected default secrets path, got %s", cfg.Credential.SecretsPath)
	}
	if cfg.Cache.Backend != "sqlite" || cfg.Cache.TTL != 30*time.Minute {
		t.Errorf("unexpected cache config: %+v", cfg.Cache)
	}
	if cfg.Highlight.DefaultLanguage != "go" {
		t.Errorf("expected go, got %s", cfg.Highlight.DefaultLanguage)
	}
	if !cfg.Audit.Enabled || cfg.Audit.RetentionDays != 7 {
		t.Errorf("unexpected audit config: %+v", cfg.Audit)
	}
}

func TestLoadEmptyPath(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Listen != Default().Listen {
		t.Errorf("expected defaults, got %+v", cfg)
	}
}

func TestLoadMissing(t *testing.T) {
	_, err := Load("/nonexistent/config.yaml")
	if err == nil {
		t.Error("expected error for missing file")
	}
}

func TestLoadInvalid(t *testing.T) {
	content := `
cache:
  backend: redis
`
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Error("expected validation error for unknown cache backend")
	}
}
