package config

import (
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pario-ai/codegen/pkg/models"
	"gopkg.in/yaml.v3"
)

// Config holds all codegen configuration.
type Config struct {
	Listen     string             `yaml:"listen" validate:"required"`
	DBPath     string             `yaml:"db_path"`
	Model      ModelConfig        `yaml:"model"`
	Credential CredentialConfig   `yaml:"credential"`
	Cache      CacheConfig        `yaml:"cache"`
	Highlight  HighlightConfig    `yaml:"highlight"`
	Usage      UsageConfig        `yaml:"usage"`
	Audit      models.AuditConfig `yaml:"audit"`
}

// ModelConfig identifies the hosted generation endpoint.
// Temperature and the system instruction are fixed and not configurable.
type ModelConfig struct {
	Name    string        `yaml:"name" validate:"required"`
	BaseURL string        `yaml:"base_url" validate:"required,url"`
	Timeout time.Duration `yaml:"timeout" validate:"gte=0"`
}

// CredentialConfig names the API key and where to look for it.
type CredentialConfig struct {
	Name        string `yaml:"name" validate:"required"`
	SecretsPath string `yaml:"secrets_path"`
}

// CacheConfig controls the completion cache.
// TTL and Capacity of zero mean entries live for the whole process.
type CacheConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Backend  string        `yaml:"backend" validate:"oneof=memory sqlite"`
	TTL      time.Duration `yaml:"ttl" validate:"gte=0"`
	Capacity uint64        `yaml:"capacity"`
}

// HighlightConfig controls how generated code is rendered.
type HighlightConfig struct {
	DefaultLanguage string `yaml:"default_language" validate:"required"`
	Detect          bool   `yaml:"detect"`
	Style           string `yaml:"style"`
	LineNumbers     bool   `yaml:"line_numbers"`
}

// UsageConfig controls token usage tracking.
type UsageConfig struct {
	Enabled bool `yaml:"enabled"`
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Listen: ":8501",
		DBPath: "codegen.db",
		Model: ModelConfig{
			Name:    "gemini-2.5-flash",
			BaseURL: "https://generativelanguage.googleapis.com",
		},
		Credential: CredentialConfig{
			Name:        "GEMINI_API_KEY",
			SecretsPath: "secrets.toml",
		},
		Cache: CacheConfig{
			Enabled: true,
			Backend: "memory",
		},
		Highlight: HighlightConfig{
			DefaultLanguage: "python",
			Detect:          true,
			Style:           "monokai",
			LineNumbers:     true,
		},
		Usage: UsageConfig{Enabled: true},
		Audit: models.AuditConfig{
			Enabled:       false,
			DBPath:        "codegen-history.db",
			RetentionDays: 30,
			Include:       []string{"prompts", "responses"},
			MaxBodySize:   8192,
		},
	}
}

// Load reads a YAML config file and expands environment variables.
// An empty path yields the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	expanded := os.ExpandEnv(string(data))

	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

var validate = validator.New()

// Validate checks field constraints on cfg.
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}
