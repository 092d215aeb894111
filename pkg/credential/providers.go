package credential

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/BurntSushi/toml"
)

// SecretsFile reads top-level string keys from a TOML secrets file.
// A missing file is treated as an empty store.
type SecretsFile struct {
	path string
}

// NewSecretsFile creates a SecretsFile provider for path.
func NewSecretsFile(path string) *SecretsFile {
	return &SecretsFile{path: path}
}

func (s *SecretsFile) Name() string { return "secrets:" + s.path }

func (s *SecretsFile) Lookup(name string) (string, bool, error) {
	if s.path == "" {
		return "", false, nil
	}
	var secrets map[string]any
	if _, err := toml.DecodeFile(s.path, &secrets); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("decode secrets: %w", err)
	}
	raw, ok := secrets[name]
	if !ok {
		return "", false, nil
	}
	v, ok := raw.(string)
	if !ok {
		return "", false, fmt.Errorf("secret %s is %T, want string", name, raw)
	}
	return v, true, nil
}

// Env reads the process environment. Values from a .env file are visible
// here once godotenv has loaded them.
type Env struct{}

func (Env) Name() string { return "env" }

func (Env) Lookup(name string) (string, bool, error) {
	v, ok := os.LookupEnv(name)
	return v, ok, nil
}

// Static is a fixed map of secrets.
type Static map[string]string

func (Static) Name() string { return "static" }

func (s Static) Lookup(name string) (string, bool, error) {
	v, ok := s[name]
	return v, ok, nil
}
