// Package credential resolves the API key from an ordered list of providers.
package credential

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
)

// ErrMissingCredential is matched by every ConfigError.
var ErrMissingCredential = errors.New("credential not set")

// Provider looks up a named secret.
type Provider interface {
	// Name identifies the provider in logs and errors.
	Name() string
	// Lookup returns the value of name and whether it was present.
	Lookup(name string) (string, bool, error)
}

// ConfigError reports that no provider supplied the credential.
type ConfigError struct {
	Name  string
	Tried []string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("%s not set (checked %s); set it in the secrets file or as an environment variable",
		e.Name, strings.Join(e.Tried, ", "))
}

// Is reports whether target is ErrMissingCredential.
func (e *ConfigError) Is(target error) bool {
	return target == ErrMissingCredential
}

// Resolver evaluates providers in order.
type Resolver struct {
	providers []Provider
}

// NewResolver creates a Resolver over the given providers.
func NewResolver(providers ...Provider) *Resolver {
	return &Resolver{providers: providers}
}

// Default returns the standard chain: secrets file first, then the environment.
func Default(secretsPath string) *Resolver {
	return NewResolver(NewSecretsFile(secretsPath), Env{})
}

// Resolve returns the first non-empty value for name and the provider that
// supplied it. Provider errors abort the search.
func (r *Resolver) Resolve(name string) (string, string, error) {
	tried := make([]string, 0, len(r.providers))
	for _, p := range r.providers {
		tried = append(tried, p.Name())
		v, ok, err := p.Lookup(name)
		if err != nil {
			return "", "", fmt.Errorf("%s: %w", p.Name(), err)
		}
		v = strings.TrimSpace(v)
		if !ok || v == "" {
			log.Debug().Str("provider", p.Name()).Str("name", name).Msg("credential not found")
			continue
		}
		return v, p.Name(), nil
	}
	return "", "", &ConfigError{Name: name, Tried: tried}
}

// Fingerprint returns a short, non-reversible identifier for key.
func Fingerprint(key string) string {
	h := sha256.Sum256([]byte(key))
	return hex.EncodeToString(h[:])[:16]
}
