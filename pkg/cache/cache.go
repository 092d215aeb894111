// Package cache memoizes completions keyed by prompt and credential.
package cache

import (
	"context"
	"crypto/sha256"
	"fmt"

	"github.com/pario-ai/codegen/pkg/credential"
	"github.com/pario-ai/codegen/pkg/models"
)

// Key identifies a cached completion. The credential is only ever stored
// as a fingerprint.
type Key struct {
	PromptHash  string
	Fingerprint string
}

// NewKey builds the cache key for a prompt sent to model with apiKey.
func NewKey(model, prompt, apiKey string) Key {
	return Key{
		PromptHash:  HashPrompt(model, prompt),
		Fingerprint: credential.Fingerprint(apiKey),
	}
}

func (k Key) String() string {
	return k.Fingerprint + ":" + k.PromptHash
}

// HashPrompt computes a SHA-256 hash of the model and prompt.
func HashPrompt(model, prompt string) string {
	h := sha256.New()
	h.Write([]byte(model))
	h.Write([]byte{0})
	h.Write([]byte(prompt))
	return fmt.Sprintf("%x", h.Sum(nil))
}

// Store persists completions. Implementations must be safe for concurrent use.
type Store interface {
	// Get returns the completion for key, or false if absent or expired.
	Get(ctx context.Context, key Key) (*models.Completion, bool)
	// Put stores c under key, replacing any previous entry.
	Put(ctx context.Context, key Key, c *models.Completion) error
	// Stats returns entry counts and hit/miss counters.
	Stats() (models.CacheStats, error)
	// Clear removes entries. If expiredOnly is true, only expired entries are removed.
	Clear(expiredOnly bool) error
	// Close releases resources.
	Close() error
}
