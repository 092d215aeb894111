package cache

import (
	"context"

	"github.com/pario-ai/codegen/pkg/completion"
	"github.com/pario-ai/codegen/pkg/models"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"
)

// Memoizer wraps a Completer so identical (prompt, key) pairs reach the
// network at most once while their entry is alive.
type Memoizer struct {
	next  completion.Completer
	store Store
	model string
	group singleflight.Group
}

// NewMemoizer creates a Memoizer. model is folded into every key so a model
// change never serves stale entries.
func NewMemoizer(next completion.Completer, store Store, model string) *Memoizer {
	return &Memoizer{next: next, store: store, model: model}
}

// Complete implements completion.Completer. Only successful completions are
// stored; failures are returned to the caller and retried on the next submit.
func (m *Memoizer) Complete(ctx context.Context, prompt, apiKey string) (*models.Completion, error) {
	key := NewKey(m.model, prompt, apiKey)

	if c, ok := m.store.Get(ctx, key); ok {
		log.Debug().Str("key", key.Fingerprint).Str("prompt_hash", key.PromptHash[:12]).Msg("cache hit")
		hit := *c
		hit.Cached = true
		return &hit, nil
	}

	v, err, shared := m.group.Do(key.String(), func() (any, error) {
		// A flight for this key may have stored its result between our
		// lookup and Do.
		if c, ok := m.store.Get(ctx, key); ok {
			hit := *c
			hit.Cached = true
			return &hit, nil
		}
		c, err := m.next.Complete(ctx, prompt, apiKey)
		if err != nil {
			return nil, err
		}
		if perr := m.store.Put(ctx, key, c); perr != nil {
			log.Warn().Err(perr).Msg("cache put failed")
		}
		out := *c
		out.Cached = false
		return &out, nil
	})
	if err != nil {
		return nil, err
	}
	if shared {
		log.Debug().Str("key", key.Fingerprint).Msg("joined in-flight completion")
	}

	out := *v.(*models.Completion)
	return &out, nil
}

// Stats returns the underlying store's statistics.
func (m *Memoizer) Stats() (models.CacheStats, error) {
	return m.store.Stats()
}
