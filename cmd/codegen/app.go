package main

import (
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/pario-ai/codegen/pkg/audit"
	"github.com/pario-ai/codegen/pkg/cache"
	"github.com/pario-ai/codegen/pkg/cache/memory"
	cachesqlite "github.com/pario-ai/codegen/pkg/cache/sqlite"
	"github.com/pario-ai/codegen/pkg/completion"
	"github.com/pario-ai/codegen/pkg/config"
	"github.com/pario-ai/codegen/pkg/credential"
	"github.com/pario-ai/codegen/pkg/generator"
	"github.com/pario-ai/codegen/pkg/tracker"
)

// app holds the wired dependencies shared by serve and generate.
type app struct {
	cfg     *config.Config
	store   cache.Store
	memo    *cache.Memoizer
	tracker *tracker.SQLiteTracker
	auditor *audit.Logger
	gen     *generator.Service
	closers []func() error
}

// newApp resolves the credential first so a missing key stops startup
// before anything is opened.
func newApp(cfg *config.Config) (*app, error) {
	apiKey, source, err := credential.Default(cfg.Credential.SecretsPath).Resolve(cfg.Credential.Name)
	if err != nil {
		return nil, err
	}
	log.Info().
		Str("credential", cfg.Credential.Name).
		Str("source", source).
		Str("fingerprint", credential.Fingerprint(apiKey)).
		Msg("credential resolved")

	a := &app{cfg: cfg}

	var c completion.Completer = completion.NewGemini(cfg.Model.BaseURL, cfg.Model.Name, cfg.Model.Timeout)

	if cfg.Cache.Enabled {
		a.store, err = newStore(cfg)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, a.store.Close)
		a.memo = cache.NewMemoizer(c, a.store, cfg.Model.Name)
		c = a.memo
	}

	var opts []generator.Option
	if cfg.Usage.Enabled {
		a.tracker, err = tracker.New(cfg.DBPath)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("init tracker: %w", err)
		}
		a.closers = append(a.closers, a.tracker.Close)
		opts = append(opts, generator.WithTracker(a.tracker))
	}
	if cfg.Audit.Enabled {
		a.auditor, err = audit.New(cfg.Audit)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("init history: %w", err)
		}
		a.closers = append(a.closers, a.auditor.Close)
		opts = append(opts, generator.WithAuditor(a.auditor))
	}

	a.gen = generator.New(c, apiKey, cfg.Model.Name, opts...)
	return a, nil
}

func newStore(cfg *config.Config) (cache.Store, error) {
	switch cfg.Cache.Backend {
	case "sqlite":
		s, err := cachesqlite.New(cfg.DBPath, cfg.Cache.TTL)
		if err != nil {
			return nil, fmt.Errorf("init cache: %w", err)
		}
		return s, nil
	default:
		return memory.New(cfg.Cache.TTL, cfg.Cache.Capacity), nil
	}
}

// Close releases resources in reverse order of creation.
func (a *app) Close() {
	if a.gen != nil {
		a.gen.Wait()
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			log.Warn().Err(err).Msg("close")
		}
	}
}
