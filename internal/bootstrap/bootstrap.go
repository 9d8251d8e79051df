// Package bootstrap wires the form service from configuration. The CLI and
// the API server share it so both run against the same store, lock and
// scorer setup.
package bootstrap

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"onboarding-forms/internal/config"
	"onboarding-forms/internal/datastore"
	"onboarding-forms/internal/formservice"
	"onboarding-forms/internal/lock"
	"onboarding-forms/internal/risk"
	"onboarding-forms/internal/templates"
)

// Components are the wired dependencies. Close releases all of them.
type Components struct {
	Store   datastore.DataStore
	Service *formservice.Service
	closers []func()
}

// Close releases resources in reverse order of acquisition.
func (c *Components) Close() {
	for i := len(c.closers) - 1; i >= 0; i-- {
		c.closers[i]()
	}
	c.closers = nil
}

// Wire opens the data store and builds the service. A Redis URL switches the
// write lock to Redis; a Gemini key switches risk scoring to the model.
func Wire(ctx context.Context, cfg config.Config, log zerolog.Logger) (*Components, error) {
	c := &Components{}

	ds, err := datastore.NewDataStore(cfg.DataStore)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize data store: %w", err)
	}
	c.Store = ds
	c.closers = append(c.closers, func() {
		if err := ds.Close(); err != nil {
			log.Warn().Err(err).Msg("failed to close data store")
		}
	})

	lib, err := templates.Load(cfg.TemplatesDir)
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to load templates: %w", err)
	}

	opts := []formservice.Option{
		formservice.WithTemplates(lib),
		formservice.WithWorkers(cfg.BroadcastWorkers),
	}

	if cfg.RedisURL != "" {
		locker, err := lock.NewRedisLocker(cfg.RedisURL, log)
		if err != nil {
			c.Close()
			return nil, err
		}
		c.closers = append(c.closers, func() { _ = locker.Close() })
		opts = append(opts, formservice.WithLocker(locker))
		log.Info().Msg("using redis write lock")
	}

	scorer, err := risk.NewGeminiScorer(ctx, cfg.GeminiAPIKey, log)
	if err != nil {
		c.Close()
		return nil, err
	}
	if scorer != nil {
		c.closers = append(c.closers, scorer.Close)
		opts = append(opts, formservice.WithScorer(scorer))
		log.Info().Msg("using gemini risk scorer")
	} else {
		opts = append(opts, formservice.WithScorer(risk.Static{}))
	}

	c.Service = formservice.New(ds, log, opts...)
	return c, nil
}
