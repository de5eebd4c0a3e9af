package main

import (
	"context"
	"fmt"

	"github.com/FocuswithJustin/VocesDelReino/core/verses"
	"github.com/FocuswithJustin/VocesDelReino/internal/anchor"
	"github.com/FocuswithJustin/VocesDelReino/internal/api"
	"github.com/FocuswithJustin/VocesDelReino/internal/bibleapi"
	"github.com/FocuswithJustin/VocesDelReino/internal/completion"
	"github.com/FocuswithJustin/VocesDelReino/internal/config"
	"github.com/FocuswithJustin/VocesDelReino/internal/library"
	"github.com/FocuswithJustin/VocesDelReino/internal/metrics"
	"github.com/FocuswithJustin/VocesDelReino/internal/song"
)

// app holds the components built from a Config.
type app struct {
	cfg       *config.Config
	store     *verses.LazyStore
	lookup    anchor.Lookup
	backend   string
	generator *song.Generator
	library   *library.Library
	metrics   *metrics.Metrics
}

// newStore returns the lazily loaded verse dataset named by cfg. An empty
// dataset path selects the bundled sample.
func newStore(cfg *config.Config) *verses.LazyStore {
	return verses.NewLazy(verses.FileLoader(cfg.Scripture.Dataset), cfg.Scripture.Translation)
}

// newLookup returns the exact-reference backend and its name.
func newLookup(cfg *config.Config, store *verses.LazyStore) (anchor.Lookup, string) {
	if cfg.Scripture.Backend == config.BackendNetwork {
		return bibleapi.New(bibleapi.Options{
			BaseURL:     cfg.Scripture.Network.BaseURL,
			Translation: cfg.Scripture.Network.Translation,
			Timeout:     cfg.GetNetworkTimeout(),
			CacheTTL:    cfg.GetCacheTTL(),
			CacheSize:   cfg.Scripture.Network.CacheSize,
		}), config.BackendNetwork
	}
	return anchor.DatasetLookup{Store: store}, config.BackendDataset
}

// newGenerator wires the resolver and completion backend. m may be nil.
func newGenerator(ctx context.Context, cfg *config.Config, store *verses.LazyStore, lookup anchor.Lookup, m *metrics.Metrics) (*song.Generator, error) {
	client, err := completion.New(ctx, completion.Options{
		Backend: cfg.Completion.Backend,
		Model:   cfg.Completion.Model,
		APIKey:  cfg.Completion.APIKey,
		BaseURL: cfg.Completion.BaseURL,
		Timeout: cfg.GetCompletionTimeout(),
	})
	if err != nil {
		return nil, err
	}

	return &song.Generator{
		Resolver: &anchor.Resolver{
			Lookup:  lookup,
			Search:  store,
			Limit:   cfg.Scripture.CandidateLimit,
			Metrics: m,
		},
		Completion:  client,
		AllowList:   cfg.Scripture.AllowedReferences,
		Temperature: cfg.Completion.Temperature,
		Model:       cfg.Completion.Model,
		Metrics:     m,
	}, nil
}

// openLibrary opens the song library, or returns nil when it is disabled.
func openLibrary(ctx context.Context, cfg *config.Config) (*library.Library, error) {
	if cfg.Library.Path == "" {
		return nil, nil
	}
	lib, err := library.Open(ctx, cfg.Library.Path, cfg.Library.MaxSongs)
	if err != nil {
		return nil, fmt.Errorf("failed to open library: %w", err)
	}
	return lib, nil
}

// buildApp wires every component the server needs.
func buildApp(ctx context.Context, cfg *config.Config) (*app, error) {
	a := &app{cfg: cfg, metrics: metrics.New()}
	a.store = newStore(cfg)
	a.lookup, a.backend = newLookup(cfg, a.store)

	gen, err := newGenerator(ctx, cfg, a.store, a.lookup, a.metrics)
	if err != nil {
		return nil, err
	}
	a.generator = gen

	lib, err := openLibrary(ctx, cfg)
	if err != nil {
		return nil, err
	}
	a.library = lib
	return a, nil
}

// Close releases the library.
func (a *app) Close() error {
	if a.library == nil {
		return nil
	}
	return a.library.Close()
}

// apiConfig maps the file configuration onto the server configuration.
func apiConfig(cfg *config.Config) api.Config {
	return api.Config{
		Port:              cfg.Server.Port,
		RateLimitRequests: cfg.Server.RateLimitRequests,
		RateLimitBurst:    cfg.Server.RateLimitBurst,
		Auth: api.AuthConfig{
			Enabled: len(cfg.Server.APIKeys) > 0,
			APIKeys: cfg.Server.APIKeys,
		},
		TLS: api.TLSConfig{
			Enabled:  cfg.Server.TLS.Enabled,
			CertFile: cfg.Server.TLS.CertFile,
			KeyFile:  cfg.Server.TLS.KeyFile,
		},
		AllowedOrigins: cfg.Server.AllowedOrigins,
		Workers:        cfg.Server.Workers,
		QueueSize:      cfg.Server.QueueSize,
		RequestTimeout: cfg.GetRequestTimeout(),
		Version:        version,
	}
}

// newServer builds the HTTP API over a.
func (a *app) newServer() (*api.Server, error) {
	return api.New(apiConfig(a.cfg), api.Deps{
		Store:            a.store,
		Lookup:           a.lookup,
		ScriptureBackend: a.backend,
		Generator:        a.generator,
		Library:          a.library,
		Metrics:          a.metrics,
	})
}
