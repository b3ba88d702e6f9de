package pipeline

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/ppiankov/discussed/internal/blacklist"
	"github.com/ppiankov/discussed/internal/cache"
	"github.com/ppiankov/discussed/internal/fetch"
	"github.com/ppiankov/discussed/internal/llm"
	"github.com/ppiankov/discussed/internal/model"
	"github.com/ppiankov/discussed/internal/provider"
	"github.com/ppiankov/discussed/internal/score"
	"github.com/ppiankov/discussed/internal/urlnorm"
)

// NewPipeline wires a pipeline from configuration.
// Background work (blacklist watch, cache sweep) runs until Close.
func NewPipeline(ctx context.Context, cfg *model.Config) (*Pipeline, error) {
	bgCtx, cancel := context.WithCancel(context.Background())

	// Blacklist
	var source blacklist.Source
	if cfg.Blacklist.File != "" {
		source = blacklist.NewFileSource(cfg.Blacklist.File)
	} else {
		source = blacklist.NewStaticSource(&blacklist.Blacklist{})
	}
	matcher := blacklist.NewMatcher(source, blacklist.ParseFailMode(cfg.Blacklist.FailMode))
	if cfg.Blacklist.Watch && cfg.Blacklist.File != "" {
		if err := matcher.Watch(bgCtx); err != nil {
			log.Warn().Err(err).Str("path", cfg.Blacklist.File).Msg("Blacklist watch unavailable")
		}
	}

	// Shared HTTP client
	opts := []fetch.Option{
		fetch.WithLimiter(fetch.NewLimiter(cfg.RateLimiting.RequestsPerSecond, cfg.RateLimiting.BurstSize)),
	}
	var store cache.Store
	if cfg.Cache.Enabled {
		var err error
		store, err = cache.Open(ctx, cfg.Cache.Backend, cfg.Cache.Dir, cfg.Cache.DSN)
		if err != nil {
			cancel()
			return nil, fmt.Errorf("open cache: %w", err)
		}
		opts = append(opts, fetch.WithCache(cache.New(store), cfg.Cache.Duration))
		go cache.NewSweeper(store, cfg.Cache.SweepInterval).Run(bgCtx)
	}
	client := fetch.New(cfg.HTTP, opts...)

	// Providers
	providers, err := provider.NewRegistry().Build(cfg.Providers.Enabled, cfg, client)
	if err != nil {
		cancel()
		if store != nil {
			_ = store.Close()
		}
		return nil, fmt.Errorf("build providers: %w", err)
	}

	// Relevance scoring is optional and never fatal
	var scorer *score.Scorer
	if cfg.Relevance.Enabled {
		sp, err := llm.NewProvider(llm.ConfigFromModel(cfg.Relevance, cfg.HTTP))
		if err != nil {
			log.Warn().Err(err).Msg("Failed to initialize relevance scoring; continuing without it")
		} else if sp != nil {
			scorer = score.NewScorer(sp)
		}
	}

	p := New(
		urlnorm.New(cfg.Normalizer.ProxyHosts),
		matcher,
		providers,
		scorer,
		WithDedupe(cfg.Aggregator.Dedupe),
	)
	p.store = store
	p.cancel = cancel

	log.Debug().
		Strs("providers", p.Providers()).
		Bool("cache", store != nil).
		Bool("scoring", scorer.Enabled()).
		Msg("Pipeline ready")

	return p, nil
}
