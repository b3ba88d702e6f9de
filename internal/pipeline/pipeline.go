package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
	"golang.org/x/text/unicode/norm"

	"github.com/ppiankov/discussed/internal/blacklist"
	"github.com/ppiankov/discussed/internal/cache"
	"github.com/ppiankov/discussed/internal/metrics"
	"github.com/ppiankov/discussed/internal/model"
	"github.com/ppiankov/discussed/internal/provider"
	"github.com/ppiankov/discussed/internal/score"
	"github.com/ppiankov/discussed/internal/urlnorm"
)

// ErrUnknownProvider is returned when a comments request names a provider that is not enabled
var ErrUnknownProvider = errors.New("unknown provider")

// Pipeline orchestrates one aggregation request: gate, fan out, merge, score
type Pipeline struct {
	normalizer *urlnorm.Normalizer
	matcher    *blacklist.Matcher
	providers  []provider.Provider
	scorer     *score.Scorer
	dedupe     bool
	newID      func() string

	// Owned resources when built by NewPipeline
	store  cache.Store
	cancel context.CancelFunc
}

// Option customizes a Pipeline
type Option func(*Pipeline)

// WithDedupe drops repeated submitted URLs across slots, keeping the first
func WithDedupe(enabled bool) Option {
	return func(p *Pipeline) {
		p.dedupe = enabled
	}
}

// WithRequestIDFunc overrides request ID generation
func WithRequestIDFunc(fn func() string) Option {
	return func(p *Pipeline) {
		p.newID = fn
	}
}

// New assembles a pipeline from ready collaborators. A nil scorer disables scoring.
func New(normalizer *urlnorm.Normalizer, matcher *blacklist.Matcher, providers []provider.Provider, scorer *score.Scorer, opts ...Option) *Pipeline {
	p := &Pipeline{
		normalizer: normalizer,
		matcher:    matcher,
		providers:  providers,
		scorer:     scorer,
		newID:      uuid.NewString,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Providers returns the enabled provider names in fan-out order
func (p *Pipeline) Providers() []string {
	names := make([]string, len(p.providers))
	for i, prov := range p.providers {
		names[i] = prov.Name()
	}
	return names
}

// Aggregate looks up discussions of rawURL across every enabled provider.
//
// The only returned error is urlnorm.ErrInvalidURL. Blacklisted pages yield a
// blacklisted result without any provider call. Provider failures degrade to an
// empty slot with Error set.
func (p *Pipeline) Aggregate(ctx context.Context, rawURL, title string) (*model.AggregateResult, error) {
	start := time.Now()
	defer func() {
		metrics.AggregateDuration.Observe(time.Since(start).Seconds())
	}()

	// 1. Normalize
	normalized, err := p.normalizer.Normalize(rawURL)
	if err != nil {
		metrics.AggregateRequestsTotal.WithLabelValues("invalid_url").Inc()
		return nil, err
	}

	result := &model.AggregateResult{
		RequestID: p.newID(),
		URL:       normalized.CleanedURL,
		Title:     title,
		Status:    model.StatusOK,
	}

	// 2. Blacklist gate
	if err := p.matcher.Ensure(ctx); err != nil {
		log.Warn().Err(err).Msg("Blacklist unavailable; applying fail mode")
	}
	if p.matcher.IsBlacklisted(normalized.CleanedURL) || p.matcher.IsBlacklisted(normalized.SiteURL) {
		log.Debug().Str("url", normalized.CleanedURL).Msg("Page is blacklisted; skipping providers")
		metrics.BlacklistedTotal.Inc()
		metrics.AggregateRequestsTotal.WithLabelValues(string(model.StatusBlacklisted)).Inc()
		result.Status = model.StatusBlacklisted
		result.Results = []model.ProviderQueryResult{}
		return result, nil
	}

	// 3. Fan out providers x query types; each goroutine owns its slot
	queryTypes := model.QueryTypes()
	slots := make([]model.ProviderQueryResult, len(p.providers)*len(queryTypes))
	var g errgroup.Group
	for i, prov := range p.providers {
		for j, qt := range queryTypes {
			idx := i*len(queryTypes) + j
			g.Go(func() error {
				slots[idx] = p.runQuery(ctx, prov, qt, normalized, title)
				return nil
			})
		}
	}
	_ = g.Wait()

	// 4. Cross-provider dedupe
	if p.dedupe {
		p.dedupeItems(slots)
	}

	// 5. Relevance scoring (soft failure)
	if p.scorer.Enabled() {
		p.scoreSlots(ctx, scoringQuery(title, normalized.CleanedURL), slots)
	}

	result.Results = slots
	metrics.AggregateRequestsTotal.WithLabelValues(string(model.StatusOK)).Inc()
	log.Debug().
		Str("request_id", result.RequestID).
		Str("url", result.URL).
		Int("items", result.ItemCount()).
		Dur("elapsed", time.Since(start)).
		Msg("Aggregation complete")

	return result, nil
}

// runQuery executes one slot and never fails
func (p *Pipeline) runQuery(ctx context.Context, prov provider.Provider, qt model.QueryType, normalized urlnorm.Normalized, title string) model.ProviderQueryResult {
	start := time.Now()
	res, err := provider.Query(ctx, prov, qt, normalized.CleanedURL, normalized.SiteURL, title)
	metrics.RecordProviderQuery(prov.Name(), string(qt), err, time.Since(start))
	if err != nil {
		log.Warn().
			Err(err).
			Str("provider", prov.Name()).
			Str("query_type", string(qt)).
			Msg("Provider query failed; returning empty slot")
		return model.ProviderQueryResult{
			Provider:  prov.Name(),
			QueryType: qt,
			Items:     []model.ResultItem{},
			Error:     err.Error(),
		}
	}

	res.Provider = prov.Name()
	res.QueryType = qt
	if res.Items == nil {
		res.Items = []model.ResultItem{}
	}
	for i := range res.Items {
		res.Items[i].TriggerURL = normalized.CleanedURL
	}
	return res
}

// dedupeItems keeps the first item per normalized submitted URL in slot order
func (p *Pipeline) dedupeItems(slots []model.ProviderQueryResult) {
	seen := make(map[string]struct{})
	for i := range slots {
		kept := slots[i].Items[:0]
		for _, item := range slots[i].Items {
			key := p.dedupeKey(item.SubmittedURL)
			if key != "" {
				if _, dup := seen[key]; dup {
					continue
				}
				seen[key] = struct{}{}
			}
			kept = append(kept, item)
		}
		slots[i].Items = kept
	}
}

// dedupeKey returns "" for items without a submitted URL (text posts); those are always kept
func (p *Pipeline) dedupeKey(submitted string) string {
	submitted = strings.TrimSpace(submitted)
	if submitted == "" {
		return ""
	}
	if n, err := p.normalizer.Normalize(submitted); err == nil {
		submitted = n.CleanedURL
	}
	return strings.TrimSuffix(strings.ToLower(norm.NFKC.String(submitted)), "/")
}

func (p *Pipeline) scoreSlots(ctx context.Context, query string, slots []model.ProviderQueryResult) {
	var g errgroup.Group
	for i := range slots {
		if len(slots[i].Items) == 0 {
			continue
		}
		g.Go(func() error {
			slots[i] = p.scorer.Score(ctx, query, slots[i])
			return nil
		})
	}
	_ = g.Wait()
}

// scoringQuery is the document title, or the page URL when no title was sent
func scoringQuery(title, cleanedURL string) string {
	if q := provider.NormalizeTitle(title); q != "" {
		return q
	}
	return cleanedURL
}

// Comments fetches the bounded comment tree of threadURL from the named provider
func (p *Pipeline) Comments(ctx context.Context, providerName, threadURL string) (*model.Thread, error) {
	for _, prov := range p.providers {
		if prov.Name() != providerName {
			continue
		}
		thread, err := prov.FetchComments(ctx, threadURL)
		if err != nil {
			return nil, fmt.Errorf("comments: %w", err)
		}
		return thread, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownProvider, providerName)
}

// Close stops background work started by NewPipeline and releases the cache store
func (p *Pipeline) Close() error {
	if p.cancel != nil {
		p.cancel()
	}
	if p.store != nil {
		return p.store.Close()
	}
	return nil
}
