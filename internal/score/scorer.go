package score

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/ppiankov/discussed/internal/llm"
	"github.com/ppiankov/discussed/internal/metrics"
	"github.com/ppiankov/discussed/internal/model"
)

// RelevanceThreshold is the score below which consumers treat an item as filtered
const RelevanceThreshold = 0.5

// Scorer annotates provider results with relevance scores
type Scorer struct {
	provider llm.Provider
}

// NewScorer creates a scorer; a nil provider disables scoring
func NewScorer(provider llm.Provider) *Scorer {
	return &Scorer{provider: provider}
}

// Enabled reports whether a scoring provider is configured
func (s *Scorer) Enabled() bool {
	return s != nil && s.provider != nil
}

// Score attaches a RelevanceScore to every item in result.
//
// All (query, title) pairs go out in one call and come back zipped by index.
// Empty input is returned as is without a call. Any failure returns result
// unchanged; scoring never blocks a response and never removes items.
func (s *Scorer) Score(ctx context.Context, query string, result model.ProviderQueryResult) model.ProviderQueryResult {
	if !s.Enabled() || len(result.Items) == 0 {
		return result
	}

	pairs := make([]llm.Pair, len(result.Items))
	for i, item := range result.Items {
		pairs[i] = llm.Pair{Query: query, Text: item.Title}
	}

	scores, err := s.provider.Score(ctx, pairs)
	if err == nil && len(scores) != len(pairs) {
		err = fmt.Errorf("got %d scores for %d items", len(scores), len(pairs))
	}
	if err != nil {
		metrics.ScoringFailures.Inc()
		log.Warn().Err(err).
			Str("scorer", s.provider.Name()).
			Str("provider", result.Provider).
			Str("query_type", string(result.QueryType)).
			Msg("Relevance scoring failed; returning unscored results")
		return result
	}

	scored := result
	scored.Items = make([]model.ResultItem, len(result.Items))
	for i, item := range result.Items {
		score := scores[i]
		item.RelevanceScore = &score
		scored.Items[i] = item
	}
	return scored
}

// IsFiltered reports whether a scored item falls below RelevanceThreshold.
// Unscored items are never filtered.
func IsFiltered(item model.ResultItem) bool {
	return item.RelevanceScore != nil && *item.RelevanceScore < RelevanceThreshold
}
