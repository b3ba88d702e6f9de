package score

import (
	"context"
	"errors"
	"testing"

	"github.com/ppiankov/discussed/internal/llm"
	"github.com/ppiankov/discussed/internal/model"
)

// stubProvider returns canned scores and counts calls
type stubProvider struct {
	scores []float64
	err    error
	calls  int
	pairs  []llm.Pair
}

func (p *stubProvider) Name() string { return "stub" }

func (p *stubProvider) Score(ctx context.Context, pairs []llm.Pair) ([]float64, error) {
	p.calls++
	p.pairs = pairs
	return p.scores, p.err
}

func sampleResult() model.ProviderQueryResult {
	return model.ProviderQueryResult{
		Provider:  "hackernews",
		QueryType: model.QueryTitle,
		Items: []model.ResultItem{
			{Title: "Generics in Go"},
			{Title: "Cooking with pasta"},
		},
	}
}

func TestScorer_AttachesScoresByIndex(t *testing.T) {
	stub := &stubProvider{scores: []float64{0.92, 0.12}}
	scorer := NewScorer(stub)

	in := sampleResult()
	out := scorer.Score(context.Background(), "go generics", in)

	if stub.calls != 1 {
		t.Errorf("expected exactly one batched call, got %d", stub.calls)
	}
	if len(stub.pairs) != 2 || stub.pairs[1].Query != "go generics" || stub.pairs[1].Text != "Cooking with pasta" {
		t.Errorf("unexpected pairs: %+v", stub.pairs)
	}
	if *out.Items[0].RelevanceScore != 0.92 || *out.Items[1].RelevanceScore != 0.12 {
		t.Errorf("scores not zipped by index: %v %v", *out.Items[0].RelevanceScore, *out.Items[1].RelevanceScore)
	}
	if in.Items[0].RelevanceScore != nil {
		t.Error("input result was mutated")
	}

	if IsFiltered(out.Items[0]) || !IsFiltered(out.Items[1]) {
		t.Error("threshold classification is wrong")
	}
}

func TestScorer_EmptyInputSkipsCall(t *testing.T) {
	stub := &stubProvider{}
	scorer := NewScorer(stub)

	in := model.ProviderQueryResult{Provider: "reddit", QueryType: model.QueryExactURL, Items: []model.ResultItem{}}
	out := scorer.Score(context.Background(), "q", in)

	if stub.calls != 0 {
		t.Errorf("expected no call for empty input, got %d", stub.calls)
	}
	if out.Provider != "reddit" || len(out.Items) != 0 {
		t.Errorf("expected input returned unchanged, got %+v", out)
	}
}

func TestScorer_SoftFailure(t *testing.T) {
	tests := []struct {
		name string
		stub *stubProvider
	}{
		{"service error", &stubProvider{err: errors.New("connection refused")}},
		{"length mismatch", &stubProvider{scores: []float64{0.5}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := NewScorer(tt.stub).Score(context.Background(), "q", sampleResult())

			if len(out.Items) != 2 {
				t.Fatalf("expected same length, got %d", len(out.Items))
			}
			for _, item := range out.Items {
				if item.RelevanceScore != nil {
					t.Error("expected no relevance score after failure")
				}
			}
		})
	}
}

func TestScorer_Disabled(t *testing.T) {
	var nilScorer *Scorer
	if nilScorer.Enabled() {
		t.Error("nil scorer must report disabled")
	}

	out := NewScorer(nil).Score(context.Background(), "q", sampleResult())
	if out.Items[0].RelevanceScore != nil {
		t.Error("disabled scorer must not annotate")
	}
}

func TestIsFiltered_Unscored(t *testing.T) {
	if IsFiltered(model.ResultItem{Title: "x"}) {
		t.Error("unscored items are never filtered")
	}
}
