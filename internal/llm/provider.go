package llm

import (
	"context"
	"math"
	"time"

	"github.com/ppiankov/discussed/internal/model"
)

// Provider is a relevance scoring service
type Provider interface {
	// Name returns the provider name
	Name() string

	// Score returns one relevance score per pair, in request order
	Score(ctx context.Context, pairs []Pair) ([]float64, error)
}

// Pair is one (query, candidate text) input to a scoring service
type Pair struct {
	Query string
	Text  string
}

// Config holds scoring provider configuration
type Config struct {
	// Provider name: "http", "openai", "ollama", ""
	Provider string

	// Model name (embedding providers)
	Model string

	// APIKey and the header it is sent in (http provider)
	APIKey    string
	APIHeader string

	// BaseURL of the service
	BaseURL string

	Timeout time.Duration

	HTTPProxy  string
	HTTPSProxy string
}

// ConfigFromModel converts the relevance and HTTP settings into a provider config
func ConfigFromModel(rc model.RelevanceConfig, hc model.HTTPConfig) Config {
	return Config{
		Provider:   rc.Provider,
		Model:      rc.Model,
		APIKey:     rc.APIKey,
		APIHeader:  rc.APIHeader,
		BaseURL:    rc.BaseURL,
		Timeout:    rc.Timeout,
		HTTPProxy:  hc.HTTPProxy,
		HTTPSProxy: hc.HTTPSProxy,
	}
}

// cosine returns the cosine similarity of a and b, or 0 for mismatched or zero vectors
func cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// embeddingInputs lays out unique queries followed by every candidate text.
// queryIndex maps each pair to its query's position in inputs.
func embeddingInputs(pairs []Pair) (inputs []string, queryIndex []int) {
	seen := make(map[string]int)
	queryIndex = make([]int, len(pairs))
	for i, p := range pairs {
		idx, ok := seen[p.Query]
		if !ok {
			idx = len(inputs)
			seen[p.Query] = idx
			inputs = append(inputs, p.Query)
		}
		queryIndex[i] = idx
	}
	for _, p := range pairs {
		inputs = append(inputs, p.Text)
	}
	return inputs, queryIndex
}

// scoreEmbeddings zips embeddings laid out by embeddingInputs back into per-pair scores
func scoreEmbeddings(vectors [][]float32, queryIndex []int) []float64 {
	offset := len(vectors) - len(queryIndex)
	scores := make([]float64, len(queryIndex))
	for i, q := range queryIndex {
		scores[i] = cosine(vectors[q], vectors[offset+i])
	}
	return scores
}
