package llm

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/sashabaranov/go-openai"

	"github.com/ppiankov/discussed/internal/fetch"
)

// OpenAIProvider scores pairs by embedding cosine similarity
type OpenAIProvider struct {
	client *openai.Client
	model  openai.EmbeddingModel
}

// NewOpenAIProvider creates a new OpenAI provider
func NewOpenAIProvider(config Config) (*OpenAIProvider, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("OpenAI API key is required")
	}

	clientConfig := openai.DefaultConfig(config.APIKey)
	if config.BaseURL != "" {
		clientConfig.BaseURL = config.BaseURL
	}

	timeout := config.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	clientConfig.HTTPClient = &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			Proxy: fetch.NewProxyFunc(config.HTTPProxy, config.HTTPSProxy),
		},
	}

	model := openai.EmbeddingModel(config.Model)
	if model == "" {
		model = openai.SmallEmbedding3
	}

	return &OpenAIProvider{
		client: openai.NewClientWithConfig(clientConfig),
		model:  model,
	}, nil
}

// Name returns the provider name
func (p *OpenAIProvider) Name() string {
	return "openai"
}

// Score embeds every query and candidate in one request
func (p *OpenAIProvider) Score(ctx context.Context, pairs []Pair) ([]float64, error) {
	inputs, queryIndex := embeddingInputs(pairs)

	resp, err := p.client.CreateEmbeddings(ctx, openai.EmbeddingRequestStrings{
		Input: inputs,
		Model: p.model,
	})
	if err != nil {
		return nil, fmt.Errorf("OpenAI API error: %w", err)
	}

	if len(resp.Data) != len(inputs) {
		return nil, fmt.Errorf("OpenAI returned %d embeddings for %d inputs", len(resp.Data), len(inputs))
	}

	vectors := make([][]float32, len(inputs))
	for _, e := range resp.Data {
		if e.Index < 0 || e.Index >= len(vectors) {
			return nil, fmt.Errorf("OpenAI returned embedding index %d out of range", e.Index)
		}
		vectors[e.Index] = e.Embedding
	}

	return scoreEmbeddings(vectors, queryIndex), nil
}
