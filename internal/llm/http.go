package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ppiankov/discussed/internal/fetch"
)

// HTTPProvider calls a JSON scoring endpoint: POST [[query, text], ...] -> [score, ...]
type HTTPProvider struct {
	endpoint   string
	apiKey     string
	apiHeader  string
	httpClient *http.Client
}

// NewHTTPProvider creates a provider for a generic scoring endpoint
func NewHTTPProvider(config Config) (*HTTPProvider, error) {
	if config.BaseURL == "" {
		return nil, fmt.Errorf("scoring endpoint URL is required")
	}

	header := config.APIHeader
	if header == "" {
		header = "X-API-Key"
	}

	timeout := config.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}

	return &HTTPProvider{
		endpoint:  strings.TrimSuffix(config.BaseURL, "/"),
		apiKey:    config.APIKey,
		apiHeader: header,
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				Proxy: fetch.NewProxyFunc(config.HTTPProxy, config.HTTPSProxy),
			},
		},
	}, nil
}

// Name returns the provider name
func (p *HTTPProvider) Name() string {
	return "http"
}

// Score posts all pairs in one request
func (p *HTTPProvider) Score(ctx context.Context, pairs []Pair) ([]float64, error) {
	payload := make([][2]string, len(pairs))
	for i, pair := range pairs {
		payload[i] = [2]string{pair.Query, pair.Text}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if p.apiKey != "" {
		req.Header.Set(p.apiHeader, p.apiKey)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API error (%d): %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
	}

	var scores []float64
	if err := json.Unmarshal(respBody, &scores); err != nil {
		return nil, fmt.Errorf("unmarshal response: %w", err)
	}
	if len(scores) != len(pairs) {
		return nil, fmt.Errorf("scoring service returned %d scores for %d pairs", len(scores), len(pairs))
	}

	return scores, nil
}
