package llm

import (
	"context"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sashabaranov/go-openai"
)

// fakeVectors maps input text to fixed embeddings
var fakeVectors = map[string][]float32{
	"go generics":        {1, 0, 0},
	"Generics in Go":     {0.9, 0.1, 0},
	"Cooking with pasta": {0, 0, 1},
}

func TestOpenAIProvider_Score_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/embeddings" {
			t.Errorf("Expected path /embeddings, got %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer test-key" {
			t.Errorf("Expected Authorization header Bearer test-key, got %s", r.Header.Get("Authorization"))
		}

		var req struct {
			Input []string `json:"input"`
			Model string   `json:"model"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		// One query shared by both pairs is embedded once
		if len(req.Input) != 3 {
			t.Errorf("Expected 3 inputs, got %v", req.Input)
		}

		resp := openai.EmbeddingResponse{Object: "list", Model: openai.SmallEmbedding3}
		// Reverse order to prove results are placed by index
		for i := len(req.Input) - 1; i >= 0; i-- {
			resp.Data = append(resp.Data, openai.Embedding{Object: "embedding", Index: i, Embedding: fakeVectors[req.Input[i]]})
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	provider, err := NewOpenAIProvider(Config{APIKey: "test-key", BaseURL: server.URL, Timeout: 5 * time.Second})
	if err != nil {
		t.Fatalf("Failed to create provider: %v", err)
	}

	scores, err := provider.Score(context.Background(), []Pair{
		{Query: "go generics", Text: "Generics in Go"},
		{Query: "go generics", Text: "Cooking with pasta"},
	})
	if err != nil {
		t.Fatalf("Score failed: %v", err)
	}

	if len(scores) != 2 {
		t.Fatalf("Expected 2 scores, got %d", len(scores))
	}
	if scores[0] < 0.9 {
		t.Errorf("Expected related pair to score high, got %f", scores[0])
	}
	if math.Abs(scores[1]) > 1e-9 {
		t.Errorf("Expected orthogonal pair to score 0, got %f", scores[1])
	}
}

func TestOpenAIProvider_Score_APIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error": {"message": "Invalid API key", "type": "invalid_request_error"}}`))
	}))
	defer server.Close()

	provider, err := NewOpenAIProvider(Config{APIKey: "bad-key", BaseURL: server.URL, Timeout: 5 * time.Second})
	if err != nil {
		t.Fatalf("Failed to create provider: %v", err)
	}

	if _, err := provider.Score(context.Background(), []Pair{{Query: "q", Text: "t"}}); err == nil {
		t.Error("Expected error for 401 response")
	}
}

func TestNewOpenAIProvider_RequiresKey(t *testing.T) {
	if _, err := NewOpenAIProvider(Config{}); err == nil {
		t.Error("Expected error without API key")
	}
}
