package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/ppiankov/discussed/internal/model"
	"github.com/ppiankov/discussed/internal/pipeline"
	"github.com/ppiankov/discussed/internal/urlnorm"
)

// fakeEngine records requests and returns canned responses
type fakeEngine struct {
	gotURL, gotTitle string
	aggErr           error
	commentsErr      error
}

func (f *fakeEngine) Aggregate(ctx context.Context, rawURL, title string) (*model.AggregateResult, error) {
	f.gotURL, f.gotTitle = rawURL, title
	if f.aggErr != nil {
		return nil, f.aggErr
	}
	return &model.AggregateResult{
		RequestID: "req-1",
		URL:       "example.com/post",
		Title:     title,
		Status:    model.StatusOK,
		Results: []model.ProviderQueryResult{
			{
				Provider:  "hackernews",
				QueryType: model.QueryExactURL,
				Items: []model.ResultItem{
					{Title: "A Post", CommentsLink: "https://news.ycombinator.com/item?id=1"},
				},
			},
		},
	}, nil
}

func (f *fakeEngine) Comments(ctx context.Context, providerName, threadURL string) (*model.Thread, error) {
	if f.commentsErr != nil {
		return nil, f.commentsErr
	}
	return &model.Thread{Provider: providerName, URL: threadURL, Comments: []model.Comment{{Author: "alice", Text: "hi"}}}, nil
}

func newTestServer(t *testing.T, engine Engine) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(New(engine, "").Handler())
	t.Cleanup(srv.Close)
	return srv
}

func post(t *testing.T, target, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(target, "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("POST failed: %v", err)
	}
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func TestAggregate_JSON(t *testing.T) {
	engine := &fakeEngine{}
	srv := newTestServer(t, engine)

	resp := post(t, srv.URL+"/v1/aggregate", `{"url": "https://example.com/post", "title": "A Post"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/json" {
		t.Errorf("unexpected content type %q", ct)
	}

	var result model.AggregateResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if result.Status != model.StatusOK || len(result.Results) != 1 {
		t.Errorf("unexpected result %+v", result)
	}
	if engine.gotURL != "https://example.com/post" || engine.gotTitle != "A Post" {
		t.Errorf("engine got %q / %q", engine.gotURL, engine.gotTitle)
	}
}

func TestAggregate_RSS(t *testing.T) {
	srv := newTestServer(t, &fakeEngine{})

	resp := post(t, srv.URL+"/v1/aggregate?format=rss", `{"url": "https://example.com/post"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), "<rss") || !strings.Contains(string(body), "item?id=1") {
		t.Errorf("unexpected RSS body:\n%s", body)
	}
}

func TestAggregate_BadRequests(t *testing.T) {
	tests := []struct {
		name   string
		engine *fakeEngine
		path   string
		body   string
		status int
	}{
		{"malformed json", &fakeEngine{}, "/v1/aggregate", `{"url":`, http.StatusBadRequest},
		{"missing url", &fakeEngine{}, "/v1/aggregate", `{"title": "x"}`, http.StatusBadRequest},
		{"invalid url", &fakeEngine{aggErr: fmt.Errorf("%w: empty", urlnorm.ErrInvalidURL)}, "/v1/aggregate", `{"url": "::"}`, http.StatusBadRequest},
		{"unknown format", &fakeEngine{}, "/v1/aggregate?format=pdf", `{"url": "https://example.com"}`, http.StatusBadRequest},
		{"engine failure", &fakeEngine{aggErr: errors.New("boom")}, "/v1/aggregate", `{"url": "https://example.com"}`, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newTestServer(t, tt.engine)
			resp := post(t, srv.URL+tt.path, tt.body)
			if resp.StatusCode != tt.status {
				t.Errorf("expected %d, got %d", tt.status, resp.StatusCode)
			}
		})
	}
}

func TestAggregate_MethodNotAllowed(t *testing.T) {
	srv := newTestServer(t, &fakeEngine{})

	resp, err := http.Get(srv.URL + "/v1/aggregate")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("expected 405, got %d", resp.StatusCode)
	}
}

func TestComments(t *testing.T) {
	tests := []struct {
		name   string
		engine *fakeEngine
		query  url.Values
		status int
	}{
		{"ok", &fakeEngine{}, url.Values{"provider": {"hackernews"}, "url": {"https://news.ycombinator.com/item?id=1"}}, http.StatusOK},
		{"missing params", &fakeEngine{}, url.Values{"provider": {"hackernews"}}, http.StatusBadRequest},
		{"unknown provider", &fakeEngine{commentsErr: fmt.Errorf("%w: digg", pipeline.ErrUnknownProvider)}, url.Values{"provider": {"digg"}, "url": {"x"}}, http.StatusNotFound},
		{"upstream failure", &fakeEngine{commentsErr: errors.New("timeout")}, url.Values{"provider": {"reddit"}, "url": {"x"}}, http.StatusBadGateway},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newTestServer(t, tt.engine)
			resp, err := http.Get(srv.URL + "/v1/comments?" + tt.query.Encode())
			if err != nil {
				t.Fatal(err)
			}
			defer resp.Body.Close()
			if resp.StatusCode != tt.status {
				t.Errorf("expected %d, got %d", tt.status, resp.StatusCode)
			}
			if tt.status == http.StatusOK {
				var thread model.Thread
				if err := json.NewDecoder(resp.Body).Decode(&thread); err != nil {
					t.Fatal(err)
				}
				if thread.Provider != "hackernews" || len(thread.Comments) != 1 {
					t.Errorf("unexpected thread %+v", thread)
				}
			}
		})
	}
}

func TestHealthAndMetrics(t *testing.T) {
	srv := newTestServer(t, &fakeEngine{})

	for _, path := range []string{"/healthz", "/metrics"} {
		resp, err := http.Get(srv.URL + path)
		if err != nil {
			t.Fatal(err)
		}
		_ = resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Errorf("%s: expected 200, got %d", path, resp.StatusCode)
		}
	}
}

func TestRun_StopsOnCancel(t *testing.T) {
	s := New(&fakeEngine{}, "127.0.0.1:0")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := s.Run(ctx); err != nil {
		t.Errorf("expected clean shutdown, got %v", err)
	}
}
