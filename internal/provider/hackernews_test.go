package provider

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ppiankov/discussed/internal/fetch"
	"github.com/ppiankov/discussed/internal/model"
)

const algoliaSearchFixture = `{
  "hits": [
    {"objectID": "101", "title": "Show HN: Example", "url": "https://example.com/post", "author": "alice",
     "points": 120, "num_comments": 45, "created_at": "2024-05-30T12:00:00.000Z", "created_at_i": 1717070400},
    {"objectID": "102", "title": "Tracker", "url": "https://t.example/?utm_source=example.com/post", "author": "bob",
     "points": 3, "num_comments": 0, "created_at": "2024-05-31T12:00:00.000Z"},
    {"objectID": "103", "title": "Repost", "url": "https://www.example.com/post/", "author": "carol",
     "points": null, "num_comments": null, "created_at_i": 1717156800}
  ]
}`

const algoliaItemFixture = `{
  "id": 101, "type": "story", "author": "alice", "title": "Show HN: Example", "children": [
    {"id": 201, "type": "comment", "author": "dan", "text": "<p>First &amp; short</p>", "created_at_i": 1717074000, "children": []},
    {"id": 202, "type": "comment", "author": "erin", "text": "Busy<p>thread</p>", "created_at_i": 1717074000, "children": [
      {"id": 301, "type": "comment", "author": "fay", "text": "reply", "created_at_i": 1717077600, "children": []},
      {"id": 302, "type": "comment", "author": "gus", "text": "reply 2", "created_at_i": 1717077600, "children": []}
    ]},
    {"id": 203, "type": "comment", "author": null, "text": null, "children": []}
  ]
}`

func newTestHN(t *testing.T, handler http.HandlerFunc) (*HackerNews, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client := fetch.New(model.HTTPConfig{Timeout: 5 * time.Second, UserAgent: "test", MaxBodyBytes: 1 << 20, MaxRetries: 1})
	hn := NewHackerNews(model.HackerNewsConfig{
		APIBaseURL:  server.URL + "/api/v1",
		SiteBaseURL: "https://news.ycombinator.com",
		HitsPerPage: 30,
	}, model.CommentsConfig{MaxComments: 10}, client)
	hn.now = func() time.Time { return time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC) }
	return hn, server
}

func TestHackerNews_ExactURLQueryFilters(t *testing.T) {
	var gotQuery string
	hn, _ := newTestHN(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/search" {
			http.NotFound(w, r)
			return
		}
		gotQuery = r.URL.RawQuery
		_, _ = fmt.Fprint(w, algoliaSearchFixture)
	})

	result, err := hn.ExactURLQuery(context.Background(), "example.com/post")
	if err != nil {
		t.Fatalf("ExactURLQuery failed: %v", err)
	}

	if !strings.Contains(gotQuery, "restrictSearchableAttributes=url") {
		t.Errorf("expected url-restricted search, got %q", gotQuery)
	}
	if result.Provider != HackerNewsName || result.QueryType != model.QueryExactURL {
		t.Errorf("unexpected slot identity: %s/%s", result.Provider, result.QueryType)
	}
	if len(result.Items) != 2 {
		t.Fatalf("expected 2 items after exact-URL filter, got %d", len(result.Items))
	}

	first := result.Items[0]
	if first.Title != "Show HN: Example" || first.Points != 120 || first.CommentCount != 45 {
		t.Errorf("unexpected first item: %+v", first)
	}
	if first.CommentsLink != "https://news.ycombinator.com/item?id=101" {
		t.Errorf("unexpected comments link: %s", first.CommentsLink)
	}
	if first.Age != "2 days ago" {
		t.Errorf("unexpected age: %q", first.Age)
	}
	if !strings.HasPrefix(first.RequestURL, hn.apiBase+"/search?") {
		t.Errorf("request URL not recorded: %s", first.RequestURL)
	}
	if result.Items[1].Title != "Repost" || result.Items[1].Points != 0 {
		t.Errorf("unexpected second item: %+v", result.Items[1])
	}
}

func TestHackerNews_TitleQuery(t *testing.T) {
	var gotTags, gotQuery string
	hn, _ := newTestHN(t, func(w http.ResponseWriter, r *http.Request) {
		gotTags = r.URL.Query().Get("tags")
		gotQuery = r.URL.Query().Get("query")
		_, _ = fmt.Fprint(w, algoliaSearchFixture)
	})

	result, err := hn.TitleQuery(context.Background(), "  Show   HN:\tExample ")
	if err != nil {
		t.Fatalf("TitleQuery failed: %v", err)
	}
	if gotTags != "story" || gotQuery != "Show HN: Example" {
		t.Errorf("unexpected title query: tags=%q query=%q", gotTags, gotQuery)
	}
	if len(result.Items) != 3 {
		t.Errorf("title query must not apply the URL filter, got %d items", len(result.Items))
	}
}

func TestHackerNews_EmptyTitleSkipsRequest(t *testing.T) {
	var calls atomic.Int32
	hn, _ := newTestHN(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		_, _ = fmt.Fprint(w, `{"hits":[]}`)
	})

	result, err := hn.TitleQuery(context.Background(), "   ")
	if err != nil {
		t.Fatal(err)
	}
	if result.Items == nil || len(result.Items) != 0 {
		t.Errorf("expected empty non-nil items, got %v", result.Items)
	}
	if calls.Load() != 0 {
		t.Errorf("expected no request for empty title, got %d", calls.Load())
	}
}

func TestHackerNews_NoHitsIsEmptyNotError(t *testing.T) {
	hn, _ := newTestHN(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = fmt.Fprint(w, `{"hits":[]}`)
	})

	result, err := hn.SiteURLQuery(context.Background(), "example.com")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(result.Items) != 0 {
		t.Errorf("expected no items, got %d", len(result.Items))
	}
}

func TestHackerNews_Errors(t *testing.T) {
	hn, _ := newTestHN(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("query") == "broken" {
			_, _ = fmt.Fprint(w, `{"hits": [`)
			return
		}
		w.WriteHeader(http.StatusForbidden)
	})

	if _, err := hn.SiteURLQuery(context.Background(), "example.com"); !errors.Is(err, ErrTransport) {
		t.Errorf("expected ErrTransport, got %v", err)
	}
	if _, err := hn.SiteURLQuery(context.Background(), "broken"); !errors.Is(err, ErrParse) {
		t.Errorf("expected ErrParse, got %v", err)
	}
}

func TestHackerNews_FetchComments(t *testing.T) {
	hn, _ := newTestHN(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/items/101" {
			http.NotFound(w, r)
			return
		}
		_, _ = fmt.Fprint(w, algoliaItemFixture)
	})

	thread, err := hn.FetchComments(context.Background(), "https://news.ycombinator.com/item?id=101")
	if err != nil {
		t.Fatalf("FetchComments failed: %v", err)
	}

	if len(thread.Comments) != 2 {
		t.Fatalf("expected 2 comments (deleted one skipped), got %d", len(thread.Comments))
	}

	// Ranked by descendant count, replies cut at the default depth
	busy := thread.Comments[0]
	if busy.Author != "erin" || busy.ReplyCount != 2 || len(busy.Children) != 0 {
		t.Errorf("unexpected first comment: %+v", busy)
	}
	if busy.Text != "Busy\n\nthread" {
		t.Errorf("unexpected text: %q", busy.Text)
	}
	if thread.Comments[1].Text != "First & short" {
		t.Errorf("unexpected text: %q", thread.Comments[1].Text)
	}
	if busy.Permalink != "https://news.ycombinator.com/item?id=202" {
		t.Errorf("unexpected permalink: %s", busy.Permalink)
	}
}

func TestHNItemID(t *testing.T) {
	if id, err := hnItemID("https://news.ycombinator.com/item?id=42"); err != nil || id != "42" {
		t.Errorf("got %q, %v", id, err)
	}
	if id, err := hnItemID("42"); err != nil || id != "42" {
		t.Errorf("got %q, %v", id, err)
	}
	if _, err := hnItemID("https://news.ycombinator.com/news"); err == nil {
		t.Error("expected error for link without id")
	}
}
