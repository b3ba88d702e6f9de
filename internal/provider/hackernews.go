package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/net/html"

	"github.com/ppiankov/discussed/internal/model"
)

// HackerNewsName identifies the Hacker News provider
const HackerNewsName = "hackernews"

// HackerNews queries the Algolia Hacker News Search API
type HackerNews struct {
	client      Getter
	apiBase     string
	siteBase    string
	hitsPerPage int
	limits      model.CommentsConfig
	now         func() time.Time
}

// NewHackerNews creates the Hacker News provider
func NewHackerNews(cfg model.HackerNewsConfig, limits model.CommentsConfig, client Getter) *HackerNews {
	return &HackerNews{
		client:      client,
		apiBase:     strings.TrimRight(cfg.APIBaseURL, "/"),
		siteBase:    strings.TrimRight(cfg.SiteBaseURL, "/"),
		hitsPerPage: cfg.HitsPerPage,
		limits:      limits,
		now:         time.Now,
	}
}

// algoliaResponse is the search endpoint payload
type algoliaResponse struct {
	Hits []algoliaHit `json:"hits"`
}

type algoliaHit struct {
	ObjectID    string `json:"objectID"`
	Title       string `json:"title"`
	URL         string `json:"url"`
	Author      string `json:"author"`
	Points      int    `json:"points"`
	NumComments int    `json:"num_comments"`
	CreatedAt   string `json:"created_at"`
	CreatedAtI  int64  `json:"created_at_i"`
}

// algoliaItem is one node of the items endpoint comment tree
type algoliaItem struct {
	ID         int64         `json:"id"`
	Type       string        `json:"type"`
	Author     string        `json:"author"`
	Text       string        `json:"text"`
	Points     *int          `json:"points"`
	CreatedAt  string        `json:"created_at"`
	CreatedAtI int64         `json:"created_at_i"`
	Children   []algoliaItem `json:"children"`
}

func (h *HackerNews) Name() string { return HackerNewsName }

// ExactURLQuery finds stories submitted with exactly cleanedURL
func (h *HackerNews) ExactURLQuery(ctx context.Context, cleanedURL string) (model.ProviderQueryResult, error) {
	params := url.Values{
		"query":                        {cleanedURL},
		"restrictSearchableAttributes": {"url"},
	}
	return h.search(ctx, model.QueryExactURL, params, func(hit algoliaHit) bool {
		return MatchesURL(hit.URL, cleanedURL)
	})
}

// SiteURLQuery finds stories submitted from siteURL's host
func (h *HackerNews) SiteURLQuery(ctx context.Context, siteURL string) (model.ProviderQueryResult, error) {
	params := url.Values{
		"query":                        {siteURL},
		"restrictSearchableAttributes": {"url"},
	}
	return h.search(ctx, model.QuerySiteURL, params, nil)
}

// TitleQuery finds stories matching the document title
func (h *HackerNews) TitleQuery(ctx context.Context, title string) (model.ProviderQueryResult, error) {
	title = NormalizeTitle(title)
	if title == "" {
		return h.empty(model.QueryTitle), nil
	}
	params := url.Values{
		"query": {title},
		"tags":  {"story"},
	}
	return h.search(ctx, model.QueryTitle, params, nil)
}

func (h *HackerNews) empty(qt model.QueryType) model.ProviderQueryResult {
	return model.ProviderQueryResult{Provider: HackerNewsName, QueryType: qt, Items: []model.ResultItem{}}
}

func (h *HackerNews) search(ctx context.Context, qt model.QueryType, params url.Values, keep func(algoliaHit) bool) (model.ProviderQueryResult, error) {
	if h.hitsPerPage > 0 {
		params.Set("hitsPerPage", strconv.Itoa(h.hitsPerPage))
	}
	requestURL := h.apiBase + "/search?" + params.Encode()

	body, err := h.client.Get(ctx, requestURL, "application/json")
	if err != nil {
		return model.ProviderQueryResult{}, fmt.Errorf("%w: hackernews %s: %w", ErrTransport, qt, err)
	}

	var resp algoliaResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return model.ProviderQueryResult{}, fmt.Errorf("%w: hackernews %s: %w", ErrParse, qt, err)
	}

	now := h.now()
	result := h.empty(qt)
	for _, hit := range resp.Hits {
		if keep != nil && !keep(hit) {
			continue
		}

		item := model.ResultItem{
			Source:       HackerNewsName,
			QueryType:    qt,
			RequestURL:   requestURL,
			SubmittedURL: hit.URL,
			Title:        hit.Title,
			Author:       hit.Author,
			Points:       hit.Points,
			CommentCount: hit.NumComments,
			CommentsLink: h.siteBase + "/item?id=" + hit.ObjectID,
		}
		if hit.Author != "" {
			item.AuthorLink = h.siteBase + "/user?id=" + url.QueryEscape(hit.Author)
		}
		if created, ok := parseAlgoliaTime(hit.CreatedAtI, hit.CreatedAt); ok {
			item.CreatedAt = created
			item.Age = TimeSince(created, now)
		} else {
			log.Debug().Str("provider", HackerNewsName).Str("id", hit.ObjectID).Msg("Hit without a usable timestamp")
		}

		result.Items = append(result.Items, item)
	}

	return result, nil
}

// FetchComments loads the item tree behind a news.ycombinator.com/item?id= link
func (h *HackerNews) FetchComments(ctx context.Context, threadURL string) (*model.Thread, error) {
	id, err := hnItemID(threadURL)
	if err != nil {
		return nil, err
	}

	body, err := h.client.Get(ctx, h.apiBase+"/items/"+id, "application/json")
	if err != nil {
		return nil, fmt.Errorf("%w: hackernews comments: %w", ErrTransport, err)
	}

	var root algoliaItem
	if err := json.Unmarshal(body, &root); err != nil {
		return nil, fmt.Errorf("%w: hackernews comments: %w", ErrParse, err)
	}

	comments := h.convertComments(root.Children, h.now())
	return &model.Thread{
		Provider: HackerNewsName,
		URL:      threadURL,
		Comments: BuildCommentTree(comments, h.limits, true),
	}, nil
}

func (h *HackerNews) convertComments(items []algoliaItem, now time.Time) []model.Comment {
	comments := make([]model.Comment, 0, len(items))
	for _, it := range items {
		// Deleted and flagged comments come back with neither author nor text
		if it.Author == "" && it.Text == "" && len(it.Children) == 0 {
			continue
		}

		c := model.Comment{
			Author:    it.Author,
			Text:      htmlToText(it.Text),
			Permalink: h.siteBase + "/item?id=" + strconv.FormatInt(it.ID, 10),
			Score:     it.Points,
			Children:  h.convertComments(it.Children, now),
		}
		if it.Author != "" {
			c.AuthorLink = h.siteBase + "/user?id=" + url.QueryEscape(it.Author)
		}
		if created, ok := parseAlgoliaTime(it.CreatedAtI, it.CreatedAt); ok {
			c.CreatedAt = created
			c.Age = TimeSince(created, now)
		}
		comments = append(comments, c)
	}
	return comments
}

// hnItemID extracts the item id from a thread link or accepts a bare id
func hnItemID(threadURL string) (string, error) {
	if _, err := strconv.ParseInt(threadURL, 10, 64); err == nil {
		return threadURL, nil
	}

	parsed, err := url.Parse(threadURL)
	if err != nil {
		return "", fmt.Errorf("parse thread URL: %w", err)
	}
	id := parsed.Query().Get("id")
	if _, err := strconv.ParseInt(id, 10, 64); err != nil {
		return "", fmt.Errorf("thread URL %q has no numeric id", threadURL)
	}
	return id, nil
}

func parseAlgoliaTime(unix int64, iso string) (time.Time, bool) {
	if unix > 0 {
		return time.Unix(unix, 0).UTC(), true
	}
	if iso == "" {
		return time.Time{}, false
	}
	t, err := time.Parse(time.RFC3339, iso)
	if err != nil {
		return time.Time{}, false
	}
	return t.UTC(), true
}

// htmlToText flattens the HTML subset HN uses for comment bodies
func htmlToText(fragment string) string {
	if fragment == "" {
		return ""
	}

	doc, err := html.Parse(strings.NewReader(fragment))
	if err != nil {
		return fragment
	}

	var b strings.Builder
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.TextNode:
			b.WriteString(n.Data)
		case html.ElementNode:
			switch n.Data {
			case "p":
				if b.Len() > 0 {
					b.WriteString("\n\n")
				}
			case "br":
				b.WriteString("\n")
			}
		}
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}
	walk(doc)

	return strings.TrimSpace(b.String())
}
