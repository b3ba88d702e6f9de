package provider

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/ppiankov/discussed/internal/model"
)

// RedditName identifies the Reddit provider
const RedditName = "reddit"

// Reddit scrapes the old.reddit.com search and thread pages
type Reddit struct {
	client Getter
	base   *url.URL
	limit  int
	limits model.CommentsConfig
	now    func() time.Time
}

// NewReddit creates the Reddit provider
func NewReddit(cfg model.RedditConfig, limits model.CommentsConfig, client Getter) *Reddit {
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil || base.Host == "" {
		base = &url.URL{Scheme: "https", Host: "old.reddit.com"}
	}
	return &Reddit{
		client: client,
		base:   base,
		limit:  cfg.Limit,
		limits: limits,
		now:    time.Now,
	}
}

func (r *Reddit) Name() string { return RedditName }

// ExactURLQuery finds posts linking exactly to cleanedURL
func (r *Reddit) ExactURLQuery(ctx context.Context, cleanedURL string) (model.ProviderQueryResult, error) {
	return r.search(ctx, model.QueryExactURL, "url:"+cleanedURL, func(item model.ResultItem) bool {
		return MatchesURL(item.SubmittedURL, cleanedURL)
	})
}

// SiteURLQuery finds posts linking to siteURL's host
func (r *Reddit) SiteURLQuery(ctx context.Context, siteURL string) (model.ProviderQueryResult, error) {
	return r.search(ctx, model.QuerySiteURL, "site:"+siteURL, nil)
}

// TitleQuery finds posts matching the document title
func (r *Reddit) TitleQuery(ctx context.Context, title string) (model.ProviderQueryResult, error) {
	title = NormalizeTitle(title)
	if title == "" {
		return r.empty(model.QueryTitle), nil
	}
	return r.search(ctx, model.QueryTitle, title, nil)
}

func (r *Reddit) empty(qt model.QueryType) model.ProviderQueryResult {
	return model.ProviderQueryResult{Provider: RedditName, QueryType: qt, Items: []model.ResultItem{}}
}

func (r *Reddit) search(ctx context.Context, qt model.QueryType, q string, keep func(model.ResultItem) bool) (model.ProviderQueryResult, error) {
	params := url.Values{"q": {q}}
	if r.limit > 0 {
		params.Set("limit", strconv.Itoa(r.limit))
	}
	requestURL := r.base.String() + "/search?" + params.Encode()

	body, err := r.client.Get(ctx, requestURL, "text/html")
	if err != nil {
		return model.ProviderQueryResult{}, fmt.Errorf("%w: reddit %s: %w", ErrTransport, qt, err)
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return model.ProviderQueryResult{}, fmt.Errorf("%w: reddit %s: %w", ErrParse, qt, err)
	}

	now := r.now()
	result := r.empty(qt)
	doc.Find("div.search-result-link").Each(func(_ int, s *goquery.Selection) {
		item := r.parseSearchResult(s, now)
		item.QueryType = qt
		item.RequestURL = requestURL
		if keep != nil && !keep(item) {
			return
		}
		result.Items = append(result.Items, item)
	})

	return result, nil
}

func (r *Reddit) parseSearchResult(s *goquery.Selection, now time.Time) model.ResultItem {
	title := s.Find("a.search-title").First()
	comments := s.Find("a.search-comments").First()
	author := s.Find("a.author").First()
	subreddit := s.Find("a.search-subreddit-link").First()

	item := model.ResultItem{
		Source:        RedditName,
		Title:         strings.TrimSpace(title.Text()),
		Author:        strings.TrimSpace(author.Text()),
		AuthorLink:    r.resolve(author.AttrOr("href", "")),
		Points:        leadingInt(s.Find("span.search-score").First().Text()),
		CommentCount:  leadingInt(comments.Text()),
		CommentsLink:  r.resolve(comments.AttrOr("href", "")),
		SubSource:     strings.TrimSpace(subreddit.Text()),
		SubSourceLink: r.resolve(subreddit.AttrOr("href", "")),
	}

	// Self posts carry no outbound link; their submission is the thread itself
	item.SubmittedURL = r.resolve(s.Find("a.search-link").First().AttrOr("href", ""))
	if item.SubmittedURL == "" {
		item.SubmittedURL = r.resolve(title.AttrOr("href", ""))
	}

	if created, ok := parseRedditTime(s.Find("time").First().AttrOr("datetime", "")); ok {
		item.CreatedAt = created
		item.Age = TimeSince(created, now)
	}

	return item
}

// FetchComments scrapes the comment tree of a Reddit thread
func (r *Reddit) FetchComments(ctx context.Context, threadURL string) (*model.Thread, error) {
	requestURL, err := r.threadURL(threadURL)
	if err != nil {
		return nil, err
	}

	body, err := r.client.Get(ctx, requestURL, "text/html")
	if err != nil {
		return nil, fmt.Errorf("%w: reddit comments: %w", ErrTransport, err)
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: reddit comments: %w", ErrParse, err)
	}

	top := doc.Find("div.commentarea > div.sitetable").First().ChildrenFiltered("div.thing.comment")
	comments := r.parseComments(top, r.now())

	// Thread pages are already in the site's own "best" order
	return &model.Thread{
		Provider: RedditName,
		URL:      threadURL,
		Comments: BuildCommentTree(comments, r.limits, false),
	}, nil
}

func (r *Reddit) parseComments(things *goquery.Selection, now time.Time) []model.Comment {
	comments := make([]model.Comment, 0, things.Length())
	things.Each(func(_ int, s *goquery.Selection) {
		entry := s.ChildrenFiltered("div.entry")

		c := model.Comment{
			Author:    s.AttrOr("data-author", ""),
			Text:      strings.TrimSpace(entry.Find("div.md").First().Text()),
			Permalink: r.resolve(s.AttrOr("data-permalink", "")),
		}
		if c.Author != "" {
			c.AuthorLink = r.base.String() + "/user/" + url.PathEscape(c.Author)
		}
		if created, ok := parseRedditTime(entry.Find("time").First().AttrOr("datetime", "")); ok {
			c.CreatedAt = created
			c.Age = TimeSince(created, now)
		}
		if raw, ok := entry.Find("span.score.unvoted").First().Attr("title"); ok {
			if score, err := strconv.Atoi(raw); err == nil {
				c.Score = &score
			}
		}

		replies := s.ChildrenFiltered("div.child").ChildrenFiltered("div.sitetable").ChildrenFiltered("div.thing.comment")
		c.Children = r.parseComments(replies, now)

		comments = append(comments, c)
	})
	return comments
}

// threadURL rewrites a thread link onto the configured base host
func (r *Reddit) threadURL(threadURL string) (string, error) {
	parsed, err := url.Parse(threadURL)
	if err != nil {
		return "", fmt.Errorf("parse thread URL: %w", err)
	}
	if !strings.Contains(parsed.Path, "/comments/") {
		return "", fmt.Errorf("thread URL %q is not a reddit comments link", threadURL)
	}
	parsed.Scheme = r.base.Scheme
	parsed.Host = r.base.Host
	parsed.Fragment = ""
	return parsed.String(), nil
}

// resolve makes href absolute against the base URL
func (r *Reddit) resolve(href string) string {
	href = strings.TrimSpace(href)
	if href == "" {
		return ""
	}
	ref, err := url.Parse(href)
	if err != nil {
		return href
	}
	return r.base.ResolveReference(ref).String()
}

func parseRedditTime(raw string) (time.Time, bool) {
	if raw == "" {
		return time.Time{}, false
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, false
	}
	return t.UTC(), true
}

// leadingInt parses "1,234 points" or "56 comments" into its number
func leadingInt(text string) int {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return 0
	}
	n, err := strconv.Atoi(strings.ReplaceAll(fields[0], ",", ""))
	if err != nil {
		return 0
	}
	return n
}
