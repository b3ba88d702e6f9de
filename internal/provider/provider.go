package provider

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/unicode/norm"

	"github.com/ppiankov/discussed/internal/model"
)

var (
	// ErrTransport marks a failed outbound request
	ErrTransport = errors.New("provider transport error")
	// ErrParse marks a response that could not be decoded
	ErrParse = errors.New("provider parse error")
)

// Provider is one discussion source.
// Query methods return an empty Items slice for "no results"; errors mean the
// call itself failed.
type Provider interface {
	Name() string
	ExactURLQuery(ctx context.Context, cleanedURL string) (model.ProviderQueryResult, error)
	SiteURLQuery(ctx context.Context, siteURL string) (model.ProviderQueryResult, error)
	TitleQuery(ctx context.Context, title string) (model.ProviderQueryResult, error)
	FetchComments(ctx context.Context, threadURL string) (*model.Thread, error)
}

// Getter performs a GET and returns the response body
type Getter interface {
	Get(ctx context.Context, rawURL, accept string) ([]byte, error)
}

// Query dispatches qt to the matching provider method
func Query(ctx context.Context, p Provider, qt model.QueryType, cleanedURL, siteURL, title string) (model.ProviderQueryResult, error) {
	switch qt {
	case model.QueryExactURL:
		return p.ExactURLQuery(ctx, cleanedURL)
	case model.QuerySiteURL:
		return p.SiteURLQuery(ctx, siteURL)
	case model.QueryTitle:
		return p.TitleQuery(ctx, title)
	default:
		return model.ProviderQueryResult{}, fmt.Errorf("unknown query type: %s", qt)
	}
}

// MatchesURL reports whether a submitted URL refers to target.
// Matches must end with target (optionally plus "/"); a target that only
// appears as a parameter value (utm_source=example.com) is rejected.
func MatchesURL(submitted, target string) bool {
	if target == "" || submitted == "" {
		return false
	}
	if strings.HasSuffix(submitted, "="+target) || strings.HasSuffix(submitted, "="+target+"/") {
		return false
	}
	return strings.HasSuffix(submitted, target) || strings.HasSuffix(submitted, target+"/")
}

var ageBuckets = []struct {
	name    string
	seconds int64
}{
	{"year", 365 * 24 * 60 * 60},
	{"month", 30 * 24 * 60 * 60},
	{"day", 24 * 60 * 60},
	{"hour", 60 * 60},
	{"minute", 60},
}

// TimeSince renders the elapsed time between t and now as "3 days ago"
func TimeSince(t, now time.Time) string {
	elapsed := int64(now.Sub(t) / time.Second)
	if elapsed < 0 {
		elapsed = 0
	}

	for _, b := range ageBuckets {
		if n := elapsed / b.seconds; n >= 1 {
			return plural(n, b.name) + " ago"
		}
	}
	return plural(elapsed, "second") + " ago"
}

func plural(n int64, unit string) string {
	if n == 1 {
		return fmt.Sprintf("1 %s", unit)
	}
	return fmt.Sprintf("%d %ss", n, unit)
}

// NormalizeTitle folds a document title into a stable query string:
// NFKC, collapsed whitespace, no control characters
func NormalizeTitle(title string) string {
	title = norm.NFKC.String(title)
	title = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return ' '
		}
		return r
	}, title)
	return strings.Join(strings.Fields(title), " ")
}

// BuildCommentTree returns a newly allocated copy of src bounded by limits.
//
// Replies deeper than MaxCommentReplies are dropped first. When ranked is set,
// siblings are stably sorted by descendant count (descending). Each level is
// then truncated to MaxComments. ReplyCount carries the descendant count of
// the unbounded source.
func BuildCommentTree(src []model.Comment, limits model.CommentsConfig, ranked bool) []model.Comment {
	return buildLevel(src, limits, 0, ranked)
}

func buildLevel(src []model.Comment, limits model.CommentsConfig, depth int, ranked bool) []model.Comment {
	if len(src) == 0 || depth > limits.MaxCommentReplies {
		return nil
	}

	out := make([]model.Comment, 0, len(src))
	for _, c := range src {
		node := c
		node.ReplyCount = max(c.ReplyCount, countDescendants(c.Children))
		node.Children = buildLevel(c.Children, limits, depth+1, ranked)
		if c.Score != nil {
			score := *c.Score
			node.Score = &score
		}
		out = append(out, node)
	}

	if ranked {
		sort.SliceStable(out, func(i, j int) bool {
			return out[i].ReplyCount > out[j].ReplyCount
		})
	}

	if limits.MaxComments > 0 && len(out) > limits.MaxComments {
		out = append([]model.Comment(nil), out[:limits.MaxComments]...)
	}
	return out
}

func countDescendants(children []model.Comment) int {
	n := len(children)
	for _, c := range children {
		n += countDescendants(c.Children)
	}
	return n
}

// Constructor builds a provider from configuration and a shared HTTP getter
type Constructor func(cfg *model.Config, client Getter) Provider

// Registry maps provider names to constructors
type Registry struct {
	constructors map[string]Constructor
}

// NewRegistry returns a registry with the built-in providers
func NewRegistry() *Registry {
	r := &Registry{constructors: make(map[string]Constructor)}
	r.Register(HackerNewsName, func(cfg *model.Config, client Getter) Provider {
		return NewHackerNews(cfg.Providers.HackerNews, cfg.Comments, client)
	})
	r.Register(RedditName, func(cfg *model.Config, client Getter) Provider {
		return NewReddit(cfg.Providers.Reddit, cfg.Comments, client)
	})
	return r
}

// Register adds or replaces a constructor
func (r *Registry) Register(name string, c Constructor) {
	r.constructors[name] = c
}

// Names lists registered providers in sorted order
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.constructors))
	for name := range r.constructors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Build constructs the named providers, preserving order
func (r *Registry) Build(names []string, cfg *model.Config, client Getter) ([]Provider, error) {
	providers := make([]Provider, 0, len(names))
	for _, name := range names {
		c, ok := r.constructors[name]
		if !ok {
			return nil, fmt.Errorf("unknown provider: %s (supported: %s)", name, strings.Join(r.Names(), ", "))
		}
		providers = append(providers, c(cfg, client))
	}
	return providers, nil
}
