package model

import "time"

// QueryType identifies which kind of provider query produced a result
type QueryType string

const (
	QueryExactURL QueryType = "exact_url" // Submitted URL equals the page URL (mod trailing slash)
	QuerySiteURL  QueryType = "site_url"  // Submitted URL is on the same host
	QueryTitle    QueryType = "title"     // Matched on the document title
)

// QueryTypes returns the query types issued per provider, in issuance order
func QueryTypes() []QueryType {
	return []QueryType{QueryExactURL, QuerySiteURL, QueryTitle}
}

// Status is the overall outcome of one aggregation request
type Status string

const (
	StatusOK          Status = "ok"
	StatusBlacklisted Status = "blacklisted"
)

// ResultItem is one discussion-thread reference
type ResultItem struct {
	Source     string    `json:"source"`      // Provider identifier (e.g., "hackernews")
	QueryType  QueryType `json:"query_type"`  // Query that produced this item
	TriggerURL string    `json:"trigger_url"` // Normalized page URL the lookup ran for
	RequestURL string    `json:"request_url"` // Exact outbound request URL

	SubmittedURL string `json:"submitted_url"`
	Title        string `json:"title"`
	Author       string `json:"author"`
	AuthorLink   string `json:"author_link,omitempty"`

	CreatedAt time.Time `json:"created_at"` // Authoritative submission instant
	Age       string    `json:"age"`        // Derived from CreatedAt, never parsed back

	Points       int    `json:"points"`
	CommentCount int    `json:"comment_count"`
	CommentsLink string `json:"comments_link"`

	SubSource     string `json:"sub_source,omitempty"`      // e.g., subreddit name
	SubSourceLink string `json:"sub_source_link,omitempty"` // e.g., subreddit URL

	RelevanceScore *float64 `json:"relevance_score,omitempty"` // Set only after scoring
}

// ProviderQueryResult is one provider's response to one query type
type ProviderQueryResult struct {
	Provider  string       `json:"provider"`
	QueryType QueryType    `json:"query_type"`
	Items     []ResultItem `json:"items"`
	Error     string       `json:"error,omitempty"` // Set when the call failed and the slot degraded to empty
}

// AggregateResult is the top-level response to one aggregation request
type AggregateResult struct {
	RequestID string                `json:"request_id"`
	URL       string                `json:"url"`   // Cleaned page URL
	Title     string                `json:"title"` // Document title as received
	Status    Status                `json:"status"`
	Results   []ProviderQueryResult `json:"results"`
}

// ItemCount returns the total number of items across all slots
func (r *AggregateResult) ItemCount() int {
	n := 0
	for _, pr := range r.Results {
		n += len(pr.Items)
	}
	return n
}
