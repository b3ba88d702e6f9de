package model

import "time"

// Comment is one node of a discussion thread
type Comment struct {
	Author     string    `json:"author"`
	AuthorLink string    `json:"author_link,omitempty"`
	Text       string    `json:"text"`
	CreatedAt  time.Time `json:"created_at"`
	Age        string    `json:"age"`
	Permalink  string    `json:"permalink,omitempty"`
	ReplyCount int       `json:"reply_count"`        // Total descendants in the source thread
	Score      *int      `json:"score,omitempty"`    // Not every source exposes one
	Children   []Comment `json:"children,omitempty"` // Bounded by the comment limits
}

// Thread is the bounded comment tree of one discussion
type Thread struct {
	Provider string    `json:"provider"`
	URL      string    `json:"url"`
	Comments []Comment `json:"comments"`
}
