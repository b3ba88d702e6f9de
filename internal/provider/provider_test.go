package provider

import (
	"testing"
	"time"

	"github.com/ppiankov/discussed/internal/model"
)

func TestMatchesURL(t *testing.T) {
	target := "https://example.com"
	tests := []struct {
		submitted string
		want      bool
	}{
		{"https://example.com", true},
		{"https://example.com/", true},
		{"https://tracker.example/?utm_source=https://example.com", false},
		{"https://tracker.example/?utm_source=https://example.com/", false},
		{"https://example.com/other", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.submitted, func(t *testing.T) {
			if got := MatchesURL(tt.submitted, target); got != tt.want {
				t.Errorf("MatchesURL(%q, %q) = %v, want %v", tt.submitted, target, got, tt.want)
			}
		})
	}
}

func TestMatchesURL_SchemelessTarget(t *testing.T) {
	if !MatchesURL("https://www.example.com/a/b", "example.com/a/b") {
		t.Error("expected cleaned target to match a full submitted URL")
	}
	if MatchesURL("https://x.test/?u=example.com/a/b", "example.com/a/b") {
		t.Error("expected parameter value to be rejected")
	}
}

func TestTimeSince(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		ago  time.Duration
		want string
	}{
		{0, "0 seconds ago"},
		{time.Second, "1 second ago"},
		{59 * time.Second, "59 seconds ago"},
		{time.Minute, "1 minute ago"},
		{90 * time.Minute, "1 hour ago"},
		{5 * time.Hour, "5 hours ago"},
		{24 * time.Hour, "1 day ago"},
		{29 * 24 * time.Hour, "29 days ago"},
		{30 * 24 * time.Hour, "1 month ago"},
		{364 * 24 * time.Hour, "12 months ago"},
		{365 * 24 * time.Hour, "1 year ago"},
		{3 * 365 * 24 * time.Hour, "3 years ago"},
		{-time.Hour, "0 seconds ago"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := TimeSince(now.Add(-tt.ago), now); got != tt.want {
				t.Errorf("TimeSince(-%v) = %q, want %q", tt.ago, got, tt.want)
			}
		})
	}
}

func TestNormalizeTitle(t *testing.T) {
	if got := NormalizeTitle("  Ｇｏ\tgenerics \n explained  "); got != "Go generics explained" {
		t.Errorf("unexpected normalized title: %q", got)
	}
	if got := NormalizeTitle(" \t\n"); got != "" {
		t.Errorf("expected empty title, got %q", got)
	}
}

// synthTree builds width children per node down to depth levels
func synthTree(width, depth int) []model.Comment {
	if depth == 0 {
		return nil
	}
	out := make([]model.Comment, width)
	for i := range out {
		out[i] = model.Comment{Author: "u", Children: synthTree(width, depth-1)}
	}
	return out
}

func maxDepth(comments []model.Comment) int {
	d := 0
	for _, c := range comments {
		d = max(d, 1+maxDepth(c.Children))
	}
	return d
}

func maxWidth(comments []model.Comment) int {
	w := len(comments)
	for _, c := range comments {
		w = max(w, maxWidth(c.Children))
	}
	return w
}

func TestBuildCommentTree_Bounds(t *testing.T) {
	src := synthTree(12, 4)

	for _, limits := range []model.CommentsConfig{
		{MaxComments: 10, MaxCommentReplies: 0},
		{MaxComments: 3, MaxCommentReplies: 2},
		{MaxComments: 5, MaxCommentReplies: 10},
	} {
		got := BuildCommentTree(src, limits, true)
		if w := maxWidth(got); w > limits.MaxComments {
			t.Errorf("%+v: width %d exceeds MaxComments", limits, w)
		}
		if d := maxDepth(got); d > limits.MaxCommentReplies+1 {
			t.Errorf("%+v: depth %d exceeds MaxCommentReplies+1", limits, d)
		}
	}
}

func TestBuildCommentTree_DefaultIsTopLevelOnly(t *testing.T) {
	got := BuildCommentTree(synthTree(3, 3), model.CommentsConfig{MaxComments: 10}, false)
	if len(got) != 3 {
		t.Fatalf("expected 3 top-level comments, got %d", len(got))
	}
	for _, c := range got {
		if len(c.Children) != 0 {
			t.Error("expected replies dropped at MaxCommentReplies 0")
		}
		if c.ReplyCount != 12 {
			t.Errorf("expected ReplyCount 12 from source, got %d", c.ReplyCount)
		}
	}
}

func TestBuildCommentTree_StableRankingThenTruncate(t *testing.T) {
	src := []model.Comment{
		{Author: "a"},
		{Author: "b", Children: synthTree(1, 1)},
		{Author: "c", Children: synthTree(2, 1)},
		{Author: "d", Children: synthTree(1, 1)},
	}

	got := BuildCommentTree(src, model.CommentsConfig{MaxComments: 3}, true)
	var order []string
	for _, c := range got {
		order = append(order, c.Author)
	}
	want := []string{"c", "b", "d"}
	if len(order) != len(want) {
		t.Fatalf("got %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("got %v, want %v", order, want)
		}
	}
}

func TestBuildCommentTree_DoesNotAliasSource(t *testing.T) {
	score := 7
	src := []model.Comment{{Author: "a", Score: &score, Children: synthTree(2, 1)}}

	got := BuildCommentTree(src, model.CommentsConfig{MaxComments: 1, MaxCommentReplies: 1}, false)
	got[0].Author = "changed"
	*got[0].Score = 99
	got[0].Children[0].Author = "changed"

	if src[0].Author != "a" || *src[0].Score != 7 || src[0].Children[0].Author != "u" {
		t.Error("builder output aliases the source tree")
	}
	if len(src[0].Children) != 2 {
		t.Error("builder truncated the source slice")
	}
}

func TestRegistry_Build(t *testing.T) {
	cfg := model.DefaultConfig()
	reg := NewRegistry()

	providers, err := reg.Build([]string{"reddit", "hackernews"}, cfg, nil)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if providers[0].Name() != RedditName || providers[1].Name() != HackerNewsName {
		t.Errorf("Build did not preserve order: %s, %s", providers[0].Name(), providers[1].Name())
	}

	if _, err := reg.Build([]string{"lobsters"}, cfg, nil); err == nil {
		t.Error("expected error for unknown provider")
	}
}
