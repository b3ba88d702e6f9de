// Package render serializes aggregation results and comment threads for output.
package render

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gorilla/feeds"

	"github.com/ppiankov/discussed/internal/model"
	"github.com/ppiankov/discussed/internal/score"
)

// Supported output formats
const (
	FormatJSON = "json"
	FormatRSS  = "rss"
	FormatAtom = "atom"
	FormatText = "text"
)

// Formats lists the accepted --format values
func Formats() []string {
	return []string{FormatJSON, FormatRSS, FormatAtom, FormatText}
}

// JSON writes v as indented JSON
func JSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode json: %w", err)
	}
	return nil
}

// JSONFile writes v as indented JSON to path, creating parent directories
func JSONFile(v any, path string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create dir: %w", err)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create file: %w", err)
	}
	if err := JSON(f, v); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// Feed builds a feed with one entry per distinct discussion thread.
// Items appearing under several query types are listed once, at their first position.
func Feed(result *model.AggregateResult, now time.Time) *feeds.Feed {
	feed := &feeds.Feed{
		Title:       "Discussions of " + result.URL,
		Description: feedDescription(result),
		Link:        &feeds.Link{Href: "https://" + result.URL, Rel: "alternate", Type: "text/html"},
		Id:          "urn:discussed:" + result.RequestID,
		Created:     now,
		Updated:     now,
	}

	seen := make(map[string]bool)
	for _, slot := range result.Results {
		for _, item := range slot.Items {
			if item.CommentsLink == "" || seen[item.CommentsLink] {
				continue
			}
			seen[item.CommentsLink] = true

			entry := &feeds.Item{
				Title:       item.Title,
				Link:        &feeds.Link{Href: item.CommentsLink, Rel: "alternate", Type: "text/html"},
				Id:          item.CommentsLink,
				Description: itemDescription(item),
				Created:     item.CreatedAt,
			}
			if item.Author != "" {
				entry.Author = &feeds.Author{Name: item.Author}
			}
			if item.SubmittedURL != "" {
				entry.Source = &feeds.Link{Href: item.SubmittedURL}
			}
			feed.Items = append(feed.Items, entry)
		}
	}

	return feed
}

func feedDescription(result *model.AggregateResult) string {
	if result.Status == model.StatusBlacklisted {
		return "Lookups are disabled for this page"
	}
	if result.Title != "" {
		return result.Title
	}
	return result.URL
}

func itemDescription(item model.ResultItem) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d points, %d comments on %s", item.Points, item.CommentCount, item.Source)
	if item.SubSource != "" {
		fmt.Fprintf(&b, " (%s)", item.SubSource)
	}
	if item.Age != "" {
		fmt.Fprintf(&b, ", %s", item.Age)
	}
	if item.RelevanceScore != nil {
		fmt.Fprintf(&b, ", relevance %.2f", *item.RelevanceScore)
	}
	return b.String()
}

// RSS writes result as an RSS 2.0 feed
func RSS(w io.Writer, result *model.AggregateResult) error {
	return Feed(result, time.Now()).WriteRss(w)
}

// Atom writes result as an Atom feed
func Atom(w io.Writer, result *model.AggregateResult) error {
	return Feed(result, time.Now()).WriteAtom(w)
}

// Result writes result in the named format
func Result(w io.Writer, result *model.AggregateResult, format string) error {
	switch format {
	case FormatJSON, "":
		return JSON(w, result)
	case FormatRSS:
		return RSS(w, result)
	case FormatAtom:
		return Atom(w, result)
	case FormatText:
		Summary(w, result)
		return nil
	default:
		return fmt.Errorf("unknown format: %s (supported: %s)", format, strings.Join(Formats(), ", "))
	}
}

// Summary prints a human-readable overview of result
func Summary(w io.Writer, result *model.AggregateResult) {
	fmt.Fprintf(w, "%s\n", result.URL)
	if result.Status == model.StatusBlacklisted {
		fmt.Fprintln(w, "  blacklisted: no lookups performed")
		return
	}

	for _, slot := range result.Results {
		fmt.Fprintf(w, "\n[%s / %s] %d result(s)\n", slot.Provider, slot.QueryType, len(slot.Items))
		if slot.Error != "" {
			fmt.Fprintf(w, "  error: %s\n", slot.Error)
		}
		for _, item := range slot.Items {
			marker := ""
			if score.IsFiltered(item) {
				marker = " (low relevance)"
			}
			fmt.Fprintf(w, "  - %s%s\n", item.Title, marker)
			fmt.Fprintf(w, "    %d points, %d comments, %s, by %s\n", item.Points, item.CommentCount, item.Age, item.Author)
			fmt.Fprintf(w, "    %s\n", item.CommentsLink)
		}
	}
}

// ThreadMarkdown renders a comment tree as nested Markdown quotes
func ThreadMarkdown(w io.Writer, thread *model.Thread) {
	fmt.Fprintf(w, "# Comments on %s (%s)\n\n", thread.URL, thread.Provider)
	if len(thread.Comments) == 0 {
		fmt.Fprintln(w, "_No comments._")
		return
	}
	writeComments(w, thread.Comments, 1)
}

func writeComments(w io.Writer, comments []model.Comment, depth int) {
	prefix := strings.Repeat(">", depth) + " "
	for _, c := range comments {
		header := fmt.Sprintf("**%s** · %s", c.Author, c.Age)
		if c.Score != nil {
			header += fmt.Sprintf(" · %d points", *c.Score)
		}
		if c.ReplyCount > 0 {
			header += fmt.Sprintf(" · %d replies", c.ReplyCount)
		}
		fmt.Fprintf(w, "%s%s\n%s\n", prefix, header, strings.TrimSpace(prefix))
		for _, line := range strings.Split(strings.TrimSpace(c.Text), "\n") {
			fmt.Fprintf(w, "%s%s\n", prefix, line)
		}
		fmt.Fprintln(w)
		writeComments(w, c.Children, depth+1)
	}
}

// Thread writes thread in the named format (json or text/markdown)
func Thread(w io.Writer, thread *model.Thread, format string) error {
	switch format {
	case FormatJSON, "":
		return JSON(w, thread)
	case FormatText, "markdown", "md":
		ThreadMarkdown(w, thread)
		return nil
	default:
		return fmt.Errorf("unknown format for comments: %s (supported: json, text)", format)
	}
}
