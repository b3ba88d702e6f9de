package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/ppiankov/discussed/internal/pipeline"
	"github.com/ppiankov/discussed/internal/render"
)

var (
	commentsFormat    string
	commentsTimeout   time.Duration
	maxComments       int
	maxCommentReplies int
)

// commentsCmd represents the comments command
var commentsCmd = &cobra.Command{
	Use:   "comments <provider> <thread-url>",
	Short: "Fetch the comment tree of one discussion thread",
	Long: `Comments fetches a bounded comment tree from a thread link returned by lookup.

Each level keeps at most --max-comments entries; replies are followed to
--max-replies levels below the top (0 keeps top-level comments only).

Example:
  discussed comments hackernews "https://news.ycombinator.com/item?id=8863"
  discussed comments reddit https://old.reddit.com/r/golang/comments/abc123/post/ --format text --max-replies 2`,
	Args: cobra.ExactArgs(2),
	RunE: runComments,
}

func init() {
	rootCmd.AddCommand(commentsCmd)

	commentsCmd.Flags().StringVarP(&commentsFormat, "format", "f", render.FormatJSON, "output format (json, text)")
	commentsCmd.Flags().DurationVar(&commentsTimeout, "timeout", 30*time.Second, "fetch timeout")
	commentsCmd.Flags().IntVar(&maxComments, "max-comments", 0, "comments kept per level (default from config)")
	commentsCmd.Flags().IntVar(&maxCommentReplies, "max-replies", 0, "reply depth below top-level comments (default from config)")
	addEngineFlags(commentsCmd)
}

func runComments(cmd *cobra.Command, args []string) error {
	providerName, threadURL := args[0], args[1]

	cfg, err := engineConfig(cmd)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("max-comments") {
		cfg.Comments.MaxComments = maxComments
	}
	if cmd.Flags().Changed("max-replies") {
		cfg.Comments.MaxCommentReplies = maxCommentReplies
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), commentsTimeout)
	defer cancel()

	p, err := pipeline.NewPipeline(ctx, cfg)
	if err != nil {
		return fmt.Errorf("create pipeline: %w", err)
	}
	defer func() { _ = p.Close() }()

	thread, err := p.Comments(ctx, providerName, threadURL)
	if err != nil {
		return err
	}

	return render.Thread(os.Stdout, thread, commentsFormat)
}
