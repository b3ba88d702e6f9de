package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/ppiankov/discussed/internal/model"
	"github.com/ppiankov/discussed/internal/pipeline"
	"github.com/ppiankov/discussed/internal/render"
	"github.com/ppiankov/discussed/internal/worker"
)

var (
	concurrency  int
	outputDir    string
	batchTimeout time.Duration
)

// batchCmd represents the batch command
var batchCmd = &cobra.Command{
	Use:   "batch <file>",
	Short: "Look up discussions for many pages in parallel",
	Long: `Batch reads one page per line and looks each one up concurrently:
- Lines are a URL, optionally followed by a tab and the page title
- Blank lines and lines starting with # are skipped
- Each result is written to <output-dir>/<slug>.json

Example:
  discussed batch urls.txt
  discussed batch urls.txt --concurrency 8 --output-dir ./discussions`,
	Args: cobra.ExactArgs(1),
	RunE: runBatch,
}

func init() {
	rootCmd.AddCommand(batchCmd)

	batchCmd.Flags().IntVar(&concurrency, "concurrency", 0, "number of concurrent lookups (default from config)")
	batchCmd.Flags().StringVar(&outputDir, "output-dir", "./discussed-results", "output directory for results")
	batchCmd.Flags().DurationVar(&batchTimeout, "timeout", 10*time.Minute, "total timeout for batch processing")
	addEngineFlags(batchCmd)
}

func runBatch(cmd *cobra.Command, args []string) error {
	file := args[0]

	cfg, err := engineConfig(cmd)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("concurrency") {
		cfg.Concurrency.Workers = concurrency
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), batchTimeout)
	defer cancel()

	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "  Discussed Batch Lookup\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "  Input file:   %s\n", file)
	fmt.Fprintf(os.Stderr, "  Workers:      %d\n", cfg.Concurrency.Workers)
	fmt.Fprintf(os.Stderr, "  Providers:    %s\n", strings.Join(cfg.Providers.Enabled, ", "))
	fmt.Fprintf(os.Stderr, "  Output dir:   %s\n", outputDir)
	fmt.Fprintf(os.Stderr, "  Timeout:      %v\n", batchTimeout)
	fmt.Fprintf(os.Stderr, "\n")

	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	p, err := pipeline.NewPipeline(ctx, cfg)
	if err != nil {
		return fmt.Errorf("create pipeline: %w", err)
	}
	defer func() { _ = p.Close() }()

	processor := worker.NewBatchProcessor(p, cfg.Concurrency.Workers)

	results, err := processor.ProcessFile(ctx, file)
	if err != nil {
		return fmt.Errorf("process file: %w", err)
	}

	successCount := 0
	failureCount := 0
	blacklistedCount := 0

	for _, result := range results {
		if result.Error != nil {
			failureCount++
			fmt.Fprintf(os.Stderr, "✗ %s: %v\n", result.Target.URL, result.Error)
			continue
		}

		path := filepath.Join(outputDir, sanitizeFilename(result.Result.URL)+".json")
		if err := render.JSONFile(result.Result, path); err != nil {
			failureCount++
			fmt.Fprintf(os.Stderr, "✗ %s: failed to write JSON: %v\n", result.Target.URL, err)
			continue
		}

		successCount++
		if result.Result.Status == model.StatusBlacklisted {
			blacklistedCount++
			fmt.Fprintf(os.Stderr, "- %s (blacklisted)\n", result.Result.URL)
			continue
		}
		fmt.Fprintf(os.Stderr, "✓ %s (%d threads)\n", result.Result.URL, result.Result.ItemCount())
	}

	log.Debug().Int("results", len(results)).Msg("Batch complete")

	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "  Batch Complete\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "  Total:        %d URLs\n", len(results))
	fmt.Fprintf(os.Stderr, "  Success:      %d\n", successCount)
	fmt.Fprintf(os.Stderr, "  Blacklisted:  %d\n", blacklistedCount)
	fmt.Fprintf(os.Stderr, "  Failures:     %d\n", failureCount)
	fmt.Fprintf(os.Stderr, "  Output:       %s\n", outputDir)
	fmt.Fprintf(os.Stderr, "\n")

	return nil
}

// sanitizeFilename turns a cleaned URL into a safe, bounded file name
func sanitizeFilename(s string) string {
	replacer := strings.NewReplacer(
		"/", "_",
		"\\", "_",
		":", "_",
		"*", "_",
		"?", "_",
		"\"", "_",
		"<", "_",
		">", "_",
		"|", "_",
		"&", "_",
		"=", "_",
		" ", "-",
	)
	s = strings.Trim(replacer.Replace(s), "_-.")
	if s == "" {
		s = "result"
	}

	if len(s) > 100 {
		s = s[:100]
	}

	return s
}
