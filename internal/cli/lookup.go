package cli

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ppiankov/discussed/internal/model"
	"github.com/ppiankov/discussed/internal/pipeline"
	"github.com/ppiankov/discussed/internal/render"
)

var (
	lookupTitle   string
	lookupFormat  string
	lookupOut     string
	lookupTimeout time.Duration
	noCache       bool
	dedupe        bool
	providerNames []string
	relevance     string
	httpProxy     string
	httpsProxy    string
)

// lookupCmd represents the lookup command
var lookupCmd = &cobra.Command{
	Use:   "lookup <url>",
	Short: "Find discussions of a single web page",
	Long: `Lookup queries every enabled provider for threads about a page:
- by exact URL (the submitted link equals the page)
- by site (submissions from the same host)
- by title (when --title is given)

Blacklisted pages return status "blacklisted" without any provider call.

Example:
  discussed lookup https://go.dev/blog/go1.22
  discussed lookup https://go.dev/blog/go1.22 --title "Go 1.22 is released!"
  discussed lookup https://example.com/post --format rss > feed.xml
  discussed lookup https://example.com/post --relevance openai`,
	Args: cobra.ExactArgs(1),
	RunE: runLookup,
}

func init() {
	rootCmd.AddCommand(lookupCmd)

	lookupCmd.Flags().StringVar(&lookupTitle, "title", "", "document title for the title query and relevance scoring")
	lookupCmd.Flags().StringVarP(&lookupFormat, "format", "f", render.FormatJSON, "output format ("+strings.Join(render.Formats(), ", ")+")")
	lookupCmd.Flags().StringVarP(&lookupOut, "out", "o", "", "write output to a file instead of stdout")
	lookupCmd.Flags().DurationVar(&lookupTimeout, "timeout", 30*time.Second, "overall lookup timeout")
	addEngineFlags(lookupCmd)
}

// addEngineFlags registers the flags shared by commands that build a pipeline
func addEngineFlags(cmd *cobra.Command) {
	cmd.Flags().BoolVar(&noCache, "no-cache", false, "disable the response cache (force fresh fetch)")
	cmd.Flags().BoolVar(&dedupe, "dedupe", false, "drop repeated submitted URLs across providers")
	cmd.Flags().StringSliceVar(&providerNames, "providers", nil, "providers to query (default from config)")
	cmd.Flags().StringVar(&relevance, "relevance", "", "enable relevance scoring with this provider (http, openai, ollama)")
	cmd.Flags().StringVar(&httpProxy, "http-proxy", "", "HTTP proxy URL (overrides HTTP_PROXY env var)")
	cmd.Flags().StringVar(&httpsProxy, "https-proxy", "", "HTTPS proxy URL (overrides HTTPS_PROXY env var)")
}

// engineConfig loads the config and applies the engine flags the user set
func engineConfig(cmd *cobra.Command) (*model.Config, error) {
	cfg, err := loadConfig(viper.GetViper())
	if err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	if flags.Changed("no-cache") {
		cfg.Cache.Enabled = !noCache
	}
	if flags.Changed("dedupe") {
		cfg.Aggregator.Dedupe = dedupe
	}
	if flags.Changed("providers") {
		cfg.Providers.Enabled = providerNames
	}
	if flags.Changed("relevance") {
		cfg.Relevance.Enabled = relevance != ""
		cfg.Relevance.Provider = relevance
		if relevance == "openai" && cfg.Relevance.APIKey == "" {
			cfg.Relevance.APIKey = os.Getenv("OPENAI_API_KEY")
			if cfg.Relevance.APIKey == "" {
				return nil, fmt.Errorf("OPENAI_API_KEY environment variable not set")
			}
		}
	}
	if flags.Changed("http-proxy") {
		cfg.HTTP.HTTPProxy = httpProxy
	}
	if flags.Changed("https-proxy") {
		cfg.HTTP.HTTPSProxy = httpsProxy
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func runLookup(cmd *cobra.Command, args []string) (err error) {
	rawURL := args[0]

	cfg, err := engineConfig(cmd)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), lookupTimeout)
	defer cancel()

	log.Debug().
		Str("url", rawURL).
		Dur("timeout", lookupTimeout).
		Bool("cache", cfg.Cache.Enabled).
		Strs("providers", cfg.Providers.Enabled).
		Msg("Looking up discussions")

	p, err := pipeline.NewPipeline(ctx, cfg)
	if err != nil {
		return fmt.Errorf("create pipeline: %w", err)
	}
	defer func() { _ = p.Close() }()

	result, err := p.Aggregate(ctx, rawURL, lookupTitle)
	if err != nil {
		return fmt.Errorf("lookup failed: %w", err)
	}

	log.Debug().
		Str("request_id", result.RequestID).
		Str("status", string(result.Status)).
		Int("items", result.ItemCount()).
		Msg("Lookup complete")

	out := os.Stdout
	if lookupOut != "" {
		f, err := os.Create(lookupOut)
		if err != nil {
			return fmt.Errorf("create output: %w", err)
		}
		defer func() {
			if closeErr := f.Close(); closeErr != nil && err == nil {
				err = fmt.Errorf("close output: %w", closeErr)
			}
		}()
		out = f
	}

	if err := render.Result(out, result, lookupFormat); err != nil {
		return fmt.Errorf("render failed: %w", err)
	}
	if lookupOut != "" {
		log.Info().Str("path", lookupOut).Msg("Wrote lookup result")
	}
	return nil
}
