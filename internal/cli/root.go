package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/ppiankov/discussed/internal/model"
)

// version is overridden at build time with -ldflags "-X ...cli.version=..."
var version = "v0.1.0"

var (
	cfgFile string
	verbose bool
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "discussed",
	Short: "Discussed - find where a web page is being discussed",
	Long: `Discussed looks up discussion threads about a web page across
Hacker News and Reddit.

Each lookup normalizes the page URL, checks it against a blacklist, then
queries every provider by exact URL, by site and by title. Results can
optionally be scored for relevance against the page title.`,
	SilenceErrors: true,
	SilenceUsage:  true,
}

// Execute runs the root command; SIGINT and SIGTERM cancel the command context
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}

// versionCmd represents the version command
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("discussed %s\n", version)
	},
}

func init() {
	cobra.OnInitialize(initLogging, initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: $HOME/.discussed/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	_ = viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))

	rootCmd.AddCommand(versionCmd)
}

// initLogging routes the global zerolog logger to stderr
func initLogging() {
	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	if verbose {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}

// initConfig reads in config file and ENV variables
func initConfig() {
	// DISCUSSED_CACHE_BACKEND overrides cache.backend
	viper.SetEnvPrefix("DISCUSSED")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := setDefaults(viper.GetViper(), model.DefaultConfig()); err != nil {
		log.Warn().Err(err).Msg("Failed to register config defaults")
	}

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			log.Warn().Err(err).Msg("Error finding home directory")
			return
		}
		viper.AddConfigPath(filepath.Join(home, ".discussed"))
		viper.SetConfigType("yaml")
		viper.SetConfigName("config")
	}

	if err := viper.ReadInConfig(); err == nil {
		log.Debug().Str("file", viper.ConfigFileUsed()).Msg("Using config file")
	} else if cfgFile != "" {
		log.Warn().Err(err).Str("file", cfgFile).Msg("Failed to read config file")
	}
}

// setDefaults registers every key of cfg so environment variables can override it
func setDefaults(v *viper.Viper, cfg *model.Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal defaults: %w", err)
	}
	var tree map[string]any
	if err := yaml.Unmarshal(data, &tree); err != nil {
		return fmt.Errorf("unmarshal defaults: %w", err)
	}
	flatten("", tree, v.SetDefault)

	// Keys omitted from the YAML form when empty
	for _, key := range optionalKeys {
		if err := v.BindEnv(key); err != nil {
			return fmt.Errorf("bind %s: %w", key, err)
		}
	}
	return nil
}

var optionalKeys = []string{
	"http.http_proxy",
	"http.https_proxy",
	"cache.dir",
	"cache.dsn",
	"blacklist.file",
	"relevance.model",
	"relevance.base_url",
	"relevance.api_key",
}

func flatten(prefix string, tree map[string]any, set func(string, any)) {
	for k, val := range tree {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		if sub, ok := val.(map[string]any); ok {
			flatten(key, sub, set)
			continue
		}
		set(key, val)
	}
}

// loadConfig merges defaults, config file and environment into a validated config
func loadConfig(v *viper.Viper) (*model.Config, error) {
	cfg := model.DefaultConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	// Provider API keys fall back to the conventional environment variables
	if cfg.Relevance.APIKey == "" && strings.EqualFold(cfg.Relevance.Provider, "openai") {
		cfg.Relevance.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	if cfg.Relevance.BaseURL == "" && strings.EqualFold(cfg.Relevance.Provider, "ollama") {
		cfg.Relevance.BaseURL = os.Getenv("OLLAMA_BASE_URL")
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}
