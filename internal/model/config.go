package model

import (
	"errors"
	"fmt"
	"time"
)

// Config is the complete engine configuration.
// Every recognized option is enumerated here with its default in DefaultConfig.
type Config struct {
	HTTP         HTTPConfig         `yaml:"http" mapstructure:"http"`
	Cache        CacheConfig        `yaml:"cache" mapstructure:"cache"`
	Blacklist    BlacklistConfig    `yaml:"blacklist" mapstructure:"blacklist"`
	Normalizer   NormalizerConfig   `yaml:"normalizer" mapstructure:"normalizer"`
	Providers    ProvidersConfig    `yaml:"providers" mapstructure:"providers"`
	Comments     CommentsConfig     `yaml:"comments" mapstructure:"comments"`
	Aggregator   AggregatorConfig   `yaml:"aggregator" mapstructure:"aggregator"`
	Relevance    RelevanceConfig    `yaml:"relevance" mapstructure:"relevance"`
	RateLimiting RateLimitingConfig `yaml:"rate_limiting" mapstructure:"rate_limiting"`
	Concurrency  ConcurrencyConfig  `yaml:"concurrency" mapstructure:"concurrency"`
	Server       ServerConfig       `yaml:"server" mapstructure:"server"`
}

// HTTPConfig configures the shared outbound HTTP client
type HTTPConfig struct {
	Timeout       time.Duration `yaml:"timeout" mapstructure:"timeout"`
	UserAgent     string        `yaml:"user_agent" mapstructure:"user_agent"`
	MaxBodyBytes  int64         `yaml:"max_body_bytes" mapstructure:"max_body_bytes"`
	MaxRetries    int           `yaml:"max_retries" mapstructure:"max_retries"`
	RespectRobots bool          `yaml:"respect_robots" mapstructure:"respect_robots"`
	HTTPProxy     string        `yaml:"http_proxy,omitempty" mapstructure:"http_proxy"`
	HTTPSProxy    string        `yaml:"https_proxy,omitempty" mapstructure:"https_proxy"`
}

// CacheConfig configures the response cache
type CacheConfig struct {
	Enabled       bool          `yaml:"enabled" mapstructure:"enabled"`
	Backend       string        `yaml:"backend" mapstructure:"backend"` // memory, disk, sqlite, postgres
	Dir           string        `yaml:"dir,omitempty" mapstructure:"dir"`
	DSN           string        `yaml:"dsn,omitempty" mapstructure:"dsn"`
	Duration      time.Duration `yaml:"duration" mapstructure:"duration"`             // Validity of one entry
	SweepInterval time.Duration `yaml:"sweep_interval" mapstructure:"sweep_interval"` // 0 disables the background sweep
}

// BlacklistConfig configures the blacklist source and its failure policy
type BlacklistConfig struct {
	File     string `yaml:"file,omitempty" mapstructure:"file"`
	FailMode string `yaml:"fail_mode" mapstructure:"fail_mode"` // fail_open or fail_closed
	Watch    bool   `yaml:"watch" mapstructure:"watch"`
}

// NormalizerConfig configures URL normalization
type NormalizerConfig struct {
	ProxyHosts []string `yaml:"proxy_hosts" mapstructure:"proxy_hosts"`
}

// ProvidersConfig configures the discussion sources
type ProvidersConfig struct {
	Enabled    []string         `yaml:"enabled" mapstructure:"enabled"`
	HackerNews HackerNewsConfig `yaml:"hackernews" mapstructure:"hackernews"`
	Reddit     RedditConfig     `yaml:"reddit" mapstructure:"reddit"`
}

// HackerNewsConfig configures the API-backed Hacker News provider
type HackerNewsConfig struct {
	APIBaseURL  string `yaml:"api_base_url" mapstructure:"api_base_url"`
	SiteBaseURL string `yaml:"site_base_url" mapstructure:"site_base_url"`
	HitsPerPage int    `yaml:"hits_per_page" mapstructure:"hits_per_page"`
}

// RedditConfig configures the scrape-backed Reddit provider
type RedditConfig struct {
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
	Limit   int    `yaml:"limit" mapstructure:"limit"`
}

// CommentsConfig bounds fetched comment trees
type CommentsConfig struct {
	MaxComments       int `yaml:"max_comments" mapstructure:"max_comments"`
	MaxCommentReplies int `yaml:"max_comment_replies" mapstructure:"max_comment_replies"`
}

// AggregatorConfig configures the fan-out stage
type AggregatorConfig struct {
	Dedupe bool `yaml:"dedupe" mapstructure:"dedupe"`
}

// RelevanceConfig configures the optional scoring stage
type RelevanceConfig struct {
	Enabled   bool          `yaml:"enabled" mapstructure:"enabled"`
	Provider  string        `yaml:"provider" mapstructure:"provider"` // http, openai, ollama
	Model     string        `yaml:"model,omitempty" mapstructure:"model"`
	BaseURL   string        `yaml:"base_url,omitempty" mapstructure:"base_url"`
	APIKey    string        `yaml:"-" mapstructure:"api_key"`
	APIHeader string        `yaml:"api_header" mapstructure:"api_header"`
	Timeout   time.Duration `yaml:"timeout" mapstructure:"timeout"`
}

// RateLimitingConfig configures per-host outbound rate limits
type RateLimitingConfig struct {
	RequestsPerSecond float64 `yaml:"requests_per_second" mapstructure:"requests_per_second"`
	BurstSize         int     `yaml:"burst_size" mapstructure:"burst_size"`
}

// ConcurrencyConfig configures batch processing
type ConcurrencyConfig struct {
	Workers int `yaml:"workers" mapstructure:"workers"`
}

// ServerConfig configures the HTTP transport adapter
type ServerConfig struct {
	Addr string `yaml:"addr" mapstructure:"addr"`
}

// Blacklist failure policies
const (
	FailOpen   = "fail_open"
	FailClosed = "fail_closed"
)

// DefaultProxyHosts lists institutional proxy suffixes unwrapped by default
var DefaultProxyHosts = []string{
	"libproxy1.nus.edu.sg",
	"libproxy.nus.edu.sg",
	"ezproxy.lib.ucalgary.ca",
	"ezproxy.library.wisc.edu",
	"proxy.library.cornell.edu",
	"ezp.lib.cam.ac.uk",
	"ezproxy.cul.columbia.edu",
	"ezproxy.library.ubc.ca",
}

// DefaultConfig returns the built-in configuration
func DefaultConfig() *Config {
	return &Config{
		HTTP: HTTPConfig{
			Timeout:      15 * time.Second,
			UserAgent:    "discussed/0.1 (+https://github.com/ppiankov/discussed)",
			MaxBodyBytes: 5_000_000,
			MaxRetries:   3,
		},
		Cache: CacheConfig{
			Enabled:       true,
			Backend:       "memory",
			Duration:      time.Hour,
			SweepInterval: 10 * time.Minute,
		},
		Blacklist: BlacklistConfig{
			FailMode: FailOpen,
		},
		Normalizer: NormalizerConfig{
			ProxyHosts: append([]string(nil), DefaultProxyHosts...),
		},
		Providers: ProvidersConfig{
			Enabled: []string{"hackernews", "reddit"},
			HackerNews: HackerNewsConfig{
				APIBaseURL:  "https://hn.algolia.com/api/v1",
				SiteBaseURL: "https://news.ycombinator.com",
				HitsPerPage: 30,
			},
			Reddit: RedditConfig{
				BaseURL: "https://old.reddit.com",
				Limit:   25,
			},
		},
		Comments: CommentsConfig{
			MaxComments:       10,
			MaxCommentReplies: 0,
		},
		Relevance: RelevanceConfig{
			Provider:  "http",
			APIHeader: "X-API-Key",
			Timeout:   10 * time.Second,
		},
		RateLimiting: RateLimitingConfig{
			RequestsPerSecond: 2,
			BurstSize:         5,
		},
		Concurrency: ConcurrencyConfig{
			Workers: 4,
		},
		Server: ServerConfig{
			Addr: "127.0.0.1:8787",
		},
	}
}

// Validate checks the configuration once at the boundary
func (c *Config) Validate() error {
	var errs []error

	if c.HTTP.Timeout < 0 {
		errs = append(errs, fmt.Errorf("http.timeout must not be negative"))
	}
	if c.HTTP.MaxBodyBytes <= 0 {
		errs = append(errs, fmt.Errorf("http.max_body_bytes must be positive"))
	}

	switch c.Cache.Backend {
	case "memory", "disk", "sqlite", "postgres":
	default:
		errs = append(errs, fmt.Errorf("cache.backend %q is not one of memory, disk, sqlite, postgres", c.Cache.Backend))
	}
	if c.Cache.Backend == "postgres" && c.Cache.DSN == "" {
		errs = append(errs, fmt.Errorf("cache.dsn is required for the postgres backend"))
	}
	if c.Cache.Duration <= 0 {
		errs = append(errs, fmt.Errorf("cache.duration must be positive"))
	}

	if c.Blacklist.FailMode != FailOpen && c.Blacklist.FailMode != FailClosed {
		errs = append(errs, fmt.Errorf("blacklist.fail_mode %q is not one of %s, %s", c.Blacklist.FailMode, FailOpen, FailClosed))
	}

	if len(c.Providers.Enabled) == 0 {
		errs = append(errs, fmt.Errorf("providers.enabled must name at least one provider"))
	}

	if c.Comments.MaxComments <= 0 {
		errs = append(errs, fmt.Errorf("comments.max_comments must be positive"))
	}
	if c.Comments.MaxCommentReplies < 0 {
		errs = append(errs, fmt.Errorf("comments.max_comment_replies must not be negative"))
	}

	if c.Relevance.Enabled && c.Relevance.Provider == "" {
		errs = append(errs, fmt.Errorf("relevance.provider is required when relevance is enabled"))
	}

	if c.Concurrency.Workers <= 0 {
		errs = append(errs, fmt.Errorf("concurrency.workers must be positive"))
	}

	return errors.Join(errs...)
}
