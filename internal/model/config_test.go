package model

import (
	"strings"
	"testing"
)

func TestDefaultConfig_Valid(t *testing.T) {
	if err := DefaultConfig().Validate(); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"unknown backend", func(c *Config) { c.Cache.Backend = "redis" }, "cache.backend"},
		{"postgres without dsn", func(c *Config) { c.Cache.Backend = "postgres" }, "cache.dsn"},
		{"zero duration", func(c *Config) { c.Cache.Duration = 0 }, "cache.duration"},
		{"bad fail mode", func(c *Config) { c.Blacklist.FailMode = "maybe" }, "blacklist.fail_mode"},
		{"no providers", func(c *Config) { c.Providers.Enabled = nil }, "providers.enabled"},
		{"zero max comments", func(c *Config) { c.Comments.MaxComments = 0 }, "comments.max_comments"},
		{"negative replies", func(c *Config) { c.Comments.MaxCommentReplies = -1 }, "comments.max_comment_replies"},
		{"relevance without provider", func(c *Config) {
			c.Relevance.Enabled = true
			c.Relevance.Provider = ""
		}, "relevance.provider"},
		{"zero workers", func(c *Config) { c.Concurrency.Workers = 0 }, "concurrency.workers"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q does not mention %q", err, tt.wantErr)
			}
		})
	}
}

func TestValidate_ReportsAllProblems(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Cache.Backend = "redis"
	cfg.Concurrency.Workers = 0

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation error")
	}
	if !strings.Contains(err.Error(), "cache.backend") || !strings.Contains(err.Error(), "concurrency.workers") {
		t.Errorf("expected both problems reported, got %q", err)
	}
}

func TestAggregateResult_ItemCount(t *testing.T) {
	r := &AggregateResult{
		Results: []ProviderQueryResult{
			{Items: []ResultItem{{}, {}}},
			{Items: nil},
			{Items: []ResultItem{{}}},
		},
	}
	if got := r.ItemCount(); got != 3 {
		t.Errorf("ItemCount() = %d, want 3", got)
	}
}
