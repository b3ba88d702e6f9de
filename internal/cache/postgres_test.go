package cache

import (
	"context"
	"os"
	"testing"
	"time"
)

func TestPostgresStore(t *testing.T) {
	// Only run this test if DISCUSSED_TEST_PG_DSN is set
	dsn := os.Getenv("DISCUSSED_TEST_PG_DSN")
	if dsn == "" {
		t.Skip("Skipping Postgres store test: DISCUSSED_TEST_PG_DSN not set")
	}

	ctx := context.Background()
	s, err := NewPostgresStore(ctx, dsn)
	if err != nil {
		t.Fatalf("Failed to create Postgres store: %v", err)
	}
	defer s.Close()
	defer s.Clear(ctx)

	written := time.Now().UTC().Truncate(time.Millisecond)
	if err := s.Set(ctx, &Entry{Key: "pg", Value: []byte("v"), WrittenAt: written, Duration: time.Hour}); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	got, found, err := s.Get(ctx, "pg")
	if err != nil || !found {
		t.Fatalf("Get: found=%v err=%v", found, err)
	}
	if string(got.Value) != "v" || got.Duration != time.Hour {
		t.Errorf("unexpected entry: %+v", got)
	}

	swept, err := NewSweeper(s, 0).Sweep(ctx)
	if err != nil {
		t.Fatalf("Sweep failed: %v", err)
	}
	if swept != 0 {
		t.Errorf("fresh entry was swept")
	}
}
